package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/terraconstructs/classgrid/cmd/classgridctl/cmd/profile"
	"github.com/terraconstructs/classgrid/cmd/classgridctl/cmd/session"
	"github.com/terraconstructs/classgrid/internal/config"
)

var (
	cfg        *config.Config
	configFile string
)

var rootCmd = &cobra.Command{
	Use:   "classgridctl",
	Short: "classgrid session and profile management",
	Long: `classgridctl runs the classgrid session service and manages the signed-in
session, user profiles and the profile database.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if configFile != "" {
			if err := config.LoadFile(configFile); err != nil {
				return err
			}
		}
		var err error
		cfg, err = config.Load()
		if err != nil {
			return fmt.Errorf("failed to load configuration: %w", err)
		}
		session.SetConfig(cfg)
		profile.SetConfig(cfg)
		return nil
	},
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "Path to a YAML config file (env vars CLASSGRID_* take precedence)")
	rootCmd.AddCommand(session.SessionCmd)
	rootCmd.AddCommand(profile.ProfileCmd)
}
