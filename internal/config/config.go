package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment variable, e.g. CLASSGRID_SERVER_ADDR.
const EnvPrefix = "CLASSGRID"

// Cache backends.
const (
	CacheBackendFile   = "file"
	CacheBackendSQL    = "sql"
	CacheBackendMemory = "memory"
)

// Config holds the application configuration
type Config struct {
	// Local bind address for the session HTTP surface (host:port)
	ServerAddr string

	// Profile store DSN (postgres:// or a sqlite path)
	ProfileDatabaseURL string

	// Maximum database connection pool size
	MaxDBConnections int

	// Base URL of the scheduling service
	SchedulerURL string

	// Enable debug logging
	Debug bool

	// Pre-issued bearer JWT; selects the static identity provider
	BearerToken string

	// Per-identity memo of last resolved role and name
	ProfileMemoSize int

	Cache         CacheConfig
	OIDC          OIDCConfig
	Observability ObservabilityConfig
}

// CacheConfig selects where the local session cache lives.
type CacheConfig struct {
	// Backend is one of file, sql or memory
	Backend string

	// Path is the directory for the file backend. Empty means ~/.classgrid.
	Path string

	// DatabaseURL for the sql backend. Defaults to the profile DSN.
	DatabaseURL string

	// Namespace separates cache records that share a table
	Namespace string
}

// OIDCConfig configures the OIDC identity provider.
type OIDCConfig struct {
	Issuer       string
	ClientID     string
	ClientSecret string
	Scopes       []string

	// RoleClaim names the ID token claim with the provider's default role
	RoleClaim string

	// TokenPath is the directory for provider credentials. Empty means
	// ~/.classgrid.
	TokenPath string
}

// ObservabilityConfig holds OpenTelemetry settings.
type ObservabilityConfig struct {
	// OTLPEndpoint disables telemetry when empty
	OTLPEndpoint   string
	OTLPProtocol   string
	OTLPInsecure   bool
	ServiceName    string
	ServiceVersion string
	Environment    string
}

func init() {
	setDefaults()
}

func setDefaults() {
	viper.SetDefault("server_addr", "localhost:8787")
	viper.SetDefault("profile_database_url", "classgrid.db")
	viper.SetDefault("max_db_connections", 10)
	viper.SetDefault("scheduler_url", "http://localhost:5000")
	viper.SetDefault("debug", false)
	viper.SetDefault("profile_memo_size", 64)
	viper.SetDefault("cache.backend", CacheBackendFile)
	viper.SetDefault("cache.namespace", "default")
	viper.SetDefault("oidc.role_claim", "role")
	viper.SetDefault("observability.otlp_protocol", "http/protobuf")
	viper.SetDefault("observability.service_name", "classgrid")
	viper.SetDefault("observability.service_version", "dev")
	viper.SetDefault("observability.environment", "development")
}

// LoadFile reads a YAML config file into the shared viper instance. Values
// from CLASSGRID_ environment variables still take precedence.
func LoadFile(path string) error {
	viper.SetConfigFile(path)
	if err := viper.ReadInConfig(); err != nil {
		return fmt.Errorf("read config %s: %w", path, err)
	}
	return nil
}

// Load reads configuration from the config file (if loaded), CLASSGRID_
// environment variables and defaults, in that order of precedence:
// environment first.
func Load() (*Config, error) {
	setDefaults()
	viper.SetEnvPrefix(EnvPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	cfg := &Config{
		ServerAddr:         viper.GetString("server_addr"),
		ProfileDatabaseURL: viper.GetString("profile_database_url"),
		MaxDBConnections:   viper.GetInt("max_db_connections"),
		SchedulerURL:       viper.GetString("scheduler_url"),
		Debug:              viper.GetBool("debug"),
		BearerToken:        viper.GetString("bearer_token"),
		ProfileMemoSize:    viper.GetInt("profile_memo_size"),
		Cache: CacheConfig{
			Backend:     strings.ToLower(viper.GetString("cache.backend")),
			Path:        viper.GetString("cache.path"),
			DatabaseURL: viper.GetString("cache.database_url"),
			Namespace:   viper.GetString("cache.namespace"),
		},
		OIDC: OIDCConfig{
			Issuer:       viper.GetString("oidc.issuer"),
			ClientID:     viper.GetString("oidc.client_id"),
			ClientSecret: viper.GetString("oidc.client_secret"),
			Scopes:       viper.GetStringSlice("oidc.scopes"),
			RoleClaim:    viper.GetString("oidc.role_claim"),
			TokenPath:    viper.GetString("oidc.token_path"),
		},
		Observability: ObservabilityConfig{
			OTLPEndpoint:   viper.GetString("observability.otlp_endpoint"),
			OTLPProtocol:   viper.GetString("observability.otlp_protocol"),
			OTLPInsecure:   viper.GetBool("observability.otlp_insecure"),
			ServiceName:    viper.GetString("observability.service_name"),
			ServiceVersion: viper.GetString("observability.service_version"),
			Environment:    viper.GetString("observability.environment"),
		},
	}

	if cfg.ProfileDatabaseURL == "" {
		return nil, fmt.Errorf("CLASSGRID_PROFILE_DATABASE_URL is required")
	}

	switch cfg.Cache.Backend {
	case CacheBackendFile, CacheBackendMemory:
	case CacheBackendSQL:
		if cfg.Cache.DatabaseURL == "" {
			cfg.Cache.DatabaseURL = cfg.ProfileDatabaseURL
		}
	default:
		return nil, fmt.Errorf("unknown cache backend %q (want file, sql or memory)", cfg.Cache.Backend)
	}

	if cfg.OIDC.Issuer != "" && cfg.BearerToken != "" {
		return nil, fmt.Errorf("identity config error: set either CLASSGRID_OIDC_ISSUER or CLASSGRID_BEARER_TOKEN, not both")
	}
	if cfg.OIDC.Issuer != "" && cfg.OIDC.ClientID == "" {
		return nil, fmt.Errorf("CLASSGRID_OIDC_CLIENT_ID is required when CLASSGRID_OIDC_ISSUER is set")
	}

	return cfg, nil
}

// ValidateIdentity checks that exactly one identity provider is configured.
// Commands that only touch the profile database skip it.
func (c *Config) ValidateIdentity() error {
	if c.OIDC.Issuer == "" && c.BearerToken == "" {
		return fmt.Errorf("no identity provider configured: set CLASSGRID_OIDC_ISSUER or CLASSGRID_BEARER_TOKEN")
	}
	return nil
}

// UsesOIDC reports whether the OIDC provider is configured.
func (c *Config) UsesOIDC() bool {
	return c.OIDC.Issuer != ""
}
