package identity

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

const credentialsFile = "credentials.json"

// ErrNotSignedIn is returned by a CredentialStore that holds no credentials.
var ErrNotSignedIn = errors.New("not signed in")

// Credentials are the provider tokens and identity claims persisted between
// runs.
type Credentials struct {
	AccessToken  string    `json:"access_token"`
	TokenType    string    `json:"token_type"`
	ExpiresAt    time.Time `json:"expires_at"`
	RefreshToken string    `json:"refresh_token,omitempty"`
	Subject      string    `json:"subject"`
	Email        string    `json:"email,omitempty"`
	Name         string    `json:"name,omitempty"`
	Role         string    `json:"role,omitempty"`
}

// expiryLeeway treats tokens this close to expiry as already expired.
const expiryLeeway = 30 * time.Second

func (c *Credentials) IsExpired() bool {
	return time.Now().Add(expiryLeeway).After(c.ExpiresAt)
}

// CredentialStore persists provider credentials.
type CredentialStore interface {
	SaveCredentials(*Credentials) error
	// LoadCredentials returns ErrNotSignedIn when nothing is stored.
	LoadCredentials() (*Credentials, error)
	DeleteCredentials() error
}

// FileCredentialStore implements CredentialStore using a JSON file.
type FileCredentialStore struct {
	path string
}

var _ CredentialStore = (*FileCredentialStore)(nil)

// NewFileCredentialStore stores credentials under dir, defaulting to
// ~/.classgrid.
func NewFileCredentialStore(dir string) (*FileCredentialStore, error) {
	if dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get user home directory: %w", err)
		}
		dir = filepath.Join(home, ".classgrid")
	}
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create %s: %w", dir, err)
	}
	return &FileCredentialStore{path: filepath.Join(dir, credentialsFile)}, nil
}

// SaveCredentials saves the credentials to the file.
func (s *FileCredentialStore) SaveCredentials(credentials *Credentials) error {
	data, err := json.MarshalIndent(credentials, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal credentials: %w", err)
	}
	return os.WriteFile(s.path, data, 0600)
}

// LoadCredentials loads the credentials from the file.
func (s *FileCredentialStore) LoadCredentials() (*Credentials, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotSignedIn
		}
		return nil, fmt.Errorf("failed to read credentials file: %w", err)
	}
	var creds Credentials
	if err := json.Unmarshal(data, &creds); err != nil {
		return nil, fmt.Errorf("failed to unmarshal credentials: %w", err)
	}
	return &creds, nil
}

// DeleteCredentials deletes the credentials file.
func (s *FileCredentialStore) DeleteCredentials() error {
	if err := os.Remove(s.path); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}
