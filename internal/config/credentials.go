package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"gopkg.in/yaml.v3"
)

// Credentials holds the API token saved by `parley login`. It lives in
// its own file, outside config.yaml, so the config can be shared or
// checked in without leaking the token.
type Credentials struct {
	// Token is the bearer token for the conversation service.
	Token string `yaml:"token,omitempty"`
	// UserID is the authenticated user's id, resolved at login.
	UserID int64 `yaml:"user_id,omitempty"`
	// UpdatedAt is when the credentials were last written.
	UpdatedAt time.Time `yaml:"updated_at,omitempty"`
}

// IsEmpty returns true if no token is stored.
func (c *Credentials) IsEmpty() bool {
	return c.Token == ""
}

// CredentialStore manages loading and saving credentials.
type CredentialStore struct {
	path string
	mu   sync.RWMutex
}

// NewCredentialStore creates a credential store.
// If path is empty, uses the default path (<config dir>/credentials.yaml).
func NewCredentialStore(path string) *CredentialStore {
	if path == "" {
		path = filepath.Join(DefaultConfigDir(), "credentials.yaml")
	}
	return &CredentialStore{path: path}
}

// Path returns the credentials file path.
func (s *CredentialStore) Path() string {
	return s.path
}

// Load reads the credentials from disk.
// Returns empty credentials if the file doesn't exist.
func (s *CredentialStore) Load() (*Credentials, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	creds := &Credentials{}

	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return creds, nil
		}
		return nil, fmt.Errorf("failed to read credentials file: %w", err)
	}

	if err := yaml.Unmarshal(data, creds); err != nil {
		return nil, fmt.Errorf("failed to parse credentials file: %w", err)
	}

	return creds, nil
}

// Save writes the credentials to disk with owner-only permissions.
func (s *CredentialStore) Save(creds *Credentials) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create credentials directory: %w", err)
	}

	creds.UpdatedAt = time.Now()

	data, err := yaml.Marshal(creds)
	if err != nil {
		return fmt.Errorf("failed to serialize credentials: %w", err)
	}

	if err := os.WriteFile(s.path, data, 0600); err != nil {
		return fmt.Errorf("failed to write credentials file: %w", err)
	}

	return nil
}

// Clear removes the credentials file.
func (s *CredentialStore) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.Remove(s.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove credentials file: %w", err)
	}
	return nil
}
