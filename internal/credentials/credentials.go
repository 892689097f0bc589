// Package credentials persists the CLI's OAuth credential as a TOML file.
package credentials

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"

	netatmo "github.com/cgtobi/netatmo-api-go"
)

const credentialsFile = "credentials.toml"

// stored is the on-disk shape. Expiry is kept as epoch seconds so the file
// stays editable by hand.
type stored struct {
	AccessToken  string   `toml:"access_token"`
	RefreshToken string   `toml:"refresh_token,omitempty"`
	ExpiresAt    int64    `toml:"expires_at,omitempty"`
	Scope        []string `toml:"scope,omitempty"`
}

// Manager reads and writes credentials.toml in the config directory.
type Manager struct {
	path string
}

// NewManager creates a Manager storing credentials under dir. An empty dir
// resolves to ~/.config/netatmo, which is created if needed.
func NewManager(dir string) (*Manager, error) {
	if dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("resolving home dir: %w", err)
		}
		dir = filepath.Join(home, ".config", "netatmo")
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("creating config dir: %w", err)
	}

	return &Manager{path: filepath.Join(dir, credentialsFile)}, nil
}

// Load reads the stored credential. Returns nil without error when nothing
// has been saved yet.
func (m *Manager) Load() (*netatmo.Credential, error) {
	data, err := os.ReadFile(m.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading credentials: %w", err)
	}

	var s stored
	if err := toml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("parsing credentials: %w", err)
	}
	if s.AccessToken == "" {
		return nil, nil
	}

	cred := &netatmo.Credential{
		AccessToken:  s.AccessToken,
		RefreshToken: s.RefreshToken,
	}
	if s.ExpiresAt > 0 {
		cred.ExpiresAt = time.Unix(s.ExpiresAt, 0)
	}
	for _, sc := range s.Scope {
		cred.Scope = append(cred.Scope, netatmo.Scope(sc))
	}

	return cred, nil
}

// Save writes the credential with 0600 permissions. The write is atomic: a
// temp file in the same directory is renamed over the previous one, so a
// crash mid-write cannot leave a truncated store.
func (m *Manager) Save(cred *netatmo.Credential) error {
	if cred == nil {
		return errors.New("cannot save nil credential")
	}

	s := stored{
		AccessToken:  cred.AccessToken,
		RefreshToken: cred.RefreshToken,
	}
	if !cred.ExpiresAt.IsZero() {
		s.ExpiresAt = cred.ExpiresAt.Unix()
	}
	for _, sc := range cred.Scope {
		s.Scope = append(s.Scope, string(sc))
	}

	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(s); err != nil {
		return fmt.Errorf("encoding credentials: %w", err)
	}

	tmp := m.path + ".tmp"
	if err := os.WriteFile(tmp, buf.Bytes(), 0o600); err != nil {
		return fmt.Errorf("writing credentials: %w", err)
	}
	if err := os.Rename(tmp, m.path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("replacing credentials: %w", err)
	}

	return nil
}

// Remove deletes the stored credential. Removing a credential that was
// never saved is not an error.
func (m *Manager) Remove() error {
	if err := os.Remove(m.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("removing credentials: %w", err)
	}
	return nil
}

// Path returns the resolved path to the credentials file.
func (m *Manager) Path() string {
	return m.path
}

// Updater returns a TokenUpdater that persists every refreshed credential.
// Save failures are logged rather than propagated, since the refresh itself
// succeeded; a nil logger drops them.
func (m *Manager) Updater(logger *slog.Logger) netatmo.TokenUpdater {
	return netatmo.TokenUpdaterFunc(func(cred *netatmo.Credential) {
		if err := m.Save(cred); err != nil && logger != nil {
			logger.LogAttrs(context.Background(), slog.LevelWarn, "credential_save_failed",
				slog.String("path", m.path),
				slog.String("error", err.Error()),
			)
		}
	})
}
