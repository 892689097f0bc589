// Package cli wires the pieces every netatmo subcommand needs: the YAML
// config, the credentials store living next to it, and a TokenManager
// resuming whatever credential was stored last.
package cli

import (
	"errors"
	"log/slog"
	"path/filepath"

	"github.com/spf13/cobra"

	netatmo "github.com/cgtobi/netatmo-api-go"
	"github.com/cgtobi/netatmo-api-go/internal/cliconfig"
	"github.com/cgtobi/netatmo-api-go/internal/credentials"
)

// Session bundles the loaded config, the credentials store, and the token
// manager for one command invocation.
type Session struct {
	Config  *cliconfig.Config
	Store   *credentials.Manager
	Manager *netatmo.TokenManager
}

// ConfigPath resolves the --config flag, falling back to the default
// location.
func ConfigPath(cmd *cobra.Command) (string, error) {
	path, _ := cmd.Flags().GetString("config")
	if path != "" {
		return path, nil
	}
	return cliconfig.DefaultPath()
}

// NewSession loads the config, opens the credentials store in the same
// directory, and builds a TokenManager. Refreshed tokens are persisted
// automatically through the store's updater.
func NewSession(cmd *cobra.Command, redirectURL string) (*Session, error) {
	path, err := ConfigPath(cmd)
	if err != nil {
		return nil, err
	}

	cfg, err := cliconfig.Load(path)
	if err != nil {
		return nil, err
	}

	store, err := credentials.NewManager(filepath.Dir(path))
	if err != nil {
		return nil, err
	}

	logger := slog.Default()
	manager, err := netatmo.NewTokenManager(cfg.OAuthConfig(redirectURL),
		netatmo.WithBaseURL(cfg.BaseURL),
		netatmo.WithLogger(logger),
		netatmo.WithTokenUpdater(store.Updater(logger)),
	)
	if err != nil {
		return nil, err
	}

	cred, err := store.Load()
	if err != nil {
		return nil, err
	}
	if cred != nil {
		manager.SetCredential(cred)
	}

	return &Session{Config: cfg, Store: store, Manager: manager}, nil
}

// RequireAuth returns an error when no credential is stored yet. Expired
// credentials pass; the manager refreshes them on the first call.
func (s *Session) RequireAuth() error {
	if s.Manager.Credential() == nil {
		return errors.New("not logged in; run 'netatmo auth login' first")
	}
	return nil
}
