package cli

import (
	"errors"
	"log/slog"
	"os"

	"maildigest/internal/config"
	"maildigest/internal/secrets"

	"github.com/spf13/cobra"
)

// session is the resolved configuration and logger shared by run commands.
type session struct {
	cfg    config.Config
	logger *slog.Logger
}

func loadSession(cmd *cobra.Command) (session, error) {
	cfg, err := config.Load()
	if err != nil {
		return session{}, err
	}

	level := cfg.Log.Level
	if f := cmd.Flags().Lookup("log-level"); f != nil && f.Changed {
		level = f.Value.String()
	}
	logger, err := newLogger(level, cmd.ErrOrStderr())
	if err != nil {
		return session{}, err
	}

	if err := resolvePassword(&cfg); err != nil {
		return session{}, err
	}

	return session{cfg: cfg, logger: logger}, nil
}

func loadConfig() (config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return cfg, err
	}
	return cfg, resolvePassword(&cfg)
}

func resolvePassword(cfg *config.Config) error {
	if _, ok := os.LookupEnv("MAILDIGEST_AUTH_PASSWORD"); ok {
		cfg.Auth.PasswordSource = "env"
		return nil
	}

	if cfg.Auth.Password != "" {
		cfg.Auth.PasswordSource = "config"
		return nil
	}

	if cfg.Auth.Username == "" {
		return nil
	}

	password, err := secrets.GetPassword(cfg.Auth.Username)
	if err != nil {
		if errors.Is(err, secrets.ErrSecretNotFound) {
			return nil
		}
		return err
	}

	cfg.Auth.Password = password
	cfg.Auth.PasswordSource = "keyring"
	return nil
}

// resolveAPIKey fills the summarizer key from the keyring. The key is
// optional, so lookup failures only warn.
func resolveAPIKey(cfg *config.Config, logger *slog.Logger) {
	if cfg.Summarizer.APIKey != "" {
		return
	}
	key, err := secrets.GetAPIKey(cfg.Summarizer.BaseURL)
	if err != nil {
		if !errors.Is(err, secrets.ErrSecretNotFound) {
			logger.Warn("summarizer api key lookup failed", "error", err)
		}
		return
	}
	cfg.Summarizer.APIKey = key
}
