package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"github.com/nvhoang/maildeck/internal/app"
	"github.com/nvhoang/maildeck/internal/config"
	"github.com/nvhoang/maildeck/internal/model"
	"github.com/nvhoang/maildeck/internal/provider"
	"github.com/nvhoang/maildeck/internal/provider/factory"
	"github.com/nvhoang/maildeck/internal/provider/localstore"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "maildeck: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// Local overrides for development; missing files are fine.
	_ = godotenv.Load()

	configPath := os.Getenv("MAILDECK_CONFIG")
	if configPath == "" {
		configPath = model.DefaultConfigPath()
	}

	cfg, err := model.LoadConfig(configPath)
	if err != nil {
		return err
	}

	log, err := newLogger(cfg)
	if err != nil {
		return err
	}

	accounts, err := config.OpenAccountStore(cfg.ConfigDir)
	if err != nil {
		return fmt.Errorf("opening account store: %w", err)
	}

	registry, err := localstore.OpenRegistry(cfg.LocalStorageDir)
	if err != nil {
		return fmt.Errorf("opening local address registry: %w", err)
	}

	manager := provider.NewManager(factory.New(log), log)
	defer func() {
		if err := manager.Close(context.Background()); err != nil {
			log.WithError(err).Warn("disconnecting provider")
		}
	}()

	m := app.New(app.Deps{
		Manager:  manager,
		Accounts: accounts,
		Registry: registry,
		Config:   *cfg,
		Log:      log,
	})

	p := tea.NewProgram(m, tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("running UI: %w", err)
	}
	return nil
}

// newLogger writes to a file in the config directory so log output
// never corrupts the alternate screen.
func newLogger(cfg *model.AppConfig) (*logrus.Logger, error) {
	log := logrus.New()

	level, err := logrus.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = logrus.InfoLevel
	}
	log.SetLevel(level)

	if err := os.MkdirAll(cfg.ConfigDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating config directory: %w", err)
	}
	path := filepath.Join(cfg.ConfigDir, "maildeck.log")
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("opening log file: %w", err)
	}
	log.SetOutput(f)

	return log, nil
}
