// Package app wires the dashboard service from a loaded configuration. Both
// the HTTP service and the operator CLI start from here.
package app

import (
	"errors"
	"fmt"
	"log/slog"

	"linedash-backend/internal/accounts"
	"linedash-backend/internal/bus"
	"linedash-backend/internal/config"
	"linedash-backend/internal/dashboard"
	"linedash-backend/internal/settings"
)

type App struct {
	Dashboard *dashboard.Service
	Accounts  *accounts.Store
	Settings  *settings.FileStore

	publisher *bus.Publisher
}

func New(cfg config.Config, logger *slog.Logger) (*App, error) {
	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}
	var sealer settings.Sealer
	if cfg.EncryptionKey != "" {
		s, err := settings.NewAesGcmSealer([]byte(cfg.EncryptionKey))
		if err != nil {
			return nil, fmt.Errorf("settings sealer: %w", err)
		}
		sealer = s
	} else {
		logger.Warn("ENCRYPTION_KEY not set, database password stored in clear text")
	}
	store := settings.NewFileStore(cfg.SettingsPath, sealer)

	users, err := accounts.Open(cfg.UsersDB, accounts.Options{
		Logger:          logger,
		LoginsPerMinute: cfg.LoginAttemptsPerMinute,
	})
	if err != nil {
		return nil, fmt.Errorf("open accounts: %w", err)
	}

	a := &App{Accounts: users, Settings: store}
	var notifier bus.Notifier = bus.Nop{}
	if cfg.NatsURL != "" {
		pub, err := bus.NewPublisher(cfg.NatsURL)
		if err != nil {
			logger.Warn("nats disabled", slog.String("error", err.Error()))
		} else {
			a.publisher = pub
			notifier = pub
		}
	}
	a.Dashboard = dashboard.New(dashboard.Options{
		Store:    store,
		Logger:   logger,
		Notifier: notifier,
		Location: loc,
	})
	return a, nil
}

func (a *App) Close() error {
	var errs []error
	if a.Dashboard != nil {
		errs = append(errs, a.Dashboard.Close())
	}
	if a.Accounts != nil {
		errs = append(errs, a.Accounts.Close())
	}
	if a.publisher != nil {
		a.publisher.Close()
	}
	return errors.Join(errs...)
}
