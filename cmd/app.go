package main

import (
	"context"
	"fmt"

	"expiry-notifier/internal/alert"
	"expiry-notifier/internal/api"
	"expiry-notifier/internal/cache"
	"expiry-notifier/internal/config"
	"expiry-notifier/internal/db"
	"expiry-notifier/internal/logging"
	"expiry-notifier/internal/notification"
	"expiry-notifier/internal/providers"
	"expiry-notifier/internal/sheet"
)

// app holds the wired collaborators shared by every command.
type app struct {
	cfg    config.Config
	logger *logging.Logger
	db     *db.DB
	cache  *cache.Client
	book   *sheet.Workbook
	hub    *api.Hub
	svc    *notification.Service
}

// newApp loads configuration and wires the service. withEvents attaches a
// websocket hub that receives run events.
func newApp(ctx context.Context, withEvents bool) (*app, error) {
	cfg, err := config.Load(envFile)
	if err != nil {
		return nil, fmt.Errorf("config load failed: %w", err)
	}
	logger, err := logging.New(cfg.Logging.Dir, cfg.Logging.Level)
	if err != nil {
		return nil, fmt.Errorf("logger init failed: %w", err)
	}
	a := &app{cfg: cfg, logger: logger}

	var events notification.Publisher
	if withEvents {
		a.hub = api.NewHub(logger)
		events = a.hub
	}

	var state notification.StateStore
	var audit alert.AuditSink
	switch cfg.State.Backend {
	case config.BackendPostgres:
		a.db, err = db.New(ctx, cfg.DB.DSN)
		if err != nil {
			a.close()
			return nil, err
		}
		if cfg.DB.Migrate {
			if err := a.db.Migrate(logger); err != nil {
				a.close()
				return nil, err
			}
		}
		state, audit = a.db, a.db
	case config.BackendRedis:
		a.cache, err = cache.NewClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, logger)
		if err != nil {
			a.close()
			return nil, err
		}
		state = a.cache
	}

	a.book, err = sheet.Open(cfg.Sheet.Path, sheet.LayoutFromConfig(cfg))
	if err != nil {
		a.close()
		return nil, err
	}
	if audit != nil {
		audit = notification.MultiSink(a.book, audit)
	} else {
		audit = a.book
	}

	a.svc = notification.New(notification.Deps{
		Config: cfg,
		Source: a.book,
		State:  state,
		Audit:  audit,
		Mailer: providers.NewMailer(cfg),
		Chat:   newChat,
		Events: events,
		Logger: logger,
	})
	return a, nil
}

func newChat(m config.Messaging) (notification.Chat, error) {
	c, err := providers.NewChat(m, 1)
	if err != nil || c == nil {
		return nil, err
	}
	return c, nil
}

func (a *app) close() {
	if a.book != nil {
		if err := a.book.Close(); err != nil {
			a.logger.Errorf("Closing workbook failed: %v", err)
		}
	}
	if a.cache != nil {
		if err := a.cache.Close(); err != nil {
			a.logger.Errorf("Closing Redis failed: %v", err)
		}
	}
	if a.db != nil {
		a.db.Close()
		a.logger.Infof("DB connection closed")
	}
	a.logger.Close()
}
