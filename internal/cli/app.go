package cli

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/roach88/medibox/internal/config"
	"github.com/roach88/medibox/internal/notify"
	"github.com/roach88/medibox/internal/notify/fcm"
	"github.com/roach88/medibox/internal/router"
	"github.com/roach88/medibox/internal/store"
	"github.com/roach88/medibox/internal/triggers"
)

// app is an open tree with the medibox handlers running against it.
type app struct {
	store  *store.Store
	router *router.Router
	done   <-chan error
}

// startApp opens the tree at cfg.DBPath and starts the handlers. A nil
// transport is chosen from cfg.
func startApp(ctx context.Context, cfg config.Config, transport notify.Transport) (*app, error) {
	if transport == nil {
		t, err := newTransport(ctx, cfg)
		if err != nil {
			return nil, fail(CodeTransport, "failed to create push transport", err)
		}
		transport = t
	}

	slog.Info("opening database", "path", cfg.DBPath)
	st, err := store.Open(cfg.DBPath)
	if err != nil {
		return nil, fail(CodeDatabase, "failed to open database", err)
	}

	r := router.New(st,
		router.WithHandlerTimeout(cfg.HandlerTimeout),
	)
	if err := triggers.Register(r, triggers.Deps{
		Store:      st,
		Transport:  transport,
		OrderTopic: cfg.OrderTopic,
	}); err != nil {
		st.Close()
		return nil, fail(CodeConfig, "failed to register handlers", err)
	}

	done, err := r.Start(ctx)
	if err != nil {
		st.Close()
		return nil, fail(CodeConfig, "failed to start router", err)
	}
	return &app{store: st, router: r, done: done}, nil
}

// Close stops the handlers, waits for in-flight ones and closes the tree.
func (a *app) Close() error {
	a.router.Stop()
	<-a.done
	if err := a.store.Close(); err != nil {
		return fmt.Errorf("close database: %w", err)
	}
	return nil
}

// newTransport connects to Firebase Cloud Messaging when credentials are
// configured and falls back to logging messages otherwise.
func newTransport(ctx context.Context, cfg config.Config) (notify.Transport, error) {
	if cfg.CredentialsFile == "" {
		slog.Warn("no push credentials configured, notifications will only be logged",
			"env", config.EnvCredentials)
		return notify.LogTransport{}, nil
	}
	return fcm.New(ctx, cfg.CredentialsFile)
}
