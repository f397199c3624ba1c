package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sudo-init-do/govconnect/internal/alerts"
	"github.com/sudo-init-do/govconnect/internal/config"
	"github.com/sudo-init-do/govconnect/internal/db"
	"github.com/sudo-init-do/govconnect/internal/domain"
	"github.com/sudo-init-do/govconnect/internal/server"
	"github.com/sudo-init-do/govconnect/internal/store"
	"github.com/sudo-init-do/govconnect/internal/store/memstore"
	"github.com/sudo-init-do/govconnect/internal/store/pgstore"
)

func main() {
	cfg, err := config.Load("config")
	if err != nil {
		slog.Error("failed to load config", "err", err)
		os.Exit(1)
	}
	logger := newLogger(cfg)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("server stopped", "err", err)
		os.Exit(1)
	}
}

func newLogger(cfg *config.Config) *slog.Logger {
	opts := &slog.HandlerOptions{Level: cfg.SlogLevel()}
	if cfg.IsProduction() {
		return slog.New(slog.NewJSONHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, opts))
}

func openStore(ctx context.Context, cfg *config.Config, logger *slog.Logger) (store.Store, func(), error) {
	if cfg.Database.Driver == "memory" {
		st := memstore.New()
		seedDemo(st)
		logger.Warn("using in-memory store; data is lost on restart")
		return st, func() {}, nil
	}
	dsn := cfg.Database.DSN()
	if err := db.Migrate(dsn); err != nil {
		return nil, nil, err
	}
	pool, err := db.Connect(ctx, dsn, cfg.Database.MaxConns)
	if err != nil {
		return nil, nil, err
	}
	return pgstore.New(pool), pool.Close, nil
}

// seedDemo adds fixed identities so tokens minted by cmd/adminutil/issue_token
// work against a memory-backed server.
func seedDemo(st *memstore.Store) {
	st.AddUser(domain.User{ID: "00000000-0000-0000-0000-00000000c001", Name: "Demo Contractor", Email: "contractor@example.com", Role: domain.RoleContractor}, "")
	st.AddUser(domain.User{ID: "00000000-0000-0000-0000-00000000a001", Name: "Demo Admin", Email: "admin@example.com", Role: domain.RoleAdmin}, "")
	st.AddUser(domain.User{ID: "00000000-0000-0000-0000-00000000f001", Name: "Demo Vendor", Email: "vendor@example.com", Role: domain.RoleVendor}, "Demo Compliance LLC")
	st.AddService(domain.Service{
		ID:       "00000000-0000-0000-0000-00000000e001",
		VendorID: "00000000-0000-0000-0000-00000000f001",
		Title:    "FAR/DFARS compliance review",
		Category: domain.CategoryLegal,
	})
}

func run(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	st, closeStore, err := openStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeStore()

	var dispatcher alerts.Dispatcher = alerts.NopDispatcher{}
	if cfg.Redis.Addr != "" {
		mailer, err := alerts.NewMailer(cfg.Mail, logger)
		if err != nil {
			return err
		}
		d := alerts.NewAsynqDispatcher(cfg.Redis.Addr)
		defer d.Close()
		dispatcher = d

		worker := alerts.NewWorker(cfg.Redis.Addr, mailer, logger)
		if err := worker.Start(); err != nil {
			return err
		}
		defer worker.Shutdown()
		logger.Info("email worker started", "redis", cfg.Redis.Addr, "provider", cfg.Mail.Provider)
	}

	srv, err := server.New(server.Deps{
		Config:     cfg,
		Store:      st,
		Dispatcher: dispatcher,
		Logger:     logger,
	})
	if err != nil {
		return err
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("API server listening", "port", cfg.Server.Port, "env", cfg.Server.Environment)
		if err := srv.Echo.Start(":" + cfg.Server.Port); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	logger.Info("shutting down")
	return srv.Echo.Shutdown(shutdownCtx)
}
