package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"paylog/internal/amqp"
	"paylog/internal/auth"
	"paylog/internal/cache"
	"paylog/internal/cli"
	"paylog/internal/core"
	apphttp "paylog/internal/http"
	"paylog/internal/ledger"
	"paylog/internal/log"
	"paylog/internal/middleware/ratelimit"
	"paylog/internal/middleware/security"
	"paylog/internal/notify"
	"paylog/internal/roster"
)

const sessionCleanupInterval = 10 * time.Minute

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "paylog:", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := cli.LoadConfig()
	if err != nil {
		return err
	}
	logger := cli.SetupLogger(cfg, log.ComponentApp)

	ctx, cancel := cli.GracefulShutdown(logger)
	defer cancel()

	store, err := cli.OpenStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer store.Close()

	hub := notify.NewHub(logger, nil)
	var notifier core.Notifier = hub
	var relay *amqp.Relay
	if cfg.AMQPURL != "" {
		relay = amqp.NewRelay(cfg.AMQPURL, cfg.AMQPExchange, hub, logger)
		notifier = relay
		logger.Info("AMQP relay enabled", "exchange", cfg.AMQPExchange)
	}

	detector, err := security.NewDetector(cfg.TrustedProxies...)
	if err != nil {
		return fmt.Errorf("trusted proxies: %w", err)
	}
	sessions := auth.NewSessionStore(cfg.SessionTTL, cfg.MaxSessions)
	limiter := ratelimit.NewLimiter(ratelimit.Config{RequestsPerMinute: cfg.LoginRatePerMinute})

	srv := apphttp.NewServer(apphttp.Options{
		Addr:           ":" + cfg.Port,
		MaxUploadBytes: cfg.MaxUploadBytes,
		SecureCookies:  cfg.SecureCookies,
	}, apphttp.Deps{
		Engine:     ledger.NewEngine(store, notifier, logger),
		Reconciler: roster.NewReconciler(store, notifier, logger),
		Admin:      auth.NewAdmin(store, cfg.BcryptCost),
		Sessions:   sessions,
		Feed:       hub,
		Store:      store,
		Limiter:    limiter,
		Detector:   detector,
		Logger:     logger,
	})

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("Server starting", "addr", srv.Addr, "backend", cfg.DataBackend)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Shutting down", log.FieldOperation, log.OpShutdown)
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer shutdownCancel()
		hub.Close()
		if relay != nil {
			_ = relay.Close()
		}
		return srv.Shutdown(shutdownCtx)
	})
	g.Go(func() error {
		return cache.RunCleanup(gctx, sessionCleanupInterval, "sessions", sessions)
	})
	g.Go(func() error {
		return limiter.Run(gctx)
	})
	if relay != nil {
		g.Go(func() error {
			return relay.Run(gctx)
		})
	}

	if err := g.Wait(); err != nil {
		return err
	}
	logger.Info("Server stopped")
	return nil
}
