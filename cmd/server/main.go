// cmd/server/main.go
package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/primepickle/courtside/internal/auth"
	"github.com/primepickle/courtside/internal/cache"
	"github.com/primepickle/courtside/internal/config"
	"github.com/primepickle/courtside/internal/database"
	"github.com/primepickle/courtside/internal/handlers"
	"github.com/primepickle/courtside/internal/hub"
	"github.com/primepickle/courtside/internal/lobby"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logrus.Fatalf("config: %v", err)
	}
	logger := cfg.NewLogger()

	if err := run(cfg, logger); err != nil {
		logger.Fatalf("server exited: %v", err)
	}
}

func run(cfg *config.Config, logger *logrus.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.AuthPrivateKeyPath != "" {
		if err := auth.InitFromPath(cfg.AuthPrivateKeyPath, cfg.AuthPublicKeyPath); err != nil {
			return err
		}
	} else {
		logger.Warn("no auth key paths configured, using ephemeral keys")
		if err := auth.Init(); err != nil {
			return err
		}
	}
	auth.SetTokenExpiry(cfg.TokenExpiry)

	var store lobby.Store
	if cfg.DatabaseURL != "" {
		pool, err := database.ConnectDB(ctx, cfg.DatabaseURL)
		if err != nil {
			return err
		}
		defer pool.Close()
		if err := database.EnsureSchema(ctx, pool); err != nil {
			return err
		}
		store = database.NewStore(pool)
	} else {
		logger.Warn("DATABASE_URL not set, lobbies are kept in memory")
		store = lobby.NewMemoryStore()
	}

	h := hub.New(logger)
	g, ctx := errgroup.WithContext(ctx)

	var notifier lobby.Notifier = h
	if cfg.RedisAddr != "" {
		rdb, err := cache.ConnectRedis(ctx, cfg.RedisAddr, cfg.RedisDB)
		if err != nil {
			return err
		}
		defer rdb.Close()

		pub := cache.NewPublisher(rdb, cfg.EventChannel)
		notifier = pub
		// every instance, this one included, learns about changes through the channel
		g.Go(func() error {
			return pub.Forward(ctx, h, logger)
		})
	}

	svc := lobby.NewService(store, lobby.Options{
		Countdown:    cfg.Countdown,
		StoreRetries: cfg.StoreRetries,
		Notifier:     notifier,
		Logger:       logger,
	})
	defer svc.Close()

	api := &handlers.APIServer{
		Service:        svc,
		Hub:            h,
		Logger:         logger,
		AllowedOrigins: cfg.AllowedOrigins,
	}
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           api.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	g.Go(func() error {
		logger.Infof("Running on %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	err := g.Wait()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
