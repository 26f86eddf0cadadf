package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/example/roster-draft/internal/application"
	"github.com/example/roster-draft/internal/config"
	httptransport "github.com/example/roster-draft/internal/http"
	"github.com/example/roster-draft/internal/persistence/sqlite"
	"github.com/example/roster-draft/internal/replicator"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	store, err := sqlite.Open(cfg.SQLiteDSN)
	if err != nil {
		logger.Error("failed to open store", "error", err)
		os.Exit(1)
	}
	defer func() {
		if cerr := store.Close(); cerr != nil {
			logger.Error("failed to close store", "error", cerr)
		}
	}()

	if err := store.Migrate(context.Background()); err != nil {
		logger.Error("failed to apply schema", "error", err)
		os.Exit(1)
	}

	idGenerator := uuid.NewString
	now := time.Now

	lockService := application.NewLockService(store.Locks(), cfg.LockTTL, idGenerator, now, logger)
	eventService := application.NewEventService(store.Events(), idGenerator, now, logger)
	mirror := replicator.New(store.Participants(), logger, replicator.WithStreamBuffer(cfg.StreamBuffer))

	router := httptransport.NewRouter(httptransport.RouterConfig{
		Events:       httptransport.NewEventHandler(eventService, logger),
		Locks:        httptransport.NewLockHandler(lockService, logger),
		Participants: httptransport.NewParticipantHandler(mirror, store.Participants(), logger),
		Middleware: []func(http.Handler) http.Handler{
			httptransport.RequestLogger(logger),
			httptransport.RequireGuild(logger),
		},
	})

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	group, groupCtx := errgroup.WithContext(ctx)

	group.Go(func() error {
		logger.Info("roster draft API listening", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	group.Go(func() error {
		<-groupCtx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("failed to shutdown server", "error", err)
		}
		return nil
	})

	group.Go(func() error {
		return mirror.Run(groupCtx)
	})

	if cfg.SweepInterval > 0 {
		group.Go(func() error {
			runSweeper(groupCtx, lockService, cfg.SweepInterval, logger)
			return nil
		})
	}

	if err := group.Wait(); err != nil {
		logger.Error("server encountered error", "error", err)
		os.Exit(1)
	}
}

// runSweeper periodically removes expired locks so they do not accumulate in
// the store. Expired locks are already invisible to reads; the sweep is purely
// garbage collection.
func runSweeper(ctx context.Context, locks *application.LockService, interval time.Duration, logger *slog.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			removed, err := locks.SweepExpired(ctx, "")
			if err != nil {
				logger.Error("lock sweep failed", "error", err)
				continue
			}
			if removed > 0 {
				logger.Info("removed expired locks", "count", removed)
			}
		}
	}
}
