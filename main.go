package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/oklog/run"

	"github.com/danielhkuo/livepoll/cliparse"
	"github.com/danielhkuo/livepoll/db"
	"github.com/danielhkuo/livepoll/engine"
	"github.com/danielhkuo/livepoll/hub"
	"github.com/danielhkuo/livepoll/ledger"
	"github.com/danielhkuo/livepoll/metrics"
	"github.com/danielhkuo/livepoll/middleware"
	"github.com/danielhkuo/livepoll/registry"
	"github.com/danielhkuo/livepoll/router"
	"github.com/danielhkuo/livepoll/tally"
)

func main() {
	// A missing .env is fine; flags and the environment still apply
	if err := godotenv.Load(); err != nil {
		slog.Debug("no .env file loaded", "error", err)
	}

	// Parse configuration
	cfg, err := cliparse.ParseFlags(os.Args[1:])
	if err != nil {
		slog.Error("Error parsing flags", "error", err)
		os.Exit(1)
	}

	logger := slog.Default()

	// Connect to the database
	dbConn, err := db.Open(cfg.DatabaseType, cfg.DatabaseURL)
	if err != nil {
		slog.Error("database connection failed", "error", err, "type", cfg.DatabaseType)
		os.Exit(1)
	}
	defer dbConn.Close()

	// Create schema (tables)
	if err := db.CreateSchema(dbConn); err != nil {
		slog.Error("schema creation failed", "error", err)
		os.Exit(1)
	}
	slog.Info("Database schema ready", "type", cfg.DatabaseType)

	// Tally store: Redis when configured, otherwise in process
	var store engine.TallyStore
	if cfg.RedisURL != "" {
		client, err := tally.DialRedis(cfg.RedisURL)
		if err != nil {
			slog.Error("redis connection failed", "error", err)
			os.Exit(1)
		}
		defer client.Close()
		store = tally.NewRedisStore(client, tally.DefaultKeyPrefix)
		slog.Info("Using Redis tally store")
	} else {
		store = tally.NewMemoryStore()
		slog.Info("Using in-memory tally store")
	}

	voteMetrics := metrics.PromVoteMetrics()
	apiMetrics := metrics.PromAPIMetrics()

	reg, err := registry.New(dbConn, logger, registry.DefaultCacheSize)
	if err != nil {
		slog.Error("registry setup failed", "error", err)
		os.Exit(1)
	}

	h := hub.New(hub.Options{
		GracePeriod: cfg.HubGracePeriod,
		Buffer:      cfg.SubscriberBuffer,
		Logger:      logger,
		Metrics:     voteMetrics,
	})
	defer h.Close()

	eng := engine.New(engine.Dependencies{
		Ledger:   ledger.New(dbConn, logger),
		Tally:    store,
		Registry: reg,
		Hub:      h,
		Logger:   logger,
		Metrics:  voteMetrics,
	})

	// Rebuild counters from the ledger before serving
	pollIDs, err := reg.ListPollIDs(context.Background())
	if err != nil {
		slog.Error("failed to list polls", "error", err)
		os.Exit(1)
	}
	if err := eng.ReconcileAll(context.Background(), pollIDs); err != nil {
		slog.Error("initial reconciliation failed", "error", err)
		os.Exit(1)
	}
	slog.Info("Tallies rebuilt", "polls", len(pollIDs))

	mux := router.NewRouter(router.Services{
		Registry: reg,
		Engine:   eng,
		Config:   cfg,
		Logger:   logger,
		Metrics:  apiMetrics,
	})

	server := http.Server{
		Handler:           middleware.CORS(mux),
		Addr:              ":" + strconv.Itoa(cfg.Port),
		ReadHeaderTimeout: 10 * time.Second,
	}

	var g run.Group
	{
		g.Add(func() error {
			slog.Info("Listening", "port", cfg.Port)
			err := server.ListenAndServe()
			if errors.Is(err, http.ErrServerClosed) {
				return nil
			}
			return err
		}, func(error) {
			// Close live observers first so Shutdown is not held open by streams
			h.Close()
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := server.Shutdown(ctx); err != nil {
				server.Close()
			}
		})
	}
	{
		ctx, cancel := context.WithCancel(context.Background())
		g.Add(func() error {
			ticker := time.NewTicker(cfg.ReconcileInterval)
			defer ticker.Stop()
			for {
				select {
				case <-ctx.Done():
					return nil
				case <-ticker.C:
					n, err := eng.ReconcileDirty(ctx)
					if err != nil {
						slog.Error("reconciliation failed", "error", err)
					} else if n > 0 {
						slog.Info("dirty polls reconciled", "polls", n)
					}
				}
			}
		}, func(error) {
			cancel()
		})
	}
	{
		ctx, cancel := context.WithCancel(context.Background())
		g.Add(func() error {
			// signal.Notify requires the channel to be buffered
			ctrlc := make(chan os.Signal, 1)
			signal.Notify(ctrlc, os.Interrupt, syscall.SIGTERM)
			defer signal.Stop(ctrlc)
			select {
			case sig := <-ctrlc:
				slog.Info("received signal", "signal", sig.String())
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		}, func(error) {
			cancel()
		})
	}

	if err := g.Run(); err != nil {
		slog.Error("Server closed", "error", err)
		os.Exit(1)
	}
	slog.Info("Server closed")
}
