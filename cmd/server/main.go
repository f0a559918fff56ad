package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/playperu/monikers/internal/bus"
	"github.com/playperu/monikers/internal/config"
	"github.com/playperu/monikers/internal/database"
	"github.com/playperu/monikers/internal/handler/health"
	"github.com/playperu/monikers/internal/migrations"
	"github.com/playperu/monikers/internal/rooms"
	"github.com/playperu/monikers/internal/server"
	"github.com/playperu/monikers/internal/snapshot"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, stdout io.Writer) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logger := slog.New(slog.NewJSONHandler(stdout, &slog.HandlerOptions{
		Level: cfg.LogLevel,
	}))

	// --- Redis (only when a backend needs it) ---
	var rdb *redis.Client
	if cfg.SnapshotBackend == "redis" || cfg.BusBackend == "redis" {
		rdb, err = openRedis(ctx, cfg.RedisURL)
		if err != nil {
			return fmt.Errorf("connecting to redis: %w", err)
		}
		defer rdb.Close()
		logger.Info("connected to redis")
	}

	// --- Snapshot store ---
	var snap snapshot.Snapshotter
	switch cfg.SnapshotBackend {
	case "sqlite":
		db, err := database.Open(ctx, cfg.DBPath)
		if err != nil {
			return fmt.Errorf("connecting to sqlite: %w", err)
		}
		defer db.Close()

		version, err := migrations.Up(ctx, db)
		if err != nil {
			return fmt.Errorf("running migrations: %w", err)
		}
		logger.Info("connected to sqlite", "path", cfg.DBPath, "schema_version", version)
		snap = snapshot.NewSQLite(db, cfg.SnapshotNamespace)
	case "redis":
		snap = snapshot.NewRedis(rdb, cfg.SnapshotNamespace)
	default:
		logger.Warn("room snapshots are kept in memory only")
		snap = snapshot.NewMemory()
	}

	// --- Broadcast bus ---
	var b bus.Bus
	if cfg.BusBackend == "redis" {
		b = bus.NewRedis(rdb, logger)
	} else {
		b = bus.NewBroker()
	}

	store := rooms.New(snap, b, logger,
		rooms.WithDebounce(cfg.CreateDebounce),
		rooms.WithTurnSeconds(cfg.TurnSeconds),
		rooms.WithRejectStale(cfg.RejectStaleSnapshots),
	)

	// --- HTTP Server ---
	routes := server.Routes(server.Deps{
		Logger:         logger,
		Rooms:          store,
		Bus:            b,
		StreamInterval: cfg.StreamInterval,
		BroadcastRPS:   rate.Limit(cfg.BroadcastRPS),
		BroadcastBurst: cfg.BroadcastBurst,
		SPADir:         cfg.SPADir,
	})
	srv := server.New(cfg.HTTPAddr, logger, func(r chi.Router) {
		r.Mount("/healthz", health.NewHandler(logger, map[string]health.Checker{
			"snapshot": store,
			"bus":      b,
		}).Routes())
		routes(r)
	})

	// --- Run ---
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("starting http server", "addr", cfg.HTTPAddr,
			"snapshot", cfg.SnapshotBackend, "bus", cfg.BusBackend)
		return srv.Run(gctx)
	})

	g.Go(func() error {
		return store.RunTicker(gctx, cfg.TickInterval)
	})

	g.Go(func() error {
		return store.RunSweeper(gctx, cfg.SweepInterval, cfg.RoomTTL)
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down http server")
		return srv.Shutdown(context.Background())
	})

	return g.Wait()
}

func openRedis(ctx context.Context, rawURL string) (*redis.Client, error) {
	opt, err := redis.ParseURL(rawURL)
	if err != nil {
		return nil, fmt.Errorf("parsing redis url: %w", err)
	}
	rdb := redis.NewClient(opt)
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("pinging redis: %w", err)
	}
	return rdb, nil
}
