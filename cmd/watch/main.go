// Command watch mirrors one room from a coordinator into a local libSQL
// snapshot and logs every change it sees.
package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/playperu/monikers/internal/bus"
	"github.com/playperu/monikers/internal/config"
	"github.com/playperu/monikers/internal/database"
	"github.com/playperu/monikers/internal/migrations"
	"github.com/playperu/monikers/internal/monikers"
	"github.com/playperu/monikers/internal/realtime"
	"github.com/playperu/monikers/internal/rooms"
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
	cfg, err := config.LoadWatch()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logger := slog.New(slog.NewJSONHandler(stdout, &slog.HandlerOptions{
		Level: cfg.LogLevel,
	}))

	db, err := database.Open(ctx, cfg.DBPath)
	if err != nil {
		return fmt.Errorf("connecting to sqlite: %w", err)
	}
	defer db.Close()

	if _, err := migrations.Up(ctx, db); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}

	// The local store never publishes: it only absorbs what it is sent.
	local := rooms.New(snapshot.NewSQLite(db, ""), nil, logger)

	obs, err := realtime.New(realtime.Config{
		Kind:           realtime.Kind(cfg.Observer),
		Logger:         logger,
		Subscriber:     bus.NewWSSubscriber(cfg.ServerURL),
		ReconnectDelay: cfg.ReconnectDelay,
		Source:         realtime.NewHTTPSource(cfg.ServerURL, nil),
		PollInterval:   cfg.PollInterval,
		Local:          local,
	})
	if err != nil {
		return fmt.Errorf("building observer: %w", err)
	}

	log := logger.With("room_id", monikers.NormalizeID(cfg.RoomID))
	log.Info("watching room", "server", cfg.ServerURL, "observer", cfg.Observer, "db", cfg.DBPath)

	return obs.Observe(ctx, cfg.RoomID, realtime.Callbacks{
		OnStatus: func(s realtime.Status) {
			log.Info("connection status", "status", s)
		},
		OnUpdate: func(r *monikers.Room) {
			log.Info("room updated",
				"players", len(r.Players),
				"game_state", r.GameState,
				"updated_at", r.UpdatedAt,
			)
		},
		OnState: func(r *monikers.Room) {
			log.Info("game state changed",
				"game_state", r.GameState,
				"round", r.CurrentRound,
				"round_name", monikers.RoundName(r.CurrentRound),
				"team1", monikers.TotalTeamScore(r, monikers.Team1),
				"team2", monikers.TotalTeamScore(r, monikers.Team2),
			)
		},
		OnDeleted: func(id string) {
			log.Info("room deleted", "room", id)
		},
	})
}
