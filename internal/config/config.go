package config

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/caarlos0/env/v11"
)

type Config struct {
	HTTPAddr string     `env:"HTTP_ADDR" envDefault:":8080"`
	LogLevel slog.Level `env:"LOG_LEVEL" envDefault:"INFO"`
	SPADir   string     `env:"SPA_DIR" envDefault:""`

	// SnapshotBackend is one of sqlite, redis or memory.
	SnapshotBackend   string `env:"SNAPSHOT_BACKEND" envDefault:"sqlite"`
	SnapshotNamespace string `env:"SNAPSHOT_NAMESPACE" envDefault:"monikers_rooms"`
	DBPath            string `env:"DB_PATH" envDefault:"data/monikers.db"`
	RedisURL          string `env:"REDIS_URL" envDefault:"redis://localhost:6379/0"`
	// BusBackend is one of memory or redis.
	BusBackend string `env:"BUS_BACKEND" envDefault:"memory"`

	CreateDebounce       time.Duration `env:"CREATE_DEBOUNCE" envDefault:"300ms"`
	TurnSeconds          int           `env:"TURN_SECONDS" envDefault:"60"`
	TickInterval         time.Duration `env:"TICK_INTERVAL" envDefault:"1s"`
	StreamInterval       time.Duration `env:"STREAM_INTERVAL" envDefault:"1s"`
	SweepInterval        time.Duration `env:"SWEEP_INTERVAL" envDefault:"10m"`
	RoomTTL              time.Duration `env:"ROOM_TTL" envDefault:"6h"`
	RejectStaleSnapshots bool          `env:"REJECT_STALE_SNAPSHOTS" envDefault:"false"`

	BroadcastRPS   float64 `env:"BROADCAST_RPS" envDefault:"20"`
	BroadcastBurst int     `env:"BROADCAST_BURST" envDefault:"40"`
}

func Load() (*Config, error) {
	cfg, err := env.ParseAs[Config]()
	if err != nil {
		return nil, fmt.Errorf("parsing environment: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c Config) validate() error {
	switch c.SnapshotBackend {
	case "sqlite", "redis", "memory":
	default:
		return fmt.Errorf("SNAPSHOT_BACKEND: unknown backend %q", c.SnapshotBackend)
	}
	switch c.BusBackend {
	case "memory", "redis":
	default:
		return fmt.Errorf("BUS_BACKEND: unknown backend %q", c.BusBackend)
	}
	if c.TurnSeconds <= 0 {
		return fmt.Errorf("TURN_SECONDS must be positive")
	}
	if c.TickInterval <= 0 || c.StreamInterval <= 0 || c.SweepInterval <= 0 {
		return fmt.Errorf("intervals must be positive")
	}
	if c.BroadcastRPS <= 0 || c.BroadcastBurst <= 0 {
		return fmt.Errorf("BROADCAST_RPS and BROADCAST_BURST must be positive")
	}
	return nil
}

// WatchConfig configures the headless watch client.
type WatchConfig struct {
	ServerURL      string        `env:"SERVER_URL" envDefault:"http://localhost:8080"`
	RoomID         string        `env:"ROOM_ID,required,notEmpty"`
	DBPath         string        `env:"DB_PATH" envDefault:"data/watch.db"`
	Observer       string        `env:"OBSERVER" envDefault:"push"`
	ReconnectDelay time.Duration `env:"RECONNECT_DELAY" envDefault:"2s"`
	PollInterval   time.Duration `env:"POLL_INTERVAL" envDefault:"1s"`
	LogLevel       slog.Level    `env:"LOG_LEVEL" envDefault:"INFO"`
}

func LoadWatch() (*WatchConfig, error) {
	cfg, err := env.ParseAs[WatchConfig]()
	if err != nil {
		return nil, fmt.Errorf("parsing environment: %w", err)
	}
	switch cfg.Observer {
	case "push", "poll":
	default:
		return nil, fmt.Errorf("OBSERVER: unknown observer %q", cfg.Observer)
	}
	return &cfg, nil
}
