// Package realtime keeps a local room store in step with a room's
// broadcasts. Observers either subscribe to the room channel or poll a
// room source, and report what they see through Callbacks.
package realtime

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/playperu/monikers/internal/bus"
	"github.com/playperu/monikers/internal/monikers"
)

const (
	DefaultReconnectDelay = 2 * time.Second
	DefaultPollInterval   = time.Second
)

type Status string

const (
	StatusConnecting   Status = "connecting"
	StatusConnected    Status = "connected"
	StatusDisconnected Status = "disconnected"
)

// Callbacks receive room changes. Any of them may be nil.
type Callbacks struct {
	OnUpdate  func(room *monikers.Room)
	OnDeleted func(roomID string)
	OnState   func(room *monikers.Room)
	OnStatus  func(status Status)
}

func (c Callbacks) update(r *monikers.Room) {
	if c.OnUpdate != nil {
		c.OnUpdate(r)
	}
}

func (c Callbacks) deleted(id string) {
	if c.OnDeleted != nil {
		c.OnDeleted(id)
	}
}

func (c Callbacks) state(r *monikers.Room) {
	if c.OnState != nil {
		c.OnState(r)
	}
}

func (c Callbacks) status(s Status) {
	if c.OnStatus != nil {
		c.OnStatus(s)
	}
}

// Observer watches one room. Observe blocks until ctx is cancelled or the
// room is deleted, and returns nil in both cases.
type Observer interface {
	Observe(ctx context.Context, roomID string, cb Callbacks) error
}

// Reconciler absorbs snapshots received from elsewhere. *rooms.Store
// implements it.
type Reconciler interface {
	ApplySnapshot(ctx context.Context, room *monikers.Room) error
	ApplyDeletion(ctx context.Context, roomID string) error
}

// RoomSource returns the current room, or an error matching
// rooms.ErrNotFound once it is gone.
type RoomSource interface {
	GetRoom(ctx context.Context, roomID string) (*monikers.Room, error)
}

type Kind string

const (
	KindPush Kind = "push"
	KindPoll Kind = "poll"
)

type Config struct {
	Kind   Kind
	Logger *slog.Logger

	// Push.
	Subscriber     bus.Subscriber
	ReconnectDelay time.Duration

	// Poll.
	Source       RoomSource
	PollInterval time.Duration

	// Local receives every snapshot either observer sees. May be nil for
	// Poll when Source is the local store itself.
	Local Reconciler
}

// New selects an observer by kind.
func New(cfg Config) (Observer, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	switch cfg.Kind {
	case KindPush, "":
		if cfg.Subscriber == nil || cfg.Local == nil {
			return nil, fmt.Errorf("push observer needs a subscriber and a local store")
		}
		return NewPush(cfg.Subscriber, cfg.Local, logger, cfg.ReconnectDelay), nil
	case KindPoll:
		if cfg.Source == nil {
			return nil, fmt.Errorf("poll observer needs a room source")
		}
		return NewPoll(cfg.Source, cfg.Local, logger, cfg.PollInterval), nil
	}
	return nil, fmt.Errorf("unknown observer kind %q", cfg.Kind)
}

// sleep waits for d or until ctx is done, reporting whether the full wait
// elapsed.
func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
