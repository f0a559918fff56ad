// Package rooms is the authoritative room store. Every operation reloads
// the persisted snapshot, applies one mutation, saves it back and then
// broadcasts the new room on the room's channel.
package rooms

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/playperu/monikers/internal/bus"
	"github.com/playperu/monikers/internal/catalog"
	"github.com/playperu/monikers/internal/monikers"
	"github.com/playperu/monikers/internal/snapshot"
)

const (
	DefaultDebounce       = 300 * time.Millisecond
	defaultPublishTimeout = 3 * time.Second
)

type Store struct {
	mu     sync.Mutex
	snap   snapshot.Snapshotter
	pub    bus.Publisher
	logger *slog.Logger

	now            func() time.Time
	debounce       time.Duration
	turnSeconds    int
	rejectStale    bool
	catalog        *catalog.Catalog
	publishTimeout time.Duration

	lastCreate struct {
		at       time.Time
		hostName string
		roomID   string
	}
}

type Option func(*Store)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// WithDebounce sets the window in which repeated CreateRoom calls by the
// same host return the room created first. Zero disables it.
func WithDebounce(d time.Duration) Option {
	return func(s *Store) { s.debounce = d }
}

func WithTurnSeconds(n int) Option {
	return func(s *Store) {
		if n > 0 {
			s.turnSeconds = n
		}
	}
}

// WithRejectStale makes ApplySnapshot ignore snapshots whose updatedAt is
// older than the stored room.
func WithRejectStale(reject bool) Option {
	return func(s *Store) { s.rejectStale = reject }
}

func WithCatalog(c *catalog.Catalog) Option {
	return func(s *Store) { s.catalog = c }
}

// New builds a store over snap. pub may be nil, in which case nothing is
// broadcast.
func New(snap snapshot.Snapshotter, pub bus.Publisher, logger *slog.Logger, opts ...Option) *Store {
	s := &Store{
		snap:           snap,
		pub:            pub,
		logger:         logger,
		now:            time.Now,
		debounce:       DefaultDebounce,
		turnSeconds:    monikers.DefaultTurnSeconds,
		publishTimeout: defaultPublishTimeout,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.catalog == nil {
		s.catalog = catalog.Default()
	}
	return s
}

// TurnSeconds is the full length of a player's turn.
func (s *Store) TurnSeconds() int { return s.turnSeconds }

func (s *Store) Catalog() *catalog.Catalog { return s.catalog }

// Check reports whether the snapshot backend is reachable.
func (s *Store) Check(ctx context.Context) error { return s.snap.Check(ctx) }

type event struct {
	kind monikers.EventKind
	id   string
}

// txn is one load-mutate-save cycle over the whole room map.
type txn struct {
	rooms  map[string]*monikers.Room
	now    time.Time
	dirty  bool
	events []event
}

func (tx *txn) room(id string) (*monikers.Room, error) {
	r, ok := tx.rooms[monikers.NormalizeID(id)]
	if !ok {
		return nil, ErrRoomNotFound
	}
	return r, nil
}

// changed bumps updatedAt and queues a broadcast. A gameState change is
// announced as room:state.
func (tx *txn) changed(r *monikers.Room, before monikers.GameState) {
	r.Touch(tx.now)
	kind := monikers.EventUpdated
	if r.GameState != before {
		kind = monikers.EventState
	}
	tx.dirty = true
	tx.events = append(tx.events, event{kind: kind, id: monikers.NormalizeID(r.ID)})
}

func (tx *txn) remove(id string) {
	key := monikers.NormalizeID(id)
	delete(tx.rooms, key)
	tx.dirty = true
	tx.events = append(tx.events, event{kind: monikers.EventDeleted, id: key})
}

func (s *Store) load(ctx context.Context) (map[string]*monikers.Room, error) {
	rooms, err := s.snap.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading snapshot: %w", err)
	}
	return rooms, nil
}

// read runs fn against a freshly loaded room map. Nothing is saved.
func (s *Store) read(ctx context.Context, fn func(rooms map[string]*monikers.Room) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rooms, err := s.load(ctx)
	if err != nil {
		return err
	}
	return fn(rooms)
}

// write runs fn inside a transaction. When fn fails nothing is saved or
// broadcast.
func (s *Store) write(ctx context.Context, fn func(tx *txn) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rooms, err := s.load(ctx)
	if err != nil {
		return err
	}
	tx := &txn{rooms: rooms, now: s.now()}
	if err := fn(tx); err != nil {
		return err
	}
	if !tx.dirty {
		return nil
	}
	if err := s.snap.Save(ctx, tx.rooms); err != nil {
		return fmt.Errorf("saving snapshot: %w", err)
	}
	for _, ev := range tx.events {
		s.publish(ctx, ev.kind, ev.id, tx.rooms[ev.id])
	}
	return nil
}

// update applies fn to one room and returns a copy of the result.
func (s *Store) update(ctx context.Context, id string, fn func(r *monikers.Room) error) (*monikers.Room, error) {
	var out *monikers.Room
	err := s.write(ctx, func(tx *txn) error {
		r, err := tx.room(id)
		if err != nil {
			return err
		}
		before := r.GameState
		if err := fn(r); err != nil {
			return err
		}
		tx.changed(r, before)
		out = r.Clone()
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// publish is fire-and-forget: failures are logged and the local change
// stands.
func (s *Store) publish(ctx context.Context, kind monikers.EventKind, roomID string, room *monikers.Room) {
	if s.pub == nil {
		return
	}
	if kind == monikers.EventDeleted {
		room = nil
	}
	data, err := json.Marshal(monikers.RoomEvent{RoomID: roomID, Room: room})
	if err != nil {
		s.logger.Error("encoding room event", "room_id", roomID, "error", err)
		return
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.publishTimeout)
	defer cancel()

	msg := bus.Message{
		Channel: monikers.ChannelName(roomID),
		Event:   string(kind),
		Data:    data,
	}
	if err := s.pub.Publish(ctx, msg); err != nil {
		s.logger.Warn("broadcast failed", "room_id", roomID, "event", kind, "error", err)
		return
	}
	s.logger.Debug("broadcast sent", "room_id", roomID, "event", kind)
}
