package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/playperu/monikers/internal/bus"
	"github.com/playperu/monikers/internal/monikers"
	"github.com/playperu/monikers/internal/rooms"
)

// Push subscribes to the room channel and installs every snapshot it
// receives into the local store. A dropped or failed subscription is
// retried after a fixed delay.
type Push struct {
	sub    bus.Subscriber
	local  Reconciler
	logger *slog.Logger
	delay  time.Duration
}

func NewPush(sub bus.Subscriber, local Reconciler, logger *slog.Logger, delay time.Duration) *Push {
	if delay <= 0 {
		delay = DefaultReconnectDelay
	}
	return &Push{sub: sub, local: local, logger: logger, delay: delay}
}

func (p *Push) Observe(ctx context.Context, roomID string, cb Callbacks) error {
	roomID = monikers.NormalizeID(roomID)
	channel := monikers.ChannelName(roomID)
	log := p.logger.With("room_id", roomID, "channel", channel)

	for {
		cb.status(StatusConnecting)
		sub, err := p.sub.Subscribe(ctx, channel)
		if err != nil {
			if ctx.Err() != nil {
				cb.status(StatusDisconnected)
				return nil
			}
			log.Warn("subscribe failed", "error", err, "retry_in", p.delay)
			cb.status(StatusDisconnected)
			if !sleep(ctx, p.delay) {
				return nil
			}
			continue
		}

		cb.status(StatusConnected)
		deleted, err := p.consume(ctx, roomID, sub, cb, log)
		sub.Close()
		cb.status(StatusDisconnected)

		if deleted || ctx.Err() != nil {
			return nil
		}
		log.Warn("subscription dropped", "error", err, "retry_in", p.delay)
		if !sleep(ctx, p.delay) {
			return nil
		}
	}
}

// consume handles messages until the subscription ends. It reports true
// once the room has been deleted.
func (p *Push) consume(ctx context.Context, roomID string, sub *bus.Subscription, cb Callbacks, log *slog.Logger) (bool, error) {
	for {
		select {
		case <-ctx.Done():
			return false, ctx.Err()
		case <-sub.Done():
			return false, sub.Err()
		case msg := <-sub.Messages():
			if p.handle(ctx, roomID, msg, cb, log) {
				return true, nil
			}
		}
	}
}

func (p *Push) handle(ctx context.Context, roomID string, msg bus.Message, cb Callbacks, log *slog.Logger) bool {
	var ev monikers.RoomEvent
	if len(msg.Data) > 0 {
		if err := json.Unmarshal(msg.Data, &ev); err != nil {
			log.Warn("dropping malformed room event", "event", msg.Event, "error", err)
			return false
		}
	}
	if ev.RoomID != "" && monikers.NormalizeID(ev.RoomID) != roomID {
		return false
	}

	switch kind := monikers.EventKind(msg.Event); kind {
	case monikers.EventDeleted:
		if err := p.local.ApplyDeletion(ctx, roomID); err != nil {
			log.Warn("applying deletion", "error", err)
		}
		cb.deleted(roomID)
		return true

	case monikers.EventUpdated, monikers.EventState:
		if ev.Room == nil {
			log.Debug("room event without snapshot", "event", kind)
			return false
		}
		if err := p.local.ApplySnapshot(ctx, ev.Room); err != nil {
			if errors.Is(err, rooms.ErrStaleSnapshot) {
				log.Debug("ignoring stale snapshot", "updated_at", ev.Room.UpdatedAt)
				return false
			}
			log.Warn("applying snapshot", "error", err)
		}
		if kind == monikers.EventState {
			cb.state(ev.Room)
		} else {
			cb.update(ev.Room)
		}

	default:
		log.Debug("ignoring unknown event", "event", msg.Event)
	}
	return false
}
