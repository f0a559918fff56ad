package bus

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"
)

// Redis fans messages out through Redis PUBLISH/SUBSCRIBE so that several
// coordinator processes see each other's events.
type Redis struct {
	client *redis.Client
	logger *slog.Logger
}

func NewRedis(client *redis.Client, logger *slog.Logger) *Redis {
	return &Redis{client: client, logger: logger}
}

func (r *Redis) Publish(ctx context.Context, msg Message) error {
	if err := msg.Validate(); err != nil {
		return err
	}
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("encoding message: %w", err)
	}
	if err := r.client.Publish(ctx, msg.Channel, data).Err(); err != nil {
		return fmt.Errorf("publishing to %s: %w", msg.Channel, err)
	}
	return nil
}

// Subscribe blocks until Redis confirms the subscription.
func (r *Redis) Subscribe(ctx context.Context, channel string) (*Subscription, error) {
	ps := r.client.Subscribe(ctx, channel)
	if _, err := ps.Receive(ctx); err != nil {
		ps.Close()
		return nil, fmt.Errorf("subscribing to %s: %w", channel, err)
	}

	sub := newSubscription(func() { ps.Close() })
	go func() {
		ch := ps.Channel()
		for {
			select {
			case <-ctx.Done():
				sub.Close()
				return
			case <-sub.Done():
				return
			case m, ok := <-ch:
				if !ok {
					sub.finish(ErrClosed)
					return
				}
				var msg Message
				if err := json.Unmarshal([]byte(m.Payload), &msg); err != nil {
					r.logger.Warn("dropping malformed bus message", "channel", m.Channel, "error", err)
					continue
				}
				sub.deliver(msg)
			}
		}
	}()
	return sub, nil
}

func (r *Redis) Check(ctx context.Context) error { return r.client.Ping(ctx).Err() }
