// Package bus carries room events between processes. A message is the
// same {channel, event, data} triple the POST /broadcast endpoint accepts.
package bus

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
)

// subscriberBuffer is how many undelivered messages a subscription holds
// before new ones are dropped.
const subscriberBuffer = 16

var (
	ErrInvalidMessage = errors.New("channel and event are required")
	ErrClosed         = errors.New("subscription closed")
)

type Message struct {
	Channel string          `json:"channel"`
	Event   string          `json:"event"`
	Data    json.RawMessage `json:"data,omitempty"`
}

func (m Message) Validate() error {
	if m.Channel == "" || m.Event == "" {
		return ErrInvalidMessage
	}
	return nil
}

type Publisher interface {
	Publish(ctx context.Context, msg Message) error
}

type Subscriber interface {
	Subscribe(ctx context.Context, channel string) (*Subscription, error)
}

// Bus is a backend that both publishes and subscribes, and can report
// whether it is reachable.
type Bus interface {
	Publisher
	Subscriber
	Check(ctx context.Context) error
}

// Subscription receives the messages of one channel until it is closed
// or the underlying transport drops. Messages is never closed; select on
// Done to learn that delivery has stopped.
type Subscription struct {
	msgs   chan Message
	done   chan struct{}
	once   sync.Once
	err    error
	cancel func()
}

func newSubscription(cancel func()) *Subscription {
	return &Subscription{
		msgs:   make(chan Message, subscriberBuffer),
		done:   make(chan struct{}),
		cancel: cancel,
	}
}

func (s *Subscription) Messages() <-chan Message { return s.msgs }

func (s *Subscription) Done() <-chan struct{} { return s.done }

// Err reports why the subscription ended. It is nil while the subscription
// is live and after a caller-initiated Close.
func (s *Subscription) Err() error {
	select {
	case <-s.done:
		if errors.Is(s.err, ErrClosed) {
			return nil
		}
		return s.err
	default:
		return nil
	}
}

// Close releases the subscription. It is safe to call more than once.
func (s *Subscription) Close() {
	s.finish(ErrClosed)
}

func (s *Subscription) finish(err error) {
	s.once.Do(func() {
		s.err = err
		close(s.done)
		if s.cancel != nil {
			s.cancel()
		}
	})
}

// deliver hands msg to the subscriber, dropping it if the buffer is full.
func (s *Subscription) deliver(msg Message) bool {
	select {
	case <-s.done:
		return false
	default:
	}
	select {
	case s.msgs <- msg:
		return true
	default:
		return false
	}
}
