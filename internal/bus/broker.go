package bus

import (
	"context"
	"sync"
)

// Broker is an in-process pub/sub keyed by channel name.
type Broker struct {
	mu   sync.RWMutex
	subs map[string]map[*Subscription]struct{}
}

func NewBroker() *Broker {
	return &Broker{
		subs: make(map[string]map[*Subscription]struct{}),
	}
}

// Subscribe registers a subscription on channel. The subscription is
// removed when it is closed or ctx is cancelled.
func (b *Broker) Subscribe(ctx context.Context, channel string) (*Subscription, error) {
	var sub *Subscription
	sub = newSubscription(func() { b.unsubscribe(channel, sub) })

	b.mu.Lock()
	if b.subs[channel] == nil {
		b.subs[channel] = make(map[*Subscription]struct{})
	}
	b.subs[channel][sub] = struct{}{}
	b.mu.Unlock()

	go func() {
		select {
		case <-ctx.Done():
			sub.Close()
		case <-sub.Done():
		}
	}()

	return sub, nil
}

func (b *Broker) unsubscribe(channel string, sub *Subscription) {
	b.mu.Lock()
	delete(b.subs[channel], sub)
	if len(b.subs[channel]) == 0 {
		delete(b.subs, channel)
	}
	b.mu.Unlock()
}

// Publish sends msg to every subscriber of msg.Channel.
func (b *Broker) Publish(_ context.Context, msg Message) error {
	if err := msg.Validate(); err != nil {
		return err
	}
	b.mu.RLock()
	for sub := range b.subs[msg.Channel] {
		// Drop if subscriber is slow.
		sub.deliver(msg)
	}
	b.mu.RUnlock()
	return nil
}

// Subscribers returns the number of live subscriptions on channel.
func (b *Broker) Subscribers(channel string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs[channel])
}

func (b *Broker) Check(_ context.Context) error { return nil }
