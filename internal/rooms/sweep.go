package rooms

import (
	"context"
	"time"
)

// Sweep deletes rooms that have not changed for longer than ttl and
// broadcasts room:deleted for each. It returns the number removed.
func (s *Store) Sweep(ctx context.Context, ttl time.Duration) (int, error) {
	n := 0
	err := s.write(ctx, func(tx *txn) error {
		cutoff := tx.now.Add(-ttl).UnixMilli()
		for id, r := range tx.rooms {
			if r.UpdatedAt < cutoff {
				tx.remove(id)
				n++
			}
		}
		return nil
	})
	return n, err
}

// RunTicker drives turn countdowns until ctx is cancelled.
func (s *Store) RunTicker(ctx context.Context, interval time.Duration) error {
	t := time.NewTicker(interval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-t.C:
			if _, err := s.TickAll(ctx); err != nil {
				s.logger.Error("ticking turns", "error", err)
			}
		}
	}
}

// RunSweeper removes idle rooms every interval until ctx is cancelled.
func (s *Store) RunSweeper(ctx context.Context, interval, ttl time.Duration) error {
	t := time.NewTicker(interval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-t.C:
			n, err := s.Sweep(ctx, ttl)
			if err != nil {
				s.logger.Error("sweeping rooms", "error", err)
				continue
			}
			if n > 0 {
				s.logger.Info("swept idle rooms", "count", n)
			}
		}
	}
}
