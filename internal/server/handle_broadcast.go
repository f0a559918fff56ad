package server

import (
	"log/slog"
	"net/http"
	"sync"

	"golang.org/x/time/rate"

	"github.com/playperu/monikers/internal/bus"
)

// channelLimiter keeps one token bucket per channel.
type channelLimiter struct {
	mu       sync.Mutex
	limit    rate.Limit
	burst    int
	limiters map[string]*rate.Limiter
}

func newChannelLimiter(limit rate.Limit, burst int) *channelLimiter {
	if limit <= 0 {
		limit = rate.Inf
	}
	if burst <= 0 {
		burst = 1
	}
	return &channelLimiter{limit: limit, burst: burst, limiters: make(map[string]*rate.Limiter)}
}

func (c *channelLimiter) Allow(channel string) bool {
	c.mu.Lock()
	l, ok := c.limiters[channel]
	if !ok {
		l = rate.NewLimiter(c.limit, c.burst)
		c.limiters[channel] = l
	}
	c.mu.Unlock()
	return l.Allow()
}

// handleBroadcast relays {channel, event, data} onto the bus.
func handleBroadcast(logger *slog.Logger, pub bus.Publisher, limits *channelLimiter) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var msg bus.Message
		if err := readJSON(r, &msg); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		if err := msg.Validate(); err != nil {
			writeError(w, http.StatusBadRequest, "Missing channel or event")
			return
		}
		if !limits.Allow(msg.Channel) {
			writeError(w, http.StatusTooManyRequests, "too many broadcasts")
			return
		}

		if err := pub.Publish(r.Context(), msg); err != nil {
			logger.Error("broadcast failed", "channel", msg.Channel, "event", msg.Event, "error", err)
			writeError(w, http.StatusInternalServerError, "Failed to broadcast")
			return
		}
		writeJSON(w, http.StatusOK, OKResponse{OK: true})
	}
}
