package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/playperu/monikers/internal/monikers"
	"github.com/playperu/monikers/internal/rooms"
)

type roomGetter interface {
	GetRoom(ctx context.Context, id string) (*monikers.Room, error)
}

// StreamEvent is one SSE data frame of the room stream.
type StreamEvent struct {
	Type string         `json:"type"`
	Data *monikers.Room `json:"data,omitempty"`
}

const (
	streamRoomState   = "room-state"
	streamRoomUpdate  = "room-update"
	streamRoomDeleted = "room-deleted"
)

// handleEvents re-reads the room every interval and streams it as SSE
// until the room is gone or the client disconnects.
func handleEvents(logger *slog.Logger, store roomGetter, interval time.Duration) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "roomID")

		room, err := store.GetRoom(r.Context(), id)
		if err != nil {
			writeStoreError(w, logger, err)
			return
		}

		flusher, ok := w.(http.Flusher)
		if !ok {
			writeError(w, http.StatusInternalServerError, "streaming not supported")
			return
		}

		w.Header().Set("Content-Type", "text/event-stream")
		w.Header().Set("Cache-Control", "no-cache")
		w.Header().Set("Connection", "keep-alive")
		w.Header().Set("X-Accel-Buffering", "no")

		send := func(ev StreamEvent) {
			data, _ := json.Marshal(ev)
			fmt.Fprintf(w, "data: %s\n\n", data)
			flusher.Flush()
		}

		send(StreamEvent{Type: streamRoomState, Data: room})

		tick := time.NewTicker(interval)
		defer tick.Stop()
		ping := time.NewTicker(30 * time.Second)
		defer ping.Stop()

		for {
			select {
			case <-r.Context().Done():
				return
			case <-tick.C:
				room, err := store.GetRoom(r.Context(), id)
				if errors.Is(err, rooms.ErrNotFound) {
					send(StreamEvent{Type: streamRoomDeleted})
					return
				}
				if err != nil {
					if r.Context().Err() == nil {
						logger.Warn("room stream read failed", "room_id", id, "error", err)
					}
					continue
				}
				send(StreamEvent{Type: streamRoomUpdate, Data: room})
			case <-ping.C:
				fmt.Fprintf(w, ": ping\n\n")
				flusher.Flush()
			}
		}
	}
}
