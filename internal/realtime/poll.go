package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/playperu/monikers/internal/monikers"
	"github.com/playperu/monikers/internal/rooms"
)

// Poll re-reads the room on a fixed interval and turns differences in
// presence, gameState and updatedAt into callbacks.
type Poll struct {
	src      RoomSource
	local    Reconciler
	logger   *slog.Logger
	interval time.Duration
}

func NewPoll(src RoomSource, local Reconciler, logger *slog.Logger, interval time.Duration) *Poll {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	return &Poll{src: src, local: local, logger: logger, interval: interval}
}

func (p *Poll) Observe(ctx context.Context, roomID string, cb Callbacks) error {
	roomID = monikers.NormalizeID(roomID)
	log := p.logger.With("room_id", roomID)

	t := time.NewTicker(p.interval)
	defer t.Stop()

	var last *monikers.Room
	status := StatusConnecting
	cb.status(status)
	setStatus := func(s Status) {
		if s != status {
			status = s
			cb.status(s)
		}
	}

	for {
		r, err := p.src.GetRoom(ctx, roomID)
		switch {
		case ctx.Err() != nil:
			setStatus(StatusDisconnected)
			return nil

		case errors.Is(err, rooms.ErrNotFound):
			setStatus(StatusConnected)
			if p.local != nil {
				if err := p.local.ApplyDeletion(ctx, roomID); err != nil {
					log.Warn("applying deletion", "error", err)
				}
			}
			cb.deleted(roomID)
			setStatus(StatusDisconnected)
			return nil

		case err != nil:
			log.Warn("polling room", "error", err)
			setStatus(StatusDisconnected)

		default:
			setStatus(StatusConnected)
			if last == nil || r.UpdatedAt != last.UpdatedAt || r.GameState != last.GameState {
				if p.local != nil {
					if err := p.local.ApplySnapshot(ctx, r); err != nil && !errors.Is(err, rooms.ErrStaleSnapshot) {
						log.Warn("applying snapshot", "error", err)
					}
				}
				if last != nil && r.GameState != last.GameState {
					cb.state(r)
				} else {
					cb.update(r)
				}
				last = r
			}
		}

		select {
		case <-ctx.Done():
			setStatus(StatusDisconnected)
			return nil
		case <-t.C:
		}
	}
}

// HTTPSource reads rooms from a coordinator's GET /api/rooms/{roomID}.
type HTTPSource struct {
	baseURL string
	client  *http.Client
}

func NewHTTPSource(baseURL string, client *http.Client) *HTTPSource {
	if client == nil {
		client = &http.Client{Timeout: 5 * time.Second}
	}
	return &HTTPSource{baseURL: strings.TrimRight(baseURL, "/"), client: client}
}

func (s *HTTPSource) GetRoom(ctx context.Context, roomID string) (*monikers.Room, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+"/api/rooms/"+url.PathEscape(roomID), nil)
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching room: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNotFound:
		return nil, rooms.ErrRoomNotFound
	default:
		return nil, fmt.Errorf("fetching room: unexpected status %d", resp.StatusCode)
	}

	var r monikers.Room
	if err := json.NewDecoder(resp.Body).Decode(&r); err != nil {
		return nil, fmt.Errorf("decoding room: %w", err)
	}
	return &r, nil
}
