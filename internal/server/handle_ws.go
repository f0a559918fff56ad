package server

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/playperu/monikers/internal/bus"
)

// handleWS streams every bus message on ?channel= to a WebSocket client.
// Anything the client sends is discarded.
func handleWS(logger *slog.Logger, sub bus.Subscriber) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		channel := r.URL.Query().Get("channel")
		if channel == "" {
			writeError(w, http.StatusBadRequest, "channel query parameter required")
			return
		}

		// Subscribe before the upgrade so nothing published after the
		// handshake is missed.
		ctx, cancel := context.WithCancel(r.Context())
		defer cancel()
		s, err := sub.Subscribe(ctx, channel)
		if err != nil {
			logger.Error("bus subscribe failed", "channel", channel, "error", err)
			writeError(w, http.StatusServiceUnavailable, "subscribe failed")
			return
		}
		defer s.Close()

		conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
			InsecureSkipVerify: true,
		})
		if err != nil {
			logger.Error("websocket accept failed", "error", err)
			return
		}
		defer conn.CloseNow()

		ctx = conn.CloseRead(ctx)

		ping := time.NewTicker(30 * time.Second)
		defer ping.Stop()

		for {
			select {
			case <-ctx.Done():
				conn.Close(websocket.StatusNormalClosure, "")
				return
			case <-s.Done():
				logger.Warn("bus subscription ended", "channel", channel, "error", s.Err())
				conn.Close(websocket.StatusTryAgainLater, "subscription ended")
				return
			case msg := <-s.Messages():
				wctx, wcancel := context.WithTimeout(ctx, 5*time.Second)
				err := wsjson.Write(wctx, conn, msg)
				wcancel()
				if err != nil {
					logger.Debug("websocket write failed", "error", err)
					return
				}
			case <-ping.C:
				if err := conn.Ping(ctx); err != nil {
					logger.Debug("websocket ping failed", "error", err)
					return
				}
			}
		}
	}
}
