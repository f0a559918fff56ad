package server

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/playperu/monikers/internal/monikers"
	"github.com/playperu/monikers/internal/rooms"
)

type CardsRequest struct {
	Cards []monikers.Card `json:"cards"`
}

// turnAction is a turn step performed by the player whose turn it is.
type turnAction func(ctx context.Context, id, playerID string) (*monikers.Room, error)

func handleStartCardSelection(logger *slog.Logger, store *rooms.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req PlayerRequest
		if err := readJSON(r, &req); err != nil || req.PlayerID == "" {
			writeError(w, http.StatusBadRequest, "playerId is required")
			return
		}
		room, err := store.StartCardSelection(r.Context(), chi.URLParam(r, "roomID"), req.PlayerID)
		if err != nil {
			writeStoreError(w, logger, err)
			return
		}
		writeJSON(w, http.StatusOK, room)
	}
}

func handleOfferCards(logger *slog.Logger, store *rooms.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		offer, err := store.OfferCards(r.Context(), chi.URLParam(r, "roomID"), chi.URLParam(r, "playerID"))
		if err != nil {
			writeStoreError(w, logger, err)
			return
		}
		writeJSON(w, http.StatusOK, offer)
	}
}

// handleDraftCards stores a draft selection and withdraws any earlier
// confirmation. Only the confirm route can complete card selection.
func handleDraftCards(logger *slog.Logger, store *rooms.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req CardsRequest
		if err := readJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		id := chi.URLParam(r, "roomID")

		if err := store.UpdatePlayerCards(r.Context(), id, chi.URLParam(r, "playerID"), req.Cards); err != nil {
			writeStoreError(w, logger, err)
			return
		}
		room, err := store.GetRoom(r.Context(), id)
		if err != nil {
			writeStoreError(w, logger, err)
			return
		}
		writeJSON(w, http.StatusOK, room)
	}
}

func handleConfirmCards(logger *slog.Logger, store *rooms.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req CardsRequest
		if err := readJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		room, err := store.ConfirmSelection(r.Context(), chi.URLParam(r, "roomID"), chi.URLParam(r, "playerID"), req.Cards)
		if err != nil {
			writeStoreError(w, logger, err)
			return
		}
		writeJSON(w, http.StatusOK, room)
	}
}

func handleStartRound(logger *slog.Logger, store *rooms.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		room, err := store.StartRound(r.Context(), chi.URLParam(r, "roomID"))
		if err != nil {
			writeStoreError(w, logger, err)
			return
		}
		writeJSON(w, http.StatusOK, room)
	}
}

func handleTurn(logger *slog.Logger, action turnAction) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req PlayerRequest
		if err := readJSON(r, &req); err != nil || req.PlayerID == "" {
			writeError(w, http.StatusBadRequest, "playerId is required")
			return
		}
		room, err := action(r.Context(), chi.URLParam(r, "roomID"), req.PlayerID)
		if err != nil {
			writeStoreError(w, logger, err)
			return
		}
		writeJSON(w, http.StatusOK, room)
	}
}

func handleScores(logger *slog.Logger, store *rooms.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sb, err := store.Scoreboard(r.Context(), chi.URLParam(r, "roomID"))
		if err != nil {
			writeStoreError(w, logger, err)
			return
		}
		writeJSON(w, http.StatusOK, sb)
	}
}
