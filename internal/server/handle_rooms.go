package server

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/playperu/monikers/internal/monikers"
	"github.com/playperu/monikers/internal/rooms"
)

type CreateRoomRequest struct {
	HostName string              `json:"hostName"`
	Device   monikers.DeviceKind `json:"deviceType,omitempty"`
	Settings *monikers.Settings  `json:"settings,omitempty"`
}

type JoinRoomRequest struct {
	Name   string              `json:"name"`
	Device monikers.DeviceKind `json:"deviceType,omitempty"`
}

type JoinRoomResponse struct {
	Player *monikers.Player `json:"player"`
	Room   *monikers.Room   `json:"room"`
}

type PlayerRequest struct {
	PlayerID string `json:"playerId"`
}

type AssignTeamRequest struct {
	PlayerID string        `json:"playerId"`
	Team     monikers.Team `json:"team"`
}

type TeamsResponse struct {
	Available []monikers.Team `json:"available"`
}

type OKResponse struct {
	OK bool `json:"ok"`
}

func handleCreateRoom(logger *slog.Logger, store *rooms.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req CreateRoomRequest
		if err := readJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		req.HostName = strings.TrimSpace(req.HostName)
		if req.HostName == "" {
			writeError(w, http.StatusBadRequest, "hostName is required")
			return
		}
		var settings monikers.Settings
		if req.Settings != nil {
			settings = *req.Settings
		}

		room, err := store.CreateRoom(r.Context(), req.HostName, req.Device, settings)
		if err != nil {
			writeStoreError(w, logger, err)
			return
		}
		writeJSON(w, http.StatusCreated, room)
	}
}

func handleListRooms(logger *slog.Logger, store *rooms.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		all, err := store.GetAllRooms(r.Context())
		if err != nil {
			writeStoreError(w, logger, err)
			return
		}
		writeJSON(w, http.StatusOK, all)
	}
}

func handleGetRoom(logger *slog.Logger, store *rooms.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		room, err := store.GetRoom(r.Context(), chi.URLParam(r, "roomID"))
		if err != nil {
			writeStoreError(w, logger, err)
			return
		}
		writeJSON(w, http.StatusOK, room)
	}
}

func handleDeleteRoom(logger *slog.Logger, store *rooms.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := store.DeleteRoom(r.Context(), chi.URLParam(r, "roomID")); err != nil {
			writeStoreError(w, logger, err)
			return
		}
		writeJSON(w, http.StatusOK, OKResponse{OK: true})
	}
}

func handleJoinRoom(logger *slog.Logger, store *rooms.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req JoinRoomRequest
		if err := readJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		id := chi.URLParam(r, "roomID")

		player, err := store.JoinRoom(r.Context(), id, req.Name, req.Device)
		if err != nil {
			writeStoreError(w, logger, err)
			return
		}
		room, err := store.GetRoom(r.Context(), id)
		if err != nil {
			writeStoreError(w, logger, err)
			return
		}
		writeJSON(w, http.StatusCreated, JoinRoomResponse{Player: player, Room: room})
	}
}

func handleLeaveRoom(logger *slog.Logger, store *rooms.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req PlayerRequest
		if err := readJSON(r, &req); err != nil || req.PlayerID == "" {
			writeError(w, http.StatusBadRequest, "playerId is required")
			return
		}
		if err := store.LeaveRoom(r.Context(), chi.URLParam(r, "roomID"), req.PlayerID); err != nil {
			writeStoreError(w, logger, err)
			return
		}
		writeJSON(w, http.StatusOK, OKResponse{OK: true})
	}
}

func handleAssignTeam(logger *slog.Logger, store *rooms.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req AssignTeamRequest
		if err := readJSON(r, &req); err != nil || req.PlayerID == "" {
			writeError(w, http.StatusBadRequest, "playerId and team are required")
			return
		}
		id := chi.URLParam(r, "roomID")

		if err := store.AssignTeamToPlayer(r.Context(), id, req.PlayerID, req.Team); err != nil {
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

func handleAvailableTeams(logger *slog.Logger, store *rooms.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		teams, err := store.AvailableTeams(r.Context(), chi.URLParam(r, "roomID"))
		if err != nil {
			writeStoreError(w, logger, err)
			return
		}
		if teams == nil {
			teams = []monikers.Team{}
		}
		writeJSON(w, http.StatusOK, TeamsResponse{Available: teams})
	}
}

func handleUpdateSettings(logger *slog.Logger, store *rooms.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var patch rooms.SettingsPatch
		if err := readJSON(r, &patch); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		room, err := store.UpdateSettings(r.Context(), chi.URLParam(r, "roomID"), patch)
		if err != nil {
			writeStoreError(w, logger, err)
			return
		}
		writeJSON(w, http.StatusOK, room)
	}
}

func handleSelectedCards(logger *slog.Logger, store *rooms.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		cards, err := store.AllSelectedCards(r.Context(), chi.URLParam(r, "roomID"))
		if err != nil {
			writeStoreError(w, logger, err)
			return
		}
		if cards == nil {
			cards = []monikers.Card{}
		}
		writeJSON(w, http.StatusOK, cards)
	}
}
