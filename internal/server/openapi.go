package server

import (
	"encoding/json"
	"net/http"
	"strings"

	openapi "github.com/swaggest/openapi-go"
	"github.com/swaggest/openapi-go/openapi3"

	"github.com/playperu/monikers/internal/bus"
	"github.com/playperu/monikers/internal/catalog"
	"github.com/playperu/monikers/internal/monikers"
	"github.com/playperu/monikers/internal/rooms"
)

// ErrorResponse is returned for all error responses.
type ErrorResponse struct {
	Error string `json:"error"`
}

// HealthResponse documents /healthz: one entry per checked dependency.
type HealthResponse map[string]struct {
	Status string `json:"status"`
}

type roomPath struct {
	RoomID string `path:"roomID"`
}

type playerPath struct {
	RoomID   string `path:"roomID"`
	PlayerID string `path:"playerID"`
}

type channelQuery struct {
	Channel string `query:"channel" required:"true"`
}

type roomOp struct {
	method, path, summary, description string
	req                                any
	resp                               any
	status                             int
	errors                             []int
}

func newOpenAPISpec() *openapi3.Spec {
	r := openapi3.NewReflector()
	r.Spec.Info.Title = "Monikers API"
	r.Spec.Info.Version = "0.1.0"
	r.Spec.Info.WithDescription("Room coordination and realtime sync for the Monikers party game.")

	// GET /healthz
	getHealthz, _ := r.NewOperationContext(http.MethodGet, "/healthz")
	getHealthz.SetSummary("Health check")
	getHealthz.SetDescription("Returns the health status of the snapshot store and the broadcast bus.")
	getHealthz.AddRespStructure(HealthResponse{}, openapi.WithHTTPStatus(http.StatusOK))
	getHealthz.AddRespStructure(HealthResponse{}, openapi.WithHTTPStatus(http.StatusServiceUnavailable))
	_ = r.AddOperation(getHealthz)

	// POST /broadcast
	postBroadcast, _ := r.NewOperationContext(http.MethodPost, "/broadcast")
	postBroadcast.SetSummary("Broadcast an event")
	postBroadcast.SetDescription("Publishes {channel, event, data} to every subscriber of the channel.")
	postBroadcast.AddReqStructure(bus.Message{})
	postBroadcast.AddRespStructure(OKResponse{}, openapi.WithHTTPStatus(http.StatusOK))
	postBroadcast.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusBadRequest))
	postBroadcast.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusTooManyRequests))
	postBroadcast.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusInternalServerError))
	_ = r.AddOperation(postBroadcast)

	// GET /ws
	getWS, _ := r.NewOperationContext(http.MethodGet, "/ws")
	getWS.SetSummary("Channel WebSocket")
	getWS.SetDescription("Upgrades to a WebSocket that pushes every message broadcast on ?channel=.")
	getWS.AddReqStructure(channelQuery{})
	getWS.AddRespStructure(nil, openapi.WithHTTPStatus(http.StatusSwitchingProtocols),
		openapi.WithContentType("text/plain"))
	getWS.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusBadRequest))
	_ = r.AddOperation(getWS)

	// GET /rooms/{roomID}/events
	getEvents, _ := r.NewOperationContext(http.MethodGet, "/rooms/{roomID}/events")
	getEvents.SetSummary("Room snapshot stream")
	getEvents.SetDescription("Server-Sent Events: room-state first, room-update on every re-read, room-deleted before close.")
	getEvents.AddReqStructure(roomPath{})
	getEvents.AddRespStructure(nil, openapi.WithHTTPStatus(http.StatusOK),
		openapi.WithContentType("text/event-stream"))
	getEvents.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusNotFound))
	_ = r.AddOperation(getEvents)

	ops := []roomOp{
		{http.MethodGet, "/api/rooms", "List rooms", "Returns every room, oldest first.",
			nil, []monikers.Room{}, http.StatusOK, nil},
		{http.MethodPost, "/api/rooms", "Create room", "Creates a room hosted by hostName. Missing settings use the defaults.",
			CreateRoomRequest{}, monikers.Room{}, http.StatusCreated, []int{http.StatusBadRequest, http.StatusConflict}},
		{http.MethodGet, "/api/rooms/{roomID}", "Get room", "Room ids are case-insensitive.",
			nil, monikers.Room{}, http.StatusOK, []int{http.StatusNotFound}},
		{http.MethodDelete, "/api/rooms/{roomID}", "Delete room", "Deletes the room and broadcasts room:deleted.",
			nil, OKResponse{}, http.StatusOK, []int{http.StatusNotFound}},
		{http.MethodPost, "/api/rooms/{roomID}/join", "Join room", "Adds a player while the room is waiting.",
			JoinRoomRequest{}, JoinRoomResponse{}, http.StatusCreated, []int{http.StatusNotFound, http.StatusConflict}},
		{http.MethodPost, "/api/rooms/{roomID}/leave", "Leave room", "Removes a player. The last player leaving deletes the room.",
			PlayerRequest{}, OKResponse{}, http.StatusOK, []int{http.StatusBadRequest, http.StatusNotFound}},
		{http.MethodPut, "/api/rooms/{roomID}/team", "Choose team", "Moves a player to a team that has room.",
			AssignTeamRequest{}, monikers.Room{}, http.StatusOK, []int{http.StatusNotFound, http.StatusConflict}},
		{http.MethodGet, "/api/rooms/{roomID}/teams", "Available teams", "Teams that still have free seats.",
			nil, TeamsResponse{}, http.StatusOK, []int{http.StatusNotFound}},
		{http.MethodPatch, "/api/rooms/{roomID}/settings", "Update settings", "Changes player count or cards per player while waiting.",
			rooms.SettingsPatch{}, monikers.Room{}, http.StatusOK, []int{http.StatusNotFound, http.StatusConflict}},
		{http.MethodGet, "/api/rooms/{roomID}/cards", "Selected cards", "Every card any player has selected.",
			nil, []monikers.Card{}, http.StatusOK, []int{http.StatusNotFound}},
		{http.MethodPost, "/api/rooms/{roomID}/start", "Start card selection", "Host only. Seats team-less players and opens card selection.",
			PlayerRequest{}, monikers.Room{}, http.StatusOK, []int{http.StatusNotFound, http.StatusConflict}},
		{http.MethodGet, "/api/rooms/{roomID}/players/{playerID}/offer", "Card offer", "Untaken catalog cards offered to the player.",
			nil, []catalog.Entry{}, http.StatusOK, []int{http.StatusNotFound, http.StatusConflict}},
		{http.MethodPut, "/api/rooms/{roomID}/players/{playerID}/cards", "Save card draft", "Stores a partial selection.",
			CardsRequest{}, monikers.Room{}, http.StatusOK, []int{http.StatusNotFound, http.StatusConflict}},
		{http.MethodPost, "/api/rooms/{roomID}/players/{playerID}/confirm", "Confirm cards", "Locks in a full selection. Play starts once everyone is ready.",
			CardsRequest{}, monikers.Room{}, http.StatusOK, []int{http.StatusNotFound, http.StatusConflict}},
		{http.MethodPost, "/api/rooms/{roomID}/round/start", "Start round", "Activates the current round.",
			nil, monikers.Room{}, http.StatusOK, []int{http.StatusNotFound, http.StatusConflict}},
		{http.MethodPost, "/api/rooms/{roomID}/turn/start", "Start turn", "Starts the current player's timer and draws a card.",
			PlayerRequest{}, monikers.Room{}, http.StatusOK, []int{http.StatusNotFound, http.StatusConflict}},
		{http.MethodPost, "/api/rooms/{roomID}/turn/correct", "Correct guess", "Scores the current card and draws the next.",
			PlayerRequest{}, monikers.Room{}, http.StatusOK, []int{http.StatusNotFound, http.StatusConflict}},
		{http.MethodPost, "/api/rooms/{roomID}/turn/skip", "Skip card", "Moves the current card to the back of the pile. Two skips per turn.",
			PlayerRequest{}, monikers.Room{}, http.StatusOK, []int{http.StatusNotFound, http.StatusConflict}},
		{http.MethodPost, "/api/rooms/{roomID}/turn/end", "End turn", "Passes the turn to the other team.",
			PlayerRequest{}, monikers.Room{}, http.StatusOK, []int{http.StatusNotFound, http.StatusConflict}},
		{http.MethodGet, "/api/rooms/{roomID}/scores", "Scoreboard", "Points per team and round, with the winner once finished.",
			nil, rooms.Scoreboard{}, http.StatusOK, []int{http.StatusNotFound}},
	}
	for _, op := range ops {
		oc, _ := r.NewOperationContext(op.method, op.path)
		oc.SetSummary(op.summary)
		oc.SetDescription(op.description)
		switch {
		case strings.Contains(op.path, "{playerID}"):
			oc.AddReqStructure(playerPath{})
		case strings.Contains(op.path, "{roomID}"):
			oc.AddReqStructure(roomPath{})
		}
		if op.req != nil {
			oc.AddReqStructure(op.req)
		}
		oc.AddRespStructure(op.resp, openapi.WithHTTPStatus(op.status))
		for _, code := range op.errors {
			oc.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(code))
		}
		_ = r.AddOperation(oc)
	}

	return r.Spec
}

func handleOpenAPI() http.HandlerFunc {
	spec := newOpenAPISpec()
	data, _ := json.MarshalIndent(spec, "", "  ")

	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(data)
	}
}
