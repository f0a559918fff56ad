package server

import (
	"log/slog"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/swaggest/swgui/v5emb"
	"golang.org/x/time/rate"

	"github.com/playperu/monikers/internal/bus"
	"github.com/playperu/monikers/internal/rooms"
)

// Deps are the collaborators the HTTP surface runs on.
type Deps struct {
	Logger *slog.Logger
	Rooms  *rooms.Store
	Bus    bus.Bus

	// StreamInterval is how often the SSE fallback re-reads a room.
	StreamInterval time.Duration
	BroadcastRPS   rate.Limit
	BroadcastBurst int

	// SPADir holds the built web client. Empty disables static serving.
	SPADir string
}

// Routes returns a mount function for New.
func Routes(d Deps) func(r chi.Router) {
	return func(r chi.Router) { addRoutes(r, d) }
}

func addRoutes(r chi.Router, d Deps) {
	if d.StreamInterval <= 0 {
		d.StreamInterval = time.Second
	}
	limits := newChannelLimiter(d.BroadcastRPS, d.BroadcastBurst)
	log := d.Logger
	store := d.Rooms

	r.Get("/openapi.json", handleOpenAPI())
	r.Mount("/docs", v5emb.New("Monikers API", "/openapi.json", "/docs"))

	// Realtime transport.
	r.Post("/broadcast", handleBroadcast(log, d.Bus, limits))
	r.Get("/ws", handleWS(log, d.Bus))
	r.Get("/rooms/{roomID}/events", handleEvents(log, store, d.StreamInterval))

	r.Route("/api/rooms", func(r chi.Router) {
		r.Get("/", handleListRooms(log, store))
		r.Post("/", handleCreateRoom(log, store))

		r.Route("/{roomID}", func(r chi.Router) {
			r.Get("/", handleGetRoom(log, store))
			r.Delete("/", handleDeleteRoom(log, store))

			r.Post("/join", handleJoinRoom(log, store))
			r.Post("/leave", handleLeaveRoom(log, store))
			r.Put("/team", handleAssignTeam(log, store))
			r.Get("/teams", handleAvailableTeams(log, store))
			r.Patch("/settings", handleUpdateSettings(log, store))
			r.Get("/cards", handleSelectedCards(log, store))

			r.Post("/start", handleStartCardSelection(log, store))
			r.Get("/players/{playerID}/offer", handleOfferCards(log, store))
			r.Put("/players/{playerID}/cards", handleDraftCards(log, store))
			r.Post("/players/{playerID}/confirm", handleConfirmCards(log, store))

			r.Post("/round/start", handleStartRound(log, store))
			r.Post("/turn/start", handleTurn(log, store.StartTurn))
			r.Post("/turn/correct", handleTurn(log, store.CorrectGuess))
			r.Post("/turn/skip", handleTurn(log, store.SkipCard))
			r.Post("/turn/end", handleTurn(log, store.EndTurn))
			r.Get("/scores", handleScores(log, store))
		})
	})

	if spaDirExists(d.SPADir) {
		log.Info("serving SPA", "dir", d.SPADir)
		r.NotFound(handleSPA(d.SPADir))
	}
}
