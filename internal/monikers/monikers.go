// Package monikers defines the core domain types and game rules.
// It has zero external dependencies, everything here is pure Go.
package monikers

import (
	"strings"
	"time"
)

const (
	// TotalRounds is the number of scoring passes over the card pool.
	TotalRounds = 3

	// MaxSkipsPerTurn bounds how many cards a player may skip before
	// scoring or ending their turn.
	MaxSkipsPerTurn = 2

	DefaultTurnSeconds    = 60
	DefaultPlayerCount    = 4
	DefaultCardsPerPlayer = 5

	MinPlayerCount    = 2
	MaxPlayerCount    = 12
	MinCardsPerPlayer = 1
	MaxCardsPerPlayer = 10
)

type Team string

const (
	TeamNone Team = ""
	Team1    Team = "team1"
	Team2    Team = "team2"
)

// Teams lists the two playable teams in turn order.
var Teams = [...]Team{Team1, Team2}

func (t Team) Valid() bool {
	switch t {
	case Team1, Team2:
		return true
	}
	return false
}

// Other returns the opposing team. TeamNone has no opponent.
func (t Team) Other() Team {
	switch t {
	case Team1:
		return Team2
	case Team2:
		return Team1
	}
	return TeamNone
}

type GameState string

const (
	StateWaiting       GameState = "waiting"
	StateCardSelection GameState = "card-selection"
	StatePlaying       GameState = "playing"
	StateFinished      GameState = "finished"
)

func (s GameState) rank() int {
	switch s {
	case StateWaiting:
		return 1
	case StateCardSelection:
		return 2
	case StatePlaying:
		return 3
	case StateFinished:
		return 4
	}
	return 0
}

func (s GameState) Valid() bool { return s.rank() > 0 }

// CanTransitionTo reports whether moving from s to target goes strictly
// forward through waiting, card-selection, playing, finished.
func (s GameState) CanTransitionTo(target GameState) bool {
	return s.Valid() && target.Valid() && target.rank() > s.rank()
}

type DeviceKind string

const (
	DeviceDesktop DeviceKind = "desktop"
	DeviceMobile  DeviceKind = "mobile"
)

func (d DeviceKind) Valid() bool {
	return d == DeviceDesktop || d == DeviceMobile
}

type Card struct {
	ID          string `json:"id"`
	Text        string `json:"text"`
	Round       int    `json:"round"`
	Description string `json:"description,omitempty"`
	Level       int    `json:"level,omitempty"`
}

// Points is the card's catalog level. Cards drawn without a level count as 1.
func (c Card) Points() int {
	if c.Level <= 0 {
		return 1
	}
	return c.Level
}

// Key identifies a card in usedCards and draw orders.
func (c Card) Key() string {
	if c.ID != "" {
		return c.ID
	}
	return c.Text
}

type Player struct {
	ID            string     `json:"id"`
	Name          string     `json:"name"`
	IsHost        bool       `json:"isHost"`
	DeviceType    DeviceKind `json:"deviceType"`
	Team          Team       `json:"team,omitempty"`
	SelectedCards []Card     `json:"selectedCards,omitempty"`
	// Confirmed is set when the player locks in a selection and cleared
	// by any later draft.
	Confirmed bool `json:"confirmed,omitempty"`
}

type Settings struct {
	PlayerCount    int `json:"players"`
	CardsPerPlayer int `json:"cardsPerPlayer"`
}

func DefaultSettings() Settings {
	return Settings{PlayerCount: DefaultPlayerCount, CardsPerPlayer: DefaultCardsPerPlayer}
}

func (s Settings) Valid() bool {
	return s.PlayerCount >= MinPlayerCount && s.PlayerCount <= MaxPlayerCount &&
		s.CardsPerPlayer >= MinCardsPerPlayer && s.CardsPerPlayer <= MaxCardsPerPlayer
}

// Scores maps team -> round -> cards scored in that round.
type Scores map[Team]map[int][]Card

func NewScores() Scores {
	return Scores{Team1: {}, Team2: {}}
}

// Counters is a per-player integer map with default-on-missing reads.
type Counters map[string]int

// Get returns the value for playerID or def when unset.
func (c Counters) Get(playerID string, def int) int {
	if v, ok := c[playerID]; ok {
		return v
	}
	return def
}

type Room struct {
	ID                 string            `json:"id"`
	HostID             string            `json:"hostId"`
	Players            []Player          `json:"players"`
	GameState          GameState         `json:"gameState"`
	Settings           Settings          `json:"settings"`
	CurrentRound       int               `json:"currentRound"`
	Scores             Scores            `json:"scores"`
	CurrentPlayerIndex int               `json:"currentPlayerIndex"`
	CurrentTeam        Team              `json:"currentTeam,omitempty"`
	Timer              int               `json:"timer,omitempty"`
	IsRoundActive      bool              `json:"isRoundActive"`
	RoundStarted       bool              `json:"roundStarted"`
	TurnStarted        bool              `json:"turnStarted"`
	UsedCards          []string          `json:"usedCards,omitempty"`
	CurrentCard        *Card             `json:"currentCard"`
	PlayerTimers       Counters          `json:"playerTimers,omitempty"`
	PlayerSkipCounts   Counters          `json:"playerSkipCounts,omitempty"`
	DrawOrder          map[Team][]string `json:"drawOrder,omitempty"`
	CreatedAt          int64             `json:"createdAt"`
	UpdatedAt          int64             `json:"updatedAt"`
}

// NormalizeID folds a room code for case-insensitive lookup.
func NormalizeID(id string) string {
	return strings.ToLower(strings.TrimSpace(id))
}

// ChannelName is the broadcast channel every publisher and subscriber of
// roomID agrees on.
func ChannelName(roomID string) string {
	return "room-" + NormalizeID(roomID)
}

// Touch bumps UpdatedAt. Timestamps are unix milliseconds.
func (r *Room) Touch(now time.Time) {
	ms := now.UnixMilli()
	if ms <= r.UpdatedAt {
		ms = r.UpdatedAt + 1
	}
	r.UpdatedAt = ms
}

func (r *Room) PlayerByID(id string) (*Player, int) {
	for i := range r.Players {
		if r.Players[i].ID == id {
			return &r.Players[i], i
		}
	}
	return nil, -1
}

// Host returns the player holding HostID, or nil.
func (r *Room) Host() *Player {
	p, _ := r.PlayerByID(r.HostID)
	return p
}

// CurrentPlayer returns the player at CurrentPlayerIndex, if any.
func (r *Room) CurrentPlayer() *Player {
	if r.CurrentPlayerIndex < 0 || r.CurrentPlayerIndex >= len(r.Players) {
		return nil
	}
	return &r.Players[r.CurrentPlayerIndex]
}

func (r *Room) IsUsed(key string) bool {
	for _, k := range r.UsedCards {
		if k == key {
			return true
		}
	}
	return false
}

// Clone returns a deep copy safe to hand to another goroutine.
func (r *Room) Clone() *Room {
	if r == nil {
		return nil
	}
	c := *r
	c.Players = make([]Player, len(r.Players))
	for i, p := range r.Players {
		p.SelectedCards = append([]Card(nil), p.SelectedCards...)
		c.Players[i] = p
	}
	if r.Scores != nil {
		c.Scores = make(Scores, len(r.Scores))
		for team, rounds := range r.Scores {
			m := make(map[int][]Card, len(rounds))
			for round, cards := range rounds {
				m[round] = append([]Card(nil), cards...)
			}
			c.Scores[team] = m
		}
	}
	c.UsedCards = append([]string(nil), r.UsedCards...)
	if r.CurrentCard != nil {
		card := *r.CurrentCard
		c.CurrentCard = &card
	}
	c.PlayerTimers = cloneCounters(r.PlayerTimers)
	c.PlayerSkipCounts = cloneCounters(r.PlayerSkipCounts)
	if r.DrawOrder != nil {
		c.DrawOrder = make(map[Team][]string, len(r.DrawOrder))
		for team, keys := range r.DrawOrder {
			c.DrawOrder[team] = append([]string(nil), keys...)
		}
	}
	return &c
}

func cloneCounters(m Counters) Counters {
	if m == nil {
		return nil
	}
	c := make(Counters, len(m))
	for k, v := range m {
		c[k] = v
	}
	return c
}
