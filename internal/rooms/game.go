package rooms

import (
	"context"
	"slices"
	"strings"

	"github.com/playperu/monikers/internal/catalog"
	"github.com/playperu/monikers/internal/monikers"
)

// StartCardSelection moves a waiting room to card selection. Only the host
// may start. Players who never picked a team are seated on the smaller one.
func (s *Store) StartCardSelection(ctx context.Context, id, playerID string) (*monikers.Room, error) {
	return s.update(ctx, id, func(r *monikers.Room) error {
		if h := r.Host(); h == nil || h.ID != playerID {
			return ErrNotHost
		}
		if r.GameState != monikers.StateWaiting {
			return ErrWrongPhase
		}
		if len(r.Players) < 2 {
			return ErrNotEnoughPlayers
		}
		for i := range r.Players {
			if !r.Players[i].Team.Valid() {
				r.Players[i].Team = monikers.SmallerTeam(r)
			}
		}
		if monikers.TeamCount(r, monikers.Team1) == 0 || monikers.TeamCount(r, monikers.Team2) == 0 {
			return ErrTeamsUnbalanced
		}
		r.GameState = monikers.StateCardSelection
		return nil
	})
}

// OfferCards returns the selection grid for a player: cardsPerPlayer+2
// catalog entries nobody else has picked, stable per player.
func (s *Store) OfferCards(ctx context.Context, id, playerID string) ([]catalog.Entry, error) {
	var offer []catalog.Entry
	err := s.read(ctx, func(rooms map[string]*monikers.Room) error {
		r, ok := rooms[monikers.NormalizeID(id)]
		if !ok {
			return ErrRoomNotFound
		}
		if p, _ := r.PlayerByID(playerID); p == nil {
			return ErrPlayerNotFound
		}
		if r.GameState != monikers.StateCardSelection {
			return ErrWrongPhase
		}
		taken := make(map[string]bool)
		for _, p := range r.Players {
			if p.ID == playerID {
				continue
			}
			for _, c := range p.SelectedCards {
				taken[strings.ToLower(c.Text)] = true
			}
		}
		offer = s.catalog.Offer(r.ID+"/"+playerID, taken, r.Settings.CardsPerPlayer+2)
		return nil
	})
	return offer, err
}

// ConfirmSelection locks in a player's cards. The room starts playing once
// every player has confirmed exactly cardsPerPlayer cards.
func (s *Store) ConfirmSelection(ctx context.Context, id, playerID string, cards []monikers.Card) (*monikers.Room, error) {
	return s.update(ctx, id, func(r *monikers.Room) error {
		if r.GameState == monikers.StateCardSelection && len(cards) != r.Settings.CardsPerPlayer {
			return ErrNotReady
		}
		if err := s.setPlayerCards(r, playerID, cards); err != nil {
			return err
		}
		p, _ := r.PlayerByID(playerID)
		p.Confirmed = true
		if monikers.AllReady(r) {
			s.startPlaying(r)
		}
		return nil
	})
}

// startPlaying enters the playing phase at round one with team1 up.
func (s *Store) startPlaying(r *monikers.Room) {
	r.GameState = monikers.StatePlaying
	r.CurrentRound = 1
	if r.Scores == nil {
		r.Scores = monikers.NewScores()
	}
	r.UsedCards = nil
	r.DrawOrder = nil
	r.CurrentTeam = monikers.Team1
	r.CurrentPlayerIndex = max(monikers.FirstPlayerIndex(r, monikers.Team1), 0)
	r.IsRoundActive = false
	r.RoundStarted = false
	r.TurnStarted = false
	r.CurrentCard = nil
	r.Timer = s.turnSeconds
	r.PlayerTimers = nil
	r.PlayerSkipCounts = nil
}

// StartRound activates the current round and deals the first card to the
// current team.
func (s *Store) StartRound(ctx context.Context, id string) (*monikers.Room, error) {
	return s.update(ctx, id, func(r *monikers.Room) error {
		if r.GameState != monikers.StatePlaying {
			return ErrWrongPhase
		}
		if r.IsRoundActive {
			return ErrRoundActive
		}
		if !r.CurrentTeam.Valid() {
			r.CurrentTeam = monikers.Team1
		}
		if p := r.CurrentPlayer(); p == nil || p.Team != r.CurrentTeam {
			s.reseatCurrent(r)
		}
		r.IsRoundActive = true
		r.RoundStarted = true
		r.TurnStarted = false
		r.Timer = s.turnSeconds
		r.CurrentCard = monikers.NextCard(r, r.CurrentTeam)
		if r.CurrentCard == nil {
			s.settleTurn(r)
		}
		return nil
	})
}

// activePlayer checks that playerID holds the turn in an active round.
func activePlayer(r *monikers.Room, playerID string) (*monikers.Player, error) {
	if r.GameState != monikers.StatePlaying || !r.IsRoundActive {
		return nil, ErrWrongPhase
	}
	p := r.CurrentPlayer()
	if p == nil {
		return nil, ErrPlayerNotFound
	}
	if p.ID != playerID {
		return nil, ErrNotYourTurn
	}
	return p, nil
}

// StartTurn starts the current player's countdown with a fresh skip
// budget. If the player's team has nothing left to draw, the turn passes
// to the other team instead and no countdown starts.
func (s *Store) StartTurn(ctx context.Context, id, playerID string) (*monikers.Room, error) {
	return s.update(ctx, id, func(r *monikers.Room) error {
		p, err := activePlayer(r, playerID)
		if err != nil {
			return err
		}
		if r.TurnStarted {
			return ErrTurnActive
		}
		if r.CurrentCard == nil {
			r.CurrentCard = monikers.NextCard(r, r.CurrentTeam)
		}
		if r.CurrentCard == nil {
			s.settleTurn(r)
			return nil
		}
		timer := r.PlayerTimers.Get(p.ID, s.turnSeconds)
		if timer <= 0 {
			timer = s.turnSeconds
		}
		if r.PlayerTimers == nil {
			r.PlayerTimers = make(monikers.Counters)
		}
		if r.PlayerSkipCounts == nil {
			r.PlayerSkipCounts = make(monikers.Counters)
		}
		r.PlayerTimers[p.ID] = timer
		r.PlayerSkipCounts[p.ID] = 0
		r.Timer = timer
		r.TurnStarted = true
		return nil
	})
}

// CorrectGuess scores the card in play for the current team and deals the
// next one to the same player. Scoring the last card of the round closes
// it; when the team runs dry first the turn passes on.
func (s *Store) CorrectGuess(ctx context.Context, id, playerID string) (*monikers.Room, error) {
	return s.update(ctx, id, func(r *monikers.Room) error {
		p, err := activePlayer(r, playerID)
		if err != nil {
			return err
		}
		if !r.TurnStarted {
			return ErrTurnNotStarted
		}
		if r.CurrentCard == nil {
			return ErrNoCard
		}

		card := *r.CurrentCard
		if r.Scores == nil {
			r.Scores = monikers.NewScores()
		}
		if r.Scores[r.CurrentTeam] == nil {
			r.Scores[r.CurrentTeam] = make(map[int][]monikers.Card)
		}
		r.Scores[r.CurrentTeam][r.CurrentRound] = append(r.Scores[r.CurrentTeam][r.CurrentRound], card)
		if !r.IsUsed(card.Key()) {
			r.UsedCards = append(r.UsedCards, card.Key())
		}
		if r.PlayerSkipCounts == nil {
			r.PlayerSkipCounts = make(monikers.Counters)
		}
		r.PlayerSkipCounts[p.ID] = 0

		if monikers.RoundComplete(r) {
			s.completeRound(r)
			return nil
		}
		r.CurrentCard = monikers.NextCard(r, r.CurrentTeam)
		if r.CurrentCard == nil {
			s.rotateTurn(r)
		}
		return nil
	})
}

// SkipCard sends the card in play to the back of the team's pile. A player
// gets MaxSkipsPerTurn skips per turn.
func (s *Store) SkipCard(ctx context.Context, id, playerID string) (*monikers.Room, error) {
	return s.update(ctx, id, func(r *monikers.Room) error {
		p, err := activePlayer(r, playerID)
		if err != nil {
			return err
		}
		if !r.TurnStarted {
			return ErrTurnNotStarted
		}
		if r.CurrentCard == nil {
			return ErrNoCard
		}
		used := r.PlayerSkipCounts.Get(p.ID, 0)
		if used >= monikers.MaxSkipsPerTurn {
			return ErrSkipBudget
		}
		r.CurrentCard = monikers.RotateToTail(r, r.CurrentTeam, r.CurrentCard.Key())
		if r.PlayerSkipCounts == nil {
			r.PlayerSkipCounts = make(monikers.Counters)
		}
		r.PlayerSkipCounts[p.ID] = used + 1
		return nil
	})
}

// EndTurn passes the turn on. The card in play stays in the pile.
func (s *Store) EndTurn(ctx context.Context, id, playerID string) (*monikers.Room, error) {
	return s.update(ctx, id, func(r *monikers.Room) error {
		if _, err := activePlayer(r, playerID); err != nil {
			return err
		}
		s.rotateTurn(r)
		return nil
	})
}

// rotateTurn resets the outgoing player's clock and hands control to the
// next player who has a card to draw.
func (s *Store) rotateTurn(r *monikers.Room) {
	if r.PlayerTimers == nil {
		r.PlayerTimers = make(monikers.Counters)
	}
	if r.PlayerSkipCounts == nil {
		r.PlayerSkipCounts = make(monikers.Counters)
	}
	if p := r.CurrentPlayer(); p != nil {
		r.PlayerTimers[p.ID] = s.turnSeconds
		r.PlayerSkipCounts[p.ID] = 0
	}

	team, idx := monikers.NextPlayableTurn(r)
	r.CurrentTeam = team
	r.CurrentPlayerIndex = idx
	r.TurnStarted = false
	r.CurrentCard = monikers.NextCard(r, team)
	if p := r.CurrentPlayer(); p != nil {
		r.Timer = r.PlayerTimers.Get(p.ID, s.turnSeconds)
	}
}

// settleTurn keeps an active round playable after its pool changed under
// it. A round with no unused cards left closes. A card in play that no
// longer belongs to the team is replaced, and a team with nothing left to
// draw hands over.
func (s *Store) settleTurn(r *monikers.Room) {
	if r.GameState != monikers.StatePlaying || !r.IsRoundActive {
		return
	}
	if monikers.RoundComplete(r) {
		s.completeRound(r)
		return
	}
	if r.CurrentCard != nil && inPool(r, r.CurrentTeam, r.CurrentCard.Key()) {
		return
	}
	r.CurrentCard = monikers.NextCard(r, r.CurrentTeam)
	if r.CurrentCard == nil {
		s.rotateTurn(r)
	}
}

func inPool(r *monikers.Room, team monikers.Team, key string) bool {
	return slices.ContainsFunc(monikers.DrawPool(r, team), func(c monikers.Card) bool {
		return c.Key() == key
	})
}

// completeRound closes a round whose cards are all used. Scores carry
// over; the third round finishes the game.
func (s *Store) completeRound(r *monikers.Room) {
	r.IsRoundActive = false
	r.RoundStarted = false
	r.TurnStarted = false
	r.CurrentCard = nil

	if r.CurrentRound >= monikers.TotalRounds {
		r.GameState = monikers.StateFinished
		return
	}

	r.CurrentRound++
	r.UsedCards = nil
	r.DrawOrder = nil
	r.CurrentTeam = monikers.Team1
	r.CurrentPlayerIndex = max(monikers.FirstPlayerIndex(r, monikers.Team1), 0)
	r.Timer = s.turnSeconds
	r.PlayerTimers = nil
	r.PlayerSkipCounts = nil
}

// tick advances the current player's countdown by one second. It reports
// false when no turn is running.
func (s *Store) tick(r *monikers.Room) bool {
	if r.GameState != monikers.StatePlaying || !r.IsRoundActive || !r.TurnStarted {
		return false
	}
	p := r.CurrentPlayer()
	if p == nil {
		return false
	}
	left := r.PlayerTimers.Get(p.ID, s.turnSeconds) - 1
	if left <= 0 {
		s.rotateTurn(r)
		return true
	}
	if r.PlayerTimers == nil {
		r.PlayerTimers = make(monikers.Counters)
	}
	r.PlayerTimers[p.ID] = left
	r.Timer = left
	return true
}

// Tick advances one room's running turn by a second.
func (s *Store) Tick(ctx context.Context, id string) (*monikers.Room, error) {
	return s.update(ctx, id, func(r *monikers.Room) error {
		if !s.tick(r) {
			return ErrTurnNotStarted
		}
		return nil
	})
}

// TickAll advances every running turn by a second and returns how many
// rooms changed.
func (s *Store) TickAll(ctx context.Context) (int, error) {
	n := 0
	err := s.write(ctx, func(tx *txn) error {
		for _, r := range tx.rooms {
			before := r.GameState
			if s.tick(r) {
				tx.changed(r, before)
				n++
			}
		}
		return nil
	})
	return n, err
}

type RoundScore struct {
	Round  int    `json:"round"`
	Name   string `json:"name"`
	Cards  int    `json:"cards"`
	Points int    `json:"points"`
}

type TeamScore struct {
	Team   monikers.Team `json:"team"`
	Rounds []RoundScore  `json:"rounds"`
	Total  int           `json:"total"`
}

type Scoreboard struct {
	RoomID       string        `json:"roomId"`
	GameState    string        `json:"gameState"`
	CurrentRound int           `json:"currentRound"`
	Teams        []TeamScore   `json:"teams"`
	Winner       monikers.Team `json:"winner,omitempty"`
	Tie          bool          `json:"tie"`
}

// Scoreboard summarizes points per team and round. Winner and Tie are only
// set once the game is finished.
func (s *Store) Scoreboard(ctx context.Context, id string) (*Scoreboard, error) {
	r, err := s.GetRoom(ctx, id)
	if err != nil {
		return nil, err
	}
	sb := &Scoreboard{
		RoomID:       r.ID,
		GameState:    string(r.GameState),
		CurrentRound: r.CurrentRound,
	}
	for _, team := range monikers.Teams {
		ts := TeamScore{Team: team, Total: monikers.TotalTeamScore(r, team)}
		for round := 1; round <= monikers.TotalRounds; round++ {
			ts.Rounds = append(ts.Rounds, RoundScore{
				Round:  round,
				Name:   monikers.RoundName(round),
				Cards:  monikers.TeamRoundCardCount(r, team, round),
				Points: monikers.TeamRoundScore(r, team, round),
			})
		}
		sb.Teams = append(sb.Teams, ts)
	}
	if r.GameState == monikers.StateFinished {
		sb.Winner, sb.Tie = monikers.Winner(r)
	}
	return sb, nil
}
