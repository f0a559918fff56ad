package rooms

import (
	"context"
	"strings"

	"github.com/playperu/monikers/internal/monikers"
)

// SettingsPatch carries a partial settings update. Nil fields keep their
// current value.
type SettingsPatch struct {
	PlayerCount    *int `json:"players,omitempty"`
	CardsPerPlayer *int `json:"cardsPerPlayer,omitempty"`
}

// UpdateSettings merges patch into the room's settings while it is waiting.
// The player limit may not drop below the number of seated players.
func (s *Store) UpdateSettings(ctx context.Context, id string, patch SettingsPatch) (*monikers.Room, error) {
	return s.update(ctx, id, func(r *monikers.Room) error {
		if r.GameState != monikers.StateWaiting {
			return ErrWrongPhase
		}
		next := r.Settings
		if patch.PlayerCount != nil {
			next.PlayerCount = *patch.PlayerCount
		}
		if patch.CardsPerPlayer != nil {
			next.CardsPerPlayer = *patch.CardsPerPlayer
		}
		if !next.Valid() || next.PlayerCount < len(r.Players) {
			return ErrInvalidSettings
		}
		r.Settings = next
		return nil
	})
}

// UpdateGameState moves the room forward through its phases. Moving
// backwards, or staying put, is rejected.
func (s *Store) UpdateGameState(ctx context.Context, id string, state monikers.GameState) error {
	_, err := s.update(ctx, id, func(r *monikers.Room) error {
		if !r.GameState.CanTransitionTo(state) {
			return ErrWrongPhase
		}
		if state == monikers.StatePlaying {
			s.startPlaying(r)
			return nil
		}
		r.GameState = state
		return nil
	})
	return err
}

// UpdatePlayerCards replaces a player's selection during card selection.
// Card text is unique across the room, compared case-insensitively. The
// stored selection becomes a draft again until the player confirms.
func (s *Store) UpdatePlayerCards(ctx context.Context, id, playerID string, cards []monikers.Card) error {
	_, err := s.update(ctx, id, func(r *monikers.Room) error {
		if err := s.setPlayerCards(r, playerID, cards); err != nil {
			return err
		}
		p, _ := r.PlayerByID(playerID)
		p.Confirmed = false
		return nil
	})
	return err
}

func (s *Store) setPlayerCards(r *monikers.Room, playerID string, cards []monikers.Card) error {
	p, _ := r.PlayerByID(playerID)
	if p == nil {
		return ErrPlayerNotFound
	}
	if r.GameState != monikers.StateCardSelection {
		return ErrWrongPhase
	}
	if len(cards) > r.Settings.CardsPerPlayer {
		return ErrTooManyCards
	}

	seen := make(map[string]bool, len(cards))
	normalized := make([]monikers.Card, 0, len(cards))
	for _, c := range cards {
		c.Text = strings.TrimSpace(c.Text)
		if c.Text == "" {
			return ErrInvalidValue
		}
		key := strings.ToLower(c.Text)
		if seen[key] {
			return ErrCardTaken
		}
		seen[key] = true
		if owner := monikers.CardOwner(r, c.Text); owner != nil && owner.ID != playerID {
			return ErrCardTaken
		}
		normalized = append(normalized, s.normalizeCard(c))
	}
	p.SelectedCards = normalized
	return nil
}

// normalizeCard fills id, round and level from the catalog where missing.
func (s *Store) normalizeCard(c monikers.Card) monikers.Card {
	if e, ok := s.catalog.Lookup(c.Text); ok {
		if c.Level == 0 {
			c.Level = e.Level
		}
		if c.Description == "" {
			c.Description = e.Description
		}
	}
	if c.ID == "" {
		c.ID = c.Text
	}
	if c.Round == 0 {
		c.Round = 1
	}
	if c.Level == 0 {
		c.Level = 1
	}
	return c
}

func (s *Store) UpdateCurrentPlayer(ctx context.Context, id string, index int) error {
	_, err := s.update(ctx, id, func(r *monikers.Room) error {
		if index < 0 || index >= len(r.Players) {
			return ErrInvalidValue
		}
		r.CurrentPlayerIndex = index
		return nil
	})
	return err
}

// UpdateScores installs scores that extend the stored ones. Every existing
// team round must survive as a prefix of the new list.
func (s *Store) UpdateScores(ctx context.Context, id string, scores monikers.Scores) error {
	_, err := s.update(ctx, id, func(r *monikers.Room) error {
		for team, rounds := range r.Scores {
			for round, cards := range rounds {
				next := scores[team][round]
				if len(next) < len(cards) {
					return ErrScoresRewrite
				}
				for i := range cards {
					if cards[i].Key() != next[i].Key() {
						return ErrScoresRewrite
					}
				}
			}
		}
		for team := range scores {
			if !team.Valid() {
				return ErrInvalidTeam
			}
		}
		r.Scores = scores
		return nil
	})
	return err
}

// UpdateCurrentRound sets the round. Rounds never go backwards.
func (s *Store) UpdateCurrentRound(ctx context.Context, id string, round int) error {
	_, err := s.update(ctx, id, func(r *monikers.Room) error {
		if round < 1 || round > monikers.TotalRounds || round < r.CurrentRound {
			return ErrInvalidValue
		}
		r.CurrentRound = round
		return nil
	})
	return err
}

func (s *Store) UpdateCurrentTeam(ctx context.Context, id string, team monikers.Team) error {
	if !team.Valid() {
		return ErrInvalidTeam
	}
	_, err := s.update(ctx, id, func(r *monikers.Room) error {
		r.CurrentTeam = team
		return nil
	})
	return err
}

func (s *Store) UpdateTimer(ctx context.Context, id string, seconds int) error {
	if seconds < 0 {
		return ErrInvalidValue
	}
	_, err := s.update(ctx, id, func(r *monikers.Room) error {
		r.Timer = seconds
		return nil
	})
	return err
}

func (s *Store) UpdateRoundStatus(ctx context.Context, id string, isRoundActive, roundStarted bool) error {
	_, err := s.update(ctx, id, func(r *monikers.Room) error {
		r.IsRoundActive = isRoundActive
		r.RoundStarted = roundStarted
		return nil
	})
	return err
}

func (s *Store) UpdateUsedCards(ctx context.Context, id string, used []string) error {
	_, err := s.update(ctx, id, func(r *monikers.Room) error {
		r.UsedCards = append([]string(nil), used...)
		return nil
	})
	return err
}

// UpdateCurrentCard sets the card in play. A nil card clears it.
func (s *Store) UpdateCurrentCard(ctx context.Context, id string, card *monikers.Card) error {
	_, err := s.update(ctx, id, func(r *monikers.Room) error {
		if card == nil {
			r.CurrentCard = nil
			return nil
		}
		c := *card
		r.CurrentCard = &c
		return nil
	})
	return err
}

func (s *Store) UpdatePlayerTimer(ctx context.Context, id, playerID string, seconds int) error {
	if seconds < 0 {
		return ErrInvalidValue
	}
	_, err := s.update(ctx, id, func(r *monikers.Room) error {
		if p, _ := r.PlayerByID(playerID); p == nil {
			return ErrPlayerNotFound
		}
		if r.PlayerTimers == nil {
			r.PlayerTimers = make(monikers.Counters)
		}
		r.PlayerTimers[playerID] = seconds
		return nil
	})
	return err
}

func (s *Store) UpdatePlayerSkipCount(ctx context.Context, id, playerID string, count int) error {
	if count < 0 || count > monikers.MaxSkipsPerTurn {
		return ErrInvalidValue
	}
	_, err := s.update(ctx, id, func(r *monikers.Room) error {
		if p, _ := r.PlayerByID(playerID); p == nil {
			return ErrPlayerNotFound
		}
		if r.PlayerSkipCounts == nil {
			r.PlayerSkipCounts = make(monikers.Counters)
		}
		r.PlayerSkipCounts[playerID] = count
		return nil
	})
	return err
}

func (s *Store) UpdateTurnStarted(ctx context.Context, id string, started bool) error {
	_, err := s.update(ctx, id, func(r *monikers.Room) error {
		r.TurnStarted = started
		return nil
	})
	return err
}
