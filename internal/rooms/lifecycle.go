package rooms

import (
	"context"
	"slices"
	"strings"

	"github.com/google/uuid"

	"github.com/playperu/monikers/internal/monikers"
)

func newRoomID() string { return uuid.NewString()[:8] }

// CreateRoom opens a room in the waiting state with hostName as its only
// player, seated on team1. A zero settings value selects the defaults.
// A second call for the same host inside the debounce window returns the
// room created by the first.
func (s *Store) CreateRoom(ctx context.Context, hostName string, device monikers.DeviceKind, settings monikers.Settings) (*monikers.Room, error) {
	name := strings.TrimSpace(hostName)
	if name == "" {
		return nil, ErrInvalidName
	}
	if settings == (monikers.Settings{}) {
		settings = monikers.DefaultSettings()
	}
	if !settings.Valid() {
		return nil, ErrInvalidSettings
	}
	if !device.Valid() {
		device = monikers.DeviceDesktop
	}

	var out *monikers.Room
	err := s.write(ctx, func(tx *txn) error {
		last := s.lastCreate
		if s.debounce > 0 && last.roomID != "" &&
			strings.EqualFold(last.hostName, name) &&
			tx.now.Sub(last.at) < s.debounce {
			if r, ok := tx.rooms[last.roomID]; ok {
				out = r.Clone()
				return nil
			}
		}

		id := newRoomID()
		for tx.rooms[id] != nil {
			id = newRoomID()
		}
		hostID := uuid.NewString()
		ms := tx.now.UnixMilli()

		r := &monikers.Room{
			ID:     id,
			HostID: hostID,
			Players: []monikers.Player{{
				ID:         hostID,
				Name:       name,
				IsHost:     true,
				DeviceType: device,
				Team:       monikers.Team1,
			}},
			GameState:    monikers.StateWaiting,
			Settings:     settings,
			CurrentRound: 1,
			Scores:       monikers.NewScores(),
			CreatedAt:    ms,
			UpdatedAt:    ms,
		}
		tx.rooms[id] = r
		tx.dirty = true
		tx.events = append(tx.events, event{kind: monikers.EventUpdated, id: id})

		s.lastCreate.at = tx.now
		s.lastCreate.hostName = name
		s.lastCreate.roomID = id
		out = r.Clone()
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// GetRoom always reads the latest snapshot so it reflects writes made by
// the realtime reconciler.
func (s *Store) GetRoom(ctx context.Context, id string) (*monikers.Room, error) {
	var out *monikers.Room
	err := s.read(ctx, func(rooms map[string]*monikers.Room) error {
		r, ok := rooms[monikers.NormalizeID(id)]
		if !ok {
			return ErrRoomNotFound
		}
		out = r
		return nil
	})
	return out, err
}

// GetAllRooms lists every stored room, oldest first.
func (s *Store) GetAllRooms(ctx context.Context) ([]*monikers.Room, error) {
	var out []*monikers.Room
	err := s.read(ctx, func(rooms map[string]*monikers.Room) error {
		out = make([]*monikers.Room, 0, len(rooms))
		for _, r := range rooms {
			out = append(out, r)
		}
		return nil
	})
	slices.SortFunc(out, func(a, b *monikers.Room) int {
		if a.CreatedAt != b.CreatedAt {
			if a.CreatedAt < b.CreatedAt {
				return -1
			}
			return 1
		}
		return strings.Compare(a.ID, b.ID)
	})
	return out, err
}

// JoinRoom adds a team-less player to a waiting room.
func (s *Store) JoinRoom(ctx context.Context, id, name string, device monikers.DeviceKind) (*monikers.Player, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, ErrInvalidName
	}
	if !device.Valid() {
		device = monikers.DeviceMobile
	}

	var out monikers.Player
	_, err := s.update(ctx, id, func(r *monikers.Room) error {
		if r.GameState != monikers.StateWaiting {
			return ErrWrongPhase
		}
		if len(r.Players) >= r.Settings.PlayerCount {
			return ErrRoomFull
		}
		for _, p := range r.Players {
			if strings.EqualFold(p.Name, name) {
				return ErrNameTaken
			}
		}
		out = monikers.Player{
			ID:         uuid.NewString(),
			Name:       name,
			DeviceType: device,
		}
		r.Players = append(r.Players, out)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// LeaveRoom removes a player. A departing host hands the room to the first
// remaining player, who moves to team1. The last player out deletes the
// room.
func (s *Store) LeaveRoom(ctx context.Context, id, playerID string) error {
	return s.write(ctx, func(tx *txn) error {
		r, err := tx.room(id)
		if err != nil {
			return err
		}
		_, idx := r.PlayerByID(playerID)
		if idx < 0 {
			return ErrPlayerNotFound
		}

		before := r.GameState
		wasCurrent := idx == r.CurrentPlayerIndex
		r.Players = slices.Delete(r.Players, idx, idx+1)
		delete(r.PlayerTimers, playerID)
		delete(r.PlayerSkipCounts, playerID)

		if len(r.Players) == 0 {
			tx.remove(r.ID)
			return nil
		}

		if r.HostID == playerID {
			r.HostID = r.Players[0].ID
			r.Players[0].IsHost = true
			r.Players[0].Team = monikers.Team1
		}

		switch {
		case wasCurrent:
			s.reseatCurrent(r)
		case idx < r.CurrentPlayerIndex:
			r.CurrentPlayerIndex--
		}
		// The leaver's cards are gone from the pool.
		s.settleTurn(r)

		if r.GameState == monikers.StateCardSelection && len(r.Players) >= 2 && monikers.AllReady(r) {
			s.startPlaying(r)
		}

		tx.changed(r, before)
		return nil
	})
}

// reseatCurrent hands the turn to the first player of the current team
// after the current player left.
func (s *Store) reseatCurrent(r *monikers.Room) {
	team := r.CurrentTeam
	if !team.Valid() {
		team = monikers.Team1
	}
	idx := monikers.FirstPlayerIndex(r, team)
	if idx < 0 {
		team = team.Other()
		idx = monikers.FirstPlayerIndex(r, team)
	}
	if idx < 0 {
		idx = 0
	}
	r.CurrentTeam = team
	r.CurrentPlayerIndex = idx
	r.TurnStarted = false
	if r.IsRoundActive {
		r.Timer = r.PlayerTimers.Get(r.Players[idx].ID, s.turnSeconds)
		r.CurrentCard = monikers.NextCard(r, team)
	}
}

// AssignTeamToPlayer seats a player on team while the room is waiting.
// A team already holding ceil(players/2) members rejects newcomers.
func (s *Store) AssignTeamToPlayer(ctx context.Context, id, playerID string, team monikers.Team) error {
	if !team.Valid() {
		return ErrInvalidTeam
	}
	_, err := s.update(ctx, id, func(r *monikers.Room) error {
		p, _ := r.PlayerByID(playerID)
		if p == nil {
			return ErrPlayerNotFound
		}
		if r.GameState != monikers.StateWaiting {
			return ErrWrongPhase
		}
		if !monikers.CanJoinTeam(r, playerID, team) {
			return ErrTeamFull
		}
		p.Team = team
		return nil
	})
	return err
}

func (s *Store) IsTeamAvailable(ctx context.Context, id string, team monikers.Team) (bool, error) {
	var ok bool
	err := s.read(ctx, func(rooms map[string]*monikers.Room) error {
		r, found := rooms[monikers.NormalizeID(id)]
		if !found {
			return ErrRoomNotFound
		}
		ok = team.Valid() && monikers.TeamCount(r, team) < monikers.MaxTeamSize(r)
		return nil
	})
	return ok, err
}

func (s *Store) AvailableTeams(ctx context.Context, id string) ([]monikers.Team, error) {
	var teams []monikers.Team
	err := s.read(ctx, func(rooms map[string]*monikers.Room) error {
		r, found := rooms[monikers.NormalizeID(id)]
		if !found {
			return ErrRoomNotFound
		}
		teams = monikers.AvailableTeams(r)
		return nil
	})
	return teams, err
}

// AllSelectedCards lists every player's selected cards in join order.
func (s *Store) AllSelectedCards(ctx context.Context, id string) ([]monikers.Card, error) {
	var cards []monikers.Card
	err := s.read(ctx, func(rooms map[string]*monikers.Room) error {
		r, found := rooms[monikers.NormalizeID(id)]
		if !found {
			return ErrRoomNotFound
		}
		cards = monikers.AllSelectedCards(r)
		return nil
	})
	return cards, err
}

// DeleteRoom removes the room and broadcasts room:deleted. Deleting a
// missing room broadcasts nothing.
func (s *Store) DeleteRoom(ctx context.Context, id string) error {
	return s.write(ctx, func(tx *txn) error {
		r, err := tx.room(id)
		if err != nil {
			return err
		}
		tx.remove(r.ID)
		return nil
	})
}

// ApplySnapshot installs a room received from another process, replacing
// the local copy wholesale. It is not re-broadcast.
func (s *Store) ApplySnapshot(ctx context.Context, room *monikers.Room) error {
	if room == nil {
		return nil
	}
	key := monikers.NormalizeID(room.ID)
	if key == "" {
		return ErrInvalidValue
	}
	return s.write(ctx, func(tx *txn) error {
		if cur, ok := tx.rooms[key]; ok && s.rejectStale && room.UpdatedAt < cur.UpdatedAt {
			return ErrStaleSnapshot
		}
		tx.rooms[key] = room.Clone()
		tx.dirty = true
		return nil
	})
}

// ApplyDeletion drops a room another process deleted. It is not
// re-broadcast and is a no-op when the room is already gone.
func (s *Store) ApplyDeletion(ctx context.Context, id string) error {
	return s.write(ctx, func(tx *txn) error {
		key := monikers.NormalizeID(id)
		if _, ok := tx.rooms[key]; !ok {
			return nil
		}
		delete(tx.rooms, key)
		tx.dirty = true
		return nil
	})
}
