package rooms

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/playperu/monikers/internal/bus"
	"github.com/playperu/monikers/internal/monikers"
	"github.com/playperu/monikers/internal/snapshot"
)

type recorder struct {
	mu   sync.Mutex
	msgs []bus.Message
	err  error
}

func (r *recorder) Publish(_ context.Context, msg bus.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.msgs = append(r.msgs, msg)
	return r.err
}

func (r *recorder) events() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.msgs))
	for i, m := range r.msgs {
		out[i] = m.Event
	}
	return out
}

func (r *recorder) last(t *testing.T) (bus.Message, monikers.RoomEvent) {
	t.Helper()
	r.mu.Lock()
	defer r.mu.Unlock()
	require.NotEmpty(t, r.msgs)
	msg := r.msgs[len(r.msgs)-1]
	var ev monikers.RoomEvent
	require.NoError(t, json.Unmarshal(msg.Data, &ev))
	return msg, ev
}

func (r *recorder) reset() {
	r.mu.Lock()
	r.msgs = nil
	r.mu.Unlock()
}

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

type harness struct {
	store *Store
	snap  *snapshot.Memory
	pub   *recorder
	clock *fakeClock
}

func newHarness(t *testing.T, opts ...Option) *harness {
	t.Helper()
	h := &harness{
		snap:  snapshot.NewMemory(),
		pub:   &recorder{},
		clock: &fakeClock{t: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)},
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	opts = append([]Option{WithClock(h.clock.now)}, opts...)
	h.store = New(h.snap, h.pub, logger, opts...)
	return h
}

// twoPlayerRoom creates Alice's room with {players:2, cardsPerPlayer:1}
// and seats Bob.
func (h *harness) twoPlayerRoom(t *testing.T) (roomID, alice, bob string) {
	t.Helper()
	ctx := context.Background()
	r, err := h.store.CreateRoom(ctx, "Alice", monikers.DeviceDesktop, monikers.Settings{PlayerCount: 2, CardsPerPlayer: 1})
	require.NoError(t, err)
	p, err := h.store.JoinRoom(ctx, r.ID, "Bob", monikers.DeviceMobile)
	require.NoError(t, err)
	return r.ID, r.HostID, p.ID
}

// playing drives a two-player room into the playing phase with Alice
// holding Pizza (level 3) and Bob holding Guitar (level 2).
func (h *harness) playing(t *testing.T) (roomID, alice, bob string) {
	t.Helper()
	ctx := context.Background()
	roomID, alice, bob = h.twoPlayerRoom(t)
	require.NoError(t, h.store.AssignTeamToPlayer(ctx, roomID, bob, monikers.Team2))
	_, err := h.store.StartCardSelection(ctx, roomID, alice)
	require.NoError(t, err)
	_, err = h.store.ConfirmSelection(ctx, roomID, alice, []monikers.Card{{Text: "Pizza", Level: 3}})
	require.NoError(t, err)
	r, err := h.store.ConfirmSelection(ctx, roomID, bob, []monikers.Card{{Text: "Guitar", Level: 2}})
	require.NoError(t, err)
	require.Equal(t, monikers.StatePlaying, r.GameState)
	return roomID, alice, bob
}

func hostCount(r *monikers.Room) int {
	n := 0
	for _, p := range r.Players {
		if p.IsHost {
			n++
		}
	}
	return n
}

func TestCreateAndJoin(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	roomID, alice, bob := h.twoPlayerRoom(t)

	rooms, err := h.store.GetAllRooms(ctx)
	require.NoError(t, err)
	require.Len(t, rooms, 1)

	r := rooms[0]
	assert.Equal(t, roomID, r.ID)
	assert.Len(t, r.ID, 8)
	assert.Equal(t, monikers.StateWaiting, r.GameState)
	assert.Equal(t, 1, r.CurrentRound)
	require.Len(t, r.Players, 2)

	host, _ := r.PlayerByID(alice)
	require.NotNil(t, host)
	assert.True(t, host.IsHost)
	assert.Equal(t, monikers.Team1, host.Team)
	assert.Equal(t, alice, r.HostID)

	joined, _ := r.PlayerByID(bob)
	require.NotNil(t, joined)
	assert.Equal(t, monikers.TeamNone, joined.Team)
	assert.False(t, joined.IsHost)
	assert.Equal(t, monikers.DeviceMobile, joined.DeviceType)

	assert.Equal(t, []string{"room:updated", "room:updated"}, h.pub.events())
	msg, ev := h.pub.last(t)
	assert.Equal(t, monikers.ChannelName(roomID), msg.Channel)
	assert.Equal(t, roomID, ev.RoomID)
	require.NotNil(t, ev.Room)
	assert.Len(t, ev.Room.Players, 2)
}

func TestCreateRoomDefaults(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)

	r, err := h.store.CreateRoom(ctx, "  Alice ", "", monikers.Settings{})
	require.NoError(t, err)
	assert.Equal(t, monikers.DefaultSettings(), r.Settings)
	assert.Equal(t, "Alice", r.Players[0].Name)
	assert.Equal(t, monikers.DeviceDesktop, r.Players[0].DeviceType)

	_, err = h.store.CreateRoom(ctx, " ", "", monikers.Settings{})
	assert.ErrorIs(t, err, ErrInvalidName)

	_, err = h.store.CreateRoom(ctx, "Carol", "", monikers.Settings{PlayerCount: 13, CardsPerPlayer: 1})
	assert.ErrorIs(t, err, ErrInvalidSettings)
	assert.ErrorIs(t, err, ErrRejected)
}

func TestCreateRoomDebounce(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)

	first, err := h.store.CreateRoom(ctx, "Alice", "", monikers.Settings{})
	require.NoError(t, err)

	h.clock.advance(100 * time.Millisecond)
	again, err := h.store.CreateRoom(ctx, "alice", "", monikers.Settings{})
	require.NoError(t, err)
	assert.Equal(t, first.ID, again.ID, "double submit should return the same room")

	other, err := h.store.CreateRoom(ctx, "Bob", "", monikers.Settings{})
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, other.ID)

	h.clock.advance(DefaultDebounce)
	later, err := h.store.CreateRoom(ctx, "Bob", "", monikers.Settings{})
	require.NoError(t, err)
	assert.NotEqual(t, other.ID, later.ID)

	rooms, _ := h.store.GetAllRooms(ctx)
	assert.Len(t, rooms, 3)
}

func TestJoinRejections(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	r, err := h.store.CreateRoom(ctx, "Alice", "", monikers.Settings{PlayerCount: 3, CardsPerPlayer: 1})
	require.NoError(t, err)

	_, err = h.store.JoinRoom(ctx, r.ID, "ALICE", monikers.DeviceMobile)
	assert.ErrorIs(t, err, ErrNameTaken)

	_, err = h.store.JoinRoom(ctx, "missing", "Bob", monikers.DeviceMobile)
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = h.store.JoinRoom(ctx, r.ID, "Bob", monikers.DeviceMobile)
	require.NoError(t, err)
	_, err = h.store.JoinRoom(ctx, r.ID, "Carol", monikers.DeviceMobile)
	require.NoError(t, err)
	_, err = h.store.JoinRoom(ctx, r.ID, "Dave", monikers.DeviceMobile)
	assert.ErrorIs(t, err, ErrRoomFull)

	// Room ids are case-insensitive.
	got, err := h.store.GetRoom(ctx, "  "+strings.ToUpper(r.ID)+" ")
	require.NoError(t, err)
	assert.Len(t, got.Players, 3)
}

func TestJoinAfterStartRejected(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	roomID, alice, _ := h.twoPlayerRoom(t)
	_, err := h.store.UpdateSettings(ctx, roomID, SettingsPatch{PlayerCount: ptr(3)})
	require.NoError(t, err)

	_, err = h.store.StartCardSelection(ctx, roomID, alice)
	require.NoError(t, err)

	_, err = h.store.JoinRoom(ctx, roomID, "Carol", monikers.DeviceMobile)
	assert.ErrorIs(t, err, ErrWrongPhase)
}

func ptr[T any](v T) *T { return &v }

func TestAssignTeamBalance(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	roomID, _, bob := h.twoPlayerRoom(t)

	err := h.store.AssignTeamToPlayer(ctx, roomID, bob, monikers.Team1)
	assert.ErrorIs(t, err, ErrTeamFull)
	assert.ErrorIs(t, err, ErrRejected)

	ok, err := h.store.IsTeamAvailable(ctx, roomID, monikers.Team1)
	require.NoError(t, err)
	assert.False(t, ok)

	teams, err := h.store.AvailableTeams(ctx, roomID)
	require.NoError(t, err)
	assert.Equal(t, []monikers.Team{monikers.Team2}, teams)

	require.NoError(t, h.store.AssignTeamToPlayer(ctx, roomID, bob, monikers.Team2))

	r, err := h.store.GetRoom(ctx, roomID)
	require.NoError(t, err)
	c1, c2 := monikers.TeamCount(r, monikers.Team1), monikers.TeamCount(r, monikers.Team2)
	assert.LessOrEqual(t, abs(c1-c2), 1)

	assert.ErrorIs(t, h.store.AssignTeamToPlayer(ctx, roomID, "ghost", monikers.Team2), ErrPlayerNotFound)
	assert.ErrorIs(t, h.store.AssignTeamToPlayer(ctx, roomID, bob, "team3"), ErrInvalidTeam)
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}

func TestLeaveRoomPromotesHost(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	roomID, alice, bob := h.twoPlayerRoom(t)
	require.NoError(t, h.store.AssignTeamToPlayer(ctx, roomID, bob, monikers.Team2))

	require.NoError(t, h.store.LeaveRoom(ctx, roomID, alice))

	r, err := h.store.GetRoom(ctx, roomID)
	require.NoError(t, err)
	require.Len(t, r.Players, 1)
	assert.Equal(t, bob, r.HostID)
	assert.True(t, r.Players[0].IsHost)
	assert.Equal(t, monikers.Team1, r.Players[0].Team)
	assert.Equal(t, 1, hostCount(r))

	assert.ErrorIs(t, h.store.LeaveRoom(ctx, roomID, alice), ErrPlayerNotFound)

	h.pub.reset()
	require.NoError(t, h.store.LeaveRoom(ctx, roomID, bob))
	_, err = h.store.GetRoom(ctx, roomID)
	assert.ErrorIs(t, err, ErrNotFound)

	msg, ev := h.pub.last(t)
	assert.Equal(t, "room:deleted", msg.Event)
	assert.Nil(t, ev.Room)
}

func TestDeleteRoom(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	roomID, _, _ := h.twoPlayerRoom(t)
	h.pub.reset()

	err := h.store.DeleteRoom(ctx, "nope1234")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Empty(t, h.pub.events(), "deleting a missing room must not broadcast")

	require.NoError(t, h.store.DeleteRoom(ctx, roomID))
	_, err = h.store.GetRoom(ctx, roomID)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Equal(t, []string{"room:deleted"}, h.pub.events())
}

func TestFieldUpdatesMissingRoom(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)

	tests := []struct {
		name string
		op   func() error
	}{
		{"game state", func() error { return h.store.UpdateGameState(ctx, "x", monikers.StateCardSelection) }},
		{"player cards", func() error { return h.store.UpdatePlayerCards(ctx, "x", "p", nil) }},
		{"current player", func() error { return h.store.UpdateCurrentPlayer(ctx, "x", 0) }},
		{"scores", func() error { return h.store.UpdateScores(ctx, "x", monikers.NewScores()) }},
		{"round", func() error { return h.store.UpdateCurrentRound(ctx, "x", 1) }},
		{"team", func() error { return h.store.UpdateCurrentTeam(ctx, "x", monikers.Team1) }},
		{"timer", func() error { return h.store.UpdateTimer(ctx, "x", 10) }},
		{"round status", func() error { return h.store.UpdateRoundStatus(ctx, "x", true, true) }},
		{"used cards", func() error { return h.store.UpdateUsedCards(ctx, "x", nil) }},
		{"current card", func() error { return h.store.UpdateCurrentCard(ctx, "x", nil) }},
		{"player timer", func() error { return h.store.UpdatePlayerTimer(ctx, "x", "p", 10) }},
		{"skip count", func() error { return h.store.UpdatePlayerSkipCount(ctx, "x", "p", 1) }},
		{"turn started", func() error { return h.store.UpdateTurnStarted(ctx, "x", true) }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, tt.op(), ErrNotFound)
		})
	}
	assert.Empty(t, h.pub.events())
}

func TestFieldUpdatesBumpUpdatedAt(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	roomID, _, bob := h.twoPlayerRoom(t)

	before, _ := h.store.GetRoom(ctx, roomID)
	require.NoError(t, h.store.UpdateTimer(ctx, roomID, 42))
	require.NoError(t, h.store.UpdatePlayerTimer(ctx, roomID, bob, 30))
	require.NoError(t, h.store.UpdatePlayerSkipCount(ctx, roomID, bob, 1))
	require.NoError(t, h.store.UpdateTurnStarted(ctx, roomID, true))

	after, _ := h.store.GetRoom(ctx, roomID)
	assert.Greater(t, after.UpdatedAt, before.UpdatedAt)
	assert.Equal(t, 42, after.Timer)
	assert.Equal(t, 30, after.PlayerTimers.Get(bob, 0))
	assert.Equal(t, 1, after.PlayerSkipCounts.Get(bob, 0))
	assert.True(t, after.TurnStarted)

	assert.ErrorIs(t, h.store.UpdatePlayerSkipCount(ctx, roomID, bob, 3), ErrInvalidValue)
	assert.ErrorIs(t, h.store.UpdateCurrentPlayer(ctx, roomID, 5), ErrInvalidValue)
}

func TestGameStateMonotonic(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	roomID, _, _ := h.twoPlayerRoom(t)

	require.NoError(t, h.store.UpdateGameState(ctx, roomID, monikers.StateFinished))
	msg, _ := h.pub.last(t)
	assert.Equal(t, "room:state", msg.Event)

	for _, s := range []monikers.GameState{monikers.StateWaiting, monikers.StateCardSelection, monikers.StatePlaying, monikers.StateFinished} {
		assert.ErrorIs(t, h.store.UpdateGameState(ctx, roomID, s), ErrWrongPhase, "transition to %s", s)
	}
	r, _ := h.store.GetRoom(ctx, roomID)
	assert.Equal(t, monikers.StateFinished, r.GameState)
}

func TestUpdateScoresAppendOnly(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	roomID, _, _ := h.twoPlayerRoom(t)

	pizza := monikers.Card{ID: "Pizza", Text: "Pizza", Round: 1, Level: 3}
	guitar := monikers.Card{ID: "Guitar", Text: "Guitar", Round: 1, Level: 2}

	grown := monikers.Scores{monikers.Team1: {1: {pizza}}, monikers.Team2: {}}
	require.NoError(t, h.store.UpdateScores(ctx, roomID, grown))

	grown[monikers.Team1][1] = append(grown[monikers.Team1][1], guitar)
	require.NoError(t, h.store.UpdateScores(ctx, roomID, grown))

	rewritten := monikers.Scores{monikers.Team1: {1: {guitar}}, monikers.Team2: {}}
	assert.ErrorIs(t, h.store.UpdateScores(ctx, roomID, rewritten), ErrScoresRewrite)

	r, _ := h.store.GetRoom(ctx, roomID)
	assert.Len(t, r.Scores[monikers.Team1][1], 2)
}

func TestUpdateSettings(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	roomID, _, _ := h.twoPlayerRoom(t)

	r, err := h.store.UpdateSettings(ctx, roomID, SettingsPatch{CardsPerPlayer: ptr(3)})
	require.NoError(t, err)
	assert.Equal(t, monikers.Settings{PlayerCount: 2, CardsPerPlayer: 3}, r.Settings)

	_, err = h.store.UpdateSettings(ctx, roomID, SettingsPatch{PlayerCount: ptr(1)})
	assert.ErrorIs(t, err, ErrInvalidSettings)
	_, err = h.store.UpdateSettings(ctx, roomID, SettingsPatch{CardsPerPlayer: ptr(11)})
	assert.ErrorIs(t, err, ErrInvalidSettings)
}

func TestApplySnapshotIdempotent(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	roomID, _, _ := h.twoPlayerRoom(t)
	h.pub.reset()

	incoming, err := h.store.GetRoom(ctx, roomID)
	require.NoError(t, err)
	incoming.Timer = 17
	incoming.UpdatedAt += 1000

	require.NoError(t, h.store.ApplySnapshot(ctx, incoming))
	once, err := h.snap.Load(ctx)
	require.NoError(t, err)

	require.NoError(t, h.store.ApplySnapshot(ctx, incoming))
	twice, err := h.snap.Load(ctx)
	require.NoError(t, err)

	if diff := cmp.Diff(once, twice); diff != "" {
		t.Errorf("second apply changed state (-once +twice):\n%s", diff)
	}
	assert.Equal(t, 17, twice[roomID].Timer)
	assert.Empty(t, h.pub.events(), "applied snapshots are not re-broadcast")

	require.NoError(t, h.store.ApplySnapshot(ctx, nil))
}

func TestApplySnapshotStale(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name        string
		rejectStale bool
		wantTimer   int
		wantErr     error
	}{
		{"last delivery wins", false, 5, nil},
		{"stale rejected", true, 42, ErrStaleSnapshot},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, WithRejectStale(tt.rejectStale))
			roomID, _, _ := h.twoPlayerRoom(t)

			old, _ := h.store.GetRoom(ctx, roomID)
			old.Timer = 5
			require.NoError(t, h.store.UpdateTimer(ctx, roomID, 42))

			err := h.store.ApplySnapshot(ctx, old)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			} else {
				assert.NoError(t, err)
			}
			r, _ := h.store.GetRoom(ctx, roomID)
			assert.Equal(t, tt.wantTimer, r.Timer)
		})
	}
}

func TestApplyDeletion(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	roomID, _, _ := h.twoPlayerRoom(t)
	h.pub.reset()

	require.NoError(t, h.store.ApplyDeletion(ctx, roomID))
	require.NoError(t, h.store.ApplyDeletion(ctx, roomID))
	_, err := h.store.GetRoom(ctx, roomID)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Empty(t, h.pub.events())
}

func TestPublishFailureKeepsLocalChange(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	h.pub.err = errors.New("bus down")

	r, err := h.store.CreateRoom(ctx, "Alice", "", monikers.Settings{})
	require.NoError(t, err)
	_, err = h.store.JoinRoom(ctx, r.ID, "Bob", "")
	require.NoError(t, err)

	got, err := h.store.GetRoom(ctx, r.ID)
	require.NoError(t, err)
	assert.Len(t, got.Players, 2)
}

func TestStoresAreIsolated(t *testing.T) {
	ctx := context.Background()
	a := newHarness(t)
	b := newHarness(t)

	_, err := a.store.CreateRoom(ctx, "Alice", "", monikers.Settings{})
	require.NoError(t, err)

	rooms, err := b.store.GetAllRooms(ctx)
	require.NoError(t, err)
	assert.Empty(t, rooms)
}

func TestSharedSnapshotVisibleAcrossStores(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	other := New(h.snap, nil, slog.New(slog.NewTextHandler(io.Discard, nil)))

	r, err := h.store.CreateRoom(ctx, "Alice", "", monikers.Settings{})
	require.NoError(t, err)

	got, err := other.GetRoom(ctx, r.ID)
	require.NoError(t, err)
	assert.Equal(t, "Alice", got.Players[0].Name)
}

func TestSweep(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	stale, _, _ := h.twoPlayerRoom(t)

	h.clock.advance(2 * time.Hour)
	fresh, err := h.store.CreateRoom(ctx, "Carol", "", monikers.Settings{})
	require.NoError(t, err)
	h.pub.reset()

	n, err := h.store.Sweep(ctx, time.Hour)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	_, err = h.store.GetRoom(ctx, stale)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = h.store.GetRoom(ctx, fresh.ID)
	assert.NoError(t, err)
	assert.Equal(t, []string{"room:deleted"}, h.pub.events())
}

func TestRunSweeperStopsOnCancel(t *testing.T) {
	h := newHarness(t)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- h.store.RunSweeper(ctx, time.Millisecond, time.Hour) }()
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("sweeper did not stop")
	}
}
