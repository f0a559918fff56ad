package server

import (
	"bufio"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/playperu/monikers/internal/bus"
	"github.com/playperu/monikers/internal/monikers"
	"github.com/playperu/monikers/internal/realtime"
	"github.com/playperu/monikers/internal/rooms"
	"github.com/playperu/monikers/internal/snapshot"
)

func readEvent(t *testing.T, sc *bufio.Scanner) StreamEvent {
	t.Helper()
	for sc.Scan() {
		line := sc.Text()
		data, ok := strings.CutPrefix(line, "data: ")
		if !ok {
			continue
		}
		var ev StreamEvent
		if err := json.Unmarshal([]byte(data), &ev); err != nil {
			t.Fatalf("decoding %q: %v", data, err)
		}
		return ev
	}
	t.Fatalf("stream ended: %v", sc.Err())
	return StreamEvent{}
}

func TestEventsStream(t *testing.T) {
	e := newTestEnv(t)
	srv := httptest.NewServer(e.handler)
	defer srv.Close()

	ctx := context.Background()
	room, err := e.store.CreateRoom(ctx, "Alice", "", monikers.Settings{PlayerCount: 2, CardsPerPlayer: 1})
	if err != nil {
		t.Fatalf("CreateRoom: %v", err)
	}

	resp, err := http.Get(srv.URL + "/rooms/" + room.ID + "/events")
	if err != nil {
		t.Fatalf("GET events: %v", err)
	}
	defer resp.Body.Close()

	if got := resp.Header.Get("Content-Type"); got != "text/event-stream" {
		t.Fatalf("content-type = %q", got)
	}
	sc := bufio.NewScanner(resp.Body)

	first := readEvent(t, sc)
	if first.Type != streamRoomState || first.Data == nil || first.Data.ID != room.ID {
		t.Fatalf("first event = %+v, want room-state", first)
	}

	if _, err := e.store.JoinRoom(ctx, room.ID, "Bob", ""); err != nil {
		t.Fatalf("JoinRoom: %v", err)
	}
	for {
		ev := readEvent(t, sc)
		if ev.Type != streamRoomUpdate {
			t.Fatalf("event = %q, want room-update", ev.Type)
		}
		if len(ev.Data.Players) == 2 {
			break
		}
	}

	if err := e.store.DeleteRoom(ctx, room.ID); err != nil {
		t.Fatalf("DeleteRoom: %v", err)
	}
	for {
		ev := readEvent(t, sc)
		if ev.Type == streamRoomDeleted {
			break
		}
	}
	for sc.Scan() {
		if sc.Text() != "" {
			t.Fatalf("stream kept going after room-deleted: %q", sc.Text())
		}
	}
}

func TestEventsStreamUnknownRoom(t *testing.T) {
	e := newTestEnv(t)
	rec := e.do(t, http.MethodGet, "/rooms/nope/events", nil)
	expectStatus(t, rec, http.StatusNotFound)
}

func TestWSRequiresChannel(t *testing.T) {
	e := newTestEnv(t)
	rec := e.do(t, http.MethodGet, "/ws", nil)
	expectStatus(t, rec, http.StatusBadRequest)
}

func TestWSStreamsChannel(t *testing.T) {
	e := newTestEnv(t)
	srv := httptest.NewServer(e.handler)
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	wsURL := "ws" + srv.URL[len("http"):] + "/ws?channel=room-abc"
	conn, _, err := websocket.Dial(ctx, wsURL, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.CloseNow()

	if n := e.broker.Subscribers("room-abc"); n != 1 {
		t.Fatalf("subscribers = %d, want 1", n)
	}

	// A broadcast on another channel must not leak through.
	for _, msg := range []bus.Message{
		{Channel: "room-xyz", Event: "room:updated", Data: json.RawMessage(`{}`)},
		{Channel: "room-abc", Event: "room:deleted", Data: json.RawMessage(`{"roomId":"abc","room":null}`)},
	} {
		rec := e.do(t, http.MethodPost, "/broadcast", msg)
		expectStatus(t, rec, http.StatusOK)
	}

	var got bus.Message
	if err := wsjson.Read(ctx, conn, &got); err != nil {
		t.Fatalf("read: %v", err)
	}
	if got.Channel != "room-abc" || got.Event != "room:deleted" {
		t.Fatalf("got %+v", got)
	}

	conn.Close(websocket.StatusNormalClosure, "done")
}

// A remote player's mutations reach a second process through the WebSocket
// push path and land in its local store.
func TestPushOverWebSocket(t *testing.T) {
	e := newTestEnv(t)
	srv := httptest.NewServer(e.handler)
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	room, err := e.store.CreateRoom(ctx, "Alice", "", monikers.Settings{PlayerCount: 2, CardsPerPlayer: 1})
	if err != nil {
		t.Fatalf("CreateRoom: %v", err)
	}

	local := rooms.New(snapshot.NewMemory(), nil, quietLogger())
	obs := realtime.NewPush(bus.NewWSSubscriber(srv.URL), local, quietLogger(), 20*time.Millisecond)

	events := make(chan string, 64)
	done := make(chan error, 1)
	go func() {
		done <- obs.Observe(ctx, room.ID, realtime.Callbacks{
			OnUpdate:  func(*monikers.Room) { events <- "update" },
			OnState:   func(*monikers.Room) { events <- "state" },
			OnDeleted: func(string) { events <- "deleted" },
			OnStatus: func(s realtime.Status) {
				if s == realtime.StatusConnected {
					events <- "connected"
				}
			},
		})
	}()

	await := func(want string) {
		t.Helper()
		for {
			select {
			case got := <-events:
				if got == want {
					return
				}
			case <-ctx.Done():
				t.Fatalf("timed out waiting for %s", want)
			}
		}
	}

	await("connected")
	if _, err := e.store.JoinRoom(ctx, room.ID, "Bob", ""); err != nil {
		t.Fatalf("JoinRoom: %v", err)
	}
	await("update")

	mirrored, err := local.GetRoom(ctx, room.ID)
	if err != nil {
		t.Fatalf("local GetRoom: %v", err)
	}
	if len(mirrored.Players) != 2 {
		t.Fatalf("mirrored players = %d, want 2", len(mirrored.Players))
	}

	if _, err := e.store.StartCardSelection(ctx, room.ID, room.HostID); err != nil {
		t.Fatalf("StartCardSelection: %v", err)
	}
	await("state")

	if err := e.store.DeleteRoom(ctx, room.ID); err != nil {
		t.Fatalf("DeleteRoom: %v", err)
	}
	await("deleted")

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Observe: %v", err)
		}
	case <-ctx.Done():
		t.Fatal("observer did not stop after deletion")
	}
	if _, err := local.GetRoom(ctx, room.ID); err == nil {
		t.Fatal("local copy survived deletion")
	}
}

func TestPollOverHTTPSource(t *testing.T) {
	e := newTestEnv(t)
	srv := httptest.NewServer(e.handler)
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	room, err := e.store.CreateRoom(ctx, "Alice", "", monikers.Settings{PlayerCount: 2, CardsPerPlayer: 1})
	if err != nil {
		t.Fatalf("CreateRoom: %v", err)
	}

	local := rooms.New(snapshot.NewMemory(), nil, quietLogger())
	obs := realtime.NewPoll(realtime.NewHTTPSource(srv.URL, nil), local, quietLogger(), 10*time.Millisecond)

	deleted := make(chan struct{})
	done := make(chan error, 1)
	go func() {
		done <- obs.Observe(ctx, strings.ToUpper(room.ID), realtime.Callbacks{
			OnDeleted: func(string) { close(deleted) },
		})
	}()

	deadline := time.Now().Add(3 * time.Second)
	for {
		if _, err := local.GetRoom(ctx, room.ID); err == nil {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("room never mirrored")
		}
		time.Sleep(5 * time.Millisecond)
	}

	if err := e.store.DeleteRoom(ctx, room.ID); err != nil {
		t.Fatalf("DeleteRoom: %v", err)
	}
	select {
	case <-deleted:
	case <-ctx.Done():
		t.Fatal("deletion not observed")
	}
	if err := <-done; err != nil {
		t.Fatalf("Observe: %v", err)
	}
}
