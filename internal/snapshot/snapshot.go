// Package snapshot persists the whole room map under one namespaced key.
package snapshot

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/playperu/monikers/internal/monikers"
)

// DefaultNamespace is the key the room map lives under.
const DefaultNamespace = "monikers_rooms"

// Snapshotter loads and stores the room map as a single JSON object keyed
// by room id.
type Snapshotter interface {
	Load(ctx context.Context) (map[string]*monikers.Room, error)
	Save(ctx context.Context, rooms map[string]*monikers.Room) error
	Check(ctx context.Context) error
}

func encode(rooms map[string]*monikers.Room) ([]byte, error) {
	if rooms == nil {
		rooms = map[string]*monikers.Room{}
	}
	data, err := json.Marshal(rooms)
	if err != nil {
		return nil, fmt.Errorf("encoding snapshot: %w", err)
	}
	return data, nil
}

func decode(data []byte) (map[string]*monikers.Room, error) {
	rooms := make(map[string]*monikers.Room)
	if len(data) == 0 {
		return rooms, nil
	}
	if err := json.Unmarshal(data, &rooms); err != nil {
		return nil, fmt.Errorf("decoding snapshot: %w", err)
	}
	for id, r := range rooms {
		if r == nil {
			delete(rooms, id)
		}
	}
	return rooms, nil
}

// Memory keeps the encoded snapshot in process. Every Load returns fresh
// copies, the same as a real backend would.
type Memory struct {
	mu   sync.Mutex
	data []byte
}

func NewMemory() *Memory {
	return &Memory{}
}

func (m *Memory) Load(_ context.Context) (map[string]*monikers.Room, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return decode(m.data)
}

func (m *Memory) Save(_ context.Context, rooms map[string]*monikers.Room) error {
	data, err := encode(rooms)
	if err != nil {
		return err
	}
	m.mu.Lock()
	m.data = data
	m.mu.Unlock()
	return nil
}

func (m *Memory) Check(_ context.Context) error { return nil }
