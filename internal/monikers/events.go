package monikers

type EventKind string

const (
	EventUpdated EventKind = "room:updated"
	EventDeleted EventKind = "room:deleted"
	EventState   EventKind = "room:state"
)

func (k EventKind) Valid() bool {
	switch k {
	case EventUpdated, EventDeleted, EventState:
		return true
	}
	return false
}

// RoomEvent is the payload broadcast on a room channel. Room is nil for
// deletions.
type RoomEvent struct {
	RoomID string `json:"roomId"`
	Room   *Room  `json:"room"`
}
