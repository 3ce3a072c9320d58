package domain

import (
	"time"
)

// RoomIDPrefix is the prefix for room IDs.
const RoomIDPrefix = "pmrm-"

// RoomState is the lifecycle state of a room.
type RoomState string

const (
	RoomActive RoomState = "active"
	RoomClosed RoomState = "closed"
)

// Room pairs exactly two sessions.
type Room struct {
	// ID is the unique identifier for the room.
	// Format: pmrm-{ulid_lowercase}, 31 characters total.
	ID string `json:"id"`

	// Members holds the two session IDs in pairing order.
	Members [2]string `json:"members"`

	// State is active until either member leaves or expires.
	State RoomState `json:"state"`

	// CreatedAt is the pairing timestamp (Unix milliseconds).
	CreatedAt int64 `json:"created_at"`

	// ClosedAt is set when the room closes (Unix milliseconds).
	ClosedAt int64 `json:"closed_at,omitempty"`
}

// NewRoom creates an active room for sessions a and b.
func NewRoom(a, b string, now time.Time) (*Room, error) {
	if a == "" || b == "" || a == b {
		return nil, ErrInvalidArgument.WithDetails("room needs two distinct sessions")
	}
	id, err := GenerateRoomID()
	if err != nil {
		return nil, err
	}
	return &Room{
		ID:        id,
		Members:   [2]string{a, b},
		State:     RoomActive,
		CreatedAt: now.UnixMilli(),
	}, nil
}

// GenerateRoomID generates a new room ID using ULID.
func GenerateRoomID() (string, error) {
	return generateID(RoomIDPrefix)
}

// IsValidRoomID checks if a string is a valid room ID format.
func IsValidRoomID(id string) bool {
	return isValidID(id, RoomIDPrefix)
}

// Has reports whether sessionID is a member.
func (r *Room) Has(sessionID string) bool {
	return r.Members[0] == sessionID || r.Members[1] == sessionID
}

// Peer returns the other member of the room.
func (r *Room) Peer(sessionID string) (string, bool) {
	switch sessionID {
	case r.Members[0]:
		return r.Members[1], true
	case r.Members[1]:
		return r.Members[0], true
	}
	return "", false
}

// IsActive reports whether the room still relays.
func (r *Room) IsActive() bool {
	return r.State == RoomActive
}

// Close marks the room closed. It returns false if it was already closed.
func (r *Room) Close(now time.Time) bool {
	if r.State == RoomClosed {
		return false
	}
	r.State = RoomClosed
	r.ClosedAt = now.UnixMilli()
	return true
}
