package domain

import (
	"github.com/google/uuid"
)

type RoomID string

func (id RoomID) String() string { return string(id) }

// RoomState is stored once per registry entry; a missing entry means the id was never seen.
type RoomState int

const (
	RoomActive RoomState = iota
	RoomTombstoned
)

func (s RoomState) String() string {
	switch s {
	case RoomActive:
		return "active"
	case RoomTombstoned:
		return "tombstoned"
	default:
		return "unknown"
	}
}

// ParseRoomID accepts any UUID spelling google/uuid understands and returns
// the canonical lowercase form, so "A1B2..." and "a1b2..." name the same room.
func ParseRoomID(raw string) (RoomID, error) {
	id, err := uuid.Parse(raw)
	if err != nil {
		return "", ErrInvalidRoom
	}
	return RoomID(id.String()), nil
}

// NewRoomID returns a fresh random room id.
func NewRoomID() RoomID {
	return RoomID(uuid.NewString())
}

type Room struct {
	ID    RoomID `json:"id"`
	Owner UserID `json:"owner,omitempty"`
}

// HasOwner is false for rooms a join materialised before anyone created them.
func (r Room) HasOwner() bool { return r.Owner != "" }
