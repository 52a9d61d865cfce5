package core

import (
	"time"

	"github.com/dkeye/Relay/internal/domain"
)

// PublishResult reports delivery stats of one fan-out pass.
type PublishResult struct {
	SendTo  int
	Dropped []ConnID
}

// MemberDTO is a read-only view for APIs (no transport fields).
type MemberDTO struct {
	ID       domain.UserID `json:"id"`
	Username string        `json:"username"`
	Avatar   string        `json:"avatar"`
	Devices  int           `json:"devices"`
	JoinedAt time.Time     `json:"joined_at"`
}

// RoomService is the core-facing API of a room.
// It owns the membership set but never touches transport resources.
type RoomService interface {
	Room() domain.Room
	State() domain.RoomState

	Join(conn Connection, user *domain.User) error
	Leave(conn Connection)
	Publish(from Connection, ev domain.Event) error

	Ban(user domain.UserID) int
	Kick(user domain.UserID) int
	Close(reason domain.CloseReason)

	Online() []MemberDTO
	IsOnline(user domain.UserID) bool
	IsBanned(user domain.UserID) bool
	History() []domain.Event
	ConnCount() int
}

type RoomInfo struct {
	ID          domain.RoomID `json:"id"`
	Owner       domain.UserID `json:"owner,omitempty"`
	Online      int           `json:"online"`
	Connections int           `json:"connections"`
}

type RoomManager interface {
	Create(id domain.RoomID, owner domain.UserID) (RoomService, error)
	GetOrCreate(id domain.RoomID) (RoomService, error)
	Get(id domain.RoomID) (RoomService, bool)
	Destroy(id domain.RoomID) error
	List() []RoomInfo
	CloseAll(reason domain.CloseReason)
}
