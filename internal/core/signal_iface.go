package core

import (
	"errors"

	"github.com/dkeye/Relay/internal/domain"
	"github.com/google/uuid"
)

// Frame is one encoded outbound event.
type Frame []byte

type ConnID string

func NewConnID() ConnID { return ConnID(uuid.NewString()) }

var (
	ErrBackpressure = errors.New("backpressure")
	ErrConnClosed   = errors.New("connection closed")
)

// Connection is a live socket as a room sees it.
// Owned by the adapter; rooms only enqueue frames and request eviction.
type Connection interface {
	ID() ConnID
	// TrySend enqueues without blocking. ErrBackpressure when the queue is full,
	// ErrConnClosed after eviction.
	TrySend(Frame) error
	// Evict asks the adapter to close with reason. It must not block and only the
	// first call wins.
	Evict(domain.CloseReason)
}
