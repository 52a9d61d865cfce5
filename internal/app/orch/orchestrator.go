package orch

import (
	"github.com/dkeye/Relay/internal/core"
	"github.com/dkeye/Relay/internal/domain"
)

// Orchestrator is the owner-gated moderation surface the request layer calls into.
type Orchestrator struct {
	Rooms core.RoomManager
	// AllowOwnerless lets any authenticated caller moderate a room that has no
	// recorded owner (rooms materialised by a join before anyone created them).
	AllowOwnerless bool
}

func (o *Orchestrator) authorize(room core.RoomService, caller domain.UserID) error {
	meta := room.Room()
	if !meta.HasOwner() {
		if o.AllowOwnerless {
			return nil
		}
		return domain.ErrForbidden
	}
	if meta.Owner != caller {
		return domain.ErrForbidden
	}
	return nil
}

// CanModerate reports whether caller may moderate the active room id.
func (o *Orchestrator) CanModerate(id domain.RoomID, caller domain.UserID) error {
	room, ok := o.Rooms.Get(id)
	if !ok {
		return domain.ErrNotFound
	}
	return o.authorize(room, caller)
}
