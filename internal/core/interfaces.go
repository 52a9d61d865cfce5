package core

import (
	"time"

	"github.com/dkeye/Relay/internal/domain"
)

// EventSink receives every event appended to a room's history.
// Record is called under the room lock and must not block.
type EventSink interface {
	Record(room domain.RoomID, ev domain.Event)
}

// EvictionPolicy picks the close reason for a connection whose send failed during fan-out.
type EvictionPolicy interface {
	OnSendFailure(err error) domain.CloseReason
}

// RoomOptions configures rooms created by a RoomManager.
type RoomOptions struct {
	HistoryLimit int
	Policy       EvictionPolicy
	Sink         EventSink
	Now          func() time.Time
}

const DefaultHistoryLimit = 200

func (o RoomOptions) withDefaults() RoomOptions {
	if o.HistoryLimit <= 0 {
		o.HistoryLimit = DefaultHistoryLimit
	}
	if o.Policy == nil {
		o.Policy = evictAll{}
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	return o
}

type evictAll struct{}

func (evictAll) OnSendFailure(error) domain.CloseReason { return domain.ReasonServerError }
