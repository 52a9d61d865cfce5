package orch

import (
	"github.com/dkeye/Relay/internal/core"
	"github.com/dkeye/Relay/internal/domain"
	"github.com/rs/zerolog/log"
)

// CreateRoom registers a room owned by caller. An empty id means "pick one".
func (o *Orchestrator) CreateRoom(caller domain.UserID, id domain.RoomID) (core.RoomInfo, error) {
	if id == "" {
		id = domain.NewRoomID()
	}
	room, err := o.Rooms.Create(id, caller)
	if err != nil {
		return core.RoomInfo{}, err
	}
	meta := room.Room()
	return core.RoomInfo{ID: meta.ID, Owner: meta.Owner, Online: len(room.Online()), Connections: room.ConnCount()}, nil
}

// Kick closes every connection target has in the room. The target may rejoin.
func (o *Orchestrator) Kick(id domain.RoomID, caller, target domain.UserID) (int, error) {
	room, err := o.Rooms.GetOrCreate(id)
	if err != nil {
		return 0, err
	}
	if err := o.authorize(room, caller); err != nil {
		return 0, err
	}
	n := room.Kick(target)
	log.Info().Str("module", "app.orch").Str("room", string(id)).Str("by", string(caller)).Str("user", string(target)).Int("evicted", n).Msg("kick")
	return n, nil
}

// Ban records target in the room's ban set and closes their connections.
// Banning before the target ever joins is allowed.
func (o *Orchestrator) Ban(id domain.RoomID, caller, target domain.UserID) (int, error) {
	room, err := o.Rooms.GetOrCreate(id)
	if err != nil {
		return 0, err
	}
	if err := o.authorize(room, caller); err != nil {
		return 0, err
	}
	n := room.Ban(target)
	log.Info().Str("module", "app.orch").Str("room", string(id)).Str("by", string(caller)).Str("user", string(target)).Int("evicted", n).Msg("ban")
	return n, nil
}

func (o *Orchestrator) Destroy(id domain.RoomID, caller domain.UserID) error {
	room, ok := o.Rooms.Get(id)
	if !ok {
		return domain.ErrNotFound
	}
	if err := o.authorize(room, caller); err != nil {
		return err
	}
	if err := o.Rooms.Destroy(id); err != nil {
		return err
	}
	log.Info().Str("module", "app.orch").Str("room", string(id)).Str("by", string(caller)).Msg("destroy")
	return nil
}

// Online lists users with at least one live connection in the room.
func (o *Orchestrator) Online(id domain.RoomID, caller domain.UserID) ([]core.MemberDTO, error) {
	room, ok := o.Rooms.Get(id)
	if !ok {
		return nil, domain.ErrNotFound
	}
	if err := o.authorize(room, caller); err != nil {
		return nil, err
	}
	return room.Online(), nil
}
