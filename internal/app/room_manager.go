package app

import (
	"sync"

	"github.com/dkeye/Relay/internal/core"
	"github.com/dkeye/Relay/internal/domain"
	"github.com/rs/zerolog/log"
	"github.com/sourcegraph/conc/pool"
)

type roomEntry struct {
	state domain.RoomState
	room  core.RoomService
}

// RoomRegistry maps room ids to rooms. Its lock only guards the id table;
// per-room work happens under each room's own lock.
type RoomRegistry struct {
	mu    sync.RWMutex
	rooms map[domain.RoomID]*roomEntry
	opts  core.RoomOptions
}

func NewRoomRegistry(opts core.RoomOptions) *RoomRegistry {
	return &RoomRegistry{
		rooms: make(map[domain.RoomID]*roomEntry),
		opts:  opts,
	}
}

// Create registers id with owner. An existing active room is returned as is,
// keeping its original owner.
func (f *RoomRegistry) Create(id domain.RoomID, owner domain.UserID) (core.RoomService, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if e, ok := f.rooms[id]; ok {
		if e.state == domain.RoomTombstoned {
			return nil, domain.ErrRoomTombstoned
		}
		return e.room, nil
	}
	room := core.NewRoomService(domain.Room{ID: id, Owner: owner}, f.opts)
	f.rooms[id] = &roomEntry{state: domain.RoomActive, room: room}
	log.Info().Str("module", "app.rooms").Str("room", string(id)).Str("owner", string(owner)).Msg("room created")
	return room, nil
}

// GetOrCreate materialises an ownerless room the first time id is referenced.
func (f *RoomRegistry) GetOrCreate(id domain.RoomID) (core.RoomService, error) {
	f.mu.RLock()
	e, ok := f.rooms[id]
	f.mu.RUnlock()
	if ok {
		if e.state == domain.RoomTombstoned {
			return nil, domain.ErrRoomTombstoned
		}
		return e.room, nil
	}
	return f.Create(id, "")
}

// Get returns only active rooms.
func (f *RoomRegistry) Get(id domain.RoomID) (core.RoomService, bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	e, ok := f.rooms[id]
	if !ok || e.state != domain.RoomActive {
		return nil, false
	}
	return e.room, true
}

// Destroy tombstones id forever and evicts every connection in the room.
func (f *RoomRegistry) Destroy(id domain.RoomID) error {
	f.mu.Lock()
	e, ok := f.rooms[id]
	if !ok || e.state == domain.RoomTombstoned {
		f.mu.Unlock()
		return domain.ErrNotFound
	}
	room := e.room
	e.state = domain.RoomTombstoned
	e.room = nil
	f.mu.Unlock()

	room.Close(domain.ReasonRoomTombstoned)
	log.Info().Str("module", "app.rooms").Str("room", string(id)).Msg("room destroyed")
	return nil
}

func (f *RoomRegistry) List() []core.RoomInfo {
	f.mu.RLock()
	rooms := make([]core.RoomService, 0, len(f.rooms))
	for _, e := range f.rooms {
		if e.state == domain.RoomActive {
			rooms = append(rooms, e.room)
		}
	}
	f.mu.RUnlock()

	out := make([]core.RoomInfo, 0, len(rooms))
	for _, r := range rooms {
		meta := r.Room()
		out = append(out, core.RoomInfo{
			ID:          meta.ID,
			Owner:       meta.Owner,
			Online:      len(r.Online()),
			Connections: r.ConnCount(),
		})
	}
	return out
}

// CloseAll is the shutdown path: every active room is tombstoned and its
// connections evicted with reason.
func (f *RoomRegistry) CloseAll(reason domain.CloseReason) {
	f.mu.Lock()
	rooms := make([]core.RoomService, 0, len(f.rooms))
	for _, e := range f.rooms {
		if e.state == domain.RoomActive {
			rooms = append(rooms, e.room)
			e.state = domain.RoomTombstoned
			e.room = nil
		}
	}
	f.mu.Unlock()

	p := pool.New().WithMaxGoroutines(8)
	for _, r := range rooms {
		r := r
		p.Go(func() { r.Close(reason) })
	}
	p.Wait()
	log.Info().Str("module", "app.rooms").Int("rooms", len(rooms)).Msg("closed all rooms")
}
