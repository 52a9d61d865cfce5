package core

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/dkeye/Relay/internal/domain"
	"github.com/rs/zerolog/log"
)

type attachment struct {
	conn Connection
	user *domain.User
}

// roomImpl is the single authority over one room. Every mutation holds mu,
// so joins, leaves, publishes and moderation never interleave.
// It never closes adapter-owned resources; it only asks them to Evict.
type roomImpl struct {
	room domain.Room
	opts RoomOptions

	mu       sync.RWMutex
	state    domain.RoomState
	live     map[ConnID]*attachment
	presence *presence
	banned   map[domain.UserID]struct{}
	history  *history
}

func NewRoomService(room domain.Room, opts RoomOptions) RoomService {
	opts = opts.withDefaults()
	return &roomImpl{
		room:     room,
		opts:     opts,
		state:    domain.RoomActive,
		live:     make(map[ConnID]*attachment),
		presence: newPresence(),
		banned:   make(map[domain.UserID]struct{}),
		history:  newHistory(opts.HistoryLimit),
	}
}

func (r *roomImpl) Room() domain.Room { return r.room }

func (r *roomImpl) State() domain.RoomState {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.state
}

func (r *roomImpl) Join(conn Connection, user *domain.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.state == domain.RoomTombstoned {
		return domain.ErrRoomTombstoned
	}
	if _, ok := r.banned[user.ID]; ok {
		return domain.ErrBanned
	}
	if _, ok := r.live[conn.ID()]; ok {
		return nil
	}

	r.live[conn.ID()] = &attachment{conn: conn, user: user}
	first := r.presence.attach(conn, user, r.opts.Now())

	var replayErr error
	r.history.each(func(e historyEntry) bool {
		replayErr = conn.TrySend(e.frame)
		return replayErr == nil
	})
	if replayErr != nil {
		// Nobody saw a join notice yet, so detach quietly.
		r.detachLocked(conn.ID())
		conn.Evict(r.opts.Policy.OnSendFailure(replayErr))
		return fmt.Errorf("replay history: %w", replayErr)
	}

	log.Info().
		Str("module", "core.room").
		Str("room", string(r.room.ID)).
		Str("conn", string(conn.ID())).
		Str("user", string(user.ID)).
		Bool("first_device", first).
		Int("replayed", r.history.len()).
		Msg("member joined")

	if first {
		r.fanoutLocked(r.encode(domain.JoinedNotice(user, r.opts.Now())))
	}
	return nil
}

func (r *roomImpl) Leave(conn Connection) {
	r.mu.Lock()
	defer r.mu.Unlock()

	user, last, ok := r.detachLocked(conn.ID())
	if !ok {
		return
	}
	log.Info().
		Str("module", "core.room").
		Str("room", string(r.room.ID)).
		Str("conn", string(conn.ID())).
		Str("user", string(user.ID)).
		Bool("last_device", last).
		Msg("member left")
	if last {
		r.fanoutLocked(r.encode(domain.LeftNotice(user, r.opts.Now())))
	}
}

// Publish appends ev to history and delivers it to every live connection.
// from may be nil for server-originated events; a non-nil sender that is no
// longer attached (kicked, banned, evicted) is rejected.
func (r *roomImpl) Publish(from Connection, ev domain.Event) error {
	frame, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.state == domain.RoomTombstoned {
		return domain.ErrRoomTombstoned
	}
	if from != nil {
		if _, ok := r.live[from.ID()]; !ok {
			return ErrConnClosed
		}
	}

	r.history.append(historyEntry{event: ev, frame: frame})
	if r.opts.Sink != nil {
		r.opts.Sink.Record(r.room.ID, ev)
	}
	res := r.fanoutLocked(frame)
	log.Debug().
		Str("module", "core.room").
		Str("room", string(r.room.ID)).
		Str("type", string(ev.Type)).
		Int("sent_to", res.SendTo).
		Int("dropped", len(res.Dropped)).
		Msg("broadcast result")
	return nil
}

func (r *roomImpl) Ban(uid domain.UserID) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state == domain.RoomTombstoned {
		return 0
	}
	r.banned[uid] = struct{}{}
	n := r.evictUserLocked(uid, domain.ReasonBanned)
	log.Info().Str("module", "core.room").Str("room", string(r.room.ID)).Str("user", string(uid)).Int("evicted", n).Msg("user banned")
	return n
}

func (r *roomImpl) Kick(uid domain.UserID) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state == domain.RoomTombstoned {
		return 0
	}
	n := r.evictUserLocked(uid, domain.ReasonKicked)
	log.Info().Str("module", "core.room").Str("room", string(r.room.ID)).Str("user", string(uid)).Int("evicted", n).Msg("user kicked")
	return n
}

// Close tombstones the room and evicts everyone. No departure notices are sent:
// there is nobody left to receive them.
func (r *roomImpl) Close(reason domain.CloseReason) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state == domain.RoomTombstoned {
		return
	}
	r.state = domain.RoomTombstoned
	n := len(r.live)
	for _, a := range r.live {
		a.conn.Evict(reason)
	}
	clear(r.live)
	clear(r.banned)
	r.presence.reset()
	r.history.reset()
	log.Info().Str("module", "core.room").Str("room", string(r.room.ID)).Int("evicted", n).Int("code", reason.Code).Msg("room closed")
}

func (r *roomImpl) Online() []MemberDTO {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.presence.snapshot()
}

func (r *roomImpl) IsOnline(uid domain.UserID) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.presence.isOnline(uid)
}

func (r *roomImpl) IsBanned(uid domain.UserID) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.banned[uid]
	return ok
}

func (r *roomImpl) History() []domain.Event {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.history.events()
}

func (r *roomImpl) ConnCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.live)
}

// detachLocked removes one connection. ok is false if it was already gone,
// which makes every caller of it idempotent.
func (r *roomImpl) detachLocked(id ConnID) (user *domain.User, last, ok bool) {
	a, ok := r.live[id]
	if !ok {
		return nil, false, false
	}
	delete(r.live, id)
	last = r.presence.detach(a.user.ID, id)
	return a.user, last, true
}

func (r *roomImpl) evictUserLocked(uid domain.UserID, reason domain.CloseReason) int {
	conns := r.presence.conns(uid)
	var departed *domain.User
	for _, c := range conns {
		user, last, ok := r.detachLocked(c.ID())
		if !ok {
			continue
		}
		c.Evict(reason)
		if last {
			departed = user
		}
	}
	if departed != nil {
		r.fanoutLocked(r.encode(domain.LeftNotice(departed, r.opts.Now())))
	}
	return len(conns)
}

func (r *roomImpl) encode(ev domain.Event) Frame {
	b, err := json.Marshal(ev)
	if err != nil {
		log.Error().Err(err).Str("module", "core.room").Str("type", string(ev.Type)).Msg("encode event")
		return nil
	}
	return b
}
