package signal

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/dkeye/Relay/internal/core"
	"github.com/dkeye/Relay/internal/domain"
	"github.com/rs/zerolog/log"
)

type State int

const (
	StateConnecting State = iota
	StateAuthenticating
	StateJoining
	StateActive
	StateClosing
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateAuthenticating:
		return "authenticating"
	case StateJoining:
		return "joining"
	case StateActive:
		return "active"
	case StateClosing:
		return "closing"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Any state before Closing may fail straight into Closing.
var transitions = map[State][]State{
	StateConnecting:     {StateAuthenticating, StateClosing},
	StateAuthenticating: {StateJoining, StateClosing},
	StateJoining:        {StateActive, StateClosing},
	StateActive:         {StateClosing},
	StateClosing:        {StateClosed},
}

var ErrBadTransition = errors.New("invalid session state transition")

// session drives one connection through its lifecycle. Only the goroutine
// running run touches it, except teardown which is guarded by once.
type session struct {
	ctl  *SignalWSController
	conn *WsSignalConn

	mu    sync.Mutex
	state State
	user  *domain.User
	room  core.RoomService
	once  sync.Once
}

func newSession(ctl *SignalWSController, conn *WsSignalConn) *session {
	return &session{ctl: ctl, conn: conn, state: StateConnecting}
}

func (s *session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *session) transition(to State) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, next := range transitions[s.state] {
		if next == to {
			log.Debug().Str("module", "signal").Str("conn", string(s.conn.id)).Stringer("from", s.state).Stringer("to", to).Msg("session state")
			s.state = to
			return nil
		}
	}
	return fmt.Errorf("%w: %s -> %s", ErrBadTransition, s.state, to)
}

func (s *session) run(user *domain.User, authErr error, rawRoom string) {
	defer s.teardown()

	_ = s.transition(StateAuthenticating)
	if authErr != nil || user == nil {
		log.Warn().Err(authErr).Str("module", "signal").Str("conn", string(s.conn.id)).Msg("unauthenticated connection")
		s.conn.Evict(domain.ReasonUnauthorized)
		return
	}
	s.user = user

	_ = s.transition(StateJoining)
	if err := s.join(rawRoom); err != nil {
		log.Info().Err(err).Str("module", "signal").Str("conn", string(s.conn.id)).Str("user", string(user.ID)).Str("room", rawRoom).Msg("join rejected")
		s.conn.Evict(domain.ReasonFor(err))
		return
	}

	_ = s.transition(StateActive)
	s.ctl.readPump(s.conn, s.handleMessage)
}

func (s *session) join(rawRoom string) error {
	id, err := domain.ParseRoomID(rawRoom)
	if err != nil {
		return err
	}
	room, err := s.ctl.Rooms.GetOrCreate(id)
	if err != nil {
		return err
	}
	if err := room.Join(s.conn, s.user); err != nil {
		return err
	}
	s.room = room
	return nil
}

func (s *session) handleMessage(data []byte) {
	if !s.ctl.Limiter.Allow(s.user.ID) {
		log.Warn().Str("module", "signal").Str("user", string(s.user.ID)).Msg("rate limited, message dropped")
		return
	}
	ev := ParseInbound(data)
	ev.Stamp(s.user, time.Now())
	if err := s.room.Publish(s.conn, ev); err != nil {
		// The room already evicted us or is gone; the pumps wind down on their own.
		log.Debug().Err(err).Str("module", "signal").Str("conn", string(s.conn.id)).Msg("publish rejected")
		if errors.Is(err, domain.ErrRoomTombstoned) {
			s.conn.Evict(domain.ReasonRoomTombstoned)
		}
	}
}

// teardown leaves the room exactly once and waits for the writer to close the socket.
func (s *session) teardown() {
	s.once.Do(func() {
		_ = s.transition(StateClosing)
		if s.room != nil {
			s.room.Leave(s.conn)
		}
		s.conn.Evict(domain.ReasonNormal)
		<-s.conn.done
		_ = s.transition(StateClosed)
		log.Info().
			Str("module", "signal").
			Str("conn", string(s.conn.id)).
			Int("code", s.conn.Reason().Code).
			Msg("connection closed")
	})
}
