// Package signal runs the websocket side of a room connection: upgrade,
// identity, join, the read and write pumps, and teardown.
package signal

import (
	"net/http"
	"sync"
	"time"

	"github.com/dkeye/Relay/internal/core"
	"github.com/dkeye/Relay/internal/domain"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

// Authenticator resolves the caller of a request. It must return
// domain.ErrUnauthorized when no usable identity is present.
type Authenticator interface {
	Resolve(c *gin.Context) (*domain.User, error)
}

type Settings struct {
	ReadLimit  int64
	PingPeriod time.Duration
	PongWait   time.Duration
	WriteWait  time.Duration
	SendBuffer int
}

type SignalWSController struct {
	Rooms    core.RoomManager
	Identity Authenticator
	Limiter  *RoomRateLimiter
	Settings Settings

	upgrader websocket.Upgrader
}

func NewSignalWSController(rooms core.RoomManager, identity Authenticator, limiter *RoomRateLimiter, s Settings) *SignalWSController {
	return &SignalWSController{
		Rooms:    rooms,
		Identity: identity,
		Limiter:  limiter,
		Settings: s,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// WsSignalConn is the core.Connection of one websocket. The room enqueues
// frames through TrySend; the write pump is the only goroutine that writes.
type WsSignalConn struct {
	id   core.ConnID
	conn *websocket.Conn
	send chan core.Frame
	quit chan struct{}
	done chan struct{}

	mu     sync.Mutex
	closed bool
	reason domain.CloseReason
}

func newWsSignalConn(ws *websocket.Conn, buffer int) *WsSignalConn {
	return &WsSignalConn{
		id:   core.NewConnID(),
		conn: ws,
		send: make(chan core.Frame, buffer),
		quit: make(chan struct{}),
		done: make(chan struct{}),
	}
}

func (c *WsSignalConn) ID() core.ConnID { return c.id }

func (c *WsSignalConn) TrySend(f core.Frame) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return core.ErrConnClosed
	}
	select {
	case c.send <- f:
		return nil
	default:
		return core.ErrBackpressure
	}
}

func (c *WsSignalConn) Evict(reason domain.CloseReason) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	c.reason = reason
	close(c.quit)
}

// Reason is the close reason recorded by the first Evict.
func (c *WsSignalConn) Reason() domain.CloseReason {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.reason
}

// HandleSignal upgrades the request and starts a session for room :room.
// Failures after the upgrade are reported to the client as close codes.
func (ctl *SignalWSController) HandleSignal(c *gin.Context) {
	user, authErr := ctl.Identity.Resolve(c)
	rawRoom := c.Param("room")

	ws, err := ctl.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("ws upgrade")
		return
	}

	conn := newWsSignalConn(ws, ctl.Settings.SendBuffer)
	sess := newSession(ctl, conn)
	log.Info().Str("module", "signal").Str("conn", string(conn.id)).Str("room", rawRoom).Msg("new WS connection")

	go ctl.writePump(conn)
	go sess.run(user, authErr, rawRoom)
}
