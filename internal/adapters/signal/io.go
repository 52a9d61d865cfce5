package signal

import (
	"errors"
	"time"

	"github.com/dkeye/Relay/internal/domain"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

// writePump drains the send queue, keeps the peer alive with pings and,
// once evicted, sends the close frame and closes the socket. Closing the
// socket is what unblocks readPump.
func (ctl *SignalWSController) writePump(c *WsSignalConn) {
	ticker := time.NewTicker(ctl.Settings.PingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
		close(c.done)
	}()

	for {
		// eviction wins over queued frames
		select {
		case <-c.quit:
			ctl.writeClose(c)
			return
		default:
		}

		select {
		case <-c.quit:
			ctl.writeClose(c)
			return
		case data := <-c.send:
			if err := c.conn.SetWriteDeadline(time.Now().Add(ctl.Settings.WriteWait)); err != nil {
				c.Evict(domain.ReasonServerError)
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				log.Warn().Err(err).Str("module", "signal").Str("conn", string(c.id)).Msg("writePump write error")
				c.Evict(domain.ReasonServerError)
				return
			}
		case <-ticker.C:
			if err := c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(ctl.Settings.WriteWait)); err != nil {
				log.Warn().Err(err).Str("module", "signal").Str("conn", string(c.id)).Msg("writePump ping error")
				c.Evict(domain.ReasonServerError)
				return
			}
		}
	}
}

func (ctl *SignalWSController) writeClose(c *WsSignalConn) {
	reason := c.Reason()
	msg := websocket.FormatCloseMessage(reason.Code, reason.Text)
	if err := c.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(ctl.Settings.WriteWait)); err != nil {
		log.Debug().Err(err).Str("module", "signal").Str("conn", string(c.id)).Msg("close frame not delivered")
	}
}

// readPump hands every inbound payload to onMessage until the socket fails
// or is closed by eviction.
func (ctl *SignalWSController) readPump(c *WsSignalConn, onMessage func([]byte)) {
	c.conn.SetReadLimit(ctl.Settings.ReadLimit)
	_ = c.conn.SetReadDeadline(time.Now().Add(ctl.Settings.PongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(ctl.Settings.PongWait))
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			ctl.handleReadError(c, err)
			return
		}
		onMessage(data)
	}
}

func (ctl *SignalWSController) handleReadError(c *WsSignalConn, err error) {
	switch {
	case errors.Is(err, websocket.ErrReadLimit):
		log.Warn().Str("module", "signal").Str("conn", string(c.id)).Msg("payload over read limit")
		c.Evict(domain.ReasonTooBig)
	case websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseNoStatusReceived):
		log.Info().Str("module", "signal").Str("conn", string(c.id)).Msg("client closed")
		c.Evict(domain.ReasonNormal)
	default:
		log.Debug().Err(err).Str("module", "signal").Str("conn", string(c.id)).Msg("readPump read error")
		c.Evict(domain.ReasonNormal)
	}
}
