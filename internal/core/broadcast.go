package core

import (
	"github.com/dkeye/Relay/internal/domain"
	"github.com/rs/zerolog/log"
)

type sendFailure struct {
	conn Connection
	err  error
}

// fanoutLocked delivers frame to every live connection, then evicts the ones
// that failed. Departure notices caused by those evictions go through the same
// pass, so a cascade of slow consumers is drained before returning.
func (r *roomImpl) fanoutLocked(frame Frame) PublishResult {
	var res PublishResult
	if frame == nil {
		return res
	}
	queue := []Frame{frame}
	for len(queue) > 0 {
		f := queue[0]
		queue = queue[1:]

		sent, failed := r.deliverLocked(f)
		res.SendTo += sent

		for _, fl := range failed {
			user, last, ok := r.detachLocked(fl.conn.ID())
			if !ok {
				continue
			}
			res.Dropped = append(res.Dropped, fl.conn.ID())
			reason := r.opts.Policy.OnSendFailure(fl.err)
			log.Warn().
				Err(fl.err).
				Str("module", "core.broadcast").
				Str("room", string(r.room.ID)).
				Str("conn", string(fl.conn.ID())).
				Int("code", reason.Code).
				Msg("evicting connection after failed send")
			fl.conn.Evict(reason)
			if last {
				if notice := r.encode(domain.LeftNotice(user, r.opts.Now())); notice != nil {
					queue = append(queue, notice)
				}
			}
		}
	}
	return res
}

// deliverLocked sends to a snapshot of the live set; the set itself is only
// changed after the pass.
func (r *roomImpl) deliverLocked(f Frame) (int, []sendFailure) {
	snapshot := make([]Connection, 0, len(r.live))
	for _, a := range r.live {
		snapshot = append(snapshot, a.conn)
	}

	sent := 0
	var failed []sendFailure
	for _, c := range snapshot {
		if err := c.TrySend(f); err != nil {
			failed = append(failed, sendFailure{conn: c, err: err})
			continue
		}
		sent++
	}
	return sent, failed
}
