package core

import (
	"sort"
	"time"

	"github.com/dkeye/Relay/internal/domain"
)

type presenceEntry struct {
	member *domain.Member
	conns  map[ConnID]Connection
}

// presence tracks, per user, the set of live connections in one room.
// A user is online iff the set is non-empty; empty sets are removed immediately.
type presence struct {
	byUser map[domain.UserID]*presenceEntry
}

func newPresence() *presence {
	return &presence{byUser: make(map[domain.UserID]*presenceEntry)}
}

// attach reports whether this is the user's first live connection.
func (p *presence) attach(conn Connection, user *domain.User, at time.Time) bool {
	e, ok := p.byUser[user.ID]
	if !ok {
		e = &presenceEntry{
			member: domain.NewMember(user, at),
			conns:  make(map[ConnID]Connection),
		}
		p.byUser[user.ID] = e
	}
	e.conns[conn.ID()] = conn
	return !ok
}

// detach reports whether the user just lost their last live connection.
func (p *presence) detach(uid domain.UserID, id ConnID) bool {
	e, ok := p.byUser[uid]
	if !ok {
		return false
	}
	if _, ok := e.conns[id]; !ok {
		return false
	}
	delete(e.conns, id)
	if len(e.conns) > 0 {
		return false
	}
	delete(p.byUser, uid)
	return true
}

func (p *presence) conns(uid domain.UserID) []Connection {
	e, ok := p.byUser[uid]
	if !ok {
		return nil
	}
	out := make([]Connection, 0, len(e.conns))
	for _, c := range e.conns {
		out = append(out, c)
	}
	return out
}

func (p *presence) isOnline(uid domain.UserID) bool {
	_, ok := p.byUser[uid]
	return ok
}

func (p *presence) snapshot() []MemberDTO {
	out := make([]MemberDTO, 0, len(p.byUser))
	for _, e := range p.byUser {
		u := e.member.User
		out = append(out, MemberDTO{ID: u.ID, Username: u.Username, Avatar: u.Avatar, Devices: len(e.conns), JoinedAt: e.member.JoinedAt})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (p *presence) reset() { clear(p.byUser) }
