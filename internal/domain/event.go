package domain

import (
	"encoding/json"
	"time"
)

type EventKind string

const (
	KindMessage  EventKind = "message"
	KindMedia    EventKind = "media"
	KindAlbum    EventKind = "album"
	KindLocation EventKind = "location"
	KindTyping   EventKind = "typing"
	KindRead     EventKind = "read"
	KindSystem   EventKind = "system"
)

// DefaultMediaKind is used when a media event does not declare a content type.
const DefaultMediaKind = "application/octet-stream"

// Event is one relayed unit. Fields that only some kinds use are omitted when empty.
// CT, IV and Salt are client ciphertext and are forwarded exactly as received.
type Event struct {
	Type EventKind `json:"type"`

	Text     string   `json:"text,omitempty"`
	URL      string   `json:"url,omitempty"`
	Kind     string   `json:"kind,omitempty"`
	Title    string   `json:"title,omitempty"`
	Lat      *float64 `json:"lat,omitempty"`
	Lon      *float64 `json:"lon,omitempty"`
	State    *bool    `json:"state,omitempty"`
	OrigKind string   `json:"orig_kind,omitempty"`

	Enc  bool            `json:"enc,omitempty"`
	CT   json.RawMessage `json:"ct,omitempty"`
	IV   json.RawMessage `json:"iv,omitempty"`
	Salt json.RawMessage `json:"salt,omitempty"`

	MsgID    string `json:"msg_id,omitempty"`
	UserID   UserID `json:"user_id,omitempty"`
	Username string `json:"username,omitempty"`
	Avatar   string `json:"avatar,omitempty"`
	TS       string `json:"ts"`
}

// Stamp fills the server-owned fields: who sent it and when.
func (e *Event) Stamp(u *User, at time.Time) {
	e.UserID = u.ID
	e.Username = u.Username
	if e.Type != KindTyping && e.Type != KindRead {
		e.Avatar = u.Avatar
	}
	e.TS = Timestamp(at)
}

// Timestamp formats t as ISO-8601 UTC.
func Timestamp(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

// NewSystemEvent builds a notice that carries only text and ts.
func NewSystemEvent(text string, at time.Time) Event {
	return Event{Type: KindSystem, Text: text, TS: Timestamp(at)}
}

func JoinedNotice(u *User, at time.Time) Event {
	return NewSystemEvent(u.Username+" joined the room", at)
}

func LeftNotice(u *User, at time.Time) Event {
	return NewSystemEvent(u.Username+" left the room", at)
}
