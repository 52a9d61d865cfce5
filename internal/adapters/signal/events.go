package signal

import (
	"encoding/json"

	"github.com/dkeye/Relay/internal/domain"
)

// inbound is the client payload. Server-owned fields (user_id, username,
// avatar, ts) are never read from it.
type inbound struct {
	Type     domain.EventKind `json:"type"`
	Text     string           `json:"text"`
	URL      string           `json:"url"`
	Kind     string           `json:"kind"`
	Title    string           `json:"title"`
	Lat      *float64         `json:"lat"`
	Lon      *float64         `json:"lon"`
	State    bool             `json:"state"`
	OrigKind string           `json:"orig_kind"`
	Enc      bool             `json:"enc"`
	CT       json.RawMessage  `json:"ct"`
	IV       json.RawMessage  `json:"iv"`
	Salt     json.RawMessage  `json:"salt"`
	MsgID    string           `json:"msg_id"`
}

// ParseInbound classifies one client payload. Anything that is not a
// well-typed object with a known type becomes a plaintext message whose
// text is the raw payload.
func ParseInbound(data []byte) domain.Event {
	var p inbound
	if err := json.Unmarshal(data, &p); err != nil {
		return plaintext(data)
	}

	switch p.Type {
	case domain.KindMessage:
		return domain.Event{Type: p.Type, Text: p.Text, Enc: p.Enc, CT: p.CT, IV: p.IV, Salt: p.Salt, MsgID: p.MsgID}
	case domain.KindMedia:
		kind := p.Kind
		if kind == "" {
			kind = domain.DefaultMediaKind
		}
		return domain.Event{Type: p.Type, URL: p.URL, Kind: kind, Enc: p.Enc, IV: p.IV, Salt: p.Salt, OrigKind: p.OrigKind, MsgID: p.MsgID}
	case domain.KindAlbum:
		return domain.Event{Type: p.Type, URL: p.URL, Title: p.Title, Enc: p.Enc, CT: p.CT, IV: p.IV, Salt: p.Salt, MsgID: p.MsgID}
	case domain.KindLocation:
		if p.Enc {
			return domain.Event{Type: p.Type, Enc: true, CT: p.CT, IV: p.IV, Salt: p.Salt, MsgID: p.MsgID}
		}
		return domain.Event{Type: p.Type, Lat: orZero(p.Lat), Lon: orZero(p.Lon), MsgID: p.MsgID}
	case domain.KindTyping:
		state := p.State
		return domain.Event{Type: p.Type, State: &state}
	case domain.KindRead:
		return domain.Event{Type: p.Type, MsgID: p.MsgID}
	default:
		return plaintext(data)
	}
}

func plaintext(data []byte) domain.Event {
	return domain.Event{Type: domain.KindMessage, Text: string(data)}
}

func orZero(v *float64) *float64 {
	if v == nil {
		v = new(float64)
	}
	return v
}
