package domain

import "errors"

// CloseReason is the websocket close code and text sent when the hub ends a connection.
type CloseReason struct {
	Code int
	Text string
}

var (
	ReasonNormal         = CloseReason{Code: 1000, Text: "bye"}
	ReasonShutdown       = CloseReason{Code: 1001, Text: "server shutting down"}
	ReasonUnauthorized   = CloseReason{Code: 1008, Text: "unauthorized"}
	ReasonTooBig         = CloseReason{Code: 1009, Text: "message too big"}
	ReasonServerError    = CloseReason{Code: 1011, Text: "server error"}
	ReasonSlowConsumer   = CloseReason{Code: 1013, Text: "slow consumer"}
	ReasonKicked         = CloseReason{Code: 4000, Text: "kicked"}
	ReasonBanned         = CloseReason{Code: 4003, Text: "banned"}
	ReasonRoomTombstoned = CloseReason{Code: 4100, Text: "room closed"}
	ReasonInvalidRoom    = CloseReason{Code: 4400, Text: "invalid room"}
)

// ReasonFor maps a join/auth failure to the close reason the client sees.
func ReasonFor(err error) CloseReason {
	switch {
	case err == nil:
		return ReasonNormal
	case errors.Is(err, ErrUnauthorized):
		return ReasonUnauthorized
	case errors.Is(err, ErrInvalidRoom):
		return ReasonInvalidRoom
	case errors.Is(err, ErrRoomTombstoned):
		return ReasonRoomTombstoned
	case errors.Is(err, ErrBanned):
		return ReasonBanned
	default:
		return ReasonServerError
	}
}
