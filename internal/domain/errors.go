package domain

import "errors"

var (
	ErrUnauthorized   = errors.New("unauthorized")
	ErrInvalidRoom    = errors.New("invalid room id")
	ErrRoomTombstoned = errors.New("room was destroyed")
	ErrBanned         = errors.New("banned from room")
	ErrForbidden      = errors.New("only the room owner can do this")
	ErrNotFound       = errors.New("room not found")
)
