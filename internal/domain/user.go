// Package domain contains entity without logic, just meta-data
package domain

import (
	"errors"
)

const (
	MaxUserIDLen   = 64
	MaxUsernameLen = 64
)

var (
	ErrUsernameTooLong = errors.New("username too long")
	ErrUsernameEmpty   = errors.New("username empty")
	ErrUserIDEmpty     = errors.New("user id empty")
	ErrUserIDTooLong   = errors.New("user id too long")
)

type UserID string

// User is an already-authenticated identity. The hub never verifies credentials itself.
type User struct {
	ID       UserID `json:"id"`
	Username string `json:"username"`
	Avatar   string `json:"avatar"`
}

// NewUser is a tiny helper to avoid ad-hoc struct literals in adapters.
func NewUser(id UserID, username, avatar string) (*User, error) {
	if len(id) == 0 {
		return nil, ErrUserIDEmpty
	}
	if len(id) > MaxUserIDLen {
		return nil, ErrUserIDTooLong
	}
	u := &User{ID: id, Avatar: avatar}
	if err := u.SetUsername(username); err != nil {
		return nil, err
	}
	return u, nil
}

func (u *User) SetUsername(username string) error {
	if len(username) == 0 {
		return ErrUsernameEmpty
	}
	if len(username) > MaxUsernameLen {
		return ErrUsernameTooLong
	}
	u.Username = username
	return nil
}
