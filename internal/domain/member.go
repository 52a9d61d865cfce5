package domain

import "time"

// Member represents user's presence meta for a room.
// No transport or lifecycle logic here.
type Member struct {
	User     *User
	JoinedAt time.Time
}

// NewMember avoids raw literals in adapters and keeps construction obvious.
func NewMember(user *User, at time.Time) *Member {
	return &Member{User: user, JoinedAt: at}
}
