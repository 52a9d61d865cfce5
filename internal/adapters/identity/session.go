package identity

import (
	"github.com/dkeye/Relay/internal/domain"
	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
)

const (
	sessionUserID   = "user_id"
	sessionUsername = "username"
	sessionAvatar   = "avatar"
)

// SessionProvider reads the identity saved in the cookie session by SaveUser.
// It needs the sessions middleware on the route.
type SessionProvider struct{}

func (SessionProvider) Resolve(c *gin.Context) (*domain.User, error) {
	s := sessions.Default(c)
	id, _ := s.Get(sessionUserID).(string)
	name, _ := s.Get(sessionUsername).(string)
	avatar, _ := s.Get(sessionAvatar).(string)
	if id == "" {
		return nil, domain.ErrUnauthorized
	}
	u, err := domain.NewUser(domain.UserID(id), name, avatar)
	if err != nil {
		return nil, domain.ErrUnauthorized
	}
	return u, nil
}

func SaveUser(c *gin.Context, u *domain.User) error {
	s := sessions.Default(c)
	s.Set(sessionUserID, string(u.ID))
	s.Set(sessionUsername, u.Username)
	s.Set(sessionAvatar, u.Avatar)
	return s.Save()
}

func ClearUser(c *gin.Context) error {
	s := sessions.Default(c)
	s.Clear()
	return s.Save()
}
