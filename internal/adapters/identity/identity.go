// Package identity turns request credentials into a domain.User.
// The relay trusts whatever these providers return and never stores passwords.
package identity

import (
	"errors"
	"strings"

	"github.com/dkeye/Relay/internal/domain"
	"github.com/gin-gonic/gin"
)

// Provider resolves the caller of a request or returns domain.ErrUnauthorized.
type Provider interface {
	Resolve(c *gin.Context) (*domain.User, error)
}

// Chain tries each provider in order and returns the first identity found.
type Chain []Provider

func (ch Chain) Resolve(c *gin.Context) (*domain.User, error) {
	for _, p := range ch {
		u, err := p.Resolve(c)
		if err == nil {
			return u, nil
		}
		if !errors.Is(err, domain.ErrUnauthorized) {
			return nil, err
		}
	}
	return nil, domain.ErrUnauthorized
}

// BearerToken reads "Authorization: Bearer <t>" and falls back to ?token=,
// which browsers need because they cannot set headers on a websocket upgrade.
func BearerToken(c *gin.Context) string {
	if h := c.GetHeader("Authorization"); h != "" {
		if t, ok := strings.CutPrefix(h, "Bearer "); ok {
			return strings.TrimSpace(t)
		}
	}
	return c.Query("token")
}
