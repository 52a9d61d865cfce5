package identity

import (
	"fmt"
	"time"

	"github.com/dkeye/Relay/internal/domain"
	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog/log"
)

type Claims struct {
	Username string `json:"username"`
	Avatar   string `json:"avatar,omitempty"`
	jwt.RegisteredClaims
}

// JWTProvider verifies HS256 bearer tokens; the subject is the user id.
type JWTProvider struct {
	secret []byte
	issuer string
	now    func() time.Time
}

func NewJWTProvider(secret, issuer string) *JWTProvider {
	return &JWTProvider{secret: []byte(secret), issuer: issuer, now: time.Now}
}

func (p *JWTProvider) Resolve(c *gin.Context) (*domain.User, error) {
	raw := BearerToken(c)
	if raw == "" {
		return nil, domain.ErrUnauthorized
	}
	return p.Verify(raw)
}

func (p *JWTProvider) Verify(raw string) (*domain.User, error) {
	var claims Claims
	_, err := jwt.ParseWithClaims(raw, &claims, func(*jwt.Token) (any, error) {
		return p.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(p.issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(p.now),
	)
	if err != nil {
		log.Debug().Err(err).Str("module", "identity").Msg("token rejected")
		return nil, fmt.Errorf("%w: %v", domain.ErrUnauthorized, err)
	}
	u, err := domain.NewUser(domain.UserID(claims.Subject), claims.Username, claims.Avatar)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrUnauthorized, err)
	}
	return u, nil
}

// Issue signs a token for u valid for ttl.
func (p *JWTProvider) Issue(u *domain.User, ttl time.Duration) (string, error) {
	now := p.now()
	claims := Claims{
		Username: u.Username,
		Avatar:   u.Avatar,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   string(u.ID),
			Issuer:    p.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(p.secret)
}
