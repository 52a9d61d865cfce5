package identity

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/dkeye/Relay/internal/domain"
	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func ctxWith(req *http.Request) *gin.Context {
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	c.Request = req
	return c
}

func TestJWTIssueAndResolve(t *testing.T) {
	p := NewJWTProvider("secret", "relay")
	u := &domain.User{ID: "u1", Username: "alice", Avatar: "/a.png"}
	tok, err := p.Issue(u, time.Hour)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/ws/x", nil)
	req.Header.Set("Authorization", "Bearer "+tok)
	got, err := p.Resolve(ctxWith(req))
	require.NoError(t, err)
	assert.Equal(t, u, got)

	req = httptest.NewRequest(http.MethodGet, "/ws/x?token="+tok, nil)
	got, err = p.Resolve(ctxWith(req))
	require.NoError(t, err)
	assert.Equal(t, domain.UserID("u1"), got.ID)
}

func TestJWTRejects(t *testing.T) {
	p := NewJWTProvider("secret", "relay")
	u := &domain.User{ID: "u1", Username: "alice"}

	other, err := NewJWTProvider("other", "relay").Issue(u, time.Hour)
	require.NoError(t, err)
	_, err = p.Verify(other)
	assert.ErrorIs(t, err, domain.ErrUnauthorized)

	wrongIssuer, err := NewJWTProvider("secret", "someone").Issue(u, time.Hour)
	require.NoError(t, err)
	_, err = p.Verify(wrongIssuer)
	assert.ErrorIs(t, err, domain.ErrUnauthorized)

	expired, err := p.Issue(u, -time.Minute)
	require.NoError(t, err)
	_, err = p.Verify(expired)
	assert.ErrorIs(t, err, domain.ErrUnauthorized)

	noName, err := p.Issue(&domain.User{ID: "u2"}, time.Hour)
	require.NoError(t, err)
	_, err = p.Verify(noName)
	assert.ErrorIs(t, err, domain.ErrUnauthorized)

	_, err = p.Resolve(ctxWith(httptest.NewRequest(http.MethodGet, "/", nil)))
	assert.ErrorIs(t, err, domain.ErrUnauthorized)
}

func TestSessionRoundTripAndChain(t *testing.T) {
	jwtp := NewJWTProvider("secret", "relay")
	chain := Chain{jwtp, SessionProvider{}}

	r := gin.New()
	r.Use(sessions.Sessions("relay", cookie.NewStore([]byte("k"))))
	r.POST("/login", func(c *gin.Context) {
		require.NoError(t, SaveUser(c, &domain.User{ID: "u9", Username: "bob"}))
		c.Status(http.StatusNoContent)
	})
	r.GET("/me", func(c *gin.Context) {
		u, err := chain.Resolve(c)
		if err != nil {
			c.Status(http.StatusUnauthorized)
			return
		}
		c.String(http.StatusOK, string(u.ID))
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/me", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/login", nil))
	require.Equal(t, http.StatusNoContent, w.Code)
	cookies := w.Result().Cookies()
	require.NotEmpty(t, cookies)

	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	for _, ck := range cookies {
		req.AddCookie(ck)
	}
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "u9", w.Body.String())
}
