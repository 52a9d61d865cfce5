package http

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/dkeye/Relay/internal/adapters/identity"
	"github.com/dkeye/Relay/internal/adapters/signal"
	"github.com/dkeye/Relay/internal/app/orch"
	"github.com/dkeye/Relay/internal/config"
	"github.com/dkeye/Relay/internal/core"
	"github.com/dkeye/Relay/internal/domain"
	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

const (
	requestIDHeader = "X-Request-ID"
	ctxRequestID    = "request_id"
	ctxUser         = "user"
)

// ArchiveReader is the read side of the event archive, if one is configured.
type ArchiveReader interface {
	ByRoom(ctx context.Context, room domain.RoomID, limit int) ([]domain.Event, error)
}

type Deps struct {
	Orch     *orch.Orchestrator
	Identity identity.Provider
	Tokens   *identity.JWTProvider
	Signal   *signal.SignalWSController
	Archive  ArchiveReader
}

func RequestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(requestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		c.Set(ctxRequestID, id)
		c.Header(requestIDHeader, id)
		c.Next()
	}
}

// RequireUser rejects requests without an identity and stores the user for handlers.
func RequireUser(p identity.Provider) gin.HandlerFunc {
	return func(c *gin.Context) {
		u, err := p.Resolve(c)
		if err != nil {
			abortWithError(c, domain.ErrUnauthorized)
			return
		}
		c.Set(ctxUser, u)
		c.Next()
	}
}

func currentUser(c *gin.Context) *domain.User {
	u, _ := c.MustGet(ctxUser).(*domain.User)
	return u
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrInvalidRoom):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, domain.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrRoomTombstoned):
		return http.StatusGone
	default:
		return http.StatusInternalServerError
	}
}

func abortWithError(c *gin.Context, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		log.Error().Err(err).Str("module", "adapters.http").Str("request_id", c.GetString(ctxRequestID)).Msg("request failed")
	}
	c.AbortWithStatusJSON(status, gin.H{"error": err.Error()})
}

func SetupRouter(cfg *config.Config, d Deps) *gin.Engine {
	if cfg.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	if cfg.Mode == "debug" {
		r.Use(gin.Logger())
	}
	r.Use(gin.Recovery())
	r.Use(RequestIDMiddleware())

	store := cookie.NewStore([]byte(cfg.Secret))
	store.Options(sessions.Options{Path: "/", MaxAge: 3600 * 24 * 7, HttpOnly: true, SameSite: http.SameSiteLaxMode})
	r.Use(sessions.Sessions("RelaySession", store))

	h := &handlers{d: d}

	r.GET("/healthz", h.health)
	r.GET("/ws/:room", d.Signal.HandleSignal)

	api := r.Group("/api")
	api.POST("/session", h.login)
	api.DELETE("/session", h.logout)

	rooms := api.Group("/rooms", RequireUser(d.Identity))
	rooms.GET("", h.listRooms)
	rooms.POST("", h.createRoom)
	rooms.GET("/:id/online", h.online)
	rooms.GET("/:id/archive", h.archive)
	rooms.POST("/:id/kick/:user", h.kick)
	rooms.POST("/:id/ban/:user", h.ban)
	rooms.DELETE("/:id", h.destroy)

	log.Info().Str("module", "adapters.http").Str("mode", cfg.Mode).Msg("router setup")
	return r
}

type handlers struct {
	d Deps
}

func (h *handlers) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "rooms": len(h.d.Orch.Rooms.List())})
}

// login exchanges a bearer token for a cookie session, for browser clients.
func (h *handlers) login(c *gin.Context) {
	u, err := h.d.Tokens.Resolve(c)
	if err != nil {
		abortWithError(c, domain.ErrUnauthorized)
		return
	}
	if err := identity.SaveUser(c, u); err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, u)
}

func (h *handlers) logout(c *gin.Context) {
	if err := identity.ClearUser(c); err != nil {
		abortWithError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *handlers) listRooms(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"rooms": h.d.Orch.Rooms.List()})
}

func (h *handlers) createRoom(c *gin.Context) {
	var req struct {
		ID string `json:"id"`
	}
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid body"})
			return
		}
	}
	var id domain.RoomID
	if req.ID != "" {
		parsed, err := domain.ParseRoomID(req.ID)
		if err != nil {
			abortWithError(c, err)
			return
		}
		id = parsed
	}
	info, err := h.d.Orch.CreateRoom(currentUser(c).ID, id)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, info)
}

func roomParam(c *gin.Context) (domain.RoomID, bool) {
	id, err := domain.ParseRoomID(c.Param("id"))
	if err != nil {
		abortWithError(c, err)
		return "", false
	}
	return id, true
}

func (h *handlers) online(c *gin.Context) {
	id, ok := roomParam(c)
	if !ok {
		return
	}
	users, err := h.d.Orch.Online(id, currentUser(c).ID)
	if err != nil {
		abortWithError(c, err)
		return
	}
	if users == nil {
		users = []core.MemberDTO{}
	}
	c.JSON(http.StatusOK, gin.H{"room": id, "users": users})
}

func (h *handlers) archive(c *gin.Context) {
	id, ok := roomParam(c)
	if !ok {
		return
	}
	if h.d.Archive == nil {
		abortWithError(c, domain.ErrNotFound)
		return
	}
	if err := h.d.Orch.CanModerate(id, currentUser(c).ID); err != nil {
		abortWithError(c, err)
		return
	}
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "100"))
	if err != nil || limit <= 0 || limit > 1000 {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid limit"})
		return
	}
	events, err := h.d.Archive.ByRoom(c.Request.Context(), id, limit)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"room": id, "events": events})
}

func (h *handlers) kick(c *gin.Context) {
	id, ok := roomParam(c)
	if !ok {
		return
	}
	n, err := h.d.Orch.Kick(id, currentUser(c).ID, domain.UserID(c.Param("user")))
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"evicted": n})
}

func (h *handlers) ban(c *gin.Context) {
	id, ok := roomParam(c)
	if !ok {
		return
	}
	n, err := h.d.Orch.Ban(id, currentUser(c).ID, domain.UserID(c.Param("user")))
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"evicted": n})
}

func (h *handlers) destroy(c *gin.Context) {
	id, ok := roomParam(c)
	if !ok {
		return
	}
	if err := h.d.Orch.Destroy(id, currentUser(c).ID); err != nil {
		abortWithError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
