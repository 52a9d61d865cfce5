package http

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/dkeye/Relay/internal/adapters/identity"
	"github.com/dkeye/Relay/internal/adapters/signal"
	"github.com/dkeye/Relay/internal/app"
	"github.com/dkeye/Relay/internal/app/orch"
	"github.com/dkeye/Relay/internal/config"
	"github.com/dkeye/Relay/internal/core"
	"github.com/dkeye/Relay/internal/domain"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type testServer struct {
	srv    *httptest.Server
	tokens *identity.JWTProvider
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	cfg := &config.Config{Mode: "test", Secret: "cookie-secret"}
	rooms := app.NewRoomRegistry(core.RoomOptions{HistoryLimit: 32, Policy: app.SimplePolicy{}})
	tokens := identity.NewJWTProvider("jwt-secret", "relay")
	ident := identity.Chain{tokens, identity.SessionProvider{}}
	ctl := signal.NewSignalWSController(rooms, ident, nil, signal.Settings{
		ReadLimit:  4096,
		PingPeriod: 54 * time.Second,
		PongWait:   60 * time.Second,
		WriteWait:  time.Second,
		SendBuffer: 64,
	})
	r := SetupRouter(cfg, Deps{
		Orch:     &orch.Orchestrator{Rooms: rooms},
		Identity: ident,
		Tokens:   tokens,
		Signal:   ctl,
	})
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return &testServer{srv: srv, tokens: tokens}
}

func (ts *testServer) token(t *testing.T, id string) string {
	t.Helper()
	tok, err := ts.tokens.Issue(&domain.User{ID: domain.UserID(id), Username: id}, time.Hour)
	require.NoError(t, err)
	return tok
}

func (ts *testServer) do(t *testing.T, method, path, user string, body string) (*http.Response, []byte) {
	t.Helper()
	var rd io.Reader
	if body != "" {
		rd = strings.NewReader(body)
	}
	req, err := http.NewRequest(method, ts.srv.URL+path, rd)
	require.NoError(t, err)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if user != "" {
		req.Header.Set("Authorization", "Bearer "+ts.token(t, user))
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	b, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, b
}

func (ts *testServer) dial(t *testing.T, room domain.RoomID, user string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(ts.srv.URL, "http") + "/ws/" + room.String() + "?token=" + ts.token(t, user)
	ws, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = ws.Close() })
	return ws
}

func (ts *testServer) createRoom(t *testing.T, owner string) domain.RoomID {
	t.Helper()
	resp, body := ts.do(t, http.MethodPost, "/api/rooms", owner, "")
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(body))
	var info core.RoomInfo
	require.NoError(t, json.Unmarshal(body, &info))
	assert.Equal(t, domain.UserID(owner), info.Owner)
	return info.ID
}

func readEvent(t *testing.T, ws *websocket.Conn) domain.Event {
	t.Helper()
	require.NoError(t, ws.SetReadDeadline(time.Now().Add(3*time.Second)))
	var ev domain.Event
	require.NoError(t, ws.ReadJSON(&ev))
	return ev
}

func closeCode(t *testing.T, ws *websocket.Conn) int {
	t.Helper()
	require.NoError(t, ws.SetReadDeadline(time.Now().Add(3*time.Second)))
	for {
		_, _, err := ws.ReadMessage()
		if err == nil {
			continue
		}
		var ce *websocket.CloseError
		require.True(t, errors.As(err, &ce), "expected close frame, got %v", err)
		return ce.Code
	}
}

func TestOwnerModerationScenario(t *testing.T) {
	ts := newTestServer(t)
	room := ts.createRoom(t, "u1")

	u2 := ts.dial(t, room, "u2")
	assert.Equal(t, "u2 joined the room", readEvent(t, u2).Text)
	u3 := ts.dial(t, room, "u3")
	assert.Equal(t, "u3 joined the room", readEvent(t, u3).Text)
	readEvent(t, u2)

	u1 := ts.dial(t, room, "u1")
	readEvent(t, u1)
	readEvent(t, u2)
	readEvent(t, u3)

	require.NoError(t, u1.WriteMessage(websocket.TextMessage, []byte(`{"type":"message","text":"hi"}`)))
	for _, ws := range []*websocket.Conn{u2, u3} {
		ev := readEvent(t, ws)
		assert.Equal(t, domain.KindMessage, ev.Type)
		assert.Equal(t, "hi", ev.Text)
		assert.Equal(t, domain.UserID("u1"), ev.UserID)
	}
	readEvent(t, u1)

	resp, body := ts.do(t, http.MethodGet, "/api/rooms/"+room.String()+"/online", "u1", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var online struct {
		Users []core.MemberDTO `json:"users"`
	}
	require.NoError(t, json.Unmarshal(body, &online))
	assert.Len(t, online.Users, 3)

	resp, _ = ts.do(t, http.MethodPost, "/api/rooms/"+room.String()+"/ban/u3", "u2", "")
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp, body = ts.do(t, http.MethodPost, "/api/rooms/"+room.String()+"/ban/u3", "u1", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"evicted":1}`, string(body))
	assert.Equal(t, domain.ReasonBanned.Code, closeCode(t, u3))
	assert.Equal(t, "u3 left the room", readEvent(t, u2).Text)

	retry := ts.dial(t, room, "u3")
	assert.Equal(t, domain.ReasonBanned.Code, closeCode(t, retry))

	resp, _ = ts.do(t, http.MethodDelete, "/api/rooms/"+room.String(), "u2", "")
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp, _ = ts.do(t, http.MethodDelete, "/api/rooms/"+room.String(), "u1", "")
	require.Equal(t, http.StatusNoContent, resp.StatusCode)
	assert.Equal(t, domain.ReasonRoomTombstoned.Code, closeCode(t, u2))
	assert.Equal(t, domain.ReasonRoomTombstoned.Code, closeCode(t, u1))

	fresh := ts.dial(t, room, "u4")
	assert.Equal(t, domain.ReasonRoomTombstoned.Code, closeCode(t, fresh))

	resp, _ = ts.do(t, http.MethodDelete, "/api/rooms/"+room.String(), "u1", "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	resp, _ = ts.do(t, http.MethodPost, "/api/rooms/"+room.String()+"/kick/u2", "u1", "")
	assert.Equal(t, http.StatusGone, resp.StatusCode)
	resp, _ = ts.do(t, http.MethodPost, "/api/rooms", "u1", `{"id":"`+room.String()+`"}`)
	assert.Equal(t, http.StatusGone, resp.StatusCode)
}

func TestKickAllowsRejoinWithReplay(t *testing.T) {
	ts := newTestServer(t)
	room := ts.createRoom(t, "owner")

	u2 := ts.dial(t, room, "u2")
	readEvent(t, u2)
	require.NoError(t, u2.WriteMessage(websocket.TextMessage, []byte("before kick")))
	readEvent(t, u2)

	resp, _ := ts.do(t, http.MethodPost, "/api/rooms/"+room.String()+"/kick/u2", "owner", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, domain.ReasonKicked.Code, closeCode(t, u2))

	again := ts.dial(t, room, "u2")
	assert.Equal(t, "before kick", readEvent(t, again).Text)
	assert.Equal(t, "u2 joined the room", readEvent(t, again).Text)
}

func TestRequestErrors(t *testing.T) {
	ts := newTestServer(t)

	resp, _ := ts.do(t, http.MethodGet, "/api/rooms", "", "")
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp, _ = ts.do(t, http.MethodGet, "/api/rooms/not-a-uuid/online", "u1", "")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = ts.do(t, http.MethodGet, "/api/rooms/"+domain.NewRoomID().String()+"/online", "u1", "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, _ = ts.do(t, http.MethodDelete, "/api/rooms/"+domain.NewRoomID().String(), "u1", "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, _ = ts.do(t, http.MethodPost, "/api/rooms", "u1", `{"id":"nope"}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = ts.do(t, http.MethodGet, "/api/rooms/"+domain.NewRoomID().String()+"/archive", "u1", "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode, "no archive configured")
}

func TestCreateWithIDAndList(t *testing.T) {
	ts := newTestServer(t)
	id := domain.NewRoomID()

	resp, body := ts.do(t, http.MethodPost, "/api/rooms", "u1", `{"id":"`+strings.ToUpper(id.String())+`"}`)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var info core.RoomInfo
	require.NoError(t, json.Unmarshal(body, &info))
	assert.Equal(t, id, info.ID)

	resp, body = ts.do(t, http.MethodPost, "/api/rooms", "u2", `{"id":"`+id.String()+`"}`)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	require.NoError(t, json.Unmarshal(body, &info))
	assert.Equal(t, domain.UserID("u1"), info.Owner, "first creator stays owner")

	resp, body = ts.do(t, http.MethodGet, "/api/rooms", "u1", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var list struct {
		Rooms []core.RoomInfo `json:"rooms"`
	}
	require.NoError(t, json.Unmarshal(body, &list))
	require.Len(t, list.Rooms, 1)
	assert.Equal(t, id, list.Rooms[0].ID)
}

func TestCookieSessionOpensSocket(t *testing.T) {
	ts := newTestServer(t)
	room := ts.createRoom(t, "u1")

	resp, body := ts.do(t, http.MethodPost, "/api/session", "u5", "")
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	var cookie string
	for _, ck := range resp.Cookies() {
		if ck.Name == "RelaySession" {
			cookie = ck.Name + "=" + ck.Value
		}
	}
	require.NotEmpty(t, cookie)

	url := "ws" + strings.TrimPrefix(ts.srv.URL, "http") + "/ws/" + room.String()
	ws, _, err := websocket.DefaultDialer.Dial(url, http.Header{"Cookie": {cookie}})
	require.NoError(t, err)
	defer ws.Close()
	assert.Equal(t, "u5 joined the room", readEvent(t, ws).Text)

	resp, _ = ts.do(t, http.MethodPost, "/api/session", "", "")
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestHealthAndRequestID(t *testing.T) {
	ts := newTestServer(t)

	resp, body := ts.do(t, http.MethodGet, "/healthz", "", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"status":"ok","rooms":0}`, string(body))
	assert.NotEmpty(t, resp.Header.Get(requestIDHeader))

	req, err := http.NewRequest(http.MethodGet, ts.srv.URL+"/healthz", nil)
	require.NoError(t, err)
	req.Header.Set(requestIDHeader, "abc")
	r2, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer r2.Body.Close()
	assert.Equal(t, "abc", r2.Header.Get(requestIDHeader))
}

func TestStatusFor(t *testing.T) {
	assert.Equal(t, http.StatusGone, statusFor(domain.ErrRoomTombstoned))
	assert.Equal(t, http.StatusForbidden, statusFor(domain.ErrForbidden))
	assert.Equal(t, http.StatusInternalServerError, statusFor(errors.New("boom")))
}
