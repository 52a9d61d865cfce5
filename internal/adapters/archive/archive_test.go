package archive

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/dkeye/Relay/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func setupStore(t *testing.T, buffer int) *Store {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	s, err := New(db, buffer)
	require.NoError(t, err)
	return s
}

func TestStoreArchivesInOrderAndSkipsTyping(t *testing.T) {
	s := setupStore(t, 16)
	room := domain.NewRoomID()
	at := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	on := true

	s.Record(room, domain.Event{Type: domain.KindMessage, Text: "one", UserID: "u1", TS: domain.Timestamp(at)})
	s.Record(room, domain.Event{Type: domain.KindTyping, State: &on, UserID: "u1"})
	s.Record(room, domain.Event{Type: domain.KindMessage, Enc: true, CT: json.RawMessage(`"AAEC"`), UserID: "u2"})
	s.Record(domain.NewRoomID(), domain.Event{Type: domain.KindRead, MsgID: "m1"})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	require.NoError(t, s.stop(ctx))

	evs, err := s.ByRoom(ctx, room, 10)
	require.NoError(t, err)
	require.Len(t, evs, 2)
	assert.Equal(t, "one", evs[0].Text)
	assert.Equal(t, domain.UserID("u1"), evs[0].UserID)
	assert.True(t, evs[1].Enc)
	assert.JSONEq(t, `"AAEC"`, string(evs[1].CT))

	last, err := s.ByRoom(ctx, room, 1)
	require.NoError(t, err)
	require.Len(t, last, 1)
	assert.Equal(t, domain.UserID("u2"), last[0].UserID)

	require.NoError(t, s.Close(ctx))
}

func TestStoreRecordAfterCloseIsIgnored(t *testing.T) {
	s := setupStore(t, 1)
	require.NoError(t, s.Close(context.Background()))
	assert.NotPanics(t, func() {
		s.Record(domain.NewRoomID(), domain.Event{Type: domain.KindMessage, Text: "late"})
	})
	assert.NoError(t, s.Close(context.Background()))
}
