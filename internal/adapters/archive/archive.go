// Package archive is a write-behind store of relayed events. Rooms never read
// from it; it exists so history outlives the in-memory ring.
package archive

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dkeye/Relay/internal/domain"
	"github.com/rs/zerolog/log"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const batchSize = 64

// Record is one archived event.
type Record struct {
	ID        uint      `gorm:"primarykey"`
	RoomID    string    `gorm:"size:36;index;not null"`
	Type      string    `gorm:"size:16;not null"`
	UserID    string    `gorm:"size:64;index"`
	Payload   string    `gorm:"not null"`
	CreatedAt time.Time `gorm:"index"`
}

func (Record) TableName() string {
	return "events"
}

type Store struct {
	db    *gorm.DB
	queue chan Record

	mu      sync.RWMutex
	closed  bool
	dropped atomic.Int64
	done    chan struct{}
}

// Open connects to the sqlite database at dsn and starts the writer.
func Open(dsn string, buffer int) (*Store, error) {
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("open archive: %w", err)
	}
	return New(db, buffer)
}

// New migrates db and starts the writer.
func New(db *gorm.DB, buffer int) (*Store, error) {
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("archive sql handle: %w", err)
	}
	// one writer; also keeps ":memory:" databases on a single connection
	sqlDB.SetMaxOpenConns(1)

	if err := db.AutoMigrate(&Record{}); err != nil {
		return nil, fmt.Errorf("migrate archive: %w", err)
	}
	s := &Store{
		db:    db,
		queue: make(chan Record, buffer),
		done:  make(chan struct{}),
	}
	go s.run()
	return s, nil
}

// Record implements core.EventSink. It never blocks: when the queue is full
// the event is dropped and counted. Typing indicators are not archived.
func (s *Store) Record(room domain.RoomID, ev domain.Event) {
	if ev.Type == domain.KindTyping {
		return
	}
	payload, err := json.Marshal(ev)
	if err != nil {
		log.Error().Err(err).Str("module", "archive").Msg("encode event")
		return
	}
	rec := Record{
		RoomID:    string(room),
		Type:      string(ev.Type),
		UserID:    string(ev.UserID),
		Payload:   string(payload),
		CreatedAt: time.Now().UTC(),
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return
	}
	select {
	case s.queue <- rec:
	default:
		if n := s.dropped.Add(1); n == 1 || n%1000 == 0 {
			log.Warn().Str("module", "archive").Int64("dropped", n).Msg("archive queue full")
		}
	}
}

func (s *Store) Dropped() int64 { return s.dropped.Load() }

func (s *Store) run() {
	defer close(s.done)
	batch := make([]Record, 0, batchSize)
	for rec := range s.queue {
		batch = append(batch[:0], rec)
	fill:
		for len(batch) < batchSize {
			select {
			case more, ok := <-s.queue:
				if !ok {
					break fill
				}
				batch = append(batch, more)
			default:
				break fill
			}
		}
		if err := s.db.CreateInBatches(batch, batchSize).Error; err != nil {
			log.Error().Err(err).Str("module", "archive").Int("events", len(batch)).Msg("archive write failed")
		}
	}
}

// Close stops accepting events, waits for the queue to drain and closes the database.
func (s *Store) Close(ctx context.Context) error {
	if err := s.stop(ctx); err != nil {
		return err
	}
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (s *Store) stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.closed {
		s.closed = true
		close(s.queue)
	}
	s.mu.Unlock()

	select {
	case <-s.done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("archive drain: %w", ctx.Err())
	}
}

// ByRoom returns up to limit archived events of room, oldest first.
func (s *Store) ByRoom(ctx context.Context, room domain.RoomID, limit int) ([]domain.Event, error) {
	var recs []Record
	err := s.db.WithContext(ctx).
		Where("room_id = ?", string(room)).
		Order("id desc").
		Limit(limit).
		Find(&recs).Error
	if err != nil {
		return nil, fmt.Errorf("query archive: %w", err)
	}
	out := make([]domain.Event, 0, len(recs))
	for i := len(recs) - 1; i >= 0; i-- {
		var ev domain.Event
		if err := json.Unmarshal([]byte(recs[i].Payload), &ev); err != nil {
			return nil, fmt.Errorf("decode archived event %d: %w", recs[i].ID, err)
		}
		out = append(out, ev)
	}
	return out, nil
}
