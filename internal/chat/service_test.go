package chat

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	gormsqlite "github.com/glebarez/sqlite"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/leadtracker/crm/internal/models"
	"github.com/leadtracker/crm/internal/store/memstore"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

func openTestDB(t *testing.T) *gorm.DB {
	return openDB(t, 1)
}

// openDB with conns > 1 lets concurrent transactions overlap for real.
func openDB(t *testing.T, conns int) *gorm.DB {
	t.Helper()
	dsn := filepath.Join(t.TempDir(), "chat.db") + "?_pragma=busy_timeout(10000)&_pragma=journal_mode(WAL)"
	db, err := gorm.Open(gormsqlite.Open(dsn), &gorm.Config{TranslateError: true})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(conns)
	t.Cleanup(func() { _ = sqlDB.Close() })

	if err := db.AutoMigrate(&models.User{}, &Room{}, &RoomMember{}, &Message{}); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	return db
}

type fixture struct {
	svc   *Service
	db    *gorm.DB
	clock *fakeClock
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	return newFixtureOn(t, openTestDB(t))
}

func newFixtureOn(t *testing.T, db *gorm.DB) *fixture {
	t.Helper()
	clk := &fakeClock{t: time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)}
	cache := memstore.New(memstore.WithClock(clk.Now))
	svc := NewService(NewRepo(db), cache, Options{PresenceTTL: 5 * time.Minute, TypingTTL: 10 * time.Second}, zerolog.Nop())
	return &fixture{svc: svc, db: db, clock: clk}
}

func (f *fixture) user(t *testing.T, username string) uint64 {
	t.Helper()
	u := models.User{Username: username, PasswordHash: "x", FirstName: username}
	if err := f.db.Create(&u).Error; err != nil {
		t.Fatalf("seed user: %v", err)
	}
	return u.ID
}

func (f *fixture) room(t *testing.T, a, b uint64) *Room {
	t.Helper()
	room, _, err := f.svc.GetOrCreatePrivateRoom(context.Background(), a, b)
	if err != nil {
		t.Fatalf("room: %v", err)
	}
	return room
}

func (f *fixture) send(t *testing.T, from, roomID uint64, content string) *MessageView {
	t.Helper()
	m, err := f.svc.SendMessage(context.Background(), from, roomID, content)
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	return m
}
