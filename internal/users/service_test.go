package users

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	gormsqlite "github.com/glebarez/sqlite"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/leadtracker/crm/internal/common"
	"github.com/leadtracker/crm/internal/models"
)

func newTestService(t *testing.T) *Service {
	t.Helper()
	dsn := filepath.Join(t.TempDir(), "users.db") + "?_pragma=busy_timeout(10000)&_pragma=journal_mode(WAL)"
	db, err := gorm.Open(gormsqlite.Open(dsn), &gorm.Config{TranslateError: true})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, _ := db.DB()
	t.Cleanup(func() { _ = sqlDB.Close() })
	if err := db.AutoMigrate(&models.User{}); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	return NewService(NewRepo(db), zerolog.Nop())
}

func TestCreate_Validation(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	if _, err := svc.Create(ctx, NewUser{Username: " ", Password: "longenough"}); !errors.Is(err, common.ErrValidation) {
		t.Fatalf("expected validation error for blank username, got %v", err)
	}
	if _, err := svc.Create(ctx, NewUser{Username: "alice", Password: "short"}); !errors.Is(err, common.ErrValidation) {
		t.Fatalf("expected validation error for short password, got %v", err)
	}

	u, err := svc.Create(ctx, NewUser{Username: " alice ", Password: "longenough", FirstName: "Alice"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if u.Username != "alice" || u.PasswordHash == "longenough" || u.IsAdmin {
		t.Fatalf("unexpected user: %+v", u)
	}
	if _, err := svc.Create(ctx, NewUser{Username: "alice", Password: "longenough"}); !errors.Is(err, common.ErrValidation) {
		t.Fatalf("expected duplicate username to be rejected, got %v", err)
	}
}

func TestCreate_ConcurrentSameUsername(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	const n = 4
	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.Create(ctx, NewUser{Username: "alice", Password: "longenough"})
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	created := 0
	for err := range errs {
		switch {
		case err == nil:
			created++
		case errors.Is(err, common.ErrValidation):
		default:
			t.Fatalf("losing create should be a validation error, got %v", err)
		}
	}
	if created != 1 {
		t.Fatalf("expected exactly one user created, got %d", created)
	}
}

func TestAuthenticate_StampsLastLogin(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()
	at := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return at }

	created, _ := svc.Create(ctx, NewUser{Username: "alice", Password: "longenough"})
	if created.LastLoginAt != nil {
		t.Fatalf("new users have never logged in")
	}

	if _, err := svc.Authenticate(ctx, "alice", "wrong-password"); !errors.Is(err, common.ErrUnauthorized) {
		t.Fatalf("expected unauthorized, got %v", err)
	}
	if _, err := svc.Authenticate(ctx, "nobody", "longenough"); !errors.Is(err, common.ErrUnauthorized) {
		t.Fatalf("expected unauthorized for unknown user, got %v", err)
	}

	u, err := svc.Authenticate(ctx, "alice", "longenough")
	if err != nil {
		t.Fatalf("authenticate: %v", err)
	}
	if u.LastLoginAt == nil || !u.LastLoginAt.Equal(at) {
		t.Fatalf("unexpected last login: %v", u.LastLoginAt)
	}
	stored, _ := svc.Get(ctx, u.ID)
	if stored.LastLoginAt == nil || !stored.LastLoginAt.Equal(at) {
		t.Fatalf("last login not persisted: %v", stored.LastLoginAt)
	}
}

func TestEnsureAdmin(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	if created, err := svc.EnsureAdmin(ctx, "", ""); err != nil || created {
		t.Fatalf("empty credentials should be a no-op: %v %v", created, err)
	}
	created, err := svc.EnsureAdmin(ctx, "root", "supersecret")
	if err != nil || !created {
		t.Fatalf("bootstrap: created=%v err=%v", created, err)
	}
	created, err = svc.EnsureAdmin(ctx, "root", "supersecret")
	if err != nil || created {
		t.Fatalf("second bootstrap must not create: created=%v err=%v", created, err)
	}

	u, err := svc.Authenticate(ctx, "root", "supersecret")
	if err != nil || !u.IsAdmin {
		t.Fatalf("expected admin login, got %+v %v", u, err)
	}
	if _, err := svc.Get(ctx, 999); !errors.Is(err, common.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}
