package analytics

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/leadtracker/crm/internal/common"
	"github.com/leadtracker/crm/internal/models"
	"github.com/leadtracker/crm/internal/records"
	"github.com/leadtracker/crm/internal/store"
)

// SnapshotKey is where the precomputed snapshot lives in the TTL store.
const SnapshotKey = "analytics:snapshot"

// Publisher hands refresh jobs to the worker.
type Publisher interface {
	PublishJob(ctx context.Context, jobID string) error
}

type Service struct {
	repo        *Repo
	cache       store.TTL
	publisher   Publisher
	snapshotTTL time.Duration
	now         func() time.Time
	log         zerolog.Logger
}

type Option func(*Service)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithPublisher enables asynchronous refresh jobs. Without one, RequestRefresh
// runs the job inline.
func WithPublisher(p Publisher) Option {
	return func(s *Service) { s.publisher = p }
}

func NewService(repo *Repo, cache store.TTL, snapshotTTL time.Duration, log zerolog.Logger, opts ...Option) *Service {
	if snapshotTTL <= 0 {
		snapshotTTL = 24 * time.Hour
	}
	s := &Service{
		repo:        repo,
		cache:       cache,
		snapshotTTL: snapshotTTL,
		now:         time.Now,
		log:         log,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func notFound(err error, what string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("%s: %w", what, common.ErrNotFound)
	}
	return err
}

// windowStart is the earliest instant any series needs, with a day of slack
// for stores that compare timestamps as text.
func windowStart(now time.Time) time.Time {
	first := time.Date(now.Year(), now.Month()-monthlyWindow+1, 1, 0, 0, 0, 0, now.Location())
	return first.AddDate(0, 0, -1)
}

// RecordActivity refreshes today's activity row for userID.
func (s *Service) RecordActivity(ctx context.Context, userID uint64) error {
	now := s.now()
	u, err := s.repo.GetUser(ctx, userID)
	if err != nil {
		return notFound(err, "user")
	}

	since := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location()).AddDate(0, 0, -1)
	cs, err := s.repo.ClientsSince(ctx, userID, since)
	if err != nil {
		return err
	}
	today := DailyBuckets(createdAt(cs), now, 1)[0]

	hours := ActiveHours(u.LastLoginAt, now)
	if hours == nil {
		zero := 0.0
		hours = &zero
	}
	return s.repo.UpsertActivity(ctx, &UserActivity{
		UserID:      userID,
		Day:         today.Period,
		RecordCount: today.Count,
		ActiveHours: hours,
		UpdatedAt:   now,
	})
}

// UserSummary computes the analytics view of a single user.
func (s *Service) UserSummary(ctx context.Context, userID uint64) (*Summary, error) {
	now := s.now()
	u, err := s.repo.GetUser(ctx, userID)
	if err != nil {
		return nil, notFound(err, "user")
	}
	total, err := s.repo.CountClients(ctx, userID)
	if err != nil {
		return nil, err
	}
	last, err := s.repo.LatestClientAt(ctx, userID)
	if err != nil {
		return nil, err
	}
	cs, err := s.repo.ClientsSince(ctx, userID, windowStart(now))
	if err != nil {
		return nil, err
	}
	sum := summarize(*u, total, last, createdAt(cs), now)

	sum.Today, err = s.repo.GetActivity(ctx, userID, now.Format(dayLayout))
	if err != nil {
		return nil, err
	}
	return &sum, nil
}

// Compute builds a fresh snapshot from the database.
func (s *Service) Compute(ctx context.Context) (*Snapshot, error) {
	now := s.now()
	users, err := s.repo.ListUsers(ctx)
	if err != nil {
		return nil, err
	}
	totals, err := s.repo.CountClientsByOwner(ctx)
	if err != nil {
		return nil, err
	}
	cs, err := s.repo.ClientsSince(ctx, 0, windowStart(now))
	if err != nil {
		return nil, err
	}

	byOwner := make(map[uint64][]time.Time)
	all := make([]time.Time, 0, len(cs))
	for _, c := range cs {
		byOwner[c.OwnerID] = append(byOwner[c.OwnerID], c.CreatedAt)
		all = append(all, c.CreatedAt)
	}

	snap := &Snapshot{
		GeneratedAt: now,
		Users:       make([]Summary, 0, len(users)),
		Daily:       DailyBuckets(all, now, dailyWindow),
		Monthly:     MonthlyBuckets(all, now, monthlyWindow),
		Hourly:      HourlyBuckets(all, now, hourlyWindow),
	}
	for _, u := range users {
		var last *time.Time
		if totals[u.ID] > 0 {
			if last, err = s.repo.LatestClientAt(ctx, u.ID); err != nil {
				return nil, err
			}
		}
		snap.Users = append(snap.Users, summarize(u, totals[u.ID], last, byOwner[u.ID], now))
	}
	return snap, nil
}

func summarize(u models.User, total int64, last *time.Time, ts []time.Time, now time.Time) Summary {
	return Summary{
		UserID:       u.ID,
		Username:     u.Username,
		TotalRecords: total,
		LastRecordAt: last,
		Daily:        DailyBuckets(ts, now, dailyWindow),
		Monthly:      MonthlyBuckets(ts, now, monthlyWindow),
		ActiveHours:  ActiveHours(u.LastLoginAt, now),
	}
}

func createdAt(cs []records.Client) []time.Time {
	out := make([]time.Time, len(cs))
	for i, c := range cs {
		out[i] = c.CreatedAt
	}
	return out
}
