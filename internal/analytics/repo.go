package analytics

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/leadtracker/crm/internal/models"
	"github.com/leadtracker/crm/internal/records"
)

type Repo struct {
	db *gorm.DB
}

func NewRepo(db *gorm.DB) *Repo {
	return &Repo{db: db}
}

// Users

func (r *Repo) GetUser(ctx context.Context, id uint64) (*models.User, error) {
	var u models.User
	if err := r.db.WithContext(ctx).First(&u, id).Error; err != nil {
		return nil, err
	}
	return &u, nil
}

func (r *Repo) ListUsers(ctx context.Context) ([]models.User, error) {
	var us []models.User
	if err := r.db.WithContext(ctx).Order("id ASC").Find(&us).Error; err != nil {
		return nil, err
	}
	return us, nil
}

// Clients (read only)

func (r *Repo) CountClients(ctx context.Context, ownerID uint64) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&records.Client{}).
		Where("owner_id = ?", ownerID).
		Count(&n).Error
	return n, err
}

type ownerTotal struct {
	OwnerID uint64
	Total   int64
}

func (r *Repo) CountClientsByOwner(ctx context.Context) (map[uint64]int64, error) {
	var rows []ownerTotal
	if err := r.db.WithContext(ctx).Model(&records.Client{}).
		Select("owner_id, COUNT(*) AS total").
		Group("owner_id").
		Scan(&rows).Error; err != nil {
		return nil, err
	}
	out := make(map[uint64]int64, len(rows))
	for _, row := range rows {
		out[row.OwnerID] = row.Total
	}
	return out, nil
}

// LatestClientAt returns nil when the owner has no clients.
func (r *Repo) LatestClientAt(ctx context.Context, ownerID uint64) (*time.Time, error) {
	var c records.Client
	err := r.db.WithContext(ctx).
		Select("id", "created_at").
		Where("owner_id = ?", ownerID).
		Order("created_at DESC, id DESC").
		First(&c).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &c.CreatedAt, nil
}

// ClientsSince returns owner_id and created_at of clients created at or after since.
// ownerID 0 means all owners.
func (r *Repo) ClientsSince(ctx context.Context, ownerID uint64, since time.Time) ([]records.Client, error) {
	q := r.db.WithContext(ctx).
		Select("id", "owner_id", "created_at").
		Where("created_at >= ?", since)
	if ownerID != 0 {
		q = q.Where("owner_id = ?", ownerID)
	}
	var cs []records.Client
	if err := q.Find(&cs).Error; err != nil {
		return nil, err
	}
	return cs, nil
}

// Activity

// UpsertActivity writes the (user, day) row, overwriting counters on conflict.
func (r *Repo) UpsertActivity(ctx context.Context, a *UserActivity) error {
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}, {Name: "day"}},
		DoUpdates: clause.AssignmentColumns([]string{"record_count", "active_hours", "updated_at"}),
	}).Create(a).Error
}

// GetActivity returns nil when the user has no row for day.
func (r *Repo) GetActivity(ctx context.Context, userID uint64, day string) (*UserActivity, error) {
	var a UserActivity
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND day = ?", userID, day).
		First(&a).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// Jobs

func (r *Repo) GetJobByID(ctx context.Context, id string) (*Job, error) {
	var j Job
	if err := r.db.WithContext(ctx).First(&j, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &j, nil
}

// MarkJobRunning moves a queued job to running. It reports false when the job
// was not queued, which happens on redelivery.
func (r *Repo) MarkJobRunning(ctx context.Context, id string) (bool, error) {
	res := r.db.WithContext(ctx).Model(&Job{}).
		Where("id = ? AND status = ?", id, JobQueued).
		Update("status", JobRunning)
	return res.RowsAffected > 0, res.Error
}

func (r *Repo) MarkJobSucceeded(ctx context.Context, id string, at time.Time) error {
	return r.db.WithContext(ctx).Model(&Job{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"status":      JobSucceeded,
			"error":       nil,
			"finished_at": at,
		}).Error
}

func (r *Repo) MarkJobFailed(ctx context.Context, id string, errMsg string, at time.Time) error {
	return r.db.WithContext(ctx).Model(&Job{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"status":      JobFailed,
			"error":       errMsg,
			"finished_at": at,
		}).Error
}

func (r *Repo) GetJobByRequesterAndIdempotencyKey(ctx context.Context, userID uint64, key string) (*Job, error) {
	var job Job
	err := r.db.WithContext(ctx).
		Where("requested_by = ? AND idempotency_key = ?", userID, key).
		First(&job).Error
	if err != nil {
		return nil, err
	}
	return &job, nil
}

// CreateJobOrGetExisting tries to create a job, but if (requested_by, idempotency_key)
// already exists, it returns the existing job instead.
func (r *Repo) CreateJobOrGetExisting(ctx context.Context, job *Job) (*Job, bool, error) {
	if job.IdempotencyKey == nil || *job.IdempotencyKey == "" {
		job.IdempotencyKey = nil
		if err := r.db.WithContext(ctx).Create(job).Error; err != nil {
			return nil, false, err
		}
		return job, true, nil
	}

	err := r.db.WithContext(ctx).Create(job).Error
	if err == nil {
		return job, true, nil
	}

	existing, getErr := r.GetJobByRequesterAndIdempotencyKey(ctx, job.RequestedBy, *job.IdempotencyKey)
	if getErr == nil {
		return existing, false, nil
	}

	if errors.Is(getErr, gorm.ErrRecordNotFound) {
		return nil, false, err
	}
	return nil, false, getErr
}
