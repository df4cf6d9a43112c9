package analytics

import "time"

// UserActivity is the per-user, per-day activity row refreshed on every client creation.
type UserActivity struct {
	ID          uint64    `gorm:"primaryKey;autoIncrement" json:"-"`
	UserID      uint64    `gorm:"not null;index:uniq_user_day,unique,priority:1" json:"user_id"`
	Day         string    `gorm:"type:varchar(10);not null;index:uniq_user_day,unique,priority:2" json:"date"`
	RecordCount int64     `gorm:"not null;default:0" json:"record_count"`
	ActiveHours *float64  `json:"active_hours"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func (UserActivity) TableName() string { return "user_activities" }

type JobStatus string

const (
	JobQueued    JobStatus = "queued"
	JobRunning   JobStatus = "running"
	JobSucceeded JobStatus = "succeeded"
	JobFailed    JobStatus = "failed"
)

// Job is a queued snapshot refresh.
type Job struct {
	ID string `gorm:"primaryKey;size:26" json:"id"` // ULID length

	RequestedBy uint64 `gorm:"not null;index:uniq_requester_idempo,unique,priority:1" json:"requested_by"`

	IdempotencyKey *string `gorm:"type:varchar(128);index:uniq_requester_idempo,unique,priority:2" json:"idempotency_key"`

	Status JobStatus `gorm:"type:varchar(16);index;not null" json:"status"`

	// Filled when failed
	Error *string `gorm:"type:text" json:"error"`

	FinishedAt *time.Time `json:"finished_at"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
}

func (Job) TableName() string { return "analytics_jobs" }

// Bucket is one period of a zero-filled series.
type Bucket struct {
	Period string `json:"period"`
	Count  int64  `json:"count"`
}

// Summary is the analytics view of a single user.
type Summary struct {
	UserID       uint64     `json:"user_id"`
	Username     string     `json:"username"`
	TotalRecords int64      `json:"total_records"`
	LastRecordAt *time.Time `json:"last_record_at"`
	Daily        []Bucket   `json:"daily_counts"`
	Monthly      []Bucket   `json:"monthly_counts"`
	// nil when the user never logged in
	ActiveHours *float64 `json:"active_hours"`
	// today's activity row, only on single-user lookups
	Today *UserActivity `json:"today_activity,omitempty"`
}

// Snapshot is what the refresh job stores in the cache.
type Snapshot struct {
	GeneratedAt time.Time `json:"generated_at"`
	Users       []Summary `json:"users"`
	Daily       []Bucket  `json:"daily"`
	Monthly     []Bucket  `json:"monthly"`
	Hourly      []Bucket  `json:"hourly"`
}
