package records

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/leadtracker/crm/internal/common"
)

const (
	maxTemplateNameLen = 100
	maxValueLen        = 255
)

// ActivityRecorder is notified after a user creates a client.
type ActivityRecorder interface {
	RecordActivity(ctx context.Context, userID uint64) error
}

type Service struct {
	repo     *Repo
	activity ActivityRecorder
	log      zerolog.Logger
}

func NewService(repo *Repo, activity ActivityRecorder, log zerolog.Logger) *Service {
	return &Service{repo: repo, activity: activity, log: log}
}

func notFound(err error, what string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("%s: %w", what, common.ErrNotFound)
	}
	return err
}
