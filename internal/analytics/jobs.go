package analytics

import (
	"context"
	"fmt"
	"strings"

	"github.com/leadtracker/crm/internal/common"
)

const maxIdempotencyKeyLen = 128

// RequestRefresh queues a snapshot refresh. A repeated idempotency key from the
// same requester returns the original job and does not enqueue again.
func (s *Service) RequestRefresh(ctx context.Context, requestedBy uint64, idempotencyKey string) (*Job, bool, error) {
	key := strings.TrimSpace(idempotencyKey)
	if len(key) > maxIdempotencyKeyLen {
		return nil, false, common.Invalid("idempotency key too long")
	}

	jobID, err := common.NewULID()
	if err != nil {
		return nil, false, err
	}
	j := &Job{
		ID:          jobID,
		RequestedBy: requestedBy,
		Status:      JobQueued,
	}
	if key != "" {
		j.IdempotencyKey = &key
	}

	job, created, err := s.repo.CreateJobOrGetExisting(ctx, j)
	if err != nil {
		return nil, false, err
	}
	if !created {
		return job, false, nil
	}

	if s.publisher == nil {
		if err := s.RunJob(ctx, job.ID); err != nil {
			s.log.Warn().Err(err).Str("job_id", job.ID).Msg("inline analytics refresh failed")
		}
		return s.reload(ctx, job)
	}

	if err := s.publisher.PublishJob(ctx, job.ID); err != nil {
		_ = s.repo.MarkJobFailed(ctx, job.ID, "enqueue failed: "+err.Error(), s.now())
		return nil, false, fmt.Errorf("enqueue job %s: %w", job.ID, err)
	}
	return job, true, nil
}

func (s *Service) reload(ctx context.Context, job *Job) (*Job, bool, error) {
	fresh, err := s.repo.GetJobByID(ctx, job.ID)
	if err != nil {
		return nil, false, err
	}
	return fresh, true, nil
}

func (s *Service) GetJob(ctx context.Context, id string) (*Job, error) {
	j, err := s.repo.GetJobByID(ctx, id)
	if err != nil {
		return nil, notFound(err, "job")
	}
	return j, nil
}

// RunJob executes a queued refresh job. Jobs that are no longer queued are
// skipped so redelivered messages are harmless.
func (s *Service) RunJob(ctx context.Context, id string) error {
	claimed, err := s.repo.MarkJobRunning(ctx, id)
	if err != nil {
		return err
	}
	if !claimed {
		j, err := s.repo.GetJobByID(ctx, id)
		if err != nil {
			return notFound(err, "job")
		}
		s.log.Debug().Str("job_id", id).Str("status", string(j.Status)).Msg("skipping job that is not queued")
		return nil
	}

	if _, err := s.Refresh(ctx); err != nil {
		if markErr := s.repo.MarkJobFailed(ctx, id, err.Error(), s.now()); markErr != nil {
			s.log.Error().Err(markErr).Str("job_id", id).Msg("mark job failed")
		}
		return err
	}
	return s.repo.MarkJobSucceeded(ctx, id, s.now())
}
