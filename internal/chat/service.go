package chat

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/leadtracker/crm/internal/common"
	"github.com/leadtracker/crm/internal/store"
)

const (
	defaultPresenceTTL = 5 * time.Minute
	defaultTypingTTL   = 10 * time.Second
)

type Options struct {
	PresenceTTL time.Duration
	TypingTTL   time.Duration
}

type Service struct {
	repo        *Repo
	cache       store.TTL
	presenceTTL time.Duration
	typingTTL   time.Duration
	log         zerolog.Logger
}

func NewService(repo *Repo, cache store.TTL, opts Options, log zerolog.Logger) *Service {
	if opts.PresenceTTL <= 0 {
		opts.PresenceTTL = defaultPresenceTTL
	}
	if opts.TypingTTL <= 0 {
		opts.TypingTTL = defaultTypingTTL
	}
	return &Service{
		repo:        repo,
		cache:       cache,
		presenceTTL: opts.PresenceTTL,
		typingTTL:   opts.TypingTTL,
		log:         log,
	}
}

func notFound(err error, what string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("%s: %w", what, common.ErrNotFound)
	}
	return err
}

// requireMember hides rooms the user does not belong to, existing or not.
func (s *Service) requireMember(ctx context.Context, roomID, userID uint64) error {
	if roomID == 0 {
		return common.Invalid("room_id is required")
	}
	ok, err := s.repo.IsMember(ctx, roomID, userID)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("room %d: %w", roomID, common.ErrNotFound)
	}
	return nil
}
