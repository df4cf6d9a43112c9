package users

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/leadtracker/crm/internal/auth"
	"github.com/leadtracker/crm/internal/common"
	"github.com/leadtracker/crm/internal/models"
)

const minPasswordLen = 8

type Service struct {
	repo *Repo
	now  func() time.Time
	log  zerolog.Logger
}

func NewService(repo *Repo, log zerolog.Logger) *Service {
	return &Service{repo: repo, now: time.Now, log: log}
}

type NewUser struct {
	Username  string
	Password  string
	Email     string
	FirstName string
	LastName  string
	IsAdmin   bool
}

// Create registers a user. Usernames are unique.
func (s *Service) Create(ctx context.Context, in NewUser) (*models.User, error) {
	username := strings.TrimSpace(in.Username)
	if username == "" {
		return nil, common.Invalid("username is required")
	}
	if len(in.Password) < minPasswordLen {
		return nil, common.Invalid("password must be at least %d characters", minPasswordLen)
	}

	hash, err := auth.HashPassword(in.Password)
	if err != nil {
		return nil, err
	}
	u := &models.User{
		Username:     username,
		Email:        strings.TrimSpace(in.Email),
		FirstName:    strings.TrimSpace(in.FirstName),
		LastName:     strings.TrimSpace(in.LastName),
		PasswordHash: hash,
		IsAdmin:      in.IsAdmin,
	}
	// the unique index is the only uniqueness check
	if err := s.repo.Create(ctx, u); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, common.Invalid("username %q is taken", username)
		}
		return nil, err
	}
	s.log.Info().Uint64("user_id", u.ID).Str("username", u.Username).Bool("admin", u.IsAdmin).Msg("user created")
	return u, nil
}

// Authenticate checks credentials and stamps the login time.
// Unknown users and wrong passwords fail the same way.
func (s *Service) Authenticate(ctx context.Context, username, password string) (*models.User, error) {
	u, err := s.repo.GetByUsername(ctx, strings.TrimSpace(username))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("invalid credentials: %w", common.ErrUnauthorized)
		}
		return nil, err
	}
	if !auth.CheckPassword(u.PasswordHash, password) {
		return nil, fmt.Errorf("invalid credentials: %w", common.ErrUnauthorized)
	}

	now := s.now()
	if err := s.repo.TouchLastLogin(ctx, u.ID, now); err != nil {
		return nil, err
	}
	u.LastLoginAt = &now
	return u, nil
}

func (s *Service) Get(ctx context.Context, id uint64) (*models.User, error) {
	u, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("user: %w", common.ErrNotFound)
		}
		return nil, err
	}
	return u, nil
}

// EnsureAdmin creates the bootstrap administrator unless the username exists.
func (s *Service) EnsureAdmin(ctx context.Context, username, password string) (bool, error) {
	if username == "" || password == "" {
		return false, nil
	}
	n, err := s.repo.CountByUsername(ctx, username)
	if err != nil {
		return false, err
	}
	if n > 0 {
		return false, nil
	}
	if _, err := s.Create(ctx, NewUser{Username: username, Password: password, IsAdmin: true}); err != nil {
		// another instance bootstrapped it first
		if n, cerr := s.repo.CountByUsername(ctx, username); cerr == nil && n > 0 {
			return false, nil
		}
		return false, err
	}
	return true, nil
}
