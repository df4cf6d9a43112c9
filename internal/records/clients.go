package records

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/leadtracker/crm/internal/common"
	"github.com/leadtracker/crm/internal/metrics"
)

// CreateClient creates a client owned by the caller with the given values.
func (s *Service) CreateClient(ctx context.Context, caller Caller, values map[uint64]string) (*Record, error) {
	if err := validateValues(values); err != nil {
		return nil, err
	}

	c := &Client{OwnerID: caller.UserID}
	err := s.repo.Transaction(ctx, func(tx *Repo) error {
		if err := tx.CreateClient(ctx, c); err != nil {
			return err
		}
		return s.setAll(ctx, tx, c.ID, values)
	})
	if err != nil {
		return nil, err
	}
	metrics.ClientsCreatedTotal.Inc()

	if s.activity != nil {
		if err := s.activity.RecordActivity(ctx, caller.UserID); err != nil {
			s.log.Warn().Err(err).Uint64("user_id", caller.UserID).Msg("failed to record activity")
		}
	}

	return s.record(ctx, c)
}

// visibleClient loads id if the caller may see it. Anything else is not found.
func (s *Service) visibleClient(ctx context.Context, caller Caller, id uint64) (*Client, error) {
	c, err := s.repo.GetClient(ctx, id)
	if err != nil {
		return nil, notFound(err, "client")
	}
	if !caller.IsAdmin && c.OwnerID != caller.UserID {
		return nil, fmt.Errorf("client: %w", common.ErrNotFound)
	}
	return c, nil
}

func (s *Service) GetClient(ctx context.Context, caller Caller, id uint64) (*Record, error) {
	c, err := s.visibleClient(ctx, caller, id)
	if err != nil {
		return nil, err
	}
	return s.record(ctx, c)
}

func (s *Service) UpdateClient(ctx context.Context, caller Caller, id uint64, values map[uint64]string) (*Record, error) {
	c, err := s.visibleClient(ctx, caller, id)
	if err != nil {
		return nil, err
	}
	if err := s.SetAttributes(ctx, c.ID, values); err != nil {
		return nil, err
	}
	return s.record(ctx, c)
}

func (s *Service) DeleteClient(ctx context.Context, caller Caller, id uint64) error {
	c, err := s.visibleClient(ctx, caller, id)
	if err != nil {
		return err
	}
	err = s.repo.Transaction(ctx, func(tx *Repo) error {
		return tx.DeleteClient(ctx, c.ID)
	})
	return notFound(err, "client")
}

// ListClients returns the caller's clients. Admins see everyone's, optionally
// narrowed to a single owner by username.
func (s *Service) ListClients(ctx context.Context, caller Caller, username string) ([]Record, error) {
	ownerID := caller.UserID
	if caller.IsAdmin {
		ownerID = 0
		if username != "" {
			u, err := s.repo.UserByUsername(ctx, username)
			if err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return nil, fmt.Errorf("user %q: %w", username, common.ErrNotFound)
				}
				return nil, err
			}
			ownerID = u.ID
		}
	}

	clients, err := s.repo.ListClients(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	return s.records(ctx, clients)
}

func (s *Service) record(ctx context.Context, c *Client) (*Record, error) {
	out, err := s.records(ctx, []Client{*c})
	if err != nil {
		return nil, err
	}
	return &out[0], nil
}

// records attaches owners and reconciled attributes with a fixed number of queries.
func (s *Service) records(ctx context.Context, clients []Client) ([]Record, error) {
	out := make([]Record, 0, len(clients))
	if len(clients) == 0 {
		return out, nil
	}

	templates, err := s.repo.ListTemplates(ctx)
	if err != nil {
		return nil, err
	}

	ids := make([]uint64, 0, len(clients))
	ownerSet := make(map[uint64]struct{})
	for _, c := range clients {
		ids = append(ids, c.ID)
		ownerSet[c.OwnerID] = struct{}{}
	}
	owners := make([]uint64, 0, len(ownerSet))
	for id := range ownerSet {
		owners = append(owners, id)
	}

	stored, err := s.repo.FieldsForClients(ctx, ids)
	if err != nil {
		return nil, err
	}
	byClient := make(map[uint64][]ClientField, len(clients))
	for _, f := range stored {
		byClient[f.ClientID] = append(byClient[f.ClientID], f)
	}

	usernames, err := s.repo.UsernamesByID(ctx, owners)
	if err != nil {
		return nil, err
	}

	for _, c := range clients {
		out = append(out, Record{
			Client:        c,
			OwnerUsername: usernames[c.OwnerID],
			Fields:        reconcile(templates, byClient[c.ID]),
		})
	}
	return out, nil
}
