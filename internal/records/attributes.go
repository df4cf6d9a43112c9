package records

import (
	"context"
	"errors"
	"unicode/utf8"

	"gorm.io/gorm"

	"github.com/leadtracker/crm/internal/common"
)

// Attributes returns one value per existing template for clientID. Templates
// without a stored value read as "". Nothing is written.
func (s *Service) Attributes(ctx context.Context, clientID uint64) (map[uint64]string, error) {
	fields, err := s.fields(ctx, clientID)
	if err != nil {
		return nil, err
	}
	out := make(map[uint64]string, len(fields))
	for _, f := range fields {
		out[f.TemplateID] = f.Value
	}
	return out, nil
}

func (s *Service) fields(ctx context.Context, clientID uint64) ([]Attribute, error) {
	templates, err := s.repo.ListTemplates(ctx)
	if err != nil {
		return nil, err
	}
	stored, err := s.repo.FieldsForClients(ctx, []uint64{clientID})
	if err != nil {
		return nil, err
	}
	return reconcile(templates, stored), nil
}

// reconcile lays stored values over the template list, in template order.
func reconcile(templates []FieldTemplate, stored []ClientField) []Attribute {
	byTemplate := make(map[uint64]string, len(stored))
	for _, f := range stored {
		byTemplate[f.TemplateID] = f.Value
	}
	out := make([]Attribute, 0, len(templates))
	for _, t := range templates {
		out = append(out, Attribute{TemplateID: t.ID, Name: t.Name, Value: byTemplate[t.ID]})
	}
	return out
}

// SetAttributes upserts every supplied value for clientID in one transaction.
// Template ids that no longer exist are dropped without error.
func (s *Service) SetAttributes(ctx context.Context, clientID uint64, values map[uint64]string) error {
	if err := validateValues(values); err != nil {
		return err
	}
	return s.repo.Transaction(ctx, func(tx *Repo) error {
		return s.setAll(ctx, tx, clientID, values)
	})
}

func validateValues(values map[uint64]string) error {
	for id, v := range values {
		if utf8.RuneCountInString(v) > maxValueLen {
			return common.Invalid("value for field %d must be at most %d characters", id, maxValueLen)
		}
	}
	return nil
}

// setAll upserts each value in its own savepoint. Values whose template or
// client no longer exists fail the foreign key and are dropped, so a delete
// racing this call never leaves an orphan row.
func (s *Service) setAll(ctx context.Context, tx *Repo, clientID uint64, values map[uint64]string) error {
	for id, v := range values {
		err := tx.Transaction(ctx, func(sp *Repo) error {
			return sp.UpsertField(ctx, clientID, id, v)
		})
		if errors.Is(err, gorm.ErrForeignKeyViolated) {
			s.log.Debug().Uint64("client_id", clientID).Uint64("template_id", id).Msg("dropping value for unknown template")
			continue
		}
		if err != nil {
			return err
		}
	}
	return nil
}
