package records

import (
	"context"
	"strings"
	"unicode/utf8"

	"github.com/leadtracker/crm/internal/common"
	"github.com/leadtracker/crm/internal/metrics"
)

func cleanTemplateName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", common.Invalid("template name is required")
	}
	if utf8.RuneCountInString(name) > maxTemplateNameLen {
		return "", common.Invalid("template name must be at most %d characters", maxTemplateNameLen)
	}
	return name, nil
}

// CreateTemplate adds a template and backfills an empty value for every
// existing client in the same transaction.
func (s *Service) CreateTemplate(ctx context.Context, name string) (*FieldTemplate, error) {
	name, err := cleanTemplateName(name)
	if err != nil {
		return nil, err
	}

	t := &FieldTemplate{Name: name}
	err = s.repo.Transaction(ctx, func(tx *Repo) error {
		if err := tx.CreateTemplate(ctx, t); err != nil {
			return err
		}
		return reconcileOnTemplateCreate(ctx, tx, t)
	})
	if err != nil {
		return nil, err
	}

	metrics.FieldTemplatesTotal.WithLabelValues("create").Inc()
	s.log.Info().Uint64("template_id", t.ID).Str("name", t.Name).Msg("field template created")
	return t, nil
}

// reconcileOnTemplateCreate gives every existing client an empty value for t
// so reads become plain lookups. Attributes synthesizes missing values anyway.
func reconcileOnTemplateCreate(ctx context.Context, repo *Repo, t *FieldTemplate) error {
	clientIDs, err := repo.ClientIDs(ctx)
	if err != nil {
		return err
	}
	return repo.InsertEmptyFields(ctx, t.ID, clientIDs)
}

func (s *Service) ListTemplates(ctx context.Context) ([]FieldTemplate, error) {
	return s.repo.ListTemplates(ctx)
}

func (s *Service) RenameTemplate(ctx context.Context, id uint64, name string) (*FieldTemplate, error) {
	name, err := cleanTemplateName(name)
	if err != nil {
		return nil, err
	}
	if err := s.repo.RenameTemplate(ctx, id, name); err != nil {
		return nil, notFound(err, "field template")
	}
	t, err := s.repo.GetTemplate(ctx, id)
	if err != nil {
		return nil, notFound(err, "field template")
	}
	metrics.FieldTemplatesTotal.WithLabelValues("rename").Inc()
	return t, nil
}

// DeleteTemplate drops the template and, with it, every client's value for it.
func (s *Service) DeleteTemplate(ctx context.Context, id uint64) error {
	err := s.repo.Transaction(ctx, func(tx *Repo) error {
		return tx.DeleteTemplate(ctx, id)
	})
	if err != nil {
		return notFound(err, "field template")
	}
	metrics.FieldTemplatesTotal.WithLabelValues("delete").Inc()
	s.log.Info().Uint64("template_id", id).Msg("field template deleted")
	return nil
}
