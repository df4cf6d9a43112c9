package records

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/leadtracker/crm/internal/models"
)

const insertBatchSize = 500

type Repo struct {
	db *gorm.DB
}

func NewRepo(db *gorm.DB) *Repo {
	return &Repo{db: db}
}

// Transaction runs fn against a Repo bound to a single transaction.
func (r *Repo) Transaction(ctx context.Context, fn func(tx *Repo) error) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&Repo{db: tx})
	})
}

// Templates

func (r *Repo) CreateTemplate(ctx context.Context, t *FieldTemplate) error {
	return r.db.WithContext(ctx).Create(t).Error
}

func (r *Repo) ListTemplates(ctx context.Context) ([]FieldTemplate, error) {
	var ts []FieldTemplate
	if err := r.db.WithContext(ctx).Order("id ASC").Find(&ts).Error; err != nil {
		return nil, err
	}
	return ts, nil
}

func (r *Repo) GetTemplate(ctx context.Context, id uint64) (*FieldTemplate, error) {
	var t FieldTemplate
	if err := r.db.WithContext(ctx).First(&t, id).Error; err != nil {
		return nil, err
	}
	return &t, nil
}

// RenameTemplate returns gorm.ErrRecordNotFound when id does not exist.
func (r *Repo) RenameTemplate(ctx context.Context, id uint64, name string) error {
	res := r.db.WithContext(ctx).Model(&FieldTemplate{}).
		Where("id = ?", id).
		Update("name", name)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// DeleteTemplate removes the template and every value stored against it.
func (r *Repo) DeleteTemplate(ctx context.Context, id uint64) error {
	db := r.db.WithContext(ctx)
	if err := db.Where("template_id = ?", id).Delete(&ClientField{}).Error; err != nil {
		return err
	}
	res := db.Delete(&FieldTemplate{}, id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// Attribute values

// InsertEmptyFields creates an empty value for templateID on each client,
// leaving existing rows untouched.
func (r *Repo) InsertEmptyFields(ctx context.Context, templateID uint64, clientIDs []uint64) error {
	if len(clientIDs) == 0 {
		return nil
	}
	rows := make([]ClientField, 0, len(clientIDs))
	for _, cid := range clientIDs {
		rows = append(rows, ClientField{ClientID: cid, TemplateID: templateID})
	}
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		CreateInBatches(rows, insertBatchSize).Error
}

// UpsertField inserts or overwrites the value for (clientID, templateID) in
// one statement, relying on the unique index over the pair.
func (r *Repo) UpsertField(ctx context.Context, clientID, templateID uint64, value string) error {
	f := ClientField{ClientID: clientID, TemplateID: templateID, Value: value}
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "client_id"}, {Name: "template_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
		}).
		Create(&f).Error
}

func (r *Repo) FieldsForClients(ctx context.Context, clientIDs []uint64) ([]ClientField, error) {
	if len(clientIDs) == 0 {
		return nil, nil
	}
	var fs []ClientField
	if err := r.db.WithContext(ctx).
		Where("client_id IN ?", clientIDs).
		Find(&fs).Error; err != nil {
		return nil, err
	}
	return fs, nil
}

// Clients

func (r *Repo) CreateClient(ctx context.Context, c *Client) error {
	return r.db.WithContext(ctx).Create(c).Error
}

func (r *Repo) GetClient(ctx context.Context, id uint64) (*Client, error) {
	var c Client
	if err := r.db.WithContext(ctx).First(&c, id).Error; err != nil {
		return nil, err
	}
	return &c, nil
}

// ListClients returns clients newest first; ownerID 0 means all owners.
func (r *Repo) ListClients(ctx context.Context, ownerID uint64) ([]Client, error) {
	q := r.db.WithContext(ctx).Order("created_at DESC, id DESC")
	if ownerID != 0 {
		q = q.Where("owner_id = ?", ownerID)
	}
	var cs []Client
	if err := q.Find(&cs).Error; err != nil {
		return nil, err
	}
	return cs, nil
}

func (r *Repo) ClientIDs(ctx context.Context) ([]uint64, error) {
	var ids []uint64
	if err := r.db.WithContext(ctx).Model(&Client{}).Order("id ASC").Pluck("id", &ids).Error; err != nil {
		return nil, err
	}
	return ids, nil
}

// DeleteClient removes the client and its attribute values.
func (r *Repo) DeleteClient(ctx context.Context, id uint64) error {
	db := r.db.WithContext(ctx)
	if err := db.Where("client_id = ?", id).Delete(&ClientField{}).Error; err != nil {
		return err
	}
	res := db.Delete(&Client{}, id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// Users

func (r *Repo) UserByUsername(ctx context.Context, username string) (*models.User, error) {
	var u models.User
	if err := r.db.WithContext(ctx).Where("username = ?", username).First(&u).Error; err != nil {
		return nil, err
	}
	return &u, nil
}

func (r *Repo) UsernamesByID(ctx context.Context, ids []uint64) (map[uint64]string, error) {
	out := make(map[uint64]string, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	var users []models.User
	if err := r.db.WithContext(ctx).
		Select("id", "username").
		Where("id IN ?", ids).
		Find(&users).Error; err != nil {
		return nil, err
	}
	for _, u := range users {
		out[u.ID] = u.Username
	}
	return out, nil
}
