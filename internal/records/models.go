package records

import "time"

// FieldTemplate is an admin-defined attribute every client exposes.
// Names are not unique.
type FieldTemplate struct {
	ID        uint64    `gorm:"primaryKey;autoIncrement" json:"id"`
	Name      string    `gorm:"type:varchar(100);not null" json:"name"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (FieldTemplate) TableName() string { return "field_templates" }

type Client struct {
	ID        uint64    `gorm:"primaryKey;autoIncrement" json:"id"`
	OwnerID   uint64    `gorm:"index;not null" json:"owner_id"`
	CreatedAt time.Time `gorm:"index" json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (Client) TableName() string { return "clients" }

// ClientField stores one value per (client, template) pair.
type ClientField struct {
	ID         uint64    `gorm:"primaryKey;autoIncrement" json:"-"`
	ClientID   uint64    `gorm:"not null;index:uniq_client_field,unique,priority:1" json:"client_id"`
	TemplateID uint64    `gorm:"not null;index;index:uniq_client_field,unique,priority:2" json:"template_id"`
	Value      string    `gorm:"type:varchar(255);not null;default:''" json:"value"`
	UpdatedAt  time.Time `json:"-"`

	Client   *Client        `gorm:"constraint:OnDelete:CASCADE" json:"-"`
	Template *FieldTemplate `gorm:"foreignKey:TemplateID;constraint:OnDelete:CASCADE" json:"-"`
}

func (ClientField) TableName() string { return "client_fields" }

// Attribute is a template joined with the client's value for it.
type Attribute struct {
	TemplateID uint64 `json:"template_id"`
	Name       string `json:"name"`
	Value      string `json:"value"`
}

// Record is a client together with its full attribute set.
type Record struct {
	Client
	OwnerUsername string      `json:"created_by"`
	Fields        []Attribute `json:"fields"`
}

// Caller identifies who is acting. Non-admins only see their own clients.
type Caller struct {
	UserID  uint64
	IsAdmin bool
}
