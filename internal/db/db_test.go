package db

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/leadtracker/crm/internal/models"
	"github.com/leadtracker/crm/internal/records"
)

func TestRegistry_UnknownDriver(t *testing.T) {
	reg := DefaultRegistry()
	if _, err := reg.Get("oracle", "x"); err == nil {
		t.Fatalf("expected error for unknown driver")
	}
	if _, err := reg.Get(" SQLite ", "x.db"); err != nil {
		t.Fatalf("expected sqlite dialector, got %v", err)
	}
}

func TestConnectAndMigrate_SQLite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "crm.db")
	gdb, err := Connect(DefaultRegistry(), "sqlite", path, zerolog.Nop())
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	if err := Migrate(gdb); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	u := models.User{Username: "alice", PasswordHash: "x"}
	if err := gdb.Create(&u).Error; err != nil {
		t.Fatalf("create user: %v", err)
	}
	dup := models.User{Username: "alice", PasswordHash: "y"}
	if err := gdb.Create(&dup).Error; !errors.Is(err, gorm.ErrDuplicatedKey) {
		t.Fatalf("expected translated unique violation on username, got %v", err)
	}

	for _, table := range []string{"field_templates", "clients", "client_fields", "user_activities",
		"analytics_jobs", "chat_rooms", "chat_room_members", "chat_messages"} {
		if !gdb.Migrator().HasTable(table) {
			t.Errorf("missing table %s", table)
		}
	}
}

func TestConnect_SQLiteEnforcesForeignKeys(t *testing.T) {
	gdb, err := Connect(DefaultRegistry(), "sqlite", filepath.Join(t.TempDir(), "crm.db"), zerolog.Nop())
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	if err := Migrate(gdb); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	tmpl := records.FieldTemplate{Name: "Phone"}
	client := records.Client{OwnerID: 1}
	if err := gdb.Create(&tmpl).Error; err != nil {
		t.Fatalf("create template: %v", err)
	}
	if err := gdb.Create(&client).Error; err != nil {
		t.Fatalf("create client: %v", err)
	}
	if err := gdb.Create(&records.ClientField{ClientID: client.ID, TemplateID: tmpl.ID, Value: "555"}).Error; err != nil {
		t.Fatalf("create field: %v", err)
	}

	orphan := records.ClientField{ClientID: client.ID, TemplateID: tmpl.ID + 1}
	if err := gdb.Create(&orphan).Error; !errors.Is(err, gorm.ErrForeignKeyViolated) {
		t.Fatalf("expected foreign key violation, got %v", err)
	}

	if err := gdb.Delete(&records.FieldTemplate{}, tmpl.ID).Error; err != nil {
		t.Fatalf("delete template: %v", err)
	}
	var n int64
	gdb.Model(&records.ClientField{}).Count(&n)
	if n != 0 {
		t.Fatalf("expected values to cascade with the template, got %d", n)
	}
}
