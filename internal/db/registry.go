package db

import (
	"fmt"
	"strings"
	"sync"

	"github.com/glebarez/sqlite"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

type DialectorFactory func(dsn string) gorm.Dialector

type Registry struct {
	mu        sync.RWMutex
	factories map[string]DialectorFactory
}

func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]DialectorFactory)}
}

// DefaultRegistry knows mysql, postgres and sqlite.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register("mysql", mysql.Open)
	r.Register("postgres", postgres.Open)
	r.Register("sqlite", openSQLite)
	return r
}

// openSQLite turns on foreign key enforcement, which sqlite leaves off per
// connection.
func openSQLite(dsn string) gorm.Dialector {
	if !strings.Contains(dsn, "foreign_keys") {
		sep := "?"
		if strings.Contains(dsn, "?") {
			sep = "&"
		}
		dsn += sep + "_pragma=foreign_keys(1)"
	}
	return sqlite.Open(dsn)
}

func (r *Registry) Register(name string, f DialectorFactory) {
	name = strings.ToLower(strings.TrimSpace(name))
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[name] = f
}

func (r *Registry) Get(name, dsn string) (gorm.Dialector, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	r.mu.RLock()
	f, ok := r.factories[name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unknown db driver: %s", name)
	}
	return f(dsn), nil
}
