package datastore

import (
	"fmt"
	"regexp"
	"strings"
	"sync"

	"gorm.io/gorm"
	"gorm.io/gorm/schema"
)

// identPattern matches safe SQL identifiers. Anything else is rejected
// before it can reach query text.
var identPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// Registry is the allow-list of tables and columns the dynamic accessor may
// touch. Table and column names are interpolated into query text, so every
// name must be registered (at startup from the gorm models, or at runtime by
// the schema evolver) before it is accepted.
type Registry struct {
	mu     sync.RWMutex
	tables map[string]map[string]bool
}

func NewRegistry() *Registry {
	return &Registry{tables: make(map[string]map[string]bool)}
}

// RegistryFromModels builds a registry from gorm model structs, using the
// same naming strategy the connection uses for migration.
func RegistryFromModels(db *gorm.DB, models ...interface{}) (*Registry, error) {
	r := NewRegistry()
	cache := &sync.Map{}
	for _, model := range models {
		s, err := schema.Parse(model, cache, db.NamingStrategy)
		if err != nil {
			return nil, fmt.Errorf("parse model schema: %w", err)
		}
		fields := make([]string, 0, len(s.DBNames))
		fields = append(fields, s.DBNames...)
		r.RegisterTable(s.Table, fields...)
	}
	return r, nil
}

// RegisterTable adds a table and its columns to the allow-list.
func (r *Registry) RegisterTable(table string, fields ...string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cols, ok := r.tables[table]
	if !ok {
		cols = make(map[string]bool)
		r.tables[table] = cols
	}
	for _, f := range fields {
		cols[f] = true
	}
}

// AddField registers a single column, used by the schema evolver after it
// creates one.
func (r *Registry) AddField(table, field string) {
	r.RegisterTable(table, field)
}

// CheckTable validates a table name against the allow-list.
func (r *Registry) CheckTable(table string) error {
	if !identPattern.MatchString(table) {
		return fmt.Errorf("invalid table identifier %q", table)
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	if _, ok := r.tables[table]; !ok {
		return fmt.Errorf("table %q is not registered", table)
	}
	return nil
}

// CheckField validates a single column name on a registered table.
func (r *Registry) CheckField(table, field string) error {
	if err := r.CheckTable(table); err != nil {
		return err
	}
	if !identPattern.MatchString(field) {
		return fmt.Errorf("invalid column identifier %q", field)
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	if !r.tables[table][field] {
		return fmt.Errorf("column %q is not registered on table %q", field, table)
	}
	return nil
}

// CheckNewField validates a column name that does not have to exist yet.
// The schema evolver uses it before creating a column.
func (r *Registry) CheckNewField(table, field string) error {
	if err := r.CheckTable(table); err != nil {
		return err
	}
	if !identPattern.MatchString(field) {
		return fmt.Errorf("invalid column identifier %q", field)
	}
	return nil
}

// HasField reports whether a column is already registered.
func (r *Registry) HasField(table, field string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.tables[table][field]
}

// CheckFieldList validates a SELECT column list: either "*" or a
// comma-separated list of registered columns.
func (r *Registry) CheckFieldList(table, fields string) error {
	if err := r.CheckTable(table); err != nil {
		return err
	}
	if strings.TrimSpace(fields) == "*" {
		return nil
	}
	for _, f := range strings.Split(fields, ",") {
		if err := r.CheckField(table, strings.TrimSpace(f)); err != nil {
			return err
		}
	}
	return nil
}
