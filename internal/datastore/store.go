// Package datastore implements the dynamic record accessor the legacy bot
// was built around: reads and writes against runtime-named tables and
// columns, with request-scoped result caching, on-demand schema evolution
// and an append-only audit trail. Typed repositories cover the common paths;
// this package covers the long tail of legacy fields that never got a model.
package datastore

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Mode selects the shape of a read result.
type Mode string

const (
	// ModeRow returns the first matching row as a column→value mapping.
	ModeRow Mode = "row"
	// ModeRows returns every matching row.
	ModeRows Mode = "rows"
	// ModeCount returns the number of matching rows.
	ModeCount Mode = "count"
	// ModeColumn returns one column's values flattened across matching rows.
	ModeColumn Mode = "column"
)

// Store is the shared half of the accessor: connection, allow-list registry,
// audit sink. It is safe for concurrent use. Reads and writes go through a
// Session, which owns the per-operation cache.
type Store struct {
	db              *gorm.DB
	registry        *Registry
	audit           *AuditLogger
	logger          *zap.Logger
	fallbackAdminID string
	mysql           bool
}

// New creates a Store. fallbackAdminID is substituted when the admin table
// yields no usable administrator ids, so the system always has at least one
// reachable admin.
func New(db *gorm.DB, registry *Registry, audit *AuditLogger, logger *zap.Logger, fallbackAdminID string) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{
		db:              db,
		registry:        registry,
		audit:           audit,
		logger:          logger,
		fallbackAdminID: fallbackAdminID,
		mysql:           db.Dialector.Name() == "mysql",
	}
}

// Registry returns the identifier allow-list.
func (s *Store) Registry() *Registry {
	return s.registry
}

// Session starts a per-operation view of the store. The tag ends up in the
// audit trail (the legacy system used the user's current menu step). The
// cache lives and dies with the session; it is never shared across inbound
// events.
func (s *Store) Session(tag string) *Session {
	return &Session{store: s, cache: newSelectCache(), tag: tag, useCache: true}
}

// Session is a request-scoped handle on the store. Not safe for concurrent
// use; create one per inbound event.
type Session struct {
	store    *Store
	cache    *selectCache
	tag      string
	useCache bool
}

// SetTag updates the audit context tag as the operation progresses.
func (s *Session) SetTag(tag string) {
	s.tag = tag
}

// WithoutCache returns a view of the session that bypasses the read cache
// while still sharing its invalidation state.
func (s *Session) WithoutCache() *Session {
	return &Session{store: s.store, cache: s.cache, tag: s.tag, useCache: false}
}

// Row reads the first row matching filterField = filterValue (or the first
// row at all when filterField is empty). Returns nil when nothing matches.
func (s *Session) Row(table, fields, filterField string, filterValue interface{}) (map[string]interface{}, error) {
	res, err := s.selectShaped(table, fields, filterField, filterValue, ModeRow)
	if err != nil || res == nil {
		return nil, err
	}
	return res.(map[string]interface{}), nil
}

// Rows reads every matching row.
func (s *Session) Rows(table, fields, filterField string, filterValue interface{}) ([]map[string]interface{}, error) {
	res, err := s.selectShaped(table, fields, filterField, filterValue, ModeRows)
	if err != nil || res == nil {
		return nil, err
	}
	return res.([]map[string]interface{}), nil
}

// CountRows counts matching rows.
func (s *Session) CountRows(table, filterField string, filterValue interface{}) (int64, error) {
	res, err := s.selectShaped(table, "*", filterField, filterValue, ModeCount)
	if err != nil {
		return 0, err
	}
	return res.(int64), nil
}

// Column reads one column's values across every matching row.
//
// Reading admin.id_admin is special-cased: the result is deduplicated,
// empties are dropped, and the configured fallback administrator id is
// substituted when the result would otherwise be empty.
func (s *Session) Column(table, field, filterField string, filterValue interface{}) ([]string, error) {
	res, err := s.selectShaped(table, field, filterField, filterValue, ModeColumn)
	if err != nil || res == nil {
		return nil, err
	}
	return res.([]string), nil
}

func (s *Session) selectShaped(table, fields, filterField string, filterValue interface{}, mode Mode) (interface{}, error) {
	st := s.store
	if err := st.registry.CheckFieldList(table, fields); err != nil {
		return nil, err
	}
	if filterField != "" {
		if err := st.registry.CheckField(table, filterField); err != nil {
			return nil, err
		}
	}

	var key string
	if s.useCache {
		key = fingerprint(table, fields, filterField, filterValue, mode)
		if cached, ok := s.cache.get(key); ok {
			return cached, nil
		}
	}

	result, err := st.query(table, fields, filterField, filterValue, mode)
	if err != nil {
		return nil, err
	}

	if s.useCache {
		// The cache keeps the original; the caller gets a copy it may
		// mutate freely.
		s.cache.put(key, table, result)
		return cloneResult(result), nil
	}
	return result, nil
}

func (st *Store) query(table, fields, filterField string, filterValue interface{}, mode Mode) (interface{}, error) {
	tx := st.db.Table(table)
	if filterField != "" {
		tx = tx.Where(fmt.Sprintf("%s = ?", filterField), filterValue)
	}

	switch mode {
	case ModeCount:
		var n int64
		if err := tx.Count(&n).Error; err != nil {
			return nil, fmt.Errorf("count %s: %w", table, err)
		}
		return n, nil

	case ModeRow:
		row := map[string]interface{}{}
		err := tx.Select(fields).Take(&row).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		if err != nil {
			return nil, fmt.Errorf("select %s: %w", table, err)
		}
		return row, nil

	case ModeRows:
		var rows []map[string]interface{}
		if err := tx.Select(fields).Find(&rows).Error; err != nil {
			return nil, fmt.Errorf("select %s: %w", table, err)
		}
		return rows, nil

	case ModeColumn:
		var rows []map[string]interface{}
		if err := tx.Select(fields).Find(&rows).Error; err != nil {
			return nil, fmt.Errorf("select %s: %w", table, err)
		}
		values := make([]string, 0, len(rows))
		for _, row := range rows {
			values = append(values, valueString(row[fields]))
		}
		if table == "admin" && fields == "id_admin" {
			values = st.withAdminFallback(values)
		}
		return values, nil

	default:
		return nil, fmt.Errorf("unknown select mode %q", mode)
	}
}

// withAdminFallback dedupes ids, drops blanks and guarantees at least one
// reachable administrator.
func (st *Store) withAdminFallback(ids []string) []string {
	seen := make(map[string]bool, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	if len(out) == 0 && st.fallbackAdminID != "" {
		out = append(out, st.fallbackAdminID)
	}
	return out
}

// Update writes value into table.field for every row matching
// filterField = filterValue. An empty filterField updates every row in the
// table; callers use that deliberately for singleton config tables.
//
// The column is created on demand with a type inferred from the value.
// Structured values are stored as canonical JSON. On MySQL the matched row
// is locked for the duration of the write. Writes that fail on the table's
// character encoding are retried once after widening the table to utf8mb4;
// if widening fails the value is re-encoded best-effort rather than dropping
// the write. Every write invalidates the session's cache for the table and
// appends an audit entry, except for the high-frequency counter fields.
func (s *Session) Update(table, field string, value interface{}, filterField string, filterValue interface{}) error {
	st := s.store
	if filterField != "" {
		if err := st.registry.CheckField(table, filterField); err != nil {
			return err
		}
	}

	stored, err := normalizeValue(value)
	if err != nil {
		return fmt.Errorf("normalize value for %s.%s: %w", table, field, err)
	}

	if err := st.EnsureField(table, field, stored); err != nil {
		return err
	}

	write := func(v interface{}) error {
		return st.executeUpdate(table, field, v, filterField, filterValue)
	}
	widen := func() error {
		return st.ensureTableUnicode(table)
	}
	if err := writeWithEncodingRecovery(st.logger, table, field, stored, write, widen); err != nil {
		return err
	}

	s.cache.invalidate(table)

	if !auditExcluded[field] {
		st.audit.Record(AuditEntry{
			Table:       table,
			Field:       field,
			Value:       valueString(stored),
			FilterField: filterField,
			FilterValue: valueString(filterValue),
			Tag:         s.tag,
			Time:        time.Now(),
		})
	}
	return nil
}

// writeWithEncodingRecovery runs the write and recovers a character-set
// failure: widen the table to utf8mb4 and retry once; if widening itself
// fails, write a lossy re-encoding of the value rather than dropping the
// write. Any other error is returned as is.
func writeWithEncodingRecovery(logger *zap.Logger, table, field string, value interface{}, write func(interface{}) error, widen func() error) error {
	err := write(value)
	if err == nil || !isEncodingError(err) {
		return err
	}

	widenErr := widen()
	if widenErr == nil {
		if retryErr := write(value); retryErr != nil {
			return fmt.Errorf("update %s.%s after charset widening: %w", table, field, retryErr)
		}
		return nil
	}
	logger.Warn("charset widening failed, writing re-encoded value",
		zap.String("table", table), zap.String("column", field), zap.Error(widenErr))

	lossy := value
	if text, ok := value.(string); ok {
		lossy = strings.ToValidUTF8(text, "")
	}
	if lossyErr := write(lossy); lossyErr != nil {
		return fmt.Errorf("update %s.%s with re-encoded value: %w", table, field, lossyErr)
	}
	return nil
}

func (st *Store) executeUpdate(table, field string, value interface{}, filterField string, filterValue interface{}) error {
	if filterField == "" {
		return st.db.Exec(fmt.Sprintf("UPDATE %s SET %s = ?", table, field), value).Error
	}
	return st.db.Transaction(func(tx *gorm.DB) error {
		if st.mysql {
			// Hold the row lock across the read-then-write unit to narrow
			// the lost-update window between concurrent events.
			var discard []map[string]interface{}
			lock := fmt.Sprintf("SELECT %s FROM %s WHERE %s = ? FOR UPDATE", field, table, filterField)
			if err := tx.Raw(lock, filterValue).Scan(&discard).Error; err != nil {
				return err
			}
		}
		q := fmt.Sprintf("UPDATE %s SET %s = ? WHERE %s = ?", table, field, filterField)
		return tx.Exec(q, value, filterValue).Error
	})
}

// ensureTableUnicode converts the table to utf8mb4 so it can hold the full
// Unicode range. No-op on non-MySQL engines.
func (st *Store) ensureTableUnicode(table string) error {
	if !st.mysql {
		return fmt.Errorf("charset conversion unsupported on %s", st.db.Dialector.Name())
	}
	var collation string
	err := st.db.Raw(
		"SELECT TABLE_COLLATION FROM information_schema.TABLES WHERE TABLE_SCHEMA = DATABASE() AND TABLE_NAME = ?",
		table,
	).Scan(&collation).Error
	if err != nil {
		return fmt.Errorf("detect collation for %s: %w", table, err)
	}
	if strings.HasPrefix(strings.ToLower(collation), "utf8mb4") {
		return nil
	}
	if err := st.db.Exec(fmt.Sprintf("ALTER TABLE %s CONVERT TO CHARACTER SET utf8mb4 COLLATE utf8mb4_unicode_ci", table)).Error; err != nil {
		return fmt.Errorf("convert %s to utf8mb4: %w", table, err)
	}
	return nil
}

// normalizeValue serializes structured values to canonical JSON (UTF-8
// preserved, no HTML escaping) and passes scalars through untouched.
func normalizeValue(value interface{}) (interface{}, error) {
	switch value.(type) {
	case nil, bool, string,
		int, int8, int16, int32, int64,
		uint, uint8, uint16, uint32, uint64,
		float32, float64:
		return value, nil
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(value); err != nil {
		return nil, err
	}
	return strings.TrimSuffix(buf.String(), "\n"), nil
}

// isEncodingError matches the MySQL error raised when a value cannot be
// represented in the column's current character set.
func isEncodingError(err error) bool {
	return err != nil && strings.Contains(err.Error(), "Incorrect string value")
}

// valueString renders any scanned value for audit lines and column results.
func valueString(v interface{}) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case []byte:
		return string(t)
	case bool:
		if t {
			return "1"
		}
		return "0"
	default:
		return fmt.Sprintf("%v", t)
	}
}
