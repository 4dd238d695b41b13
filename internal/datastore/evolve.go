package datastore

import (
	"fmt"
	"unicode/utf8"

	"go.uber.org/zap"
)

const utf8mb4Suffix = " CHARACTER SET utf8mb4 COLLATE utf8mb4_unicode_ci"

// columnTypeForValue infers a storage type from the first value ever written
// to a column. The inferred type never changes afterwards; later writes that
// would need a wider type are not detected (known limitation, see DESIGN.md).
func columnTypeForValue(value interface{}, mysqlDialect bool) string {
	text := func(base string) string {
		if mysqlDialect {
			return base + utf8mb4Suffix
		}
		return base
	}

	switch v := value.(type) {
	case bool:
		return "TINYINT(1)"
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return "INT(11)"
	case float32, float64:
		return "DOUBLE"
	case nil:
		return text("VARCHAR(191)")
	case string:
		length := utf8.RuneCountInString(v)
		switch {
		case length <= 191:
			return text("VARCHAR(191)")
		case length <= 500:
			return text("VARCHAR(500)")
		default:
			return text("TEXT")
		}
	default:
		return text("TEXT")
	}
}

// EnsureField guarantees the column exists on the table, creating it with a
// type inferred from sample when missing. A non-nil scalar sample is
// backfilled into every existing row, not merely set as the default.
// Safe to call repeatedly; only the first call for a (table, field) pair has
// any effect.
func (s *Store) EnsureField(table, field string, sample interface{}) error {
	if err := s.registry.CheckNewField(table, field); err != nil {
		return err
	}
	if s.registry.HasField(table, field) {
		return nil
	}

	if s.db.Migrator().HasColumn(table, field) {
		s.registry.AddField(table, field)
		return nil
	}

	datatype := columnTypeForValue(sample, s.mysql)
	if err := s.db.Exec(fmt.Sprintf("ALTER TABLE %s ADD %s %s", table, field, datatype)).Error; err != nil {
		return fmt.Errorf("add column %s.%s: %w", table, field, err)
	}

	if backfill, ok := backfillValue(sample); ok {
		if err := s.db.Exec(fmt.Sprintf("UPDATE %s SET %s = ?", table, field), backfill).Error; err != nil {
			return fmt.Errorf("backfill column %s.%s: %w", table, field, err)
		}
	}

	s.registry.AddField(table, field)
	s.logger.Info("added column",
		zap.String("table", table), zap.String("column", field), zap.String("type", datatype))
	return nil
}

// backfillValue reports whether a sample should be written to pre-existing
// rows, and in what form.
func backfillValue(sample interface{}) (interface{}, bool) {
	switch v := sample.(type) {
	case nil:
		return nil, false
	case bool:
		if v {
			return "1", true
		}
		return "0", true
	case string, int, int8, int16, int32, int64,
		uint, uint8, uint16, uint32, uint64, float32, float64:
		return v, true
	default:
		return nil, false
	}
}
