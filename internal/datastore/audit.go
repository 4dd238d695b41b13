package datastore

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Fields excluded from the audit trail: high-frequency per-message counters
// that would flood the log.
var auditExcluded = map[string]bool{
	"message_count":     true,
	"last_message_time": true,
}

// AuditEntry describes one mutation for the post-hoc debugging trail.
type AuditEntry struct {
	Table       string
	Field       string
	Value       string
	FilterField string
	FilterValue string
	Tag         string
	Time        time.Time
}

// Line renders the entry in the legacy single-line format:
// table_field_value_filterField_filterValue_tag_timestamp.
func (e AuditEntry) Line() string {
	return fmt.Sprintf("%s_%s_%s_%s_%s_%s_%s",
		e.Table, e.Field, e.Value, e.FilterField, e.FilterValue, e.Tag,
		e.Time.Format("2006-01-02 15:04:05"))
}

// AuditLogger appends a textual trail of every write. It is output-only;
// nothing in the system reads it back. A failed append never aborts the
// write that triggered it.
type AuditLogger struct {
	mu     sync.Mutex
	w      io.Writer
	logger *zap.Logger
}

func NewAuditLogger(w io.Writer, logger *zap.Logger) *AuditLogger {
	return &AuditLogger{w: w, logger: logger}
}

// OpenAuditFile opens (or creates) an append-only audit file.
func OpenAuditFile(path string, logger *zap.Logger) (*AuditLogger, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open audit file: %w", err)
	}
	return NewAuditLogger(f, logger), nil
}

// Close closes the underlying writer when it is closable.
func (a *AuditLogger) Close() error {
	if a == nil {
		return nil
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	if c, ok := a.w.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

// Record appends one entry. Errors are logged and swallowed.
func (a *AuditLogger) Record(e AuditEntry) {
	if a == nil || a.w == nil {
		return
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	if _, err := io.WriteString(a.w, "\n"+e.Line()); err != nil && a.logger != nil {
		a.logger.Warn("audit append failed", zap.String("table", e.Table), zap.Error(err))
	}
}
