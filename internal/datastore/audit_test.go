package datastore

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestAuditEntryLine(t *testing.T) {
	e := AuditEntry{
		Table:       "user",
		Field:       "step",
		Value:       "buy",
		FilterField: "id",
		FilterValue: "123",
		Tag:         "mainmenu",
		Time:        time.Date(2024, 3, 1, 10, 30, 0, 0, time.UTC),
	}
	assert.Equal(t, "user_step_buy_id_123_mainmenu_2024-03-01 10:30:00", e.Line())
}

func TestAuditRecordAppendsWithNewline(t *testing.T) {
	var buf bytes.Buffer
	a := NewAuditLogger(&buf, nil)

	a.Record(AuditEntry{Table: "user", Field: "step", Time: time.Now()})
	a.Record(AuditEntry{Table: "user", Field: "Balance", Time: time.Now()})

	lines := bytes.Split(buf.Bytes(), []byte("\n"))
	// Leading newline produces an empty first element.
	assert.Len(t, lines, 3)
	assert.Empty(t, lines[0])
}

func TestAuditNilLoggerSafe(t *testing.T) {
	var a *AuditLogger
	assert.NotPanics(t, func() {
		a.Record(AuditEntry{Table: "user"})
	})
	assert.NoError(t, a.Close())
}
