package datastore

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestColumnTypeForValue(t *testing.T) {
	tests := []struct {
		name  string
		value interface{}
		mysql bool
		want  string
	}{
		{"bool", true, true, "TINYINT(1)"},
		{"int", 42, true, "INT(11)"},
		{"int64", int64(42), true, "INT(11)"},
		{"float", 4.2, true, "DOUBLE"},
		{"nil", nil, true, "VARCHAR(191)" + utf8mb4Suffix},
		{"short string", "hello", true, "VARCHAR(191)" + utf8mb4Suffix},
		{"medium string", strings.Repeat("x", 300), true, "VARCHAR(500)" + utf8mb4Suffix},
		{"long string", strings.Repeat("x", 600), true, "TEXT" + utf8mb4Suffix},
		{"short string sqlite", "hello", false, "VARCHAR(191)"},
		{"struct falls back to text", struct{}{}, false, "TEXT"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, columnTypeForValue(tt.value, tt.mysql))
		})
	}
}

func TestColumnTypeCountsRunesNotBytes(t *testing.T) {
	// 100 Persian characters are 200 bytes but still fit VARCHAR(191).
	persian := strings.Repeat("س", 100)
	assert.Equal(t, "VARCHAR(191)", columnTypeForValue(persian, false))
}

func TestEnsureFieldCreatesAndBackfills(t *testing.T) {
	store, _ := newTestStore(t)
	seedUsers(t, store)

	require.NoError(t, store.EnsureField("user", "score", 10))

	sess := store.Session("test")
	rows, err := sess.Rows("user", "score", "", nil)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	for _, row := range rows {
		assert.EqualValues(t, 10, row["score"])
	}
}

func TestEnsureFieldBoolBackfill(t *testing.T) {
	store, _ := newTestStore(t)
	seedUsers(t, store)

	require.NoError(t, store.EnsureField("user", "flag", true))

	sess := store.Session("test")
	row, err := sess.Row("user", "flag", "id", "1")
	require.NoError(t, err)
	assert.Equal(t, "1", valueString(row["flag"]))
}

func TestEnsureFieldNilSampleNoBackfill(t *testing.T) {
	store, _ := newTestStore(t)
	seedUsers(t, store)

	require.NoError(t, store.EnsureField("user", "note", nil))

	sess := store.Session("test")
	row, err := sess.Row("user", "note", "id", "1")
	require.NoError(t, err)
	assert.Nil(t, row["note"])
}

func TestEnsureFieldIdempotent(t *testing.T) {
	store, _ := newTestStore(t)
	seedUsers(t, store)

	require.NoError(t, store.EnsureField("user", "score", 10))
	require.NoError(t, store.EnsureField("user", "score", "a much longer sample value"))

	// The first call fixes the type; the second is a no-op.
	assert.True(t, store.Registry().HasField("user", "score"))
}

func TestEnsureFieldExistingColumnRegistersOnly(t *testing.T) {
	store, _ := newTestStore(t)
	require.NoError(t, store.db.Exec(`ALTER TABLE user ADD already_there VARCHAR(191)`).Error)

	require.NoError(t, store.EnsureField("user", "already_there", "x"))
	assert.True(t, store.Registry().HasField("user", "already_there"))

	// No backfill happened for a pre-existing column.
	seedUsers(t, store)
	sess := store.Session("test")
	row, err := sess.Row("user", "already_there", "id", "1")
	require.NoError(t, err)
	assert.Nil(t, row["already_there"])
}

func TestEnsureFieldRejectsBadIdentifier(t *testing.T) {
	store, _ := newTestStore(t)

	assert.Error(t, store.EnsureField("user", "bad name", "x"))
	assert.Error(t, store.EnsureField("nope", "field", "x"))
}

func TestBackfillValue(t *testing.T) {
	v, ok := backfillValue(nil)
	assert.False(t, ok)
	assert.Nil(t, v)

	v, ok = backfillValue(true)
	assert.True(t, ok)
	assert.Equal(t, "1", v)

	v, ok = backfillValue(false)
	assert.True(t, ok)
	assert.Equal(t, "0", v)

	v, ok = backfillValue("text")
	assert.True(t, ok)
	assert.Equal(t, "text", v)

	_, ok = backfillValue(map[string]string{})
	assert.False(t, ok)
}
