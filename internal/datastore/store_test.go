package datastore

import (
	"bytes"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(
		sqlite.Open(filepath.Join(t.TempDir(), "test.db")),
		&gorm.Config{Logger: gormlogger.Default.LogMode(gormlogger.Silent)},
	)
	require.NoError(t, err)
	return db
}

func newTestStore(t *testing.T) (*Store, *bytes.Buffer) {
	t.Helper()
	db := openTestDB(t)

	require.NoError(t, db.Exec(
		`CREATE TABLE user (id VARCHAR(500), step VARCHAR(500), Balance INT DEFAULT 0,
		 message_count VARCHAR(100), last_message_time VARCHAR(100))`).Error)
	require.NoError(t, db.Exec(`CREATE TABLE admin (id_admin VARCHAR(500))`).Error)

	registry := NewRegistry()
	registry.RegisterTable("user", "id", "step", "Balance", "message_count", "last_message_time")
	registry.RegisterTable("admin", "id_admin")

	var audit bytes.Buffer
	store := New(db, registry, NewAuditLogger(&audit, zap.NewNop()), zap.NewNop(), "999")
	return store, &audit
}

func seedUsers(t *testing.T, store *Store) {
	t.Helper()
	require.NoError(t, store.db.Exec(
		`INSERT INTO user (id, step, Balance) VALUES ('1', 'none', 100), ('2', 'menu', 0)`).Error)
}

func TestSessionRow(t *testing.T) {
	store, _ := newTestStore(t)
	seedUsers(t, store)
	sess := store.Session("test")

	row, err := sess.Row("user", "step", "id", "1")
	require.NoError(t, err)
	require.NotNil(t, row)
	assert.Equal(t, "none", row["step"])
}

func TestSessionRowMissing(t *testing.T) {
	store, _ := newTestStore(t)
	sess := store.Session("test")

	row, err := sess.Row("user", "step", "id", "404")
	require.NoError(t, err)
	assert.Nil(t, row)
}

func TestSessionRowsAndCount(t *testing.T) {
	store, _ := newTestStore(t)
	seedUsers(t, store)
	sess := store.Session("test")

	rows, err := sess.Rows("user", "*", "", nil)
	require.NoError(t, err)
	assert.Len(t, rows, 2)

	n, err := sess.CountRows("user", "step", "menu")
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestSessionColumn(t *testing.T) {
	store, _ := newTestStore(t)
	seedUsers(t, store)
	sess := store.Session("test")

	ids, err := sess.Column("user", "id", "", nil)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"1", "2"}, ids)
}

func TestSelectRejectsUnregisteredIdentifiers(t *testing.T) {
	store, _ := newTestStore(t)
	sess := store.Session("test")

	_, err := sess.Row("payments", "*", "", nil)
	assert.Error(t, err)

	_, err = sess.Row("user", "password", "", nil)
	assert.Error(t, err)

	_, err = sess.Row("user", "step", "id = '1' OR 1", "x")
	assert.Error(t, err)
}

func TestCacheServesRepeatReadsWithinSession(t *testing.T) {
	store, _ := newTestStore(t)
	seedUsers(t, store)
	sess := store.Session("test")

	row, err := sess.Row("user", "step", "id", "1")
	require.NoError(t, err)
	require.Equal(t, "none", row["step"])

	// Out-of-band change is invisible: the session replays its cached read.
	require.NoError(t, store.db.Exec(`UPDATE user SET step = 'other' WHERE id = '1'`).Error)

	row, err = sess.Row("user", "step", "id", "1")
	require.NoError(t, err)
	assert.Equal(t, "none", row["step"])

	// A cache-bypassing view of the same session sees the live value.
	fresh, err := sess.WithoutCache().Row("user", "step", "id", "1")
	require.NoError(t, err)
	assert.Equal(t, "other", fresh["step"])
}

func TestCachedResultIsolatedFromCallerMutation(t *testing.T) {
	store, _ := newTestStore(t)
	seedUsers(t, store)
	sess := store.Session("test")

	row, err := sess.Row("user", "step", "id", "1")
	require.NoError(t, err)
	row["step"] = "mutated"

	row, err = sess.Row("user", "step", "id", "1")
	require.NoError(t, err)
	require.Equal(t, "none", row["step"])

	// Mutating a cache hit does not poison later hits either.
	row["step"] = "mutated"
	row, err = sess.Row("user", "step", "id", "1")
	require.NoError(t, err)
	assert.Equal(t, "none", row["step"])

	rows, err := sess.Rows("user", "step", "", nil)
	require.NoError(t, err)
	rows[0]["step"] = "mutated"
	rows, err = sess.Rows("user", "step", "", nil)
	require.NoError(t, err)
	assert.NotEqual(t, "mutated", rows[0]["step"])
}

func TestUpdateInvalidatesOnlyWrittenTable(t *testing.T) {
	store, _ := newTestStore(t)
	seedUsers(t, store)
	require.NoError(t, store.db.Exec(`INSERT INTO admin (id_admin) VALUES ('7')`).Error)
	sess := store.Session("test")

	_, err := sess.Row("user", "step", "id", "1")
	require.NoError(t, err)
	admins, err := sess.Column("admin", "id_admin", "", nil)
	require.NoError(t, err)
	require.Equal(t, []string{"7"}, admins)

	require.NoError(t, sess.Update("user", "step", "buy", "id", "1"))

	// The user read is refreshed.
	row, err := sess.Row("user", "step", "id", "1")
	require.NoError(t, err)
	assert.Equal(t, "buy", row["step"])

	// The admin read is still cached: an out-of-band insert stays invisible.
	require.NoError(t, store.db.Exec(`INSERT INTO admin (id_admin) VALUES ('8')`).Error)
	admins, err = sess.Column("admin", "id_admin", "", nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"7"}, admins)
}

func TestUpdateWritesAuditLine(t *testing.T) {
	store, audit := newTestStore(t)
	seedUsers(t, store)
	sess := store.Session("mainmenu")

	require.NoError(t, sess.Update("user", "step", "buy", "id", "1"))

	line := audit.String()
	require.True(t, strings.HasPrefix(line, "\n"))
	parts := strings.Split(strings.TrimPrefix(line, "\n"), "_")
	require.GreaterOrEqual(t, len(parts), 7)
	assert.Equal(t, "user", parts[0])
	assert.Equal(t, "step", parts[1])
	assert.Equal(t, "buy", parts[2])
	assert.Equal(t, "id", parts[3])
	assert.Equal(t, "1", parts[4])
	assert.Equal(t, "mainmenu", parts[5])
}

func TestRateCountersSkipAudit(t *testing.T) {
	store, audit := newTestStore(t)
	seedUsers(t, store)
	sess := store.Session("test")

	require.NoError(t, sess.Update("user", "message_count", 5, "id", "1"))
	require.NoError(t, sess.Update("user", "last_message_time", "1700000000", "id", "1"))
	assert.Empty(t, audit.String())

	require.NoError(t, sess.Update("user", "step", "none", "id", "1"))
	assert.NotEmpty(t, audit.String())
}

func TestUpdateCreatesMissingColumn(t *testing.T) {
	store, _ := newTestStore(t)
	seedUsers(t, store)
	sess := store.Session("test")

	require.NoError(t, sess.Update("user", "affiliatescount", 3, "id", "1"))
	assert.True(t, store.Registry().HasField("user", "affiliatescount"))

	row, err := sess.Row("user", "affiliatescount", "id", "1")
	require.NoError(t, err)
	assert.EqualValues(t, 3, row["affiliatescount"])

	// Further writes reuse the column.
	require.NoError(t, sess.Update("user", "affiliatescount", 4, "id", "1"))
}

func TestUpdateStructuredValueStoredAsJSON(t *testing.T) {
	store, _ := newTestStore(t)
	seedUsers(t, store)
	sess := store.Session("test")

	payload := map[string]interface{}{"vless": []string{"a", "b"}}
	require.NoError(t, sess.Update("user", "step", payload, "id", "1"))

	row, err := sess.WithoutCache().Row("user", "step", "id", "1")
	require.NoError(t, err)
	assert.JSONEq(t, `{"vless":["a","b"]}`, row["step"].(string))
}

func TestUpdateWithoutFilterTouchesAllRows(t *testing.T) {
	store, _ := newTestStore(t)
	seedUsers(t, store)
	sess := store.Session("test")

	require.NoError(t, sess.Update("user", "step", "broadcast", "", nil))

	n, err := sess.CountRows("user", "step", "broadcast")
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
}

func TestUpdateRejectsUnregisteredFilter(t *testing.T) {
	store, _ := newTestStore(t)
	sess := store.Session("test")

	err := sess.Update("user", "step", "x", "no_such_column", "1")
	assert.Error(t, err)
}

func TestAdminColumnFallback(t *testing.T) {
	store, _ := newTestStore(t)
	sess := store.Session("test")

	// Empty table falls back to the configured admin.
	ids, err := sess.Column("admin", "id_admin", "", nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"999"}, ids)
}

func TestAdminColumnDedupesAndDropsBlanks(t *testing.T) {
	store, _ := newTestStore(t)
	require.NoError(t, store.db.Exec(
		`INSERT INTO admin (id_admin) VALUES ('7'), ('7'), (''), ('8')`).Error)
	sess := store.Session("test")

	ids, err := sess.Column("admin", "id_admin", "", nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"7", "8"}, ids)
}

func TestSessionTagUpdate(t *testing.T) {
	store, audit := newTestStore(t)
	seedUsers(t, store)
	sess := store.Session("start")

	sess.SetTag("wallet")
	require.NoError(t, sess.Update("user", "Balance", 500, "id", "1"))
	assert.Contains(t, audit.String(), "_wallet_")
}

func TestWriteWithEncodingRecovery(t *testing.T) {
	charsetErr := errors.New("Error 1366: Incorrect string value: '\\xF0\\x9F\\x98\\x80' for column 'step'")

	t.Run("clean write passes through", func(t *testing.T) {
		widened := false
		err := writeWithEncodingRecovery(zap.NewNop(), "user", "step", "hi",
			func(v interface{}) error { return nil },
			func() error { widened = true; return nil })
		require.NoError(t, err)
		assert.False(t, widened)
	})

	t.Run("non-charset error returned as is", func(t *testing.T) {
		dbErr := errors.New("database is locked")
		err := writeWithEncodingRecovery(zap.NewNop(), "user", "step", "hi",
			func(v interface{}) error { return dbErr },
			func() error { t.Fatal("widen should not run"); return nil })
		assert.ErrorIs(t, err, dbErr)
	})

	t.Run("widen then retry with original value", func(t *testing.T) {
		var writes []interface{}
		err := writeWithEncodingRecovery(zap.NewNop(), "user", "step", "hi😀",
			func(v interface{}) error {
				writes = append(writes, v)
				if len(writes) == 1 {
					return charsetErr
				}
				return nil
			},
			func() error { return nil })
		require.NoError(t, err)
		require.Len(t, writes, 2)
		assert.Equal(t, "hi😀", writes[1])
	})

	t.Run("retry failure surfaces", func(t *testing.T) {
		err := writeWithEncodingRecovery(zap.NewNop(), "user", "step", "hi😀",
			func(v interface{}) error { return charsetErr },
			func() error { return nil })
		require.Error(t, err)
		assert.Contains(t, err.Error(), "after charset widening")
	})

	t.Run("widen failure falls back to re-encoded value", func(t *testing.T) {
		var writes []interface{}
		bad := "hi\xff\xfethere"
		err := writeWithEncodingRecovery(zap.NewNop(), "user", "step", bad,
			func(v interface{}) error {
				writes = append(writes, v)
				if len(writes) == 1 {
					return charsetErr
				}
				return nil
			},
			func() error { return errors.New("ALTER TABLE denied") })
		require.NoError(t, err)
		require.Len(t, writes, 2)
		assert.Equal(t, "hithere", writes[1])
	})

	t.Run("re-encoded write failure surfaces", func(t *testing.T) {
		err := writeWithEncodingRecovery(zap.NewNop(), "user", "step", "hi",
			func(v interface{}) error { return charsetErr },
			func() error { return errors.New("ALTER TABLE denied") })
		require.Error(t, err)
		assert.Contains(t, err.Error(), "re-encoded")
	})
}

func TestIsEncodingError(t *testing.T) {
	assert.True(t, isEncodingError(errors.New("Error 1366: Incorrect string value: '\\xF0' for column 'step'")))
	assert.False(t, isEncodingError(errors.New("database is locked")))
	assert.False(t, isEncodingError(nil))
}

func TestNormalizeValueScalarsUntouched(t *testing.T) {
	for _, v := range []interface{}{nil, true, "text", 42, int64(42), 4.2} {
		got, err := normalizeValue(v)
		require.NoError(t, err)
		assert.Equal(t, v, got)
	}
}

func TestNormalizeValueKeepsUnicode(t *testing.T) {
	got, err := normalizeValue(map[string]string{"text": "سلام <b>"})
	require.NoError(t, err)
	assert.Equal(t, `{"text":"سلام <b>"}`, got)
}

func TestValueString(t *testing.T) {
	assert.Equal(t, "", valueString(nil))
	assert.Equal(t, "abc", valueString("abc"))
	assert.Equal(t, "abc", valueString([]byte("abc")))
	assert.Equal(t, "1", valueString(true))
	assert.Equal(t, "0", valueString(false))
	assert.Equal(t, "42", valueString(int64(42)))
}
