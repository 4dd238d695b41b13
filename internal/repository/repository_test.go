package repository

import (
	"bytes"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"sellerbot/internal/datastore"
	"sellerbot/internal/models"
)

func setupDB(t *testing.T) (*gorm.DB, *datastore.Store, *bytes.Buffer) {
	t.Helper()
	db, err := gorm.Open(
		sqlite.Open(filepath.Join(t.TempDir(), "test.db")),
		&gorm.Config{Logger: gormlogger.Default.LogMode(gormlogger.Silent)},
	)
	require.NoError(t, err)

	modelList := []interface{}{
		&models.User{}, &models.Admin{}, &models.Setting{}, &models.TextBot{},
		&models.Channel{}, &models.CardNumber{}, &models.PaySetting{},
		&models.Product{}, &models.Panel{}, &models.Invoice{},
		&models.PaymentReport{}, &models.LogsAPI{},
	}
	require.NoError(t, db.AutoMigrate(modelList...))

	registry, err := datastore.RegistryFromModels(db, modelList...)
	require.NoError(t, err)

	var audit bytes.Buffer
	store := datastore.New(db, registry, datastore.NewAuditLogger(&audit, zap.NewNop()), zap.NewNop(), "fallback-admin")
	return db, store, &audit
}

func TestUserRepositoryCreateFind(t *testing.T) {
	db, _, _ := setupDB(t)
	repo := NewUserRepository(db)

	require.NoError(t, repo.Create(&models.User{ID: "100", Username: "alice", Step: "none"}))

	user, err := repo.FindByID("100")
	require.NoError(t, err)
	assert.Equal(t, "alice", user.Username)

	_, err = repo.FindByID("404")
	assert.Error(t, err)

	exists, err := repo.Exists("100")
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestUserRepositoryUpdateFieldThroughAccessor(t *testing.T) {
	db, store, audit := setupDB(t)
	repo := NewUserRepository(db)
	require.NoError(t, repo.Create(&models.User{ID: "100", Step: "none"}))

	sess := store.Session("100")
	require.NoError(t, repo.UpdateField(sess, "100", "step", "buy"))

	user, err := repo.FindByID("100")
	require.NoError(t, err)
	assert.Equal(t, "buy", user.Step)
	assert.Contains(t, audit.String(), "user_step_buy_id_100_100_")
}

func TestUserRepositoryUpdateFieldCreatesLegacyColumn(t *testing.T) {
	db, store, _ := setupDB(t)
	repo := NewUserRepository(db)
	require.NoError(t, repo.Create(&models.User{ID: "100"}))

	sess := store.Session("test")
	require.NoError(t, repo.UpdateField(sess, "100", "affiliatescount", 2))

	row, err := sess.Row("user", "affiliatescount", "id", "100")
	require.NoError(t, err)
	assert.EqualValues(t, 2, row["affiliatescount"])
}

func TestUserRepositoryUpdateBalance(t *testing.T) {
	db, store, audit := setupDB(t)
	repo := NewUserRepository(db)
	require.NoError(t, repo.Create(&models.User{ID: "100", Balance: 1000}))

	sess := store.Session("100")
	require.NoError(t, repo.UpdateBalance(sess, "100", 500))

	user, err := repo.FindByID("100")
	require.NoError(t, err)
	assert.Equal(t, 1500, user.Balance)

	// Negative delta charges the wallet.
	require.NoError(t, repo.UpdateBalance(sess, "100", -1500))
	user, err = repo.FindByID("100")
	require.NoError(t, err)
	assert.Zero(t, user.Balance)

	// Balance writes go through the accessor and land in the audit trail.
	assert.Contains(t, audit.String(), "user_Balance_1500_id_100_100_")

	assert.Error(t, repo.UpdateBalance(sess, "404", 500))
}

func TestUserRepositoryBlock(t *testing.T) {
	db, _, _ := setupDB(t)
	repo := NewUserRepository(db)
	require.NoError(t, repo.Create(&models.User{ID: "100", UserStatus: "active"}))

	require.NoError(t, repo.Block("100", "spam", "block"))

	user, err := repo.FindByID("100")
	require.NoError(t, err)
	assert.Equal(t, "blocked", user.UserStatus)
	assert.Equal(t, "spam", user.DescriptionBlocking.String)

	require.NoError(t, repo.Block("100", "", "unblock"))
	user, err = repo.FindByID("100")
	require.NoError(t, err)
	assert.Equal(t, "active", user.UserStatus)
}

func TestUserRepositoryFindAllSearch(t *testing.T) {
	db, _, _ := setupDB(t)
	repo := NewUserRepository(db)
	require.NoError(t, repo.Create(&models.User{ID: "100", Username: "alice"}))
	require.NoError(t, repo.Create(&models.User{ID: "200", Username: "bob"}))

	users, total, err := repo.FindAll(10, 1, "ali", "")
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	require.Len(t, users, 1)
	assert.Equal(t, "100", users[0].ID)
}

func TestSettingRepositoryPaySettings(t *testing.T) {
	db, store, _ := setupDB(t)
	repo := NewSettingRepository(db)
	sess := store.Session("test")

	// Missing settings read as empty, not as an error.
	v, err := repo.GetPaySetting(sess, "merchant_zarinpal")
	require.NoError(t, err)
	assert.Empty(t, v)

	require.NoError(t, repo.SetPaySetting(sess, "merchant_zarinpal", "m-1"))

	// The write invalidated the cached empty read.
	v, err = repo.GetPaySetting(sess, "merchant_zarinpal")
	require.NoError(t, err)
	assert.Equal(t, "m-1", v)

	// Overwrite goes through the accessor update path.
	require.NoError(t, repo.SetPaySetting(sess, "merchant_zarinpal", "m-2"))
	v, err = repo.GetPaySetting(sess, "merchant_zarinpal")
	require.NoError(t, err)
	assert.Equal(t, "m-2", v)
}

func TestSettingRepositoryAdminIDsFallback(t *testing.T) {
	db, store, _ := setupDB(t)
	repo := NewSettingRepository(db)
	sess := store.Session("test")

	ids, err := repo.AdminIDs(sess)
	require.NoError(t, err)
	assert.Equal(t, []string{"fallback-admin"}, ids)

	require.NoError(t, db.Create(&models.Admin{IDAdmin: "500", Rule: "owner"}).Error)

	// New session: the previous empty read is not replayed.
	ids, err = repo.AdminIDs(store.Session("test2"))
	require.NoError(t, err)
	assert.Equal(t, []string{"500"}, ids)
}

func TestSettingRepositoryFindAdminByID(t *testing.T) {
	db, _, _ := setupDB(t)
	repo := NewSettingRepository(db)
	require.NoError(t, db.Create(&models.Admin{IDAdmin: "500"}).Error)

	admin, err := repo.FindAdminByID("500")
	require.NoError(t, err)
	require.NotNil(t, admin)

	admin, err = repo.FindAdminByID("501")
	require.NoError(t, err)
	assert.Nil(t, admin)
}

func TestSettingRepositoryTexts(t *testing.T) {
	db, _, _ := setupDB(t)
	repo := NewSettingRepository(db)

	require.NoError(t, repo.SetText("text_start", "welcome"))
	text, err := repo.GetText("text_start")
	require.NoError(t, err)
	assert.Equal(t, "welcome", text)

	_, err = repo.GetText("missing")
	assert.Error(t, err)
}

func TestInvoiceRepositoryLifecycle(t *testing.T) {
	db, _, _ := setupDB(t)
	repo := NewInvoiceRepository(db)

	inv := &models.Invoice{
		IDInvoice: "INV-1", IDUser: "100", Username: "vpn_abc",
		ServiceLocation: "fra", Status: "active", TimeSell: "1700000000",
	}
	require.NoError(t, repo.Create(inv))

	found, err := repo.FindByID("INV-1")
	require.NoError(t, err)
	assert.Equal(t, "vpn_abc", found.Username)

	active, err := repo.FindActive()
	require.NoError(t, err)
	assert.Len(t, active, 1)

	n, err := repo.CountActiveByUserID("100")
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	require.NoError(t, repo.Update("INV-1", map[string]interface{}{"Status": "disabled"}))
	n, err = repo.CountActiveByUserID("100")
	require.NoError(t, err)
	assert.Zero(t, n)

	require.NoError(t, repo.Delete("INV-1"))
	_, err = repo.FindByID("INV-1")
	assert.Error(t, err)
}

func TestInvoiceRepositoryCountByLocation(t *testing.T) {
	db, _, _ := setupDB(t)
	repo := NewInvoiceRepository(db)

	// Every live status holds a panel slot, not just "active".
	for i, status := range []string{"active", "end_of_time", "sendedwarn", "end_of_volume"} {
		require.NoError(t, repo.Create(&models.Invoice{
			IDInvoice: fmt.Sprintf("INV-%d", i), IDUser: "100",
			ServiceLocation: "fra", Status: status,
		}))
	}
	require.NoError(t, repo.Create(&models.Invoice{
		IDInvoice: "INV-gone", IDUser: "100", ServiceLocation: "fra", Status: "deleted",
	}))
	require.NoError(t, repo.Create(&models.Invoice{
		IDInvoice: "INV-other", IDUser: "100", ServiceLocation: "ams", Status: "active",
	}))

	n, err := repo.CountByLocation("fra")
	require.NoError(t, err)
	assert.Equal(t, int64(4), n)

	n, err = repo.CountByLocation("ams")
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestPaymentRepositoryMarkPaid(t *testing.T) {
	db, _, _ := setupDB(t)
	repo := NewPaymentRepository(db)

	require.NoError(t, repo.Create(&models.PaymentReport{
		IDUser: "100", IDOrder: "ORD-1", Price: "50000",
		PaymentStatus: "unpaid", Time: "1700000000",
	}))

	require.NoError(t, repo.MarkPaid("ORD-1", "ref-9"))

	report, err := repo.FindByOrderID("ORD-1")
	require.NoError(t, err)
	assert.Equal(t, "paid", report.PaymentStatus)
	assert.Contains(t, report.DecNotConfirmed, "ref-9")
}

func TestPaymentRepositoryFindStaleUnpaid(t *testing.T) {
	db, _, _ := setupDB(t)
	repo := NewPaymentRepository(db)

	require.NoError(t, repo.Create(&models.PaymentReport{
		IDOrder: "OLD", PaymentStatus: "unpaid", Time: "1000",
	}))
	require.NoError(t, repo.Create(&models.PaymentReport{
		IDOrder: "NEW", PaymentStatus: "unpaid", Time: "9000",
	}))
	require.NoError(t, repo.Create(&models.PaymentReport{
		IDOrder: "PAID", PaymentStatus: "paid", Time: "1000",
	}))

	stale, err := repo.FindStaleUnpaid("5000")
	require.NoError(t, err)
	require.Len(t, stale, 1)
	assert.Equal(t, "OLD", stale[0].IDOrder)
}

func TestPanelRepositoryFindByCodeAndName(t *testing.T) {
	db, _, _ := setupDB(t)
	repo := NewPanelRepository(db)

	require.NoError(t, repo.Create(&models.Panel{
		CodePanel: "P1", NamePanel: "frankfurt", Status: "active", Type: "marzban",
	}))

	byCode, err := repo.FindByCode("P1")
	require.NoError(t, err)
	assert.Equal(t, "frankfurt", byCode.NamePanel)

	byName, err := repo.FindByName("frankfurt")
	require.NoError(t, err)
	assert.Equal(t, "P1", byName.CodePanel)

	_, err = repo.FindByCode("missing")
	assert.Error(t, err)
}

func TestProductRepositoryFindByCode(t *testing.T) {
	db, _, _ := setupDB(t)
	repo := NewProductRepository(db)

	require.NoError(t, repo.Create(&models.Product{
		CodeProduct: "PR1", NameProduct: "gold", PriceProduct: "90000",
	}))

	p, err := repo.FindByCode("PR1")
	require.NoError(t, err)
	assert.Equal(t, "gold", p.NameProduct)
}
