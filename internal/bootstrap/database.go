package bootstrap

import (
	"fmt"

	"gorm.io/gorm"

	"sellerbot/internal/datastore"
	"sellerbot/internal/models"
)

// MigrateAndSeed ensures required tables exist and inserts baseline rows for
// singleton tables.
func MigrateAndSeed(db *gorm.DB) error {
	if err := db.AutoMigrate(allModels()...); err != nil {
		return fmt.Errorf("auto migrate failed: %w", err)
	}
	if err := seedDefaults(db); err != nil {
		return fmt.Errorf("seed defaults failed: %w", err)
	}
	return nil
}

// NewRegistry builds the datastore identifier allow-list from the migrated
// models. Columns added later by the schema evolver register themselves.
func NewRegistry(db *gorm.DB) (*datastore.Registry, error) {
	return datastore.RegistryFromModels(db, allModels()...)
}

func allModels() []interface{} {
	return []interface{}{
		// Core entities
		&models.User{},
		&models.Product{},
		&models.Invoice{},
		&models.PaymentReport{},
		&models.Panel{},
		// Settings / config tables
		&models.Admin{},
		&models.Setting{},
		&models.TextBot{},
		&models.Channel{},
		&models.CardNumber{},
		&models.PaySetting{},
		&models.LogsAPI{},
	}
}

func seedDefaults(db *gorm.DB) error {
	return db.Transaction(func(tx *gorm.DB) error {
		if err := ensureDefaultSetting(tx); err != nil {
			return err
		}
		return ensureDefaultPaySettings(tx)
	})
}

func ensureDefaultSetting(tx *gorm.DB) error {
	var count int64
	if err := tx.Model(&models.Setting{}).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	defaultKeyboard := `{"keyboard":[[{"text":"text_sell"},{"text":"text_extend"}],[{"text":"text_Purchased_services"},{"text":"accountwallet"}],[{"text":"text_support"},{"text":"text_help"}]]}`
	defaultCronStatus := `{"notifications":"off","payment":"off","uptime_panel":"off"}`

	row := models.Setting{
		BotStatus:      "on",
		NotUser:        "0",
		StatusNewUser:  "on",
		VerifyStart:    "off",
		VolumeWarn:     "0",
		DayWarn:        "0",
		ScoreStatus:    "0",
		ShowCard:       "0",
		LimitUserTests: "0",
		KeyboardMain:   defaultKeyboard,
		CronStatus:     defaultCronStatus,
	}
	return tx.Create(&row).Error
}

func ensureDefaultPaySettings(tx *gorm.DB) error {
	defaults := map[string]string{
		"minamount":             "10000",
		"maxamount":             "500000000",
		"cardnum":               "",
		"cardname":              "",
		"merchant_zarinpal":     "",
		"pin_aqayepardakht":     "",
		"apinowpayment":         "",
		"walletaddress":         "",
		"statuscardautoconfirm": "offautoconfirm",
	}

	for key, value := range defaults {
		var count int64
		if err := tx.Model(&models.PaySetting{}).Where("NamePay = ?", key).Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			continue
		}
		row := models.PaySetting{NamePay: key, ValuePay: value}
		if err := tx.Create(&row).Error; err != nil {
			return err
		}
	}
	return nil
}
