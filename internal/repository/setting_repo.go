package repository

import (
	"encoding/json"
	"errors"
	"time"

	"gorm.io/gorm"

	"sellerbot/internal/datastore"
	"sellerbot/internal/models"
)

// SettingRepository handles settings, textbot, channels, and other config
// tables. Dynamic single-column writes route through the datastore so the
// singleton tables keep their schema-on-demand behavior.
type SettingRepository struct {
	db *gorm.DB
}

func NewSettingRepository(db *gorm.DB) *SettingRepository {
	return &SettingRepository{db: db}
}

// DB returns the underlying gorm.DB instance.
func (r *SettingRepository) DB() *gorm.DB {
	return r.db
}

// --- Setting ---

// GetSettings returns the single settings row.
func (r *SettingRepository) GetSettings() (*models.Setting, error) {
	var setting models.Setting
	if err := r.db.First(&setting).Error; err != nil {
		return nil, err
	}
	return &setting, nil
}

// UpdateSetting writes one column of the singleton settings table through
// the dynamic accessor. No filter: the table has exactly one row, and the
// accessor's bulk form updates it.
func (r *SettingRepository) UpdateSetting(sess *datastore.Session, column string, value interface{}) error {
	return sess.Update("setting", column, value, "", nil)
}

// --- TextBot ---

// GetText returns a text entry by ID.
func (r *SettingRepository) GetText(id string) (string, error) {
	var tb models.TextBot
	if err := r.db.Where("id_text = ?", id).First(&tb).Error; err != nil {
		return "", err
	}
	return tb.Text, nil
}

// SetText inserts or updates a text entry.
func (r *SettingRepository) SetText(id, text string) error {
	return r.db.Save(&models.TextBot{IDText: id, Text: text}).Error
}

// --- Channels ---

// GetChannels returns all channels.
func (r *SettingRepository) GetChannels() ([]models.Channel, error) {
	var channels []models.Channel
	err := r.db.Find(&channels).Error
	return channels, err
}

// --- PaySetting (key-value) ---

// GetPaySetting reads a payment setting through the dynamic accessor so
// repeated lookups within the same session hit the cache.
func (r *SettingRepository) GetPaySetting(sess *datastore.Session, name string) (string, error) {
	row, err := sess.Row("PaySetting", "ValuePay", "NamePay", name)
	if err != nil {
		return "", err
	}
	if row == nil {
		return "", nil
	}
	return toString(row["ValuePay"]), nil
}

// SetPaySetting writes a payment setting through the dynamic accessor.
func (r *SettingRepository) SetPaySetting(sess *datastore.Session, name, value string) error {
	var count int64
	if err := r.db.Model(&models.PaySetting{}).Where("NamePay = ?", name).Count(&count).Error; err != nil {
		return err
	}
	if count == 0 {
		if err := r.db.Create(&models.PaySetting{NamePay: name}).Error; err != nil {
			return err
		}
	}
	// The accessor write also invalidates any cached miss for this key.
	return sess.Update("PaySetting", "ValuePay", value, "NamePay", name)
}

// GetAllPaySettings returns all payment settings.
func (r *SettingRepository) GetAllPaySettings() ([]models.PaySetting, error) {
	var settings []models.PaySetting
	err := r.db.Find(&settings).Error
	return settings, err
}

// --- Admin ---

// FindAdminByID looks up an administrator.
func (r *SettingRepository) FindAdminByID(id string) (*models.Admin, error) {
	var admin models.Admin
	if err := r.db.Where("id_admin = ?", id).First(&admin).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &admin, nil
}

// AdminIDs returns every administrator chat id. The accessor dedupes,
// drops blanks and falls back to the configured admin when the table is
// empty, so notification fan-out always has a target.
func (r *SettingRepository) AdminIDs(sess *datastore.Session) ([]string, error) {
	return sess.Column("admin", "id_admin", "", nil)
}

// --- Logs API ---

// CreateAPILog appends a request record to the logs_api table.
func (r *SettingRepository) CreateAPILog(header, data interface{}, ip, actions string) error {
	headerJSON, _ := json.Marshal(header)
	dataJSON, _ := json.Marshal(data)

	log := models.LogsAPI{
		Header:  string(headerJSON),
		Data:    string(dataJSON),
		IP:      ip,
		Time:    time.Now().Format("2006/01/02 15:04:05"),
		Actions: actions,
	}
	return r.db.Create(&log).Error
}

// --- CardNumber ---

// GetAllCardNumbers returns all configured card numbers.
func (r *SettingRepository) GetAllCardNumbers() ([]models.CardNumber, error) {
	var cards []models.CardNumber
	err := r.db.Find(&cards).Error
	return cards, err
}

func toString(v interface{}) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case []byte:
		return string(t)
	default:
		b, _ := json.Marshal(t)
		return string(b)
	}
}
