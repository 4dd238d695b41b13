package repository

import (
	"gorm.io/gorm"

	"sellerbot/internal/datastore"
	"sellerbot/internal/models"
)

// UserRepository handles all user database operations.
type UserRepository struct {
	db *gorm.DB
}

func NewUserRepository(db *gorm.DB) *UserRepository {
	return &UserRepository{db: db}
}

// FindAll returns users with pagination and optional search/agent filter.
func (r *UserRepository) FindAll(limit, page int, query, agent string) ([]models.User, int64, error) {
	var users []models.User
	var total int64

	db := r.db.Model(&models.User{})

	if query != "" {
		search := "%" + query + "%"
		db = db.Where("id LIKE ? OR username LIKE ? OR namecustom LIKE ? OR number LIKE ?",
			search, search, search, search)
	}
	if agent != "" {
		db = db.Where("agent = ?", agent)
	}

	if err := db.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	if limit <= 0 {
		limit = 50
	}
	if page <= 0 {
		page = 1
	}
	offset := (page - 1) * limit

	if err := db.Limit(limit).Offset(offset).Order("register DESC").Find(&users).Error; err != nil {
		return nil, 0, err
	}
	return users, total, nil
}

// FindByID finds a user by Telegram chat ID.
func (r *UserRepository) FindByID(chatID string) (*models.User, error) {
	var user models.User
	if err := r.db.Where("id = ?", chatID).First(&user).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

// Create inserts a new user.
func (r *UserRepository) Create(user *models.User) error {
	return r.db.Create(user).Error
}

// Update updates user fields.
func (r *UserRepository) Update(chatID string, updates map[string]interface{}) error {
	return r.db.Model(&models.User{}).Where("id = ?", chatID).Updates(updates).Error
}

// UpdateBalance adds delta to the user's wallet balance. Negative deltas
// charge the wallet, positive ones refund or top it up. The write goes through
// the dynamic accessor so it lands in the audit trail like every other
// balance change.
func (r *UserRepository) UpdateBalance(sess *datastore.Session, chatID string, delta int) error {
	user, err := r.FindByID(chatID)
	if err != nil {
		return err
	}
	return r.UpdateField(sess, chatID, "Balance", user.Balance+delta)
}

// Block blocks or unblocks a user.
func (r *UserRepository) Block(chatID, description, typeBlock string) error {
	updates := map[string]interface{}{
		"description_blocking": description,
	}
	if typeBlock == "block" {
		updates["User_Status"] = "blocked"
	} else {
		updates["User_Status"] = "active"
		updates["description_blocking"] = ""
	}
	return r.db.Model(&models.User{}).Where("id = ?", chatID).Updates(updates).Error
}

// Exists checks whether user with given ID exists.
func (r *UserRepository) Exists(chatID string) (bool, error) {
	var count int64
	err := r.db.Model(&models.User{}).Where("id = ?", chatID).Count(&count).Error
	return count > 0, err
}

// Delete removes a user by chat ID.
func (r *UserRepository) Delete(chatID string) error {
	return r.db.Where("id = ?", chatID).Delete(&models.User{}).Error
}

// UpdateField writes a single column through the dynamic accessor, so legacy
// columns that never made it into the model get created on demand and the
// write lands in the audit trail.
func (r *UserRepository) UpdateField(sess *datastore.Session, chatID, column string, value interface{}) error {
	return sess.Update("user", column, value, "id", chatID)
}
