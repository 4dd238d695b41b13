package repository

import (
	"time"

	"gorm.io/gorm"

	"sellerbot/internal/models"
)

// PaymentRepository handles payment report database operations.
type PaymentRepository struct {
	db *gorm.DB
}

func NewPaymentRepository(db *gorm.DB) *PaymentRepository {
	return &PaymentRepository{db: db}
}

// FindByOrderID returns a payment by order ID.
func (r *PaymentRepository) FindByOrderID(orderID string) (*models.PaymentReport, error) {
	var payment models.PaymentReport
	if err := r.db.Where("id_order = ?", orderID).First(&payment).Error; err != nil {
		return nil, err
	}
	return &payment, nil
}

// FindByAuthority returns a payment by the gateway authority/track id.
func (r *PaymentRepository) FindByAuthority(authority string) (*models.PaymentReport, error) {
	var payment models.PaymentReport
	if err := r.db.Where("dec_not_confirmed = ?", authority).First(&payment).Error; err != nil {
		return nil, err
	}
	return &payment, nil
}

// FindAll returns payment reports with pagination and search.
func (r *PaymentRepository) FindAll(limit, page int, query string) ([]models.PaymentReport, int64, error) {
	var payments []models.PaymentReport
	var total int64

	db := r.db.Model(&models.PaymentReport{})
	if query != "" {
		search := "%" + query + "%"
		db = db.Where("id_order LIKE ? OR id_user LIKE ?", search, search)
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
	if err := db.Order("time DESC").Limit(limit).Offset((page - 1) * limit).Find(&payments).Error; err != nil {
		return nil, 0, err
	}
	return payments, total, nil
}

// FindByUserID returns payments for a specific user.
func (r *PaymentRepository) FindByUserID(userID string) ([]models.PaymentReport, error) {
	var payments []models.PaymentReport
	err := r.db.Where("id_user = ?", userID).Order("time DESC").Find(&payments).Error
	return payments, err
}

// Create creates a new payment report.
func (r *PaymentRepository) Create(payment *models.PaymentReport) error {
	return r.db.Create(payment).Error
}

// UpdateByOrderID updates a payment report by order ID.
func (r *PaymentRepository) UpdateByOrderID(orderID string, updates map[string]interface{}) error {
	return r.db.Model(&models.PaymentReport{}).Where("id_order = ?", orderID).Updates(updates).Error
}

// MarkPaid flips a payment to paid and records the gateway reference.
func (r *PaymentRepository) MarkPaid(orderID, refID string) error {
	return r.UpdateByOrderID(orderID, map[string]interface{}{
		"payment_Status":    "paid",
		"dec_not_confirmed": refID,
		"at_updated":        time.Now().Format("2006-01-02 15:04:05"),
	})
}

// FindStaleUnpaid returns unpaid reports created before the cutoff, for the
// expiry cron.
func (r *PaymentRepository) FindStaleUnpaid(cutoff string) ([]models.PaymentReport, error) {
	var payments []models.PaymentReport
	err := r.db.Where("payment_Status = ? AND time < ?", "unpaid", cutoff).Find(&payments).Error
	return payments, err
}

// SumPaidByUserID returns total confirmed payment amount for a user.
func (r *PaymentRepository) SumPaidByUserID(userID string) (int64, error) {
	var sum int64
	err := r.db.Model(&models.PaymentReport{}).
		Where("id_user = ? AND payment_Status = ?", userID, "paid").
		Select("COALESCE(SUM(CAST(price AS SIGNED)), 0)").Scan(&sum).Error
	return sum, err
}
