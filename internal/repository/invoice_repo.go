package repository

import (
	"gorm.io/gorm"

	"sellerbot/internal/models"
)

// InvoiceRepository handles invoice database operations.
type InvoiceRepository struct {
	db *gorm.DB
}

func NewInvoiceRepository(db *gorm.DB) *InvoiceRepository {
	return &InvoiceRepository{db: db}
}

// FindAll returns invoices with pagination and search.
func (r *InvoiceRepository) FindAll(limit, page int, query string) ([]models.Invoice, int64, error) {
	var invoices []models.Invoice
	var total int64

	db := r.db.Model(&models.Invoice{})

	if query != "" {
		search := "%" + query + "%"
		db = db.Where("id_invoice LIKE ? OR username LIKE ? OR id_user LIKE ? OR name_product LIKE ?",
			search, search, search, search)
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

	if err := db.Limit(limit).Offset(offset).Order("time_sell DESC").Find(&invoices).Error; err != nil {
		return nil, 0, err
	}
	return invoices, total, nil
}

// FindByID returns an invoice by its invoice ID.
func (r *InvoiceRepository) FindByID(invoiceID string) (*models.Invoice, error) {
	var invoice models.Invoice
	if err := r.db.Where("id_invoice = ?", invoiceID).First(&invoice).Error; err != nil {
		return nil, err
	}
	return &invoice, nil
}

// FindByUserID returns all invoices for a user.
func (r *InvoiceRepository) FindByUserID(userID string) ([]models.Invoice, error) {
	var invoices []models.Invoice
	err := r.db.Where("id_user = ?", userID).Order("time_sell DESC").Find(&invoices).Error
	return invoices, err
}

// FindActive returns every active invoice, for the usage sweep.
func (r *InvoiceRepository) FindActive() ([]models.Invoice, error) {
	var invoices []models.Invoice
	err := r.db.Where("Status = ?", "active").Find(&invoices).Error
	return invoices, err
}

// Create creates a new invoice.
func (r *InvoiceRepository) Create(invoice *models.Invoice) error {
	return r.db.Create(invoice).Error
}

// Update updates invoice fields.
func (r *InvoiceRepository) Update(invoiceID string, updates map[string]interface{}) error {
	return r.db.Model(&models.Invoice{}).Where("id_invoice = ?", invoiceID).Updates(updates).Error
}

// Delete deletes an invoice.
func (r *InvoiceRepository) Delete(invoiceID string) error {
	return r.db.Where("id_invoice = ?", invoiceID).Delete(&models.Invoice{}).Error
}

// CountActiveByUserID counts active invoices for a user.
func (r *InvoiceRepository) CountActiveByUserID(userID string) (int64, error) {
	var count int64
	err := r.db.Model(&models.Invoice{}).Where("id_user = ? AND Status = ?", userID, "active").Count(&count).Error
	return count, err
}

// CountByLocation counts live invoices for a given panel/location, used to
// enforce per-panel capacity limits.
func (r *InvoiceRepository) CountByLocation(location string) (int64, error) {
	var count int64
	err := r.db.Model(&models.Invoice{}).Where(
		"Service_location = ? AND Status IN ?",
		location,
		[]string{"active", "end_of_time", "sendedwarn", "end_of_volume"},
	).Count(&count).Error
	return count, err
}
