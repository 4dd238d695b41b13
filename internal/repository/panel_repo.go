package repository

import (
	"gorm.io/gorm"

	"sellerbot/internal/models"
)

// PanelRepository handles panel database operations.
type PanelRepository struct {
	db *gorm.DB
}

func NewPanelRepository(db *gorm.DB) *PanelRepository {
	return &PanelRepository{db: db}
}

// FindAll returns panels with pagination and search.
func (r *PanelRepository) FindAll(limit, page int, query string) ([]models.Panel, int64, error) {
	var panels []models.Panel
	var total int64

	db := r.db.Model(&models.Panel{})

	if query != "" {
		search := "%" + query + "%"
		db = db.Where("name_panel LIKE ? OR code_panel LIKE ? OR url_panel LIKE ?",
			search, search, search)
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

	if err := db.Limit(limit).Offset(offset).Find(&panels).Error; err != nil {
		return nil, 0, err
	}
	return panels, total, nil
}

// FindByCode returns a panel by code.
func (r *PanelRepository) FindByCode(code string) (*models.Panel, error) {
	var panel models.Panel
	if err := r.db.Where("code_panel = ?", code).First(&panel).Error; err != nil {
		return nil, err
	}
	return &panel, nil
}

// FindByName returns a panel by display name. Invoices reference panels
// by name in their service location column.
func (r *PanelRepository) FindByName(name string) (*models.Panel, error) {
	var panel models.Panel
	if err := r.db.Where("name_panel = ?", name).First(&panel).Error; err != nil {
		return nil, err
	}
	return &panel, nil
}

// FindActive returns all active panels.
func (r *PanelRepository) FindActive() ([]models.Panel, error) {
	var panels []models.Panel
	err := r.db.Where("status = ?", "active").Find(&panels).Error
	return panels, err
}

// Create creates a new panel.
func (r *PanelRepository) Create(panel *models.Panel) error {
	return r.db.Create(panel).Error
}

// Update updates panel fields.
func (r *PanelRepository) Update(id int, updates map[string]interface{}) error {
	return r.db.Model(&models.Panel{}).Where("id = ?", id).Updates(updates).Error
}

// Delete deletes a panel.
func (r *PanelRepository) Delete(id int) error {
	return r.db.Where("id = ?", id).Delete(&models.Panel{}).Error
}
