package api

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"sellerbot/internal/models"
	"sellerbot/internal/repository"
)

// Repos bundles the repositories the API handlers use.
type Repos struct {
	User    *repository.UserRepository
	Product *repository.ProductRepository
	Invoice *repository.InvoiceRepository
	Payment *repository.PaymentRepository
	Panel   *repository.PanelRepository
	Setting *repository.SettingRepository
}

func successResponse(c echo.Context, msg string, obj interface{}) error {
	return c.JSON(http.StatusOK, models.APIResponse{
		Status: true,
		Msg:    msg,
		Obj:    obj,
	})
}

func errorResponse(c echo.Context, msg string) error {
	return c.JSON(http.StatusOK, models.APIResponse{
		Status: false,
		Msg:    msg,
		Obj:    nil,
	})
}

func totalPages(total int64, limit int) int {
	if limit <= 0 {
		limit = 50
	}
	pages := int(total) / limit
	if int(total)%limit != 0 {
		pages++
	}
	if pages == 0 {
		pages = 1
	}
	return pages
}

// paginatedResponse returns list payloads as
// { "<key>": [...], "pagination": {...} }.
func paginatedResponse(key string, data interface{}, total int64, page, limit int) map[string]interface{} {
	return map[string]interface{}{
		key: data,
		"pagination": map[string]interface{}{
			"total_record": total,
			"total_pages":  totalPages(total, limit),
			"current_page": page,
			"per_page":     limit,
		},
	}
}

// parseBodyAction extracts the "actions" field every API request routes on.
func parseBodyAction(c echo.Context) (string, map[string]interface{}, error) {
	body := make(map[string]interface{})
	if err := c.Bind(&body); err != nil {
		return "", nil, err
	}
	action, _ := body["actions"].(string)
	c.Set("api_actions", action)
	return action, body, nil
}

func getStringField(body map[string]interface{}, key string) string {
	switch v := body[key].(type) {
	case string:
		return v
	case float64:
		return fmt.Sprintf("%.0f", v)
	}
	return ""
}

func getIntField(body map[string]interface{}, key string, defaultVal int) int {
	switch v := body[key].(type) {
	case float64:
		return int(v)
	case int:
		return v
	case string:
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return defaultVal
}
