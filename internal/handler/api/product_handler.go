package api

import (
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"sellerbot/internal/models"
	"sellerbot/internal/pkg/utils"
)

// ProductHandler handles product API actions.
type ProductHandler struct {
	repos  *Repos
	logger *zap.Logger
}

func NewProductHandler(repos *Repos, logger *zap.Logger) *ProductHandler {
	return &ProductHandler{repos: repos, logger: logger}
}

// Handle routes product API requests.
// POST /api/products
func (h *ProductHandler) Handle(c echo.Context) error {
	action, body, err := parseBodyAction(c)
	if err != nil {
		return errorResponse(c, "Invalid request body")
	}

	switch action {
	case "products":
		return h.listProducts(c, body)
	case "product_add":
		return h.addProduct(c, body)
	case "product_edit":
		return h.editProduct(c, body)
	case "product_remove":
		return h.removeProduct(c, body)
	default:
		return errorResponse(c, "Unknown action: "+action)
	}
}

func (h *ProductHandler) listProducts(c echo.Context, body map[string]interface{}) error {
	limit := getIntField(body, "limit", 50)
	page := getIntField(body, "page", 1)
	q := getStringField(body, "q")

	products, total, err := h.repos.Product.FindAll(limit, page, q)
	if err != nil {
		h.logger.Error("list products failed", zap.Error(err))
		return errorResponse(c, "Failed to retrieve products")
	}

	return successResponse(c, "Successful", paginatedResponse("products", products, total, page, limit))
}

func (h *ProductHandler) addProduct(c echo.Context, body map[string]interface{}) error {
	name := getStringField(body, "name_product")
	if name == "" {
		return errorResponse(c, "name_product is required")
	}

	product := &models.Product{
		CodeProduct:      utils.RandomCode(8),
		NameProduct:      name,
		PriceProduct:     getStringField(body, "price_product"),
		VolumeConstraint: getStringField(body, "volume"),
		ServiceTime:      getStringField(body, "service_time"),
		Location:         getStringField(body, "location"),
		Agent:            getStringField(body, "agent"),
		Note:             getStringField(body, "note"),
	}
	if err := h.repos.Product.Create(product); err != nil {
		h.logger.Error("create product failed", zap.Error(err))
		return errorResponse(c, "Failed to create product")
	}

	return successResponse(c, "Product created", product)
}

func (h *ProductHandler) editProduct(c echo.Context, body map[string]interface{}) error {
	id := getIntField(body, "id", 0)
	if id <= 0 {
		return errorResponse(c, "id is required")
	}

	updates := map[string]interface{}{}
	for bodyKey, column := range map[string]string{
		"name_product":  "name_product",
		"price_product": "price_product",
		"volume":        "Volume_constraint",
		"service_time":  "Service_time",
		"location":      "Location",
		"note":          "note",
	} {
		if v := getStringField(body, bodyKey); v != "" {
			updates[column] = v
		}
	}
	if len(updates) == 0 {
		return errorResponse(c, "Nothing to update")
	}

	if err := h.repos.Product.Update(id, updates); err != nil {
		return errorResponse(c, "Failed to update product")
	}
	return successResponse(c, "Successful", nil)
}

func (h *ProductHandler) removeProduct(c echo.Context, body map[string]interface{}) error {
	id := getIntField(body, "id", 0)
	if id <= 0 {
		return errorResponse(c, "id is required")
	}
	if err := h.repos.Product.Delete(id); err != nil {
		return errorResponse(c, "Failed to delete product")
	}
	return successResponse(c, "Successful", nil)
}
