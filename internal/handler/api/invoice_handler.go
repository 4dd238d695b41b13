package api

import (
	"context"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"sellerbot/internal/panel"
)

// InvoiceHandler handles service invoice API actions.
type InvoiceHandler struct {
	repos  *Repos
	logger *zap.Logger
}

func NewInvoiceHandler(repos *Repos, logger *zap.Logger) *InvoiceHandler {
	return &InvoiceHandler{repos: repos, logger: logger}
}

// Handle routes invoice API requests.
// POST /api/invoices
func (h *InvoiceHandler) Handle(c echo.Context) error {
	action, body, err := parseBodyAction(c)
	if err != nil {
		return errorResponse(c, "Invalid request body")
	}

	switch action {
	case "invoices":
		return h.listInvoices(c, body)
	case "invoice":
		return h.getInvoice(c, body)
	case "disable_invoice":
		return h.setInvoiceStatus(c, body, "disabled")
	case "enable_invoice":
		return h.setInvoiceStatus(c, body, "active")
	case "remove_invoice":
		return h.removeInvoice(c, body)
	default:
		return errorResponse(c, "Unknown action: "+action)
	}
}

func (h *InvoiceHandler) listInvoices(c echo.Context, body map[string]interface{}) error {
	limit := getIntField(body, "limit", 50)
	page := getIntField(body, "page", 1)
	q := getStringField(body, "q")

	invoices, total, err := h.repos.Invoice.FindAll(limit, page, q)
	if err != nil {
		h.logger.Error("list invoices failed", zap.Error(err))
		return errorResponse(c, "Failed to retrieve invoices")
	}

	return successResponse(c, "Successful", paginatedResponse("invoices", invoices, total, page, limit))
}

func (h *InvoiceHandler) getInvoice(c echo.Context, body map[string]interface{}) error {
	id := getStringField(body, "id_invoice")
	if id == "" {
		return errorResponse(c, "id_invoice is required")
	}

	invoice, err := h.repos.Invoice.FindByID(id)
	if err != nil {
		return errorResponse(c, "Invoice not found")
	}

	// Attach live usage from the panel when reachable.
	result := map[string]interface{}{"invoice": invoice}
	if panelModel, err := h.repos.Panel.FindByName(invoice.ServiceLocation); err == nil {
		if client, err := panel.NewClient(panelModel); err == nil {
			ctx, cancel := context.WithTimeout(c.Request().Context(), 15*time.Second)
			defer cancel()
			if acc, err := client.GetAccount(ctx, invoice.Username); err == nil {
				result["account"] = acc
			}
		}
	}

	return successResponse(c, "Successful", result)
}

// setInvoiceStatus toggles an invoice and its panel account together.
func (h *InvoiceHandler) setInvoiceStatus(c echo.Context, body map[string]interface{}, status string) error {
	id := getStringField(body, "id_invoice")
	if id == "" {
		return errorResponse(c, "id_invoice is required")
	}

	invoice, err := h.repos.Invoice.FindByID(id)
	if err != nil {
		return errorResponse(c, "Invoice not found")
	}

	if panelModel, err := h.repos.Panel.FindByName(invoice.ServiceLocation); err == nil {
		if client, err := panel.NewClient(panelModel); err == nil {
			ctx, cancel := context.WithTimeout(c.Request().Context(), 15*time.Second)
			defer cancel()
			if status == "active" {
				err = client.EnableAccount(ctx, invoice.Username)
			} else {
				err = client.DisableAccount(ctx, invoice.Username)
			}
			if err != nil {
				h.logger.Warn("panel status change failed",
					zap.String("invoice", id), zap.String("status", status), zap.Error(err))
			}
		}
	}

	if err := h.repos.Invoice.Update(id, map[string]interface{}{"Status": status}); err != nil {
		return errorResponse(c, "Failed to update invoice")
	}
	return successResponse(c, "Successful", nil)
}

func (h *InvoiceHandler) removeInvoice(c echo.Context, body map[string]interface{}) error {
	id := getStringField(body, "id_invoice")
	if id == "" {
		return errorResponse(c, "id_invoice is required")
	}

	invoice, err := h.repos.Invoice.FindByID(id)
	if err != nil {
		return errorResponse(c, "Invoice not found")
	}

	if panelModel, err := h.repos.Panel.FindByName(invoice.ServiceLocation); err == nil {
		if client, err := panel.NewClient(panelModel); err == nil {
			ctx, cancel := context.WithTimeout(c.Request().Context(), 15*time.Second)
			defer cancel()
			if err := client.DeleteAccount(ctx, invoice.Username); err != nil {
				h.logger.Warn("panel delete failed", zap.String("invoice", id), zap.Error(err))
			}
		}
	}

	if err := h.repos.Invoice.Delete(id); err != nil {
		return errorResponse(c, "Failed to delete invoice")
	}
	return successResponse(c, "Successful", nil)
}
