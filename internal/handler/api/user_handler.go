package api

import (
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"sellerbot/internal/datastore"
	"sellerbot/internal/models"
	"sellerbot/internal/pkg/telegram"
)

// UserHandler handles user API actions routed on the "actions" field.
type UserHandler struct {
	repos  *Repos
	store  *datastore.Store
	botAPI *telegram.BotAPI
	logger *zap.Logger
}

func NewUserHandler(repos *Repos, store *datastore.Store, botAPI *telegram.BotAPI, logger *zap.Logger) *UserHandler {
	return &UserHandler{repos: repos, store: store, botAPI: botAPI, logger: logger}
}

// Handle routes user API requests.
// POST /api/users
func (h *UserHandler) Handle(c echo.Context) error {
	action, body, err := parseBodyAction(c)
	if err != nil {
		return errorResponse(c, "Invalid request body")
	}

	switch action {
	case "users":
		return h.listUsers(c, body)
	case "user":
		return h.getUser(c, body)
	case "user_add":
		return h.addUser(c, body)
	case "block_user":
		return h.blockUser(c, body)
	case "add_balance":
		return h.addBalance(c, body)
	case "zero_balance":
		return h.zeroBalance(c, body)
	case "send_message":
		return h.sendMessage(c, body)
	default:
		return errorResponse(c, "Unknown action: "+action)
	}
}

// listUsers - action: "users"
func (h *UserHandler) listUsers(c echo.Context, body map[string]interface{}) error {
	limit := getIntField(body, "limit", 50)
	page := getIntField(body, "page", 1)
	q := getStringField(body, "q")
	agent := getStringField(body, "agent")

	users, total, err := h.repos.User.FindAll(limit, page, q, agent)
	if err != nil {
		h.logger.Error("list users failed", zap.Error(err))
		return errorResponse(c, "Failed to retrieve users")
	}

	return successResponse(c, "Successful", paginatedResponse("users", users, total, page, limit))
}

// getUser - action: "user"
func (h *UserHandler) getUser(c echo.Context, body map[string]interface{}) error {
	chatID := getStringField(body, "chat_id")
	if chatID == "" {
		return errorResponse(c, "chat_id is required")
	}

	user, err := h.repos.User.FindByID(chatID)
	if err != nil {
		return errorResponse(c, "User not found")
	}

	activeInvoices, _ := h.repos.Invoice.CountActiveByUserID(chatID)
	paymentSum, _ := h.repos.Payment.SumPaidByUserID(chatID)

	return successResponse(c, "Successful", map[string]interface{}{
		"user":            user,
		"active_invoices": activeInvoices,
		"payment_sum":     paymentSum,
	})
}

// addUser - action: "user_add"
func (h *UserHandler) addUser(c echo.Context, body map[string]interface{}) error {
	chatID := getStringField(body, "chat_id")
	if chatID == "" {
		return errorResponse(c, "chat_id is required")
	}

	exists, err := h.repos.User.Exists(chatID)
	if err != nil {
		return errorResponse(c, "Failed to check user")
	}
	if exists {
		return errorResponse(c, "User already exists")
	}

	user := &models.User{
		ID:       chatID,
		Username: getStringField(body, "username"),
		Step:     "none",
	}
	if err := h.repos.User.Create(user); err != nil {
		h.logger.Error("create user failed", zap.Error(err))
		return errorResponse(c, "Failed to create user")
	}

	return successResponse(c, "User created", user)
}

// blockUser - action: "block_user"
func (h *UserHandler) blockUser(c echo.Context, body map[string]interface{}) error {
	chatID := getStringField(body, "chat_id")
	if chatID == "" {
		return errorResponse(c, "chat_id is required")
	}

	description := getStringField(body, "description")
	typeBlock := getStringField(body, "type")
	if typeBlock == "" {
		typeBlock = "block"
	}

	if err := h.repos.User.Block(chatID, description, typeBlock); err != nil {
		return errorResponse(c, "Failed to block user")
	}
	return successResponse(c, "Successful", nil)
}

// addBalance - action: "add_balance"
func (h *UserHandler) addBalance(c echo.Context, body map[string]interface{}) error {
	chatID := getStringField(body, "chat_id")
	amount := getIntField(body, "amount", 0)
	if chatID == "" || amount == 0 {
		return errorResponse(c, "chat_id and amount are required")
	}

	user, err := h.repos.User.FindByID(chatID)
	if err != nil {
		return errorResponse(c, "User not found")
	}

	sess := h.store.Session("api")
	if err := h.repos.User.UpdateField(sess, chatID, "Balance", user.Balance+amount); err != nil {
		h.logger.Error("add balance failed", zap.Error(err))
		return errorResponse(c, "Failed to update balance")
	}

	return successResponse(c, "Successful", map[string]interface{}{
		"balance": user.Balance + amount,
	})
}

// zeroBalance - action: "zero_balance"
func (h *UserHandler) zeroBalance(c echo.Context, body map[string]interface{}) error {
	chatID := getStringField(body, "chat_id")
	if chatID == "" {
		return errorResponse(c, "chat_id is required")
	}

	sess := h.store.Session("api")
	if err := h.repos.User.UpdateField(sess, chatID, "Balance", 0); err != nil {
		return errorResponse(c, "Failed to reset balance")
	}
	return successResponse(c, "Successful", nil)
}

// sendMessage - action: "send_message"
func (h *UserHandler) sendMessage(c echo.Context, body map[string]interface{}) error {
	chatID := getStringField(body, "chat_id")
	text := getStringField(body, "text")
	if chatID == "" || text == "" {
		return errorResponse(c, "chat_id and text are required")
	}

	if _, err := h.botAPI.SendMessage(chatID, text, nil); err != nil {
		return errorResponse(c, "Failed to send message")
	}
	return successResponse(c, "Successful", nil)
}
