package router

import (
	"net/http"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"sellerbot/internal/datastore"
	"sellerbot/internal/handler"
	"sellerbot/internal/handler/api"
	"sellerbot/internal/middleware"
	"sellerbot/internal/payment"
	"sellerbot/internal/pkg/telegram"
	"sellerbot/internal/repository"
)

// Setup configures all routes for the Echo server.
func Setup(
	e *echo.Echo,
	db *gorm.DB,
	store *datastore.Store,
	gateways *payment.Registry,
	botAPI *telegram.BotAPI,
	logger *zap.Logger,
	apiKey string,
	updateDeduper middleware.UpdateDeduper,
	webhookHandler http.Handler,
) {
	e.Use(echomw.Recover())
	e.Use(middleware.CORS())

	repos := &api.Repos{
		User:    repository.NewUserRepository(db),
		Product: repository.NewProductRepository(db),
		Invoice: repository.NewInvoiceRepository(db),
		Payment: repository.NewPaymentRepository(db),
		Panel:   repository.NewPanelRepository(db),
		Setting: repository.NewSettingRepository(db),
	}

	userHandler := api.NewUserHandler(repos, store, botAPI, logger)
	productHandler := api.NewProductHandler(repos, logger)
	invoiceHandler := api.NewInvoiceHandler(repos, logger)
	paymentHandler := api.NewPaymentHandler(repos, logger)

	callbackRepos := &handler.CallbackRepos{
		User:    repos.User,
		Product: repos.Product,
		Invoice: repos.Invoice,
		Payment: repos.Payment,
		Panel:   repos.Panel,
		Setting: repos.Setting,
	}
	paymentCallbackHandler := handler.NewPaymentCallbackHandler(callbackRepos, store, gateways, botAPI, logger)

	// Admin API, all routed on the "actions" request field.
	apiGroup := e.Group("/api")
	apiGroup.Use(middleware.APIAuth(apiKey))
	apiGroup.Use(middleware.APILogger(repos.Setting))

	apiGroup.POST("/users", userHandler.Handle)
	apiGroup.POST("/products", productHandler.Handle)
	apiGroup.POST("/invoices", invoiceHandler.Handle)
	apiGroup.POST("/payments", paymentHandler.Handle)

	// Telegram webhook, protected by IP check and update deduplication.
	if webhookHandler != nil {
		webhookGroup := e.Group("/bot")
		webhookGroup.Use(middleware.TelegramIPCheck())
		webhookGroup.Use(middleware.TelegramUpdateDedup(updateDeduper))
		webhookGroup.POST("/webhook", echo.WrapHandler(webhookHandler))
	} else {
		logger.Info("telegram webhook routes disabled (bot update mode is polling)")
	}

	// Payment gateway callbacks.
	paymentGroup := e.Group("/payment")
	paymentGroup.GET("/zarinpal/callback", paymentCallbackHandler.ZarinPalCallback)
	paymentGroup.POST("/nowpayments/callback", paymentCallbackHandler.NOWPaymentsCallback)
	paymentGroup.POST("/aqayepardakht/callback", paymentCallbackHandler.AqayePardakhtCallback)

	// Public subscription redirect.
	e.GET("/sub/:uuid", paymentCallbackHandler.SubscriptionHandler)

	e.GET("/health", func(c echo.Context) error {
		return c.JSON(200, map[string]string{"status": "ok"})
	})
}
