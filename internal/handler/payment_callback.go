package handler

import (
	"context"
	"fmt"
	"html/template"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"sellerbot/internal/datastore"
	"sellerbot/internal/models"
	"sellerbot/internal/panel"
	"sellerbot/internal/payment"
	"sellerbot/internal/pkg/telegram"
	"sellerbot/internal/pkg/utils"
	"sellerbot/internal/repository"
)

// CallbackRepos bundles the repositories payment callbacks touch.
type CallbackRepos struct {
	User    *repository.UserRepository
	Product *repository.ProductRepository
	Invoice *repository.InvoiceRepository
	Payment *repository.PaymentRepository
	Panel   *repository.PanelRepository
	Setting *repository.SettingRepository
}

// PaymentCallbackHandler handles gateway callbacks and the public
// subscription redirect.
type PaymentCallbackHandler struct {
	repos    *CallbackRepos
	store    *datastore.Store
	gateways *payment.Registry
	botAPI   *telegram.BotAPI
	logger   *zap.Logger
}

// NewPaymentCallbackHandler creates a new payment callback handler.
func NewPaymentCallbackHandler(
	repos *CallbackRepos,
	store *datastore.Store,
	gateways *payment.Registry,
	botAPI *telegram.BotAPI,
	logger *zap.Logger,
) *PaymentCallbackHandler {
	return &PaymentCallbackHandler{
		repos:    repos,
		store:    store,
		gateways: gateways,
		botAPI:   botAPI,
		logger:   logger,
	}
}

// ZarinPalCallback handles the browser redirect back from ZarinPal.
func (h *PaymentCallbackHandler) ZarinPalCallback(c echo.Context) error {
	authority := c.QueryParam("Authority")
	statusParam := c.QueryParam("Status")

	if authority == "" {
		return h.renderPaymentResult(c, "خطا", "پارامترهای نامعتبر", "", 0)
	}

	report, err := h.repos.Payment.FindByAuthority(authority)
	if err != nil {
		return h.renderPaymentResult(c, "خطا", "تراکنش یافت نشد", authority, 0)
	}

	price := utils.ParseInt(report.Price, 0)

	if statusParam != "OK" {
		return h.renderPaymentResult(c, "پرداخت انجام نشد", "کاربر از پرداخت منصرف شد", report.IDOrder, price)
	}
	if report.PaymentStatus == "paid" {
		return h.renderPaymentResult(c, "پرداخت موفق", "این تراکنش قبلاً پرداخت شده است", report.IDOrder, price)
	}

	gw := h.gateways.Get("zarinpal")
	if gw == nil {
		return h.renderPaymentResult(c, "خطا", "درگاه پرداخت تنظیم نشده", report.IDOrder, price)
	}

	result, err := gw.VerifyPayment(c.Request().Context(), authority, price)
	if err != nil {
		h.logger.Error("zarinpal verify error", zap.Error(err))
		return h.renderPaymentResult(c, "خطا", "خطا در تأیید پرداخت", report.IDOrder, price)
	}
	if !result.Verified {
		msg := result.Message
		if msg == "" {
			msg = "تأیید پرداخت ناموفق"
		}
		return h.renderPaymentResult(c, "پرداخت ناموفق", msg, report.IDOrder, price)
	}

	h.processConfirmedPayment(report, "zarinpal", result.RefID)
	h.applyCashback(report, "cashback_zarinpal")
	h.reportPayment(report, "درگاه زرین پال", result.RefID)

	return h.renderPaymentResult(c, "پرداخت موفق", "از انجام تراکنش متشکریم!", report.IDOrder, price)
}

// AqayePardakhtCallback handles the POST back from AqayePardakht.
func (h *PaymentCallbackHandler) AqayePardakhtCallback(c echo.Context) error {
	invoiceID := c.FormValue("invoice_id")
	transID := c.FormValue("transid")

	if invoiceID == "" {
		return h.renderPaymentResult(c, "خطا", "پارامترهای نامعتبر", "", 0)
	}

	report, err := h.repos.Payment.FindByOrderID(invoiceID)
	if err != nil {
		return h.renderPaymentResult(c, "خطا", "تراکنش یافت نشد", invoiceID, 0)
	}

	price := utils.ParseInt(report.Price, 0)

	if report.PaymentStatus == "paid" {
		return h.renderPaymentResult(c, "پرداخت موفق", "این تراکنش قبلاً پرداخت شده است", invoiceID, price)
	}

	gw := h.gateways.Get("aqayepardakht")
	if gw == nil {
		return h.renderPaymentResult(c, "خطا", "درگاه پرداخت تنظیم نشده", invoiceID, price)
	}

	result, err := gw.VerifyPayment(c.Request().Context(), transID, price)
	if err != nil {
		h.logger.Error("aqayepardakht verify error", zap.Error(err))
		return h.renderPaymentResult(c, "خطا", "خطا در تأیید پرداخت", invoiceID, price)
	}
	if !result.Verified {
		return h.renderPaymentResult(c, "پرداخت انجام نشد", "تأیید پرداخت ناموفق", invoiceID, price)
	}

	h.processConfirmedPayment(report, "aqayepardakht", transID)
	h.applyCashback(report, "cashback_aqayepardakht")
	h.reportPayment(report, "درگاه آقای پرداخت", transID)

	return h.renderPaymentResult(c, "پرداخت موفق", "از انجام تراکنش متشکریم!", invoiceID, price)
}

// NOWPaymentsCallback handles the server-side IPN from NOWPayments.
func (h *PaymentCallbackHandler) NOWPaymentsCallback(c echo.Context) error {
	var data map[string]interface{}
	if err := c.Bind(&data); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request"})
	}

	paymentStatus, _ := data["payment_status"].(string)
	if paymentStatus != "finished" && paymentStatus != "confirmed" {
		return c.JSON(http.StatusOK, map[string]string{"status": "ignored"})
	}

	orderID, _ := data["order_id"].(string)
	report, err := h.repos.Payment.FindByOrderID(orderID)
	if err != nil {
		h.logger.Warn("nowpayments callback for unknown order", zap.String("order_id", orderID))
		return c.JSON(http.StatusOK, map[string]string{"status": "not_found"})
	}
	if report.PaymentStatus == "paid" {
		return c.JSON(http.StatusOK, map[string]string{"status": "already_paid"})
	}

	refID := fmt.Sprintf("%v", data["payment_id"])
	h.processConfirmedPayment(report, "nowpayments", refID)
	h.applyCashback(report, "cashback_nowpayment")
	h.reportPayment(report, "کریپتو (NOWPayments)", refID)

	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

// SubscriptionHandler redirects a service UUID to the panel subscription
// link, keeping the panel address hidden from the end user.
func (h *PaymentCallbackHandler) SubscriptionHandler(c echo.Context) error {
	id := c.Param("uuid")
	if id == "" {
		return c.String(http.StatusNotFound, "Not found")
	}

	var invoice models.Invoice
	if err := h.repos.Setting.DB().Where("uuid = ?", id).First(&invoice).Error; err != nil {
		return c.String(http.StatusNotFound, "Service not found")
	}

	panelModel, err := h.repos.Panel.FindByName(invoice.ServiceLocation)
	if err != nil {
		return c.String(http.StatusNotFound, "Panel not found")
	}

	client, err := panel.NewClient(panelModel)
	if err != nil {
		return c.String(http.StatusInternalServerError, "Panel error")
	}

	ctx := c.Request().Context()
	subLink, err := client.GetSubscriptionLink(ctx, invoice.Username)
	if err != nil || subLink == "" {
		return c.String(http.StatusNotFound, "Subscription not found")
	}

	return c.Redirect(http.StatusFound, subLink)
}

// processConfirmedPayment marks the payment paid and fulfills whatever the
// payment was for: a new service, an extension, or a wallet top-up.
func (h *PaymentCallbackHandler) processConfirmedPayment(report *models.PaymentReport, method, refID string) {
	amount := utils.ParseInt(report.Price, 0)
	userID := report.IDUser

	if err := h.repos.Payment.MarkPaid(report.IDOrder, refID); err != nil {
		h.logger.Error("mark paid failed", zap.String("order_id", report.IDOrder), zap.Error(err))
		return
	}

	sess := h.store.Session("callback:" + method)

	// id_invoice carries "purpose|data" set when the payment was created.
	purpose, extra := report.IDInvoice, ""
	if i := strings.Index(report.IDInvoice, "|"); i >= 0 {
		purpose, extra = report.IDInvoice[:i], report.IDInvoice[i+1:]
	}

	switch purpose {
	case "getconfigafterpay":
		h.createServiceAfterPayment(sess, userID, extra, amount)
	case "getextenduser":
		h.extendServiceAfterPayment(sess, userID, extra, amount)
	default:
		user, _ := h.repos.User.FindByID(userID)
		if user == nil {
			return
		}
		newBalance := user.Balance + amount
		if err := h.repos.User.UpdateField(sess, userID, "Balance", newBalance); err != nil {
			h.logger.Error("wallet credit failed", zap.String("user", userID), zap.Error(err))
			return
		}
		text := fmt.Sprintf("✅ مبلغ %s تومان با موفقیت به کیف پول شما اضافه شد.\n💰 موجودی: %s تومان",
			utils.FormatNumber(int64(amount)), utils.FormatNumber(int64(newBalance)))
		h.botAPI.SendMessage(userID, text, nil)
	}

	if report.MessageID > 0 {
		h.botAPI.DeleteMessage(userID, report.MessageID)
	}
}

func (h *PaymentCallbackHandler) createServiceAfterPayment(sess *datastore.Session, userID, username string, price int) {
	user, _ := h.repos.User.FindByID(userID)
	if user == nil {
		return
	}

	// Processing_value holds "productCode|panelCode" while the order flow
	// is pending.
	parts := strings.SplitN(user.ProcessingValue, "|", 2)
	if len(parts) < 2 {
		h.logger.Warn("missing order context for paid service", zap.String("user", userID))
		h.refundAndReport(sess, userID, price, "سفارش در حال پردازش یافت نشد")
		return
	}

	product, _ := h.repos.Product.FindByCode(parts[0])
	panelModel, _ := h.repos.Panel.FindByCode(parts[1])
	if product == nil || panelModel == nil {
		h.refundAndReport(sess, userID, price, "محصول یا پنل سفارش حذف شده است")
		return
	}

	client, err := panel.NewClient(panelModel)
	if err != nil {
		h.logger.Error("panel client error", zap.Error(err))
		h.refundAndReport(sess, userID, price, "اتصال به پنل برقرار نشد")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	volumeGB := utils.ParseInt(product.VolumeConstraint, 0)
	timeDays := utils.ParseInt(product.ServiceTime, 0)

	acc, err := client.CreateAccount(ctx, panel.CreateAccountRequest{
		Username:   username,
		DataLimit:  utils.GBToBytes(float64(volumeGB)),
		ExpireDays: timeDays,
	})
	if err != nil {
		h.logger.Error("panel create account failed", zap.Error(err))
		h.refundAndReport(sess, userID, price, "ساخت اکانت روی پنل ناموفق بود")
		return
	}

	invoice := &models.Invoice{
		IDInvoice:       fmt.Sprintf("INV-%d-%s", time.Now().Unix(), username),
		IDUser:          userID,
		Username:        username,
		ServiceLocation: panelModel.NamePanel,
		TimeSell:        fmt.Sprintf("%d", time.Now().Unix()),
		NameProduct:     product.NameProduct,
		PriceProduct:    fmt.Sprintf("%d", price),
		Volume:          product.VolumeConstraint,
		ServiceTime:     product.ServiceTime,
		UUID:            utils.GenerateUUID(),
		Status:          "active",
	}
	if err := h.repos.Invoice.Create(invoice); err != nil {
		h.logger.Error("invoice create failed", zap.Error(err))
	}

	afterPayText, _ := h.repos.Setting.GetText("textafterpay")
	if afterPayText == "" {
		afterPayText = "✅ سرویس شما با موفقیت ایجاد شد!"
	}
	replacer := strings.NewReplacer(
		"{username}", username,
		"{sublink}", acc.SubLink,
		"{product}", product.NameProduct,
		"{volume}", product.VolumeConstraint,
		"{time}", product.ServiceTime,
		"{price}", utils.FormatNumber(int64(price)),
	)
	h.botAPI.SendMessage(userID, replacer.Replace(afterPayText), nil)

	h.reportToChannel(fmt.Sprintf(
		"🛒 خرید جدید\n👤 کاربر: %s (@%s)\n📦 محصول: %s\n💰 مبلغ: %s تومان\n📍 لوکیشن: %s\n👤 یوزرنیم: %s",
		userID, user.Username, product.NameProduct, utils.FormatNumber(int64(price)), panelModel.NamePanel, username,
	))

	_ = h.repos.User.UpdateField(sess, userID, "step", "none")
}

func (h *PaymentCallbackHandler) extendServiceAfterPayment(sess *datastore.Session, userID, invoiceID string, price int) {
	user, _ := h.repos.User.FindByID(userID)
	invoice, _ := h.repos.Invoice.FindByID(invoiceID)
	if user == nil || invoice == nil {
		return
	}

	product := h.productForInvoice(invoice)
	panelModel, _ := h.repos.Panel.FindByName(invoice.ServiceLocation)
	if product == nil || panelModel == nil {
		h.refundAndReport(sess, userID, price, "محصول یا پنل سرویس حذف شده است")
		return
	}

	client, err := panel.NewClient(panelModel)
	if err != nil {
		h.refundAndReport(sess, userID, price, "اتصال به پنل برقرار نشد")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	acc, err := client.GetAccount(ctx, invoice.Username)
	if err != nil {
		h.logger.Error("panel get account failed", zap.Error(err))
		h.refundAndReport(sess, userID, price, "اکانت روی پنل یافت نشد")
		return
	}

	volumeGB := utils.ParseInt(product.VolumeConstraint, 0)
	timeDays := utils.ParseInt(product.ServiceTime, 0)

	// Extension stacks on whatever time and volume remain.
	baseExpire := acc.ExpireTime
	if baseExpire < time.Now().Unix() {
		baseExpire = time.Now().Unix()
	}

	_, err = client.ModifyAccount(ctx, invoice.Username, panel.ModifyAccountRequest{
		Status:     "active",
		DataLimit:  acc.DataLimit + utils.GBToBytes(float64(volumeGB)),
		ExpireTime: baseExpire + int64(timeDays)*86400,
	})
	if err != nil {
		h.logger.Error("panel extend failed", zap.Error(err))
		h.refundAndReport(sess, userID, price, "اعمال تمدید روی پنل ناموفق بود")
		return
	}

	_ = h.repos.Invoice.Update(invoice.IDInvoice, map[string]interface{}{
		"Status":        "active",
		"name_product":  product.NameProduct,
		"price_product": fmt.Sprintf("%d", price),
		"Volume":        product.VolumeConstraint,
		"Service_time":  product.ServiceTime,
		"notifctions":   "",
	})

	h.botAPI.SendMessage(userID, fmt.Sprintf("✅ سرویس %s با موفقیت تمدید شد!", invoice.Username), nil)

	h.reportToChannel(fmt.Sprintf(
		"🔁 تمدید سرویس\n👤 کاربر: %s\n📦 محصول: %s\n💰 مبلغ: %s تومان\n👤 یوزرنیم: %s",
		userID, product.NameProduct, utils.FormatNumber(int64(price)), invoice.Username,
	))

	_ = h.repos.User.UpdateField(sess, userID, "step", "none")
}

// refundAndReport returns a confirmed payment to the buyer's wallet when
// provisioning fails, tells the user, and flags the failure on the report
// channel so an admin can follow up.
func (h *PaymentCallbackHandler) refundAndReport(sess *datastore.Session, userID string, amount int, reason string) {
	if err := h.repos.User.UpdateBalance(sess, userID, amount); err != nil {
		h.logger.Error("refund failed", zap.String("user", userID), zap.Int("amount", amount), zap.Error(err))
		h.reportToChannel(fmt.Sprintf(
			"🚨 بازگشت وجه ناموفق\n👤 کاربر: %s\n💰 مبلغ: %s تومان\n📝 علت: %s",
			userID, utils.FormatNumber(int64(amount)), reason,
		))
		return
	}
	h.botAPI.SendMessage(userID, fmt.Sprintf(
		"❌ فعال‌سازی سرویس انجام نشد. مبلغ %s تومان به کیف پول شما بازگشت.",
		utils.FormatNumber(int64(amount))), nil)
	h.reportToChannel(fmt.Sprintf(
		"⚠️ خطا در فعال‌سازی پس از پرداخت\n👤 کاربر: %s\n💰 مبلغ بازگشتی: %s تومان\n📝 علت: %s",
		userID, utils.FormatNumber(int64(amount)), reason,
	))
}

// productForInvoice resolves the product an invoice was sold under by name.
func (h *PaymentCallbackHandler) productForInvoice(invoice *models.Invoice) *models.Product {
	products, _, err := h.repos.Product.FindAll(1, 1, invoice.NameProduct)
	if err != nil || len(products) == 0 {
		return nil
	}
	return &products[0]
}

// applyCashback credits a percentage of the payment back to the user when
// the gateway has a cashback percentage configured.
func (h *PaymentCallbackHandler) applyCashback(report *models.PaymentReport, settingKey string) {
	sess := h.store.Session("cashback")

	pctStr, _ := h.repos.Setting.GetPaySetting(sess, settingKey)
	pct := utils.ParseInt(pctStr, 0)
	if pct <= 0 {
		return
	}

	amount := (utils.ParseInt(report.Price, 0) * pct) / 100
	user, _ := h.repos.User.FindByID(report.IDUser)
	if user == nil || amount <= 0 {
		return
	}

	if err := h.repos.User.UpdateField(sess, report.IDUser, "Balance", user.Balance+amount); err != nil {
		h.logger.Error("cashback credit failed", zap.Error(err))
		return
	}

	text := fmt.Sprintf("🎁 کاربر عزیز مبلغ %s تومان به عنوان هدیه به حساب شما واریز گردید.", utils.FormatNumber(int64(amount)))
	h.botAPI.SendMessage(report.IDUser, text, nil)
}

func (h *PaymentCallbackHandler) reportPayment(report *models.PaymentReport, methodLabel, refID string) {
	username := ""
	if user, _ := h.repos.User.FindByID(report.IDUser); user != nil {
		username = user.Username
	}
	h.reportToChannel(fmt.Sprintf(
		"💵 پرداخت جدید\n\nآیدی عددی کاربر: %s\nنام کاربری: @%s\nمبلغ: %s تومان\nشماره تراکنش: %s\nروش پرداخت: %s",
		report.IDUser, username, utils.FormatNumber(int64(utils.ParseInt(report.Price, 0))), refID, methodLabel,
	))
}

func (h *PaymentCallbackHandler) reportToChannel(text string) {
	setting, _ := h.repos.Setting.GetSettings()
	if setting == nil || setting.ChannelReport == "" {
		return
	}
	h.botAPI.SendMessage(setting.ChannelReport, text, nil)
}

var paymentResultTmpl = template.Must(template.New("payment").Parse(`<!DOCTYPE html>
<html dir="rtl">
<head>
    <meta charset="UTF-8">
    <title>فاکتور پرداخت</title>
    <style>
        body { font-family: Tahoma, sans-serif; background: #f2f2f2; margin: 0; padding: 20px; display: flex; justify-content: center; align-items: center; min-height: 100vh; }
        .box { background: #fff; border-radius: 8px; box-shadow: 0 2px 10px rgba(0,0,0,0.1); padding: 40px; text-align: center; max-width: 400px; width: 100%; }
        h1 { color: #333; margin-bottom: 20px; }
        p { color: #666; margin-bottom: 10px; }
    </style>
</head>
<body>
    <div class="box">
        <h1>{{.Title}}</h1>
        {{if .OrderID}}<p>شماره تراکنش: <span>{{.OrderID}}</span></p>{{end}}
        {{if .Amount}}<p>مبلغ: <span>{{.AmountStr}}</span> تومان</p>{{end}}
        <p>{{.Message}}</p>
    </div>
</body>
</html>`))

func (h *PaymentCallbackHandler) renderPaymentResult(c echo.Context, title, message, orderID string, amount int) error {
	data := map[string]interface{}{
		"Title":     title,
		"Message":   message,
		"OrderID":   orderID,
		"Amount":    amount > 0,
		"AmountStr": utils.FormatNumber(int64(amount)),
	}

	c.Response().Header().Set("Content-Type", "text/html; charset=utf-8")
	c.Response().WriteHeader(http.StatusOK)
	return paymentResultTmpl.Execute(c.Response().Writer, data)
}
