package bot

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
	tele "gopkg.in/telebot.v3"

	"sellerbot/internal/config"
	"sellerbot/internal/datastore"
	"sellerbot/internal/models"
	"sellerbot/internal/panel"
	"sellerbot/internal/payment"
	"sellerbot/internal/pkg/telegram"
	"sellerbot/internal/pkg/utils"
	"sellerbot/internal/repository"
)

// Default main-menu button labels, overridable through the textbot table.
const (
	btnBuyService = "🛒 خرید سرویس"
	btnMyServices = "📋 سرویس‌های من"
	btnWallet     = "💰 کیف پول"
	btnSupport    = "📩 پشتیبانی"
	btnAccount    = "👤 حساب کاربری"
	btnReferral   = "📢 معرفی به دوستان"
	btnAdminPanel = "🔧 پنل مدیریت"
)

// Bot wraps the telebot instance and handlers.
type Bot struct {
	tb         *tele.Bot
	webhook    *tele.Webhook
	useWebhook bool
	cfg        *config.Config
	repos      *BotRepos
	store      *datastore.Store
	gateways   *payment.Registry
	keyboard   *KeyboardBuilder
	botAPI     *telegram.BotAPI
	logger     *zap.Logger
}

// BotRepos bundles all repositories needed by bot handlers.
type BotRepos struct {
	User    *repository.UserRepository
	Product *repository.ProductRepository
	Invoice *repository.InvoiceRepository
	Payment *repository.PaymentRepository
	Panel   *repository.PanelRepository
	Setting *repository.SettingRepository
}

// New creates and configures a new Bot instance.
func New(
	cfg *config.Config,
	repos *BotRepos,
	store *datastore.Store,
	gateways *payment.Registry,
	botAPI *telegram.BotAPI,
	logger *zap.Logger,
) (*Bot, error) {
	mode := strings.ToLower(strings.TrimSpace(cfg.Bot.UpdateMode))
	if mode == "" {
		mode = "auto"
	}

	useWebhook := true
	switch mode {
	case "polling":
		useWebhook = false
	case "webhook":
		useWebhook = true
	default: // auto
		useWebhook = strings.TrimSpace(cfg.Bot.WebhookURL) != ""
	}

	var poller tele.Poller
	var webhook *tele.Webhook
	if useWebhook {
		if strings.TrimSpace(cfg.Bot.WebhookURL) == "" {
			return nil, fmt.Errorf("BOT_WEBHOOK_URL is required when BOT_UPDATE_MODE=webhook")
		}
		// Listen stays empty: the webhook mounts on the Echo server.
		webhook = &tele.Webhook{
			Endpoint: &tele.WebhookEndpoint{PublicURL: cfg.Bot.WebhookURL},
		}
		poller = webhook
	} else {
		poller = &tele.LongPoller{Timeout: 10 * time.Second}
	}

	pref := tele.Settings{
		Token:  cfg.Bot.Token,
		Poller: poller,
		OnError: func(err error, c tele.Context) {
			logger.Error("telebot error", zap.Error(err))
		},
	}

	tb, err := tele.NewBot(pref)
	if err != nil {
		return nil, fmt.Errorf("failed to create telebot: %w", err)
	}

	b := &Bot{
		tb:         tb,
		webhook:    webhook,
		useWebhook: useWebhook,
		cfg:        cfg,
		repos:      repos,
		store:      store,
		gateways:   gateways,
		keyboard:   NewKeyboardBuilder(repos),
		botAPI:     botAPI,
		logger:     logger,
	}

	b.registerHandlers()
	return b, nil
}

// WebhookHandler returns the webhook handler for mounting on Echo, or nil
// in long-polling mode.
func (b *Bot) WebhookHandler() http.Handler {
	return b.webhook
}

// Start begins polling/webhook processing.
func (b *Bot) Start() {
	if b.useWebhook {
		b.logger.Info("starting bot", zap.String("mode", "webhook"), zap.String("webhook_url", b.cfg.Bot.WebhookURL))
	} else {
		if err := b.tb.RemoveWebhook(true); err != nil {
			b.logger.Warn("failed to remove webhook before long polling", zap.Error(err))
		}
		b.logger.Info("starting bot", zap.String("mode", "polling"))
	}
	b.tb.Start()
}

// Stop gracefully shuts down the bot.
func (b *Bot) Stop() {
	b.tb.Stop()
}

func (b *Bot) registerHandlers() {
	b.tb.Handle("/start", b.handleStart)
	b.tb.Handle(tele.OnText, b.handleText)
	b.tb.Handle(tele.OnContact, b.handleContact)
	b.tb.Handle(tele.OnCallback, b.handleCallback)
	b.tb.Handle(tele.OnPhoto, b.handlePhoto)
}

// sessionFor returns a request-scoped accessor session tagged with the chat
// so audit lines carry the acting user.
func (b *Bot) sessionFor(chatID string) *datastore.Session {
	return b.store.Session(chatID)
}

// ── /start ───────────────────────────────────────────────────────────

func (b *Bot) handleStart(c tele.Context) error {
	chatID := fmt.Sprintf("%d", c.Chat().ID)
	sess := b.sessionFor(chatID)

	user, err := b.repos.User.FindByID(chatID)
	if err != nil {
		user = &models.User{
			ID:         chatID,
			Username:   c.Chat().Username,
			Step:       "none",
			UserStatus: "active",
			Register:   utils.NowUnix(),
			Agent:      "0",
		}

		if payload := c.Message().Payload; strings.HasPrefix(payload, "ref_") {
			referrer := strings.TrimPrefix(payload, "ref_")
			if referrer != chatID {
				user.Affiliates = referrer
				b.creditReferrer(sess, referrer)
			}
		}

		if err := b.repos.User.Create(user); err != nil {
			b.logger.Error("failed to create user", zap.String("chat_id", chatID), zap.Error(err))
		}
	}

	if isBlocked(user) {
		return c.Send("⛔ حساب شما مسدود شده است.")
	}

	_ = b.repos.User.UpdateField(sess, chatID, "step", "none")

	setting, _ := b.repos.Setting.GetSettings()
	if setting != nil && setting.VerifyStart == "onverify" && user.Number == "" {
		_ = b.repos.User.UpdateField(sess, chatID, "step", "get_number")
		menu := &tele.ReplyMarkup{ResizeKeyboard: true}
		menu.Reply(menu.Row(menu.Contact("📱 ارسال شماره تماس")))
		return c.Send("لطفاً شماره تماس خود را ارسال کنید:", menu)
	}

	return b.sendMainMenu(c, user, setting)
}

// creditReferrer bumps the referrer's invite counter. The counter column is
// created on first use.
func (b *Bot) creditReferrer(sess *datastore.Session, referrer string) {
	row, err := sess.Row("user", "id", "id", referrer)
	if err != nil || row == nil {
		return
	}
	count := 0
	if b.store.Registry().HasField("user", "affiliatescount") {
		if counterRow, err := sess.Row("user", "affiliatescount", "id", referrer); err == nil && counterRow != nil {
			count = utils.ParseInt(fmt.Sprintf("%v", counterRow["affiliatescount"]), 0)
		}
	}
	if err := sess.Update("user", "affiliatescount", count+1, "id", referrer); err != nil {
		b.logger.Warn("referral credit failed", zap.String("referrer", referrer), zap.Error(err))
	}
}

// ── Contact (phone verification) ─────────────────────────────────────

func (b *Bot) handleContact(c tele.Context) error {
	chatID := fmt.Sprintf("%d", c.Chat().ID)
	sess := b.sessionFor(chatID)

	user, err := b.repos.User.FindByID(chatID)
	if err != nil || user.Step != "get_number" {
		return nil
	}

	contact := c.Message().Contact
	if contact == nil || contact.UserID != c.Sender().ID {
		return c.Send("لطفاً شماره تماس خودتان را ارسال کنید.")
	}

	number := utils.ConvertPersianToEnglish(contact.PhoneNumber)
	_ = b.repos.User.UpdateField(sess, chatID, "number", number)
	_ = b.repos.User.UpdateField(sess, chatID, "verify", "verified")
	_ = b.repos.User.UpdateField(sess, chatID, "step", "none")

	setting, _ := b.repos.Setting.GetSettings()
	return b.sendMainMenu(c, user, setting)
}

// ── Text routing ─────────────────────────────────────────────────────

func (b *Bot) handleText(c tele.Context) error {
	chatID := fmt.Sprintf("%d", c.Chat().ID)
	sess := b.sessionFor(chatID)

	user, err := b.repos.User.FindByID(chatID)
	if err != nil {
		return c.Send("لطفاً از /start استفاده کنید.")
	}
	if isBlocked(user) {
		return c.Send("⛔ حساب شما مسدود شده است.")
	}
	if !b.checkRateLimit(sess, user) {
		return nil
	}
	if ok, err := b.checkJoinChannels(c, chatID); err == nil && !ok {
		return nil
	}

	text := strings.TrimSpace(c.Message().Text)

	switch user.Step {
	case "none", "":
		return b.handleMainMenu(c, sess, user, text)
	case "charge_wallet_amount":
		return b.handleChargeAmount(c, sess, user, text)
	case "support_message":
		return b.handleSupportMessage(c, sess, user, text)
	case "admin_broadcast":
		return b.handleBroadcast(c, sess, user, text)
	case "get_number":
		return c.Send("لطفاً از دکمه ارسال شماره تماس استفاده کنید.")
	default:
		_ = b.repos.User.UpdateField(sess, chatID, "step", "none")
		return b.handleMainMenu(c, sess, user, text)
	}
}

func (b *Bot) handleMainMenu(c tele.Context, sess *datastore.Session, user *models.User, text string) error {
	setting, _ := b.repos.Setting.GetSettings()

	switch text {
	case btnBuyService, b.keyboard.getText("text_sell", btnBuyService):
		return c.Send("📍 لطفاً لوکیشن سرویس را انتخاب کنید:", b.keyboard.LocationKeyboard(user))

	case btnMyServices, b.keyboard.getText("text_Purchased_services", btnMyServices):
		return b.showServices(c, user)

	case btnWallet, b.keyboard.getText("accountwallet", btnWallet):
		return b.showWallet(c, user)

	case btnSupport, b.keyboard.getText("text_support", btnSupport):
		_ = b.repos.User.UpdateField(sess, user.ID, "step", "support_message")
		return c.Send("📩 پیام خود را بنویسید تا به پشتیبانی ارسال شود:")

	case btnAccount, b.keyboard.getText("text_Account", btnAccount):
		return b.showAccount(c, user)

	case btnReferral, b.keyboard.getText("text_affiliates", btnReferral):
		return b.showReferral(c, sess, user)

	case btnAdminPanel:
		if b.isAdmin(user.ID) {
			return b.showAdminPanel(c)
		}
		return b.sendMainMenu(c, user, setting)

	default:
		return b.sendMainMenu(c, user, setting)
	}
}

func (b *Bot) sendMainMenu(c tele.Context, user *models.User, setting *models.Setting) error {
	if setting == nil {
		setting = &models.Setting{}
	}
	welcome := b.keyboard.getText("text_start", "سلام 👋\nبه ربات فروش خوش آمدید.")
	return c.Send(welcome, b.keyboard.MainMenuKeyboard(user, setting))
}

// ── Wallet ───────────────────────────────────────────────────────────

func (b *Bot) showWallet(c tele.Context, user *models.User) error {
	menu := &tele.ReplyMarkup{}
	menu.Inline(
		menu.Row(menu.Data("💳 شارژ کیف پول", "charge_wallet")),
		menu.Row(menu.Data("🔙 منوی اصلی", "main_menu")),
	)
	text := fmt.Sprintf("💰 موجودی کیف پول شما: %s تومان", utils.FormatNumber(int64(user.Balance)))
	return c.Send(text, menu)
}

func (b *Bot) handleChargeAmount(c tele.Context, sess *datastore.Session, user *models.User, text string) error {
	amount := utils.ParseInt(text, 0)

	minAmount := b.paySettingInt(sess, "minamount", 1000)
	maxAmount := b.paySettingInt(sess, "maxamount", 10000000)
	if amount < minAmount || amount > maxAmount {
		return c.Send(fmt.Sprintf("❌ مبلغ باید بین %s و %s تومان باشد.",
			utils.FormatNumber(int64(minAmount)), utils.FormatNumber(int64(maxAmount))))
	}

	_ = b.repos.User.UpdateField(sess, user.ID, "Processing_value", fmt.Sprintf("charge|%d", amount))
	_ = b.repos.User.UpdateField(sess, user.ID, "step", "none")

	return c.Send(
		fmt.Sprintf("💳 روش پرداخت %s تومان را انتخاب کنید:", utils.FormatNumber(int64(amount))),
		b.keyboard.PaymentMethodKeyboard(user),
	)
}

// ── Services ─────────────────────────────────────────────────────────

func (b *Bot) showServices(c tele.Context, user *models.User) error {
	invoices, err := b.repos.Invoice.FindByUserID(user.ID)
	if err != nil || len(invoices) == 0 {
		return c.Send("📭 شما هنوز سرویسی ندارید.")
	}
	return c.Send("📋 سرویس‌های شما:", b.keyboard.ServiceListKeyboard(invoices))
}

func (b *Bot) showServiceDetail(c tele.Context, invoiceID string) error {
	invoice, err := b.repos.Invoice.FindByID(invoiceID)
	if err != nil {
		return c.Send("❌ سرویس یافت نشد.")
	}

	text := fmt.Sprintf("📋 سرویس: %s\n👤 یوزرنیم: %s\n📦 محصول: %s\n📊 حجم: %s گیگ\n⏰ مدت: %s روز\n🔖 وضعیت: %s",
		invoice.IDInvoice, invoice.Username, invoice.NameProduct, invoice.Volume, invoice.ServiceTime, invoice.Status)

	if acc := b.panelAccount(invoice); acc != nil {
		text += fmt.Sprintf("\n\n📈 مصرف: %s از %s\n⏳ انقضا: %s",
			utils.FormatBytes(acc.UsedTraffic), utils.FormatBytes(acc.DataLimit),
			formatExpire(acc.ExpireTime))
	}

	return c.Send(text, b.keyboard.ServiceDetailKeyboard(invoice))
}

func (b *Bot) panelAccount(invoice *models.Invoice) *panel.Account {
	panelModel, err := b.repos.Panel.FindByName(invoice.ServiceLocation)
	if err != nil {
		return nil
	}
	client, err := panel.NewClient(panelModel)
	if err != nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	acc, err := client.GetAccount(ctx, invoice.Username)
	if err != nil {
		return nil
	}
	return acc
}

// ── Account / referral ───────────────────────────────────────────────

func (b *Bot) showAccount(c tele.Context, user *models.User) error {
	activeCount, _ := b.repos.Invoice.CountActiveByUserID(user.ID)
	paymentSum, _ := b.repos.Payment.SumPaidByUserID(user.ID)

	text := fmt.Sprintf(
		"👤 حساب کاربری\n\n🆔 آیدی: %s\n💰 موجودی: %s تومان\n📋 سرویس‌های فعال: %d\n💵 مجموع پرداخت: %s تومان\n📅 تاریخ عضویت: %s",
		user.ID,
		utils.FormatNumber(int64(user.Balance)),
		activeCount,
		utils.FormatNumber(paymentSum),
		formatExpire(utils.ParseInt64(user.Register, 0)),
	)
	return c.Send(text)
}

func (b *Bot) showReferral(c tele.Context, sess *datastore.Session, user *models.User) error {
	count := 0
	if row, err := sess.Row("user", "affiliatescount", "id", user.ID); err == nil && row != nil {
		count = utils.ParseInt(fmt.Sprintf("%v", row["affiliatescount"]), 0)
	}

	link := fmt.Sprintf("https://t.me/%s?start=ref_%s", b.tb.Me.Username, user.ID)
	text := fmt.Sprintf("📢 لینک دعوت شما:\n%s\n\n👥 تعداد دعوت شده: %d", link, count)
	return c.Send(text)
}

// ── Support ──────────────────────────────────────────────────────────

func (b *Bot) handleSupportMessage(c tele.Context, sess *datastore.Session, user *models.User, text string) error {
	_ = b.repos.User.UpdateField(sess, user.ID, "step", "none")

	admins, err := b.repos.Setting.AdminIDs(sess)
	if err != nil || len(admins) == 0 {
		return c.Send("❌ پشتیبانی در دسترس نیست.")
	}

	msg := fmt.Sprintf("📩 پیام پشتیبانی\n👤 از: %s (@%s)\n\n%s", user.ID, user.Username, text)
	for _, admin := range admins {
		b.botAPI.SendMessage(admin, msg, nil)
	}

	return c.Send("✅ پیام شما به پشتیبانی ارسال شد.")
}

// ── Callback routing ─────────────────────────────────────────────────

func (b *Bot) handleCallback(c tele.Context) error {
	chatID := fmt.Sprintf("%d", c.Chat().ID)
	sess := b.sessionFor(chatID)

	user, err := b.repos.User.FindByID(chatID)
	if err != nil {
		return c.Respond(&tele.CallbackResponse{Text: "لطفاً از /start استفاده کنید."})
	}
	if isBlocked(user) {
		return c.Respond(&tele.CallbackResponse{Text: "⛔ حساب شما مسدود شده است."})
	}

	data := strings.TrimSpace(c.Callback().Data)
	defer func() { _ = c.Respond() }()

	switch {
	case data == "main_menu":
		setting, _ := b.repos.Setting.GetSettings()
		return b.sendMainMenu(c, user, setting)

	case data == "buy_service":
		return c.Edit("📍 لطفاً لوکیشن سرویس را انتخاب کنید:", b.keyboard.LocationKeyboard(user))

	case data == "my_services":
		return b.showServices(c, user)

	case data == "charge_wallet":
		_ = b.repos.User.UpdateField(sess, chatID, "step", "charge_wallet_amount")
		return c.Send("💳 مبلغ شارژ را به تومان وارد کنید:")

	case strings.HasPrefix(data, "loc_"):
		code := strings.TrimPrefix(data, "loc_")
		return c.Edit("📦 محصول مورد نظر را انتخاب کنید:", b.keyboard.ProductKeyboard(code, user))

	case strings.HasPrefix(data, "prod_"):
		return b.handleProductSelect(c, sess, user, strings.TrimPrefix(data, "prod_"))

	case data == "confirm_buy":
		return b.handleConfirmBuy(c, sess, user)

	case strings.HasPrefix(data, "pay_"):
		return b.handlePaymentMethod(c, sess, user, strings.TrimPrefix(data, "pay_"))

	case strings.HasPrefix(data, "srv_"):
		return b.showServiceDetail(c, strings.TrimPrefix(data, "srv_"))

	case strings.HasPrefix(data, "updateinfo_"):
		return b.showServiceDetail(c, strings.TrimPrefix(data, "updateinfo_"))

	case strings.HasPrefix(data, "togglesvc_"):
		return b.handleToggleService(c, strings.TrimPrefix(data, "togglesvc_"))

	case strings.HasPrefix(data, "resettraffic_"):
		return b.handleResetTraffic(c, strings.TrimPrefix(data, "resettraffic_"))

	case strings.HasPrefix(data, "suburl_"):
		return b.handleSubURL(c, strings.TrimPrefix(data, "suburl_"))

	case strings.HasPrefix(data, "extend_"):
		return b.handleExtendStart(c, sess, user, strings.TrimPrefix(data, "extend_"))

	case strings.HasPrefix(data, "confirmpay_"):
		return b.handleAdminConfirmPay(c, sess, user, strings.TrimPrefix(data, "confirmpay_"))

	case strings.HasPrefix(data, "rejectpay_"):
		return b.handleAdminRejectPay(c, sess, user, strings.TrimPrefix(data, "rejectpay_"))

	case isAdminCallback(data):
		return b.handleAdminCallback(c, sess, user, data)
	}

	return nil
}

// handleProductSelect shows the purchase confirmation. data is
// "<panelCode>_<productCode>".
func (b *Bot) handleProductSelect(c tele.Context, sess *datastore.Session, user *models.User, data string) error {
	i := strings.Index(data, "_")
	if i < 0 {
		return c.Send("❌ انتخاب نامعتبر.")
	}
	panelCode, productCode := data[:i], data[i+1:]

	product, err := b.repos.Product.FindByCode(productCode)
	if err != nil {
		return c.Send("❌ محصول یافت نشد.")
	}

	panelModel, err := b.repos.Panel.FindByCode(panelCode)
	if err != nil {
		return c.Send("❌ لوکیشن یافت نشد.")
	}
	if !b.panelHasCapacity(panelModel) {
		return c.Send("❌ ظرفیت این لوکیشن تکمیل شده است. لطفاً لوکیشن دیگری انتخاب کنید.")
	}

	_ = b.repos.User.UpdateField(sess, user.ID, "Processing_value", productCode+"|"+panelCode)

	price := utils.ParseInt(product.PriceProduct, 0)
	text := fmt.Sprintf(
		"🛒 پیش‌فاکتور\n\n📦 محصول: %s\n📊 حجم: %s گیگ\n⏰ مدت: %s روز\n💰 قیمت: %s تومان",
		product.NameProduct, product.VolumeConstraint, product.ServiceTime, utils.FormatNumber(int64(price)),
	)
	return c.Edit(text, b.keyboard.ConfirmPurchaseKeyboard())
}

// panelHasCapacity reports whether a panel can take another service. The
// limit comes from the panel row; zero or unset means uncapped. Invoices in
// any live status count against it.
func (b *Bot) panelHasCapacity(p *models.Panel) bool {
	limit := utils.ParseInt(p.LimitPanel, 0)
	if limit <= 0 {
		return true
	}
	count, err := b.repos.Invoice.CountByLocation(p.NamePanel)
	if err != nil {
		b.logger.Warn("panel capacity check failed", zap.String("panel", p.NamePanel), zap.Error(err))
		return true
	}
	return count < int64(limit)
}

func (b *Bot) handleConfirmBuy(c tele.Context, sess *datastore.Session, user *models.User) error {
	product, _, err := b.pendingOrder(user)
	if err != nil {
		return c.Send("❌ سفارش یافت نشد. دوباره تلاش کنید.")
	}
	price := utils.ParseInt(product.PriceProduct, 0)
	return c.Edit(
		fmt.Sprintf("💳 روش پرداخت %s تومان را انتخاب کنید:", utils.FormatNumber(int64(price))),
		b.keyboard.PaymentMethodKeyboard(user),
	)
}

// pendingOrder resolves the product and panel recorded in Processing_value.
func (b *Bot) pendingOrder(user *models.User) (*models.Product, *models.Panel, error) {
	parts := strings.SplitN(user.ProcessingValue, "|", 2)
	if len(parts) < 2 {
		return nil, nil, fmt.Errorf("no pending order")
	}
	if parts[0] == "charge" {
		return nil, nil, fmt.Errorf("pending charge, not order")
	}
	product, err := b.repos.Product.FindByCode(parts[0])
	if err != nil {
		return nil, nil, err
	}
	panelModel, err := b.repos.Panel.FindByCode(parts[1])
	if err != nil {
		return nil, nil, err
	}
	return product, panelModel, nil
}

// ── Payment methods ──────────────────────────────────────────────────

func (b *Bot) handlePaymentMethod(c tele.Context, sess *datastore.Session, user *models.User, method string) error {
	// Determine amount and purpose from the pending state.
	var amount int
	var purpose string

	parts := strings.SplitN(user.ProcessingValue, "|", 2)
	if len(parts) == 2 && parts[0] == "charge" {
		amount = utils.ParseInt(parts[1], 0)
		purpose = "chargewallet"
	} else if len(parts) == 2 && parts[0] == "extend" {
		invoice, err := b.repos.Invoice.FindByID(parts[1])
		if err != nil {
			return c.Send("❌ سرویس یافت نشد.")
		}
		amount = utils.ParseInt(invoice.PriceProduct, 0)
		purpose = "getextenduser|" + invoice.IDInvoice
	} else if product, _, err := b.pendingOrder(user); err == nil {
		amount = utils.ParseInt(product.PriceProduct, 0)
		purpose = "getconfigafterpay|" + utils.GenerateUsername("u")
	} else {
		return c.Send("❌ سفارشی در انتظار پرداخت نیست.")
	}

	if amount <= 0 {
		return c.Send("❌ مبلغ نامعتبر است.")
	}

	switch method {
	case "wallet":
		return b.payFromWallet(c, sess, user, amount, purpose)
	case "card":
		return b.startCardPayment(c, sess, user, amount, purpose)
	case "zarinpal", "nowpayments", "aqayepardakht":
		return b.startGatewayPayment(c, sess, user, method, amount, purpose)
	default:
		return c.Send("❌ روش پرداخت نامعتبر.")
	}
}

func (b *Bot) payFromWallet(c tele.Context, sess *datastore.Session, user *models.User, amount int, purpose string) error {
	if purpose == "chargewallet" {
		return c.Send("❌ شارژ کیف پول از طریق کیف پول ممکن نیست.")
	}
	if user.Balance < amount {
		return c.Send(fmt.Sprintf("❌ موجودی کافی نیست. موجودی شما: %s تومان",
			utils.FormatNumber(int64(user.Balance))))
	}

	if err := b.repos.User.UpdateField(sess, user.ID, "Balance", user.Balance-amount); err != nil {
		b.logger.Error("wallet debit failed", zap.String("user", user.ID), zap.Error(err))
		return c.Send("❌ خطا در پرداخت. دوباره تلاش کنید.")
	}

	if invoiceID, ok := strings.CutPrefix(purpose, "getextenduser|"); ok {
		if err := b.extendService(sess, user, invoiceID, amount); err != nil {
			_ = b.repos.User.UpdateBalance(sess, user.ID, amount)
			return c.Send("❌ خطا در تمدید سرویس. مبلغ به کیف پول بازگشت.")
		}
		return c.Send("✅ سرویس شما با موفقیت تمدید شد.")
	}

	username := strings.TrimPrefix(purpose, "getconfigafterpay|")
	if err := b.provisionService(c, sess, user, username, amount); err != nil {
		_ = b.repos.User.UpdateBalance(sess, user.ID, amount)
		return c.Send("❌ خطا در ایجاد سرویس. مبلغ به کیف پول بازگشت.")
	}
	return nil
}

// extendService stacks the product's time and volume onto whatever remains
// of the invoice's panel account.
func (b *Bot) extendService(sess *datastore.Session, user *models.User, invoiceID string, price int) error {
	invoice, err := b.repos.Invoice.FindByID(invoiceID)
	if err != nil {
		return err
	}
	product, err := b.productForInvoice(invoice)
	if err != nil {
		return err
	}
	panelModel, err := b.repos.Panel.FindByName(invoice.ServiceLocation)
	if err != nil {
		return err
	}
	client, err := panel.NewClient(panelModel)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	acc, err := client.GetAccount(ctx, invoice.Username)
	if err != nil {
		return err
	}

	baseExpire := acc.ExpireTime
	if baseExpire < time.Now().Unix() {
		baseExpire = time.Now().Unix()
	}
	volumeGB := utils.ParseInt(product.VolumeConstraint, 0)
	timeDays := utils.ParseInt(product.ServiceTime, 0)

	if _, err := client.ModifyAccount(ctx, invoice.Username, panel.ModifyAccountRequest{
		Status:     "active",
		DataLimit:  acc.DataLimit + utils.GBToBytes(float64(volumeGB)),
		ExpireTime: baseExpire + int64(timeDays)*86400,
	}); err != nil {
		return err
	}

	_ = b.repos.Invoice.Update(invoice.IDInvoice, map[string]interface{}{
		"Status":        "active",
		"price_product": fmt.Sprintf("%d", price),
		"notifctions":   "",
	})

	_ = b.repos.User.UpdateField(sess, user.ID, "step", "none")
	_ = b.repos.User.UpdateField(sess, user.ID, "Processing_value", "")
	return nil
}

func (b *Bot) startCardPayment(c tele.Context, sess *datastore.Session, user *models.User, amount int, purpose string) error {
	cards, err := b.repos.Setting.GetAllCardNumbers()
	if err != nil || len(cards) == 0 {
		return c.Send("❌ پرداخت کارت به کارت در دسترس نیست.")
	}

	orderID := utils.GenerateOrderID()
	report := &models.PaymentReport{
		IDUser:        user.ID,
		IDOrder:       orderID,
		Time:          utils.NowUnix(),
		Price:         fmt.Sprintf("%d", amount),
		PaymentMethod: "card",
		PaymentStatus: "unpaid",
		IDInvoice:     purpose,
	}
	if err := b.repos.Payment.Create(report); err != nil {
		return c.Send("❌ خطا در ثبت سفارش.")
	}

	_ = b.repos.User.UpdateField(sess, user.ID, "step", "send_receipt_"+orderID)

	var sb strings.Builder
	fmt.Fprintf(&sb, "💳 مبلغ %s تومان را به یکی از کارت‌های زیر واریز کنید:\n\n", utils.FormatNumber(int64(amount)))
	for _, card := range cards {
		fmt.Fprintf(&sb, "💳 %s\n👤 %s\n\n", card.CardNumber, card.NameCard)
	}
	sb.WriteString("سپس تصویر رسید را ارسال کنید.")
	return c.Send(sb.String())
}

func (b *Bot) startGatewayPayment(c tele.Context, sess *datastore.Session, user *models.User, method string, amount int, purpose string) error {
	gw := b.gateways.Get(method)
	if gw == nil {
		return c.Send("❌ این درگاه پیکربندی نشده است.")
	}

	orderID := utils.GenerateOrderID()
	callbackURL := strings.TrimRight(b.cfg.Server.BaseURL, "/") + "/payment/" + method + "/callback"

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	result, err := gw.CreatePayment(ctx, amount, orderID, "شارژ/خرید سرویس", callbackURL)
	if err != nil {
		b.logger.Error("create payment failed", zap.String("gateway", method), zap.Error(err))
		return c.Send("❌ خطا در اتصال به درگاه پرداخت.")
	}

	authority := result.Authority
	if authority == "" {
		authority = result.InvoiceID
	}
	report := &models.PaymentReport{
		IDUser:          user.ID,
		IDOrder:         orderID,
		Time:            utils.NowUnix(),
		Price:           fmt.Sprintf("%d", amount),
		DecNotConfirmed: authority,
		PaymentMethod:   method,
		PaymentStatus:   "unpaid",
		IDInvoice:       purpose,
	}
	if err := b.repos.Payment.Create(report); err != nil {
		return c.Send("❌ خطا در ثبت سفارش.")
	}

	menu := &tele.ReplyMarkup{}
	menu.Inline(menu.Row(menu.URL("💳 پرداخت آنلاین", result.PaymentURL)))
	return c.Send(fmt.Sprintf("🔗 برای پرداخت %s تومان روی دکمه زیر بزنید:",
		utils.FormatNumber(int64(amount))), menu)
}

// provisionService creates the panel account and invoice for a paid order.
func (b *Bot) provisionService(c tele.Context, sess *datastore.Session, user *models.User, username string, price int) error {
	product, panelModel, err := b.pendingOrder(user)
	if err != nil {
		return err
	}

	client, err := panel.NewClient(panelModel)
	if err != nil {
		return err
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
		b.logger.Error("panel create account failed", zap.Error(err))
		return err
	}

	invoice := &models.Invoice{
		IDInvoice:       fmt.Sprintf("INV-%d-%s", time.Now().Unix(), username),
		IDUser:          user.ID,
		Username:        username,
		ServiceLocation: panelModel.NamePanel,
		TimeSell:        utils.NowUnix(),
		NameProduct:     product.NameProduct,
		PriceProduct:    fmt.Sprintf("%d", price),
		Volume:          product.VolumeConstraint,
		ServiceTime:     product.ServiceTime,
		UUID:            utils.GenerateUUID(),
		Status:          "active",
	}
	if err := b.repos.Invoice.Create(invoice); err != nil {
		b.logger.Error("invoice create failed", zap.Error(err))
	}

	_ = b.repos.User.UpdateField(sess, user.ID, "step", "none")
	_ = b.repos.User.UpdateField(sess, user.ID, "Processing_value", "")

	text := fmt.Sprintf(
		"✅ سرویس شما ایجاد شد!\n\n👤 یوزرنیم: %s\n📦 محصول: %s\n🔗 لینک اشتراک:\n%s",
		username, product.NameProduct, acc.SubLink,
	)
	return c.Send(text)
}

// ── Service actions ──────────────────────────────────────────────────

func (b *Bot) handleToggleService(c tele.Context, invoiceID string) error {
	invoice, err := b.repos.Invoice.FindByID(invoiceID)
	if err != nil {
		return c.Send("❌ سرویس یافت نشد.")
	}

	panelModel, err := b.repos.Panel.FindByName(invoice.ServiceLocation)
	if err != nil {
		return c.Send("❌ پنل یافت نشد.")
	}
	client, err := panel.NewClient(panelModel)
	if err != nil {
		return c.Send("❌ خطا در اتصال به پنل.")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	newStatus := "disabled"
	if invoice.Status == "disabled" {
		newStatus = "active"
		err = client.EnableAccount(ctx, invoice.Username)
	} else {
		err = client.DisableAccount(ctx, invoice.Username)
	}
	if err != nil {
		return c.Send("❌ خطا در تغییر وضعیت.")
	}

	_ = b.repos.Invoice.Update(invoiceID, map[string]interface{}{"Status": newStatus})
	return b.showServiceDetail(c, invoiceID)
}

func (b *Bot) handleResetTraffic(c tele.Context, invoiceID string) error {
	invoice, err := b.repos.Invoice.FindByID(invoiceID)
	if err != nil {
		return c.Send("❌ سرویس یافت نشد.")
	}
	panelModel, err := b.repos.Panel.FindByName(invoice.ServiceLocation)
	if err != nil {
		return c.Send("❌ پنل یافت نشد.")
	}
	client, err := panel.NewClient(panelModel)
	if err != nil {
		return c.Send("❌ خطا در اتصال به پنل.")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := client.ResetTraffic(ctx, invoice.Username); err != nil {
		return c.Send("❌ خطا در ریست مصرف.")
	}
	return c.Send("♻️ مصرف سرویس ریست شد.")
}

func (b *Bot) handleSubURL(c tele.Context, invoiceID string) error {
	invoice, err := b.repos.Invoice.FindByID(invoiceID)
	if err != nil {
		return c.Send("❌ سرویس یافت نشد.")
	}
	link := strings.TrimRight(b.cfg.Server.BaseURL, "/") + "/sub/" + invoice.UUID
	return c.Send("🔗 لینک اشتراک شما:\n" + link)
}

func (b *Bot) handleExtendStart(c tele.Context, sess *datastore.Session, user *models.User, invoiceID string) error {
	invoice, err := b.repos.Invoice.FindByID(invoiceID)
	if err != nil {
		return c.Send("❌ سرویس یافت نشد.")
	}

	product, err := b.productForInvoice(invoice)
	if err != nil {
		return c.Send("❌ محصول این سرویس دیگر موجود نیست.")
	}

	_ = b.repos.User.UpdateField(sess, user.ID, "Processing_value", "extend|"+invoice.IDInvoice)

	price := utils.ParseInt(product.PriceProduct, 0)
	text := fmt.Sprintf(
		"🔁 تمدید سرویس %s\n📦 محصول: %s\n💰 قیمت: %s تومان\n\n💳 روش پرداخت را انتخاب کنید:",
		invoice.Username, product.NameProduct, utils.FormatNumber(int64(price)),
	)
	return c.Edit(text, b.keyboard.PaymentMethodKeyboard(user))
}

func (b *Bot) productForInvoice(invoice *models.Invoice) (*models.Product, error) {
	products, _, err := b.repos.Product.FindAll(100, 1, invoice.NameProduct)
	if err != nil || len(products) == 0 {
		return nil, fmt.Errorf("product not found")
	}
	return &products[0], nil
}

// ── Card receipt review ──────────────────────────────────────────────

func (b *Bot) handlePhoto(c tele.Context) error {
	chatID := fmt.Sprintf("%d", c.Chat().ID)
	sess := b.sessionFor(chatID)

	user, err := b.repos.User.FindByID(chatID)
	if err != nil || !strings.HasPrefix(user.Step, "send_receipt_") {
		return nil
	}

	orderID := strings.TrimPrefix(user.Step, "send_receipt_")
	report, err := b.repos.Payment.FindByOrderID(orderID)
	if err != nil {
		return c.Send("❌ سفارش یافت نشد.")
	}

	_ = b.repos.User.UpdateField(sess, chatID, "step", "none")

	admins, err := b.repos.Setting.AdminIDs(sess)
	if err != nil || len(admins) == 0 {
		return c.Send("❌ خطا در ارسال رسید.")
	}

	caption := fmt.Sprintf(
		"🧾 رسید کارت به کارت\n👤 کاربر: %s (@%s)\n💰 مبلغ: %s تومان\n🔖 شماره سفارش: %s",
		user.ID, user.Username, utils.FormatNumber(int64(utils.ParseInt(report.Price, 0))), orderID,
	)
	photo := c.Message().Photo
	for _, admin := range admins {
		b.botAPI.SendPhoto(admin, photo.FileID, caption)
		b.botAPI.SendMessage(admin, "وضعیت پرداخت را تعیین کنید:", b.keyboard.AdminPaymentConfirmKeyboard(orderID))
	}

	return c.Send("✅ رسید شما ارسال شد. پس از بررسی نتیجه اعلام می‌شود.")
}

func (b *Bot) handleAdminConfirmPay(c tele.Context, sess *datastore.Session, admin *models.User, orderID string) error {
	if !b.isAdmin(admin.ID) {
		return c.Respond(&tele.CallbackResponse{Text: "⛔ دسترسی ندارید."})
	}

	report, err := b.repos.Payment.FindByOrderID(orderID)
	if err != nil {
		return c.Send("❌ سفارش یافت نشد.")
	}
	if report.PaymentStatus == "paid" {
		return c.Send("این سفارش قبلاً تایید شده است.")
	}

	if err := b.repos.Payment.MarkPaid(orderID, "manual:"+admin.ID); err != nil {
		return c.Send("❌ خطا در تایید پرداخت.")
	}

	amount := utils.ParseInt(report.Price, 0)
	buyer, _ := b.repos.User.FindByID(report.IDUser)
	if buyer == nil {
		return c.Send("❌ کاربر یافت نشد.")
	}

	purpose := report.IDInvoice
	if username, ok := strings.CutPrefix(purpose, "getconfigafterpay|"); ok {
		buyerSess := b.store.Session(report.IDUser)
		if err := b.provisionForUser(buyerSess, buyer, username, amount); err != nil {
			b.logger.Error("provision after manual confirm failed",
				zap.String("user", report.IDUser), zap.Error(err))
			b.botAPI.SendMessage(report.IDUser, "❌ خطا در ایجاد سرویس.", nil)
			b.refundToWallet(buyerSess, report.IDUser, amount)
			return c.Edit("⚠️ پرداخت تایید شد اما ساخت سرویس ناموفق بود. مبلغ به کیف پول کاربر بازگشت.")
		}
	} else if invoiceID, ok := strings.CutPrefix(purpose, "getextenduser|"); ok {
		buyerSess := b.store.Session(report.IDUser)
		if err := b.extendService(buyerSess, buyer, invoiceID, amount); err != nil {
			b.logger.Error("extend after manual confirm failed",
				zap.String("user", report.IDUser), zap.Error(err))
			b.botAPI.SendMessage(report.IDUser, "❌ خطا در تمدید سرویس.", nil)
			b.refundToWallet(buyerSess, report.IDUser, amount)
			return c.Edit("⚠️ پرداخت تایید شد اما تمدید ناموفق بود. مبلغ به کیف پول کاربر بازگشت.")
		}
		b.botAPI.SendMessage(report.IDUser, "✅ پرداخت تایید و سرویس شما تمدید شد.", nil)
	} else {
		_ = b.repos.User.UpdateField(sess, report.IDUser, "Balance", buyer.Balance+amount)
		b.botAPI.SendMessage(report.IDUser,
			fmt.Sprintf("✅ پرداخت شما تایید شد. مبلغ %s تومان به کیف پول اضافه شد.",
				utils.FormatNumber(int64(amount))), nil)
	}

	return c.Edit("✅ پرداخت تایید شد.")
}

// provisionForUser is the notification-only variant used when the buyer is
// not the current chat.
func (b *Bot) provisionForUser(sess *datastore.Session, buyer *models.User, username string, price int) error {
	product, panelModel, err := b.pendingOrderFor(buyer)
	if err != nil {
		return err
	}

	client, err := panel.NewClient(panelModel)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	acc, err := client.CreateAccount(ctx, panel.CreateAccountRequest{
		Username:   username,
		DataLimit:  utils.GBToBytes(float64(utils.ParseInt(product.VolumeConstraint, 0))),
		ExpireDays: utils.ParseInt(product.ServiceTime, 0),
	})
	if err != nil {
		return err
	}

	invoice := &models.Invoice{
		IDInvoice:       fmt.Sprintf("INV-%d-%s", time.Now().Unix(), username),
		IDUser:          buyer.ID,
		Username:        username,
		ServiceLocation: panelModel.NamePanel,
		TimeSell:        utils.NowUnix(),
		NameProduct:     product.NameProduct,
		PriceProduct:    fmt.Sprintf("%d", price),
		Volume:          product.VolumeConstraint,
		ServiceTime:     product.ServiceTime,
		UUID:            utils.GenerateUUID(),
		Status:          "active",
	}
	_ = b.repos.Invoice.Create(invoice)

	_ = b.repos.User.UpdateField(sess, buyer.ID, "step", "none")
	_ = b.repos.User.UpdateField(sess, buyer.ID, "Processing_value", "")

	b.botAPI.SendMessage(buyer.ID, fmt.Sprintf(
		"✅ سرویس شما ایجاد شد!\n\n👤 یوزرنیم: %s\n📦 محصول: %s\n🔗 لینک اشتراک:\n%s",
		username, product.NameProduct, acc.SubLink,
	), nil)
	return nil
}

// refundToWallet returns a paid amount to the buyer's wallet after a failed
// provisioning and tells the buyer.
func (b *Bot) refundToWallet(sess *datastore.Session, userID string, amount int) {
	if err := b.repos.User.UpdateBalance(sess, userID, amount); err != nil {
		b.logger.Error("refund failed", zap.String("user", userID),
			zap.Int("amount", amount), zap.Error(err))
		return
	}
	b.botAPI.SendMessage(userID, fmt.Sprintf(
		"💰 مبلغ %s تومان به کیف پول شما بازگشت.",
		utils.FormatNumber(int64(amount))), nil)
}

func (b *Bot) pendingOrderFor(user *models.User) (*models.Product, *models.Panel, error) {
	parts := strings.SplitN(user.ProcessingValue, "|", 2)
	if len(parts) < 2 || parts[0] == "charge" {
		return nil, nil, fmt.Errorf("no pending order")
	}
	product, err := b.repos.Product.FindByCode(parts[0])
	if err != nil {
		return nil, nil, err
	}
	panelModel, err := b.repos.Panel.FindByCode(parts[1])
	if err != nil {
		return nil, nil, err
	}
	return product, panelModel, nil
}

func (b *Bot) handleAdminRejectPay(c tele.Context, sess *datastore.Session, admin *models.User, orderID string) error {
	if !b.isAdmin(admin.ID) {
		return c.Respond(&tele.CallbackResponse{Text: "⛔ دسترسی ندارید."})
	}

	report, err := b.repos.Payment.FindByOrderID(orderID)
	if err != nil {
		return c.Send("❌ سفارش یافت نشد.")
	}

	_ = b.repos.Payment.UpdateByOrderID(orderID, map[string]interface{}{
		"payment_Status": "rejected",
	})

	b.botAPI.SendMessage(report.IDUser, "❌ پرداخت شما رد شد. در صورت اعتراض با پشتیبانی تماس بگیرید.", nil)
	return c.Edit("❌ پرداخت رد شد.")
}

func (b *Bot) isAdmin(chatID string) bool {
	admin, err := b.repos.Setting.FindAdminByID(chatID)
	return err == nil && admin != nil
}

// ── Guards ───────────────────────────────────────────────────────────

// checkRateLimit counts messages in a rolling window. The counters are
// excluded from the audit log to keep it readable.
func (b *Bot) checkRateLimit(sess *datastore.Session, user *models.User) bool {
	now := time.Now().Unix()
	last := utils.ParseInt64(user.LastMessageTime, 0)

	count := utils.ParseInt(user.MessageCount, 0)
	if now-last > 60 {
		count = 0
	}
	count++

	_ = b.repos.User.UpdateField(sess, user.ID, "message_count", count)
	_ = b.repos.User.UpdateField(sess, user.ID, "last_message_time", fmt.Sprintf("%d", now))

	return count <= 30
}

// checkJoinChannels verifies required channel membership before serving.
func (b *Bot) checkJoinChannels(c tele.Context, chatID string) (bool, error) {
	channels, err := b.repos.Setting.GetChannels()
	if err != nil || len(channels) == 0 {
		return true, nil
	}

	menu := &tele.ReplyMarkup{}
	var rows []tele.Row
	joined := true
	for _, ch := range channels {
		resp, err := b.botAPI.GetChatMember("@"+ch.Link, chatID)
		if err != nil {
			continue
		}
		if strings.Contains(resp, `"status":"left"`) || strings.Contains(resp, `"status":"kicked"`) {
			joined = false
			rows = append(rows, menu.Row(menu.URL("📢 "+ch.Remark, ch.LinkJoin)))
		}
	}

	if joined {
		return true, nil
	}

	menu.Inline(rows...)
	return false, c.Send("لطفاً ابتدا در کانال‌های زیر عضو شوید:", menu)
}

func (b *Bot) paySettingInt(sess *datastore.Session, name string, def int) int {
	v, err := b.repos.Setting.GetPaySetting(sess, name)
	if err != nil || v == "" {
		return def
	}
	return utils.ParseInt(v, def)
}

func isBlocked(user *models.User) bool {
	return strings.EqualFold(user.UserStatus, "blocked") || strings.EqualFold(user.UserStatus, "block")
}

func formatExpire(ts int64) string {
	if ts <= 0 {
		return "∞"
	}
	return time.Unix(ts, 0).Format("2006-01-02")
}
