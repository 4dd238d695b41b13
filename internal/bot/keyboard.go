package bot

import (
	"encoding/json"
	"fmt"
	"strings"

	tele "gopkg.in/telebot.v3"

	"sellerbot/internal/models"
	"sellerbot/internal/pkg/utils"
	"sellerbot/internal/repository"
)

// KeyboardBuilder constructs Telegram keyboards from settings and data.
type KeyboardBuilder struct {
	settingRepo *repository.SettingRepository
	panelRepo   *repository.PanelRepository
	productRepo *repository.ProductRepository
	invoiceRepo *repository.InvoiceRepository
}

func NewKeyboardBuilder(repos *BotRepos) *KeyboardBuilder {
	return &KeyboardBuilder{
		settingRepo: repos.Setting,
		panelRepo:   repos.Panel,
		productRepo: repos.Product,
		invoiceRepo: repos.Invoice,
	}
}

// MainMenuKeyboard builds the main menu from the keyboardmain JSON layout
// stored in the settings row, falling back to the default layout.
func (kb *KeyboardBuilder) MainMenuKeyboard(user *models.User, setting *models.Setting) *tele.ReplyMarkup {
	menu := &tele.ReplyMarkup{ResizeKeyboard: true}

	var layout [][]map[string]string
	if setting.KeyboardMain != "" {
		_ = json.Unmarshal([]byte(setting.KeyboardMain), &layout)
	}

	var rows []tele.Row
	for _, row := range layout {
		var btns []tele.Btn
		for _, btn := range row {
			if btn["text"] == "" {
				continue
			}
			btns = append(btns, menu.Text(btn["text"]))
		}
		if len(btns) > 0 {
			rows = append(rows, menu.Row(btns...))
		}
	}

	if len(rows) == 0 {
		rows = []tele.Row{
			menu.Row(menu.Text(kb.getText("text_sell", btnBuyService)), menu.Text(kb.getText("text_Purchased_services", btnMyServices))),
			menu.Row(menu.Text(kb.getText("accountwallet", btnWallet)), menu.Text(kb.getText("text_support", btnSupport))),
			menu.Row(menu.Text(kb.getText("text_Account", btnAccount)), menu.Text(kb.getText("text_affiliates", btnReferral))),
		}
	}

	if admin, err := kb.settingRepo.FindAdminByID(user.ID); err == nil && admin != nil {
		rows = append(rows, menu.Row(menu.Text(btnAdminPanel)))
	}

	menu.Reply(rows...)
	return menu
}

// LocationKeyboard builds the inline keyboard of available panels.
func (kb *KeyboardBuilder) LocationKeyboard(user *models.User) *tele.ReplyMarkup {
	menu := &tele.ReplyMarkup{}

	panels, err := kb.panelRepo.FindActive()
	if err != nil {
		return menu
	}

	var rows []tele.Row
	for _, p := range panels {
		if !panelAccessibleByUser(p, user) {
			continue
		}
		rows = append(rows, menu.Row(menu.Data("📍 "+p.NamePanel, "loc_"+p.CodePanel)))
	}

	rows = append(rows, menu.Row(menu.Data("🔙 بازگشت", "main_menu")))
	menu.Inline(rows...)
	return menu
}

// ProductKeyboard builds the inline keyboard of products for a location.
func (kb *KeyboardBuilder) ProductKeyboard(panelCode string, user *models.User) *tele.ReplyMarkup {
	menu := &tele.ReplyMarkup{}

	panelModel, err := kb.panelRepo.FindByCode(panelCode)
	if err != nil {
		return menu
	}

	products, _, err := kb.productRepo.FindAll(100, 1, "")
	if err != nil {
		return menu
	}

	var rows []tele.Row
	for _, prod := range products {
		if prod.Location != panelModel.NamePanel && prod.Location != "/all" {
			continue
		}
		if prod.Agent != "0" && prod.Agent != "" && prod.Agent != user.Agent {
			continue
		}

		price := utils.ParseInt(prod.PriceProduct, 0)
		label := fmt.Sprintf("%s - %s تومان", prod.NameProduct, utils.FormatNumber(int64(price)))
		rows = append(rows, menu.Row(menu.Data(label, fmt.Sprintf("prod_%s_%s", panelCode, prod.CodeProduct))))
	}

	rows = append(rows, menu.Row(menu.Data("🔙 بازگشت", "buy_service")))
	menu.Inline(rows...)
	return menu
}

// ServiceListKeyboard builds the inline keyboard of a user's services.
func (kb *KeyboardBuilder) ServiceListKeyboard(invoices []models.Invoice) *tele.ReplyMarkup {
	menu := &tele.ReplyMarkup{}

	var rows []tele.Row
	for _, inv := range invoices {
		statusEmoji := "✅"
		switch inv.Status {
		case "end_of_time", "expired":
			statusEmoji = "⏰"
		case "end_of_volume", "limited":
			statusEmoji = "📊"
		case "disabled", "disablebyadmin":
			statusEmoji = "🚫"
		}
		label := fmt.Sprintf("%s %s | %s", statusEmoji, inv.NameProduct, inv.Username)
		rows = append(rows, menu.Row(menu.Data(label, "srv_"+inv.IDInvoice)))
	}

	rows = append(rows, menu.Row(menu.Data("🔙 منوی اصلی", "main_menu")))
	menu.Inline(rows...)
	return menu
}

// ServiceDetailKeyboard builds the action buttons for one service.
func (kb *KeyboardBuilder) ServiceDetailKeyboard(invoice *models.Invoice) *tele.ReplyMarkup {
	menu := &tele.ReplyMarkup{}
	id := invoice.IDInvoice

	menu.Inline(
		menu.Row(menu.Data("🔄 بروزرسانی", "updateinfo_"+id)),
		menu.Row(
			menu.Data("🔌 تغییر وضعیت", "togglesvc_"+id),
			menu.Data("♻️ ریست مصرف", "resettraffic_"+id),
		),
		menu.Row(menu.Data("🔗 لینک اشتراک", "suburl_"+id)),
		menu.Row(menu.Data("🔁 تمدید سرویس", "extend_"+id)),
		menu.Row(menu.Data("🔙 بازگشت به لیست", "my_services")),
	)
	return menu
}

// PaymentMethodKeyboard builds the available payment methods for an amount.
func (kb *KeyboardBuilder) PaymentMethodKeyboard(user *models.User) *tele.ReplyMarkup {
	menu := &tele.ReplyMarkup{}

	paySettings, err := kb.settingRepo.GetAllPaySettings()
	if err != nil {
		return menu
	}
	psMap := make(map[string]string, len(paySettings))
	for _, ps := range paySettings {
		psMap[ps.NamePay] = ps.ValuePay
	}

	var rows []tele.Row

	if paySettingOn(psMap["Cartstatus"], "oncard", "oncart") {
		rows = append(rows, menu.Row(menu.Data("💳 کارت به کارت", "pay_card")))
	}
	if psMap["merchant_zarinpal"] != "" {
		rows = append(rows, menu.Row(menu.Data("🏦 زرین پال", "pay_zarinpal")))
	}
	if psMap["apinowpayment"] != "" {
		rows = append(rows, menu.Row(menu.Data("💎 ارز دیجیتال", "pay_nowpayments")))
	}
	if psMap["pin_aqayepardakht"] != "" {
		rows = append(rows, menu.Row(menu.Data("🏧 آقای پرداخت", "pay_aqayepardakht")))
	}
	if user.Balance > 0 {
		rows = append(rows, menu.Row(menu.Data(
			fmt.Sprintf("👛 کیف پول (%s تومان)", utils.FormatNumber(int64(user.Balance))),
			"pay_wallet",
		)))
	}

	rows = append(rows, menu.Row(menu.Data("🔙 بازگشت", "main_menu")))
	menu.Inline(rows...)
	return menu
}

// ConfirmPurchaseKeyboard builds confirm/cancel buttons for a purchase.
func (kb *KeyboardBuilder) ConfirmPurchaseKeyboard() *tele.ReplyMarkup {
	menu := &tele.ReplyMarkup{}
	menu.Inline(
		menu.Row(
			menu.Data("✅ تایید و خرید", "confirm_buy"),
			menu.Data("❌ انصراف", "main_menu"),
		),
	)
	return menu
}

// AdminPaymentConfirmKeyboard builds confirm/reject buttons for admin review
// of card-to-card receipts.
func (kb *KeyboardBuilder) AdminPaymentConfirmKeyboard(orderID string) *tele.ReplyMarkup {
	menu := &tele.ReplyMarkup{}
	menu.Inline(
		menu.Row(
			menu.Data("✅ تایید پرداخت", "confirmpay_"+orderID),
			menu.Data("❌ رد پرداخت", "rejectpay_"+orderID),
		),
	)
	return menu
}

// panelAccessibleByUser checks agent restrictions. The agent column holds
// "0" for everyone or a comma list of agent ids.
func panelAccessibleByUser(p models.Panel, user *models.User) bool {
	if p.Status != "active" {
		return false
	}
	if p.Agent == "0" || p.Agent == "" {
		return true
	}
	for _, a := range strings.Split(p.Agent, ",") {
		if strings.TrimSpace(a) == user.Agent || strings.TrimSpace(a) == "0" {
			return true
		}
	}
	return false
}

func paySettingOn(value string, expected ...string) bool {
	for _, item := range expected {
		if strings.EqualFold(strings.TrimSpace(value), item) {
			return true
		}
	}
	return false
}

func (kb *KeyboardBuilder) getText(key, fallback string) string {
	text, err := kb.settingRepo.GetText(key)
	if err != nil || text == "" {
		return fallback
	}
	return text
}
