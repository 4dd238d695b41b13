package bot

import (
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	tele "gopkg.in/telebot.v3"

	"sellerbot/internal/datastore"
	"sellerbot/internal/models"
	"sellerbot/internal/pkg/utils"
)

// showAdminPanel renders the admin menu. Callers must have verified the
// sender against the admin table.
func (b *Bot) showAdminPanel(c tele.Context) error {
	menu := &tele.ReplyMarkup{}
	menu.Inline(
		menu.Row(menu.Data("📊 آمار ربات", "admin_stats")),
		menu.Row(menu.Data("📢 پیام همگانی", "admin_broadcast")),
		menu.Row(menu.Data("⚙️ تنظیمات", "admin_settings")),
		menu.Row(menu.Data("🔙 منوی اصلی", "main_menu")),
	)
	return c.Send("🔧 پنل مدیریت:", menu)
}

func (b *Bot) handleAdminCallback(c tele.Context, sess *datastore.Session, admin *models.User, data string) error {
	if !b.isAdmin(admin.ID) {
		return c.Respond(&tele.CallbackResponse{Text: "⛔ دسترسی ندارید."})
	}

	switch data {
	case "admin_stats":
		return b.showAdminStats(c)

	case "admin_broadcast":
		_ = b.repos.User.UpdateField(sess, admin.ID, "step", "admin_broadcast")
		return c.Send("📢 پیام همگانی را بنویسید:")

	case "admin_settings":
		return b.showAdminSettings(c)

	case "admin_toggle_verify":
		setting, err := b.repos.Setting.GetSettings()
		if err != nil {
			return c.Send("❌ خطا در خواندن تنظیمات.")
		}
		next := "onverify"
		if setting.VerifyStart == "onverify" {
			next = "offverify"
		}
		if err := b.repos.Setting.UpdateSetting(sess, "verifystart", next); err != nil {
			return c.Send("❌ خطا در ذخیره تنظیمات.")
		}
		return b.showAdminSettings(c)

	case "admin_toggle_card":
		next := "oncard"
		if v, _ := b.repos.Setting.GetPaySetting(sess, "Cartstatus"); v == "oncard" {
			next = "offcard"
		}
		if err := b.repos.Setting.SetPaySetting(sess, "Cartstatus", next); err != nil {
			return c.Send("❌ خطا در ذخیره تنظیمات.")
		}
		return b.showAdminSettings(c)
	}

	return nil
}

func (b *Bot) showAdminStats(c tele.Context) error {
	db := b.repos.Setting.DB()

	var userCount, invoiceCount, paymentCount int64
	db.Model(&models.User{}).Count(&userCount)
	db.Model(&models.Invoice{}).Count(&invoiceCount)
	db.Model(&models.PaymentReport{}).Where("payment_Status = ?", "paid").Count(&paymentCount)

	var revenue int64
	db.Model(&models.PaymentReport{}).
		Where("payment_Status = ?", "paid").
		Select("COALESCE(SUM(CAST(price AS SIGNED)), 0)").
		Scan(&revenue)

	text := fmt.Sprintf(
		"📊 آمار ربات\n\n👥 کاربران: %s\n📋 سرویس‌ها: %s\n💳 پرداخت‌های موفق: %s\n💰 درآمد کل: %s تومان",
		utils.FormatNumber(userCount),
		utils.FormatNumber(invoiceCount),
		utils.FormatNumber(paymentCount),
		utils.FormatNumber(revenue),
	)
	return c.Send(text)
}

func (b *Bot) showAdminSettings(c tele.Context) error {
	setting, err := b.repos.Setting.GetSettings()
	if err != nil {
		return c.Send("❌ خطا در خواندن تنظیمات.")
	}

	sess := b.store.Session("admin:settings")
	cardStatus, _ := b.repos.Setting.GetPaySetting(sess, "Cartstatus")

	verifyLabel := "❌ غیرفعال"
	if setting.VerifyStart == "onverify" {
		verifyLabel = "✅ فعال"
	}
	cardLabel := "❌ غیرفعال"
	if cardStatus == "oncard" {
		cardLabel = "✅ فعال"
	}

	menu := &tele.ReplyMarkup{}
	menu.Inline(
		menu.Row(menu.Data("تایید شماره: "+verifyLabel, "admin_toggle_verify")),
		menu.Row(menu.Data("کارت به کارت: "+cardLabel, "admin_toggle_card")),
		menu.Row(menu.Data("🔙 بازگشت", "main_menu")),
	)
	return c.Send("⚙️ تنظیمات ربات:", menu)
}

// handleBroadcast sends the admin's message to every registered user,
// throttled to stay under the Telegram rate limit.
func (b *Bot) handleBroadcast(c tele.Context, sess *datastore.Session, admin *models.User, text string) error {
	_ = b.repos.User.UpdateField(sess, admin.ID, "step", "none")

	if !b.isAdmin(admin.ID) {
		return nil
	}

	ids, err := sess.Column("user", "id", "User_Status", "active")
	if err != nil {
		return c.Send("❌ خطا در خواندن کاربران.")
	}

	go func() {
		sent := 0
		for _, id := range ids {
			if _, err := b.botAPI.SendMessage(id, text, nil); err == nil {
				sent++
			}
			time.Sleep(50 * time.Millisecond)
		}
		b.botAPI.SendMessage(admin.ID,
			fmt.Sprintf("✅ پیام همگانی برای %s کاربر ارسال شد.", utils.FormatNumber(int64(sent))), nil)
		b.logger.Info("broadcast finished", zap.Int("sent", sent), zap.Int("total", len(ids)))
	}()

	return c.Send(fmt.Sprintf("📤 ارسال پیام به %s کاربر آغاز شد.", utils.FormatNumber(int64(len(ids)))))
}

func isAdminCallback(data string) bool {
	return strings.HasPrefix(data, "admin_")
}
