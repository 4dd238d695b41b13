package cron

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"sellerbot/internal/models"
	"sellerbot/internal/panel"
	"sellerbot/internal/pkg/fsutil"
	"sellerbot/internal/pkg/telegram"
	"sellerbot/internal/pkg/utils"
	"sellerbot/internal/repository"
)

// Repos bundles the repositories the scheduled jobs need.
type Repos struct {
	User    *repository.UserRepository
	Invoice *repository.InvoiceRepository
	Payment *repository.PaymentRepository
	Panel   *repository.PanelRepository
	Setting *repository.SettingRepository
}

// Scheduler runs the periodic maintenance jobs.
type Scheduler struct {
	cron      *cron.Cron
	repos     *Repos
	botAPI    *telegram.BotAPI
	logger    *zap.Logger
	auditPath string
	backupDir string
}

func NewScheduler(repos *Repos, botAPI *telegram.BotAPI, logger *zap.Logger, auditPath string) *Scheduler {
	return &Scheduler{
		cron:      cron.New(),
		repos:     repos,
		botAPI:    botAPI,
		logger:    logger,
		auditPath: auditPath,
		backupDir: "backups",
	}
}

// Start registers and starts all jobs.
func (s *Scheduler) Start() error {
	jobs := []struct {
		spec string
		name string
		fn   func()
	}{
		{"*/10 * * * *", "expire_stale_payments", s.expireStalePayments},
		{"*/30 * * * *", "sweep_services", s.sweepServices},
		{"0 21 * * *", "daily_report", s.dailyReport},
		{"30 21 * * *", "backup_audit_log", s.backupAuditLog},
	}

	for _, j := range jobs {
		j := j
		if _, err := s.cron.AddFunc(j.spec, func() {
			start := time.Now()
			j.fn()
			s.logger.Debug("cron job finished",
				zap.String("job", j.name),
				zap.Duration("took", time.Since(start)))
		}); err != nil {
			return fmt.Errorf("failed to schedule %s: %w", j.name, err)
		}
	}

	s.cron.Start()
	s.logger.Info("cron scheduler started", zap.Int("jobs", len(jobs)))
	return nil
}

// Stop stops the scheduler and waits for running jobs.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
}

// cronJobEnabled reads a per-job toggle out of the cron_status setting,
// which stores a JSON object like {"notifications":"off","payment":"on"}.
// A bare "off" disables every job; unknown or unparseable values leave the
// job enabled.
func cronJobEnabled(raw, job string) bool {
	raw = strings.TrimSpace(raw)
	if raw == "off" {
		return false
	}

	var flags map[string]string
	if err := json.Unmarshal([]byte(raw), &flags); err != nil {
		return true
	}
	return flags[job] != "off"
}

// expireStalePayments marks unpaid gateway orders older than an hour as
// expired so the reports stay clean.
func (s *Scheduler) expireStalePayments() {
	if setting, err := s.repos.Setting.GetSettings(); err == nil {
		if !cronJobEnabled(setting.CronStatus, "payment") {
			return
		}
	}

	cutoff := strconv.FormatInt(time.Now().Add(-time.Hour).Unix(), 10)
	stale, err := s.repos.Payment.FindStaleUnpaid(cutoff)
	if err != nil {
		s.logger.Error("stale payment lookup failed", zap.Error(err))
		return
	}

	for _, report := range stale {
		if err := s.repos.Payment.UpdateByOrderID(report.IDOrder, map[string]interface{}{
			"payment_Status": "expired",
			"at_updated":     utils.NowUnix(),
		}); err != nil {
			s.logger.Warn("failed to expire payment",
				zap.String("order_id", report.IDOrder), zap.Error(err))
		}
	}

	if len(stale) > 0 {
		s.logger.Info("expired stale payments", zap.Int("count", len(stale)))
	}
}

// sweepServices walks active invoices against their panels: disables the
// ones that ran out of time or traffic and warns users that are close.
func (s *Scheduler) sweepServices() {
	setting, err := s.repos.Setting.GetSettings()
	if err != nil {
		s.logger.Error("settings unavailable, skipping sweep", zap.Error(err))
		return
	}
	if !cronJobEnabled(setting.CronStatus, "notifications") {
		return
	}

	volumeWarnGB := utils.ParseInt(setting.VolumeWarn, 2)
	dayWarn := utils.ParseInt(setting.DayWarn, 3)

	invoices, err := s.repos.Invoice.FindActive()
	if err != nil {
		s.logger.Error("active invoice lookup failed", zap.Error(err))
		return
	}

	// Panel clients are reused across invoices on the same location.
	clients := map[string]panel.Client{}

	for _, invoice := range invoices {
		client, ok := clients[invoice.ServiceLocation]
		if !ok {
			panelModel, err := s.repos.Panel.FindByName(invoice.ServiceLocation)
			if err != nil {
				continue
			}
			client, err = panel.NewClient(panelModel)
			if err != nil {
				s.logger.Warn("panel client error",
					zap.String("panel", invoice.ServiceLocation), zap.Error(err))
				continue
			}
			clients[invoice.ServiceLocation] = client
		}

		s.checkInvoice(client, invoice, volumeWarnGB, dayWarn)
	}
}

func (s *Scheduler) checkInvoice(client panel.Client, invoice models.Invoice, volumeWarnGB, dayWarn int) {
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	acc, err := client.GetAccount(ctx, invoice.Username)
	if err != nil {
		return
	}

	now := time.Now().Unix()
	expired := acc.ExpireTime > 0 && acc.ExpireTime < now
	overQuota := acc.DataLimit > 0 && acc.UsedTraffic >= acc.DataLimit

	if expired || overQuota {
		_ = client.DisableAccount(ctx, invoice.Username)
		_ = s.repos.Invoice.Update(invoice.IDInvoice, map[string]interface{}{
			"Status": "disabled",
		})

		reason := "⏰ مدت سرویس شما به پایان رسید."
		if overQuota {
			reason = "📊 حجم سرویس شما به پایان رسید."
		}
		s.botAPI.SendMessage(invoice.IDUser, fmt.Sprintf(
			"%s\n👤 سرویس: %s\nبرای تمدید از بخش سرویس‌های من اقدام کنید.",
			reason, invoice.Username), nil)
		return
	}

	// Warn once per invoice per trigger. The marker lives in the
	// notifications column.
	remaining := acc.DataLimit - acc.UsedTraffic
	lowVolume := acc.DataLimit > 0 && remaining <= utils.GBToBytes(float64(volumeWarnGB))
	daysLeft := int((acc.ExpireTime - now) / 86400)
	lowTime := acc.ExpireTime > 0 && daysLeft <= dayWarn

	if lowVolume && invoice.Notifications != "volume" {
		s.botAPI.SendMessage(invoice.IDUser, fmt.Sprintf(
			"⚠️ از حجم سرویس %s تنها %s باقی مانده است.",
			invoice.Username, utils.FormatBytes(remaining)), nil)
		_ = s.repos.Invoice.Update(invoice.IDInvoice, map[string]interface{}{"notifctions": "volume"})
	} else if lowTime && invoice.Notifications != "time" {
		s.botAPI.SendMessage(invoice.IDUser, fmt.Sprintf(
			"⚠️ از مدت سرویس %s تنها %d روز باقی مانده است.",
			invoice.Username, daysLeft), nil)
		_ = s.repos.Invoice.Update(invoice.IDInvoice, map[string]interface{}{"notifctions": "time"})
	}
}

// dailyReport posts a daily summary to the report channel.
func (s *Scheduler) dailyReport() {
	setting, err := s.repos.Setting.GetSettings()
	if err != nil || setting.ChannelReport == "" {
		return
	}

	dayAgo := strconv.FormatInt(time.Now().Add(-24*time.Hour).Unix(), 10)
	db := s.repos.Setting.DB()

	var newUsers int64
	db.Model(&models.User{}).Where("register >= ?", dayAgo).Count(&newUsers)

	var paidCount int64
	var revenue int64
	db.Model(&models.PaymentReport{}).
		Where("payment_Status = ? AND at_updated >= ?", "paid", dayAgo).
		Count(&paidCount)
	db.Model(&models.PaymentReport{}).
		Where("payment_Status = ? AND at_updated >= ?", "paid", dayAgo).
		Select("COALESCE(SUM(CAST(price AS SIGNED)), 0)").
		Scan(&revenue)

	var newInvoices int64
	db.Model(&models.Invoice{}).Where("time_sell >= ?", dayAgo).Count(&newInvoices)

	text := fmt.Sprintf(
		"📊 گزارش روزانه\n📅 %s\n\n👥 کاربران جدید: %s\n📋 سرویس‌های جدید: %s\n💳 پرداخت‌های موفق: %s\n💰 درآمد: %s تومان",
		time.Now().Format("2006-01-02"),
		utils.FormatNumber(newUsers),
		utils.FormatNumber(newInvoices),
		utils.FormatNumber(paidCount),
		utils.FormatNumber(revenue),
	)
	s.botAPI.SendMessage(setting.ChannelReport, text, nil)
}

// backupAuditLog snapshots the audit trail into the backup directory and
// prunes snapshots older than two weeks.
func (s *Scheduler) backupAuditLog() {
	if s.auditPath == "" {
		return
	}
	if err := fsutil.EnsureDir(s.backupDir); err != nil {
		s.logger.Error("backup dir unavailable", zap.Error(err))
		return
	}

	dst := fmt.Sprintf("%s/audit-%s.txt", s.backupDir, time.Now().Format("20060102"))
	if err := fsutil.CopyFile(s.auditPath, dst); err != nil {
		s.logger.Error("audit backup failed", zap.Error(err))
		return
	}

	removed, err := fsutil.RemoveOlderThan(s.backupDir, 14*24*time.Hour)
	if err != nil {
		s.logger.Warn("backup prune failed", zap.Error(err))
	}
	s.logger.Info("audit log backed up",
		zap.String("snapshot", dst), zap.Int("pruned", removed))
}
