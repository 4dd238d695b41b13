package models

import "database/sql"

// User maps to the `user` table.
// Primary key is the Telegram chat ID stored as string.
type User struct {
	ID                  string         `gorm:"column:id;primaryKey;size:500" json:"id"`
	Username            string         `gorm:"column:username;size:500" json:"username"`
	Step                string         `gorm:"column:step;size:500" json:"step"`
	ProcessingValue     string         `gorm:"column:Processing_value;type:text" json:"processing_value"`
	Balance             int            `gorm:"column:Balance;default:0" json:"balance"`
	UserStatus          string         `gorm:"column:User_Status;size:500" json:"user_status"`
	DescriptionBlocking sql.NullString `gorm:"column:description_blocking;type:text" json:"description_blocking"`
	Number              string         `gorm:"column:number;size:300" json:"number"`
	MessageCount        string         `gorm:"column:message_count;size:100" json:"message_count"`
	LastMessageTime     string         `gorm:"column:last_message_time;size:100" json:"last_message_time"`
	Agent               string         `gorm:"column:agent;size:100" json:"agent"`
	Affiliates          string         `gorm:"column:affiliates;size:100" json:"affiliates"`
	NameCustom          string         `gorm:"column:namecustom;size:300" json:"namecustom"`
	Register            string         `gorm:"column:register;size:100" json:"register"`
	Verify              string         `gorm:"column:verify;size:100" json:"verify"`
	CardPayment         string         `gorm:"column:cardpayment;size:100" json:"cardpayment"`
	LimitUserTest       int            `gorm:"column:limit_usertest;default:0" json:"limit_usertest"`
	Score               int            `gorm:"column:score;default:0" json:"score"`
	StatusCron          sql.NullString `gorm:"column:status_cron;size:20;default:'1'" json:"status_cron"`
	Expire              sql.NullString `gorm:"column:expire;size:100" json:"expire"`
	Token               sql.NullString `gorm:"column:token;size:100" json:"token"`
}

func (User) TableName() string {
	return "user"
}
