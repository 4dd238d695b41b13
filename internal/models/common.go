package models

// Admin maps to the `admin` table.
type Admin struct {
	IDAdmin  string `gorm:"column:id_admin;primaryKey;size:500" json:"id_admin"`
	Username string `gorm:"column:username;size:1000" json:"username"`
	Rule     string `gorm:"column:rule;size:500" json:"rule"`
}

func (Admin) TableName() string {
	return "admin"
}

// Setting maps to the `setting` table (single-row config table).
type Setting struct {
	BotStatus      string `gorm:"column:Bot_Status;size:200" json:"bot_status"`
	ChannelReport  string `gorm:"column:Channel_Report;size:600" json:"channel_report"`
	NotUser        string `gorm:"column:NotUser;size:200" json:"not_user"`
	IDSupport      string `gorm:"column:id_support;size:200" json:"id_support"`
	StatusNewUser  string `gorm:"column:statusnewuser;size:600" json:"status_new_user"`
	VerifyStart    string `gorm:"column:verifystart;size:200" json:"verify_start"`
	VolumeWarn     string `gorm:"column:volumewarn;size:200" json:"volume_warn"`
	DayWarn        string `gorm:"column:daywarn;size:45" json:"day_warn"`
	ScoreStatus    string `gorm:"column:scorestatus;size:100" json:"score_status"`
	KeyboardMain   string `gorm:"column:keyboardmain;type:text" json:"keyboard_main"`
	CronStatus     string `gorm:"column:cron_status;type:text" json:"cron_status"`
	ShowCard       string `gorm:"column:showcard;size:200" json:"show_card"`
	LimitUserTests string `gorm:"column:limit_usertest_all;size:600" json:"limit_usertest_all"`
}

func (Setting) TableName() string {
	return "setting"
}

// TextBot maps to the `textbot` table.
type TextBot struct {
	IDText string `gorm:"column:id_text;primaryKey;size:600" json:"id_text"`
	Text   string `gorm:"column:text;type:text" json:"text"`
}

func (TextBot) TableName() string {
	return "textbot"
}

// Channel maps to the `channels` table.
type Channel struct {
	Remark   string `gorm:"column:remark;size:200" json:"remark"`
	LinkJoin string `gorm:"column:linkjoin;size:200" json:"linkjoin"`
	Link     string `gorm:"column:link;size:200" json:"link"`
}

func (Channel) TableName() string {
	return "channels"
}

// CardNumber maps to the `card_number` table.
type CardNumber struct {
	CardNumber string `gorm:"column:cardnumber;primaryKey;size:500" json:"cardnumber"`
	NameCard   string `gorm:"column:namecard;size:1000" json:"namecard"`
}

func (CardNumber) TableName() string {
	return "card_number"
}

// PaySetting maps to the `PaySetting` table (key-value).
type PaySetting struct {
	NamePay  string `gorm:"column:NamePay;primaryKey;size:500" json:"name_pay"`
	ValuePay string `gorm:"column:ValuePay;type:text" json:"value_pay"`
}

func (PaySetting) TableName() string {
	return "PaySetting"
}

// LogsAPI maps to the `logs_api` table.
type LogsAPI struct {
	ID      uint   `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	Header  string `gorm:"column:header;type:json" json:"header"`
	Data    string `gorm:"column:data;type:json" json:"data"`
	IP      string `gorm:"column:ip;size:200" json:"ip"`
	Time    string `gorm:"column:time;size:200" json:"time"`
	Actions string `gorm:"column:actions;size:200" json:"actions"`
}

func (LogsAPI) TableName() string {
	return "logs_api"
}

// APIResponse is the envelope every API endpoint returns.
type APIResponse struct {
	Status bool        `json:"status"`
	Msg    string      `json:"msg"`
	Obj    interface{} `json:"obj"`
}
