package models

// Panel maps to the `marzban_panel` table. Despite the legacy name the table
// holds every panel type the shop provisions against.
type Panel struct {
	ID             uint   `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	CodePanel      string `gorm:"column:code_panel;size:200" json:"code_panel"`
	NamePanel      string `gorm:"column:name_panel;size:2000" json:"name_panel"`
	Status         string `gorm:"column:status;size:500" json:"status"`
	URLPanel       string `gorm:"column:url_panel;size:2000" json:"url_panel"`
	UsernamePanel  string `gorm:"column:username_panel;size:200" json:"username_panel"`
	PasswordPanel  string `gorm:"column:password_panel;size:200" json:"password_panel"`
	SecretCode     string `gorm:"column:secret_code;size:200" json:"secret_code"`
	Agent          string `gorm:"column:agent;size:200" json:"agent"`
	SubLink        string `gorm:"column:sublink;size:500" json:"sublink"`
	LinkSubX       string `gorm:"column:linksubx;size:1000" json:"link_sub_x"`
	InboundID      string `gorm:"column:inboundid;size:100" json:"inbound_id"`
	Type           string `gorm:"column:type;size:100" json:"type"`
	MethodUsername string `gorm:"column:MethodUsername;size:700" json:"method_username"`
	TestAccount    string `gorm:"column:TestAccount;size:100" json:"test_account"`
	LimitPanel     string `gorm:"column:limit_panel;size:100" json:"limit_panel"`
	Connection     string `gorm:"column:conecton;size:100" json:"connection"`
	Proxies        string `gorm:"column:proxies;type:text" json:"proxies"`
	Inbounds       string `gorm:"column:inbounds;type:text" json:"inbounds"`
}

func (Panel) TableName() string {
	return "marzban_panel"
}
