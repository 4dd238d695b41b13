package panel

import "context"

// Account represents a provisioned account on a VPN panel.
type Account struct {
	Username    string   `json:"username"`
	Status      string   `json:"status"` // active, disabled, limited, expired, on_hold
	DataLimit   int64    `json:"data_limit"`
	UsedTraffic int64    `json:"used_traffic"`
	ExpireTime  int64    `json:"expire_time"`
	SubLink     string   `json:"sub_link"`
	OnlineAt    int64    `json:"online_at"`
	Links       []string `json:"links"`
	Note        string   `json:"note,omitempty"`
}

// Inbound represents an inbound/protocol exposed by a panel.
type Inbound struct {
	Tag      string `json:"tag"`
	Protocol string `json:"protocol"`
	Port     int    `json:"port,omitempty"`
	Remark   string `json:"remark,omitempty"`
}

// CreateAccountRequest contains params for creating an account on a panel.
type CreateAccountRequest struct {
	Username   string              `json:"username"`
	DataLimit  int64               `json:"data_limit"` // bytes
	ExpireDays int                 `json:"expire_days"`
	Inbounds   map[string][]string `json:"inbounds,omitempty"`
	Proxies    map[string]string   `json:"proxies,omitempty"`
	Note       string              `json:"note,omitempty"`
}

// ModifyAccountRequest contains params for modifying an account on a panel.
type ModifyAccountRequest struct {
	Status     string              `json:"status,omitempty"`
	DataLimit  int64               `json:"data_limit,omitempty"`
	ExpireTime int64               `json:"expire_time,omitempty"`
	Inbounds   map[string][]string `json:"inbounds,omitempty"`
	Note       string              `json:"note,omitempty"`
}

// Client defines the interface for VPN panel integrations.
type Client interface {
	// Authenticate logs in and stores the auth token/session.
	Authenticate(ctx context.Context) error

	// GetAccount gets an account by username.
	GetAccount(ctx context.Context, username string) (*Account, error)

	// CreateAccount creates a new account on the panel.
	CreateAccount(ctx context.Context, req CreateAccountRequest) (*Account, error)

	// ModifyAccount modifies an existing account.
	ModifyAccount(ctx context.Context, username string, req ModifyAccountRequest) (*Account, error)

	// DeleteAccount removes an account from the panel.
	DeleteAccount(ctx context.Context, username string) error

	// EnableAccount enables an account.
	EnableAccount(ctx context.Context, username string) error

	// DisableAccount disables an account.
	DisableAccount(ctx context.Context, username string) error

	// ResetTraffic resets traffic usage for an account.
	ResetTraffic(ctx context.Context, username string) error

	// RevokeSubscription revokes and regenerates the subscription link.
	RevokeSubscription(ctx context.Context, username string) (string, error)

	// GetInbounds returns available inbounds/protocols on the panel.
	GetInbounds(ctx context.Context) ([]Inbound, error)

	// GetSubscriptionLink returns the subscription link for an account.
	GetSubscriptionLink(ctx context.Context, username string) (string, error)

	// Type returns the panel type identifier.
	Type() string
}
