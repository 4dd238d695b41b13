package panel

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"sellerbot/internal/pkg/httpclient"
)

// MarzbanClient implements Client for Marzban panels.
type MarzbanClient struct {
	baseURL         string
	username        string
	password        string
	token           string
	tokenTime       time.Time
	defaultInbounds map[string][]string
	client          *httpclient.Client
}

// NewMarzbanClient creates a new Marzban panel client.
func NewMarzbanClient(baseURL, username, password string) *MarzbanClient {
	return &MarzbanClient{
		baseURL:  strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		username: strings.TrimSpace(username),
		password: password,
		client:   httpclient.New().WithInsecureSkipVerify(),
	}
}

func (m *MarzbanClient) Type() string {
	return "marzban"
}

// SetDefaultInbounds sets the inbound template applied to new accounts when
// the request carries none.
func (m *MarzbanClient) SetDefaultInbounds(inbounds map[string][]string) {
	m.defaultInbounds = inbounds
}

// Authenticate obtains a bearer token from the Marzban panel.
func (m *MarzbanClient) Authenticate(ctx context.Context) error {
	resp, err := m.client.PostForm(ctx, m.baseURL+"/api/admin/token", map[string]string{
		"username": m.username,
		"password": m.password,
	})
	if err != nil {
		return fmt.Errorf("marzban auth failed: %w", err)
	}

	var result map[string]interface{}
	if err := json.Unmarshal(resp, &result); err != nil {
		return fmt.Errorf("marzban auth parse error: %w", err)
	}

	token, ok := result["access_token"].(string)
	if !ok || token == "" {
		return fmt.Errorf("marzban auth: no access_token in response")
	}

	m.token = token
	m.tokenTime = time.Now()
	m.client = m.client.WithBearerToken(token)
	return nil
}

// Marzban tokens expire after an hour; refresh a bit earlier.
func (m *MarzbanClient) ensureAuth(ctx context.Context) error {
	if m.token == "" || time.Since(m.tokenTime) > 50*time.Minute {
		return m.Authenticate(ctx)
	}
	return nil
}

func (m *MarzbanClient) GetAccount(ctx context.Context, username string) (*Account, error) {
	if err := m.ensureAuth(ctx); err != nil {
		return nil, err
	}

	resp, err := m.client.Get(ctx, m.baseURL+"/api/user/"+username)
	if err != nil {
		return nil, fmt.Errorf("marzban get user failed: %w", err)
	}

	var raw map[string]interface{}
	if err := json.Unmarshal(resp, &raw); err != nil {
		return nil, fmt.Errorf("marzban parse error: %w", err)
	}

	if detail := strings.TrimSpace(jsonString(raw, "detail")); strings.EqualFold(detail, "User not found") {
		return nil, fmt.Errorf("marzban user %s not found", username)
	}

	return marzbanAccount(raw), nil
}

func (m *MarzbanClient) CreateAccount(ctx context.Context, req CreateAccountRequest) (*Account, error) {
	if err := m.ensureAuth(ctx); err != nil {
		return nil, err
	}

	expireTime := int64(0)
	if req.ExpireDays > 0 {
		expireTime = time.Now().Add(time.Duration(req.ExpireDays) * 24 * time.Hour).Unix()
	}

	body := map[string]interface{}{
		"username":   req.Username,
		"status":     "active",
		"data_limit": req.DataLimit,
		"expire":     expireTime,
		"note":       req.Note,
	}

	inbounds := req.Inbounds
	if inbounds == nil {
		inbounds = m.defaultInbounds
	}
	if inbounds != nil {
		body["inbounds"] = inbounds
	}

	proxies := make(map[string]interface{})
	if req.Proxies != nil {
		for proto, flow := range req.Proxies {
			obj := map[string]interface{}{}
			if flow != "" {
				obj["flow"] = flow
			}
			proxies[proto] = obj
		}
	} else {
		for proto := range inbounds {
			proxies[proto] = map[string]interface{}{}
		}
	}
	if len(proxies) > 0 {
		body["proxies"] = proxies
	}

	resp, err := m.client.Post(ctx, m.baseURL+"/api/user", body)
	if err != nil {
		return nil, fmt.Errorf("marzban create user failed: %w", err)
	}

	var raw map[string]interface{}
	if err := json.Unmarshal(resp, &raw); err != nil {
		return nil, fmt.Errorf("marzban parse create response: %w", err)
	}
	if detail, ok := raw["detail"].(string); ok && detail != "" {
		return nil, fmt.Errorf("marzban create user error: %s", detail)
	}

	acc := marzbanAccount(raw)
	if acc.DataLimit == 0 {
		acc.DataLimit = req.DataLimit
	}
	if acc.ExpireTime == 0 {
		acc.ExpireTime = expireTime
	}
	return acc, nil
}

func (m *MarzbanClient) ModifyAccount(ctx context.Context, username string, req ModifyAccountRequest) (*Account, error) {
	if err := m.ensureAuth(ctx); err != nil {
		return nil, err
	}

	body := map[string]interface{}{}
	if req.Status != "" {
		body["status"] = req.Status
	}
	if req.DataLimit > 0 {
		body["data_limit"] = req.DataLimit
	}
	if req.ExpireTime > 0 {
		body["expire"] = req.ExpireTime
	}
	if req.Note != "" {
		body["note"] = req.Note
	}
	if req.Inbounds != nil {
		body["inbounds"] = req.Inbounds
	}

	resp, err := m.client.Put(ctx, m.baseURL+"/api/user/"+username, body)
	if err != nil {
		return nil, fmt.Errorf("marzban modify user failed: %w", err)
	}

	var raw map[string]interface{}
	if err := json.Unmarshal(resp, &raw); err != nil {
		return nil, fmt.Errorf("marzban parse modify response: %w", err)
	}
	if detail, ok := raw["detail"].(string); ok && detail != "" {
		return nil, fmt.Errorf("marzban modify user error: %s", detail)
	}

	return marzbanAccount(raw), nil
}

func (m *MarzbanClient) DeleteAccount(ctx context.Context, username string) error {
	if err := m.ensureAuth(ctx); err != nil {
		return err
	}

	_, err := m.client.Delete(ctx, m.baseURL+"/api/user/"+username)
	return err
}

func (m *MarzbanClient) EnableAccount(ctx context.Context, username string) error {
	_, err := m.ModifyAccount(ctx, username, ModifyAccountRequest{Status: "active"})
	return err
}

func (m *MarzbanClient) DisableAccount(ctx context.Context, username string) error {
	_, err := m.ModifyAccount(ctx, username, ModifyAccountRequest{Status: "disabled"})
	return err
}

func (m *MarzbanClient) ResetTraffic(ctx context.Context, username string) error {
	if err := m.ensureAuth(ctx); err != nil {
		return err
	}

	_, err := m.client.Post(ctx, m.baseURL+"/api/user/"+username+"/reset", nil)
	return err
}

func (m *MarzbanClient) RevokeSubscription(ctx context.Context, username string) (string, error) {
	if err := m.ensureAuth(ctx); err != nil {
		return "", err
	}

	resp, err := m.client.Post(ctx, m.baseURL+"/api/user/"+username+"/revoke_sub", nil)
	if err != nil {
		return "", err
	}

	var raw map[string]interface{}
	if err := json.Unmarshal(resp, &raw); err != nil {
		return "", err
	}

	return jsonString(raw, "subscription_url"), nil
}

func (m *MarzbanClient) GetInbounds(ctx context.Context) ([]Inbound, error) {
	if err := m.ensureAuth(ctx); err != nil {
		return nil, err
	}

	resp, err := m.client.Get(ctx, m.baseURL+"/api/inbounds")
	if err != nil {
		return nil, err
	}

	var raw map[string][]map[string]interface{}
	if err := json.Unmarshal(resp, &raw); err != nil {
		return nil, err
	}

	var inbounds []Inbound
	for protocol, items := range raw {
		for _, item := range items {
			in := Inbound{
				Protocol: protocol,
				Tag:      jsonString(item, "tag"),
				Remark:   jsonString(item, "remark"),
			}
			if v, ok := item["port"].(float64); ok {
				in.Port = int(v)
			}
			inbounds = append(inbounds, in)
		}
	}
	return inbounds, nil
}

func (m *MarzbanClient) GetSubscriptionLink(ctx context.Context, username string) (string, error) {
	acc, err := m.GetAccount(ctx, username)
	if err != nil {
		return "", err
	}
	return acc.SubLink, nil
}

// GetSystemStats returns the /api/system counters used for the admin status
// report.
func (m *MarzbanClient) GetSystemStats(ctx context.Context) (map[string]interface{}, error) {
	if err := m.ensureAuth(ctx); err != nil {
		return nil, err
	}

	resp, err := m.client.Get(ctx, m.baseURL+"/api/system")
	if err != nil {
		return nil, err
	}

	var result map[string]interface{}
	if err := json.Unmarshal(resp, &result); err != nil {
		return nil, err
	}
	return result, nil
}

func marzbanAccount(raw map[string]interface{}) *Account {
	acc := &Account{
		Username: jsonString(raw, "username"),
		Status:   jsonString(raw, "status"),
		SubLink:  jsonString(raw, "subscription_url"),
		Note:     jsonString(raw, "note"),
	}

	if v, ok := raw["data_limit"].(float64); ok {
		acc.DataLimit = int64(v)
	}
	if v, ok := raw["used_traffic"].(float64); ok {
		acc.UsedTraffic = int64(v)
	}
	if v, ok := raw["expire"].(float64); ok {
		acc.ExpireTime = int64(v)
	}
	if links, ok := raw["links"].([]interface{}); ok {
		for _, l := range links {
			if s, ok := l.(string); ok {
				acc.Links = append(acc.Links, s)
			}
		}
	}
	return acc
}

func jsonString(m map[string]interface{}, key string) string {
	if v, ok := m[key].(string); ok {
		return v
	}
	return ""
}
