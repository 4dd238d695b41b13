package panel

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"sellerbot/internal/pkg/httpclient"
	"sellerbot/internal/pkg/utils"
)

// xuiClient implements Client for 3x-ui style panels with a single shared
// inbound per panel row.
type xuiClient struct {
	baseURL         string
	username        string
	password        string
	defaultInbound  int
	linkSub         string
	startOnFirstUse bool
	client          *httpclient.Client
}

// NewXUIClient creates a client for a 3x-ui panel. inboundID selects the
// inbound new accounts are attached to; linkSub is the subscription base URL.
func NewXUIClient(baseURL, username, password, inboundID, linkSub string, startOnFirstUse bool) Client {
	id, _ := strconv.Atoi(strings.TrimSpace(inboundID))
	if id <= 0 {
		id = 1
	}
	return &xuiClient{
		baseURL:         strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		username:        strings.TrimSpace(username),
		password:        password,
		defaultInbound:  id,
		linkSub:         strings.TrimSpace(linkSub),
		startOnFirstUse: startOnFirstUse,
		client:          httpclient.New().WithInsecureSkipVerify().WithHeader("Accept", "application/json"),
	}
}

func (x *xuiClient) Type() string {
	return "xui"
}

func (x *xuiClient) apiURL(parts ...string) string {
	return x.baseURL + "/panel/api/inbounds" + strings.Join(parts, "")
}

// Authenticate logs in; the session cookie is kept by the underlying client.
func (x *xuiClient) Authenticate(ctx context.Context) error {
	_, err := x.client.PostForm(ctx, x.baseURL+"/login", map[string]string{
		"username": x.username,
		"password": x.password,
	})
	if err != nil {
		return fmt.Errorf("xui auth failed: %w", err)
	}
	return nil
}

func (x *xuiClient) GetAccount(ctx context.Context, username string) (*Account, error) {
	if err := x.Authenticate(ctx); err != nil {
		return nil, err
	}
	row, err := x.fetchClient(ctx, username)
	if err != nil {
		return nil, err
	}
	return x.toAccount(row), nil
}

func (x *xuiClient) CreateAccount(ctx context.Context, req CreateAccountRequest) (*Account, error) {
	if err := x.Authenticate(ctx); err != nil {
		return nil, err
	}

	inboundID := x.defaultInbound
	if id := pickInboundID(req.Inbounds); id > 0 {
		inboundID = id
	}

	// x-ui stores expiry in milliseconds; a negative value means the clock
	// starts on first connect.
	expiry := int64(0)
	if req.ExpireDays > 0 {
		expiry = time.Now().Add(time.Duration(req.ExpireDays)*24*time.Hour).Unix() * 1000
		if x.startOnFirstUse {
			expiry = -int64(req.ExpireDays) * 86400000
		}
	}

	settings := xuiSettings(map[string]interface{}{
		"id":         uuid.NewString(),
		"flow":       "",
		"email":      req.Username,
		"totalGB":    req.DataLimit,
		"expiryTime": expiry,
		"enable":     true,
		"tgId":       "",
		"subId":      utils.RandomHex(8),
		"reset":      0,
		"comment":    req.Note,
	})

	raw, err := x.postJSON(ctx, x.apiURL("/addClient"), map[string]interface{}{
		"id":       inboundID,
		"settings": settings,
	})
	if err != nil {
		return nil, fmt.Errorf("xui create user failed: %w", err)
	}
	if ok, _ := raw["success"].(bool); !ok {
		return nil, fmt.Errorf("xui create rejected: %v", raw["msg"])
	}

	return x.GetAccount(ctx, req.Username)
}

func (x *xuiClient) ModifyAccount(ctx context.Context, username string, req ModifyAccountRequest) (*Account, error) {
	if err := x.Authenticate(ctx); err != nil {
		return nil, err
	}
	current, err := x.fetchClient(ctx, username)
	if err != nil {
		return nil, err
	}

	inboundID := x.inboundFor(current)
	clientID := strings.TrimSpace(fmt.Sprintf("%v", current["id"]))
	if clientID == "" || clientID == "<nil>" {
		return nil, fmt.Errorf("xui client id missing for %s", username)
	}

	enable := anyBool(current["enable"], true)
	switch strings.ToLower(strings.TrimSpace(req.Status)) {
	case "active":
		enable = true
	case "disable", "disabled":
		enable = false
	}

	dataLimit := anyInt64(current["total"])
	if req.DataLimit > 0 {
		dataLimit = req.DataLimit
	}

	expiry := anyInt64(current["expiryTime"])
	if req.ExpireTime > 0 {
		expiry = req.ExpireTime * 1000
	}

	settings := xuiSettings(map[string]interface{}{
		"id":         current["id"],
		"flow":       current["flow"],
		"email":      current["email"],
		"totalGB":    dataLimit,
		"expiryTime": expiry,
		"enable":     enable,
		"subId":      current["subId"],
		"comment":    req.Note,
	})

	raw, err := x.postJSON(ctx, x.apiURL("/updateClient/", clientID), map[string]interface{}{
		"id":       inboundID,
		"settings": settings,
	})
	if err != nil {
		return nil, fmt.Errorf("xui modify user failed: %w", err)
	}
	if ok, _ := raw["success"].(bool); !ok {
		return nil, fmt.Errorf("xui modify rejected: %v", raw["msg"])
	}

	return x.GetAccount(ctx, username)
}

func (x *xuiClient) DeleteAccount(ctx context.Context, username string) error {
	if err := x.Authenticate(ctx); err != nil {
		return err
	}
	current, err := x.fetchClient(ctx, username)
	if err != nil {
		return err
	}
	url := fmt.Sprintf("%s/%d/delClientByEmail/%s", x.apiURL(), x.inboundFor(current), username)
	_, err = x.client.Post(ctx, url, nil)
	return err
}

func (x *xuiClient) EnableAccount(ctx context.Context, username string) error {
	_, err := x.ModifyAccount(ctx, username, ModifyAccountRequest{Status: "active"})
	return err
}

func (x *xuiClient) DisableAccount(ctx context.Context, username string) error {
	_, err := x.ModifyAccount(ctx, username, ModifyAccountRequest{Status: "disabled"})
	return err
}

func (x *xuiClient) ResetTraffic(ctx context.Context, username string) error {
	if err := x.Authenticate(ctx); err != nil {
		return err
	}
	current, err := x.fetchClient(ctx, username)
	if err != nil {
		return err
	}
	url := fmt.Sprintf("%s/%d/resetClientTraffic/%s", x.apiURL(), x.inboundFor(current), username)
	_, err = x.client.Post(ctx, url, nil)
	return err
}

func (x *xuiClient) RevokeSubscription(ctx context.Context, username string) (string, error) {
	acc, err := x.GetAccount(ctx, username)
	if err != nil {
		return "", err
	}
	return acc.SubLink, nil
}

func (x *xuiClient) GetInbounds(ctx context.Context) ([]Inbound, error) {
	if err := x.Authenticate(ctx); err != nil {
		return nil, err
	}
	resp, err := x.client.Get(ctx, x.apiURL())
	if err != nil {
		return nil, err
	}
	var raw map[string]interface{}
	if err := json.Unmarshal(resp, &raw); err != nil {
		return nil, err
	}
	items, _ := raw["obj"].([]interface{})
	out := make([]Inbound, 0, len(items))
	for _, item := range items {
		m, ok := item.(map[string]interface{})
		if !ok {
			continue
		}
		out = append(out, Inbound{
			Tag:      strings.TrimSpace(fmt.Sprintf("%v", m["id"])),
			Protocol: jsonString(m, "protocol"),
			Port:     int(anyInt64(m["port"])),
			Remark:   jsonString(m, "remark"),
		})
	}
	return out, nil
}

func (x *xuiClient) GetSubscriptionLink(ctx context.Context, username string) (string, error) {
	acc, err := x.GetAccount(ctx, username)
	if err != nil {
		return "", err
	}
	return acc.SubLink, nil
}

func (x *xuiClient) postJSON(ctx context.Context, url string, body map[string]interface{}) (map[string]interface{}, error) {
	resp, err := x.client.Post(ctx, url, body)
	if err != nil {
		return nil, err
	}
	var raw map[string]interface{}
	if err := json.Unmarshal(resp, &raw); err != nil {
		return nil, err
	}
	return raw, nil
}

func (x *xuiClient) inboundFor(row map[string]interface{}) int {
	if id := int(anyInt64(row["inboundId"])); id > 0 {
		return id
	}
	return x.defaultInbound
}

// fetchClient looks up a client row by email. The traffic endpoint is tried
// first; older panels only expose the full inbound list.
func (x *xuiClient) fetchClient(ctx context.Context, username string) (map[string]interface{}, error) {
	resp, err := x.client.Get(ctx, x.apiURL("/getClientTraffics/", username))
	if err == nil {
		var raw map[string]interface{}
		if json.Unmarshal(resp, &raw) == nil {
			if ok, _ := raw["success"].(bool); ok {
				if obj, ok := raw["obj"].(map[string]interface{}); ok && len(obj) > 0 {
					return obj, nil
				}
			}
		}
	}

	resp, err = x.client.Get(ctx, x.apiURL())
	if err != nil {
		return nil, err
	}
	var raw map[string]interface{}
	if err := json.Unmarshal(resp, &raw); err != nil {
		return nil, err
	}

	items, _ := raw["obj"].([]interface{})
	for _, item := range items {
		inbound, ok := item.(map[string]interface{})
		if !ok {
			continue
		}

		var settings map[string]interface{}
		_ = json.Unmarshal([]byte(fmt.Sprintf("%v", inbound["settings"])), &settings)
		clients, _ := settings["clients"].([]interface{})

		var match map[string]interface{}
		for _, c := range clients {
			cm, ok := c.(map[string]interface{})
			if !ok {
				continue
			}
			if strings.EqualFold(strings.TrimSpace(fmt.Sprintf("%v", cm["email"])), username) {
				match = cm
				break
			}
		}
		if match == nil {
			continue
		}

		row := map[string]interface{}{
			"inboundId":  inbound["id"],
			"id":         match["id"],
			"email":      match["email"],
			"flow":       match["flow"],
			"subId":      match["subId"],
			"expiryTime": match["expiryTime"],
			"enable":     match["enable"],
			"total":      match["totalGB"],
		}
		if row["enable"] == nil {
			row["enable"] = true
		}

		for _, st := range mustSlice(inbound["clientStats"]) {
			sm, ok := st.(map[string]interface{})
			if !ok {
				continue
			}
			if strings.EqualFold(strings.TrimSpace(fmt.Sprintf("%v", sm["email"])), username) {
				row["up"] = sm["up"]
				row["down"] = sm["down"]
				row["lastOnline"] = sm["lastOnline"]
				break
			}
		}
		return row, nil
	}
	return nil, fmt.Errorf("xui user %s not found", username)
}

func (x *xuiClient) toAccount(row map[string]interface{}) *Account {
	expiryMS := anyInt64(row["expiryTime"])
	expire := int64(0)
	if expiryMS > 0 {
		expire = expiryMS / 1000
	}

	total := anyInt64(row["total"])
	used := anyInt64(row["up"]) + anyInt64(row["down"])

	status := "active"
	switch {
	case !anyBool(row["enable"], true):
		status = "disabled"
	case total > 0 && used >= total:
		status = "limited"
	case expire > 0 && expire <= time.Now().Unix():
		status = "expired"
	case expiryMS < -10000:
		status = "on_hold"
	}

	subLink := ""
	if subID := strings.TrimSpace(fmt.Sprintf("%v", row["subId"])); subID != "" && subID != "<nil>" && x.linkSub != "" {
		subLink = strings.TrimRight(x.linkSub, "/") + "/" + subID
	}

	return &Account{
		Username:    strings.TrimSpace(fmt.Sprintf("%v", row["email"])),
		Status:      status,
		DataLimit:   total,
		UsedTraffic: used,
		ExpireTime:  expire,
		SubLink:     subLink,
		OnlineAt:    anyInt64(row["lastOnline"]) / 1000,
		Links:       []string{},
	}
}

// xuiSettings wraps a single client object in the JSON-string envelope the
// x-ui API expects.
func xuiSettings(client map[string]interface{}) string {
	b, _ := json.Marshal(map[string]interface{}{
		"clients":    []map[string]interface{}{client},
		"decryption": "none",
		"fallbacks":  []interface{}{},
	})
	return string(b)
}

// pickInboundID treats numeric inbound tags as x-ui inbound IDs.
func pickInboundID(inbounds map[string][]string) int {
	for proto, tags := range inbounds {
		if len(tags) == 0 {
			if n, err := strconv.Atoi(strings.TrimSpace(proto)); err == nil && n > 0 {
				return n
			}
		}
		for _, tag := range tags {
			if n, err := strconv.Atoi(strings.TrimSpace(tag)); err == nil && n > 0 {
				return n
			}
		}
	}
	return 0
}

func mustSlice(v interface{}) []interface{} {
	s, _ := v.([]interface{})
	return s
}

func anyInt64(v interface{}) int64 {
	switch t := v.(type) {
	case float64:
		return int64(t)
	case int64:
		return t
	case int:
		return int64(t)
	case json.Number:
		n, _ := t.Int64()
		return n
	case string:
		n, _ := strconv.ParseInt(strings.TrimSpace(t), 10, 64)
		return n
	}
	return 0
}

func anyBool(v interface{}, def bool) bool {
	switch t := v.(type) {
	case bool:
		return t
	case float64:
		return t != 0
	case int:
		return t != 0
	case string:
		switch strings.ToLower(strings.TrimSpace(t)) {
		case "1", "true", "yes", "on":
			return true
		case "0", "false", "no", "off":
			return false
		}
	}
	return def
}
