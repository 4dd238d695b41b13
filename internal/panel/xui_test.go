package panel

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func xuiStub(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()

	mux.HandleFunc("/login", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		json.NewEncoder(w).Encode(map[string]interface{}{"success": true})
	})

	mux.HandleFunc("/panel/api/inbounds/getClientTraffics/alice", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{
			"success": true,
			"obj": map[string]interface{}{
				"inboundId":  2,
				"email":      "alice",
				"up":         1000,
				"down":       2000,
				"total":      1073741824,
				"expiryTime": 0,
				"enable":     true,
			},
		})
	})

	// older panels have no traffic endpoint, only the inbound list
	mux.HandleFunc("/panel/api/inbounds/getClientTraffics/bob", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{"success": false})
	})

	inboundSettings, _ := json.Marshal(map[string]interface{}{
		"clients": []map[string]interface{}{
			{
				"id":         "uuid-bob",
				"email":      "bob",
				"subId":      "sub-bob",
				"totalGB":    2147483648,
				"expiryTime": 0,
				"enable":     true,
			},
		},
	})
	mux.HandleFunc("/panel/api/inbounds", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{
			"success": true,
			"obj": []map[string]interface{}{
				{
					"id":       3,
					"protocol": "vless",
					"port":     443,
					"remark":   "main",
					"settings": string(inboundSettings),
					"clientStats": []map[string]interface{}{
						{"email": "bob", "up": 500, "down": 700, "lastOnline": 1700000000000},
					},
				},
			},
		})
	})

	mux.HandleFunc("/panel/api/inbounds/addClient", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]interface{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		var settings map[string]interface{}
		require.NoError(t, json.Unmarshal([]byte(body["settings"].(string)), &settings))
		clients := settings["clients"].([]interface{})
		require.Len(t, clients, 1)
		if clients[0].(map[string]interface{})["email"] != "alice" {
			json.NewEncoder(w).Encode(map[string]interface{}{"success": false, "msg": "duplicate email"})
			return
		}
		json.NewEncoder(w).Encode(map[string]interface{}{"success": true})
	})

	return httptest.NewServer(mux)
}

func newTestXUI(t *testing.T, baseURL, linkSub string) Client {
	t.Helper()
	return NewXUIClient(baseURL, "admin", "pass", "2", linkSub, false)
}

func TestXUIGetAccountTrafficEndpoint(t *testing.T) {
	srv := xuiStub(t)
	defer srv.Close()

	c := newTestXUI(t, srv.URL, "")
	acc, err := c.GetAccount(context.Background(), "alice")
	require.NoError(t, err)

	assert.Equal(t, "alice", acc.Username)
	assert.Equal(t, "active", acc.Status)
	assert.Equal(t, int64(1073741824), acc.DataLimit)
	assert.Equal(t, int64(3000), acc.UsedTraffic)
	assert.Zero(t, acc.ExpireTime)
}

func TestXUIGetAccountInboundListFallback(t *testing.T) {
	srv := xuiStub(t)
	defer srv.Close()

	c := newTestXUI(t, srv.URL, "https://sub.example.com/")
	acc, err := c.GetAccount(context.Background(), "bob")
	require.NoError(t, err)

	assert.Equal(t, "bob", acc.Username)
	assert.Equal(t, int64(2147483648), acc.DataLimit)
	assert.Equal(t, int64(1200), acc.UsedTraffic)
	assert.Equal(t, "https://sub.example.com/sub-bob", acc.SubLink)
	assert.Equal(t, int64(1700000000), acc.OnlineAt)
}

func TestXUIGetAccountNotFound(t *testing.T) {
	srv := xuiStub(t)
	defer srv.Close()

	c := newTestXUI(t, srv.URL, "")
	_, err := c.GetAccount(context.Background(), "carol")
	assert.Error(t, err)
}

func TestXUICreateAccount(t *testing.T) {
	srv := xuiStub(t)
	defer srv.Close()

	c := newTestXUI(t, srv.URL, "")
	acc, err := c.CreateAccount(context.Background(), CreateAccountRequest{
		Username:   "alice",
		DataLimit:  1073741824,
		ExpireDays: 30,
	})
	require.NoError(t, err)
	assert.Equal(t, "alice", acc.Username)
}

func TestXUICreateAccountRejected(t *testing.T) {
	srv := xuiStub(t)
	defer srv.Close()

	c := newTestXUI(t, srv.URL, "")
	_, err := c.CreateAccount(context.Background(), CreateAccountRequest{Username: "dup"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate email")
}

func TestXUIGetInbounds(t *testing.T) {
	srv := xuiStub(t)
	defer srv.Close()

	c := newTestXUI(t, srv.URL, "")
	inbounds, err := c.GetInbounds(context.Background())
	require.NoError(t, err)
	require.Len(t, inbounds, 1)
	assert.Equal(t, "3", inbounds[0].Tag)
	assert.Equal(t, "vless", inbounds[0].Protocol)
	assert.Equal(t, 443, inbounds[0].Port)
	assert.Equal(t, "main", inbounds[0].Remark)
}

func TestXUIToAccountStatus(t *testing.T) {
	x := &xuiClient{linkSub: ""}

	acc := x.toAccount(map[string]interface{}{"email": "a", "enable": false})
	assert.Equal(t, "disabled", acc.Status)

	acc = x.toAccount(map[string]interface{}{"email": "a", "enable": true, "total": 100, "up": 60, "down": 50})
	assert.Equal(t, "limited", acc.Status)

	expired := (time.Now().Unix() - 3600) * 1000
	acc = x.toAccount(map[string]interface{}{"email": "a", "enable": true, "expiryTime": expired})
	assert.Equal(t, "expired", acc.Status)

	acc = x.toAccount(map[string]interface{}{"email": "a", "enable": true, "expiryTime": -86400000})
	assert.Equal(t, "on_hold", acc.Status)

	acc = x.toAccount(map[string]interface{}{"email": "a", "enable": true})
	assert.Equal(t, "active", acc.Status)
}

func TestXUISettingsEnvelope(t *testing.T) {
	s := xuiSettings(map[string]interface{}{"id": "uuid-1", "email": "alice"})

	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(s), &decoded))
	clients := decoded["clients"].([]interface{})
	require.Len(t, clients, 1)
	assert.Equal(t, "alice", clients[0].(map[string]interface{})["email"])
	assert.Equal(t, "none", decoded["decryption"])
}

func TestPickInboundID(t *testing.T) {
	assert.Equal(t, 3, pickInboundID(map[string][]string{"vless": {"3"}}))
	assert.Equal(t, 5, pickInboundID(map[string][]string{"5": {}}))
	assert.Zero(t, pickInboundID(map[string][]string{"vless": {"VLESS_TCP"}}))
	assert.Zero(t, pickInboundID(nil))
}

func TestAnyInt64(t *testing.T) {
	assert.Equal(t, int64(7), anyInt64(float64(7)))
	assert.Equal(t, int64(7), anyInt64(int64(7)))
	assert.Equal(t, int64(7), anyInt64(7))
	assert.Equal(t, int64(7), anyInt64(" 7 "))
	assert.Zero(t, anyInt64(nil))
	assert.Zero(t, anyInt64("abc"))
}

func TestAnyBool(t *testing.T) {
	assert.True(t, anyBool(true, false))
	assert.False(t, anyBool(false, true))
	assert.True(t, anyBool(float64(1), false))
	assert.True(t, anyBool("on", false))
	assert.False(t, anyBool("0", true))
	assert.True(t, anyBool(nil, true))
	assert.False(t, anyBool("maybe", false))
}
