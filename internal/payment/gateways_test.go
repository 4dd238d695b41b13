package payment

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry(t *testing.T) {
	r := NewRegistry(
		NewZarinPalGateway("merchant", false),
		NewCardToCardGateway(),
	)

	require.NotNil(t, r.Get("zarinpal"))
	require.NotNil(t, r.Get("card"))
	assert.Nil(t, r.Get("nowpayments"))
	assert.ElementsMatch(t, []string{"zarinpal", "card"}, r.Names())
}

func TestZarinPalCreatePayment(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/pg/v4/payment/request.json", r.URL.Path)

		var body map[string]interface{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "merchant", body["merchant_id"])
		assert.EqualValues(t, 50000, body["amount"])

		json.NewEncoder(w).Encode(map[string]interface{}{
			"data": map[string]interface{}{"authority": "A0001", "code": 100},
		})
	}))
	defer srv.Close()

	gw := NewZarinPalGateway("merchant", false)
	gw.apiBase = srv.URL
	gw.startPay = srv.URL + "/pg/StartPay/"

	result, err := gw.CreatePayment(context.Background(), 50000, "ORD-1", "test", "https://cb")
	require.NoError(t, err)
	assert.Equal(t, "A0001", result.Authority)
	assert.Equal(t, srv.URL+"/pg/StartPay/A0001", result.PaymentURL)
	assert.Equal(t, "ORD-1", result.OrderID)
}

func TestZarinPalCreatePaymentNoAuthority(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{
			"data":   map[string]interface{}{},
			"errors": map[string]interface{}{"code": -9},
		})
	}))
	defer srv.Close()

	gw := NewZarinPalGateway("merchant", false)
	gw.apiBase = srv.URL

	_, err := gw.CreatePayment(context.Background(), 50000, "ORD-1", "test", "https://cb")
	assert.Error(t, err)
}

func TestZarinPalVerifyPayment(t *testing.T) {
	tests := []struct {
		name     string
		code     int
		verified bool
	}{
		{"code 100 verified", 100, true},
		{"code 101 already verified", 101, true},
		{"other code rejected", -51, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				require.Equal(t, "/pg/v4/payment/verify.json", r.URL.Path)
				json.NewEncoder(w).Encode(map[string]interface{}{
					"data": map[string]interface{}{"code": tt.code, "ref_id": 987654},
				})
			}))
			defer srv.Close()

			gw := NewZarinPalGateway("merchant", false)
			gw.apiBase = srv.URL

			result, err := gw.VerifyPayment(context.Background(), "A0001", 50000)
			require.NoError(t, err)
			assert.Equal(t, tt.verified, result.Verified)
			if tt.verified {
				assert.Equal(t, "987654", result.RefID)
			}
		})
	}
}

func TestNOWPaymentsCreatePayment(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v1/invoice", r.URL.Path)
		assert.Equal(t, "secret-key", r.Header.Get("x-api-key"))

		json.NewEncoder(w).Encode(map[string]interface{}{
			"id":          "inv-9",
			"invoice_url": "https://nowpayments.io/payment/inv-9",
		})
	}))
	defer srv.Close()

	gw := NewNOWPaymentsGateway("secret-key")
	gw.apiBase = srv.URL

	result, err := gw.CreatePayment(context.Background(), 10, "ORD-2", "test", "https://cb")
	require.NoError(t, err)
	assert.Equal(t, "inv-9", result.InvoiceID)
	assert.Equal(t, "https://nowpayments.io/payment/inv-9", result.PaymentURL)
}

func TestNOWPaymentsVerifyPayment(t *testing.T) {
	tests := []struct {
		status   string
		verified bool
	}{
		{"finished", true},
		{"confirmed", true},
		{"waiting", false},
		{"failed", false},
	}
	for _, tt := range tests {
		t.Run(tt.status, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				require.Equal(t, "/v1/payment/pay-1", r.URL.Path)
				json.NewEncoder(w).Encode(map[string]interface{}{
					"payment_id":     "pay-1",
					"payment_status": tt.status,
				})
			}))
			defer srv.Close()

			gw := NewNOWPaymentsGateway("secret-key")
			gw.apiBase = srv.URL

			result, err := gw.VerifyPayment(context.Background(), "pay-1", 10)
			require.NoError(t, err)
			assert.Equal(t, tt.verified, result.Verified)
		})
	}
}

func TestAqayePardakhtCreatePayment(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/v2/create", r.URL.Path)

		var body map[string]interface{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "pin-1", body["pin"])
		assert.Equal(t, "ORD-3", body["invoice_id"])

		json.NewEncoder(w).Encode(map[string]interface{}{
			"status":  "success",
			"transid": "TR-77",
		})
	}))
	defer srv.Close()

	gw := NewAqayePardakhtGateway("pin-1")
	gw.apiBase = srv.URL

	result, err := gw.CreatePayment(context.Background(), 20000, "ORD-3", "test", "https://cb")
	require.NoError(t, err)
	assert.Equal(t, "TR-77", result.Authority)
	assert.Equal(t, srv.URL+"/startpay/TR-77", result.PaymentURL)
}

func TestAqayePardakhtCreatePaymentRejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{
			"status": "error",
			"code":   "2",
		})
	}))
	defer srv.Close()

	gw := NewAqayePardakhtGateway("pin-1")
	gw.apiBase = srv.URL

	_, err := gw.CreatePayment(context.Background(), 20000, "ORD-3", "test", "https://cb")
	assert.Error(t, err)
}

func TestAqayePardakhtVerifyPayment(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/v2/verify", r.URL.Path)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"status": "success",
			"code":   "1",
		})
	}))
	defer srv.Close()

	gw := NewAqayePardakhtGateway("pin-1")
	gw.apiBase = srv.URL

	result, err := gw.VerifyPayment(context.Background(), "TR-77", 20000)
	require.NoError(t, err)
	assert.True(t, result.Verified)
	assert.Equal(t, "TR-77", result.RefID)
}

func TestAqayePardakhtVerifyAlreadySpent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{
			"status": "success",
			"code":   "2",
		})
	}))
	defer srv.Close()

	gw := NewAqayePardakhtGateway("pin-1")
	gw.apiBase = srv.URL

	result, err := gw.VerifyPayment(context.Background(), "TR-77", 20000)
	require.NoError(t, err)
	assert.False(t, result.Verified)
}

func TestCardToCardGateway(t *testing.T) {
	gw := NewCardToCardGateway()

	result, err := gw.CreatePayment(context.Background(), 1000, "ORD-4", "", "")
	require.NoError(t, err)
	assert.Equal(t, "ORD-4", result.OrderID)
	assert.Empty(t, result.PaymentURL)

	verify, err := gw.VerifyPayment(context.Background(), "", 1000)
	require.NoError(t, err)
	assert.False(t, verify.Verified)
}
