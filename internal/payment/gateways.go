package payment

import (
	"context"
	"encoding/json"
	"fmt"

	"sellerbot/internal/pkg/httpclient"
)

// ZarinPalGateway implements the Gateway interface for ZarinPal.
type ZarinPalGateway struct {
	merchantID string
	sandbox    bool
	apiBase    string
	startPay   string
	client     *httpclient.Client
}

func NewZarinPalGateway(merchantID string, sandbox bool) *ZarinPalGateway {
	g := &ZarinPalGateway{
		merchantID: merchantID,
		sandbox:    sandbox,
		apiBase:    "https://api.zarinpal.com",
		startPay:   "https://www.zarinpal.com/pg/StartPay/",
		client:     httpclient.New(),
	}
	if sandbox {
		g.apiBase = "https://sandbox.zarinpal.com"
		g.startPay = "https://sandbox.zarinpal.com/pg/StartPay/"
	}
	return g
}

func (z *ZarinPalGateway) Name() string {
	return "zarinpal"
}

func (z *ZarinPalGateway) CreatePayment(ctx context.Context, amount int, orderID, description, callbackURL string) (*PaymentResult, error) {
	body := map[string]interface{}{
		"merchant_id":  z.merchantID,
		"amount":       amount,
		"description":  description,
		"callback_url": callbackURL,
	}

	resp, err := z.client.Post(ctx, z.apiBase+"/pg/v4/payment/request.json", body)
	if err != nil {
		return nil, fmt.Errorf("zarinpal create payment failed: %w", err)
	}

	var result map[string]interface{}
	if err := json.Unmarshal(resp, &result); err != nil {
		return nil, fmt.Errorf("zarinpal parse error: %w", err)
	}

	data, ok := result["data"].(map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("zarinpal unexpected response format")
	}

	authority, _ := data["authority"].(string)
	if authority == "" {
		return nil, fmt.Errorf("zarinpal no authority returned")
	}

	return &PaymentResult{
		OrderID:    orderID,
		PaymentURL: z.startPay + authority,
		Authority:  authority,
	}, nil
}

func (z *ZarinPalGateway) VerifyPayment(ctx context.Context, authority string, amount int) (*VerifyResult, error) {
	body := map[string]interface{}{
		"merchant_id": z.merchantID,
		"amount":      amount,
		"authority":   authority,
	}

	resp, err := z.client.Post(ctx, z.apiBase+"/pg/v4/payment/verify.json", body)
	if err != nil {
		return nil, fmt.Errorf("zarinpal verify failed: %w", err)
	}

	var result map[string]interface{}
	if err := json.Unmarshal(resp, &result); err != nil {
		return nil, fmt.Errorf("zarinpal verify parse error: %w", err)
	}

	data, ok := result["data"].(map[string]interface{})
	if !ok {
		return &VerifyResult{Verified: false, Message: "invalid response"}, nil
	}

	code, _ := data["code"].(float64)
	refID := fmt.Sprintf("%.0f", data["ref_id"])

	// 100 is verified, 101 is already-verified.
	if code == 100 || code == 101 {
		return &VerifyResult{
			Verified: true,
			RefID:    refID,
		}, nil
	}

	return &VerifyResult{
		Verified: false,
		Message:  fmt.Sprintf("verification failed with code: %.0f", code),
	}, nil
}

// NOWPaymentsGateway implements the Gateway interface for NOWPayments (crypto).
type NOWPaymentsGateway struct {
	apiKey  string
	apiBase string
	client  *httpclient.Client
}

func NewNOWPaymentsGateway(apiKey string) *NOWPaymentsGateway {
	return &NOWPaymentsGateway{
		apiKey:  apiKey,
		apiBase: "https://api.nowpayments.io",
		client: httpclient.New().
			WithHeader("x-api-key", apiKey).
			WithHeader("Content-Type", "application/json"),
	}
}

func (n *NOWPaymentsGateway) Name() string {
	return "nowpayments"
}

func (n *NOWPaymentsGateway) CreatePayment(ctx context.Context, amount int, orderID, description, callbackURL string) (*PaymentResult, error) {
	body := map[string]interface{}{
		"price_amount":      amount,
		"price_currency":    "usd",
		"order_id":          orderID,
		"order_description": description,
		"ipn_callback_url":  callbackURL,
	}

	resp, err := n.client.Post(ctx, n.apiBase+"/v1/invoice", body)
	if err != nil {
		return nil, fmt.Errorf("nowpayments create failed: %w", err)
	}

	var result map[string]interface{}
	if err := json.Unmarshal(resp, &result); err != nil {
		return nil, fmt.Errorf("nowpayments parse error: %w", err)
	}

	invoiceURL, _ := result["invoice_url"].(string)
	if invoiceURL == "" {
		return nil, fmt.Errorf("nowpayments no invoice url returned")
	}

	return &PaymentResult{
		OrderID:    orderID,
		PaymentURL: invoiceURL,
		InvoiceID:  fmt.Sprintf("%v", result["id"]),
	}, nil
}

func (n *NOWPaymentsGateway) VerifyPayment(ctx context.Context, paymentID string, amount int) (*VerifyResult, error) {
	resp, err := n.client.Get(ctx, n.apiBase+"/v1/payment/"+paymentID)
	if err != nil {
		return nil, fmt.Errorf("nowpayments verify failed: %w", err)
	}

	var result map[string]interface{}
	if err := json.Unmarshal(resp, &result); err != nil {
		return nil, fmt.Errorf("nowpayments verify parse error: %w", err)
	}

	status, _ := result["payment_status"].(string)
	if status == "finished" || status == "confirmed" {
		return &VerifyResult{
			Verified: true,
			RefID:    fmt.Sprintf("%v", result["payment_id"]),
		}, nil
	}

	return &VerifyResult{
		Verified: false,
		Message:  "payment status: " + status,
	}, nil
}

// AqayePardakhtGateway implements the Gateway interface for AqayePardakht.
type AqayePardakhtGateway struct {
	pin     string
	apiBase string
	client  *httpclient.Client
}

func NewAqayePardakhtGateway(pin string) *AqayePardakhtGateway {
	return &AqayePardakhtGateway{
		pin:     pin,
		apiBase: "https://panel.aqayepardakht.ir",
		client:  httpclient.New(),
	}
}

func (a *AqayePardakhtGateway) Name() string {
	return "aqayepardakht"
}

func (a *AqayePardakhtGateway) CreatePayment(ctx context.Context, amount int, orderID, description, callbackURL string) (*PaymentResult, error) {
	body := map[string]interface{}{
		"pin":         a.pin,
		"amount":      amount,
		"callback":    callbackURL,
		"invoice_id":  orderID,
		"description": description,
	}

	resp, err := a.client.Post(ctx, a.apiBase+"/api/v2/create", body)
	if err != nil {
		return nil, fmt.Errorf("aqayepardakht create failed: %w", err)
	}

	var result map[string]interface{}
	if err := json.Unmarshal(resp, &result); err != nil {
		return nil, fmt.Errorf("aqayepardakht parse error: %w", err)
	}

	status, _ := result["status"].(string)
	transID, _ := result["transid"].(string)
	if status != "success" || transID == "" {
		return nil, fmt.Errorf("aqayepardakht create rejected: %v", result["code"])
	}

	return &PaymentResult{
		OrderID:    orderID,
		PaymentURL: a.apiBase + "/startpay/" + transID,
		Authority:  transID,
	}, nil
}

func (a *AqayePardakhtGateway) VerifyPayment(ctx context.Context, transID string, amount int) (*VerifyResult, error) {
	body := map[string]interface{}{
		"pin":     a.pin,
		"amount":  amount,
		"transid": transID,
	}

	resp, err := a.client.Post(ctx, a.apiBase+"/api/v2/verify", body)
	if err != nil {
		return nil, fmt.Errorf("aqayepardakht verify failed: %w", err)
	}

	var result map[string]interface{}
	if err := json.Unmarshal(resp, &result); err != nil {
		return nil, fmt.Errorf("aqayepardakht verify parse error: %w", err)
	}

	status, _ := result["status"].(string)
	code := fmt.Sprintf("%v", result["code"])
	if status == "success" && code == "1" {
		return &VerifyResult{
			Verified: true,
			RefID:    transID,
		}, nil
	}

	return &VerifyResult{
		Verified: false,
		Message:  "verification failed with code: " + code,
	}, nil
}

// CardToCardGateway handles manual card-to-card payments.
type CardToCardGateway struct{}

func NewCardToCardGateway() *CardToCardGateway {
	return &CardToCardGateway{}
}

func (c *CardToCardGateway) Name() string {
	return "card"
}

func (c *CardToCardGateway) CreatePayment(ctx context.Context, amount int, orderID, description, callbackURL string) (*PaymentResult, error) {
	// Card-to-card has no online flow, the order is recorded and the user
	// sends a receipt for manual review.
	return &PaymentResult{
		OrderID: orderID,
	}, nil
}

func (c *CardToCardGateway) VerifyPayment(ctx context.Context, authority string, amount int) (*VerifyResult, error) {
	return &VerifyResult{
		Verified: false,
		Message:  "manual verification required",
	}, nil
}
