// File: internal/infra/gateway/checkout_gateway.go
package gateway

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"wisestudent-purchase/internal/config"
	"wisestudent-purchase/internal/domain/ports/adapter"
	"wisestudent-purchase/internal/infra/metrics"
)

var _ adapter.PaymentGateway = (*CheckoutGateway)(nil)

// CheckoutGateway implements adapter.PaymentGateway against a Razorpay-style
// orders REST API with basic-auth key id/secret and HMAC-SHA256 payment
// signatures over "order_id|payment_id".
type CheckoutGateway struct {
	baseURL   string
	keyID     string
	keySecret string

	initOnce sync.Once
	client   *http.Client
}

func NewCheckoutGateway(cfg config.GatewayConfig) (*CheckoutGateway, error) {
	if cfg.KeyID == "" || cfg.KeySecret == "" {
		return nil, errors.New("gateway key id/secret empty")
	}
	base := cfg.BaseURL
	if base == "" {
		base = "https://api.razorpay.com/v1"
	}
	return &CheckoutGateway{
		baseURL:   base,
		keyID:     cfg.KeyID,
		keySecret: cfg.KeySecret,
	}, nil
}

func (g *CheckoutGateway) Name() string { return "razorpay" }

// httpClient builds the underlying client lazily, once per process;
// concurrent first callers share the same instance.
func (g *CheckoutGateway) httpClient() *http.Client {
	g.initOnce.Do(func() {
		g.client = &http.Client{Timeout: 15 * time.Second}
	})
	return g.client
}

// CreateOrder posts /orders with receipt=intentID. The gateway treats the
// receipt as an idempotency key: when it answers that an order already
// exists for this receipt, the existing handle is fetched and returned.
func (g *CheckoutGateway) CreateOrder(ctx context.Context, intentID string, amount int64, currency string) (adapter.OrderHandle, error) {
	start := time.Now()
	handle, err := g.createOrder(ctx, intentID, amount, currency)
	metrics.ObserveGatewayCall("create_order", time.Since(start).Seconds(), err)
	return handle, err
}

func (g *CheckoutGateway) createOrder(ctx context.Context, intentID string, amount int64, currency string) (adapter.OrderHandle, error) {
	payload := map[string]any{
		"amount":   amount,
		"currency": currency,
		"receipt":  intentID,
	}
	b, _ := json.Marshal(payload)
	req, _ := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+"/orders", bytes.NewReader(b))
	req.Header.Set("Content-Type", "application/json")
	req.SetBasicAuth(g.keyID, g.keySecret)

	resp, err := g.httpClient().Do(req)
	if err != nil {
		return adapter.OrderHandle{}, err
	}
	defer resp.Body.Close()

	var out struct {
		ID    string `json:"id"`
		Error struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return adapter.OrderHandle{}, err
	}
	if resp.StatusCode == http.StatusBadRequest && out.Error.Code == "BAD_REQUEST_ERROR" {
		// Possibly a duplicate receipt; the order made it through on an
		// earlier attempt whose response we lost.
		if existing, ferr := g.findByReceipt(ctx, intentID); ferr == nil {
			return existing, nil
		}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 || out.ID == "" {
		return adapter.OrderHandle{}, fmt.Errorf("gateway order create http %d: %s", resp.StatusCode, out.Error.Description)
	}
	return adapter.OrderHandle{OrderID: out.ID, Credential: g.keyID}, nil
}

// findByReceipt lists orders filtered by receipt to recover the handle of an
// order created by a lost earlier attempt.
func (g *CheckoutGateway) findByReceipt(ctx context.Context, receipt string) (adapter.OrderHandle, error) {
	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, g.baseURL+"/orders?receipt="+receipt, nil)
	req.SetBasicAuth(g.keyID, g.keySecret)

	resp, err := g.httpClient().Do(req)
	if err != nil {
		return adapter.OrderHandle{}, err
	}
	defer resp.Body.Close()

	var out struct {
		Items []struct {
			ID string `json:"id"`
		} `json:"items"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return adapter.OrderHandle{}, err
	}
	if len(out.Items) == 0 {
		return adapter.OrderHandle{}, errors.New("no order for receipt")
	}
	return adapter.OrderHandle{OrderID: out.Items[0].ID, Credential: g.keyID}, nil
}

// VerifySignature checks the checkout success payload: HMAC-SHA256 of
// "order_id|payment_id" keyed with the secret, compared in constant time.
func (g *CheckoutGateway) VerifySignature(p adapter.SuccessPayload) bool {
	if p.OrderID == "" || p.PaymentID == "" || p.Signature == "" {
		return false
	}
	mac := hmac.New(sha256.New, []byte(g.keySecret))
	mac.Write([]byte(p.OrderID + "|" + p.PaymentID))
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(p.Signature))
}

// FetchOrderStatus asks the gateway for the order's current state.
func (g *CheckoutGateway) FetchOrderStatus(ctx context.Context, orderID string) (adapter.OrderState, error) {
	start := time.Now()
	state, err := g.fetchOrderStatus(ctx, orderID)
	metrics.ObserveGatewayCall("fetch_order", time.Since(start).Seconds(), err)
	return state, err
}

func (g *CheckoutGateway) fetchOrderStatus(ctx context.Context, orderID string) (adapter.OrderState, error) {
	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, g.baseURL+"/orders/"+orderID+"/payments", nil)
	req.SetBasicAuth(g.keyID, g.keySecret)

	resp, err := g.httpClient().Do(req)
	if err != nil {
		return adapter.OrderState{}, err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return adapter.OrderState{}, fmt.Errorf("gateway order fetch http %d", resp.StatusCode)
	}

	var out struct {
		Items []struct {
			ID     string `json:"id"`
			Status string `json:"status"`
		} `json:"items"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return adapter.OrderState{}, err
	}
	state := adapter.OrderState{OrderID: orderID, Status: "created"}
	for _, p := range out.Items {
		switch p.Status {
		case "captured":
			return adapter.OrderState{OrderID: orderID, Status: "paid", PaymentID: p.ID}, nil
		case "authorized", "failed":
			state.Status = "attempted"
		}
	}
	return state, nil
}

// VerifyWebhookSignature checks the X-Webhook-Signature header over the raw
// body with the dedicated webhook secret.
func VerifyWebhookSignature(body []byte, signature, secret string) bool {
	if signature == "" || secret == "" {
		return false
	}
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(signature))
}
