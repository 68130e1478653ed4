package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"dealflow-billing/internal/config"
	"dealflow-billing/internal/domain/model"
	"dealflow-billing/internal/domain/ports/adapter"
)

// RazorpayGateway implements PaymentGateway using direct HTTP calls
// against the Razorpay v1 API.
type RazorpayGateway struct {
	keyID     string
	keySecret string
	baseURL   string
	allowTest bool
	client    *http.Client
}

var _ adapter.PaymentGateway = (*RazorpayGateway)(nil)

func NewRazorpayGateway(cfg *config.GatewayConfig, dev bool) *RazorpayGateway {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = "https://api.razorpay.com/v1"
	}
	return &RazorpayGateway{
		keyID:     cfg.KeyID,
		keySecret: cfg.KeySecret,
		baseURL:   baseURL,
		allowTest: dev,
		client:    &http.Client{Timeout: cfg.Timeout},
	}
}

func (g *RazorpayGateway) Name() model.GatewayKind { return model.GatewayRazorpay }

// razorpayOrderResponse is the subset of the order-create response we use.
type razorpayOrderResponse struct {
	ID       string `json:"id"`
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
	Status   string `json:"status"`
}

type razorpayRefundResponse struct {
	ID     string `json:"id"`
	Amount int64  `json:"amount"`
	Status string `json:"status"`
}

type razorpayPaymentResponse struct {
	ID       string `json:"id"`
	Status   string `json:"status"`
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
}

func (g *RazorpayGateway) CreateOrder(ctx context.Context, intent *model.PaymentIntent) (*adapter.GatewayOrder, error) {
	payload := map[string]interface{}{
		"amount":   intent.AmountMinor,
		"currency": intent.Currency,
		"receipt":  intent.Description,
	}
	if len(intent.Meta) > 0 {
		payload["notes"] = intent.Meta
	}

	var out razorpayOrderResponse
	if err := g.do(ctx, http.MethodPost, "/orders", payload, &out); err != nil {
		return nil, err
	}
	return &adapter.GatewayOrder{
		OrderID:     out.ID,
		AmountMinor: out.Amount,
		Currency:    out.Currency,
		Handle:      g.keyID, // the client needs the public key id to open checkout
	}, nil
}

func (g *RazorpayGateway) VerifySignature(orderID, paymentID, signature string) bool {
	return verifySignature(g.keySecret, orderID, paymentID, signature, g.allowTest)
}

func (g *RazorpayGateway) Refund(ctx context.Context, gatewayPaymentID string, amountMinor int64, reason string) (*adapter.GatewayRefund, error) {
	payload := map[string]interface{}{
		"amount": amountMinor,
		"notes":  map[string]string{"reason": reason},
	}
	var out razorpayRefundResponse
	path := fmt.Sprintf("/payments/%s/refund", gatewayPaymentID)
	if err := g.do(ctx, http.MethodPost, path, payload, &out); err != nil {
		return nil, err
	}
	return &adapter.GatewayRefund{RefundID: out.ID, AmountMinor: out.Amount, Status: out.Status}, nil
}

// FetchStatus accepts either reference kind: order ids carry the
// "order_" prefix and are looked up on the orders endpoint, anything
// else is treated as a payment id.
func (g *RazorpayGateway) FetchStatus(ctx context.Context, ref string) (*adapter.GatewayStatus, error) {
	if strings.HasPrefix(ref, "order_") {
		var out razorpayOrderResponse
		if err := g.do(ctx, http.MethodGet, "/orders/"+ref, nil, &out); err != nil {
			return nil, err
		}
		return &adapter.GatewayStatus{
			PaymentID:   out.ID,
			Status:      out.Status,
			AmountMinor: out.Amount,
			Currency:    out.Currency,
		}, nil
	}
	var out razorpayPaymentResponse
	if err := g.do(ctx, http.MethodGet, "/payments/"+ref, nil, &out); err != nil {
		return nil, err
	}
	return &adapter.GatewayStatus{
		PaymentID:   out.ID,
		Status:      out.Status,
		AmountMinor: out.Amount,
		Currency:    out.Currency,
	}, nil
}

func (g *RazorpayGateway) do(ctx context.Context, method, path string, payload, out interface{}) error {
	var body io.Reader
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, g.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.SetBasicAuth(g.keyID, g.keySecret)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := g.client.Do(req)
	if err != nil {
		return fmt.Errorf("razorpay request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read razorpay response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("razorpay error: status %d, body: %s", resp.StatusCode, string(raw))
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("unmarshal razorpay response: %w, body: %s", err, string(raw))
	}
	return nil
}
