package payment

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"dealflow-billing/internal/config"
	"dealflow-billing/internal/domain/model"
	"dealflow-billing/internal/domain/ports/adapter"
)

// StripeGateway implements PaymentGateway against the Stripe API.
// A payment intent plays the role of the order; the shared
// orderID|paymentID HMAC scheme (under the webhook secret) keeps the
// verification contract uniform across providers.
type StripeGateway struct {
	apiKey        string
	webhookSecret string
	baseURL       string
	allowTest     bool
	client        *http.Client
}

var _ adapter.PaymentGateway = (*StripeGateway)(nil)

func NewStripeGateway(cfg *config.GatewayConfig, dev bool) *StripeGateway {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = "https://api.stripe.com/v1"
	}
	return &StripeGateway{
		apiKey:        cfg.KeySecret,
		webhookSecret: cfg.WebhookSecret,
		baseURL:       baseURL,
		allowTest:     dev,
		client:        &http.Client{Timeout: cfg.Timeout},
	}
}

func (g *StripeGateway) Name() model.GatewayKind { return model.GatewayStripe }

type stripeIntentResponse struct {
	ID           string `json:"id"`
	Amount       int64  `json:"amount"`
	Currency     string `json:"currency"`
	Status       string `json:"status"`
	ClientSecret string `json:"client_secret"`
}

type stripeRefundResponse struct {
	ID     string `json:"id"`
	Amount int64  `json:"amount"`
	Status string `json:"status"`
}

func (g *StripeGateway) CreateOrder(ctx context.Context, intent *model.PaymentIntent) (*adapter.GatewayOrder, error) {
	form := url.Values{}
	form.Set("amount", strconv.FormatInt(intent.AmountMinor, 10))
	form.Set("currency", strings.ToLower(intent.Currency))
	form.Set("description", intent.Description)

	var out stripeIntentResponse
	if err := g.do(ctx, http.MethodPost, "/payment_intents", form, &out); err != nil {
		return nil, err
	}
	return &adapter.GatewayOrder{
		OrderID:     out.ID,
		AmountMinor: out.Amount,
		Currency:    strings.ToUpper(out.Currency),
		Handle:      out.ClientSecret,
	}, nil
}

func (g *StripeGateway) VerifySignature(orderID, paymentID, signature string) bool {
	return verifySignature(g.webhookSecret, orderID, paymentID, signature, g.allowTest)
}

func (g *StripeGateway) Refund(ctx context.Context, gatewayPaymentID string, amountMinor int64, reason string) (*adapter.GatewayRefund, error) {
	form := url.Values{}
	form.Set("payment_intent", gatewayPaymentID)
	form.Set("amount", strconv.FormatInt(amountMinor, 10))
	if reason != "" {
		form.Set("metadata[reason]", reason)
	}
	var out stripeRefundResponse
	if err := g.do(ctx, http.MethodPost, "/refunds", form, &out); err != nil {
		return nil, err
	}
	return &adapter.GatewayRefund{RefundID: out.ID, AmountMinor: out.Amount, Status: out.Status}, nil
}

func (g *StripeGateway) FetchStatus(ctx context.Context, gatewayPaymentID string) (*adapter.GatewayStatus, error) {
	var out stripeIntentResponse
	if err := g.do(ctx, http.MethodGet, "/payment_intents/"+gatewayPaymentID, nil, &out); err != nil {
		return nil, err
	}
	return &adapter.GatewayStatus{
		PaymentID:   out.ID,
		Status:      out.Status,
		AmountMinor: out.Amount,
		Currency:    strings.ToUpper(out.Currency),
	}, nil
}

func (g *StripeGateway) do(ctx context.Context, method, path string, form url.Values, out interface{}) error {
	var body io.Reader
	if form != nil {
		body = strings.NewReader(form.Encode())
	}
	req, err := http.NewRequestWithContext(ctx, method, g.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.SetBasicAuth(g.apiKey, "")
	if form != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}

	resp, err := g.client.Do(req)
	if err != nil {
		return fmt.Errorf("stripe request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read stripe response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("stripe error: status %d, body: %s", resp.StatusCode, string(raw))
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("unmarshal stripe response: %w, body: %s", err, string(raw))
	}
	return nil
}
