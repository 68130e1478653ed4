package payment

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"dealflow-billing/internal/config"
	"dealflow-billing/internal/domain/model"
	"dealflow-billing/internal/domain/ports/adapter"
)

// TestSignature is the sentinel accepted instead of a real HMAC when the
// gateway was constructed in dev mode. It is gated on process
// configuration only; nothing a client sends can enable it.
const TestSignature = "test_signature"

// NewGateway selects one of the closed set of provider adapters.
// Adding a provider means adding a case here; callers stay untouched.
func NewGateway(kind model.GatewayKind, cfg *config.PaymentConfig, dev bool) (adapter.PaymentGateway, error) {
	switch kind {
	case model.GatewayRazorpay:
		return NewRazorpayGateway(&cfg.Razorpay, dev), nil
	case model.GatewayStripe:
		return NewStripeGateway(&cfg.Stripe, dev), nil
	case model.GatewayNoop:
		return NewNoopGateway(), nil
	default:
		return nil, fmt.Errorf("unknown payment gateway %q", kind)
	}
}

// signPayload computes the hex HMAC-SHA256 of orderID|paymentID under the
// gateway secret. All providers in the set share this signing scheme.
func signPayload(secret, orderID, paymentID string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(orderID + "|" + paymentID))
	return hex.EncodeToString(mac.Sum(nil))
}

// verifySignature compares the expected HMAC against the supplied value in
// constant time. When allowTest is set (dev mode only) the sentinel test
// signature is also accepted.
func verifySignature(secret, orderID, paymentID, signature string, allowTest bool) bool {
	if allowTest && signature == TestSignature {
		return true
	}
	expected := signPayload(secret, orderID, paymentID)
	return hmac.Equal([]byte(expected), []byte(signature))
}

// VerifyWebhookBody checks the raw-body HMAC a provider sends with webhook
// callbacks. The webhook endpoint is reachable without platform auth, so
// the payload is trusted only after this check passes.
func VerifyWebhookBody(secret string, body []byte, signature string) bool {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(signature))
}
