package adapter

import (
	"context"

	"dealflow-billing/internal/domain/model"
)

// GatewayOrder is the provider's answer to an order-creation request.
type GatewayOrder struct {
	OrderID     string
	AmountMinor int64
	Currency    string
	Handle      string // provider-specific handle the client needs (key id, client secret, ...)
}

type GatewayRefund struct {
	RefundID    string
	AmountMinor int64
	Status      string
}

type GatewayStatus struct {
	PaymentID   string
	Status      string
	AmountMinor int64
	Currency    string
}

// PaymentGateway is the uniform contract over heterogeneous payment
// providers. Implementations form a closed set selected by an explicit
// factory; callers never know which provider they talk to.
type PaymentGateway interface {
	Name() model.GatewayKind
	CreateOrder(ctx context.Context, intent *model.PaymentIntent) (*GatewayOrder, error)
	// VerifySignature reports whether the supplied signature matches the
	// HMAC of orderID|paymentID under the gateway secret. It returns false
	// on mismatch, never an error; the caller decides whether that is fatal.
	VerifySignature(orderID, paymentID, signature string) bool
	Refund(ctx context.Context, gatewayPaymentID string, amountMinor int64, reason string) (*GatewayRefund, error)
	// FetchStatus looks up the provider's record for a payment or order
	// reference; implementations decide which endpoint the reference maps to.
	FetchStatus(ctx context.Context, ref string) (*GatewayStatus, error)
}
