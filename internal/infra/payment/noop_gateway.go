package payment

import (
	"context"
	"fmt"
	"sync/atomic"

	"dealflow-billing/internal/domain/model"
	"dealflow-billing/internal/domain/ports/adapter"
)

// NoopGateway is an in-process stand-in for tests and local development.
// Orders succeed immediately and signatures are checked against a fixed
// secret so the verification path stays exercised.
type NoopGateway struct {
	seq    atomic.Int64
	secret string
}

var _ adapter.PaymentGateway = (*NoopGateway)(nil)

const noopSecret = "noop-gateway-secret"

func NewNoopGateway() *NoopGateway {
	return &NoopGateway{secret: noopSecret}
}

func (g *NoopGateway) Name() model.GatewayKind { return model.GatewayNoop }

func (g *NoopGateway) CreateOrder(_ context.Context, intent *model.PaymentIntent) (*adapter.GatewayOrder, error) {
	n := g.seq.Add(1)
	return &adapter.GatewayOrder{
		OrderID:     fmt.Sprintf("order_noop_%06d", n),
		AmountMinor: intent.AmountMinor,
		Currency:    intent.Currency,
		Handle:      "noop",
	}, nil
}

func (g *NoopGateway) VerifySignature(orderID, paymentID, signature string) bool {
	return verifySignature(g.secret, orderID, paymentID, signature, false)
}

// Sign produces the signature the gateway would accept; tests use it to
// simulate a client completing checkout.
func (g *NoopGateway) Sign(orderID, paymentID string) string {
	return signPayload(g.secret, orderID, paymentID)
}

func (g *NoopGateway) Refund(_ context.Context, gatewayPaymentID string, amountMinor int64, _ string) (*adapter.GatewayRefund, error) {
	n := g.seq.Add(1)
	return &adapter.GatewayRefund{
		RefundID:    fmt.Sprintf("rfnd_noop_%06d", n),
		AmountMinor: amountMinor,
		Status:      "processed",
	}, nil
}

func (g *NoopGateway) FetchStatus(_ context.Context, gatewayPaymentID string) (*adapter.GatewayStatus, error) {
	return &adapter.GatewayStatus{PaymentID: gatewayPaymentID, Status: "captured"}, nil
}
