package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"dealflow-billing/internal/config"
	"dealflow-billing/internal/domain"
	"dealflow-billing/internal/domain/model"
	"dealflow-billing/internal/domain/ports/adapter"
	"dealflow-billing/internal/domain/ports/repository"
)

// InvoiceQueue is what the orchestrator needs from the job queue:
// fire-and-forget, idempotent enqueue of invoice generation for a
// completed payment.
type InvoiceQueue interface {
	Enqueue(ctx context.Context, payment *model.Payment) error
}

// VerifyResult reports the outcome of a verification attempt. Verified
// false with a Reason is a normal result, not an error, so callers can
// offer a retry-payment path distinct from gateway failures.
type VerifyResult struct {
	Payment  *model.Payment
	Verified bool
	Reason   string
}

// Compile-time check
var _ PaymentUseCase = (*paymentUC)(nil)

type PaymentUseCase interface {
	// CreateOrder validates the intent, creates the order with the
	// gateway and records a pending payment keyed by the gateway order id.
	CreateOrder(ctx context.Context, intent *model.PaymentIntent) (*model.Payment, *adapter.GatewayOrder, error)
	// VerifyAndComplete checks the gateway signature and transitions the
	// payment to completed, enqueueing the invoice job as a best-effort
	// side effect. Signature mismatch yields Verified=false, never an error.
	VerifyAndComplete(ctx context.Context, userID, orderID, gatewayPaymentID, signature string) (*VerifyResult, error)
	// Refund is allowed once, for the owner or an admin, from completed only.
	Refund(ctx context.Context, callerID string, isAdmin bool, paymentID string, amountMinor int64, reason string) (*model.Payment, error)
	Get(ctx context.Context, id string) (*model.Payment, error)
	SumCompletedByPeriod(ctx context.Context, period string) (int64, error)
}

type paymentUC struct {
	payments repository.PaymentRepository
	gateway  adapter.PaymentGateway
	queue    InvoiceQueue
	notifier adapter.NotificationSink
	cfg      *config.PaymentConfig
	log      *zerolog.Logger
}

func NewPaymentUseCase(
	payments repository.PaymentRepository,
	gateway adapter.PaymentGateway,
	queue InvoiceQueue,
	notifier adapter.NotificationSink,
	cfg *config.PaymentConfig,
	logger *zerolog.Logger,
) *paymentUC {
	l := logger.With().Str("component", "PaymentUC").Logger()
	return &paymentUC{payments: payments, gateway: gateway, queue: queue, notifier: notifier, cfg: cfg, log: &l}
}

func (u *paymentUC) CreateOrder(ctx context.Context, intent *model.PaymentIntent) (*model.Payment, *adapter.GatewayOrder, error) {
	if intent.UserID == "" || intent.Currency == "" {
		return nil, nil, domain.ErrInvalidArgument
	}
	if intent.AmountMinor < u.cfg.MinAmountMinor || intent.AmountMinor > u.cfg.MaxAmountMinor {
		return nil, nil, fmt.Errorf("%w: amount must be between %s and %s %s",
			domain.ErrAmountOutOfBounds,
			formatMinor(u.cfg.MinAmountMinor), formatMinor(u.cfg.MaxAmountMinor), intent.Currency)
	}

	order, err := u.gateway.CreateOrder(ctx, intent)
	if err != nil {
		// A timed-out or failed order creation leaves no payment row
		// behind; the client simply retries.
		return nil, nil, fmt.Errorf("%w: %v", domain.ErrGatewayFailure, err)
	}

	now := time.Now()
	p := &model.Payment{
		ID:             uuid.NewString(),
		UserID:         intent.UserID,
		AmountMinor:    intent.AmountMinor,
		Currency:       intent.Currency,
		Gateway:        u.gateway.Name(),
		Status:         model.PaymentStatusPending,
		Type:           intent.Type,
		GatewayOrderID: order.OrderID,
		Description:    intent.Description,
		CreatedAt:      now,
		UpdatedAt:      now,
		Meta:           intent.Meta,
	}
	if err := u.payments.Save(ctx, nil, p); err != nil {
		return nil, nil, err
	}

	u.log.Info().Str("payment_id", p.ID).Str("order_id", order.OrderID).
		Int64("amount_minor", p.AmountMinor).Str("type", string(p.Type)).Msg("payment order created")
	return p, order, nil
}

func (u *paymentUC) VerifyAndComplete(ctx context.Context, userID, orderID, gatewayPaymentID, signature string) (*VerifyResult, error) {
	p, err := u.payments.FindByGatewayOrderID(ctx, nil, orderID)
	if err != nil {
		return nil, err
	}
	if userID != "" && p.UserID != userID {
		return nil, domain.ErrUnauthorized
	}

	// Replays of an already-completed payment collapse onto a success
	// result without touching state; the job id keeps the invoice unique.
	if p.Status == model.PaymentStatusCompleted {
		return &VerifyResult{Payment: p, Verified: true}, nil
	}
	if p.IsTerminal() {
		return nil, fmt.Errorf("%w: payment is %s", domain.ErrInvalidTransition, p.Status)
	}

	if !u.gateway.VerifySignature(orderID, gatewayPaymentID, signature) {
		if err := u.payments.MarkFailed(ctx, nil, p.ID, "signature verification failed"); err != nil {
			u.log.Error().Err(err).Str("payment_id", p.ID).Msg("could not record verification failure")
		}
		p.Status = model.PaymentStatusFailed
		reason := "signature verification failed"
		p.FailureReason = &reason
		u.notifyStatus(ctx, p, "Payment could not be verified")
		return &VerifyResult{Payment: p, Verified: false, Reason: reason}, nil
	}

	now := time.Now()
	if err := u.payments.MarkCompleted(ctx, nil, p.ID, gatewayPaymentID, signature, now); err != nil {
		// A concurrent verifier won the race; re-read and report its truth.
		if err == domain.ErrConflict {
			fresh, ferr := u.payments.FindByID(ctx, nil, p.ID)
			if ferr == nil && fresh.Status == model.PaymentStatusCompleted {
				return &VerifyResult{Payment: fresh, Verified: true}, nil
			}
		}
		return nil, err
	}
	p.Status = model.PaymentStatusCompleted
	p.GatewayPaymentID = gatewayPaymentID
	p.Signature = signature
	p.CompletedAt = &now
	p.UpdatedAt = now

	// Invoice issuance is decoupled from payment truth: a queue failure
	// is logged and retried by reconciliation, never rolled back into
	// the completed payment.
	if err := u.queue.Enqueue(ctx, p); err != nil {
		u.log.Error().Err(err).Str("payment_id", p.ID).Msg("invoice enqueue failed; payment stays completed")
	}
	u.notifyStatus(ctx, p, "Payment received")

	u.log.Info().Str("payment_id", p.ID).Str("gateway_payment_id", gatewayPaymentID).Msg("payment completed")
	return &VerifyResult{Payment: p, Verified: true}, nil
}

func (u *paymentUC) Refund(ctx context.Context, callerID string, isAdmin bool, paymentID string, amountMinor int64, reason string) (*model.Payment, error) {
	p, err := u.payments.FindByID(ctx, nil, paymentID)
	if err != nil {
		return nil, err
	}
	if !isAdmin && p.UserID != callerID {
		return nil, domain.ErrUnauthorized
	}
	if p.Status == model.PaymentStatusRefunded {
		return nil, domain.ErrAlreadyRefunded
	}
	if p.Status != model.PaymentStatusCompleted {
		return nil, domain.ErrRefundNotCompleted
	}
	if amountMinor <= 0 || amountMinor > p.AmountMinor {
		return nil, domain.ErrInvalidArgument
	}

	ref, err := u.gateway.Refund(ctx, p.GatewayPaymentID, amountMinor, reason)
	if err != nil {
		// No partial-refund state: the payment stays completed and the
		// caller retries manually.
		return nil, fmt.Errorf("%w: %v", domain.ErrGatewayFailure, err)
	}

	now := time.Now()
	if err := u.payments.MarkRefunded(ctx, nil, p.ID, amountMinor, reason, now); err != nil {
		return nil, err
	}
	p.Status = model.PaymentStatusRefunded
	p.RefundAmount = &amountMinor
	p.RefundReason = &reason
	p.RefundedAt = &now

	u.notifyStatus(ctx, p, "Refund processed")
	u.log.Info().Str("payment_id", p.ID).Str("refund_id", ref.RefundID).
		Int64("amount_minor", amountMinor).Msg("payment refunded")
	return p, nil
}

func (u *paymentUC) Get(ctx context.Context, id string) (*model.Payment, error) {
	return u.payments.FindByID(ctx, nil, id)
}

func (u *paymentUC) SumCompletedByPeriod(ctx context.Context, period string) (int64, error) {
	return u.payments.SumCompletedByPeriod(ctx, nil, period)
}

// notifyStatus sends a payment-status mail; delivery failure is non-fatal.
func (u *paymentUC) notifyStatus(ctx context.Context, p *model.Payment, subject string) {
	if u.notifier == nil {
		return
	}
	err := u.notifier.Send(ctx, &adapter.Notification{
		Recipient: p.UserID,
		Subject:   subject,
		Template:  "payment-status",
		Data: map[string]interface{}{
			"payment_id":   p.ID,
			"status":       string(p.Status),
			"amount_minor": p.AmountMinor,
			"currency":     p.Currency,
		},
	})
	if err != nil {
		u.log.Warn().Err(err).Str("payment_id", p.ID).Msg("status notification failed")
	}
}
