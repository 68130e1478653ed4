package repository

import (
	"context"
	"time"

	"dealflow-billing/internal/domain/model"
)

// PaymentRepository persists payment state. The Mark* methods are
// conditional on the expected prior status and return domain.ErrConflict
// when a concurrent writer already moved the row, so two verification
// attempts can never double-process the same payment.
type PaymentRepository interface {
	Save(ctx context.Context, tx Tx, p *model.Payment) error
	FindByID(ctx context.Context, tx Tx, id string) (*model.Payment, error)
	FindByGatewayOrderID(ctx context.Context, tx Tx, orderID string) (*model.Payment, error)
	MarkCompleted(ctx context.Context, tx Tx, id, gatewayPaymentID, signature string, completedAt time.Time) error
	MarkFailed(ctx context.Context, tx Tx, id, reason string) error
	MarkRefunded(ctx context.Context, tx Tx, id string, amountMinor int64, reason string, refundedAt time.Time) error
	SetInvoiceID(ctx context.Context, tx Tx, paymentID, invoiceID string) error
	ListPendingOlderThan(ctx context.Context, tx Tx, cutoff time.Time, limit int) ([]*model.Payment, error)
	SumCompletedByPeriod(ctx context.Context, tx Tx, period string) (int64, error)
}
