package repository

import (
	"context"
	"time"

	"dealflow-billing/internal/domain/model"
)

// InvoiceRepository persists issued invoices and owns the sequential
// number allocator. NextSequence must be atomic under concurrency:
// no two invoices in the same (year, month) bucket ever share a number.
type InvoiceRepository interface {
	Save(ctx context.Context, tx Tx, inv *model.Invoice) error
	FindByID(ctx context.Context, tx Tx, id string) (*model.Invoice, error)
	FindByPaymentID(ctx context.Context, tx Tx, paymentID string) (*model.Invoice, error)
	NextSequence(ctx context.Context, tx Tx, year int, month time.Month) (int64, error)
	ListIssuedBefore(ctx context.Context, tx Tx, cutoff time.Time, limit int) ([]*model.Invoice, error)
	MarkArchived(ctx context.Context, tx Tx, ids []string, at time.Time) error
}
