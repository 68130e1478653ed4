package repository

import (
	"context"
	"time"

	"dealflow-billing/internal/domain/model"
)

// QueueStats are the aggregate counts surfaced to the admin digest and
// the manual retry tooling.
type QueueStats struct {
	Waiting   int
	Active    int
	Completed int
	Failed    int
	Delayed   int // waiting jobs whose NextRunAt is in the future
}

type InvoiceJobRepository interface {
	// Insert creates the job only if no row with the same id exists.
	// It returns domain.ErrAlreadyExists otherwise; callers treat that
	// as a successful no-op for idempotent enqueue.
	Insert(ctx context.Context, tx Tx, job *model.InvoiceJob) error
	Save(ctx context.Context, tx Tx, job *model.InvoiceJob) error
	FindByID(ctx context.Context, tx Tx, id string) (*model.InvoiceJob, error)
	// FetchDueAndMarkProcessing claims the oldest due pending job
	// (FOR UPDATE SKIP LOCKED) or returns domain.ErrNotFound.
	FetchDueAndMarkProcessing(ctx context.Context, now time.Time) (*model.InvoiceJob, error)
	// ReclaimStale moves processing jobs last touched before cutoff
	// back to pending. A worker that dies between claiming a job and
	// persisting the outcome would otherwise strand it forever.
	ReclaimStale(ctx context.Context, tx Tx, cutoff time.Time) (int, error)
	ListFailed(ctx context.Context, tx Tx, limit int) ([]*model.InvoiceJob, error)
	Stats(ctx context.Context, tx Tx, now time.Time) (*QueueStats, error)
	// RecordAudit appends a permanent audit row when a job exhausts all
	// its attempts. Audit rows are never deleted by the queue.
	RecordAudit(ctx context.Context, tx Tx, job *model.InvoiceJob, at time.Time) error
}
