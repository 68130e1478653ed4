package worker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"dealflow-billing/internal/config"
	"dealflow-billing/internal/domain"
	"dealflow-billing/internal/domain/model"
	"dealflow-billing/internal/domain/ports/repository"
	"dealflow-billing/internal/infra/metrics"
	"dealflow-billing/internal/usecase"
)

// Compile-time check
var _ usecase.InvoiceQueue = (*InvoiceQueue)(nil)

// InvoiceQueue is the persistent job queue feeding the invoice
// processor. The deterministic job id keeps enqueue idempotent: the
// same payment can be submitted any number of times and lands exactly
// one job.
type InvoiceQueue struct {
	jobs        repository.InvoiceJobRepository
	payments    repository.PaymentRepository
	cfg         *config.QueueConfig
	sellerState string
	log         *zerolog.Logger
}

func NewInvoiceQueue(
	jobs repository.InvoiceJobRepository,
	payments repository.PaymentRepository,
	cfg *config.QueueConfig,
	sellerState string,
	logger *zerolog.Logger,
) *InvoiceQueue {
	l := logger.With().Str("component", "InvoiceQueue").Logger()
	return &InvoiceQueue{jobs: jobs, payments: payments, cfg: cfg, sellerState: sellerState, log: &l}
}

func (q *InvoiceQueue) Enqueue(ctx context.Context, p *model.Payment) error {
	job := q.buildJob(p)
	err := q.jobs.Insert(ctx, nil, job)
	if errors.Is(err, domain.ErrAlreadyExists) {
		// a replay of the same payment; the original job stands
		return nil
	}
	if err != nil {
		return err
	}
	metrics.IncInvoiceJob("enqueued")
	q.log.Info().Str("job_id", job.ID).Str("payment_id", p.ID).Msg("invoice job enqueued")
	return nil
}

// Retry re-arms the job for a payment so the processor picks it up on
// its next poll. When nothing was ever enqueued (a crash between
// completion and enqueue), a fresh job is synthesized from the payment.
func (q *InvoiceQueue) Retry(ctx context.Context, paymentID string) error {
	job, err := q.jobs.FindByID(ctx, nil, model.InvoiceJobID(paymentID))
	if errors.Is(err, domain.ErrNotFound) {
		p, ferr := q.payments.FindByID(ctx, nil, paymentID)
		if ferr != nil {
			return ferr
		}
		if p.Status != model.PaymentStatusCompleted && p.Status != model.PaymentStatusRefunded {
			return fmt.Errorf("%w: payment %s is %s", domain.ErrInvalidArgument, p.ID, p.Status)
		}
		return q.Enqueue(ctx, p)
	}
	if err != nil {
		return err
	}
	if job.Status == model.InvoiceJobStatusCompleted {
		return fmt.Errorf("%w: invoice already issued for payment %s", domain.ErrConflict, paymentID)
	}

	job.Status = model.InvoiceJobStatusPending
	job.Attempts = 0
	job.LastError = ""
	job.NextRunAt = time.Now()
	if err := q.jobs.Save(ctx, nil, job); err != nil {
		return err
	}
	metrics.IncInvoiceJob("retried")
	q.log.Info().Str("job_id", job.ID).Msg("invoice job re-armed")
	return nil
}

// BatchRetryLimit caps a single batch so an operator cannot flood the
// queue with one call.
const BatchRetryLimit = 50

// BatchRetry re-arms the jobs for a caller-chosen set of payment ids,
// at most BatchRetryLimit per call, and returns how many were queued
// again. Each id goes through the same path as a single Retry; an id
// that cannot be retried is logged and skipped, never aborting the
// rest of the batch.
func (q *InvoiceQueue) BatchRetry(ctx context.Context, paymentIDs []string) (int, error) {
	if len(paymentIDs) == 0 {
		return 0, domain.ErrInvalidArgument
	}
	if len(paymentIDs) > BatchRetryLimit {
		paymentIDs = paymentIDs[:BatchRetryLimit]
	}

	retried := 0
	for _, id := range paymentIDs {
		if err := q.Retry(ctx, id); err != nil {
			q.log.Warn().Err(err).Str("payment_id", id).Msg("batch retry skipped payment")
			continue
		}
		retried++
	}
	if retried > 0 {
		q.log.Info().Int("retried", retried).Int("requested", len(paymentIDs)).
			Msg("failed invoice jobs re-armed")
	}
	return retried, nil
}

func (q *InvoiceQueue) ListFailed(ctx context.Context, limit int) ([]*model.InvoiceJob, error) {
	return q.jobs.ListFailed(ctx, nil, limit)
}

func (q *InvoiceQueue) Stats(ctx context.Context) (*repository.QueueStats, error) {
	return q.jobs.Stats(ctx, nil, time.Now())
}

func (q *InvoiceQueue) buildJob(p *model.Payment) *model.InvoiceJob {
	now := time.Now()
	buyer := model.PartySnapshot{
		Name:    metaString(p.Meta, "buyer_name"),
		Email:   metaString(p.Meta, "buyer_email"),
		Address: metaString(p.Meta, "buyer_address"),
		GSTIN:   metaString(p.Meta, "buyer_gstin"),
		State:   metaString(p.Meta, "buyer_state"),
	}
	desc := p.Description
	if desc == "" {
		desc = string(p.Type)
	}
	return &model.InvoiceJob{
		ID:        model.InvoiceJobID(p.ID),
		PaymentID: p.ID,
		Payload: model.InvoiceJobPayload{
			Buyer:         buyer,
			Items:         []model.LineItem{{Description: desc, Quantity: 1, UnitMinor: p.AmountMinor}},
			SubtotalMinor: p.AmountMinor,
			TotalMinor:    p.AmountMinor,
			InterState:    buyer.State != "" && buyer.State != q.sellerState,
		},
		Status:      model.InvoiceJobStatusPending,
		MaxAttempts: q.cfg.MaxAttempts,
		NextRunAt:   now,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

func metaString(meta map[string]interface{}, key string) string {
	if meta == nil {
		return ""
	}
	if v, ok := meta[key].(string); ok {
		return v
	}
	return ""
}
