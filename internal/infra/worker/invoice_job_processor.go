package worker

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"dealflow-billing/internal/config"
	"dealflow-billing/internal/domain"
	"dealflow-billing/internal/domain/model"
	"dealflow-billing/internal/domain/ports/repository"
	"dealflow-billing/internal/infra/metrics"
	"dealflow-billing/internal/usecase"
)

// InvoiceJobProcessor drains the invoice queue: it claims due jobs,
// calls the generator and schedules retries on failure. A job that
// runs out of attempts is parked as failed and written to the
// audit trail for manual retry.
type InvoiceJobProcessor struct {
	jobs     repository.InvoiceJobRepository
	payments repository.PaymentRepository
	invoices usecase.InvoiceUseCase
	cfg      *config.QueueConfig
	log      *zerolog.Logger
}

func NewInvoiceJobProcessor(
	jobs repository.InvoiceJobRepository,
	payments repository.PaymentRepository,
	invoices usecase.InvoiceUseCase,
	cfg *config.QueueConfig,
	logger *zerolog.Logger,
) *InvoiceJobProcessor {
	l := logger.With().Str("component", "InvoiceJobProcessor").Logger()
	return &InvoiceJobProcessor{jobs: jobs, payments: payments, invoices: invoices, cfg: cfg, log: &l}
}

// staleProcessingAfter is how long a job may sit in processing before
// it counts as abandoned by a dead worker. Generous next to the
// seconds a render takes, so a slow but alive run is never reclaimed
// out from under its worker.
const staleProcessingAfter = 10 * time.Minute

// reclaimEvery is the sweep interval for abandoned processing jobs.
const reclaimEvery = time.Minute

// Start runs the polling loop until the context is cancelled. It should
// be run in a goroutine.
func (p *InvoiceJobProcessor) Start(ctx context.Context, pool *Pool) {
	p.log.Info().Dur("poll_interval", p.cfg.PollInterval).Msg("invoice job processor started")
	ticker := time.NewTicker(p.cfg.PollInterval)
	defer ticker.Stop()
	reclaim := time.NewTicker(reclaimEvery)
	defer reclaim.Stop()

	for {
		select {
		case <-ctx.Done():
			p.log.Info().Msg("invoice job processor stopping")
			return
		case <-reclaim.C:
			p.ReclaimStale(ctx, time.Now())
		case <-ticker.C:
			_ = pool.Submit(func(ctx context.Context) error {
				p.ProcessOne(ctx)
				return nil
			})
		}
	}
}

// ReclaimStale re-arms jobs stuck in processing since before
// now-staleProcessingAfter. Such a job belongs to a worker that died
// between claiming it and persisting the outcome; without the sweep it
// is neither due nor visible in the failed list.
func (p *InvoiceJobProcessor) ReclaimStale(ctx context.Context, now time.Time) {
	n, err := p.jobs.ReclaimStale(ctx, nil, now.Add(-staleProcessingAfter))
	if err != nil {
		p.log.Error().Err(err).Msg("stale job reclaim failed")
		return
	}
	if n > 0 {
		for i := 0; i < n; i++ {
			metrics.IncInvoiceJob("reclaimed")
		}
		p.log.Warn().Int("reclaimed", n).Msg("re-armed jobs abandoned in processing")
	}
}

// ProcessOne claims and runs a single due job, if any.
func (p *InvoiceJobProcessor) ProcessOne(ctx context.Context) {
	job, err := p.jobs.FetchDueAndMarkProcessing(ctx, time.Now())
	if err != nil {
		if !errors.Is(err, domain.ErrNotFound) {
			p.log.Error().Err(err).Msg("failed to fetch invoice job")
		}
		return
	}

	start := time.Now()
	err = p.handleJob(ctx, job)
	latency := time.Since(start)

	if err == nil {
		job.Status = model.InvoiceJobStatusCompleted
		job.LastError = ""
		metrics.IncInvoiceJob("completed")
		if serr := p.jobs.Save(context.Background(), nil, job); serr != nil {
			p.log.Error().Err(serr).Str("job_id", job.ID).Msg("could not mark job completed")
		}
		p.log.Info().Str("job_id", job.ID).Dur("duration", latency).Msg("invoice job completed")
		return
	}

	job.Attempts++
	job.LastError = err.Error()

	if job.Attempts >= job.MaxAttempts {
		job.Status = model.InvoiceJobStatusFailed
		metrics.IncInvoiceJob("failed")
		if aerr := p.jobs.RecordAudit(context.Background(), nil, job, time.Now()); aerr != nil {
			p.log.Error().Err(aerr).Str("job_id", job.ID).Msg("could not record job audit")
		}
		p.log.Error().Err(err).Str("job_id", job.ID).Int("attempts", job.Attempts).
			Msg("invoice job exhausted attempts")
	} else {
		delay := model.BackoffDelay(job.Attempts - 1)
		job.Status = model.InvoiceJobStatusPending
		job.NextRunAt = time.Now().Add(delay)
		metrics.IncInvoiceJob("requeued")
		p.log.Warn().Err(err).Str("job_id", job.ID).Int("attempt", job.Attempts).
			Dur("retry_in", delay).Msg("invoice job failed; will retry")
	}

	if serr := p.jobs.Save(context.Background(), nil, job); serr != nil {
		p.log.Error().Err(serr).Str("job_id", job.ID).Msg("could not persist job state")
	}
}

func (p *InvoiceJobProcessor) handleJob(ctx context.Context, job *model.InvoiceJob) error {
	payment, err := p.payments.FindByID(ctx, nil, job.PaymentID)
	if err != nil {
		return err
	}
	_, err = p.invoices.Generate(ctx, payment, &job.Payload)
	return err
}
