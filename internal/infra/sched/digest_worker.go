package sched

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"dealflow-billing/internal/domain/ports/adapter"
	"dealflow-billing/internal/domain/ports/repository"
	"dealflow-billing/internal/infra/metrics"
)

// DigestWorker periodically mails the admin a summary of failed invoice
// jobs so stuck invoices get human attention without anyone watching
// dashboards.
type DigestWorker struct {
	jobs     repository.InvoiceJobRepository
	notifier adapter.NotificationSink
	adminTo  string
	interval time.Duration
	log      *zerolog.Logger
}

func NewDigestWorker(
	jobs repository.InvoiceJobRepository,
	notifier adapter.NotificationSink,
	adminTo string,
	interval time.Duration,
	logger *zerolog.Logger,
) *DigestWorker {
	l := logger.With().Str("component", "DigestWorker").Logger()
	return &DigestWorker{jobs: jobs, notifier: notifier, adminTo: adminTo, interval: interval, log: &l}
}

func (w *DigestWorker) Run(ctx context.Context) error {
	w.log.Info().Dur("interval", w.interval).Msg("starting digest worker")
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("stopping digest worker")
			return ctx.Err()
		case <-ticker.C:
			w.SendDigest(ctx)
		}
	}
}

// SendDigest publishes queue depth gauges and, when failed jobs exist,
// mails the summary.
func (w *DigestWorker) SendDigest(ctx context.Context) {
	stats, err := w.jobs.Stats(ctx, nil, time.Now())
	if err != nil {
		w.log.Error().Err(err).Msg("queue stats failed")
		return
	}
	metrics.SetQueueDepth(stats.Waiting, stats.Active, stats.Completed, stats.Failed, stats.Delayed)

	if stats.Failed == 0 {
		return
	}

	failed, err := w.jobs.ListFailed(ctx, nil, 20)
	if err != nil {
		w.log.Error().Err(err).Msg("list failed jobs failed")
		return
	}

	items := make([]map[string]interface{}, 0, len(failed))
	for _, job := range failed {
		items = append(items, map[string]interface{}{
			"job_id":     job.ID,
			"payment_id": job.PaymentID,
			"attempts":   job.Attempts,
			"last_error": job.LastError,
		})
	}

	err = w.notifier.Send(ctx, &adapter.Notification{
		Recipient: w.adminTo,
		Subject:   "Invoice queue digest: failed jobs need attention",
		Template:  "queue-digest",
		Data: map[string]interface{}{
			"failed_total": stats.Failed,
			"waiting":      stats.Waiting,
			"delayed":      stats.Delayed,
			"jobs":         items,
		},
	})
	if err != nil {
		w.log.Error().Err(err).Msg("digest delivery failed")
		return
	}
	w.log.Info().Int("failed", stats.Failed).Msg("failed-job digest sent")
}
