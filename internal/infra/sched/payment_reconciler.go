package sched

import (
	"context"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"dealflow-billing/internal/config"
	"dealflow-billing/internal/domain/ports/adapter"
	"dealflow-billing/internal/domain/ports/repository"
	"dealflow-billing/internal/infra/metrics"
)

const reconcileBatchSize = 200

// PaymentReconciler periodically scans for stale pending payments and
// settles their fate against the gateway's record. A payment the gateway
// reports as failed or expired is marked failed here; one the gateway
// reports as paid is left pending and flagged for ops, because only a
// signed verification (client or webhook) may complete it.
type PaymentReconciler struct {
	payments   repository.PaymentRepository
	gateway    adapter.PaymentGateway
	interval   time.Duration
	staleAfter time.Duration
	log        *zerolog.Logger
}

func NewPaymentReconciler(
	payments repository.PaymentRepository,
	gateway adapter.PaymentGateway,
	cfg *config.PaymentConfig,
	logger *zerolog.Logger,
) *PaymentReconciler {
	l := logger.With().Str("component", "PaymentReconciler").Logger()
	return &PaymentReconciler{
		payments:   payments,
		gateway:    gateway,
		interval:   cfg.ReconcileInterval,
		staleAfter: cfg.ReconcileStaleAfter,
		log:        &l,
	}
}

func (w *PaymentReconciler) Run(ctx context.Context) error {
	w.log.Info().Dur("interval", w.interval).Dur("stale_after", w.staleAfter).
		Msg("starting payment reconciler")
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("stopping payment reconciler")
			return ctx.Err()
		case <-ticker.C:
			w.Sweep(ctx, time.Now())
		}
	}
}

// Sweep processes one batch of stale pending payments.
func (w *PaymentReconciler) Sweep(ctx context.Context, now time.Time) {
	cutoff := now.Add(-w.staleAfter)
	pending, err := w.payments.ListPendingOlderThan(ctx, nil, cutoff, reconcileBatchSize)
	if err != nil {
		w.log.Error().Err(err).Msg("pending payment scan failed")
		return
	}

	for _, p := range pending {
		st, err := w.gateway.FetchStatus(ctx, p.GatewayOrderID)
		if err != nil {
			// Transient; the next sweep will see the payment again.
			w.log.Warn().Err(err).Str("payment_id", p.ID).Msg("gateway status fetch failed")
			continue
		}

		switch strings.ToLower(st.Status) {
		case "failed", "expired", "cancelled":
			if err := w.payments.MarkFailed(ctx, nil, p.ID, "abandoned: gateway reports "+st.Status); err != nil {
				w.log.Error().Err(err).Str("payment_id", p.ID).Msg("could not fail abandoned payment")
				continue
			}
			metrics.IncPayment("failed")
			w.log.Info().Str("payment_id", p.ID).Str("gateway_status", st.Status).
				Msg("stale pending payment closed")
		case "captured", "paid", "succeeded":
			// Money moved but no verification arrived. Completion needs a
			// signature, so surface it instead of guessing.
			w.log.Warn().Str("payment_id", p.ID).Str("order_id", p.GatewayOrderID).
				Msg("gateway reports payment captured but verification never arrived")
		default:
			w.log.Debug().Str("payment_id", p.ID).Str("gateway_status", st.Status).
				Msg("pending payment still open at gateway")
		}
	}
}
