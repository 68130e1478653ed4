package sched

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"

	"dealflow-billing/internal/config"
	"dealflow-billing/internal/domain/model"
	"dealflow-billing/internal/domain/ports/adapter"
	"dealflow-billing/internal/domain/ports/repository"
	"dealflow-billing/internal/infra/metrics"
)

const archiveBatchSize = 200

// RetentionWorker sweeps aged invoices into compressed bundles and
// prunes bundles past their own retention window. An invoice document
// is deleted only after its bundle is durably on disk and the row is
// marked archived; a crash mid-sweep re-archives, never loses.
type RetentionWorker struct {
	invoices repository.InvoiceRepository
	archiver adapter.Archiver
	cfg      *config.RetentionConfig
	log      *zerolog.Logger
}

func NewRetentionWorker(
	invoices repository.InvoiceRepository,
	archiver adapter.Archiver,
	cfg *config.RetentionConfig,
	logger *zerolog.Logger,
) *RetentionWorker {
	l := logger.With().Str("component", "RetentionWorker").Logger()
	return &RetentionWorker{invoices: invoices, archiver: archiver, cfg: cfg, log: &l}
}

func (w *RetentionWorker) Run(ctx context.Context) error {
	w.log.Info().Dur("interval", w.cfg.SweepInterval).Msg("starting retention worker")
	ticker := time.NewTicker(w.cfg.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("stopping retention worker")
			return ctx.Err()
		case <-ticker.C:
			w.Sweep(ctx)
		}
	}
}

// Sweep runs one archive pass and one prune pass.
func (w *RetentionWorker) Sweep(ctx context.Context) {
	if n, err := w.archiveOld(ctx); err != nil {
		metrics.IncCleanupRun("archive", "error")
		w.log.Error().Err(err).Msg("archive sweep failed")
	} else {
		metrics.IncCleanupRun("archive", "ok")
		if n > 0 {
			metrics.AddCleanupItems("archive", n)
			w.log.Info().Int("archived", n).Msg("invoices archived")
		}
	}

	if n, err := w.archiver.PruneOlderThan(ctx, time.Now().Add(-w.cfg.ArchiveWindow)); err != nil {
		metrics.IncCleanupRun("prune", "error")
		w.log.Error().Err(err).Msg("bundle prune failed")
	} else {
		metrics.IncCleanupRun("prune", "ok")
		if n > 0 {
			metrics.AddCleanupItems("prune", n)
			w.log.Info().Int("pruned", n).Msg("aged bundles pruned")
		}
	}
}

func (w *RetentionWorker) archiveOld(ctx context.Context) (int, error) {
	cutoff := time.Now().Add(-w.cfg.InvoiceWindow)
	total := 0

	for {
		batch, err := w.invoices.ListIssuedBefore(ctx, nil, cutoff, archiveBatchSize)
		if err != nil {
			return total, err
		}
		if len(batch) == 0 {
			return total, nil
		}

		name := fmt.Sprintf("invoices-%s", time.Now().UTC().Format("20060102-150405"))
		files := make([]string, 0, len(batch))
		ids := make([]string, 0, len(batch))
		for _, inv := range batch {
			if inv.DocumentPath != "" {
				files = append(files, inv.DocumentPath)
			}
			ids = append(ids, inv.ID)
		}

		if _, err := w.archiver.Bundle(ctx, name, files); err != nil {
			return total, fmt.Errorf("bundle %s: %w", name, err)
		}
		if err := w.invoices.MarkArchived(ctx, nil, ids, time.Now()); err != nil {
			return total, err
		}
		// originals go only after the bundle and the DB agree
		w.removeOriginals(batch)

		total += len(batch)
		if len(batch) < archiveBatchSize {
			return total, nil
		}
	}
}

func (w *RetentionWorker) removeOriginals(batch []*model.Invoice) {
	for _, inv := range batch {
		if inv.DocumentPath == "" {
			continue
		}
		if err := os.Remove(inv.DocumentPath); err != nil && !os.IsNotExist(err) {
			w.log.Warn().Err(err).Str("path", inv.DocumentPath).Msg("could not remove archived document")
		}
	}
}
