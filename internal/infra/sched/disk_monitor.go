package sched

import (
	"context"
	"fmt"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"dealflow-billing/internal/config"
	"dealflow-billing/internal/domain/ports/adapter"
	"dealflow-billing/internal/infra/metrics"
	"dealflow-billing/internal/infra/redis"
)

// DiskMonitor watches free space on the document volume and raises a
// throttled operational alert when it drops below the configured floor.
// The redis claim keeps repeat alerts down to one per window even with
// several instances sweeping.
type DiskMonitor struct {
	cfg      *config.RetentionConfig
	throttle *redis.AlertThrottle
	notifier adapter.NotificationSink
	adminTo  string
	statfs   func(path string) (free, total uint64, err error)
	log      *zerolog.Logger
}

func NewDiskMonitor(
	cfg *config.RetentionConfig,
	throttle *redis.AlertThrottle,
	notifier adapter.NotificationSink,
	adminTo string,
	logger *zerolog.Logger,
) *DiskMonitor {
	l := logger.With().Str("component", "DiskMonitor").Logger()
	return &DiskMonitor{
		cfg:      cfg,
		throttle: throttle,
		notifier: notifier,
		adminTo:  adminTo,
		statfs:   statfsFree,
		log:      &l,
	}
}

func statfsFree(path string) (uint64, uint64, error) {
	var st syscall.Statfs_t
	if err := syscall.Statfs(path, &st); err != nil {
		return 0, 0, err
	}
	return st.Bavail * uint64(st.Bsize), st.Blocks * uint64(st.Bsize), nil
}

func (m *DiskMonitor) Run(ctx context.Context) error {
	m.log.Info().Str("path", m.cfg.DiskPath).Int("min_free_pct", m.cfg.DiskMinFreePct).
		Msg("starting disk monitor")
	ticker := time.NewTicker(m.cfg.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			m.log.Info().Msg("stopping disk monitor")
			return ctx.Err()
		case <-ticker.C:
			m.Check(ctx)
		}
	}
}

// Check samples free space once and alerts if it is below the floor.
func (m *DiskMonitor) Check(ctx context.Context) {
	free, total, err := m.statfs(m.cfg.DiskPath)
	if err != nil {
		m.log.Error().Err(err).Str("path", m.cfg.DiskPath).Msg("statfs failed")
		return
	}
	if total == 0 {
		return
	}

	pct := float64(free) / float64(total) * 100
	metrics.SetDiskFreePercent(pct)
	if pct >= float64(m.cfg.DiskMinFreePct) {
		return
	}

	ok, err := m.throttle.ShouldSend(ctx, "disk_low:"+m.cfg.DiskPath)
	if err != nil {
		m.log.Error().Err(err).Msg("alert throttle check failed")
		return
	}
	if !ok {
		return // already alerted within the window
	}

	m.log.Warn().Float64("free_pct", pct).Msg("disk space below floor")
	err = m.notifier.Send(ctx, &adapter.Notification{
		Recipient: m.adminTo,
		Subject:   "Disk space low on invoice volume",
		Template:  "ops-alert",
		Data: map[string]interface{}{
			"path":     m.cfg.DiskPath,
			"free_pct": fmt.Sprintf("%.1f", pct),
			"floor":    m.cfg.DiskMinFreePct,
		},
	})
	if err != nil {
		m.log.Error().Err(err).Msg("disk alert delivery failed")
	}
}
