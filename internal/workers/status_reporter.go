// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package workers

import (
	"context"
	"time"

	"github.com/MKhiriev/go-sync-keeper/internal/logger"
)

// StatusReporter periodically logs the sync status of every domain.
// Unhealthy domains are logged as warnings.
type StatusReporter struct {
	sources  []StatusSource
	interval time.Duration
	logger   *logger.Logger
}

// NewStatusReporter creates a StatusReporter. A non-positive interval means
// one minute.
func NewStatusReporter(interval time.Duration, logger *logger.Logger, sources ...StatusSource) *StatusReporter {
	if interval <= 0 {
		interval = time.Minute
	}
	return &StatusReporter{sources: sources, interval: interval, logger: logger}
}

// Run implements Worker.
func (r *StatusReporter) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			r.Report()
		}
	}
}

// Report logs one line per source.
func (r *StatusReporter) Report() {
	for _, src := range r.sources {
		report := src.Status()

		ev := r.logger.Info()
		if !report.Healthy {
			ev = r.logger.Warn()
		}
		ev.Str("func", "StatusReporter.Report").
			Str("domain", report.Domain).
			Str("state", string(report.State)).
			Str("connectivity", string(report.Connectivity)).
			Bool("healthy", report.Healthy).
			Time("last_successful_sync", report.Metrics.LastSuccessfulSync).
			Int("consecutive_failures", report.Metrics.ConsecutiveFailures).
			Int64("total_attempts", report.Metrics.TotalAttempts).
			Msg("sync status")
	}
}
