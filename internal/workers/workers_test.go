// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package workers

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/MKhiriev/go-sync-keeper/internal/logger"
	"github.com/MKhiriev/go-sync-keeper/models"
	"github.com/rs/zerolog"
)

// countingWorker is a test implementation of the Worker interface
// that tracks how many times Run was called and blocks until shutdown.
type countingWorker struct {
	runCount atomic.Int32
}

func (m *countingWorker) Run(ctx context.Context) error {
	m.runCount.Add(1)
	<-ctx.Done()
	return ctx.Err()
}

func TestWorkers_Run_AllWorkersAreCalled(t *testing.T) {
	w1, w2, w3 := &countingWorker{}, &countingWorker{}, &countingWorker{}
	ws := NewWorkers(logger.Nop()).Add("w1", w1).Add("w2", w2).Add("w3", w3)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	if err := ws.Run(ctx); err != nil {
		t.Fatalf("expected clean shutdown, got: %v", err)
	}

	for i, w := range []*countingWorker{w1, w2, w3} {
		if got := w.runCount.Load(); got != 1 {
			t.Errorf("worker[%d]: expected runCount=1, got %d", i, got)
		}
	}
}

func TestWorkers_Run_Empty(t *testing.T) {
	ws := NewWorkers(logger.Nop())

	// Should return immediately on an empty workers list
	if err := ws.Run(context.Background()); err != nil {
		t.Fatalf("expected nil, got %v", err)
	}
	if ws.Len() != 0 {
		t.Errorf("expected 0 workers, got %d", ws.Len())
	}
}

func TestWorkers_Run_FirstErrorCancelsOthers(t *testing.T) {
	boom := errors.New("boom")
	blocker := &countingWorker{}

	ws := NewWorkers(logger.Nop()).
		Add("blocker", blocker).
		Add("failing", WorkerFunc(func(context.Context) error { return boom }))

	done := make(chan error, 1)
	go func() { done <- ws.Run(context.Background()) }()

	select {
	case err := <-done:
		if !errors.Is(err, boom) {
			t.Fatalf("expected boom, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("failing worker did not stop the group")
	}
}

func TestWorkers_Run_WorkerReturningEarlyIsNotAnError(t *testing.T) {
	ws := NewWorkers(logger.Nop()).
		Add("oneshot", WorkerFunc(func(context.Context) error { return nil }))

	if err := ws.Run(context.Background()); err != nil {
		t.Fatalf("expected nil, got %v", err)
	}
}

// ── StatusReporter ───────────────────────────────────────────────────────────

type staticSource struct {
	mu     sync.Mutex
	report models.SyncStatusReport
	calls  int
}

func (s *staticSource) Status() models.SyncStatusReport {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	return s.report
}

func TestStatusReporter_Report(t *testing.T) {
	var buf bytes.Buffer
	log := &logger.Logger{Logger: zerolog.New(&buf)}

	healthy := &staticSource{report: models.SyncStatusReport{Domain: "daily_logs", State: models.SyncSynced, Healthy: true}}
	broken := &staticSource{report: models.SyncStatusReport{Domain: "preferences", State: models.SyncStopped}}

	NewStatusReporter(time.Minute, log, healthy, broken).Report()

	out := buf.String()
	if !strings.Contains(out, `"domain":"daily_logs"`) {
		t.Errorf("expected daily_logs line, got %s", out)
	}
	if !strings.Contains(out, `"level":"warn"`) {
		t.Errorf("expected a warning for the unhealthy domain, got %s", out)
	}
}

func TestStatusReporter_RunTicks(t *testing.T) {
	src := &staticSource{report: models.SyncStatusReport{Domain: "d", Healthy: true}}
	r := NewStatusReporter(5*time.Millisecond, logger.Nop(), src)

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Millisecond)
	defer cancel()

	if err := r.Run(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}

	src.mu.Lock()
	defer src.mu.Unlock()
	if src.calls == 0 {
		t.Error("expected at least one report")
	}
}
