// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package connectivity

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
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// syncBuffer is a goroutine-safe log sink.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func receive(t *testing.T, ch <-chan bool) bool {
	t.Helper()
	select {
	case v := <-ch:
		return v
	case <-time.After(time.Second):
		t.Fatal("no connectivity transition received")
		return false
	}
}

func assertNoTransition(t *testing.T, ch <-chan bool, wait time.Duration) {
	t.Helper()
	select {
	case v := <-ch:
		t.Fatalf("unexpected transition to %v", v)
	case <-time.After(wait):
	}
}

// ── Notify / debounce ────────────────────────────────────────────────────────

func TestMonitor_FirstObservationCommittedImmediately(t *testing.T) {
	m := NewMonitor(nil, Config{DebounceWindow: time.Hour}, logger.Nop())
	ch, cancel := m.Subscribe()
	defer cancel()

	assert.Equal(t, models.ConnectivityUnknown, m.State())
	assert.False(t, m.Connected())

	m.Notify(true)

	assert.True(t, receive(t, ch))
	assert.Equal(t, models.ConnectivityConnected, m.State())
}

func TestMonitor_TransitionAfterDebounceWindow(t *testing.T) {
	m := NewMonitor(nil, Config{DebounceWindow: 20 * time.Millisecond}, logger.Nop())
	m.Notify(true)
	ch, cancel := m.Subscribe()
	defer cancel()

	m.Notify(false)
	assert.True(t, m.Connected(), "transition must not surface before the window elapses")

	assert.False(t, receive(t, ch))
	assert.Equal(t, models.ConnectivityDisconnected, m.State())
}

func TestMonitor_FlapShorterThanWindowIsSuppressed(t *testing.T) {
	m := NewMonitor(nil, Config{DebounceWindow: 50 * time.Millisecond}, logger.Nop())
	m.Notify(true)
	ch, cancel := m.Subscribe()
	defer cancel()

	m.Notify(false)
	time.Sleep(10 * time.Millisecond)
	m.Notify(true)

	assertNoTransition(t, ch, 100*time.Millisecond)
	assert.True(t, m.Connected())
}

func TestMonitor_RepeatedSameValueIsNoop(t *testing.T) {
	m := NewMonitor(nil, Config{}, logger.Nop())
	m.Notify(false)
	ch, cancel := m.Subscribe()
	defer cancel()

	m.Notify(false)
	m.Notify(false)

	assertNoTransition(t, ch, 20*time.Millisecond)
}

func TestMonitor_UnsubscribeStopsDelivery(t *testing.T) {
	m := NewMonitor(nil, Config{}, logger.Nop())
	ch, cancel := m.Subscribe()
	cancel()
	cancel()

	m.Notify(true)

	assertNoTransition(t, ch, 20*time.Millisecond)
}

func TestMonitor_SlowSubscriberGetsLatestValue(t *testing.T) {
	m := NewMonitor(nil, Config{}, logger.Nop())
	ch, cancel := m.Subscribe()
	defer cancel()

	m.Notify(true)
	m.Notify(false)

	assert.False(t, receive(t, ch))
}

// ── Run / prober ─────────────────────────────────────────────────────────────

func TestMonitor_Run_PollsProber(t *testing.T) {
	var reachable atomic.Bool
	reachable.Store(true)
	prober := ProberFunc(func(context.Context) (bool, error) {
		return reachable.Load(), nil
	})

	m := NewMonitor(prober, Config{PollInterval: 5 * time.Millisecond}, logger.Nop())
	ch, cancel := m.Subscribe()
	defer cancel()

	ctx, stop := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = m.Run(ctx)
	}()

	assert.True(t, receive(t, ch))
	reachable.Store(false)
	assert.False(t, receive(t, ch))

	stop()
	<-done
}

func TestMonitor_ProbeErrorDefaultsToDisconnectedAndWarnsOnce(t *testing.T) {
	var sink syncBuffer
	log := &logger.Logger{Logger: zerolog.New(&sink)}

	var calls atomic.Int64
	prober := ProberFunc(func(context.Context) (bool, error) {
		calls.Add(1)
		return false, errors.New("reachability API unavailable")
	})

	m := NewMonitor(prober, Config{PollInterval: 2 * time.Millisecond}, log)
	ctx, stop := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = m.Run(ctx)
	}()

	require.Eventually(t, func() bool { return calls.Load() >= 5 }, time.Second, time.Millisecond)
	stop()
	<-done

	assert.Equal(t, models.ConnectivityDisconnected, m.State())
	assert.True(t, m.Degraded())
	assert.Equal(t, 1, strings.Count(sink.String(), "degraded mode"))
}

func TestMonitor_DegradedClearsAfterSuccessfulProbe(t *testing.T) {
	var fail atomic.Bool
	fail.Store(true)
	prober := ProberFunc(func(context.Context) (bool, error) {
		if fail.Load() {
			return false, errors.New("unavailable")
		}
		return true, nil
	})

	m := NewMonitor(prober, Config{PollInterval: 2 * time.Millisecond}, logger.Nop())
	ctx, stop := context.WithCancel(context.Background())
	defer stop()
	go func() { _ = m.Run(ctx) }()

	require.Eventually(t, m.Degraded, time.Second, time.Millisecond)
	fail.Store(false)
	require.Eventually(t, m.Connected, time.Second, time.Millisecond)
	assert.False(t, m.Degraded())
}

func TestMonitor_Run_WithoutProberWaitsForContext(t *testing.T) {
	m := NewMonitor(nil, Config{}, logger.Nop())
	ctx, stop := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- m.Run(ctx) }()

	stop()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
}
