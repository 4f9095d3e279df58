// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

// Package connectivity observes network reachability and publishes debounced
// connected/disconnected transitions to subscribers.
//
// Raw observations come either from a polled [Prober] or from a push-based
// platform callback via [Monitor.Notify]. A flip is committed only after it
// has persisted for the debounce window, so short flaps never reach
// consumers.
package connectivity

import (
	"context"
	"sync"
	"time"

	"github.com/MKhiriev/go-sync-keeper/internal/logger"
	"github.com/MKhiriev/go-sync-keeper/models"
)

// Source is the read side of the monitor consumed by the sync engine.
type Source interface {
	// Connected reports the last committed state. UNKNOWN counts as false.
	Connected() bool

	// State returns the last committed connectivity state.
	State() models.ConnectivityState

	// Subscribe returns a channel receiving every committed transition and a
	// function releasing the subscription.
	Subscribe() (<-chan bool, func())
}

// Config tunes polling and debouncing.
type Config struct {
	PollInterval   time.Duration
	DebounceWindow time.Duration
	ProbeTimeout   time.Duration
}

func (c Config) withDefaults() Config {
	if c.PollInterval <= 0 {
		c.PollInterval = 5 * time.Second
	}
	if c.DebounceWindow < 0 {
		c.DebounceWindow = 0
	}
	if c.ProbeTimeout <= 0 {
		c.ProbeTimeout = 3 * time.Second
	}
	return c
}

// Monitor implements Source.
type Monitor struct {
	prober Prober
	cfg    Config
	logger *logger.Logger

	mu        sync.Mutex
	state     models.ConnectivityState
	candidate *bool
	debounce  *time.Timer
	degraded  bool
	subs      map[int]chan bool
	nextSubID int
}

// NewMonitor creates a monitor. prober may be nil when observations are only
// pushed through Notify.
func NewMonitor(prober Prober, cfg Config, log *logger.Logger) *Monitor {
	return &Monitor{
		prober: prober,
		cfg:    cfg.withDefaults(),
		logger: log,
		state:  models.ConnectivityUnknown,
		subs:   make(map[int]chan bool),
	}
}

// Run polls the prober until ctx is cancelled. It performs one probe
// immediately. Without a prober it just waits for ctx.
func (m *Monitor) Run(ctx context.Context) error {
	defer m.stopDebounce()

	if m.prober == nil {
		<-ctx.Done()
		return nil
	}

	t := time.NewTicker(m.cfg.PollInterval)
	defer t.Stop()

	m.check(ctx)
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-t.C:
			m.check(ctx)
		}
	}
}

func (m *Monitor) check(ctx context.Context) {
	probeCtx, cancel := context.WithTimeout(ctx, m.cfg.ProbeTimeout)
	reachable, err := m.prober.Probe(probeCtx)
	cancel()

	if ctx.Err() != nil {
		return
	}

	m.mu.Lock()
	if err != nil {
		if !m.degraded {
			m.degraded = true
			m.logger.Warn().Err(err).
				Str("func", "Monitor.check").
				Msg("reachability cannot be queried, assuming disconnected (degraded mode)")
		}
		reachable = false
	} else if m.degraded {
		m.degraded = false
		m.logger.Info().Str("func", "Monitor.check").Msg("reachability source recovered")
	}
	m.mu.Unlock()

	m.Notify(reachable)
}

// Notify feeds one raw observation into the debouncer. It is safe to call
// from platform callbacks.
func (m *Monitor) Notify(connected bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	committed := m.state == models.ConnectivityConnected
	if m.state != models.ConnectivityUnknown && connected == committed {
		// flap ended before the window elapsed
		m.candidate = nil
		if m.debounce != nil {
			m.debounce.Stop()
			m.debounce = nil
		}
		return
	}

	// the first observation is committed without debounce
	if m.state == models.ConnectivityUnknown || m.cfg.DebounceWindow == 0 {
		m.commitLocked(connected)
		return
	}

	if m.candidate != nil && *m.candidate == connected {
		return
	}

	candidate := &connected
	m.candidate = candidate
	if m.debounce != nil {
		m.debounce.Stop()
	}
	m.debounce = time.AfterFunc(m.cfg.DebounceWindow, func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		// a newer observation replaced this one
		if m.candidate != candidate {
			return
		}
		m.commitLocked(*candidate)
	})
}

func (m *Monitor) commitLocked(connected bool) {
	m.candidate = nil
	m.debounce = nil

	next := models.ConnectivityDisconnected
	if connected {
		next = models.ConnectivityConnected
	}
	if next == m.state {
		return
	}
	m.state = next

	m.logger.Info().
		Str("func", "Monitor.commit").
		Str("connectivity", string(next)).
		Msg("connectivity changed")

	for _, ch := range m.subs {
		// keep only the latest value for slow consumers
		select {
		case ch <- connected:
		default:
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- connected:
			default:
			}
		}
	}
}

func (m *Monitor) stopDebounce() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.debounce != nil {
		m.debounce.Stop()
		m.debounce = nil
	}
	m.candidate = nil
}

// Connected implements Source.
func (m *Monitor) Connected() bool {
	return m.State() == models.ConnectivityConnected
}

// State implements Source.
func (m *Monitor) State() models.ConnectivityState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Degraded reports whether the reachability source currently fails to answer.
func (m *Monitor) Degraded() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.degraded
}

// Subscribe implements Source.
func (m *Monitor) Subscribe() (<-chan bool, func()) {
	m.mu.Lock()
	defer m.mu.Unlock()

	id := m.nextSubID
	m.nextSubID++
	ch := make(chan bool, 1)
	m.subs[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			m.mu.Lock()
			delete(m.subs, id)
			m.mu.Unlock()
		})
	}
}
