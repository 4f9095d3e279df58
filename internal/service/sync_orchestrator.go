// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/MKhiriev/go-sync-keeper/internal/app"
	"github.com/MKhiriev/go-sync-keeper/internal/connectivity"
	"github.com/MKhiriev/go-sync-keeper/internal/logger"
	"github.com/MKhiriev/go-sync-keeper/internal/retry"
	"github.com/MKhiriev/go-sync-keeper/models"
)

// OrchestratorConfig tunes the scheduling and health rules of one
// orchestrator. Zero values fall back to the defaults below.
type OrchestratorConfig struct {
	// Domain names the data domain in logs and status reports.
	Domain string

	SyncInterval       time.Duration
	MinSyncInterval    time.Duration
	StabilizationDelay time.Duration

	RecoveryPollInterval time.Duration
	RecoveryPollAttempts int

	HealthCheckThreshold   time.Duration
	MaxConsecutiveFailures int

	// BatchPolicy computes the delay of the batch-level retry scheduled after
	// a failed pass from the number of consecutive failures.
	BatchPolicy retry.Policy

	// OnRetryScheduled, if set, is called from the loop with the delay of
	// every batch-level retry it schedules.
	OnRetryScheduled func(consecutiveFailures int, delay time.Duration)
}

func (c OrchestratorConfig) withDefaults() OrchestratorConfig {
	if c.SyncInterval <= 0 {
		c.SyncInterval = 5 * time.Minute
	}
	if c.MinSyncInterval < 0 {
		c.MinSyncInterval = 0
	}
	if c.StabilizationDelay < 0 {
		c.StabilizationDelay = 0
	}
	if c.RecoveryPollInterval <= 0 {
		c.RecoveryPollInterval = time.Second
	}
	if c.RecoveryPollAttempts <= 0 {
		c.RecoveryPollAttempts = 10
	}
	if c.HealthCheckThreshold <= 0 {
		c.HealthCheckThreshold = 24 * time.Hour
	}
	if c.MaxConsecutiveFailures <= 0 {
		c.MaxConsecutiveFailures = 5
	}
	if c.BatchPolicy == (retry.Policy{}) {
		c.BatchPolicy = retry.DefaultBatchPolicy()
	}
	return c
}

type commandKind int

const (
	cmdTrigger commandKind = iota
	cmdRecover
	cmdStop
	cmdStart
)

type command struct {
	kind  commandKind
	force bool
	reply chan models.SyncOutcome
}

type passKind int

const (
	passSync passKind = iota
	passRecovery
)

// pendingPass is a pass whose start waits for the previous, cancelled pass
// goroutine to return.
type pendingPass struct {
	ctx  context.Context
	gen  uint64
	kind passKind
}

type passResult struct {
	gen    uint64
	ran    bool
	result models.SyncResult
	err    error
}

type syncOrchestrator struct {
	cfg    OrchestratorConfig
	syncer Syncer
	conn   connectivity.Source
	now    func() time.Time
	logger *logger.Logger

	commands chan command
	results  chan passResult

	// Owned by the loop goroutine, or by whoever holds lifeMu while the loop
	// is not running.
	state       models.SyncState
	metrics     models.SyncMetrics
	gen         uint64
	passCancel  context.CancelFunc
	inFlight    bool
	pending     *pendingPass
	terminalFailure   bool
	waiters     []chan models.SyncOutcome
	stabilizer  *time.Timer
	stabilizeC  <-chan time.Time
	retryTimer  *time.Timer
	retryC      <-chan time.Time
	connCh      <-chan bool
	unsubscribe func()

	// passes tracks pass goroutines so shutdown can wait for them.
	passes sync.WaitGroup

	// lifeMu serializes loop start-up and shutdown with Stop calls made while
	// the loop is not running.
	lifeMu sync.Mutex

	mu        sync.RWMutex
	running   bool
	done      chan struct{}
	snapState models.SyncState
	snapStats models.SyncMetrics
	subs      map[int]chan models.SyncState
	nextSubID int
}

// NewSyncOrchestrator creates the orchestrator of one data domain. It is idle
// until Run or Start is called.
func NewSyncOrchestrator(cfg OrchestratorConfig, syncer Syncer, conn connectivity.Source, logger *logger.Logger) SyncOrchestrator {
	return &syncOrchestrator{
		cfg:       cfg.withDefaults(),
		syncer:    syncer,
		conn:      conn,
		now:       time.Now,
		logger:    logger.WithDomain(cfg.Domain),
		commands:  make(chan command),
		results:   make(chan passResult, 1),
		state:     models.SyncIdle,
		snapState: models.SyncIdle,
		subs:      make(map[int]chan models.SyncState),
	}
}

// ── Lifecycle ────────────────────────────────────────────────────────────────

// Run implements SyncOrchestrator.
func (o *syncOrchestrator) Run(ctx context.Context) error {
	return o.run(ctx, nil)
}

// Start implements SyncOrchestrator.
func (o *syncOrchestrator) Start(ctx context.Context) error {
	o.mu.RLock()
	running := o.running
	o.mu.RUnlock()

	if !running {
		ready := make(chan struct{})
		go func() {
			if err := o.run(ctx, ready); err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, ErrAlreadyRunning) {
				o.logger.Err(err).Str("func", "syncOrchestrator.Start").Msg("sync loop exited")
			}
		}()
		<-ready
	}

	out, ok := o.call(ctx, command{kind: cmdStart})
	if !ok {
		return ErrNotRunning
	}
	return out.Err
}

// Stop implements SyncOrchestrator.
func (o *syncOrchestrator) Stop() {
	if _, ok := o.call(context.Background(), command{kind: cmdStop}); ok {
		return
	}

	o.lifeMu.Lock()
	defer o.lifeMu.Unlock()
	if o.isRunning() {
		return
	}
	o.transition(models.SyncStopped)
}

func (o *syncOrchestrator) run(ctx context.Context, ready chan<- struct{}) error {
	o.lifeMu.Lock()
	o.mu.Lock()
	if o.running {
		o.mu.Unlock()
		o.lifeMu.Unlock()
		if ready != nil {
			close(ready)
		}
		return ErrAlreadyRunning
	}
	o.running = true
	o.done = make(chan struct{})
	o.mu.Unlock()

	o.inFlight, o.pending = false, nil
	for drained := false; !drained; {
		select {
		case <-o.results:
		default:
			drained = true
		}
	}
	if busy(o.state) {
		// a previous loop exited in the middle of a pass
		o.setState(models.SyncIdle)
	}
	if o.state != models.SyncStopped {
		o.activate()
	}
	o.lifeMu.Unlock()

	if ready != nil {
		close(ready)
	}

	defer o.shutdown()

	ticker := time.NewTicker(o.cfg.SyncInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case cmd := <-o.commands:
			o.handleCommand(ctx, cmd)

		case connected, ok := <-o.connCh:
			if !ok {
				o.connCh = nil
				continue
			}
			o.handleConnectivity(connected)

		case <-o.stabilizeC:
			o.stabilizeC = nil
			o.handleStabilized(ctx)

		case <-o.retryC:
			o.retryC = nil
			if o.state == models.SyncFailed && o.conn.Connected() {
				o.logger.Info().Str("func", "syncOrchestrator.run").Msg("running batch retry")
				o.startPass(ctx, passSync, nil)
			}

		case <-ticker.C:
			o.handleTick(ctx)

		case res := <-o.results:
			o.handleResult(res)
		}
	}
}

// shutdown releases everything the loop owns. The state is kept, so a later
// Start resumes from it.
func (o *syncOrchestrator) shutdown() {
	o.lifeMu.Lock()
	defer o.lifeMu.Unlock()

	o.deactivate()
	o.replyWaiters(models.SyncOutcome{State: o.state, Skipped: true, Err: ErrNotRunning})

	o.mu.Lock()
	o.running = false
	close(o.done)
	o.mu.Unlock()

	o.passes.Wait()
}

// activate subscribes to connectivity and derives the starting state from it.
func (o *syncOrchestrator) activate() {
	o.connCh, o.unsubscribe = o.conn.Subscribe()

	switch o.conn.State() {
	case models.ConnectivityDisconnected:
		o.transition(models.SyncOffline)
	case models.ConnectivityConnected:
		if o.state == models.SyncIdle {
			o.armStabilizer()
		}
	}

	if o.state == models.SyncFailed && !o.terminalFailure {
		// the retry timer of the previous loop died with it
		o.scheduleRetry()
	}
}

// deactivate cancels all scheduled and in-flight work.
func (o *syncOrchestrator) deactivate() {
	o.cancelPass()
	o.cancelRetry()
	o.stopStabilizer()
	if o.unsubscribe != nil {
		o.unsubscribe()
		o.unsubscribe = nil
	}
	o.connCh = nil
}

func (o *syncOrchestrator) isRunning() bool {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.running
}

// call hands cmd to the loop and waits for its reply. It reports false when
// the loop is not running.
func (o *syncOrchestrator) call(ctx context.Context, cmd command) (models.SyncOutcome, bool) {
	o.mu.RLock()
	running, done := o.running, o.done
	o.mu.RUnlock()
	if !running {
		return models.SyncOutcome{}, false
	}

	cmd.reply = make(chan models.SyncOutcome, 1)
	select {
	case o.commands <- cmd:
	case <-done:
		return models.SyncOutcome{}, false
	case <-ctx.Done():
		return models.SyncOutcome{State: o.currentState(), Skipped: true, Err: ctx.Err()}, true
	}

	select {
	case out := <-cmd.reply:
		return out, true
	case <-done:
		return models.SyncOutcome{State: o.currentState(), Skipped: true, Err: ErrNotRunning}, true
	case <-ctx.Done():
		return models.SyncOutcome{State: o.currentState(), Skipped: true, Err: ctx.Err()}, true
	}
}

// ── Requests ─────────────────────────────────────────────────────────────────

// TriggerSync implements SyncOrchestrator.
func (o *syncOrchestrator) TriggerSync(ctx context.Context, force bool) models.SyncOutcome {
	out, ok := o.call(ctx, command{kind: cmdTrigger, force: force})
	if !ok {
		return o.notRunningOutcome()
	}
	return out
}

// RecoverFromFailure implements SyncOrchestrator.
func (o *syncOrchestrator) RecoverFromFailure(ctx context.Context) models.SyncOutcome {
	out, ok := o.call(ctx, command{kind: cmdRecover})
	if !ok {
		return o.notRunningOutcome()
	}
	return out
}

func (o *syncOrchestrator) notRunningOutcome() models.SyncOutcome {
	state := o.currentState()
	if state == models.SyncStopped {
		return models.SyncOutcome{State: state, Skipped: true, Err: app.ErrStopped}
	}
	return models.SyncOutcome{State: state, Skipped: true, Err: ErrNotRunning}
}

func (o *syncOrchestrator) handleCommand(ctx context.Context, cmd command) {
	switch cmd.kind {
	case cmdTrigger:
		o.handleTrigger(ctx, cmd)

	case cmdRecover:
		switch {
		case o.state == models.SyncStopped:
			cmd.reply <- models.SyncOutcome{State: o.state, Skipped: true, Err: app.ErrStopped}
		case o.state != models.SyncFailed:
			cmd.reply <- models.SyncOutcome{State: o.state, Skipped: true, Err: app.ErrNotFailed}
		default:
			o.startPass(ctx, passRecovery, cmd.reply)
		}

	case cmdStop:
		if o.state != models.SyncStopped {
			o.deactivate()
			o.transition(models.SyncStopped)
			o.replyWaiters(models.SyncOutcome{State: o.state, Skipped: true, Err: app.ErrStopped})
		}
		cmd.reply <- models.SyncOutcome{State: o.state}

	case cmdStart:
		if o.state == models.SyncStopped {
			o.transition(models.SyncIdle)
			o.activate()
		}
		cmd.reply <- models.SyncOutcome{State: o.state}
	}
}

func (o *syncOrchestrator) handleTrigger(ctx context.Context, cmd command) {
	out := models.SyncOutcome{State: o.state, Skipped: true}

	switch {
	case o.state == models.SyncStopped:
		out.Err = app.ErrStopped
	case busy(o.state):
		out.Coalesced = true
	case o.state == models.SyncOffline || !o.conn.Connected():
		if cmd.force {
			out.Err = app.ErrOffline
		}
	case !cmd.force && !o.minIntervalElapsed():
		o.logger.Debug().Str("func", "syncOrchestrator.handleTrigger").Msg("sync throttled by minimum interval")
	default:
		o.startPass(ctx, passSync, cmd.reply)
		return
	}

	cmd.reply <- out
}

// ── Events ───────────────────────────────────────────────────────────────────

func (o *syncOrchestrator) handleConnectivity(connected bool) {
	if o.state == models.SyncStopped {
		return
	}

	if !connected {
		if o.state == models.SyncOffline {
			return
		}
		o.cancelPass()
		o.cancelRetry()
		o.stopStabilizer()
		o.transition(models.SyncOffline)
		o.replyWaiters(models.SyncOutcome{State: o.state, Skipped: true})
		return
	}

	switch o.state {
	case models.SyncOffline:
		o.transition(models.SyncConnectivityRestored)
		o.armStabilizer()
	case models.SyncIdle:
		o.armStabilizer()
	}
}

// handleStabilized runs after the stabilization delay. The connection must
// still be up for the pass to start.
func (o *syncOrchestrator) handleStabilized(ctx context.Context) {
	if !o.conn.Connected() {
		if o.state == models.SyncConnectivityRestored {
			o.transition(models.SyncOffline)
		}
		return
	}

	if o.state == models.SyncConnectivityRestored || o.state == models.SyncIdle {
		o.startPass(ctx, passSync, nil)
	}
}

// handleTick starts the periodic pass. FAILED takes part unless a batch retry
// is pending, so a terminal failure never stops background sync for good.
func (o *syncOrchestrator) handleTick(ctx context.Context) {
	switch o.state {
	case models.SyncIdle, models.SyncSynced:
	case models.SyncFailed:
		if o.retryC != nil {
			return
		}
	default:
		return
	}
	if !o.conn.Connected() || !o.minIntervalElapsed() {
		return
	}
	o.startPass(ctx, passSync, nil)
}

func (o *syncOrchestrator) minIntervalElapsed() bool {
	last := o.metrics.LastSyncTime
	return last.IsZero() || o.now().Sub(last) >= o.cfg.MinSyncInterval
}

// ── Passes ───────────────────────────────────────────────────────────────────

func (o *syncOrchestrator) startPass(ctx context.Context, kind passKind, waiter chan models.SyncOutcome) {
	next := models.SyncSyncing
	if kind == passRecovery {
		next = models.SyncRecovering
	}
	if !o.transition(next) {
		if waiter != nil {
			waiter <- models.SyncOutcome{State: o.state, Skipped: true}
		}
		return
	}

	o.stopStabilizer()
	o.cancelRetry()

	o.gen++
	passCtx, cancel := context.WithCancel(withFailurePressure(ctx, o.metrics.ConsecutiveFailures))
	o.passCancel = cancel
	if waiter != nil {
		o.waiters = append(o.waiters, waiter)
	}

	if o.inFlight {
		o.logger.Debug().Str("func", "syncOrchestrator.startPass").Msg("waiting for the cancelled pass to return")
		o.pending = &pendingPass{ctx: passCtx, gen: o.gen, kind: kind}
		return
	}
	o.launch(passCtx, o.gen, kind)
}

// launch runs one pass in its own goroutine. At most one is in flight.
func (o *syncOrchestrator) launch(passCtx context.Context, gen uint64, kind passKind) {
	o.inFlight = true
	o.passes.Add(1)

	done := o.done
	go func() {
		defer o.passes.Done()

		res := passResult{gen: gen}
		if kind == passRecovery && !o.waitForStableConnection(passCtx) {
			res.err = app.ErrConnectionUnstable
		} else {
			res.ran = true
			res.result, res.err = o.syncer.Sync(passCtx)
		}

		select {
		case o.results <- res:
		case <-done:
		}
	}()
}

// waitForStableConnection polls connectivity a bounded number of times.
func (o *syncOrchestrator) waitForStableConnection(ctx context.Context) bool {
	for i := 0; i < o.cfg.RecoveryPollAttempts; i++ {
		if o.conn.Connected() {
			return true
		}
		if err := sleepContext(ctx, o.cfg.RecoveryPollInterval); err != nil {
			return false
		}
	}
	return o.conn.Connected()
}

func (o *syncOrchestrator) handleResult(res passResult) {
	o.inFlight = false
	if next := o.pending; next != nil {
		o.pending = nil
		o.launch(next.ctx, next.gen, next.kind)
	}

	if res.gen != o.gen || o.passCancel == nil {
		// the pass was cancelled; its outcome must not touch state
		return
	}
	o.passCancel()
	o.passCancel = nil

	if !res.ran {
		o.logger.Warn().Err(res.err).Str("func", "syncOrchestrator.handleResult").Msg("recovery gave up waiting for a stable connection")
		o.transition(models.SyncFailed)
		o.terminalFailure = false
		o.scheduleRetry()
		o.replyWaiters(models.SyncOutcome{State: o.state, Skipped: true, Err: res.err})
		return
	}

	now := o.now()
	o.metrics.TotalAttempts++
	o.metrics.LastSyncTime = now

	terminal := terminalError(res)
	if res.err == nil && res.result.Failed == 0 {
		o.metrics.SuccessCount++
		o.metrics.LastSuccessfulSync = now
		o.metrics.ConsecutiveFailures = 0
		o.transition(models.SyncSynced)
	} else {
		o.metrics.FailureCount++
		o.metrics.ConsecutiveFailures++
		o.terminalFailure = terminal != nil
		o.transition(models.SyncFailed)

		ev := o.logger.Warn().Str("func", "syncOrchestrator.handleResult").
			Int("failed", res.result.Failed).Int("consecutive_failures", o.metrics.ConsecutiveFailures)
		if res.err != nil {
			ev = ev.Err(res.err)
		}
		if terminal != nil {
			ev.Msg("sync failed with a terminal error, no batch retry until the next periodic sync")
		} else {
			ev.Msg("sync failed, batch retry scheduled")
			o.scheduleRetry()
		}
	}
	o.publish()

	o.replyWaiters(models.SyncOutcome{State: o.state, Result: res.result, Err: terminal})
}

// terminalError returns the first error of a pass that must reach the user.
func terminalError(res passResult) error {
	if res.err != nil && app.IsTerminal(res.err) && !errors.Is(res.err, context.Canceled) {
		return res.err
	}
	for _, f := range res.result.Failures {
		if f.Terminal {
			return f.Err
		}
	}
	return nil
}

func (o *syncOrchestrator) replyWaiters(out models.SyncOutcome) {
	for _, w := range o.waiters {
		w <- out
	}
	o.waiters = nil
}

// cancelPass abandons the pass in flight. Bumping the generation makes its
// eventual result stale.
func (o *syncOrchestrator) cancelPass() {
	if o.passCancel == nil {
		return
	}
	o.passCancel()
	o.passCancel = nil
	o.pending = nil
	o.gen++
}

// ── Timers ───────────────────────────────────────────────────────────────────

func (o *syncOrchestrator) armStabilizer() {
	o.stopStabilizer()
	o.stabilizer = time.NewTimer(o.cfg.StabilizationDelay)
	o.stabilizeC = o.stabilizer.C
}

func (o *syncOrchestrator) stopStabilizer() {
	if o.stabilizer != nil {
		o.stabilizer.Stop()
		o.stabilizer = nil
	}
	o.stabilizeC = nil
}

func (o *syncOrchestrator) scheduleRetry() {
	o.cancelRetry()
	delay := o.cfg.BatchPolicy.DelayForAttempt(o.metrics.ConsecutiveFailures - 1)
	o.retryTimer = time.NewTimer(delay)
	o.retryC = o.retryTimer.C

	o.logger.Debug().Str("func", "syncOrchestrator.scheduleRetry").Dur("delay", delay).Msg("batch retry scheduled")
	if o.cfg.OnRetryScheduled != nil {
		o.cfg.OnRetryScheduled(o.metrics.ConsecutiveFailures, delay)
	}
}

func (o *syncOrchestrator) cancelRetry() {
	if o.retryTimer != nil {
		o.retryTimer.Stop()
		o.retryTimer = nil
	}
	o.retryC = nil
}

// ── State ────────────────────────────────────────────────────────────────────

// transition moves to next if the table allows it. Staying in the same state
// is always allowed and emits nothing.
func (o *syncOrchestrator) transition(next models.SyncState) bool {
	if o.state == next {
		return true
	}
	if !CanTransition(o.state, next) {
		o.logger.Warn().Str("func", "syncOrchestrator.transition").
			Str("from", string(o.state)).Str("to", string(next)).
			Err(ErrIllegalTransition).Msg("transition rejected")
		return false
	}

	o.logger.Info().Str("func", "syncOrchestrator.transition").
		Str("from", string(o.state)).Str("to", string(next)).Msg("sync state changed")
	o.setState(next)
	return true
}

func (o *syncOrchestrator) setState(next models.SyncState) {
	o.state = next
	o.publish()
}

// publish copies loop-owned state into the snapshot read by other goroutines
// and notifies subscribers of state changes.
func (o *syncOrchestrator) publish() {
	o.mu.Lock()
	defer o.mu.Unlock()

	changed := o.snapState != o.state
	o.snapState = o.state
	o.snapStats = o.metrics
	if !changed {
		return
	}

	for _, ch := range o.subs {
		// keep only the latest state for slow consumers
		select {
		case ch <- o.state:
		default:
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- o.state:
			default:
			}
		}
	}
}

func (o *syncOrchestrator) currentState() models.SyncState {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.snapState
}

// Subscribe implements SyncOrchestrator.
func (o *syncOrchestrator) Subscribe() (<-chan models.SyncState, func()) {
	o.mu.Lock()
	defer o.mu.Unlock()

	id := o.nextSubID
	o.nextSubID++
	ch := make(chan models.SyncState, 1)
	o.subs[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			o.mu.Lock()
			delete(o.subs, id)
			o.mu.Unlock()
		})
	}
}

// Status implements SyncOrchestrator.
func (o *syncOrchestrator) Status() models.SyncStatusReport {
	o.mu.RLock()
	state, metrics := o.snapState, o.snapStats
	o.mu.RUnlock()

	return models.SyncStatusReport{
		Domain:       o.cfg.Domain,
		State:        state,
		Connectivity: o.conn.State(),
		Metrics:      metrics,
		Healthy:      o.healthy(state, metrics),
	}
}

// Healthy implements SyncOrchestrator.
func (o *syncOrchestrator) Healthy() bool {
	o.mu.RLock()
	state, metrics := o.snapState, o.snapStats
	o.mu.RUnlock()
	return o.healthy(state, metrics)
}

func (o *syncOrchestrator) healthy(state models.SyncState, metrics models.SyncMetrics) bool {
	switch {
	case state == models.SyncStopped:
		return false
	case state == models.SyncFailed && metrics.ConsecutiveFailures > o.cfg.MaxConsecutiveFailures:
		return false
	case !metrics.LastSuccessfulSync.IsZero() && o.now().Sub(metrics.LastSuccessfulSync) > o.cfg.HealthCheckThreshold:
		return false
	default:
		return true
	}
}
