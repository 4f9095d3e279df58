// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package service

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/MKhiriev/go-sync-keeper/internal/app"
	"github.com/MKhiriev/go-sync-keeper/models"
)

const (
	testType  = "daily_logs"
	testOwner = "user-1"
)

var testBase = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

// testClock is a manually advanced clock.
type testClock struct {
	mu sync.Mutex
	t  time.Time
}

func newTestClock() *testClock {
	return &testClock{t: testBase}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

// payload builds a single-section payload with the given JSON body.
func payload(body string) models.Payload {
	return models.Payload{Sections: map[string]models.Section{
		"symptoms": {Customized: true, Data: json.RawMessage(body)},
	}}
}

func testEntity(id, body string) models.SyncableEntity {
	return models.SyncableEntity{
		ID:         id,
		OwnerID:    testOwner,
		EntityType: testType,
		Payload:    payload(body),
	}
}

// ── Connectivity ─────────────────────────────────────────────────────────────

// fakeConn is a connectivity.Source driven by the test.
type fakeConn struct {
	mu    sync.Mutex
	state models.ConnectivityState
	subs  map[int]chan bool
	next  int
}

func newFakeConn(connected bool) *fakeConn {
	c := &fakeConn{state: models.ConnectivityDisconnected, subs: make(map[int]chan bool)}
	if connected {
		c.state = models.ConnectivityConnected
	}
	return c
}

// newUnknownConn starts without any committed observation.
func newUnknownConn() *fakeConn {
	return &fakeConn{state: models.ConnectivityUnknown, subs: make(map[int]chan bool)}
}

func (c *fakeConn) Connected() bool {
	return c.State() == models.ConnectivityConnected
}

func (c *fakeConn) State() models.ConnectivityState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *fakeConn) Subscribe() (<-chan bool, func()) {
	c.mu.Lock()
	defer c.mu.Unlock()

	id := c.next
	c.next++
	ch := make(chan bool, 1)
	c.subs[id] = ch
	return ch, func() {
		c.mu.Lock()
		delete(c.subs, id)
		c.mu.Unlock()
	}
}

// Set commits a new state and notifies subscribers, keeping only the latest
// value for each of them.
func (c *fakeConn) Set(connected bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	next := models.ConnectivityDisconnected
	if connected {
		next = models.ConnectivityConnected
	}
	if next == c.state {
		return
	}
	c.state = next

	for _, ch := range c.subs {
		select {
		case <-ch:
		default:
		}
		ch <- connected
	}
}

// SetQuietly changes the state without notifying subscribers, like a link
// that drops between two probes.
func (c *fakeConn) SetQuietly(connected bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state = models.ConnectivityDisconnected
	if connected {
		c.state = models.ConnectivityConnected
	}
}

func (c *fakeConn) Subscribers() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.subs)
}

// ── Remote store ─────────────────────────────────────────────────────────────

// memRemote is an in-memory adapter.RemoteStore with the same conflict rules
// as the HTTP server: duplicate creates and stale updates are conflicts.
type memRemote struct {
	mu        sync.Mutex
	items     map[string]models.SyncableEntity
	fail      map[string]error
	failTimes map[string]int
	calls     map[string]int
	lastSince time.Time
	token     string
}

func newMemRemote() *memRemote {
	return &memRemote{
		items:     make(map[string]models.SyncableEntity),
		fail:      make(map[string]error),
		failTimes: make(map[string]int),
		calls:     make(map[string]int),
	}
}

// FailWith makes op fail with err for the given entity. times < 0 fails
// forever.
func (m *memRemote) FailWith(op, id string, err error, times int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fail[op+"/"+id] = err
	m.failTimes[op+"/"+id] = times
}

func (m *memRemote) injected(op, id string) error {
	m.calls[op]++
	k := op + "/" + id
	err, ok := m.fail[k]
	if !ok {
		return nil
	}
	switch n := m.failTimes[k]; {
	case n < 0:
	case n <= 1:
		delete(m.fail, k)
	default:
		m.failTimes[k] = n - 1
	}
	return err
}

func (m *memRemote) Calls(op string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls[op]
}

func (m *memRemote) Put(e models.SyncableEntity) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e.SyncStatus = ""
	m.items[e.ID] = e.Clone()
}

func (m *memRemote) Item(id string) (models.SyncableEntity, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.items[id]
	return e, ok
}

func (m *memRemote) LastSince() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastSince
}

func (m *memRemote) SetToken(token string) { m.token = token }
func (m *memRemote) Token() string         { return m.token }

func (m *memRemote) Create(ctx context.Context, e models.SyncableEntity) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.injected("create", e.ID); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, ok := m.items[e.ID]; ok {
		return fmt.Errorf("%w: %s exists", app.ErrSyncConflict, e.ID)
	}
	e.SyncStatus = ""
	m.items[e.ID] = e.Clone()
	return nil
}

func (m *memRemote) Update(ctx context.Context, e models.SyncableEntity) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.injected("update", e.ID); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	stored, ok := m.items[e.ID]
	if !ok {
		return fmt.Errorf("%w: %s", app.ErrNotFound, e.ID)
	}
	if stored.Version > e.Version {
		return fmt.Errorf("%w: %s is at version %d", app.ErrSyncConflict, e.ID, stored.Version)
	}
	e.SyncStatus = ""
	m.items[e.ID] = e.Clone()
	return nil
}

func (m *memRemote) Delete(ctx context.Context, key models.EntityKey) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.injected("delete", key.ID); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	stored, ok := m.items[key.ID]
	if !ok || stored.Deleted {
		return fmt.Errorf("%w: %s", app.ErrNotFound, key.ID)
	}
	stored.Deleted = true
	m.items[key.ID] = stored
	return nil
}

func (m *memRemote) Get(ctx context.Context, key models.EntityKey) (models.SyncableEntity, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.injected("get", key.ID); err != nil {
		return models.SyncableEntity{}, err
	}
	if err := ctx.Err(); err != nil {
		return models.SyncableEntity{}, err
	}
	stored, ok := m.items[key.ID]
	if !ok {
		return models.SyncableEntity{}, fmt.Errorf("%w: %s", app.ErrNotFound, key.ID)
	}
	return stored.Clone(), nil
}

func (m *memRemote) Query(ctx context.Context, entityType, ownerID string, rng models.QueryRange) ([]models.SyncableEntity, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.injected("query", ""); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.lastSince = rng.Since

	var out []models.SyncableEntity
	for _, e := range m.items {
		if e.EntityType != entityType || e.OwnerID != ownerID {
			continue
		}
		if !rng.Since.IsZero() && !e.LastModified.After(rng.Since) {
			continue
		}
		out = append(out, e.Clone())
	}
	return out, nil
}

// ── Syncer ───────────────────────────────────────────────────────────────────

// scriptedSyncer returns queued results and records how many passes ran.
type scriptedSyncer struct {
	mu      sync.Mutex
	results []syncReply
	calls   int
	block   chan struct{}
	started chan struct{}
}

type syncReply struct {
	result models.SyncResult
	err    error
}

func newScriptedSyncer(replies ...syncReply) *scriptedSyncer {
	return &scriptedSyncer{results: replies, started: make(chan struct{}, 16)}
}

func (s *scriptedSyncer) Sync(ctx context.Context) (models.SyncResult, error) {
	s.mu.Lock()
	s.calls++
	var reply syncReply
	if len(s.results) > 0 {
		reply = s.results[0]
		s.results = s.results[1:]
	}
	block := s.block
	s.mu.Unlock()

	select {
	case s.started <- struct{}{}:
	default:
	}

	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return models.SyncResult{}, ctx.Err()
		}
	}
	return reply.result, reply.err
}

func (s *scriptedSyncer) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

// Block makes subsequent passes wait until the returned function is called.
func (s *scriptedSyncer) Block() func() {
	ch := make(chan struct{})
	s.mu.Lock()
	s.block = ch
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			s.block = nil
			s.mu.Unlock()
			close(ch)
		})
	}
}
