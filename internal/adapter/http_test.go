// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package adapter

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/MKhiriev/go-sync-keeper/internal/app"
	"github.com/MKhiriev/go-sync-keeper/internal/config"
	"github.com/MKhiriev/go-sync-keeper/internal/logger"
	"github.com/MKhiriev/go-sync-keeper/internal/utils"
	"github.com/MKhiriev/go-sync-keeper/models"
	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeRemote is an in-memory remote store served over chi.
type fakeRemote struct {
	mu       sync.Mutex
	items    map[string]models.SyncableEntity
	lastAuth string
	since    string
	calls    int
}

func newFakeRemote() *fakeRemote {
	return &fakeRemote{items: make(map[string]models.SyncableEntity)}
}

func (f *fakeRemote) router() http.Handler {
	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			f.mu.Lock()
			f.lastAuth = r.Header.Get("Authorization")
			f.calls++
			f.mu.Unlock()
			next.ServeHTTP(w, r)
		})
	})
	r.Route("/api/v1/{type}/{owner}/entities", func(r chi.Router) {
		r.Get("/", f.query)
		r.Post("/", f.create)
		r.Get("/{id}", f.get)
		r.Put("/{id}", f.update)
		r.Delete("/{id}", f.delete)
	})
	return r
}

func (f *fakeRemote) create(w http.ResponseWriter, r *http.Request) {
	var e models.SyncableEntity
	if err := json.NewDecoder(r.Body).Decode(&e); err != nil {
		http.Error(w, "bad body", http.StatusBadRequest)
		return
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.items[e.ID]; ok {
		http.Error(w, "already exists", http.StatusConflict)
		return
	}
	f.items[e.ID] = e
	w.WriteHeader(http.StatusCreated)
}

func (f *fakeRemote) update(w http.ResponseWriter, r *http.Request) {
	var e models.SyncableEntity
	if err := json.NewDecoder(r.Body).Decode(&e); err != nil {
		http.Error(w, "bad body", http.StatusBadRequest)
		return
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	current, ok := f.items[chi.URLParam(r, "id")]
	if !ok {
		http.Error(w, "", http.StatusNotFound)
		return
	}
	if current.Version > e.Version {
		http.Error(w, "stale version", http.StatusConflict)
		return
	}
	f.items[e.ID] = e
	w.WriteHeader(http.StatusNoContent)
}

func (f *fakeRemote) delete(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	id := chi.URLParam(r, "id")
	if _, ok := f.items[id]; !ok {
		http.Error(w, "", http.StatusNotFound)
		return
	}
	delete(f.items, id)
	w.WriteHeader(http.StatusNoContent)
}

func (f *fakeRemote) get(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	e, ok := f.items[chi.URLParam(r, "id")]
	f.mu.Unlock()
	if !ok {
		http.Error(w, "", http.StatusNotFound)
		return
	}
	_, _ = utils.WriteJSON(w, e, http.StatusOK)
}

func (f *fakeRemote) query(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.since = r.URL.Query().Get("since")

	var since time.Time
	if f.since != "" {
		var err error
		if since, err = time.Parse(time.RFC3339Nano, f.since); err != nil {
			http.Error(w, "bad since", http.StatusUnprocessableEntity)
			return
		}
	}

	out := make([]models.SyncableEntity, 0, len(f.items))
	for _, e := range f.items {
		if e.OwnerID == chi.URLParam(r, "owner") && e.LastModified.After(since) {
			out = append(out, e)
		}
	}
	_, _ = utils.WriteJSON(w, out, http.StatusOK)
}

// newTestAdapter creates an httpRemoteStore pointed at the test server.
func newTestAdapter(t *testing.T, serverURL string) *httpRemoteStore {
	t.Helper()
	a, err := NewHTTPRemoteStore(config.ClientAdapter{HTTPAddress: serverURL, RequestTimeout: 5 * time.Second}, logger.Nop())
	require.NoError(t, err)
	return a.(*httpRemoteStore)
}

func newFakeServer(t *testing.T) (*fakeRemote, *httpRemoteStore) {
	t.Helper()
	remote := newFakeRemote()
	srv := httptest.NewServer(remote.router())
	t.Cleanup(srv.Close)
	return remote, newTestAdapter(t, srv.URL)
}

func testEntity(id string, modified time.Time) models.SyncableEntity {
	return models.SyncableEntity{
		ID:           id,
		OwnerID:      "u1",
		EntityType:   "daily_logs",
		LastModified: modified,
		Version:      1,
		SyncStatus:   models.StatusPending,
		Payload: models.Payload{Sections: map[string]models.Section{
			"mood": {Customized: true, Data: json.RawMessage(`{"score":4}`)},
		}},
	}
}

func statusServer(t *testing.T, status int, body string) *httpRemoteStore {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return newTestAdapter(t, srv.URL)
}

var testTime = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

// ── Create / Get ─────────────────────────────────────────────────────────────

func TestCreateAndGet_RoundTrip(t *testing.T) {
	remote, a := newFakeServer(t)
	ctx := context.Background()
	e := testEntity("e1", testTime)

	require.NoError(t, a.Create(ctx, e))

	remote.mu.Lock()
	stored := remote.items["e1"]
	remote.mu.Unlock()
	assert.Empty(t, stored.SyncStatus, "sync status must not leave the device")

	got, err := a.Get(ctx, e.Key())
	require.NoError(t, err)
	assert.Equal(t, "e1", got.ID)
	assert.True(t, got.LastModified.Equal(testTime))
	assert.Empty(t, got.SyncStatus)
	assert.True(t, got.Payload.Equal(e.Payload))
}

func TestCreate_Conflict(t *testing.T) {
	_, a := newFakeServer(t)
	ctx := context.Background()
	e := testEntity("e1", testTime)

	require.NoError(t, a.Create(ctx, e))
	err := a.Create(ctx, e)

	require.Error(t, err)
	assert.ErrorIs(t, err, app.ErrSyncConflict)
}

func TestGet_NotFound(t *testing.T) {
	_, a := newFakeServer(t)

	_, err := a.Get(context.Background(), models.EntityKey{EntityType: "daily_logs", OwnerID: "u1", ID: "missing"})

	require.Error(t, err)
	assert.ErrorIs(t, err, app.ErrNotFound)
}

func TestGet_BadJSON(t *testing.T) {
	a := statusServer(t, http.StatusOK, "{not json")

	_, err := a.Get(context.Background(), models.EntityKey{EntityType: "daily_logs", OwnerID: "u1", ID: "e1"})

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrDecodeResponse)
}

// ── Update / Delete ──────────────────────────────────────────────────────────

func TestUpdate_NotFound(t *testing.T) {
	_, a := newFakeServer(t)

	err := a.Update(context.Background(), testEntity("e1", testTime))

	require.Error(t, err)
	assert.ErrorIs(t, err, app.ErrNotFound)
}

func TestUpdate_StaleVersionConflict(t *testing.T) {
	_, a := newFakeServer(t)
	ctx := context.Background()
	e := testEntity("e1", testTime)
	e.Version = 3
	require.NoError(t, a.Create(ctx, e))

	stale := testEntity("e1", testTime.Add(time.Minute))
	stale.Version = 2
	err := a.Update(ctx, stale)

	require.Error(t, err)
	assert.ErrorIs(t, err, app.ErrSyncConflict)
}

func TestDelete(t *testing.T) {
	_, a := newFakeServer(t)
	ctx := context.Background()
	e := testEntity("e1", testTime)
	require.NoError(t, a.Create(ctx, e))

	require.NoError(t, a.Delete(ctx, e.Key()))

	err := a.Delete(ctx, e.Key())
	assert.ErrorIs(t, err, app.ErrNotFound)
}

// ── Query ────────────────────────────────────────────────────────────────────

func TestQuery_Since(t *testing.T) {
	remote, a := newFakeServer(t)
	ctx := context.Background()
	require.NoError(t, a.Create(ctx, testEntity("old", testTime)))
	require.NoError(t, a.Create(ctx, testEntity("new", testTime.Add(time.Hour))))

	items, err := a.Query(ctx, "daily_logs", "u1", models.QueryRange{Since: testTime})
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "new", items[0].ID)

	remote.mu.Lock()
	assert.Equal(t, testTime.Format(time.RFC3339Nano), remote.since)
	remote.mu.Unlock()

	all, err := a.Query(ctx, "daily_logs", "u1", models.QueryRange{})
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

// ── Error mapping ────────────────────────────────────────────────────────────

func TestMapHTTPError(t *testing.T) {
	tests := []struct {
		status int
		want   error
	}{
		{http.StatusBadRequest, app.ErrValidation},
		{http.StatusUnprocessableEntity, app.ErrValidation},
		{http.StatusUnauthorized, app.ErrAuth},
		{http.StatusForbidden, app.ErrAuth},
		{http.StatusNotFound, app.ErrNotFound},
		{http.StatusConflict, app.ErrSyncConflict},
		{http.StatusRequestTimeout, app.ErrNetwork},
		{http.StatusTooManyRequests, app.ErrNetwork},
		{http.StatusInternalServerError, app.ErrNetwork},
		{http.StatusBadGateway, app.ErrNetwork},
		{http.StatusServiceUnavailable, app.ErrNetwork},
		{http.StatusTeapot, app.ErrUnknown},
	}

	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			a := statusServer(t, tt.status, "reason")

			err := a.Update(context.Background(), testEntity("e1", testTime))

			require.Error(t, err)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestTransportError_IsNetwork(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	a := newTestAdapter(t, url)
	err := a.Create(context.Background(), testEntity("e1", testTime))

	require.Error(t, err)
	assert.ErrorIs(t, err, app.ErrNetwork)
	assert.True(t, app.IsRetryable(err))
}

func TestTransportError_CanceledStaysCanceled(t *testing.T) {
	_, a := newFakeServer(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := a.Create(ctx, testEntity("e1", testTime))

	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, errors.Is(err, app.ErrNetwork))
}

func TestIncompleteKey(t *testing.T) {
	remote, a := newFakeServer(t)

	err := a.Delete(context.Background(), models.EntityKey{EntityType: "daily_logs", OwnerID: "u1"})

	assert.ErrorIs(t, err, ErrIncompleteKey)
	assert.ErrorIs(t, err, app.ErrValidation)
	remote.mu.Lock()
	assert.Zero(t, remote.calls)
	remote.mu.Unlock()
}

// ── Token ────────────────────────────────────────────────────────────────────

func TestToken_SentAsBearer(t *testing.T) {
	remote, a := newFakeServer(t)
	token, err := utils.GenerateJWTToken("test", "u1", time.Hour, "secret")
	require.NoError(t, err)

	a.SetToken("  " + token + "  ")
	assert.Equal(t, token, a.Token())

	_, _ = a.Query(context.Background(), "daily_logs", "u1", models.QueryRange{})

	remote.mu.Lock()
	assert.Equal(t, "Bearer "+token, remote.lastAuth)
	remote.mu.Unlock()
}

func TestToken_ExpiredFailsFast(t *testing.T) {
	remote, a := newFakeServer(t)
	token, err := utils.GenerateJWTToken("test", "u1", -time.Minute, "secret")
	require.NoError(t, err)
	a.SetToken(token)

	err = a.Create(context.Background(), testEntity("e1", testTime))

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrTokenExpired)
	assert.ErrorIs(t, err, app.ErrAuth)
	remote.mu.Lock()
	assert.Zero(t, remote.calls, "expired token must not reach the remote")
	remote.mu.Unlock()
}

func TestToken_OpaqueTokenIsSent(t *testing.T) {
	remote, a := newFakeServer(t)
	a.SetToken("opaque-token")

	require.NoError(t, a.Create(context.Background(), testEntity("e1", testTime)))

	remote.mu.Lock()
	assert.Equal(t, "Bearer opaque-token", remote.lastAuth)
	remote.mu.Unlock()
}

// ── normalizeBaseURL ─────────────────────────────────────────────────────────

func TestNormalizeBaseURL(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    string
		wantErr bool
	}{
		{"with scheme", "http://localhost:8080", "http://localhost:8080", false},
		{"without scheme", "localhost:8080", "http://localhost:8080", false},
		{"trailing slash", "https://example.com/", "https://example.com", false},
		{"whitespace", "  http://example.com  ", "http://example.com", false},
		{"empty", "", "", true},
		{"only spaces", "   ", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := normalizeBaseURL(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNewHTTPRemoteStore_InvalidAddress(t *testing.T) {
	_, err := NewHTTPRemoteStore(config.ClientAdapter{HTTPAddress: ""}, logger.Nop())

	assert.ErrorIs(t, err, ErrInvalidAddress)
}
