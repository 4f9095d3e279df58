// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package adapter

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/MKhiriev/go-sync-keeper/internal/config"
	"github.com/MKhiriev/go-sync-keeper/internal/logger"
	"github.com/MKhiriev/go-sync-keeper/internal/utils"
	"github.com/MKhiriev/go-sync-keeper/models"
	"github.com/go-resty/resty/v2"
)

const (
	collectionPath = "/api/v1/{type}/{owner}/entities"
	entityPath     = collectionPath + "/{id}"
)

type httpRemoteStore struct {
	client *utils.HTTPClient

	mu        sync.RWMutex
	token     string
	expiresAt time.Time

	now    func() time.Time
	logger *logger.Logger
}

// NewHTTPRemoteStore constructs an HTTP/REST implementation of [RemoteStore].
// It normalises and validates the base URL from adapterCfg.HTTPAddress and
// configures the underlying HTTP client with the resolved base URL and request
// timeout. A token from the configuration is installed with SetToken.
//
// Returns an error if adapterCfg.HTTPAddress is empty or cannot be parsed as a
// valid URL.
func NewHTTPRemoteStore(adapterCfg config.ClientAdapter, logger *logger.Logger) (RemoteStore, error) {
	client := utils.NewHTTPClient(adapterCfg.RequestTimeout)
	baseURL, err := normalizeBaseURL(adapterCfg.HTTPAddress)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidAddress, err)
	}

	client.
		SetBaseURL(baseURL).
		SetHeader("Accept", "application/json")

	h := &httpRemoteStore{client: client, now: time.Now, logger: logger}
	h.SetToken(adapterCfg.Token)
	return h, nil
}

func normalizeBaseURL(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", fmt.Errorf("empty address")
	}

	if !strings.Contains(raw, "://") {
		raw = "http://" + raw
	}

	u, err := url.Parse(raw)
	if err != nil {
		return "", err
	}
	if u.Scheme == "" || u.Host == "" {
		return "", fmt.Errorf("address must include host and scheme")
	}

	return strings.TrimRight(u.String(), "/"), nil
}

// SetToken implements [RemoteStore]. It stores token (whitespace-trimmed) for
// use in the Authorization header of all subsequent requests. When the token
// is a JWT carrying an exp claim, the expiry is remembered so that requests
// made with an expired token fail without a round trip.
func (h *httpRemoteStore) SetToken(token string) {
	token = strings.TrimSpace(token)

	var expiresAt time.Time
	if token != "" {
		if exp, err := utils.TokenExpiry(token); err == nil {
			expiresAt = exp
		}
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	h.token = token
	h.expiresAt = expiresAt
}

// Token implements [RemoteStore].
func (h *httpRemoteStore) Token() string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.token
}

// Create implements [RemoteStore]. It POSTs the entity to
// POST /api/v1/{type}/{owner}/entities.
func (h *httpRemoteStore) Create(ctx context.Context, entity models.SyncableEntity) error {
	req, err := h.entityRequest(ctx, entity.Key(), false)
	if err != nil {
		return err
	}

	resp, err := req.
		SetHeader("Content-Type", "application/json").
		SetBody(withoutStatus(entity)).
		Post(collectionPath)
	if err != nil {
		return mapTransportError("create", err)
	}

	return h.logFailure("httpRemoteStore.Create", entity.ID, mapHTTPError(resp))
}

// Update implements [RemoteStore]. It PUTs the entity to
// PUT /api/v1/{type}/{owner}/entities/{id}.
func (h *httpRemoteStore) Update(ctx context.Context, entity models.SyncableEntity) error {
	req, err := h.entityRequest(ctx, entity.Key(), true)
	if err != nil {
		return err
	}

	resp, err := req.
		SetHeader("Content-Type", "application/json").
		SetBody(withoutStatus(entity)).
		Put(entityPath)
	if err != nil {
		return mapTransportError("update", err)
	}

	return h.logFailure("httpRemoteStore.Update", entity.ID, mapHTTPError(resp))
}

// Delete implements [RemoteStore]. It sends
// DELETE /api/v1/{type}/{owner}/entities/{id}.
func (h *httpRemoteStore) Delete(ctx context.Context, key models.EntityKey) error {
	req, err := h.entityRequest(ctx, key, true)
	if err != nil {
		return err
	}

	resp, err := req.Delete(entityPath)
	if err != nil {
		return mapTransportError("delete", err)
	}

	return h.logFailure("httpRemoteStore.Delete", key.ID, mapHTTPError(resp))
}

// Get implements [RemoteStore]. It sends
// GET /api/v1/{type}/{owner}/entities/{id} and decodes the entity.
func (h *httpRemoteStore) Get(ctx context.Context, key models.EntityKey) (models.SyncableEntity, error) {
	req, err := h.entityRequest(ctx, key, true)
	if err != nil {
		return models.SyncableEntity{}, err
	}

	resp, err := req.Get(entityPath)
	if err != nil {
		return models.SyncableEntity{}, mapTransportError("get", err)
	}
	if err = mapHTTPError(resp); err != nil {
		return models.SyncableEntity{}, h.logFailure("httpRemoteStore.Get", key.ID, err)
	}

	var entity models.SyncableEntity
	if err = json.Unmarshal(resp.Body(), &entity); err != nil {
		return models.SyncableEntity{}, fmt.Errorf("%w: %w", ErrDecodeResponse, err)
	}

	return withoutStatus(entity), nil
}

// Query implements [RemoteStore]. It sends
// GET /api/v1/{type}/{owner}/entities?since=...&until=... with RFC 3339
// timestamps; zero bounds are omitted.
func (h *httpRemoteStore) Query(ctx context.Context, entityType, ownerID string, rng models.QueryRange) ([]models.SyncableEntity, error) {
	req, err := h.entityRequest(ctx, models.EntityKey{EntityType: entityType, OwnerID: ownerID}, false)
	if err != nil {
		return nil, err
	}

	if !rng.Since.IsZero() {
		req.SetQueryParam("since", rng.Since.UTC().Format(time.RFC3339Nano))
	}
	if !rng.Until.IsZero() {
		req.SetQueryParam("until", rng.Until.UTC().Format(time.RFC3339Nano))
	}

	resp, err := req.Get(collectionPath)
	if err != nil {
		return nil, mapTransportError("query", err)
	}
	if err = mapHTTPError(resp); err != nil {
		return nil, h.logFailure("httpRemoteStore.Query", "", err)
	}

	var items []models.SyncableEntity
	if err = json.Unmarshal(resp.Body(), &items); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDecodeResponse, err)
	}

	for i := range items {
		items[i] = withoutStatus(items[i])
	}
	return items, nil
}

// entityRequest builds an authenticated request with the key's path
// parameters set. It fails fast on incomplete keys and expired tokens.
func (h *httpRemoteStore) entityRequest(ctx context.Context, key models.EntityKey, withID bool) (*resty.Request, error) {
	if key.EntityType == "" || key.OwnerID == "" || (withID && key.ID == "") {
		return nil, fmt.Errorf("%w: %+v", ErrIncompleteKey, key)
	}

	h.mu.RLock()
	token, expiresAt := h.token, h.expiresAt
	h.mu.RUnlock()

	if !expiresAt.IsZero() && !h.now().Before(expiresAt) {
		return nil, fmt.Errorf("%w at %s", ErrTokenExpired, expiresAt.Format(time.RFC3339))
	}

	params := map[string]string{"type": key.EntityType, "owner": key.OwnerID}
	if withID {
		params["id"] = key.ID
	}

	req := h.client.R().SetContext(ctx).SetPathParams(params)
	if token != "" {
		req.SetHeader("Authorization", "Bearer "+token)
	}
	return req, nil
}

func (h *httpRemoteStore) logFailure(fn, id string, err error) error {
	if err != nil {
		h.logger.Debug().Str("func", fn).Str("id", id).Err(err).Msg("remote store request failed")
	}
	return err
}

// withoutStatus drops the sync status, which is local-only bookkeeping and
// never crosses the wire in either direction.
func withoutStatus(e models.SyncableEntity) models.SyncableEntity {
	e.SyncStatus = ""
	return e
}
