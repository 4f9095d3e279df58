// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package store

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/MKhiriev/go-sync-keeper/models"
)

// memoryStore is a volatile, map-backed [LocalStore]. Nothing survives the
// process; durable storage, on disk or in memory, is the SQLite repository.
type memoryStore struct {
	mu    sync.RWMutex
	items map[models.EntityKey]models.SyncableEntity
}

// NewMemoryStore creates an empty volatile [LocalStore].
func NewMemoryStore() LocalStore {
	return &memoryStore{items: make(map[models.EntityKey]models.SyncableEntity)}
}

func (s *memoryStore) Upsert(_ context.Context, entity models.SyncableEntity) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.items[entity.Key()] = entity.Clone()
	return nil
}

func (s *memoryStore) Get(_ context.Context, key models.EntityKey) (models.SyncableEntity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entity, ok := s.items[key]
	if !ok {
		return models.SyncableEntity{}, fmt.Errorf("%w (id=%s)", ErrEntityNotFound, key.ID)
	}
	return entity.Clone(), nil
}

func (s *memoryStore) List(_ context.Context, entityType, ownerID string) ([]models.SyncableEntity, error) {
	return s.collect(entityType, ownerID, func(e models.SyncableEntity) bool {
		return !e.Deleted
	}), nil
}

func (s *memoryStore) ListPending(_ context.Context, entityType, ownerID string) ([]models.SyncableEntity, error) {
	return s.collect(entityType, ownerID, func(e models.SyncableEntity) bool {
		return e.SyncStatus == models.StatusPending || e.SyncStatus == models.StatusFailed
	}), nil
}

func (s *memoryStore) collect(entityType, ownerID string, keep func(models.SyncableEntity) bool) []models.SyncableEntity {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]models.SyncableEntity, 0)
	for key, entity := range s.items {
		if key.EntityType != entityType || key.OwnerID != ownerID || !keep(entity) {
			continue
		}
		out = append(out, entity.Clone())
	}

	slices.SortFunc(out, func(a, b models.SyncableEntity) int {
		if c := a.LastModified.Compare(b.LastModified); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
	return out
}

func (s *memoryStore) Remove(_ context.Context, key models.EntityKey) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.items, key)
	return nil
}

func (s *memoryStore) MarkPending(_ context.Context, key models.EntityKey) error {
	_, err := s.setStatus(key, models.StatusPending, nil)
	return err
}

func (s *memoryStore) MarkFailed(_ context.Context, key models.EntityKey) error {
	_, err := s.setStatus(key, models.StatusFailed, nil)
	return err
}

func (s *memoryStore) MarkSynced(_ context.Context, key models.EntityKey, version int64) (bool, error) {
	ok, err := s.setStatus(key, models.StatusSynced, &version)
	if errors.Is(err, ErrEntityNotFound) {
		return false, nil
	}
	return ok, err
}

// setStatus reports false when version is set and does not match.
func (s *memoryStore) setStatus(key models.EntityKey, status models.SyncStatus, version *int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entity, ok := s.items[key]
	if !ok {
		return false, fmt.Errorf("%w (id=%s)", ErrEntityNotFound, key.ID)
	}
	if version != nil && entity.Version != *version {
		return false, nil
	}

	entity.SyncStatus = status
	s.items[key] = entity
	return true, nil
}
