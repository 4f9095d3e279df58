// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/MKhiriev/go-sync-keeper/internal/logger"
	"github.com/MKhiriev/go-sync-keeper/models"
)

// entityRepository is the SQLite-backed implementation of [LocalStore].
// Every method obtains a context-scoped logger via [logger.FromContext] so
// that database interactions are traced with the entity key.
type entityRepository struct {
	*DB
	logger *logger.Logger
}

// NewEntityRepository constructs a [LocalStore] backed by db.
func NewEntityRepository(db *DB, logger *logger.Logger) LocalStore {
	return &entityRepository{
		DB:     db,
		logger: logger,
	}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEntity(row rowScanner) (models.SyncableEntity, error) {
	var (
		entity       models.SyncableEntity
		payload      []byte
		lastModified int64
		status       string
	)

	if err := row.Scan(
		&entity.EntityType,
		&entity.OwnerID,
		&entity.ID,
		&payload,
		&lastModified,
		&status,
		&entity.Version,
		&entity.ManuallySet,
		&entity.Deleted,
	); err != nil {
		return models.SyncableEntity{}, err
	}

	if len(payload) > 0 {
		if err := json.Unmarshal(payload, &entity.Payload); err != nil {
			return models.SyncableEntity{}, fmt.Errorf("%w: %w", ErrEncodingPayload, err)
		}
	}
	entity.LastModified = time.Unix(0, lastModified).UTC()
	entity.SyncStatus = models.SyncStatus(status)

	return entity, nil
}

// Upsert inserts the entity or replaces every stored field of an existing row.
func (r *entityRepository) Upsert(ctx context.Context, entity models.SyncableEntity) error {
	log := logger.FromContext(ctx)

	query, args, err := buildUpsertQuery(entity)
	if err != nil {
		log.Err(err).
			Str("func", "entityRepository.Upsert").
			Str("id", entity.ID).
			Msg("failed to create query")
		return fmt.Errorf("%w: %w", ErrBuildingSQLQuery, err)
	}

	if _, err = r.DB.ExecContext(ctx, query, args...); err != nil {
		log.Err(err).
			Str("func", "entityRepository.Upsert").
			Str("entity_type", entity.EntityType).
			Str("owner_id", entity.OwnerID).
			Str("id", entity.ID).
			Msg("failed to execute upsert for entity")
		return fmt.Errorf("%w (id=%s): %w", ErrExecutingStatement, entity.ID, err)
	}

	return nil
}

// Get returns a single entity, tombstones included.
func (r *entityRepository) Get(ctx context.Context, key models.EntityKey) (models.SyncableEntity, error) {
	log := logger.FromContext(ctx)

	query, args, err := buildGetQuery(key)
	if err != nil {
		return models.SyncableEntity{}, fmt.Errorf("%w: %w", ErrBuildingSQLQuery, err)
	}

	entity, err := scanEntity(r.DB.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return models.SyncableEntity{}, fmt.Errorf("%w (id=%s)", ErrEntityNotFound, key.ID)
	}
	if err != nil {
		log.Err(err).
			Str("func", "entityRepository.Get").
			Str("entity_type", key.EntityType).
			Str("id", key.ID).
			Msg("failed to scan entity row")
		return models.SyncableEntity{}, fmt.Errorf("%w: %w", ErrScanningRow, err)
	}

	return entity, nil
}

// List returns the live entities of the owner, oldest change first.
func (r *entityRepository) List(ctx context.Context, entityType, ownerID string) ([]models.SyncableEntity, error) {
	query, args, err := buildListQuery(entityType, ownerID)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrBuildingSQLQuery, err)
	}
	return r.queryEntities(ctx, "entityRepository.List", query, args)
}

// ListPending returns every PENDING or FAILED entity, tombstones included.
func (r *entityRepository) ListPending(ctx context.Context, entityType, ownerID string) ([]models.SyncableEntity, error) {
	query, args, err := buildListPendingQuery(entityType, ownerID)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrBuildingSQLQuery, err)
	}
	return r.queryEntities(ctx, "entityRepository.ListPending", query, args)
}

func (r *entityRepository) queryEntities(ctx context.Context, funcName, query string, args []any) ([]models.SyncableEntity, error) {
	log := logger.FromContext(ctx)

	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		log.Err(err).
			Str("func", funcName).
			Msg("failed to execute query for entities")
		return nil, fmt.Errorf("%w: %w", ErrExecutingQuery, err)
	}
	defer rows.Close()

	entities := make([]models.SyncableEntity, 0, 16)
	for rows.Next() {
		entity, scanErr := scanEntity(rows)
		if scanErr != nil {
			log.Err(scanErr).
				Str("func", funcName).
				Msg("failed to scan entity row")
			return nil, fmt.Errorf("%w: %w", ErrScanningRow, scanErr)
		}
		entities = append(entities, entity)
	}

	if rowsErr := rows.Err(); rowsErr != nil {
		log.Err(rowsErr).
			Str("func", funcName).
			Msg("error occurred during rows iteration")
		return nil, fmt.Errorf("%w: %w", ErrScanningRows, rowsErr)
	}

	return entities, nil
}

// Remove hard-deletes the row.
func (r *entityRepository) Remove(ctx context.Context, key models.EntityKey) error {
	query, args, err := buildRemoveQuery(key)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrBuildingSQLQuery, err)
	}
	_, err = r.exec(ctx, "entityRepository.Remove", key, query, args)
	return err
}

// MarkPending sets the status to PENDING.
func (r *entityRepository) MarkPending(ctx context.Context, key models.EntityKey) error {
	return r.mark(ctx, "entityRepository.MarkPending", key, models.StatusPending)
}

// MarkFailed sets the status to FAILED.
func (r *entityRepository) MarkFailed(ctx context.Context, key models.EntityKey) error {
	return r.mark(ctx, "entityRepository.MarkFailed", key, models.StatusFailed)
}

// MarkSynced sets the status to SYNCED only if the stored version is still
// version.
func (r *entityRepository) MarkSynced(ctx context.Context, key models.EntityKey, version int64) (bool, error) {
	query, args, err := buildMarkSyncedQuery(key, version)
	if err != nil {
		return false, fmt.Errorf("%w: %w", ErrBuildingSQLQuery, err)
	}

	affected, err := r.exec(ctx, "entityRepository.MarkSynced", key, query, args)
	if err != nil {
		return false, err
	}
	if affected == 0 {
		logger.FromContext(ctx).Debug().
			Str("func", "entityRepository.MarkSynced").
			Str("id", key.ID).
			Int64("version", version).
			Msg("entity changed since push, left unsynced")
	}
	return affected > 0, nil
}

func (r *entityRepository) mark(ctx context.Context, funcName string, key models.EntityKey, status models.SyncStatus) error {
	query, args, err := buildMarkQuery(key, status)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrBuildingSQLQuery, err)
	}

	affected, err := r.exec(ctx, funcName, key, query, args)
	if err != nil {
		return err
	}
	if affected == 0 {
		return fmt.Errorf("%w (id=%s)", ErrEntityNotFound, key.ID)
	}
	return nil
}

func (r *entityRepository) exec(ctx context.Context, funcName string, key models.EntityKey, query string, args []any) (int64, error) {
	log := logger.FromContext(ctx)

	result, err := r.DB.ExecContext(ctx, query, args...)
	if err != nil {
		log.Err(err).
			Str("func", funcName).
			Str("entity_type", key.EntityType).
			Str("id", key.ID).
			Msg("failed to execute statement")
		return 0, fmt.Errorf("%w (id=%s): %w", ErrExecutingStatement, key.ID, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		log.Err(err).
			Str("func", funcName).
			Str("id", key.ID).
			Msg("failed to get rows affected")
		return 0, fmt.Errorf("failed to get rows affected (id=%s): %w", key.ID, err)
	}

	return affected, nil
}
