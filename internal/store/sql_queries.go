// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package store

import (
	"encoding/json"
	"fmt"

	sq "github.com/Masterminds/squirrel"

	"github.com/MKhiriev/go-sync-keeper/models"
)

const entitiesTable = "entities"

var entityColumns = []string{
	"entity_type",
	"owner_id",
	"id",
	"payload",
	"last_modified",
	"sync_status",
	"version",
	"manually_set",
	"deleted",
}

// sqlite takes '?' placeholders.
var builder = sq.StatementBuilder.PlaceholderFormat(sq.Question)

func whereKey(key models.EntityKey) sq.And {
	return sq.And{
		sq.Eq{"entity_type": key.EntityType},
		sq.Eq{"owner_id": key.OwnerID},
		sq.Eq{"id": key.ID},
	}
}

func whereOwner(entityType, ownerID string) sq.And {
	return sq.And{
		sq.Eq{"entity_type": entityType},
		sq.Eq{"owner_id": ownerID},
	}
}

func buildUpsertQuery(entity models.SyncableEntity) (string, []any, error) {
	payload, err := json.Marshal(entity.Payload)
	if err != nil {
		return "", nil, fmt.Errorf("%w: %w", ErrEncodingPayload, err)
	}

	return builder.Insert(entitiesTable).
		Columns(entityColumns...).
		Values(
			entity.EntityType,
			entity.OwnerID,
			entity.ID,
			string(payload),
			entity.LastModified.UnixNano(),
			string(entity.SyncStatus),
			entity.Version,
			entity.ManuallySet,
			entity.Deleted,
		).
		Suffix(`ON CONFLICT (entity_type, owner_id, id) DO UPDATE SET
			payload       = excluded.payload,
			last_modified = excluded.last_modified,
			sync_status   = excluded.sync_status,
			version       = excluded.version,
			manually_set  = excluded.manually_set,
			deleted       = excluded.deleted`).
		ToSql()
}

func buildGetQuery(key models.EntityKey) (string, []any, error) {
	return builder.Select(entityColumns...).
		From(entitiesTable).
		Where(whereKey(key)).
		ToSql()
}

func buildListQuery(entityType, ownerID string) (string, []any, error) {
	return builder.Select(entityColumns...).
		From(entitiesTable).
		Where(whereOwner(entityType, ownerID)).
		Where(sq.Eq{"deleted": false}).
		OrderBy("last_modified", "id").
		ToSql()
}

func buildListPendingQuery(entityType, ownerID string) (string, []any, error) {
	return builder.Select(entityColumns...).
		From(entitiesTable).
		Where(whereOwner(entityType, ownerID)).
		Where(sq.Eq{"sync_status": []string{string(models.StatusPending), string(models.StatusFailed)}}).
		OrderBy("last_modified", "id").
		ToSql()
}

func buildRemoveQuery(key models.EntityKey) (string, []any, error) {
	return builder.Delete(entitiesTable).
		Where(whereKey(key)).
		ToSql()
}

func buildMarkQuery(key models.EntityKey, status models.SyncStatus) (string, []any, error) {
	return builder.Update(entitiesTable).
		Set("sync_status", string(status)).
		Where(whereKey(key)).
		ToSql()
}

func buildMarkSyncedQuery(key models.EntityKey, version int64) (string, []any, error) {
	return builder.Update(entitiesTable).
		Set("sync_status", string(models.StatusSynced)).
		Where(whereKey(key)).
		Where(sq.Eq{"version": version}).
		ToSql()
}
