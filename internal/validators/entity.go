// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package validators

import (
	"context"
	"encoding/json"
	"slices"
	"strings"

	"github.com/MKhiriev/go-sync-keeper/models"
)

// Field name constants used to restrict validation to a subset of fields.
const (
	// FieldID targets the client-generated entity identifier.
	FieldID = "id"

	// FieldOwnerID targets the owner of the entity.
	FieldOwnerID = "owner_id"

	// FieldEntityType targets the data domain name.
	FieldEntityType = "entity_type"

	// FieldPayload targets the section map and every section in it.
	FieldPayload = "payload"

	// FieldVersion targets the monotonic version counter.
	FieldVersion = "version"

	// FieldSyncStatus targets the local sync marker. An empty value is
	// accepted for entities that were never stored.
	FieldSyncStatus = "sync_status"
)

var allowedStatuses = []models.SyncStatus{
	models.StatusPending,
	models.StatusSynced,
	models.StatusFailed,
}

// EntityValidator implements Validator for models.SyncableEntity.
//
// By default the ID is not checked, since the sync coordinator assigns one to
// new entities after validation. Pass FieldID explicitly to require it.
type EntityValidator struct {
}

// NewEntityValidator constructs a new EntityValidator and returns it as the
// Validator interface.
func NewEntityValidator() Validator {
	return &EntityValidator{}
}

// Validate implements Validator.
func (v *EntityValidator) Validate(ctx context.Context, obj any, fields ...string) error {
	switch value := obj.(type) {
	case models.SyncableEntity:
		return v.validateEntity(ctx, value, fields...)
	case *models.SyncableEntity:
		if value == nil {
			return ErrUnsupportedType
		}
		return v.validateEntity(ctx, *value, fields...)
	default:
		return ErrUnsupportedType
	}
}

func (v *EntityValidator) validateEntity(_ context.Context, e models.SyncableEntity, fields ...string) error {
	if len(fields) == 0 {
		fields = []string{FieldOwnerID, FieldEntityType, FieldPayload, FieldVersion, FieldSyncStatus}
	}

	for _, f := range fields {
		switch f {
		case FieldID:
			if strings.TrimSpace(e.ID) == "" {
				return invalid(f, ErrInvalidID)
			}
		case FieldOwnerID:
			if strings.TrimSpace(e.OwnerID) == "" {
				return invalid(f, ErrInvalidOwnerID)
			}
		case FieldEntityType:
			if strings.TrimSpace(e.EntityType) == "" {
				return invalid(f, ErrInvalidEntityType)
			}
		case FieldPayload:
			// tombstones carry no content
			if e.Deleted {
				continue
			}
			if err := validatePayload(e.Payload); err != nil {
				return err
			}
		case FieldVersion:
			if e.Version < 0 {
				return invalid(f, ErrInvalidVersion)
			}
		case FieldSyncStatus:
			if e.SyncStatus != "" && !slices.Contains(allowedStatuses, e.SyncStatus) {
				return invalid(f, ErrInvalidStatus)
			}
		default:
			return ErrUnknownField
		}
	}

	return nil
}

func validatePayload(p models.Payload) error {
	if len(p.Sections) == 0 {
		return invalid(FieldPayload, ErrEmptyPayload)
	}

	for name, s := range p.Sections {
		field := FieldPayload + "." + name
		if strings.TrimSpace(name) == "" {
			return invalid(FieldPayload, ErrInvalidSection)
		}
		if s.Privacy < models.PrivacyPublic || s.Privacy > models.PrivacyPrivate {
			return invalid(field, ErrInvalidPrivacy)
		}
		if len(s.Data) > 0 && !json.Valid(s.Data) {
			return invalid(field, ErrInvalidSection)
		}
	}

	return nil
}
