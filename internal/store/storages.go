// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package store

import (
	"context"
	"fmt"

	"github.com/MKhiriev/go-sync-keeper/internal/config"
	"github.com/MKhiriev/go-sync-keeper/internal/logger"
)

const (
	DriverSQLite = "sqlite"
	DriverMemory = "memory"
)

// ClientStorages groups the client-side storage into a single value that can
// be passed around the service layer.
type ClientStorages struct {
	// Entities holds every syncable entity of every domain.
	Entities LocalStore

	db *DB
}

// NewClientStorages initialises the client storage layer using the supplied
// configuration and logger. For the sqlite driver it:
//  1. Opens an SQLite connection to the file path specified in cfg.DSN,
//     creating the database file if it does not yet exist.
//  2. Runs pending schema migrations via [DB.Migrate].
//  3. Wires a fresh [LocalStore] to the connection.
//
// cfg.DSN may name an in-memory SQLite database (":memory:" or a
// "file::memory:" URI). The memory driver keeps entities in a volatile map
// and ignores cfg.DSN.
func NewClientStorages(ctx context.Context, cfg config.ClientStorage, logger *logger.Logger) (*ClientStorages, error) {
	logger.Info().Str("driver", cfg.Driver).Msg("creating new storages...")

	switch cfg.Driver {
	case DriverMemory:
		return &ClientStorages{Entities: NewMemoryStore()}, nil

	case DriverSQLite, "":
		db, err := NewConnectSQLite(ctx, cfg, logger)
		if err != nil {
			return nil, fmt.Errorf("sqlite connection error: %w", err)
		}

		if err = db.Migrate(); err != nil {
			db.Close()
			return nil, fmt.Errorf("migration failed: %w", err)
		}

		return &ClientStorages{
			Entities: NewEntityRepository(db, logger),
			db:       db,
		}, nil

	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedDriver, cfg.Driver)
	}
}

// Close releases the database connection, if any.
func (s *ClientStorages) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}
