// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package config

import (
	"fmt"
	"slices"

	"github.com/MKhiriev/go-sync-keeper/models"
)

var knownStrategies = []models.Strategy{
	models.LastWriteWins,
	models.LocalWins,
	models.RemoteWins,
	models.FieldMerge,
	models.Manual,
}

// validate checks that the final merged [StructuredConfig] satisfies all
// invariants that do not depend on defaults.
func (cfg *StructuredConfig) validate() error {
	if cfg.Retry.MaxAttempts < 0 || cfg.Retry.UnknownMaxAttempts < 0 {
		return fmt.Errorf("%w: negative attempts", ErrInvalidRetryConfigs)
	}
	if cfg.Retry.Multiplier < 0 {
		return fmt.Errorf("%w: negative multiplier", ErrInvalidRetryConfigs)
	}
	return nil
}

func (cfg *ClientConfig) validate() error {
	// without an explicit owner the token subject is used
	if (cfg.App.OwnerID == "" && cfg.Adapter.Token == "") || len(cfg.App.Domains) == 0 {
		return ErrInvalidAppConfigs
	}
	if !slices.Contains(knownStrategies, models.Strategy(cfg.App.ConflictStrategy)) {
		return fmt.Errorf("%w: unknown conflict strategy %q", ErrInvalidAppConfigs, cfg.App.ConflictStrategy)
	}

	switch cfg.Storage.Driver {
	case "sqlite":
		if cfg.Storage.DSN == "" {
			return ErrInvalidStorageConfigs
		}
	case "memory":
		if cfg.Storage.DSN != "" {
			return fmt.Errorf("%w: the memory driver is volatile, use sqlite with %q for a dsn", ErrInvalidStorageConfigs, cfg.Storage.DSN)
		}
	default:
		return fmt.Errorf("%w: unknown driver %q", ErrInvalidStorageConfigs, cfg.Storage.Driver)
	}

	if cfg.Adapter.HTTPAddress == "" || cfg.Adapter.RequestTimeout <= 0 || cfg.Adapter.PushTimeout <= 0 {
		return ErrInvalidAdapterConfigs
	}

	if cfg.Retry.Multiplier < 1 || cfg.Retry.InitialDelay > cfg.Retry.MaxDelay ||
		cfg.Retry.BatchInitialDelay > cfg.Retry.BatchMaxDelay {
		return ErrInvalidRetryConfigs
	}

	if cfg.Workers.SyncInterval <= 0 || cfg.Workers.MinSyncInterval > cfg.Workers.SyncInterval {
		return ErrInvalidWorkerConfigs
	}

	return nil
}
