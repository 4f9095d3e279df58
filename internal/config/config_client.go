// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package config

import (
	"fmt"
	"strings"
	"time"
)

// Client defaults applied by [GetClientConfig] to fields no source has set.
const (
	DefaultRequestTimeout = 15 * time.Second
	DefaultPushTimeout    = 5 * time.Second

	DefaultPollInterval   = 5 * time.Second
	DefaultProbeTimeout   = 3 * time.Second
	DefaultDebounceWindow = 2 * time.Second

	DefaultMaxAttempts        = 3
	DefaultInitialDelay       = time.Second
	DefaultMaxDelay           = 30 * time.Second
	DefaultMultiplier         = 2.0
	DefaultUnknownMaxAttempts = 2
	DefaultBatchMaxDelay      = 30 * time.Minute

	DefaultSyncInterval           = 5 * time.Minute
	DefaultMinSyncInterval        = time.Minute
	DefaultStabilizationDelay     = 3 * time.Second
	DefaultInterItemDelay         = 100 * time.Millisecond
	DefaultRecoveryPollInterval   = time.Second
	DefaultRecoveryPollAttempts   = 10
	DefaultHealthCheckThreshold   = 24 * time.Hour
	DefaultMaxConsecutiveFailures = 5
	DefaultStatusReportInterval   = time.Minute

	DefaultStorageDriver    = "sqlite"
	DefaultConflictStrategy = "LAST_WRITE_WINS"
)

// ClientApp holds the identity of the synced data.
type ClientApp struct {
	// OwnerID identifies the user whose entities are synced.
	OwnerID string
	// Domains lists the entity types synced, one orchestrator each.
	Domains []string
	// ConflictStrategy is the default conflict resolution strategy.
	ConflictStrategy string
	// Version is the client version, logged on start.
	Version string
}

// ClientAdapter holds network settings used by the remote store client.
type ClientAdapter struct {
	// HTTPAddress is the base URL of the remote store.
	HTTPAddress string
	// RequestTimeout is the default timeout for outbound requests.
	RequestTimeout time.Duration
	// PushTimeout bounds the immediate push done on save.
	PushTimeout time.Duration
	// Token is the bearer token supplied from outside.
	Token string
}

// ClientStorage contains local store settings.
type ClientStorage struct {
	// Driver is "sqlite" or "memory".
	Driver string
	// DSN is the SQLite file or an in-memory SQLite URI. Unused by the
	// memory driver.
	DSN string
}

// ClientConnectivity contains reachability probe settings.
type ClientConnectivity struct {
	ProbeURL       string
	ProbeAddress   string
	PollInterval   time.Duration
	ProbeTimeout   time.Duration
	DebounceWindow time.Duration
}

// ClientRetry contains the per-item retry policy and the coarser batch
// policy used between failed passes.
type ClientRetry struct {
	MaxAttempts        int
	InitialDelay       time.Duration
	MaxDelay           time.Duration
	Multiplier         float64
	Jitter             bool
	UnknownMaxAttempts int

	// BatchInitialDelay overrides the first batch delay. Zero continues the
	// per-item curve.
	BatchInitialDelay time.Duration
	BatchMaxDelay     time.Duration
}

// ClientWorkers contains orchestrator timings.
type ClientWorkers struct {
	SyncInterval           time.Duration
	MinSyncInterval        time.Duration
	StabilizationDelay     time.Duration
	InterItemDelay         time.Duration
	RecoveryPollInterval   time.Duration
	RecoveryPollAttempts   int
	HealthCheckThreshold   time.Duration
	MaxConsecutiveFailures int
	StatusReportInterval   time.Duration
}

// ClientLog contains the rotating log file settings.
type ClientLog struct {
	File       string
	Level      string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
}

// ClientConfig is the top-level client configuration assembled from
// [StructuredConfig].
type ClientConfig struct {
	App          ClientApp
	Adapter      ClientAdapter
	Storage      ClientStorage
	Connectivity ClientConnectivity
	Retry        ClientRetry
	Workers      ClientWorkers
	Log          ClientLog
}

// GetClientConfig builds and validates a client-specific config view from the
// merged structured configuration.
//
// It loads the base config via [GetStructuredConfig], maps it with
// [NewClientConfig] and validates the result.
func GetClientConfig() (*ClientConfig, error) {
	cfg, err := GetStructuredConfig()
	if err != nil {
		return nil, fmt.Errorf("error get structured config: %w", err)
	}

	clientCfg := NewClientConfig(cfg)
	return clientCfg, clientCfg.validate()
}

// NewClientConfig maps cfg to the client view, filling unset fields with
// defaults.
func NewClientConfig(cfg *StructuredConfig) *ClientConfig {
	domains := make([]string, 0, len(cfg.App.Domains))
	for _, d := range cfg.App.Domains {
		if d = strings.TrimSpace(d); d != "" {
			domains = append(domains, d)
		}
	}

	probeURL := cfg.Connectivity.ProbeURL
	if probeURL == "" && cfg.Connectivity.ProbeAddress == "" {
		probeURL = cfg.Adapter.HTTPAddress
	}

	return &ClientConfig{
		App: ClientApp{
			OwnerID:          cfg.App.OwnerID,
			Domains:          domains,
			ConflictStrategy: strings.ToUpper(or(cfg.App.ConflictStrategy, DefaultConflictStrategy)),
			Version:          cfg.App.Version,
		},
		Adapter: ClientAdapter{
			HTTPAddress:    cfg.Adapter.HTTPAddress,
			RequestTimeout: or(cfg.Adapter.RequestTimeout, DefaultRequestTimeout),
			PushTimeout:    or(cfg.Adapter.PushTimeout, DefaultPushTimeout),
			Token:          cfg.Adapter.Token,
		},
		Storage: ClientStorage{
			Driver: strings.ToLower(or(cfg.Storage.Driver, DefaultStorageDriver)),
			DSN:    cfg.Storage.DB.DSN,
		},
		Connectivity: ClientConnectivity{
			ProbeURL:       probeURL,
			ProbeAddress:   cfg.Connectivity.ProbeAddress,
			PollInterval:   or(cfg.Connectivity.PollInterval, DefaultPollInterval),
			ProbeTimeout:   or(cfg.Connectivity.ProbeTimeout, DefaultProbeTimeout),
			DebounceWindow: or(cfg.Connectivity.DebounceWindow, DefaultDebounceWindow),
		},
		Retry: ClientRetry{
			MaxAttempts:        or(cfg.Retry.MaxAttempts, DefaultMaxAttempts),
			InitialDelay:       or(cfg.Retry.InitialDelay, DefaultInitialDelay),
			MaxDelay:           or(cfg.Retry.MaxDelay, DefaultMaxDelay),
			Multiplier:         or(cfg.Retry.Multiplier, DefaultMultiplier),
			Jitter:             !cfg.Retry.DisableJitter,
			UnknownMaxAttempts: or(cfg.Retry.UnknownMaxAttempts, DefaultUnknownMaxAttempts),
			BatchInitialDelay:  cfg.Retry.BatchInitialDelay,
			BatchMaxDelay:      or(cfg.Retry.BatchMaxDelay, DefaultBatchMaxDelay),
		},
		Workers: ClientWorkers{
			SyncInterval:           or(cfg.Workers.SyncInterval, DefaultSyncInterval),
			MinSyncInterval:        or(cfg.Workers.MinSyncInterval, DefaultMinSyncInterval),
			StabilizationDelay:     or(cfg.Workers.StabilizationDelay, DefaultStabilizationDelay),
			InterItemDelay:         or(cfg.Workers.InterItemDelay, DefaultInterItemDelay),
			RecoveryPollInterval:   or(cfg.Workers.RecoveryPollInterval, DefaultRecoveryPollInterval),
			RecoveryPollAttempts:   or(cfg.Workers.RecoveryPollAttempts, DefaultRecoveryPollAttempts),
			HealthCheckThreshold:   or(cfg.Workers.HealthCheckThreshold, DefaultHealthCheckThreshold),
			MaxConsecutiveFailures: or(cfg.Workers.MaxConsecutiveFailures, DefaultMaxConsecutiveFailures),
			StatusReportInterval:   or(cfg.Workers.StatusReportInterval, DefaultStatusReportInterval),
		},
		Log: ClientLog{
			File:       cfg.Log.File,
			Level:      cfg.Log.Level,
			MaxSizeMB:  cfg.Log.MaxSizeMB,
			MaxBackups: cfg.Log.MaxBackups,
			MaxAgeDays: cfg.Log.MaxAgeDays,
		},
	}
}

func or[T comparable](v, def T) T {
	var zero T
	if v == zero {
		return def
	}
	return v
}
