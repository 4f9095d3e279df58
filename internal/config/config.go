// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package config

import (
	"time"
)

// StructuredConfig is the top-level configuration container for the
// go-sync-keeper client. It aggregates all sub-configurations and is
// populated by merging values from environment variables, command-line flags,
// and an optional JSON file.
//
// Struct tags:
//   - envPrefix: prefix applied to all nested env tag lookups (caarlos0/env).
//   - env:       direct environment variable name for scalar fields.
type StructuredConfig struct {
	// App holds the identity of the synced data: owner and data domains.
	App App `envPrefix:"APP_"`

	// Adapter holds the remote store address, credentials and timeouts.
	Adapter Adapter `envPrefix:"ADAPTER_"`

	// Storage holds the local store settings.
	Storage Storage `envPrefix:"STORAGE_"`

	// Connectivity holds the reachability probe settings.
	Connectivity Connectivity `envPrefix:"CONNECTIVITY_"`

	// Retry holds the per-item and batch retry policies.
	Retry Retry `envPrefix:"RETRY_"`

	// Workers holds the orchestrator timings and health thresholds.
	Workers Workers `envPrefix:"WORKERS_"`

	// Log holds the client log file settings.
	Log Log `envPrefix:"LOG_"`

	// JSONFilePath is the optional path to a JSON configuration file.
	// When non-empty, the file is parsed and merged below the values
	// already loaded from environment variables and flags.
	// Populated via the CONFIG environment variable or the -c / -config flag.
	JSONFilePath string `env:"CONFIG"`
}

// App holds application-level configuration values.
type App struct {
	// OwnerID identifies the user whose data is synced.
	// Env: APP_OWNER_ID
	OwnerID string `env:"OWNER_ID"`

	// Domains lists the entity types that get their own orchestrator
	// (e.g. "daily_logs,preferences").
	// Env: APP_DOMAINS
	Domains []string `env:"DOMAINS" envSeparator:","`

	// ConflictStrategy is the default conflict resolution strategy
	// (LAST_WRITE_WINS, LOCAL_WINS, REMOTE_WINS, FIELD_MERGE, MANUAL).
	// Env: APP_CONFLICT_STRATEGY
	ConflictStrategy string `env:"CONFLICT_STRATEGY"`

	// Version is the semantic version string of the running client.
	// Env: APP_VERSION
	Version string `env:"VERSION"`
}

// Adapter holds configuration for the remote store client.
type Adapter struct {
	// HTTPAddress is the base URL of the remote store
	// (e.g. "https://sync.example.com"). A bare host:port gets "http://".
	// Env: ADAPTER_ADDRESS
	HTTPAddress string `env:"ADDRESS"`

	// RequestTimeout bounds every outbound request.
	// Env: ADAPTER_REQUEST_TIMEOUT
	RequestTimeout time.Duration `env:"REQUEST_TIMEOUT"`

	// PushTimeout bounds the immediate push performed by Save.
	// Env: ADAPTER_PUSH_TIMEOUT
	PushTimeout time.Duration `env:"PUSH_TIMEOUT"`

	// Token is the bearer token attached to every request.
	// Env: ADAPTER_TOKEN
	Token string `env:"TOKEN"`
}

// Storage groups the configuration of the local store.
type Storage struct {
	// Driver is "sqlite" (default) or "memory".
	// Env: STORAGE_DRIVER
	Driver string `env:"DRIVER"`

	// DB holds the database connection settings.
	DB DB `envPrefix:"DB_"`
}

// DB holds connection settings for the local database.
type DB struct {
	// DSN is the SQLite file path or an in-memory URI such as
	// "file::memory:". The memory driver takes none.
	// Env: STORAGE_DB_DSN
	DSN string `env:"DSN"`
}

// Connectivity holds reachability probe settings.
type Connectivity struct {
	// ProbeURL is probed with HEAD requests. Defaults to the adapter address.
	// Env: CONNECTIVITY_PROBE_URL
	ProbeURL string `env:"PROBE_URL"`

	// ProbeAddress switches the probe to a TCP dial of host:port.
	// Env: CONNECTIVITY_PROBE_ADDRESS
	ProbeAddress string `env:"PROBE_ADDRESS"`

	// PollInterval is the time between two probes.
	// Env: CONNECTIVITY_POLL_INTERVAL
	PollInterval time.Duration `env:"POLL_INTERVAL"`

	// ProbeTimeout bounds a single probe.
	// Env: CONNECTIVITY_PROBE_TIMEOUT
	ProbeTimeout time.Duration `env:"PROBE_TIMEOUT"`

	// DebounceWindow is how long a connectivity flip must persist before
	// it is reported.
	// Env: CONNECTIVITY_DEBOUNCE_WINDOW
	DebounceWindow time.Duration `env:"DEBOUNCE_WINDOW"`
}

// Retry holds the retry policies for single items and whole passes.
type Retry struct {
	// Env: RETRY_MAX_ATTEMPTS
	MaxAttempts int `env:"MAX_ATTEMPTS"`
	// Env: RETRY_INITIAL_DELAY
	InitialDelay time.Duration `env:"INITIAL_DELAY"`
	// Env: RETRY_MAX_DELAY
	MaxDelay time.Duration `env:"MAX_DELAY"`
	// Env: RETRY_MULTIPLIER
	Multiplier float64 `env:"MULTIPLIER"`
	// DisableJitter turns off the ±25% delay offset.
	// Env: RETRY_DISABLE_JITTER
	DisableJitter bool `env:"DISABLE_JITTER"`
	// UnknownMaxAttempts caps attempts for unclassified errors.
	// Env: RETRY_UNKNOWN_MAX_ATTEMPTS
	UnknownMaxAttempts int `env:"UNKNOWN_MAX_ATTEMPTS"`

	// BatchInitialDelay overrides the first batch-level delay; unset continues
	// the per-item backoff.
	// Env: RETRY_BATCH_INITIAL_DELAY
	BatchInitialDelay time.Duration `env:"BATCH_INITIAL_DELAY"`
	// Env: RETRY_BATCH_MAX_DELAY
	BatchMaxDelay time.Duration `env:"BATCH_MAX_DELAY"`
}

// Workers holds orchestrator timings and health thresholds.
type Workers struct {
	// SyncInterval is the period of the background sync tick.
	// Env: WORKERS_SYNC_INTERVAL
	SyncInterval time.Duration `env:"SYNC_INTERVAL"`

	// MinSyncInterval is the minimal time between two tick-driven passes.
	// Env: WORKERS_MIN_SYNC_INTERVAL
	MinSyncInterval time.Duration `env:"MIN_SYNC_INTERVAL"`

	// StabilizationDelay is waited after connectivity returns.
	// Env: WORKERS_STABILIZATION_DELAY
	StabilizationDelay time.Duration `env:"STABILIZATION_DELAY"`

	// InterItemDelay is the base pause between two pushes of a pass.
	// Env: WORKERS_INTER_ITEM_DELAY
	InterItemDelay time.Duration `env:"INTER_ITEM_DELAY"`

	// Env: WORKERS_RECOVERY_POLL_INTERVAL
	RecoveryPollInterval time.Duration `env:"RECOVERY_POLL_INTERVAL"`
	// Env: WORKERS_RECOVERY_POLL_ATTEMPTS
	RecoveryPollAttempts int `env:"RECOVERY_POLL_ATTEMPTS"`

	// HealthCheckThreshold is the maximal age of the last successful sync.
	// Env: WORKERS_HEALTH_CHECK_THRESHOLD
	HealthCheckThreshold time.Duration `env:"HEALTH_CHECK_THRESHOLD"`

	// MaxConsecutiveFailures is the failure ceiling for health.
	// Env: WORKERS_MAX_CONSECUTIVE_FAILURES
	MaxConsecutiveFailures int `env:"MAX_CONSECUTIVE_FAILURES"`

	// StatusReportInterval is the period of the status log line.
	// Env: WORKERS_STATUS_REPORT_INTERVAL
	StatusReportInterval time.Duration `env:"STATUS_REPORT_INTERVAL"`
}

// Log holds the client log file settings.
type Log struct {
	// Env: LOG_FILE
	File string `env:"FILE"`
	// Env: LOG_LEVEL
	Level string `env:"LEVEL"`
	// Env: LOG_MAX_SIZE_MB
	MaxSizeMB int `env:"MAX_SIZE_MB"`
	// Env: LOG_MAX_BACKUPS
	MaxBackups int `env:"MAX_BACKUPS"`
	// Env: LOG_MAX_AGE_DAYS
	MaxAgeDays int `env:"MAX_AGE_DAYS"`
}

// GetStructuredConfig loads, merges, and validates the configuration from all
// available sources. For every field the first source that sets it wins:
//  1. Environment variables
//  2. Command-line flags
//  3. JSON file (path resolved from sources 1 and 2)
//
// Returns a fully populated *StructuredConfig or an error if any source
// fails to load or the final config fails validation.
func GetStructuredConfig() (*StructuredConfig, error) {
	return newConfigBuilder().
		withEnv().
		withFlags().
		withJSON().
		build()
}
