// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseEnv_AllFields(t *testing.T) {
	// Arrange
	envVars := map[string]string{
		"CONFIG": "/path/to/config.json",

		"APP_OWNER_ID":          "user-1",
		"APP_DOMAINS":           "daily_logs,preferences",
		"APP_CONFLICT_STRATEGY": "FIELD_MERGE",
		"APP_VERSION":           "1.2.3",

		"ADAPTER_ADDRESS":         "https://sync.example.com",
		"ADAPTER_REQUEST_TIMEOUT": "30s",
		"ADAPTER_PUSH_TIMEOUT":    "5s",
		"ADAPTER_TOKEN":           "jwt",

		// Storage has nested prefixes: STORAGE_ + DB_
		"STORAGE_DRIVER": "sqlite",
		"STORAGE_DB_DSN": "/var/lib/keeper/sync.db",

		"CONNECTIVITY_PROBE_URL":       "https://sync.example.com/health",
		"CONNECTIVITY_POLL_INTERVAL":   "10s",
		"CONNECTIVITY_PROBE_TIMEOUT":   "2s",
		"CONNECTIVITY_DEBOUNCE_WINDOW": "1500ms",

		"RETRY_MAX_ATTEMPTS":         "5",
		"RETRY_INITIAL_DELAY":        "200ms",
		"RETRY_MAX_DELAY":            "10s",
		"RETRY_MULTIPLIER":           "1.5",
		"RETRY_DISABLE_JITTER":       "true",
		"RETRY_UNKNOWN_MAX_ATTEMPTS": "1",

		"WORKERS_SYNC_INTERVAL":            "15m",
		"WORKERS_RECOVERY_POLL_ATTEMPTS":   "4",
		"WORKERS_MAX_CONSECUTIVE_FAILURES": "7",

		"LOG_FILE":  "/tmp/keeper.log",
		"LOG_LEVEL": "warn",
	}
	setEnvVars(t, envVars)

	// Act
	cfg := &StructuredConfig{}
	err := parseEnv(cfg)

	// Assert
	require.NoError(t, err)

	assert.Equal(t, "/path/to/config.json", cfg.JSONFilePath)

	assert.Equal(t, "user-1", cfg.App.OwnerID)
	assert.Equal(t, []string{"daily_logs", "preferences"}, cfg.App.Domains)
	assert.Equal(t, "FIELD_MERGE", cfg.App.ConflictStrategy)
	assert.Equal(t, "1.2.3", cfg.App.Version)

	assert.Equal(t, "https://sync.example.com", cfg.Adapter.HTTPAddress)
	assert.Equal(t, 30*time.Second, cfg.Adapter.RequestTimeout)
	assert.Equal(t, 5*time.Second, cfg.Adapter.PushTimeout)
	assert.Equal(t, "jwt", cfg.Adapter.Token)

	assert.Equal(t, "sqlite", cfg.Storage.Driver)
	assert.Equal(t, "/var/lib/keeper/sync.db", cfg.Storage.DB.DSN)

	assert.Equal(t, "https://sync.example.com/health", cfg.Connectivity.ProbeURL)
	assert.Equal(t, 10*time.Second, cfg.Connectivity.PollInterval)
	assert.Equal(t, 2*time.Second, cfg.Connectivity.ProbeTimeout)
	assert.Equal(t, 1500*time.Millisecond, cfg.Connectivity.DebounceWindow)

	assert.Equal(t, 5, cfg.Retry.MaxAttempts)
	assert.Equal(t, 200*time.Millisecond, cfg.Retry.InitialDelay)
	assert.Equal(t, 10*time.Second, cfg.Retry.MaxDelay)
	assert.InDelta(t, 1.5, cfg.Retry.Multiplier, 1e-9)
	assert.True(t, cfg.Retry.DisableJitter)
	assert.Equal(t, 1, cfg.Retry.UnknownMaxAttempts)

	assert.Equal(t, 15*time.Minute, cfg.Workers.SyncInterval)
	assert.Equal(t, 4, cfg.Workers.RecoveryPollAttempts)
	assert.Equal(t, 7, cfg.Workers.MaxConsecutiveFailures)

	assert.Equal(t, "/tmp/keeper.log", cfg.Log.File)
	assert.Equal(t, "warn", cfg.Log.Level)
}

func TestParseEnv_PartialFields(t *testing.T) {
	// Arrange
	envVars := map[string]string{
		"APP_OWNER_ID":    "user-1",
		"ADAPTER_ADDRESS": "localhost:8080",
	}
	setEnvVars(t, envVars)

	// Act
	cfg := &StructuredConfig{}
	err := parseEnv(cfg)

	// Assert
	require.NoError(t, err)

	assert.Equal(t, "user-1", cfg.App.OwnerID)
	assert.Empty(t, cfg.App.Domains)
	assert.Equal(t, "localhost:8080", cfg.Adapter.HTTPAddress)
	assert.Zero(t, cfg.Adapter.RequestTimeout)

	// Others untouched
	assert.Empty(t, cfg.Storage.DB.DSN)
	assert.Equal(t, Retry{}, cfg.Retry)
	assert.Empty(t, cfg.JSONFilePath)
}

func TestParseEnv_EmptyEnv(t *testing.T) {
	// Arrange
	clearEnvVars(t)

	// Act
	cfg := &StructuredConfig{}
	err := parseEnv(cfg)

	// Assert
	require.NoError(t, err)

	assert.Equal(t, "", cfg.JSONFilePath)
	assert.Equal(t, Adapter{}, cfg.Adapter)
	assert.Equal(t, Storage{}, cfg.Storage)
	assert.Equal(t, Workers{}, cfg.Workers)
}

func TestParseEnv_InvalidValues(t *testing.T) {
	tests := []struct {
		name string
		key  string
		val  string
	}{
		{name: "duration", key: "WORKERS_SYNC_INTERVAL", val: "every-now-and-then"},
		{name: "int", key: "RETRY_MAX_ATTEMPTS", val: "three"},
		{name: "float", key: "RETRY_MULTIPLIER", val: "double"},
		{name: "bool", key: "RETRY_DISABLE_JITTER", val: "maybe"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			setEnvVars(t, map[string]string{tt.key: tt.val})

			err := parseEnv(&StructuredConfig{})
			require.Error(t, err)
			assert.Contains(t, err.Error(), "error getting env configs")
		})
	}
}

func TestParseEnv_DurationFormats(t *testing.T) {
	tests := []struct {
		value    string
		expected time.Duration
	}{
		{"1s", time.Second},
		{"500ms", 500 * time.Millisecond},
		{"2m30s", 2*time.Minute + 30*time.Second},
		{"1h", time.Hour},
	}

	for _, tt := range tests {
		t.Run(tt.value, func(t *testing.T) {
			setEnvVars(t, map[string]string{"ADAPTER_PUSH_TIMEOUT": tt.value})

			cfg := &StructuredConfig{}
			require.NoError(t, parseEnv(cfg))
			assert.Equal(t, tt.expected, cfg.Adapter.PushTimeout)
		})
	}
}

// Helpers

func setEnvVars(t *testing.T, vars map[string]string) {
	t.Helper()
	clearEnvVars(t)
	for k, v := range vars {
		t.Setenv(k, v)
	}
}

func clearEnvVars(t *testing.T) {
	t.Helper()
	keys := []string{
		"CONFIG",

		"APP_OWNER_ID",
		"APP_DOMAINS",
		"APP_CONFLICT_STRATEGY",
		"APP_VERSION",

		"ADAPTER_ADDRESS",
		"ADAPTER_REQUEST_TIMEOUT",
		"ADAPTER_PUSH_TIMEOUT",
		"ADAPTER_TOKEN",

		"STORAGE_DRIVER",
		"STORAGE_DB_DSN",

		"CONNECTIVITY_PROBE_URL",
		"CONNECTIVITY_PROBE_ADDRESS",
		"CONNECTIVITY_POLL_INTERVAL",
		"CONNECTIVITY_PROBE_TIMEOUT",
		"CONNECTIVITY_DEBOUNCE_WINDOW",

		"RETRY_MAX_ATTEMPTS",
		"RETRY_INITIAL_DELAY",
		"RETRY_MAX_DELAY",
		"RETRY_MULTIPLIER",
		"RETRY_DISABLE_JITTER",
		"RETRY_UNKNOWN_MAX_ATTEMPTS",
		"RETRY_BATCH_INITIAL_DELAY",
		"RETRY_BATCH_MAX_DELAY",

		"WORKERS_SYNC_INTERVAL",
		"WORKERS_MIN_SYNC_INTERVAL",
		"WORKERS_RECOVERY_POLL_ATTEMPTS",
		"WORKERS_MAX_CONSECUTIVE_FAILURES",

		"LOG_FILE",
		"LOG_LEVEL",
	}
	for _, k := range keys {
		// t.Setenv restores the original value after the test
		t.Setenv(k, "")
		_ = os.Unsetenv(k)
	}
}
