// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package config

import (
	"encoding/json"
	"fmt"
	"os"
	"time"
)

// StructuredJSONConfig is the on-disk layout of the JSON config file.
type StructuredJSONConfig struct {
	App struct {
		OwnerID          string   `json:"owner_id"`
		Domains          []string `json:"domains"`
		ConflictStrategy string   `json:"conflict_strategy"`
		Version          string   `json:"version"`
	} `json:"app,omitempty"`

	Adapter struct {
		HTTPAddress    string   `json:"http_address"`
		RequestTimeout Duration `json:"request_timeout"`
		PushTimeout    Duration `json:"push_timeout"`
		Token          string   `json:"token"`
	} `json:"adapter,omitempty"`

	Storage struct {
		Driver string `json:"driver"`
		DB     struct {
			DSN string `json:"dsn"`
		} `json:"db,omitempty"`
	} `json:"storage,omitempty"`

	Connectivity struct {
		ProbeURL       string   `json:"probe_url"`
		ProbeAddress   string   `json:"probe_address"`
		PollInterval   Duration `json:"poll_interval"`
		ProbeTimeout   Duration `json:"probe_timeout"`
		DebounceWindow Duration `json:"debounce_window"`
	} `json:"connectivity,omitempty"`

	Retry struct {
		MaxAttempts        int      `json:"max_attempts"`
		InitialDelay       Duration `json:"initial_delay"`
		MaxDelay           Duration `json:"max_delay"`
		Multiplier         float64  `json:"multiplier"`
		DisableJitter      bool     `json:"disable_jitter"`
		UnknownMaxAttempts int      `json:"unknown_max_attempts"`
		BatchInitialDelay  Duration `json:"batch_initial_delay"`
		BatchMaxDelay      Duration `json:"batch_max_delay"`
	} `json:"retry,omitempty"`

	Workers struct {
		SyncInterval           Duration `json:"sync_interval"`
		MinSyncInterval        Duration `json:"min_sync_interval"`
		StabilizationDelay     Duration `json:"stabilization_delay"`
		InterItemDelay         Duration `json:"inter_item_delay"`
		RecoveryPollInterval   Duration `json:"recovery_poll_interval"`
		RecoveryPollAttempts   int      `json:"recovery_poll_attempts"`
		HealthCheckThreshold   Duration `json:"health_check_threshold"`
		MaxConsecutiveFailures int      `json:"max_consecutive_failures"`
		StatusReportInterval   Duration `json:"status_report_interval"`
	} `json:"workers,omitempty"`

	Log struct {
		File       string `json:"file"`
		Level      string `json:"level"`
		MaxSizeMB  int    `json:"max_size_mb"`
		MaxBackups int    `json:"max_backups"`
		MaxAgeDays int    `json:"max_age_days"`
	} `json:"log,omitempty"`
}

func parseJSON(jsonFilePath string) (*StructuredConfig, error) {
	jsonFile, err := os.Open(jsonFilePath)
	if err != nil {
		return nil, fmt.Errorf("error reading a json file: %w", err)
	}
	defer jsonFile.Close()

	var j StructuredJSONConfig
	if err := json.NewDecoder(jsonFile).Decode(&j); err != nil {
		return nil, fmt.Errorf("error decoding json configs: %w", err)
	}

	cfg := &StructuredConfig{
		App: App{
			OwnerID:          j.App.OwnerID,
			Domains:          j.App.Domains,
			ConflictStrategy: j.App.ConflictStrategy,
			Version:          j.App.Version,
		},
		Adapter: Adapter{
			HTTPAddress:    j.Adapter.HTTPAddress,
			RequestTimeout: time.Duration(j.Adapter.RequestTimeout),
			PushTimeout:    time.Duration(j.Adapter.PushTimeout),
			Token:          j.Adapter.Token,
		},
		Storage: Storage{
			Driver: j.Storage.Driver,
			DB: DB{
				DSN: j.Storage.DB.DSN,
			},
		},
		Connectivity: Connectivity{
			ProbeURL:       j.Connectivity.ProbeURL,
			ProbeAddress:   j.Connectivity.ProbeAddress,
			PollInterval:   time.Duration(j.Connectivity.PollInterval),
			ProbeTimeout:   time.Duration(j.Connectivity.ProbeTimeout),
			DebounceWindow: time.Duration(j.Connectivity.DebounceWindow),
		},
		Retry: Retry{
			MaxAttempts:        j.Retry.MaxAttempts,
			InitialDelay:       time.Duration(j.Retry.InitialDelay),
			MaxDelay:           time.Duration(j.Retry.MaxDelay),
			Multiplier:         j.Retry.Multiplier,
			DisableJitter:      j.Retry.DisableJitter,
			UnknownMaxAttempts: j.Retry.UnknownMaxAttempts,
			BatchInitialDelay:  time.Duration(j.Retry.BatchInitialDelay),
			BatchMaxDelay:      time.Duration(j.Retry.BatchMaxDelay),
		},
		Workers: Workers{
			SyncInterval:           time.Duration(j.Workers.SyncInterval),
			MinSyncInterval:        time.Duration(j.Workers.MinSyncInterval),
			StabilizationDelay:     time.Duration(j.Workers.StabilizationDelay),
			InterItemDelay:         time.Duration(j.Workers.InterItemDelay),
			RecoveryPollInterval:   time.Duration(j.Workers.RecoveryPollInterval),
			RecoveryPollAttempts:   j.Workers.RecoveryPollAttempts,
			HealthCheckThreshold:   time.Duration(j.Workers.HealthCheckThreshold),
			MaxConsecutiveFailures: j.Workers.MaxConsecutiveFailures,
			StatusReportInterval:   time.Duration(j.Workers.StatusReportInterval),
		},
		Log: Log{
			File:       j.Log.File,
			Level:      j.Log.Level,
			MaxSizeMB:  j.Log.MaxSizeMB,
			MaxBackups: j.Log.MaxBackups,
			MaxAgeDays: j.Log.MaxAgeDays,
		},
	}

	return cfg, nil
}

// Duration is a wrapper around time.Duration that supports JSON unmarshaling
// from strings like "1h", "30s" and from integer nanoseconds.
type Duration time.Duration

func (d *Duration) UnmarshalJSON(b []byte) error {
	var v any
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}

	switch value := v.(type) {
	case float64:
		*d = Duration(time.Duration(value))
		return nil
	case string:
		tmp, err := time.ParseDuration(value)
		if err != nil {
			return err
		}
		*d = Duration(tmp)
		return nil
	default:
		return json.Unmarshal(b, (*time.Duration)(d))
	}
}

func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}
