// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package client

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/MKhiriev/go-sync-keeper/internal/adapter"
	"github.com/MKhiriev/go-sync-keeper/internal/config"
	"github.com/MKhiriev/go-sync-keeper/internal/connectivity"
	"github.com/MKhiriev/go-sync-keeper/internal/logger"
	"github.com/MKhiriev/go-sync-keeper/internal/retry"
	"github.com/MKhiriev/go-sync-keeper/internal/service"
	"github.com/MKhiriev/go-sync-keeper/internal/store"
	"github.com/MKhiriev/go-sync-keeper/internal/utils"
	"github.com/MKhiriev/go-sync-keeper/internal/workers"
	"github.com/MKhiriev/go-sync-keeper/models"
)

// ErrNoOwner is returned when neither the configuration nor the bearer token
// names the owner of the synced data.
var ErrNoOwner = errors.New("owner id is not configured and the token has no subject")

// Domain bundles the coordinator and the orchestrator of one data domain.
type Domain struct {
	Name         string
	Repository   service.RepositorySync
	Orchestrator service.SyncOrchestrator
}

// App owns every long-running component of the client process.
type App struct {
	domains  []Domain
	monitor  *connectivity.Monitor
	reporter *workers.StatusReporter
	storages *store.ClientStorages
	logger   *logger.Logger
}

// NewApp builds one coordinator and one orchestrator per configured domain,
// all sharing the local store, the remote store and the connectivity monitor.
func NewApp(
	cfg *config.ClientConfig,
	storages *store.ClientStorages,
	remote adapter.RemoteStore,
	prober connectivity.Prober,
	logger *logger.Logger,
) (*App, error) {
	owner, err := resolveOwner(cfg.App.OwnerID, remote.Token())
	if err != nil {
		return nil, err
	}

	monitor := connectivity.NewMonitor(prober, connectivity.Config{
		PollInterval:   cfg.Connectivity.PollInterval,
		DebounceWindow: cfg.Connectivity.DebounceWindow,
		ProbeTimeout:   cfg.Connectivity.ProbeTimeout,
	}, logger)

	app := &App{
		monitor:  monitor,
		storages: storages,
		logger:   logger,
	}

	sources := make([]workers.StatusSource, 0, len(cfg.App.Domains))
	for _, name := range cfg.App.Domains {
		domainLog := logger.WithDomain(name)

		retrier := retry.New(itemPolicy(cfg.Retry), retry.WithObserver(func(attempt int, delay time.Duration, err error) {
			domainLog.Debug().Str("func", "retry.Observer").Int("attempt", attempt).
				Dur("delay", delay).Err(err).Msg("retrying remote call")
		}))

		repo := service.NewRepositorySync(service.RepositorySyncConfig{
			EntityType:     name,
			OwnerID:        owner,
			Strategy:       models.Strategy(cfg.App.ConflictStrategy),
			PushTimeout:    cfg.Adapter.PushTimeout,
			InterItemDelay: cfg.Workers.InterItemDelay,
		}, storages.Entities, remote, monitor, retrier, logger)

		orchestrator := service.NewSyncOrchestrator(service.OrchestratorConfig{
			Domain:                 name,
			SyncInterval:           cfg.Workers.SyncInterval,
			MinSyncInterval:        cfg.Workers.MinSyncInterval,
			StabilizationDelay:     cfg.Workers.StabilizationDelay,
			RecoveryPollInterval:   cfg.Workers.RecoveryPollInterval,
			RecoveryPollAttempts:   cfg.Workers.RecoveryPollAttempts,
			HealthCheckThreshold:   cfg.Workers.HealthCheckThreshold,
			MaxConsecutiveFailures: cfg.Workers.MaxConsecutiveFailures,
			BatchPolicy:            batchPolicy(cfg.Retry),
		}, repo, monitor, logger)

		app.domains = append(app.domains, Domain{Name: name, Repository: repo, Orchestrator: orchestrator})
		sources = append(sources, orchestrator)
	}

	app.reporter = workers.NewStatusReporter(cfg.Workers.StatusReportInterval, logger, sources...)

	logger.Info().Str("func", "NewApp").Str("owner", owner).Strs("domains", cfg.App.Domains).
		Str("strategy", cfg.App.ConflictStrategy).Msg("client app initialized")
	return app, nil
}

// Domain returns the named domain.
func (a *App) Domain(name string) (Domain, bool) {
	for _, d := range a.domains {
		if d.Name == name {
			return d, true
		}
	}
	return Domain{}, false
}

// Run starts the monitor, the orchestrators and the status reporter and
// blocks until ctx is cancelled or one of them fails. Everything is released
// before it returns.
func (a *App) Run(ctx context.Context) error {
	group := workers.NewWorkers(a.logger).
		Add("connectivity", a.monitor).
		Add("status-reporter", a.reporter)
	for _, d := range a.domains {
		group.Add("orchestrator/"+d.Name, d.Orchestrator)
	}

	err := group.Run(ctx)

	for _, d := range a.domains {
		d.Repository.Close()
	}
	a.reporter.Report()

	if cerr := a.storages.Close(); cerr != nil {
		a.logger.Err(cerr).Str("func", "App.Run").Msg("failed to close local storage")
	}
	return err
}

func resolveOwner(configured, token string) (string, error) {
	if configured != "" {
		return configured, nil
	}
	if token == "" {
		return "", ErrNoOwner
	}

	subject, err := utils.TokenSubject(token)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrNoOwner, err)
	}
	if subject == "" {
		return "", ErrNoOwner
	}
	return subject, nil
}

func itemPolicy(cfg config.ClientRetry) retry.Policy {
	return retry.Policy{
		MaxAttempts:        cfg.MaxAttempts,
		InitialDelay:       cfg.InitialDelay,
		MaxDelay:           cfg.MaxDelay,
		Multiplier:         cfg.Multiplier,
		JitterEnabled:      cfg.Jitter,
		UnknownMaxAttempts: cfg.UnknownMaxAttempts,
	}
}

// batchPolicy continues the per-item backoff unless an explicit first batch
// delay is configured.
func batchPolicy(cfg config.ClientRetry) retry.Policy {
	if cfg.BatchInitialDelay <= 0 {
		return itemPolicy(cfg).Continuation(cfg.BatchMaxDelay)
	}
	return retry.Policy{
		MaxAttempts:   1,
		InitialDelay:  cfg.BatchInitialDelay,
		MaxDelay:      cfg.BatchMaxDelay,
		Multiplier:    cfg.Multiplier,
		JitterEnabled: cfg.Jitter,
	}
}

// NewProber picks the reachability probe: a TCP dial when an address is
// configured, a HEAD request against the probe URL otherwise.
func NewProber(cfg config.ClientConnectivity) connectivity.Prober {
	if cfg.ProbeAddress != "" {
		return connectivity.NewDialProber(cfg.ProbeAddress)
	}
	return connectivity.NewHTTPProber(cfg.ProbeURL)
}
