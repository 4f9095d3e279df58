// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package config

import (
	"flag"
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"time"
)

// NetAddress holds structured network address data for host and port.
// It implements the flag.Value interface.
type NetAddress struct {
	Host string
	Port int
}

// ParseFlags parses all configuration flags from os.Args.
//
// Flags:
//
//	-a remote store base URL
//	-token bearer token
//	-request-timeout request timeout (e.g., "15s")
//	-push-timeout save push timeout (e.g., "5s")
//	-d database DSN
//	-driver storage driver (sqlite, memory)
//	-c/-config json file path with configs
//	-owner owner id
//	-domains comma-separated entity types
//	-strategy conflict resolution strategy
//	-probe-url connectivity probe URL
//	-probe-address connectivity probe address in format [host]:[port]
//	-sync-interval background sync period
//	-log-file log file path
//	-log-level log level
func ParseFlags() (*StructuredConfig, error) {
	var probeAddress NetAddress
	var adapterAddress, token string
	var requestTimeout, pushTimeout time.Duration
	var databaseDSN, driver string
	var jsonConfigPath string
	var ownerID, domains, strategy string
	var probeURL string
	var syncInterval time.Duration
	var logFile, logLevel string

	fs := flag.CommandLine
	fs.StringVar(&adapterAddress, "a", "", "Remote store base URL")
	fs.StringVar(&token, "token", "", "Bearer token")
	fs.DurationVar(&requestTimeout, "request-timeout", 0, "Request timeout (e.g., 15s)")
	fs.DurationVar(&pushTimeout, "push-timeout", 0, "Push-on-save timeout (e.g., 5s)")
	fs.StringVar(&databaseDSN, "d", "", "Database DSN")
	fs.StringVar(&driver, "driver", "", "Storage driver: sqlite or memory")
	fs.StringVar(&jsonConfigPath, "c", "", "JSON config file path")
	fs.StringVar(&jsonConfigPath, "config", "", "JSON config file path (alias)")
	fs.StringVar(&ownerID, "owner", "", "Owner ID")
	fs.StringVar(&domains, "domains", "", "Comma-separated entity types")
	fs.StringVar(&strategy, "strategy", "", "Conflict resolution strategy")
	fs.StringVar(&probeURL, "probe-url", "", "Connectivity probe URL")
	fs.Var(&probeAddress, "probe-address", "Connectivity probe host:port")
	fs.DurationVar(&syncInterval, "sync-interval", 0, "Background sync interval (e.g., 5m)")
	fs.StringVar(&logFile, "log-file", "", "Log file path")
	fs.StringVar(&logLevel, "log-level", "", "Log level")

	if err := fs.Parse(os.Args[1:]); err != nil {
		return nil, err
	}

	var domainList []string
	if domains != "" {
		domainList = strings.Split(domains, ",")
	}

	return &StructuredConfig{
		App: App{
			OwnerID:          ownerID,
			Domains:          domainList,
			ConflictStrategy: strategy,
		},
		Adapter: Adapter{
			HTTPAddress:    adapterAddress,
			RequestTimeout: requestTimeout,
			PushTimeout:    pushTimeout,
			Token:          token,
		},
		Storage: Storage{
			Driver: driver,
			DB: DB{
				DSN: databaseDSN,
			},
		},
		Connectivity: Connectivity{
			ProbeURL:     probeURL,
			ProbeAddress: probeAddress.String(),
		},
		Workers: Workers{
			SyncInterval: syncInterval,
		},
		Log: Log{
			File:  logFile,
			Level: logLevel,
		},
		JSONFilePath: jsonConfigPath,
	}, nil
}

// String returns the host:port form, or an empty string when unset.
func (a *NetAddress) String() string {
	if a.Host == "" && a.Port == 0 {
		return ""
	}
	return net.JoinHostPort(a.Host, strconv.Itoa(a.Port))
}

// Set parses host:port. Bracketed IPv6 hosts are accepted; the port must be
// in 1..65535.
func (a *NetAddress) Set(s string) error {
	host, rawPort, err := net.SplitHostPort(s)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidAddress, err)
	}
	if host == "" {
		return fmt.Errorf("%w: host is empty", ErrInvalidAddress)
	}

	port, err := strconv.Atoi(rawPort)
	if err != nil || port < 1 || port > 65535 {
		return fmt.Errorf("%w: bad port %q", ErrInvalidAddress, rawPort)
	}

	a.Host = host
	a.Port = port
	return nil
}
