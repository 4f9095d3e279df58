// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package connectivity

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"

	"github.com/MKhiriev/go-sync-keeper/internal/utils"
)

// ErrProbeNotConfigured is returned by probers built without a target.
var ErrProbeNotConfigured = errors.New("reachability probe target is not configured")

// Prober queries the platform reachability source once.
//
// A nil error with reachable=false means "network is down". A non-nil error
// means the reachability source itself could not be queried.
type Prober interface {
	Probe(ctx context.Context) (reachable bool, err error)
}

// ProberFunc adapts a function to Prober.
type ProberFunc func(ctx context.Context) (bool, error)

// Probe implements Prober.
func (f ProberFunc) Probe(ctx context.Context) (bool, error) {
	return f(ctx)
}

// HTTPProber checks reachability with a HEAD request against a health URL.
// Any response, whatever its status, proves the network path works.
type HTTPProber struct {
	client *utils.HTTPClient
	url    string
}

// NewHTTPProber creates an HTTPProber for url.
func NewHTTPProber(url string) *HTTPProber {
	return &HTTPProber{client: utils.NewHTTPClient(0), url: strings.TrimSpace(url)}
}

// Probe implements Prober.
func (p *HTTPProber) Probe(ctx context.Context) (bool, error) {
	if p.url == "" {
		return false, ErrProbeNotConfigured
	}

	_, err := p.client.R().SetContext(ctx).Head(p.url)
	if err != nil {
		if ctx.Err() != nil {
			return false, nil
		}
		var netErr net.Error
		var dnsErr *net.DNSError
		var opErr *net.OpError
		if errors.As(err, &netErr) || errors.As(err, &dnsErr) || errors.As(err, &opErr) {
			return false, nil
		}
		return false, fmt.Errorf("probe %s: %w", p.url, err)
	}
	return true, nil
}

// DialProber checks reachability by opening a TCP connection.
type DialProber struct {
	address string
	dialer  net.Dialer
}

// NewDialProber creates a DialProber for a host:port address.
func NewDialProber(address string) *DialProber {
	return &DialProber{address: strings.TrimSpace(address)}
}

// Probe implements Prober.
func (p *DialProber) Probe(ctx context.Context) (bool, error) {
	if p.address == "" {
		return false, ErrProbeNotConfigured
	}

	conn, err := p.dialer.DialContext(ctx, "tcp", p.address)
	if err != nil {
		return false, nil
	}
	_ = conn.Close()
	return true, nil
}
