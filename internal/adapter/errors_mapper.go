// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package adapter

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/MKhiriev/go-sync-keeper/internal/app"
	"github.com/go-resty/resty/v2"
)

func mapHTTPError(resp *resty.Response) error {
	if resp.StatusCode() >= http.StatusOK && resp.StatusCode() < http.StatusMultipleChoices {
		return nil
	}

	body := strings.TrimSpace(string(resp.Body()))
	if body == "" {
		body = http.StatusText(resp.StatusCode())
	}

	switch code := resp.StatusCode(); {
	case code == http.StatusBadRequest, code == http.StatusUnprocessableEntity:
		return fmt.Errorf("%w: %s", app.ErrValidation, body)
	case code == http.StatusUnauthorized, code == http.StatusForbidden:
		return fmt.Errorf("%w: %s", app.ErrAuth, body)
	case code == http.StatusNotFound:
		return fmt.Errorf("%w: %s", app.ErrNotFound, body)
	case code == http.StatusConflict:
		return fmt.Errorf("%w: %s", app.ErrSyncConflict, body)
	case code == http.StatusRequestTimeout, code == http.StatusTooManyRequests, code >= http.StatusInternalServerError:
		return fmt.Errorf("%w: http %d: %s", app.ErrNetwork, code, body)
	default:
		return fmt.Errorf("%w: http %d: %s", app.ErrUnknown, code, body)
	}
}

// mapTransportError classifies an error returned by the HTTP client before any
// response was received. Cancellation by the caller stays a cancellation;
// everything else is a network failure.
func mapTransportError(op string, err error) error {
	if errors.Is(err, context.Canceled) {
		return fmt.Errorf("%s request: %w", op, err)
	}
	return fmt.Errorf("%w: %s request: %w", app.ErrNetwork, op, err)
}
