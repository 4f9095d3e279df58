// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package utils

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewHTTPClient_Independent(t *testing.T) {
	a, b := NewHTTPClient(0), NewHTTPClient(0)
	require.NotNil(t, a.Client)
	assert.NotSame(t, a.Client, b.Client)
}

func TestNewHTTPClient_Timeout(t *testing.T) {
	assert.Equal(t, time.Second, NewHTTPClient(time.Second).GetClient().Timeout)
	assert.Zero(t, NewHTTPClient(0).GetClient().Timeout)
}

func TestNewHTTPClient_UserAgent(t *testing.T) {
	var got string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Get("User-Agent")
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	resp, err := NewHTTPClient(time.Second).R().Head(srv.URL)
	require.NoError(t, err)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode())
	assert.Equal(t, UserAgent, got)
}
