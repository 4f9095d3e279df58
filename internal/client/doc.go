// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

// Package client implements the client process runtime.
//
// It wires the local store, the remote store adapter and the connectivity
// monitor into one repository coordinator and one sync orchestrator per data
// domain, and runs them as background workers for the process lifetime.
package client
