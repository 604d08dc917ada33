// Introspect - Personal Activity Capture & Analytics
// Copyright 2026 Introspect Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/introspect-app/introspect

// Package metrics exposes Prometheus metrics for the capture and
// persistence engine. All collectors are registered with the default
// registry via promauto and served by the API's /metrics endpoint.
package metrics
