// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

// Package metrics defines the service metrics as go-kit instruments.
// Prom* constructors register Prometheus collectors on the default registry
// and must be called once per process; Nop* variants discard everything and
// are what tests use.
package metrics
