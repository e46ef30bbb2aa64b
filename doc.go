// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package main provides the entry point for the livepoll API server.

livepoll is a single-choice polling service with live results. Each voter
holds at most one active vote per poll and may switch or retract it; every
change is pushed to observers as a per-option count.

# Starting the Server

	DATABASE_URL=livepoll.db SESSION_SECRET=... go run .

Or with flags:

	go run . -p 3333 -t postgres -d "postgres://..." -redis redis://localhost:6379/0

A .env file in the working directory is loaded first if present.

# Configuration

Required settings:

  - DATABASE_URL (-d): Connection string (a file path for SQLite)
  - SESSION_SECRET (-session-secret): HMAC key for the sessionId cookie

Optional settings:

  - PORT (-p): Server port (default: 3333)
  - DATABASE_TYPE (-t): sqlite or postgres (default: sqlite)
  - REDIS_URL (-redis): Redis tally store; in-memory when unset
  - HUB_GRACE_PERIOD (-hub-grace): How long an idle poll topic lingers (default: 30s)
  - SUBSCRIBER_BUFFER (-subscriber-buffer): Per-observer event buffer (default: 64)
  - RECONCILE_INTERVAL (-reconcile-interval): Dirty poll sweep interval (default: 10s)

# Architecture

  - registry: Polls and options
  - ledger: Durable active votes, one per voter and poll
  - tally: Derived per-option counters (memory or Redis)
  - engine: Vote state machine, ordering and reconciliation
  - hub: Per-poll fan-out of count changes
  - observer: Snapshot-then-delta streams over websocket and SSE
  - handlers, router, middleware: HTTP surface
  - metrics: Prometheus instrumentation
  - auth: Voter tokens and signed session cookies
  - db: Connections and schema
  - cliparse: Configuration parsing

On startup every poll's tally is rebuilt from the ledger. While running, a
ticker reconciles polls whose tally updates failed.
*/
package main
