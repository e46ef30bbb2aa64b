// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package cliparse handles command-line argument parsing and configuration.

# Configuration

ParseFlags returns a Config struct with all settings:

	cfg, err := cliparse.ParseFlags(os.Args[1:])

# Config Fields

  - Port: Server listen port (default: 3333)
  - DatabaseURL: SQLite or PostgreSQL connection string (required)
  - DatabaseType: sqlite or postgres (default: sqlite)
  - RedisURL: Redis tally store; empty keeps counters in memory
  - SessionSecret: Secret for signing the sessionId cookie (required)
  - HubGracePeriod: How long an idle poll topic survives (default: 30s)
  - SubscriberBuffer: Events buffered per observer before it lags (default: 64)
  - ReconcileInterval: How often dirty polls are rebuilt (default: 10s)

# Environment Variables

Flags fall back to environment variables:

	PORT               → -p
	DATABASE_URL       → -d
	DATABASE_TYPE      → -t
	REDIS_URL          → -redis
	SESSION_SECRET     → -session-secret
	HUB_GRACE_PERIOD   → -hub-grace
	SUBSCRIBER_BUFFER  → -subscriber-buffer
	RECONCILE_INTERVAL → -reconcile-interval

CLI flags take precedence over environment variables. main loads a .env file
first, so its values count as environment variables.

# Validation

ParseFlags returns an error if required values are missing or malformed:

  - DATABASE_URL must be provided
  - SESSION_SECRET must be provided
  - durations must parse with time.ParseDuration
*/
package cliparse
