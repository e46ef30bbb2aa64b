// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package db opens database connections and creates the schema.

# Connecting

Open registers both drivers and picks one by type:

	conn, err := db.Open(db.TypeSQLite, "file:livepoll.db?_pragma=foreign_keys(1)")
	conn, err := db.Open(db.TypePostgres, "postgres://...")

SQLite connections are capped at one open connection so concurrent writers
queue instead of failing with SQLITE_BUSY.

# Schema Creation

	if err := db.CreateSchema(conn); err != nil {
		log.Fatal(err)
	}

Safe to call multiple times - uses IF NOT EXISTS for all tables and indexes.

# Tables

  - poll: Poll metadata
  - poll_option: Options per poll, ordered by position
  - vote: The vote ledger, one row per (voter_id, poll_id)

# Relationships

	poll 1──* poll_option
	poll 1──* vote
	poll_option 1──* vote

The UNIQUE (voter_id, poll_id) constraint on vote is what keeps a voter to
one active vote per poll under concurrent requests.
*/
package db
