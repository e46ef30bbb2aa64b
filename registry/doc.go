// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

// Package registry stores polls and their options and answers the
// "does this option belong to this poll" question asked before every vote.
// Option ownership is immutable, so it is cached in an LRU without
// invalidation.
package registry
