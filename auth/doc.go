// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package auth provides voter identity tokens and signed session cookies.

# Voter Tokens

Voter tokens are random 24-byte (192-bit) secrets:

	token, err := auth.GenerateVoterToken()

Tokens are URL-safe base64 encoded. A token is the voter identity the engine
sees; it carries no account and never expires on the server.

# Sessions

The token travels in the sessionId cookie, signed with HMAC-SHA256:

	value, err := auth.SignSession(token, secret)    // "token.signature"
	token, err := auth.VerifySession(value, secret)  // ErrInvalidSession on tampering

Signatures are compared with hmac.Equal. A cookie that fails verification is
treated as absent and the voter receives a fresh token.

# Logging

Log lines carry auth.ShortToken(token), the first 8 characters, never the
full token.
*/
package auth
