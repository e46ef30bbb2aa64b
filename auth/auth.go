// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package auth

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
)

var (
	ErrInvalidSession = errors.New("invalid session")
	ErrMissingSecret  = errors.New("session secret is empty")
)

// GenerateVoterToken creates a random secure token for a voter
// This is the voter identity carried in the session cookie
func GenerateVoterToken() (string, error) {
	b := make([]byte, 24) // 24 bytes = 192 bits of entropy
	_, err := rand.Read(b)
	if err != nil {
		return "", fmt.Errorf("failed to generate voter token: %w", err)
	}
	// URL-safe base64 without padding
	return strings.TrimRight(base64.URLEncoding.EncodeToString(b), "="), nil
}

// SignSession returns "token.signature" where the signature is an
// HMAC-SHA256 of the token under secret.
func SignSession(token, secret string) (string, error) {
	if secret == "" {
		return "", ErrMissingSecret
	}
	if token == "" || strings.Contains(token, ".") {
		return "", ErrInvalidSession
	}
	return token + "." + sign(token, secret), nil
}

// VerifySession checks a signed cookie value and returns the voter token.
func VerifySession(value, secret string) (string, error) {
	if secret == "" {
		return "", ErrMissingSecret
	}
	token, sig, ok := strings.Cut(value, ".")
	if !ok || token == "" || sig == "" {
		return "", ErrInvalidSession
	}
	if !hmac.Equal([]byte(sig), []byte(sign(token, secret))) {
		return "", ErrInvalidSession
	}
	return token, nil
}

// ShortToken trims a voter token for log output
func ShortToken(token string) string {
	if len(token) <= 8 {
		return token
	}
	return token[:8]
}

func sign(token, secret string) string {
	h := hmac.New(sha256.New, []byte(secret))
	h.Write([]byte(token))
	// Use URL-safe base64 and trim padding for cleaner cookies
	return strings.TrimRight(base64.URLEncoding.EncodeToString(h.Sum(nil)), "=")
}
