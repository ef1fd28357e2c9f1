// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package auth checks the static API token guarding the control surface.
package auth

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"net/http"
	"strings"
)

// HeaderToken is the alternative to an Authorization bearer token.
const HeaderToken = "X-API-Token"

// ExtractToken retrieves the API token from the request.
// Authorization: Bearer wins over X-API-Token. Query parameters are never read.
func ExtractToken(r *http.Request) string {
	if h := r.Header.Get("Authorization"); len(h) > 7 && strings.EqualFold(h[:7], "bearer ") {
		return strings.TrimSpace(h[7:])
	}
	return strings.TrimSpace(r.Header.Get(HeaderToken))
}

// AuthorizeToken reports whether got matches expected in constant time.
// Empty tokens are always unauthorized.
func AuthorizeToken(got, expected string) bool {
	if strings.TrimSpace(expected) == "" || got == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(got), []byte(expected)) == 1
}

// AuthorizeRequest extracts a token from r and validates it against expected.
func AuthorizeRequest(r *http.Request, expected string) bool {
	if r == nil {
		return false
	}
	return AuthorizeToken(ExtractToken(r), expected)
}

// PrincipalID derives a stable, non-reversible caller identifier from a token.
// It is safe to log and to store as a submission source.
func PrincipalID(token string) string {
	sum := sha256.Sum256([]byte(token))
	return "t_" + hex.EncodeToString(sum[:])[:16]
}

type principalKey struct{}

// WithPrincipal stores the caller identifier in ctx.
func WithPrincipal(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, principalKey{}, id)
}

// PrincipalFromContext returns the caller identifier, or "" when unauthenticated.
func PrincipalFromContext(ctx context.Context) string {
	id, _ := ctx.Value(principalKey{}).(string)
	return id
}
