// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExtractToken_PriorityOrder(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "http://example.local/api/v1/submissions?token=query", nil)
	r.Header.Set("Authorization", "Bearer bearer-token ")
	r.Header.Set(HeaderToken, "header-token")
	assert.Equal(t, "bearer-token", ExtractToken(r))

	r.Header.Del("Authorization")
	assert.Equal(t, "header-token", ExtractToken(r))

	r.Header.Del(HeaderToken)
	assert.Empty(t, ExtractToken(r), "query tokens are ignored")
}

func TestExtractToken_BearerCaseInsensitive(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set("Authorization", "bearer abc")
	assert.Equal(t, "abc", ExtractToken(r))

	r.Header.Set("Authorization", "Basic abc")
	assert.Empty(t, ExtractToken(r))
}

func TestAuthorizeToken(t *testing.T) {
	assert.True(t, AuthorizeToken("secret", "secret"))
	assert.False(t, AuthorizeToken("secret", "other"))
	assert.False(t, AuthorizeToken("", "secret"))
	assert.False(t, AuthorizeToken("secret", ""))
	assert.False(t, AuthorizeToken("secret", "   "))
}

func TestAuthorizeRequest(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set(HeaderToken, "secret")
	assert.True(t, AuthorizeRequest(r, "secret"))
	assert.False(t, AuthorizeRequest(r, "other"))
	assert.False(t, AuthorizeRequest(nil, "secret"))
}

func TestPrincipal(t *testing.T) {
	id := PrincipalID("secret")
	assert.Len(t, id, 18)
	assert.Equal(t, id, PrincipalID("secret"))
	assert.NotEqual(t, id, PrincipalID("other"))
	assert.NotContains(t, id, "secret")

	ctx := WithPrincipal(context.Background(), id)
	assert.Equal(t, id, PrincipalFromContext(ctx))
	assert.Empty(t, PrincipalFromContext(context.Background()))
}
