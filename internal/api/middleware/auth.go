// SPDX-License-Identifier: MIT

package middleware

import (
	"net/http"

	"github.com/ManuGH/xmlembed/internal/auth"
	xlog "github.com/ManuGH/xmlembed/internal/log"
)

// RequireToken rejects requests that do not carry token and attaches the
// caller's principal ID to the context of those that do.
func RequireToken(token string) func(http.Handler) http.Handler {
	principal := auth.PrincipalID(token)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !auth.AuthorizeRequest(r, token) {
				logger := xlog.WithComponentFromContext(r.Context(), "auth")
				logger.Warn().
					Str(xlog.FieldEvent, "auth.rejected").
					Str(xlog.FieldRemoteAddr, r.RemoteAddr).
					Msg("missing or invalid API token")
				w.Header().Set("WWW-Authenticate", `Bearer realm="xmlembed"`)
				reject(w, r, http.StatusUnauthorized, "unauthorized", "missing or invalid API token")
				return
			}
			next.ServeHTTP(w, r.WithContext(auth.WithPrincipal(r.Context(), principal)))
		})
	}
}
