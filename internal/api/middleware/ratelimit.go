// SPDX-License-Identifier: MIT

package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/httprate"

	"github.com/ManuGH/xmlembed/internal/log"
)

// APIRateLimit allows perMinute requests per client IP in a sliding one-minute
// window. Rejected requests get 429 with Retry-After.
func APIRateLimit(perMinute int) func(http.Handler) http.Handler {
	return rateLimit(perMinute, time.Minute, httprate.KeyByIP)
}

func rateLimit(limit int, window time.Duration, key httprate.KeyFunc) func(http.Handler) http.Handler {
	retryAfter := strconv.Itoa(int(window.Seconds()))
	return httprate.Limit(limit, window,
		httprate.WithKeyFuncs(key),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			logger := log.WithComponentFromContext(r.Context(), "ratelimit")
			logger.Debug().
				Str(log.FieldEvent, "http.rate_limited").
				Str(log.FieldRemoteAddr, r.RemoteAddr).
				Msg("request rate limited")
			w.Header().Set("Retry-After", retryAfter)
			reject(w, r, http.StatusTooManyRequests, "rate_limit_exceeded", "too many requests, retry later")
		}),
	)
}
