package auth

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/apimeter/apimeter/pkg/ratelimiter"
	"github.com/apimeter/apimeter/pkg/response"
)

// credentialFromRequest extracts the raw credential. API keys may arrive
// in X-API-Key or as a Bearer value; the resolver sorts out which path
// applies based on the format.
func credentialFromRequest(r *http.Request) string {
	if key := r.Header.Get("X-API-Key"); key != "" {
		return key
	}
	header := r.Header.Get("Authorization")
	if token, found := strings.CutPrefix(header, "Bearer "); found {
		return strings.TrimSpace(token)
	}
	return ""
}

// Middleware authenticates every request through the resolver and puts
// the Principal on the context. Unauthenticated requests get a uniform
// 401; resolver failures that are not authentication failures (the
// entitlement backend being down, for one) surface as opaque 500s so a
// valid credential is never reported as invalid.
func Middleware(resolver *Resolver) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			principal, err := resolver.Resolve(r.Context(), credentialFromRequest(r))
			if errors.Is(err, ErrUnauthenticated) {
				response.Error(w, response.ErrUnauthorized)
				return
			}
			if err != nil {
				response.Error(w, err)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithPrincipal(r.Context(), principal)))
		})
	}
}

// RateLimitMiddleware enforces the principal's per-minute entitlement.
// The bucket is keyed by organization, so every credential of a tenant
// draws from the same allowance. Principals without an organization are
// not limited here; they cannot reach metered endpoints anyway.
func RateLimitMiddleware(store ratelimiter.Store) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			principal, ok := PrincipalFromContext(r.Context())
			if !ok || principal.OrganizationID == uuid.Nil {
				next.ServeHTTP(w, r)
				return
			}

			cfg := ratelimiter.PerMinute(principal.Entitlement.RateLimit)
			res, err := store.ConsumeTokens(r.Context(), principal.OrganizationID.String(), 1, cfg)
			if err != nil {
				// A broken limiter store must not take the API down.
				next.ServeHTTP(w, r)
				return
			}

			w.Header().Set("X-RateLimit-Limit", strconv.FormatInt(res.Limit, 10))
			w.Header().Set("X-RateLimit-Remaining", strconv.FormatInt(max(res.Remaining, 0), 10))
			if !res.Allowed() {
				w.Header().Set("Retry-After", strconv.FormatInt(int64(res.RetryAfter().Seconds())+1, 10))
				response.Error(w, response.ErrTooMany)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
