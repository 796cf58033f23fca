package middleware

import (
	"log/slog"
	"net/http"

	"insightboard/internal/auth"
	"insightboard/internal/httputil"
)

// Identity resolves the caller once per request and stores it on the
// context. Guests always get their session echoed in the response header so
// a freshly issued session can be persisted by the client.
func Identity(resolver *auth.IdentityResolver, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id, issued := resolver.Resolve(r.Header.Get("Authorization"), r.Header.Get(auth.GuestSessionHeader))
			if id.IsGuest() {
				w.Header().Set(auth.GuestSessionHeader, id.Session)
				if issued {
					logger.Debug("guest session issued", "identity", id.Key(), "path", r.URL.Path)
				}
			}
			next.ServeHTTP(w, httputil.WithIdentity(r, id))
		})
	}
}
