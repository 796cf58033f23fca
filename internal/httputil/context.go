package httputil

import (
	"context"
	"net/http"

	"insightboard/internal/domain/models"
)

type contextKey string

const identityKey contextKey = "identity"

// WithIdentity stores the caller's identity on the request context.
func WithIdentity(r *http.Request, id models.Identity) *http.Request {
	return r.WithContext(context.WithValue(r.Context(), identityKey, id))
}

// GetIdentity returns the identity set by the identity middleware. ok is
// false when the middleware did not run.
func GetIdentity(r *http.Request) (models.Identity, bool) {
	id, ok := r.Context().Value(identityKey).(models.Identity)
	return id, ok
}
