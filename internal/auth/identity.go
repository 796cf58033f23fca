package auth

import (
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"insightboard/internal/domain/models"
)

// GuestSessionHeader carries the guest's local storage namespace.
const GuestSessionHeader = "X-Guest-Session"

// JWTVerifier validates member bearer tokens, returning
// domain.ErrUnauthorized for anything it will not accept.
type JWTVerifier interface {
	VerifyToken(tokenString string) (*models.SupabaseClaims, error)
	Close() error
}

// IdentityResolver turns request credentials into an Identity. It never
// fails: a missing or rejected bearer token yields a guest, and a missing or
// malformed guest session yields a freshly issued one.
type IdentityResolver struct {
	verifier JWTVerifier
	logger   *slog.Logger
	newID    func() string
}

// NewIdentityResolver accepts a nil verifier, in which case every caller is a guest.
func NewIdentityResolver(verifier JWTVerifier, logger *slog.Logger) *IdentityResolver {
	return &IdentityResolver{verifier: verifier, logger: logger, newID: uuid.NewString}
}

// Resolve returns the caller's identity and whether a new guest session was
// issued.
func (r *IdentityResolver) Resolve(authorization, guestSession string) (models.Identity, bool) {
	if token, ok := bearerToken(authorization); ok && r.verifier != nil {
		claims, err := r.verifier.VerifyToken(token)
		if err == nil {
			return models.Member(claims.GetUserID(), claims.Plan()), false
		}
		r.logger.Warn("bearer token rejected, continuing as guest", "error", err)
	}

	if ValidGuestSession(guestSession) {
		return models.Guest(guestSession), false
	}
	return models.Guest(r.newID()), true
}

// ValidGuestSession reports whether s is a well-formed session id.
func ValidGuestSession(s string) bool {
	if s == "" {
		return false
	}
	_, err := uuid.Parse(s)
	return err == nil && len(s) == 36
}

func bearerToken(header string) (string, bool) {
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}
