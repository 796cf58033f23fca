package models

import "github.com/golang-jwt/jwt/v5"

// SupabaseClaims represents the JWT claims structure issued by Supabase Auth.
type SupabaseClaims struct {
	jwt.RegisteredClaims                        // Standard JWT claims (sub, iss, aud, exp, iat, etc.)
	Email                string                 `json:"email"`
	AppMetadata          map[string]interface{} `json:"app_metadata"`
	Role                 string                 `json:"role"` // "authenticated" or "anon"
	SessionID            string                 `json:"session_id"`
	IsAnonymous          bool                   `json:"is_anonymous"`
}

// GetUserID returns the user ID from the JWT subject claim.
func (c *SupabaseClaims) GetUserID() string {
	return c.Subject
}

// Plan returns the billing plan recorded in app_metadata.plan, or "" if unset.
// app_metadata is only writable by the service role, so it is safe to trust.
func (c *SupabaseClaims) Plan() string {
	if c.AppMetadata == nil {
		return ""
	}
	plan, _ := c.AppMetadata["plan"].(string)
	return plan
}
