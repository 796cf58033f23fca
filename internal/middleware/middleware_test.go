package middleware

import (
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"insightboard/internal/auth"
	"insightboard/internal/domain/models"
	"insightboard/internal/httputil"
)

var testLogger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))

func TestIdentity(t *testing.T) {
	session := "6f1c2a7e-0d3b-4c8a-9e5f-1a2b3c4d5e6f"
	var seen models.Identity
	handler := Identity(auth.NewIdentityResolver(nil, testLogger), testLogger)(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id, ok := httputil.GetIdentity(r)
			require.True(t, ok)
			seen = id
		}))

	t.Run("existing session", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/workspaces", nil)
		req.Header.Set(auth.GuestSessionHeader, session)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		assert.Equal(t, session, seen.Session)
		assert.Equal(t, session, rec.Header().Get(auth.GuestSessionHeader))
	})

	t.Run("issued session", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/workspaces", nil)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		assert.True(t, seen.IsGuest())
		assert.True(t, auth.ValidGuestSession(seen.Session))
		assert.Equal(t, seen.Session, rec.Header().Get(auth.GuestSessionHeader))
	})
}

func TestRecovery(t *testing.T) {
	handler := Recovery(testLogger)(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "application/problem+json", rec.Header().Get("Content-Type"))
}

func TestRecovery_AfterPartialWrite(t *testing.T) {
	handler := Recovery(testLogger)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusAccepted)
		panic("late boom")
	}))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusAccepted, rec.Code)
	assert.Empty(t, rec.Body.String())
}
