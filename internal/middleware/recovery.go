package middleware

import (
	"log/slog"
	"net/http"
	"runtime/debug"

	"insightboard/internal/httputil"
)

// trackingWriter remembers whether the handler already started a response.
type trackingWriter struct {
	http.ResponseWriter
	wrote bool
}

func (t *trackingWriter) WriteHeader(status int) {
	t.wrote = true
	t.ResponseWriter.WriteHeader(status)
}

func (t *trackingWriter) Write(b []byte) (int, error) {
	t.wrote = true
	return t.ResponseWriter.Write(b)
}

// Recovery turns a handler panic into a 500 problem response. When the
// handler had already written part of its response the connection is left
// as is; only the log entry is emitted.
func Recovery(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tw := &trackingWriter{ResponseWriter: w}
			defer func() {
				rec := recover()
				if rec == nil {
					return
				}
				if rec == http.ErrAbortHandler {
					panic(rec)
				}

				attrs := []any{
					"panic", rec,
					"route", r.Method + " " + r.URL.Path,
					"stack", string(debug.Stack()),
				}
				if id, ok := httputil.GetIdentity(r); ok {
					attrs = append(attrs, "identity", id.Key())
				}
				logger.Error("handler panicked", attrs...)

				if !tw.wrote {
					httputil.RespondError(tw, http.StatusInternalServerError, "internal server error")
				}
			}()

			next.ServeHTTP(tw, r)
		})
	}
}
