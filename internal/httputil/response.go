package httputil

import (
	"encoding/json"
	"net/http"
)

const (
	contentTypeJSON    = "application/json"
	contentTypeProblem = "application/problem+json"
)

// write marshals body before touching the header so an encoding failure can
// still be reported with a clean status line.
func write(w http.ResponseWriter, status int, contentType string, body any) {
	payload, err := json.Marshal(body)
	if err != nil {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte("failed to encode response"))
		return
	}
	w.Header().Set("Content-Type", contentType)
	w.WriteHeader(status)
	_, _ = w.Write(payload)
}

// RespondJSON writes data as a JSON document.
func RespondJSON(w http.ResponseWriter, status int, data any) {
	write(w, status, contentTypeJSON, data)
}

// RespondNoContent writes an empty 204.
func RespondNoContent(w http.ResponseWriter) {
	w.WriteHeader(http.StatusNoContent)
}

// Problem is an RFC 7807 body. Extensions are flattened next to the standard
// members, e.g. {"status":429,...,"action":"createTile","used":5,"limit":5}.
type Problem struct {
	Type       string
	Title      string
	Status     int
	Detail     string
	Extensions map[string]any
}

func (p Problem) MarshalJSON() ([]byte, error) {
	m := make(map[string]any, len(p.Extensions)+4)
	// Standard members win over an extension of the same name.
	for k, v := range p.Extensions {
		m[k] = v
	}
	m["type"] = p.Type
	m["title"] = p.Title
	m["status"] = p.Status
	if p.Detail != "" {
		m["detail"] = p.Detail
	}
	return json.Marshal(m)
}

// RespondError writes a problem response with no extension members.
func RespondError(w http.ResponseWriter, status int, detail string) {
	RespondErrorWithExtras(w, status, detail, nil)
}

// RespondErrorWithExtras writes a problem response carrying extension members
// such as quota numbers or the offending field name.
func RespondErrorWithExtras(w http.ResponseWriter, status int, detail string, extras map[string]any) {
	write(w, status, contentTypeProblem, Problem{
		Type:       problemType(status),
		Title:      http.StatusText(status),
		Status:     status,
		Detail:     detail,
		Extensions: extras,
	})
}

var problemTypes = map[int]string{
	http.StatusBadRequest:          "https://datatracker.ietf.org/doc/html/rfc9110#section-15.5.1",
	http.StatusUnauthorized:        "https://datatracker.ietf.org/doc/html/rfc9110#section-15.5.2",
	http.StatusForbidden:           "https://datatracker.ietf.org/doc/html/rfc9110#section-15.5.4",
	http.StatusNotFound:            "https://datatracker.ietf.org/doc/html/rfc9110#section-15.5.5",
	http.StatusConflict:            "https://datatracker.ietf.org/doc/html/rfc9110#section-15.5.10",
	http.StatusTooManyRequests:     "https://datatracker.ietf.org/doc/html/rfc6585#section-4",
	http.StatusInternalServerError: "https://datatracker.ietf.org/doc/html/rfc9110#section-15.6.1",
	http.StatusServiceUnavailable:  "https://datatracker.ietf.org/doc/html/rfc9110#section-15.6.4",
}

func problemType(status int) string {
	if t, ok := problemTypes[status]; ok {
		return t
	}
	return "about:blank"
}
