package httputil

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
)

// maxBodyBytes bounds request bodies. Workspace snapshots carry every
// generated tile, so this is larger than a typical form post.
const maxBodyBytes = 10 << 20

// ErrEmptyBody is returned by ParseJSON when the request has no body.
var ErrEmptyBody = errors.New("empty request body")

// ParseJSON decodes a single JSON value from the request body into dest.
func ParseJSON(w http.ResponseWriter, r *http.Request, dest any) error {
	if r.Body == nil || r.Body == http.NoBody {
		return ErrEmptyBody
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)

	if err := json.NewDecoder(r.Body).Decode(dest); err != nil {
		if errors.Is(err, io.EOF) {
			return ErrEmptyBody
		}
		return fmt.Errorf("invalid JSON: %w", err)
	}
	return nil
}

// ParseOptionalJSON is ParseJSON for endpoints whose body may be omitted;
// dest is left untouched when there is nothing to read.
func ParseOptionalJSON(w http.ResponseWriter, r *http.Request, dest any) error {
	if err := ParseJSON(w, r, dest); err != nil && !errors.Is(err, ErrEmptyBody) {
		return err
	}
	return nil
}
