package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"pocketwise/internal/core"
)

// HeaderUserID identifies the caller. Authentication happens upstream.
const HeaderUserID = "X-User-ID"

const maxBodyBytes = 64 << 10

// userID returns the caller's id or ErrMissingUser.
func userID(r *http.Request) (string, error) {
	id := sanitizeInput(r.Header.Get(HeaderUserID))
	if id == "" {
		return "", ErrMissingUser
	}
	return id, nil
}

// decodeJSON reads a single JSON object into dst, refusing unknown fields
// and oversized bodies.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		var maxErr *http.MaxBytesError
		switch {
		case errors.Is(err, io.EOF):
			return fmt.Errorf("%w: empty request body", core.ErrInvalidInput)
		case errors.As(err, &maxErr):
			return fmt.Errorf("%w: request body exceeds %d bytes", core.ErrInvalidInput, maxErr.Limit)
		default:
			return fmt.Errorf("%w: malformed JSON: %v", core.ErrInvalidInput, err)
		}
	}
	if dec.More() {
		return fmt.Errorf("%w: request body must hold a single JSON object", core.ErrInvalidInput)
	}
	return nil
}

// queryInt parses an optional integer query parameter. Absent yields 0.
func queryInt(r *http.Request, name string) (int, error) {
	v := strings.TrimSpace(r.URL.Query().Get(name))
	if v == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("%w: %s must be a non-negative integer", core.ErrInvalidInput, name)
	}
	return n, nil
}

// sanitizeInput flattens s to a single line: control characters, line
// breaks included, are dropped and surrounding whitespace is trimmed.
func sanitizeInput(s string) string {
	s = strings.Map(func(r rune) rune {
		if r == '\t' {
			return ' '
		}
		if r < 32 || r == 127 {
			return -1
		}
		return r
	}, s)
	return strings.TrimSpace(s)
}
