package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"crmapi/activity"
	"crmapi/auth"
	"crmapi/store"
)

const maxBodyBytes = 1 << 20

// errBadRequest marks malformed input detected at the boundary.
var (
	errBadRequest = fmt.Errorf("api: %w", store.ErrInvalidInput)
	errEmptyBody  = fmt.Errorf("%w: empty request body", errBadRequest)
)

type errorResponse struct {
	Error string `json:"error"`
}

type listResponse[T any] struct {
	Items []T `json:"items"`
	Total int `json:"total"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		s.logger.Error("request failed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.String("request_id", requestIDFrom(r.Context())),
			zap.Error(err),
		)
		msg = "internal server error"
	}
	writeJSON(w, status, errorResponse{Error: msg})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, store.ErrConflict):
		return http.StatusConflict
	case errors.Is(err, store.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, auth.ErrInvalidCredentials), errors.Is(err, auth.ErrInvalidToken):
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}

func methodNotAllowed(w http.ResponseWriter, allowed ...string) {
	w.Header().Set("Allow", strings.Join(allowed, ", "))
	writeJSON(w, http.StatusMethodNotAllowed, errorResponse{Error: "method not allowed"})
}

func notFound(w http.ResponseWriter) {
	writeJSON(w, http.StatusNotFound, errorResponse{Error: "not found"})
}

// decodeJSON reads a single JSON document. Unknown fields are ignored.
func decodeJSON(r *http.Request, out any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	if err := dec.Decode(out); err != nil {
		if errors.Is(err, io.EOF) {
			return errEmptyBody
		}
		return fmt.Errorf("%w: invalid JSON body: %v", errBadRequest, err)
	}
	return nil
}

// pathID parses the first segment of rest as a positive id and returns the
// remaining sub-path without its leading slash.
func pathID(rest string) (int64, string, error) {
	seg, sub, _ := strings.Cut(strings.Trim(rest, "/"), "/")
	id, err := strconv.ParseInt(seg, 10, 64)
	if err != nil || id <= 0 {
		return 0, "", fmt.Errorf("%w: invalid id %q", errBadRequest, seg)
	}
	return id, sub, nil
}

// query wraps URL values and remembers the first parse failure.
type query struct {
	values map[string][]string
	err    error
}

func newQuery(r *http.Request) *query {
	return &query{values: r.URL.Query()}
}

func (q *query) get(name string) string {
	if v := q.values[name]; len(v) > 0 {
		return strings.TrimSpace(v[0])
	}
	return ""
}

func (q *query) fail(name, raw, want string) {
	if q.err == nil {
		q.err = fmt.Errorf("%w: query parameter %s=%q is not %s", errBadRequest, name, raw, want)
	}
}

func (q *query) int64Ptr(name string) *int64 {
	raw := q.get(name)
	if raw == "" {
		return nil
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		q.fail(name, raw, "an integer")
		return nil
	}
	return &v
}

func (q *query) intPtr(name string) *int {
	raw := q.get(name)
	if raw == "" {
		return nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		q.fail(name, raw, "an integer")
		return nil
	}
	return &v
}

func (q *query) boolPtr(name string) *bool {
	raw := q.get(name)
	if raw == "" {
		return nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		q.fail(name, raw, "a boolean")
		return nil
	}
	return &v
}

// timePtr accepts RFC 3339 timestamps, zoneless timestamps and plain dates.
// Zoneless values and dates are read as UTC.
func (q *query) timePtr(name string) *time.Time {
	raw := q.get(name)
	if raw == "" {
		return nil
	}
	if t, err := activity.ParseTimestamp(raw); err == nil {
		return &t
	}
	if t, err := time.Parse("2006-01-02", raw); err == nil {
		return &t
	}
	q.fail(name, raw, "a timestamp or YYYY-MM-DD date")
	return nil
}

// page reads skip/limit. Negative values are rejected and limit is capped at
// store.MaxLimit.
func (q *query) page() store.Page {
	var p store.Page
	if v := q.intPtr("skip"); v != nil {
		if *v < 0 {
			q.fail("skip", q.get("skip"), "a non-negative integer")
		} else {
			p.Offset = *v
		}
	}
	if v := q.intPtr("limit"); v != nil {
		switch {
		case *v < 1:
			q.fail("limit", q.get("limit"), "a positive integer")
		case *v > store.MaxLimit:
			p.Limit = store.MaxLimit
		default:
			p.Limit = *v
		}
	}
	return p.Normalize()
}
