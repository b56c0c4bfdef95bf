package controllers

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/hyperrixel/logos/internal/ingest"
)

// PrincipalHeader carries the verified principal identity. Authentication
// itself is an external collaborator; the gateway trusts this header.
const PrincipalHeader = "X-Logos-Principal"

// Helper functions for common HTTP responses

// writeError writes an error response with a stable taxonomy code and a
// human message.
func writeError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"code": code, "error": message})
}

// writeJSON writes a JSON response with the given data.
func writeJSON(w http.ResponseWriter, data any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(data)
}

// writeNoContent writes a 204 No Content response.
func writeNoContent(w http.ResponseWriter) {
	w.WriteHeader(http.StatusNoContent)
}

// writeReject maps a pipeline rejection onto status + taxonomy code.
// Authorization denials stay opaque: the code is all a caller learns.
func writeReject(w http.ResponseWriter, err error) {
	code := ingest.RejectCode(err)
	msg := err.Error()
	if code == "denied" {
		msg = "denied"
	}
	writeError(w, statusForCode(code), code, msg)
}

// statusForCode maps taxonomy codes onto HTTP statuses.
func statusForCode(code string) int {
	switch code {
	case "malformed_payload", "unsupported_field", "schema_version_mismatch",
		"validation_failed", "dangling_link":
		return http.StatusBadRequest
	case "denied", "tag_not_authorized":
		return http.StatusForbidden
	case "not_found":
		return http.StatusNotFound
	case "persistence_unavailable":
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// writeNotFound is the opaque answer for both absent and unreadable
// entries, so a denied read is indistinguishable from a missing one.
func writeNotFound(w http.ResponseWriter) {
	writeError(w, http.StatusNotFound, "not_found", "not found")
}

// principalID extracts the verified principal identity, empty when the
// request carries none.
func principalID(r *http.Request) string {
	return strings.TrimSpace(r.Header.Get(PrincipalHeader))
}

// parseSeq parses a decimal entry identifier. Returns 0 for empty or
// invalid values.
func parseSeq(s string) uint64 {
	if s == "" {
		return 0
	}
	if seq, err := strconv.ParseUint(s, 10, 64); err == nil {
		return seq
	}
	return 0
}

// parseLimit parses a limit string and returns a valid limit value.
//
// Returns 0 for empty strings or invalid values.
func parseLimit(limitStr string) int {
	if limitStr == "" {
		return 0
	}
	if limit, err := strconv.Atoi(limitStr); err == nil && limit > 0 {
		return limit
	}
	return 0
}

// parseTimestamp parses a timestamp string and returns Unix milliseconds.
//
// Supports both RFC3339 format and raw millisecond timestamps.
// Returns 0 for empty strings or invalid values.
func parseTimestamp(ts string) int64 {
	if ts == "" {
		return 0
	}
	// Try parsing as milliseconds first
	if ms, err := strconv.ParseInt(ts, 10, 64); err == nil {
		return ms
	}
	// Try parsing as RFC3339
	if t, err := time.Parse(time.RFC3339, ts); err == nil {
		return t.UnixMilli()
	}
	return 0
}

// parseBool parses a boolean string and returns the boolean value.
//
// Returns true for "true" or "1", false otherwise.
func parseBool(s string) bool {
	return s == "true" || s == "1"
}

// splitCSV splits a comma separated list, dropping empty items.
func splitCSV(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
