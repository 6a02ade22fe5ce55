// Package httpext has small helpers for JSON responses.
package httpext

import (
	"encoding/json"
	"net/http"
)

// ErrorResponse is the standardised JSON error body. Details carries upstream
// status/body when a provider call failed, so callers can diagnose without
// server-side logs.
type ErrorResponse struct {
	Error   string `json:"error"`
	Status  int    `json:"status,omitempty"`
	Details string `json:"response,omitempty"`
}

// WriteJSON writes v with the given status code.
func WriteJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, `{"error":"Internal Server Error"}`, http.StatusInternalServerError)
	}
}

// JSONError writes a plain error message.
func JSONError(w http.ResponseWriter, code int, message string) {
	WriteJSON(w, code, ErrorResponse{Error: message})
}

// UpstreamError writes an error that surfaces the upstream status and body.
func UpstreamError(w http.ResponseWriter, code int, message string, upstreamStatus int, upstreamBody string) {
	WriteJSON(w, code, ErrorResponse{Error: message, Status: upstreamStatus, Details: upstreamBody})
}
