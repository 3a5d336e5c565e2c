// Package web holds the JSON response helpers and the API error kinds
// shared by all handlers.
package web

import (
	"encoding/json"
	"net/http"
)

// JSON writes v as a JSON response with the given status code
func JSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v == nil {
		return
	}
	_ = json.NewEncoder(w).Encode(v)
}

// Error writes err as a JSON error body, mapping known kinds to their
// status codes. Unknown errors become a 500.
func Error(w http.ResponseWriter, err error) {
	apiErr := From(err)

	body := map[string]any{"error": apiErr.Message}
	for k, v := range apiErr.Details {
		body[k] = v
	}

	JSON(w, apiErr.Status, body)
}
