// Package api holds the HTTP plumbing shared by the resource handlers:
// JSON responses, pagination, input validation, the per-operation
// capability table and request middleware.
package api

import (
	"encoding/json"
	"net/http"
)

type ErrorResponse struct {
	Detail string `json:"detail"`
}

func JSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

// RawJSON writes an already encoded body, as read back from the cache.
func RawJSON(w http.ResponseWriter, status int, body []byte) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(body)
}

func Error(w http.ResponseWriter, status int, detail string) {
	JSON(w, status, ErrorResponse{Detail: detail})
}

func NotFound(w http.ResponseWriter) {
	Error(w, http.StatusNotFound, "Not found.")
}

func InternalError(w http.ResponseWriter) {
	Error(w, http.StatusInternalServerError, "A server error occurred.")
}
