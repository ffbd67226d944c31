// Package middleware provides the HTTP middleware chain of the humanizer API.
package middleware

import (
	"encoding/json"
	"net/http"
)

// errorBody mirrors handler/dto.ErrorResponse. Middleware cannot import the
// handler packages, so the shape is duplicated here.
type errorBody struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(errorBody{Error: message, Code: code})
}

// writeAuthError writes a 401 Unauthorized response.
// Every auth failure gets the same message to prevent enumeration.
func writeAuthError(w http.ResponseWriter) {
	w.Header().Set("WWW-Authenticate", `Bearer realm="humanizer"`)
	writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Invalid or missing credentials")
}
