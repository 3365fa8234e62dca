// Package respond reads and writes the JSON bodies shared by every API handler.
package respond

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/novellus/pilates-booking/internal/schema"
)

// ErrorBody is the error envelope returned to API clients.
type ErrorBody struct {
	Message string              `json:"message"`
	Errors  []schema.FieldError `json:"errors,omitempty"`
}

// JSON writes payload with the given status.
func JSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

// Error writes an ErrorBody.
func Error(w http.ResponseWriter, status int, message string, fields ...schema.FieldError) {
	JSON(w, status, ErrorBody{Message: message, Errors: fields})
}

// MaxBodyBytes caps every JSON request body.
const MaxBodyBytes = 64 << 10

// DecodeJSON reads one JSON value from a body capped at MaxBodyBytes.
func DecodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	return json.NewDecoder(http.MaxBytesReader(w, r.Body, MaxBodyBytes)).Decode(dst)
}

// BodyTooLarge reports whether err came from the MaxBodyBytes cap.
func BodyTooLarge(err error) bool {
	var tooLarge *http.MaxBytesError
	return errors.As(err, &tooLarge)
}

// DecodeError writes 413 for an oversized body and 400 otherwise.
func DecodeError(w http.ResponseWriter, err error) {
	if BodyTooLarge(err) {
		Error(w, http.StatusRequestEntityTooLarge, "Request body too large")
		return
	}
	Error(w, http.StatusBadRequest, "Invalid request body")
}
