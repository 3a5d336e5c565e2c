package web

import (
	"errors"
	"net/http"
)

// APIError is an error with an HTTP status and optional extra body fields
type APIError struct {
	Status  int
	Message string
	// Details are merged into the JSON error body next to "error".
	Details map[string]any
}

func (e *APIError) Error() string {
	return e.Message
}

// Validation is a 400 for missing or malformed request fields
func Validation(message string) *APIError {
	return &APIError{Status: http.StatusBadRequest, Message: message}
}

// NotFound is a 404
func NotFound(message string) *APIError {
	return &APIError{Status: http.StatusNotFound, Message: message}
}

// UnsupportedMedia is a 400 for a wrong extension or empty upload
func UnsupportedMedia(message string) *APIError {
	return &APIError{Status: http.StatusBadRequest, Message: message}
}

// Duplicate is a 409 carrying the existing record's summary
func Duplicate(message string, details map[string]any) *APIError {
	return &APIError{Status: http.StatusConflict, Message: message, Details: details}
}

// TooManyRequests is a 429
func TooManyRequests() *APIError {
	return &APIError{Status: http.StatusTooManyRequests, Message: "Trop de requêtes, réessayez plus tard"}
}

// MethodNotAllowed is a 405
func MethodNotAllowed() *APIError {
	return &APIError{Status: http.StatusMethodNotAllowed, Message: "Méthode non autorisée"}
}

// From converts any error into an APIError, defaulting to a 500
func From(err error) *APIError {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr
	}
	return &APIError{Status: http.StatusInternalServerError, Message: err.Error()}
}
