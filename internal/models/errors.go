package models

import "net/http"

// AppError is an operation failure with the HTTP status it maps to, so
// controller results translate straight into API responses.
type AppError struct {
	Code    string `json:"error"`
	Message string `json:"message"`
	Status  int    `json:"-"`
}

func (e *AppError) Error() string { return e.Message }

// ErrNotFound reports a request for a track that does not exist.
func ErrNotFound(msg string) *AppError {
	return &AppError{Code: "not_found", Message: msg, Status: http.StatusNotFound}
}

// ErrBadRequest reports a request the controller refused to apply, such
// as an out-of-range speed or trip current.
func ErrBadRequest(msg string) *AppError {
	return &AppError{Code: "bad_request", Message: msg, Status: http.StatusBadRequest}
}

// ErrInternal reports a failure that is not the caller's fault.
func ErrInternal(msg string) *AppError {
	return &AppError{Code: "internal", Message: msg, Status: http.StatusInternalServerError}
}
