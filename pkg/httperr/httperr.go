package httperr

import (
	"errors"
	"net/http"
)

// StatusCoder is implemented by errors that map to a specific HTTP status.
type StatusCoder interface {
	StatusCode() int
}

// Retryabler is implemented by errors the caller may safely retry.
type Retryabler interface {
	Retryable() bool
}

// ConflictError signals that the requested entity already exists.
type ConflictError struct {
	Message string
}

func (e *ConflictError) Error() string   { return e.Message }
func (e *ConflictError) StatusCode() int { return http.StatusConflict }

// ForbiddenError signals a business-rule violation. It is terminal and
// must not be retried.
type ForbiddenError struct {
	Message string
}

func (e *ForbiddenError) Error() string   { return e.Message }
func (e *ForbiddenError) StatusCode() int { return http.StatusForbidden }

// NotFoundError signals that the requested entity does not exist.
type NotFoundError struct {
	Message string
}

func (e *NotFoundError) Error() string   { return e.Message }
func (e *NotFoundError) StatusCode() int { return http.StatusNotFound }

// UnauthorizedError signals a missing or invalid credential.
type UnauthorizedError struct {
	Message string
}

func (e *UnauthorizedError) Error() string   { return e.Message }
func (e *UnauthorizedError) StatusCode() int { return http.StatusUnauthorized }

// StatusOf returns the HTTP status for err, defaulting to 500.
func StatusOf(err error) int {
	var sc StatusCoder
	if errors.As(err, &sc) {
		return sc.StatusCode()
	}
	return http.StatusInternalServerError
}

// IsRetryable reports whether err advertises itself as retryable.
func IsRetryable(err error) bool {
	var r Retryabler
	if errors.As(err, &r) {
		return r.Retryable()
	}
	return false
}
