// Package apperr holds the error taxonomy shared by the checkout, order and
// payment packages. Call sites wrap one of the sentinels with fmt.Errorf("%w: ...")
// and transports map them with HTTPStatus and Code.
package apperr

import (
	"errors"
	"net/http"
)

var (
	// ErrValidation signals bad or missing input. Nothing was mutated.
	ErrValidation = errors.New("validation failed")
	// ErrNotFound signals an absent resource or one not owned by the caller.
	ErrNotFound = errors.New("not found")
	// ErrSignature signals a gateway payload that failed verification.
	ErrSignature = errors.New("signature verification failed")
	// ErrConflict signals a uniqueness collision that could not be resolved.
	ErrConflict = errors.New("conflict")
	// ErrGateway signals a timeout or malformed answer from an external service.
	ErrGateway = errors.New("gateway error")
	// ErrIllegalTransition signals a state change the order lifecycle forbids.
	ErrIllegalTransition = errors.New("illegal status transition")
)

// HTTPStatus maps err to the status code the HTTP layer answers with.
func HTTPStatus(err error) int {
	switch {
	case errors.Is(err, ErrValidation), errors.Is(err, ErrSignature):
		return http.StatusBadRequest
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrConflict), errors.Is(err, ErrIllegalTransition):
		return http.StatusConflict
	case errors.Is(err, ErrGateway):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// Code is the machine readable error code placed in JSON error payloads.
func Code(err error) string {
	switch {
	case errors.Is(err, ErrValidation):
		return "validation_error"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrSignature):
		return "signature_error"
	case errors.Is(err, ErrConflict):
		return "conflict"
	case errors.Is(err, ErrIllegalTransition):
		return "illegal_transition"
	case errors.Is(err, ErrGateway):
		return "gateway_error"
	default:
		return "internal_error"
	}
}

// Retryable reports whether the caller may repeat the operation unchanged.
func Retryable(err error) bool {
	return errors.Is(err, ErrGateway)
}
