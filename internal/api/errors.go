package api

import (
	"errors"
	"net/http"

	"authbridge/internal/domain"
)

// httpStatusFromDomainError maps domain errors to HTTP status codes.
func httpStatusFromDomainError(err error) int {
	var notFound *domain.NotFoundError
	var validation *domain.ValidationError
	var conflict *domain.ConflictError
	var rejected *domain.RejectedError
	var grantWrite *domain.GrantWriteError

	switch {
	case errors.As(err, &notFound):
		return http.StatusNotFound
	case errors.As(err, &validation):
		return http.StatusBadRequest
	case errors.As(err, &conflict):
		return http.StatusConflict
	case errors.As(err, &rejected):
		return http.StatusUnauthorized
	case errors.As(err, &grantWrite):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
