package handler

import (
	"errors"
	"net/http"

	"notewire/internal/service"
	"notewire/pkg/response"
)

// writeServiceError maps service failures onto the wire. Conflicts answer
// 409 with the current authoritative copy as the body so clients can resolve
// without refetching.
func writeServiceError(w http.ResponseWriter, err error) {
	var conflict *service.ConflictError
	switch {
	case errors.As(err, &conflict):
		response.JSON(w, http.StatusConflict, conflict.Current)
	case errors.Is(err, service.ErrNotFound):
		response.NotFound(w, "Entity not found")
	case errors.Is(err, service.ErrUnauthorized), errors.Is(err, service.ErrForbidden):
		response.Forbidden(w, "Operation not permitted")
	default:
		response.InternalError(w, "Internal server error")
	}
}
