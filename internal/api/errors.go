package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"dynquery/internal/domain"
)

// httpStatusFromDomainError maps domain errors to HTTP status codes.
func httpStatusFromDomainError(err error) int {
	var notFound *domain.NotFoundError
	var validation *domain.ValidationError
	var schema *domain.SchemaError
	var filter *domain.FilterError
	var compilation *domain.CompilationError
	var connection *domain.ConnectionError
	var execution *domain.ExecutionError

	switch {
	case errors.As(err, &notFound):
		return http.StatusNotFound
	case errors.As(err, &validation),
		errors.As(err, &schema),
		errors.As(err, &filter),
		errors.As(err, &compilation):
		return http.StatusBadRequest
	case errors.As(err, &connection):
		return http.StatusBadGateway
	case errors.As(err, &execution):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError renders err as `{"error": message}`. Internal errors do not
// leak their message.
func writeError(w http.ResponseWriter, err error) {
	status := httpStatusFromDomainError(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		msg = "internal error"
	}
	writeJSON(w, status, map[string]string{"error": msg})
}
