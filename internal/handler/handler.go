// Package handler exposes the services over HTTP.
package handler

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"petshop/internal/identity"
	"petshop/internal/middleware"
	"petshop/internal/model"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// IdempotencyHeader names the header carrying the client's idempotency key.
const IdempotencyHeader = "Idempotency-Key"

const maxBodyBytes = 1 << 20

var kindStatus = map[model.ErrorKind]int{
	model.KindValidation:   http.StatusBadRequest,
	model.KindNotFound:     http.StatusNotFound,
	model.KindConflict:     http.StatusConflict,
	model.KindForbidden:    http.StatusForbidden,
	model.KindUnauthorised: http.StatusUnauthorized,
	model.KindExpired:      http.StatusGone,
	model.KindDownstream:   http.StatusServiceUnavailable,
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		// Headers are already sent; nothing useful left to tell the client.
		return
	}
}

// writeError maps err to its HTTP status and error body. Domain errors keep
// their code and message; anything else becomes INTERNAL_ERROR.
func writeError(w http.ResponseWriter, r *http.Request, err error, logger zerolog.Logger) {
	correlationID := middleware.CorrelationID(r.Context())

	if de, ok := model.AsDomainError(err); ok {
		status, known := kindStatus[de.Kind]
		if !known {
			status = http.StatusInternalServerError
		}
		logger.Debug().Str("code", de.Code).Int("status", status).Str("correlation_id", correlationID).Msg("request rejected")
		writeJSON(w, status, model.ErrorResponse{Error: de.Code, Message: de.Message, CorrelationID: correlationID})
		return
	}

	logger.Error().Err(err).Str("path", r.URL.Path).Str("correlation_id", correlationID).Msg("handler error")
	writeJSON(w, http.StatusInternalServerError, model.ErrorResponse{
		Error:         model.ErrCodeInternalError,
		Message:       "Internal server error",
		CorrelationID: correlationID,
	})
}

// decode reads a JSON body into dst. An empty body leaves dst untouched when
// optional is set.
func decode(r *http.Request, dst any, optional bool) error {
	dec := json.NewDecoder(http.MaxBytesReader(nil, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if optional && errors.Is(err, io.EOF) {
			return nil
		}
		return model.NewDomainError(model.ErrCodeInvalidJSON, "Request body is not valid JSON: "+err.Error(), model.KindValidation)
	}
	return nil
}

// actor returns the authenticated caller.
func actor(r *http.Request) (identity.Actor, error) {
	a, ok := identity.FromContext(r.Context())
	if !ok {
		return identity.Actor{}, model.ErrUnauthorised
	}
	return a, nil
}

// pathUUID parses a UUID path parameter.
func pathUUID(r *http.Request, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(chi.URLParam(r, name))
	if err != nil {
		return uuid.Nil, model.NewValidationError("invalid %s format", name)
	}
	return id, nil
}

// page reads the limit and offset query parameters. Missing values are zero
// and the services apply their defaults.
func page(r *http.Request) (limit, offset int, err error) {
	query := r.URL.Query()
	if s := query.Get("limit"); s != "" {
		if limit, err = strconv.Atoi(s); err != nil {
			return 0, 0, model.NewValidationError("invalid limit parameter")
		}
	}
	if s := query.Get("offset"); s != "" {
		if offset, err = strconv.Atoi(s); err != nil {
			return 0, 0, model.NewValidationError("invalid offset parameter")
		}
	}
	return limit, offset, nil
}
