package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/example/ec-storefront/internal/domain/apperr"
)

const maxBodyBytes = 1 << 20

var codeStatus = map[string]int{
	"NotFound":          http.StatusNotFound,
	"InvalidArgument":   http.StatusBadRequest,
	"InsufficientStock": http.StatusConflict,
	"EmptyCart":         http.StatusBadRequest,
	"Unauthorized":      http.StatusUnauthorized,
	"Forbidden":         http.StatusForbidden,
	"Conflict":          http.StatusConflict,
	"InvalidTransition": http.StatusConflict,
	"Internal":          http.StatusInternalServerError,
}

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// respondError maps err to its status and code. Internal errors are logged
// with their detail and reported to the client without it.
func respondError(w http.ResponseWriter, r *http.Request, err error) {
	code := apperr.Code(err)
	status := codeStatus[code]
	logger := zerolog.Ctx(r.Context())

	msg := err.Error()
	if status >= http.StatusInternalServerError {
		logger.Error().Err(err).Msg("request failed")
		msg = "internal error"
	} else {
		logger.Debug().Err(err).Str("code", code).Msg("request rejected")
	}
	respondJSON(w, status, errorResponse{Error: msg, Code: code})
}

// decodeJSON reads exactly one JSON object into dst. Unknown fields and
// trailing data are rejected.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		var maxErr *http.MaxBytesError
		switch {
		case errors.Is(err, io.EOF):
			return apperr.Invalid("request body is empty")
		case errors.As(err, &maxErr):
			return apperr.Invalid("request body too large")
		default:
			return apperr.Invalid(fmt.Sprintf("invalid request body: %v", err))
		}
	}
	if dec.More() {
		return apperr.Invalid("request body must hold a single JSON object")
	}
	return nil
}
