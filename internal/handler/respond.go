// Package handler provides HTTP handlers for the BG affiliate dashboard.
package handler

import (
	"encoding/json"
	stderrors "errors"
	"io"
	"net/http"

	"bgref/pkg/errors"
)

const maxBodyBytes = 1 << 20

// Logger is the subset of logger.Logger the handlers use.
type Logger interface {
	Info(msg string, fields map[string]interface{})
	Warn(msg string, fields map[string]interface{})
	Error(msg string, fields map[string]interface{})
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

func respondValidationErrors(w http.ResponseWriter, errors map[string]string) {
	respondJSON(w, http.StatusBadRequest, map[string]interface{}{
		"error":             "Validation failed",
		"validation_errors": errors,
	})
}

// decodeBody reads a single JSON object, rejecting unknown fields. It writes
// the 400 response itself and returns false on failure.
func decodeBody(w http.ResponseWriter, r *http.Request, dest interface{}) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	if err := dec.Decode(dest); err != nil {
		if stderrors.Is(err, io.EOF) {
			respondError(w, http.StatusBadRequest, "Request body is required")
			return false
		}
		var tooLarge *http.MaxBytesError
		if stderrors.As(err, &tooLarge) {
			respondError(w, http.StatusRequestEntityTooLarge, "Request body too large")
			return false
		}
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return false
	}
	return true
}

// statusFor maps service errors onto HTTP statuses.
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, errors.ErrInvalidCommissionPercent):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, errors.ErrInvalidLoginCode),
		errors.Is(err, errors.ErrInvalidCredentials),
		errors.Is(err, errors.ErrTokenRevoked):
		return http.StatusUnauthorized, "Invalid credentials"
	case errors.Is(err, errors.ErrNotBgAffiliate),
		errors.Is(err, errors.ErrNotDirectDownline):
		return http.StatusForbidden, err.Error()
	case errors.Is(err, errors.ErrWalletNotFound),
		errors.Is(err, errors.ErrNodeNotFound):
		return http.StatusNotFound, err.Error()
	case errors.Is(err, errors.ErrCommissionIncrease),
		errors.Is(err, errors.ErrDuplicateRequest):
		return http.StatusConflict, err.Error()
	case errors.Is(err, errors.ErrSourceUnavailable):
		return http.StatusBadGateway, "Affiliate data is temporarily unavailable"
	default:
		return http.StatusInternalServerError, "Internal server error"
	}
}
