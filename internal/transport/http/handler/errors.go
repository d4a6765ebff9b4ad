package handler

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/go-otp-auth/internal/domain"
)

// statusFor maps a domain error kind to an HTTP status.
func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrBadRequest),
		errors.Is(err, domain.ErrInvalidCode),
		errors.Is(err, domain.ErrCodeExpired):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// httpError writes err as {"error": msg}. Only domain.Error messages reach the
// client; anything else is reported as an unexpected error.
func httpError(w http.ResponseWriter, err error) {
	var de *domain.Error
	if errors.As(err, &de) {
		writeError(w, statusFor(de), de.Message)
		return
	}
	writeError(w, http.StatusInternalServerError, "Unexpected error")
}

// decodeBody decodes a JSON object into v. An empty body leaves v zeroed.
func decodeBody(r *http.Request, v interface{}) error {
	err := json.NewDecoder(r.Body).Decode(v)
	if err == nil || errors.Is(err, io.EOF) {
		return nil
	}
	return domain.WrapError(domain.ErrBadRequest, "Invalid request body", err)
}
