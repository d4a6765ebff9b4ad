package handler

import (
	"net/http"

	"github.com/go-otp-auth/internal/application/recovery"
)

// PasswordResetHandler serves the reset request and confirmation endpoints.
type PasswordResetHandler struct {
	svc recovery.Service
}

func NewPasswordResetHandler(svc recovery.Service) *PasswordResetHandler {
	return &PasswordResetHandler{svc: svc}
}

func (h *PasswordResetHandler) Request(w http.ResponseWriter, r *http.Request) {
	var req recovery.ResetRequest
	if err := decodeBody(r, &req); err != nil {
		httpError(w, err)
		return
	}
	if err := h.svc.RequestReset(r.Context(), req); err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, MessageEnvelope{Message: recovery.GenericMessage})
}

func (h *PasswordResetHandler) Confirm(w http.ResponseWriter, r *http.Request) {
	var req recovery.ConfirmRequest
	if err := decodeBody(r, &req); err != nil {
		httpError(w, err)
		return
	}
	if err := h.svc.CompleteReset(r.Context(), req); err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, OKEnvelope{OK: true})
}
