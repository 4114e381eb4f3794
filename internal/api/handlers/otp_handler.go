package handlers

import (
	"context"
	"net/http"
	"time"
)

// OTPService defines one-time password operations
type OTPService interface {
	Request(ctx context.Context, email, phone string) (time.Duration, error)
	Verify(ctx context.Context, email, code string) error
}

// OTPHandler handles patient email verification
type OTPHandler struct {
	service OTPService
}

// NewOTPHandler creates a new OTP handler
func NewOTPHandler(service OTPService) *OTPHandler {
	return &OTPHandler{service: service}
}

// RequestOTP handles POST /api/otp/request
func (h *OTPHandler) RequestOTP(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Email string `json:"email"`
		Phone string `json:"phone"`
	}
	if err := decodeJSON(r, &body); err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid request payload")
		return
	}

	ttl, err := h.service.Request(r.Context(), body.Email, body.Phone)
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}

	respondWithJSON(w, http.StatusAccepted, map[string]interface{}{
		"sent":               true,
		"expires_in_seconds": int(ttl.Seconds()),
	})
}

// VerifyOTP handles POST /api/otp/verify
func (h *OTPHandler) VerifyOTP(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Email string `json:"email"`
		Code  string `json:"code"`
	}
	if err := decodeJSON(r, &body); err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid request payload")
		return
	}
	if body.Email == "" || body.Code == "" {
		respondWithError(w, http.StatusBadRequest, "email and code are required")
		return
	}

	if err := h.service.Verify(r.Context(), body.Email, body.Code); err != nil {
		respondWithAppError(w, r, err)
		return
	}

	respondWithJSON(w, http.StatusOK, map[string]bool{"verified": true})
}
