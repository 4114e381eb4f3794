package handlers

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/sociodent/sociodent/backend/internal/api/middleware"
	"github.com/sociodent/sociodent/backend/internal/application/services"
	"github.com/sociodent/sociodent/backend/internal/domain/entities"
	"github.com/sociodent/sociodent/backend/internal/domain/repositories"
	"github.com/sociodent/sociodent/backend/internal/infrastructure/observability"
)

// AppointmentService defines the interface for patient appointment operations
type AppointmentService interface {
	Book(ctx context.Context, req services.BookingRequest) (*services.BookingResult, error)
	Get(ctx context.Context, id string) (*entities.Appointment, error)
	List(ctx context.Context, filter repositories.AppointmentFilter) ([]*entities.Appointment, error)
	Cancel(ctx context.Context, id string) (*entities.Appointment, error)
}

// TokenIssuer signs bearer tokens
type TokenIssuer interface {
	IssueToken(subject, role string, ttl time.Duration) (string, error)
}

// AppointmentHandler handles appointment requests
type AppointmentHandler struct {
	service  AppointmentService
	tokens   TokenIssuer
	tokenTTL time.Duration
}

// NewAppointmentHandler creates a new appointment handler. tokens may be nil,
// in which case bookings are returned without an access token.
func NewAppointmentHandler(service AppointmentService, tokens TokenIssuer, tokenTTL time.Duration) *AppointmentHandler {
	return &AppointmentHandler{
		service:  service,
		tokens:   tokens,
		tokenTTL: tokenTTL,
	}
}

type bookingResponse struct {
	*services.BookingResult
	AccessToken string `json:"access_token,omitempty"`
}

// BookAppointment handles POST /api/appointments
func (h *AppointmentHandler) BookAppointment(w http.ResponseWriter, r *http.Request) {
	var req services.BookingRequest
	if err := decodeJSON(r, &req); err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid request payload")
		return
	}

	result, err := h.service.Book(r.Context(), req)
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}

	resp := bookingResponse{BookingResult: result}
	if h.tokens != nil && result.Appointment != nil {
		token, err := h.tokens.IssueToken(result.Appointment.ID, middleware.RolePatient, h.tokenTTL)
		if err != nil {
			observability.LoggerFromContext(r.Context()).Warn().Err(err).
				Str("appointment_id", result.Appointment.ID).
				Msg("failed to issue patient token")
		} else {
			resp.AccessToken = token
		}
	}

	respondWithJSON(w, http.StatusCreated, resp)
}

// GetAppointment handles GET /api/appointments/{id}.
// Patients see only the appointment their token was issued for and doctors
// only appointments assigned to them.
func (h *AppointmentHandler) GetAppointment(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		respondWithError(w, http.StatusBadRequest, "appointment ID is required")
		return
	}

	p, ok := middleware.PrincipalFromContext(r.Context())
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "missing bearer token")
		return
	}
	if p.Role == middleware.RolePatient && p.Subject != id {
		respondWithError(w, http.StatusForbidden, "cannot view another appointment")
		return
	}

	appointment, err := h.service.Get(r.Context(), id)
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}
	if p.Role == middleware.RoleDoctor && appointment.DoctorID != p.Subject {
		respondWithError(w, http.StatusForbidden, "appointment is not assigned to you")
		return
	}

	respondWithJSON(w, http.StatusOK, appointment)
}

// ListAppointments handles GET /api/appointments?status=&doctor_id=&patient_id=&date=&limit=&offset=
func (h *AppointmentHandler) ListAppointments(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	filter := repositories.AppointmentFilter{
		Status:    entities.AppointmentStatus(query.Get("status")),
		DoctorID:  query.Get("doctor_id"),
		PatientID: query.Get("patient_id"),
		Date:      query.Get("date"),
	}

	var err error
	if filter.Limit, err = intParam(query.Get("limit")); err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid limit")
		return
	}
	if filter.Offset, err = intParam(query.Get("offset")); err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid offset")
		return
	}

	appointments, err := h.service.List(r.Context(), filter)
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}

	respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"appointments": appointments,
		"count":        len(appointments),
	})
}

// CancelAppointment handles POST /api/appointments/{id}/cancel.
// Only the booking patient or an admin may cancel.
func (h *AppointmentHandler) CancelAppointment(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		respondWithError(w, http.StatusBadRequest, "appointment ID is required")
		return
	}

	p, ok := middleware.PrincipalFromContext(r.Context())
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "missing bearer token")
		return
	}
	if p.Role != middleware.RoleAdmin && (p.Role != middleware.RolePatient || p.Subject != id) {
		respondWithError(w, http.StatusForbidden, "cannot cancel this appointment")
		return
	}

	appointment, err := h.service.Cancel(r.Context(), id)
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}

	respondWithJSON(w, http.StatusOK, appointment)
}

// intParam parses an optional non-negative integer query value
func intParam(raw string) (int, error) {
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, strconv.ErrSyntax
	}
	return n, nil
}
