package handlers

import (
	"context"
	"net/http"

	"github.com/sociodent/sociodent/backend/internal/api/middleware"
	"github.com/sociodent/sociodent/backend/internal/application/services"
	"github.com/sociodent/sociodent/backend/internal/domain/entities"
	"github.com/sociodent/sociodent/backend/internal/domain/providers"
	"github.com/sociodent/sociodent/backend/internal/domain/repositories"
)

// DoctorService defines the doctor pool operations
type DoctorService interface {
	Register(ctx context.Context, req services.RegisterDoctorRequest) (*entities.Doctor, error)
	Get(ctx context.Context, id string) (*entities.Doctor, error)
	List(ctx context.Context, filter repositories.DoctorFilter) ([]*entities.Doctor, error)
	Approve(ctx context.Context, id, actor string) (*entities.Doctor, error)
	Reject(ctx context.Context, id, actor string) (*entities.Doctor, error)
	UpdateSchedule(ctx context.Context, id string, schedule entities.WeeklySchedule, actor string) (*entities.Doctor, error)
	Search(ctx context.Context, params providers.DoctorSearchParams) ([]*entities.Doctor, error)
}

// DoctorHandler handles doctor registration, approval and directory requests
type DoctorHandler struct {
	service DoctorService
}

// NewDoctorHandler creates a new doctor handler
func NewDoctorHandler(service DoctorService) *DoctorHandler {
	return &DoctorHandler{service: service}
}

// Register handles POST /api/doctors
func (h *DoctorHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req services.RegisterDoctorRequest
	if err := decodeJSON(r, &req); err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid request payload")
		return
	}

	doctor, err := h.service.Register(r.Context(), req)
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}

	respondWithJSON(w, http.StatusCreated, doctor)
}

// GetDoctor handles GET /api/doctors/{id}
func (h *DoctorHandler) GetDoctor(w http.ResponseWriter, r *http.Request) {
	doctor, err := h.service.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}
	if !doctor.IsApproved() {
		if p, ok := middleware.PrincipalFromContext(r.Context()); !ok || p.Role != middleware.RoleAdmin {
			respondWithError(w, http.StatusNotFound, "doctor not found")
			return
		}
	}

	respondWithJSON(w, http.StatusOK, doctor)
}

// ListDoctors handles GET /api/admin/doctors?status=&specialization=&area=
func (h *DoctorHandler) ListDoctors(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	doctors, err := h.service.List(r.Context(), repositories.DoctorFilter{
		Status:         entities.DoctorStatus(query.Get("status")),
		Specialization: query.Get("specialization"),
		Area:           query.Get("area"),
	})
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}

	respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"doctors": doctors,
		"count":   len(doctors),
	})
}

// Approve handles POST /api/admin/doctors/{id}/approve
func (h *DoctorHandler) Approve(w http.ResponseWriter, r *http.Request) {
	doctor, err := h.service.Approve(r.Context(), r.PathValue("id"), actorFrom(r))
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, doctor)
}

// Reject handles POST /api/admin/doctors/{id}/reject
func (h *DoctorHandler) Reject(w http.ResponseWriter, r *http.Request) {
	doctor, err := h.service.Reject(r.Context(), r.PathValue("id"), actorFrom(r))
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, doctor)
}

// UpdateSchedule handles PUT /api/doctors/{id}/schedule.
// Doctors may only change their own schedule; admins may change any.
func (h *DoctorHandler) UpdateSchedule(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		respondWithError(w, http.StatusBadRequest, "doctor ID is required")
		return
	}

	p, ok := middleware.PrincipalFromContext(r.Context())
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "missing bearer token")
		return
	}
	if p.Role != middleware.RoleAdmin && p.Subject != id {
		respondWithError(w, http.StatusForbidden, "cannot change another doctor's schedule")
		return
	}

	var body struct {
		Schedule entities.WeeklySchedule `json:"schedule"`
	}
	if err := decodeJSON(r, &body); err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid request payload")
		return
	}

	doctor, err := h.service.UpdateSchedule(r.Context(), id, body.Schedule, p.Subject)
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}

	respondWithJSON(w, http.StatusOK, doctor)
}

// Search handles GET /api/doctors/search?q=&specialization=&area=&limit=&offset=
func (h *DoctorHandler) Search(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	params := providers.DoctorSearchParams{
		Query:          query.Get("q"),
		Specialization: query.Get("specialization"),
		Area:           query.Get("area"),
	}

	var err error
	if params.Limit, err = intParam(query.Get("limit")); err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid limit")
		return
	}
	if params.Offset, err = intParam(query.Get("offset")); err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid offset")
		return
	}

	doctors, err := h.service.Search(r.Context(), params)
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}
	if doctors == nil {
		doctors = []*entities.Doctor{}
	}

	respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"doctors": doctors,
		"count":   len(doctors),
	})
}
