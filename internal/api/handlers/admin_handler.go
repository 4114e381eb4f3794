package handlers

import (
	"context"
	"net/http"

	"github.com/sociodent/sociodent/backend/internal/api/loaders"
	"github.com/sociodent/sociodent/backend/internal/api/middleware"
	"github.com/sociodent/sociodent/backend/internal/application/services"
	"github.com/sociodent/sociodent/backend/internal/domain/entities"
)

// AssignmentService defines the admin assignment operations
type AssignmentService interface {
	Candidates(ctx context.Context, appointmentID string) ([]entities.ScoredDoctor, error)
	AssignBest(ctx context.Context, appointmentID string) (*services.AssignmentResult, error)
	AssignManually(ctx context.Context, appointmentID string, req services.ManualAssignment) (*services.AssignmentResult, error)
	Reassign(ctx context.Context, appointmentID string, req services.ManualAssignment) (*services.AssignmentResult, error)
	AuditTrail(ctx context.Context, appointmentID string) ([]*entities.AuditEntry, error)
}

// AdminHandler handles the admin assignment API
type AdminHandler struct {
	service AssignmentService
}

// NewAdminHandler creates a new admin handler
func NewAdminHandler(service AssignmentService) *AdminHandler {
	return &AdminHandler{service: service}
}

type manualAssignmentRequest struct {
	DoctorID string `json:"doctor_id"`
	Reason   string `json:"reason"`
	Force    bool   `json:"force"`
}

// auditEntryView is an audit entry with doctor display names
type auditEntryView struct {
	*entities.AuditEntry
	PreviousDoctorName string `json:"previous_doctor_name,omitempty"`
	NewDoctorName      string `json:"new_doctor_name,omitempty"`
}

// Candidates handles GET /api/admin/appointments/{id}/candidates
func (h *AdminHandler) Candidates(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		respondWithError(w, http.StatusBadRequest, "appointment ID is required")
		return
	}

	candidates, err := h.service.Candidates(r.Context(), id)
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}
	if candidates == nil {
		candidates = []entities.ScoredDoctor{}
	}

	respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"appointment_id": id,
		"candidates":     candidates,
	})
}

// AssignBest handles POST /api/admin/appointments/{id}/assign
func (h *AdminHandler) AssignBest(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		respondWithError(w, http.StatusBadRequest, "appointment ID is required")
		return
	}

	result, err := h.service.AssignBest(r.Context(), id)
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}

	respondWithJSON(w, http.StatusOK, result)
}

// AssignManually handles POST /api/admin/appointments/{id}/assign-manual
func (h *AdminHandler) AssignManually(w http.ResponseWriter, r *http.Request) {
	h.manual(w, r, h.service.AssignManually)
}

// Reassign handles POST /api/admin/appointments/{id}/reassign
func (h *AdminHandler) Reassign(w http.ResponseWriter, r *http.Request) {
	h.manual(w, r, h.service.Reassign)
}

func (h *AdminHandler) manual(
	w http.ResponseWriter,
	r *http.Request,
	op func(context.Context, string, services.ManualAssignment) (*services.AssignmentResult, error),
) {
	id := r.PathValue("id")
	if id == "" {
		respondWithError(w, http.StatusBadRequest, "appointment ID is required")
		return
	}

	var body manualAssignmentRequest
	if err := decodeJSON(r, &body); err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid request payload")
		return
	}
	if body.DoctorID == "" {
		respondWithError(w, http.StatusBadRequest, "doctor_id is required")
		return
	}

	result, err := op(r.Context(), id, services.ManualAssignment{
		DoctorID: body.DoctorID,
		Actor:    actorFrom(r),
		Reason:   body.Reason,
		Force:    body.Force,
	})
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}

	respondWithJSON(w, http.StatusOK, result)
}

// AuditTrail handles GET /api/admin/appointments/{id}/audit
func (h *AdminHandler) AuditTrail(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		respondWithError(w, http.StatusBadRequest, "appointment ID is required")
		return
	}

	entries, err := h.service.AuditTrail(r.Context(), id)
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}

	ids := make([]string, 0, len(entries)*2)
	for _, e := range entries {
		if e.PreviousDoctorID != "" {
			ids = append(ids, e.PreviousDoctorID)
		}
		if e.NewDoctorID != "" {
			ids = append(ids, e.NewDoctorID)
		}
	}
	names := loaders.DoctorNames(r.Context(), ids)

	views := make([]auditEntryView, 0, len(entries))
	for _, e := range entries {
		views = append(views, auditEntryView{
			AuditEntry:         e,
			PreviousDoctorName: names[e.PreviousDoctorID],
			NewDoctorName:      names[e.NewDoctorID],
		})
	}

	respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"appointment_id": id,
		"entries":        views,
	})
}

func actorFrom(r *http.Request) string {
	if p, ok := middleware.PrincipalFromContext(r.Context()); ok {
		return p.Subject
	}
	return "unknown"
}
