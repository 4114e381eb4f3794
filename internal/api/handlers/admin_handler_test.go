package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/sociodent/sociodent/backend/internal/api/handlers"
	"github.com/sociodent/sociodent/backend/internal/api/loaders"
	"github.com/sociodent/sociodent/backend/internal/api/middleware"
	"github.com/sociodent/sociodent/backend/internal/application/services"
	"github.com/sociodent/sociodent/backend/internal/domain/entities"
	apperrors "github.com/sociodent/sociodent/backend/pkg/errors"
)

type stubDoctorReader struct {
	doctors map[string]*entities.Doctor
	calls   int
}

func (s *stubDoctorReader) GetByIDs(ctx context.Context, ids []string) ([]*entities.Doctor, error) {
	s.calls++
	var out []*entities.Doctor
	for _, id := range ids {
		if d, ok := s.doctors[id]; ok {
			out = append(out, d)
		}
	}
	return out, nil
}

func adminRequest(method, target, id string, body []byte) *http.Request {
	var req *http.Request
	if body != nil {
		req = httptest.NewRequest(method, target, bytes.NewBuffer(body))
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	req.SetPathValue("id", id)
	ctx := middleware.WithPrincipal(req.Context(), &middleware.Principal{Subject: "admin-7", Role: middleware.RoleAdmin})
	return req.WithContext(ctx)
}

func TestAdminHandler_Candidates(t *testing.T) {
	mockService := new(MockAssignmentService)
	handler := handlers.NewAdminHandler(mockService)

	ranked := []entities.ScoredDoctor{
		{Doctor: approvedDoctor("d1", "Dr. Iyer"), Score: entities.MatchScore{Eligible: true, TimeAvailable: true, AreaBonus: 10, Total: 10}},
		{Doctor: approvedDoctor("d2", "Dr. Khan"), Score: entities.MatchScore{Eligible: true, TimeAvailable: true, Total: 0}},
	}
	mockService.On("Candidates", mock.Anything, "a1").Return(ranked, nil)
	mockService.On("Candidates", mock.Anything, "a2").Return(nil, nil)

	w := httptest.NewRecorder()
	handler.Candidates(w, adminRequest(http.MethodGet, "/api/admin/appointments/a1/candidates", "a1", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Candidates []entities.ScoredDoctor `json:"candidates"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.Candidates, 2)
	assert.Equal(t, "d1", resp.Candidates[0].Doctor.ID)
	assert.Equal(t, 10.0, resp.Candidates[0].Score.AreaBonus)

	w = httptest.NewRecorder()
	handler.Candidates(w, adminRequest(http.MethodGet, "/api/admin/appointments/a2/candidates", "a2", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"candidates":[]`)
}

func TestAdminHandler_AssignBest(t *testing.T) {
	mockService := new(MockAssignmentService)
	handler := handlers.NewAdminHandler(mockService)

	mockService.On("AssignBest", mock.Anything, "a1").Return(&services.AssignmentResult{
		Outcome:     services.OutcomeNoCandidates,
		Appointment: &entities.Appointment{ID: "a1", Status: entities.AppointmentStatusPending},
	}, nil)
	mockService.On("AssignBest", mock.Anything, "a2").Return(nil, apperrors.NewStaleWriteError("appointment a2 changed"))

	w := httptest.NewRecorder()
	handler.AssignBest(w, adminRequest(http.MethodPost, "/api/admin/appointments/a1/assign", "a1", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"outcome":"no_candidates"`)

	w = httptest.NewRecorder()
	handler.AssignBest(w, adminRequest(http.MethodPost, "/api/admin/appointments/a2/assign", "a2", nil))
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestAdminHandler_AssignManually(t *testing.T) {
	t.Run("passes actor and force", func(t *testing.T) {
		mockService := new(MockAssignmentService)
		handler := handlers.NewAdminHandler(mockService)

		mockService.On("AssignManually", mock.Anything, "a1", services.ManualAssignment{
			DoctorID: "d2",
			Actor:    "admin-7",
			Force:    true,
		}).Return(&services.AssignmentResult{Outcome: services.OutcomeAssigned, Forced: true}, nil)

		body := []byte(`{"doctor_id":"d2","force":true}`)
		w := httptest.NewRecorder()
		handler.AssignManually(w, adminRequest(http.MethodPost, "/api/admin/appointments/a1/assign-manual", "a1", body))

		assert.Equal(t, http.StatusOK, w.Code)
		mockService.AssertExpectations(t)
	})

	t.Run("requires doctor_id", func(t *testing.T) {
		mockService := new(MockAssignmentService)
		handler := handlers.NewAdminHandler(mockService)

		w := httptest.NewRecorder()
		handler.AssignManually(w, adminRequest(http.MethodPost, "/api/admin/appointments/a1/assign-manual", "a1", []byte(`{}`)))
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("maps matcher errors", func(t *testing.T) {
		tests := []struct {
			err    error
			status int
		}{
			{apperrors.NewDoctorNotFoundError("d9"), http.StatusNotFound},
			{apperrors.NewDoctorNotApprovedError("d3", "pending"), http.StatusUnprocessableEntity},
			{apperrors.NewScheduleConflictError("outside working hours"), http.StatusUnprocessableEntity},
			{apperrors.NewInvalidStateError("appointment is cancelled"), http.StatusConflict},
		}
		for _, tt := range tests {
			mockService := new(MockAssignmentService)
			handler := handlers.NewAdminHandler(mockService)
			mockService.On("AssignManually", mock.Anything, "a1", mock.Anything).Return(nil, tt.err)

			w := httptest.NewRecorder()
			handler.AssignManually(w, adminRequest(http.MethodPost, "/x", "a1", []byte(`{"doctor_id":"d9"}`)))
			assert.Equal(t, tt.status, w.Code, tt.err.Error())
		}
	})
}

func TestAdminHandler_Reassign(t *testing.T) {
	mockService := new(MockAssignmentService)
	handler := handlers.NewAdminHandler(mockService)

	mockService.On("Reassign", mock.Anything, "a1", services.ManualAssignment{
		DoctorID: "d2",
		Actor:    "admin-7",
		Reason:   "patient request",
	}).Return(&services.AssignmentResult{Outcome: services.OutcomeAssigned}, nil)

	body := []byte(`{"doctor_id":"d2","reason":"patient request"}`)
	w := httptest.NewRecorder()
	handler.Reassign(w, adminRequest(http.MethodPost, "/api/admin/appointments/a1/reassign", "a1", body))

	assert.Equal(t, http.StatusOK, w.Code)
	mockService.AssertExpectations(t)
}

func TestAdminHandler_AuditTrail(t *testing.T) {
	mockService := new(MockAssignmentService)
	handler := handlers.NewAdminHandler(mockService)

	mockService.On("AuditTrail", mock.Anything, "a1").Return([]*entities.AuditEntry{
		{ID: "e1", AppointmentID: "a1", Action: entities.AuditActionReassigned, PreviousDoctorID: "d1", NewDoctorID: "d2", Actor: "admin-7"},
		{ID: "e2", AppointmentID: "a1", Action: entities.AuditActionReassigned, PreviousDoctorID: "d2", NewDoctorID: "d1", Actor: "admin-7"},
	}, nil)

	reader := &stubDoctorReader{doctors: map[string]*entities.Doctor{
		"d1": approvedDoctor("d1", "Dr. Iyer"),
		"d2": approvedDoctor("d2", "Dr. Khan"),
	}}

	req := adminRequest(http.MethodGet, "/api/admin/appointments/a1/audit", "a1", nil)
	req = req.WithContext(loaders.WithLoaders(req.Context(), loaders.NewLoaders(reader)))
	w := httptest.NewRecorder()
	handler.AuditTrail(w, req)

	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Entries []struct {
			ID                 string `json:"id"`
			PreviousDoctorName string `json:"previous_doctor_name"`
			NewDoctorName      string `json:"new_doctor_name"`
		} `json:"entries"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.Entries, 2)
	assert.Equal(t, "Dr. Iyer", resp.Entries[0].PreviousDoctorName)
	assert.Equal(t, "Dr. Khan", resp.Entries[0].NewDoctorName)
	assert.Equal(t, 1, reader.calls, "names resolved in one batch")
}
