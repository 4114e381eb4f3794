package handlers_test

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/sociodent/sociodent/backend/internal/api/handlers"
	"github.com/sociodent/sociodent/backend/internal/api/middleware"
	"github.com/sociodent/sociodent/backend/internal/application/services"
	"github.com/sociodent/sociodent/backend/internal/domain/entities"
	"github.com/sociodent/sociodent/backend/internal/domain/providers"
	apperrors "github.com/sociodent/sociodent/backend/pkg/errors"
)

const scheduleBody = `{"schedule":{"monday":{"available":true,"start_time":"09:00","end_time":"17:00","slot_duration":30}}}`

func asPrincipal(req *http.Request, subject, role string) *http.Request {
	return req.WithContext(middleware.WithPrincipal(req.Context(), &middleware.Principal{Subject: subject, Role: role}))
}

func TestDoctorHandler_Register(t *testing.T) {
	mockService := new(MockDoctorService)
	handler := handlers.NewDoctorHandler(mockService)

	mockService.On("Register", mock.Anything, mock.MatchedBy(func(r services.RegisterDoctorRequest) bool {
		return r.Name == "Dr. Iyer" && r.Area == "Whitefield"
	})).Return(&entities.Doctor{ID: "d1", Name: "Dr. Iyer", Status: entities.DoctorStatusPending}, nil)

	body := `{"name":"Dr. Iyer","email":"iyer@example.com","phone":"+919800000002","specialization":"Orthodontics","area":"Whitefield"}`
	req := httptest.NewRequest(http.MethodPost, "/api/doctors", bytes.NewBufferString(body))
	w := httptest.NewRecorder()
	handler.Register(w, req)

	assert.Equal(t, http.StatusCreated, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"pending"`)

	req = httptest.NewRequest(http.MethodPost, "/api/doctors", bytes.NewBufferString(`{"nickname":"x"}`))
	w = httptest.NewRecorder()
	handler.Register(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code, "unknown fields are rejected")
}

func TestDoctorHandler_GetDoctor_HidesUnapproved(t *testing.T) {
	mockService := new(MockDoctorService)
	handler := handlers.NewDoctorHandler(mockService)

	mockService.On("Get", mock.Anything, "d1").Return(approvedDoctor("d1", "Dr. Iyer"), nil)
	mockService.On("Get", mock.Anything, "d2").Return(&entities.Doctor{ID: "d2", Role: entities.RoleDoctor, Status: entities.DoctorStatusPending}, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/doctors/d1", nil)
	req.SetPathValue("id", "d1")
	w := httptest.NewRecorder()
	handler.GetDoctor(w, req)
	assert.Equal(t, http.StatusOK, w.Code)

	req = httptest.NewRequest(http.MethodGet, "/api/doctors/d2", nil)
	req.SetPathValue("id", "d2")
	w = httptest.NewRecorder()
	handler.GetDoctor(w, req)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestDoctorHandler_ApproveReject(t *testing.T) {
	mockService := new(MockDoctorService)
	handler := handlers.NewDoctorHandler(mockService)

	mockService.On("Approve", mock.Anything, "d1", "admin-7").Return(approvedDoctor("d1", "Dr. Iyer"), nil)
	mockService.On("Reject", mock.Anything, "d9", "admin-7").Return(nil, apperrors.NewDoctorNotFoundError("d9"))

	req := asPrincipal(httptest.NewRequest(http.MethodPost, "/api/admin/doctors/d1/approve", nil), "admin-7", middleware.RoleAdmin)
	req.SetPathValue("id", "d1")
	w := httptest.NewRecorder()
	handler.Approve(w, req)
	assert.Equal(t, http.StatusOK, w.Code)

	req = asPrincipal(httptest.NewRequest(http.MethodPost, "/api/admin/doctors/d9/reject", nil), "admin-7", middleware.RoleAdmin)
	req.SetPathValue("id", "d9")
	w = httptest.NewRecorder()
	handler.Reject(w, req)
	assert.Equal(t, http.StatusNotFound, w.Code)

	mockService.AssertExpectations(t)
}

func TestDoctorHandler_UpdateSchedule(t *testing.T) {
	tests := []struct {
		name       string
		subject    string
		role       string
		wantStatus int
		wantCall   bool
	}{
		{"doctor edits own schedule", "d1", middleware.RoleDoctor, http.StatusOK, true},
		{"admin edits any schedule", "admin-7", middleware.RoleAdmin, http.StatusOK, true},
		{"doctor edits another schedule", "d2", middleware.RoleDoctor, http.StatusForbidden, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockService := new(MockDoctorService)
			handler := handlers.NewDoctorHandler(mockService)
			if tt.wantCall {
				mockService.On("UpdateSchedule", mock.Anything, "d1", mock.MatchedBy(func(s entities.WeeklySchedule) bool {
					return s["monday"].Available && s["monday"].SlotDuration == 30
				}), tt.subject).Return(approvedDoctor("d1", "Dr. Iyer"), nil)
			}

			req := asPrincipal(httptest.NewRequest(http.MethodPut, "/api/doctors/d1/schedule", bytes.NewBufferString(scheduleBody)), tt.subject, tt.role)
			req.SetPathValue("id", "d1")
			w := httptest.NewRecorder()
			handler.UpdateSchedule(w, req)

			assert.Equal(t, tt.wantStatus, w.Code)
			mockService.AssertExpectations(t)
		})
	}

	t.Run("validation errors are 400", func(t *testing.T) {
		mockService := new(MockDoctorService)
		handler := handlers.NewDoctorHandler(mockService)
		mockService.On("UpdateSchedule", mock.Anything, "d1", mock.Anything, "d1").
			Return(nil, apperrors.NewValidationError("monday: start must be before end"))

		req := asPrincipal(httptest.NewRequest(http.MethodPut, "/api/doctors/d1/schedule", bytes.NewBufferString(scheduleBody)), "d1", middleware.RoleDoctor)
		req.SetPathValue("id", "d1")
		w := httptest.NewRecorder()
		handler.UpdateSchedule(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestDoctorHandler_Search(t *testing.T) {
	mockService := new(MockDoctorService)
	handler := handlers.NewDoctorHandler(mockService)

	mockService.On("Search", mock.Anything, providers.DoctorSearchParams{
		Query: "iyer",
		Area:  "Whitefield",
		Limit: 5,
	}).Return([]*entities.Doctor{approvedDoctor("d1", "Dr. Iyer")}, nil)
	mockService.On("Search", mock.Anything, providers.DoctorSearchParams{Query: "nobody"}).Return(nil, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/doctors/search?q=iyer&area=Whitefield&limit=5", nil)
	w := httptest.NewRecorder()
	handler.Search(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"count":1`)

	req = httptest.NewRequest(http.MethodGet, "/api/doctors/search?q=nobody", nil)
	w = httptest.NewRecorder()
	handler.Search(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"doctors":[]`)
}
