package services_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/sociodent/sociodent/backend/internal/application/services"
	"github.com/sociodent/sociodent/backend/internal/domain/entities"
	"github.com/sociodent/sociodent/backend/internal/domain/providers"
	"github.com/sociodent/sociodent/backend/internal/domain/repositories"
	apperrors "github.com/sociodent/sociodent/backend/pkg/errors"
)

type stubVerifier struct {
	verified bool
	err      error
	asked    []string
}

func (s *stubVerifier) IsVerified(_ context.Context, email string) (bool, error) {
	s.asked = append(s.asked, email)
	return s.verified, s.err
}

func validBooking() services.BookingRequest {
	return services.BookingRequest{
		PatientName:      "Asha Rao",
		PatientEmail:     "Asha@Example.com ",
		PatientPhone:     "+919800000001",
		ConsultationType: "home",
		Date:             monday,
		Time:             "10:30",
		Area:             "Koramangala",
		Symptoms:         "bleeding gums",
	}
}

func TestBookingService_Book(t *testing.T) {
	t.Run("stores pending appointment without auto-assign", func(t *testing.T) {
		repo := new(MockAppointmentRepository)
		events := new(MockEventBus)
		svc := services.NewBookingService(repo, nil, nil, events, services.BookingOptions{})

		repo.On("Create", mock.Anything, mock.MatchedBy(func(a *entities.Appointment) bool {
			return a.Status == entities.AppointmentStatusPending &&
				a.Version == 1 &&
				a.PatientEmail == "asha@example.com" &&
				a.Time == entities.MustClockTime("10:30") &&
				a.ConsultationType == entities.ConsultationHome &&
				a.ID != ""
		})).Return(nil)
		events.On("Publish", mock.Anything, providers.EventChannelAppointments, eventOfType(entities.AppointmentEventCreated)).Return(nil)

		result, err := svc.Book(context.Background(), validBooking())
		require.NoError(t, err)
		assert.Nil(t, result.Assignment)
		assert.Equal(t, entities.AppointmentStatusPending, result.Appointment.Status)
		repo.AssertExpectations(t)
		events.AssertExpectations(t)
	})

	tests := []struct {
		name   string
		mutate func(r *services.BookingRequest)
	}{
		{"bad consultation type", func(r *services.BookingRequest) { r.ConsultationType = "phone" }},
		{"bad time", func(r *services.BookingRequest) { r.Time = "10.30" }},
		{"bad date", func(r *services.BookingRequest) { r.Date = "2030-13-01" }},
		{"past date", func(r *services.BookingRequest) { r.Date = "2001-01-01" }},
		{"missing name", func(r *services.BookingRequest) { r.PatientName = " " }},
		{"home without area", func(r *services.BookingRequest) { r.Area = "" }},
		{"no contact", func(r *services.BookingRequest) {
			r.PatientEmail = ""
			r.PatientPhone = ""
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := new(MockAppointmentRepository)
			svc := services.NewBookingService(repo, nil, nil, nil, services.BookingOptions{})
			req := validBooking()
			tt.mutate(&req)

			_, err := svc.Book(context.Background(), req)
			assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeValidation), "got %v", err)
			repo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
		})
	}

	t.Run("requires verified email when otp is on", func(t *testing.T) {
		repo := new(MockAppointmentRepository)
		verifier := &stubVerifier{}
		svc := services.NewBookingService(repo, nil, verifier, nil, services.BookingOptions{RequireOTP: true})

		_, err := svc.Book(context.Background(), validBooking())
		assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeUnauthorized))
		assert.Equal(t, []string{"asha@example.com"}, verifier.asked)
		repo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
	})

	t.Run("otp lookup failure is internal", func(t *testing.T) {
		svc := services.NewBookingService(new(MockAppointmentRepository), nil, &stubVerifier{err: errors.New("redis down")}, nil, services.BookingOptions{RequireOTP: true})
		_, err := svc.Book(context.Background(), validBooking())
		assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeInternal))
	})

	t.Run("auto-assigns after booking", func(t *testing.T) {
		f := newAssignmentFixture(services.AssignmentPolicy{})
		svc := services.NewBookingService(f.appointments, f.service, &stubVerifier{verified: true}, f.events, services.BookingOptions{
			RequireOTP: true,
			AutoAssign: true,
		})

		f.appointments.On("Create", mock.Anything, mock.Anything).Return(nil)
		f.doctors.On("List", mock.Anything, approvedFilter).Return([]*entities.Doctor{
			newDoctor("d1", "periodontist", "Jayanagar"),
			newDoctor("d2", "", "Koramangala"),
			newDoctor("d3", "periodontist", "koramangala"),
		}, nil)
		f.appointments.On("CountConfirmedByDoctor", mock.Anything, monday).Return(map[string]int{}, nil)
		f.appointments.On("Save", mock.Anything, mock.Anything).Return(nil)
		f.events.On("Publish", mock.Anything, providers.EventChannelAppointments, mock.Anything).Return(nil)

		result, err := svc.Book(context.Background(), validBooking())
		require.NoError(t, err)
		require.NotNil(t, result.Assignment)
		assert.Equal(t, "d3", result.Assignment.Doctor.ID)
		assert.Equal(t, 15.0, result.Assignment.Score.Total)
		assert.Equal(t, entities.AppointmentStatusConfirmed, result.Appointment.Status)
		f.events.AssertNumberOfCalls(t, "Publish", 2)
	})

	t.Run("failed auto-assign keeps the booking", func(t *testing.T) {
		f := newAssignmentFixture(services.AssignmentPolicy{})
		svc := services.NewBookingService(f.appointments, f.service, nil, nil, services.BookingOptions{AutoAssign: true})

		f.appointments.On("Create", mock.Anything, mock.Anything).Return(nil)
		f.doctors.On("List", mock.Anything, approvedFilter).Return(nil, errors.New("db down"))
		f.appointments.On("GetByID", mock.Anything, mock.Anything).Return(nil, apperrors.NewNotFoundError("gone"))

		result, err := svc.Book(context.Background(), validBooking())
		require.NoError(t, err)
		assert.Nil(t, result.Assignment)
		assert.Equal(t, entities.AppointmentStatusPending, result.Appointment.Status)
	})
}

func TestBookingService_Cancel(t *testing.T) {
	t.Run("cancels pending appointment", func(t *testing.T) {
		repo := new(MockAppointmentRepository)
		events := new(MockEventBus)
		svc := services.NewBookingService(repo, nil, nil, events, services.BookingOptions{})

		repo.On("GetByID", mock.Anything, "a1").Return(newAppointment("a1"), nil)
		repo.On("Save", mock.Anything, mock.MatchedBy(func(a *entities.Appointment) bool {
			return a.Status == entities.AppointmentStatusCancelled
		})).Return(nil)
		events.On("Publish", mock.Anything, providers.EventChannelAppointments, eventOfType(entities.AppointmentEventCancelled)).Return(nil)

		appt, err := svc.Cancel(context.Background(), "a1")
		require.NoError(t, err)
		assert.Equal(t, entities.AppointmentStatusCancelled, appt.Status)
		repo.AssertExpectations(t)
		events.AssertExpectations(t)
	})

	t.Run("confirmed appointment cannot be cancelled", func(t *testing.T) {
		repo := new(MockAppointmentRepository)
		svc := services.NewBookingService(repo, nil, nil, nil, services.BookingOptions{})
		appt := newAppointment("a1")
		appt.Status = entities.AppointmentStatusConfirmed
		repo.On("GetByID", mock.Anything, "a1").Return(appt, nil)

		_, err := svc.Cancel(context.Background(), "a1")
		assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeInvalidState))
		repo.AssertNotCalled(t, "Save", mock.Anything, mock.Anything)
	})

	t.Run("concurrent assignment wins", func(t *testing.T) {
		repo := new(MockAppointmentRepository)
		svc := services.NewBookingService(repo, nil, nil, nil, services.BookingOptions{})
		repo.On("GetByID", mock.Anything, "a1").Return(newAppointment("a1"), nil)
		repo.On("Save", mock.Anything, mock.Anything).Return(apperrors.NewStaleWriteError("changed"))

		_, err := svc.Cancel(context.Background(), "a1")
		assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeStaleWrite))
	})
}

func TestBookingService_List(t *testing.T) {
	repo := new(MockAppointmentRepository)
	svc := services.NewBookingService(repo, nil, nil, nil, services.BookingOptions{})

	_, err := svc.List(context.Background(), repositories.AppointmentFilter{Status: "archived"})
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeValidation))

	repo.On("List", mock.Anything, repositories.AppointmentFilter{Status: entities.AppointmentStatusPending, Limit: 50}).
		Return([]*entities.Appointment{newAppointment("a1")}, nil)
	got, err := svc.List(context.Background(), repositories.AppointmentFilter{Status: entities.AppointmentStatusPending})
	require.NoError(t, err)
	assert.Len(t, got, 1)
}
