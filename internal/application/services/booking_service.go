package services

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/sociodent/sociodent/backend/internal/domain/entities"
	"github.com/sociodent/sociodent/backend/internal/domain/providers"
	"github.com/sociodent/sociodent/backend/internal/domain/repositories"
	"github.com/sociodent/sociodent/backend/internal/infrastructure/observability"
	apperrors "github.com/sociodent/sociodent/backend/pkg/errors"
)

// OTPVerifier reports whether a patient email passed OTP verification
type OTPVerifier interface {
	IsVerified(ctx context.Context, email string) (bool, error)
}

// BookingRequest is a patient's appointment request
type BookingRequest struct {
	PatientID               string `json:"patient_id"`
	PatientName             string `json:"patient_name"`
	PatientEmail            string `json:"patient_email"`
	PatientPhone            string `json:"patient_phone"`
	ConsultationType        string `json:"consultation_type"`
	Date                    string `json:"date"`
	Time                    string `json:"time"`
	Area                    string `json:"area"`
	Symptoms                string `json:"symptoms"`
	PreferredSpecialization string `json:"preferred_specialization"`
}

// BookingResult is the stored appointment plus the auto-assignment attempt, if any
type BookingResult struct {
	Appointment *entities.Appointment `json:"appointment"`
	Assignment  *AssignmentResult     `json:"assignment,omitempty"`
}

// BookingOptions toggles booking behaviour
type BookingOptions struct {
	RequireOTP bool
	AutoAssign bool
}

// BookingService handles appointment booking logic
type BookingService struct {
	repo        repositories.AppointmentRepository
	assignments *AssignmentService
	otp         OTPVerifier
	events      providers.EventBus
	opts        BookingOptions
	now         func() time.Time
}

// NewBookingService creates a new booking service. otp and events may be nil.
func NewBookingService(
	repo repositories.AppointmentRepository,
	assignments *AssignmentService,
	otp OTPVerifier,
	events providers.EventBus,
	opts BookingOptions,
) *BookingService {
	return &BookingService{
		repo:        repo,
		assignments: assignments,
		otp:         otp,
		events:      events,
		opts:        opts,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// Book validates and stores a pending appointment, then optionally tries to
// assign a doctor. A failed assignment attempt does not fail the booking.
func (s *BookingService) Book(ctx context.Context, req BookingRequest) (*BookingResult, error) {
	appointment, err := s.buildAppointment(req)
	if err != nil {
		return nil, err
	}

	if s.opts.RequireOTP {
		if err := s.checkOTP(ctx, appointment.PatientEmail); err != nil {
			return nil, err
		}
	}

	if err := s.repo.Create(ctx, appointment); err != nil {
		return nil, err
	}

	logger := observability.LoggerFromContext(ctx)
	logger.Info().
		Str("appointment_id", appointment.ID).
		Str("consultation_type", string(appointment.ConsultationType)).
		Str("date", appointment.Date).
		Msg("appointment booked")

	s.publish(ctx, entities.AppointmentEventCreated, appointment)

	result := &BookingResult{Appointment: appointment}
	if !s.opts.AutoAssign || s.assignments == nil {
		return result, nil
	}

	assignment, err := s.assignments.AssignAppointment(ctx, appointment)
	if err != nil {
		logger.Warn().Err(err).Str("appointment_id", appointment.ID).Msg("auto-assignment on booking failed, left pending")
		if fresh, getErr := s.repo.GetByID(ctx, appointment.ID); getErr == nil {
			result.Appointment = fresh
		}
		return result, nil
	}
	result.Assignment = assignment
	result.Appointment = assignment.Appointment
	return result, nil
}

func (s *BookingService) buildAppointment(req BookingRequest) (*entities.Appointment, error) {
	consultationType, err := entities.ParseConsultationType(req.ConsultationType)
	if err != nil {
		return nil, apperrors.NewValidationError(err.Error())
	}

	clock, err := entities.ParseClockTime(req.Time)
	if err != nil {
		return nil, apperrors.NewValidationError(err.Error())
	}

	now := s.now()
	appointment := &entities.Appointment{
		ID:                      uuid.New().String(),
		PatientID:               strings.TrimSpace(req.PatientID),
		PatientName:             strings.TrimSpace(req.PatientName),
		PatientEmail:            strings.ToLower(strings.TrimSpace(req.PatientEmail)),
		PatientPhone:            strings.TrimSpace(req.PatientPhone),
		ConsultationType:        consultationType,
		Date:                    strings.TrimSpace(req.Date),
		Time:                    clock,
		Area:                    strings.TrimSpace(req.Area),
		Symptoms:                strings.TrimSpace(req.Symptoms),
		PreferredSpecialization: strings.TrimSpace(req.PreferredSpecialization),
		Status:                  entities.AppointmentStatusPending,
		Version:                 1,
		CreatedAt:               now,
		UpdatedAt:               now,
	}

	if err := appointment.Validate(); err != nil {
		return nil, apperrors.NewValidationError(err.Error())
	}

	date, _ := entities.ParseDate(appointment.Date)
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	if date.Before(today) {
		return nil, apperrors.NewValidationError("cannot book appointment in the past")
	}

	return appointment, nil
}

func (s *BookingService) checkOTP(ctx context.Context, email string) error {
	if email == "" {
		return apperrors.NewValidationError("patient email is required for OTP verification")
	}
	if s.otp == nil {
		return apperrors.NewInternalError("otp verification is required but not configured", nil)
	}
	ok, err := s.otp.IsVerified(ctx, email)
	if err != nil {
		return apperrors.NewInternalError("failed to check otp verification", err)
	}
	if !ok {
		return apperrors.NewUnauthorizedError("email " + email + " has not been verified")
	}
	return nil
}

// Get returns an appointment by ID
func (s *BookingService) Get(ctx context.Context, id string) (*entities.Appointment, error) {
	return s.repo.GetByID(ctx, id)
}

// List returns appointments matching filter
func (s *BookingService) List(ctx context.Context, filter repositories.AppointmentFilter) ([]*entities.Appointment, error) {
	if filter.Status != "" {
		switch filter.Status {
		case entities.AppointmentStatusPending, entities.AppointmentStatusConfirmed, entities.AppointmentStatusCancelled:
		default:
			return nil, apperrors.NewValidationError("unknown status " + string(filter.Status))
		}
	}
	if filter.Limit <= 0 || filter.Limit > 200 {
		filter.Limit = 50
	}
	return s.repo.List(ctx, filter)
}

// Cancel moves a pending appointment to cancelled
func (s *BookingService) Cancel(ctx context.Context, id string) (*entities.Appointment, error) {
	appointment, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if appointment.Status != entities.AppointmentStatusPending {
		return nil, apperrors.NewInvalidStateError("only pending appointments can be cancelled; " + id + " is " + string(appointment.Status))
	}

	appointment.Status = entities.AppointmentStatusCancelled
	appointment.UpdatedAt = s.now()
	if err := s.repo.Save(ctx, appointment); err != nil {
		return nil, err
	}

	observability.LoggerFromContext(ctx).Info().Str("appointment_id", id).Msg("appointment cancelled")
	s.publish(ctx, entities.AppointmentEventCancelled, appointment)
	return appointment, nil
}

func (s *BookingService) publish(ctx context.Context, eventType entities.AppointmentEventType, appointment *entities.Appointment) {
	if s.events == nil {
		return
	}
	snapshot := *appointment
	if err := s.events.Publish(ctx, providers.EventChannelAppointments, entities.NewAppointmentEvent(eventType, &snapshot)); err != nil {
		observability.LoggerFromContext(ctx).Warn().
			Err(err).
			Str("appointment_id", appointment.ID).
			Str("event_type", string(eventType)).
			Msg("failed to publish appointment event")
	}
}
