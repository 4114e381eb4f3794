package services

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"

	"github.com/sociodent/sociodent/backend/internal/domain/entities"
	"github.com/sociodent/sociodent/backend/internal/domain/providers"
	"github.com/sociodent/sociodent/backend/internal/domain/repositories"
	"github.com/sociodent/sociodent/backend/internal/infrastructure/observability"
	apperrors "github.com/sociodent/sociodent/backend/pkg/errors"
)

// AssignmentOutcome is the non-error result of an assignment attempt
type AssignmentOutcome string

const (
	OutcomeAssigned     AssignmentOutcome = "assigned"
	OutcomeNoCandidates AssignmentOutcome = "no_candidates"
)

const (
	modeAuto     = "auto"
	modeManual   = "manual"
	modeReassign = "reassign"
)

// AssignmentResult describes what an assignment attempt did
type AssignmentResult struct {
	Outcome     AssignmentOutcome       `json:"outcome"`
	Appointment *entities.Appointment   `json:"appointment"`
	Doctor      *entities.Doctor        `json:"doctor,omitempty"`
	Score       *entities.MatchScore    `json:"score,omitempty"`
	Candidates  []entities.ScoredDoctor `json:"candidates,omitempty"`
	Forced      bool                    `json:"forced,omitempty"`
}

// AssignmentPolicy holds the admin override switches
type AssignmentPolicy struct {
	// AllowForcedAssignment lets an admin skip the schedule check by passing force.
	// Approval is never skipped.
	AllowForcedAssignment bool
}

// ManualAssignment is an admin's explicit choice of doctor
type ManualAssignment struct {
	DoctorID string
	Actor    string
	Reason   string
	Force    bool
}

// AssignmentService assigns doctors to appointments
type AssignmentService struct {
	appointments repositories.AppointmentRepository
	doctors      repositories.DoctorRepository
	matcher      *DoctorMatcher
	events       providers.EventBus
	metrics      *observability.Metrics
	policy       AssignmentPolicy
	now          func() time.Time
}

// NewAssignmentService creates a new assignment service. events and metrics may be nil.
func NewAssignmentService(
	appointments repositories.AppointmentRepository,
	doctors repositories.DoctorRepository,
	matcher *DoctorMatcher,
	events providers.EventBus,
	metrics *observability.Metrics,
	policy AssignmentPolicy,
) *AssignmentService {
	return &AssignmentService{
		appointments: appointments,
		doctors:      doctors,
		matcher:      matcher,
		events:       events,
		metrics:      metrics,
		policy:       policy,
		now:          func() time.Time { return time.Now().UTC() },
	}
}

func (s *AssignmentService) loadPool(ctx context.Context) ([]*entities.Doctor, error) {
	return s.doctors.List(ctx, repositories.DoctorFilter{Status: entities.DoctorStatusApproved})
}

// Candidates ranks eligible doctors for an appointment without changing it
func (s *AssignmentService) Candidates(ctx context.Context, appointmentID string) ([]entities.ScoredDoctor, error) {
	appointment, err := s.appointments.GetByID(ctx, appointmentID)
	if err != nil {
		return nil, err
	}
	return s.rank(ctx, appointment)
}

func (s *AssignmentService) rank(ctx context.Context, appointment *entities.Appointment) ([]entities.ScoredDoctor, error) {
	pool, err := s.loadPool(ctx)
	if err != nil {
		return nil, err
	}
	load, err := s.appointments.CountConfirmedByDoctor(ctx, appointment.Date)
	if err != nil {
		return nil, err
	}
	return s.matcher.Rank(appointment, pool, load)
}

// AssignBest loads the appointment and confirms it with the best ranked doctor
func (s *AssignmentService) AssignBest(ctx context.Context, appointmentID string) (*AssignmentResult, error) {
	appointment, err := s.appointments.GetByID(ctx, appointmentID)
	if err != nil {
		return nil, err
	}
	return s.AssignAppointment(ctx, appointment)
}

// AssignAppointment is AssignBest for an already loaded appointment. With no
// eligible doctor the appointment stays pending and the outcome is
// OutcomeNoCandidates with a nil error.
func (s *AssignmentService) AssignAppointment(ctx context.Context, appointment *entities.Appointment) (*AssignmentResult, error) {
	ctx, span := observability.StartSpan(ctx, "AssignmentService.AssignBest")
	defer span.End()
	span.SetAttributes(attribute.String("appointment.id", appointment.ID))

	logger := observability.LoggerFromContext(ctx)

	if appointment.Status != entities.AppointmentStatusPending {
		return nil, apperrors.NewInvalidStateError("appointment " + appointment.ID + " is " + string(appointment.Status) + ", not pending")
	}

	ranked, err := s.rank(ctx, appointment)
	if err != nil {
		observability.RecordError(span, err)
		s.recordFailure(ctx, modeAuto, err)
		return nil, err
	}

	if len(ranked) == 0 {
		observability.RecordAssignment(ctx, s.metrics, modeAuto, string(OutcomeNoCandidates), 0)
		logger.Info().
			Str("appointment_id", appointment.ID).
			Str("date", appointment.Date).
			Str("time", appointment.Time.String()).
			Msg("no eligible doctor for appointment")
		return &AssignmentResult{Outcome: OutcomeNoCandidates, Appointment: appointment}, nil
	}

	best := ranked[0]
	updated := *appointment
	updated.AssignDoctor(best.Doctor, s.now())
	if err := s.appointments.Save(ctx, &updated); err != nil {
		observability.RecordError(span, err)
		s.recordFailure(ctx, modeAuto, err)
		return nil, err
	}
	*appointment = updated

	observability.RecordAssignment(ctx, s.metrics, modeAuto, string(OutcomeAssigned), len(ranked))
	logger.Info().
		Str("appointment_id", appointment.ID).
		Str("doctor_id", best.Doctor.ID).
		Float64("score", best.Score.Total).
		Int("candidates", len(ranked)).
		Msg("appointment assigned")

	s.publish(ctx, entities.AppointmentEventConfirmed, appointment)

	score := best.Score
	return &AssignmentResult{
		Outcome:     OutcomeAssigned,
		Appointment: appointment,
		Doctor:      best.Doctor,
		Score:       &score,
		Candidates:  ranked,
	}, nil
}

// AssignManually confirms a pending appointment with the admin's chosen doctor
func (s *AssignmentService) AssignManually(ctx context.Context, appointmentID string, req ManualAssignment) (*AssignmentResult, error) {
	ctx, span := observability.StartSpan(ctx, "AssignmentService.AssignManually")
	defer span.End()
	span.SetAttributes(
		attribute.String("appointment.id", appointmentID),
		attribute.String("doctor.id", req.DoctorID),
	)

	appointment, err := s.appointments.GetByID(ctx, appointmentID)
	if err != nil {
		return nil, err
	}
	if appointment.Status != entities.AppointmentStatusPending {
		return nil, apperrors.NewInvalidStateError("appointment " + appointment.ID + " is " + string(appointment.Status) + ", not pending")
	}

	doctor, forced, err := s.checkChosenDoctor(ctx, appointment, req)
	if err != nil {
		observability.RecordError(span, err)
		s.recordFailure(ctx, modeManual, err)
		return nil, err
	}

	score, err := s.scoreOne(ctx, appointment, doctor)
	if err != nil {
		observability.RecordError(span, err)
		s.recordFailure(ctx, modeManual, err)
		return nil, err
	}

	updated := *appointment
	updated.AssignDoctor(doctor, s.now())
	if err := s.appointments.Save(ctx, &updated); err != nil {
		observability.RecordError(span, err)
		s.recordFailure(ctx, modeManual, err)
		return nil, err
	}
	appointment = &updated

	observability.RecordAssignment(ctx, s.metrics, modeManual, string(OutcomeAssigned), -1)
	observability.LoggerFromContext(ctx).Info().
		Str("appointment_id", appointment.ID).
		Str("doctor_id", doctor.ID).
		Str("actor", req.Actor).
		Bool("forced", forced).
		Msg("appointment assigned manually")

	s.publish(ctx, entities.AppointmentEventConfirmed, appointment)

	return &AssignmentResult{
		Outcome:     OutcomeAssigned,
		Appointment: appointment,
		Doctor:      doctor,
		Score:       score,
		Forced:      forced,
	}, nil
}

// Reassign moves a confirmed appointment to another doctor and appends one
// audit entry. The doctor change and the entry are stored atomically.
func (s *AssignmentService) Reassign(ctx context.Context, appointmentID string, req ManualAssignment) (*AssignmentResult, error) {
	ctx, span := observability.StartSpan(ctx, "AssignmentService.Reassign")
	defer span.End()
	span.SetAttributes(
		attribute.String("appointment.id", appointmentID),
		attribute.String("doctor.id", req.DoctorID),
	)

	if strings.TrimSpace(req.Actor) == "" {
		return nil, apperrors.NewValidationError("actor is required for reassignment")
	}

	appointment, err := s.appointments.GetByID(ctx, appointmentID)
	if err != nil {
		return nil, err
	}
	if appointment.Status != entities.AppointmentStatusConfirmed {
		return nil, apperrors.NewInvalidStateError("only confirmed appointments can be reassigned; " + appointment.ID + " is " + string(appointment.Status))
	}
	if appointment.DoctorID == req.DoctorID {
		return nil, apperrors.NewValidationError("appointment " + appointment.ID + " is already assigned to doctor " + req.DoctorID)
	}

	doctor, forced, err := s.checkChosenDoctor(ctx, appointment, req)
	if err != nil {
		observability.RecordError(span, err)
		s.recordFailure(ctx, modeReassign, err)
		return nil, err
	}

	score, err := s.scoreOne(ctx, appointment, doctor)
	if err != nil {
		observability.RecordError(span, err)
		s.recordFailure(ctx, modeReassign, err)
		return nil, err
	}

	now := s.now()
	entry := &entities.AuditEntry{
		ID:               uuid.New().String(),
		AppointmentID:    appointment.ID,
		Action:           entities.AuditActionReassigned,
		PreviousDoctorID: appointment.DoctorID,
		NewDoctorID:      doctor.ID,
		Actor:            req.Actor,
		Reason:           req.Reason,
		Forced:           forced,
		CreatedAt:        now,
	}

	updated := *appointment
	updated.AssignDoctor(doctor, now)
	if err := s.appointments.SaveWithAudit(ctx, &updated, entry); err != nil {
		observability.RecordError(span, err)
		s.recordFailure(ctx, modeReassign, err)
		return nil, err
	}
	appointment = &updated
	observability.EmitAuditRecord(ctx, entry)

	observability.RecordAssignment(ctx, s.metrics, modeReassign, string(OutcomeAssigned), -1)
	observability.LoggerFromContext(ctx).Info().
		Str("appointment_id", appointment.ID).
		Str("previous_doctor_id", entry.PreviousDoctorID).
		Str("doctor_id", doctor.ID).
		Str("actor", req.Actor).
		Bool("forced", forced).
		Msg("appointment reassigned")

	s.publish(ctx, entities.AppointmentEventReassigned, appointment)

	return &AssignmentResult{
		Outcome:     OutcomeAssigned,
		Appointment: appointment,
		Doctor:      doctor,
		Score:       score,
		Forced:      forced,
	}, nil
}

// AuditTrail returns the appointment's audit entries, oldest first
func (s *AssignmentService) AuditTrail(ctx context.Context, appointmentID string) ([]*entities.AuditEntry, error) {
	if _, err := s.appointments.GetByID(ctx, appointmentID); err != nil {
		return nil, err
	}
	return s.appointments.ListAuditEntries(ctx, appointmentID)
}

// checkChosenDoctor applies the manual path validation. The returned bool is
// true when a schedule conflict was overridden by force.
func (s *AssignmentService) checkChosenDoctor(ctx context.Context, appointment *entities.Appointment, req ManualAssignment) (*entities.Doctor, bool, error) {
	if strings.TrimSpace(req.DoctorID) == "" {
		return nil, false, apperrors.NewValidationError("doctor_id is required")
	}

	doctor, err := s.doctors.GetByID(ctx, req.DoctorID)
	if err != nil {
		if apperrors.IsType(err, apperrors.ErrorTypeNotFound) {
			return nil, false, apperrors.NewDoctorNotFoundError(req.DoctorID)
		}
		return nil, false, err
	}

	if !doctor.IsApproved() {
		return nil, false, apperrors.NewDoctorNotApprovedError(doctor.ID, string(doctor.Status))
	}

	if err := s.matcher.CheckSchedule(appointment, doctor); err != nil {
		if req.Force && s.policy.AllowForcedAssignment && apperrors.IsType(err, apperrors.ErrorTypeScheduleConflict) {
			observability.LoggerFromContext(ctx).Warn().
				Str("appointment_id", appointment.ID).
				Str("doctor_id", doctor.ID).
				Str("actor", req.Actor).
				Str("conflict", err.Error()).
				Msg("schedule conflict overridden by forced assignment")
			return doctor, true, nil
		}
		return nil, false, err
	}

	return doctor, false, nil
}

// scoreOne scores the chosen doctor against the same-day load used for ranking
func (s *AssignmentService) scoreOne(ctx context.Context, appointment *entities.Appointment, doctor *entities.Doctor) (*entities.MatchScore, error) {
	load, err := s.appointments.CountConfirmedByDoctor(ctx, appointment.Date)
	if err != nil {
		return nil, err
	}
	scored := s.matcher.ScoreCandidates(appointment, []*entities.Doctor{doctor}, load)
	if len(scored) == 0 {
		return nil, nil
	}
	score := scored[0].Score
	return &score, nil
}

func (s *AssignmentService) recordFailure(ctx context.Context, mode string, err error) {
	errType := apperrors.TypeOf(err)
	outcome := string(errType)
	if outcome == "" {
		outcome = "error"
	}
	observability.RecordAssignment(ctx, s.metrics, mode, outcome, -1)

	logger := observability.LoggerFromContext(ctx)
	switch errType {
	case apperrors.ErrorTypeStaleWrite:
		observability.RecordStaleWrite(ctx, s.metrics, mode)
		logger.Warn().Err(err).Str("mode", mode).Msg("assignment lost a concurrent write")
	case apperrors.ErrorTypeInternal, "":
		logger.Error().Err(err).Str("mode", mode).Msg("assignment failed")
	default:
		logger.Info().Err(err).Str("mode", mode).Msg("assignment rejected")
	}
}

func (s *AssignmentService) publish(ctx context.Context, eventType entities.AppointmentEventType, appointment *entities.Appointment) {
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
