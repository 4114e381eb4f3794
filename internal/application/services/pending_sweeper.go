package services

import (
	"context"
	"time"

	"github.com/sociodent/sociodent/backend/internal/domain/repositories"
	"github.com/sociodent/sociodent/backend/internal/infrastructure/observability"
	apperrors "github.com/sociodent/sociodent/backend/pkg/errors"
)

// SweepStats counts what one sweep did
type SweepStats struct {
	Scanned      int `json:"scanned"`
	Assigned     int `json:"assigned"`
	NoCandidates int `json:"no_candidates"`
	Skipped      int `json:"skipped"`
	Failed       int `json:"failed"`
}

// PendingSweeper retries auto-assignment for appointments still pending
type PendingSweeper struct {
	appointments repositories.AppointmentRepository
	assignments  *AssignmentService
	batchSize    int
}

// NewPendingSweeper creates a new sweeper
func NewPendingSweeper(appointments repositories.AppointmentRepository, assignments *AssignmentService, batchSize int) *PendingSweeper {
	if batchSize <= 0 {
		batchSize = 100
	}
	return &PendingSweeper{
		appointments: appointments,
		assignments:  assignments,
		batchSize:    batchSize,
	}
}

// SweepOnce makes one assignment attempt per pending appointment, oldest
// first. An appointment changed concurrently (stale write or no longer
// pending) is re-read and skipped; it is not an error.
func (s *PendingSweeper) SweepOnce(ctx context.Context) (SweepStats, error) {
	var stats SweepStats
	logger := observability.LoggerFromContext(ctx)

	pending, err := s.appointments.ListPending(ctx, s.batchSize)
	if err != nil {
		return stats, err
	}

	for _, appointment := range pending {
		if err := ctx.Err(); err != nil {
			return stats, err
		}
		stats.Scanned++

		result, err := s.assignments.AssignAppointment(ctx, appointment)
		switch {
		case apperrors.IsType(err, apperrors.ErrorTypeStaleWrite), apperrors.IsType(err, apperrors.ErrorTypeInvalidState):
			stats.Skipped++
			s.logConcurrentChange(ctx, appointment.ID)
		case err != nil:
			stats.Failed++
			logger.Error().Err(err).Str("appointment_id", appointment.ID).Msg("sweep assignment failed")
		case result.Outcome == OutcomeNoCandidates:
			stats.NoCandidates++
		default:
			stats.Assigned++
		}
	}

	logger.Info().
		Int("scanned", stats.Scanned).
		Int("assigned", stats.Assigned).
		Int("no_candidates", stats.NoCandidates).
		Int("skipped", stats.Skipped).
		Int("failed", stats.Failed).
		Msg("pending sweep finished")
	return stats, nil
}

// logConcurrentChange re-reads an appointment another writer got to first
// and records what it became. The sweep does not retry it.
func (s *PendingSweeper) logConcurrentChange(ctx context.Context, appointmentID string) {
	logger := observability.LoggerFromContext(ctx)
	current, err := s.appointments.GetByID(ctx, appointmentID)
	if err != nil {
		logger.Warn().Err(err).Str("appointment_id", appointmentID).Msg("appointment changed concurrently, re-read failed")
		return
	}
	logger.Debug().
		Str("appointment_id", current.ID).
		Str("status", string(current.Status)).
		Str("doctor_id", current.DoctorID).
		Int("version", current.Version).
		Msg("appointment changed concurrently, skipped")
}

// Run sweeps immediately and then every interval until ctx is done
func (s *PendingSweeper) Run(ctx context.Context, interval time.Duration) error {
	logger := observability.LoggerFromContext(ctx)
	if _, err := s.SweepOnce(ctx); err != nil && ctx.Err() == nil {
		logger.Error().Err(err).Msg("pending sweep failed")
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if _, err := s.SweepOnce(ctx); err != nil && ctx.Err() == nil {
				logger.Error().Err(err).Msg("pending sweep failed")
			}
		}
	}
}
