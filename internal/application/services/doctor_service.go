package services

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/sociodent/sociodent/backend/internal/domain/entities"
	"github.com/sociodent/sociodent/backend/internal/domain/providers"
	"github.com/sociodent/sociodent/backend/internal/domain/repositories"
	"github.com/sociodent/sociodent/backend/internal/infrastructure/observability"
	apperrors "github.com/sociodent/sociodent/backend/pkg/errors"
)

// RegisterDoctorRequest is a doctor's self-registration
type RegisterDoctorRequest struct {
	Name           string                  `json:"name"`
	Email          string                  `json:"email"`
	Phone          string                  `json:"phone"`
	Specialization string                  `json:"specialization"`
	Area           string                  `json:"area"`
	Schedule       entities.WeeklySchedule `json:"schedule"`
}

// DoctorService manages the doctor pool: registration, approval and schedules
type DoctorService struct {
	repo  repositories.DoctorRepository
	index providers.DoctorIndex
	now   func() time.Time
}

// NewDoctorService creates a new doctor service. index may be nil.
func NewDoctorService(repo repositories.DoctorRepository, index providers.DoctorIndex) *DoctorService {
	return &DoctorService{
		repo:  repo,
		index: index,
		now:   func() time.Time { return time.Now().UTC() },
	}
}

// Register stores a new doctor awaiting approval
func (s *DoctorService) Register(ctx context.Context, req RegisterDoctorRequest) (*entities.Doctor, error) {
	name := strings.TrimSpace(req.Name)
	email := strings.ToLower(strings.TrimSpace(req.Email))
	if name == "" {
		return nil, apperrors.NewValidationError("name is required")
	}
	if email == "" || !strings.Contains(email, "@") {
		return nil, apperrors.NewValidationError("a valid email is required")
	}
	schedule := req.Schedule
	if schedule == nil {
		schedule = entities.WeeklySchedule{}
	}
	if err := schedule.Validate(); err != nil {
		return nil, apperrors.NewValidationError(err.Error())
	}

	now := s.now()
	doctor := &entities.Doctor{
		ID:             uuid.New().String(),
		Name:           name,
		Email:          email,
		Phone:          strings.TrimSpace(req.Phone),
		Role:           entities.RoleDoctor,
		Status:         entities.DoctorStatusPending,
		Specialization: strings.TrimSpace(req.Specialization),
		Area:           strings.TrimSpace(req.Area),
		Schedule:       schedule,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := s.repo.Create(ctx, doctor); err != nil {
		return nil, err
	}

	observability.LoggerFromContext(ctx).Info().Str("doctor_id", doctor.ID).Msg("doctor registered")
	s.reindex(ctx, doctor)
	return doctor, nil
}

// Get returns a doctor by ID
func (s *DoctorService) Get(ctx context.Context, id string) (*entities.Doctor, error) {
	return s.repo.GetByID(ctx, id)
}

// List returns doctors matching filter
func (s *DoctorService) List(ctx context.Context, filter repositories.DoctorFilter) ([]*entities.Doctor, error) {
	if filter.Status != "" && !filter.Status.Valid() {
		return nil, apperrors.NewValidationError("unknown status " + string(filter.Status))
	}
	return s.repo.List(ctx, filter)
}

// Approve makes a doctor eligible for assignment
func (s *DoctorService) Approve(ctx context.Context, id, actor string) (*entities.Doctor, error) {
	return s.SetStatus(ctx, id, entities.DoctorStatusApproved, actor)
}

// Reject removes a doctor from assignment
func (s *DoctorService) Reject(ctx context.Context, id, actor string) (*entities.Doctor, error) {
	return s.SetStatus(ctx, id, entities.DoctorStatusRejected, actor)
}

// SetStatus changes a doctor's approval status and records the change.
// Setting the current status again is a no-op.
func (s *DoctorService) SetStatus(ctx context.Context, id string, status entities.DoctorStatus, actor string) (*entities.Doctor, error) {
	if !status.Valid() {
		return nil, apperrors.NewValidationError("unknown status " + string(status))
	}
	doctor, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if doctor.Status == status {
		return doctor, nil
	}

	previous := doctor.Status
	if err := s.repo.UpdateStatus(ctx, id, status); err != nil {
		return nil, err
	}
	doctor.Status = status
	doctor.UpdatedAt = s.now()

	s.appendHistory(ctx, id, "status", string(previous), string(status), actor)
	observability.LoggerFromContext(ctx).Info().
		Str("doctor_id", id).
		Str("from", string(previous)).
		Str("to", string(status)).
		Str("actor", actor).
		Msg("doctor status changed")
	s.reindex(ctx, doctor)
	return doctor, nil
}

// UpdateSchedule replaces a doctor's weekly schedule
func (s *DoctorService) UpdateSchedule(ctx context.Context, id string, schedule entities.WeeklySchedule, actor string) (*entities.Doctor, error) {
	if schedule == nil {
		return nil, apperrors.NewValidationError("schedule is required")
	}
	if err := schedule.Validate(); err != nil {
		return nil, apperrors.NewValidationError(err.Error())
	}
	doctor, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if err := s.repo.UpdateSchedule(ctx, id, schedule); err != nil {
		return nil, err
	}
	oldJSON, _ := json.Marshal(doctor.Schedule)
	newJSON, _ := json.Marshal(schedule)
	doctor.Schedule = schedule
	doctor.UpdatedAt = s.now()

	s.appendHistory(ctx, id, "schedule", string(oldJSON), string(newJSON), actor)
	s.reindex(ctx, doctor)
	return doctor, nil
}

// appendHistory is best effort; a failed write is logged.
func (s *DoctorService) appendHistory(ctx context.Context, doctorID, field, oldValue, newValue, actor string) {
	entry := &entities.DoctorHistoryEntry{
		ID:        uuid.New().String(),
		DoctorID:  doctorID,
		Field:     field,
		OldValue:  oldValue,
		NewValue:  newValue,
		Actor:     actor,
		CreatedAt: s.now(),
	}
	if err := s.repo.AppendHistory(ctx, entry); err != nil {
		observability.LoggerFromContext(ctx).Error().Err(err).Str("doctor_id", doctorID).Str("field", field).Msg("failed to append doctor history")
	}
}

// Search queries the directory index, falling back to the database when no
// index is configured. Only approved doctors are returned.
func (s *DoctorService) Search(ctx context.Context, params providers.DoctorSearchParams) ([]*entities.Doctor, error) {
	if params.Limit <= 0 || params.Limit > 100 {
		params.Limit = 20
	}
	if s.index == nil {
		return s.searchDatabase(ctx, params)
	}

	ids, err := s.index.Search(ctx, params)
	if err != nil {
		observability.LoggerFromContext(ctx).Warn().Err(err).Msg("doctor index search failed, falling back to database")
		return s.searchDatabase(ctx, params)
	}
	if len(ids) == 0 {
		return []*entities.Doctor{}, nil
	}

	doctors, err := s.repo.GetByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	byID := make(map[string]*entities.Doctor, len(doctors))
	for _, d := range doctors {
		byID[d.ID] = d
	}
	ordered := make([]*entities.Doctor, 0, len(ids))
	for _, id := range ids {
		if d, ok := byID[id]; ok && d.IsApproved() {
			ordered = append(ordered, d)
		}
	}
	return ordered, nil
}

func (s *DoctorService) searchDatabase(ctx context.Context, params providers.DoctorSearchParams) ([]*entities.Doctor, error) {
	doctors, err := s.repo.List(ctx, repositories.DoctorFilter{
		Status:         entities.DoctorStatusApproved,
		Specialization: params.Specialization,
		Area:           params.Area,
	})
	if err != nil {
		return nil, err
	}

	query := strings.ToLower(strings.TrimSpace(params.Query))
	results := make([]*entities.Doctor, 0, len(doctors))
	for _, d := range doctors {
		if query != "" &&
			!strings.Contains(strings.ToLower(d.Name), query) &&
			!strings.Contains(strings.ToLower(d.Specialization), query) {
			continue
		}
		results = append(results, d)
	}

	if params.Offset >= len(results) {
		return []*entities.Doctor{}, nil
	}
	results = results[params.Offset:]
	if len(results) > params.Limit {
		results = results[:params.Limit]
	}
	return results, nil
}

// ReindexAll pushes every doctor into the directory index
func (s *DoctorService) ReindexAll(ctx context.Context) (int, error) {
	if s.index == nil {
		return 0, apperrors.NewInternalError("doctor index is not configured", nil)
	}
	doctors, err := s.repo.List(ctx, repositories.DoctorFilter{})
	if err != nil {
		return 0, err
	}
	indexed := 0
	for _, d := range doctors {
		if err := ctx.Err(); err != nil {
			return indexed, err
		}
		if err := s.index.Index(ctx, d); err != nil {
			return indexed, apperrors.NewExternalError("failed to index doctor "+d.ID, err)
		}
		indexed++
	}
	return indexed, nil
}

func (s *DoctorService) reindex(ctx context.Context, doctor *entities.Doctor) {
	if s.index == nil {
		return
	}
	if err := s.index.Index(ctx, doctor); err != nil {
		observability.LoggerFromContext(ctx).Warn().Err(err).Str("doctor_id", doctor.ID).Msg("failed to update doctor index")
	}
}
