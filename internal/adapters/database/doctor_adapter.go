package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/doug-martin/goqu/v9"

	"github.com/sociodent/sociodent/backend/internal/domain/entities"
	"github.com/sociodent/sociodent/backend/internal/domain/repositories"
	"github.com/sociodent/sociodent/backend/internal/infrastructure/clients/postgres"
	apperrors "github.com/sociodent/sociodent/backend/pkg/errors"
)

const (
	doctorsTable       = "doctors"
	doctorHistoryTable = "doctor_history"
)

var doctorColumns = []interface{}{
	"id", "name", "email", "phone", "role", "status",
	"specialization", "area", "schedule", "created_at", "updated_at",
}

// DoctorAdapter implements the DoctorRepository interface
type DoctorAdapter struct {
	client *postgres.Client
	db     *goqu.Database
}

// NewDoctorAdapter creates a new doctor adapter
func NewDoctorAdapter(client *postgres.Client) repositories.DoctorRepository {
	return &DoctorAdapter{
		client: client,
		db:     goqu.New("postgres", client.DB()),
	}
}

func scanDoctor(row rowScanner) (*entities.Doctor, error) {
	doctor := &entities.Doctor{}
	var email, phone, specialization, area sql.NullString
	var schedule []byte

	err := row.Scan(
		&doctor.ID,
		&doctor.Name,
		&email,
		&phone,
		&doctor.Role,
		&doctor.Status,
		&specialization,
		&area,
		&schedule,
		&doctor.CreatedAt,
		&doctor.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	doctor.Email = email.String
	doctor.Phone = phone.String
	doctor.Specialization = specialization.String
	doctor.Area = area.String
	doctor.Schedule = entities.WeeklySchedule{}
	if len(schedule) > 0 {
		if err := json.Unmarshal(schedule, &doctor.Schedule); err != nil {
			return nil, fmt.Errorf("doctor %s has an unreadable schedule: %w", doctor.ID, err)
		}
	}

	return doctor, nil
}

func encodeSchedule(schedule entities.WeeklySchedule) (string, error) {
	if schedule == nil {
		schedule = entities.WeeklySchedule{}
	}
	data, err := json.Marshal(schedule)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// Create creates a new doctor
func (a *DoctorAdapter) Create(ctx context.Context, doctor *entities.Doctor) error {
	schedule, err := encodeSchedule(doctor.Schedule)
	if err != nil {
		return apperrors.NewValidationError("invalid schedule: " + err.Error())
	}

	record := goqu.Record{
		"id":             doctor.ID,
		"name":           doctor.Name,
		"email":          nullable(doctor.Email),
		"phone":          nullable(doctor.Phone),
		"role":           doctor.Role,
		"status":         string(doctor.Status),
		"specialization": nullable(doctor.Specialization),
		"area":           nullable(doctor.Area),
		"schedule":       goqu.L("?::jsonb", schedule),
		"created_at":     doctor.CreatedAt,
		"updated_at":     doctor.UpdatedAt,
	}

	query, args, err := a.db.Insert(doctorsTable).Rows(record).ToSQL()
	if err != nil {
		return apperrors.NewInternalError("failed to build insert query", err)
	}

	if _, err := a.client.DB().ExecContext(ctx, query, args...); err != nil {
		return apperrors.NewInternalError("failed to create doctor", err)
	}
	return nil
}

// GetByID retrieves a doctor by ID
func (a *DoctorAdapter) GetByID(ctx context.Context, id string) (*entities.Doctor, error) {
	query, args, err := a.db.Select(doctorColumns...).
		From(doctorsTable).
		Where(goqu.Ex{"id": id}).
		ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build query", err)
	}

	doctor, err := scanDoctor(a.client.DB().QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.NewDoctorNotFoundError(id)
	}
	if err != nil {
		return nil, apperrors.NewInternalError("failed to get doctor", err)
	}
	return doctor, nil
}

// GetByIDs retrieves the doctors that exist among ids
func (a *DoctorAdapter) GetByIDs(ctx context.Context, ids []string) ([]*entities.Doctor, error) {
	if len(ids) == 0 {
		return []*entities.Doctor{}, nil
	}

	ds := a.db.Select(doctorColumns...).
		From(doctorsTable).
		Where(goqu.Ex{"id": ids})
	return a.query(ctx, ds)
}

// List retrieves doctors ordered by ID
func (a *DoctorAdapter) List(ctx context.Context, filter repositories.DoctorFilter) ([]*entities.Doctor, error) {
	ds := a.db.Select(doctorColumns...).From(doctorsTable)

	if filter.Status != "" {
		ds = ds.Where(goqu.Ex{"status": string(filter.Status)})
	}
	if s := strings.TrimSpace(filter.Specialization); s != "" {
		ds = ds.Where(goqu.Func("LOWER", goqu.C("specialization")).Eq(strings.ToLower(s)))
	}
	if s := strings.TrimSpace(filter.Area); s != "" {
		ds = ds.Where(goqu.Func("LOWER", goqu.C("area")).Eq(strings.ToLower(s)))
	}

	return a.query(ctx, ds.Order(goqu.I("id").Asc()))
}

func (a *DoctorAdapter) query(ctx context.Context, ds *goqu.SelectDataset) ([]*entities.Doctor, error) {
	query, args, err := ds.ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build list query", err)
	}

	rows, err := a.client.DB().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperrors.NewInternalError("failed to list doctors", err)
	}
	defer rows.Close()

	doctors := []*entities.Doctor{}
	for rows.Next() {
		doctor, err := scanDoctor(rows)
		if err != nil {
			return nil, apperrors.NewInternalError("failed to scan doctor", err)
		}
		doctors = append(doctors, doctor)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewInternalError("failed to iterate doctors", err)
	}
	return doctors, nil
}

// UpdateStatus changes the approval status
func (a *DoctorAdapter) UpdateStatus(ctx context.Context, id string, status entities.DoctorStatus) error {
	return a.update(ctx, id, goqu.Record{
		"status":     string(status),
		"updated_at": time.Now().UTC(),
	})
}

// UpdateSchedule replaces the weekly schedule
func (a *DoctorAdapter) UpdateSchedule(ctx context.Context, id string, schedule entities.WeeklySchedule) error {
	encoded, err := encodeSchedule(schedule)
	if err != nil {
		return apperrors.NewValidationError("invalid schedule: " + err.Error())
	}
	return a.update(ctx, id, goqu.Record{
		"schedule":   goqu.L("?::jsonb", encoded),
		"updated_at": time.Now().UTC(),
	})
}

func (a *DoctorAdapter) update(ctx context.Context, id string, record goqu.Record) error {
	query, args, err := a.db.Update(doctorsTable).
		Set(record).
		Where(goqu.Ex{"id": id}).
		ToSQL()
	if err != nil {
		return apperrors.NewInternalError("failed to build update query", err)
	}

	result, err := a.client.DB().ExecContext(ctx, query, args...)
	if err != nil {
		return apperrors.NewInternalError("failed to update doctor", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return apperrors.NewInternalError("failed to get rows affected", err)
	}
	if rowsAffected == 0 {
		return apperrors.NewDoctorNotFoundError(id)
	}
	return nil
}

// AppendHistory records a profile change
func (a *DoctorAdapter) AppendHistory(ctx context.Context, entry *entities.DoctorHistoryEntry) error {
	record := goqu.Record{
		"id":         entry.ID,
		"doctor_id":  entry.DoctorID,
		"field":      entry.Field,
		"old_value":  entry.OldValue,
		"new_value":  entry.NewValue,
		"actor":      entry.Actor,
		"created_at": entry.CreatedAt,
	}

	query, args, err := a.db.Insert(doctorHistoryTable).Rows(record).ToSQL()
	if err != nil {
		return apperrors.NewInternalError("failed to build insert query", err)
	}

	if _, err := a.client.DB().ExecContext(ctx, query, args...); err != nil {
		return apperrors.NewInternalError("failed to append doctor history", err)
	}
	return nil
}
