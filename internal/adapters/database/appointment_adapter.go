package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/postgres"

	"github.com/sociodent/sociodent/backend/internal/domain/entities"
	"github.com/sociodent/sociodent/backend/internal/domain/repositories"
	"github.com/sociodent/sociodent/backend/internal/infrastructure/clients/postgres"
	apperrors "github.com/sociodent/sociodent/backend/pkg/errors"
)

const (
	appointmentsTable     = "appointments"
	appointmentAuditTable = "appointment_audit"
)

var appointmentColumns = []interface{}{
	"id", "patient_id", "patient_name", "patient_email", "patient_phone",
	"consultation_type", "date", "time", "area", "symptoms",
	"preferred_specialization", "status", "doctor_id", "doctor_name",
	"doctor_specialization", "version", "created_at", "updated_at",
}

// AppointmentAdapter implements the AppointmentRepository interface
type AppointmentAdapter struct {
	client *postgres.Client
	db     *goqu.Database
}

// NewAppointmentAdapter creates a new appointment adapter
func NewAppointmentAdapter(client *postgres.Client) repositories.AppointmentRepository {
	return &AppointmentAdapter{
		client: client,
		db:     goqu.New("postgres", client.DB()),
	}
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanAppointment(row rowScanner) (*entities.Appointment, error) {
	appointment := &entities.Appointment{}
	var date time.Time
	var patientID, patientEmail, patientPhone, area, symptoms, preferred sql.NullString
	var doctorID, doctorName, doctorSpecialization sql.NullString

	err := row.Scan(
		&appointment.ID,
		&patientID,
		&appointment.PatientName,
		&patientEmail,
		&patientPhone,
		&appointment.ConsultationType,
		&date,
		&appointment.Time,
		&area,
		&symptoms,
		&preferred,
		&appointment.Status,
		&doctorID,
		&doctorName,
		&doctorSpecialization,
		&appointment.Version,
		&appointment.CreatedAt,
		&appointment.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	appointment.Date = date.Format(entities.DateLayout)
	appointment.PatientID = patientID.String
	appointment.PatientEmail = patientEmail.String
	appointment.PatientPhone = patientPhone.String
	appointment.Area = area.String
	appointment.Symptoms = symptoms.String
	appointment.PreferredSpecialization = preferred.String
	appointment.DoctorID = doctorID.String
	appointment.DoctorName = doctorName.String
	appointment.DoctorSpecialization = doctorSpecialization.String

	return appointment, nil
}

func nullable(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

// Create creates a new appointment
func (a *AppointmentAdapter) Create(ctx context.Context, appointment *entities.Appointment) error {
	record := goqu.Record{
		"id":                       appointment.ID,
		"patient_id":               nullable(appointment.PatientID),
		"patient_name":             appointment.PatientName,
		"patient_email":            nullable(appointment.PatientEmail),
		"patient_phone":            nullable(appointment.PatientPhone),
		"consultation_type":        string(appointment.ConsultationType),
		"date":                     appointment.Date,
		"time":                     appointment.Time.String(),
		"area":                     nullable(appointment.Area),
		"symptoms":                 nullable(appointment.Symptoms),
		"preferred_specialization": nullable(appointment.PreferredSpecialization),
		"status":                   string(appointment.Status),
		"doctor_id":                nullable(appointment.DoctorID),
		"doctor_name":              nullable(appointment.DoctorName),
		"doctor_specialization":    nullable(appointment.DoctorSpecialization),
		"version":                  appointment.Version,
		"created_at":               appointment.CreatedAt,
		"updated_at":               appointment.UpdatedAt,
	}

	query, args, err := a.db.Insert(appointmentsTable).Rows(record).ToSQL()
	if err != nil {
		return apperrors.NewInternalError("failed to build insert query", err)
	}

	if _, err := a.client.DB().ExecContext(ctx, query, args...); err != nil {
		return apperrors.NewInternalError("failed to create appointment", err)
	}

	return nil
}

// GetByID retrieves an appointment by ID
func (a *AppointmentAdapter) GetByID(ctx context.Context, id string) (*entities.Appointment, error) {
	query, args, err := a.db.Select(appointmentColumns...).
		From(appointmentsTable).
		Where(goqu.Ex{"id": id}).
		ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build query", err)
	}

	appointment, err := scanAppointment(a.client.DB().QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.NewNotFoundError(fmt.Sprintf("appointment with id %s not found", id))
	}
	if err != nil {
		return nil, apperrors.NewInternalError("failed to get appointment", err)
	}

	return appointment, nil
}

// sqlExecutor is satisfied by both *sql.DB and *sql.Tx
type sqlExecutor interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// Save performs a compare-and-swap on the version column
func (a *AppointmentAdapter) Save(ctx context.Context, appointment *entities.Appointment) error {
	if err := a.update(ctx, a.client.DB(), appointment); err != nil {
		return err
	}
	appointment.Version++
	return nil
}

// SaveWithAudit performs the Save compare-and-swap and appends entry in one
// transaction. Either both are stored or neither is.
func (a *AppointmentAdapter) SaveWithAudit(ctx context.Context, appointment *entities.Appointment, entry *entities.AuditEntry) error {
	tx, err := a.client.BeginTx(ctx)
	if err != nil {
		return apperrors.NewInternalError("failed to begin transaction", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := a.update(ctx, tx, appointment); err != nil {
		return err
	}
	if err := a.insertAuditEntry(ctx, tx, entry); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return apperrors.NewInternalError("failed to commit appointment update", err)
	}

	appointment.Version++
	return nil
}

func (a *AppointmentAdapter) update(ctx context.Context, exec sqlExecutor, appointment *entities.Appointment) error {
	record := goqu.Record{
		"status":                   string(appointment.Status),
		"doctor_id":                nullable(appointment.DoctorID),
		"doctor_name":              nullable(appointment.DoctorName),
		"doctor_specialization":    nullable(appointment.DoctorSpecialization),
		"area":                     nullable(appointment.Area),
		"symptoms":                 nullable(appointment.Symptoms),
		"preferred_specialization": nullable(appointment.PreferredSpecialization),
		"date":                     appointment.Date,
		"time":                     appointment.Time.String(),
		"version":                  goqu.L(`"version" + 1`),
		"updated_at":               appointment.UpdatedAt,
	}

	query, args, err := a.db.Update(appointmentsTable).
		Set(record).
		Where(goqu.Ex{"id": appointment.ID, "version": appointment.Version}).
		ToSQL()
	if err != nil {
		return apperrors.NewInternalError("failed to build update query", err)
	}

	result, err := exec.ExecContext(ctx, query, args...)
	if err != nil {
		return apperrors.NewInternalError("failed to update appointment", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return apperrors.NewInternalError("failed to get rows affected", err)
	}

	if rowsAffected == 0 {
		current, err := a.currentVersion(ctx, exec, appointment.ID)
		if err != nil {
			return err
		}
		return apperrors.NewStaleWriteError(fmt.Sprintf(
			"appointment %s was modified concurrently (expected version %d, found %d)",
			appointment.ID, appointment.Version, current))
	}
	return nil
}

func (a *AppointmentAdapter) currentVersion(ctx context.Context, exec sqlExecutor, id string) (int, error) {
	query, args, err := a.db.Select("version").From(appointmentsTable).Where(goqu.Ex{"id": id}).ToSQL()
	if err != nil {
		return 0, apperrors.NewInternalError("failed to build query", err)
	}

	var version int
	err = exec.QueryRowContext(ctx, query, args...).Scan(&version)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, apperrors.NewNotFoundError(fmt.Sprintf("appointment with id %s not found", id))
	}
	if err != nil {
		return 0, apperrors.NewInternalError("failed to read appointment version", err)
	}
	return version, nil
}

// List retrieves appointments matching filter, newest first
func (a *AppointmentAdapter) List(ctx context.Context, filter repositories.AppointmentFilter) ([]*entities.Appointment, error) {
	ds := a.db.Select(appointmentColumns...).From(appointmentsTable)

	if filter.Status != "" {
		ds = ds.Where(goqu.Ex{"status": string(filter.Status)})
	}
	if filter.DoctorID != "" {
		ds = ds.Where(goqu.Ex{"doctor_id": filter.DoctorID})
	}
	if filter.PatientID != "" {
		ds = ds.Where(goqu.Ex{"patient_id": filter.PatientID})
	}
	if filter.Date != "" {
		ds = ds.Where(goqu.Ex{"date": filter.Date})
	}

	ds = ds.Order(goqu.I("created_at").Desc(), goqu.I("id").Asc())

	if filter.Limit > 0 {
		ds = ds.Limit(uint(filter.Limit))
	}
	if filter.Offset > 0 {
		ds = ds.Offset(uint(filter.Offset))
	}

	return a.query(ctx, ds)
}

// ListPending retrieves pending appointments, oldest first
func (a *AppointmentAdapter) ListPending(ctx context.Context, limit int) ([]*entities.Appointment, error) {
	ds := a.db.Select(appointmentColumns...).
		From(appointmentsTable).
		Where(goqu.Ex{"status": string(entities.AppointmentStatusPending)}).
		Order(goqu.I("created_at").Asc(), goqu.I("id").Asc())

	if limit > 0 {
		ds = ds.Limit(uint(limit))
	}

	return a.query(ctx, ds)
}

func (a *AppointmentAdapter) query(ctx context.Context, ds *goqu.SelectDataset) ([]*entities.Appointment, error) {
	query, args, err := ds.ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build list query", err)
	}

	rows, err := a.client.DB().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperrors.NewInternalError("failed to list appointments", err)
	}
	defer rows.Close()

	appointments := []*entities.Appointment{}
	for rows.Next() {
		appointment, err := scanAppointment(rows)
		if err != nil {
			return nil, apperrors.NewInternalError("failed to scan appointment", err)
		}
		appointments = append(appointments, appointment)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewInternalError("failed to iterate appointments", err)
	}

	return appointments, nil
}

// CountConfirmedByDoctor counts confirmed appointments per doctor on date
func (a *AppointmentAdapter) CountConfirmedByDoctor(ctx context.Context, date string) (map[string]int, error) {
	query, args, err := a.db.From(appointmentsTable).
		Select(goqu.C("doctor_id"), goqu.COUNT("*")).
		Where(goqu.Ex{
			"status":    string(entities.AppointmentStatusConfirmed),
			"date":      date,
			"doctor_id": goqu.Op{"isNot": nil},
		}).
		GroupBy("doctor_id").
		ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build count query", err)
	}

	rows, err := a.client.DB().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperrors.NewInternalError("failed to count confirmed appointments", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var doctorID string
		var n int
		if err := rows.Scan(&doctorID, &n); err != nil {
			return nil, apperrors.NewInternalError("failed to scan appointment count", err)
		}
		counts[doctorID] = n
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewInternalError("failed to iterate appointment counts", err)
	}

	return counts, nil
}

// AppendAuditEntry appends to the appointment's audit trail
func (a *AppointmentAdapter) AppendAuditEntry(ctx context.Context, entry *entities.AuditEntry) error {
	return a.insertAuditEntry(ctx, a.client.DB(), entry)
}

func (a *AppointmentAdapter) insertAuditEntry(ctx context.Context, exec sqlExecutor, entry *entities.AuditEntry) error {
	record := goqu.Record{
		"id":                 entry.ID,
		"appointment_id":     entry.AppointmentID,
		"action":             string(entry.Action),
		"previous_doctor_id": nullable(entry.PreviousDoctorID),
		"new_doctor_id":      nullable(entry.NewDoctorID),
		"actor":              entry.Actor,
		"reason":             nullable(entry.Reason),
		"forced":             entry.Forced,
		"created_at":         entry.CreatedAt,
	}

	query, args, err := a.db.Insert(appointmentAuditTable).Rows(record).ToSQL()
	if err != nil {
		return apperrors.NewInternalError("failed to build insert query", err)
	}

	if _, err := exec.ExecContext(ctx, query, args...); err != nil {
		return apperrors.NewInternalError("failed to append audit entry", err)
	}
	return nil
}

// ListAuditEntries returns the audit trail for an appointment, oldest first
func (a *AppointmentAdapter) ListAuditEntries(ctx context.Context, appointmentID string) ([]*entities.AuditEntry, error) {
	query, args, err := a.db.Select(
		"id", "appointment_id", "action", "previous_doctor_id", "new_doctor_id",
		"actor", "reason", "forced", "created_at",
	).From(appointmentAuditTable).
		Where(goqu.Ex{"appointment_id": appointmentID}).
		Order(goqu.I("created_at").Asc(), goqu.I("id").Asc()).
		ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build query", err)
	}

	rows, err := a.client.DB().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperrors.NewInternalError("failed to list audit entries", err)
	}
	defer rows.Close()

	entries := []*entities.AuditEntry{}
	for rows.Next() {
		entry := &entities.AuditEntry{}
		var previous, next, reason sql.NullString
		if err := rows.Scan(
			&entry.ID,
			&entry.AppointmentID,
			&entry.Action,
			&previous,
			&next,
			&entry.Actor,
			&reason,
			&entry.Forced,
			&entry.CreatedAt,
		); err != nil {
			return nil, apperrors.NewInternalError("failed to scan audit entry", err)
		}
		entry.PreviousDoctorID = previous.String
		entry.NewDoctorID = next.String
		entry.Reason = reason.String
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewInternalError("failed to iterate audit entries", err)
	}

	return entries, nil
}
