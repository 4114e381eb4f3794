package repositories

import (
	"context"

	"github.com/sociodent/sociodent/backend/internal/domain/entities"
)

// AppointmentRepository defines the interface for appointment data operations
type AppointmentRepository interface {
	// Create creates a new appointment
	Create(ctx context.Context, appointment *entities.Appointment) error

	// GetByID retrieves an appointment by ID
	GetByID(ctx context.Context, id string) (*entities.Appointment, error)

	// Save writes the appointment only if the stored version still equals
	// appointment.Version, then increments the version. A lost race returns
	// an ErrorTypeStaleWrite error and leaves the stored record untouched.
	Save(ctx context.Context, appointment *entities.Appointment) error
	// SaveWithAudit is Save plus AppendAuditEntry as one atomic write: a
	// stale write or a failed insert stores neither.
	SaveWithAudit(ctx context.Context, appointment *entities.Appointment, entry *entities.AuditEntry) error

	// List retrieves appointments matching filter
	List(ctx context.Context, filter AppointmentFilter) ([]*entities.Appointment, error)

	// ListPending retrieves up to limit pending appointments, oldest first
	ListPending(ctx context.Context, limit int) ([]*entities.Appointment, error)

	// CountConfirmedByDoctor returns confirmed appointment counts per doctor on date (YYYY-MM-DD)
	CountConfirmedByDoctor(ctx context.Context, date string) (map[string]int, error)

	// AppendAuditEntry appends to the appointment's audit trail
	AppendAuditEntry(ctx context.Context, entry *entities.AuditEntry) error

	// ListAuditEntries returns the audit trail, oldest first
	ListAuditEntries(ctx context.Context, appointmentID string) ([]*entities.AuditEntry, error)
}

// AppointmentFilter defines filters for listing appointments
type AppointmentFilter struct {
	Status    entities.AppointmentStatus
	DoctorID  string
	PatientID string
	Date      string
	Limit     int
	Offset    int
}
