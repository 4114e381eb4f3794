package repositories

import (
	"context"

	"github.com/sociodent/sociodent/backend/internal/domain/entities"
)

// DoctorRepository defines the interface for doctor data operations
type DoctorRepository interface {
	// Create creates a new doctor
	Create(ctx context.Context, doctor *entities.Doctor) error

	// GetByID retrieves a doctor by ID
	GetByID(ctx context.Context, id string) (*entities.Doctor, error)

	// GetByIDs retrieves the doctors that exist among ids, in no particular order
	GetByIDs(ctx context.Context, ids []string) ([]*entities.Doctor, error)

	// List retrieves doctors matching filter. An empty filter loads the whole pool.
	List(ctx context.Context, filter DoctorFilter) ([]*entities.Doctor, error)

	// UpdateStatus changes the approval status
	UpdateStatus(ctx context.Context, id string, status entities.DoctorStatus) error

	// UpdateSchedule replaces the weekly schedule
	UpdateSchedule(ctx context.Context, id string, schedule entities.WeeklySchedule) error

	// AppendHistory records a profile change
	AppendHistory(ctx context.Context, entry *entities.DoctorHistoryEntry) error
}

// DoctorFilter defines filters for listing doctors
type DoctorFilter struct {
	Status         entities.DoctorStatus
	Specialization string
	Area           string
}
