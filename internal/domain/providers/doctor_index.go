package providers

import (
	"context"

	"github.com/sociodent/sociodent/backend/internal/domain/entities"
)

// DoctorSearchParams narrows a doctor directory search
type DoctorSearchParams struct {
	Query          string
	Specialization string
	Area           string
	Limit          int
	Offset         int
}

// DoctorIndex is the doctor directory search index
type DoctorIndex interface {
	// Index upserts a doctor into the index
	Index(ctx context.Context, doctor *entities.Doctor) error

	// Delete removes a doctor from the index
	Delete(ctx context.Context, id string) error

	// Search returns doctor IDs matching params, best match first
	Search(ctx context.Context, params DoctorSearchParams) ([]string, error)
}
