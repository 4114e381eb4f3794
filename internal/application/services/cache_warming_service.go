package services

import (
	"context"
	"fmt"

	"github.com/sociodent/sociodent/backend/internal/domain/entities"
	"github.com/sociodent/sociodent/backend/internal/domain/repositories"
	"github.com/sociodent/sociodent/backend/internal/infrastructure/observability"
)

// CacheWarmingService preloads the approved doctor pool into the cache
type CacheWarmingService struct {
	doctors repositories.DoctorRepository
}

// NewCacheWarmingService creates a new cache warming service. doctors must be
// the cached repository for warming to have any effect.
func NewCacheWarmingService(doctors repositories.DoctorRepository) *CacheWarmingService {
	return &CacheWarmingService{doctors: doctors}
}

// WarmCache loads the approved pool list and each approved doctor by ID
func (s *CacheWarmingService) WarmCache(ctx context.Context) (int, error) {
	logger := observability.LoggerFromContext(ctx)
	logger.Info().Msg("starting cache warming")

	pool, err := s.doctors.List(ctx, repositories.DoctorFilter{Status: entities.DoctorStatusApproved})
	if err != nil {
		return 0, fmt.Errorf("failed to warm doctor pool: %w", err)
	}

	warmed := 0
	for _, d := range pool {
		if err := ctx.Err(); err != nil {
			return warmed, err
		}
		if _, err := s.doctors.GetByID(ctx, d.ID); err != nil {
			logger.Warn().Err(err).Str("doctor_id", d.ID).Msg("failed to warm doctor")
			continue
		}
		warmed++
	}

	logger.Info().Int("doctors", warmed).Msg("cache warming completed")
	return warmed, nil
}
