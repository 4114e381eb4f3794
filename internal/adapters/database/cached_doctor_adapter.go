package database

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/sociodent/sociodent/backend/internal/domain/entities"
	"github.com/sociodent/sociodent/backend/internal/domain/providers"
	"github.com/sociodent/sociodent/backend/internal/domain/repositories"
	"github.com/sociodent/sociodent/backend/internal/infrastructure/observability"
)

// CachedDoctorAdapter wraps a DoctorRepository with a read-through cache.
// Only status-filtered lists are cached so every write can drop the exact
// set of list keys it may have changed.
type CachedDoctorAdapter struct {
	adapter repositories.DoctorRepository
	cache   providers.CacheProvider
	metrics *observability.Metrics
}

// NewCachedDoctorAdapter creates a new cached doctor adapter. metrics may be nil.
func NewCachedDoctorAdapter(adapter repositories.DoctorRepository, cache providers.CacheProvider, metrics *observability.Metrics) repositories.DoctorRepository {
	return &CachedDoctorAdapter{
		adapter: adapter,
		cache:   cache,
		metrics: metrics,
	}
}

// Cache TTLs (in seconds)
const (
	doctorByIDTTL   = 300
	doctorsListTTL  = 60
	doctorKeyPrefix = "doctor:"
)

var cachedListStatuses = []entities.DoctorStatus{
	"",
	entities.DoctorStatusPending,
	entities.DoctorStatusApproved,
	entities.DoctorStatusRejected,
}

func doctorCacheKey(id string) string {
	return doctorKeyPrefix + id
}

func doctorsListCacheKey(status entities.DoctorStatus) string {
	if status == "" {
		return "doctors:list:all"
	}
	return fmt.Sprintf("doctors:list:%s", status)
}

func cacheableFilter(filter repositories.DoctorFilter) bool {
	return strings.TrimSpace(filter.Specialization) == "" && strings.TrimSpace(filter.Area) == ""
}

func (a *CachedDoctorAdapter) getCached(ctx context.Context, key string, dest interface{}) bool {
	data, err := a.cache.Get(ctx, key)
	if err != nil {
		if err != providers.ErrCacheMiss {
			observability.LoggerFromContext(ctx).Warn().Err(err).Str("key", key).Msg("doctor cache read failed")
		}
		observability.RecordCacheMiss(ctx, a.metrics, key)
		return false
	}
	if err := json.Unmarshal(data, dest); err != nil {
		observability.LoggerFromContext(ctx).Warn().Err(err).Str("key", key).Msg("discarding undecodable cache entry")
		observability.RecordCacheMiss(ctx, a.metrics, key)
		return false
	}
	observability.RecordCacheHit(ctx, a.metrics, key)
	return true
}

func (a *CachedDoctorAdapter) setCached(ctx context.Context, key string, value interface{}, ttl int) {
	data, err := json.Marshal(value)
	if err != nil {
		return
	}
	if err := a.cache.Set(ctx, key, data, ttl); err != nil {
		observability.LoggerFromContext(ctx).Warn().Err(err).Str("key", key).Msg("doctor cache write failed")
	}
}

// Invalidate drops the cached doctor and every cached list
func (a *CachedDoctorAdapter) Invalidate(ctx context.Context, id string) {
	keys := make([]string, 0, len(cachedListStatuses)+1)
	if id != "" {
		keys = append(keys, doctorCacheKey(id))
	}
	for _, s := range cachedListStatuses {
		keys = append(keys, doctorsListCacheKey(s))
	}
	for _, key := range keys {
		if err := a.cache.Delete(ctx, key); err != nil {
			observability.LoggerFromContext(ctx).Warn().Err(err).Str("key", key).Msg("doctor cache invalidation failed")
		}
	}
}

// Create creates a doctor and invalidates cached lists
func (a *CachedDoctorAdapter) Create(ctx context.Context, doctor *entities.Doctor) error {
	if err := a.adapter.Create(ctx, doctor); err != nil {
		return err
	}
	a.Invalidate(ctx, doctor.ID)
	return nil
}

// GetByID retrieves a doctor by ID with caching
func (a *CachedDoctorAdapter) GetByID(ctx context.Context, id string) (*entities.Doctor, error) {
	key := doctorCacheKey(id)

	var cached entities.Doctor
	if a.getCached(ctx, key, &cached) {
		return &cached, nil
	}

	doctor, err := a.adapter.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	a.setCached(ctx, key, doctor, doctorByIDTTL)
	return doctor, nil
}

// GetByIDs goes to the underlying repository; batches are served by the loader
func (a *CachedDoctorAdapter) GetByIDs(ctx context.Context, ids []string) ([]*entities.Doctor, error) {
	return a.adapter.GetByIDs(ctx, ids)
}

// List retrieves doctors, caching status-only filters
func (a *CachedDoctorAdapter) List(ctx context.Context, filter repositories.DoctorFilter) ([]*entities.Doctor, error) {
	if !cacheableFilter(filter) {
		return a.adapter.List(ctx, filter)
	}

	key := doctorsListCacheKey(filter.Status)
	var cached []*entities.Doctor
	if a.getCached(ctx, key, &cached) {
		return cached, nil
	}

	doctors, err := a.adapter.List(ctx, filter)
	if err != nil {
		return nil, err
	}
	a.setCached(ctx, key, doctors, doctorsListTTL)
	return doctors, nil
}

// UpdateStatus updates the status and invalidates cache entries
func (a *CachedDoctorAdapter) UpdateStatus(ctx context.Context, id string, status entities.DoctorStatus) error {
	if err := a.adapter.UpdateStatus(ctx, id, status); err != nil {
		return err
	}
	a.Invalidate(ctx, id)
	return nil
}

// UpdateSchedule updates the schedule and invalidates cache entries
func (a *CachedDoctorAdapter) UpdateSchedule(ctx context.Context, id string, schedule entities.WeeklySchedule) error {
	if err := a.adapter.UpdateSchedule(ctx, id, schedule); err != nil {
		return err
	}
	a.Invalidate(ctx, id)
	return nil
}

// AppendHistory is not cached
func (a *CachedDoctorAdapter) AppendHistory(ctx context.Context, entry *entities.DoctorHistoryEntry) error {
	return a.adapter.AppendHistory(ctx, entry)
}
