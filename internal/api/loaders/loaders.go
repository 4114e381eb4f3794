package loaders

import (
	"context"
	"net/http"

	"github.com/graph-gophers/dataloader/v7"

	"github.com/sociodent/sociodent/backend/internal/domain/entities"
	apperrors "github.com/sociodent/sociodent/backend/pkg/errors"
)

type ctxKey string

const loadersKey ctxKey = "dataloaders"

// DoctorReader is the slice of the doctor repository the loaders need
type DoctorReader interface {
	GetByIDs(ctx context.Context, ids []string) ([]*entities.Doctor, error)
}

// Loaders contains the per-request dataloaders
type Loaders struct {
	DoctorLoader *dataloader.Loader[string, *entities.Doctor]
}

// NewLoaders creates a new instance of Loaders
func NewLoaders(doctors DoctorReader) *Loaders {
	return &Loaders{
		DoctorLoader: dataloader.NewBatchedLoader(doctorBatchFn(doctors)),
	}
}

func doctorBatchFn(doctors DoctorReader) dataloader.BatchFunc[string, *entities.Doctor] {
	return func(ctx context.Context, keys []string) []*dataloader.Result[*entities.Doctor] {
		results := make([]*dataloader.Result[*entities.Doctor], len(keys))
		found, err := doctors.GetByIDs(ctx, keys)

		byID := make(map[string]*entities.Doctor, len(found))
		if err == nil {
			for _, d := range found {
				byID[d.ID] = d
			}
		}

		for i, key := range keys {
			if err != nil {
				results[i] = &dataloader.Result[*entities.Doctor]{Error: err}
			} else if d, ok := byID[key]; ok {
				results[i] = &dataloader.Result[*entities.Doctor]{Data: d}
			} else {
				results[i] = &dataloader.Result[*entities.Doctor]{Error: apperrors.NewDoctorNotFoundError(key)}
			}
		}
		return results
	}
}

// For returns the loaders for a given context, or nil
func For(ctx context.Context) *Loaders {
	l, _ := ctx.Value(loadersKey).(*Loaders)
	return l
}

// WithLoaders returns a new context with the loaders attached
func WithLoaders(ctx context.Context, loaders *Loaders) context.Context {
	return context.WithValue(ctx, loadersKey, loaders)
}

// Middleware attaches a fresh set of loaders to every request
func Middleware(doctors DoctorReader) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := WithLoaders(r.Context(), NewLoaders(doctors))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// DoctorNames resolves display names for ids in one batch. Unknown ids are
// left out of the result. Without loaders in ctx it returns an empty map.
func DoctorNames(ctx context.Context, ids []string) map[string]string {
	names := make(map[string]string, len(ids))
	l := For(ctx)
	if l == nil || len(ids) == 0 {
		return names
	}

	thunk := l.DoctorLoader.LoadMany(ctx, ids)
	doctors, _ := thunk()
	for _, d := range doctors {
		if d != nil {
			names[d.ID] = d.Name
		}
	}
	return names
}
