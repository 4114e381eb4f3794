package search

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/typesense/typesense-go/v2/typesense/api"
	"github.com/typesense/typesense-go/v2/typesense/api/pointer"

	"github.com/sociodent/sociodent/backend/internal/domain/entities"
	"github.com/sociodent/sociodent/backend/internal/domain/providers"
	tsclient "github.com/sociodent/sociodent/backend/internal/infrastructure/clients/typesense"
)

const defaultSearchLimit = 20

// TypesenseAdapter implements the doctor directory index using Typesense
type TypesenseAdapter struct {
	client *tsclient.Client
}

var _ providers.DoctorIndex = (*TypesenseAdapter)(nil)

// NewTypesenseAdapter creates a new Typesense adapter
func NewTypesenseAdapter(client *tsclient.Client) *TypesenseAdapter {
	return &TypesenseAdapter{client: client}
}

// Index upserts a doctor document
func (a *TypesenseAdapter) Index(ctx context.Context, doctor *entities.Doctor) error {
	_, err := a.client.Client().Collection(tsclient.DoctorsCollection).Documents().Upsert(ctx, doctorDocument(doctor))
	if err != nil {
		return fmt.Errorf("failed to index doctor: %w", err)
	}
	return nil
}

// Delete removes a doctor from the index
func (a *TypesenseAdapter) Delete(ctx context.Context, id string) error {
	_, err := a.client.Client().Collection(tsclient.DoctorsCollection).Document(id).Delete(ctx)
	if err != nil {
		return fmt.Errorf("failed to delete doctor from index: %w", err)
	}
	return nil
}

// Search returns matching doctor IDs ranked by text relevance
func (a *TypesenseAdapter) Search(ctx context.Context, params providers.DoctorSearchParams) ([]string, error) {
	limit := params.Limit
	if limit <= 0 {
		limit = defaultSearchLimit
	}

	q := strings.TrimSpace(params.Query)
	if q == "" {
		q = "*"
	}

	searchParams := &api.SearchCollectionParams{
		Q:        pointer.String(q),
		QueryBy:  pointer.String("name,specialization,area"),
		FilterBy: pointer.String(buildDoctorFilter(params)),
		Page:     pointer.Int(params.Offset/limit + 1),
		PerPage:  pointer.Int(limit),
	}

	result, err := a.client.Client().Collection(tsclient.DoctorsCollection).Documents().Search(ctx, searchParams)
	if err != nil {
		return nil, fmt.Errorf("failed to search doctors: %w", err)
	}

	ids := []string{}
	if result.Hits == nil {
		return ids, nil
	}
	for _, hit := range *result.Hits {
		if hit.Document == nil {
			continue
		}
		if id, ok := (*hit.Document)["id"].(string); ok {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

// Only approved doctors are searchable.
func buildDoctorFilter(params providers.DoctorSearchParams) string {
	filters := []string{"status:=" + string(entities.DoctorStatusApproved)}
	if s := strings.TrimSpace(params.Specialization); s != "" {
		filters = append(filters, "specialization:="+quoteFilterValue(s))
	}
	if s := strings.TrimSpace(params.Area); s != "" {
		filters = append(filters, "area:="+quoteFilterValue(s))
	}
	return strings.Join(filters, " && ")
}

func quoteFilterValue(v string) string {
	return "`" + strings.ReplaceAll(v, "`", "") + "`"
}

func doctorDocument(d *entities.Doctor) map[string]interface{} {
	days := make([]string, 0, len(d.Schedule))
	for day, s := range d.Schedule {
		if s.Available {
			days = append(days, day)
		}
	}
	sort.Strings(days)

	return map[string]interface{}{
		"id":             d.ID,
		"name":           d.Name,
		"specialization": d.Specialization,
		"area":           d.Area,
		"status":         string(d.Status),
		"available_days": days,
		"created_at":     d.CreatedAt.Unix(),
	}
}
