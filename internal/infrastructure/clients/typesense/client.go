package typesense

import (
	"context"
	"fmt"
	"time"

	"github.com/typesense/typesense-go/v2/typesense"
	"github.com/typesense/typesense-go/v2/typesense/api"
	"github.com/typesense/typesense-go/v2/typesense/api/pointer"

	"github.com/sociodent/sociodent/backend/internal/infrastructure/observability"
	"github.com/sociodent/sociodent/backend/pkg/config"
	"github.com/sociodent/sociodent/backend/pkg/retry"
)

const (
	DoctorsCollection = "doctors"
)

// Client represents a Typesense client
type Client struct {
	client *typesense.Client
}

// NewClient creates a new Typesense client with exponential backoff retry
func NewClient(cfg *config.TypesenseConfig) (*Client, error) {
	client := typesense.NewClient(
		typesense.WithServer(cfg.URL),
		typesense.WithAPIKey(cfg.APIKey),
		typesense.WithConnectionTimeout(5*time.Second),
	)

	logger := observability.GetLogger()
	err := retry.DoWithLog(context.Background(), retry.DefaultConfig(), "Typesense", logger, func() error {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_, err := client.Health(ctx, 2*time.Second)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to Typesense after retries: %w", err)
	}

	logger.Info().Str("url", cfg.URL).Msg("connected to Typesense")
	return &Client{client: client}, nil
}

// NewClientFromTypesense wraps an existing typesense client
func NewClientFromTypesense(client *typesense.Client) *Client {
	return &Client{client: client}
}

// Client returns the underlying Typesense client
func (c *Client) Client() *typesense.Client {
	return c.client
}

// DoctorsSchema is the collection schema for the doctor directory
func DoctorsSchema() *api.CollectionSchema {
	return &api.CollectionSchema{
		Name: DoctorsCollection,
		Fields: []api.Field{
			{Name: "id", Type: "string"},
			{Name: "name", Type: "string"},
			{Name: "specialization", Type: "string", Facet: pointer.True()},
			{Name: "area", Type: "string", Facet: pointer.True()},
			{Name: "status", Type: "string", Facet: pointer.True()},
			{Name: "available_days", Type: "string[]", Facet: pointer.True(), Optional: pointer.True()},
			{Name: "created_at", Type: "int64"},
		},
		DefaultSortingField: pointer.String("created_at"),
	}
}

// InitSchema ensures the doctors collection exists. With reset it is dropped first.
func (c *Client) InitSchema(ctx context.Context, reset bool) error {
	logger := observability.LoggerFromContext(ctx)

	collections, err := c.client.Collections().Retrieve(ctx)
	if err != nil {
		return fmt.Errorf("failed to retrieve collections: %w", err)
	}

	for _, col := range collections {
		if col.Name != DoctorsCollection {
			continue
		}
		if !reset {
			logger.Debug().Str("collection", DoctorsCollection).Msg("typesense collection already exists")
			return nil
		}
		if _, err := c.client.Collection(DoctorsCollection).Delete(ctx); err != nil {
			return fmt.Errorf("failed to drop collection: %w", err)
		}
		logger.Info().Str("collection", DoctorsCollection).Msg("dropped typesense collection")
	}

	if _, err := c.client.Collections().Create(ctx, DoctorsSchema()); err != nil {
		return fmt.Errorf("failed to create collection: %w", err)
	}

	logger.Info().Str("collection", DoctorsCollection).Msg("created typesense collection")
	return nil
}
