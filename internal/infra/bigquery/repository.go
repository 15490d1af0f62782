// Package bigquery reads billing charges from and publishes joined records to BigQuery.
package bigquery

import (
	"context"
	"fmt"

	"cloud.google.com/go/bigquery"

	"github.com/dvloznov/charge-mapping/internal/config"
	"github.com/dvloznov/charge-mapping/internal/corpus"
	"github.com/dvloznov/charge-mapping/internal/matcher"
)

// Repository holds a shared BigQuery client for the billing dataset.
type Repository struct {
	client       *bigquery.Client
	dataset      string
	chargesTable string
	joinedTable  string
}

// NewRepository creates a client for projectID.
func NewRepository(ctx context.Context, projectID string, cfg config.BigQueryConfig) (*Repository, error) {
	client, err := bigquery.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("NewRepository: creating client: %w", err)
	}
	return NewRepositoryWithClient(client, cfg), nil
}

// NewRepositoryWithClient wraps an existing client.
func NewRepositoryWithClient(client *bigquery.Client, cfg config.BigQueryConfig) *Repository {
	return &Repository{
		client:       client,
		dataset:      cfg.Dataset,
		chargesTable: cfg.ChargesTable,
		joinedTable:  cfg.JoinedTable,
	}
}

// Close closes the BigQuery client connection.
func (r *Repository) Close() error {
	if r.client != nil {
		return r.client.Close()
	}
	return nil
}

// ChargesByKeys delegates to QueryChargesByKeysWithClient for the configured charges table.
func (r *Repository) ChargesByKeys(ctx context.Context, key string, values []string) ([]corpus.BillingCharge, error) {
	return QueryChargesByKeysWithClient(ctx, r.client, r.dataset, r.chargesTable, key, values)
}

// PublishJoined delegates to InsertJoinedRecordsWithClient for the configured joined table.
func (r *Repository) PublishJoined(ctx context.Context, res *matcher.Result) error {
	if r.joinedTable == "" {
		return fmt.Errorf("PublishJoined: no joined table configured")
	}
	return InsertJoinedRecordsWithClient(ctx, r.client, r.dataset, r.joinedTable, res)
}

var _ corpus.ChargeSource = (*Repository)(nil)
