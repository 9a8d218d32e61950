package storage

import (
	"context"

	"dhc_scraper/models"
)

// QueryStore is an append-only log of every query the service has run.
// Entries are never updated or deleted by the query path; cleanup is a
// separate maintenance concern.
type QueryStore interface {
	RecordQuery(ctx context.Context, entry *models.QueryLog) error
	RecentQueries(ctx context.Context, limit int) ([]models.QueryLog, error)
	QueriesByStatus(ctx context.Context, status models.QueryStatus, limit int) ([]models.QueryLog, error)
	Close() error
}
