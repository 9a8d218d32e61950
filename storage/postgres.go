package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"dhc_scraper/models"
)

type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(ctx context.Context, connString string) (*PostgresStore, error) {
	config, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	config.MaxConns = 10
	config.MinConns = 2
	config.MaxConnLifetime = 30 * time.Minute
	config.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}

	store := &PostgresStore{pool: pool}
	if err := store.migrate(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return store, nil
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

func (s *PostgresStore) migrate(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS query_logs (
		id BIGSERIAL PRIMARY KEY,
		correlation_id TEXT NOT NULL,
		case_type TEXT,
		case_number TEXT,
		filing_year INTEGER,
		status TEXT,
		error_detail TEXT,
		queried_at TIMESTAMPTZ
	);

	CREATE TABLE IF NOT EXISTS case_records (
		id BIGSERIAL PRIMARY KEY,
		query_log_id BIGINT NOT NULL REFERENCES query_logs(id),
		parties JSONB,
		filing_date TIMESTAMPTZ,
		next_hearing_date TIMESTAMPTZ,
		orders JSONB
	);

	CREATE INDEX IF NOT EXISTS idx_query_logs_time ON query_logs(queried_at);
	CREATE INDEX IF NOT EXISTS idx_query_logs_status ON query_logs(status, queried_at);
	CREATE INDEX IF NOT EXISTS idx_case_records_log ON case_records(query_log_id);
	`
	_, err := s.pool.Exec(ctx, schema)
	return err
}

func (s *PostgresStore) RecordQuery(ctx context.Context, entry *models.QueryLog) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	err = tx.QueryRow(ctx, `
		INSERT INTO query_logs (correlation_id, case_type, case_number, filing_year, status, error_detail, queried_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id`,
		entry.CorrelationID, entry.CaseType, entry.CaseNumber, entry.FilingYear,
		entry.Status, entry.ErrorDetail, entry.Timestamp).Scan(&entry.ID)
	if err != nil {
		return err
	}

	if entry.Case != nil {
		parties, _ := json.Marshal(entry.Case.Parties)
		orders, _ := json.Marshal(entry.Case.Orders)

		var nextHearing interface{}
		if entry.Case.NextHearingDate != nil {
			nextHearing = *entry.Case.NextHearingDate
		}

		_, err = tx.Exec(ctx, `
			INSERT INTO case_records (query_log_id, parties, filing_date, next_hearing_date, orders)
			VALUES ($1, $2, $3, $4, $5)`,
			entry.ID, parties, entry.Case.FilingDate, nextHearing, orders)
		if err != nil {
			return err
		}
	}

	return tx.Commit(ctx)
}

func (s *PostgresStore) RecentQueries(ctx context.Context, limit int) ([]models.QueryLog, error) {
	return s.queryLogs(ctx, `
		SELECT l.id, l.correlation_id, l.case_type, l.case_number, l.filing_year, l.status, l.error_detail, l.queried_at,
			c.parties, c.filing_date, c.next_hearing_date, c.orders
		FROM query_logs l
		LEFT JOIN case_records c ON c.query_log_id = l.id
		ORDER BY l.queried_at DESC LIMIT $1`, limit)
}

func (s *PostgresStore) QueriesByStatus(ctx context.Context, status models.QueryStatus, limit int) ([]models.QueryLog, error) {
	return s.queryLogs(ctx, `
		SELECT l.id, l.correlation_id, l.case_type, l.case_number, l.filing_year, l.status, l.error_detail, l.queried_at,
			c.parties, c.filing_date, c.next_hearing_date, c.orders
		FROM query_logs l
		LEFT JOIN case_records c ON c.query_log_id = l.id
		WHERE l.status = $1
		ORDER BY l.queried_at DESC LIMIT $2`, status, limit)
}

// PurgeOlderThan drops log entries past the retention window. Used by
// the maintenance scheduler, never by the query path.
func (s *PostgresStore) PurgeOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	_, err := s.pool.Exec(ctx, `
		DELETE FROM case_records WHERE query_log_id IN
			(SELECT id FROM query_logs WHERE queried_at < $1)`, cutoff)
	if err != nil {
		return 0, err
	}
	tag, err := s.pool.Exec(ctx, `DELETE FROM query_logs WHERE queried_at < $1`, cutoff)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (s *PostgresStore) queryLogs(ctx context.Context, query string, args ...interface{}) ([]models.QueryLog, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var logs []models.QueryLog
	for rows.Next() {
		var entry models.QueryLog
		var detail sql.NullString
		var parties, orders []byte
		var filingDate, nextHearing sql.NullTime

		if err := rows.Scan(&entry.ID, &entry.CorrelationID, &entry.CaseType, &entry.CaseNumber,
			&entry.FilingYear, &entry.Status, &detail, &entry.Timestamp,
			&parties, &filingDate, &nextHearing, &orders); err != nil {
			return nil, err
		}
		entry.ErrorDetail = detail.String

		if parties != nil {
			entry.Case = scanCaseRecord(&entry, string(parties), string(orders), filingDate, nextHearing)
		}
		logs = append(logs, entry)
	}
	return logs, rows.Err()
}
