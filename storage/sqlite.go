package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"dhc_scraper/models"
)

type SQLiteStore struct {
	db *sql.DB
}

func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, err
	}

	store := &SQLiteStore{db: db}
	if err := store.migrate(); err != nil {
		return nil, err
	}

	return store, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS query_logs (
		id INTEGER PRIMARY KEY,
		correlation_id TEXT NOT NULL,
		case_type TEXT,
		case_number TEXT,
		filing_year INTEGER,
		status TEXT,
		error_detail TEXT,
		queried_at DATETIME
	);

	CREATE TABLE IF NOT EXISTS case_records (
		id INTEGER PRIMARY KEY,
		query_log_id INTEGER NOT NULL,
		parties JSON,
		filing_date DATETIME,
		next_hearing_date DATETIME,
		orders JSON,
		FOREIGN KEY (query_log_id) REFERENCES query_logs(id)
	);

	CREATE INDEX IF NOT EXISTS idx_query_logs_time ON query_logs(queried_at);
	CREATE INDEX IF NOT EXISTS idx_query_logs_status ON query_logs(status, queried_at);
	CREATE INDEX IF NOT EXISTS idx_case_records_log ON case_records(query_log_id);
	`
	_, err := s.db.Exec(schema)
	return err
}

func (s *SQLiteStore) RecordQuery(ctx context.Context, entry *models.QueryLog) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx, `
		INSERT INTO query_logs (correlation_id, case_type, case_number, filing_year, status, error_detail, queried_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		entry.CorrelationID, entry.CaseType, entry.CaseNumber, entry.FilingYear,
		entry.Status, entry.ErrorDetail, entry.Timestamp)
	if err != nil {
		return err
	}
	logID, err := result.LastInsertId()
	if err != nil {
		return err
	}
	entry.ID = logID

	if entry.Case != nil {
		parties, _ := json.Marshal(entry.Case.Parties)
		orders, _ := json.Marshal(entry.Case.Orders)

		var nextHearing interface{}
		if entry.Case.NextHearingDate != nil {
			nextHearing = *entry.Case.NextHearingDate
		}

		_, err = tx.ExecContext(ctx, `
			INSERT INTO case_records (query_log_id, parties, filing_date, next_hearing_date, orders)
			VALUES (?, ?, ?, ?, ?)`,
			logID, parties, entry.Case.FilingDate, nextHearing, orders)
		if err != nil {
			return err
		}
	}

	return tx.Commit()
}

func (s *SQLiteStore) RecentQueries(ctx context.Context, limit int) ([]models.QueryLog, error) {
	return s.queryLogs(ctx, `
		SELECT l.id, l.correlation_id, l.case_type, l.case_number, l.filing_year, l.status, l.error_detail, l.queried_at,
			c.parties, c.filing_date, c.next_hearing_date, c.orders
		FROM query_logs l
		LEFT JOIN case_records c ON c.query_log_id = l.id
		ORDER BY l.queried_at DESC LIMIT ?`, limit)
}

func (s *SQLiteStore) QueriesByStatus(ctx context.Context, status models.QueryStatus, limit int) ([]models.QueryLog, error) {
	return s.queryLogs(ctx, `
		SELECT l.id, l.correlation_id, l.case_type, l.case_number, l.filing_year, l.status, l.error_detail, l.queried_at,
			c.parties, c.filing_date, c.next_hearing_date, c.orders
		FROM query_logs l
		LEFT JOIN case_records c ON c.query_log_id = l.id
		WHERE l.status = ?
		ORDER BY l.queried_at DESC LIMIT ?`, status, limit)
}

func (s *SQLiteStore) queryLogs(ctx context.Context, query string, args ...interface{}) ([]models.QueryLog, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var logs []models.QueryLog
	for rows.Next() {
		var entry models.QueryLog
		var detail sql.NullString
		var parties, orders sql.NullString
		var filingDate, nextHearing sql.NullTime

		if err := rows.Scan(&entry.ID, &entry.CorrelationID, &entry.CaseType, &entry.CaseNumber,
			&entry.FilingYear, &entry.Status, &detail, &entry.Timestamp,
			&parties, &filingDate, &nextHearing, &orders); err != nil {
			return nil, err
		}
		entry.ErrorDetail = detail.String

		if parties.Valid {
			entry.Case = scanCaseRecord(&entry, parties.String, orders.String, filingDate, nextHearing)
		}
		logs = append(logs, entry)
	}
	return logs, rows.Err()
}

func scanCaseRecord(entry *models.QueryLog, partiesJSON, ordersJSON string, filingDate, nextHearing sql.NullTime) *models.CaseRecord {
	record := &models.CaseRecord{
		CaseType:   entry.CaseType,
		CaseNumber: entry.CaseNumber,
		FilingYear: entry.FilingYear,
	}
	json.Unmarshal([]byte(partiesJSON), &record.Parties)
	json.Unmarshal([]byte(ordersJSON), &record.Orders)
	if filingDate.Valid {
		record.FilingDate = filingDate.Time
	}
	if nextHearing.Valid {
		t := nextHearing.Time
		record.NextHearingDate = &t
	}
	return record
}

// PurgeOlderThan drops log entries past the retention window. Used by
// the maintenance scheduler, never by the query path.
func (s *SQLiteStore) PurgeOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	_, err := s.db.ExecContext(ctx, `
		DELETE FROM case_records WHERE query_log_id IN
			(SELECT id FROM query_logs WHERE queried_at < ?)`, cutoff)
	if err != nil {
		return 0, err
	}
	result, err := s.db.ExecContext(ctx, `DELETE FROM query_logs WHERE queried_at < ?`, cutoff)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}
