package pipeline

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/ProjectAlita/alita-sdk-sub007/pkg/config"
)

// SQLStore persists run history in a relational database through the shared
// connection pool. The schema is created on first use.
type SQLStore struct {
	db      *sql.DB
	dialect string
}

// NewSQLStore opens (or reuses) a pooled connection for the given database
// and ensures the schema exists.
func NewSQLStore(ctx context.Context, pool *config.DBPool, cfg *config.DatabaseConfig) (*SQLStore, error) {
	db, err := pool.Get(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to open run-history database: %w", err)
	}

	store := &SQLStore{db: db, dialect: cfg.Dialect()}
	if err := store.migrate(ctx); err != nil {
		return nil, err
	}
	return store, nil
}

func (s *SQLStore) migrate(ctx context.Context) error {
	timestampType := "TIMESTAMP"
	if s.dialect == "mysql" {
		timestampType = "DATETIME(6)"
	}

	schema := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS pipeline_runs (
	id           VARCHAR(36) PRIMARY KEY,
	run_id       VARCHAR(36) NOT NULL,
	suite        VARCHAR(255) NOT NULL,
	case_name    VARCHAR(255) NOT NULL,
	success      BOOLEAN NOT NULL,
	error        TEXT,
	execution_id VARCHAR(64),
	duration_ms  BIGINT NOT NULL,
	created_at   %s NOT NULL
)`, timestampType)

	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to migrate run-history schema: %w", err)
	}
	return nil
}

// rebind converts ? placeholders to the dialect's form.
func (s *SQLStore) rebind(query string) string {
	if s.dialect != "postgres" {
		return query
	}

	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			fmt.Fprintf(&b, "$%d", n)
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func (s *SQLStore) SaveSuite(ctx context.Context, result *SuiteResult) error {
	records := recordsFromSuite(result)
	if len(records) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	query := s.rebind(`INSERT INTO pipeline_runs
	(id, run_id, suite, case_name, success, error, execution_id, duration_ms, created_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)

	for _, record := range records {
		_, err := tx.ExecContext(ctx, query,
			record.ID, record.RunID, record.Suite, record.Case, record.Success,
			record.Error, record.ExecutionID, record.Duration.Milliseconds(), record.CreatedAt)
		if err != nil {
			return fmt.Errorf("failed to save run record: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit run records: %w", err)
	}
	return nil
}

func (s *SQLStore) List(ctx context.Context, limit int) ([]*RunRecord, error) {
	query := `SELECT id, run_id, suite, case_name, success, error, execution_id, duration_ms, created_at
	FROM pipeline_runs ORDER BY created_at DESC, id`
	args := []any{}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, s.rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list run records: %w", err)
	}
	defer rows.Close()

	var records []*RunRecord
	for rows.Next() {
		var record RunRecord
		var errText, executionID sql.NullString
		var durationMS int64

		err := rows.Scan(&record.ID, &record.RunID, &record.Suite, &record.Case,
			&record.Success, &errText, &executionID, &durationMS, &record.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run record: %w", err)
		}

		record.Error = errText.String
		record.ExecutionID = executionID.String
		record.Duration = time.Duration(durationMS) * time.Millisecond
		records = append(records, &record)
	}
	return records, rows.Err()
}

func (s *SQLStore) Purge(ctx context.Context, olderThan time.Duration) (int64, error) {
	cutoff := time.Now().UTC().Add(-olderThan)

	result, err := s.db.ExecContext(ctx,
		s.rebind(`DELETE FROM pipeline_runs WHERE created_at < ?`), cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to purge run records: %w", err)
	}

	purged, err := result.RowsAffected()
	if err != nil {
		return 0, nil
	}
	return purged, nil
}

// Close is a no-op; the shared pool owns the connection.
func (s *SQLStore) Close() error {
	return nil
}

var _ Store = (*SQLStore)(nil)
