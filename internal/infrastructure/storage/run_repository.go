package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"

	"DailyBriefing/internal/apperr"
	"DailyBriefing/internal/domain"
	"DailyBriefing/internal/ports"
)

const (
	DriverSQLite   = "sqlite3"
	DriverPostgres = "postgres"

	runsTable    = "briefing_runs"
	maxListLimit = 200
)

var runColumns = []string{
	"id", "run_trigger", "started_at", "finished_at", "status",
	"failed_stage", "error_kind", "error_reason",
	"message", "delivered_to", "score", "prompt_digest",
}

var schemaDDL = map[string]string{
	DriverSQLite: `CREATE TABLE IF NOT EXISTS briefing_runs (
	id TEXT PRIMARY KEY,
	run_trigger TEXT NOT NULL,
	started_at DATETIME NOT NULL,
	finished_at DATETIME NOT NULL,
	status TEXT NOT NULL,
	failed_stage TEXT NOT NULL DEFAULT '',
	error_kind TEXT NOT NULL DEFAULT '',
	error_reason TEXT NOT NULL DEFAULT '',
	message TEXT NOT NULL DEFAULT '',
	delivered_to TEXT NOT NULL DEFAULT '',
	score REAL,
	prompt_digest TEXT NOT NULL DEFAULT ''
)`,
	DriverPostgres: `CREATE TABLE IF NOT EXISTS briefing_runs (
	id TEXT PRIMARY KEY,
	run_trigger TEXT NOT NULL,
	started_at TIMESTAMPTZ NOT NULL,
	finished_at TIMESTAMPTZ NOT NULL,
	status TEXT NOT NULL,
	failed_stage TEXT NOT NULL DEFAULT '',
	error_kind TEXT NOT NULL DEFAULT '',
	error_reason TEXT NOT NULL DEFAULT '',
	message TEXT NOT NULL DEFAULT '',
	delivered_to TEXT NOT NULL DEFAULT '',
	score DOUBLE PRECISION,
	prompt_digest TEXT NOT NULL DEFAULT ''
)`,
}

// RunRepository persists run records into SQLite or Postgres.
type RunRepository struct {
	db      *sql.DB
	builder sq.StatementBuilderType
}

var _ ports.RunRepository = (*RunRepository)(nil)

// Open connects to driver/dsn and creates the schema if needed.
func Open(ctx context.Context, driver, dsn string) (*RunRepository, error) {
	driver = strings.ToLower(strings.TrimSpace(driver))
	if driver == "postgresql" {
		driver = DriverPostgres
	}
	if _, ok := schemaDDL[driver]; !ok {
		return nil, apperr.Configuration("storage_driver", "unsupported storage driver %q", driver)
	}
	if dsn == "" {
		return nil, apperr.Configuration("storage_dsn", "storage dsn is empty")
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", driver, err)
	}
	if driver == DriverSQLite {
		// Every new connection to :memory: would see an empty database.
		db.SetMaxOpenConns(1)
	}

	repo := NewRunRepository(db, driver)
	if err := repo.Migrate(ctx, driver); err != nil {
		_ = db.Close()
		return nil, err
	}
	return repo, nil
}

// NewRunRepository wires an existing sql.DB; driver selects the placeholder format.
func NewRunRepository(db *sql.DB, driver string) *RunRepository {
	var format sq.PlaceholderFormat = sq.Question
	if driver == DriverPostgres {
		format = sq.Dollar
	}
	return &RunRepository{db: db, builder: sq.StatementBuilder.PlaceholderFormat(format)}
}

// Migrate creates the runs table.
func (r *RunRepository) Migrate(ctx context.Context, driver string) error {
	ddl, ok := schemaDDL[driver]
	if !ok {
		return apperr.Configuration("storage_driver", "unsupported storage driver %q", driver)
	}
	if _, err := r.db.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("create %s: %w", runsTable, err)
	}
	return nil
}

func (r *RunRepository) Close() error {
	if r == nil || r.db == nil {
		return nil
	}
	return r.db.Close()
}

// SaveRun inserts the record.
func (r *RunRepository) SaveRun(ctx context.Context, record domain.RunRecord) error {
	var score sql.NullFloat64
	if record.Score != nil {
		score = sql.NullFloat64{Float64: *record.Score, Valid: true}
	}

	query, args, err := r.builder.Insert(runsTable).
		Columns(runColumns...).
		Values(
			record.ID,
			string(record.Trigger),
			record.StartedAt.UTC(),
			record.FinishedAt.UTC(),
			string(record.Status),
			record.FailedStage,
			record.ErrorKind,
			record.ErrorReason,
			record.Message,
			record.DeliveredTo,
			score,
			record.PromptDigest,
		).
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}

	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("insert run %s: %w", record.ID, err)
	}
	return nil
}

// ListRuns returns the most recent runs first.
func (r *RunRepository) ListRuns(ctx context.Context, limit int) ([]domain.RunRecord, error) {
	if limit <= 0 || limit > maxListLimit {
		limit = maxListLimit
	}

	query, args, err := r.builder.Select(runColumns...).
		From(runsTable).
		OrderBy("started_at DESC", "id DESC").
		Limit(uint64(limit)).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}

	var records []domain.RunRecord
	for rows.Next() {
		record, err := scanRun(rows)
		if err != nil {
			_ = rows.Close()
			return nil, err
		}
		records = append(records, record)
	}

	if rowsErr := rows.Err(); rowsErr != nil {
		_ = rows.Close()
		return nil, fmt.Errorf("rows iteration: %w", rowsErr)
	}

	if closeErr := rows.Close(); closeErr != nil {
		return nil, fmt.Errorf("close rows: %w", closeErr)
	}

	return records, nil
}

// GetRun returns domain.ErrRunNotFound for an unknown id.
func (r *RunRepository) GetRun(ctx context.Context, id string) (domain.RunRecord, error) {
	query, args, err := r.builder.Select(runColumns...).
		From(runsTable).
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return domain.RunRecord{}, fmt.Errorf("build select: %w", err)
	}

	record, err := scanRun(r.db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return domain.RunRecord{}, domain.ErrRunNotFound
	}
	return record, err
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(row scanner) (domain.RunRecord, error) {
	var (
		record     domain.RunRecord
		trigger    string
		status     string
		startedAt  time.Time
		finishedAt time.Time
		score      sql.NullFloat64
	)
	err := row.Scan(
		&record.ID,
		&trigger,
		&startedAt,
		&finishedAt,
		&status,
		&record.FailedStage,
		&record.ErrorKind,
		&record.ErrorReason,
		&record.Message,
		&record.DeliveredTo,
		&score,
		&record.PromptDigest,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return record, err
	}
	if err != nil {
		return record, fmt.Errorf("scan run: %w", err)
	}

	record.Trigger = domain.Trigger(trigger)
	record.Status = domain.RunStatus(status)
	record.StartedAt = startedAt.UTC()
	record.FinishedAt = finishedAt.UTC()
	if score.Valid {
		value := score.Float64
		record.Score = &value
	}
	return record, nil
}
