package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Schema is the SQL DDL for the transcription_jobs table. Execute it via
// [PostgresStore.Migrate] or apply it manually during deployment.
const Schema = `
CREATE TABLE IF NOT EXISTS transcription_jobs (
    id         TEXT PRIMARY KEY,
    status     TEXT NOT NULL DEFAULT 'queued',
    params     JSONB NOT NULL DEFAULT '{}',
    text       TEXT NOT NULL DEFAULT '',
    error      TEXT NOT NULL DEFAULT '',
    segments   INTEGER NOT NULL DEFAULT 0,
    created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
    updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS idx_transcription_jobs_created ON transcription_jobs(created_at DESC);
`

// DB is the database interface used by [PostgresStore]. Both *pgxpool.Pool
// and *pgx.Conn satisfy this interface.
type DB interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// PostgresStore is a [Store] backed by a PostgreSQL database. Run parameters
// are stored as JSONB.
type PostgresStore struct {
	db DB
}

var _ Store = (*PostgresStore)(nil)

// NewPostgresStore creates a new [PostgresStore] that uses the given database
// connection or pool. The caller is responsible for calling
// [PostgresStore.Migrate] to ensure the schema exists before issuing queries.
func NewPostgresStore(db DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Migrate executes the [Schema] DDL against the database.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("jobs: migrate: %w", err)
	}
	return nil
}

// Create implements Store.
func (s *PostgresStore) Create(ctx context.Context, job *Job) error {
	params, err := json.Marshal(job.Params)
	if err != nil {
		return fmt.Errorf("jobs: marshal params: %w", err)
	}

	const query = `
		INSERT INTO transcription_jobs (id, status, params, text, error, segments)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at, updated_at`

	err = s.db.QueryRow(ctx, query,
		job.ID, string(job.Status), params, job.Text, job.Error, job.Segments,
	).Scan(&job.CreatedAt, &job.UpdatedAt)
	if err != nil {
		if isDuplicateKeyError(err) {
			return &duplicateError{id: job.ID}
		}
		return fmt.Errorf("jobs: create: %w", err)
	}
	return nil
}

// Get implements Store.
func (s *PostgresStore) Get(ctx context.Context, id string) (*Job, error) {
	const query = `
		SELECT id, status, params, text, error, segments, created_at, updated_at
		FROM transcription_jobs
		WHERE id = $1`

	var (
		job    Job
		status string
		params []byte
	)
	err := s.db.QueryRow(ctx, query, id).Scan(
		&job.ID, &status, &params, &job.Text, &job.Error, &job.Segments,
		&job.CreatedAt, &job.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("jobs: get %q: %w", id, err)
	}
	job.Status = Status(status)
	if err := json.Unmarshal(params, &job.Params); err != nil {
		return nil, fmt.Errorf("jobs: unmarshal params: %w", err)
	}
	return &job, nil
}

// Update implements Store.
func (s *PostgresStore) Update(ctx context.Context, job *Job) error {
	params, err := json.Marshal(job.Params)
	if err != nil {
		return fmt.Errorf("jobs: marshal params: %w", err)
	}

	const query = `
		UPDATE transcription_jobs SET
			status = $2, params = $3, text = $4, error = $5, segments = $6,
			updated_at = now()
		WHERE id = $1
		RETURNING created_at, updated_at`

	err = s.db.QueryRow(ctx, query,
		job.ID, string(job.Status), params, job.Text, job.Error, job.Segments,
	).Scan(&job.CreatedAt, &job.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrNotFound
		}
		return fmt.Errorf("jobs: update: %w", err)
	}
	return nil
}

// List implements Store.
func (s *PostgresStore) List(ctx context.Context, limit int) ([]Job, error) {
	var (
		rows pgx.Rows
		err  error
	)
	if limit > 0 {
		const query = `
			SELECT id, status, params, text, error, segments, created_at, updated_at
			FROM transcription_jobs
			ORDER BY created_at DESC, id DESC
			LIMIT $1`
		rows, err = s.db.Query(ctx, query, limit)
	} else {
		const query = `
			SELECT id, status, params, text, error, segments, created_at, updated_at
			FROM transcription_jobs
			ORDER BY created_at DESC, id DESC`
		rows, err = s.db.Query(ctx, query)
	}
	if err != nil {
		return nil, fmt.Errorf("jobs: list: %w", err)
	}
	defer rows.Close()

	var out []Job
	for rows.Next() {
		var (
			job    Job
			status string
			params []byte
		)
		if err := rows.Scan(
			&job.ID, &status, &params, &job.Text, &job.Error, &job.Segments,
			&job.CreatedAt, &job.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("jobs: list scan: %w", err)
		}
		job.Status = Status(status)
		if err := json.Unmarshal(params, &job.Params); err != nil {
			return nil, fmt.Errorf("jobs: unmarshal params: %w", err)
		}
		out = append(out, job)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("jobs: list: %w", err)
	}
	return out, nil
}

// isDuplicateKeyError checks whether a PostgreSQL error is a unique-violation
// (SQLSTATE 23505).
func isDuplicateKeyError(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}
