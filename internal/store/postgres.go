package store

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mfcampos/pessoas-api/internal/person"
)

// schema holds the DDL applied on startup. CREATE IF NOT EXISTS keeps boot
// idempotent; there is no migration history to track for two tables.
const schema = `
CREATE TABLE IF NOT EXISTS people (
	id     BIGINT GENERATED ALWAYS AS IDENTITY PRIMARY KEY,
	name   TEXT NOT NULL,
	age    TEXT NOT NULL,
	email  TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS csv_uploads (
	id          UUID PRIMARY KEY,
	file_name   TEXT NOT NULL,
	total_rows  INTEGER NOT NULL,
	inserted    INTEGER NOT NULL,
	skipped     INTEGER NOT NULL,
	duration_ms BIGINT NOT NULL,
	created_at  TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS csv_uploads_created_at_idx ON csv_uploads (created_at DESC);
`

// Postgres implements Store on a pgx connection pool.
type Postgres struct {
	pool *pgxpool.Pool
}

// NewPostgres creates a Postgres store on the given pool.
func NewPostgres(pool *pgxpool.Pool) *Postgres {
	return &Postgres{pool: pool}
}

// EnsureSchema creates the people and csv_uploads tables if they do not exist.
func (p *Postgres) EnsureSchema(ctx context.Context) error {
	if _, err := p.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}

// BulkCreate inserts all records with a single COPY. COPY streams the rows
// in slice order, so insertion order matches input order.
func (p *Postgres) BulkCreate(ctx context.Context, records []person.Record) (int64, error) {
	n, err := p.pool.CopyFrom(ctx,
		pgx.Identifier{"people"},
		[]string{"name", "age", "email"},
		pgx.CopyFromSlice(len(records), func(i int) ([]any, error) {
			rec := records[i]
			return []any{rec.Name, rec.Age, rec.Email}, nil
		}),
	)
	if err != nil {
		return 0, fmt.Errorf("bulk insert people: %w", err)
	}
	return n, nil
}

// RecordUpload appends an entry to the upload history.
func (p *Postgres) RecordUpload(ctx context.Context, u Upload) error {
	id, err := uuid.Parse(u.ID)
	if err != nil {
		return fmt.Errorf("record upload: invalid id %q: %w", u.ID, err)
	}

	_, err = p.pool.Exec(ctx,
		`INSERT INTO csv_uploads (id, file_name, total_rows, inserted, skipped, duration_ms)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		pgtype.UUID{Bytes: id, Valid: true},
		u.FileName,
		u.TotalRows,
		u.Inserted,
		u.Skipped,
		u.Duration.Milliseconds(),
	)
	if err != nil {
		return fmt.Errorf("record upload: %w", err)
	}
	return nil
}

// ListUploads returns the most recent uploads, newest first.
func (p *Postgres) ListUploads(ctx context.Context, limit int) ([]Upload, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := p.pool.Query(ctx,
		`SELECT id, file_name, total_rows, inserted, skipped, duration_ms, created_at
		 FROM csv_uploads
		 ORDER BY created_at DESC
		 LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("list uploads: %w", err)
	}
	defer rows.Close()

	var uploads []Upload
	for rows.Next() {
		var (
			id         pgtype.UUID
			u          Upload
			durationMS int64
		)
		if err := rows.Scan(&id, &u.FileName, &u.TotalRows, &u.Inserted, &u.Skipped, &durationMS, &u.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan upload: %w", err)
		}
		u.ID = uuid.UUID(id.Bytes).String()
		u.Duration = time.Duration(durationMS) * time.Millisecond
		uploads = append(uploads, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list uploads: %w", err)
	}
	return uploads, nil
}

// Ping verifies database connectivity for health checks.
func (p *Postgres) Ping(ctx context.Context) error {
	return p.pool.Ping(ctx)
}
