// Package store provides persistence for imported person records and for
// the upload history that tracks each completed import.
package store

import (
	"context"
	"time"

	"github.com/mfcampos/pessoas-api/internal/person"
)

// Store is the persistence boundary consumed by the ingest service.
// BulkCreate receives the full ordered slice of valid records for one
// upload and must persist them as a single batch.
type Store interface {
	// BulkCreate inserts all records in one batch, preserving slice order.
	// Returns the number of rows inserted.
	BulkCreate(ctx context.Context, records []person.Record) (int64, error)

	// RecordUpload appends an entry to the upload history.
	RecordUpload(ctx context.Context, u Upload) error

	// ListUploads returns the most recent uploads, newest first.
	ListUploads(ctx context.Context, limit int) ([]Upload, error)

	// Ping verifies the backing database is reachable.
	Ping(ctx context.Context) error
}

// Upload is one entry in the upload history.
type Upload struct {
	ID        string        `json:"id"`
	FileName  string        `json:"fileName"`
	TotalRows int           `json:"totalRows"`
	Inserted  int           `json:"inserted"`
	Skipped   int           `json:"skipped"`
	Duration  time.Duration `json:"durationNs"`
	CreatedAt time.Time     `json:"createdAt"`
}
