// Package ingest implements the CSV import pipeline: parse the uploaded
// file, validate each row, and hand all valid records to the store as one
// batch. Each import runs synchronously inside its request; the only shared
// state is the concurrency limiter.
package ingest

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/mfcampos/pessoas-api/internal/logging"
	"github.com/mfcampos/pessoas-api/internal/person"
	"github.com/mfcampos/pessoas-api/internal/store"
)

// ErrNoValidRows is returned when parsing succeeded but every row was
// rejected, or the file had no data rows at all. The store is not called.
var ErrNoValidRows = errors.New("no valid rows in CSV file")

// SkippedRow records why a data row was dropped. Skipped rows never fail
// the import; they are kept for logging and the upload history counts.
type SkippedRow struct {
	Line   int    // 1-indexed CSV line number, header is line 1
	Reason string
}

// Result is the outcome of one import.
type Result struct {
	UploadID  string
	FileName  string
	TotalRows int // data rows seen (header excluded)
	Inserted  int
	Skipped   []SkippedRow
	Duration  time.Duration
}

// Service runs CSV imports against a store.
type Service struct {
	store   store.Store
	limiter *Limiter
	timeout time.Duration
}

// NewService creates an import service. maxConcurrent and maxWait bound
// parallel imports; timeout caps a single import end to end.
func NewService(st store.Store, maxConcurrent int, maxWait, timeout time.Duration) *Service {
	return &Service{
		store:   st,
		limiter: NewLimiter(maxConcurrent, maxWait),
		timeout: timeout,
	}
}

// WaitForDrain blocks until all in-flight imports finish or ctx expires.
// Used by main during graceful shutdown.
func (s *Service) WaitForDrain(ctx context.Context) error {
	return s.limiter.WaitForDrain(ctx)
}

// ActiveImports returns the number of imports currently running.
func (s *Service) ActiveImports() int {
	return s.limiter.ActiveCount()
}

// Ingest parses r as CSV, validates each row in order, and bulk-inserts the
// valid records through the store in exactly one call. It returns
// ErrNoValidRows when nothing survives validation, ErrTooManyImports when
// the concurrency limit is saturated, and the store's error (wrapped) when
// persistence fails. The store is called zero or one times per Ingest.
func (s *Service) Ingest(ctx context.Context, fileName string, r io.Reader) (*Result, error) {
	if err := s.limiter.Acquire(ctx); err != nil {
		return nil, err
	}
	defer s.limiter.Release()

	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	start := time.Now()
	result := &Result{
		UploadID: uuid.New().String(),
		FileName: fileName,
	}
	logger := logging.WithFields(ctx, "upload_id", result.UploadID, "file", fileName)

	records, skipped, total, err := parseAndValidate(r)
	if err != nil {
		return nil, err
	}
	result.TotalRows = total
	result.Skipped = skipped

	for _, sk := range skipped {
		logger.Debug("row skipped", "line", sk.Line, "reason", sk.Reason)
	}

	if len(records) == 0 {
		logger.Info("import rejected: no valid rows", "total_rows", total)
		return nil, ErrNoValidRows
	}

	inserted, err := s.store.BulkCreate(ctx, records)
	if err != nil {
		return nil, fmt.Errorf("persist records: %w", err)
	}
	result.Inserted = int(inserted)
	result.Duration = time.Since(start)

	// History is best effort: the batch already committed, so a history
	// failure is logged and swallowed rather than turned into a 5xx.
	if err := s.store.RecordUpload(ctx, store.Upload{
		ID:        result.UploadID,
		FileName:  fileName,
		TotalRows: result.TotalRows,
		Inserted:  result.Inserted,
		Skipped:   len(result.Skipped),
		Duration:  result.Duration,
	}); err != nil {
		logger.Warn("failed to record upload history", "error", err)
	}

	logger.Info("import complete",
		"total_rows", result.TotalRows,
		"inserted", result.Inserted,
		"skipped", len(result.Skipped),
		"duration_ms", result.Duration.Milliseconds(),
	)
	return result, nil
}

// parseAndValidate reads the CSV stream and returns the ordered valid
// records, the skipped rows, and the count of data rows seen.
//
// The first record is the header; matching is case-insensitive and extra
// columns are ignored. Rows shorter than the header just lack those keys,
// which the validator treats as empty fields.
func parseAndValidate(r io.Reader) ([]person.Record, []SkippedRow, int, error) {
	reader := csv.NewReader(wrapReader(r))
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	header, err := reader.Read()
	if err == io.EOF {
		return nil, nil, 0, nil
	}
	if err != nil {
		return nil, nil, 0, fmt.Errorf("read CSV header: %w", err)
	}
	idx := headerIndex(header)

	var (
		records []person.Record
		skipped []SkippedRow
		total   int
	)
	line := 1 // header
	for {
		row, err := reader.Read()
		line++
		if err == io.EOF {
			break
		}
		if err != nil {
			// A malformed line is a bad row, not a bad file.
			skipped = append(skipped, SkippedRow{Line: line, Reason: err.Error()})
			total++
			continue
		}
		if isEmptyRow(row) {
			continue
		}
		total++

		rec, ok := person.Validate(rawRow(row, idx))
		if !ok {
			skipped = append(skipped, SkippedRow{Line: line, Reason: "missing required field"})
			continue
		}
		records = append(records, rec)
	}

	return records, skipped, total, nil
}

// headerIndex maps lowercased, cleaned column names to their position.
func headerIndex(header []string) map[string]int {
	idx := make(map[string]int, len(header))
	for i, h := range header {
		idx[strings.ToLower(cleanCell(h))] = i
	}
	return idx
}

// rawRow projects a CSV row onto the required columns using the header
// index. Columns missing from the header or beyond the row's length are
// simply absent from the map.
func rawRow(row []string, idx map[string]int) person.RawRow {
	raw := make(person.RawRow, len(person.Columns))
	for _, col := range person.Columns {
		pos, ok := idx[col]
		if !ok || pos >= len(row) {
			continue
		}
		raw[col] = cleanCell(row[pos])
	}
	return raw
}

// cleanCell strips common CSV artifacts: surrounding whitespace, the Excel
// formula prefix (="value"), and stray surrounding quotes.
func cleanCell(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, `="`) && strings.HasSuffix(s, `"`) {
		s = s[2 : len(s)-1]
	} else if strings.HasPrefix(s, "=") {
		s = s[1:]
	}
	return strings.Trim(s, `"'`)
}

func isEmptyRow(row []string) bool {
	for _, v := range row {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}
