package ingest

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/mfcampos/pessoas-api/internal/person"
	"github.com/mfcampos/pessoas-api/internal/store"
)

// fakeStore records BulkCreate calls for assertions.
type fakeStore struct {
	calls    [][]person.Record
	uploads  []store.Upload
	bulkErr  error
	recError error
}

func (f *fakeStore) BulkCreate(_ context.Context, records []person.Record) (int64, error) {
	// Copy: the service must not rely on the slice surviving the call.
	batch := make([]person.Record, len(records))
	copy(batch, records)
	f.calls = append(f.calls, batch)
	if f.bulkErr != nil {
		return 0, f.bulkErr
	}
	return int64(len(records)), nil
}

func (f *fakeStore) RecordUpload(_ context.Context, u store.Upload) error {
	f.uploads = append(f.uploads, u)
	return f.recError
}

func (f *fakeStore) ListUploads(context.Context, int) ([]store.Upload, error) {
	return f.uploads, nil
}

func (f *fakeStore) Ping(context.Context) error { return nil }

func newTestService(st store.Store) *Service {
	return NewService(st, 2, time.Second, time.Minute)
}

func TestIngest_AllValidRows(t *testing.T) {
	st := &fakeStore{}
	svc := newTestService(st)

	csv := "name,age,email\n" +
		"Maria,31,maria@example.com\n" +
		"Joao,28,joao@example.com\n" +
		"Ana,45,ana@example.com\n" +
		"Pedro,19,pedro@example.com\n"

	result, err := svc.Ingest(context.Background(), "pessoas.csv", strings.NewReader(csv))
	if err != nil {
		t.Fatalf("Ingest() error = %v", err)
	}

	if len(st.calls) != 1 {
		t.Fatalf("BulkCreate called %d times, want exactly 1", len(st.calls))
	}
	got := st.calls[0]
	want := []person.Record{
		{Name: "Maria", Age: "31", Email: "maria@example.com"},
		{Name: "Joao", Age: "28", Email: "joao@example.com"},
		{Name: "Ana", Age: "45", Email: "ana@example.com"},
		{Name: "Pedro", Age: "19", Email: "pedro@example.com"},
	}
	if len(got) != len(want) {
		t.Fatalf("BulkCreate received %d records, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("record[%d] = %+v, want %+v", i, got[i], want[i])
		}
	}

	if result.Inserted != 4 {
		t.Errorf("Inserted = %d, want 4", result.Inserted)
	}
	if result.TotalRows != 4 {
		t.Errorf("TotalRows = %d, want 4", result.TotalRows)
	}
	if len(result.Skipped) != 0 {
		t.Errorf("Skipped = %v, want none", result.Skipped)
	}
	if result.UploadID == "" {
		t.Error("UploadID is empty")
	}
}

func TestIngest_MixedRowsPreserveOrder(t *testing.T) {
	st := &fakeStore{}
	svc := newTestService(st)

	csv := "name,age,email\n" +
		"Maria,31,maria@example.com\n" +
		",28,joao@example.com\n" + // no name: rejected
		"Ana,45,ana@example.com\n" +
		"Pedro,,pedro@example.com\n" + // no age: rejected
		"Carla,22,carla@example.com\n"

	result, err := svc.Ingest(context.Background(), "mixed.csv", strings.NewReader(csv))
	if err != nil {
		t.Fatalf("Ingest() error = %v", err)
	}

	if len(st.calls) != 1 {
		t.Fatalf("BulkCreate called %d times, want exactly 1", len(st.calls))
	}
	want := []string{"Maria", "Ana", "Carla"}
	got := st.calls[0]
	if len(got) != len(want) {
		t.Fatalf("BulkCreate received %d records, want %d", len(got), len(want))
	}
	for i, name := range want {
		if got[i].Name != name {
			t.Errorf("record[%d].Name = %q, want %q (order must match input)", i, got[i].Name, name)
		}
	}

	if len(result.Skipped) != 2 {
		t.Fatalf("Skipped = %d rows, want 2", len(result.Skipped))
	}
	if result.Skipped[0].Line != 3 || result.Skipped[1].Line != 5 {
		t.Errorf("skipped lines = %d,%d, want 3,5", result.Skipped[0].Line, result.Skipped[1].Line)
	}
}

func TestIngest_NoValidRows(t *testing.T) {
	tests := []struct {
		name string
		csv  string
	}{
		{"all rows invalid", "name,age,email\n,31,a@b.com\nAna,,\n"},
		{"header only", "name,age,email\n"},
		{"empty file", ""},
		{"only blank lines after header", "name,age,email\n,,\n , , \n"},
		{"required column missing from header", "nome,idade,email\nMaria,31,maria@example.com\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			st := &fakeStore{}
			svc := newTestService(st)

			_, err := svc.Ingest(context.Background(), "t.csv", strings.NewReader(tt.csv))
			if !errors.Is(err, ErrNoValidRows) {
				t.Fatalf("Ingest() error = %v, want ErrNoValidRows", err)
			}
			if len(st.calls) != 0 {
				t.Errorf("BulkCreate called %d times, want 0", len(st.calls))
			}
		})
	}
}

func TestIngest_ExtraColumnsIgnored(t *testing.T) {
	st := &fakeStore{}
	svc := newTestService(st)

	csv := "id,name,city,age,email,notes\n" +
		"7,Maria,Recife,31,maria@example.com,hello\n"

	_, err := svc.Ingest(context.Background(), "extra.csv", strings.NewReader(csv))
	if err != nil {
		t.Fatalf("Ingest() error = %v", err)
	}

	want := person.Record{Name: "Maria", Age: "31", Email: "maria@example.com"}
	if st.calls[0][0] != want {
		t.Errorf("record = %+v, want %+v", st.calls[0][0], want)
	}
}

func TestIngest_HeaderCaseInsensitive(t *testing.T) {
	st := &fakeStore{}
	svc := newTestService(st)

	csv := "Name,AGE,Email\nMaria,31,maria@example.com\n"

	_, err := svc.Ingest(context.Background(), "case.csv", strings.NewReader(csv))
	if err != nil {
		t.Fatalf("Ingest() error = %v", err)
	}
	if len(st.calls) != 1 || len(st.calls[0]) != 1 {
		t.Fatalf("BulkCreate calls = %v, want one call with one record", st.calls)
	}
}

func TestIngest_ShortRowTreatedAsMissingFields(t *testing.T) {
	st := &fakeStore{}
	svc := newTestService(st)

	// Second row has fewer fields than the header; email is missing.
	csv := "name,age,email\nMaria,31,maria@example.com\nJoao,28\n"

	result, err := svc.Ingest(context.Background(), "short.csv", strings.NewReader(csv))
	if err != nil {
		t.Fatalf("Ingest() error = %v", err)
	}
	if len(st.calls[0]) != 1 {
		t.Fatalf("BulkCreate received %d records, want 1", len(st.calls[0]))
	}
	if len(result.Skipped) != 1 {
		t.Errorf("Skipped = %v, want the short row", result.Skipped)
	}
}

func TestIngest_StoreFailurePropagates(t *testing.T) {
	st := &fakeStore{bulkErr: errors.New("connection refused")}
	svc := newTestService(st)

	csv := "name,age,email\nMaria,31,maria@example.com\n"

	_, err := svc.Ingest(context.Background(), "fail.csv", strings.NewReader(csv))
	if err == nil {
		t.Fatal("Ingest() expected error from store, got nil")
	}
	if errors.Is(err, ErrNoValidRows) {
		t.Error("store failure must not map to ErrNoValidRows")
	}
	if len(st.calls) != 1 {
		t.Errorf("BulkCreate called %d times, want exactly 1", len(st.calls))
	}
}

func TestIngest_RecordsUploadHistory(t *testing.T) {
	st := &fakeStore{}
	svc := newTestService(st)

	csv := "name,age,email\nMaria,31,maria@example.com\n,,\n"

	result, err := svc.Ingest(context.Background(), "hist.csv", strings.NewReader(csv))
	if err != nil {
		t.Fatalf("Ingest() error = %v", err)
	}

	if len(st.uploads) != 1 {
		t.Fatalf("RecordUpload called %d times, want 1", len(st.uploads))
	}
	u := st.uploads[0]
	if u.ID != result.UploadID || u.FileName != "hist.csv" || u.Inserted != 1 {
		t.Errorf("recorded upload = %+v, want id=%s file=hist.csv inserted=1", u, result.UploadID)
	}
}

func TestIngest_HistoryFailureDoesNotFailImport(t *testing.T) {
	st := &fakeStore{recError: errors.New("history table gone")}
	svc := newTestService(st)

	csv := "name,age,email\nMaria,31,maria@example.com\n"

	if _, err := svc.Ingest(context.Background(), "h.csv", strings.NewReader(csv)); err != nil {
		t.Fatalf("Ingest() error = %v, history failures must be swallowed", err)
	}
}

func TestIngest_BOMAndWhitespace(t *testing.T) {
	st := &fakeStore{}
	svc := newTestService(st)

	csv := "\xEF\xBB\xBFname,age,email\n  Maria ,\t31, maria@example.com \n"

	_, err := svc.Ingest(context.Background(), "bom.csv", strings.NewReader(csv))
	if err != nil {
		t.Fatalf("Ingest() error = %v", err)
	}

	want := person.Record{Name: "Maria", Age: "31", Email: "maria@example.com"}
	if st.calls[0][0] != want {
		t.Errorf("record = %+v, want %+v (BOM stripped, fields trimmed)", st.calls[0][0], want)
	}
}
