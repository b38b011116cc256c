package web

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/mfcampos/pessoas-api/internal/ingest"
	"github.com/mfcampos/pessoas-api/internal/logging"
	"github.com/mfcampos/pessoas-api/internal/person"
	"github.com/mfcampos/pessoas-api/internal/store"
)

// uploadFormField is the multipart form field carrying the CSV file.
const uploadFormField = "file"

// handleUploadCSV accepts a multipart CSV upload, runs the import pipeline,
// and answers with the fixed JSON messages of the upload contract.
//
// Outcomes:
//   - no file attached            -> 400 {"error": msgFileRequired}
//   - zero valid rows             -> 400 {"error": msgNoValidRows}
//   - file over the size cap      -> 413
//   - concurrency limit saturated -> 503
//   - persistence failure         -> 500, underlying error only logged
//   - success                     -> 201 {"message": msgUploadSuccess}
func (s *Server) handleUploadCSV(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.Upload.MaxFileSize)

	file, header, err := r.FormFile(uploadFormField)
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			writeError(w, r, http.StatusRequestEntityTooLarge, msgFileTooLarge)
			return
		}
		// Anything else means no usable file arrived: absent field,
		// empty form, or a body that is not multipart at all.
		writeError(w, r, http.StatusBadRequest, msgFileRequired)
		return
	}
	defer file.Close()

	result, err := s.ingest.Ingest(r.Context(), header.Filename, file)
	switch {
	case errors.Is(err, ingest.ErrNoValidRows):
		writeError(w, r, http.StatusBadRequest, msgNoValidRows)
	case errors.Is(err, ingest.ErrTooManyImports):
		w.Header().Set("Retry-After", "5")
		writeError(w, r, http.StatusServiceUnavailable, msgTooManyActive)
	case err != nil:
		logging.FromContext(r.Context()).Error("import failed",
			"file", header.Filename,
			"error", err,
		)
		writeError(w, r, http.StatusInternalServerError, msgInternalError)
	default:
		writeJSON(w, r, http.StatusCreated, map[string]any{
			"message":  msgUploadSuccess,
			"uploadId": result.UploadID,
			"inserted": result.Inserted,
		})
	}
}

// handleListUploads returns recent upload history, newest first.
// Optional query param "limit" caps the page size (default 50, max 500).
func (s *Server) handleListUploads(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 || n > 500 {
			writeError(w, r, http.StatusBadRequest, msgInvalidLimit)
			return
		}
		limit = n
	}

	uploads, err := s.store.ListUploads(r.Context(), limit)
	if err != nil {
		logging.FromContext(r.Context()).Error("list uploads failed", "error", err)
		writeError(w, r, http.StatusInternalServerError, msgInternalError)
		return
	}
	if uploads == nil {
		uploads = []store.Upload{}
	}

	writeJSON(w, r, http.StatusOK, map[string]any{"uploads": uploads})
}

// handleDownloadTemplate serves a one-line CSV with the expected header so
// users can fill in a spreadsheet that imports cleanly.
func (s *Server) handleDownloadTemplate(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", `attachment; filename="pessoas.csv"`)
	w.Write([]byte(strings.Join(person.Columns, ",") + "\n"))
}

// handleHealth reports liveness and database reachability.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := s.store.Ping(r.Context()); err != nil {
		logging.FromContext(r.Context()).Error("health check failed", "error", err)
		writeJSON(w, r, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
		return
	}
	writeJSON(w, r, http.StatusOK, map[string]any{
		"status":        "ok",
		"activeImports": s.ingest.ActiveImports(),
	})
}
