package student

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"time"

	"github.com/aanand-mishra/student-archive/internal/backup"
	"github.com/aanand-mishra/student-archive/internal/storage"
	"github.com/aanand-mishra/student-archive/internal/utils/response"
)

// maxImportBytes caps uploaded backups and spreadsheets.
const maxImportBytes = 32 << 20

// Export handles GET /api/students/export
// The body is the whole list as indented JSON, served as a download.
func Export(s storage.Storage) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		slog.Info("exporting students")

		// buffered so a failing list still gets a clean 500
		var buf bytes.Buffer
		if err := backup.Export(r.Context(), s, &buf); err != nil {
			storeFailure(w, r, "export", "failed to export students", err)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Content-Disposition",
			fmt.Sprintf("attachment; filename=%q", backup.Filename(time.Now())))
		w.WriteHeader(http.StatusOK)
		_, _ = buf.WriteTo(w)
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// Restore handles POST /api/students/import
//
// The backup is either the raw request body or a multipart field named
// "file". Records whose id is already stored are skipped.
//
// Success response (200 OK):
//
//	{ "restored": 3, "skipped": 1 }
//
// Error responses:
//
//	400 Bad Request  not a backup document; nothing was written
//	500 Internal     store error
//
// ─────────────────────────────────────────────────────────────────────────────
func Restore(s storage.Storage) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		slog.Info("restoring students from backup")

		body, _, err := uploadedFile(w, r)
		if err != nil {
			response.WriteJSON(w, http.StatusBadRequest, response.GeneralError(err))
			return
		}
		defer body.Close()

		res, err := backup.Restore(r.Context(), s, body)
		if err != nil {
			if errors.Is(err, backup.ErrImportFormat) {
				response.WriteJSON(w, http.StatusBadRequest, response.GeneralError(err))
				return
			}
			storeFailure(w, r, "restore", "failed to restore students", err)
			return
		}

		slog.Info("backup restored",
			slog.Int("restored", res.Restored),
			slog.Int("skipped", res.Skipped))
		response.WriteJSON(w, http.StatusOK, res)
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// ImportSheet handles POST /api/students/import/sheet
//
// Accepts an .xlsx or .csv upload in the multipart field "file"; the
// format comes from the file name. A raw body is accepted too when the
// format is given as ?format=csv or ?format=xlsx.
//
// Success response (200 OK):
//
//	{ "imported": 12, "rejected": 1 }
//
// ─────────────────────────────────────────────────────────────────────────────
func ImportSheet(s storage.Storage) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		slog.Info("importing students from spreadsheet")

		body, filename, err := uploadedFile(w, r)
		if err != nil {
			response.WriteJSON(w, http.StatusBadRequest, response.GeneralError(err))
			return
		}
		defer body.Close()

		var format backup.Format
		if f := r.URL.Query().Get("format"); f != "" {
			format, err = backup.FormatFromFilename("upload." + f)
		} else {
			format, err = backup.FormatFromFilename(filename)
		}
		if err != nil {
			response.WriteJSON(w, http.StatusBadRequest, response.GeneralError(err))
			return
		}

		res, err := backup.ImportSheet(r.Context(), s, body, format)
		switch {
		case errors.Is(err, backup.ErrImportFormat), errors.Is(err, backup.ErrNoData):
			response.WriteJSON(w, http.StatusBadRequest, response.GeneralError(err))
			return
		case err != nil:
			storeFailure(w, r, "import_sheet", "failed to import students", err)
			return
		}

		slog.Info("spreadsheet imported",
			slog.Int("imported", res.Imported),
			slog.Int("rejected", res.Rejected))
		response.WriteJSON(w, http.StatusOK, res)
	}
}

// uploadedFile returns the multipart field "file" when the request is a
// form upload, and the raw body otherwise.
func uploadedFile(w http.ResponseWriter, r *http.Request) (io.ReadCloser, string, error) {
	r.Body = http.MaxBytesReader(w, r.Body, maxImportBytes)

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType != "multipart/form-data" {
		return r.Body, "", nil
	}

	if err := r.ParseMultipartForm(maxImportBytes); err != nil {
		return nil, "", fmt.Errorf("cannot read upload: %w", err)
	}
	f, header, err := r.FormFile("file")
	if err != nil {
		return nil, "", errors.New("field file is required")
	}
	return f, header.Filename, nil
}
