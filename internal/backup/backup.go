// Package backup exports the student list to a JSON document, restores
// it from one, and imports students from spreadsheets.
//
// All of it is best-effort: there is no transaction around an import, so
// a store failure halfway leaves the rows created so far in place.
package backup

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/aanand-mishra/student-archive/internal/storage"
	"github.com/aanand-mishra/student-archive/internal/types"
)

var (
	// ErrImportFormat means the uploaded content is not a backup document
	// or readable spreadsheet. Nothing was written to the store.
	ErrImportFormat = errors.New("invalid import file")

	// ErrNoData means a spreadsheet had no usable rows.
	ErrNoData = errors.New("no data found")
)

// Filename is the download name of a backup taken at t.
func Filename(t time.Time) string {
	return "students_backup_" + t.Format("2006-01-02") + ".json"
}

// Export writes every student, newest first, as indented JSON.
func Export(ctx context.Context, s storage.Storage, w io.Writer) error {
	students, err := s.ListStudents(ctx)
	if err != nil {
		return err
	}
	if students == nil {
		students = []types.Student{}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(students)
}

// RestoreResult reports what a restore did.
type RestoreResult struct {
	Restored int `json:"restored"`
	Skipped  int `json:"skipped"`
}

// record is one element of a backup document. Unknown keys are ignored.
type record struct {
	ID        string `json:"id"`
	CreatedAt int64  `json:"createdAt"`
	types.StudentInput
}

// Restore merges a backup document into the store.
//
// The whole document is decoded and checked before anything is written:
// if it is not a JSON array of student objects carrying the four required
// fields, Restore returns ErrImportFormat and the store is untouched.
// Records keep the id and createdAt they carry, so restoring the same
// document twice adds nothing the second time; records whose id already
// exists are skipped. A record without an id goes through the normal
// create path, and one without createdAt is stamped with the restore time.
func Restore(ctx context.Context, s storage.Storage, r io.Reader) (RestoreResult, error) {
	var res RestoreResult

	data, err := io.ReadAll(r)
	if err != nil {
		return res, fmt.Errorf("read backup: %w", err)
	}
	data = bytes.TrimSpace(data)
	if len(data) == 0 || data[0] != '[' {
		return res, fmt.Errorf("%w: expected a list of students", ErrImportFormat)
	}

	var records []record
	if err := json.Unmarshal(data, &records); err != nil {
		return res, fmt.Errorf("%w: %v", ErrImportFormat, err)
	}
	for i, rec := range records {
		if err := types.ValidateInput(rec.StudentInput); err != nil {
			return res, fmt.Errorf("%w: record %d: %v", ErrImportFormat, i, err)
		}
	}

	now := time.Now().UnixMilli()
	for _, rec := range records {
		if rec.ID == "" {
			if _, err := s.CreateStudent(ctx, rec.StudentInput); err != nil {
				return res, err
			}
			res.Restored++
			continue
		}

		createdAt := rec.CreatedAt
		if createdAt <= 0 {
			createdAt = now
		}
		restored, err := storage.RestoreStudent(ctx, s, types.NewStudent(rec.ID, createdAt, rec.StudentInput))
		if err != nil {
			return res, err
		}
		if restored {
			res.Restored++
		} else {
			res.Skipped++
		}
	}
	return res, nil
}
