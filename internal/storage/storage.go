// Package storage defines the Storage interface: the contract that any
// database backend must satisfy to work with this application.
//
// WHY AN INTERFACE?
// ─────────────────
// Handlers (HTTP layer) should not know or care which database they are
// talking to. By depending only on this interface:
//
//   - Switching databases = pick another backend in the config file.
//     Zero handler changes.
//
//   - Writing tests = pass any implementation (the local in-memory
//     backend is the cheapest). No real database needed.
//
// Backends live in sub-packages: sqlite, gormstore, local and mongo.
package storage

import (
	"context"
	"errors"

	"github.com/aanand-mishra/student-archive/internal/types"
)

// Sentinel errors. Backends wrap them so callers can use errors.Is
// without knowing which backend produced the error.
var (
	// ErrNotFound means the id does not resolve to a student.
	ErrNotFound = errors.New("student not found")

	// ErrValidation means the input failed validation. The wrapped chain
	// also carries a *types.ValidationError with the offending fields.
	ErrValidation = errors.New("invalid student")

	// ErrStore marks a failure of the underlying persistence engine.
	ErrStore = errors.New("storage failure")
)

// Storage is the record store contract.
// Any concrete type that implements ALL of these methods automatically
// satisfies this interface.
type Storage interface {
	// ListStudents returns every student, newest first.
	// Returns an empty slice (not nil) if there are no students.
	ListStudents(ctx context.Context) ([]types.Student, error)

	// GetStudent fetches a single student. A missing id is reported by
	// ok == false with a nil error.
	GetStudent(ctx context.Context, id string) (student types.Student, ok bool, err error)

	// CreateStudent validates in, assigns a fresh id and the current
	// timestamp, persists and returns the new record.
	CreateStudent(ctx context.Context, in types.StudentInput) (types.Student, error)

	// UpdateStudent applies only the provided fields of patch and returns
	// the updated record. Returns ErrNotFound if the id does not exist.
	UpdateStudent(ctx context.Context, id string, patch types.StudentPatch) (types.Student, error)

	// DeleteStudent removes a student and reports whether a record was
	// actually removed. Deleting a missing id is not an error.
	DeleteStudent(ctx context.Context, id string) (bool, error)

	// SearchStudents returns the students matching query, newest first.
	// An empty or whitespace query is the same as ListStudents.
	SearchStudents(ctx context.Context, query string) ([]types.Student, error)

	// Close releases the backend's resources.
	Close() error
}

// Restorer is implemented by backends that can insert a record with the
// id and createdAt it already has, as a backup restore needs. A record
// whose id is already stored is left alone and reported as not restored.
type Restorer interface {
	RestoreStudent(ctx context.Context, student types.Student) (restored bool, err error)
}

// RestoreStudent inserts student keeping its identity when s is a
// Restorer. Other stores get a plain create, so the record receives a
// fresh id and timestamp.
func RestoreStudent(ctx context.Context, s Storage, student types.Student) (bool, error) {
	if err := ValidateRestore(student); err != nil {
		return false, err
	}
	if r, ok := s.(Restorer); ok {
		return r.RestoreStudent(ctx, student)
	}
	if _, exists, err := s.GetStudent(ctx, student.ID); err != nil || exists {
		return false, err
	}
	if _, err := s.CreateStudent(ctx, student.Input()); err != nil {
		return false, err
	}
	return true, nil
}

// ValidateRestore checks a record about to be restored: the four text
// fields as on create, plus a non-empty id.
func ValidateRestore(student types.Student) error {
	if err := types.ValidateInput(student.Input()); err != nil {
		return Invalid(err)
	}
	if student.ID == "" {
		return Invalid(&types.ValidationError{Fields: []string{"id"}})
	}
	return nil
}
