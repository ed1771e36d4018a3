// Package sqlite provides a SQLite-backed implementation of the
// storage.Storage interface using Go's standard database/sql package.
//
// WHY SQLite?
// ───────────
// SQLite stores everything in a single file on disk. There is no
// network, no separate server process, and no installation beyond the
// driver. It is the default backend of the archive.
//
// The blank import below registers the sqlite3 driver with database/sql.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/aanand-mishra/student-archive/internal/storage"
	"github.com/aanand-mishra/student-archive/internal/types"

	// Blank import: side-effect only (registers the "sqlite3" driver).
	_ "github.com/mattn/go-sqlite3"
)

var (
	_ storage.Storage  = (*SQLite)(nil)
	_ storage.Restorer = (*SQLite)(nil)
)

// SQLite is the concrete implementation of storage.Storage.
// It holds a *sql.DB which is a connection pool managed by database/sql.
type SQLite struct {
	Db *sql.DB
}

// columns lists the students columns in Scan order.
const columns = "id, name, mother_name, registration_number, page_number, photo_url, created_at"

// New opens the SQLite database at path, creates the students table if
// it does not already exist, and returns a ready-to-use *SQLite.
func New(path string) (*SQLite, error) {
	db, err := sql.Open("sqlite3", path+"?_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("sqlite.New: open db: %w", err)
	}

	// CREATE TABLE IF NOT EXISTS is idempotent: safe to run on every
	// startup. created_at holds milliseconds since the Unix epoch.
	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS students (
			id                  TEXT    PRIMARY KEY,
			name                TEXT    NOT NULL,
			mother_name         TEXT    NOT NULL,
			registration_number TEXT    NOT NULL,
			page_number         TEXT    NOT NULL,
			photo_url           TEXT,
			created_at          INTEGER NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_students_created_at ON students (created_at);
	`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite.New: create table: %w", err)
	}

	return &SQLite{Db: db}, nil
}

// Close closes the connection pool.
func (s *SQLite) Close() error {
	return s.Db.Close()
}

// scanner is satisfied by both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanStudent(row scanner) (types.Student, error) {
	var (
		student types.Student
		photo   sql.NullString
	)
	// The order of variables must match the order of columns.
	err := row.Scan(
		&student.ID,
		&student.Name,
		&student.MotherName,
		&student.RegistrationNumber,
		&student.PageNumber,
		&photo,
		&student.CreatedAt,
	)
	if err != nil {
		return types.Student{}, err
	}
	if photo.Valid {
		student.PhotoURL = &photo.String
	}
	return student, nil
}

// ─────────────────────────────────────────────────────────────────────────────
// CreateStudent inserts a new row into the students table.
//
// Placeholders (?) keep user input out of the SQL text; the driver sends
// the query and the values separately.
// ─────────────────────────────────────────────────────────────────────────────
func (s *SQLite) CreateStudent(ctx context.Context, in types.StudentInput) (types.Student, error) {
	if err := types.ValidateInput(in); err != nil {
		return types.Student{}, storage.Invalid(err)
	}

	student := types.NewStudent(uuid.NewString(), time.Now().UnixMilli(), in)

	stmt, err := s.Db.PrepareContext(ctx,
		"INSERT INTO students ("+columns+") VALUES (?, ?, ?, ?, ?, ?, ?)",
	)
	if err != nil {
		return types.Student{}, storage.Failed("CreateStudent: prepare", err)
	}
	defer stmt.Close()

	_, err = stmt.ExecContext(ctx,
		student.ID,
		student.Name,
		student.MotherName,
		student.RegistrationNumber,
		student.PageNumber,
		student.PhotoURL,
		student.CreatedAt,
	)
	if err != nil {
		return types.Student{}, storage.Failed("CreateStudent: exec", err)
	}

	return student, nil
}

// GetStudent fetches exactly one student row matched by primary key.
// sql.ErrNoRows is not an error here: it is reported as ok == false.
func (s *SQLite) GetStudent(ctx context.Context, id string) (types.Student, bool, error) {
	stmt, err := s.Db.PrepareContext(ctx,
		"SELECT "+columns+" FROM students WHERE id = ? LIMIT 1",
	)
	if err != nil {
		return types.Student{}, false, storage.Failed("GetStudent: prepare", err)
	}
	defer stmt.Close()

	student, err := scanStudent(stmt.QueryRowContext(ctx, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.Student{}, false, nil
		}
		return types.Student{}, false, storage.Failed("GetStudent: scan", err)
	}

	return student, true, nil
}

// ListStudents returns all student rows, newest first.
func (s *SQLite) ListStudents(ctx context.Context) ([]types.Student, error) {
	stmt, err := s.Db.PrepareContext(ctx,
		"SELECT "+columns+" FROM students ORDER BY created_at DESC",
	)
	if err != nil {
		return nil, storage.Failed("ListStudents: prepare", err)
	}
	defer stmt.Close()

	rows, err := stmt.QueryContext(ctx)
	if err != nil {
		return nil, storage.Failed("ListStudents: query", err)
	}
	defer rows.Close()

	// Returning [] instead of null in JSON is better API behaviour.
	students := make([]types.Student, 0)

	for rows.Next() {
		student, err := scanStudent(rows)
		if err != nil {
			return nil, storage.Failed("ListStudents: scan row", err)
		}
		students = append(students, student)
	}

	if err := rows.Err(); err != nil {
		return nil, storage.Failed("ListStudents: rows iteration", err)
	}

	return students, nil
}

// SearchStudents filters the full list in Go. SQLite's lower() and LIKE
// only fold ASCII, and student names are mostly Arabic.
func (s *SQLite) SearchStudents(ctx context.Context, query string) ([]types.Student, error) {
	students, err := s.ListStudents(ctx)
	if err != nil {
		return nil, err
	}
	return storage.Filter(students, query), nil
}

// ─────────────────────────────────────────────────────────────────────────────
// UpdateStudent applies a partial update.
//
// COALESCE(?, col) keeps the stored value whenever the placeholder is
// NULL, which is what a nil patch field binds to. id and created_at are
// never part of the SET list.
// ─────────────────────────────────────────────────────────────────────────────
func (s *SQLite) UpdateStudent(ctx context.Context, id string, patch types.StudentPatch) (types.Student, error) {
	if err := types.ValidatePatch(patch); err != nil {
		return types.Student{}, storage.Invalid(err)
	}

	stmt, err := s.Db.PrepareContext(ctx, `
		UPDATE students SET
			name                = COALESCE(?, name),
			mother_name         = COALESCE(?, mother_name),
			registration_number = COALESCE(?, registration_number),
			page_number         = COALESCE(?, page_number),
			photo_url           = COALESCE(?, photo_url)
		WHERE id = ?`,
	)
	if err != nil {
		return types.Student{}, storage.Failed("UpdateStudent: prepare", err)
	}
	defer stmt.Close()

	result, err := stmt.ExecContext(ctx,
		patch.Name,
		patch.MotherName,
		patch.RegistrationNumber,
		patch.PageNumber,
		patch.PhotoURL,
		id,
	)
	if err != nil {
		return types.Student{}, storage.Failed("UpdateStudent: exec", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return types.Student{}, storage.Failed("UpdateStudent: rows affected", err)
	}
	if affected == 0 {
		return types.Student{}, fmt.Errorf("UpdateStudent %s: %w", id, storage.ErrNotFound)
	}

	// Re-fetch the record so we return exactly what is stored in the DB.
	student, ok, err := s.GetStudent(ctx, id)
	if err != nil {
		return types.Student{}, err
	}
	if !ok {
		return types.Student{}, fmt.Errorf("UpdateStudent %s: %w", id, storage.ErrNotFound)
	}
	return student, nil
}

// DeleteStudent removes a student row by primary key and reports whether
// a row was removed.
func (s *SQLite) DeleteStudent(ctx context.Context, id string) (bool, error) {
	stmt, err := s.Db.PrepareContext(ctx, "DELETE FROM students WHERE id = ?")
	if err != nil {
		return false, storage.Failed("DeleteStudent: prepare", err)
	}
	defer stmt.Close()

	result, err := stmt.ExecContext(ctx, id)
	if err != nil {
		return false, storage.Failed("DeleteStudent: exec", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, storage.Failed("DeleteStudent: rows affected", err)
	}

	return affected > 0, nil
}

// RestoreStudent inserts a backed-up row with its own id and created_at.
// INSERT OR IGNORE leaves an existing row alone; RowsAffected tells the
// two cases apart.
func (s *SQLite) RestoreStudent(ctx context.Context, student types.Student) (bool, error) {
	if err := storage.ValidateRestore(student); err != nil {
		return false, err
	}

	stmt, err := s.Db.PrepareContext(ctx,
		"INSERT OR IGNORE INTO students ("+columns+") VALUES (?, ?, ?, ?, ?, ?, ?)",
	)
	if err != nil {
		return false, storage.Failed("RestoreStudent: prepare", err)
	}
	defer stmt.Close()

	result, err := stmt.ExecContext(ctx,
		student.ID,
		student.Name,
		student.MotherName,
		student.RegistrationNumber,
		student.PageNumber,
		student.PhotoURL,
		student.CreatedAt,
	)
	if err != nil {
		return false, storage.Failed("RestoreStudent: exec", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, storage.Failed("RestoreStudent: rows affected", err)
	}
	return affected > 0, nil
}
