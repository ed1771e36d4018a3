// Package gormstore implements storage.Storage on GORM. Production runs
// it against Postgres; any other GORM dialector works too.
package gormstore

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

	"github.com/aanand-mishra/student-archive/internal/storage"
	"github.com/aanand-mishra/student-archive/internal/types"
)

var (
	_ storage.Storage  = (*Store)(nil)
	_ storage.Restorer = (*Store)(nil)
)

// Store implements storage.Storage using GORM.
type Store struct {
	db *gorm.DB
}

// NewPostgres opens a Postgres database from dsn and runs migrations.
func NewPostgres(dsn string) (*Store, error) {
	return Open(postgres.Open(dsn))
}

// Open opens the DB through dialector and runs auto-migrations.
func Open(dialector gorm.Dialector) (*Store, error) {
	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: logger.New(log.New(os.Stderr, "gorm ", log.LstdFlags), logger.Config{
			SlowThreshold:             200 * time.Millisecond,
			LogLevel:                  logger.Warn,
			IgnoreRecordNotFoundError: true,
		}),
	})
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if err := db.AutoMigrate(&StudentModel{}); err != nil {
		return nil, fmt.Errorf("auto migrate: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the underlying connection pool.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// CreateStudent inserts a new student.
func (s *Store) CreateStudent(ctx context.Context, in types.StudentInput) (types.Student, error) {
	if err := types.ValidateInput(in); err != nil {
		return types.Student{}, storage.Invalid(err)
	}
	student := types.NewStudent(uuid.NewString(), time.Now().UnixMilli(), in)
	model := studentToModel(student)
	if err := s.db.WithContext(ctx).Create(&model).Error; err != nil {
		return types.Student{}, storage.Failed("create student", err)
	}
	return student, nil
}

// RestoreStudent inserts a backed-up student with its own id and
// created_at. A conflicting id is ignored and reported as not restored.
func (s *Store) RestoreStudent(ctx context.Context, student types.Student) (bool, error) {
	if err := storage.ValidateRestore(student); err != nil {
		return false, err
	}
	model := studentToModel(student)
	res := s.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&model)
	if res.Error != nil {
		return false, storage.Failed("restore student", res.Error)
	}
	return res.RowsAffected > 0, nil
}

// GetStudent returns a student by ID.
func (s *Store) GetStudent(ctx context.Context, id string) (types.Student, bool, error) {
	var model StudentModel
	if err := s.db.WithContext(ctx).First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return types.Student{}, false, nil
		}
		return types.Student{}, false, storage.Failed("get student", err)
	}
	return studentFromModel(model), true, nil
}

// ListStudents returns all students ordered by created_at, newest first.
func (s *Store) ListStudents(ctx context.Context) ([]types.Student, error) {
	return s.listStudents(ctx)
}

// SearchStudents pushes the match into Postgres with ILIKE. Other
// dialects (SQLite in tests) lack Unicode-aware case folding, so the
// list is filtered in Go instead.
func (s *Store) SearchStudents(ctx context.Context, query string) ([]types.Student, error) {
	if storage.IsBlankQuery(query) {
		return s.listStudents(ctx)
	}
	if s.db.Dialector.Name() != "postgres" {
		students, err := s.listStudents(ctx)
		if err != nil {
			return nil, err
		}
		return storage.Filter(students, query), nil
	}
	pattern := "%" + escapeLike(query) + "%"
	return s.listStudents(ctx,
		"name ILIKE ? OR mother_name ILIKE ? OR registration_number LIKE ?",
		pattern, pattern, pattern,
	)
}

func (s *Store) listStudents(ctx context.Context, conds ...any) ([]types.Student, error) {
	var models []StudentModel
	tx := s.db.WithContext(ctx).Order("created_at DESC")
	if len(conds) > 0 {
		tx = tx.Where(conds[0], conds[1:]...)
	}
	if err := tx.Find(&models).Error; err != nil {
		return nil, storage.Failed("list students", err)
	}
	res := make([]types.Student, 0, len(models))
	for _, m := range models {
		res = append(res, studentFromModel(m))
	}
	return res, nil
}

// UpdateStudent applies a partial update and returns the stored record.
func (s *Store) UpdateStudent(ctx context.Context, id string, patch types.StudentPatch) (types.Student, error) {
	if err := types.ValidatePatch(patch); err != nil {
		return types.Student{}, storage.Invalid(err)
	}

	if cols := patchColumns(patch); len(cols) > 0 {
		res := s.db.WithContext(ctx).Model(&StudentModel{}).Where("id = ?", id).Updates(cols)
		if res.Error != nil {
			return types.Student{}, storage.Failed("update student", res.Error)
		}
		if res.RowsAffected == 0 {
			return types.Student{}, fmt.Errorf("update student %s: %w", id, storage.ErrNotFound)
		}
	}

	student, ok, err := s.GetStudent(ctx, id)
	if err != nil {
		return types.Student{}, err
	}
	if !ok {
		return types.Student{}, fmt.Errorf("update student %s: %w", id, storage.ErrNotFound)
	}
	return student, nil
}

// DeleteStudent removes a student and reports whether a row was removed.
func (s *Store) DeleteStudent(ctx context.Context, id string) (bool, error) {
	res := s.db.WithContext(ctx).Delete(&StudentModel{}, "id = ?", id)
	if res.Error != nil {
		return false, storage.Failed("delete student", res.Error)
	}
	return res.RowsAffected > 0, nil
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// escapeLike quotes LIKE wildcards so the query matches literally.
func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}
