// Package local keeps the student collection in memory and persists it
// as a single snapshot blob, loaded once at startup and rewritten on
// every mutation. The blob lives in a file or under a Redis key.
package local

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/aanand-mishra/student-archive/internal/storage"
	"github.com/aanand-mishra/student-archive/internal/types"
)

var (
	_ storage.Storage  = (*Store)(nil)
	_ storage.Restorer = (*Store)(nil)
)

// Persister loads and saves the whole collection.
type Persister interface {
	// Load returns the saved collection, or nil when nothing was saved yet.
	Load(ctx context.Context) ([]types.Student, error)
	Save(ctx context.Context, students []types.Student) error
}

// Store is an in-memory storage.Storage. The collection is always kept
// newest first.
type Store struct {
	mu        sync.RWMutex
	students  []types.Student
	persister Persister
}

// New returns an empty store that keeps nothing beyond the process.
func New() *Store {
	return &Store{students: []types.Student{}}
}

// Open loads the collection from p and returns a store that saves every
// mutation back to p.
func Open(ctx context.Context, p Persister) (*Store, error) {
	students, err := p.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("local.Open: load snapshot: %w", err)
	}
	if students == nil {
		students = []types.Student{}
	}
	storage.SortNewestFirst(students)
	return &Store{students: students, persister: p}, nil
}

// Close is a no-op: every mutation is already persisted.
func (s *Store) Close() error { return nil }

// commit persists next and, only when that succeeds, makes it current.
// Callers hold s.mu.
func (s *Store) commit(ctx context.Context, op string, next []types.Student) error {
	if s.persister != nil {
		if err := s.persister.Save(ctx, next); err != nil {
			return storage.Failed(op, err)
		}
	}
	s.students = next
	return nil
}

func (s *Store) indexOf(id string) int {
	return slices.IndexFunc(s.students, func(st types.Student) bool { return st.ID == id })
}

func (s *Store) ListStudents(_ context.Context) ([]types.Student, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return cloneAll(s.students), nil
}

func (s *Store) GetStudent(_ context.Context, id string) (types.Student, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if i := s.indexOf(id); i >= 0 {
		return s.students[i].Clone(), true, nil
	}
	return types.Student{}, false, nil
}

func (s *Store) SearchStudents(ctx context.Context, query string) ([]types.Student, error) {
	students, err := s.ListStudents(ctx)
	if err != nil {
		return nil, err
	}
	return storage.Filter(students, query), nil
}

// CreateStudent prepends the new student, keeping the newest first.
func (s *Store) CreateStudent(ctx context.Context, in types.StudentInput) (types.Student, error) {
	if err := types.ValidateInput(in); err != nil {
		return types.Student{}, storage.Invalid(err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	student := types.NewStudent(uuid.NewString(), time.Now().UnixMilli(), in)
	next := make([]types.Student, 0, len(s.students)+1)
	next = append(next, student)
	next = append(next, s.students...)
	// a clock step backwards must not break the ordering
	storage.SortNewestFirst(next)

	if err := s.commit(ctx, "create student", next); err != nil {
		return types.Student{}, err
	}
	return student.Clone(), nil
}

// RestoreStudent inserts student as it is, keeping its id and createdAt.
// An id already in the collection is left untouched.
func (s *Store) RestoreStudent(ctx context.Context, student types.Student) (bool, error) {
	if err := storage.ValidateRestore(student); err != nil {
		return false, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.indexOf(student.ID) >= 0 {
		return false, nil
	}
	next := make([]types.Student, 0, len(s.students)+1)
	next = append(next, s.students...)
	next = append(next, student.Clone())
	storage.SortNewestFirst(next)

	if err := s.commit(ctx, "restore student", next); err != nil {
		return false, err
	}
	return true, nil
}

func (s *Store) UpdateStudent(ctx context.Context, id string, patch types.StudentPatch) (types.Student, error) {
	if err := types.ValidatePatch(patch); err != nil {
		return types.Student{}, storage.Invalid(err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.indexOf(id)
	if i < 0 {
		return types.Student{}, fmt.Errorf("update student %s: %w", id, storage.ErrNotFound)
	}
	if patch.IsEmpty() {
		return s.students[i].Clone(), nil
	}

	next := slices.Clone(s.students)
	next[i] = patch.Apply(next[i])

	if err := s.commit(ctx, "update student", next); err != nil {
		return types.Student{}, err
	}
	return next[i].Clone(), nil
}

func (s *Store) DeleteStudent(ctx context.Context, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.indexOf(id)
	if i < 0 {
		return false, nil
	}

	next := slices.Delete(slices.Clone(s.students), i, i+1)
	if err := s.commit(ctx, "delete student", next); err != nil {
		return false, err
	}
	return true, nil
}

// cloneAll copies students so callers cannot reach the stored photo URLs.
func cloneAll(students []types.Student) []types.Student {
	out := make([]types.Student, len(students))
	for i, st := range students {
		out[i] = st.Clone()
	}
	return out
}
