package sqlite

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/aanand-mishra/student-archive/internal/storage"
	"github.com/aanand-mishra/student-archive/internal/storage/storagetest"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) storage.Storage {
	s, err := New(filepath.Join(t.TempDir(), "students.db"))
	require.NoError(t, err)
	return s
}

func TestSQLiteConformance(t *testing.T) {
	storagetest.Run(t, newTestStore)
}

func TestSQLiteReopenKeepsData(t *testing.T) {
	path := filepath.Join(t.TempDir(), "students.db")
	ctx := context.Background()

	s, err := New(path)
	require.NoError(t, err)
	created, err := s.CreateStudent(ctx, storagetest.Ahmad)
	require.NoError(t, err)
	require.NoError(t, s.Close())

	s, err = New(path)
	require.NoError(t, err)
	defer s.Close()

	got, ok, err := s.GetStudent(ctx, created.ID)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, created, got)
}
