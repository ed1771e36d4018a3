package local

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	mr "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/aanand-mishra/student-archive/internal/storage"
	"github.com/aanand-mishra/student-archive/internal/storage/storagetest"
	"github.com/aanand-mishra/student-archive/internal/types"
)

func TestMemoryConformance(t *testing.T) {
	storagetest.Run(t, func(t *testing.T) storage.Storage {
		return New()
	})
}

func TestFileConformance(t *testing.T) {
	storagetest.Run(t, func(t *testing.T) storage.Storage {
		s, err := Open(context.Background(), FilePersister{Path: filepath.Join(t.TempDir(), "students.json")})
		require.NoError(t, err)
		return s
	})
}

func TestRedisConformance(t *testing.T) {
	storagetest.Run(t, func(t *testing.T) storage.Storage {
		m, err := mr.Run()
		require.NoError(t, err)
		t.Cleanup(m.Close)

		client := redis.NewClient(&redis.Options{Addr: m.Addr()})
		s, err := Open(context.Background(), NewRedisPersister(client, "test:students"))
		require.NoError(t, err)
		return s
	})
}

func TestFileSnapshotSurvivesReopen(t *testing.T) {
	ctx := context.Background()
	p := FilePersister{Path: filepath.Join(t.TempDir(), "nested", "students.json")}

	s, err := Open(ctx, p)
	require.NoError(t, err)
	a, err := s.CreateStudent(ctx, storagetest.Ahmad)
	require.NoError(t, err)
	b, err := s.CreateStudent(ctx, storagetest.Sara)
	require.NoError(t, err)
	removed, err := s.DeleteStudent(ctx, a.ID)
	require.NoError(t, err)
	require.True(t, removed)

	reopened, err := Open(ctx, p)
	require.NoError(t, err)
	list, err := reopened.ListStudents(ctx)
	require.NoError(t, err)
	require.Equal(t, []types.Student{b}, list)
}

func TestRedisSnapshotIsSingleKey(t *testing.T) {
	m, err := mr.Run()
	require.NoError(t, err)
	defer m.Close()

	client := redis.NewClient(&redis.Options{Addr: m.Addr()})
	ctx := context.Background()

	s, err := Open(ctx, NewRedisPersister(client, ""))
	require.NoError(t, err)
	_, err = s.CreateStudent(ctx, storagetest.Ahmad)
	require.NoError(t, err)

	require.Equal(t, []string{"student-storage"}, m.Keys())

	reopened, err := Open(ctx, NewRedisPersister(client, ""))
	require.NoError(t, err)
	list, err := reopened.ListStudents(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	require.Equal(t, "Ahmad", list[0].Name)
}

func TestOpenRejectsCorruptSnapshot(t *testing.T) {
	path := filepath.Join(t.TempDir(), "students.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"not":"a list"}`), 0o644))

	_, err := Open(context.Background(), FilePersister{Path: path})
	require.Error(t, err)
}

type failingPersister struct{}

func (failingPersister) Load(context.Context) ([]types.Student, error) { return nil, nil }
func (failingPersister) Save(context.Context, []types.Student) error {
	return errors.New("disk full")
}

func TestFailedSaveLeavesCollectionUnchanged(t *testing.T) {
	ctx := context.Background()
	s, err := Open(ctx, failingPersister{})
	require.NoError(t, err)

	_, err = s.CreateStudent(ctx, storagetest.Ahmad)
	require.ErrorIs(t, err, storage.ErrStore)

	list, err := s.ListStudents(ctx)
	require.NoError(t, err)
	require.Empty(t, list)
}
