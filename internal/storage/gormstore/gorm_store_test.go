package gormstore

import (
	"path/filepath"
	"testing"

	gormsqlite "gorm.io/driver/sqlite"

	"github.com/aanand-mishra/student-archive/internal/storage"
	"github.com/aanand-mishra/student-archive/internal/storage/storagetest"
	"github.com/aanand-mishra/student-archive/internal/types"
	"github.com/stretchr/testify/require"
)

func TestGormStoreConformance(t *testing.T) {
	storagetest.Run(t, func(t *testing.T) storage.Storage {
		s, err := Open(gormsqlite.Open(filepath.Join(t.TempDir(), "students.db")))
		require.NoError(t, err)
		return s
	})
}

func TestEscapeLike(t *testing.T) {
	require.Equal(t, `50\%`, escapeLike("50%"))
	require.Equal(t, `a\_b`, escapeLike("a_b"))
	require.Equal(t, `c\\d`, escapeLike(`c\d`))
	require.Equal(t, "2023", escapeLike("2023"))
}

func TestPatchColumns(t *testing.T) {
	page := "99"
	cols := patchColumns(types.StudentPatch{PageNumber: &page})
	require.Equal(t, map[string]any{"page_number": "99"}, cols)
	require.Empty(t, patchColumns(types.StudentPatch{}))
}
