// Package storagetest is a conformance suite run against every
// storage.Storage backend, so that they all behave the same way.
package storagetest

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/aanand-mishra/student-archive/internal/storage"
	"github.com/aanand-mishra/student-archive/internal/types"
	"github.com/stretchr/testify/require"
)

// Factory returns a fresh, empty store. The suite closes it.
type Factory func(t *testing.T) storage.Storage

// Ahmad and Sara are the two students used throughout the scenarios.
var (
	Ahmad = types.StudentInput{Name: "Ahmad", MotherName: "Fatima", RegistrationNumber: "2023001", PageNumber: "12"}
	Sara  = types.StudentInput{Name: "Sara", MotherName: "Zainab", RegistrationNumber: "2023002", PageNumber: "15"}
)

// Run executes the whole suite.
func Run(t *testing.T, newStore Factory) {
	t.Helper()

	cases := []struct {
		name string
		fn   func(t *testing.T, s storage.Storage)
	}{
		{"CreateThenGet", testCreateThenGet},
		{"CreateRejectsBlankFields", testCreateRejectsBlankFields},
		{"GetMissing", testGetMissing},
		{"ListEmpty", testListEmpty},
		{"DeleteIsIdempotent", testDeleteIsIdempotent},
		{"UpdateChangesOnlyGivenField", testUpdateChangesOnlyGivenField},
		{"UpdateMissing", testUpdateMissing},
		{"UpdateRejectsBlankField", testUpdateRejectsBlankField},
		{"UpdateEmptyPatch", testUpdateEmptyPatch},
		{"SearchScenario", testSearchScenario},
		{"SearchBlankEqualsList", testSearchBlankEqualsList},
		{"PhotoURL", testPhotoURL},
		{"ReturnedRecordsAreCopies", testReturnedRecordsAreCopies},
		{"RestoreKeepsIdentity", testRestoreKeepsIdentity},
		{"RestoreRejectsInvalid", testRestoreRejectsInvalid},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			s := newStore(t)
			defer s.Close()
			tc.fn(t, s)
		})
	}
}

// createInOrder creates inputs with distinct, increasing timestamps.
func createInOrder(t *testing.T, s storage.Storage, inputs ...types.StudentInput) []types.Student {
	t.Helper()
	out := make([]types.Student, 0, len(inputs))
	for i, in := range inputs {
		if i > 0 {
			time.Sleep(3 * time.Millisecond)
		}
		st, err := s.CreateStudent(context.Background(), in)
		require.NoError(t, err)
		out = append(out, st)
	}
	return out
}

func ids(students []types.Student) []string {
	out := make([]string, 0, len(students))
	for _, s := range students {
		out = append(out, s.ID)
	}
	return out
}

func testCreateThenGet(t *testing.T, s storage.Storage) {
	ctx := context.Background()
	before := time.Now().UnixMilli()

	created, err := s.CreateStudent(ctx, Ahmad)
	require.NoError(t, err)
	require.NotEmpty(t, created.ID)
	require.GreaterOrEqual(t, created.CreatedAt, before)

	got, ok, err := s.GetStudent(ctx, created.ID)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, created, got)
	require.Equal(t, Ahmad.Name, got.Name)
	require.Equal(t, Ahmad.MotherName, got.MotherName)
	require.Equal(t, Ahmad.RegistrationNumber, got.RegistrationNumber)
	require.Equal(t, Ahmad.PageNumber, got.PageNumber)
	require.Nil(t, got.PhotoURL)
}

func testCreateRejectsBlankFields(t *testing.T, s storage.Storage) {
	ctx := context.Background()

	in := Ahmad
	in.Name = ""
	_, err := s.CreateStudent(ctx, in)
	require.ErrorIs(t, err, storage.ErrValidation)

	var verr *types.ValidationError
	require.True(t, errors.As(err, &verr))
	require.Equal(t, []string{"name"}, verr.Fields)

	in = Ahmad
	in.PageNumber = "   "
	_, err = s.CreateStudent(ctx, in)
	require.ErrorIs(t, err, storage.ErrValidation)

	list, err := s.ListStudents(ctx)
	require.NoError(t, err)
	require.Empty(t, list)
}

func testGetMissing(t *testing.T, s storage.Storage) {
	_, ok, err := s.GetStudent(context.Background(), "does-not-exist")
	require.NoError(t, err)
	require.False(t, ok)
}

func testListEmpty(t *testing.T, s storage.Storage) {
	list, err := s.ListStudents(context.Background())
	require.NoError(t, err)
	require.NotNil(t, list)
	require.Empty(t, list)
}

func testDeleteIsIdempotent(t *testing.T, s storage.Storage) {
	ctx := context.Background()
	created, err := s.CreateStudent(ctx, Ahmad)
	require.NoError(t, err)

	removed, err := s.DeleteStudent(ctx, created.ID)
	require.NoError(t, err)
	require.True(t, removed)

	removed, err = s.DeleteStudent(ctx, created.ID)
	require.NoError(t, err)
	require.False(t, removed)

	_, ok, err := s.GetStudent(ctx, created.ID)
	require.NoError(t, err)
	require.False(t, ok)
}

func testUpdateChangesOnlyGivenField(t *testing.T, s storage.Storage) {
	ctx := context.Background()
	created := createInOrder(t, s, Ahmad, Sara)
	b := created[1]

	page := "99"
	updated, err := s.UpdateStudent(ctx, b.ID, types.StudentPatch{PageNumber: &page})
	require.NoError(t, err)

	want := b
	want.PageNumber = "99"
	require.Equal(t, want, updated)

	got, ok, err := s.GetStudent(ctx, b.ID)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, want, got)

	// the other record is untouched
	a, ok, err := s.GetStudent(ctx, created[0].ID)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, created[0], a)
}

func testUpdateMissing(t *testing.T, s storage.Storage) {
	name := "Nobody"
	_, err := s.UpdateStudent(context.Background(), "does-not-exist", types.StudentPatch{Name: &name})
	require.ErrorIs(t, err, storage.ErrNotFound)
}

func testUpdateRejectsBlankField(t *testing.T, s storage.Storage) {
	ctx := context.Background()
	created, err := s.CreateStudent(ctx, Ahmad)
	require.NoError(t, err)

	blank := " "
	_, err = s.UpdateStudent(ctx, created.ID, types.StudentPatch{MotherName: &blank})
	require.ErrorIs(t, err, storage.ErrValidation)

	got, _, err := s.GetStudent(ctx, created.ID)
	require.NoError(t, err)
	require.Equal(t, created, got)
}

func testUpdateEmptyPatch(t *testing.T, s storage.Storage) {
	ctx := context.Background()
	created, err := s.CreateStudent(ctx, Ahmad)
	require.NoError(t, err)

	got, err := s.UpdateStudent(ctx, created.ID, types.StudentPatch{})
	require.NoError(t, err)
	require.Equal(t, created, got)

	_, err = s.UpdateStudent(ctx, "does-not-exist", types.StudentPatch{})
	require.ErrorIs(t, err, storage.ErrNotFound)
}

func testSearchScenario(t *testing.T, s storage.Storage) {
	ctx := context.Background()
	created := createInOrder(t, s, Ahmad, Sara)
	a, b := created[0], created[1]

	got, err := s.SearchStudents(ctx, "ahm")
	require.NoError(t, err)
	require.Equal(t, []string{a.ID}, ids(got))

	got, err = s.SearchStudents(ctx, "ZAIN")
	require.NoError(t, err)
	require.Equal(t, []string{b.ID}, ids(got))

	got, err = s.SearchStudents(ctx, "2023")
	require.NoError(t, err)
	require.Equal(t, []string{b.ID, a.ID}, ids(got))

	got, err = s.SearchStudents(ctx, "nothing-like-this")
	require.NoError(t, err)
	require.Empty(t, got)

	removed, err := s.DeleteStudent(ctx, a.ID)
	require.NoError(t, err)
	require.True(t, removed)

	list, err := s.ListStudents(ctx)
	require.NoError(t, err)
	require.Equal(t, []string{b.ID}, ids(list))
}

func testSearchBlankEqualsList(t *testing.T, s storage.Storage) {
	ctx := context.Background()
	createInOrder(t, s, Ahmad, Sara)

	list, err := s.ListStudents(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)

	for _, q := range []string{"", "  "} {
		got, err := s.SearchStudents(ctx, q)
		require.NoError(t, err)
		require.Equal(t, list, got)
	}
}

func testPhotoURL(t *testing.T, s storage.Storage) {
	ctx := context.Background()
	in := Sara
	photo := "data:image/png;base64,iVBORw0KGgo="
	in.PhotoURL = &photo

	created, err := s.CreateStudent(ctx, in)
	require.NoError(t, err)
	require.NotNil(t, created.PhotoURL)
	require.Equal(t, photo, *created.PhotoURL)

	remote := "https://example.com/p.jpg"
	updated, err := s.UpdateStudent(ctx, created.ID, types.StudentPatch{PhotoURL: &remote})
	require.NoError(t, err)
	require.Equal(t, remote, *updated.PhotoURL)

	got, _, err := s.GetStudent(ctx, created.ID)
	require.NoError(t, err)
	require.Equal(t, remote, *got.PhotoURL)
}

func testReturnedRecordsAreCopies(t *testing.T, s storage.Storage) {
	ctx := context.Background()
	in := Ahmad
	photo := "https://example.com/a.jpg"
	in.PhotoURL = &photo

	created, err := s.CreateStudent(ctx, in)
	require.NoError(t, err)
	*created.PhotoURL = "changed-by-caller"

	got, _, err := s.GetStudent(ctx, created.ID)
	require.NoError(t, err)
	require.Equal(t, photo, *got.PhotoURL)
	*got.PhotoURL = "changed-by-caller"

	list, err := s.ListStudents(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	require.Equal(t, photo, *list[0].PhotoURL)
	*list[0].PhotoURL = "changed-by-caller"

	got, _, err = s.GetStudent(ctx, created.ID)
	require.NoError(t, err)
	require.Equal(t, photo, *got.PhotoURL)
}

func testRestoreKeepsIdentity(t *testing.T, s storage.Storage) {
	ctx := context.Background()
	_, ok := s.(storage.Restorer)
	require.True(t, ok, "backend should keep identity on restore")

	older := types.NewStudent("restored-older", 1_000, Ahmad)
	newer := types.NewStudent("restored-newer", 2_000, Sara)

	// restored out of order on purpose
	for _, st := range []types.Student{older, newer} {
		restored, err := storage.RestoreStudent(ctx, s, st)
		require.NoError(t, err)
		require.True(t, restored)
	}

	got, ok, err := s.GetStudent(ctx, older.ID)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, older, got)

	// an id that is already stored is left untouched
	clash := types.NewStudent(older.ID, 3_000, Sara)
	restored, err := storage.RestoreStudent(ctx, s, clash)
	require.NoError(t, err)
	require.False(t, restored)

	list, err := s.ListStudents(ctx)
	require.NoError(t, err)
	require.Equal(t, []string{newer.ID, older.ID}, ids(list))
	require.Equal(t, older, list[1])

	// ordinary creates still sort ahead of old restored records
	created, err := s.CreateStudent(ctx, Ahmad)
	require.NoError(t, err)
	list, err = s.ListStudents(ctx)
	require.NoError(t, err)
	require.Equal(t, []string{created.ID, newer.ID, older.ID}, ids(list))
}

func testRestoreRejectsInvalid(t *testing.T, s storage.Storage) {
	ctx := context.Background()

	blank := types.NewStudent("restored-blank", 1_000, Ahmad)
	blank.Name = "  "
	_, err := storage.RestoreStudent(ctx, s, blank)
	require.ErrorIs(t, err, storage.ErrValidation)

	_, err = storage.RestoreStudent(ctx, s, types.NewStudent("", 1_000, Ahmad))
	require.ErrorIs(t, err, storage.ErrValidation)

	list, err := s.ListStudents(ctx)
	require.NoError(t, err)
	require.Empty(t, list)
}
