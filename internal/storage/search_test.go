package storage

import (
	"errors"
	"testing"

	"github.com/aanand-mishra/student-archive/internal/types"
	"github.com/stretchr/testify/require"
)

func sample() []types.Student {
	return []types.Student{
		{ID: "a", Name: "Ahmad Ali", MotherName: "Fatima", RegistrationNumber: "2023001", PageNumber: "12", CreatedAt: 300},
		{ID: "b", Name: "Sara", MotherName: "Zainab Mahmoud", RegistrationNumber: "2023002", PageNumber: "15", CreatedAt: 200},
		{ID: "c", Name: "Omar", MotherName: "Maryam", RegistrationNumber: "AB-77", PageNumber: "18", CreatedAt: 100},
	}
}

func ids(students []types.Student) []string {
	out := make([]string, 0, len(students))
	for _, s := range students {
		out = append(out, s.ID)
	}
	return out
}

func TestFilter(t *testing.T) {
	tests := []struct {
		name  string
		query string
		want  []string
	}{
		{"blank returns all", "", []string{"a", "b", "c"}},
		{"whitespace returns all", "   ", []string{"a", "b", "c"}},
		{"name is case-insensitive", "AHM", []string{"a"}},
		{"mother name", "zain", []string{"b"}},
		{"registration prefix", "2023", []string{"a", "b"}},
		{"registration is case-sensitive", "ab-77", []string{}},
		{"registration exact case", "AB-77", []string{"c"}},
		{"no match", "xyz", []string{}},
		{"arabic name", "أحمد", []string{}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.want, ids(Filter(sample(), tc.query)))
		})
	}
}

func TestMatchesUnicodeFolding(t *testing.T) {
	s := types.Student{Name: "ÉLODIE", MotherName: "x", RegistrationNumber: "1"}
	require.True(t, Matches(s, "élo"))
}

func TestSortNewestFirst(t *testing.T) {
	list := sample()
	list[0], list[2] = list[2], list[0]
	SortNewestFirst(list)
	require.Equal(t, []string{"a", "b", "c"}, ids(list))
}

func TestErrorWrapping(t *testing.T) {
	verr := &types.ValidationError{Fields: []string{"name"}}
	err := Invalid(verr)
	require.True(t, errors.Is(err, ErrValidation))

	var got *types.ValidationError
	require.True(t, errors.As(err, &got))
	require.Equal(t, []string{"name"}, got.Fields)

	err = Failed("list", errors.New("disk on fire"))
	require.True(t, errors.Is(err, ErrStore))
	require.Contains(t, err.Error(), "list")
}
