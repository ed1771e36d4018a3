package storage

import (
	"fmt"
	"sort"
	"strings"

	"github.com/aanand-mishra/student-archive/internal/types"
)

// IsBlankQuery reports whether query selects every student.
func IsBlankQuery(query string) bool {
	return strings.TrimSpace(query) == ""
}

// Matches reports whether s matches a non-blank query: the lower-cased
// query is contained in the lower-cased name or mother's name, or the
// raw query is contained in the registration number. Registration
// numbers are numeric in practice so they are not case folded.
func Matches(s types.Student, query string) bool {
	lower := strings.ToLower(query)
	return strings.Contains(strings.ToLower(s.Name), lower) ||
		strings.Contains(strings.ToLower(s.MotherName), lower) ||
		strings.Contains(s.RegistrationNumber, query)
}

// Filter returns the students matching query, keeping their order.
// A blank query returns students unchanged.
func Filter(students []types.Student, query string) []types.Student {
	if IsBlankQuery(query) {
		return students
	}
	out := make([]types.Student, 0, len(students))
	for _, s := range students {
		if Matches(s, query) {
			out = append(out, s)
		}
	}
	return out
}

// SortNewestFirst orders students by CreatedAt descending. Ties keep
// their relative order.
func SortNewestFirst(students []types.Student) {
	sort.SliceStable(students, func(i, j int) bool {
		return students[i].CreatedAt > students[j].CreatedAt
	})
}

// Invalid wraps a validation failure so that errors.Is(err, ErrValidation)
// holds and errors.As still finds the *types.ValidationError.
func Invalid(err error) error {
	return fmt.Errorf("%w: %w", ErrValidation, err)
}

// Failed wraps a backend failure for operation op with ErrStore.
func Failed(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrStore, op, err)
}
