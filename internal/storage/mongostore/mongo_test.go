package mongostore

import (
	"context"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/aanand-mishra/student-archive/internal/storage"
	"github.com/aanand-mishra/student-archive/internal/storage/storagetest"
	"github.com/aanand-mishra/student-archive/internal/types"
)

// TestConformance needs a running server, e.g.
//
//	MONGODB_URI=mongodb://localhost:27017 go test ./internal/storage/mongostore
func TestConformance(t *testing.T) {
	uri := os.Getenv("MONGODB_URI")
	if uri == "" {
		t.Skip("MONGODB_URI not set")
	}

	storagetest.Run(t, func(t *testing.T) storage.Storage {
		ctx := context.Background()
		// one throwaway database per case keeps the cases independent
		db := "student_archive_test_" + strings.ReplaceAll(uuid.NewString(), "-", "")
		repo, err := Connect(ctx, uri, db, "students", 10*time.Second)
		require.NoError(t, err)
		t.Cleanup(func() {
			// runs after the suite's Close, so it needs its own client
			cleanup, err := Connect(context.Background(), uri, db, "students", 10*time.Second)
			if err != nil {
				return
			}
			defer cleanup.Close()
			_ = cleanup.col.Database().Drop(context.Background())
		})
		return repo
	})
}

func TestSearchFilterQuotesQuery(t *testing.T) {
	f := searchFilter("a.b(")
	or, ok := f["$or"].([]bson.M)
	require.True(t, ok)
	require.Len(t, or, 3)

	require.Equal(t, primitive.Regex{Pattern: `a\.b\(`, Options: "i"}, or[0]["name"])
	require.Equal(t, primitive.Regex{Pattern: `a\.b\(`, Options: "i"}, or[1]["motherName"])
	// registration numbers are matched without case folding
	require.Equal(t, primitive.Regex{Pattern: `a\.b\(`}, or[2]["registrationNumber"])
}

func TestPatchSet(t *testing.T) {
	page, photo := "99", "https://example.com/p.jpg"
	set := patchSet(types.StudentPatch{PageNumber: &page, PhotoURL: &photo})
	require.Equal(t, bson.M{"pageNumber": "99", "photoUrl": photo}, set)
	require.Empty(t, patchSet(types.StudentPatch{}))
}
