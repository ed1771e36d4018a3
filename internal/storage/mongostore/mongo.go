// Package mongostore implements storage.Storage on a MongoDB collection.
// Each student is one document keyed by its "id" field.
package mongostore

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/aanand-mishra/student-archive/internal/storage"
	"github.com/aanand-mishra/student-archive/internal/types"
)

var (
	_ storage.Storage  = (*Repo)(nil)
	_ storage.Restorer = (*Repo)(nil)
)

// Repo implements a MongoDB-backed student store.
type Repo struct {
	client *mongo.Client
	col    *mongo.Collection
}

// Connect opens a connection, pings the server and returns a Repo on
// database/collection. Close disconnects the client.
func Connect(ctx context.Context, uri, database, collection string, timeout time.Duration) (*Repo, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("mongo connect: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("mongo ping: %w", err)
	}
	repo, err := NewRepo(ctx, client.Database(database).Collection(collection))
	if err != nil {
		_ = client.Disconnect(context.Background())
		return nil, err
	}
	repo.client = client
	return repo, nil
}

// NewRepo wraps col and makes sure its indexes exist: a unique index on
// "id" and a descending one on "createdAt" for the list order.
func NewRepo(ctx context.Context, col *mongo.Collection) (*Repo, error) {
	_, err := col.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "id", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "createdAt", Value: -1}}},
	})
	if err != nil {
		return nil, fmt.Errorf("mongo indexes: %w", err)
	}
	return &Repo{col: col}, nil
}

func (m *Repo) Close() error {
	if m.client == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return m.client.Disconnect(ctx)
}

func (m *Repo) CreateStudent(ctx context.Context, in types.StudentInput) (types.Student, error) {
	if err := types.ValidateInput(in); err != nil {
		return types.Student{}, storage.Invalid(err)
	}
	student := types.NewStudent(uuid.NewString(), time.Now().UnixMilli(), in)
	if _, err := m.col.InsertOne(ctx, student); err != nil {
		return types.Student{}, storage.Failed("insert student", err)
	}
	return student, nil
}

// RestoreStudent upserts with $setOnInsert, so an existing id is never
// overwritten and the insert is atomic against concurrent restores.
func (m *Repo) RestoreStudent(ctx context.Context, student types.Student) (bool, error) {
	if err := storage.ValidateRestore(student); err != nil {
		return false, err
	}
	res, err := m.col.UpdateOne(ctx,
		bson.M{"id": student.ID},
		bson.M{"$setOnInsert": student},
		options.Update().SetUpsert(true),
	)
	if err != nil {
		return false, storage.Failed("restore student", err)
	}
	return res.UpsertedCount > 0, nil
}

func (m *Repo) GetStudent(ctx context.Context, id string) (types.Student, bool, error) {
	var s types.Student
	err := m.col.FindOne(ctx, bson.M{"id": id}).Decode(&s)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return types.Student{}, false, nil
		}
		return types.Student{}, false, storage.Failed("find student", err)
	}
	return s, true, nil
}

func (m *Repo) ListStudents(ctx context.Context) ([]types.Student, error) {
	return m.find(ctx, bson.M{})
}

func (m *Repo) SearchStudents(ctx context.Context, query string) ([]types.Student, error) {
	if storage.IsBlankQuery(query) {
		return m.find(ctx, bson.M{})
	}
	return m.find(ctx, searchFilter(query))
}

func (m *Repo) find(ctx context.Context, filter bson.M) ([]types.Student, error) {
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}})
	cur, err := m.col.Find(ctx, filter, opts)
	if err != nil {
		return nil, storage.Failed("find students", err)
	}
	defer cur.Close(ctx)

	out := []types.Student{}
	for cur.Next(ctx) {
		var s types.Student
		if err := cur.Decode(&s); err != nil {
			return nil, storage.Failed("decode student", err)
		}
		out = append(out, s)
	}
	if err := cur.Err(); err != nil {
		return nil, storage.Failed("iterate students", err)
	}
	return out, nil
}

func (m *Repo) UpdateStudent(ctx context.Context, id string, patch types.StudentPatch) (types.Student, error) {
	if err := types.ValidatePatch(patch); err != nil {
		return types.Student{}, storage.Invalid(err)
	}
	if set := patchSet(patch); len(set) > 0 {
		res, err := m.col.UpdateOne(ctx, bson.M{"id": id}, bson.M{"$set": set})
		if err != nil {
			return types.Student{}, storage.Failed("update student", err)
		}
		if res.MatchedCount == 0 {
			return types.Student{}, fmt.Errorf("update student %s: %w", id, storage.ErrNotFound)
		}
	}
	s, ok, err := m.GetStudent(ctx, id)
	if err != nil {
		return types.Student{}, err
	}
	if !ok {
		return types.Student{}, fmt.Errorf("update student %s: %w", id, storage.ErrNotFound)
	}
	return s, nil
}

func (m *Repo) DeleteStudent(ctx context.Context, id string) (bool, error) {
	res, err := m.col.DeleteOne(ctx, bson.M{"id": id})
	if err != nil {
		return false, storage.Failed("delete student", err)
	}
	return res.DeletedCount > 0, nil
}

// searchFilter matches name and motherName case-insensitively and
// registrationNumber case-sensitively. The query is quoted so it is
// matched literally.
func searchFilter(query string) bson.M {
	quoted := regexp.QuoteMeta(query)
	return bson.M{"$or": []bson.M{
		{"name": primitive.Regex{Pattern: quoted, Options: "i"}},
		{"motherName": primitive.Regex{Pattern: quoted, Options: "i"}},
		{"registrationNumber": primitive.Regex{Pattern: quoted}},
	}}
}

func patchSet(p types.StudentPatch) bson.M {
	set := bson.M{}
	if p.Name != nil {
		set["name"] = *p.Name
	}
	if p.MotherName != nil {
		set["motherName"] = *p.MotherName
	}
	if p.RegistrationNumber != nil {
		set["registrationNumber"] = *p.RegistrationNumber
	}
	if p.PageNumber != nil {
		set["pageNumber"] = *p.PageNumber
	}
	if p.PhotoURL != nil {
		set["photoUrl"] = *p.PhotoURL
	}
	return set
}
