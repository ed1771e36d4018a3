package local

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/redis/go-redis/v9"

	"github.com/aanand-mishra/student-archive/internal/types"
)

// FilePersister stores the snapshot as a JSON file.
type FilePersister struct {
	Path string
}

func (p FilePersister) Load(_ context.Context) ([]types.Student, error) {
	b, err := os.ReadFile(p.Path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	var students []types.Student
	if err := json.Unmarshal(b, &students); err != nil {
		return nil, fmt.Errorf("decode %s: %w", p.Path, err)
	}
	return students, nil
}

// Save writes to a temporary file first and renames it over the old
// snapshot, so a crash never leaves a half-written file behind.
func (p FilePersister) Save(_ context.Context, students []types.Student) error {
	b, err := json.Marshal(students)
	if err != nil {
		return err
	}
	dir := filepath.Dir(p.Path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, filepath.Base(p.Path)+".*.tmp")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(b); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), p.Path)
}

// RedisPersister stores the snapshot as JSON under a single Redis key,
// without expiry.
type RedisPersister struct {
	client *redis.Client
	key    string
}

// NewRedisPersister creates a Redis-backed persister. Key may be empty.
func NewRedisPersister(client *redis.Client, key string) *RedisPersister {
	if key == "" {
		key = "student-storage"
	}
	return &RedisPersister{client: client, key: key}
}

func (p *RedisPersister) Load(ctx context.Context) ([]types.Student, error) {
	b, err := p.client.Get(ctx, p.key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, err
	}
	var students []types.Student
	if err := json.Unmarshal(b, &students); err != nil {
		return nil, fmt.Errorf("decode key %s: %w", p.key, err)
	}
	return students, nil
}

func (p *RedisPersister) Save(ctx context.Context, students []types.Student) error {
	b, err := json.Marshal(students)
	if err != nil {
		return err
	}
	return p.client.Set(ctx, p.key, b, 0).Err()
}
