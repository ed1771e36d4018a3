package realtime

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/aanand-mishra/student-archive/internal/storage"
	"github.com/aanand-mishra/student-archive/internal/types"
)

var (
	_ storage.Storage  = (*Notifying)(nil)
	_ storage.Restorer = (*Notifying)(nil)
)

// Notifying wraps a storage.Storage and publishes a fresh snapshot after
// every successful mutation. Reads go straight to the wrapped store.
//
// A failed publish is logged and does not fail the mutation: the record
// is already stored.
//
// Listing and publishing happen under one lock, so snapshots leave in the
// order they were taken and an older list never lands after a newer one.
type Notifying struct {
	storage.Storage
	pub Publisher
	mu  sync.Mutex
}

func NewNotifying(s storage.Storage, pub Publisher) *Notifying {
	return &Notifying{Storage: s, pub: pub}
}

func (n *Notifying) CreateStudent(ctx context.Context, in types.StudentInput) (types.Student, error) {
	st, err := n.Storage.CreateStudent(ctx, in)
	if err == nil {
		n.notify(ctx)
	}
	return st, err
}

func (n *Notifying) UpdateStudent(ctx context.Context, id string, patch types.StudentPatch) (types.Student, error) {
	st, err := n.Storage.UpdateStudent(ctx, id, patch)
	if err == nil {
		n.notify(ctx)
	}
	return st, err
}

func (n *Notifying) DeleteStudent(ctx context.Context, id string) (bool, error) {
	removed, err := n.Storage.DeleteStudent(ctx, id)
	if err == nil && removed {
		n.notify(ctx)
	}
	return removed, err
}

// RestoreStudent forwards to the wrapped store through
// storage.RestoreStudent, so identity is kept whenever the backend can.
func (n *Notifying) RestoreStudent(ctx context.Context, student types.Student) (bool, error) {
	restored, err := storage.RestoreStudent(ctx, n.Storage, student)
	if err == nil && restored {
		n.notify(ctx)
	}
	return restored, err
}

// Current takes a snapshot of the wrapped store.
func Current(ctx context.Context, s storage.Storage) (Snapshot, error) {
	students, err := s.ListStudents(ctx)
	if err != nil {
		return Snapshot{}, err
	}
	if students == nil {
		students = []types.Student{}
	}
	return Snapshot{Students: students, At: time.Now().UnixMilli()}, nil
}

func (n *Notifying) notify(ctx context.Context) {
	n.mu.Lock()
	defer n.mu.Unlock()

	snap, err := Current(ctx, n.Storage)
	if err != nil {
		slog.Error("snapshot after mutation failed", slog.String("error", err.Error()))
		return
	}
	if err := n.pub.Publish(ctx, snap); err != nil {
		slog.Error("publishing snapshot failed", slog.String("error", err.Error()))
	}
}
