package realtime

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	mr "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aanand-mishra/student-archive/internal/storage/local"
	"github.com/aanand-mishra/student-archive/internal/types"
)

func receive(t *testing.T, ch <-chan Snapshot) Snapshot {
	t.Helper()
	select {
	case snap, ok := <-ch:
		require.True(t, ok, "channel closed")
		return snap
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for snapshot")
		return Snapshot{}
	}
}

func TestHubLastSnapshotWins(t *testing.T) {
	hub := NewHub()
	ch, cancel := hub.Subscribe()
	defer cancel()

	ctx := context.Background()
	require.NoError(t, hub.Publish(ctx, Snapshot{At: 1}))
	require.NoError(t, hub.Publish(ctx, Snapshot{At: 2}))

	require.Equal(t, int64(2), receive(t, ch).At)
	select {
	case snap := <-ch:
		t.Fatalf("unexpected extra snapshot %d", snap.At)
	default:
	}
}

func TestHubCancelClosesChannel(t *testing.T) {
	hub := NewHub()
	ch, cancel := hub.Subscribe()
	require.Equal(t, 1, hub.Subscribers())

	cancel()
	cancel()
	require.Equal(t, 0, hub.Subscribers())
	_, ok := <-ch
	require.False(t, ok)

	// publishing with no subscribers is fine
	require.NoError(t, hub.Publish(context.Background(), Snapshot{At: 3}))
}

func TestNotifyingPublishesAfterMutations(t *testing.T) {
	hub := NewHub()
	ch, cancel := hub.Subscribe()
	defer cancel()

	ctx := context.Background()
	store := NewNotifying(local.New(), hub)

	a, err := store.CreateStudent(ctx, types.StudentInput{Name: "Ahmad", MotherName: "Fatima", RegistrationNumber: "2023001", PageNumber: "12"})
	require.NoError(t, err)
	snap := receive(t, ch)
	require.Len(t, snap.Students, 1)
	require.Equal(t, a.ID, snap.Students[0].ID)

	page := "99"
	_, err = store.UpdateStudent(ctx, a.ID, types.StudentPatch{PageNumber: &page})
	require.NoError(t, err)
	snap = receive(t, ch)
	require.Equal(t, "99", snap.Students[0].PageNumber)

	removed, err := store.DeleteStudent(ctx, a.ID)
	require.NoError(t, err)
	require.True(t, removed)
	snap = receive(t, ch)
	require.Empty(t, snap.Students)

	// failed or no-op mutations publish nothing
	_, err = store.CreateStudent(ctx, types.StudentInput{})
	require.Error(t, err)
	removed, err = store.DeleteStudent(ctx, a.ID)
	require.NoError(t, err)
	require.False(t, removed)
	select {
	case <-ch:
		t.Fatal("no snapshot expected")
	default:
	}
}

type brokenPublisher struct{}

func (brokenPublisher) Publish(context.Context, Snapshot) error { return errors.New("down") }

func TestNotifyingIgnoresPublishFailure(t *testing.T) {
	store := NewNotifying(local.New(), brokenPublisher{})
	_, err := store.CreateStudent(context.Background(), types.StudentInput{Name: "Sara", MotherName: "Zainab", RegistrationNumber: "2023002", PageNumber: "15"})
	require.NoError(t, err)
}

func TestRedisRelay(t *testing.T) {
	m, err := mr.Run()
	require.NoError(t, err)
	defer m.Close()

	client := redis.NewClient(&redis.Options{Addr: m.Addr()})
	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	hub := NewHub()
	ch, cancel := hub.Subscribe()
	defer cancel()

	relay, err := NewRedisRelay(ctx, client, "test:snapshots", hub)
	require.NoError(t, err)
	go relay.Run(ctx)

	pub := NewRedisPublisher(client, "test:snapshots")
	want := Snapshot{At: 42, Students: []types.Student{{ID: "x", Name: "Omar", MotherName: "Maryam", RegistrationNumber: "2023003", PageNumber: "18", CreatedAt: 7}}}
	require.NoError(t, pub.Publish(ctx, want))

	require.Equal(t, want, receive(t, ch))
}

func TestHubCloseEndsSubscriptions(t *testing.T) {
	hub := NewHub()
	ch, cancel := hub.Subscribe()

	hub.Close()
	_, ok := <-ch
	require.False(t, ok)
	require.Equal(t, 0, hub.Subscribers())
	cancel()

	late, lateCancel := hub.Subscribe()
	defer lateCancel()
	_, ok = <-late
	require.False(t, ok)
	require.NoError(t, hub.Publish(context.Background(), Snapshot{At: 1}))
}

type recordingPublisher struct {
	mu    sync.Mutex
	sizes []int
}

func (p *recordingPublisher) Publish(_ context.Context, snap Snapshot) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.sizes = append(p.sizes, len(snap.Students))
	return nil
}

func TestNotifyingPublishesInOrder(t *testing.T) {
	pub := &recordingPublisher{}
	store := NewNotifying(local.New(), pub)
	ctx := context.Background()

	const writers = 32
	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := store.CreateStudent(ctx, types.StudentInput{Name: "Ahmad", MotherName: "Fatima", RegistrationNumber: "2023001", PageNumber: "12"})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	pub.mu.Lock()
	defer pub.mu.Unlock()
	require.Len(t, pub.sizes, writers)
	require.True(t, sort.IntsAreSorted(pub.sizes), "snapshots went out of order: %v", pub.sizes)
	require.Equal(t, writers, pub.sizes[writers-1])
}

func TestNotifyingRestoreKeepsIdentity(t *testing.T) {
	hub := NewHub()
	ch, cancel := hub.Subscribe()
	defer cancel()

	ctx := context.Background()
	store := NewNotifying(local.New(), hub)
	st := types.NewStudent("kept-id", 1_000, types.StudentInput{Name: "Sara", MotherName: "Zainab", RegistrationNumber: "2023002", PageNumber: "15"})

	restored, err := store.RestoreStudent(ctx, st)
	require.NoError(t, err)
	require.True(t, restored)
	snap := receive(t, ch)
	require.Equal(t, []types.Student{st}, snap.Students)

	restored, err = store.RestoreStudent(ctx, st)
	require.NoError(t, err)
	require.False(t, restored)
	select {
	case <-ch:
		t.Fatal("a skipped restore must not publish")
	default:
	}
}
