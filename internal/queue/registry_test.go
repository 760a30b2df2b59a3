package queue

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingNotifier struct {
	mu       sync.Mutex
	subjects []uint
}

func (n *recordingNotifier) Notify(subjectID uint) {
	n.mu.Lock()
	n.subjects = append(n.subjects, subjectID)
	n.mu.Unlock()
}

func (n *recordingNotifier) calls() []uint {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]uint(nil), n.subjects...)
}

func member(id uint) Member {
	return Member{UserID: id, FirstName: fmt.Sprintf("Имя%d", id), SecondName: fmt.Sprintf("Фамилия%d", id)}
}

func assertDense(t *testing.T, snap Snapshot) {
	t.Helper()
	for i, e := range snap {
		assert.Equal(t, i+1, e.Position, "position of user %d", e.UserID)
	}
}

func TestEnterLeaveScenario(t *testing.T) {
	ctx := context.Background()
	notifier := &recordingNotifier{}
	r := NewRegistry(NewMemoryStore(), WithNotifier(notifier))

	e1, err := r.Enter(ctx, 7, member(1))
	require.NoError(t, err)
	assert.Equal(t, 1, e1.Position)
	assert.Equal(t, StatusWaiting, e1.Status)

	snap, err := r.Snapshot(ctx, 7)
	require.NoError(t, err)
	require.Len(t, snap, 1)
	assert.Equal(t, uint(1), snap[0].UserID)

	e2, err := r.Enter(ctx, 7, member(2))
	require.NoError(t, err)
	assert.Equal(t, 2, e2.Position)

	require.NoError(t, r.Leave(ctx, 7, 1))

	snap, err = r.Snapshot(ctx, 7)
	require.NoError(t, err)
	require.Len(t, snap, 1)
	assert.Equal(t, uint(2), snap[0].UserID)
	assert.Equal(t, 1, snap[0].Position)

	assert.Equal(t, []uint{7, 7, 7}, notifier.calls())
}

func TestEnterTwiceFailsAlreadyQueued(t *testing.T) {
	ctx := context.Background()
	notifier := &recordingNotifier{}
	r := NewRegistry(NewMemoryStore(), WithNotifier(notifier))

	_, err := r.Enter(ctx, 1, member(1))
	require.NoError(t, err)

	_, err = r.Enter(ctx, 1, member(1))
	assert.ErrorIs(t, err, ErrAlreadyQueued)

	snap, err := r.Snapshot(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, snap, 1)
	assert.Len(t, notifier.calls(), 1, "rejected enter must not notify")
}

func TestLeaveAbsentFailsNotQueued(t *testing.T) {
	ctx := context.Background()
	r := NewRegistry(NewMemoryStore())

	err := r.Leave(ctx, 1, 42)
	assert.ErrorIs(t, err, ErrNotQueued)

	_, err = r.Enter(ctx, 1, member(42))
	require.NoError(t, err)
	require.NoError(t, r.Leave(ctx, 1, 42))
	assert.ErrorIs(t, r.Leave(ctx, 1, 42), ErrNotQueued)
}

func TestLeaveRenumbersFromMiddle(t *testing.T) {
	ctx := context.Background()
	r := NewRegistry(NewMemoryStore())

	for id := uint(1); id <= 5; id++ {
		_, err := r.Enter(ctx, 3, member(id))
		require.NoError(t, err)
	}
	require.NoError(t, r.Leave(ctx, 3, 3))

	snap, err := r.Snapshot(ctx, 3)
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2, 3, 4}, snap.Positions())

	ids := make([]uint, len(snap))
	for i, e := range snap {
		ids[i] = e.UserID
	}
	assert.Equal(t, []uint{1, 2, 4, 5}, ids)
}

func TestSnapshotIsStableWithoutMutation(t *testing.T) {
	ctx := context.Background()
	r := NewRegistry(NewMemoryStore())
	_, err := r.Enter(ctx, 1, member(1))
	require.NoError(t, err)

	a, err := r.Snapshot(ctx, 1)
	require.NoError(t, err)
	b, err := r.Snapshot(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, a, b)

	// Вызывающий получает копии.
	a[0].FirstName = "changed"
	c, err := r.Snapshot(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, b, c)
}

func TestPersistenceFailureLeavesStateUntouched(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	notifier := &recordingNotifier{}
	r := NewRegistry(store, WithNotifier(notifier))

	_, err := r.Enter(ctx, 1, member(1))
	require.NoError(t, err)

	boom := errors.New("disk full")
	store.FailSaves(boom)

	_, err = r.Enter(ctx, 1, member(2))
	require.Error(t, err)
	assert.True(t, IsPersistence(err))
	assert.ErrorIs(t, err, boom)

	var pe *PersistenceError
	require.ErrorAs(t, err, &pe)
	assert.True(t, pe.Retryable())
	assert.Equal(t, "save", pe.Op)

	err = r.Leave(ctx, 1, 1)
	assert.True(t, IsPersistence(err))

	snap, err := r.Snapshot(ctx, 1)
	require.NoError(t, err)
	require.Len(t, snap, 1)
	assert.Equal(t, uint(1), snap[0].UserID)
	assert.Equal(t, []uint{1}, notifier.calls(), "failed saves must not notify")

	store.FailSaves(nil)
	_, err = r.Enter(ctx, 1, member(2))
	require.NoError(t, err, "retry after recovery")
}

func TestLoadFailureIsPersistenceError(t *testing.T) {
	store := NewMemoryStore()
	store.FailLoads(errors.New("db down"))
	r := NewRegistry(store)

	_, err := r.Snapshot(context.Background(), 5)
	require.Error(t, err)
	var pe *PersistenceError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, "load", pe.Op)

	store.FailLoads(nil)
	snap, err := r.Snapshot(context.Background(), 5)
	require.NoError(t, err)
	assert.Empty(t, snap)
}

func TestStateRecoveredFromStore(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	first := NewRegistry(store)
	for id := uint(1); id <= 3; id++ {
		_, err := first.Enter(ctx, 9, member(id))
		require.NoError(t, err)
	}
	require.NoError(t, first.Leave(ctx, 9, 1))

	restarted := NewRegistry(store)
	snap, err := restarted.Snapshot(ctx, 9)
	require.NoError(t, err)
	require.Len(t, snap, 2)
	assert.Equal(t, uint(2), snap[0].UserID)
	assert.Equal(t, []int{1, 2}, snap.Positions())

	_, err = restarted.Enter(ctx, 9, member(2))
	assert.ErrorIs(t, err, ErrAlreadyQueued)
}

func TestSetStatus(t *testing.T) {
	ctx := context.Background()
	r := NewRegistry(NewMemoryStore())
	for id := uint(1); id <= 3; id++ {
		_, err := r.Enter(ctx, 1, member(id))
		require.NoError(t, err)
	}

	e, err := r.SetStatus(ctx, 1, 3, StatusBeingServed)
	require.NoError(t, err)
	assert.Equal(t, 1, e.Position)
	assert.Equal(t, StatusBeingServed, e.Status)

	snap, err := r.Snapshot(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2, 3}, snap.Positions())
	assert.Equal(t, uint(3), snap[0].UserID)
	assert.Equal(t, uint(1), snap[1].UserID)
	assert.Equal(t, uint(2), snap[2].UserID)

	e, err = r.SetStatus(ctx, 1, 3, StatusDone)
	require.NoError(t, err)
	assert.Equal(t, 1, e.Position)

	_, err = r.SetStatus(ctx, 1, 3, Status("frozen"))
	assert.ErrorIs(t, err, ErrInvalidStatus)
	_, err = r.SetStatus(ctx, 1, 99, StatusDone)
	assert.ErrorIs(t, err, ErrNotQueued)
}

func TestOrderPreservedForRemainingMembers(t *testing.T) {
	ctx := context.Background()
	r := NewRegistry(NewMemoryStore())
	rng := rand.New(rand.NewSource(1))

	queued := map[uint]bool{}
	for step := 0; step < 500; step++ {
		id := uint(rng.Intn(20) + 1)
		if rng.Intn(2) == 0 {
			_, err := r.Enter(ctx, 1, member(id))
			if queued[id] {
				assert.ErrorIs(t, err, ErrAlreadyQueued)
			} else {
				require.NoError(t, err)
				queued[id] = true
			}
		} else {
			err := r.Leave(ctx, 1, id)
			if queued[id] {
				require.NoError(t, err)
				delete(queued, id)
			} else {
				assert.ErrorIs(t, err, ErrNotQueued)
			}
		}

		snap, err := r.Snapshot(ctx, 1)
		require.NoError(t, err)
		require.Len(t, snap, len(queued))
		assertDense(t, snap)
		for i := 1; i < len(snap); i++ {
			assert.True(t, !snap[i-1].EnteredAt.After(snap[i].EnteredAt), "entry order must follow enter order")
		}
	}
}

func TestConcurrentEnterSameSubject(t *testing.T) {
	ctx := context.Background()
	r := NewRegistry(NewMemoryStore())

	const users = 50
	var wg sync.WaitGroup
	for id := uint(1); id <= users; id++ {
		wg.Add(1)
		go func(id uint) {
			defer wg.Done()
			_, err := r.Enter(ctx, 1, member(id))
			assert.NoError(t, err)
		}(id)
	}
	wg.Wait()

	snap, err := r.Snapshot(ctx, 1)
	require.NoError(t, err)
	require.Len(t, snap, users)
	assertDense(t, snap)

	seen := map[uint]bool{}
	for _, e := range snap {
		assert.False(t, seen[e.UserID])
		seen[e.UserID] = true
	}
}

func TestConcurrentEnterLeaveKeepsPermutation(t *testing.T) {
	ctx := context.Background()
	r := NewRegistry(NewMemoryStore())

	var wg sync.WaitGroup
	for id := uint(1); id <= 40; id++ {
		wg.Add(1)
		go func(id uint) {
			defer wg.Done()
			for i := 0; i < 10; i++ {
				_, _ = r.Enter(ctx, 2, member(id))
				if id%2 == 0 {
					_ = r.Leave(ctx, 2, id)
				}
			}
		}(id)
	}
	wg.Wait()

	snap, err := r.Snapshot(ctx, 2)
	require.NoError(t, err)
	assert.Len(t, snap, 20)
	assertDense(t, snap)
}

type blockingStore struct {
	*MemoryStore
	subject uint
	entered chan struct{}
	release chan struct{}
}

func (b *blockingStore) Save(ctx context.Context, subjectID uint, entries []Entry) error {
	if subjectID == b.subject {
		b.entered <- struct{}{}
		<-b.release
	}
	return b.MemoryStore.Save(ctx, subjectID, entries)
}

func TestSubjectsDoNotBlockEachOther(t *testing.T) {
	ctx := context.Background()
	store := &blockingStore{
		MemoryStore: NewMemoryStore(),
		subject:     1,
		entered:     make(chan struct{}),
		release:     make(chan struct{}),
	}
	r := NewRegistry(store)

	done := make(chan error, 1)
	go func() {
		_, err := r.Enter(ctx, 1, member(1))
		done <- err
	}()
	<-store.entered

	// Предмет 1 завис на сохранении под своей блокировкой, предмет 2 идёт дальше.
	finished := make(chan error, 1)
	go func() {
		_, err := r.Enter(ctx, 2, member(1))
		finished <- err
	}()
	select {
	case err := <-finished:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("enter on subject 2 blocked by subject 1")
	}

	close(store.release)
	require.NoError(t, <-done)
}

func TestViewHoldsSubjectLock(t *testing.T) {
	ctx := context.Background()
	r := NewRegistry(NewMemoryStore())
	_, err := r.Enter(ctx, 1, member(1))
	require.NoError(t, err)

	inView := make(chan struct{})
	leaveView := make(chan struct{})
	go func() {
		_ = r.View(ctx, 1, func(s Snapshot) {
			close(inView)
			<-leaveView
		})
	}()
	<-inView

	entered := make(chan struct{})
	go func() {
		_, _ = r.Enter(ctx, 1, member(2))
		close(entered)
	}()

	select {
	case <-entered:
		t.Fatal("enter ran while view held the subject")
	case <-time.After(50 * time.Millisecond):
	}
	close(leaveView)
	<-entered
}

func TestEvictIdle(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2025, 4, 20, 12, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }
	store := NewMemoryStore()
	r := NewRegistry(store, WithClock(clock))

	_, err := r.Enter(ctx, 1, member(1))
	require.NoError(t, err)
	_, err = r.Snapshot(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, 2, r.Len())

	now = now.Add(time.Minute)
	assert.Empty(t, r.EvictIdle(5*time.Minute, nil), "not idle yet")

	now = now.Add(10 * time.Minute)
	watched := func(id uint) bool { return id == 2 }
	assert.Equal(t, []uint{1}, r.EvictIdle(5*time.Minute, watched))
	assert.Equal(t, 1, r.Len())

	// При следующем обращении читается из хранилища.
	snap, err := r.Snapshot(ctx, 1)
	require.NoError(t, err)
	require.Len(t, snap, 1)
	assert.Equal(t, uint(1), snap[0].UserID)
	assert.Equal(t, 2, r.Len())
}
