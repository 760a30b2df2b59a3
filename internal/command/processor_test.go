package command

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"equeue/internal/broadcast"
	"equeue/internal/queue"
	"equeue/internal/response"
	"equeue/internal/session"
)

type harness struct {
	registry  *queue.Registry
	sessions  *session.Manager
	processor *Processor
}

func newHarness(t *testing.T, store queue.Store) *harness {
	t.Helper()
	registry := queue.NewRegistry(store)
	sessions := session.NewManager(32, nil)
	d := broadcast.NewDispatcher(registry, sessions, nil)
	registry.SetNotifier(d)
	return &harness{
		registry:  registry,
		sessions:  sessions,
		processor: NewProcessor(registry, sessions, d, nil),
	}
}

func (h *harness) attach(t *testing.T, subjectID, userID uint) *Watcher {
	t.Helper()
	w := h.processor.Attach(context.Background(), subjectID, queue.Member{
		UserID:     userID,
		FirstName:  "first",
		SecondName: "second",
	})
	require.Equal(t, StateWatching, w.State())
	// начальный снимок
	<-w.Session().Outbound()
	return w
}

func frame(t *testing.T, w *Watcher) []byte {
	t.Helper()
	select {
	case p, ok := <-w.Session().Outbound():
		require.True(t, ok, "session closed")
		return p
	case <-time.After(time.Second):
		t.Fatal("no frame")
		return nil
	}
}

func snapshotFrame(t *testing.T, w *Watcher) []response.EntryFrame {
	t.Helper()
	var entries []response.EntryFrame
	require.NoError(t, json.Unmarshal(frame(t, w), &entries))
	return entries
}

func errorFrame(t *testing.T, w *Watcher) string {
	t.Helper()
	var e response.ErrorFrame
	require.NoError(t, json.Unmarshal(frame(t, w), &e))
	return e.Error
}

func silent(t *testing.T, w *Watcher) {
	t.Helper()
	select {
	case p := <-w.Session().Outbound():
		t.Fatalf("unexpected frame %s", p)
	default:
	}
}

func TestStateTransitions(t *testing.T) {
	assert.True(t, StateConnected.CanTransition(StateWatching))
	assert.True(t, StateConnected.CanTransition(StateClosed))
	assert.True(t, StateWatching.CanTransition(StateClosed))
	assert.False(t, StateWatching.CanTransition(StateConnected))
	assert.False(t, StateClosed.CanTransition(StateWatching))
	assert.False(t, StateClosed.CanTransition(StateClosed))
	assert.Equal(t, "watching", StateWatching.String())
}

func TestAttachPushesSnapshot(t *testing.T) {
	h := newHarness(t, queue.NewMemoryStore())
	_, err := h.registry.Enter(context.Background(), 1, queue.Member{UserID: 7})
	require.NoError(t, err)

	w := h.processor.Attach(context.Background(), 1, queue.Member{UserID: 8})
	entries := snapshotFrame(t, w)
	require.Len(t, entries, 1)
	assert.Equal(t, uint(7), entries[0].UserID)
}

func TestEnterLeaveScenario(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, queue.NewMemoryStore())
	one := h.attach(t, 1, 1)
	two := h.attach(t, 1, 2)

	require.NoError(t, h.processor.Handle(ctx, one, "enter"))
	for _, w := range []*Watcher{one, two} {
		entries := snapshotFrame(t, w)
		require.Len(t, entries, 1)
		assert.Equal(t, response.EntryFrame{Position: 1, UserID: 1, FirstName: "first", SecondName: "second", Status: "waiting"}, entries[0])
	}

	require.NoError(t, h.processor.Handle(ctx, two, "enter"))
	for _, w := range []*Watcher{one, two} {
		entries := snapshotFrame(t, w)
		require.Len(t, entries, 2)
		assert.Equal(t, 1, entries[0].Position)
		assert.Equal(t, 2, entries[1].Position)
	}

	require.NoError(t, h.processor.Handle(ctx, one, "leave"))
	for _, w := range []*Watcher{one, two} {
		entries := snapshotFrame(t, w)
		require.Len(t, entries, 1)
		assert.Equal(t, uint(2), entries[0].UserID)
		assert.Equal(t, 1, entries[0].Position)
	}
}

func TestErrorsGoToRequesterOnly(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, queue.NewMemoryStore())
	one := h.attach(t, 1, 1)
	other := h.attach(t, 1, 2)

	require.NoError(t, h.processor.Handle(ctx, one, "enter"))
	snapshotFrame(t, one)
	snapshotFrame(t, other)

	err := h.processor.Handle(ctx, one, "enter")
	assert.ErrorIs(t, err, queue.ErrAlreadyQueued)
	assert.Equal(t, CodeAlreadyQueued, errorFrame(t, one))
	silent(t, other)

	err = h.processor.Handle(ctx, other, "leave")
	assert.ErrorIs(t, err, queue.ErrNotQueued)
	assert.Equal(t, CodeNotQueued, errorFrame(t, other))
	silent(t, one)

	snap, err := h.registry.Snapshot(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, snap, 1)
	assert.Equal(t, StateWatching, one.State())
}

func TestInvalidCommand(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, queue.NewMemoryStore())
	w := h.attach(t, 1, 1)

	for _, text := range []string{"", "ENTER", "join", "get me"} {
		err := h.processor.Handle(ctx, w, text)
		assert.ErrorIs(t, err, ErrInvalidCommand, text)
		assert.Equal(t, CodeInvalidCommand, errorFrame(t, w))
	}
	assert.Equal(t, StateWatching, w.State())
	assert.Equal(t, 1, h.sessions.Count())
}

func TestGetIsTargetedAndIdempotent(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, queue.NewMemoryStore())
	one := h.attach(t, 1, 1)
	other := h.attach(t, 1, 2)
	require.NoError(t, h.processor.Handle(ctx, one, "enter"))
	frame(t, one)
	frame(t, other)

	require.NoError(t, h.processor.Handle(ctx, one, " get\n"))
	first := frame(t, one)
	require.NoError(t, h.processor.Handle(ctx, one, "get"))
	second := frame(t, one)

	assert.Equal(t, first, second)
	silent(t, other)
}

func TestPersistenceFailureReported(t *testing.T) {
	ctx := context.Background()
	store := queue.NewMemoryStore()
	h := newHarness(t, store)
	one := h.attach(t, 1, 1)
	other := h.attach(t, 1, 2)

	store.FailSaves(assert.AnError)
	err := h.processor.Handle(ctx, one, "enter")
	assert.True(t, queue.IsPersistence(err))
	assert.Equal(t, CodePersistenceError, errorFrame(t, one))
	silent(t, other)

	store.FailSaves(nil)
	require.NoError(t, h.processor.Handle(ctx, one, "enter"))
	assert.Len(t, snapshotFrame(t, other), 1)
}

func TestClosedWatcherStopsProcessing(t *testing.T) {
	h := newHarness(t, queue.NewMemoryStore())
	w := h.attach(t, 1, 1)

	h.processor.Close(w)
	h.processor.Close(w)

	assert.Equal(t, StateClosed, w.State())
	assert.Equal(t, 0, h.sessions.Count())
	assert.ErrorIs(t, h.processor.Handle(context.Background(), w, "enter"), ErrNotWatching)

	snap, err := h.registry.Snapshot(context.Background(), 1)
	require.NoError(t, err)
	assert.Empty(t, snap)
}

type gatedStore struct {
	*queue.MemoryStore
	entered chan struct{}
	release chan struct{}
	once    sync.Once
}

func (g *gatedStore) Save(ctx context.Context, subjectID uint, entries []queue.Entry) error {
	g.once.Do(func() {
		g.entered <- struct{}{}
		<-g.release
	})
	if err := ctx.Err(); err != nil {
		return err
	}
	return g.MemoryStore.Save(ctx, subjectID, entries)
}

func TestDisconnectMidCommandStillPersistsAndBroadcasts(t *testing.T) {
	inner := queue.NewMemoryStore()
	require.NoError(t, inner.Save(context.Background(), 1, []queue.Entry{{UserID: 1}, {UserID: 2}}))
	store := &gatedStore{
		MemoryStore: inner,
		entered:     make(chan struct{}),
		release:     make(chan struct{}),
	}
	h := newHarness(t, store)
	leaver := h.attach(t, 1, 1)
	watcher := h.attach(t, 1, 2)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- h.processor.Handle(ctx, leaver, "leave") }()

	<-store.entered
	// Соединение пропадает, пока запись в хранилище ещё идёт.
	cancel()
	h.processor.Close(leaver)
	close(store.release)

	require.NoError(t, <-done)

	entries := snapshotFrame(t, watcher)
	require.Len(t, entries, 1)
	assert.Equal(t, uint(2), entries[0].UserID)
	assert.Equal(t, 1, entries[0].Position)

	persisted, err := inner.Load(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, persisted, 1)
	assert.Equal(t, uint(2), persisted[0].UserID)
}

func TestCodeMapping(t *testing.T) {
	tests := []struct {
		err  error
		code string
	}{
		{queue.ErrAlreadyQueued, CodeAlreadyQueued},
		{queue.ErrNotQueued, CodeNotQueued},
		{ErrInvalidCommand, CodeInvalidCommand},
		{&queue.PersistenceError{Op: "save", SubjectID: 1, Err: assert.AnError}, CodePersistenceError},
		{assert.AnError, CodeInternalError},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.code, Code(tt.err), tt.err.Error())
	}
}
