package queue

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Notifier узнаёт, какой предмет изменился, после того как изменение
// сохранено.
type Notifier interface {
	Notify(subjectID uint)
}

// Registry авторитетное состояние всех активных очередей в памяти.
//
// У каждого предмета своя блокировка: создаётся при первом обращении и
// пропадает при выгрузке очереди. Изменения одного предмета идут строго по
// очереди, разные предметы друг друга не ждут. Общий mutex защищает только
// карту предметов и не держится во время ожидания блокировки предмета.
type Registry struct {
	store  Store
	logger *slog.Logger
	now    func() time.Time

	notifierMu sync.RWMutex
	notifier   Notifier

	mu     sync.Mutex
	queues map[uint]*subjectQueue
}

type subjectQueue struct {
	mu       sync.Mutex
	loaded   bool
	evicted  bool
	entries  []Entry
	lastUsed time.Time
}

// RegistryOption настраивает Registry.
type RegistryOption func(*Registry)

// WithLogger задаёт логгер реестра.
func WithLogger(l *slog.Logger) RegistryOption {
	return func(r *Registry) { r.logger = l }
}

// WithClock подменяет time.Now.
func WithClock(now func() time.Time) RegistryOption {
	return func(r *Registry) { r.now = now }
}

// WithNotifier задаёт получателя уведомлений об изменениях.
func WithNotifier(n Notifier) RegistryOption {
	return func(r *Registry) { r.notifier = n }
}

func NewRegistry(store Store, opts ...RegistryOption) *Registry {
	r := &Registry{
		store:  store,
		logger: slog.Default(),
		now:    time.Now,
		queues: make(map[uint]*subjectQueue),
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

// SetNotifier подключает получателя после создания: диспетчеру рассылки
// реестр нужен раньше.
func (r *Registry) SetNotifier(n Notifier) {
	r.notifierMu.Lock()
	r.notifier = n
	r.notifierMu.Unlock()
}

// acquire возвращает загруженную и заблокированную очередь предмета. Разблокирует вызывающий.
func (r *Registry) acquire(ctx context.Context, subjectID uint) (*subjectQueue, error) {
	for {
		r.mu.Lock()
		q, ok := r.queues[subjectID]
		if !ok {
			q = &subjectQueue{}
			r.queues[subjectID] = q
		}
		r.mu.Unlock()

		q.mu.Lock()
		if q.evicted {
			// Проиграли гонку с EvictIdle, ищем предмет заново.
			q.mu.Unlock()
			continue
		}
		q.lastUsed = r.now()
		if !q.loaded {
			entries, err := r.store.Load(ctx, subjectID)
			if err != nil {
				q.mu.Unlock()
				return nil, &PersistenceError{Op: "load", SubjectID: subjectID, Err: err}
			}
			q.entries = renumber(clone(entries))
			q.loaded = true
			r.logger.Debug("queue loaded", "subject_id", subjectID, "entries", len(q.entries))
		}
		return q, nil
	}
}

// Snapshot возвращает текущие записи предмета по порядку. Новый предмет
// создаётся пустым.
func (r *Registry) Snapshot(ctx context.Context, subjectID uint) (Snapshot, error) {
	q, err := r.acquire(ctx, subjectID)
	if err != nil {
		return nil, err
	}
	defer q.mu.Unlock()
	return clone(q.entries), nil
}

// View вызывает fn с текущим снимком под блокировкой предмета, так что
// изменения этого предмета не могут вклиниться. fn не должна обращаться к
// реестру за тем же предметом.
func (r *Registry) View(ctx context.Context, subjectID uint, fn func(Snapshot)) error {
	q, err := r.acquire(ctx, subjectID)
	if err != nil {
		return err
	}
	defer q.mu.Unlock()
	fn(clone(q.entries))
	return nil
}

// Enter ставит участника в конец очереди со статусом waiting. Если
// пользователь уже в очереди, возвращает ErrAlreadyQueued.
func (r *Registry) Enter(ctx context.Context, subjectID uint, m Member) (Entry, error) {
	var entry Entry
	err := r.mutate(ctx, subjectID, func(entries []Entry) ([]Entry, error) {
		if indexOf(entries, m.UserID) >= 0 {
			return nil, ErrAlreadyQueued
		}
		next := append(clone(entries), Entry{
			UserID:     m.UserID,
			FirstName:  m.FirstName,
			SecondName: m.SecondName,
			Status:     StatusWaiting,
			EnteredAt:  r.now().UTC(),
		})
		next = renumber(next)
		entry = next[len(next)-1]
		return next, nil
	})
	if err != nil {
		return Entry{}, err
	}
	return entry, nil
}

// Leave убирает пользователя из очереди и сдвигает остальных. Если его нет
// в очереди, возвращает ErrNotQueued.
func (r *Registry) Leave(ctx context.Context, subjectID, userID uint) error {
	return r.mutate(ctx, subjectID, func(entries []Entry) ([]Entry, error) {
		i := indexOf(entries, userID)
		if i < 0 {
			return nil, ErrNotQueued
		}
		next := make([]Entry, 0, len(entries)-1)
		next = append(next, entries[:i]...)
		next = append(next, entries[i+1:]...)
		return renumber(next), nil
	})
}

// SetStatus меняет статус участника. Переход в being_served ставит его в
// начало очереди.
func (r *Registry) SetStatus(ctx context.Context, subjectID, userID uint, status Status) (Entry, error) {
	if !status.Valid() {
		return Entry{}, ErrInvalidStatus
	}

	var entry Entry
	err := r.mutate(ctx, subjectID, func(entries []Entry) ([]Entry, error) {
		i := indexOf(entries, userID)
		if i < 0 {
			return nil, ErrNotQueued
		}
		next := clone(entries)
		next[i].Status = status
		if status == StatusBeingServed && i > 0 {
			e := next[i]
			copy(next[1:i+1], next[:i])
			next[0] = e
		}
		next = renumber(next)
		entry, _ = Snapshot(next).Find(userID)
		return next, nil
	})
	if err != nil {
		return Entry{}, err
	}
	return entry, nil
}

// mutate вычисляет новое состояние, сохраняет его и только потом применяет
// и уведомляет. При сбое хранилища память не меняется.
func (r *Registry) mutate(ctx context.Context, subjectID uint, apply func([]Entry) ([]Entry, error)) error {
	q, err := r.acquire(ctx, subjectID)
	if err != nil {
		return err
	}

	next, err := apply(q.entries)
	if err != nil {
		q.mu.Unlock()
		return err
	}
	if err := r.store.Save(ctx, subjectID, next); err != nil {
		q.mu.Unlock()
		r.logger.Error("queue save failed", "subject_id", subjectID, "error", err)
		return &PersistenceError{Op: "save", SubjectID: subjectID, Err: err}
	}
	q.entries = next
	q.mu.Unlock()

	r.notify(subjectID)
	return nil
}

func (r *Registry) notify(subjectID uint) {
	r.notifierMu.RLock()
	n := r.notifier
	r.notifierMu.RUnlock()
	if n != nil {
		n.Notify(subjectID)
	}
}

// EvictIdle выгружает из памяти очереди без наблюдателей, к которым не
// обращались дольше idle. При следующем обращении они читаются из
// хранилища. Возвращает id выгруженных предметов.
func (r *Registry) EvictIdle(idle time.Duration, watched func(subjectID uint) bool) []uint {
	r.mu.Lock()
	candidates := make(map[uint]*subjectQueue, len(r.queues))
	for id, q := range r.queues {
		candidates[id] = q
	}
	r.mu.Unlock()

	now := r.now()
	var evicted []uint
	for id, q := range candidates {
		if watched != nil && watched(id) {
			continue
		}
		q.mu.Lock()
		if now.Sub(q.lastUsed) >= idle {
			r.mu.Lock()
			if r.queues[id] == q {
				delete(r.queues, id)
			}
			r.mu.Unlock()
			q.evicted = true
			evicted = append(evicted, id)
		}
		q.mu.Unlock()
	}
	return evicted
}

// Len возвращает число очередей в памяти.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.queues)
}
