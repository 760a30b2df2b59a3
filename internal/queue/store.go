package queue

import (
	"context"
	"sync"
)

// Store долговременная запись состава очередей по предметам.
type Store interface {
	// Load возвращает сохранённые записи предмета в порядке очереди.
	// Неизвестный предмет даёт пустой срез, а не ошибку.
	Load(ctx context.Context, subjectID uint) ([]Entry, error)
	// Save заменяет сохранённые записи предмета.
	Save(ctx context.Context, subjectID uint, entries []Entry) error
}

// MemoryStore хранилище в памяти процесса. Сбои задаются через FailSaves и
// FailLoads.
type MemoryStore struct {
	mu      sync.Mutex
	queues  map[uint][]Entry
	saveErr error
	loadErr error
	saves   int
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{queues: make(map[uint][]Entry)}
}

func (m *MemoryStore) Load(_ context.Context, subjectID uint) ([]Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.loadErr != nil {
		return nil, m.loadErr
	}
	return clone(m.queues[subjectID]), nil
}

func (m *MemoryStore) Save(_ context.Context, subjectID uint, entries []Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.saveErr != nil {
		return m.saveErr
	}
	m.saves++
	if len(entries) == 0 {
		delete(m.queues, subjectID)
		return nil
	}
	m.queues[subjectID] = clone(entries)
	return nil
}

// FailSaves заставляет все следующие Save возвращать err, nil отменяет сбой.
func (m *MemoryStore) FailSaves(err error) {
	m.mu.Lock()
	m.saveErr = err
	m.mu.Unlock()
}

// FailLoads заставляет все следующие Load возвращать err, nil отменяет сбой.
func (m *MemoryStore) FailLoads(err error) {
	m.mu.Lock()
	m.loadErr = err
	m.mu.Unlock()
}

// Saves возвращает число успешных сохранений.
func (m *MemoryStore) Saves() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saves
}
