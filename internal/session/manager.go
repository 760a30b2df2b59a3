package session

import (
	"log/slog"
	"sort"
	"sync"
	"time"
)

// Manager владеет всеми живыми сессиями и индексирует их по id и по очереди.
// user id приходит уже проверенным: токен валидируется до Register.
type Manager struct {
	buffer int
	logger *slog.Logger
	now    func() time.Time

	mu        sync.RWMutex
	sessions  map[ID]*Session
	bySubject map[uint]map[ID]*Session
}

// NewManager создаёт менеджер, сессии которого держат до buffer исходящих
// сообщений.
func NewManager(buffer int, logger *slog.Logger) *Manager {
	if buffer <= 0 {
		buffer = 1
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		buffer:    buffer,
		logger:    logger,
		now:       time.Now,
		sessions:  make(map[ID]*Session),
		bySubject: make(map[uint]map[ID]*Session),
	}
}

// Register добавляет сессию, наблюдающую за subjectID. Один пользователь
// может держать сколько угодно сессий на одной очереди.
func (m *Manager) Register(subjectID, userID uint) *Session {
	s := newSession(subjectID, userID, m.buffer, m.now().UTC())

	m.mu.Lock()
	m.sessions[s.ID] = s
	if m.bySubject[subjectID] == nil {
		m.bySubject[subjectID] = make(map[ID]*Session)
	}
	m.bySubject[subjectID][s.ID] = s
	total := len(m.sessions)
	m.mu.Unlock()

	m.logger.Info("session registered",
		"session_id", s.ID,
		"subject_id", subjectID,
		"user_id", userID,
		"sessions", total,
	)
	return s
}

// Deregister снимает сессию после отключения клиента. Неизвестные id
// игнорируются.
func (m *Manager) Deregister(id ID) {
	m.deregister(id, CloseNormal)
}

func (m *Manager) deregister(id ID, reason CloseReason) {
	m.mu.Lock()
	s, ok := m.sessions[id]
	if ok {
		delete(m.sessions, id)
		if subs := m.bySubject[s.SubjectID]; subs != nil {
			delete(subs, id)
			if len(subs) == 0 {
				delete(m.bySubject, s.SubjectID)
			}
		}
	}
	total := len(m.sessions)
	m.mu.Unlock()

	if !ok {
		return
	}
	s.close(reason)
	m.logger.Info("session deregistered",
		"session_id", id,
		"subject_id", s.SubjectID,
		"user_id", s.UserID,
		"reason", reason.String(),
		"duration", m.now().UTC().Sub(s.ConnectedAt).Round(time.Millisecond),
		"sessions", total,
	)
}

// SessionsFor возвращает id сессий очереди subjectID, старые первыми.
func (m *Manager) SessionsFor(subjectID uint) []ID {
	m.mu.RLock()
	subs := make([]*Session, 0, len(m.bySubject[subjectID]))
	for _, s := range m.bySubject[subjectID] {
		subs = append(subs, s)
	}
	m.mu.RUnlock()

	sort.Slice(subs, func(i, j int) bool {
		if subs[i].ConnectedAt.Equal(subs[j].ConnectedAt) {
			return subs[i].ID < subs[j].ID
		}
		return subs[i].ConnectedAt.Before(subs[j].ConnectedAt)
	})
	ids := make([]ID, len(subs))
	for i, s := range subs {
		ids[i] = s.ID
	}
	return ids
}

// Send ставит payload в очередь писателя сессии. Сессия, которая не может
// его принять, снимается с причиной CloseSlowConsumer, возвращается
// ErrSendFailed.
func (m *Manager) Send(id ID, payload []byte) error {
	s, ok := m.Get(id)
	if !ok {
		return ErrSessionNotFound
	}
	if !s.enqueue(payload) {
		m.logger.Warn("dropping session: send buffer full or closed", "session_id", id, "subject_id", s.SubjectID)
		m.deregister(id, CloseSlowConsumer)
		return ErrSendFailed
	}
	return nil
}

// Get возвращает живую сессию.
func (m *Manager) Get(id ID) (*Session, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[id]
	return s, ok
}

// Watched сообщает, следит ли кто-нибудь за subjectID.
func (m *Manager) Watched(subjectID uint) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.bySubject[subjectID]) > 0
}

// Count возвращает число живых сессий.
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// CloseAll снимает все сессии при остановке сервера.
func (m *Manager) CloseAll() {
	m.mu.RLock()
	ids := make([]ID, 0, len(m.sessions))
	for id := range m.sessions {
		ids = append(ids, id)
	}
	m.mu.RUnlock()

	for _, id := range ids {
		m.deregister(id, CloseShutdown)
	}
}
