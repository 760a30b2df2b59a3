// Package session учитывает живые подключения наблюдателей и очередь, за
// которой следит каждое из них.
package session

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
)

var (
	ErrSessionNotFound = errors.New("session: not found")
	// ErrSendFailed ошибка доставки: сессия не приняла сообщение и снята с
	// регистрации.
	ErrSendFailed = errors.New("session: send failed")
)

// CloseReason причина, по которой сессия была снята с регистрации.
type CloseReason int

const (
	// CloseNormal клиент отключился сам.
	CloseNormal CloseReason = iota
	// CloseSlowConsumer клиент не успевал забирать сообщения.
	CloseSlowConsumer
	// CloseShutdown сервер останавливается.
	CloseShutdown
)

func (r CloseReason) String() string {
	switch r {
	case CloseSlowConsumer:
		return "slow_consumer"
	case CloseShutdown:
		return "shutdown"
	}
	return "normal"
}

// ID идентификатор сессии.
type ID string

func newID() ID {
	return ID(uuid.NewString())
}

// Session одно подключение наблюдателя к одной очереди от имени одного
// пользователя. Исходящие сообщения копятся в буферизованном канале, который
// вычитывает единственный писатель соединения.
type Session struct {
	ID          ID
	SubjectID   uint
	UserID      uint
	ConnectedAt time.Time

	mu     sync.Mutex
	closed bool
	reason CloseReason
	send   chan []byte
}

func newSession(subjectID, userID uint, buffer int, now time.Time) *Session {
	return &Session{
		ID:          newID(),
		SubjectID:   subjectID,
		UserID:      userID,
		ConnectedAt: now,
		send:        make(chan []byte, buffer),
	}
}

// Outbound вычитывает писатель соединения. Канал закрывается при снятии
// сессии с регистрации, после чего CloseReason сообщает причину.
func (s *Session) Outbound() <-chan []byte { return s.send }

// enqueue никогда не блокируется: полный буфер значит, что клиент не успевает.
func (s *Session) enqueue(payload []byte) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	select {
	case s.send <- payload:
		return true
	default:
		return false
	}
}

func (s *Session) close(reason CloseReason) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	s.reason = reason
	close(s.send)
}

// Closed сообщает, снята ли сессия с регистрации.
func (s *Session) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// CloseReason возвращает причину закрытия. До закрытия это CloseNormal.
func (s *Session) CloseReason() CloseReason {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reason
}
