package queue

import (
	"errors"
	"fmt"
)

var (
	ErrAlreadyQueued = errors.New("queue: user already queued")
	ErrNotQueued     = errors.New("queue: user not queued")
	ErrInvalidStatus = errors.New("queue: invalid status")
)

// PersistenceError возвращается, когда хранилище отклонило чтение или
// запись. Очередь в памяти не изменилась и ничего не разослано, запрос можно
// повторить.
type PersistenceError struct {
	Op        string
	SubjectID uint
	Err       error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("queue: %s subject %d: %v", e.Op, e.SubjectID, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// Retryable всегда true: изменение не применено.
func (e *PersistenceError) Retryable() bool { return true }

// IsPersistence сообщает, является ли err (или оборачивает) *PersistenceError.
func IsPersistence(err error) bool {
	var pe *PersistenceError
	return errors.As(err, &pe)
}
