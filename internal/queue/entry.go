// Package queue держит авторитетное состояние очередей в памяти и
// хранилище, из которого оно восстанавливается.
package queue

import (
	"slices"
	"time"
)

// Status состояние обслуживания записи в очереди.
type Status string

const (
	StatusWaiting     Status = "waiting"
	StatusBeingServed Status = "being_served"
	StatusDone        Status = "done"
)

// Valid сообщает, известен ли статус.
func (s Status) Valid() bool {
	switch s {
	case StatusWaiting, StatusBeingServed, StatusDone:
		return true
	}
	return false
}

// Entry место пользователя в очереди.
type Entry struct {
	Position   int       `json:"position"`
	UserID     uint      `json:"user_id"`
	FirstName  string    `json:"first_name"`
	SecondName string    `json:"second_name"`
	Status     Status    `json:"status"`
	EnteredAt  time.Time `json:"entered_at"`
}

// Member пользователь, встающий в очередь.
type Member struct {
	UserID     uint
	FirstName  string
	SecondName string
}

// Snapshot упорядоченный состав очереди, позиция 1 первой.
type Snapshot []Entry

// Positions возвращает позиции всех записей по порядку.
func (s Snapshot) Positions() []int {
	out := make([]int, len(s))
	for i, e := range s {
		out[i] = e.Position
	}
	return out
}

// Find возвращает запись userID, если он в очереди.
func (s Snapshot) Find(userID uint) (Entry, bool) {
	if i := indexOf(s, userID); i >= 0 {
		return s[i], true
	}
	return Entry{}, false
}

// renumber пересчитывает позиции по порядку, всегда 1..N.
func renumber(entries []Entry) []Entry {
	for i := range entries {
		entries[i].Position = i + 1
	}
	return entries
}

func indexOf(entries []Entry, userID uint) int {
	return slices.IndexFunc(entries, func(e Entry) bool { return e.UserID == userID })
}

func clone(entries []Entry) []Entry {
	return append([]Entry(nil), entries...)
}
