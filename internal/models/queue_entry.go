package models

import (
	"time"
)

// QueueEntry: участник очереди. Позиция хранится только как снимок порядка,
// авторитетный порядок живёт в памяти реестра.
type QueueEntry struct {
	ID         uint      `gorm:"primarykey"`
	QueueID    uint      `gorm:"uniqueIndex:uq_queue_entries_queue_user;not null"`
	UserID     uint      `gorm:"uniqueIndex:uq_queue_entries_queue_user;not null"`
	Position   int       `gorm:"not null"`
	Status     string    `gorm:"size:32;not null;default:'waiting'"`
	FirstName  string    `gorm:"size:255;not null"`
	SecondName string    `gorm:"size:255;not null"`
	EnteredAt  time.Time `gorm:"not null"`
}

// All возвращает модели для AutoMigrate.
func All() []any {
	return []any{&User{}, &Queue{}, &QueueEntry{}}
}
