package models

import (
	"gorm.io/gorm"
)

// Queue: очередь на сдачу по предмету. Одна очередь на предмет.
type Queue struct {
	gorm.Model
	SubjectID uint         `gorm:"uniqueIndex;not null"` // Ссылка на предмет
	Entries   []QueueEntry `gorm:"foreignKey:QueueID;constraint:OnDelete:CASCADE"`
}
