package queue

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"equeue/internal/models"
)

// GormStore хранит состав очередей в таблицах queues и queue_entries.
type GormStore struct {
	db *gorm.DB
}

func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

// Load читает записи очереди предмета по возрастанию позиции.
func (s *GormStore) Load(ctx context.Context, subjectID uint) ([]Entry, error) {
	var q models.Queue
	err := s.db.WithContext(ctx).Where("subject_id = ?", subjectID).First(&q).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return []Entry{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load queue of subject %d: %w", subjectID, err)
	}

	var rows []models.QueueEntry
	if err := s.db.WithContext(ctx).
		Where("queue_id = ?", q.ID).
		Order("position ASC").
		Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("load entries of queue %d: %w", q.ID, err)
	}

	entries := make([]Entry, 0, len(rows))
	for _, row := range rows {
		entries = append(entries, Entry{
			Position:   row.Position,
			UserID:     row.UserID,
			FirstName:  row.FirstName,
			SecondName: row.SecondName,
			Status:     Status(row.Status),
			EnteredAt:  row.EnteredAt,
		})
	}
	return entries, nil
}

// Save заменяет записи предмета одной транзакцией, при первом сохранении
// создаёт строку очереди.
func (s *GormStore) Save(ctx context.Context, subjectID uint, entries []Entry) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var q models.Queue
		if err := tx.Where(models.Queue{SubjectID: subjectID}).FirstOrCreate(&q).Error; err != nil {
			return fmt.Errorf("ensure queue of subject %d: %w", subjectID, err)
		}
		// Блокирует строку от PurgeEmpty до конца транзакции.
		if err := tx.Model(&q).Update("updated_at", time.Now()).Error; err != nil {
			return fmt.Errorf("touch queue of subject %d: %w", subjectID, err)
		}

		if err := tx.Where("queue_id = ?", q.ID).Delete(&models.QueueEntry{}).Error; err != nil {
			return fmt.Errorf("clear entries of queue %d: %w", q.ID, err)
		}
		if len(entries) == 0 {
			return nil
		}

		rows := make([]models.QueueEntry, 0, len(entries))
		for _, e := range entries {
			rows = append(rows, models.QueueEntry{
				QueueID:    q.ID,
				UserID:     e.UserID,
				Position:   e.Position,
				Status:     string(e.Status),
				FirstName:  e.FirstName,
				SecondName: e.SecondName,
				EnteredAt:  e.EnteredAt,
			})
		}
		if err := tx.Create(&rows).Error; err != nil {
			return fmt.Errorf("write entries of queue %d: %w", q.ID, err)
		}
		return nil
	})
}

// PurgeEmpty удаляет пустые очереди, которые не сохранялись с olderThan.
// Следующий Save создаст строку заново.
func (s *GormStore) PurgeEmpty(ctx context.Context, olderThan time.Time) (int64, error) {
	res := s.db.WithContext(ctx).
		Unscoped().
		Where("updated_at < ?", olderThan).
		Where("NOT EXISTS (SELECT 1 FROM queue_entries WHERE queue_entries.queue_id = queues.id)").
		Delete(&models.Queue{})
	if res.Error != nil {
		return 0, fmt.Errorf("purge empty queues: %w", res.Error)
	}
	return res.RowsAffected, nil
}
