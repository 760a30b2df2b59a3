package queue

import (
	"context"
	"fmt"
	"sort"
	"time"
)

// Membership очередь, в которой сейчас стоит пользователь.
type Membership struct {
	SubjectID uint
	Position  int
	Status    Status
	EnteredAt time.Time
}

// MembershipLister находит все очереди пользователя.
type MembershipLister interface {
	MembershipsOf(ctx context.Context, userID uint) ([]Membership, error)
}

// MembershipsOf перечисляет очереди пользователя по возрастанию предмета.
func (s *GormStore) MembershipsOf(ctx context.Context, userID uint) ([]Membership, error) {
	var rows []struct {
		SubjectID uint
		Position  int
		Status    string
		EnteredAt time.Time
	}
	err := s.db.WithContext(ctx).
		Table("queue_entries").
		Select("queues.subject_id, queue_entries.position, queue_entries.status, queue_entries.entered_at").
		Joins("JOIN queues ON queues.id = queue_entries.queue_id AND queues.deleted_at IS NULL").
		Where("queue_entries.user_id = ?", userID).
		Order("queues.subject_id ASC").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("memberships of user %d: %w", userID, err)
	}

	out := make([]Membership, 0, len(rows))
	for _, row := range rows {
		out = append(out, Membership{
			SubjectID: row.SubjectID,
			Position:  row.Position,
			Status:    Status(row.Status),
			EnteredAt: row.EnteredAt,
		})
	}
	return out, nil
}

func (m *MemoryStore) MembershipsOf(_ context.Context, userID uint) ([]Membership, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.loadErr != nil {
		return nil, m.loadErr
	}

	var out []Membership
	for subjectID, entries := range m.queues {
		if i := indexOf(entries, userID); i >= 0 {
			out = append(out, Membership{
				SubjectID: subjectID,
				Position:  i + 1,
				Status:    entries[i].Status,
				EnteredAt: entries[i].EnteredAt,
			})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SubjectID < out[j].SubjectID })
	return out, nil
}
