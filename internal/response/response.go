package response

import (
	"encoding/json"
	"time"

	"equeue/internal/queue"
)

// ErrorResponse представляет ответ с ошибкой API
type ErrorResponse struct {
	// Код ошибки для программной обработки
	// example: NOT_QUEUED
	Code string `json:"code"`

	// Человекочитаемое сообщение об ошибке
	// example: Пользователь не состоит в очереди
	Message string `json:"message"`

	// Дополнительные детали об ошибке (опционально)
	Details string `json:"details,omitempty"`
}

// EntryFrame: участник очереди в том виде, в каком он уходит клиентам.
type EntryFrame struct {
	Position   int    `json:"position" example:"1"`
	UserID     uint   `json:"user_id" example:"42"`
	FirstName  string `json:"first_name" example:"Иван"`
	SecondName string `json:"second_name" example:"Иванов"`
	Status     string `json:"status" example:"waiting"`
}

// ErrorFrame: ошибка, отправляемая по websocket только инициатору команды.
type ErrorFrame struct {
	Error string `json:"error" example:"already_queued"`
}

// HealthResponse: состояние движка очередей.
type HealthResponse struct {
	Status       string `json:"status" example:"ok"`
	Sessions     int    `json:"sessions"`
	ActiveQueues int    `json:"active_queues"`
}

// MembershipResponse: очередь, в которой стоит пользователь.
type MembershipResponse struct {
	SubjectID uint      `json:"subject_id" example:"7"`
	Position  int       `json:"position" example:"3"`
	Status    string    `json:"status" example:"waiting"`
	EnteredAt time.Time `json:"entered_at"`
}

// StatusRequest: тело запроса на смену статуса участника.
type StatusRequest struct {
	Status string `json:"status" binding:"required" example:"being_served"`
}

// SnapshotFrame переводит снимок очереди в массив кадров по возрастанию позиции.
func SnapshotFrame(s queue.Snapshot) []EntryFrame {
	frames := make([]EntryFrame, 0, len(s))
	for _, e := range s {
		frames = append(frames, EntryFrame{
			Position:   e.Position,
			UserID:     e.UserID,
			FirstName:  e.FirstName,
			SecondName: e.SecondName,
			Status:     string(e.Status),
		})
	}
	return frames
}

// MarshalSnapshot кодирует снимок в JSON-массив. Пустая очередь даёт "[]".
func MarshalSnapshot(s queue.Snapshot) ([]byte, error) {
	return json.Marshal(SnapshotFrame(s))
}

// MarshalError кодирует кадр ошибки {"error": code}.
func MarshalError(code string) []byte {
	// Кодирование строки не может завершиться ошибкой.
	b, _ := json.Marshal(ErrorFrame{Error: code})
	return b
}
