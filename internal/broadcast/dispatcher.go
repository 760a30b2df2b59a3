// Package broadcast рассылает снимки очереди наблюдающим за ней сессиям.
package broadcast

import (
	"context"
	"errors"
	"log/slog"

	"equeue/internal/queue"
	"equeue/internal/response"
	"equeue/internal/session"
)

// Dispatcher рассылает снимки из реестра через менеджер сессий.
//
// Рассылка идёт под блокировкой предмета, поэтому каждая сессия получает
// снимки одного предмета в порядке изменений. Постановка в очередь не
// блокируется: отстающую сессию менеджер снимает, остальные не страдают.
type Dispatcher struct {
	registry *queue.Registry
	sessions *session.Manager
	logger   *slog.Logger
}

func NewDispatcher(registry *queue.Registry, sessions *session.Manager, logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{registry: registry, sessions: sessions, logger: logger}
}

// Notify отправляет текущий снимок subjectID всем наблюдающим сессиям.
func (d *Dispatcher) Notify(subjectID uint) {
	err := d.registry.View(context.Background(), subjectID, func(s queue.Snapshot) {
		ids := d.sessions.SessionsFor(subjectID)
		if len(ids) == 0 {
			return
		}
		payload, err := response.MarshalSnapshot(s)
		if err != nil {
			d.logger.Error("snapshot encode failed", "subject_id", subjectID, "error", err)
			return
		}
		delivered := 0
		for _, id := range ids {
			if err := d.sessions.Send(id, payload); err != nil {
				d.logger.Debug("broadcast skipped session", "session_id", id, "error", err)
				continue
			}
			delivered++
		}
		d.logger.Debug("snapshot broadcast", "subject_id", subjectID, "entries", len(s), "sessions", delivered)
	})
	if err != nil {
		d.logger.Error("broadcast failed", "subject_id", subjectID, "error", err)
	}
}

// SendSnapshot отправляет текущий снимок subjectID только одной сессии.
func (d *Dispatcher) SendSnapshot(ctx context.Context, id session.ID, subjectID uint) error {
	var sendErr error
	err := d.registry.View(ctx, subjectID, func(s queue.Snapshot) {
		payload, err := response.MarshalSnapshot(s)
		if err != nil {
			sendErr = err
			return
		}
		sendErr = d.sessions.Send(id, payload)
	})
	return errors.Join(err, sendErr)
}

// SendError отправляет кадр ошибки только одной сессии.
func (d *Dispatcher) SendError(id session.ID, code string) error {
	return d.sessions.Send(id, response.MarshalError(code))
}
