package tasks

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"equeue/internal/queue"
	"equeue/internal/session"
)

// Purger удаляет из хранилища пустые очереди.
type Purger interface {
	PurgeEmpty(ctx context.Context, olderThan time.Time) (int64, error)
}

// Planner держит зависимости фоновых задач.
type Planner struct {
	Registry    *queue.Registry
	Sessions    *session.Manager
	Purger      Purger
	IdleTimeout time.Duration
	Logger      *slog.Logger
}

// EvictIdleQueues выгружает из памяти очереди, которые никто не смотрит и
// которые не трогали дольше IdleTimeout. Их блокировки уходят вместе с ними.
func (p *Planner) EvictIdleQueues() {
	evicted := p.Registry.EvictIdle(p.IdleTimeout, p.Sessions.Watched)
	if len(evicted) == 0 {
		return
	}
	p.logger().Info("idle queues evicted", "subjects", evicted, "remaining", p.Registry.Len())
}

// CleanEmptyQueues удаляет строки пустых очередей старше суток.
func (p *Planner) CleanEmptyQueues() {
	if p.Purger == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	n, err := p.Purger.PurgeEmpty(ctx, time.Now().Add(-24*time.Hour))
	if err != nil {
		p.logger().Error("empty queue cleanup failed", "error", err)
		return
	}
	p.logger().Info("empty queues removed", "count", n)
}

func (p *Planner) logger() *slog.Logger {
	if p.Logger == nil {
		return slog.Default()
	}
	return p.Logger
}

// InitScheduler инициализирует и запускает планировщик cron-задач.
func InitScheduler(evictionSpec string, p *Planner) (*cron.Cron, error) {
	c := cron.New(cron.WithSeconds())

	if _, err := c.AddFunc(evictionSpec, p.EvictIdleQueues); err != nil {
		return nil, fmt.Errorf("tasks: eviction spec %q: %w", evictionSpec, err)
	}

	// Очистка пустых очередей каждый день в 03:00.
	if _, err := c.AddFunc("0 0 3 * * *", p.CleanEmptyQueues); err != nil {
		return nil, fmt.Errorf("tasks: cleanup spec: %w", err)
	}

	c.Start()
	p.logger().Info("cron scheduler started", "eviction_spec", evictionSpec)
	return c, nil
}
