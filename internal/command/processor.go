package command

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"equeue/internal/broadcast"
	"equeue/internal/queue"
	"equeue/internal/session"
)

// Входящие команды.
const (
	CmdGet   = "get"
	CmdEnter = "enter"
	CmdLeave = "leave"
)

// Коды ошибок в кадрах {"error": ...}.
const (
	CodeAlreadyQueued    = "already_queued"
	CodeNotQueued        = "not_queued"
	CodeInvalidCommand   = "invalid_command"
	CodePersistenceError = "persistence_error"
	CodeInternalError    = "internal_error"
)

var (
	ErrInvalidCommand = errors.New("command: invalid command")
	ErrNotWatching    = errors.New("command: connection is not watching")
)

// Code переводит ошибку движка в код для клиента.
func Code(err error) string {
	switch {
	case errors.Is(err, queue.ErrAlreadyQueued):
		return CodeAlreadyQueued
	case errors.Is(err, queue.ErrNotQueued):
		return CodeNotQueued
	case errors.Is(err, ErrInvalidCommand):
		return CodeInvalidCommand
	case queue.IsPersistence(err):
		return CodePersistenceError
	}
	return CodeInternalError
}

// Watcher состояние одного подключения, которым управляет Processor.
type Watcher struct {
	SubjectID uint
	Member    queue.Member

	mu      sync.Mutex
	state   State
	session *session.Session
}

// State возвращает текущее состояние жизненного цикла.
func (w *Watcher) State() State {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.state
}

// Session возвращает зарегистрированную сессию, до Watching это nil.
func (w *Watcher) Session() *session.Session {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.session
}

func (w *Watcher) transition(next State) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.state.CanTransition(next) {
		return fmt.Errorf("command: illegal transition %s -> %s", w.state, next)
	}
	w.state = next
	return nil
}

// Processor передаёт команды наблюдающих подключений в реестр и отвечает
// через диспетчер.
type Processor struct {
	registry   *queue.Registry
	sessions   *session.Manager
	dispatcher *broadcast.Dispatcher
	logger     *slog.Logger
	tracer     trace.Tracer
}

// tracerName имя инструментирования для span команд.
const tracerName = "equeue/internal/command"

// Option настраивает Processor.
type Option func(*Processor)

// WithTracer заменяет глобальный трассировщик OpenTelemetry.
func WithTracer(t trace.Tracer) Option {
	return func(p *Processor) { p.tracer = t }
}

func NewProcessor(registry *queue.Registry, sessions *session.Manager, dispatcher *broadcast.Dispatcher, logger *slog.Logger, opts ...Option) *Processor {
	if logger == nil {
		logger = slog.Default()
	}
	p := &Processor{
		registry:   registry,
		sessions:   sessions,
		dispatcher: dispatcher,
		logger:     logger,
		tracer:     otel.Tracer(tracerName),
	}
	for _, o := range opts {
		o(p)
	}
	return p
}

// Attach регистрирует авторизованное подключение на subjectID, переводит его
// в Watching и сразу отправляет текущий снимок очереди.
func (p *Processor) Attach(ctx context.Context, subjectID uint, m queue.Member) *Watcher {
	w := &Watcher{SubjectID: subjectID, Member: m, state: StateConnected}
	s := p.sessions.Register(subjectID, m.UserID)

	w.mu.Lock()
	w.session = s
	w.mu.Unlock()
	if err := w.transition(StateWatching); err != nil {
		p.logger.Error("attach failed", "session_id", s.ID, "error", err)
		p.Close(w)
		return w
	}

	if err := p.dispatcher.SendSnapshot(ctx, s.ID, subjectID); err != nil {
		p.logger.Warn("initial snapshot failed", "session_id", s.ID, "subject_id", subjectID, "error", err)
		p.reply(w, err)
	}
	return w
}

// Handle выполняет одну текстовую команду. Ошибки движка уходят инициатору
// кадром ошибки и возвращаются, соединение при этом не закрывается.
// Только ErrNotWatching означает, что чтение пора прекратить.
func (p *Processor) Handle(ctx context.Context, w *Watcher, text string) error {
	if w.State() != StateWatching {
		return ErrNotWatching
	}
	s := w.Session()
	cmd := strings.TrimSpace(text)

	ctx, span := p.tracer.Start(ctx, "equeue.command",
		trace.WithAttributes(
			attribute.String("equeue.command", cmd),
			attribute.Int64("equeue.subject_id", int64(w.SubjectID)),
			attribute.Int64("equeue.user_id", int64(w.Member.UserID)),
			attribute.String("equeue.session_id", string(s.ID)),
		),
		trace.WithSpanKind(trace.SpanKindServer),
	)
	defer span.End()

	var err error
	switch cmd {
	case CmdGet:
		err = p.dispatcher.SendSnapshot(ctx, s.ID, w.SubjectID)
		if errors.Is(err, session.ErrSendFailed) || errors.Is(err, session.ErrSessionNotFound) {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return err
		}
	case CmdEnter:
		// Принятое изменение доводится до конца, даже если клиент уже отключился.
		_, err = p.registry.Enter(context.WithoutCancel(ctx), w.SubjectID, w.Member)
	case CmdLeave:
		err = p.registry.Leave(context.WithoutCancel(ctx), w.SubjectID, w.Member.UserID)
	default:
		err = fmt.Errorf("%w: %q", ErrInvalidCommand, cmd)
	}
	if err != nil {
		p.logger.Debug("command rejected",
			"session_id", s.ID,
			"subject_id", w.SubjectID,
			"user_id", w.Member.UserID,
			"error", err,
		)
		p.reply(w, err)
		span.RecordError(err)
		span.SetStatus(codes.Error, Code(err))
		return err
	}
	span.SetStatus(codes.Ok, "")
	return nil
}

// Close переводит watcher в Closed и снимает его сессию. Повторный вызов
// ничего не делает.
func (p *Processor) Close(w *Watcher) {
	if err := w.transition(StateClosed); err != nil {
		return
	}
	if s := w.Session(); s != nil {
		p.sessions.Deregister(s.ID)
	}
}

func (p *Processor) reply(w *Watcher, err error) {
	s := w.Session()
	if s == nil {
		return
	}
	if sendErr := p.dispatcher.SendError(s.ID, Code(err)); sendErr != nil {
		p.logger.Debug("error frame not delivered", "session_id", s.ID, "error", sendErr)
	}
}
