package ws

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"equeue/internal/auth"
	"equeue/internal/command"
	"equeue/internal/queue"
	"equeue/internal/response"
	"equeue/internal/session"
)

// Options задаёт таймауты и лимиты соединения.
type Options struct {
	ReadLimit  int64
	PongWait   time.Duration
	WriteWait  time.Duration
	PingPeriod time.Duration
}

// Handler принимает WebSocket-подключения наблюдателей очереди.
type Handler struct {
	processor *command.Processor
	validator auth.Validator
	opts      Options
	logger    *slog.Logger
	upgrader  websocket.Upgrader
}

func NewHandler(processor *command.Processor, validator auth.Validator, opts Options, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		processor: processor,
		validator: validator,
		opts:      opts,
		logger:    logger,
		// Настраиваем апгрейдер с разрешением всех источников: CORS решается на уровне роутера.
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
	}
}

// Client представляет одно подключение через WebSocket.
type Client struct {
	handler *Handler
	conn    *websocket.Conn
	watcher *command.Watcher
}

// readPump читает команды клиента и передаёт их обработчику команд.
func (c *Client) readPump(ctx context.Context) {
	defer func() {
		c.handler.processor.Close(c.watcher)
		c.conn.Close()
	}()
	c.conn.SetReadLimit(c.handler.opts.ReadLimit)
	c.conn.SetReadDeadline(time.Now().Add(c.handler.opts.PongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(c.handler.opts.PongWait))
		return nil
	})
	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				c.handler.logger.Debug("websocket read failed", "subject_id", c.watcher.SubjectID, "error", err)
			}
			return
		}
		if err := c.handler.processor.Handle(ctx, c.watcher, string(message)); errors.Is(err, command.ErrNotWatching) {
			return
		}
	}
}

// writePump единственный писатель в соединение: отправляет снимки и ошибки
// из очереди сессии и пингует клиента.
func (c *Client) writePump() {
	ticker := time.NewTicker(c.handler.opts.PingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()
	outbound := c.watcher.Session().Outbound()
	for {
		select {
		case message, ok := <-outbound:
			c.conn.SetWriteDeadline(time.Now().Add(c.handler.opts.WriteWait))
			if !ok {
				// Сессия снята с регистрации.
				code, text := closeCode(c.watcher.Session().CloseReason())
				c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(code, text))
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(c.handler.opts.WriteWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// closeCode выбирает код закрытия по причине снятия сессии: отстающий клиент
// получает 1013 и может переподключиться, остановка сервера даёт 1001.
func closeCode(reason session.CloseReason) (int, string) {
	switch reason {
	case session.CloseSlowConsumer:
		return websocket.CloseTryAgainLater, "slow consumer"
	case session.CloseShutdown:
		return websocket.CloseGoingAway, "server shutdown"
	}
	return websocket.CloseNormalClosure, ""
}

// @Summary		Подключение к очереди
// @Description	WebSocket-подключение к живой очереди предмета. Токен передаётся query-параметром token или заголовком Authorization. Команды: get, enter, leave. В ответ приходят снимки очереди или {"error": "..."}.
// @Tags			queues
// @Param			subject_id	path	int		true	"ID предмета"
// @Param			token		query	string	false	"Токен доступа"
// @Success		101
// @Failure		400	{object}	response.ErrorResponse	"Неверный ID предмета (INVALID_SUBJECT_ID)"
// @Router			/ws/queue/{subject_id} [get]
func (h *Handler) QueueWebSocketHandler(c *gin.Context) {
	subjectID, err := strconv.ParseUint(c.Param("subject_id"), 10, 64)
	if err != nil || subjectID == 0 {
		c.JSON(http.StatusBadRequest, response.ErrorResponse{
			Code:    "INVALID_SUBJECT_ID",
			Message: "Неверный ID предмета",
		})
		return
	}

	started := time.Now()
	remote := c.ClientIP()
	identity, authErr := h.validator.Validate(c.Request.Context(), auth.TokenFromRequest(c.Request))

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", "remote", remote, "error", err)
		return
	}

	if authErr != nil {
		code := websocket.ClosePolicyViolation
		if !errors.Is(authErr, auth.ErrAuth) {
			code = websocket.CloseInternalServerErr
		}
		h.logger.Info("websocket rejected", "remote", remote, "subject_id", subjectID, "error", authErr)
		conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(code, "unauthorized"),
			time.Now().Add(h.opts.WriteWait))
		conn.Close()
		return
	}

	h.logger.Info("websocket connected", "remote", remote, "subject_id", subjectID, "user_id", identity.UserID)
	defer func() {
		h.logger.Info("websocket disconnected",
			"remote", remote,
			"subject_id", subjectID,
			"user_id", identity.UserID,
			"duration", time.Since(started).Round(time.Millisecond),
		)
	}()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	watcher := h.processor.Attach(ctx, uint(subjectID), queue.Member{
		UserID:     identity.UserID,
		FirstName:  identity.FirstName,
		SecondName: identity.SecondName,
	})
	client := &Client{handler: h, conn: conn, watcher: watcher}

	// Запускаем писателя в отдельной горутине, читаем в текущей.
	go client.writePump()
	client.readPump(ctx)
}
