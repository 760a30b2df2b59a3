package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"equeue/internal/queue"
	"equeue/internal/response"
	"equeue/internal/session"
)

// QueueHandler отдаёт состояние очередей по HTTP и принимает
// административные изменения статуса. Права администратора проверяет
// auth.RequireAdmin на маршруте.
type QueueHandler struct {
	registry    *queue.Registry
	sessions    *session.Manager
	memberships queue.MembershipLister
}

func NewQueueHandler(registry *queue.Registry, sessions *session.Manager, memberships queue.MembershipLister) *QueueHandler {
	return &QueueHandler{registry: registry, sessions: sessions, memberships: memberships}
}

func parseID(c *gin.Context, param, code, message string) (uint, bool) {
	id, err := strconv.ParseUint(c.Param(param), 10, 64)
	if err != nil || id == 0 {
		c.JSON(http.StatusBadRequest, response.ErrorResponse{
			Code:    code,
			Message: message,
		})
		return 0, false
	}
	return uint(id), true
}

func persistenceFailed(c *gin.Context, err error) {
	c.JSON(http.StatusServiceUnavailable, response.ErrorResponse{
		Code:    "PERSISTENCE_ERROR",
		Message: "Хранилище очередей недоступно, повторите запрос",
		Details: err.Error(),
	})
}

// GetQueueHandler возвращает текущий снимок очереди
// @Summary		Снимок очереди
// @Description	Текущий состав очереди предмета по возрастанию позиции
// @Tags			queue
// @Produce		json
// @Param			subject_id	path		int	true	"ID предмета"
// @Success		200			{array}		response.EntryFrame		"Участники очереди"
// @Failure		400			{object}	response.ErrorResponse	"Неверный ID предмета (INVALID_SUBJECT_ID)"
// @Failure		503			{object}	response.ErrorResponse	"Хранилище недоступно (PERSISTENCE_ERROR)"
// @Router			/api/queues/{subject_id} [get]
func (h *QueueHandler) GetQueueHandler(c *gin.Context) {
	subjectID, ok := parseID(c, "subject_id", "INVALID_SUBJECT_ID", "Неверный ID предмета")
	if !ok {
		return
	}

	snap, err := h.registry.Snapshot(c.Request.Context(), subjectID)
	if err != nil {
		persistenceFailed(c, err)
		return
	}
	c.JSON(http.StatusOK, response.SnapshotFrame(snap))
}

// SetMemberStatusHandler меняет статус участника очереди
// @Summary		Смена статуса участника
// @Description	Административное продвижение участника, только для администраторов очередей: waiting, being_served, done. Переход в being_served ставит участника в начало очереди. Наблюдатели очереди получают новый снимок.
// @Tags			queue
// @Accept			json
// @Produce		json
// @Param			subject_id	path		int						true	"ID предмета"
// @Param			user_id		path		int						true	"ID пользователя"
// @Param			status		body		response.StatusRequest	true	"Новый статус"
// @Security		BearerAuth
// @Success		200			{object}	response.EntryFrame		"Обновлённая запись"
// @Failure		400			{object}	response.ErrorResponse	"Ошибка валидации (INVALID_SUBJECT_ID, INVALID_USER_ID, VALIDATION_ERROR, INVALID_STATUS)"
// @Failure		401			{object}	response.ErrorResponse	"Нет токена (NO_AUTH_HEADER, INVALID_TOKEN)"
// @Failure		403			{object}	response.ErrorResponse	"Нет прав администратора (FORBIDDEN)"
// @Failure		404			{object}	response.ErrorResponse	"Пользователь не в очереди (NOT_QUEUED)"
// @Failure		503			{object}	response.ErrorResponse	"Хранилище недоступно (PERSISTENCE_ERROR)"
// @Router			/api/queues/{subject_id}/members/{user_id}/status [patch]
func (h *QueueHandler) SetMemberStatusHandler(c *gin.Context) {
	subjectID, ok := parseID(c, "subject_id", "INVALID_SUBJECT_ID", "Неверный ID предмета")
	if !ok {
		return
	}
	userID, ok := parseID(c, "user_id", "INVALID_USER_ID", "Неверный ID пользователя")
	if !ok {
		return
	}

	var req response.StatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.ErrorResponse{
			Code:    "VALIDATION_ERROR",
			Message: "Ошибка валидации данных",
			Details: err.Error(),
		})
		return
	}

	entry, err := h.registry.SetStatus(c.Request.Context(), subjectID, userID, queue.Status(req.Status))
	switch {
	case errors.Is(err, queue.ErrInvalidStatus):
		c.JSON(http.StatusBadRequest, response.ErrorResponse{
			Code:    "INVALID_STATUS",
			Message: "Допустимые статусы: waiting, being_served, done",
		})
		return
	case errors.Is(err, queue.ErrNotQueued):
		c.JSON(http.StatusNotFound, response.ErrorResponse{
			Code:    "NOT_QUEUED",
			Message: "Пользователь не состоит в очереди",
		})
		return
	case err != nil:
		persistenceFailed(c, err)
		return
	}

	c.JSON(http.StatusOK, response.SnapshotFrame(queue.Snapshot{entry})[0])
}

// HealthHandler сообщает о состоянии движка
// @Summary		Состояние сервиса
// @Tags			service
// @Produce		json
// @Success		200	{object}	response.HealthResponse
// @Router			/healthz [get]
func (h *QueueHandler) HealthHandler(c *gin.Context) {
	c.JSON(http.StatusOK, response.HealthResponse{
		Status:       "ok",
		Sessions:     h.sessions.Count(),
		ActiveQueues: h.registry.Len(),
	})
}
