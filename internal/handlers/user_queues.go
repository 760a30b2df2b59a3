package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"equeue/internal/auth"
	"equeue/internal/response"
)

// GetUserQueuesHandler godoc
// @Summary		Получение списка своих очередей
// @Description	Очереди, в которых сейчас стоит пользователь, с позицией и статусом
// @Tags			profile
// @Produce		json
// @Security		BearerAuth
// @Success		200	{array}		response.MembershipResponse	"Очереди пользователя"
// @Failure		401	{object}	response.ErrorResponse		"Нет токена (NO_AUTH_HEADER, INVALID_TOKEN)"
// @Failure		503	{object}	response.ErrorResponse		"Хранилище недоступно (PERSISTENCE_ERROR)"
// @Router			/api/profile/queues [get]
func (h *QueueHandler) GetUserQueuesHandler(c *gin.Context) {
	userID := c.GetUint(auth.ContextUserID)

	memberships, err := h.memberships.MembershipsOf(c.Request.Context(), userID)
	if err != nil {
		persistenceFailed(c, err)
		return
	}

	items := make([]response.MembershipResponse, 0, len(memberships))
	for _, m := range memberships {
		items = append(items, response.MembershipResponse{
			SubjectID: m.SubjectID,
			Position:  m.Position,
			Status:    string(m.Status),
			EnteredAt: m.EnteredAt,
		})
	}
	c.JSON(http.StatusOK, items)
}
