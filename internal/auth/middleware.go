package auth

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"equeue/internal/response"
)

// Ключи контекста gin, которые выставляет AuthMiddleware.
const (
	ContextUserID   = "userID"
	ContextIdentity = "identity"
)

// AuthMiddleware проверяет токен запроса через validator.
func AuthMiddleware(validator Validator) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := TokenFromRequest(c.Request)
		if token == "" {
			c.JSON(http.StatusUnauthorized, response.ErrorResponse{
				Code:    "NO_AUTH_HEADER",
				Message: "Требуется авторизация",
			})
			c.Abort()
			return
		}

		identity, err := validator.Validate(c.Request.Context(), token)
		if errors.Is(err, ErrAuth) {
			c.JSON(http.StatusUnauthorized, response.ErrorResponse{
				Code:    "INVALID_TOKEN",
				Message: "Неверный или просроченный токен",
			})
			c.Abort()
			return
		}
		if err != nil {
			c.JSON(http.StatusInternalServerError, response.ErrorResponse{
				Code:    "AUTH_UNAVAILABLE",
				Message: "Не удалось проверить токен",
				Details: err.Error(),
			})
			c.Abort()
			return
		}

		c.Set(ContextUserID, identity.UserID)
		c.Set(ContextIdentity, identity)
		c.Next()
	}
}

// IdentityFrom возвращает пользователя, сохранённого AuthMiddleware.
func IdentityFrom(c *gin.Context) (Identity, bool) {
	v, ok := c.Get(ContextIdentity)
	if !ok {
		return Identity{}, false
	}
	id, ok := v.(Identity)
	return id, ok
}

// RequireAdmin пропускает только администраторов очередей. Ставится после
// AuthMiddleware.
func RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		identity, ok := IdentityFrom(c)
		if !ok || !identity.IsAdmin {
			c.JSON(http.StatusForbidden, response.ErrorResponse{
				Code:    "FORBIDDEN",
				Message: "Недостаточно прав для изменения очереди",
			})
			c.Abort()
			return
		}
		c.Next()
	}
}
