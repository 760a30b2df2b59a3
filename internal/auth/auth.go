// Package auth проверяет токены клиентов до того, как они попадут в движок
// очередей.
package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

var (
	// ErrAuth корень всех ошибок авторизации.
	ErrAuth         = errors.New("auth: unauthorized")
	ErrTokenMissing = fmt.Errorf("%w: token missing", ErrAuth)
	ErrTokenInvalid = fmt.Errorf("%w: token invalid", ErrAuth)
)

// Identity пользователь, стоящий за токеном.
type Identity struct {
	UserID     uint
	FirstName  string
	SecondName string
	// IsAdmin разрешает административные операции над очередями.
	IsAdmin bool
}

// Validator превращает токен в Identity.
type Validator interface {
	Validate(ctx context.Context, token string) (Identity, error)
}

// TokenFromRequest берёт токен из query-параметра token или из заголовка
// Authorization: Bearer. Браузер не умеет ставить заголовки при websocket
// handshake, поэтому query-параметр в приоритете.
func TokenFromRequest(r *http.Request) string {
	if t := strings.TrimSpace(r.URL.Query().Get("token")); t != "" {
		return t
	}
	header := r.Header.Get("Authorization")
	if header == "" {
		return ""
	}
	return strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
}
