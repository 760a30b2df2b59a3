package auth

import (
	"context"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// RoleAdmin значение claim role у администраторов очередей.
const RoleAdmin = "admin"

// JWTValidator принимает HS256-токены, подписанные общим секретом, с claims
// user_id, first_name, second_name и необязательным role.
type JWTValidator struct {
	secret []byte
}

func NewJWTValidator(secret []byte) *JWTValidator {
	return &JWTValidator{secret: secret}
}

func (v *JWTValidator) Validate(_ context.Context, tokenString string) (Identity, error) {
	if tokenString == "" {
		return Identity{}, ErrTokenMissing
	}

	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		return v.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil || !token.Valid {
		return Identity{}, fmt.Errorf("%w: %v", ErrTokenInvalid, err)
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return Identity{}, fmt.Errorf("%w: unreadable claims", ErrTokenInvalid)
	}
	userID, ok := claims["user_id"].(float64)
	if !ok || userID <= 0 {
		return Identity{}, fmt.Errorf("%w: no user_id", ErrTokenInvalid)
	}

	first, _ := claims["first_name"].(string)
	second, _ := claims["second_name"].(string)
	role, _ := claims["role"].(string)
	return Identity{
		UserID:     uint(userID),
		FirstName:  first,
		SecondName: second,
		IsAdmin:    role == RoleAdmin,
	}, nil
}

// IssueToken подписывает токен для id сроком на ttl.
func IssueToken(id Identity, ttl time.Duration, secret []byte) (string, error) {
	now := time.Now()
	claims := jwt.MapClaims{
		"user_id":     id.UserID,
		"first_name":  id.FirstName,
		"second_name": id.SecondName,
		"exp":         now.Add(ttl).Unix(),
		"iat":         now.Unix(),
	}
	if id.IsAdmin {
		claims["role"] = RoleAdmin
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(secret)
}
