package usecase

import (
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v5"
)

var ErrInvalidSession = errors.New("invalid session")

// SessionUsecase verifies session tokens issued by the sign-in flow.
type SessionUsecase interface {
	ValidateSession(tokenString string) (userID string, err error)
}

type sessionUsecase struct {
	secret []byte
}

func NewSessionUsecase(secret string) SessionUsecase {
	return &sessionUsecase{secret: []byte(secret)}
}

// ValidateSession accepts HS256 tokens carrying a userId (or user_id) claim.
func (u *sessionUsecase) ValidateSession(tokenString string) (string, error) {
	if len(u.secret) == 0 {
		return "", fmt.Errorf("session secret not configured: %w", ErrInvalidSession)
	}

	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		return u.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil || !token.Valid {
		return "", ErrInvalidSession
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return "", ErrInvalidSession
	}

	for _, key := range []string{"userId", "user_id"} {
		if id, ok := claims[key].(string); ok && id != "" {
			return id, nil
		}
	}
	return "", fmt.Errorf("missing user claim: %w", ErrInvalidSession)
}
