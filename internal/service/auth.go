package service

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var ErrInvalidToken = errors.New("invalid token")

const tokenTTL = 24 * time.Hour

type AuthService interface {
	GenerateToken(userID string) (string, error)
	VerifyToken(tokenString string) (string, error)
}

type authServiceImpl struct {
	secretKey string
}

func NewAuthService(secretKey string) AuthService {
	return &authServiceImpl{
		secretKey: secretKey,
	}
}

func (that *authServiceImpl) GenerateToken(userID string) (string, error) {
	claims := jwt.MapClaims{
		"sub": userID,
		"exp": time.Now().Add(tokenTTL).Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)

	tokenString, err := token.SignedString([]byte(that.secretKey))
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}

	return tokenString, nil
}

// VerifyToken validates the signature and expiry and returns the caller's
// user id.
func (that *authServiceImpl) VerifyToken(tokenString string) (string, error) {
	token, err := jwt.Parse(tokenString, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("%w: unexpected signing method %v", ErrInvalidToken, t.Header["alg"])
		}
		return []byte(that.secretKey), nil
	})
	if err != nil {
		return "", fmt.Errorf("failed to parse token: %w", err)
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return "", ErrInvalidToken
	}

	userID, err := claims.GetSubject()
	if err != nil || userID == "" {
		return "", ErrInvalidToken
	}

	return userID, nil
}
