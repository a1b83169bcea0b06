package auth

import (
	"fmt"

	"github.com/golang-jwt/jwt/v5"
)

// Service verifies the JWTs issued by the external auth subsystem. The
// routing core trusts the user id carried in a valid token.
type Service struct {
	secret []byte
}

// NewService constructs a Service around the shared signing secret.
func NewService(secret []byte) *Service {
	return &Service{secret: secret}
}

// ValidateToken checks the signature and returns the authenticated user id.
func (s *Service) ValidateToken(tokenString string) (int, error) {
	token, err := jwt.ParseWithClaims(tokenString, &jwt.MapClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.secret, nil
	})
	if err != nil {
		return 0, err
	}

	claims, ok := token.Claims.(*jwt.MapClaims)
	if !ok || !token.Valid {
		return 0, fmt.Errorf("invalid token")
	}

	userIDFloat, ok := (*claims)["user_id"].(float64)
	if !ok || userIDFloat == 0 {
		return 0, fmt.Errorf("invalid user id in token")
	}
	return int(userIDFloat), nil
}
