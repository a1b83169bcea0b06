package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func signToken(t *testing.T, secret []byte, claims jwt.MapClaims) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(secret)
	require.NoError(t, err)
	return signed
}

func TestValidateTokenSuccess(t *testing.T) {
	secret := []byte("test-secret")
	svc := NewService(secret)

	tokenString := signToken(t, secret, jwt.MapClaims{
		"user_id": 42,
		"exp":     time.Now().Add(time.Hour).Unix(),
	})

	userID, err := svc.ValidateToken(tokenString)
	require.NoError(t, err)
	assert.Equal(t, 42, userID)
}

func TestValidateTokenWrongSecret(t *testing.T) {
	svc := NewService([]byte("right-secret"))

	tokenString := signToken(t, []byte("wrong-secret"), jwt.MapClaims{"user_id": 42})

	_, err := svc.ValidateToken(tokenString)
	assert.Error(t, err)
}

func TestValidateTokenExpired(t *testing.T) {
	secret := []byte("test-secret")
	svc := NewService(secret)

	tokenString := signToken(t, secret, jwt.MapClaims{
		"user_id": 42,
		"exp":     time.Now().Add(-time.Hour).Unix(),
	})

	_, err := svc.ValidateToken(tokenString)
	assert.Error(t, err)
}

func TestValidateTokenMissingUserID(t *testing.T) {
	secret := []byte("test-secret")
	svc := NewService(secret)

	tokenString := signToken(t, secret, jwt.MapClaims{"sub": "someone"})

	_, err := svc.ValidateToken(tokenString)
	assert.Error(t, err)
}

func TestValidateTokenGarbage(t *testing.T) {
	svc := NewService([]byte("test-secret"))

	_, err := svc.ValidateToken("not-a-token")
	assert.Error(t, err)
}
