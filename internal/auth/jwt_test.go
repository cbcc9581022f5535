package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestGenerateAndValidateJWT(t *testing.T) {
	secret := "test-secret"
	tokenString, err := GenerateJWT("admin@example.com", "admin", secret, time.Hour)
	assert.NoError(t, err)
	assert.NotEmpty(t, tokenString)

	claims, err := ValidateJWT(tokenString, secret)
	assert.NoError(t, err)
	assert.Equal(t, "admin@example.com", claims.Email)
	assert.Equal(t, "admin", claims.Role)
	assert.Equal(t, "admin@example.com", claims.Subject)
}

func TestValidateJWT_WrongSecret(t *testing.T) {
	tokenString, err := GenerateJWT("client@example.com", "client", "secret-a", time.Hour)
	assert.NoError(t, err)

	claims, err := ValidateJWT(tokenString, "secret-b")
	assert.Error(t, err)
	assert.Nil(t, claims)
}

func TestValidateJWT_Expired(t *testing.T) {
	tokenString, err := GenerateJWT("client@example.com", "client", "secret", -time.Minute)
	assert.NoError(t, err)

	_, err = ValidateJWT(tokenString, "secret")
	assert.Error(t, err)
}

func TestPasswordHashRoundTrip(t *testing.T) {
	hash, err := HashPassword("hunter22")
	assert.NoError(t, err)
	assert.True(t, CheckPasswordHash("hunter22", hash))
	assert.False(t, CheckPasswordHash("hunter23", hash))
}
