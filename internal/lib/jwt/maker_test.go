package jwt

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJWTMaker_GenerateAndParseToken(t *testing.T) {
	tokenTTL := 15 * time.Minute
	maker := NewJWTMaker("test_secret_key_1234567890", tokenTTL)

	userUID := uuid.NewString()
	token, err := maker.GenerateToken(userUID)
	require.NoError(t, err)
	assert.NotEmpty(t, token)

	claims, err := maker.ParseToken(token)
	require.NoError(t, err)
	assert.Equal(t, userUID, claims.UserUID)
	assert.Equal(t, userUID, claims.Subject)
	assert.WithinDuration(t, time.Now(), claims.IssuedAt.Time, time.Second)
	assert.WithinDuration(t, time.Now().Add(tokenTTL), claims.ExpiresAt.Time, time.Second)
}

func TestJWTMaker_ParseToken_InvalidTokens(t *testing.T) {
	secretKey := "test_secret_key_1234567890"
	maker := NewJWTMaker(secretKey, 15*time.Minute)

	validToken, err := maker.GenerateToken(uuid.NewString())
	require.NoError(t, err)

	tests := []struct {
		name  string
		token string
	}{
		{name: "empty token", token: ""},
		{name: "malformed token", token: "invalid.token.here"},
		{name: "expired token", token: createExpiredToken(t, secretKey)},
		{name: "wrong secret key", token: createTokenWithWrongSecret(t)},
		{name: "tampered token", token: validToken + "tampered"},
		{name: "no user id", token: createTokenWithoutUser(t, secretKey)},
		{name: "unexpected signing method", token: createTokenWithMethod(t, secretKey, jwt.SigningMethodHS512)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			claims, err := maker.ParseToken(tt.token)
			assert.Error(t, err)
			assert.Nil(t, claims)
		})
	}
}

func TestJWTMaker_SubjectFallback(t *testing.T) {
	secretKey := "test_secret_key"
	userUID := uuid.NewString()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   userUID,
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Minute)),
	})
	signed, err := token.SignedString([]byte(secretKey))
	require.NoError(t, err)

	claims, err := NewJWTMaker(secretKey, time.Minute).ParseToken(signed)
	require.NoError(t, err)
	assert.Equal(t, userUID, claims.UserUID)
}

func TestJWTMaker_TokenExpiration(t *testing.T) {
	maker := NewJWTMaker("test_secret_key", time.Second)

	token, err := maker.GenerateToken(uuid.NewString())
	require.NoError(t, err)

	_, err = maker.ParseToken(token)
	require.NoError(t, err)

	time.Sleep(2100 * time.Millisecond)

	_, err = maker.ParseToken(token)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "expired")
}

func createExpiredToken(t *testing.T, secretKey string) string {
	token, err := NewJWTMaker(secretKey, -time.Hour).GenerateToken(uuid.NewString())
	require.NoError(t, err)
	return token
}

func createTokenWithWrongSecret(t *testing.T) string {
	token, err := NewJWTMaker("wrong_secret_key", 15*time.Minute).GenerateToken(uuid.NewString())
	require.NoError(t, err)
	return token
}

func createTokenWithoutUser(t *testing.T, secretKey string) string {
	token, err := NewJWTMaker(secretKey, 15*time.Minute).GenerateToken("")
	require.NoError(t, err)
	return token
}

func createTokenWithMethod(t *testing.T, secretKey string, method jwt.SigningMethod) string {
	token := jwt.NewWithClaims(method, CustomClaims{
		UserUID: uuid.NewString(),
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Minute)),
		},
	})
	signed, err := token.SignedString([]byte(secretKey))
	require.NoError(t, err)
	return signed
}
