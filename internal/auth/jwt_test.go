package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJWTService_RoundTrip(t *testing.T) {
	service := NewJWTService("test-secret-key", 24)
	userID := uuid.New()

	token, err := service.GenerateToken(userID, "coach@foxfit.test")
	require.NoError(t, err)
	require.NotEmpty(t, token)

	claims, err := service.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, userID, claims.UserID)
	assert.Equal(t, "coach@foxfit.test", claims.Email)
	assert.Equal(t, userID.String(), claims.Subject)
	assert.Equal(t, issuer, claims.Issuer)
	assert.WithinDuration(t, time.Now().Add(24*time.Hour), claims.ExpiresAt.Time, time.Minute)
}

func sign(t *testing.T, method jwt.SigningMethod, key interface{}, claims Claims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(method, claims).SignedString(key)
	require.NoError(t, err)
	return token
}

func TestJWTService_ValidateToken_Rejects(t *testing.T) {
	service := NewJWTService("test-secret-key", 1)
	userID := uuid.New()
	now := time.Now()
	valid := func() Claims {
		return Claims{
			UserID: userID,
			RegisteredClaims: jwt.RegisteredClaims{
				Issuer:    issuer,
				ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
			},
		}
	}

	expired := valid()
	expired.ExpiresAt = jwt.NewNumericDate(now.Add(-time.Minute))
	noExpiry := valid()
	noExpiry.ExpiresAt = nil
	foreign := valid()
	foreign.Issuer = "someone-else"
	anonymous := valid()
	anonymous.UserID = uuid.Nil

	tests := []struct {
		name  string
		token string
	}{
		{"garbage", "invalid.token.here"},
		{"empty", ""},
		{"wrong secret", sign(t, jwt.SigningMethodHS256, []byte("other-secret"), valid())},
		{"unsigned", sign(t, jwt.SigningMethodNone, jwt.UnsafeAllowNoneSignatureType, valid())},
		{"other hmac", sign(t, jwt.SigningMethodHS512, []byte("test-secret-key"), valid())},
		{"expired", sign(t, jwt.SigningMethodHS256, []byte("test-secret-key"), expired)},
		{"no expiry", sign(t, jwt.SigningMethodHS256, []byte("test-secret-key"), noExpiry)},
		{"foreign issuer", sign(t, jwt.SigningMethodHS256, []byte("test-secret-key"), foreign)},
		{"no user", sign(t, jwt.SigningMethodHS256, []byte("test-secret-key"), anonymous)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := service.ValidateToken(tt.token)
			assert.ErrorIs(t, err, ErrInvalidToken)
		})
	}
}

func TestJWTService_ExpiredByConfig(t *testing.T) {
	service := NewJWTService("test-secret-key", -1)
	token, err := service.GenerateToken(uuid.New(), "coach@foxfit.test")
	require.NoError(t, err)

	_, err = service.ValidateToken(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}
