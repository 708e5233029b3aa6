package services

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"device-management-service/internal/domain/models"
)

func newTestJWTService(t *testing.T) InterfaceJWTService {
	t.Helper()
	return NewJWTService(testConfig(), setupTestDB(t))
}

func TestGenerateAndExtractSubject(t *testing.T) {
	svc := newTestJWTService(t)

	token, err := svc.GenerateToken("admin")
	require.NoError(t, err)
	require.NotEmpty(t, token)

	subject, err := svc.ExtractSubject(token)
	require.NoError(t, err)
	assert.Equal(t, "admin", subject)
}

func TestExtractSubjectRejectsGarbage(t *testing.T) {
	svc := newTestJWTService(t)

	_, err := svc.ExtractSubject("not-a-token")
	assert.Error(t, err)
}

func TestExpiredTokenRejected(t *testing.T) {
	cfg := testConfig()
	db := setupTestDB(t)
	svc := NewJWTService(cfg, db)

	// Sign an already-expired token with the same secret.
	claims := jwt.RegisteredClaims{
		Subject:   "admin",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Hour)),
	}
	expired, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(cfg.JWTSecretKey))
	require.NoError(t, err)

	_, err = svc.ExtractSubject(expired)
	assert.Error(t, err)
}

func TestTokenSignedWithOtherSecretRejected(t *testing.T) {
	svc := newTestJWTService(t)

	claims := jwt.RegisteredClaims{
		Subject:   "admin",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}
	forged, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("other-secret"))
	require.NoError(t, err)

	_, err = svc.ExtractSubject(forged)
	assert.Error(t, err)
}

func TestLogin(t *testing.T) {
	db := setupTestDB(t)
	svc := NewJWTService(testConfig(), db)

	hash, err := bcrypt.GenerateFromPassword([]byte("admin123"), bcrypt.MinCost)
	require.NoError(t, err)
	require.NoError(t, db.Create(&models.User{Username: "admin", Password: string(hash)}).Error)

	result, err := svc.Login("admin", "admin123")
	require.NoError(t, err)
	assert.Equal(t, "admin", result.Username)
	assert.NotEmpty(t, result.Token)
	assert.True(t, result.ExpiresAt.After(time.Now()))

	subject, err := svc.ExtractSubject(result.Token)
	require.NoError(t, err)
	assert.Equal(t, "admin", subject)

	_, err = svc.Login("admin", "wrong-password")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = svc.Login("nobody", "admin123")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}
