package services

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"device-management-service/internal/domain/models"
	"device-management-service/internal/infrastructure/config"
)

// ErrInvalidCredentials is returned when login fails, without revealing
// whether the username or the password was wrong.
var ErrInvalidCredentials = errors.New("invalid username or password")

// LoginResult is returned on successful login
type LoginResult struct {
	Token     string    `json:"token"`
	Username  string    `json:"username"`
	ExpiresAt time.Time `json:"expires_at"`
}

// InterfaceJWTService defines token issuance and verification
type InterfaceJWTService interface {
	GenerateToken(subject string) (string, error)
	ValidateToken(tokenString string) (*jwt.Token, error)
	ExtractSubject(tokenString string) (string, error)
	Login(username, password string) (*LoginResult, error)
}

// JWTService issues and verifies symmetric-key tokens
type JWTService struct {
	secretKey []byte
	method    jwt.SigningMethod
	expiry    time.Duration
	issuer    string
	DB        *gorm.DB
}

// NewJWTService creates a new JWT service. An unknown algorithm name falls
// back to HS256.
func NewJWTService(cfg *config.Config, db *gorm.DB) InterfaceJWTService {
	method := jwt.GetSigningMethod(cfg.JWTAlgorithm)
	if method == nil {
		method = jwt.SigningMethodHS256
	}
	return &JWTService{
		secretKey: []byte(cfg.JWTSecretKey),
		method:    method,
		expiry:    time.Duration(cfg.AccessTokenExpireMinutes) * time.Minute,
		issuer:    "device-management-service",
		DB:        db,
	}
}

// GenerateToken signs a token carrying the subject claim
func (s *JWTService) GenerateToken(subject string) (string, error) {
	now := time.Now()
	claims := jwt.RegisteredClaims{
		Subject:   subject,
		Issuer:    s.issuer,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(s.expiry)),
	}

	token := jwt.NewWithClaims(s.method, claims)
	return token.SignedString(s.secretKey)
}

// ValidateToken parses and verifies a token string
func (s *JWTService) ValidateToken(tokenString string) (*jwt.Token, error) {
	return jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.secretKey, nil
	})
}

// ExtractSubject verifies a token and returns its subject claim. Malformed
// or expired input yields an error, never a panic.
func (s *JWTService) ExtractSubject(tokenString string) (string, error) {
	token, err := s.ValidateToken(tokenString)
	if err != nil {
		return "", err
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return "", errors.New("invalid token claims")
	}

	subject, _ := claims["sub"].(string)
	return subject, nil
}

// Login verifies credentials against the users table and issues a token
func (s *JWTService) Login(username, password string) (*LoginResult, error) {
	var user models.User
	if err := s.DB.Where("username = ?", username).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}

	token, err := s.GenerateToken(user.Username)
	if err != nil {
		return nil, err
	}

	return &LoginResult{
		Token:     token,
		Username:  user.Username,
		ExpiresAt: time.Now().Add(s.expiry),
	}, nil
}
