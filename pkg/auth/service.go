// Package auth issues and validates the JWT access tokens and Redis-backed
// refresh tokens used by the API.
package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/nightshade-io/nightshade/pkg/redis"
)

var (
	// ErrInvalidCredentials is returned when a login fails.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrInvalidToken is returned for expired, malformed, or revoked tokens.
	ErrInvalidToken = errors.New("invalid token")
)

const refreshKeyPrefix = "nightshade:refresh:"

// Claims is the JWT payload for access tokens.
type Claims struct {
	Username string `json:"username"`
	Role     string `json:"role"`
	jwt.RegisteredClaims
}

// Config holds token signing settings.
type Config struct {
	Secret     string
	AccessTTL  time.Duration
	RefreshTTL time.Duration
}

// Service signs access tokens and manages refresh token rotation.
type Service struct {
	config Config
	redis  *redis.Client
}

func NewService(config Config, redisClient *redis.Client) *Service {
	return &Service{
		config: config,
		redis:  redisClient,
	}
}

// AccessTTL reports the configured access token lifetime.
func (s *Service) AccessTTL() time.Duration {
	return s.config.AccessTTL
}

// VerifyPassword compares a bcrypt hash against a candidate password.
func (s *Service) VerifyPassword(hashedPassword, password string) error {
	if err := bcrypt.CompareHashAndPassword([]byte(hashedPassword), []byte(password)); err != nil {
		return ErrInvalidCredentials
	}
	return nil
}

// HashPassword produces a bcrypt hash for storage.
func (s *Service) HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(hash), nil
}

// IssueAccessToken signs a short-lived HS256 access token.
func (s *Service) IssueAccessToken(userID, username, role string) (string, error) {
	now := time.Now()
	claims := Claims{
		Username: username,
		Role:     role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.config.AccessTTL)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(s.config.Secret))
	if err != nil {
		return "", fmt.Errorf("failed to sign access token: %w", err)
	}
	return signed, nil
}

// ValidateAccessToken parses and verifies an access token.
func (s *Service) ValidateAccessToken(tokenString string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %q", t.Method.Alg())
		}
		return []byte(s.config.Secret), nil
	})
	if err != nil || !token.Valid {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// IssueRefreshToken creates an opaque refresh token bound to a user in Redis.
func (s *Service) IssueRefreshToken(ctx context.Context, userID string) (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate refresh token: %w", err)
	}
	token := hex.EncodeToString(buf)

	if err := s.redis.Set(ctx, refreshKeyPrefix+token, userID, s.config.RefreshTTL); err != nil {
		return "", fmt.Errorf("failed to store refresh token: %w", err)
	}
	return token, nil
}

// ConsumeRefreshToken validates a refresh token and revokes it. Returns the
// user id the token was issued for.
func (s *Service) ConsumeRefreshToken(ctx context.Context, token string) (string, error) {
	key := refreshKeyPrefix + token
	userID, err := s.redis.Get(ctx, key)
	if err != nil || userID == "" {
		return "", ErrInvalidToken
	}
	if err := s.redis.Del(ctx, key); err != nil {
		return "", fmt.Errorf("failed to revoke refresh token: %w", err)
	}
	return userID, nil
}

// RevokeRefreshToken deletes a refresh token, used on logout.
func (s *Service) RevokeRefreshToken(ctx context.Context, token string) error {
	return s.redis.Del(ctx, refreshKeyPrefix+token)
}
