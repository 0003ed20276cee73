package service

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"school-inventory-api/internal/model"

	"github.com/redis/go-redis/v9"
)

const (
	// TokenPrefix is the prefix for all session tokens
	TokenPrefix = "sit_"

	// TokenTTL is the default session lifetime
	TokenTTL = 8 * time.Hour

	// TokenRedisKeyPrefix is the Redis key prefix for sessions
	TokenRedisKeyPrefix = "schoolinv:session:"
)

// TokenService handles session token generation and validation. A token
// resolves to the (user, role, department) identity tuple the policy gate
// and lifecycle engine trust.
type TokenService struct {
	redis *redis.Client
}

// NewTokenService creates a new token service.
func NewTokenService(redisClient *redis.Client) *TokenService {
	return &TokenService{
		redis: redisClient,
	}
}

// GenerateToken creates a new session token and stores the identity in Redis.
func (s *TokenService) GenerateToken(ctx context.Context, identity model.Identity) (string, error) {
	tokenBytes := make([]byte, 32)
	if _, err := rand.Read(tokenBytes); err != nil {
		return "", fmt.Errorf("failed to generate token: %w", err)
	}

	token := TokenPrefix + hex.EncodeToString(tokenBytes)

	identity.CreatedAt = time.Now()
	identity.ExpiresAt = identity.CreatedAt.Add(TokenTTL)

	jsonData, err := json.Marshal(identity)
	if err != nil {
		return "", fmt.Errorf("failed to serialize identity: %w", err)
	}

	key := TokenRedisKeyPrefix + token
	if err := s.redis.Set(ctx, key, jsonData, TokenTTL).Err(); err != nil {
		return "", fmt.Errorf("failed to store session: %w", err)
	}

	log.Printf("[TokenService] Session created for user=%s role=%s, expires=%v",
		identity.UserID, identity.Role, identity.ExpiresAt)

	return token, nil
}

// ValidateToken checks if a token is valid and returns its identity.
func (s *TokenService) ValidateToken(ctx context.Context, token string) (*model.Identity, error) {
	if token == "" {
		return nil, fmt.Errorf("empty token")
	}

	if len(token) < len(TokenPrefix) || token[:len(TokenPrefix)] != TokenPrefix {
		return nil, fmt.Errorf("invalid token format")
	}

	key := TokenRedisKeyPrefix + token
	jsonData, err := s.redis.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return nil, fmt.Errorf("session not found or expired")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get session: %w", err)
	}

	var identity model.Identity
	if err := json.Unmarshal(jsonData, &identity); err != nil {
		return nil, fmt.Errorf("failed to parse identity: %w", err)
	}

	if time.Now().After(identity.ExpiresAt) {
		s.redis.Del(ctx, key)
		return nil, fmt.Errorf("session expired")
	}

	return &identity, nil
}

// RevokeToken deletes a session from Redis.
func (s *TokenService) RevokeToken(ctx context.Context, token string) error {
	key := TokenRedisKeyPrefix + token
	return s.redis.Del(ctx, key).Err()
}

// RefreshToken extends the TTL of an existing session.
func (s *TokenService) RefreshToken(ctx context.Context, token string) error {
	key := TokenRedisKeyPrefix + token

	jsonData, err := s.redis.Get(ctx, key).Bytes()
	if err != nil {
		return fmt.Errorf("session not found: %w", err)
	}

	var identity model.Identity
	if err := json.Unmarshal(jsonData, &identity); err != nil {
		return err
	}

	identity.ExpiresAt = time.Now().Add(TokenTTL)

	newJSON, _ := json.Marshal(identity)
	return s.redis.Set(ctx, key, newJSON, TokenTTL).Err()
}
