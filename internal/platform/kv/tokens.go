package kv

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Token purposes.
const (
	PurposeEmailVerification = "email-verification"
	PurposePasswordReset     = "password-reset"
)

// ErrTokenInvalid is returned when a token is unknown, expired or already used.
var ErrTokenInvalid = errors.New("token is invalid or has expired")

// TokenStore issues opaque single-use tokens bound to a subject.
type TokenStore interface {
	Issue(ctx context.Context, purpose, subject string, ttl time.Duration) (string, error)
	Consume(ctx context.Context, purpose, token string) (string, error)
}

func newToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate token: %w", err)
	}
	return hex.EncodeToString(b), nil
}

// tokenKey never contains the raw token, only its digest.
func tokenKey(purpose, token string) string {
	sum := sha256.Sum256([]byte(token))
	return "token:" + purpose + ":" + hex.EncodeToString(sum[:])
}

type RedisTokenStore struct {
	rdb *redis.Client
}

func NewRedisTokenStore(rdb *redis.Client) *RedisTokenStore {
	return &RedisTokenStore{rdb: rdb}
}

func (s *RedisTokenStore) Issue(ctx context.Context, purpose, subject string, ttl time.Duration) (string, error) {
	token, err := newToken()
	if err != nil {
		return "", err
	}
	if err := s.rdb.Set(ctx, tokenKey(purpose, token), subject, ttl).Err(); err != nil {
		return "", fmt.Errorf("redis set token: %w", err)
	}
	return token, nil
}

// Consume atomically reads and deletes the token so a second redemption fails.
func (s *RedisTokenStore) Consume(ctx context.Context, purpose, token string) (string, error) {
	if token == "" {
		return "", ErrTokenInvalid
	}
	subject, err := s.rdb.GetDel(ctx, tokenKey(purpose, token)).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrTokenInvalid
	}
	if err != nil {
		return "", fmt.Errorf("redis getdel token: %w", err)
	}
	return subject, nil
}

type memToken struct {
	subject   string
	expiresAt time.Time
}

type MemoryTokenStore struct {
	mu     sync.Mutex
	tokens map[string]memToken
	now    func() time.Time
}

func NewMemoryTokenStore() *MemoryTokenStore {
	return &MemoryTokenStore{tokens: make(map[string]memToken), now: time.Now}
}

func (s *MemoryTokenStore) Issue(_ context.Context, purpose, subject string, ttl time.Duration) (string, error) {
	token, err := newToken()
	if err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tokens[tokenKey(purpose, token)] = memToken{subject: subject, expiresAt: s.now().Add(ttl)}
	return token, nil
}

func (s *MemoryTokenStore) Consume(_ context.Context, purpose, token string) (string, error) {
	key := tokenKey(purpose, token)
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tokens[key]
	if !ok {
		return "", ErrTokenInvalid
	}
	delete(s.tokens, key)
	if s.now().After(t.expiresAt) {
		return "", ErrTokenInvalid
	}
	return t.subject, nil
}
