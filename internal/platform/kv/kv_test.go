package kv

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryTokenStore_SingleUse(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryTokenStore()

	token, err := s.Issue(ctx, PurposePasswordReset, "admin-1", time.Hour)
	require.NoError(t, err)
	assert.Len(t, token, 64)

	subject, err := s.Consume(ctx, PurposePasswordReset, token)
	require.NoError(t, err)
	assert.Equal(t, "admin-1", subject)

	_, err = s.Consume(ctx, PurposePasswordReset, token)
	assert.ErrorIs(t, err, ErrTokenInvalid)
}

func TestMemoryTokenStore_PurposeIsolation(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryTokenStore()

	token, err := s.Issue(ctx, PurposeEmailVerification, "admin-1", time.Hour)
	require.NoError(t, err)

	_, err = s.Consume(ctx, PurposePasswordReset, token)
	assert.ErrorIs(t, err, ErrTokenInvalid)

	_, err = s.Consume(ctx, PurposeEmailVerification, token)
	assert.NoError(t, err)
}

func TestMemoryTokenStore_Expired(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryTokenStore()
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return now }

	token, err := s.Issue(ctx, PurposePasswordReset, "admin-1", time.Hour)
	require.NoError(t, err)

	now = now.Add(2 * time.Hour)
	_, err = s.Consume(ctx, PurposePasswordReset, token)
	assert.ErrorIs(t, err, ErrTokenInvalid)
}

func TestTokenKey_DoesNotContainToken(t *testing.T) {
	key := tokenKey(PurposePasswordReset, "plain-token-value")
	assert.NotContains(t, key, "plain-token-value")
	assert.Contains(t, key, "token:password-reset:")
}

func TestMemoryWindowCounter(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryWindowCounter()
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }

	for i := int64(1); i <= 3; i++ {
		n, ttl, err := c.Incr(ctx, "1.2.3.4", time.Minute)
		require.NoError(t, err)
		assert.Equal(t, i, n)
		assert.Equal(t, time.Minute, ttl)
	}

	now = now.Add(30 * time.Second)
	n, ttl, err := c.Incr(ctx, "1.2.3.4", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, int64(4), n)
	assert.Equal(t, 30*time.Second, ttl)

	n, _, _ = c.Incr(ctx, "5.6.7.8", time.Minute)
	assert.Equal(t, int64(1), n, "keys are counted independently")

	now = now.Add(31 * time.Second)
	n, ttl, err = c.Incr(ctx, "1.2.3.4", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n, "a new window starts after reset")
	assert.Equal(t, time.Minute, ttl)
}
