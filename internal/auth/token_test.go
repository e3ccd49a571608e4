package auth

import (
	"context"
	"testing"
	"time"

	"buspass/internal/models"

	"github.com/alicebob/miniredis/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret-key-12345678901234567890123456789012"

func newTestRedis(t *testing.T) *redis.Client {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return rdb
}

func TestTokenManager_IssueAndParse(t *testing.T) {
	m := NewTokenManager(testSecret, time.Hour, nil)

	token, issued, err := m.Issue(42, "clerk")
	require.NoError(t, err)
	require.NotEmpty(t, token)

	p, err := m.Parse(context.Background(), token)
	require.NoError(t, err)
	assert.Equal(t, uint(42), p.OperatorID)
	assert.Equal(t, "clerk", p.Username)
	assert.Equal(t, issued.TokenID, p.TokenID)
	assert.WithinDuration(t, issued.ExpiresAt, p.ExpiresAt, time.Second)
}

func TestTokenManager_ParseRejects(t *testing.T) {
	m := NewTokenManager(testSecret, time.Hour, nil)
	now := time.Now()

	sign := func(claims jwt.MapClaims, secret string) string {
		s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
		require.NoError(t, err)
		return s
	}
	base := func() jwt.MapClaims {
		return jwt.MapClaims{
			"sub": "7",
			"iss": Issuer,
			"aud": Audience,
			"exp": now.Add(time.Hour).Unix(),
			"iat": now.Unix(),
		}
	}

	tests := []struct {
		name  string
		token string
	}{
		{"garbage", "not-a-token"},
		{"wrong secret", sign(base(), "another-secret-another-secret-1234")},
		{"expired", func() string { c := base(); c["exp"] = now.Add(-time.Minute).Unix(); return sign(c, testSecret) }()},
		{"wrong issuer", func() string { c := base(); c["iss"] = "someone-else"; return sign(c, testSecret) }()},
		{"wrong audience", func() string { c := base(); c["aud"] = "students"; return sign(c, testSecret) }()},
		{"non numeric subject", func() string { c := base(); c["sub"] = "abc"; return sign(c, testSecret) }()},
		{"zero subject", func() string { c := base(); c["sub"] = "0"; return sign(c, testSecret) }()},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := m.Parse(context.Background(), tt.token)
			assert.Nil(t, p)
			assert.True(t, models.IsCode(err, models.CodeUnauthorized), "got %v", err)
		})
	}
}

func TestTokenManager_Revoke(t *testing.T) {
	rdb := newTestRedis(t)
	m := NewTokenManager(testSecret, time.Hour, rdb)
	ctx := context.Background()

	token, _, err := m.Issue(3, "reviewer")
	require.NoError(t, err)

	p, err := m.Parse(ctx, token)
	require.NoError(t, err)

	require.NoError(t, m.Revoke(ctx, p))

	_, err = m.Parse(ctx, token)
	assert.True(t, models.IsCode(err, models.CodeUnauthorized))

	ttl := rdb.TTL(ctx, blacklistPrefix+p.TokenID).Val()
	assert.Greater(t, ttl, time.Duration(0))
}

func TestTickets_SingleUse(t *testing.T) {
	rdb := newTestRedis(t)
	ctx := context.Background()

	ticket, err := IssueTicket(ctx, rdb, 9)
	require.NoError(t, err)

	operatorID, err := RedeemTicket(ctx, rdb, ticket)
	require.NoError(t, err)
	assert.Equal(t, uint(9), operatorID)

	_, err = RedeemTicket(ctx, rdb, ticket)
	assert.True(t, models.IsCode(err, models.CodeUnauthorized))
}

func TestPrincipalContext(t *testing.T) {
	_, ok := FromContext(context.Background())
	assert.False(t, ok)

	ctx := WithPrincipal(context.Background(), &Principal{OperatorID: 5})
	p, ok := FromContext(ctx)
	require.True(t, ok)
	assert.Equal(t, uint(5), p.OperatorID)

	_, ok = FromContext(WithPrincipal(context.Background(), nil))
	assert.False(t, ok)
}
