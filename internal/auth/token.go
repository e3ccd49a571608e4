package auth

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"buspass/internal/models"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Token claims pinned for operator sessions.
const (
	Issuer   = "buspass-api"
	Audience = "buspass-operators"

	blacklistPrefix = "blacklist:"
)

// TokenManager issues, validates and revokes operator JWTs.
type TokenManager struct {
	secret []byte
	ttl    time.Duration
	redis  *redis.Client
	now    func() time.Time
}

// NewTokenManager returns a TokenManager. rdb may be nil, in which case
// revocation is unavailable and Revoke is a no-op.
func NewTokenManager(secret string, ttl time.Duration, rdb *redis.Client) *TokenManager {
	if ttl <= 0 {
		ttl = 12 * time.Hour
	}
	return &TokenManager{
		secret: []byte(secret),
		ttl:    ttl,
		redis:  rdb,
		now:    time.Now,
	}
}

// Issue signs a new HS256 token for the operator.
func (m *TokenManager) Issue(operatorID uint, username string) (string, *Principal, error) {
	if len(m.secret) == 0 {
		return "", nil, fmt.Errorf("JWT secret not configured")
	}

	now := m.now()
	p := &Principal{
		OperatorID: operatorID,
		Username:   username,
		TokenID:    generateJTI(now),
		ExpiresAt:  now.Add(m.ttl),
	}
	claims := jwt.MapClaims{
		"sub":      strconv.FormatUint(uint64(operatorID), 10),
		"username": username,
		"iss":      Issuer,
		"aud":      Audience,
		"exp":      p.ExpiresAt.Unix(),
		"iat":      now.Unix(),
		"nbf":      now.Unix(),
		"jti":      p.TokenID,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(m.secret)
	if err != nil {
		return "", nil, err
	}
	return signed, p, nil
}

// Parse validates tokenString and returns its Principal. Revoked tokens are
// rejected when Redis is configured.
func (m *TokenManager) Parse(ctx context.Context, tokenString string) (*Principal, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("invalid signing method")
		}
		return m.secret, nil
	},
		jwt.WithIssuer(Issuer),
		jwt.WithAudience(Audience),
		jwt.WithTimeFunc(m.now),
	)
	if err != nil || !token.Valid {
		return nil, models.NewUnauthorizedError("Invalid or expired token")
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, models.NewUnauthorizedError("Invalid token claims")
	}

	sub, ok := claims["sub"].(string)
	if !ok {
		return nil, models.NewUnauthorizedError("Invalid subject claim")
	}
	operatorID, err := strconv.ParseUint(sub, 10, 32)
	if err != nil || operatorID == 0 {
		return nil, models.NewUnauthorizedError("Invalid operator ID in token")
	}

	p := &Principal{OperatorID: uint(operatorID)}
	p.Username, _ = claims["username"].(string)
	p.TokenID, _ = claims["jti"].(string)
	if exp, expErr := claims.GetExpirationTime(); expErr == nil && exp != nil {
		p.ExpiresAt = exp.Time
	}

	if p.TokenID != "" && m.redis != nil {
		revoked, rerr := m.redis.Exists(ctx, blacklistPrefix+p.TokenID).Result()
		if rerr == nil && revoked > 0 {
			return nil, models.NewUnauthorizedError("Token has been revoked")
		}
	}

	return p, nil
}

// Revoke blacklists the principal's token until it would have expired anyway.
func (m *TokenManager) Revoke(ctx context.Context, p *Principal) error {
	if m.redis == nil || p == nil || p.TokenID == "" {
		return nil
	}
	ttl := time.Until(p.ExpiresAt)
	if ttl <= 0 {
		return nil
	}
	return m.redis.Set(ctx, blacklistPrefix+p.TokenID, "1", ttl).Err()
}

// generateJTI creates a unique JWT ID to prevent replay attacks
func generateJTI(now time.Time) string {
	return fmt.Sprintf("%d-%s", now.Unix(), uuid.New().String()[:8])
}
