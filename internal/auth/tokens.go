// Package auth issues and validates the bearer tokens of the admin API.
package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	RoleAdmin    = "admin"
	RoleOperator = "operator"

	tokenIssuer = "docindex-platform"
	jtiPrefix   = "access:"
)

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrRevoked      = errors.New("token revoked or expired")
)

type Claims struct {
	UserID string `json:"user_id"`
	Role   string `json:"role"`
	jwt.RegisteredClaims
}

// JTIStore is where issued token ids live until they expire or are revoked.
type JTIStore interface {
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	Exists(ctx context.Context, keys ...string) *redis.IntCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

type TokenService struct {
	secret []byte
	jtis   JTIStore
	now    func() time.Time
}

func NewTokenService(secret string, jtis JTIStore) (*TokenService, error) {
	if len(secret) < 32 {
		return nil, fmt.Errorf("ACCESS_SECRET must be configured and at least 32 characters")
	}
	return &TokenService{secret: []byte(secret), jtis: jtis, now: time.Now}, nil
}

// Issue signs a token for userID and registers its id for revocation.
func (s *TokenService) Issue(ctx context.Context, userID, role string, ttl time.Duration) (string, *Claims, error) {
	now := s.now()
	claims := &Claims{
		UserID: userID,
		Role:   role,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   userID,
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    tokenIssuer,
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", nil, err
	}
	if err := s.jtis.Set(ctx, jtiPrefix+claims.ID, userID, ttl).Err(); err != nil {
		return "", nil, fmt.Errorf("register token: %w", err)
	}
	return signed, claims, nil
}

func (s *TokenService) Validate(ctx context.Context, tokenString string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		// Prevent algorithm confusion attacks
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return s.secret, nil
	}, jwt.WithIssuer(tokenIssuer), jwt.WithTimeFunc(s.now))
	if err != nil || !token.Valid {
		return nil, ErrInvalidToken
	}

	exists, err := s.jtis.Exists(ctx, jtiPrefix+claims.ID).Result()
	if err != nil || exists != 1 {
		return nil, ErrRevoked
	}
	return claims, nil
}

func (s *TokenService) Revoke(ctx context.Context, jti string) error {
	return s.jtis.Del(ctx, jtiPrefix+jti).Err()
}
