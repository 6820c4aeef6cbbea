package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "0123456789abcdef0123456789abcdef"

type memJTIs struct {
	keys map[string]bool
	err  error
}

func newMemJTIs() *memJTIs { return &memJTIs{keys: map[string]bool{}} }

func (m *memJTIs) Set(_ context.Context, key string, _ interface{}, _ time.Duration) *redis.StatusCmd {
	if m.err != nil {
		return redis.NewStatusResult("", m.err)
	}
	m.keys[key] = true
	return redis.NewStatusResult("OK", nil)
}

func (m *memJTIs) Exists(_ context.Context, keys ...string) *redis.IntCmd {
	if m.err != nil {
		return redis.NewIntResult(0, m.err)
	}
	var n int64
	for _, k := range keys {
		if m.keys[k] {
			n++
		}
	}
	return redis.NewIntResult(n, nil)
}

func (m *memJTIs) Del(_ context.Context, keys ...string) *redis.IntCmd {
	for _, k := range keys {
		delete(m.keys, k)
	}
	return redis.NewIntResult(int64(len(keys)), nil)
}

func TestNewTokenServiceRejectsShortSecret(t *testing.T) {
	_, err := NewTokenService("short", newMemJTIs())
	assert.Error(t, err)
}

func TestIssueValidateRevoke(t *testing.T) {
	ctx := context.Background()
	svc, err := NewTokenService(testSecret, newMemJTIs())
	require.NoError(t, err)

	token, issued, err := svc.Issue(ctx, "ops@example.com", RoleAdmin, time.Hour)
	require.NoError(t, err)

	claims, err := svc.Validate(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, "ops@example.com", claims.UserID)
	assert.Equal(t, RoleAdmin, claims.Role)

	require.NoError(t, svc.Revoke(ctx, issued.ID))
	_, err = svc.Validate(ctx, token)
	assert.ErrorIs(t, err, ErrRevoked)
}

func TestValidateRejectsExpiredAndForeignTokens(t *testing.T) {
	ctx := context.Background()
	svc, err := NewTokenService(testSecret, newMemJTIs())
	require.NoError(t, err)

	token, _, err := svc.Issue(ctx, "u", RoleAdmin, time.Minute)
	require.NoError(t, err)
	svc.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
	_, err = svc.Validate(ctx, token)
	assert.ErrorIs(t, err, ErrInvalidToken)
	svc.now = time.Now

	other, err := NewTokenService("ffffffffffffffffffffffffffffffff", newMemJTIs())
	require.NoError(t, err)
	foreign, _, err := other.Issue(ctx, "u", RoleAdmin, time.Hour)
	require.NoError(t, err)
	_, err = svc.Validate(ctx, foreign)
	assert.ErrorIs(t, err, ErrInvalidToken)

	none := jwt.NewWithClaims(jwt.SigningMethodNone, &Claims{UserID: "u", Role: RoleAdmin})
	unsigned, err := none.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)
	_, err = svc.Validate(ctx, unsigned)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestIssueFailsWhenJTICannotBeStored(t *testing.T) {
	jtis := newMemJTIs()
	jtis.err = errors.New("redis down")
	svc, err := NewTokenService(testSecret, jtis)
	require.NoError(t, err)

	_, _, err = svc.Issue(context.Background(), "u", RoleAdmin, time.Hour)
	assert.ErrorContains(t, err, "register token")
}
