package auth

import (
	"context"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func newTestValidator(t *testing.T, issuer string) *HMACValidator {
	t.Helper()
	v, err := NewHMACValidator(Config{Secret: testSecret, Issuer: issuer})
	require.NoError(t, err)
	return v
}

func TestNewHMACValidator(t *testing.T) {
	_, err := NewHMACValidator(Config{Secret: "short"})
	assert.ErrorIs(t, err, ErrWeakSecret)

	v, err := NewHMACValidator(Config{Secret: testSecret})
	require.NoError(t, err)
	assert.Equal(t, 30*time.Second, v.leeway)
}

func TestIssueAndValidate(t *testing.T) {
	v := newTestValidator(t, "fetchguard")

	token, err := v.IssueToken("ops@example.com", RoleAdmin, time.Hour)
	require.NoError(t, err)

	claims, err := v.ValidateToken(context.Background(), token)
	require.NoError(t, err)
	assert.Equal(t, "ops@example.com", claims.Subject)
	assert.Equal(t, RoleAdmin, claims.Role)
	assert.Equal(t, "fetchguard", claims.Issuer)
	assert.WithinDuration(t, time.Now().Add(time.Hour), claims.ExpiresAt, 5*time.Second)
}

func TestIssueToken_Validation(t *testing.T) {
	v := newTestValidator(t, "")

	_, err := v.IssueToken("", RoleAdmin, time.Hour)
	assert.Error(t, err)
	_, err = v.IssueToken("x", "", time.Hour)
	assert.Error(t, err)
	_, err = v.IssueToken("x", RoleAdmin, 0)
	assert.Error(t, err)
}

func TestValidateToken_Rejections(t *testing.T) {
	v := newTestValidator(t, "fetchguard")
	ctx := context.Background()

	sign := func(t *testing.T, method jwt.SigningMethod, key interface{}, claims jwt.Claims) string {
		t.Helper()
		s, err := jwt.NewWithClaims(method, claims).SignedString(key)
		require.NoError(t, err)
		return s
	}
	valid := func() Claims {
		return Claims{
			RegisteredClaims: jwt.RegisteredClaims{
				Subject:   "ops",
				Issuer:    "fetchguard",
				ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
			},
			Role: RoleAdmin,
		}
	}

	t.Run("expired", func(t *testing.T) {
		c := valid()
		c.ExpiresAt = jwt.NewNumericDate(time.Now().Add(-time.Hour))
		_, err := v.ValidateToken(ctx, sign(t, jwt.SigningMethodHS256, []byte(testSecret), c))
		assert.ErrorIs(t, err, ErrTokenExpired)
	})

	t.Run("wrong issuer", func(t *testing.T) {
		c := valid()
		c.Issuer = "someone-else"
		_, err := v.ValidateToken(ctx, sign(t, jwt.SigningMethodHS256, []byte(testSecret), c))
		assert.ErrorIs(t, err, ErrInvalidIssuer)
	})

	t.Run("wrong secret", func(t *testing.T) {
		_, err := v.ValidateToken(ctx, sign(t, jwt.SigningMethodHS256, []byte("ffffffffffffffffffffffffffffffff"), valid()))
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("other hmac algorithm", func(t *testing.T) {
		_, err := v.ValidateToken(ctx, sign(t, jwt.SigningMethodHS512, []byte(testSecret), valid()))
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("none algorithm", func(t *testing.T) {
		_, err := v.ValidateToken(ctx, sign(t, jwt.SigningMethodNone, jwt.UnsafeAllowNoneSignatureType, valid()))
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("missing expiry", func(t *testing.T) {
		c := valid()
		c.ExpiresAt = nil
		_, err := v.ValidateToken(ctx, sign(t, jwt.SigningMethodHS256, []byte(testSecret), c))
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("missing role", func(t *testing.T) {
		c := valid()
		c.Role = ""
		_, err := v.ValidateToken(ctx, sign(t, jwt.SigningMethodHS256, []byte(testSecret), c))
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("garbage", func(t *testing.T) {
		_, err := v.ValidateToken(ctx, "not.a.jwt")
		assert.ErrorIs(t, err, ErrInvalidToken)
	})
}
