// Package auth issues and validates the HS256 bearer tokens that guard the
// admin API.
package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// RoleAdmin is the role required by the admin API
const RoleAdmin = "admin"

// minSecretLength is the shortest HMAC secret accepted
const minSecretLength = 32

var (
	// ErrInvalidToken is returned when the token is invalid
	ErrInvalidToken = errors.New("invalid token")

	// ErrTokenExpired is returned when the token has expired
	ErrTokenExpired = errors.New("token expired")

	// ErrInvalidIssuer is returned when the token issuer is invalid
	ErrInvalidIssuer = errors.New("invalid issuer")

	// ErrWeakSecret is returned for secrets shorter than 32 bytes
	ErrWeakSecret = errors.New("secret must be at least 32 bytes")
)

// Claims represents the claims carried by an admin token
type Claims struct {
	jwt.RegisteredClaims
	Role string `json:"role"`
}

// ParsedClaims represents parsed and validated claims
type ParsedClaims struct {
	Subject   string
	Role      string
	Issuer    string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// HMACValidator validates and issues HS256 tokens with a shared secret
type HMACValidator struct {
	secret []byte
	issuer string
	leeway time.Duration
	now    func() time.Time
}

// Config holds configuration for HMACValidator
type Config struct {
	Secret string
	Issuer string
	Leeway time.Duration
}

// NewHMACValidator creates a new validator
func NewHMACValidator(cfg Config) (*HMACValidator, error) {
	if len(cfg.Secret) < minSecretLength {
		return nil, ErrWeakSecret
	}
	if cfg.Leeway == 0 {
		cfg.Leeway = 30 * time.Second
	}
	return &HMACValidator{
		secret: []byte(cfg.Secret),
		issuer: cfg.Issuer,
		leeway: cfg.Leeway,
		now:    time.Now,
	}, nil
}

// ValidateToken validates a token and returns parsed claims. Only HS256 is
// accepted; subject, expiry and role are required.
func (v *HMACValidator) ValidateToken(_ context.Context, tokenString string) (*ParsedClaims, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(v.leeway),
		jwt.WithTimeFunc(v.now),
	}
	if v.issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.issuer))
	}

	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(*jwt.Token) (interface{}, error) {
		return v.secret, nil
	}, opts...)
	if err != nil {
		switch {
		case errors.Is(err, jwt.ErrTokenExpired):
			return nil, ErrTokenExpired
		case errors.Is(err, jwt.ErrTokenInvalidIssuer):
			return nil, fmt.Errorf("%w: expected %s", ErrInvalidIssuer, v.issuer)
		default:
			return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
		}
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}
	if claims.Subject == "" {
		return nil, fmt.Errorf("%w: missing sub", ErrInvalidToken)
	}
	if claims.Role == "" {
		return nil, fmt.Errorf("%w: missing role", ErrInvalidToken)
	}

	parsed := &ParsedClaims{
		Subject:   claims.Subject,
		Role:      claims.Role,
		Issuer:    claims.Issuer,
		ExpiresAt: claims.ExpiresAt.Time,
	}
	if claims.IssuedAt != nil {
		parsed.IssuedAt = claims.IssuedAt.Time
	}
	return parsed, nil
}

// IssueToken signs a token for subject with the given role and lifetime
func (v *HMACValidator) IssueToken(subject, role string, ttl time.Duration) (string, error) {
	if subject == "" || role == "" {
		return "", fmt.Errorf("subject and role are required")
	}
	if ttl <= 0 {
		return "", fmt.Errorf("ttl must be positive")
	}

	now := v.now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   subject,
			Issuer:    v.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		Role: role,
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(v.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}
