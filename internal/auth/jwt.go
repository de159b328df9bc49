package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	adminRole        = "admin"
	adminTokenExpiry = 24 * time.Hour
	adminTokenIssuer = "playmate"
)

// ErrAdminDisabled is returned when no admin secret is configured
var ErrAdminDisabled = errors.New("admin tokens disabled")

// AdminClaims are the claims carried by an operator token
type AdminClaims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// AdminTokens signs and verifies HS256 operator tokens for /admin routes
type AdminTokens struct {
	secret []byte
	now    func() time.Time
}

// NewAdminTokens creates an admin token service. An empty secret disables admin access.
func NewAdminTokens(secret string) *AdminTokens {
	return &AdminTokens{
		secret: []byte(secret),
		now:    time.Now,
	}
}

// Enabled reports whether a secret is configured
func (s *AdminTokens) Enabled() bool { return len(s.secret) > 0 }

// Sign creates an admin token for subject. ttl <= 0 uses the default expiry.
func (s *AdminTokens) Sign(subject string, ttl time.Duration) (string, error) {
	if !s.Enabled() {
		return "", ErrAdminDisabled
	}
	if ttl <= 0 {
		ttl = adminTokenExpiry
	}
	now := s.now()
	claims := &AdminClaims{
		Role: adminRole,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			Issuer:    adminTokenIssuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign admin token: %w", err)
	}
	return tokenString, nil
}

// Verify parses tokenString and checks the signature, expiry and admin role
func (s *AdminTokens) Verify(tokenString string) (*AdminClaims, error) {
	if !s.Enabled() {
		return nil, ErrAdminDisabled
	}
	token, err := jwt.ParseWithClaims(tokenString, &AdminClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.secret, nil
	}, jwt.WithIssuer(adminTokenIssuer), jwt.WithTimeFunc(s.now))
	if err != nil {
		return nil, fmt.Errorf("failed to parse token: %w", err)
	}

	claims, ok := token.Claims.(*AdminClaims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("invalid token")
	}
	if claims.Role != adminRole {
		return nil, fmt.Errorf("token lacks admin role")
	}
	return claims, nil
}
