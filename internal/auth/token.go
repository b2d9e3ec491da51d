package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/congo-pay/escrow_engine/internal/domain"
)

var ErrInvalidClaims = errors.New("invalid token claims")

type tokenClaims struct {
	jwt.RegisteredClaims
	Role string `json:"role"`
}

// Issue signs an HS256 access token whose subject is the account id.
func Issue(accountID string, role domain.Role, secret string, ttl time.Duration) (string, error) {
	if accountID == "" || !role.Valid() {
		return "", fmt.Errorf("Issue: %w", ErrInvalidClaims)
	}
	now := time.Now()
	claims := tokenClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   accountID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		Role: string(role),
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		return "", fmt.Errorf("Issue: %w", err)
	}
	return signed, nil
}

// Parse verifies the token signature and expiry and returns the caller it names.
func Parse(tokenString, secret string) (Principal, error) {
	token, err := jwt.ParseWithClaims(tokenString, &tokenClaims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return []byte(secret), nil
	}, jwt.WithExpirationRequired())
	if err != nil {
		return Principal{}, fmt.Errorf("Parse: %w", err)
	}

	tc, ok := token.Claims.(*tokenClaims)
	if !ok || !token.Valid {
		return Principal{}, fmt.Errorf("Parse: %w", ErrInvalidClaims)
	}
	role := domain.Role(tc.Role)
	if tc.Subject == "" || !role.Valid() {
		return Principal{}, fmt.Errorf("Parse: %w", ErrInvalidClaims)
	}
	return Principal{AccountID: tc.Subject, Role: role}, nil
}
