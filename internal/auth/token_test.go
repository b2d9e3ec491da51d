package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/congo-pay/escrow_engine/internal/domain"
)

const testSecret = "test-jwt-secret"

func TestIssueAndParse(t *testing.T) {
	token, err := Issue("client-1", domain.RoleClient, testSecret, time.Hour)
	require.NoError(t, err)

	p, err := Parse(token, testSecret)
	require.NoError(t, err)
	assert.Equal(t, Principal{AccountID: "client-1", Role: domain.RoleClient}, p)
}

func TestIssue_RejectsBadClaims(t *testing.T) {
	_, err := Issue("", domain.RoleClient, testSecret, time.Hour)
	assert.ErrorIs(t, err, ErrInvalidClaims)

	_, err = Issue("acct", domain.RoleSystem, testSecret, time.Hour)
	assert.ErrorIs(t, err, ErrInvalidClaims)
}

func TestParse(t *testing.T) {
	valid, err := Issue("company-1", domain.RoleCompany, testSecret, time.Hour)
	require.NoError(t, err)
	expired, err := Issue("company-1", domain.RoleCompany, testSecret, -time.Hour)
	require.NoError(t, err)

	unknownRole, err := jwt.NewWithClaims(jwt.SigningMethodHS256, tokenClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "x",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
		Role: "admin",
	}).SignedString([]byte(testSecret))
	require.NoError(t, err)

	tests := []struct {
		name      string
		token     string
		secret    string
		wantErrIs error
	}{
		{"expired token", expired, testSecret, jwt.ErrTokenExpired},
		{"wrong secret", valid, "wrong-secret", jwt.ErrTokenSignatureInvalid},
		{"malformed token", "not.a.valid.jwt", testSecret, jwt.ErrTokenMalformed},
		{"unknown role", unknownRole, testSecret, ErrInvalidClaims},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(tt.token, tt.secret)
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.wantErrIs)
		})
	}
}
