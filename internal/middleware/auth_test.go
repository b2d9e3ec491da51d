package middleware

import (
	"context"
	"encoding/json"
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/congo-pay/escrow_engine/internal/apierror"
	"github.com/congo-pay/escrow_engine/internal/auth"
	"github.com/congo-pay/escrow_engine/internal/domain"
	"github.com/congo-pay/escrow_engine/internal/logging"
)

const testSecret = "test-secret"

type fakeOpener struct {
	opened map[string]domain.Role
	err    error
}

func (f *fakeOpener) EnsureAccount(_ context.Context, id string, role domain.Role) (domain.Account, error) {
	if f.err != nil {
		return domain.Account{}, f.err
	}
	f.opened[id] = role
	return domain.Account{ID: id, Role: role}, nil
}

func setupAuthApp(t *testing.T, opener *fakeOpener) *fiber.App {
	t.Helper()
	app := fiber.New(fiber.Config{ErrorHandler: apierror.Handler(logging.Discard())})
	app.Use(JWTAuth(testSecret, opener))
	app.Get("/me", func(c *fiber.Ctx) error {
		p, _ := auth.PrincipalFrom(c)
		return c.JSON(fiber.Map{"account_id": p.AccountID, "role": p.Role})
	})
	app.Get("/company-only", RequireRole(domain.RoleCompany), func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusNoContent)
	})
	return app
}

func token(t *testing.T, id string, role domain.Role) string {
	t.Helper()
	tok, err := auth.Issue(id, role, testSecret, time.Hour)
	require.NoError(t, err)
	return tok
}

func expired(t *testing.T) string {
	t.Helper()
	tok, err := auth.Issue("client-1", domain.RoleClient, testSecret, -time.Minute)
	require.NoError(t, err)
	return tok
}

func foreign(t *testing.T) string {
	t.Helper()
	tok, err := auth.Issue("client-1", domain.RoleClient, "other-secret", time.Hour)
	require.NoError(t, err)
	return tok
}

func get(t *testing.T, app *fiber.App, path, authz string) (int, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(fiber.MethodGet, path, nil)
	if authz != "" {
		req.Header.Set(fiber.HeaderAuthorization, authz)
	}
	resp, err := app.Test(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	payload, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	var body map[string]any
	if len(payload) > 0 {
		require.NoError(t, json.Unmarshal(payload, &body))
	}
	return resp.StatusCode, body
}

func errorCode(body map[string]any) string {
	e, _ := body["error"].(map[string]any)
	code, _ := e["code"].(string)
	return code
}

func TestJWTAuth(t *testing.T) {
	opener := &fakeOpener{opened: map[string]domain.Role{}}
	app := setupAuthApp(t, opener)

	status, body := get(t, app, "/me", "Bearer "+token(t, "client-1", domain.RoleClient))
	require.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, "client-1", body["account_id"])
	assert.Equal(t, "client", body["role"])
	assert.Equal(t, domain.RoleClient, opener.opened["client-1"])

	tests := []struct {
		name       string
		authz      string
		wantStatus int
		wantCode   string
	}{
		{"no header", "", fiber.StatusUnauthorized, "MISSING_TOKEN"},
		{"wrong scheme", "Basic abc", fiber.StatusUnauthorized, "MISSING_TOKEN"},
		{"empty bearer", "Bearer ", fiber.StatusUnauthorized, "MISSING_TOKEN"},
		{"garbage", "Bearer not-a-token", fiber.StatusUnauthorized, "INVALID_TOKEN"},
		{"expired", "Bearer " + expired(t), fiber.StatusUnauthorized, "INVALID_TOKEN"},
		{"wrong secret", "Bearer " + foreign(t), fiber.StatusUnauthorized, "INVALID_TOKEN"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, body := get(t, app, "/me", tt.authz)
			assert.Equal(t, tt.wantStatus, status)
			assert.Equal(t, tt.wantCode, errorCode(body))
		})
	}
}

func TestJWTAuth_RoleMismatch(t *testing.T) {
	app := setupAuthApp(t, &fakeOpener{err: domain.ErrForbidden})

	status, body := get(t, app, "/me", "Bearer "+token(t, "client-1", domain.RoleCompany))
	assert.Equal(t, fiber.StatusUnauthorized, status)
	assert.Equal(t, "INVALID_TOKEN", errorCode(body))
}

func TestRequireRole(t *testing.T) {
	app := setupAuthApp(t, &fakeOpener{opened: map[string]domain.Role{}})

	status, _ := get(t, app, "/company-only", "Bearer "+token(t, "company-1", domain.RoleCompany))
	assert.Equal(t, fiber.StatusNoContent, status)

	status, body := get(t, app, "/company-only", "Bearer "+token(t, "client-1", domain.RoleClient))
	assert.Equal(t, fiber.StatusForbidden, status)
	assert.Equal(t, "FORBIDDEN", errorCode(body))
}
