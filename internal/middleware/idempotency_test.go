package middleware

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/congo-pay/escrow_engine/internal/apierror"
	"github.com/congo-pay/escrow_engine/internal/auth"
	"github.com/congo-pay/escrow_engine/internal/domain"
	"github.com/congo-pay/escrow_engine/internal/logging"
)

func newRedis(t *testing.T) *redis.Client {
	t.Helper()
	mr := miniredis.RunT(t)
	cache := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { cache.Close() })
	return cache
}

// asAccount stands in for JWTAuth, trusting the X-Account header.
func asAccount(c *fiber.Ctx) error {
	if id := c.Get("X-Account"); id != "" {
		auth.SetPrincipal(c, auth.Principal{AccountID: id, Role: domain.RoleClient})
	}
	return c.Next()
}

func setupIdempotencyApp(t *testing.T) (*fiber.App, *atomic.Int32) {
	t.Helper()
	calls := &atomic.Int32{}
	app := fiber.New(fiber.Config{ErrorHandler: apierror.Handler(logging.Discard())})
	app.Use(asAccount, Idempotency(newRedis(t), time.Minute, logging.Discard()))
	app.Post("/resource", func(c *fiber.Ctx) error {
		n := calls.Add(1)
		return c.Status(fiber.StatusCreated).JSON(fiber.Map{"call": n})
	})
	app.Post("/broke", func(c *fiber.Ctx) error {
		calls.Add(1)
		return domain.ErrInsufficientFunds
	})
	app.Get("/resource", func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusOK)
	})
	return app, calls
}

func post(t *testing.T, app *fiber.App, path, key, account, body string) (*http.Response, string) {
	t.Helper()
	req := httptest.NewRequest(fiber.MethodPost, path, strings.NewReader(body))
	req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	if key != "" {
		req.Header.Set(idempotencyKeyHeader, key)
	}
	if account != "" {
		req.Header.Set("X-Account", account)
	}
	resp, err := app.Test(req)
	require.NoError(t, err)
	payload, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	resp.Body.Close()
	return resp, string(payload)
}

func TestIdempotencyRequiresHeader(t *testing.T) {
	app, calls := setupIdempotencyApp(t)

	resp, _ := post(t, app, "/resource", "", "client-1", "{}")
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
	assert.Zero(t, calls.Load())

	req := httptest.NewRequest(fiber.MethodGet, "/resource", nil)
	getResp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, getResp.StatusCode)
}

func TestIdempotencyReturnsCachedResponse(t *testing.T) {
	app, calls := setupIdempotencyApp(t)

	resp, first := post(t, app, "/resource", "abc123", "client-1", `{"amount":5}`)
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)

	resp, second := post(t, app, "/resource", "abc123", "client-1", `{"amount":5}`)
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)
	assert.Equal(t, first, second)
	assert.Equal(t, "true", resp.Header.Get("Idempotent-Replayed"))
	assert.Equal(t, int32(1), calls.Load())

	var decoded map[string]any
	require.NoError(t, json.Unmarshal([]byte(second), &decoded))
}

func TestIdempotencyKeyReuseWithDifferentBody(t *testing.T) {
	app, calls := setupIdempotencyApp(t)

	resp, _ := post(t, app, "/resource", "abc123", "client-1", `{"amount":5}`)
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)

	resp, body := post(t, app, "/resource", "abc123", "client-1", `{"amount":6}`)
	assert.Equal(t, fiber.StatusUnprocessableEntity, resp.StatusCode)
	assert.Contains(t, body, "IDEMPOTENCY_KEY_REUSED")
	assert.Equal(t, int32(1), calls.Load())
}

func TestIdempotencyKeysScopedToCaller(t *testing.T) {
	app, calls := setupIdempotencyApp(t)

	_, first := post(t, app, "/resource", "abc123", "client-1", "{}")
	_, second := post(t, app, "/resource", "abc123", "client-2", "{}")
	assert.NotEqual(t, first, second)
	assert.Equal(t, int32(2), calls.Load())
}

func TestIdempotencyDoesNotRecordFailures(t *testing.T) {
	app, calls := setupIdempotencyApp(t)

	for i := 0; i < 2; i++ {
		resp, body := post(t, app, "/broke", "retry-me", "client-1", "{}")
		assert.Equal(t, fiber.StatusUnprocessableEntity, resp.StatusCode)
		assert.Contains(t, body, "INSUFFICIENT_FUNDS")
	}
	assert.Equal(t, int32(2), calls.Load())
}
