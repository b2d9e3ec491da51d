package server

import (
	"encoding/json"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/congo-pay/escrow_engine/internal/config"
	"github.com/congo-pay/escrow_engine/internal/logging"
	"github.com/congo-pay/escrow_engine/internal/routes"
	"github.com/congo-pay/escrow_engine/internal/store"
)

func TestNew_RendersErrorEnvelope(t *testing.T) {
	cfg := config.Config{AppEnv: "development", JWTSecret: "s", Port: "0"}
	srv, err := New(routes.Deps{Cfg: cfg, Store: store.NewMemory()}, logging.Discard())
	require.NoError(t, err)

	resp, err := srv.App().Test(httptest.NewRequest(fiber.MethodGet, "/nowhere", nil))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)

	var body struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "NOT_FOUND", body.Error.Code)
}

func TestNew_RequiresDatabaseOutsideDevelopment(t *testing.T) {
	cfg := config.Config{AppEnv: "production", JWTSecret: "s"}
	_, err := New(routes.Deps{Cfg: cfg, Store: store.NewMemory()}, logging.Discard())
	assert.Error(t, err)
}
