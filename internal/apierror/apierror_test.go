package apierror

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/congo-pay/escrow_engine/internal/domain"
	"github.com/congo-pay/escrow_engine/internal/logging"
)

func TestFromError(t *testing.T) {
	tests := []struct {
		err        error
		wantStatus int
		wantCode   string
	}{
		{fmt.Errorf("Debit: %w", domain.ErrInsufficientFunds), http.StatusUnprocessableEntity, "INSUFFICIENT_FUNDS"},
		{fmt.Errorf("GetCard: %w", domain.ErrCardNotFound), http.StatusNotFound, "CARD_NOT_FOUND"},
		{domain.ErrIllegalTransition, http.StatusConflict, "ILLEGAL_TRANSITION"},
		{domain.ErrInvalidAction, http.StatusBadRequest, "INVALID_ACTION"},
		{domain.ErrForbidden, http.StatusForbidden, "FORBIDDEN"},
		{domain.ErrNotEligible, http.StatusUnprocessableEntity, "NOT_ELIGIBLE"},
		{domain.ErrAlreadyReviewed, http.StatusConflict, "ALREADY_REVIEWED"},
		{domain.ErrInvalidRating, http.StatusBadRequest, "INVALID_RATING"},
		{domain.ErrConflict, http.StatusConflict, "CONFLICT"},
		{domain.ErrNotFound, http.StatusNotFound, "NOT_FOUND"},
		{ErrRateLimited, http.StatusTooManyRequests, "RATE_LIMITED"},
		{fiber.ErrMethodNotAllowed, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED"},
		{errors.New("disk on fire"), http.StatusInternalServerError, "INTERNAL_ERROR"},
	}
	for _, tt := range tests {
		t.Run(tt.wantCode, func(t *testing.T) {
			got := FromError(tt.err)
			assert.Equal(t, tt.wantStatus, got.Status)
			assert.Equal(t, tt.wantCode, got.Code)
		})
	}
}

func TestHandler_RendersEnvelope(t *testing.T) {
	app := fiber.New(fiber.Config{ErrorHandler: Handler(logging.Discard())})
	app.Get("/boom", func(c *fiber.Ctx) error {
		return fmt.Errorf("UpdateStatus: %w", domain.ErrIllegalTransition)
	})

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/boom", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	var got struct {
		Error struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(raw, &got))
	assert.Equal(t, "ILLEGAL_TRANSITION", got.Error.Code)
	assert.NotEmpty(t, got.Error.Message)
}
