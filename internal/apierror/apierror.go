package apierror

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/congo-pay/escrow_engine/internal/domain"
)

type AppError struct {
	Status  int
	Code    string
	Message string
}

func (e *AppError) Error() string { return e.Message }

var (
	ErrMissingToken      = &AppError{http.StatusUnauthorized, "MISSING_TOKEN", "Authorization header required"}
	ErrInvalidToken      = &AppError{http.StatusUnauthorized, "INVALID_TOKEN", "Token is invalid or expired"}
	ErrInvalidRequest    = &AppError{http.StatusBadRequest, "INVALID_REQUEST", "Invalid request"}
	ErrInvalidAmount     = &AppError{http.StatusBadRequest, "INVALID_AMOUNT", "Amount must be greater than zero"}
	ErrInvalidAction     = &AppError{http.StatusBadRequest, "INVALID_ACTION", "Unknown order action"}
	ErrInvalidRating     = &AppError{http.StatusBadRequest, "INVALID_RATING", "Rating must be between 1 and 5"}
	ErrForbidden         = &AppError{http.StatusForbidden, "FORBIDDEN", "Not allowed to act on this resource"}
	ErrNotFound          = &AppError{http.StatusNotFound, "NOT_FOUND", "Resource not found"}
	ErrCardNotFound      = &AppError{http.StatusNotFound, "CARD_NOT_FOUND", "Card not found for this company"}
	ErrIllegalTransition = &AppError{http.StatusConflict, "ILLEGAL_TRANSITION", "Action not allowed in the current order status"}
	ErrConflict          = &AppError{http.StatusConflict, "CONFLICT", "Resource was modified concurrently, please retry"}
	ErrAlreadyReviewed   = &AppError{http.StatusConflict, "ALREADY_REVIEWED", "Order already reviewed"}
	ErrIdempotencyReuse  = &AppError{http.StatusUnprocessableEntity, "IDEMPOTENCY_KEY_REUSED", "Idempotency key already used with a different request"}
	ErrInsufficientFunds = &AppError{http.StatusUnprocessableEntity, "INSUFFICIENT_FUNDS", "Insufficient funds"}
	ErrNotEligible       = &AppError{http.StatusUnprocessableEntity, "NOT_ELIGIBLE", "Order is not eligible for review"}
	ErrRateLimited       = &AppError{http.StatusTooManyRequests, "RATE_LIMITED", "Too many requests, try again later"}
	ErrInternal          = &AppError{http.StatusInternalServerError, "INTERNAL_ERROR", "An unexpected error occurred"}
)

type body struct {
	Error detail `json:"error"`
}

type detail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// FromError maps a domain or transport error to its HTTP representation.
func FromError(err error) *AppError {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}

	var fiberErr *fiber.Error
	switch {
	case errors.Is(err, domain.ErrCardNotFound):
		return ErrCardNotFound
	case errors.Is(err, domain.ErrNotFound):
		return ErrNotFound
	case errors.Is(err, domain.ErrInsufficientFunds):
		return ErrInsufficientFunds
	case errors.Is(err, domain.ErrInvalidAmount):
		return ErrInvalidAmount
	case errors.Is(err, domain.ErrIllegalTransition):
		return ErrIllegalTransition
	case errors.Is(err, domain.ErrInvalidAction):
		return ErrInvalidAction
	case errors.Is(err, domain.ErrForbidden):
		return ErrForbidden
	case errors.Is(err, domain.ErrNotEligible):
		return ErrNotEligible
	case errors.Is(err, domain.ErrAlreadyReviewed):
		return ErrAlreadyReviewed
	case errors.Is(err, domain.ErrInvalidRating):
		return ErrInvalidRating
	case errors.Is(err, domain.ErrConflict):
		return ErrConflict
	case errors.Is(err, domain.ErrInvalidRequest):
		return ErrInvalidRequest
	case errors.As(err, &fiberErr):
		return &AppError{Status: fiberErr.Code, Code: codeForStatus(fiberErr.Code), Message: fiberErr.Message}
	default:
		return ErrInternal
	}
}

func codeForStatus(status int) string {
	switch status {
	case http.StatusNotFound:
		return "NOT_FOUND"
	case http.StatusMethodNotAllowed:
		return "METHOD_NOT_ALLOWED"
	case http.StatusUnauthorized:
		return "UNAUTHORIZED"
	case http.StatusRequestEntityTooLarge:
		return "PAYLOAD_TOO_LARGE"
	case http.StatusTooManyRequests:
		return "RATE_LIMITED"
	default:
		if status >= http.StatusInternalServerError {
			return "INTERNAL_ERROR"
		}
		return "INVALID_REQUEST"
	}
}

// Respond writes the error envelope.
func Respond(c *fiber.Ctx, appErr *AppError) error {
	return c.Status(appErr.Status).JSON(body{Error: detail{Code: appErr.Code, Message: appErr.Message}})
}

// Handler renders every error returned by a fiber handler as a JSON envelope.
func Handler(logger *slog.Logger) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		appErr := FromError(err)
		if appErr.Status >= http.StatusInternalServerError {
			logger.Error("unhandled error", "error", err, "method", c.Method(), "path", c.Path())
		}
		return Respond(c, appErr)
	}
}
