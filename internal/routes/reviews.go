package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/congo-pay/escrow_engine/internal/reviews"
)

// RegisterReviewRoutes wires review submission and company ratings.
func RegisterReviewRoutes(r fiber.Router, h *reviews.Handler) {
	r.Post("/orders/:orderId/review", h.Submit)
	r.Get("/companies/:companyId/reviews", h.ListForCompany)
}
