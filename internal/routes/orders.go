package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/congo-pay/escrow_engine/internal/domain"
	"github.com/congo-pay/escrow_engine/internal/middleware"
	"github.com/congo-pay/escrow_engine/internal/orderquery"
	"github.com/congo-pay/escrow_engine/internal/orders"
)

// RegisterOrderRoutes wires order lifecycle and order views.
func RegisterOrderRoutes(r fiber.Router, h *orders.Handler, q *orderquery.Handler, idempotent, limited fiber.Handler) {
	r.Post("/orders", middleware.RequireRole(domain.RoleClient), limited, idempotent, h.Create)
	r.Get("/orders", q.List)
	r.Get("/orders/:orderId", q.Get)
	r.Post("/orders/:orderId/status", h.UpdateStatus)
	r.Get("/orders/:orderId/history", h.History)
	r.Put("/cards/:cardId", middleware.RequireRole(domain.RoleCompany), h.PutCard)
}
