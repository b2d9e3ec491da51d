package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/congo-pay/escrow_engine/internal/ledger"
)

// RegisterBalanceRoutes wires the caller's ledger endpoints. Money movements
// go through idempotency.
func RegisterBalanceRoutes(r fiber.Router, h *ledger.Handler, idempotent fiber.Handler) {
	r.Get("/balance", h.Balance)
	r.Get("/balance/transactions", h.Transactions)
	r.Post("/balance/deposit", idempotent, h.Deposit)
	r.Post("/balance/withdraw", idempotent, h.Withdraw)
}
