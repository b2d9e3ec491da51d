package ledger

import (
	"context"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/congo-pay/escrow_engine/internal/apierror"
	"github.com/congo-pay/escrow_engine/internal/auth"
	"github.com/congo-pay/escrow_engine/internal/domain"
)

// Handler exposes balance HTTP endpoints for the authenticated account.
type Handler struct {
	service *Service
}

// NewHandler builds a balance HTTP handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

type amountRequest struct {
	Amount int64 `json:"amount"`
}

type balanceResponse struct {
	AccountID string `json:"account_id"`
	Balance   int64  `json:"balance"`
}

type transactionResponse struct {
	ID               string    `json:"id"`
	Kind             string    `json:"kind"`
	Amount           int64     `json:"amount"`
	ResultingBalance int64     `json:"resulting_balance"`
	Status           string    `json:"status"`
	Reference        string    `json:"reference,omitempty"`
	CreatedAt        time.Time `json:"created_at"`
}

type transactionsResponse struct {
	Transactions []transactionResponse `json:"transactions"`
	Total        int                   `json:"total"`
	Limit        int                   `json:"limit"`
	Offset       int                   `json:"offset"`
}

// Balance returns the caller's current balance.
func (h *Handler) Balance(c *fiber.Ctx) error {
	p, ok := auth.PrincipalFrom(c)
	if !ok {
		return apierror.ErrMissingToken
	}
	balance, err := h.service.GetBalance(c.UserContext(), p.AccountID)
	if err != nil {
		return err
	}
	return c.JSON(balanceResponse{AccountID: p.AccountID, Balance: balance})
}

// Deposit credits the caller's balance with an external top-up.
func (h *Handler) Deposit(c *fiber.Ctx) error {
	return h.move(c, h.service.Deposit)
}

// Withdraw debits the caller's balance for an external payout.
func (h *Handler) Withdraw(c *fiber.Ctx) error {
	return h.move(c, h.service.Withdraw)
}

func (h *Handler) move(c *fiber.Ctx, op func(ctx context.Context, id string, amount int64) (int64, error)) error {
	p, ok := auth.PrincipalFrom(c)
	if !ok {
		return apierror.ErrMissingToken
	}
	var req amountRequest
	if err := c.BodyParser(&req); err != nil {
		return domain.ErrInvalidRequest
	}
	balance, err := op(c.UserContext(), p.AccountID, req.Amount)
	if err != nil {
		return err
	}
	return c.Status(http.StatusOK).JSON(balanceResponse{AccountID: p.AccountID, Balance: balance})
}

// Transactions lists the caller's postings, newest first.
func (h *Handler) Transactions(c *fiber.Ctx) error {
	p, ok := auth.PrincipalFrom(c)
	if !ok {
		return apierror.ErrMissingToken
	}
	page, err := h.service.ListTransactions(c.UserContext(), p.AccountID, c.QueryInt("limit"), c.QueryInt("offset"))
	if err != nil {
		return err
	}

	resp := transactionsResponse{
		Transactions: make([]transactionResponse, 0, len(page.Transactions)),
		Total:        page.Total,
		Limit:        page.Limit,
		Offset:       page.Offset,
	}
	for _, t := range page.Transactions {
		resp.Transactions = append(resp.Transactions, transactionResponse{
			ID:               t.ID,
			Kind:             string(t.Kind),
			Amount:           t.Amount,
			ResultingBalance: t.ResultingBalance,
			Status:           t.Status,
			Reference:        t.Reference,
			CreatedAt:        t.CreatedAt,
		})
	}
	return c.JSON(resp)
}
