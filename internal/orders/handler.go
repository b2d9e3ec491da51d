package orders

import (
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/congo-pay/escrow_engine/internal/apierror"
	"github.com/congo-pay/escrow_engine/internal/auth"
	"github.com/congo-pay/escrow_engine/internal/domain"
)

// Handler exposes order lifecycle HTTP endpoints.
type Handler struct {
	service *Service
}

// NewHandler builds an order HTTP handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

type createRequest struct {
	CompanyID   string `json:"company_id"`
	CardID      string `json:"card_id"`
	Description string `json:"description"`
}

type statusRequest struct {
	Action string `json:"action"`
}

type cardRequest struct {
	Price int64 `json:"price"`
}

type OrderResponse struct {
	ID            string     `json:"id"`
	ClientID      string     `json:"client_id"`
	CompanyID     string     `json:"company_id"`
	CardID        string     `json:"card_id"`
	Amount        int64      `json:"amount"`
	Status        string     `json:"status"`
	PaymentStatus string     `json:"payment_status"`
	Description   string     `json:"description"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
	CompletedAt   *time.Time `json:"completed_at,omitempty"`
}

type transitionResponse struct {
	From      string    `json:"from,omitempty"`
	To        string    `json:"to"`
	Action    string    `json:"action"`
	ActorID   string    `json:"actor_id"`
	ActorRole string    `json:"actor_role"`
	At        time.Time `json:"at"`
}

type cardResponse struct {
	ID        string    `json:"id"`
	CompanyID string    `json:"company_id"`
	Price     int64     `json:"price"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ToResponse renders an order for API clients.
func ToResponse(o domain.Order) OrderResponse {
	return OrderResponse{
		ID:            o.ID,
		ClientID:      o.ClientID,
		CompanyID:     o.CompanyID,
		CardID:        o.CardID,
		Amount:        o.Amount,
		Status:        string(o.Status),
		PaymentStatus: string(o.PaymentStatus),
		Description:   o.Description,
		CreatedAt:     o.CreatedAt,
		UpdatedAt:     o.UpdatedAt,
		CompletedAt:   o.CompletedAt,
	}
}

// Create places an order for one of a company's cards.
func (h *Handler) Create(c *fiber.Ctx) error {
	p, ok := auth.PrincipalFrom(c)
	if !ok {
		return apierror.ErrMissingToken
	}
	var req createRequest
	if err := c.BodyParser(&req); err != nil {
		return domain.ErrInvalidRequest
	}

	order, err := h.service.CreateOrder(c.UserContext(), CreateInput{
		ClientID:    p.AccountID,
		CompanyID:   req.CompanyID,
		CardID:      req.CardID,
		Description: req.Description,
	})
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(ToResponse(order))
}

// UpdateStatus applies {action} to the order on behalf of the caller.
func (h *Handler) UpdateStatus(c *fiber.Ctx) error {
	p, ok := auth.PrincipalFrom(c)
	if !ok {
		return apierror.ErrMissingToken
	}
	var req statusRequest
	if err := c.BodyParser(&req); err != nil {
		return domain.ErrInvalidRequest
	}

	order, err := h.service.UpdateStatus(c.UserContext(), UpdateInput{
		ActorID: p.AccountID,
		OrderID: c.Params("orderId"),
		Action:  req.Action,
	})
	if err != nil {
		return err
	}
	return c.JSON(ToResponse(order))
}

// History lists the order's status changes.
func (h *Handler) History(c *fiber.Ctx) error {
	p, ok := auth.PrincipalFrom(c)
	if !ok {
		return apierror.ErrMissingToken
	}
	transitions, err := h.service.History(c.UserContext(), p.AccountID, c.Params("orderId"))
	if err != nil {
		return err
	}

	resp := make([]transitionResponse, 0, len(transitions))
	for _, t := range transitions {
		resp = append(resp, transitionResponse{
			From:      string(t.From),
			To:        string(t.To),
			Action:    t.Action,
			ActorID:   t.ActorID,
			ActorRole: string(t.ActorRole),
			At:        t.At,
		})
	}
	return c.JSON(fiber.Map{"order_id": c.Params("orderId"), "transitions": resp})
}

// PutCard lets a company publish the price of one of its cards.
func (h *Handler) PutCard(c *fiber.Ctx) error {
	p, ok := auth.PrincipalFrom(c)
	if !ok {
		return apierror.ErrMissingToken
	}
	var req cardRequest
	if err := c.BodyParser(&req); err != nil {
		return domain.ErrInvalidRequest
	}

	card, err := h.service.PutCard(c.UserContext(), p.AccountID, c.Params("cardId"), req.Price)
	if err != nil {
		return err
	}
	return c.JSON(cardResponse{ID: card.ID, CompanyID: card.CompanyID, Price: card.Price, UpdatedAt: card.UpdatedAt})
}
