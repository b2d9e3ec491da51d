package reviews

import (
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/congo-pay/escrow_engine/internal/apierror"
	"github.com/congo-pay/escrow_engine/internal/auth"
	"github.com/congo-pay/escrow_engine/internal/domain"
)

type Handler struct {
	gate *Gate
}

func NewHandler(gate *Gate) *Handler {
	return &Handler{gate: gate}
}

type submitRequest struct {
	Rating  int    `json:"rating"`
	Comment string `json:"comment"`
}

type reviewResponse struct {
	ID        string    `json:"id"`
	OrderID   string    `json:"order_id"`
	ClientID  string    `json:"client_id"`
	CompanyID string    `json:"company_id"`
	Rating    int       `json:"rating"`
	Comment   string    `json:"comment"`
	CreatedAt time.Time `json:"created_at"`
}

type companyReviewsResponse struct {
	CompanyID     string           `json:"company_id"`
	Reviews       []reviewResponse `json:"reviews"`
	Total         int              `json:"total"`
	AverageRating float64          `json:"average_rating"`
}

func toResponse(r domain.Review) reviewResponse {
	return reviewResponse{
		ID:        r.ID,
		OrderID:   r.OrderID,
		ClientID:  r.ClientID,
		CompanyID: r.CompanyID,
		Rating:    r.Rating,
		Comment:   r.Comment,
		CreatedAt: r.CreatedAt,
	}
}

// Submit rates a finished order on behalf of its client.
func (h *Handler) Submit(c *fiber.Ctx) error {
	p, ok := auth.PrincipalFrom(c)
	if !ok {
		return apierror.ErrMissingToken
	}
	var req submitRequest
	if err := c.BodyParser(&req); err != nil {
		return domain.ErrInvalidRequest
	}

	review, err := h.gate.Submit(c.UserContext(), SubmitInput{
		OrderID:  c.Params("orderId"),
		ClientID: p.AccountID,
		Rating:   req.Rating,
		Comment:  req.Comment,
	})
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(toResponse(review))
}

// ListForCompany returns a company's reviews with its average rating.
func (h *Handler) ListForCompany(c *fiber.Ctx) error {
	companyID := c.Params("companyId")
	page, err := h.gate.ListForCompany(c.UserContext(), companyID, c.QueryInt("limit"), c.QueryInt("offset"))
	if err != nil {
		return err
	}

	resp := companyReviewsResponse{
		CompanyID:     companyID,
		Reviews:       make([]reviewResponse, 0, len(page.Reviews)),
		Total:         page.Total,
		AverageRating: page.AverageRating,
	}
	for _, r := range page.Reviews {
		resp.Reviews = append(resp.Reviews, toResponse(r))
	}
	return c.JSON(resp)
}
