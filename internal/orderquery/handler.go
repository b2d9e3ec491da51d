package orderquery

import (
	"github.com/gofiber/fiber/v2"

	"github.com/congo-pay/escrow_engine/internal/apierror"
	"github.com/congo-pay/escrow_engine/internal/auth"
	"github.com/congo-pay/escrow_engine/internal/orders"
)

type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

type viewResponse struct {
	orders.OrderResponse
	ViewerRole string   `json:"viewer_role"`
	CanCancel  bool     `json:"can_cancel"`
	CanPay     bool     `json:"can_pay"`
	CanRate    bool     `json:"can_rate"`
	Actions    []string `json:"actions"`
}

type pageResponse struct {
	Orders []viewResponse `json:"orders"`
	Total  int            `json:"total"`
	Limit  int            `json:"limit"`
	Offset int            `json:"offset"`
}

func toResponse(v View) viewResponse {
	actions := make([]string, 0, len(v.Actions))
	for _, a := range v.Actions {
		actions = append(actions, string(a))
	}
	return viewResponse{
		OrderResponse: orders.ToResponse(v.Order),
		ViewerRole:    string(v.ViewerRole),
		CanCancel:     v.CanCancel,
		CanPay:        v.CanPay,
		CanRate:       v.CanRate,
		Actions:       actions,
	}
}

func viewer(c *fiber.Ctx) (Viewer, error) {
	p, ok := auth.PrincipalFrom(c)
	if !ok {
		return Viewer{}, apierror.ErrMissingToken
	}
	return Viewer{AccountID: p.AccountID, Role: p.Role}, nil
}

// List handles GET /orders?status=&limit=&offset=.
func (h *Handler) List(c *fiber.Ctx) error {
	v, err := viewer(c)
	if err != nil {
		return err
	}
	page, err := h.service.List(c.UserContext(), v, ListInput{
		Status: c.Query("status"),
		Limit:  c.QueryInt("limit"),
		Offset: c.QueryInt("offset"),
	})
	if err != nil {
		return err
	}

	resp := pageResponse{Orders: make([]viewResponse, 0, len(page.Orders)), Total: page.Total, Limit: page.Limit, Offset: page.Offset}
	for _, o := range page.Orders {
		resp.Orders = append(resp.Orders, toResponse(o))
	}
	return c.JSON(resp)
}

// Get handles GET /orders/:orderId.
func (h *Handler) Get(c *fiber.Ctx) error {
	v, err := viewer(c)
	if err != nil {
		return err
	}
	view, err := h.service.Get(c.UserContext(), v, c.Params("orderId"))
	if err != nil {
		return err
	}
	return c.JSON(toResponse(view))
}
