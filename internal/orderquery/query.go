package orderquery

import (
	"context"
	"fmt"
	"strings"

	"github.com/congo-pay/escrow_engine/internal/domain"
	"github.com/congo-pay/escrow_engine/internal/orders"
	"github.com/congo-pay/escrow_engine/internal/reviews"
	"github.com/congo-pay/escrow_engine/internal/store"
)

// StatusAll disables the status filter.
const StatusAll = "all"

// Viewer is the authenticated caller asking for orders.
type Viewer struct {
	AccountID string
	Role      domain.Role
}

type ListInput struct {
	Status string
	Limit  int
	Offset int
}

// View is an order as one party sees it. The Can* flags and Actions are
// derived on every read.
type View struct {
	domain.Order
	ViewerRole domain.Role
	CanCancel  bool
	CanPay     bool
	CanRate    bool
	Actions    []orders.Action
}

type Page struct {
	Orders []View
	Total  int
	Limit  int
	Offset int
}

type Service struct {
	store store.Reader
	gate  *reviews.Gate
}

func NewService(reader store.Reader, gate *reviews.Gate) *Service {
	return &Service{store: reader, gate: gate}
}

// List returns the orders where the viewer is the client or the company,
// newest first.
func (s *Service) List(ctx context.Context, viewer Viewer, in ListInput) (Page, error) {
	filter := store.OrderFilter{AccountID: viewer.AccountID}
	switch name := strings.ToLower(strings.TrimSpace(in.Status)); name {
	case "", StatusAll:
	default:
		status, ok := domain.ParseStatus(name)
		if !ok {
			return Page{}, fmt.Errorf("status %q: %w", in.Status, domain.ErrInvalidRequest)
		}
		filter.Status = status
	}
	filter.Limit, filter.Offset = store.NormalizePage(in.Limit, in.Offset)

	list, total, err := s.store.ListOrders(ctx, filter)
	if err != nil {
		return Page{}, fmt.Errorf("List: %w", err)
	}

	page := Page{Orders: make([]View, 0, len(list)), Total: total, Limit: filter.Limit, Offset: filter.Offset}
	for _, o := range list {
		v, err := s.view(ctx, o, viewer)
		if err != nil {
			return Page{}, fmt.Errorf("List: %w", err)
		}
		page.Orders = append(page.Orders, v)
	}
	return page, nil
}

// Get returns one order; callers that are not a party get ErrForbidden.
func (s *Service) Get(ctx context.Context, viewer Viewer, orderID string) (View, error) {
	o, err := s.store.GetOrder(ctx, orderID)
	if err != nil {
		return View{}, fmt.Errorf("Get: %w", err)
	}
	if _, ok := o.PartyRole(viewer.AccountID); !ok {
		return View{}, fmt.Errorf("Get %s: %w", orderID, domain.ErrForbidden)
	}
	v, err := s.view(ctx, o, viewer)
	if err != nil {
		return View{}, fmt.Errorf("Get: %w", err)
	}
	return v, nil
}

func (s *Service) view(ctx context.Context, o domain.Order, viewer Viewer) (View, error) {
	reviewed := false
	if o.Status == domain.StatusFinished {
		var err error
		if reviewed, err = s.gate.Reviewed(ctx, o.ID); err != nil {
			return View{}, err
		}
	}
	return Derive(o, viewer, reviewed), nil
}

// Derive computes what the viewer may do with the order right now.
func Derive(o domain.Order, viewer Viewer, reviewed bool) View {
	v := View{Order: o}
	role, ok := o.PartyRole(viewer.AccountID)
	if !ok {
		return v
	}
	v.ViewerRole = role
	v.Actions = orders.AllowedActions(o.Status, role)
	if role == domain.RoleClient {
		v.CanCancel = orders.Allowed(o.Status, orders.ActionCancel, role)
		v.CanPay = o.PaymentStatus == domain.PaymentUnpaid
		v.CanRate = reviews.Eligible(o, reviewed)
	}
	return v
}
