package orders

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"

	"github.com/congo-pay/escrow_engine/internal/domain"
	"github.com/congo-pay/escrow_engine/internal/escrow"
	"github.com/congo-pay/escrow_engine/internal/notification"
	"github.com/congo-pay/escrow_engine/internal/store"
)

const (
	MaxDescriptionLength = 2000
	systemActorID        = "system"
)

// Service drives orders through the transition table. Escrow effects, the
// order row and its history commit together.
type Service struct {
	store     store.Store
	escrow    *escrow.Manager
	publisher notification.Publisher
	logger    *slog.Logger
	retries   uint64
	backoff   func() backoff.BackOff
	now       func() time.Time
}

// NewService builds the order service. conflictRetries bounds how many times an
// optimistic-lock conflict is retried before ErrConflict surfaces.
func NewService(st store.Store, esc *escrow.Manager, publisher notification.Publisher, logger *slog.Logger, conflictRetries uint64) *Service {
	return &Service{
		store:     st,
		escrow:    esc,
		publisher: publisher,
		logger:    logger,
		retries:   conflictRetries,
		backoff:   defaultBackOff,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

func defaultBackOff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 20 * time.Millisecond
	b.MaxInterval = 500 * time.Millisecond
	b.MaxElapsedTime = 5 * time.Second
	return b
}

type CreateInput struct {
	ClientID    string
	CompanyID   string
	CardID      string
	Description string
}

type UpdateInput struct {
	ActorID string
	OrderID string
	Action  string
}

// CreateOrder reserves the card price from the client's balance and places the
// order, submitting it to the company in the same unit of work. Conflicts are
// retried like UpdateStatus.
func (s *Service) CreateOrder(ctx context.Context, in CreateInput) (domain.Order, error) {
	if in.CompanyID == "" || in.CardID == "" || len(in.Description) > MaxDescriptionLength {
		return domain.Order{}, fmt.Errorf("CreateOrder: %w", domain.ErrInvalidRequest)
	}

	var (
		order  domain.Order
		events []notification.Event
	)
	op := func() error {
		var opErr error
		order, events, opErr = s.createOnce(ctx, in)
		if opErr != nil && !errors.Is(opErr, domain.ErrConflict) {
			return backoff.Permanent(opErr)
		}
		return opErr
	}
	policy := backoff.WithContext(backoff.WithMaxRetries(s.backoff(), s.retries), ctx)
	if err := backoff.Retry(op, policy); err != nil {
		return domain.Order{}, fmt.Errorf("CreateOrder: %w", err)
	}

	notification.Dispatch(ctx, s.publisher, s.logger, events)
	return order, nil
}

func (s *Service) createOnce(ctx context.Context, in CreateInput) (domain.Order, []notification.Event, error) {
	var (
		order  domain.Order
		events []notification.Event
	)
	err := s.store.InTx(ctx, func(ctx context.Context, tx store.Tx) error {
		client, err := tx.GetAccount(ctx, in.ClientID)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				return domain.ErrForbidden
			}
			return err
		}
		if client.Role != domain.RoleClient {
			return domain.ErrForbidden
		}

		card, err := tx.GetCard(ctx, in.CardID)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				return fmt.Errorf("card %s: %w", in.CardID, domain.ErrCardNotFound)
			}
			return err
		}
		if card.CompanyID != in.CompanyID {
			return fmt.Errorf("card %s of %s: %w", in.CardID, in.CompanyID, domain.ErrCardNotFound)
		}

		orderID := uuid.New().String()
		reserved, err := s.escrow.ReserveTx(ctx, tx, orderID, in.ClientID, card.Price)
		if err != nil {
			return err
		}

		now := s.now()
		order = domain.Order{
			ID:            orderID,
			ClientID:      in.ClientID,
			CompanyID:     in.CompanyID,
			CardID:        in.CardID,
			Amount:        card.Price,
			Status:        domain.StatusCreated,
			PaymentStatus: domain.PaymentHeld,
			Description:   strings.TrimSpace(in.Description),
			Version:       1,
			CreatedAt:     now,
			UpdatedAt:     now,
		}
		if err := tx.InsertOrder(ctx, order); err != nil {
			return err
		}
		if err := tx.AppendTransition(ctx, s.transition(order.ID, "", domain.StatusCreated, ActionCreate, in.ClientID, domain.RoleClient)); err != nil {
			return err
		}

		submit, err := Next(order.Status, ActionSubmit, domain.RoleSystem)
		if err != nil {
			return err
		}
		order, err = s.apply(ctx, tx, order, submit, systemActorID)
		if err != nil {
			return err
		}

		events = append(events, s.orderEvent(order, in.ClientID))
		events = append(events, reserved.Events()...)
		return nil
	})
	if err != nil {
		return domain.Order{}, nil, err
	}
	return order, events, nil
}

// UpdateStatus applies a party's action to the order. Conflicting concurrent
// updates are retried against fresh state.
func (s *Service) UpdateStatus(ctx context.Context, in UpdateInput) (domain.Order, error) {
	action, err := ParseAction(in.Action)
	if err != nil {
		return domain.Order{}, fmt.Errorf("UpdateStatus: %w", err)
	}

	var (
		order  domain.Order
		events []notification.Event
	)
	op := func() error {
		var opErr error
		order, events, opErr = s.updateOnce(ctx, in.ActorID, in.OrderID, action)
		if opErr != nil && !errors.Is(opErr, domain.ErrConflict) {
			return backoff.Permanent(opErr)
		}
		return opErr
	}
	policy := backoff.WithContext(backoff.WithMaxRetries(s.backoff(), s.retries), ctx)
	if err := backoff.Retry(op, policy); err != nil {
		return domain.Order{}, fmt.Errorf("UpdateStatus: %w", err)
	}

	notification.Dispatch(ctx, s.publisher, s.logger, events)
	return order, nil
}

func (s *Service) updateOnce(ctx context.Context, actorID, orderID string, action Action) (domain.Order, []notification.Event, error) {
	var (
		order  domain.Order
		events []notification.Event
	)
	err := s.store.InTx(ctx, func(ctx context.Context, tx store.Tx) error {
		current, err := tx.GetOrder(ctx, orderID)
		if err != nil {
			return err
		}
		role, ok := current.PartyRole(actorID)
		if !ok {
			return domain.ErrForbidden
		}
		rule, err := Next(current.Status, action, role)
		if err != nil {
			return err
		}

		var moved escrow.Outcome
		switch rule.Effect {
		case EffectRefund:
			moved, err = s.escrow.RefundTx(ctx, tx, current.ID, current.ClientID)
		case EffectRelease:
			moved, err = s.escrow.ReleaseTx(ctx, tx, current.ID, current.CompanyID)
		}
		if err != nil {
			return err
		}

		order, err = s.apply(ctx, tx, current, rule, actorID)
		if err != nil {
			return err
		}
		events = append(events, s.orderEvent(order, actorID))
		events = append(events, moved.Events()...)
		return nil
	})
	return order, events, err
}

// apply persists one rule against order with a version check and records it in the history.
func (s *Service) apply(ctx context.Context, tx store.Tx, order domain.Order, rule Rule, actorID string) (domain.Order, error) {
	now := s.now()
	next := order
	next.Status = rule.To
	next.PaymentStatus = PaymentStatusAfter(order.PaymentStatus, rule.Effect)
	next.Version = order.Version + 1
	next.UpdatedAt = now
	if rule.To == domain.StatusCompleted {
		next.CompletedAt = &now
	}

	if err := tx.UpdateOrder(ctx, next, order.Version); err != nil {
		return domain.Order{}, err
	}
	if err := tx.AppendTransition(ctx, s.transition(order.ID, rule.From, rule.To, string(rule.Action), actorID, rule.By)); err != nil {
		return domain.Order{}, err
	}
	return next, nil
}

func (s *Service) transition(orderID string, from, to domain.Status, action, actorID string, role domain.Role) domain.Transition {
	return domain.Transition{
		ID:        uuid.New().String(),
		OrderID:   orderID,
		From:      from,
		To:        to,
		Action:    action,
		ActorID:   actorID,
		ActorRole: role,
		At:        s.now(),
	}
}

func (s *Service) orderEvent(order domain.Order, actorID string) notification.Event {
	eventType, _ := notification.OrderEventType(order.Status)
	return notification.Event{
		Type:       eventType,
		OrderID:    order.ID,
		AccountID:  actorID,
		Status:     string(order.Status),
		Amount:     order.Amount,
		OccurredAt: order.UpdatedAt,
	}
}

// PutCard publishes or reprices a company's card. Existing orders keep their snapshot.
func (s *Service) PutCard(ctx context.Context, companyID, cardID string, price int64) (domain.Card, error) {
	if strings.TrimSpace(cardID) == "" {
		return domain.Card{}, fmt.Errorf("PutCard: %w", domain.ErrInvalidRequest)
	}
	if price <= 0 || price > domain.MaxBalance {
		return domain.Card{}, fmt.Errorf("PutCard: %w", domain.ErrInvalidAmount)
	}

	var card domain.Card
	err := s.store.InTx(ctx, func(ctx context.Context, tx store.Tx) error {
		company, err := tx.GetAccount(ctx, companyID)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				return domain.ErrForbidden
			}
			return err
		}
		if company.Role != domain.RoleCompany {
			return domain.ErrForbidden
		}

		existing, err := tx.GetCard(ctx, cardID)
		switch {
		case err == nil && existing.CompanyID != companyID:
			return domain.ErrForbidden
		case err != nil && !errors.Is(err, domain.ErrNotFound):
			return err
		}

		card = domain.Card{ID: cardID, CompanyID: companyID, Price: price, UpdatedAt: s.now()}
		return tx.UpsertCard(ctx, card)
	})
	if err != nil {
		return domain.Card{}, fmt.Errorf("PutCard: %w", err)
	}
	return card, nil
}

// History returns the order's applied transitions, oldest first, to either party.
func (s *Service) History(ctx context.Context, actorID, orderID string) ([]domain.Transition, error) {
	order, err := s.store.GetOrder(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("History: %w", err)
	}
	if _, ok := order.PartyRole(actorID); !ok {
		return nil, fmt.Errorf("History: %w", domain.ErrForbidden)
	}
	transitions, err := s.store.ListTransitions(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("History: %w", err)
	}
	return transitions, nil
}
