package escrow

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/congo-pay/escrow_engine/internal/domain"
	"github.com/congo-pay/escrow_engine/internal/ledger"
	"github.com/congo-pay/escrow_engine/internal/notification"
	"github.com/congo-pay/escrow_engine/internal/store"
)

// Outcome reports what an escrow operation did. Applied is false when the hold
// had already left the held state and nothing moved.
type Outcome struct {
	Hold        domain.EscrowHold
	Applied     bool
	Transaction domain.Transaction
}

// Events returns the balance event for moved funds, if any.
func (o Outcome) Events() []notification.Event {
	if !o.Applied {
		return nil
	}
	return []notification.Event{ledger.BalanceChanged(o.Transaction)}
}

// Manager moves order money between a client's balance, the hold, and the
// company's balance. The Tx forms run inside the caller's unit of work.
type Manager struct {
	store     store.Store
	ledger    *ledger.Service
	publisher notification.Publisher
	logger    *slog.Logger
	now       func() time.Time
}

func NewManager(st store.Store, l *ledger.Service, publisher notification.Publisher, logger *slog.Logger) *Manager {
	return &Manager{store: st, ledger: l, publisher: publisher, logger: logger, now: func() time.Time { return time.Now().UTC() }}
}

// ReserveTx debits the client and opens a held hold for the order. On debit
// failure no hold is written.
func (m *Manager) ReserveTx(ctx context.Context, tx store.Tx, orderID, clientID string, amount int64) (Outcome, error) {
	txn, err := m.ledger.DebitTx(ctx, tx, clientID, amount, domain.TxHold, orderID)
	if err != nil {
		return Outcome{}, fmt.Errorf("reserve %s: %w", orderID, err)
	}

	now := m.now()
	hold := domain.EscrowHold{
		OrderID:   orderID,
		ClientID:  clientID,
		Amount:    amount,
		State:     domain.HoldHeld,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := tx.InsertHold(ctx, hold); err != nil {
		return Outcome{}, fmt.Errorf("reserve %s: %w", orderID, err)
	}
	return Outcome{Hold: hold, Applied: true, Transaction: txn}, nil
}

// ReleaseTx pays a held hold out to the company. A hold that is no longer held is left untouched.
func (m *Manager) ReleaseTx(ctx context.Context, tx store.Tx, orderID, companyID string) (Outcome, error) {
	return m.settle(ctx, tx, orderID, domain.HoldReleased, companyID, domain.TxRelease)
}

// RefundTx returns a held hold to its client. A hold that is no longer held is
// left untouched; a client that does not own the hold is refused.
func (m *Manager) RefundTx(ctx context.Context, tx store.Tx, orderID, clientID string) (Outcome, error) {
	hold, err := tx.LockHold(ctx, orderID)
	if err != nil {
		return Outcome{}, fmt.Errorf("refund %s: %w", orderID, err)
	}
	if hold.ClientID != clientID {
		return Outcome{}, fmt.Errorf("refund %s to %s: %w", orderID, clientID, domain.ErrForbidden)
	}
	return m.settle(ctx, tx, orderID, domain.HoldRefunded, clientID, domain.TxRefund)
}

func (m *Manager) settle(ctx context.Context, tx store.Tx, orderID string, to domain.HoldState, beneficiary string, kind domain.TxKind) (Outcome, error) {
	hold, err := tx.LockHold(ctx, orderID)
	if err != nil {
		return Outcome{}, fmt.Errorf("%s %s: %w", kind, orderID, err)
	}
	if hold.State != domain.HoldHeld {
		return Outcome{Hold: hold}, nil
	}

	hold.State = to
	hold.UpdatedAt = m.now()
	if err := tx.UpdateHold(ctx, hold); err != nil {
		return Outcome{}, fmt.Errorf("%s %s: %w", kind, orderID, err)
	}
	txn, err := m.ledger.CreditTx(ctx, tx, beneficiary, hold.Amount, kind, orderID)
	if err != nil {
		return Outcome{}, fmt.Errorf("%s %s: %w", kind, orderID, err)
	}
	return Outcome{Hold: hold, Applied: true, Transaction: txn}, nil
}

// Release runs ReleaseTx in its own unit of work.
func (m *Manager) Release(ctx context.Context, orderID, companyID string) (Outcome, error) {
	return m.run(ctx, func(ctx context.Context, tx store.Tx) (Outcome, error) {
		return m.ReleaseTx(ctx, tx, orderID, companyID)
	})
}

// Refund runs RefundTx in its own unit of work.
func (m *Manager) Refund(ctx context.Context, orderID, clientID string) (Outcome, error) {
	return m.run(ctx, func(ctx context.Context, tx store.Tx) (Outcome, error) {
		return m.RefundTx(ctx, tx, orderID, clientID)
	})
}

func (m *Manager) run(ctx context.Context, fn func(ctx context.Context, tx store.Tx) (Outcome, error)) (Outcome, error) {
	var out Outcome
	err := m.store.InTx(ctx, func(ctx context.Context, tx store.Tx) error {
		var err error
		out, err = fn(ctx, tx)
		return err
	})
	if err != nil {
		return Outcome{}, err
	}
	notification.Dispatch(ctx, m.publisher, m.logger, out.Events())
	return out, nil
}
