package ledger

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/congo-pay/escrow_engine/internal/domain"
	"github.com/congo-pay/escrow_engine/internal/notification"
	"github.com/congo-pay/escrow_engine/internal/store"
)

// TransactionPage is one page of an account's log, newest first.
type TransactionPage struct {
	Transactions []domain.Transaction
	Total        int
	Limit        int
	Offset       int
}

// Service owns account balances. Every balance change is paired with an
// appended Transaction inside the same unit of work.
type Service struct {
	store     store.Store
	publisher notification.Publisher
	logger    *slog.Logger
	now       func() time.Time
}

// NewService builds the ledger on top of the given store.
func NewService(st store.Store, publisher notification.Publisher, logger *slog.Logger) *Service {
	return &Service{store: st, publisher: publisher, logger: logger, now: func() time.Time { return time.Now().UTC() }}
}

// EnsureAccount opens an account on first use. An existing account registered
// under another role yields ErrForbidden.
func (s *Service) EnsureAccount(ctx context.Context, id string, role domain.Role) (domain.Account, error) {
	if id == "" || !role.Valid() {
		return domain.Account{}, fmt.Errorf("EnsureAccount: %w", domain.ErrInvalidRequest)
	}

	var acct domain.Account
	err := s.store.InTx(ctx, func(ctx context.Context, tx store.Tx) error {
		now := s.now()
		var err error
		acct, err = tx.EnsureAccount(ctx, domain.Account{ID: id, Role: role, Version: 1, CreatedAt: now, UpdatedAt: now})
		return err
	})
	if err != nil {
		return domain.Account{}, fmt.Errorf("EnsureAccount: %w", err)
	}
	if acct.Role != role {
		return domain.Account{}, fmt.Errorf("EnsureAccount %s as %s: %w", id, role, domain.ErrForbidden)
	}
	return acct, nil
}

func (s *Service) GetBalance(ctx context.Context, id string) (int64, error) {
	acct, err := s.store.GetAccount(ctx, id)
	if err != nil {
		return 0, fmt.Errorf("GetBalance: %w", err)
	}
	return acct.Balance, nil
}

// Credit adds amount to the account. kind must be deposit, release or refund.
func (s *Service) Credit(ctx context.Context, id string, amount int64, kind domain.TxKind) (int64, error) {
	var txn domain.Transaction
	err := s.store.InTx(ctx, func(ctx context.Context, tx store.Tx) error {
		var err error
		txn, err = s.CreditTx(ctx, tx, id, amount, kind, "")
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("Credit: %w", err)
	}
	notification.Dispatch(ctx, s.publisher, s.logger, []notification.Event{BalanceChanged(txn)})
	return txn.ResultingBalance, nil
}

// Debit removes amount from the account. kind must be withdraw or hold.
func (s *Service) Debit(ctx context.Context, id string, amount int64, kind domain.TxKind) (int64, error) {
	var txn domain.Transaction
	err := s.store.InTx(ctx, func(ctx context.Context, tx store.Tx) error {
		var err error
		txn, err = s.DebitTx(ctx, tx, id, amount, kind, "")
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("Debit: %w", err)
	}
	notification.Dispatch(ctx, s.publisher, s.logger, []notification.Event{BalanceChanged(txn)})
	return txn.ResultingBalance, nil
}

// Deposit records an external top-up.
func (s *Service) Deposit(ctx context.Context, id string, amount int64) (int64, error) {
	return s.Credit(ctx, id, amount, domain.TxDeposit)
}

// Withdraw records an external payout.
func (s *Service) Withdraw(ctx context.Context, id string, amount int64) (int64, error) {
	return s.Debit(ctx, id, amount, domain.TxWithdraw)
}

// CreditTx posts a credit inside the caller's unit of work.
func (s *Service) CreditTx(ctx context.Context, tx store.Tx, id string, amount int64, kind domain.TxKind, reference string) (domain.Transaction, error) {
	if amount <= 0 || amount > domain.MaxBalance {
		return domain.Transaction{}, domain.ErrInvalidAmount
	}
	if !kind.IsCredit() {
		return domain.Transaction{}, fmt.Errorf("credit kind %q: %w", kind, domain.ErrInvalidRequest)
	}
	return s.post(ctx, tx, id, amount, kind, reference)
}

// DebitTx posts a debit inside the caller's unit of work. The balance check
// runs under the account row lock.
func (s *Service) DebitTx(ctx context.Context, tx store.Tx, id string, amount int64, kind domain.TxKind, reference string) (domain.Transaction, error) {
	if amount <= 0 || amount > domain.MaxBalance {
		return domain.Transaction{}, domain.ErrInvalidAmount
	}
	if !kind.IsDebit() {
		return domain.Transaction{}, fmt.Errorf("debit kind %q: %w", kind, domain.ErrInvalidRequest)
	}
	return s.post(ctx, tx, id, -amount, kind, reference)
}

func (s *Service) post(ctx context.Context, tx store.Tx, id string, delta int64, kind domain.TxKind, reference string) (domain.Transaction, error) {
	acct, err := tx.LockAccount(ctx, id)
	if err != nil {
		return domain.Transaction{}, err
	}
	if delta > 0 && acct.Balance > domain.MaxBalance-delta {
		return domain.Transaction{}, fmt.Errorf("account %s has %d, credit of %d exceeds %d: %w", id, acct.Balance, delta, domain.MaxBalance, domain.ErrInvalidAmount)
	}
	if acct.Balance+delta < 0 {
		return domain.Transaction{}, fmt.Errorf("account %s has %d, needs %d: %w", id, acct.Balance, -delta, domain.ErrInsufficientFunds)
	}

	now := s.now()
	acct.Balance += delta
	acct.Version++
	acct.UpdatedAt = now
	if err := tx.UpdateAccount(ctx, acct); err != nil {
		return domain.Transaction{}, err
	}

	amount := delta
	if amount < 0 {
		amount = -amount
	}
	txn := domain.Transaction{
		ID:               uuid.New().String(),
		AccountID:        id,
		Kind:             kind,
		Amount:           amount,
		ResultingBalance: acct.Balance,
		Status:           domain.TxStatusCompleted,
		Reference:        reference,
		CreatedAt:        now,
	}
	if err := tx.AppendTransaction(ctx, txn); err != nil {
		return domain.Transaction{}, err
	}
	return txn, nil
}

// ListTransactions pages through the account's log, newest first.
func (s *Service) ListTransactions(ctx context.Context, id string, limit, offset int) (TransactionPage, error) {
	if _, err := s.store.GetAccount(ctx, id); err != nil {
		return TransactionPage{}, fmt.Errorf("ListTransactions: %w", err)
	}
	limit, offset = store.NormalizePage(limit, offset)

	txns, total, err := s.store.ListTransactions(ctx, id, limit, offset)
	if err != nil {
		return TransactionPage{}, fmt.Errorf("ListTransactions: %w", err)
	}
	return TransactionPage{Transactions: txns, Total: total, Limit: limit, Offset: offset}, nil
}

// BalanceChanged builds the event announcing a committed posting.
func BalanceChanged(txn domain.Transaction) notification.Event {
	return notification.Event{
		Type:       notification.TypeBalanceChanged,
		OrderID:    txn.Reference,
		AccountID:  txn.AccountID,
		Amount:     txn.Amount,
		Balance:    txn.ResultingBalance,
		OccurredAt: txn.CreatedAt,
	}
}
