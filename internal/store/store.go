package store

import (
	"context"

	"github.com/congo-pay/escrow_engine/internal/domain"
)

// OrderFilter scopes an order listing to the orders where AccountID is a
// party. An empty Status matches every status.
type OrderFilter struct {
	AccountID string
	Status    domain.Status
	Limit     int
	Offset    int
}

// Totals aggregates the whole ledger for reconciliation.
type Totals struct {
	Balances    int64
	Held        int64
	Deposits    int64
	Withdrawals int64
}

// RatingSummary aggregates every review a company received.
type RatingSummary struct {
	Count   int
	Average float64
}

// Reader exposes the read side. Reads outside a unit of work see committed data only.
type Reader interface {
	GetAccount(ctx context.Context, id string) (domain.Account, error)
	ListTransactions(ctx context.Context, accountID string, limit, offset int) ([]domain.Transaction, int, error)
	GetOrder(ctx context.Context, id string) (domain.Order, error)
	ListOrders(ctx context.Context, filter OrderFilter) ([]domain.Order, int, error)
	ListTransitions(ctx context.Context, orderID string) ([]domain.Transition, error)
	GetHold(ctx context.Context, orderID string) (domain.EscrowHold, error)
	GetReview(ctx context.Context, orderID string) (domain.Review, error)
	ListReviews(ctx context.Context, companyID string, limit, offset int) ([]domain.Review, int, error)
	RatingSummary(ctx context.Context, companyID string) (RatingSummary, error)
	GetCard(ctx context.Context, id string) (domain.Card, error)
	Totals(ctx context.Context) (Totals, error)
}

// Tx is a unit of work over every engine table.
type Tx interface {
	Reader

	// EnsureAccount inserts the account when missing and returns the stored row.
	EnsureAccount(ctx context.Context, account domain.Account) (domain.Account, error)
	// LockAccount reads the account and holds its row lock until the unit of work ends.
	LockAccount(ctx context.Context, id string) (domain.Account, error)
	// UpdateAccount persists account when the stored version is account.Version-1.
	UpdateAccount(ctx context.Context, account domain.Account) error
	AppendTransaction(ctx context.Context, txn domain.Transaction) error

	InsertHold(ctx context.Context, hold domain.EscrowHold) error
	LockHold(ctx context.Context, orderID string) (domain.EscrowHold, error)
	UpdateHold(ctx context.Context, hold domain.EscrowHold) error

	InsertOrder(ctx context.Context, order domain.Order) error
	// UpdateOrder persists order when the stored version equals prevVersion.
	UpdateOrder(ctx context.Context, order domain.Order, prevVersion int64) error
	AppendTransition(ctx context.Context, t domain.Transition) error

	InsertReview(ctx context.Context, review domain.Review) error
	UpsertCard(ctx context.Context, card domain.Card) error
}

// Store runs units of work. When fn returns an error, or ctx is done before
// commit, none of fn's writes are kept.
type Store interface {
	Reader
	InTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
}

const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

// NormalizePage applies the default and maximum page sizes to a listing request.
func NormalizePage(limit, offset int) (int, int) {
	switch {
	case limit <= 0:
		limit = DefaultPageSize
	case limit > MaxPageSize:
		limit = MaxPageSize
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}

func clampPage(limit, offset, total int) (int, int) {
	if offset < 0 {
		offset = 0
	}
	if offset > total {
		offset = total
	}
	end := total
	if limit > 0 && offset+limit < total {
		end = offset + limit
	}
	return offset, end
}
