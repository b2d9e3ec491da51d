package ledger

import (
	"context"
	"math"
	"math/rand"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/congo-pay/escrow_engine/internal/domain"
	"github.com/congo-pay/escrow_engine/internal/logging"
	"github.com/congo-pay/escrow_engine/internal/notification"
	"github.com/congo-pay/escrow_engine/internal/store"
)

type recordingPublisher struct {
	mu     sync.Mutex
	events []notification.Event
}

func (p *recordingPublisher) Publish(_ context.Context, events ...notification.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, events...)
	return nil
}

func newTestService(t *testing.T) (*Service, *store.Memory, *recordingPublisher) {
	t.Helper()
	st := store.NewMemory()
	pub := &recordingPublisher{}
	return NewService(st, pub, logging.Discard()), st, pub
}

func TestEnsureAccount(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	acct, err := svc.EnsureAccount(ctx, "client-1", domain.RoleClient)
	require.NoError(t, err)
	assert.Equal(t, domain.RoleClient, acct.Role)
	assert.Zero(t, acct.Balance)

	again, err := svc.EnsureAccount(ctx, "client-1", domain.RoleClient)
	require.NoError(t, err)
	assert.Equal(t, acct.Version, again.Version)

	_, err = svc.EnsureAccount(ctx, "client-1", domain.RoleCompany)
	assert.ErrorIs(t, err, domain.ErrForbidden)

	_, err = svc.EnsureAccount(ctx, "x", domain.RoleSystem)
	assert.ErrorIs(t, err, domain.ErrInvalidRequest)
}

func TestCreditDebit(t *testing.T) {
	svc, _, pub := newTestService(t)
	ctx := context.Background()
	_, err := svc.EnsureAccount(ctx, "client-1", domain.RoleClient)
	require.NoError(t, err)

	balance, err := svc.Deposit(ctx, "client-1", 1_000)
	require.NoError(t, err)
	assert.Equal(t, int64(1_000), balance)

	balance, err = svc.Debit(ctx, "client-1", 400, domain.TxHold)
	require.NoError(t, err)
	assert.Equal(t, int64(600), balance)

	_, err = svc.Withdraw(ctx, "client-1", 601)
	assert.ErrorIs(t, err, domain.ErrInsufficientFunds)

	balance, err = svc.GetBalance(ctx, "client-1")
	require.NoError(t, err)
	assert.Equal(t, int64(600), balance)

	require.Len(t, pub.events, 2)
	assert.Equal(t, notification.TypeBalanceChanged, pub.events[1].Type)
	assert.Equal(t, int64(600), pub.events[1].Balance)
}

func TestCreditDebit_Validation(t *testing.T) {
	svc, _, pub := newTestService(t)
	ctx := context.Background()
	_, err := svc.EnsureAccount(ctx, "client-1", domain.RoleClient)
	require.NoError(t, err)

	tests := []struct {
		name    string
		op      func() (int64, error)
		wantErr error
	}{
		{"zero credit", func() (int64, error) { return svc.Credit(ctx, "client-1", 0, domain.TxDeposit) }, domain.ErrInvalidAmount},
		{"negative debit", func() (int64, error) { return svc.Debit(ctx, "client-1", -5, domain.TxWithdraw) }, domain.ErrInvalidAmount},
		{"debit kind on credit", func() (int64, error) { return svc.Credit(ctx, "client-1", 5, domain.TxHold) }, domain.ErrInvalidRequest},
		{"credit kind on debit", func() (int64, error) { return svc.Debit(ctx, "client-1", 5, domain.TxRefund) }, domain.ErrInvalidRequest},
		{"unknown account", func() (int64, error) { return svc.Deposit(ctx, "ghost", 5) }, domain.ErrNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.op()
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
	assert.Empty(t, pub.events)
}

func TestCredit_BalanceCeiling(t *testing.T) {
	svc, st, _ := newTestService(t)
	ctx := context.Background()
	for _, id := range []string{"a", "b"} {
		_, err := svc.EnsureAccount(ctx, id, domain.RoleClient)
		require.NoError(t, err)
	}

	balance, err := svc.Deposit(ctx, "a", domain.MaxBalance)
	require.NoError(t, err)
	assert.Equal(t, domain.MaxBalance, balance)

	_, err = svc.Deposit(ctx, "a", 1)
	assert.ErrorIs(t, err, domain.ErrInvalidAmount)
	assert.NotErrorIs(t, err, domain.ErrInsufficientFunds)

	_, err = svc.Deposit(ctx, "b", math.MaxInt64)
	assert.ErrorIs(t, err, domain.ErrInvalidAmount)
	_, err = svc.Withdraw(ctx, "a", math.MaxInt64)
	assert.ErrorIs(t, err, domain.ErrInvalidAmount)

	_, err = svc.Deposit(ctx, "b", domain.MaxBalance)
	require.NoError(t, err)

	balance, err = svc.GetBalance(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, domain.MaxBalance, balance)

	report, err := NewReconciler(st, logging.Discard(), 0).Check(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2*domain.MaxBalance, report.Balances)
	assert.Equal(t, 2*domain.MaxBalance, report.Deposits)
	assert.Zero(t, report.Drift)
}

func TestListTransactions(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()
	_, err := svc.EnsureAccount(ctx, "client-1", domain.RoleClient)
	require.NoError(t, err)

	for i := int64(1); i <= 3; i++ {
		_, err := svc.Deposit(ctx, "client-1", i*100)
		require.NoError(t, err)
	}

	page, err := svc.ListTransactions(ctx, "client-1", 2, 0)
	require.NoError(t, err)
	assert.Equal(t, 3, page.Total)
	require.Len(t, page.Transactions, 2)
	assert.Equal(t, int64(300), page.Transactions[0].Amount)
	assert.Equal(t, int64(600), page.Transactions[0].ResultingBalance)
	assert.Equal(t, int64(200), page.Transactions[1].Amount)

	page, err = svc.ListTransactions(ctx, "client-1", 0, -1)
	require.NoError(t, err)
	assert.Equal(t, store.DefaultPageSize, page.Limit)
	assert.Equal(t, 0, page.Offset)
	assert.Len(t, page.Transactions, 3)

	_, err = svc.ListTransactions(ctx, "ghost", 10, 0)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestConcurrentDebits_NeverOverdraw(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()
	_, err := svc.EnsureAccount(ctx, "client-1", domain.RoleClient)
	require.NoError(t, err)
	_, err = svc.Deposit(ctx, "client-1", 1_000)
	require.NoError(t, err)

	const workers = 10
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		applied int
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := svc.Withdraw(ctx, "client-1", 300); err == nil {
				mu.Lock()
				applied++
				mu.Unlock()
			} else {
				assert.ErrorIs(t, err, domain.ErrInsufficientFunds)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 3, applied)
	balance, err := svc.GetBalance(ctx, "client-1")
	require.NoError(t, err)
	assert.Equal(t, int64(100), balance)
}

func TestRandomPostings_BooksBalance(t *testing.T) {
	svc, st, _ := newTestService(t)
	ctx := context.Background()
	rng := rand.New(rand.NewSource(42))
	accounts := []string{"a", "b", "c"}
	for _, id := range accounts {
		_, err := svc.EnsureAccount(ctx, id, domain.RoleClient)
		require.NoError(t, err)
	}

	for i := 0; i < 500; i++ {
		id := accounts[rng.Intn(len(accounts))]
		amount := rng.Int63n(200) - 20
		if rng.Intn(2) == 0 {
			_, _ = svc.Deposit(ctx, id, amount)
		} else {
			_, _ = svc.Withdraw(ctx, id, amount)
		}

		for _, acct := range accounts {
			balance, err := svc.GetBalance(ctx, acct)
			require.NoError(t, err)
			require.GreaterOrEqual(t, balance, int64(0))
		}
	}

	report, err := NewReconciler(st, logging.Discard(), 0).Check(ctx)
	require.NoError(t, err)
	assert.Zero(t, report.Drift)
	assert.Equal(t, report.Deposits-report.Withdrawals, report.Balances)
}
