package store

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/congo-pay/escrow_engine/internal/domain"
)

// Memory is a concurrency-safe in-memory Store. Units of work are fully
// serialized and undone from a journal on failure.
type Memory struct {
	mu    sync.RWMutex
	state memState
}

type memState struct {
	accounts    map[string]domain.Account
	txns        map[string][]domain.Transaction
	orders      map[string]domain.Order
	orderSeq    map[string]int64
	seq         int64
	transitions map[string][]domain.Transition
	holds       map[string]domain.EscrowHold
	reviews     map[string]domain.Review
	cards       map[string]domain.Card
}

// NewMemory creates an empty in-memory store useful for unit tests and local development.
func NewMemory() *Memory {
	return &Memory{state: memState{
		accounts:    make(map[string]domain.Account),
		txns:        make(map[string][]domain.Transaction),
		orders:      make(map[string]domain.Order),
		orderSeq:    make(map[string]int64),
		transitions: make(map[string][]domain.Transition),
		holds:       make(map[string]domain.EscrowHold),
		reviews:     make(map[string]domain.Review),
		cards:       make(map[string]domain.Card),
	}}
}

// InTx runs fn while holding the store's write lock.
func (m *Memory) InTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	tx := &memTx{st: &m.state}
	if err := fn(ctx, tx); err != nil {
		tx.rollback()
		return err
	}
	if err := ctx.Err(); err != nil {
		tx.rollback()
		return err
	}
	return nil
}

func (m *Memory) GetAccount(_ context.Context, id string) (domain.Account, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state.getAccount(id)
}

func (m *Memory) ListTransactions(_ context.Context, accountID string, limit, offset int) ([]domain.Transaction, int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	txns, total := m.state.listTransactions(accountID, limit, offset)
	return txns, total, nil
}

func (m *Memory) GetOrder(_ context.Context, id string) (domain.Order, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state.getOrder(id)
}

func (m *Memory) ListOrders(_ context.Context, filter OrderFilter) ([]domain.Order, int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	orders, total := m.state.listOrders(filter)
	return orders, total, nil
}

func (m *Memory) ListTransitions(_ context.Context, orderID string) ([]domain.Transition, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state.listTransitions(orderID), nil
}

func (m *Memory) GetHold(_ context.Context, orderID string) (domain.EscrowHold, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state.getHold(orderID)
}

func (m *Memory) GetReview(_ context.Context, orderID string) (domain.Review, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state.getReview(orderID)
}

func (m *Memory) ListReviews(_ context.Context, companyID string, limit, offset int) ([]domain.Review, int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	reviews, total := m.state.listReviews(companyID, limit, offset)
	return reviews, total, nil
}

func (m *Memory) RatingSummary(_ context.Context, companyID string) (RatingSummary, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state.ratingSummary(companyID), nil
}

func (m *Memory) GetCard(_ context.Context, id string) (domain.Card, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state.getCard(id)
}

func (m *Memory) Totals(_ context.Context) (Totals, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state.totals(), nil
}

func (s *memState) getAccount(id string) (domain.Account, error) {
	acct, ok := s.accounts[id]
	if !ok {
		return domain.Account{}, fmt.Errorf("GetAccount %s: %w", id, domain.ErrNotFound)
	}
	return acct, nil
}

func (s *memState) listTransactions(accountID string, limit, offset int) ([]domain.Transaction, int) {
	all := s.txns[accountID]
	total := len(all)
	start, end := clampPage(limit, offset, total)
	out := make([]domain.Transaction, 0, end-start)
	// stored oldest first, served newest first
	for i := total - 1 - start; i >= total-end; i-- {
		out = append(out, all[i])
	}
	return out, total
}

func (s *memState) getOrder(id string) (domain.Order, error) {
	o, ok := s.orders[id]
	if !ok {
		return domain.Order{}, fmt.Errorf("GetOrder %s: %w", id, domain.ErrNotFound)
	}
	return o, nil
}

func (s *memState) listOrders(filter OrderFilter) ([]domain.Order, int) {
	var matched []domain.Order
	for _, o := range s.orders {
		if o.ClientID != filter.AccountID && o.CompanyID != filter.AccountID {
			continue
		}
		if filter.Status != "" && o.Status != filter.Status {
			continue
		}
		matched = append(matched, o)
	}
	sort.Slice(matched, func(i, j int) bool {
		return s.orderSeq[matched[i].ID] > s.orderSeq[matched[j].ID]
	})
	start, end := clampPage(filter.Limit, filter.Offset, len(matched))
	return append([]domain.Order(nil), matched[start:end]...), len(matched)
}

func (s *memState) listTransitions(orderID string) []domain.Transition {
	return append([]domain.Transition(nil), s.transitions[orderID]...)
}

func (s *memState) getHold(orderID string) (domain.EscrowHold, error) {
	h, ok := s.holds[orderID]
	if !ok {
		return domain.EscrowHold{}, fmt.Errorf("GetHold %s: %w", orderID, domain.ErrNotFound)
	}
	return h, nil
}

func (s *memState) getReview(orderID string) (domain.Review, error) {
	r, ok := s.reviews[orderID]
	if !ok {
		return domain.Review{}, fmt.Errorf("GetReview %s: %w", orderID, domain.ErrNotFound)
	}
	return r, nil
}

func (s *memState) listReviews(companyID string, limit, offset int) ([]domain.Review, int) {
	var matched []domain.Review
	for _, r := range s.reviews {
		if r.CompanyID == companyID {
			matched = append(matched, r)
		}
	}
	sort.Slice(matched, func(i, j int) bool {
		if matched[i].CreatedAt.Equal(matched[j].CreatedAt) {
			return matched[i].ID > matched[j].ID
		}
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})
	start, end := clampPage(limit, offset, len(matched))
	return append([]domain.Review(nil), matched[start:end]...), len(matched)
}

func (s *memState) ratingSummary(companyID string) RatingSummary {
	var (
		out RatingSummary
		sum int
	)
	for _, r := range s.reviews {
		if r.CompanyID == companyID {
			out.Count++
			sum += r.Rating
		}
	}
	if out.Count > 0 {
		out.Average = float64(sum) / float64(out.Count)
	}
	return out
}

func (s *memState) getCard(id string) (domain.Card, error) {
	c, ok := s.cards[id]
	if !ok {
		return domain.Card{}, fmt.Errorf("GetCard %s: %w", id, domain.ErrNotFound)
	}
	return c, nil
}

func (s *memState) totals() Totals {
	var t Totals
	for _, a := range s.accounts {
		t.Balances += a.Balance
	}
	for _, h := range s.holds {
		if h.State == domain.HoldHeld {
			t.Held += h.Amount
		}
	}
	for _, txns := range s.txns {
		for _, txn := range txns {
			switch txn.Kind {
			case domain.TxDeposit:
				t.Deposits += txn.Amount
			case domain.TxWithdraw:
				t.Withdrawals += txn.Amount
			}
		}
	}
	return t
}

type memTx struct {
	st   *memState
	undo []func()
}

func (t *memTx) rollback() {
	for i := len(t.undo) - 1; i >= 0; i-- {
		t.undo[i]()
	}
	t.undo = nil
}

func (t *memTx) GetAccount(_ context.Context, id string) (domain.Account, error) {
	return t.st.getAccount(id)
}

func (t *memTx) ListTransactions(_ context.Context, accountID string, limit, offset int) ([]domain.Transaction, int, error) {
	txns, total := t.st.listTransactions(accountID, limit, offset)
	return txns, total, nil
}

func (t *memTx) GetOrder(_ context.Context, id string) (domain.Order, error) {
	return t.st.getOrder(id)
}

func (t *memTx) ListOrders(_ context.Context, filter OrderFilter) ([]domain.Order, int, error) {
	orders, total := t.st.listOrders(filter)
	return orders, total, nil
}

func (t *memTx) ListTransitions(_ context.Context, orderID string) ([]domain.Transition, error) {
	return t.st.listTransitions(orderID), nil
}

func (t *memTx) GetHold(_ context.Context, orderID string) (domain.EscrowHold, error) {
	return t.st.getHold(orderID)
}

func (t *memTx) GetReview(_ context.Context, orderID string) (domain.Review, error) {
	return t.st.getReview(orderID)
}

func (t *memTx) ListReviews(_ context.Context, companyID string, limit, offset int) ([]domain.Review, int, error) {
	reviews, total := t.st.listReviews(companyID, limit, offset)
	return reviews, total, nil
}

func (t *memTx) RatingSummary(_ context.Context, companyID string) (RatingSummary, error) {
	return t.st.ratingSummary(companyID), nil
}

func (t *memTx) GetCard(_ context.Context, id string) (domain.Card, error) {
	return t.st.getCard(id)
}

func (t *memTx) Totals(_ context.Context) (Totals, error) {
	return t.st.totals(), nil
}

func (t *memTx) EnsureAccount(_ context.Context, account domain.Account) (domain.Account, error) {
	if existing, ok := t.st.accounts[account.ID]; ok {
		return existing, nil
	}
	if account.Version == 0 {
		account.Version = 1
	}
	t.st.accounts[account.ID] = account
	t.undo = append(t.undo, func() { delete(t.st.accounts, account.ID) })
	return account, nil
}

func (t *memTx) LockAccount(_ context.Context, id string) (domain.Account, error) {
	return t.st.getAccount(id)
}

func (t *memTx) UpdateAccount(_ context.Context, account domain.Account) error {
	prev, ok := t.st.accounts[account.ID]
	if !ok {
		return fmt.Errorf("UpdateAccount %s: %w", account.ID, domain.ErrNotFound)
	}
	if prev.Version != account.Version-1 {
		return fmt.Errorf("UpdateAccount %s: %w", account.ID, domain.ErrConflict)
	}
	t.st.accounts[account.ID] = account
	t.undo = append(t.undo, func() { t.st.accounts[account.ID] = prev })
	return nil
}

func (t *memTx) AppendTransaction(_ context.Context, txn domain.Transaction) error {
	n := len(t.st.txns[txn.AccountID])
	t.st.txns[txn.AccountID] = append(t.st.txns[txn.AccountID], txn)
	t.undo = append(t.undo, func() { t.st.txns[txn.AccountID] = t.st.txns[txn.AccountID][:n] })
	return nil
}

func (t *memTx) InsertHold(_ context.Context, hold domain.EscrowHold) error {
	if _, exists := t.st.holds[hold.OrderID]; exists {
		return fmt.Errorf("InsertHold %s: %w", hold.OrderID, domain.ErrConflict)
	}
	t.st.holds[hold.OrderID] = hold
	t.undo = append(t.undo, func() { delete(t.st.holds, hold.OrderID) })
	return nil
}

func (t *memTx) LockHold(_ context.Context, orderID string) (domain.EscrowHold, error) {
	return t.st.getHold(orderID)
}

func (t *memTx) UpdateHold(_ context.Context, hold domain.EscrowHold) error {
	prev, ok := t.st.holds[hold.OrderID]
	if !ok {
		return fmt.Errorf("UpdateHold %s: %w", hold.OrderID, domain.ErrNotFound)
	}
	t.st.holds[hold.OrderID] = hold
	t.undo = append(t.undo, func() { t.st.holds[hold.OrderID] = prev })
	return nil
}

func (t *memTx) InsertOrder(_ context.Context, order domain.Order) error {
	if _, exists := t.st.orders[order.ID]; exists {
		return fmt.Errorf("InsertOrder %s: %w", order.ID, domain.ErrConflict)
	}
	t.st.seq++
	t.st.orders[order.ID] = order
	t.st.orderSeq[order.ID] = t.st.seq
	t.undo = append(t.undo, func() {
		delete(t.st.orders, order.ID)
		delete(t.st.orderSeq, order.ID)
	})
	return nil
}

func (t *memTx) UpdateOrder(_ context.Context, order domain.Order, prevVersion int64) error {
	prev, ok := t.st.orders[order.ID]
	if !ok {
		return fmt.Errorf("UpdateOrder %s: %w", order.ID, domain.ErrNotFound)
	}
	if prev.Version != prevVersion {
		return fmt.Errorf("UpdateOrder %s: %w", order.ID, domain.ErrConflict)
	}
	t.st.orders[order.ID] = order
	t.undo = append(t.undo, func() { t.st.orders[order.ID] = prev })
	return nil
}

func (t *memTx) AppendTransition(_ context.Context, tr domain.Transition) error {
	n := len(t.st.transitions[tr.OrderID])
	t.st.transitions[tr.OrderID] = append(t.st.transitions[tr.OrderID], tr)
	t.undo = append(t.undo, func() { t.st.transitions[tr.OrderID] = t.st.transitions[tr.OrderID][:n] })
	return nil
}

func (t *memTx) InsertReview(_ context.Context, review domain.Review) error {
	if _, exists := t.st.reviews[review.OrderID]; exists {
		return fmt.Errorf("InsertReview %s: %w", review.OrderID, domain.ErrAlreadyReviewed)
	}
	t.st.reviews[review.OrderID] = review
	t.undo = append(t.undo, func() { delete(t.st.reviews, review.OrderID) })
	return nil
}

func (t *memTx) UpsertCard(_ context.Context, card domain.Card) error {
	prev, existed := t.st.cards[card.ID]
	t.st.cards[card.ID] = card
	t.undo = append(t.undo, func() {
		if existed {
			t.st.cards[card.ID] = prev
		} else {
			delete(t.st.cards, card.ID)
		}
	})
	return nil
}
