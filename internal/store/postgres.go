package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/congo-pay/escrow_engine/internal/domain"
)

const (
	accountColumns    = `id, role, balance, version, created_at, updated_at`
	transactionColumn = `id, account_id, kind, amount, resulting_balance, status, reference, created_at`
	orderColumns      = `id, client_id, company_id, card_id, amount, status, payment_status, description,
	version, created_at, updated_at, completed_at`
	transitionColumns = `id, order_id, from_status, to_status, action, actor_id, actor_role, at`
	holdColumns       = `order_id, client_id, amount, state, created_at, updated_at`
	reviewColumns     = `id, order_id, client_id, company_id, rating, comment, created_at`
	cardColumns       = `id, company_id, price, updated_at`
)

type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type scanner interface {
	Scan(dest ...any) error
}

// Postgres persists the engine tables in PostgreSQL. Account and hold rows are
// locked with SELECT ... FOR UPDATE; orders use a version column.
type Postgres struct {
	queries
	pool      *pgxpool.Pool
	txTimeout time.Duration
}

// NewPostgres builds a Postgres-backed store. A positive txTimeout bounds every unit of work.
func NewPostgres(pool *pgxpool.Pool, txTimeout time.Duration) *Postgres {
	return &Postgres{queries: queries{q: pool}, pool: pool, txTimeout: txTimeout}
}

// InTx runs fn inside a read-committed transaction.
func (p *Postgres) InTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error {
	if p.txTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.txTimeout)
		defer cancel()
	}

	tx, err := p.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return fmt.Errorf("InTx: begin: %w", mapError(err))
	}
	defer tx.Rollback(ctx) // nolint:errcheck

	if err := fn(ctx, &pgTx{queries: queries{q: tx}}); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("InTx: commit: %w", mapError(err))
	}
	return nil
}

// mapError turns retryable Postgres failures into domain.ErrConflict.
func mapError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "40001", "40P01":
			return fmt.Errorf("%w: %s", domain.ErrConflict, pgErr.Message)
		}
	}
	return err
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

func limitArg(limit int) any {
	if limit <= 0 {
		return nil
	}
	return limit
}

type queries struct {
	q querier
}

func (r queries) GetAccount(ctx context.Context, id string) (domain.Account, error) {
	row := r.q.QueryRow(ctx, `SELECT `+accountColumns+` FROM accounts WHERE id = $1`, id)
	a, err := scanAccount(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Account{}, fmt.Errorf("GetAccount %s: %w", id, domain.ErrNotFound)
		}
		return domain.Account{}, fmt.Errorf("GetAccount: %w", mapError(err))
	}
	return a, nil
}

func (r queries) ListTransactions(ctx context.Context, accountID string, limit, offset int) ([]domain.Transaction, int, error) {
	var total int
	if err := r.q.QueryRow(ctx, `SELECT COUNT(*) FROM transactions WHERE account_id = $1`, accountID).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("ListTransactions: count: %w", mapError(err))
	}

	rows, err := r.q.Query(ctx,
		`SELECT `+transactionColumn+` FROM transactions
		WHERE account_id = $1 ORDER BY seq DESC LIMIT $2 OFFSET $3`,
		accountID, limitArg(limit), max(offset, 0),
	)
	if err != nil {
		return nil, 0, fmt.Errorf("ListTransactions: %w", mapError(err))
	}
	defer rows.Close()

	var out []domain.Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("ListTransactions: scan: %w", err)
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("ListTransactions: rows: %w", mapError(err))
	}
	return out, total, nil
}

func (r queries) GetOrder(ctx context.Context, id string) (domain.Order, error) {
	row := r.q.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1`, id)
	o, err := scanOrder(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Order{}, fmt.Errorf("GetOrder %s: %w", id, domain.ErrNotFound)
		}
		return domain.Order{}, fmt.Errorf("GetOrder: %w", mapError(err))
	}
	return o, nil
}

func (r queries) ListOrders(ctx context.Context, filter OrderFilter) ([]domain.Order, int, error) {
	const where = `WHERE (client_id = $1 OR company_id = $1) AND ($2 = '' OR status = $2)`

	var total int
	if err := r.q.QueryRow(ctx, `SELECT COUNT(*) FROM orders `+where,
		filter.AccountID, string(filter.Status)).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("ListOrders: count: %w", mapError(err))
	}

	rows, err := r.q.Query(ctx,
		`SELECT `+orderColumns+` FROM orders `+where+` ORDER BY seq DESC LIMIT $3 OFFSET $4`,
		filter.AccountID, string(filter.Status), limitArg(filter.Limit), max(filter.Offset, 0),
	)
	if err != nil {
		return nil, 0, fmt.Errorf("ListOrders: %w", mapError(err))
	}
	defer rows.Close()

	var out []domain.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("ListOrders: scan: %w", err)
		}
		out = append(out, o)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("ListOrders: rows: %w", mapError(err))
	}
	return out, total, nil
}

func (r queries) ListTransitions(ctx context.Context, orderID string) ([]domain.Transition, error) {
	rows, err := r.q.Query(ctx,
		`SELECT `+transitionColumns+` FROM order_transitions WHERE order_id = $1 ORDER BY seq`, orderID)
	if err != nil {
		return nil, fmt.Errorf("ListTransitions: %w", mapError(err))
	}
	defer rows.Close()

	var out []domain.Transition
	for rows.Next() {
		var (
			t              domain.Transition
			from, to, role string
		)
		if err := rows.Scan(&t.ID, &t.OrderID, &from, &to, &t.Action, &t.ActorID, &role, &t.At); err != nil {
			return nil, fmt.Errorf("ListTransitions: scan: %w", err)
		}
		t.From, t.To, t.ActorRole = domain.Status(from), domain.Status(to), domain.Role(role)
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ListTransitions: rows: %w", mapError(err))
	}
	return out, nil
}

func (r queries) GetHold(ctx context.Context, orderID string) (domain.EscrowHold, error) {
	return r.getHold(ctx, `SELECT `+holdColumns+` FROM escrow_holds WHERE order_id = $1`, orderID)
}

func (r queries) getHold(ctx context.Context, query, orderID string) (domain.EscrowHold, error) {
	var (
		h     domain.EscrowHold
		state string
	)
	err := r.q.QueryRow(ctx, query, orderID).Scan(&h.OrderID, &h.ClientID, &h.Amount, &state, &h.CreatedAt, &h.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.EscrowHold{}, fmt.Errorf("GetHold %s: %w", orderID, domain.ErrNotFound)
		}
		return domain.EscrowHold{}, fmt.Errorf("GetHold: %w", mapError(err))
	}
	h.State = domain.HoldState(state)
	return h, nil
}

func (r queries) GetReview(ctx context.Context, orderID string) (domain.Review, error) {
	row := r.q.QueryRow(ctx, `SELECT `+reviewColumns+` FROM reviews WHERE order_id = $1`, orderID)
	var rv domain.Review
	if err := row.Scan(&rv.ID, &rv.OrderID, &rv.ClientID, &rv.CompanyID, &rv.Rating, &rv.Comment, &rv.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Review{}, fmt.Errorf("GetReview %s: %w", orderID, domain.ErrNotFound)
		}
		return domain.Review{}, fmt.Errorf("GetReview: %w", mapError(err))
	}
	return rv, nil
}

func (r queries) ListReviews(ctx context.Context, companyID string, limit, offset int) ([]domain.Review, int, error) {
	var total int
	if err := r.q.QueryRow(ctx, `SELECT COUNT(*) FROM reviews WHERE company_id = $1`, companyID).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("ListReviews: count: %w", mapError(err))
	}

	rows, err := r.q.Query(ctx,
		`SELECT `+reviewColumns+` FROM reviews WHERE company_id = $1
		ORDER BY created_at DESC, id DESC LIMIT $2 OFFSET $3`,
		companyID, limitArg(limit), max(offset, 0),
	)
	if err != nil {
		return nil, 0, fmt.Errorf("ListReviews: %w", mapError(err))
	}
	defer rows.Close()

	var out []domain.Review
	for rows.Next() {
		var rv domain.Review
		if err := rows.Scan(&rv.ID, &rv.OrderID, &rv.ClientID, &rv.CompanyID, &rv.Rating, &rv.Comment, &rv.CreatedAt); err != nil {
			return nil, 0, fmt.Errorf("ListReviews: scan: %w", err)
		}
		out = append(out, rv)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("ListReviews: rows: %w", mapError(err))
	}
	return out, total, nil
}

func (r queries) RatingSummary(ctx context.Context, companyID string) (RatingSummary, error) {
	var out RatingSummary
	err := r.q.QueryRow(ctx,
		`SELECT COUNT(*), COALESCE(AVG(rating), 0)::FLOAT8 FROM reviews WHERE company_id = $1`, companyID,
	).Scan(&out.Count, &out.Average)
	if err != nil {
		return RatingSummary{}, fmt.Errorf("RatingSummary: %w", mapError(err))
	}
	return out, nil
}

func (r queries) GetCard(ctx context.Context, id string) (domain.Card, error) {
	row := r.q.QueryRow(ctx, `SELECT `+cardColumns+` FROM cards WHERE id = $1`, id)
	var c domain.Card
	if err := row.Scan(&c.ID, &c.CompanyID, &c.Price, &c.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Card{}, fmt.Errorf("GetCard %s: %w", id, domain.ErrNotFound)
		}
		return domain.Card{}, fmt.Errorf("GetCard: %w", mapError(err))
	}
	return c, nil
}

func (r queries) Totals(ctx context.Context) (Totals, error) {
	const query = `SELECT
		(SELECT COALESCE(SUM(balance), 0)::BIGINT FROM accounts),
		(SELECT COALESCE(SUM(amount), 0)::BIGINT FROM escrow_holds WHERE state = 'held'),
		(SELECT COALESCE(SUM(amount), 0)::BIGINT FROM transactions WHERE kind = 'deposit'),
		(SELECT COALESCE(SUM(amount), 0)::BIGINT FROM transactions WHERE kind = 'withdraw')`
	var t Totals
	if err := r.q.QueryRow(ctx, query).Scan(&t.Balances, &t.Held, &t.Deposits, &t.Withdrawals); err != nil {
		return Totals{}, fmt.Errorf("Totals: %w", mapError(err))
	}
	return t, nil
}

type pgTx struct {
	queries
}

func (t *pgTx) EnsureAccount(ctx context.Context, account domain.Account) (domain.Account, error) {
	_, err := t.q.Exec(ctx,
		`INSERT INTO accounts (id, role, balance, version, created_at, updated_at)
		VALUES ($1, $2, 0, 1, $3, $3) ON CONFLICT (id) DO NOTHING`,
		account.ID, string(account.Role), account.CreatedAt.UTC(),
	)
	if err != nil {
		return domain.Account{}, fmt.Errorf("EnsureAccount: %w", mapError(err))
	}
	return t.GetAccount(ctx, account.ID)
}

func (t *pgTx) LockAccount(ctx context.Context, id string) (domain.Account, error) {
	row := t.q.QueryRow(ctx, `SELECT `+accountColumns+` FROM accounts WHERE id = $1 FOR UPDATE`, id)
	a, err := scanAccount(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Account{}, fmt.Errorf("LockAccount %s: %w", id, domain.ErrNotFound)
		}
		return domain.Account{}, fmt.Errorf("LockAccount: %w", mapError(err))
	}
	return a, nil
}

func (t *pgTx) UpdateAccount(ctx context.Context, account domain.Account) error {
	tag, err := t.q.Exec(ctx,
		`UPDATE accounts SET balance = $1, version = $2, updated_at = $3 WHERE id = $4 AND version = $5`,
		account.Balance, account.Version, account.UpdatedAt.UTC(), account.ID, account.Version-1,
	)
	if err != nil {
		return fmt.Errorf("UpdateAccount: %w", mapError(err))
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("UpdateAccount %s: %w", account.ID, domain.ErrConflict)
	}
	return nil
}

func (t *pgTx) AppendTransaction(ctx context.Context, txn domain.Transaction) error {
	_, err := t.q.Exec(ctx,
		`INSERT INTO transactions (id, account_id, kind, amount, resulting_balance, status, reference, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		txn.ID, txn.AccountID, string(txn.Kind), txn.Amount, txn.ResultingBalance, txn.Status, txn.Reference, txn.CreatedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("AppendTransaction: %w", mapError(err))
	}
	return nil
}

func (t *pgTx) InsertHold(ctx context.Context, hold domain.EscrowHold) error {
	_, err := t.q.Exec(ctx,
		`INSERT INTO escrow_holds (`+holdColumns+`) VALUES ($1, $2, $3, $4, $5, $6)`,
		hold.OrderID, hold.ClientID, hold.Amount, string(hold.State), hold.CreatedAt.UTC(), hold.UpdatedAt.UTC(),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("InsertHold %s: %w", hold.OrderID, domain.ErrConflict)
		}
		return fmt.Errorf("InsertHold: %w", mapError(err))
	}
	return nil
}

func (t *pgTx) LockHold(ctx context.Context, orderID string) (domain.EscrowHold, error) {
	return t.getHold(ctx, `SELECT `+holdColumns+` FROM escrow_holds WHERE order_id = $1 FOR UPDATE`, orderID)
}

func (t *pgTx) UpdateHold(ctx context.Context, hold domain.EscrowHold) error {
	tag, err := t.q.Exec(ctx,
		`UPDATE escrow_holds SET state = $1, updated_at = $2 WHERE order_id = $3`,
		string(hold.State), hold.UpdatedAt.UTC(), hold.OrderID,
	)
	if err != nil {
		return fmt.Errorf("UpdateHold: %w", mapError(err))
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("UpdateHold %s: %w", hold.OrderID, domain.ErrNotFound)
	}
	return nil
}

func (t *pgTx) InsertOrder(ctx context.Context, o domain.Order) error {
	_, err := t.q.Exec(ctx,
		`INSERT INTO orders (id, client_id, company_id, card_id, amount, status, payment_status, description,
		version, created_at, updated_at, completed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		o.ID, o.ClientID, o.CompanyID, o.CardID, o.Amount, string(o.Status), string(o.PaymentStatus), o.Description,
		o.Version, o.CreatedAt.UTC(), o.UpdatedAt.UTC(), o.CompletedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("InsertOrder %s: %w", o.ID, domain.ErrConflict)
		}
		return fmt.Errorf("InsertOrder: %w", mapError(err))
	}
	return nil
}

func (t *pgTx) UpdateOrder(ctx context.Context, o domain.Order, prevVersion int64) error {
	tag, err := t.q.Exec(ctx,
		`UPDATE orders SET status = $1, payment_status = $2, version = $3, updated_at = $4, completed_at = $5
		WHERE id = $6 AND version = $7`,
		string(o.Status), string(o.PaymentStatus), o.Version, o.UpdatedAt.UTC(), o.CompletedAt, o.ID, prevVersion,
	)
	if err != nil {
		return fmt.Errorf("UpdateOrder: %w", mapError(err))
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("UpdateOrder %s: %w", o.ID, domain.ErrConflict)
	}
	return nil
}

func (t *pgTx) AppendTransition(ctx context.Context, tr domain.Transition) error {
	_, err := t.q.Exec(ctx,
		`INSERT INTO order_transitions (`+transitionColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		tr.ID, tr.OrderID, string(tr.From), string(tr.To), tr.Action, tr.ActorID, string(tr.ActorRole), tr.At.UTC(),
	)
	if err != nil {
		return fmt.Errorf("AppendTransition: %w", mapError(err))
	}
	return nil
}

func (t *pgTx) InsertReview(ctx context.Context, rv domain.Review) error {
	_, err := t.q.Exec(ctx,
		`INSERT INTO reviews (`+reviewColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		rv.ID, rv.OrderID, rv.ClientID, rv.CompanyID, rv.Rating, rv.Comment, rv.CreatedAt.UTC(),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("InsertReview %s: %w", rv.OrderID, domain.ErrAlreadyReviewed)
		}
		return fmt.Errorf("InsertReview: %w", mapError(err))
	}
	return nil
}

func (t *pgTx) UpsertCard(ctx context.Context, c domain.Card) error {
	_, err := t.q.Exec(ctx,
		`INSERT INTO cards (`+cardColumns+`) VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO UPDATE SET company_id = EXCLUDED.company_id, price = EXCLUDED.price, updated_at = EXCLUDED.updated_at`,
		c.ID, c.CompanyID, c.Price, c.UpdatedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("UpsertCard: %w", mapError(err))
	}
	return nil
}

func scanAccount(s scanner) (domain.Account, error) {
	var (
		a    domain.Account
		role string
	)
	if err := s.Scan(&a.ID, &role, &a.Balance, &a.Version, &a.CreatedAt, &a.UpdatedAt); err != nil {
		return domain.Account{}, err
	}
	a.Role = domain.Role(role)
	return a, nil
}

func scanTransaction(s scanner) (domain.Transaction, error) {
	var (
		t    domain.Transaction
		kind string
	)
	if err := s.Scan(&t.ID, &t.AccountID, &kind, &t.Amount, &t.ResultingBalance, &t.Status, &t.Reference, &t.CreatedAt); err != nil {
		return domain.Transaction{}, err
	}
	t.Kind = domain.TxKind(kind)
	return t, nil
}

func scanOrder(s scanner) (domain.Order, error) {
	var (
		o                     domain.Order
		status, paymentStatus string
	)
	err := s.Scan(
		&o.ID, &o.ClientID, &o.CompanyID, &o.CardID, &o.Amount, &status, &paymentStatus, &o.Description,
		&o.Version, &o.CreatedAt, &o.UpdatedAt, &o.CompletedAt,
	)
	if err != nil {
		return domain.Order{}, err
	}
	o.Status, o.PaymentStatus = domain.Status(status), domain.PaymentStatus(paymentStatus)
	return o, nil
}
