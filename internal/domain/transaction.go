package domain

import "time"

type TxKind string

const (
	TxDeposit  TxKind = "deposit"
	TxWithdraw TxKind = "withdraw"
	TxHold     TxKind = "hold"
	TxRelease  TxKind = "release"
	TxRefund   TxKind = "refund"
)

// IsCredit reports whether the kind increases a balance.
func (k TxKind) IsCredit() bool {
	return k == TxDeposit || k == TxRelease || k == TxRefund
}

// IsDebit reports whether the kind decreases a balance.
func (k TxKind) IsDebit() bool {
	return k == TxWithdraw || k == TxHold
}

const TxStatusCompleted = "completed"

// MaxBalance caps every posting and every resulting balance, in minor units.
// Ledger totals over many accounts stay well inside int64 under this cap.
const MaxBalance int64 = 1_000_000_000_000_000

// Transaction is an immutable entry of the append-only account log.
type Transaction struct {
	ID               string
	AccountID        string
	Kind             TxKind
	Amount           int64
	ResultingBalance int64
	Status           string
	Reference        string
	CreatedAt        time.Time
}
