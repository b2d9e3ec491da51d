package domain

import "time"

type HoldState string

const (
	HoldHeld     HoldState = "held"
	HoldReleased HoldState = "released"
	HoldRefunded HoldState = "refunded"
)

// EscrowHold is the money set aside for exactly one order.
type EscrowHold struct {
	OrderID   string
	ClientID  string
	Amount    int64
	State     HoldState
	CreatedAt time.Time
	UpdatedAt time.Time
}

// HoldStateFor returns the hold state an order in status s must have.
func HoldStateFor(s Status) HoldState {
	switch s {
	case StatusFinished:
		return HoldReleased
	case StatusCancelled, StatusRejected:
		return HoldRefunded
	default:
		return HoldHeld
	}
}
