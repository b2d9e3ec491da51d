package domain

import "time"

type Status string

const (
	StatusCreated    Status = "created"
	StatusPending    Status = "pending"
	StatusAccepted   Status = "accepted"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
	StatusFinished   Status = "finished"
	StatusCancelled  Status = "cancelled"
	StatusRejected   Status = "rejected"
)

// Statuses lists every order status in lifecycle order.
var Statuses = []Status{
	StatusCreated, StatusPending, StatusAccepted, StatusInProgress,
	StatusCompleted, StatusFinished, StatusCancelled, StatusRejected,
}

// ParseStatus validates a status name.
func ParseStatus(s string) (Status, bool) {
	for _, st := range Statuses {
		if string(st) == s {
			return st, true
		}
	}
	return "", false
}

// Terminal reports whether no transition leaves s.
func (s Status) Terminal() bool {
	return s == StatusFinished || s == StatusCancelled || s == StatusRejected
}

type PaymentStatus string

const (
	PaymentUnpaid   PaymentStatus = "unpaid"
	PaymentHeld     PaymentStatus = "held"
	PaymentPaid     PaymentStatus = "paid"
	PaymentRefunded PaymentStatus = "refunded"
)

// Order is a client's reservation of a company's service card. Amount is the
// card price snapshotted at creation and never changes afterwards.
type Order struct {
	ID            string
	ClientID      string
	CompanyID     string
	CardID        string
	Amount        int64
	Status        Status
	PaymentStatus PaymentStatus
	Description   string
	Version       int64
	CreatedAt     time.Time
	UpdatedAt     time.Time
	CompletedAt   *time.Time
}

// PartyRole returns the role accountID plays on the order, or false when the
// account is not a party.
func (o Order) PartyRole(accountID string) (Role, bool) {
	switch accountID {
	case "":
		return "", false
	case o.ClientID:
		return RoleClient, true
	case o.CompanyID:
		return RoleCompany, true
	default:
		return "", false
	}
}

// Transition records one applied status change.
type Transition struct {
	ID        string
	OrderID   string
	From      Status
	To        Status
	Action    string
	ActorID   string
	ActorRole Role
	At        time.Time
}
