package notification

import (
	"context"
	"log/slog"
	"time"

	"github.com/congo-pay/escrow_engine/internal/domain"
)

const (
	TypeOrderCreated   = "order_created"
	TypeOrderAccepted  = "order_accepted"
	TypeOrderRejected  = "order_rejected"
	TypeOrderStarted   = "order_started"
	TypeOrderCompleted = "order_completed"
	TypeOrderFinished  = "order_finished"
	TypeOrderCancelled = "order_cancelled"
	TypeBalanceChanged = "balance_changed"
)

// Event describes a committed state change that downstream systems may react to.
type Event struct {
	Type       string    `json:"type"`
	OrderID    string    `json:"order_id,omitempty"`
	AccountID  string    `json:"account_id,omitempty"`
	Status     string    `json:"status,omitempty"`
	Amount     int64     `json:"amount,omitempty"`
	Balance    int64     `json:"balance"`
	OccurredAt time.Time `json:"occurred_at"`
}

// Key is the partition key: the order when present, otherwise the account.
func (e Event) Key() string {
	if e.OrderID != "" {
		return e.OrderID
	}
	return e.AccountID
}

// OrderEventType maps the status an order just entered to its event type.
func OrderEventType(s domain.Status) (string, bool) {
	switch s {
	case domain.StatusPending:
		return TypeOrderCreated, true
	case domain.StatusAccepted:
		return TypeOrderAccepted, true
	case domain.StatusRejected:
		return TypeOrderRejected, true
	case domain.StatusInProgress:
		return TypeOrderStarted, true
	case domain.StatusCompleted:
		return TypeOrderCompleted, true
	case domain.StatusFinished:
		return TypeOrderFinished, true
	case domain.StatusCancelled:
		return TypeOrderCancelled, true
	default:
		return "", false
	}
}

// Publisher delivers events to downstream systems.
type Publisher interface {
	Publish(ctx context.Context, events ...Event) error
}

// LoggerPublisher writes events to the structured logger.
type LoggerPublisher struct {
	logger *slog.Logger
}

// NewLoggerPublisher constructs a logging publisher for development.
func NewLoggerPublisher(logger *slog.Logger) *LoggerPublisher {
	return &LoggerPublisher{logger: logger}
}

// Publish writes every event to the logger.
func (p *LoggerPublisher) Publish(ctx context.Context, events ...Event) error {
	if p == nil || p.logger == nil {
		return nil
	}
	for _, e := range events {
		p.logger.InfoContext(ctx, "event",
			"type", e.Type,
			"order_id", e.OrderID,
			"account_id", e.AccountID,
			"status", e.Status,
			"amount", e.Amount,
			"balance", e.Balance,
		)
	}
	return nil
}

// Dispatch publishes events that were produced by an already committed unit of
// work. Failures are logged and swallowed: the state change stands regardless.
func Dispatch(ctx context.Context, pub Publisher, logger *slog.Logger, events []Event) {
	if pub == nil || len(events) == 0 {
		return
	}
	if err := pub.Publish(ctx, events...); err != nil && logger != nil {
		logger.ErrorContext(ctx, "publish events", "error", err, "count", len(events))
	}
}
