package orders

import (
	"fmt"
	"strings"

	"github.com/congo-pay/escrow_engine/internal/domain"
)

type Action string

const (
	ActionSubmit   Action = "submit"
	ActionAccept   Action = "accept"
	ActionReject   Action = "reject"
	ActionCancel   Action = "cancel"
	ActionStart    Action = "start"
	ActionComplete Action = "complete"
	ActionFinish   Action = "finish"
)

// ActionCreate labels the history entry written when an order is placed.
const ActionCreate = "create_order"

// Effect is the escrow movement a transition triggers.
type Effect int

const (
	EffectNone Effect = iota
	EffectRefund
	EffectRelease
)

// Rule is one row of the transition table.
type Rule struct {
	From   domain.Status
	Action Action
	By     domain.Role
	To     domain.Status
	Effect Effect
}

var rules = []Rule{
	{domain.StatusCreated, ActionSubmit, domain.RoleSystem, domain.StatusPending, EffectNone},
	{domain.StatusPending, ActionAccept, domain.RoleCompany, domain.StatusAccepted, EffectNone},
	{domain.StatusPending, ActionReject, domain.RoleCompany, domain.StatusRejected, EffectRefund},
	{domain.StatusPending, ActionCancel, domain.RoleClient, domain.StatusCancelled, EffectRefund},
	{domain.StatusAccepted, ActionStart, domain.RoleCompany, domain.StatusInProgress, EffectNone},
	{domain.StatusAccepted, ActionCancel, domain.RoleClient, domain.StatusCancelled, EffectRefund},
	{domain.StatusInProgress, ActionComplete, domain.RoleCompany, domain.StatusCompleted, EffectNone},
	{domain.StatusCompleted, ActionFinish, domain.RoleClient, domain.StatusFinished, EffectRelease},
	// dispute after delivery
	{domain.StatusCompleted, ActionCancel, domain.RoleClient, domain.StatusCancelled, EffectRefund},
}

// aliases are the names clients have historically sent for table actions.
var aliases = map[string]Action{
	"decline":     ActionReject,
	"dispute":     ActionCancel,
	"accept_work": ActionFinish,
	"confirm":     ActionFinish,
}

// Rules returns a copy of the transition table.
func Rules() []Rule {
	return append([]Rule(nil), rules...)
}

// ParseAction resolves a requested action name, including aliases.
func ParseAction(s string) (Action, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	if a, ok := aliases[name]; ok {
		return a, nil
	}
	for _, r := range rules {
		if string(r.Action) == name && r.Action != ActionSubmit {
			return r.Action, nil
		}
	}
	return "", fmt.Errorf("action %q: %w", s, domain.ErrInvalidAction)
}

// Next looks up the single step the table permits. Every other triple is illegal.
func Next(from domain.Status, action Action, by domain.Role) (Rule, error) {
	for _, r := range rules {
		if r.From == from && r.Action == action && r.By == by {
			return r, nil
		}
	}
	return Rule{}, fmt.Errorf("%s %s by %s: %w", from, action, by, domain.ErrIllegalTransition)
}

// AllowedActions lists what role may do to an order in status, in table order.
func AllowedActions(status domain.Status, by domain.Role) []Action {
	var out []Action
	for _, r := range rules {
		if r.From == status && r.By == by {
			out = append(out, r.Action)
		}
	}
	return out
}

// Allowed reports whether the table has a row for the triple.
func Allowed(status domain.Status, action Action, by domain.Role) bool {
	_, err := Next(status, action, by)
	return err == nil
}

// PaymentStatusAfter is the payment status an order carries once effect applied.
func PaymentStatusAfter(current domain.PaymentStatus, effect Effect) domain.PaymentStatus {
	switch effect {
	case EffectRefund:
		return domain.PaymentRefunded
	case EffectRelease:
		return domain.PaymentPaid
	default:
		return current
	}
}
