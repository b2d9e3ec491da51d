package ledger

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/congo-pay/escrow_engine/internal/store"
)

// Report compares money inside the system with money that entered and left it.
type Report struct {
	store.Totals
	// Drift is (balances + held) - (deposits - withdrawals); zero when the books balance.
	Drift int64
}

// Reconciler periodically checks that escrow movements conserve money.
type Reconciler struct {
	reader   store.Reader
	logger   *slog.Logger
	interval time.Duration
}

func NewReconciler(reader store.Reader, logger *slog.Logger, interval time.Duration) *Reconciler {
	return &Reconciler{reader: reader, logger: logger, interval: interval}
}

// Check computes a single report.
func (r *Reconciler) Check(ctx context.Context) (Report, error) {
	totals, err := r.reader.Totals(ctx)
	if err != nil {
		return Report{}, fmt.Errorf("Reconciler.Check: %w", err)
	}
	return Report{
		Totals: totals,
		Drift:  (totals.Balances + totals.Held) - (totals.Deposits - totals.Withdrawals),
	}, nil
}

// Run checks on every tick until ctx is done.
func (r *Reconciler) Run(ctx context.Context) {
	if r.interval <= 0 {
		return
	}
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.checkOnce(ctx)
		}
	}
}

func (r *Reconciler) checkOnce(ctx context.Context) {
	report, err := r.Check(ctx)
	if err != nil {
		if ctx.Err() == nil {
			r.logger.Warn("reconcile ledger", "error", err)
		}
		return
	}
	if report.Drift != 0 {
		r.logger.Error("ledger drift detected",
			"drift", report.Drift,
			"balances", report.Balances,
			"held", report.Held,
			"deposits", report.Deposits,
			"withdrawals", report.Withdrawals,
		)
		return
	}
	r.logger.Debug("ledger reconciled", "balances", report.Balances, "held", report.Held)
}
