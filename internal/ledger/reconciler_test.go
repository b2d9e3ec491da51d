package ledger

import (
	"bytes"
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/congo-pay/escrow_engine/internal/domain"
	"github.com/congo-pay/escrow_engine/internal/store"
)

func TestReconciler_DetectsDrift(t *testing.T) {
	st := store.NewMemory()
	ctx := context.Background()

	// balance written without a matching deposit
	require.NoError(t, st.InTx(ctx, func(ctx context.Context, tx store.Tx) error {
		acct, err := tx.EnsureAccount(ctx, domain.Account{ID: "client-1", Role: domain.RoleClient})
		if err != nil {
			return err
		}
		acct.Balance = 50
		acct.Version++
		return tx.UpdateAccount(ctx, acct)
	}))

	var buf bytes.Buffer
	r := NewReconciler(st, slog.New(slog.NewTextHandler(&buf, nil)), time.Minute)

	report, err := r.Check(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(50), report.Drift)

	r.checkOnce(ctx)
	assert.Contains(t, buf.String(), "ledger drift detected")
}

func TestReconciler_RunStopsOnCancel(t *testing.T) {
	r := NewReconciler(store.NewMemory(), slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil)), time.Millisecond)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		r.Run(ctx)
		close(done)
	}()
	time.Sleep(5 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("reconciler did not stop after cancel")
	}
}
