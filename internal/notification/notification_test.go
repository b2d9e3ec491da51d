package notification

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/congo-pay/escrow_engine/internal/domain"
)

type fakeWriter struct {
	msgs []kafka.Message
	err  error
}

func (w *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if w.err != nil {
		return w.err
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *fakeWriter) Close() error { return nil }

func TestKafkaPublisher_Publish(t *testing.T) {
	w := &fakeWriter{}
	p := &KafkaPublisher{writer: w}
	at := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	err := p.Publish(context.Background(),
		Event{Type: TypeOrderCreated, OrderID: "order-1", AccountID: "client-1", Status: "pending", Amount: 300, OccurredAt: at},
		Event{Type: TypeBalanceChanged, AccountID: "client-1", Amount: 300, Balance: 700, OccurredAt: at},
	)
	require.NoError(t, err)
	require.Len(t, w.msgs, 2)

	assert.Equal(t, "order-1", string(w.msgs[0].Key))
	assert.Equal(t, "client-1", string(w.msgs[1].Key))
	assert.Equal(t, TypeBalanceChanged, string(w.msgs[1].Headers[0].Value))

	var decoded Event
	require.NoError(t, json.Unmarshal(w.msgs[1].Value, &decoded))
	assert.Equal(t, int64(700), decoded.Balance)
	assert.True(t, at.Equal(decoded.OccurredAt))
}

func TestDispatch_LogsPublishFailure(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))
	p := &KafkaPublisher{writer: &fakeWriter{err: errors.New("broker down")}}

	Dispatch(context.Background(), p, logger, []Event{{Type: TypeOrderFinished, OrderID: "order-1"}})
	assert.Contains(t, buf.String(), "broker down")
}

func TestOrderEventType(t *testing.T) {
	got, ok := OrderEventType(domain.StatusInProgress)
	assert.True(t, ok)
	assert.Equal(t, TypeOrderStarted, got)

	_, ok = OrderEventType(domain.StatusCreated)
	assert.False(t, ok)
}
