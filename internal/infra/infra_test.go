package infra

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRedisClient(t *testing.T) {
	mr := miniredis.RunT(t)

	client, err := NewRedisClient(context.Background(), "redis://"+mr.Addr())
	require.NoError(t, err)
	defer client.Close()

	require.NoError(t, client.Set(context.Background(), "k", "v", 0).Err())
	got, err := mr.Get("k")
	require.NoError(t, err)
	assert.Equal(t, "v", got)
}

func TestNewRedisClient_Errors(t *testing.T) {
	_, err := NewRedisClient(context.Background(), "")
	assert.Error(t, err)

	_, err = NewRedisClient(context.Background(), "not a url")
	assert.Error(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	_, err = NewRedisClient(ctx, "redis://127.0.0.1:1")
	assert.Error(t, err)
}

func TestNewPostgresPool_RequiresURL(t *testing.T) {
	_, err := NewPostgresPool(context.Background(), "", "escrow")
	assert.Error(t, err)
}

func TestNewKafkaWriter(t *testing.T) {
	_, err := NewKafkaWriter(nil, "escrow.events")
	assert.Error(t, err)
	_, err = NewKafkaWriter([]string{"localhost:9092"}, "")
	assert.Error(t, err)

	w, err := NewKafkaWriter([]string{"localhost:9092"}, "escrow.events")
	require.NoError(t, err)
	assert.Equal(t, "escrow.events", w.Topic)
}
