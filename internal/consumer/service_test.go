package consumer

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/vissharm/ecommerce-app-order-service/internal/orders"
)

type fakeDeduper struct {
	seen map[string]bool
	err  error
}

func (f *fakeDeduper) SetNX(_ context.Context, key string, _ any, _ time.Duration) *redis.BoolCmd {
	if f.err != nil {
		return redis.NewBoolResult(false, f.err)
	}
	if f.seen[key] {
		return redis.NewBoolResult(false, nil)
	}
	if f.seen == nil {
		f.seen = map[string]bool{}
	}
	f.seen[key] = true
	return redis.NewBoolResult(true, nil)
}

func eventMessage(t *testing.T) kafkago.Message {
	t.Helper()
	o := orders.NewLifecycle().NewOrder("u1", "p1", 2)
	b, err := json.Marshal(orders.NewOrderCreatedEvent(o))
	require.NoError(t, err)
	return kafkago.Message{Key: orders.PartitionKey(o.ID), Value: b}
}

func TestHandleOrderCreated_DedupesRedelivery(t *testing.T) {
	svc := &Service{Redis: &fakeDeduper{}, Logger: zap.NewNop(), Name: "test"}
	msg := eventMessage(t)

	require.NoError(t, svc.HandleOrderCreated(context.Background(), msg))
	// At-least-once delivery means the same message can come around again.
	require.NoError(t, svc.HandleOrderCreated(context.Background(), msg))

	fd := svc.Redis.(*fakeDeduper)
	assert.Len(t, fd.seen, 1)
}

func TestHandleOrderCreated_DistinctOrdersPass(t *testing.T) {
	svc := &Service{Redis: &fakeDeduper{}, Logger: zap.NewNop(), Name: "test"}

	require.NoError(t, svc.HandleOrderCreated(context.Background(), eventMessage(t)))
	require.NoError(t, svc.HandleOrderCreated(context.Background(), eventMessage(t)))

	fd := svc.Redis.(*fakeDeduper)
	assert.Len(t, fd.seen, 2)
}

func TestHandleOrderCreated_DedupUnavailable(t *testing.T) {
	svc := &Service{
		Redis:  &fakeDeduper{err: errors.New("redis is down")},
		Logger: zap.NewNop(),
		Name:   "test",
	}

	// Without the marker the offset must not be committed.
	err := svc.HandleOrderCreated(context.Background(), eventMessage(t))
	require.Error(t, err)
}

func TestHandleOrderCreated_MalformedPayload(t *testing.T) {
	svc := &Service{Redis: &fakeDeduper{}, Logger: zap.NewNop(), Name: "test"}

	err := svc.HandleOrderCreated(context.Background(), kafkago.Message{
		Key:   orders.PartitionKey(uuid.New()),
		Value: []byte("not json"),
	})
	require.Error(t, err)
}
