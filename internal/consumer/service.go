package consumer

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	kafkago "github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/vissharm/ecommerce-app-order-service/internal/orders"
	"github.com/vissharm/ecommerce-app-order-service/internal/redisx"
)

// Deduper is the slice of the redis client the service needs. SetNX returns
// true only for the first writer of a key.
type Deduper interface {
	SetNX(ctx context.Context, key string, value any, expiration time.Duration) *redis.BoolCmd
}

// Service is a reference downstream consumer for order-created events.
// Delivery is at-least-once, so it dedupes by order id before acting.
type Service struct {
	Redis  Deduper
	Logger *zap.Logger
	Name   string
}

func (s *Service) HandleOrderCreated(ctx context.Context, m kafkago.Message) error {
	var ev orders.OrderCreatedEvent
	if err := json.Unmarshal(m.Value, &ev); err != nil {
		return fmt.Errorf("decode order-created event: %w", err)
	}

	dkey := fmt.Sprintf(redisx.KeyDedup, s.Name, ev.ID)
	first, err := s.Redis.SetNX(ctx, dkey, "1", redisx.TTLDedup).Result()
	if err != nil {
		// Without the dedup marker we cannot safely commit; let the
		// message come around again.
		return fmt.Errorf("dedup check: %w", err)
	}
	if !first {
		s.Logger.Debug("duplicate delivery discarded", zap.String("order_id", ev.ID))
		return nil
	}

	s.Logger.Info("order created",
		zap.String("order_id", ev.ID),
		zap.String("owner_id", ev.OwnerID),
		zap.String("product_id", ev.ProductID),
		zap.Int("quantity", ev.Quantity),
		zap.String("status", string(ev.Status)))
	return nil
}
