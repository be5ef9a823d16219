package orders

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
)

// Sweep re-attempts delivery for every outbox record still awaiting it.
// It is the crash-recovery path: an order whose first publish never happened
// (process died between commit and publish) is picked up here.
func (c *Coordinator) Sweep(ctx context.Context) error {
	recs, err := c.store.DueOutbox(ctx, c.sweepBatchSize, c.maxAttempts, c.now())
	if err != nil {
		return fmt.Errorf("store.DueOutbox: %w", err)
	}
	if len(recs) == 0 {
		return nil
	}

	var delivered, failed int
	for _, rec := range recs {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		if err := c.deliver(ctx, rec); err != nil {
			failed++
		} else {
			delivered++
		}
	}

	c.logger.Info("outbox sweep finished",
		zap.Int("due", len(recs)),
		zap.Int("delivered", delivered),
		zap.Int("failed", failed))
	return nil
}

// deliver publishes one outbox record and settles its state. Publish and
// state write are not mutually exclusive with other workers; the version CAS
// in the store arbitrates, and consumers dedup by order id.
func (c *Coordinator) deliver(ctx context.Context, rec OutboxRecord) error {
	pctx, cancel := context.WithTimeout(ctx, c.publishTimeout)
	err := c.publisher.Publish(pctx, c.topic, PartitionKey(rec.OrderID), rec.Payload)
	cancel()
	if err != nil {
		c.recordFailure(ctx, rec, err)
		return err
	}

	if err := c.markSent(ctx, rec); err != nil {
		// The event is out but the record still says otherwise. The sweep may
		// redeliver; duplicates are covered by the at-least-once contract.
		c.logger.Error("event published but outbox not marked sent",
			zap.String("order_id", rec.OrderID.String()),
			zap.Error(err))
		return err
	}
	return nil
}

// markSent flips the record to sent, retrying through version conflicts.
// A record another worker already marked sent is left alone.
func (c *Coordinator) markSent(ctx context.Context, rec OutboxRecord) error {
	for i := 0; i < maxConflictRetries; i++ {
		err := c.store.UpdateOutboxState(ctx, OutboxUpdate{
			OrderID:       rec.OrderID,
			State:         DeliverySent,
			Attempts:      rec.Attempts + 1,
			NextAttemptAt: rec.NextAttemptAt,
			Version:       rec.Version,
		})
		if err == nil {
			return nil
		}
		if !errors.Is(err, ErrConflict) {
			return err
		}

		fresh, err := c.store.GetOutbox(ctx, rec.OrderID)
		if err != nil {
			return err
		}
		if fresh.DeliveryState == DeliverySent {
			return nil
		}
		rec = fresh
	}
	return fmt.Errorf("mark sent for order %s: %w", rec.OrderID, ErrConflict)
}

// recordFailure books a failed attempt. Below the attempt bound the record is
// rescheduled with exponential backoff; at the bound it is terminally failed,
// surfaced through the log and the exhaustion hook, and never retried.
func (c *Coordinator) recordFailure(ctx context.Context, rec OutboxRecord, pubErr error) {
	attempts := rec.Attempts + 1
	upd := OutboxUpdate{
		OrderID:       rec.OrderID,
		State:         DeliveryFailed,
		Attempts:      attempts,
		NextAttemptAt: c.now().Add(c.backoff.Delay(attempts)),
		LastError:     pubErr.Error(),
		Version:       rec.Version,
	}

	exhausted := attempts >= c.maxAttempts
	if exhausted {
		upd.NextAttemptAt = c.now()
	}

	if err := c.store.UpdateOutboxState(ctx, upd); err != nil {
		if errors.Is(err, ErrConflict) {
			// Someone else settled the record; their outcome wins.
			return
		}
		c.logger.Error("failed to record delivery failure",
			zap.String("order_id", rec.OrderID.String()),
			zap.Error(err))
		return
	}

	if exhausted {
		err := fmt.Errorf("%w: %v", ErrDeliveryExhausted, pubErr)
		c.logger.Error("order event delivery exhausted",
			zap.String("order_id", rec.OrderID.String()),
			zap.Int("attempts", attempts),
			zap.Error(err))
		if c.onExhausted != nil {
			rec.Attempts = attempts
			rec.DeliveryState = DeliveryFailed
			c.onExhausted(rec, err)
		}
		return
	}

	c.logger.Warn("publish attempt failed, rescheduled",
		zap.String("order_id", rec.OrderID.String()),
		zap.Int("attempts", attempts),
		zap.Time("next_attempt_at", upd.NextAttemptAt),
		zap.Error(pubErr))
}
