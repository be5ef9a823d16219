package orders

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repo is the pgx-backed Store implementation.
type Repo struct{ DB *pgxpool.Pool }

var _ Store = (*Repo)(nil)

// CreateOrder inserts the order and its outbox record in one transaction.
func (r *Repo) CreateOrder(ctx context.Context, o Order, rec OutboxRecord) error {
	tx, err := r.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	_, err = tx.Exec(ctx, `
		INSERT INTO orders (id, owner_id, product_id, quantity, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, o.ID, o.OwnerID, o.ProductID, o.Quantity, o.Status, o.CreatedAt, o.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert order: %w", err)
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO order_outbox (order_id, payload, delivery_state, attempts, next_attempt_at, last_error, version)
		VALUES ($1, $2, $3, $4, $5, $6, 0)
	`, rec.OrderID, rec.Payload, rec.DeliveryState, rec.Attempts, rec.NextAttemptAt, rec.LastError)
	if err != nil {
		return fmt.Errorf("insert outbox record: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func (r *Repo) GetOrder(ctx context.Context, id uuid.UUID) (Order, error) {
	var o Order
	var status string
	err := r.DB.QueryRow(ctx, `
		SELECT id, owner_id, product_id, quantity, status, created_at, updated_at
		FROM orders WHERE id = $1
	`, id).Scan(&o.ID, &o.OwnerID, &o.ProductID, &o.Quantity, &status, &o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return o, fmt.Errorf("get order %s: %w", id, ErrNotFound)
		}
		return o, fmt.Errorf("get order: %w", err)
	}
	o.Status = Status(status)
	return o, nil
}

func (r *Repo) ListOrdersByOwner(ctx context.Context, ownerID string) ([]Order, error) {
	rows, err := r.DB.Query(ctx, `
		SELECT id, owner_id, product_id, quantity, status, created_at, updated_at
		FROM orders WHERE owner_id = $1
		ORDER BY created_at DESC, id
	`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	defer rows.Close()

	var out []Order
	for rows.Next() {
		var o Order
		var status string
		if err := rows.Scan(&o.ID, &o.OwnerID, &o.ProductID, &o.Quantity, &status, &o.CreatedAt, &o.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan order: %w", err)
		}
		o.Status = Status(status)
		out = append(out, o)
	}
	return out, rows.Err()
}

func (r *Repo) UpdateOrderStatus(ctx context.Context, id uuid.UUID, status Status, updatedAt time.Time) (Order, error) {
	var o Order
	var s string
	err := r.DB.QueryRow(ctx, `
		UPDATE orders SET status = $2, updated_at = $3
		WHERE id = $1
		RETURNING id, owner_id, product_id, quantity, status, created_at, updated_at
	`, id, status, updatedAt).Scan(&o.ID, &o.OwnerID, &o.ProductID, &o.Quantity, &s, &o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return o, fmt.Errorf("update order %s: %w", id, ErrNotFound)
		}
		return o, fmt.Errorf("update order status: %w", err)
	}
	o.Status = Status(s)
	return o, nil
}

func (r *Repo) GetOutbox(ctx context.Context, orderID uuid.UUID) (OutboxRecord, error) {
	var rec OutboxRecord
	var state string
	err := r.DB.QueryRow(ctx, `
		SELECT order_id, payload, delivery_state, attempts, next_attempt_at, last_error, version, created_at
		FROM order_outbox WHERE order_id = $1
	`, orderID).Scan(&rec.OrderID, &rec.Payload, &state, &rec.Attempts, &rec.NextAttemptAt, &rec.LastError, &rec.Version, &rec.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return rec, fmt.Errorf("get outbox %s: %w", orderID, ErrNotFound)
		}
		return rec, fmt.Errorf("get outbox: %w", err)
	}
	rec.DeliveryState = DeliveryState(state)
	return rec, nil
}

// UpdateOutboxState is an optimistic-lock compare-and-set: the row changes
// only when upd.Version still matches, and the version bumps on success.
func (r *Repo) UpdateOutboxState(ctx context.Context, upd OutboxUpdate) error {
	ct, err := r.DB.Exec(ctx, `
		UPDATE order_outbox
		SET delivery_state = $2, attempts = $3, next_attempt_at = $4, last_error = $5, version = version + 1
		WHERE order_id = $1 AND version = $6
	`, upd.OrderID, upd.State, upd.Attempts, upd.NextAttemptAt, upd.LastError, upd.Version)
	if err != nil {
		return fmt.Errorf("update outbox state: %w", err)
	}
	if ct.RowsAffected() == 1 {
		return nil
	}

	// Row untouched: either it never existed or someone else moved the version.
	var exists bool
	if err := r.DB.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM order_outbox WHERE order_id = $1)`, upd.OrderID).Scan(&exists); err != nil {
		return fmt.Errorf("check outbox existence: %w", err)
	}
	if !exists {
		return fmt.Errorf("update outbox %s: %w", upd.OrderID, ErrNotFound)
	}
	return fmt.Errorf("update outbox %s at version %d: %w", upd.OrderID, upd.Version, ErrConflict)
}

func (r *Repo) DueOutbox(ctx context.Context, limit, maxAttempts int, now time.Time) ([]OutboxRecord, error) {
	rows, err := r.DB.Query(ctx, `
		SELECT order_id, payload, delivery_state, attempts, next_attempt_at, last_error, version, created_at
		FROM order_outbox
		WHERE delivery_state IN ($1, $2) AND attempts < $3 AND next_attempt_at <= $4
		ORDER BY next_attempt_at
		LIMIT $5
	`, DeliveryUnsent, DeliveryFailed, maxAttempts, now, limit)
	if err != nil {
		return nil, fmt.Errorf("fetch due outbox: %w", err)
	}
	defer rows.Close()

	var out []OutboxRecord
	for rows.Next() {
		var rec OutboxRecord
		var state string
		if err := rows.Scan(&rec.OrderID, &rec.Payload, &state, &rec.Attempts, &rec.NextAttemptAt, &rec.LastError, &rec.Version, &rec.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan outbox record: %w", err)
		}
		rec.DeliveryState = DeliveryState(state)
		out = append(out, rec)
	}
	return out, rows.Err()
}
