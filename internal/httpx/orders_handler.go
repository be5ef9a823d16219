package httpx

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	kafkax "github.com/vissharm/ecommerce-app-order-service/internal/kafka"
	"github.com/vissharm/ecommerce-app-order-service/internal/orders"
	"github.com/vissharm/ecommerce-app-order-service/internal/redisx"
)

// OrderSubmitter is the slice of the coordinator the handler needs.
type OrderSubmitter interface {
	Submit(ctx context.Context, ownerID, productID string, quantity int) (orders.Order, error)
}

type OrdersHandler struct {
	Coordinator OrderSubmitter
	Store       orders.Store
	Lifecycle   *orders.Lifecycle
	Redis       *redis.Client // optional read cache; nil disables caching
	Logger      *zap.Logger
}

type CreateOrderReq struct {
	ProductID string `json:"productId"`
	Quantity  int    `json:"quantity"`
}

type UpdateStatusReq struct {
	Status string `json:"status"`
}

func (h *OrdersHandler) Register(r *chi.Mux, auth func(http.Handler) http.Handler) {
	r.Group(func(r chi.Router) {
		r.Use(auth)
		r.Post("/orders", h.createOrder)
		r.Get("/orders", h.listOrders)
		r.Get("/orders/{id}", h.getOrder)
		r.Patch("/orders/{id}/status", h.updateStatus)
	})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func (h *OrdersHandler) createOrder(w http.ResponseWriter, r *http.Request) {
	var req CreateOrderReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	// The owner is always the authenticated caller.
	order, err := h.Coordinator.Submit(ctx, CallerID(r.Context()), req.ProductID, req.Quantity)
	if err != nil {
		switch {
		case errors.Is(err, orders.ErrValidation):
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		case errors.Is(err, kafkax.ErrNotReady):
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "service warming up, retry"})
		default:
			h.Logger.Error("create order failed", zap.Error(err))
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to create order"})
		}
		return
	}

	h.cacheOrder(ctx, order)
	writeJSON(w, http.StatusCreated, order)
}

func (h *OrdersHandler) listOrders(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	out, err := h.Store.ListOrdersByOwner(ctx, CallerID(r.Context()))
	if err != nil {
		h.Logger.Error("list orders failed", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to fetch orders"})
		return
	}
	if out == nil {
		out = []orders.Order{}
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *OrdersHandler) getOrder(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid order id"})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()
	caller := CallerID(r.Context())

	if cached, ok := h.cachedOrder(ctx, id); ok {
		if cached.OwnerID != caller {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "not found"})
			return
		}
		writeJSON(w, http.StatusOK, cached)
		return
	}

	order, err := h.Store.GetOrder(ctx, id)
	if err != nil {
		if errors.Is(err, orders.ErrNotFound) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "not found"})
			return
		}
		h.Logger.Error("get order failed", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to fetch order"})
		return
	}
	if order.OwnerID != caller {
		// Cross-owner probing looks identical to a miss.
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "not found"})
		return
	}

	h.cacheOrder(ctx, order)
	writeJSON(w, http.StatusOK, order)
}

// updateStatus is the entry point for external workflow collaborators that
// move orders along Pending -> Processing -> Completed (or cancel them).
func (h *OrdersHandler) updateStatus(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid order id"})
		return
	}

	var req UpdateStatusReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}
	target, err := orders.ToStatus(req.Status)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()
	caller := CallerID(r.Context())

	order, err := h.Store.GetOrder(ctx, id)
	if err != nil || order.OwnerID != caller {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "not found"})
		return
	}

	applied, err := h.Lifecycle.Apply(order, target)
	if err != nil {
		if errors.Is(err, orders.ErrIllegalTransition) {
			writeJSON(w, http.StatusConflict, map[string]string{"error": err.Error()})
			return
		}
		h.Logger.Error("apply transition failed", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to update order"})
		return
	}

	updated, err := h.Store.UpdateOrderStatus(ctx, id, applied.Status, applied.UpdatedAt)
	if err != nil {
		h.Logger.Error("persist transition failed", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to update order"})
		return
	}

	h.cacheOrder(ctx, updated)
	writeJSON(w, http.StatusOK, updated)
}

func (h *OrdersHandler) cacheOrder(ctx context.Context, o orders.Order) {
	if h.Redis == nil {
		return
	}
	b, err := json.Marshal(o)
	if err != nil {
		return
	}
	key := fmt.Sprintf(redisx.KeyOrder, o.ID)
	if err := h.Redis.Set(ctx, key, b, redisx.TTLOrderCache).Err(); err != nil {
		h.Logger.Warn("order cache write failed", zap.Error(err))
	}
}

func (h *OrdersHandler) cachedOrder(ctx context.Context, id uuid.UUID) (orders.Order, bool) {
	var o orders.Order
	if h.Redis == nil {
		return o, false
	}
	key := fmt.Sprintf(redisx.KeyOrder, id)
	raw, err := h.Redis.Get(ctx, key).Result()
	if err != nil || raw == "" {
		return o, false
	}
	if err := json.Unmarshal([]byte(raw), &o); err != nil {
		return o, false
	}
	return o, true
}
