package orders

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestCoordinator_Submit_HappyPath(t *testing.T) {
	store := new(MockStore)
	pub := new(MockPublisher)
	c := NewCoordinator(store, pub)

	var savedRec OutboxRecord
	store.On("CreateOrder", mock.Anything, mock.MatchedBy(func(o Order) bool {
		return o.OwnerID == "u1" && o.ProductID == "p1" && o.Quantity == 3 && o.Status == StatusPending
	}), mock.MatchedBy(func(rec OutboxRecord) bool {
		savedRec = rec
		return rec.DeliveryState == DeliveryUnsent && rec.Attempts == 0 && len(rec.Payload) > 0
	})).Return(nil).Once()

	pub.On("Publish", mock.Anything, TopicOrderCreated, mock.Anything, mock.Anything).Return(nil).Once()

	store.On("UpdateOutboxState", mock.Anything, mock.MatchedBy(func(upd OutboxUpdate) bool {
		return upd.State == DeliverySent && upd.Attempts == 1 && upd.Version == 0
	})).Return(nil).Once()

	order, err := c.Submit(context.Background(), "u1", "p1", 3)
	require.NoError(t, err)

	assert.Equal(t, "u1", order.OwnerID)
	assert.Equal(t, "p1", order.ProductID)
	assert.Equal(t, 3, order.Quantity)
	assert.Equal(t, StatusPending, order.Status)
	assert.Equal(t, order.ID, savedRec.OrderID)

	store.AssertExpectations(t)
	pub.AssertExpectations(t)
}

func TestCoordinator_Submit_Validation(t *testing.T) {
	tests := []struct {
		name      string
		ownerID   string
		productID string
		quantity  int
	}{
		{"zero quantity", "u1", "p1", 0},
		{"negative quantity", "u1", "p1", -2},
		{"empty product", "u1", "", 1},
		{"empty owner", "", "p1", 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := new(MockStore)
			pub := new(MockPublisher)
			c := NewCoordinator(store, pub)

			_, err := c.Submit(context.Background(), tt.ownerID, tt.productID, tt.quantity)
			require.True(t, errors.Is(err, ErrValidation))

			// No side effects on rejected input.
			store.AssertNotCalled(t, "CreateOrder")
			pub.AssertNotCalled(t, "Publish")
		})
	}
}

func TestCoordinator_Submit_StoreFailure(t *testing.T) {
	store := new(MockStore)
	pub := new(MockPublisher)
	c := NewCoordinator(store, pub)

	storeErr := errors.New("pg is down")
	store.On("CreateOrder", mock.Anything, mock.Anything, mock.Anything).Return(storeErr).Once()

	_, err := c.Submit(context.Background(), "u1", "p1", 1)
	require.ErrorIs(t, err, storeErr)

	pub.AssertNotCalled(t, "Publish")
}

func TestCoordinator_Submit_PublishFailureStillCreates(t *testing.T) {
	store := new(MockStore)
	pub := new(MockPublisher)
	c := NewCoordinator(store, pub)

	store.On("CreateOrder", mock.Anything, mock.Anything, mock.Anything).Return(nil).Once()
	pub.On("Publish", mock.Anything, TopicOrderCreated, mock.Anything, mock.Anything).
		Return(errors.New("kafka is down")).Once()
	store.On("UpdateOutboxState", mock.Anything, mock.MatchedBy(func(upd OutboxUpdate) bool {
		return upd.State == DeliveryFailed && upd.Attempts == 1 && upd.LastError == "kafka is down"
	})).Return(nil).Once()

	// The durable write succeeded, so the caller still gets its order.
	order, err := c.Submit(context.Background(), "u1", "p1", 2)
	require.NoError(t, err)
	assert.Equal(t, StatusPending, order.Status)

	store.AssertExpectations(t)
	pub.AssertExpectations(t)
}

func TestCoordinator_MarkSent_ConflictThenAlreadySent(t *testing.T) {
	store := new(MockStore)
	pub := new(MockPublisher)
	c := NewCoordinator(store, pub)

	store.On("CreateOrder", mock.Anything, mock.Anything, mock.Anything).Return(nil).Once()
	pub.On("Publish", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil).Once()

	// First CAS loses the race; the re-read shows another worker already
	// marked the record sent, so no second update happens.
	store.On("UpdateOutboxState", mock.Anything, mock.Anything).Return(ErrConflict).Once()
	store.On("GetOutbox", mock.Anything, mock.Anything).
		Return(OutboxRecord{DeliveryState: DeliverySent, Attempts: 1, Version: 1}, nil).Once()

	_, err := c.Submit(context.Background(), "u1", "p1", 1)
	require.NoError(t, err)

	store.AssertExpectations(t)
	store.AssertNumberOfCalls(t, "UpdateOutboxState", 1)
}

func TestCoordinator_MarkSent_ConflictThenRetryWithFreshVersion(t *testing.T) {
	store := new(MockStore)
	pub := new(MockPublisher)
	c := NewCoordinator(store, pub)

	store.On("CreateOrder", mock.Anything, mock.Anything, mock.Anything).Return(nil).Once()
	pub.On("Publish", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil).Once()

	store.On("UpdateOutboxState", mock.Anything, mock.MatchedBy(func(upd OutboxUpdate) bool {
		return upd.Version == 0
	})).Return(ErrConflict).Once()
	store.On("GetOutbox", mock.Anything, mock.Anything).
		Return(OutboxRecord{DeliveryState: DeliveryFailed, Attempts: 1, Version: 2}, nil).Once()
	store.On("UpdateOutboxState", mock.Anything, mock.MatchedBy(func(upd OutboxUpdate) bool {
		return upd.Version == 2 && upd.State == DeliverySent && upd.Attempts == 2
	})).Return(nil).Once()

	_, err := c.Submit(context.Background(), "u1", "p1", 1)
	require.NoError(t, err)

	store.AssertExpectations(t)
}
