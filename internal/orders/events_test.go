package orders

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Downstream consumers parse these exact field names; a rename here is a
// breaking wire change.
func TestOrderCreatedEvent_WireFormat(t *testing.T) {
	l := NewLifecycle()
	o := l.NewOrder("u1", "p1", 3)

	b, err := json.Marshal(NewOrderCreatedEvent(o))
	require.NoError(t, err)

	var fields map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(b, &fields))

	want := []string{"id", "ownerId", "productId", "quantity", "status", "orderDate", "lastUpdated"}
	assert.Len(t, fields, len(want))
	for _, k := range want {
		assert.Contains(t, fields, k)
	}

	var ev OrderCreatedEvent
	require.NoError(t, json.Unmarshal(b, &ev))
	assert.Equal(t, o.ID.String(), ev.ID)
	assert.Equal(t, "u1", ev.OwnerID)
	assert.Equal(t, StatusPending, ev.Status)
}
