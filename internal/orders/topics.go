package orders

import "github.com/google/uuid"

const TopicOrderCreated = "order-created"

// Partition key = order id, so redeliveries of the same order land on the
// same partition and consumers can dedup by key.
func PartitionKey(orderID uuid.UUID) []byte { return []byte(orderID.String()) }
