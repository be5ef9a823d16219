package redisx

import "time"

const (
	// Cached order document: order:{order_id} -> order JSON
	KeyOrder = "order:%s"

	// Consumer-side dedup: dedup:{consumer}:{order_id}
	KeyDedup = "dedup:%s:%s"
)

var (
	TTLOrderCache = 5 * time.Minute
	TTLDedup      = 48 * time.Hour
)
