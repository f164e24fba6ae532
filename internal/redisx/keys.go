package redisx

import "time"

const (
	// Session lookup: session:{token} -> {"user_id": "...", "role": "buyer|seller"}
	KeySession = "session:%s"

	// Provider order intent: payment:intent:{provider_order_ref} -> {"buyer_id": "...", "amount_minor": N}
	KeyPaymentIntent = "payment:intent:%s"

	// Order status cache: order_status:{order_id} -> {"status": "...", "payment_status": "...", ...}
	KeyOrderStatus = "order_status:%s"

	// Dedup event processing: dedup:{service}:{event_id}
	KeyDedup = "dedup:%s:%s"
)

var (
	TTLPaymentIntent = 24 * time.Hour
	TTLStatusCache   = 5 * time.Minute
	TTLDedup         = 48 * time.Hour
)
