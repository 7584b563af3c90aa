package server

// BackpressurePolicy decides what happens when a session's send queue is full.
type BackpressurePolicy string

const (
	// PolicyDisconnect evicts the slow session.
	PolicyDisconnect BackpressurePolicy = "disconnect"
	// PolicyDropOldest discards the oldest queued frame to make room.
	PolicyDropOldest BackpressurePolicy = "drop_oldest"
	// PolicyDropNewest discards the frame being delivered.
	PolicyDropNewest BackpressurePolicy = "drop_newest"
)

// Valid reports whether p is a known policy.
func (p BackpressurePolicy) Valid() bool {
	switch p {
	case PolicyDisconnect, PolicyDropOldest, PolicyDropNewest:
		return true
	}
	return false
}

type deliveryResult int

const (
	delivered deliveryResult = iota
	// displaced means the frame was queued after discarding an older one.
	displaced
	dropped
	evict
)

// enqueue offers frame to queue without blocking. Only the router calls it,
// under its mutex, so there is a single producer per queue at a time.
func enqueue(queue chan string, frame string, policy BackpressurePolicy) deliveryResult {
	select {
	case queue <- frame:
		return delivered
	default:
	}

	switch policy {
	case PolicyDropNewest:
		return dropped
	case PolicyDropOldest:
		select {
		case <-queue:
		default:
		}
		select {
		case queue <- frame:
			return displaced
		default:
			return dropped
		}
	default:
		return evict
	}
}
