package port

// Pusher delivers a live update to every connected client subscribed to a
// recipient key. Delivery is best-effort and fire-and-forget: implementations
// must never block or fail the caller; disconnected clients reconcile via the
// pull endpoints.
type Pusher interface {
	Push(recipient string, payload interface{})
}
