package domain

import "context"

// Notifier delivers operator alerts for lifecycle events. Implementations
// filter by event type; delivery failure must never fail the operation that
// raised the event.
type Notifier interface {
	Notify(ctx context.Context, event, title, message string) error
}
