package ports

import "context"

// Notifier delivers handoff messages to agents. Delivery failures are
// non-fatal to the operation that triggered them.
type Notifier interface {
	Send(ctx context.Context, target, subject, body string) error
}
