package comms

import "context"

// Transport delivers one chat message to a phone number and returns the
// provider's message id. A failed send must surface as an error so callers
// can log it, but callers never roll back committed state because of it.
type Transport interface {
	Send(ctx context.Context, to, body string) (string, error)
}
