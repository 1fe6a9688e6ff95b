// Package payment defines the opaque settlement capability used when a
// policy pays by card instead of the coin ledger, and for coin top-ups.
package payment

import "context"

// Result is the outcome of a settlement attempt.
type Result struct {
	Success   bool
	Reference string
	Reason    string
}

// Gateway settles funds against an external payment provider. The engine
// treats it as a black box and only records its outcome.
type Gateway interface {
	Settle(ctx context.Context, userID string, amount int64, methodRef string) (*Result, error)
}
