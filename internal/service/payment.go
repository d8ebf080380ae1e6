package service

import (
	"context"
	"time"
)

// Gateway charges a purchase. A nil error means the charge was approved.
type Gateway interface {
	Charge(ctx context.Context, amountCents uint32) error
}

// SimulatedGateway stands in for a real payment processor. It waits Delay
// to mimic network latency, approving every charge unless Decline is set.
type SimulatedGateway struct {
	Delay   time.Duration
	Decline func(amountCents uint32) error
}

// Charge sleeps for the configured delay, honoring context cancellation,
// then asks Decline for a verdict.
func (g *SimulatedGateway) Charge(ctx context.Context, amountCents uint32) error {
	if g.Delay > 0 {
		t := time.NewTimer(g.Delay)
		defer t.Stop()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.C:
		}
	}
	if g.Decline != nil {
		return g.Decline(amountCents)
	}
	return nil
}
