package payments

import (
	"context"
	"math/rand/v2"
	"time"

	"github.com/dmitrijs2005/vehiclerent/internal/server/models"
	"github.com/shopspring/decimal"
)

// Policy decides a settlement outcome.
type Policy func(method models.PaymentMethod, amount decimal.Decimal) bool

// MockPolicy settles MOCK and CASH payments, fails negative amounts, and
// lets CARD and UPI through when draw() returns less than successRate.
func MockPolicy(successRate float64, draw func() float64) Policy {
	if draw == nil {
		draw = rand.Float64
	}
	return func(method models.PaymentMethod, amount decimal.Decimal) bool {
		switch {
		case method == models.MethodMock:
			return true
		case amount.IsNegative():
			return false
		case method == models.MethodCash:
			return true
		}
		return draw() < successRate
	}
}

// Gateway simulates a payment processor: it waits latency, then asks the
// policy. A settlement that outlives timeout, or the caller's context, fails.
type Gateway struct {
	policy  Policy
	latency time.Duration
	timeout time.Duration
}

func NewGateway(policy Policy, latency, timeout time.Duration) *Gateway {
	return &Gateway{policy: policy, latency: latency, timeout: timeout}
}

// Settle reports whether the payment went through.
func (g *Gateway) Settle(ctx context.Context, method models.PaymentMethod, amount decimal.Decimal) bool {
	if g.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}

	if g.latency > 0 {
		t := time.NewTimer(g.latency)
		defer t.Stop()
		select {
		case <-t.C:
		case <-ctx.Done():
			return false
		}
	} else if ctx.Err() != nil {
		return false
	}

	return g.policy(method, amount)
}
