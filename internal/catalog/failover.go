package catalog

import (
	"context"

	"daswos/internal/logger"
)

// Failover is a Gateway that queries a primary implementation and falls
// back to a secondary one when the primary fails. The fallback is an
// explicit strategy object so callers never branch on concrete types.
type Failover struct {
	primary   Gateway
	secondary Gateway
}

// NewFailover creates a Gateway that prefers primary and falls back to
// secondary on error.
func NewFailover(primary, secondary Gateway) *Failover {
	return &Failover{primary: primary, secondary: secondary}
}

// QueryProducts queries the primary gateway, falling back on error.
func (f *Failover) QueryProducts(ctx context.Context, q Query) ([]Product, error) {
	products, err := f.primary.QueryProducts(ctx, q)
	if err == nil {
		return products, nil
	}
	logger.Get().Warnw("catalog primary query failed, using fallback", "error", err)
	return f.secondary.QueryProducts(ctx, q)
}

// GetProduct fetches from the primary gateway, falling back on error.
// A nil product without error (unknown ID) is a definitive answer and
// does not trigger the fallback.
func (f *Failover) GetProduct(ctx context.Context, id string) (*Product, error) {
	product, err := f.primary.GetProduct(ctx, id)
	if err == nil {
		return product, nil
	}
	logger.Get().Warnw("catalog primary lookup failed, using fallback", "error", err, "product_id", id)
	return f.secondary.GetProduct(ctx, id)
}
