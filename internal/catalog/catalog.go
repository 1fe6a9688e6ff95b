// Package catalog defines the read-only product catalog capability the
// purchasing engine consumes. The catalog itself is an external service;
// this package holds the narrow interface, an HTTP client, a failover
// decorator, and an in-memory implementation for tests and local dev.
package catalog

import (
	"context"
	"strings"
)

// Product is the slice of a catalog product the purchasing engine cares
// about. Prices are in smallest currency units; trust scores are 0-100.
type Product struct {
	ID         string   `json:"id"`
	Name       string   `json:"name"`
	Price      int64    `json:"price"`
	TrustScore int      `json:"trust_score"`
	Tags       []string `json:"tags"`
	Category   string   `json:"category"`
	Sphere     string   `json:"sphere"`
}

// HasTag reports whether the product carries the given tag
// (case-insensitive).
func (p *Product) HasTag(tag string) bool {
	for _, t := range p.Tags {
		if strings.EqualFold(t, tag) {
			return true
		}
	}
	return false
}

// Query describes a catalog product search.
type Query struct {
	Sphere   string
	Text     string
	Category string
}

// Gateway is the read-only catalog capability.
type Gateway interface {
	QueryProducts(ctx context.Context, q Query) ([]Product, error)
	GetProduct(ctx context.Context, id string) (*Product, error)
}
