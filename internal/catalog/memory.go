package catalog

import (
	"context"
	"strings"
	"sync"
)

// Memory is an in-memory Gateway used in tests and local development.
type Memory struct {
	mu       sync.RWMutex
	products map[string]Product

	// Err, when set, is returned by every call. Lets tests simulate an
	// unavailable catalog.
	Err error
}

// NewMemory creates an in-memory catalog seeded with the given products.
func NewMemory(products ...Product) *Memory {
	m := &Memory{products: make(map[string]Product, len(products))}
	for _, p := range products {
		m.products[p.ID] = p
	}
	return m
}

// Add inserts or replaces a product.
func (m *Memory) Add(p Product) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.products[p.ID] = p
}

// QueryProducts returns products matching the query.
func (m *Memory) QueryProducts(ctx context.Context, q Query) ([]Product, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.Err != nil {
		return nil, m.Err
	}

	var out []Product
	for _, p := range m.products {
		if q.Sphere != "" && !strings.EqualFold(p.Sphere, q.Sphere) {
			continue
		}
		if q.Category != "" && !strings.EqualFold(p.Category, q.Category) {
			continue
		}
		if q.Text != "" && !strings.Contains(strings.ToLower(p.Name), strings.ToLower(q.Text)) {
			continue
		}
		out = append(out, p)
	}
	return out, nil
}

// GetProduct returns the product with the given ID, or nil when unknown.
func (m *Memory) GetProduct(ctx context.Context, id string) (*Product, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.Err != nil {
		return nil, m.Err
	}

	p, ok := m.products[id]
	if !ok {
		return nil, nil
	}
	return &p, nil
}
