package catalog

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestMemoryQueryProducts(t *testing.T) {
	m := NewMemory(
		Product{ID: "p1", Name: "Guitar", Category: "music", Sphere: "safesphere"},
		Product{ID: "p2", Name: "Gadget", Category: "electronics", Sphere: "opensphere"},
	)

	t.Run("filters_by_sphere", func(t *testing.T) {
		products, err := m.QueryProducts(context.Background(), Query{Sphere: "safesphere"})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(products) != 1 || products[0].ID != "p1" {
			t.Errorf("expected only the safesphere product, got %+v", products)
		}
	})

	t.Run("filters_by_text", func(t *testing.T) {
		products, err := m.QueryProducts(context.Background(), Query{Text: "gad"})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(products) != 1 || products[0].ID != "p2" {
			t.Errorf("expected only the matching product, got %+v", products)
		}
	})

	t.Run("scripted_error", func(t *testing.T) {
		failing := NewMemory()
		failing.Err = errors.New("down")
		if _, err := failing.QueryProducts(context.Background(), Query{}); err == nil {
			t.Error("expected scripted error")
		}
	})
}

func TestMemoryGetProduct(t *testing.T) {
	m := NewMemory(Product{ID: "p1", Name: "Guitar"})

	p, err := m.GetProduct(context.Background(), "p1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p == nil || p.Name != "Guitar" {
		t.Errorf("expected the seeded product, got %+v", p)
	}

	p, err = m.GetProduct(context.Background(), "unknown")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p != nil {
		t.Errorf("expected nil for unknown ID, got %+v", p)
	}
}

func TestFailover(t *testing.T) {
	t.Run("uses_primary_when_healthy", func(t *testing.T) {
		primary := NewMemory(Product{ID: "p1", Name: "Primary"})
		secondary := NewMemory(Product{ID: "p1", Name: "Secondary"})
		f := NewFailover(primary, secondary)

		p, err := f.GetProduct(context.Background(), "p1")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if p.Name != "Primary" {
			t.Errorf("expected primary result, got %q", p.Name)
		}
	})

	t.Run("falls_back_on_error", func(t *testing.T) {
		primary := NewMemory()
		primary.Err = errors.New("down")
		secondary := NewMemory(Product{ID: "p1", Name: "Secondary"})
		f := NewFailover(primary, secondary)

		p, err := f.GetProduct(context.Background(), "p1")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if p == nil || p.Name != "Secondary" {
			t.Errorf("expected fallback result, got %+v", p)
		}

		products, err := f.QueryProducts(context.Background(), Query{})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(products) != 1 {
			t.Errorf("expected fallback query result, got %+v", products)
		}
	})

	t.Run("unknown_id_does_not_fall_back", func(t *testing.T) {
		primary := NewMemory()
		secondary := NewMemory(Product{ID: "p1", Name: "Secondary"})
		f := NewFailover(primary, secondary)

		p, err := f.GetProduct(context.Background(), "p1")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if p != nil {
			t.Errorf("a definitive not-found must not consult the fallback, got %+v", p)
		}
	})
}

func TestClient(t *testing.T) {
	t.Run("query_products", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Header.Get("X-API-Key") != "test-key" {
				w.WriteHeader(http.StatusUnauthorized)
				return
			}
			if r.URL.Path != "/api/v1/products" {
				w.WriteHeader(http.StatusNotFound)
				return
			}
			if r.URL.Query().Get("sphere") != "safesphere" {
				t.Errorf("expected sphere query param, got %q", r.URL.RawQuery)
			}
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"products":[{"id":"p1","name":"Guitar","price":300}]}`))
		}))
		defer srv.Close()

		c := NewClient(srv.URL, "test-key", srv.Client())
		products, err := c.QueryProducts(context.Background(), Query{Sphere: "safesphere"})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(products) != 1 || products[0].Price != 300 {
			t.Errorf("unexpected products: %+v", products)
		}
	})

	t.Run("get_product_not_found", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNotFound)
		}))
		defer srv.Close()

		c := NewClient(srv.URL, "test-key", srv.Client())
		p, err := c.GetProduct(context.Background(), "missing")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if p != nil {
			t.Errorf("expected nil product for 404, got %+v", p)
		}
	})

	t.Run("server_error", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		}))
		defer srv.Close()

		c := NewClient(srv.URL, "test-key", srv.Client())
		if _, err := c.QueryProducts(context.Background(), Query{}); err == nil {
			t.Error("expected error for 500 response")
		}
	})
}
