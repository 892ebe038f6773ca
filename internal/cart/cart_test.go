package cart

import (
	"testing"

	"github.com/shopspring/decimal"

	"github.com/bakehouse/ordering/internal/domain"
)

func product(id int64, price, mobil, buyer string) domain.Product {
	return domain.Product{
		ID:         id,
		Name:       "Rohlík",
		Price:      decimal.RequireFromString(price),
		PriceMobil: decimal.RequireFromString(mobil),
		PriceBuyer: decimal.RequireFromString(buyer),
		VAT:        12,
		Active:     true,
	}
}

func TestCart_Add(t *testing.T) {
	t.Run("new product starts at quantity one", func(t *testing.T) {
		c := New()
		c.Add(product(1, "10", "8", "7"))

		if c.Len() != 1 {
			t.Fatalf("expected 1 line, got %d", c.Len())
		}
		if c.Items[0].Quantity != 1 {
			t.Errorf("expected quantity 1, got %d", c.Items[0].Quantity)
		}
		if c.Items[0].ID == "" {
			t.Error("expected line id to be set")
		}
	})

	t.Run("existing product increments quantity", func(t *testing.T) {
		c := New()
		p := product(1, "10", "8", "7")
		c.Add(p)
		c.Add(p)
		c.Add(product(2, "5", "4", "3"))

		if c.Len() != 2 {
			t.Fatalf("expected 2 lines, got %d", c.Len())
		}
		if c.Items[0].Quantity != 2 {
			t.Errorf("expected quantity 2, got %d", c.Items[0].Quantity)
		}
	})
}

func TestCart_UpdateQuantity(t *testing.T) {
	tests := []struct {
		name      string
		productID int64
		quantity  int
		wantFound bool
		wantLines int
	}{
		{name: "sets quantity", productID: 1, quantity: 5, wantFound: true, wantLines: 2},
		{name: "zero removes line", productID: 1, quantity: 0, wantFound: true, wantLines: 1},
		{name: "negative removes line", productID: 2, quantity: -3, wantFound: true, wantLines: 1},
		{name: "unknown product", productID: 9, quantity: 2, wantFound: false, wantLines: 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := New()
			c.Add(product(1, "10", "8", "7"))
			c.Add(product(2, "5", "4", "3"))

			found := c.UpdateQuantity(tt.productID, tt.quantity)

			if found != tt.wantFound {
				t.Errorf("expected found %v, got %v", tt.wantFound, found)
			}
			if c.Len() != tt.wantLines {
				t.Errorf("expected %d lines, got %d", tt.wantLines, c.Len())
			}
			for _, item := range c.Items {
				if item.Quantity <= 0 {
					t.Errorf("line %d kept with quantity %d", item.ProductID, item.Quantity)
				}
			}
		})
	}
}

func TestCart_RemoveAndClear(t *testing.T) {
	c := New()
	c.Add(product(1, "10", "8", "7"))
	c.Add(product(2, "5", "4", "3"))

	c.Remove(1)
	if c.Len() != 1 || c.Items[0].ProductID != 2 {
		t.Fatalf("expected only product 2 left, got %+v", c.Items)
	}

	c.Clear()
	if !c.IsEmpty() {
		t.Errorf("expected empty cart, got %d lines", c.Len())
	}
}

func TestCart_Total(t *testing.T) {
	c := New()
	c.Add(product(1, "10.50", "8", "7"))
	c.Add(product(1, "10.50", "8", "7"))
	c.Add(product(2, "5", "4", "3.25"))

	tests := []struct {
		role domain.Role
		want string
	}{
		{role: domain.RoleUser, want: "26"},
		{role: domain.RoleStore, want: "17.25"},
		{role: domain.RoleMobil, want: "20"},
		{role: domain.RoleBuyer, want: "20"},
	}

	for _, tt := range tests {
		t.Run(string(tt.role), func(t *testing.T) {
			got := c.Total(tt.role)
			if !got.Equal(decimal.RequireFromString(tt.want)) {
				t.Errorf("expected %s, got %s", tt.want, got)
			}
		})
	}

	if got := c.RetailTotal(); !got.Equal(decimal.RequireFromString("26")) {
		t.Errorf("expected retail total 26, got %s", got)
	}
}

func TestParseKind(t *testing.T) {
	if k, ok := ParseKind("order"); !ok || k != KindOrder {
		t.Errorf("expected order kind, got %q %v", k, ok)
	}
	if k, ok := ParseKind("receipt"); !ok || k != KindReceipt {
		t.Errorf("expected receipt kind, got %q %v", k, ok)
	}
	if k, ok := ParseKind("return"); !ok || k != KindReturn {
		t.Errorf("expected return kind, got %q %v", k, ok)
	}
	if _, ok := ParseKind("wishlist"); ok {
		t.Error("expected unknown kind to be rejected")
	}
}
