// Package cart keeps per-user shopping carts and turns them into orders and receipts.
package cart

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/bakehouse/ordering/internal/domain"
)

// Kind separates customer order carts from point-of-sale receipt carts and end-of-day return carts.
type Kind string

const (
	KindOrder   Kind = "order"
	KindReceipt Kind = "receipt"
	KindReturn  Kind = "return"
)

func ParseKind(s string) (Kind, bool) {
	switch Kind(s) {
	case KindOrder:
		return KindOrder, true
	case KindReceipt:
		return KindReceipt, true
	case KindReturn:
		return KindReturn, true
	}
	return "", false
}

type Cart struct {
	Items []domain.CartItem `json:"items"`
}

func New() *Cart {
	return &Cart{Items: []domain.CartItem{}}
}

// Add puts one more unit of p into the cart.
func (c *Cart) Add(p domain.Product) {
	for i := range c.Items {
		if c.Items[i].ProductID == p.ID {
			c.Items[i].Quantity++
			return
		}
	}
	c.Items = append(c.Items, domain.CartItem{
		ID:        uuid.NewString(),
		ProductID: p.ID,
		Product:   p,
		Quantity:  1,
	})
}

func (c *Cart) Remove(productID int64) {
	kept := c.Items[:0]
	for _, item := range c.Items {
		if item.ProductID != productID {
			kept = append(kept, item)
		}
	}
	c.Items = kept
}

// UpdateQuantity sets the quantity of a line. Lines that drop to zero or below are removed.
// It reports whether the product was in the cart.
func (c *Cart) UpdateQuantity(productID int64, quantity int) bool {
	found := false
	kept := c.Items[:0]
	for _, item := range c.Items {
		if item.ProductID == productID {
			found = true
			item.Quantity = quantity
		}
		if item.Quantity > 0 {
			kept = append(kept, item)
		}
	}
	c.Items = kept
	return found
}

func (c *Cart) Clear() {
	c.Items = []domain.CartItem{}
}

func (c *Cart) Len() int {
	return len(c.Items)
}

func (c *Cart) IsEmpty() bool {
	return len(c.Items) == 0
}

// Total sums the cart at the price tier of role.
func (c *Cart) Total(role domain.Role) decimal.Decimal {
	total := decimal.Zero
	for _, item := range c.Items {
		total = total.Add(role.PriceOf(item.Product).Mul(decimal.NewFromInt(int64(item.Quantity))))
	}
	return total
}

// RetailTotal sums the cart at the shelf price, which is what receipts charge and returns credit.
func (c *Cart) RetailTotal() decimal.Decimal {
	total := decimal.Zero
	for _, item := range c.Items {
		total = total.Add(item.Product.Price.Mul(decimal.NewFromInt(int64(item.Quantity))))
	}
	return total
}

func (c *Cart) clone() *Cart {
	items := make([]domain.CartItem, len(c.Items))
	copy(items, c.Items)
	return &Cart{Items: items}
}
