// Package catalog serves the product list and its administration.
package catalog

import (
	"github.com/bakehouse/ordering/internal/domain"
)

// Section is one category with the products a role may see in it.
type Section struct {
	Category domain.Category  `json:"category"`
	Products []domain.Product `json:"products"`
}

// Visible keeps the products role may see, preserving order.
func Visible(role domain.Role, products []domain.Product) []domain.Product {
	out := make([]domain.Product, 0, len(products))
	for _, p := range products {
		if role.Sees(p) {
			out = append(out, p)
		}
	}
	return out
}

// GroupByCategory groups products under their categories in category order. Empty categories
// are dropped. Products whose category is unknown go to a trailing section with a zero category.
func GroupByCategory(categories []domain.Category, products []domain.Product) []Section {
	byCategory := make(map[int64][]domain.Product, len(categories))
	known := make(map[int64]bool, len(categories))
	for _, c := range categories {
		known[c.ID] = true
	}

	var orphans []domain.Product
	for _, p := range products {
		if !known[p.CategoryID] {
			orphans = append(orphans, p)
			continue
		}
		byCategory[p.CategoryID] = append(byCategory[p.CategoryID], p)
	}

	sections := make([]Section, 0, len(categories)+1)
	for _, c := range categories {
		if len(byCategory[c.ID]) == 0 {
			continue
		}
		sections = append(sections, Section{Category: c, Products: byCategory[c.ID]})
	}
	if len(orphans) > 0 {
		sections = append(sections, Section{Products: orphans})
	}
	return sections
}
