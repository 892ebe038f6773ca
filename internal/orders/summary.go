package orders

import (
	"sort"

	"github.com/shopspring/decimal"
)

// SummaryLine is the total ordered quantity of one product on a day.
type SummaryLine struct {
	ProductID    int64           `json:"product_id"`
	ProductName  string          `json:"product_name"`
	CategoryID   int64           `json:"category_id"`
	CategoryName string          `json:"category_name"`
	Quantity     int             `json:"quantity"`
	Amount       decimal.Decimal `json:"amount"`
}

type CategorySummary struct {
	CategoryID   int64           `json:"category_id"`
	CategoryName string          `json:"category_name"`
	Quantity     int             `json:"quantity"`
	Amount       decimal.Decimal `json:"amount"`
	Products     []SummaryLine   `json:"products"`
}

type Summary struct {
	Date       string            `json:"date"`
	Quantity   int               `json:"quantity"`
	Amount     decimal.Decimal   `json:"amount"`
	Categories []CategorySummary `json:"categories"`
}

// Summarize groups product lines by category. Categories are ordered by id, products by name.
// Lines for the same product are merged.
func Summarize(date string, lines []SummaryLine) Summary {
	byCategory := make(map[int64]*CategorySummary)
	byProduct := make(map[int64]int)

	s := Summary{Date: date, Amount: decimal.Zero, Categories: []CategorySummary{}}
	var order []int64

	for _, l := range lines {
		cat, ok := byCategory[l.CategoryID]
		if !ok {
			cat = &CategorySummary{CategoryID: l.CategoryID, CategoryName: l.CategoryName, Amount: decimal.Zero}
			byCategory[l.CategoryID] = cat
			order = append(order, l.CategoryID)
		}

		if idx, seen := byProduct[l.ProductID]; seen {
			cat.Products[idx].Quantity += l.Quantity
			cat.Products[idx].Amount = cat.Products[idx].Amount.Add(l.Amount)
		} else {
			byProduct[l.ProductID] = len(cat.Products)
			cat.Products = append(cat.Products, l)
		}

		cat.Quantity += l.Quantity
		cat.Amount = cat.Amount.Add(l.Amount)
		s.Quantity += l.Quantity
		s.Amount = s.Amount.Add(l.Amount)
	}

	sort.Slice(order, func(i, j int) bool { return order[i] < order[j] })
	for _, id := range order {
		cat := byCategory[id]
		sort.SliceStable(cat.Products, func(i, j int) bool {
			return cat.Products[i].ProductName < cat.Products[j].ProductName
		})
		s.Categories = append(s.Categories, *cat)
	}
	return s
}
