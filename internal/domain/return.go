package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type ReturnItem struct {
	ID        string          `json:"id"`
	ReturnID  string          `json:"return_id"`
	ProductID int64           `json:"product_id"`
	Name      string          `json:"name,omitempty"`
	Quantity  int             `json:"quantity"`
	Price     decimal.Decimal `json:"price"`
	VAT       int             `json:"vat"`
}

// Return is unsold goods a store or mobile seller sends back at the end of a day.
// There is at most one per user and date.
type Return struct {
	ID        string          `json:"id"`
	Date      string          `json:"date"`
	Total     decimal.Decimal `json:"total"`
	UserID    string          `json:"user_id"`
	Items     []ReturnItem    `json:"items"`
	CreatedAt time.Time       `json:"created_at"`
}
