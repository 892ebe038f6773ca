package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type ReceiptItem struct {
	ID        string          `json:"id"`
	ReceiptID string          `json:"receipt_id"`
	ProductID int64           `json:"product_id"`
	Name      string          `json:"name,omitempty"`
	Quantity  int             `json:"quantity"`
	Price     decimal.Decimal `json:"price"`
	VAT       int             `json:"vat"`
}

// Receipt is a point-of-sale sale made by a store user.
type Receipt struct {
	ID        string          `json:"id"`
	ReceiptNo string          `json:"receipt_no"`
	Date      time.Time       `json:"date"`
	Total     decimal.Decimal `json:"total"`
	PaidBy    PaidBy          `json:"paid_by,omitempty"`
	SellerID  string          `json:"seller_id"`
	BuyerID   string          `json:"buyer_id,omitempty"`
	Items     []ReceiptItem   `json:"items"`
	CreatedAt time.Time       `json:"created_at"`
}

// StoredItem is the stock of one product held by a store.
type StoredItem struct {
	UserID    string `json:"user_id"`
	ProductID int64  `json:"product_id"`
	Quantity  int    `json:"quantity"`
}
