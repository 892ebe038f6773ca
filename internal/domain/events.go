package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type OrderCreatedEvent struct {
	OrderID       string          `json:"order_id"`
	UserID        string          `json:"user_id"`
	CustomerName  string          `json:"customer_name,omitempty"`
	CustomerEmail string          `json:"customer_email,omitempty"`
	Date          string          `json:"date"`
	Total         decimal.Decimal `json:"total"`
	Note          string          `json:"note,omitempty"`
	Items         []OrderItem     `json:"items"`
	Timestamp     time.Time       `json:"timestamp"`
}

type ReceiptCreatedEvent struct {
	ReceiptID  string    `json:"receipt_id"`
	ReceiptNo  string    `json:"receipt_no"`
	SellerID   string    `json:"seller_id"`
	SellerName string    `json:"seller_name"`
	Receipt    Receipt   `json:"receipt"`
	Timestamp  time.Time `json:"timestamp"`
}

type InvoiceReceivedEvent struct {
	InvoiceID     string          `json:"invoice_id"`
	SupplierID    string          `json:"supplier_id"`
	SupplierName  string          `json:"supplier_name"`
	InvoiceNumber string          `json:"invoice_number"`
	InvoiceDate   string          `json:"invoice_date"`
	TotalAmount   decimal.Decimal `json:"total_amount"`
	ItemsCount    int             `json:"items_count"`
	Unmapped      int             `json:"unmapped"`
	Timestamp     time.Time       `json:"timestamp"`
}
