package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type Ingredient struct {
	ID          int64               `json:"id"`
	Name        string              `json:"name"`
	CategoryID  *int64              `json:"category_id,omitempty"`
	Unit        string              `json:"unit"`
	KiloPerUnit float64             `json:"kilo_per_unit"`
	Package     *float64            `json:"package,omitempty"`
	Price       decimal.NullDecimal `json:"price"`
	VAT         *int                `json:"vat,omitempty"`
	EAN         string              `json:"ean,omitempty"`
	Active      bool                `json:"active"`
	StoreOnly   bool                `json:"store_only"`
	Quantity    float64             `json:"quantity"`
}

// SupplierCode maps a supplier's product code to one of our ingredients.
type SupplierCode struct {
	ID           int64           `json:"id"`
	IngredientID int64           `json:"ingredient_id"`
	SupplierID   string          `json:"supplier_id"`
	ProductCode  string          `json:"product_code"`
	Price        decimal.Decimal `json:"price"`
	Active       bool            `json:"is_active"`
}

type UnmappedCodeStatus string

const (
	UnmappedPending UnmappedCodeStatus = "pending"
	UnmappedMapped  UnmappedCodeStatus = "mapped"
	UnmappedIgnored UnmappedCodeStatus = "ignored"
)

// UnmappedCode is a supplier code seen on an invoice with no ingredient mapping yet.
type UnmappedCode struct {
	ID                    string             `json:"id"`
	SupplierID            string             `json:"supplier_id"`
	ProductCode           string             `json:"product_code"`
	Description           string             `json:"description,omitempty"`
	Unit                  string             `json:"unit_of_measure,omitempty"`
	LastSeenPrice         decimal.Decimal    `json:"last_seen_price"`
	LastSeenQuantity      float64            `json:"last_seen_quantity"`
	SuggestedIngredientID *int64             `json:"suggested_ingredient_id,omitempty"`
	SuggestionConfidence  float64            `json:"suggestion_confidence"`
	Status                UnmappedCodeStatus `json:"status"`
	MappedIngredientID    *int64             `json:"mapped_to_ingredient_id,omitempty"`
	OccurrenceCount       int                `json:"occurrence_count"`
	LastSeenAt            time.Time          `json:"last_seen_at"`
}

type InvoiceLine struct {
	ProductCode  string          `json:"product_code"`
	Description  string          `json:"description"`
	Quantity     float64         `json:"quantity"`
	Unit         string          `json:"unit,omitempty"`
	UnitPrice    decimal.Decimal `json:"unit_price"`
	IngredientID *int64          `json:"ingredient_id,omitempty"`
}

// ReceivedInvoice is a supplier invoice entered into the pantry.
type ReceivedInvoice struct {
	ID            string          `json:"id"`
	SupplierID    string          `json:"supplier_id"`
	SupplierName  string          `json:"supplier_name,omitempty"`
	InvoiceNumber string          `json:"invoice_number"`
	InvoiceDate   string          `json:"invoice_date"`
	TotalAmount   decimal.Decimal `json:"total_amount"`
	Lines         []InvoiceLine   `json:"lines"`
	CreatedAt     time.Time       `json:"created_at"`
}
