package domain

import "github.com/shopspring/decimal"

type Product struct {
	ID          int64           `json:"id"`
	Code        string          `json:"code,omitempty"`
	Name        string          `json:"name"`
	NameVi      string          `json:"name_vi,omitempty"`
	Description string          `json:"description,omitempty"`
	Price       decimal.Decimal `json:"price"`
	PriceMobil  decimal.Decimal `json:"price_mobil"`
	PriceBuyer  decimal.Decimal `json:"price_buyer"`
	VAT         int             `json:"vat"`
	Active      bool            `json:"active"`
	Buyer       bool            `json:"buyer"`
	Store       bool            `json:"store"`
	CategoryID  int64           `json:"category_id"`
	Allergens   string          `json:"allergens,omitempty"`
	Image       string          `json:"image,omitempty"`
}

type Category struct {
	ID    int64  `json:"id"`
	Name  string `json:"name"`
	Store bool   `json:"store"`
	Buyer bool   `json:"buyer"`
}
