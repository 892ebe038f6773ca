package domain

import "github.com/shopspring/decimal"

// Role gates the price tier and which parts of the catalog a user sees.
type Role string

const (
	RoleAdmin      Role = "admin"
	RoleUser       Role = "user"
	RoleStore      Role = "store"
	RoleBuyer      Role = "buyer"
	RoleMobil      Role = "mobil"
	RoleExpedition Role = "expedition"
	RoleDriver     Role = "driver"
)

func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleUser, RoleStore, RoleBuyer, RoleMobil, RoleExpedition, RoleDriver:
		return true
	}
	return false
}

// PriceOf returns the unit price the role pays for p.
func (r Role) PriceOf(p Product) decimal.Decimal {
	switch r {
	case RoleUser:
		return p.Price
	case RoleStore:
		return p.PriceBuyer
	default:
		return p.PriceMobil
	}
}

// Sees reports whether a product is visible to the role.
func (r Role) Sees(p Product) bool {
	if !p.Active {
		return r == RoleAdmin
	}
	switch r {
	case RoleStore:
		return p.Store
	case RoleBuyer:
		return p.Buyer
	default:
		return true
	}
}

type Profile struct {
	ID       string `json:"id"`
	FullName string `json:"full_name"`
	Email    string `json:"email,omitempty"`
	Role     Role   `json:"role"`
	Shortcut string `json:"shortcut,omitempty"`
	Address  string `json:"address,omitempty"`
	PaidBy   PaidBy `json:"paid_by,omitempty"`
}
