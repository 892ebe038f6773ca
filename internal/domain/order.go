package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type OrderStatus string

const (
	OrderStatusPreOrder    OrderStatus = "Pre-order"
	OrderStatusNew         OrderStatus = "New"
	OrderStatusExpeditionR OrderStatus = "Expedice R"
	OrderStatusExpeditionO OrderStatus = "Expedice O"
	OrderStatusTransport   OrderStatus = "Přeprava"
	OrderStatusPaid        OrderStatus = "Paid"
)

var OrderStatuses = []OrderStatus{
	OrderStatusPreOrder,
	OrderStatusNew,
	OrderStatusExpeditionR,
	OrderStatusExpeditionO,
	OrderStatusTransport,
	OrderStatusPaid,
}

func (s OrderStatus) Valid() bool {
	for _, status := range OrderStatuses {
		if s == status {
			return true
		}
	}
	return false
}

type PaidBy string

const (
	PaidByCash     PaidBy = "Hotově"
	PaidByCard     PaidBy = "Karta"
	PaidByTransfer PaidBy = "Příkazem"
	PaidByNone     PaidBy = "-"
)

// DateLayout is the layout of delivery dates on orders.
const DateLayout = "2006-01-02"

type OrderItem struct {
	ID        string          `json:"id"`
	OrderID   string          `json:"order_id"`
	ProductID int64           `json:"product_id"`
	Quantity  int             `json:"quantity"`
	Price     decimal.Decimal `json:"price"`
	VAT       int             `json:"vat"`
	Checked   bool            `json:"checked"`
}

type Order struct {
	ID        string          `json:"id"`
	Date      string          `json:"date"`
	Status    OrderStatus     `json:"status"`
	Total     decimal.Decimal `json:"total"`
	UserID    string          `json:"user_id"`
	Note      string          `json:"note,omitempty"`
	PaidBy    PaidBy          `json:"paid_by,omitempty"`
	DriverID  string          `json:"driver_id,omitempty"`
	IsLocked  bool            `json:"is_locked"`
	Items     []OrderItem     `json:"items"`
	CreatedAt time.Time       `json:"created_at"`
}

// OrderItemChange records a quantity edit made after checkout.
type OrderItemChange struct {
	OrderItemID string    `json:"order_item_id"`
	OldQuantity int       `json:"old_quantity"`
	NewQuantity int       `json:"new_quantity"`
	ChangedBy   string    `json:"changed_by"`
	ChangedAt   time.Time `json:"changed_at"`
}
