package domain

// CartItem is one product line in a cart. Quantity is always positive.
type CartItem struct {
	ID        string  `json:"id"`
	ProductID int64   `json:"product_id"`
	Product   Product `json:"product"`
	Quantity  int     `json:"quantity"`
}
