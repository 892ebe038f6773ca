package orders

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"

	"github.com/bakehouse/ordering/internal/domain"
)

var (
	ErrOrderLocked     = errors.New("order is locked")
	ErrInvalidQuantity = errors.New("quantity must not be negative")
)

type OrderRepository struct {
	db *sql.DB
}

func NewOrderRepository(db *sql.DB) *OrderRepository {
	return &OrderRepository{db: db}
}

const orderColumns = `id, date::text, status, total, user_id, COALESCE(note, ''), COALESCE(paid_by, ''),
	COALESCE(driver_id::text, ''), is_locked, created_at`

func scanOrder(s interface{ Scan(...any) error }, o *domain.Order) error {
	return s.Scan(&o.ID, &o.Date, &o.Status, &o.Total, &o.UserID, &o.Note, &o.PaidBy, &o.DriverID, &o.IsLocked, &o.CreatedAt)
}

func (r *OrderRepository) InsertOrder(ctx context.Context, order *domain.Order) error {
	order.ID = uuid.New().String()

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO orders (id, date, status, total, user_id, note, paid_by, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, NULLIF($6, ''), NULLIF($7, ''), $8, $8)
	`, order.ID, order.Date, order.Status, order.Total, order.UserID, order.Note, order.PaidBy, order.CreatedAt)
	if err != nil {
		order.ID = ""
		return err
	}
	return nil
}

// InsertOrderItems writes every item in a single statement.
func (r *OrderRepository) InsertOrderItems(ctx context.Context, orderID string, items []domain.OrderItem) error {
	if len(items) == 0 {
		return nil
	}

	ids := make([]string, len(items))
	products := make([]int64, len(items))
	quantities := make([]int64, len(items))
	prices := make([]string, len(items))
	vats := make([]int64, len(items))
	for i := range items {
		items[i].ID = uuid.New().String()
		items[i].OrderID = orderID
		ids[i] = items[i].ID
		products[i] = items[i].ProductID
		quantities[i] = int64(items[i].Quantity)
		prices[i] = items[i].Price.String()
		vats[i] = int64(items[i].VAT)
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO order_items (id, order_id, product_id, quantity, price, vat)
		SELECT unnest($1::uuid[]), $2, unnest($3::bigint[]), unnest($4::int[]), unnest($5::numeric[]), unnest($6::int[])
	`, pq.Array(ids), orderID, pq.Array(products), pq.Array(quantities), pq.Array(prices), pq.Array(vats))
	return err
}

func (r *OrderRepository) GetByID(ctx context.Context, id string) (*domain.Order, error) {
	if !domain.ValidID(id) {
		return nil, nil
	}
	order := &domain.Order{}

	err := scanOrder(r.db.QueryRowContext(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1`, id), order)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT id, order_id, product_id, quantity, price, vat, checked
		FROM order_items
		WHERE order_id = $1
		ORDER BY product_id
	`, id)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	order.Items = []domain.OrderItem{}
	for rows.Next() {
		var item domain.OrderItem
		if err := rows.Scan(&item.ID, &item.OrderID, &item.ProductID, &item.Quantity, &item.Price, &item.VAT, &item.Checked); err != nil {
			return nil, err
		}
		order.Items = append(order.Items, item)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return order, nil
}

type ListFilter struct {
	UserID string
	From   string
	To     string
	Status domain.OrderStatus
}

func (f ListFilter) where() (string, []any) {
	var conds []string
	var args []any
	add := func(cond string, v any) {
		args = append(args, v)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}
	if f.UserID != "" {
		add("user_id = $%d", f.UserID)
	}
	if f.From != "" {
		add("date >= $%d", f.From)
	}
	if f.To != "" {
		add("date <= $%d", f.To)
	}
	if f.Status != "" {
		add("status = $%d", f.Status)
	}
	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

// List loads matching orders and all of their items in two queries.
func (r *OrderRepository) List(ctx context.Context, filter ListFilter) ([]domain.Order, error) {
	where, args := filter.where()
	rows, err := r.db.QueryContext(ctx, `SELECT `+orderColumns+` FROM orders`+where+` ORDER BY date DESC, created_at DESC`, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	orderMap := make(map[string]*domain.Order)
	var orderIDs []string

	for rows.Next() {
		var order domain.Order
		if err := scanOrder(rows, &order); err != nil {
			return nil, err
		}
		order.Items = []domain.OrderItem{}
		orderMap[order.ID] = &order
		orderIDs = append(orderIDs, order.ID)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	if len(orderIDs) == 0 {
		return []domain.Order{}, nil
	}

	itemRows, err := r.db.QueryContext(ctx, `
		SELECT id, order_id, product_id, quantity, price, vat, checked
		FROM order_items
		WHERE order_id = ANY($1)
		ORDER BY product_id
	`, pq.Array(orderIDs))
	if err != nil {
		return nil, err
	}
	defer func() { _ = itemRows.Close() }()

	for itemRows.Next() {
		var item domain.OrderItem
		if err := itemRows.Scan(&item.ID, &item.OrderID, &item.ProductID, &item.Quantity, &item.Price, &item.VAT, &item.Checked); err != nil {
			return nil, err
		}
		order := orderMap[item.OrderID]
		order.Items = append(order.Items, item)
	}

	if err := itemRows.Err(); err != nil {
		return nil, err
	}

	orders := make([]domain.Order, 0, len(orderIDs))
	for _, id := range orderIDs {
		orders = append(orders, *orderMap[id])
	}

	return orders, nil
}

func (r *OrderRepository) UpdateStatus(ctx context.Context, id string, status domain.OrderStatus) (*domain.Order, error) {
	if !domain.ValidID(id) {
		return nil, nil
	}
	result, err := r.db.ExecContext(ctx, `
		UPDATE orders SET status = $1, updated_at = NOW()
		WHERE id = $2
	`, status, id)
	if err != nil {
		return nil, err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return nil, err
	}

	if rowsAffected == 0 {
		return nil, nil
	}

	return r.GetByID(ctx, id)
}

func (r *OrderRepository) SetLocked(ctx context.Context, id string, locked bool) (*domain.Order, error) {
	if !domain.ValidID(id) {
		return nil, nil
	}
	result, err := r.db.ExecContext(ctx, `
		UPDATE orders SET is_locked = $1, updated_at = NOW()
		WHERE id = $2
	`, locked, id)
	if err != nil {
		return nil, err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return nil, err
	}

	if rowsAffected == 0 {
		return nil, nil
	}

	return r.GetByID(ctx, id)
}

// UpdateItemQuantity changes one line of an unlocked order, logs the change and recomputes
// the order total. It returns (nil, nil) when the order or the item does not exist.
func (r *OrderRepository) UpdateItemQuantity(ctx context.Context, orderID, itemID string, quantity int, changedBy string) (*domain.Order, error) {
	if quantity < 0 {
		return nil, ErrInvalidQuantity
	}
	if !domain.ValidID(orderID) || !domain.ValidID(itemID) {
		return nil, nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	var locked bool
	err = tx.QueryRowContext(ctx, `SELECT is_locked FROM orders WHERE id = $1 FOR UPDATE`, orderID).Scan(&locked)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if locked {
		return nil, ErrOrderLocked
	}

	var old int
	err = tx.QueryRowContext(ctx, `
		SELECT quantity FROM order_items WHERE id = $1 AND order_id = $2
	`, itemID, orderID).Scan(&old)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	if _, err := tx.ExecContext(ctx, `UPDATE order_items SET quantity = $1 WHERE id = $2`, quantity, itemID); err != nil {
		return nil, err
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO order_items_history (order_item_id, old_quantity, new_quantity, changed_by)
		VALUES ($1, $2, $3, NULLIF($4, '')::uuid)
	`, itemID, old, quantity, changedBy); err != nil {
		return nil, err
	}

	if _, err := tx.ExecContext(ctx, `
		UPDATE orders SET total = COALESCE((
			SELECT SUM(quantity * price) FROM order_items WHERE order_id = $1
		), 0), updated_at = NOW()
		WHERE id = $1
	`, orderID); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}

	return r.GetByID(ctx, orderID)
}

func (r *OrderRepository) SetItemChecked(ctx context.Context, orderID, itemID string, checked bool) error {
	if !domain.ValidID(orderID) || !domain.ValidID(itemID) {
		return domain.ErrNotFound
	}
	result, err := r.db.ExecContext(ctx, `
		UPDATE order_items SET checked = $1 WHERE id = $2 AND order_id = $3
	`, checked, itemID, orderID)
	if err != nil {
		return err
	}

	n, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *OrderRepository) ItemHistory(ctx context.Context, orderID string) ([]domain.OrderItemChange, error) {
	if !domain.ValidID(orderID) {
		return []domain.OrderItemChange{}, nil
	}
	rows, err := r.db.QueryContext(ctx, `
		SELECT h.order_item_id, h.old_quantity, h.new_quantity, COALESCE(h.changed_by::text, ''), h.changed_at
		FROM order_items_history h
		JOIN order_items i ON i.id = h.order_item_id
		WHERE i.order_id = $1
		ORDER BY h.changed_at
	`, orderID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	changes := []domain.OrderItemChange{}
	for rows.Next() {
		var c domain.OrderItemChange
		if err := rows.Scan(&c.OrderItemID, &c.OldQuantity, &c.NewQuantity, &c.ChangedBy, &c.ChangedAt); err != nil {
			return nil, err
		}
		changes = append(changes, c)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return changes, nil
}

// SummaryLines returns one row per ordered product on date, across all orders.
func (r *OrderRepository) SummaryLines(ctx context.Context, date string) ([]SummaryLine, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT p.id, p.name, COALESCE(c.id, 0), COALESCE(c.name, ''), SUM(i.quantity), SUM(i.quantity * i.price)
		FROM order_items i
		JOIN orders o ON o.id = i.order_id
		JOIN products p ON p.id = i.product_id
		LEFT JOIN categories c ON c.id = p.category_id
		WHERE o.date = $1
		GROUP BY p.id, p.name, c.id, c.name
	`, date)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	lines := []SummaryLine{}
	for rows.Next() {
		var l SummaryLine
		if err := rows.Scan(&l.ProductID, &l.ProductName, &l.CategoryID, &l.CategoryName, &l.Quantity, &l.Amount); err != nil {
			return nil, err
		}
		lines = append(lines, l)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return lines, nil
}

// Stop is an order on a delivery day together with where it goes.
type Stop struct {
	OrderID  string             `json:"order_id"`
	UserID   string             `json:"user_id"`
	FullName string             `json:"full_name"`
	Address  string             `json:"address"`
	Status   domain.OrderStatus `json:"status"`
	Total    decimal.Decimal    `json:"total"`
}

func (r *OrderRepository) Stops(ctx context.Context, date string) ([]Stop, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT o.id, o.user_id, COALESCE(p.full_name, ''), COALESCE(p.address, ''), o.status, o.total
		FROM orders o
		JOIN profiles p ON p.id = o.user_id
		WHERE o.date = $1
		ORDER BY p.full_name
	`, date)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	stops := []Stop{}
	for rows.Next() {
		var s Stop
		if err := rows.Scan(&s.OrderID, &s.UserID, &s.FullName, &s.Address, &s.Status, &s.Total); err != nil {
			return nil, err
		}
		stops = append(stops, s)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return stops, nil
}
