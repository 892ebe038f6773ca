package receipts

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/bakehouse/ordering/internal/domain"
)

const uniqueViolation = "23505"

type ReceiptRepository struct {
	db *sql.DB
}

func NewReceiptRepository(db *sql.DB) *ReceiptRepository {
	return &ReceiptRepository{db: db}
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func (r *ReceiptRepository) NextReceiptNo(ctx context.Context, _ string, shortcut string, year int) (string, error) {
	var latest string
	err := r.db.QueryRowContext(ctx, `
		SELECT receipt_no FROM receipts
		WHERE receipt_no LIKE $1
		ORDER BY length(receipt_no) DESC, receipt_no DESC
		LIMIT 1
	`, likeEscaper.Replace(Prefix(shortcut, year))+"%").Scan(&latest)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return "", err
	}
	return NextNumber(latest, shortcut, year)
}

// InsertReceipt maps a clash on receipt_no to domain.ErrDuplicateReceiptNo.
func (r *ReceiptRepository) InsertReceipt(ctx context.Context, receipt *domain.Receipt) error {
	id := uuid.New().String()

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO receipts (id, receipt_no, date, total, paid_by, seller_id, buyer_id, created_at)
		VALUES ($1, $2, $3, $4, NULLIF($5, ''), $6, NULLIF($7, '')::uuid, $8)
	`, id, receipt.ReceiptNo, receipt.Date, receipt.Total, receipt.PaidBy, receipt.SellerID, receipt.BuyerID, receipt.CreatedAt)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return domain.ErrDuplicateReceiptNo
		}
		return err
	}

	receipt.ID = id
	return nil
}

func (r *ReceiptRepository) InsertReceiptItems(ctx context.Context, receiptID string, items []domain.ReceiptItem) error {
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
		items[i].ReceiptID = receiptID
		ids[i] = items[i].ID
		products[i] = items[i].ProductID
		quantities[i] = int64(items[i].Quantity)
		prices[i] = items[i].Price.String()
		vats[i] = int64(items[i].VAT)
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO receipt_items (id, receipt_id, product_id, quantity, price, vat)
		SELECT unnest($1::uuid[]), $2, unnest($3::bigint[]), unnest($4::int[]), unnest($5::numeric[]), unnest($6::int[])
	`, pq.Array(ids), receiptID, pq.Array(products), pq.Array(quantities), pq.Array(prices), pq.Array(vats))
	return err
}

const receiptColumns = `id, receipt_no, date, total, COALESCE(paid_by, ''), seller_id, COALESCE(buyer_id::text, ''), created_at`

func scanReceipt(s interface{ Scan(...any) error }, rc *domain.Receipt) error {
	return s.Scan(&rc.ID, &rc.ReceiptNo, &rc.Date, &rc.Total, &rc.PaidBy, &rc.SellerID, &rc.BuyerID, &rc.CreatedAt)
}

func (r *ReceiptRepository) GetByID(ctx context.Context, id string) (*domain.Receipt, error) {
	if !domain.ValidID(id) {
		return nil, nil
	}
	receipt := &domain.Receipt{}
	err := scanReceipt(r.db.QueryRowContext(ctx, `SELECT `+receiptColumns+` FROM receipts WHERE id = $1`, id), receipt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}

	items, err := r.items(ctx, []string{id})
	if err != nil {
		return nil, err
	}
	receipt.Items = items[id]
	if receipt.Items == nil {
		receipt.Items = []domain.ReceiptItem{}
	}
	return receipt, nil
}

type ListFilter struct {
	SellerID string
	From     string
	To       string
}

// List returns receipts newest first with their items.
func (r *ReceiptRepository) List(ctx context.Context, filter ListFilter) ([]domain.Receipt, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+receiptColumns+` FROM receipts
		WHERE ($1 = '' OR seller_id::text = $1)
		  AND ($2 = '' OR date >= $2::date)
		  AND ($3 = '' OR date < $3::date + 1)
		ORDER BY date DESC
	`, filter.SellerID, filter.From, filter.To)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	receipts := []domain.Receipt{}
	var ids []string
	for rows.Next() {
		var rc domain.Receipt
		if err := scanReceipt(rows, &rc); err != nil {
			return nil, err
		}
		receipts = append(receipts, rc)
		ids = append(ids, rc.ID)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	if len(ids) == 0 {
		return receipts, nil
	}

	items, err := r.items(ctx, ids)
	if err != nil {
		return nil, err
	}
	for i := range receipts {
		receipts[i].Items = items[receipts[i].ID]
		if receipts[i].Items == nil {
			receipts[i].Items = []domain.ReceiptItem{}
		}
	}

	return receipts, nil
}

func (r *ReceiptRepository) items(ctx context.Context, receiptIDs []string) (map[string][]domain.ReceiptItem, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT i.id, i.receipt_id, i.product_id, COALESCE(p.name, ''), i.quantity, i.price, i.vat
		FROM receipt_items i
		LEFT JOIN products p ON p.id = i.product_id
		WHERE i.receipt_id = ANY($1)
		ORDER BY p.name
	`, pq.Array(receiptIDs))
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	out := make(map[string][]domain.ReceiptItem, len(receiptIDs))
	for rows.Next() {
		var item domain.ReceiptItem
		if err := rows.Scan(&item.ID, &item.ReceiptID, &item.ProductID, &item.Name, &item.Quantity, &item.Price, &item.VAT); err != nil {
			return nil, err
		}
		out[item.ReceiptID] = append(out[item.ReceiptID], item)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return out, nil
}

type StoredItemRepository struct {
	db *sql.DB
}

func NewStoredItemRepository(db *sql.DB) *StoredItemRepository {
	return &StoredItemRepository{db: db}
}

func (r *StoredItemRepository) List(ctx context.Context, userID string) ([]domain.StoredItem, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT user_id, product_id, quantity FROM stored_items
		WHERE user_id = $1
		ORDER BY product_id
	`, userID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	items := []domain.StoredItem{}
	for rows.Next() {
		var s domain.StoredItem
		if err := rows.Scan(&s.UserID, &s.ProductID, &s.Quantity); err != nil {
			return nil, err
		}
		items = append(items, s)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return items, nil
}

// Set replaces the stock of one product, creating the row if needed.
func (r *StoredItemRepository) Set(ctx context.Context, item domain.StoredItem) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO stored_items (user_id, product_id, quantity)
		VALUES ($1, $2, $3)
		ON CONFLICT (user_id, product_id) DO UPDATE SET quantity = EXCLUDED.quantity
	`, item.UserID, item.ProductID, item.Quantity)
	return err
}

// DecrementStoredItems subtracts sold quantities in one statement. Products the store does not
// track are skipped; stock may go negative.
func (r *StoredItemRepository) DecrementStoredItems(ctx context.Context, userID string, items []domain.StoredItem) error {
	if len(items) == 0 {
		return nil
	}

	products := make([]int64, len(items))
	quantities := make([]int64, len(items))
	for i, item := range items {
		products[i] = item.ProductID
		quantities[i] = int64(item.Quantity)
	}

	_, err := r.db.ExecContext(ctx, `
		UPDATE stored_items s SET quantity = s.quantity - d.quantity
		FROM (SELECT unnest($2::bigint[]) AS product_id, unnest($3::int[]) AS quantity) d
		WHERE s.user_id = $1 AND s.product_id = d.product_id
	`, userID, pq.Array(products), pq.Array(quantities))
	return err
}
