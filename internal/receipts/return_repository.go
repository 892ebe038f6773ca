package receipts

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/bakehouse/ordering/internal/domain"
)

type ReturnRepository struct {
	db *sql.DB
}

func NewReturnRepository(db *sql.DB) *ReturnRepository {
	return &ReturnRepository{db: db}
}

const returnColumns = `id, date::text, total, user_id, created_at`

func scanReturn(s interface{ Scan(...any) error }, ret *domain.Return) error {
	return s.Scan(&ret.ID, &ret.Date, &ret.Total, &ret.UserID, &ret.CreatedAt)
}

// InsertReturn maps a second return for the same user and date to domain.ErrDuplicateReturn.
func (r *ReturnRepository) InsertReturn(ctx context.Context, ret *domain.Return) error {
	id := uuid.New().String()

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO returns (id, date, total, user_id, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`, id, ret.Date, ret.Total, ret.UserID, ret.CreatedAt)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return domain.ErrDuplicateReturn
		}
		return err
	}

	ret.ID = id
	return nil
}

func (r *ReturnRepository) InsertReturnItems(ctx context.Context, returnID string, items []domain.ReturnItem) error {
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
		items[i].ReturnID = returnID
		ids[i] = items[i].ID
		products[i] = items[i].ProductID
		quantities[i] = int64(items[i].Quantity)
		prices[i] = items[i].Price.String()
		vats[i] = int64(items[i].VAT)
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO return_items (id, return_id, product_id, quantity, price, vat)
		SELECT unnest($1::uuid[]), $2, unnest($3::bigint[]), unnest($4::int[]), unnest($5::numeric[]), unnest($6::int[])
	`, pq.Array(ids), returnID, pq.Array(products), pq.Array(quantities), pq.Array(prices), pq.Array(vats))
	return err
}

func (r *ReturnRepository) GetByID(ctx context.Context, id string) (*domain.Return, error) {
	if !domain.ValidID(id) {
		return nil, nil
	}

	ret := &domain.Return{}
	err := scanReturn(r.db.QueryRowContext(ctx, `SELECT `+returnColumns+` FROM returns WHERE id = $1`, id), ret)
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
	ret.Items = items[id]
	if ret.Items == nil {
		ret.Items = []domain.ReturnItem{}
	}
	return ret, nil
}

type ReturnFilter struct {
	UserID string
	From   string
	To     string
}

// List returns returns newest first with their items.
func (r *ReturnRepository) List(ctx context.Context, filter ReturnFilter) ([]domain.Return, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+returnColumns+` FROM returns
		WHERE ($1 = '' OR user_id::text = $1)
		  AND ($2 = '' OR date >= $2::date)
		  AND ($3 = '' OR date <= $3::date)
		ORDER BY date DESC, created_at DESC
	`, filter.UserID, filter.From, filter.To)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	returns := []domain.Return{}
	var ids []string
	for rows.Next() {
		var ret domain.Return
		if err := scanReturn(rows, &ret); err != nil {
			return nil, err
		}
		returns = append(returns, ret)
		ids = append(ids, ret.ID)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	if len(ids) == 0 {
		return returns, nil
	}

	items, err := r.items(ctx, ids)
	if err != nil {
		return nil, err
	}
	for i := range returns {
		returns[i].Items = items[returns[i].ID]
		if returns[i].Items == nil {
			returns[i].Items = []domain.ReturnItem{}
		}
	}

	return returns, nil
}

// UpdateItemQuantity changes one line and recomputes the return total.
// It returns (nil, nil) when the return or the line does not exist.
func (r *ReturnRepository) UpdateItemQuantity(ctx context.Context, returnID, itemID string, quantity int) (*domain.Return, error) {
	if !domain.ValidID(returnID) || !domain.ValidID(itemID) {
		return nil, nil
	}

	return r.changeItem(ctx, returnID, `
		UPDATE return_items SET quantity = $3 WHERE id = $1 AND return_id = $2
	`, itemID, returnID, quantity)
}

// DeleteItem removes one line and recomputes the return total.
func (r *ReturnRepository) DeleteItem(ctx context.Context, returnID, itemID string) (*domain.Return, error) {
	if !domain.ValidID(returnID) || !domain.ValidID(itemID) {
		return nil, nil
	}

	return r.changeItem(ctx, returnID, `
		DELETE FROM return_items WHERE id = $1 AND return_id = $2
	`, itemID, returnID)
}

func (r *ReturnRepository) changeItem(ctx context.Context, returnID, query string, args ...any) (*domain.Return, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	result, err := tx.ExecContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	n, err := result.RowsAffected()
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, nil
	}

	if _, err := tx.ExecContext(ctx, `
		UPDATE returns SET total = COALESCE((
			SELECT SUM(quantity * price) FROM return_items WHERE return_id = $1
		), 0)
		WHERE id = $1
	`, returnID); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}

	return r.GetByID(ctx, returnID)
}

func (r *ReturnRepository) items(ctx context.Context, returnIDs []string) (map[string][]domain.ReturnItem, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT i.id, i.return_id, i.product_id, COALESCE(p.name, ''), i.quantity, i.price, i.vat
		FROM return_items i
		LEFT JOIN products p ON p.id = i.product_id
		WHERE i.return_id = ANY($1)
		ORDER BY p.name
	`, pq.Array(returnIDs))
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	out := make(map[string][]domain.ReturnItem, len(returnIDs))
	for rows.Next() {
		var item domain.ReturnItem
		if err := rows.Scan(&item.ID, &item.ReturnID, &item.ProductID, &item.Name, &item.Quantity, &item.Price, &item.VAT); err != nil {
			return nil, err
		}
		out[item.ReturnID] = append(out[item.ReturnID], item)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return out, nil
}
