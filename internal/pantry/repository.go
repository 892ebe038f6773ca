package pantry

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"

	"github.com/bakehouse/ordering/internal/domain"
)

var ErrInsufficientStock = errors.New("insufficient stock")

// DBPool matches the methods from *pgxpool.Pool that we use.
type DBPool interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	BeginTx(ctx context.Context, txOptions pgx.TxOptions) (pgx.Tx, error)
}

type Repository struct {
	pool DBPool
}

func NewRepository(pool DBPool) *Repository {
	return &Repository{pool: pool}
}

const ingredientColumns = `id, name, category_id, unit, kilo_per_unit, package, price, vat,
	COALESCE(ean, ''), active, store_only, quantity`

func scanIngredient(row pgx.Row) (domain.Ingredient, error) {
	var i domain.Ingredient
	err := row.Scan(&i.ID, &i.Name, &i.CategoryID, &i.Unit, &i.KiloPerUnit, &i.Package, &i.Price, &i.VAT,
		&i.EAN, &i.Active, &i.StoreOnly, &i.Quantity)
	return i, err
}

func (r *Repository) ListIngredients(ctx context.Context) ([]domain.Ingredient, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+ingredientColumns+` FROM ingredients ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	ingredients := []domain.Ingredient{}
	for rows.Next() {
		i, err := scanIngredient(rows)
		if err != nil {
			return nil, err
		}
		ingredients = append(ingredients, i)
	}
	return ingredients, rows.Err()
}

func (r *Repository) GetIngredient(ctx context.Context, id int64) (*domain.Ingredient, error) {
	i, err := scanIngredient(r.pool.QueryRow(ctx, `SELECT `+ingredientColumns+` FROM ingredients WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &i, nil
}

func (r *Repository) CreateIngredient(ctx context.Context, i *domain.Ingredient) error {
	var ean *string
	if i.EAN != "" {
		ean = &i.EAN
	}
	return r.pool.QueryRow(ctx, `
		INSERT INTO ingredients (name, category_id, unit, kilo_per_unit, package, price, vat, ean, active, store_only, quantity)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING id
	`, i.Name, i.CategoryID, i.Unit, i.KiloPerUnit, i.Package, i.Price, i.VAT, ean, i.Active, i.StoreOnly, i.Quantity).Scan(&i.ID)
}

// AdjustQuantity adds delta to an ingredient's stock and returns the new quantity.
// A result below zero fails with ErrInsufficientStock and changes nothing.
func (r *Repository) AdjustQuantity(ctx context.Context, id int64, delta float64) (float64, error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return 0, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var current float64
	err = tx.QueryRow(ctx, `SELECT quantity FROM ingredients WHERE id = $1 FOR UPDATE`, id).Scan(&current)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, domain.ErrNotFound
		}
		return 0, err
	}

	updated := current + delta
	if updated < 0 {
		return current, ErrInsufficientStock
	}

	if _, err := tx.Exec(ctx, `UPDATE ingredients SET quantity = $2 WHERE id = $1`, id, updated); err != nil {
		return 0, err
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, err
	}
	return updated, nil
}

func (r *Repository) ListSupplierCodes(ctx context.Context, ingredientID int64) ([]domain.SupplierCode, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, ingredient_id, supplier_id::text, product_code, price, is_active
		FROM ingredient_supplier_codes
		WHERE ingredient_id = $1
		ORDER BY is_active DESC, product_code
	`, ingredientID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	codes := []domain.SupplierCode{}
	for rows.Next() {
		var c domain.SupplierCode
		if err := rows.Scan(&c.ID, &c.IngredientID, &c.SupplierID, &c.ProductCode, &c.Price, &c.Active); err != nil {
			return nil, err
		}
		codes = append(codes, c)
	}
	return codes, rows.Err()
}

// UpsertSupplierCode maps a supplier code to an ingredient, reactivating an existing mapping.
func (r *Repository) UpsertSupplierCode(ctx context.Context, c *domain.SupplierCode) error {
	c.Active = true
	return upsertSupplierCode(ctx, r.pool, c)
}

type queryRower interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func upsertSupplierCode(ctx context.Context, q queryRower, c *domain.SupplierCode) error {
	return q.QueryRow(ctx, `
		INSERT INTO ingredient_supplier_codes (ingredient_id, supplier_id, product_code, price, is_active)
		VALUES ($1, $2, $3, $4, true)
		ON CONFLICT (supplier_id, product_code) DO UPDATE
		SET ingredient_id = EXCLUDED.ingredient_id, price = EXCLUDED.price, is_active = true
		RETURNING id
	`, c.IngredientID, c.SupplierID, c.ProductCode, c.Price).Scan(&c.ID)
}

func (r *Repository) DeactivateSupplierCode(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `UPDATE ingredient_supplier_codes SET is_active = false WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// Candidates lists active ingredients with the supplier's active codes for each.
func (r *Repository) Candidates(ctx context.Context, supplierID string) ([]Candidate, error) {
	return candidates(ctx, r.pool, supplierID)
}

type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

func candidates(ctx context.Context, q querier, supplierID string) ([]Candidate, error) {
	rows, err := q.Query(ctx, `
		SELECT i.id, i.name, i.unit, COALESCE(c.product_code, '')
		FROM ingredients i
		LEFT JOIN ingredient_supplier_codes c
		  ON c.ingredient_id = i.id AND c.is_active AND c.supplier_id::text = $1
		WHERE i.active
		ORDER BY i.id
	`, supplierID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Candidate
	for rows.Next() {
		var (
			id               int64
			name, unit, code string
		)
		if err := rows.Scan(&id, &name, &unit, &code); err != nil {
			return nil, err
		}
		if n := len(out); n == 0 || out[n-1].IngredientID != id {
			out = append(out, Candidate{IngredientID: id, Name: name, Unit: unit})
		}
		if code != "" {
			last := &out[len(out)-1]
			last.Codes = append(last.Codes, code)
		}
	}
	return out, rows.Err()
}

func (r *Repository) ListUnmappedCodes(ctx context.Context, status domain.UnmappedCodeStatus) ([]domain.UnmappedCode, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id::text, supplier_id::text, product_code, COALESCE(description, ''), COALESCE(unit_of_measure, ''),
		       last_seen_price, last_seen_quantity, suggested_ingredient_id, COALESCE(suggestion_confidence, 0),
		       status, mapped_to_ingredient_id, occurrence_count, last_seen_at
		FROM unmapped_product_codes
		WHERE ($1 = '' OR status = $1)
		ORDER BY occurrence_count DESC, last_seen_at DESC
	`, string(status))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	codes := []domain.UnmappedCode{}
	for rows.Next() {
		var (
			c      domain.UnmappedCode
			status string
		)
		if err := rows.Scan(&c.ID, &c.SupplierID, &c.ProductCode, &c.Description, &c.Unit,
			&c.LastSeenPrice, &c.LastSeenQuantity, &c.SuggestedIngredientID, &c.SuggestionConfidence,
			&status, &c.MappedIngredientID, &c.OccurrenceCount, &c.LastSeenAt); err != nil {
			return nil, err
		}
		c.Status = domain.UnmappedCodeStatus(status)
		codes = append(codes, c)
	}
	return codes, rows.Err()
}

// MapUnmappedCode maps a pending code to an ingredient and marks it mapped.
func (r *Repository) MapUnmappedCode(ctx context.Context, id string, ingredientID int64) (*domain.SupplierCode, error) {
	if !domain.ValidID(id) {
		return nil, domain.ErrNotFound
	}
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	code := &domain.SupplierCode{IngredientID: ingredientID, Active: true}
	err = tx.QueryRow(ctx, `
		SELECT supplier_id::text, product_code, last_seen_price
		FROM unmapped_product_codes
		WHERE id = $1
		FOR UPDATE
	`, id).Scan(&code.SupplierID, &code.ProductCode, &code.Price)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}

	if err := upsertSupplierCode(ctx, tx, code); err != nil {
		return nil, fmt.Errorf("map supplier code: %w", err)
	}

	if _, err := tx.Exec(ctx, `
		UPDATE unmapped_product_codes
		SET status = 'mapped', mapped_to_ingredient_id = $2
		WHERE id = $1
	`, id, ingredientID); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return code, nil
}

func (r *Repository) IgnoreUnmappedCode(ctx context.Context, id string) error {
	if !domain.ValidID(id) {
		return domain.ErrNotFound
	}
	tag, err := r.pool.Exec(ctx, `UPDATE unmapped_product_codes SET status = 'ignored' WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

type IngestResult struct {
	Invoice  domain.ReceivedInvoice `json:"invoice"`
	Matched  int                    `json:"matched"`
	Unmapped []domain.UnmappedCode  `json:"unmapped"`
}

// IngestInvoice stores a supplier invoice in one transaction. Lines whose code the supplier
// has mapped add to that ingredient's stock; the rest are recorded as unmapped codes.
func (r *Repository) IngestInvoice(ctx context.Context, inv domain.ReceivedInvoice) (*IngestResult, error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	err = tx.QueryRow(ctx, `
		INSERT INTO received_invoices (supplier_id, supplier_name, invoice_number, invoice_date, total_amount)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id::text, created_at
	`, inv.SupplierID, inv.SupplierName, inv.InvoiceNumber, inv.InvoiceDate, inv.TotalAmount).Scan(&inv.ID, &inv.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("insert invoice: %w", err)
	}

	cands, err := candidates(ctx, tx, inv.SupplierID)
	if err != nil {
		return nil, fmt.Errorf("load candidates: %w", err)
	}
	byCode := make(map[string]int64)
	for _, c := range cands {
		for _, code := range c.Codes {
			byCode[strings.ToLower(code)] = c.IngredientID
		}
	}

	result := &IngestResult{Unmapped: []domain.UnmappedCode{}}
	lines := make([]domain.InvoiceLine, len(inv.Lines))
	copy(lines, inv.Lines)

	for i := range lines {
		line := &lines[i]

		if id, ok := byCode[strings.ToLower(line.ProductCode)]; ok {
			line.IngredientID = &id
			if _, err := tx.Exec(ctx, `UPDATE ingredients SET quantity = quantity + $2 WHERE id = $1`, id, line.Quantity); err != nil {
				return nil, fmt.Errorf("add stock for %s: %w", line.ProductCode, err)
			}
			result.Matched++
		} else {
			unmapped, err := upsertUnmapped(ctx, tx, inv.SupplierID, *line, Suggest(cands, line.ProductCode, line.Description))
			if err != nil {
				return nil, fmt.Errorf("record unmapped code %s: %w", line.ProductCode, err)
			}
			result.Unmapped = append(result.Unmapped, unmapped)
		}

		if _, err := tx.Exec(ctx, `
			INSERT INTO invoice_lines (invoice_id, product_code, description, quantity, unit, unit_price, ingredient_id)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
		`, inv.ID, line.ProductCode, line.Description, line.Quantity, line.Unit, line.UnitPrice, line.IngredientID); err != nil {
			return nil, fmt.Errorf("insert invoice line: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}

	inv.Lines = lines
	result.Invoice = inv
	return result, nil
}

func upsertUnmapped(ctx context.Context, tx pgx.Tx, supplierID string, line domain.InvoiceLine, suggestions []Suggestion) (domain.UnmappedCode, error) {
	u := domain.UnmappedCode{
		SupplierID:       supplierID,
		ProductCode:      line.ProductCode,
		Description:      line.Description,
		Unit:             line.Unit,
		LastSeenPrice:    line.UnitPrice,
		LastSeenQuantity: line.Quantity,
	}
	if best, ok := Best(suggestions); ok {
		u.SuggestedIngredientID = &best.IngredientID
		u.SuggestionConfidence = best.Score
	}

	var status string
	err := tx.QueryRow(ctx, `
		INSERT INTO unmapped_product_codes
			(supplier_id, product_code, description, unit_of_measure, last_seen_price, last_seen_quantity,
			 suggested_ingredient_id, suggestion_confidence)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (supplier_id, product_code) DO UPDATE
		SET description = EXCLUDED.description,
		    unit_of_measure = EXCLUDED.unit_of_measure,
		    last_seen_price = EXCLUDED.last_seen_price,
		    last_seen_quantity = EXCLUDED.last_seen_quantity,
		    suggested_ingredient_id = COALESCE(EXCLUDED.suggested_ingredient_id, unmapped_product_codes.suggested_ingredient_id),
		    suggestion_confidence = COALESCE(EXCLUDED.suggestion_confidence, unmapped_product_codes.suggestion_confidence),
		    occurrence_count = unmapped_product_codes.occurrence_count + 1,
		    status = CASE WHEN unmapped_product_codes.status = 'mapped' THEN 'pending' ELSE unmapped_product_codes.status END,
		    last_seen_at = now()
		RETURNING id::text, occurrence_count, status, last_seen_at
	`, supplierID, line.ProductCode, line.Description, line.Unit, line.UnitPrice, line.Quantity,
		u.SuggestedIngredientID, nullableScore(u)).Scan(&u.ID, &u.OccurrenceCount, &status, &u.LastSeenAt)
	if err != nil {
		return domain.UnmappedCode{}, err
	}
	u.Status = domain.UnmappedCodeStatus(status)
	return u, nil
}

func nullableScore(u domain.UnmappedCode) *float64 {
	if u.SuggestedIngredientID == nil {
		return nil
	}
	return &u.SuggestionConfidence
}

// InvoiceTotal sums quantity × unit price over the lines.
func InvoiceTotal(lines []domain.InvoiceLine) decimal.Decimal {
	total := decimal.Zero
	for _, l := range lines {
		total = total.Add(l.UnitPrice.Mul(decimal.NewFromFloat(l.Quantity)))
	}
	return total
}
