package catalog

import (
	"context"
	"database/sql"
	"errors"

	"github.com/bakehouse/ordering/internal/domain"
)

const productColumns = `id, COALESCE(code, ''), name, COALESCE(name_vi, ''), COALESCE(description, ''),
	price, price_mobil, price_buyer, vat, active, buyer, store, category_id,
	COALESCE(allergens, ''), COALESCE(image, '')`

type ProductRepository struct {
	db *sql.DB
}

func NewProductRepository(db *sql.DB) *ProductRepository {
	return &ProductRepository{db: db}
}

type scanner interface {
	Scan(dest ...any) error
}

func scanProduct(s scanner) (domain.Product, error) {
	var p domain.Product
	err := s.Scan(&p.ID, &p.Code, &p.Name, &p.NameVi, &p.Description,
		&p.Price, &p.PriceMobil, &p.PriceBuyer, &p.VAT, &p.Active, &p.Buyer, &p.Store, &p.CategoryID,
		&p.Allergens, &p.Image)
	return p, err
}

func (r *ProductRepository) GetProduct(ctx context.Context, id int64) (*domain.Product, error) {
	p, err := scanProduct(r.db.QueryRowContext(ctx, `SELECT `+productColumns+` FROM products WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &p, nil
}

// ListProducts returns all products ordered by category and name; visibility is applied by the caller.
func (r *ProductRepository) ListProducts(ctx context.Context) ([]domain.Product, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+productColumns+` FROM products ORDER BY category_id, name`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	products := []domain.Product{}
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		products = append(products, p)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return products, nil
}

func (r *ProductRepository) CreateProduct(ctx context.Context, p *domain.Product) error {
	return r.db.QueryRowContext(ctx, `
		INSERT INTO products (code, name, name_vi, description, price, price_mobil, price_buyer, vat,
			active, buyer, store, category_id, allergens, image)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		RETURNING id
	`, p.Code, p.Name, p.NameVi, p.Description, p.Price, p.PriceMobil, p.PriceBuyer, p.VAT,
		p.Active, p.Buyer, p.Store, p.CategoryID, p.Allergens, p.Image).Scan(&p.ID)
}

// UpdateProduct overwrites every column. It returns domain.ErrNotFound when no row matched.
func (r *ProductRepository) UpdateProduct(ctx context.Context, p *domain.Product) error {
	result, err := r.db.ExecContext(ctx, `
		UPDATE products SET code = $1, name = $2, name_vi = $3, description = $4, price = $5,
			price_mobil = $6, price_buyer = $7, vat = $8, active = $9, buyer = $10, store = $11,
			category_id = $12, allergens = $13, image = $14
		WHERE id = $15
	`, p.Code, p.Name, p.NameVi, p.Description, p.Price, p.PriceMobil, p.PriceBuyer, p.VAT,
		p.Active, p.Buyer, p.Store, p.CategoryID, p.Allergens, p.Image, p.ID)
	if err != nil {
		return err
	}
	return expectOneRow(result)
}

func (r *ProductRepository) DeleteProduct(ctx context.Context, id int64) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM products WHERE id = $1`, id)
	if err != nil {
		return err
	}
	return expectOneRow(result)
}

func (r *ProductRepository) ListCategories(ctx context.Context) ([]domain.Category, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id, name, store, buyer FROM categories ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	categories := []domain.Category{}
	for rows.Next() {
		var c domain.Category
		if err := rows.Scan(&c.ID, &c.Name, &c.Store, &c.Buyer); err != nil {
			return nil, err
		}
		categories = append(categories, c)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return categories, nil
}

func (r *ProductRepository) CreateCategory(ctx context.Context, c *domain.Category) error {
	return r.db.QueryRowContext(ctx, `
		INSERT INTO categories (name, store, buyer) VALUES ($1, $2, $3) RETURNING id
	`, c.Name, c.Store, c.Buyer).Scan(&c.ID)
}

func (r *ProductRepository) UpdateCategory(ctx context.Context, c *domain.Category) error {
	result, err := r.db.ExecContext(ctx, `
		UPDATE categories SET name = $1, store = $2, buyer = $3 WHERE id = $4
	`, c.Name, c.Store, c.Buyer, c.ID)
	if err != nil {
		return err
	}
	return expectOneRow(result)
}

func (r *ProductRepository) DeleteCategory(ctx context.Context, id int64) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM categories WHERE id = $1`, id)
	if err != nil {
		return err
	}
	return expectOneRow(result)
}

func expectOneRow(result sql.Result) error {
	n, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return domain.ErrNotFound
	}
	return nil
}
