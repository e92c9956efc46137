package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"el-store/model"

	"github.com/lib/pq"
)

const productColumns = `id, name, description, images, price, categories, stock`

func scanProduct(row rowScanner) (model.Product, error) {
	var p model.Product
	if err := row.Scan(&p.ID, &p.Name, &p.Description, pq.Array(&p.Images), &p.Price, pq.Array(&p.Categories), &p.Stock); err != nil {
		return model.Product{}, mapErr(err)
	}
	if p.Images == nil {
		p.Images = []string{}
	}
	if p.Categories == nil {
		p.Categories = []string{}
	}
	return p, nil
}

func collectProducts(rows *sql.Rows) ([]model.Product, error) {
	defer rows.Close()
	out := []model.Product{}
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// ListProducts returns products in creation order. A category filter matches
// products carrying any of the given categories.
func (s *PostgresStore) ListProducts(ctx context.Context, f model.ProductFilter) ([]model.Product, error) {
	where := []string{}
	args := []any{}
	if len(f.CategoryIDs) > 0 {
		args = append(args, pq.Array(f.CategoryIDs))
		where = append(where, fmt.Sprintf("categories && $%d::TEXT[]", len(args)))
	}
	if f.Search != "" {
		args = append(args, "%"+escapeLike(f.Search)+"%")
		where = append(where, fmt.Sprintf("(name ILIKE $%d OR description ILIKE $%d)", len(args), len(args)))
	}
	q := `SELECT ` + productColumns + ` FROM products`
	if len(where) > 0 {
		q += ` WHERE ` + strings.Join(where, " AND ")
	}
	q += ` ORDER BY id`

	rows, err := s.DB.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	return collectProducts(rows)
}

func (s *PostgresStore) GetProduct(ctx context.Context, id string) (model.Product, error) {
	return scanProduct(s.DB.QueryRowContext(ctx, `SELECT `+productColumns+` FROM products WHERE id = $1`, id))
}

func (s *PostgresStore) GetProductsByIDs(ctx context.Context, ids []string) ([]model.Product, error) {
	rows, err := s.DB.QueryContext(ctx,
		`SELECT `+productColumns+` FROM products WHERE id = ANY($1) ORDER BY id`, pq.Array(ids))
	if err != nil {
		return nil, err
	}
	return collectProducts(rows)
}

// CreateProduct inserts a product
func (s *PostgresStore) CreateProduct(ctx context.Context, p model.Product) error {
	_, err := s.DB.ExecContext(ctx,
		`INSERT INTO products (`+productColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		p.ID, p.Name, p.Description, pq.Array(nonNil(p.Images)), p.Price, pq.Array(nonNil(p.Categories)), p.Stock,
	)
	return mapErr(err)
}

func (s *PostgresStore) UpdateProduct(ctx context.Context, p model.Product) error {
	res, err := s.DB.ExecContext(ctx,
		`UPDATE products SET name = $1, description = $2, price = $3, categories = $4 WHERE id = $5`,
		p.Name, p.Description, p.Price, pq.Array(nonNil(p.Categories)), p.ID,
	)
	if err != nil {
		return mapErr(err)
	}
	return expectOne(res)
}

func (s *PostgresStore) SetProductImages(ctx context.Context, id string, images []string) error {
	res, err := s.DB.ExecContext(ctx, `UPDATE products SET images = $1 WHERE id = $2`, pq.Array(nonNil(images)), id)
	if err != nil {
		return err
	}
	return expectOne(res)
}

// DeleteProduct removes a product; cart lines referencing it go with it.
func (s *PostgresStore) DeleteProduct(ctx context.Context, id string) error {
	res, err := s.DB.ExecContext(ctx, `DELETE FROM products WHERE id = $1`, id)
	if err != nil {
		return err
	}
	return expectOne(res)
}

// DeleteCatalog removes every product and category.
func (s *PostgresStore) DeleteCatalog(ctx context.Context) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM products`); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx, `DELETE FROM categories`)
		return err
	})
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
