package store

import (
	"context"
	"database/sql"
	"errors"

	"el-store/model"

	"github.com/lib/pq"
)

// UpdateStock sets the absolute stock for a product (admin operation).
func (s *PostgresStore) UpdateStock(ctx context.Context, productID string, newStock int) error {
	if newStock < 0 {
		return errors.New("stock cannot be negative")
	}
	res, err := s.DB.ExecContext(ctx, `UPDATE products SET stock = $1 WHERE id = $2`, newStock, productID)
	if err != nil {
		return err
	}
	return expectOne(res)
}

type stockRow struct {
	name  string
	stock int
}

// lockStock reads and row-locks the stock of the given products, in id order
// to avoid deadlocks between concurrent payments.
func lockStock(ctx context.Context, tx *sql.Tx, ids []string) (map[string]stockRow, error) {
	rows, err := tx.QueryContext(ctx,
		`SELECT id, name, stock FROM products WHERE id = ANY($1) ORDER BY id FOR UPDATE`, pq.Array(ids))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make(map[string]stockRow, len(ids))
	for rows.Next() {
		var id string
		var r stockRow
		if err := rows.Scan(&id, &r.name, &r.stock); err != nil {
			return nil, err
		}
		out[id] = r
	}
	return out, rows.Err()
}

// checkStock reports every item the locked stock cannot cover.
func checkStock(items []model.OrderItem, stock map[string]stockRow) error {
	var short []Shortage
	for _, it := range items {
		r, ok := stock[it.ProductID]
		if !ok || r.stock < it.Quantity {
			short = append(short, Shortage{ProductID: it.ProductID, Name: r.name, Requested: it.Quantity, Available: r.stock})
		}
	}
	if len(short) > 0 {
		return &ShortageError{Items: short}
	}
	return nil
}

// adjustStock adds delta * quantity to the stock of every item.
func adjustStock(ctx context.Context, tx *sql.Tx, items []model.OrderItem, delta int) error {
	stmt, err := tx.PrepareContext(ctx, `UPDATE products SET stock = stock + $1 WHERE id = $2`)
	if err != nil {
		return err
	}
	defer stmt.Close()
	for _, it := range items {
		if _, err := stmt.ExecContext(ctx, delta*it.Quantity, it.ProductID); err != nil {
			return err
		}
	}
	return nil
}

func itemIDs(items []model.OrderItem) []string {
	ids := make([]string, 0, len(items))
	for _, it := range items {
		ids = append(ids, it.ProductID)
	}
	return ids
}
