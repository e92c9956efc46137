package store

import (
	"context"
	"database/sql"

	"el-store/model"

	"github.com/lib/pq"
)

func scanCategory(row rowScanner) (model.Category, error) {
	var c model.Category
	var parent sql.NullString
	if err := row.Scan(&c.ID, &c.Name, &parent); err != nil {
		return model.Category{}, mapErr(err)
	}
	if parent.Valid {
		c.ParentID = &parent.String
	}
	return c, nil
}

func nullID(id *string) any {
	if id == nil || *id == "" {
		return nil
	}
	return *id
}

// ListCategories returns every category in creation order.
func (s *PostgresStore) ListCategories(ctx context.Context) ([]model.Category, error) {
	rows, err := s.DB.QueryContext(ctx, `SELECT id, name, parent_id FROM categories ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []model.Category{}
	for rows.Next() {
		c, err := scanCategory(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (s *PostgresStore) GetCategory(ctx context.Context, id string) (model.Category, error) {
	return scanCategory(s.DB.QueryRowContext(ctx, `SELECT id, name, parent_id FROM categories WHERE id = $1`, id))
}

func (s *PostgresStore) CreateCategory(ctx context.Context, c model.Category) error {
	_, err := s.DB.ExecContext(ctx,
		`INSERT INTO categories (id, name, parent_id) VALUES ($1, $2, $3)`, c.ID, c.Name, nullID(c.ParentID))
	return mapErr(err)
}

func (s *PostgresStore) UpdateCategory(ctx context.Context, c model.Category) error {
	res, err := s.DB.ExecContext(ctx,
		`UPDATE categories SET name = $1, parent_id = $2 WHERE id = $3`, c.Name, nullID(c.ParentID), c.ID)
	if err != nil {
		return mapErr(err)
	}
	return expectOne(res)
}

// DeleteCategory removes a category. Its children move up to its parent, it
// is dropped from every product, and products left without any category are
// attached to the parent when there is one.
func (s *PostgresStore) DeleteCategory(ctx context.Context, id string) (model.Category, error) {
	var deleted model.Category
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		c, err := scanCategory(tx.QueryRowContext(ctx,
			`SELECT id, name, parent_id FROM categories WHERE id = $1 FOR UPDATE`, id))
		if err != nil {
			return err
		}
		deleted = c

		if _, err := tx.ExecContext(ctx,
			`UPDATE categories SET parent_id = $1 WHERE parent_id = $2`, nullID(c.ParentID), id); err != nil {
			return err
		}

		rows, err := tx.QueryContext(ctx,
			`UPDATE products SET categories = array_remove(categories, $1) WHERE $1 = ANY(categories) RETURNING id`, id)
		if err != nil {
			return err
		}
		touched := []string{}
		for rows.Next() {
			var pid string
			if err := rows.Scan(&pid); err != nil {
				rows.Close()
				return err
			}
			touched = append(touched, pid)
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return err
		}

		if c.ParentID != nil && len(touched) > 0 {
			if _, err := tx.ExecContext(ctx,
				`UPDATE products SET categories = ARRAY[$1]::TEXT[] WHERE id = ANY($2) AND cardinality(categories) = 0`,
				*c.ParentID, pq.Array(touched)); err != nil {
				return err
			}
		}

		res, err := tx.ExecContext(ctx, `DELETE FROM categories WHERE id = $1`, id)
		if err != nil {
			return err
		}
		return expectOne(res)
	})
	return deleted, err
}
