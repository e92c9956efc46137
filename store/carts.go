package store

import (
	"context"
	"database/sql"
	"errors"

	"el-store/model"
)

// GetCart returns the cart of a user, or ErrNotFound when they have none.
func (s *PostgresStore) GetCart(ctx context.Context, userID string) (model.Cart, error) {
	return loadCart(ctx, s.DB, userID, false)
}

// UpdateCart runs fn over the user's cart and saves the result. A missing cart
// is passed to fn with an empty ID; a cart left without items is removed.
// Returning an error from fn aborts without writing.
func (s *PostgresStore) UpdateCart(ctx context.Context, userID string, fn func(*model.Cart) error) (model.Cart, error) {
	unlock := s.lockForUser(userID)
	defer unlock()

	var out model.Cart
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		cart, err := loadCart(ctx, tx, userID, true)
		if errors.Is(err, ErrNotFound) {
			cart = model.Cart{UserID: userID, Items: []model.CartItem{}}
		} else if err != nil {
			return err
		}
		if err := fn(&cart); err != nil {
			return err
		}
		if err := writeCart(ctx, tx, &cart); err != nil {
			return err
		}
		out = cart
		return nil
	})
	return out, err
}

func (s *PostgresStore) DeleteCart(ctx context.Context, userID string) error {
	unlock := s.lockForUser(userID)
	defer unlock()

	res, err := s.DB.ExecContext(ctx, `DELETE FROM carts WHERE user_id = $1`, userID)
	if err != nil {
		return err
	}
	return expectOne(res)
}

func loadCart(ctx context.Context, q queryer, userID string, forUpdate bool) (model.Cart, error) {
	query := `SELECT id FROM carts WHERE user_id = $1`
	if forUpdate {
		query += ` FOR UPDATE`
	}
	cart := model.Cart{UserID: userID, Items: []model.CartItem{}}
	if err := q.QueryRowContext(ctx, query, userID).Scan(&cart.ID); err != nil {
		return model.Cart{}, mapErr(err)
	}

	rows, err := q.QueryContext(ctx,
		`SELECT product_id, quantity FROM cart_items WHERE cart_id = $1 ORDER BY position`, cart.ID)
	if err != nil {
		return model.Cart{}, err
	}
	defer rows.Close()
	for rows.Next() {
		var it model.CartItem
		if err := rows.Scan(&it.ProductID, &it.Quantity); err != nil {
			return model.Cart{}, err
		}
		cart.Items = append(cart.Items, it)
	}
	return cart, rows.Err()
}

// writeCart replaces the stored items of cart. An empty cart is deleted and
// comes back with an empty ID.
func writeCart(ctx context.Context, tx *sql.Tx, cart *model.Cart) error {
	if len(cart.Items) == 0 {
		if cart.ID != "" {
			if _, err := tx.ExecContext(ctx, `DELETE FROM carts WHERE id = $1`, cart.ID); err != nil {
				return err
			}
		}
		cart.ID = ""
		cart.Items = []model.CartItem{}
		return nil
	}

	if cart.ID == "" {
		cart.ID = model.NewID()
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO carts (id, user_id, updated_at) VALUES ($1, $2, now())`, cart.ID, cart.UserID); err != nil {
			return mapErr(err)
		}
	} else {
		if _, err := tx.ExecContext(ctx, `UPDATE carts SET updated_at = now() WHERE id = $1`, cart.ID); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM cart_items WHERE cart_id = $1`, cart.ID); err != nil {
			return err
		}
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO cart_items (cart_id, product_id, quantity, position) VALUES ($1, $2, $3, $4)`)
	if err != nil {
		return err
	}
	defer stmt.Close()
	for i, it := range cart.Items {
		if _, err := stmt.ExecContext(ctx, cart.ID, it.ProductID, it.Quantity, i); err != nil {
			return mapErr(err)
		}
	}
	return nil
}
