package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"el-store/model"

	"github.com/lib/pq"
)

const orderColumns = `id, user_id, status, total_amount, delivery_address, delivery_time, courier_notes, card_masked, card_expiration, created_at, updated_at`

func scanOrder(row rowScanner) (model.Order, error) {
	var o model.Order
	var status string
	var deliveryTime sql.NullTime
	err := row.Scan(&o.ID, &o.UserID, &status, &o.TotalAmount,
		&o.Delivery.Address, &deliveryTime, &o.Delivery.CourierNotes,
		&o.Payment.CardNumber, &o.Payment.ExpirationDate,
		&o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		return model.Order{}, mapErr(err)
	}
	o.Status = model.OrderStatus(status)
	if deliveryTime.Valid {
		t := deliveryTime.Time
		o.Delivery.DeliveryTime = &t
	}
	o.Items = []model.OrderItem{}
	return o, nil
}

// loadItems fetches the lines of the given orders keyed by order id.
func loadItems(ctx context.Context, q queryer, orderIDs []string) (map[string][]model.OrderItem, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT order_id, product_id, quantity, price FROM order_items WHERE order_id = ANY($1) ORDER BY order_id, position`,
		pq.Array(orderIDs))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make(map[string][]model.OrderItem, len(orderIDs))
	for rows.Next() {
		var orderID string
		var it model.OrderItem
		if err := rows.Scan(&orderID, &it.ProductID, &it.Quantity, &it.Price); err != nil {
			return nil, err
		}
		out[orderID] = append(out[orderID], it)
	}
	return out, rows.Err()
}

func withItems(ctx context.Context, q queryer, o model.Order) (model.Order, error) {
	items, err := loadItems(ctx, q, []string{o.ID})
	if err != nil {
		return model.Order{}, err
	}
	if its, ok := items[o.ID]; ok {
		o.Items = its
	}
	return o, nil
}

func insertItems(ctx context.Context, tx *sql.Tx, orderID string, items []model.OrderItem) error {
	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO order_items (order_id, position, product_id, quantity, price) VALUES ($1, $2, $3, $4, $5)`)
	if err != nil {
		return err
	}
	defer stmt.Close()
	for i, it := range items {
		if _, err := stmt.ExecContext(ctx, orderID, i, it.ProductID, it.Quantity, it.Price); err != nil {
			return err
		}
	}
	return nil
}

// CreateOrderFromCart turns the user's cart into a NEW order with the current
// prices and removes the cart. Stock is checked here but only taken on payment.
func (s *PostgresStore) CreateOrderFromCart(ctx context.Context, userID string) (model.Order, error) {
	unlock := s.lockForUser(userID)
	defer unlock()

	var order model.Order
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		rows, err := tx.QueryContext(ctx,
			`SELECT ci.product_id, ci.quantity, p.name, p.price, p.stock
			   FROM cart_items ci
			   JOIN carts c ON c.id = ci.cart_id
			   JOIN products p ON p.id = ci.product_id
			  WHERE c.user_id = $1
			  ORDER BY ci.position
			    FOR SHARE OF p`, userID)
		if err != nil {
			return err
		}
		var items []model.OrderItem
		var short []Shortage
		for rows.Next() {
			var it model.OrderItem
			var name string
			var stock int
			if err := rows.Scan(&it.ProductID, &it.Quantity, &name, &it.Price, &stock); err != nil {
				rows.Close()
				return err
			}
			if stock < it.Quantity {
				short = append(short, Shortage{ProductID: it.ProductID, Name: name, Requested: it.Quantity, Available: stock})
			}
			items = append(items, it)
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return err
		}
		if len(items) == 0 {
			return ErrEmptyCart
		}
		if len(short) > 0 {
			return &ShortageError{Items: short}
		}

		now := time.Now().UTC()
		order = model.Order{
			ID:          model.NewID(),
			UserID:      userID,
			Items:       items,
			Status:      model.StatusNew,
			TotalAmount: model.ItemsTotal(items),
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO orders (id, user_id, status, total_amount, created_at, updated_at) VALUES ($1, $2, $3, $4, $5, $6)`,
			order.ID, order.UserID, string(order.Status), order.TotalAmount, order.CreatedAt, order.UpdatedAt); err != nil {
			return err
		}
		if err := insertItems(ctx, tx, order.ID, items); err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx, `DELETE FROM carts WHERE user_id = $1`, userID)
		return err
	})
	return order, err
}

// ListOrders returns one page of orders, newest first, and the total count.
func (s *PostgresStore) ListOrders(ctx context.Context, f model.OrderFilter, limit, offset int) ([]model.Order, int, error) {
	where := []string{}
	args := []any{}
	if f.UserID != "" {
		args = append(args, f.UserID)
		where = append(where, fmt.Sprintf("user_id = $%d", len(args)))
	}
	if f.Status != "" {
		args = append(args, string(f.Status))
		where = append(where, fmt.Sprintf("status = $%d", len(args)))
	}
	cond := ""
	if len(where) > 0 {
		cond = ` WHERE ` + strings.Join(where, " AND ")
	}

	var total int
	if err := s.DB.QueryRowContext(ctx, `SELECT COUNT(*) FROM orders`+cond, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	args = append(args, limit, offset)
	rows, err := s.DB.QueryContext(ctx,
		fmt.Sprintf(`SELECT `+orderColumns+` FROM orders`+cond+` ORDER BY created_at DESC, id DESC LIMIT $%d OFFSET $%d`,
			len(args)-1, len(args)), args...)
	if err != nil {
		return nil, 0, err
	}
	orders := []model.Order{}
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			rows.Close()
			return nil, 0, err
		}
		orders = append(orders, o)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	if len(orders) == 0 {
		return orders, total, nil
	}

	ids := make([]string, len(orders))
	for i, o := range orders {
		ids[i] = o.ID
	}
	items, err := loadItems(ctx, s.DB, ids)
	if err != nil {
		return nil, 0, err
	}
	for i := range orders {
		if its, ok := items[orders[i].ID]; ok {
			orders[i].Items = its
		}
	}
	return orders, total, nil
}

func (s *PostgresStore) GetOrder(ctx context.Context, id string) (model.Order, error) {
	o, err := scanOrder(s.DB.QueryRowContext(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1`, id))
	if err != nil {
		return model.Order{}, err
	}
	return withItems(ctx, s.DB, o)
}

// GetOrderForUser is GetOrder restricted to the orders of one user.
func (s *PostgresStore) GetOrderForUser(ctx context.Context, id, userID string) (model.Order, error) {
	o, err := scanOrder(s.DB.QueryRowContext(ctx,
		`SELECT `+orderColumns+` FROM orders WHERE id = $1 AND user_id = $2`, id, userID))
	if err != nil {
		return model.Order{}, err
	}
	return withItems(ctx, s.DB, o)
}

// statusMiss tells apart a missing order from one whose status moved on.
func statusMiss(ctx context.Context, q queryer, id string) error {
	var exists bool
	if err := q.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM orders WHERE id = $1)`, id).Scan(&exists); err != nil {
		return err
	}
	if exists {
		return ErrStatusConflict
	}
	return ErrNotFound
}

// UpdateOrderDetails saves delivery, payment, items and total of o as long as
// the order is still in status expect.
func (s *PostgresStore) UpdateOrderDetails(ctx context.Context, o model.Order, expect model.OrderStatus) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		var deliveryTime any
		if o.Delivery.DeliveryTime != nil {
			deliveryTime = *o.Delivery.DeliveryTime
		}
		res, err := tx.ExecContext(ctx,
			`UPDATE orders
			    SET total_amount = $1, delivery_address = $2, delivery_time = $3, courier_notes = $4,
			        card_masked = $5, card_expiration = $6, updated_at = $7
			  WHERE id = $8 AND status = $9`,
			o.TotalAmount, o.Delivery.Address, deliveryTime, o.Delivery.CourierNotes,
			o.Payment.CardNumber, o.Payment.ExpirationDate, time.Now().UTC(),
			o.ID, string(expect))
		if err != nil {
			return err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if n == 0 {
			return statusMiss(ctx, tx, o.ID)
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM order_items WHERE order_id = $1`, o.ID); err != nil {
			return err
		}
		return insertItems(ctx, tx, o.ID, o.Items)
	})
}

func lockOrder(ctx context.Context, tx *sql.Tx, id, userID string) (model.Order, error) {
	o, err := scanOrder(tx.QueryRowContext(ctx,
		`SELECT `+orderColumns+` FROM orders WHERE id = $1 AND ($2 = '' OR user_id = $2) FOR UPDATE`, id, userID))
	if err != nil {
		return model.Order{}, err
	}
	return withItems(ctx, tx, o)
}

// PayOrder takes the ordered quantities out of stock and marks the order
// PAID. An empty payment keeps the card details already on the order.
func (s *PostgresStore) PayOrder(ctx context.Context, id, userID string, payment model.PaymentInfo) (model.Order, error) {
	var order model.Order
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		o, err := lockOrder(ctx, tx, id, userID)
		if err != nil {
			return err
		}
		if !o.Status.CanPay() {
			return ErrStatusConflict
		}
		stock, err := lockStock(ctx, tx, itemIDs(o.Items))
		if err != nil {
			return err
		}
		if err := checkStock(o.Items, stock); err != nil {
			return err
		}
		if err := adjustStock(ctx, tx, o.Items, -1); err != nil {
			return err
		}

		if payment.CardNumber != "" {
			o.Payment = payment
		}
		o.Status = model.StatusPaid
		o.UpdatedAt = time.Now().UTC()
		if _, err := tx.ExecContext(ctx,
			`UPDATE orders SET status = $1, card_masked = $2, card_expiration = $3, updated_at = $4 WHERE id = $5`,
			string(o.Status), o.Payment.CardNumber, o.Payment.ExpirationDate, o.UpdatedAt, o.ID); err != nil {
			return err
		}
		order = o
		return nil
	})
	return order, err
}

// CancelOrder cancels a NEW or PAID order. A paid order gives its stock back;
// a new one puts its items back into the owner's cart. An empty userID
// cancels regardless of owner.
func (s *PostgresStore) CancelOrder(ctx context.Context, id, userID string) (model.Order, error) {
	var owner string
	if err := s.DB.QueryRowContext(ctx,
		`SELECT user_id FROM orders WHERE id = $1 AND ($2 = '' OR user_id = $2)`, id, userID).Scan(&owner); err != nil {
		return model.Order{}, mapErr(err)
	}
	unlock := s.lockForUser(owner)
	defer unlock()

	var order model.Order
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		o, err := lockOrder(ctx, tx, id, userID)
		if err != nil {
			return err
		}
		switch o.Status {
		case model.StatusPaid:
			if err := adjustStock(ctx, tx, o.Items, 1); err != nil {
				return err
			}
		case model.StatusNew:
			if err := returnToCart(ctx, tx, o); err != nil {
				return err
			}
		default:
			return ErrStatusConflict
		}

		o.Status = model.StatusCancelled
		o.UpdatedAt = time.Now().UTC()
		if _, err := tx.ExecContext(ctx,
			`UPDATE orders SET status = $1, updated_at = $2 WHERE id = $3`,
			string(o.Status), o.UpdatedAt, o.ID); err != nil {
			return err
		}
		order = o
		return nil
	})
	return order, err
}

// returnToCart merges the lines of o into its owner's cart, skipping
// products that no longer exist.
func returnToCart(ctx context.Context, tx *sql.Tx, o model.Order) error {
	existing, err := lockStock(ctx, tx, itemIDs(o.Items))
	if err != nil {
		return err
	}
	cart, err := loadCart(ctx, tx, o.UserID, true)
	if err == ErrNotFound {
		cart = model.Cart{UserID: o.UserID, Items: []model.CartItem{}}
	} else if err != nil {
		return err
	}
	for _, it := range o.Items {
		if _, ok := existing[it.ProductID]; ok {
			cart.Add(it.ProductID, it.Quantity)
		}
	}
	return writeCart(ctx, tx, &cart)
}

// SetOrderStatus moves an order from one status to another without touching
// stock or carts.
func (s *PostgresStore) SetOrderStatus(ctx context.Context, id string, from, to model.OrderStatus) (model.Order, error) {
	o, err := scanOrder(s.DB.QueryRowContext(ctx,
		`UPDATE orders SET status = $1, updated_at = $2 WHERE id = $3 AND status = $4 RETURNING `+orderColumns,
		string(to), time.Now().UTC(), id, string(from)))
	if err == ErrNotFound {
		return model.Order{}, statusMiss(ctx, s.DB, id)
	}
	if err != nil {
		return model.Order{}, err
	}
	return withItems(ctx, s.DB, o)
}
