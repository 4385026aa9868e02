package core

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

// CustomerFields groups the customer-identifying inputs of create-order.
type CustomerFields struct {
	Name  string
	Email string
	Phone string
}

// AddressFields groups the shipping-address inputs of create-order.
type AddressFields struct {
	Street string
	City   string
	State  string
	Zip    string
}

// CreateOrder validates that len(productIDs) == len(quantities) >= 1, each
// quantity >= 1, each product exists, and current stock >= requested
// quantity — then, inside one transaction, reads prices, inserts the header
// (status pending) and items, and decrements stock. Either all of that
// persists or none of it does.
//
// Row-level locks (SELECT ... FOR UPDATE) are taken on the affected product
// rows before the stock check, so two concurrent orders cannot each observe
// sufficient stock and together oversell.
func (s *Store) CreateOrder(ctx context.Context, cust CustomerFields, addr AddressFields, productIDs []int, quantities []int) (int, error) {
	if len(productIDs) == 0 || len(productIDs) != len(quantities) {
		return 0, newErr(KindInvalidArguments, "product_ids and quantities must be non-empty and the same length", nil)
	}
	for i, q := range quantities {
		if q < 1 {
			return 0, newErr(KindInvalidArguments, fmt.Sprintf("quantity at index %d must be >= 1", i), nil)
		}
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return 0, newErr(KindUpstream, "failed to begin transaction", err)
	}
	defer tx.Rollback(ctx)

	type resolvedLine struct {
		productID int
		quantity  int
		price     decimal.Decimal
	}
	resolved := make([]resolvedLine, 0, len(productIDs))
	for i, pid := range productIDs {
		resolved = append(resolved, resolvedLine{productID: pid, quantity: quantities[i]})
	}
	// Lock rows in ascending product-id order to keep a stable deadlock-free
	// lock order across concurrently racing orders.
	sort.Slice(resolved, func(i, j int) bool { return resolved[i].productID < resolved[j].productID })

	total := decimal.Zero
	for i := range resolved {
		rl := &resolved[i]
		var stock int
		err := tx.QueryRow(ctx, `
			SELECT price, stock_quantity FROM agent_products WHERE id = $1 FOR UPDATE
		`, rl.productID).Scan(&rl.price, &stock)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return 0, newErr(KindInvalidArguments, fmt.Sprintf("unknown product %d", rl.productID), nil)
			}
			return 0, newErr(KindUpstream, fmt.Sprintf("failed to lock product %d", rl.productID), err)
		}
		if stock < rl.quantity {
			return 0, newErr(KindOutOfStock, fmt.Sprintf("insufficient stock for product %d: requested %d, available %d", rl.productID, rl.quantity, stock), nil)
		}
		total = total.Add(rl.price.Mul(decimal.NewFromInt(int64(rl.quantity))))
	}

	var orderID int
	err = tx.QueryRow(ctx, `
		INSERT INTO agent_orders (customer_name, customer_email, customer_phone, street_address, city, state, zip_code, total_amount, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, 'pending')
		RETURNING id
	`, cust.Name, cust.Email, cust.Phone, addr.Street, addr.City, addr.State, addr.Zip, total).Scan(&orderID)
	if err != nil {
		return 0, newErr(KindUpstream, "failed to insert order", err)
	}

	for _, rl := range resolved {
		if _, err := tx.Exec(ctx, `
			INSERT INTO agent_order_items (order_id, product_id, quantity, price_at_purchase)
			VALUES ($1, $2, $3, $4)
		`, orderID, rl.productID, rl.quantity, rl.price); err != nil {
			return 0, newErr(KindUpstream, "failed to insert order item", err)
		}
		if _, err := tx.Exec(ctx, `
			UPDATE agent_products SET stock_quantity = stock_quantity - $1 WHERE id = $2
		`, rl.quantity, rl.productID); err != nil {
			return 0, newErr(KindUpstream, "failed to decrement stock", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, newErr(KindUpstream, "failed to commit order creation", err)
	}
	return orderID, nil
}

// GetOrder returns the order header plus its historical item rows.
func (s *Store) GetOrder(ctx context.Context, id int) (*Order, error) {
	o, err := s.getOrderHeader(ctx, id)
	if err != nil {
		return nil, err
	}
	items, err := s.fetchOrderItems(ctx, id, false)
	if err != nil {
		return nil, err
	}
	o.Items = items
	return o, nil
}

// GetOrderWithProductNames is GetOrder with current product names joined in:
// item rows joined against the current products table, so the product name
// shown reflects present-day state while quantity and price reflect the
// historical order-item row.
func (s *Store) GetOrderWithProductNames(ctx context.Context, id int) (*Order, error) {
	o, err := s.getOrderHeader(ctx, id)
	if err != nil {
		return nil, err
	}
	items, err := s.fetchOrderItems(ctx, id, true)
	if err != nil {
		return nil, err
	}
	o.Items = items
	return o, nil
}

func (s *Store) getOrderHeader(ctx context.Context, id int) (*Order, error) {
	var o Order
	err := s.pool.QueryRow(ctx, `
		SELECT id, customer_name, customer_email, customer_phone, street_address, city, state, zip_code,
		       status, total_amount, created_at, updated_at
		FROM agent_orders WHERE id = $1
	`, id).Scan(&o.ID, &o.CustomerName, &o.CustomerEmail, &o.CustomerPhone, &o.StreetAddress, &o.City, &o.State, &o.ZipCode,
		&o.Status, &o.TotalAmount, &o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, newErr(KindNotFound, fmt.Sprintf("order %d not found", id), nil)
		}
		return nil, newErr(KindUpstream, fmt.Sprintf("failed to fetch order %d", id), err)
	}
	return &o, nil
}

func (s *Store) fetchOrderItems(ctx context.Context, orderID int, joinProductNames bool) ([]OrderItem, error) {
	var rows pgx.Rows
	var err error
	if joinProductNames {
		rows, err = s.pool.Query(ctx, `
			SELECT oi.order_id, oi.product_id, p.name, oi.quantity, oi.price_at_purchase
			FROM agent_order_items oi
			JOIN agent_products p ON p.id = oi.product_id
			WHERE oi.order_id = $1
			ORDER BY oi.product_id
		`, orderID)
	} else {
		rows, err = s.pool.Query(ctx, `
			SELECT order_id, product_id, '', quantity, price_at_purchase
			FROM agent_order_items WHERE order_id = $1 ORDER BY product_id
		`, orderID)
	}
	if err != nil {
		return nil, newErr(KindUpstream, "failed to query order items", err)
	}
	defer rows.Close()

	var items []OrderItem
	for rows.Next() {
		var it OrderItem
		if err := rows.Scan(&it.OrderID, &it.ProductID, &it.ProductName, &it.Quantity, &it.PriceAtPurchase); err != nil {
			return nil, newErr(KindUpstream, "failed to scan order item", err)
		}
		items = append(items, it)
	}
	return items, nil
}

// fetchOrderItemsTx reads and row-locks order items within an existing
// transaction, used by CreateReturn to validate returned quantities against
// the live order; the lock serializes concurrent returns for the same order.
func (s *Store) fetchOrderItemsTx(ctx context.Context, tx pgx.Tx, orderID int) ([]OrderItem, error) {
	rows, err := tx.Query(ctx, `
		SELECT order_id, product_id, '', quantity, price_at_purchase
		FROM agent_order_items WHERE order_id = $1 ORDER BY product_id
		FOR UPDATE
	`, orderID)
	if err != nil {
		return nil, newErr(KindUpstream, "failed to query order items", err)
	}
	defer rows.Close()

	var items []OrderItem
	for rows.Next() {
		var it OrderItem
		if err := rows.Scan(&it.OrderID, &it.ProductID, &it.ProductName, &it.Quantity, &it.PriceAtPurchase); err != nil {
			return nil, newErr(KindUpstream, "failed to scan order item", err)
		}
		items = append(items, it)
	}
	return items, nil
}

// ListOrders returns all orders, optionally filtered by status.
func (s *Store) ListOrders(ctx context.Context, status string) ([]Order, error) {
	query := `
		SELECT id, customer_name, customer_email, customer_phone, street_address, city, state, zip_code,
		       status, total_amount, created_at, updated_at
		FROM agent_orders WHERE 1=1`
	var args []any
	if status != "" {
		query += " AND status = $1"
		args = append(args, status)
	}
	query += " ORDER BY id"

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, newErr(KindUpstream, "failed to query orders", err)
	}
	defer rows.Close()

	var orders []Order
	for rows.Next() {
		var o Order
		if err := rows.Scan(&o.ID, &o.CustomerName, &o.CustomerEmail, &o.CustomerPhone, &o.StreetAddress, &o.City, &o.State, &o.ZipCode,
			&o.Status, &o.TotalAmount, &o.CreatedAt, &o.UpdatedAt); err != nil {
			return nil, newErr(KindUpstream, "failed to scan order", err)
		}
		orders = append(orders, o)
	}
	return orders, nil
}

// UpdateOrderStatus sets an order's status. Transitions are not validated
// here, and the tool catalog exposes no status-update tool; callers of this
// method own transition policy.
func (s *Store) UpdateOrderStatus(ctx context.Context, id int, status OrderStatus) error {
	tag, err := s.pool.Exec(ctx, "UPDATE agent_orders SET status = $1, updated_at = NOW() WHERE id = $2", status, id)
	if err != nil {
		return newErr(KindUpstream, fmt.Sprintf("failed to update order %d status", id), err)
	}
	if tag.RowsAffected() == 0 {
		return newErr(KindNotFound, fmt.Sprintf("order %d not found", id), nil)
	}
	return nil
}
