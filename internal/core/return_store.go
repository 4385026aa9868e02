package core

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

// CreateReturn records a return against an existing order. productIDs and
// quantities must both be empty (a full-order return of every remaining
// returnable unit) or both non-empty and the same length (a partial return);
// supplying one without the other is rejected.
//
// Each requested quantity is checked against the order's remaining
// returnable quantity (ordered quantity minus whatever has already been
// returned across any non-rejected return for that order) inside the same
// transaction as the insert, so two concurrent returns against the same
// order cannot together over-return a line.
func (s *Store) CreateReturn(ctx context.Context, orderID int, reason string, productIDs []int, quantities []int) (int, error) {
	if len(productIDs) != len(quantities) {
		return 0, newErr(KindInvalidArguments, "product_ids and quantities must both be supplied or both omitted", nil)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return 0, newErr(KindUpstream, "failed to begin transaction", err)
	}
	defer tx.Rollback(ctx)

	orderItems, err := s.fetchOrderItemsTx(ctx, tx, orderID)
	if err != nil {
		return 0, err
	}
	if len(orderItems) == 0 {
		return 0, newErr(KindNotFound, fmt.Sprintf("order %d not found", orderID), nil)
	}

	orderedQty := make(map[int]int, len(orderItems))
	priceAt := make(map[int]decimal.Decimal, len(orderItems))
	for _, it := range orderItems {
		orderedQty[it.ProductID] = it.Quantity
		priceAt[it.ProductID] = it.PriceAtPurchase
	}

	alreadyReturned, err := s.alreadyReturnedQuantities(ctx, tx, orderID)
	if err != nil {
		return 0, err
	}

	type line struct {
		productID int
		quantity  int
	}
	var lines []line

	if len(productIDs) == 0 {
		// Full-order return: every line, for whatever quantity remains.
		for _, it := range orderItems {
			remaining := it.Quantity - alreadyReturned[it.ProductID]
			if remaining > 0 {
				lines = append(lines, line{productID: it.ProductID, quantity: remaining})
			}
		}
		if len(lines) == 0 {
			return 0, newErr(KindInvalidArguments, "order has no remaining returnable quantity", nil)
		}
	} else {
		for i, pid := range productIDs {
			q := quantities[i]
			if q < 1 {
				return 0, newErr(KindInvalidArguments, fmt.Sprintf("quantity at index %d must be >= 1", i), nil)
			}
			ordered, ok := orderedQty[pid]
			if !ok {
				return 0, newErr(KindInvalidArguments, fmt.Sprintf("product %d was not part of order %d", pid, orderID), nil)
			}
			remaining := ordered - alreadyReturned[pid]
			if q > remaining {
				return 0, newErr(KindInvalidArguments, fmt.Sprintf("product %d: requested return quantity %d exceeds remaining returnable quantity %d", pid, q, remaining), nil)
			}
			lines = append(lines, line{productID: pid, quantity: q})
		}
	}

	refundTotal := decimal.Zero
	for _, l := range lines {
		refundTotal = refundTotal.Add(priceAt[l.productID].Mul(decimal.NewFromInt(int64(l.quantity))))
	}

	var returnID int
	err = tx.QueryRow(ctx, `
		INSERT INTO agent_returns (order_id, return_reason, status, refund_total_amount)
		VALUES ($1, $2, 'pending', $3)
		RETURNING id
	`, orderID, reason, refundTotal).Scan(&returnID)
	if err != nil {
		return 0, newErr(KindUpstream, "failed to insert return", err)
	}

	for _, l := range lines {
		if _, err := tx.Exec(ctx, `
			INSERT INTO agent_return_items (return_id, product_id, quantity, price_at_purchase)
			VALUES ($1, $2, $3, $4)
		`, returnID, l.productID, l.quantity, priceAt[l.productID]); err != nil {
			return 0, newErr(KindUpstream, "failed to insert return item", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, newErr(KindUpstream, "failed to commit return creation", err)
	}
	return returnID, nil
}

// alreadyReturnedQuantities sums, per product, the quantity already returned
// for orderID across any return not in the rejected state.
func (s *Store) alreadyReturnedQuantities(ctx context.Context, tx pgx.Tx, orderID int) (map[int]int, error) {
	rows, err := tx.Query(ctx, `
		SELECT ri.product_id, SUM(ri.quantity)
		FROM agent_return_items ri
		JOIN agent_returns r ON r.id = ri.return_id
		WHERE r.order_id = $1 AND r.status != 'rejected'
		GROUP BY ri.product_id
	`, orderID)
	if err != nil {
		return nil, newErr(KindUpstream, "failed to sum prior returns", err)
	}
	defer rows.Close()

	totals := make(map[int]int)
	for rows.Next() {
		var pid, qty int
		if err := rows.Scan(&pid, &qty); err != nil {
			return nil, newErr(KindUpstream, "failed to scan prior return total", err)
		}
		totals[pid] = qty
	}
	return totals, nil
}

// GetReturn returns the return header plus its items.
func (s *Store) GetReturn(ctx context.Context, id int) (*ReturnOrder, error) {
	var r ReturnOrder
	err := s.pool.QueryRow(ctx, `
		SELECT id, order_id, return_reason, status, refund_total_amount, created_at, updated_at, processed_at
		FROM agent_returns WHERE id = $1
	`, id).Scan(&r.ID, &r.OrderID, &r.Reason, &r.Status, &r.RefundTotalAmount, &r.CreatedAt, &r.UpdatedAt, &r.ProcessedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, newErr(KindNotFound, fmt.Sprintf("return %d not found", id), nil)
		}
		return nil, newErr(KindUpstream, fmt.Sprintf("failed to fetch return %d", id), err)
	}

	rows, err := s.pool.Query(ctx, `
		SELECT return_id, product_id, quantity, price_at_purchase
		FROM agent_return_items WHERE return_id = $1 ORDER BY product_id
	`, id)
	if err != nil {
		return nil, newErr(KindUpstream, "failed to query return items", err)
	}
	defer rows.Close()
	for rows.Next() {
		var it ReturnItem
		if err := rows.Scan(&it.ReturnID, &it.ProductID, &it.Quantity, &it.PriceAtPurchase); err != nil {
			return nil, newErr(KindUpstream, "failed to scan return item", err)
		}
		r.Items = append(r.Items, it)
	}
	return &r, nil
}

// ListReturns returns all returns, optionally filtered by status.
func (s *Store) ListReturns(ctx context.Context, status string) ([]ReturnOrder, error) {
	query := `
		SELECT id, order_id, return_reason, status, refund_total_amount, created_at, updated_at, processed_at
		FROM agent_returns WHERE 1=1`
	var args []any
	if status != "" {
		query += " AND status = $1"
		args = append(args, status)
	}
	query += " ORDER BY id"

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, newErr(KindUpstream, "failed to query returns", err)
	}
	defer rows.Close()

	var returns []ReturnOrder
	for rows.Next() {
		var r ReturnOrder
		if err := rows.Scan(&r.ID, &r.OrderID, &r.Reason, &r.Status, &r.RefundTotalAmount, &r.CreatedAt, &r.UpdatedAt, &r.ProcessedAt); err != nil {
			return nil, newErr(KindUpstream, "failed to scan return", err)
		}
		returns = append(returns, r)
	}
	return returns, nil
}

// UpdateReturnStatus sets a return's status. Transitions are not validated
// here, matching UpdateOrderStatus. processed_at is stamped the first time status becomes
// "processed"; any other status only touches updated_at.
func (s *Store) UpdateReturnStatus(ctx context.Context, id int, status ReturnStatus) error {
	var res struct{ rowsAffected int64 }
	var err error
	if status == ReturnProcessed {
		tag, e := s.pool.Exec(ctx, `
			UPDATE agent_returns
			SET status = $1, updated_at = NOW(), processed_at = COALESCE(processed_at, NOW())
			WHERE id = $2
		`, status, id)
		if e == nil {
			res.rowsAffected = tag.RowsAffected()
		}
		err = e
	} else {
		tag, e := s.pool.Exec(ctx, "UPDATE agent_returns SET status = $1, updated_at = NOW() WHERE id = $2", status, id)
		if e == nil {
			res.rowsAffected = tag.RowsAffected()
		}
		err = e
	}
	if err != nil {
		return newErr(KindUpstream, fmt.Sprintf("failed to update return %d status", id), err)
	}
	if res.rowsAffected == 0 {
		return newErr(KindNotFound, fmt.Sprintf("return %d not found", id), nil)
	}
	return nil
}
