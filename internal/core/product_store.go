package core

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

// priceOperators maps the public price-operator values to SQL comparison
// operators. An unrecognized or absent operator defaults to "eq".
var priceOperators = map[string]string{
	"gt": ">",
	"lt": "<",
	"eq": "=",
}

// ListProducts filters the product catalog. category is matched
// case-insensitively after CanonicalCategory; search performs per-word
// partial matches across name, description, and specifications, combined
// disjunctively across fields and conjunctively across words. Ordering is
// by name ascending, stable across invocations.
func (s *Store) ListProducts(ctx context.Context, category, search string, price *decimal.Decimal, priceOp string) ([]Product, error) {
	query := "SELECT id, name, description, specifications, category, price, stock_quantity, weight, created_at FROM agent_products WHERE 1=1"
	var args []any

	if category != "" {
		query += fmt.Sprintf(" AND LOWER(category) = $%d", len(args)+1)
		args = append(args, CanonicalCategory(category))
	}

	if search != "" {
		words := strings.Fields(search)
		clauses := make([]string, 0, len(words))
		for _, w := range words {
			clauses = append(clauses, fmt.Sprintf("(name ILIKE $%d OR description ILIKE $%d OR specifications ILIKE $%d)", len(args)+1, len(args)+1, len(args)+1))
			args = append(args, "%"+w+"%")
		}
		query += " AND (" + strings.Join(clauses, " AND ") + ")"
	}

	if price != nil {
		op, ok := priceOperators[priceOp]
		if !ok {
			op = "="
		}
		query += fmt.Sprintf(" AND price %s $%d", op, len(args)+1)
		args = append(args, *price)
	}

	query += " ORDER BY name"

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, newErr(KindUpstream, "failed to query product catalog", err)
	}
	defer rows.Close()

	var products []Product
	for rows.Next() {
		var p Product
		if err := rows.Scan(&p.ID, &p.Name, &p.Description, &p.Specifications, &p.Category, &p.Price, &p.Stock, &p.Weight, &p.CreatedAt); err != nil {
			return nil, newErr(KindUpstream, "failed to scan product", err)
		}
		products = append(products, p)
	}
	if err := rows.Err(); err != nil {
		return nil, newErr(KindUpstream, "product catalog row iteration failed", err)
	}
	return products, nil
}

// GetProduct returns one product by id.
func (s *Store) GetProduct(ctx context.Context, id int) (*Product, error) {
	return s.getProductQ(ctx, s.pool, id)
}

func (s *Store) getProductQ(ctx context.Context, q pgxQuerier, id int) (*Product, error) {
	var p Product
	err := q.QueryRow(ctx, `
		SELECT id, name, description, specifications, category, price, stock_quantity, weight, created_at
		FROM agent_products WHERE id = $1
	`, id).Scan(&p.ID, &p.Name, &p.Description, &p.Specifications, &p.Category, &p.Price, &p.Stock, &p.Weight, &p.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, newErr(KindNotFound, fmt.Sprintf("product %d not found", id), nil)
		}
		return nil, newErr(KindUpstream, fmt.Sprintf("failed to fetch product %d", id), err)
	}
	return &p, nil
}

// CheckStock returns a product's current stock count.
func (s *Store) CheckStock(ctx context.Context, id int) (int, error) {
	var stock int
	err := s.pool.QueryRow(ctx, "SELECT stock_quantity FROM agent_products WHERE id = $1", id).Scan(&stock)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, newErr(KindNotFound, fmt.Sprintf("product %d not found", id), nil)
		}
		return 0, newErr(KindUpstream, fmt.Sprintf("failed to check stock for product %d", id), err)
	}
	return stock, nil
}
