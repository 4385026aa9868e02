package core

import (
	"context"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// pgxQuerier is satisfied by both *pgxpool.Pool and pgx.Tx, enabling shared
// query helpers across standalone calls and transaction-scoped calls.
type pgxQuerier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// pgxRowQuerier is the Query-capable counterpart of pgxQuerier.
type pgxRowQuerier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// Store bundles the relational operations behind one value that callers
// construct once per process and share across sessions via the pool.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore wraps an already-open connection pool, the only process-scoped
// shared resource of this package.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// accessoryLikeCategories are plurals that must not be singularized by
// stripping a trailing "s".
var accessoryLikeCategories = map[string]bool{
	"accessories": true,
}

// CanonicalCategory lowercases and singularizes category for case and
// plural insensitive catalog matching.
func CanonicalCategory(category string) string {
	c := strings.ToLower(strings.TrimSpace(category))
	if c == "" {
		return c
	}
	if strings.HasSuffix(c, "s") && !accessoryLikeCategories[c] {
		c = strings.TrimSuffix(c, "s")
	}
	return c
}
