package core

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
)

// CreateTicket opens a new support ticket. Priority defaults to "medium"
// when empty.
func (s *Store) CreateTicket(ctx context.Context, customerName, customerEmail, issue string, priority TicketPriority) (int, error) {
	if customerName == "" || customerEmail == "" || issue == "" {
		return 0, newErr(KindInvalidArguments, "customer_name, customer_email, and issue_description are required", nil)
	}
	if priority == "" {
		priority = PriorityMedium
	}
	var id int
	err := s.pool.QueryRow(ctx, `
		INSERT INTO agent_support_tickets (customer_name, customer_email, issue_description, priority, status)
		VALUES ($1, $2, $3, $4, 'open')
		RETURNING id
	`, customerName, customerEmail, issue, priority).Scan(&id)
	if err != nil {
		return 0, newErr(KindUpstream, "failed to create support ticket", err)
	}
	return id, nil
}

// GetTicket returns one ticket by id.
func (s *Store) GetTicket(ctx context.Context, id int) (*SupportTicket, error) {
	var t SupportTicket
	err := s.pool.QueryRow(ctx, `
		SELECT id, customer_name, customer_email, issue_description, priority, status, created_at, updated_at, resolved_at
		FROM agent_support_tickets WHERE id = $1
	`, id).Scan(&t.ID, &t.CustomerName, &t.CustomerEmail, &t.Issue, &t.Priority, &t.Status, &t.CreatedAt, &t.UpdatedAt, &t.ResolvedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, newErr(KindNotFound, fmt.Sprintf("ticket %d not found", id), nil)
		}
		return nil, newErr(KindUpstream, fmt.Sprintf("failed to fetch ticket %d", id), err)
	}
	return &t, nil
}

// ListTickets returns all tickets, optionally filtered by status.
func (s *Store) ListTickets(ctx context.Context, status string) ([]SupportTicket, error) {
	query := `
		SELECT id, customer_name, customer_email, issue_description, priority, status, created_at, updated_at, resolved_at
		FROM agent_support_tickets WHERE 1=1`
	var args []any
	if status != "" {
		query += " AND status = $1"
		args = append(args, status)
	}
	query += " ORDER BY id"

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, newErr(KindUpstream, "failed to query support tickets", err)
	}
	defer rows.Close()

	var tickets []SupportTicket
	for rows.Next() {
		var t SupportTicket
		if err := rows.Scan(&t.ID, &t.CustomerName, &t.CustomerEmail, &t.Issue, &t.Priority, &t.Status, &t.CreatedAt, &t.UpdatedAt, &t.ResolvedAt); err != nil {
			return nil, newErr(KindUpstream, "failed to scan support ticket", err)
		}
		tickets = append(tickets, t)
	}
	return tickets, nil
}

// UpdateTicketStatus sets a ticket's status. Transitions are not validated
// here, matching UpdateOrderStatus.
// resolved_at is stamped the first time status becomes "resolved" and left
// untouched on subsequent updates; any other status only touches updated_at.
func (s *Store) UpdateTicketStatus(ctx context.Context, id int, status TicketStatus) error {
	var tag interface{ RowsAffected() int64 }
	var err error
	if status == TicketResolved {
		res, e := s.pool.Exec(ctx, `
			UPDATE agent_support_tickets
			SET status = $1, updated_at = NOW(), resolved_at = COALESCE(resolved_at, NOW())
			WHERE id = $2
		`, status, id)
		tag, err = res, e
	} else {
		res, e := s.pool.Exec(ctx, "UPDATE agent_support_tickets SET status = $1, updated_at = NOW() WHERE id = $2", status, id)
		tag, err = res, e
	}
	if err != nil {
		return newErr(KindUpstream, fmt.Sprintf("failed to update ticket %d status", id), err)
	}
	if tag.RowsAffected() == 0 {
		return newErr(KindNotFound, fmt.Sprintf("ticket %d not found", id), nil)
	}
	return nil
}
