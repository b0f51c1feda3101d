// Package store reads the relational records the purchase pipeline needs
// and persists the buyer-to-gateway-customer mapping.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"fiat-checkout/internal/status"
	"fiat-checkout/models"
)

type Store struct {
	pool *pgxpool.Pool
}

func New(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

func Connect(ctx context.Context, uri string) (*Store, error) {
	pool, err := pgxpool.New(ctx, uri)
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	return &Store{pool: pool}, nil
}

func (s *Store) Close() {
	s.pool.Close()
}

func (s *Store) ReadTicketType(ctx context.Context, eventID string, index uint8) (models.TicketType, error) {
	const query = `
SELECT event_id, index, sale_type, price
FROM ticket_types
WHERE event_id = $1 AND index = $2`

	var tt models.TicketType
	err := s.pool.QueryRow(ctx, query, eventID, int16(index)).
		Scan(&tt.EventID, &tt.Index, &tt.SaleType, &tt.Price)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.TicketType{}, fmt.Errorf("ticket type %s/%d: %w", eventID, index, status.ErrNotFound)
		}
		return models.TicketType{}, fmt.Errorf("read ticket type: %w", err)
	}
	return tt, nil
}

func (s *Store) ReadListing(ctx context.Context, ref string) (models.Listing, error) {
	const query = `
SELECT ref, event_id, ticket_token, sale_type, ask_price
FROM listings
WHERE ref = $1`

	var l models.Listing
	err := s.pool.QueryRow(ctx, query, ref).
		Scan(&l.Ref, &l.EventID, &l.TicketToken, &l.SaleType, &l.AskPrice)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Listing{}, fmt.Errorf("listing %s: %w", ref, status.ErrNotFound)
		}
		return models.Listing{}, fmt.Errorf("read listing: %w", err)
	}
	return l, nil
}

func (s *Store) ReadAccount(ctx context.Context, id string) (models.Account, error) {
	const query = `SELECT id, email FROM accounts WHERE id = $1`

	var a models.Account
	if err := s.pool.QueryRow(ctx, query, id).Scan(&a.ID, &a.Email); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Account{}, fmt.Errorf("account %s: %w", id, status.ErrNotFound)
		}
		return models.Account{}, fmt.Errorf("read account: %w", err)
	}
	return a, nil
}

func (s *Store) ReadGatewayCustomer(ctx context.Context, accountID string) (models.GatewayCustomer, error) {
	const query = `
SELECT account_id, customer_id, created_at
FROM gateway_customers
WHERE account_id = $1`

	var gc models.GatewayCustomer
	err := s.pool.QueryRow(ctx, query, accountID).
		Scan(&gc.AccountID, &gc.CustomerID, &gc.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.GatewayCustomer{}, fmt.Errorf("gateway customer %s: %w", accountID, status.ErrNotFound)
		}
		return models.GatewayCustomer{}, fmt.Errorf("read gateway customer: %w", err)
	}
	return gc, nil
}

// UpsertGatewayCustomer is last-writer-wins: two concurrent first-time
// buyers may both create a gateway customer and the later mapping sticks.
func (s *Store) UpsertGatewayCustomer(ctx context.Context, gc models.GatewayCustomer) error {
	const query = `
INSERT INTO gateway_customers (account_id, customer_id, created_at)
VALUES ($1, $2, $3)
ON CONFLICT (account_id) DO UPDATE SET customer_id = $2, created_at = $3`

	if _, err := s.pool.Exec(ctx, query, gc.AccountID, gc.CustomerID, gc.CreatedAt); err != nil {
		return fmt.Errorf("upsert gateway customer: %w", err)
	}
	return nil
}

func (s *Store) ReadOrganizerAccount(ctx context.Context, eventID string) (models.OrganizerAccount, error) {
	const query = `
SELECT event_id, account_id
FROM organizer_gateway_accounts
WHERE event_id = $1`

	var oa models.OrganizerAccount
	if err := s.pool.QueryRow(ctx, query, eventID).Scan(&oa.EventID, &oa.AccountID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.OrganizerAccount{}, fmt.Errorf("organizer account for event %s: %w", eventID, status.ErrNotFound)
		}
		return models.OrganizerAccount{}, fmt.Errorf("read organizer account: %w", err)
	}
	return oa, nil
}
