package database

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/floroz/bidworker/internal/bids"
)

// PostgresBidDocumentRepository implements bids.Repository as a JSONB document
// collection: one bid document per row, keyed by the bid id.
type PostgresBidDocumentRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresBidDocumentRepository creates a new PostgreSQL bid document repository
func NewPostgresBidDocumentRepository(pool *pgxpool.Pool) *PostgresBidDocumentRepository {
	return &PostgresBidDocumentRepository{pool: pool}
}

// InsertBid stores a new document. A duplicate id violates the primary key.
func (r *PostgresBidDocumentRepository) InsertBid(ctx context.Context, bid bids.Bid) error {
	doc, err := json.Marshal(bid)
	if err != nil {
		return fmt.Errorf("failed to encode bid document: %w", err)
	}

	query := `INSERT INTO bid_documents (id, document) VALUES ($1, $2)`
	if _, err := r.pool.Exec(ctx, query, bid.ID, doc); err != nil {
		return fmt.Errorf("failed to insert bid: %w", err)
	}
	return nil
}

// GetBids returns every bid in insertion order
func (r *PostgresBidDocumentRepository) GetBids(ctx context.Context) ([]bids.Bid, error) {
	query := `SELECT document FROM bid_documents ORDER BY seq`
	return r.query(ctx, query)
}

// GetBidsByAuctionID returns the bids for an auction in insertion order
func (r *PostgresBidDocumentRepository) GetBidsByAuctionID(ctx context.Context, auctionID string) ([]bids.Bid, error) {
	query := `
		SELECT document
		FROM bid_documents
		WHERE document->>'auctionId' = $1
		ORDER BY seq
	`
	return r.query(ctx, query, auctionID)
}

// GetBidByID retrieves a bid by its ID
func (r *PostgresBidDocumentRepository) GetBidByID(ctx context.Context, id uuid.UUID) (*bids.Bid, error) {
	var doc []byte
	err := r.pool.QueryRow(ctx, `SELECT document FROM bid_documents WHERE id = $1`, id).Scan(&doc)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get bid: %w", err)
	}

	var bid bids.Bid
	if err := json.Unmarshal(doc, &bid); err != nil {
		return nil, fmt.Errorf("failed to decode bid document %s: %w", id, err)
	}
	return &bid, nil
}

// DeleteBidByID removes a bid and reports whether it existed
func (r *PostgresBidDocumentRepository) DeleteBidByID(ctx context.Context, id uuid.UUID) (bool, error) {
	tag, err := r.pool.Exec(ctx, `DELETE FROM bid_documents WHERE id = $1`, id)
	if err != nil {
		return false, fmt.Errorf("failed to delete bid: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

func (r *PostgresBidDocumentRepository) query(ctx context.Context, query string, args ...any) ([]bids.Bid, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query bids: %w", err)
	}
	defer rows.Close()

	result := []bids.Bid{}
	for rows.Next() {
		var doc []byte
		if err := rows.Scan(&doc); err != nil {
			return nil, fmt.Errorf("failed to scan bid: %w", err)
		}
		var bid bids.Bid
		if err := json.Unmarshal(doc, &bid); err != nil {
			return nil, fmt.Errorf("failed to decode bid document: %w", err)
		}
		result = append(result, bid)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating bids: %w", err)
	}

	return result, nil
}
