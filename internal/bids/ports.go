package bids

import (
	"context"

	"github.com/google/uuid"
)

// Repository defines the durable bid collection
type Repository interface {
	// InsertBid writes a new document. The store rejects duplicate ids.
	InsertBid(ctx context.Context, bid Bid) error

	// GetBids returns every stored bid in storage order
	GetBids(ctx context.Context) ([]Bid, error)

	// GetBidsByAuctionID returns the bids whose auction id equals auctionID
	GetBidsByAuctionID(ctx context.Context, auctionID string) ([]Bid, error)

	// GetBidByID returns nil and no error when the bid does not exist
	GetBidByID(ctx context.Context, id uuid.UUID) (*Bid, error)

	// DeleteBidByID reports whether a document was removed
	DeleteBidByID(ctx context.Context, id uuid.UUID) (bool, error)
}
