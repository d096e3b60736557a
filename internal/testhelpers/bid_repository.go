package testhelpers

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/floroz/bidworker/internal/bids"
)

// FakeBidRepository is an in-process bids.Repository.
// Set InsertErr or QueryErr to simulate a failing durable store. A non-nil Block
// holds every InsertBid until it is closed or the write context is done.
type FakeBidRepository struct {
	mu        sync.Mutex
	bids      []bids.Bid
	InsertErr error
	QueryErr  error
	Block     chan struct{}
}

func (r *FakeBidRepository) InsertBid(ctx context.Context, bid bids.Bid) error {
	if r.Block != nil {
		select {
		case <-r.Block:
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.InsertErr != nil {
		return r.InsertErr
	}
	for _, b := range r.bids {
		if b.ID == bid.ID {
			return fmt.Errorf("duplicate bid id %s", bid.ID)
		}
	}
	r.bids = append(r.bids, bid)
	return nil
}

func (r *FakeBidRepository) GetBids(ctx context.Context) ([]bids.Bid, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.QueryErr != nil {
		return nil, r.QueryErr
	}
	return append([]bids.Bid{}, r.bids...), nil
}

func (r *FakeBidRepository) GetBidsByAuctionID(ctx context.Context, auctionID string) ([]bids.Bid, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.QueryErr != nil {
		return nil, r.QueryErr
	}
	out := []bids.Bid{}
	for _, b := range r.bids {
		if b.AuctionID == auctionID {
			out = append(out, b)
		}
	}
	return out, nil
}

func (r *FakeBidRepository) GetBidByID(ctx context.Context, id uuid.UUID) (*bids.Bid, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.QueryErr != nil {
		return nil, r.QueryErr
	}
	for _, b := range r.bids {
		if b.ID == id {
			found := b
			return &found, nil
		}
	}
	return nil, nil
}

func (r *FakeBidRepository) DeleteBidByID(ctx context.Context, id uuid.UUID) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.QueryErr != nil {
		return false, r.QueryErr
	}
	for i, b := range r.bids {
		if b.ID == id {
			r.bids = append(r.bids[:i], r.bids[i+1:]...)
			return true, nil
		}
	}
	return false, nil
}

// Len returns the number of stored bids
func (r *FakeBidRepository) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.bids)
}
