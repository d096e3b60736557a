package bids

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"
)

// StoreOptions tunes the durable write path.
// Zero values mean no timeout and no cap on concurrent writes.
type StoreOptions struct {
	WriteTimeout      time.Duration
	MaxInFlightWrites int64
}

// Store keeps every accepted bid in two independent backends: the in-memory
// list (written synchronously) and the durable repository (written in the
// background). The two are never reconciled.
type Store struct {
	memory       *MemoryStore
	repo         Repository
	logger       *slog.Logger
	writeTimeout time.Duration
	writes       *semaphore.Weighted

	wg            sync.WaitGroup
	received      atomic.Int64
	persisted     atomic.Int64
	persistFailed atomic.Int64
	inFlight      atomic.Int64
}

// NewStore creates a dual-backend bid store
func NewStore(memory *MemoryStore, repo Repository, logger *slog.Logger, opts StoreOptions) *Store {
	s := &Store{
		memory:       memory,
		repo:         repo,
		logger:       logger,
		writeTimeout: opts.WriteTimeout,
	}
	if opts.MaxInFlightWrites > 0 {
		s.writes = semaphore.NewWeighted(opts.MaxInFlightWrites)
	}
	return s
}

// Add inserts the bid into memory and starts the durable write without waiting
// for it. The returned channel yields the durable result once and is then closed.
func (s *Store) Add(ctx context.Context, bid Bid) (Bid, <-chan error) {
	s.received.Add(1)
	stored := s.memory.Insert(bid)

	done := make(chan error, 1)
	s.wg.Add(1)
	s.inFlight.Add(1)
	go func() {
		defer s.wg.Done()
		defer s.inFlight.Add(-1)
		done <- s.persist(ctx, stored)
		close(done)
	}()

	return stored, done
}

// persist outlives the caller's context: shutdown stops consumption, not writes.
func (s *Store) persist(ctx context.Context, bid Bid) error {
	writeCtx := context.WithoutCancel(ctx)
	if s.writeTimeout > 0 {
		var cancel context.CancelFunc
		writeCtx, cancel = context.WithTimeout(writeCtx, s.writeTimeout)
		defer cancel()
	}

	if s.writes != nil {
		if err := s.writes.Acquire(writeCtx, 1); err != nil {
			s.persistFailed.Add(1)
			s.logger.Error("Failed to acquire write slot", "bid_id", bid.ID, "error", err)
			return fmt.Errorf("failed to acquire write slot: %w", err)
		}
		defer s.writes.Release(1)
	}

	if err := s.repo.InsertBid(writeCtx, bid); err != nil {
		s.persistFailed.Add(1)
		s.logger.Error("Failed to persist bid", "bid_id", bid.ID, "auction_id", bid.AuctionID, "error", err)
		return fmt.Errorf("failed to persist bid %s: %w", bid.ID, err)
	}

	s.persisted.Add(1)
	s.logger.Debug("Bid persisted", "bid_id", bid.ID)
	return nil
}

// Wait blocks until every started durable write has finished or ctx is done
func (s *Store) Wait(ctx context.Context) error {
	drained := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(drained)
	}()

	select {
	case <-drained:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("abandoned %d durable writes: %w", s.inFlight.Load(), ctx.Err())
	}
}

// Stats returns a snapshot of the store counters
func (s *Store) Stats() StoreStats {
	return StoreStats{
		Received:      s.received.Load(),
		InMemory:      int64(s.memory.Len()),
		Persisted:     s.persisted.Load(),
		PersistFailed: s.persistFailed.Load(),
		InFlight:      s.inFlight.Load(),
	}
}

// GetBids returns every bid held in memory
func (s *Store) GetBids() []Bid {
	return s.memory.All()
}

// GetBidsByAuctionID returns the in-memory bids for an auction
func (s *Store) GetBidsByAuctionID(auctionID string) []Bid {
	return s.memory.ByAuctionID(auctionID)
}

// GetBidByID looks a bid up in memory
func (s *Store) GetBidByID(id uuid.UUID) (Bid, bool) {
	return s.memory.ByID(id)
}

// GetStoredBids returns every bid in the durable collection
func (s *Store) GetStoredBids(ctx context.Context) ([]Bid, error) {
	return s.repo.GetBids(ctx)
}

// GetStoredBidsByAuctionID returns the durable bids for an auction
func (s *Store) GetStoredBidsByAuctionID(ctx context.Context, auctionID string) ([]Bid, error) {
	return s.repo.GetBidsByAuctionID(ctx, auctionID)
}

// GetStoredBidByID returns nil when the bid is not in the durable collection
func (s *Store) GetStoredBidByID(ctx context.Context, id uuid.UUID) (*Bid, error) {
	return s.repo.GetBidByID(ctx, id)
}

// DeleteStoredBidByID removes a bid from the durable collection only.
// The in-memory list has no delete path.
func (s *Store) DeleteStoredBidByID(ctx context.Context, id uuid.UUID) (bool, error) {
	return s.repo.DeleteBidByID(ctx, id)
}
