package bids_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/floroz/bidworker/internal/bids"
	"github.com/floroz/bidworker/internal/testhelpers"
)

func newTestStore(repo bids.Repository, opts bids.StoreOptions) *bids.Store {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return bids.NewStore(bids.NewMemoryStore(), repo, logger, opts)
}

func TestStore_AddWritesBothBackends(t *testing.T) {
	repo := &testhelpers.FakeBidRepository{}
	store := newTestStore(repo, bids.StoreOptions{})
	ctx := context.Background()

	stored, done := store.Add(ctx, bids.Bid{
		AuctionID:  "A1",
		BidderName: "alice",
		Amount:     decimal.RequireFromString("100.00"),
	})
	require.NoError(t, <-done)

	all := store.GetBids()
	require.Len(t, all, 1)
	assert.Equal(t, "alice", all[0].BidderName)
	assert.True(t, decimal.RequireFromString("100.00").Equal(all[0].Amount))
	assert.NotEqual(t, uuid.Nil, all[0].ID)
	assert.False(t, all[0].Timestamp.IsZero())

	durable, err := store.GetStoredBidByID(ctx, stored.ID)
	require.NoError(t, err)
	require.NotNil(t, durable)
	assert.Equal(t, stored, *durable)

	stats := store.Stats()
	assert.Equal(t, int64(1), stats.Received)
	assert.Equal(t, int64(1), stats.InMemory)
	assert.Equal(t, int64(1), stats.Persisted)
	assert.Equal(t, int64(0), stats.PersistFailed)
}

func TestStore_DurableFailureKeepsMemoryCopy(t *testing.T) {
	repo := &testhelpers.FakeBidRepository{InsertErr: errors.New("connection reset")}
	store := newTestStore(repo, bids.StoreOptions{})
	ctx := context.Background()

	stored, done := store.Add(ctx, bids.Bid{AuctionID: "A1", BidderName: "alice"})
	err := <-done
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection reset")

	_, ok := store.GetBidByID(stored.ID)
	assert.True(t, ok, "memory write happens before and independently of the durable write")

	durable, err := store.GetStoredBidByID(ctx, stored.ID)
	require.NoError(t, err)
	assert.Nil(t, durable)

	stats := store.Stats()
	assert.Equal(t, int64(1), stats.InMemory)
	assert.Equal(t, int64(0), stats.Persisted)
	assert.Equal(t, int64(1), stats.PersistFailed)
}

func TestStore_AddDoesNotWaitForDurableWrite(t *testing.T) {
	repo := &testhelpers.FakeBidRepository{Block: make(chan struct{})}
	store := newTestStore(repo, bids.StoreOptions{})

	stored, done := store.Add(context.Background(), bids.Bid{AuctionID: "A1"})

	_, ok := store.GetBidByID(stored.ID)
	assert.True(t, ok)
	assert.Equal(t, int64(1), store.Stats().InFlight)

	close(repo.Block)
	require.NoError(t, <-done)
	assert.Equal(t, int64(0), store.Stats().InFlight)
}

func TestStore_WriteSurvivesCallerCancellation(t *testing.T) {
	repo := &testhelpers.FakeBidRepository{Block: make(chan struct{})}
	store := newTestStore(repo, bids.StoreOptions{})

	ctx, cancel := context.WithCancel(context.Background())
	_, done := store.Add(ctx, bids.Bid{AuctionID: "A1"})
	cancel()
	close(repo.Block)

	require.NoError(t, <-done)
	assert.Equal(t, int64(1), store.Stats().Persisted)
}

func TestStore_WriteTimeout(t *testing.T) {
	repo := &testhelpers.FakeBidRepository{Block: make(chan struct{})}
	defer close(repo.Block)
	store := newTestStore(repo, bids.StoreOptions{WriteTimeout: 20 * time.Millisecond})

	_, done := store.Add(context.Background(), bids.Bid{AuctionID: "A1"})

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.DeadlineExceeded)
	case <-time.After(2 * time.Second):
		t.Fatal("durable write did not time out")
	}
}

func TestStore_WaitDrainsWrites(t *testing.T) {
	repo := &testhelpers.FakeBidRepository{Block: make(chan struct{})}
	store := newTestStore(repo, bids.StoreOptions{MaxInFlightWrites: 2})

	for i := 0; i < 5; i++ {
		store.Add(context.Background(), bids.Bid{AuctionID: "A1"})
	}

	shortCtx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, store.Wait(shortCtx), context.DeadlineExceeded)

	close(repo.Block)
	require.NoError(t, store.Wait(context.Background()))

	stored, err := store.GetStoredBids(context.Background())
	require.NoError(t, err)
	assert.Len(t, stored, 5)
}

func TestStore_DeleteOnlyTouchesDurableBackend(t *testing.T) {
	repo := &testhelpers.FakeBidRepository{}
	store := newTestStore(repo, bids.StoreOptions{})
	ctx := context.Background()

	stored, done := store.Add(ctx, bids.Bid{AuctionID: "A1", BidderName: "alice"})
	require.NoError(t, <-done)

	deleted, err := store.DeleteStoredBidByID(ctx, stored.ID)
	require.NoError(t, err)
	assert.True(t, deleted)

	durable, err := store.GetStoredBidByID(ctx, stored.ID)
	require.NoError(t, err)
	assert.Nil(t, durable)

	_, ok := store.GetBidByID(stored.ID)
	assert.True(t, ok)

	deleted, err = store.DeleteStoredBidByID(ctx, stored.ID)
	require.NoError(t, err)
	assert.False(t, deleted)
}

func TestStore_QueriesByAuction(t *testing.T) {
	repo := &testhelpers.FakeBidRepository{}
	store := newTestStore(repo, bids.StoreOptions{})
	ctx := context.Background()

	for _, auction := range []string{"A1", "A2", "A1"} {
		_, done := store.Add(ctx, bids.Bid{AuctionID: auction})
		require.NoError(t, <-done)
	}

	assert.Len(t, store.GetBidsByAuctionID("A1"), 2)

	durable, err := store.GetStoredBidsByAuctionID(ctx, "A1")
	require.NoError(t, err)
	assert.Len(t, durable, 2)

	all, err := store.GetStoredBids(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 3)
}
