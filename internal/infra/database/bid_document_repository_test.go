package database_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/floroz/bidworker/internal/bids"
	"github.com/floroz/bidworker/internal/infra/database"
	"github.com/floroz/bidworker/internal/testhelpers"
)

func newBid(auctionID, bidder, amount string) bids.Bid {
	return bids.Bid{
		ID:         uuid.New(),
		AuctionID:  auctionID,
		BidderName: bidder,
		Amount:     decimal.RequireFromString(amount),
		Timestamp:  time.Now().UTC().Truncate(time.Millisecond),
	}
}

func TestPostgresBidDocumentRepository(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	testDB := testhelpers.NewTestDatabase(t)
	defer testDB.Close()

	repo := database.NewPostgresBidDocumentRepository(testDB.Pool)
	ctx := context.Background()

	t.Run("insert then get by id keeps every field", func(t *testing.T) {
		testhelpers.CleanDatabase(t, testDB.Pool)

		bid := newBid("A1", "alice", "100.00")
		bid.Status = "accepted"
		require.NoError(t, repo.InsertBid(ctx, bid))

		got, err := repo.GetBidByID(ctx, bid.ID)
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, bid.ID, got.ID)
		assert.Equal(t, "A1", got.AuctionID)
		assert.Equal(t, "alice", got.BidderName)
		assert.True(t, bid.Amount.Equal(got.Amount))
		assert.True(t, bid.Timestamp.Equal(got.Timestamp))
		assert.Equal(t, "accepted", got.Status)
	})

	t.Run("get by id of unknown bid returns nil", func(t *testing.T) {
		got, err := repo.GetBidByID(ctx, uuid.New())
		require.NoError(t, err)
		assert.Nil(t, got)
	})

	t.Run("duplicate id is rejected", func(t *testing.T) {
		testhelpers.CleanDatabase(t, testDB.Pool)

		bid := newBid("A1", "alice", "10")
		require.NoError(t, repo.InsertBid(ctx, bid))
		assert.Error(t, repo.InsertBid(ctx, bid))
	})

	t.Run("get by auction keeps insertion order", func(t *testing.T) {
		testhelpers.CleanDatabase(t, testDB.Pool)

		first := newBid("A1", "alice", "10")
		second := newBid("A2", "bob", "20")
		third := newBid("A1", "carol", "30.50")
		for _, b := range []bids.Bid{first, second, third} {
			require.NoError(t, repo.InsertBid(ctx, b))
		}

		got, err := repo.GetBidsByAuctionID(ctx, "A1")
		require.NoError(t, err)
		require.Len(t, got, 2)
		assert.Equal(t, first.ID, got[0].ID)
		assert.Equal(t, third.ID, got[1].ID)

		all, err := repo.GetBids(ctx)
		require.NoError(t, err)
		assert.Len(t, all, 3)
	})

	t.Run("delete then get by id returns not found", func(t *testing.T) {
		testhelpers.CleanDatabase(t, testDB.Pool)

		bid := newBid("A1", "alice", "10")
		require.NoError(t, repo.InsertBid(ctx, bid))

		deleted, err := repo.DeleteBidByID(ctx, bid.ID)
		require.NoError(t, err)
		assert.True(t, deleted)

		got, err := repo.GetBidByID(ctx, bid.ID)
		require.NoError(t, err)
		assert.Nil(t, got)

		deleted, err = repo.DeleteBidByID(ctx, bid.ID)
		require.NoError(t, err)
		assert.False(t, deleted)
	})

	t.Run("migrations are idempotent", func(t *testing.T) {
		assert.NoError(t, database.Migrate(testDB.Pool))
	})
}
