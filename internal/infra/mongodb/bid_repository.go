package mongodb

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/floroz/bidworker/internal/bids"
)

// bidDocument is the stored shape of a bid. The bid id is the document _id.
type bidDocument struct {
	ID         string               `bson:"_id"`
	AuctionID  string               `bson:"auctionId"`
	BidderName string               `bson:"bidderName"`
	Amount     primitive.Decimal128 `bson:"amount"`
	Timestamp  time.Time            `bson:"timestamp"`
	Status     string               `bson:"status,omitempty"`
}

func toDocument(bid bids.Bid) (bidDocument, error) {
	amount, err := primitive.ParseDecimal128(bid.Amount.String())
	if err != nil {
		return bidDocument{}, fmt.Errorf("failed to convert amount %s: %w", bid.Amount, err)
	}
	return bidDocument{
		ID:         bid.ID.String(),
		AuctionID:  bid.AuctionID,
		BidderName: bid.BidderName,
		Amount:     amount,
		Timestamp:  bid.Timestamp,
		Status:     bid.Status,
	}, nil
}

func (d bidDocument) toBid() (bids.Bid, error) {
	id, err := uuid.Parse(d.ID)
	if err != nil {
		return bids.Bid{}, fmt.Errorf("invalid bid id %q: %w", d.ID, err)
	}
	amount, err := decimal.NewFromString(d.Amount.String())
	if err != nil {
		return bids.Bid{}, fmt.Errorf("invalid amount for bid %s: %w", d.ID, err)
	}
	return bids.Bid{
		ID:         id,
		AuctionID:  d.AuctionID,
		BidderName: d.BidderName,
		Amount:     amount,
		Timestamp:  d.Timestamp.UTC(),
		Status:     d.Status,
	}, nil
}

// BidRepository implements bids.Repository on a MongoDB collection
type BidRepository struct {
	collection *mongo.Collection
}

// NewBidRepository creates a repository over the given collection
func NewBidRepository(collection *mongo.Collection) *BidRepository {
	return &BidRepository{collection: collection}
}

// EnsureIndexes creates the auction id index. Safe to call on every startup.
func (r *BidRepository) EnsureIndexes(ctx context.Context) error {
	_, err := r.collection.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "auctionId", Value: 1}},
		Options: options.Index().SetName("auctionId_1"),
	})
	if err != nil {
		return fmt.Errorf("failed to create auctionId index: %w", err)
	}
	return nil
}

// InsertBid always writes a new document; a duplicate _id is an error
func (r *BidRepository) InsertBid(ctx context.Context, bid bids.Bid) error {
	doc, err := toDocument(bid)
	if err != nil {
		return err
	}
	if _, err := r.collection.InsertOne(ctx, doc); err != nil {
		return fmt.Errorf("failed to insert bid: %w", err)
	}
	return nil
}

// GetBids returns all bids in natural order
func (r *BidRepository) GetBids(ctx context.Context) ([]bids.Bid, error) {
	return r.find(ctx, bson.D{})
}

// GetBidsByAuctionID returns the bids placed against an auction
func (r *BidRepository) GetBidsByAuctionID(ctx context.Context, auctionID string) ([]bids.Bid, error) {
	return r.find(ctx, bson.D{{Key: "auctionId", Value: auctionID}})
}

// GetBidByID retrieves a bid by its ID
func (r *BidRepository) GetBidByID(ctx context.Context, id uuid.UUID) (*bids.Bid, error) {
	var doc bidDocument
	err := r.collection.FindOne(ctx, bson.D{{Key: "_id", Value: id.String()}}).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get bid: %w", err)
	}

	bid, err := doc.toBid()
	if err != nil {
		return nil, err
	}
	return &bid, nil
}

// DeleteBidByID removes a bid and reports whether it existed
func (r *BidRepository) DeleteBidByID(ctx context.Context, id uuid.UUID) (bool, error) {
	res, err := r.collection.DeleteOne(ctx, bson.D{{Key: "_id", Value: id.String()}})
	if err != nil {
		return false, fmt.Errorf("failed to delete bid: %w", err)
	}
	return res.DeletedCount > 0, nil
}

func (r *BidRepository) find(ctx context.Context, filter bson.D) ([]bids.Bid, error) {
	cursor, err := r.collection.Find(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to query bids: %w", err)
	}

	var docs []bidDocument
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("failed to decode bids: %w", err)
	}

	result := make([]bids.Bid, 0, len(docs))
	for _, doc := range docs {
		bid, err := doc.toBid()
		if err != nil {
			return nil, err
		}
		result = append(result, bid)
	}
	return result, nil
}
