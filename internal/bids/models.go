package bids

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Decoding errors
var (
	ErrEmptyMessage     = errors.New("bid message is empty")
	ErrMalformedMessage = errors.New("bid message is malformed")
	ErrNegativeAmount   = errors.New("bid amount must not be negative")
)

// Bid represents a single monetary offer against an auction
type Bid struct {
	ID         uuid.UUID       `json:"id"`
	AuctionID  string          `json:"auctionId"`
	BidderName string          `json:"bidderName"`
	Amount     decimal.Decimal `json:"amount"`
	Timestamp  time.Time       `json:"timestamp"`
	Status     string          `json:"status,omitempty"`
}

// AuctionRef is an auction identifier that accepts both JSON strings and numbers.
// Older senders publish integer auction ids.
type AuctionRef string

func (r *AuctionRef) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*r = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*r = AuctionRef(strings.TrimSpace(s))
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("auction id must be a string or a number: %w", err)
	}
	*r = AuctionRef(n.String())
	return nil
}

// bidMessage is the wire shape of a bid published to the queue.
// Sender supplied id and timestamp are accepted but never trusted.
type bidMessage struct {
	ID         json.RawMessage `json:"id,omitempty"`
	AuctionID  AuctionRef      `json:"auctionId"`
	BidderName string          `json:"bidderName"`
	Amount     decimal.Decimal `json:"amount"`
	Timestamp  json.RawMessage `json:"timestamp,omitempty"`
	Status     string          `json:"status,omitempty"`
}

// DecodeBid parses a queue payload into a Bid.
// The returned Bid never carries the sender's id or timestamp.
func DecodeBid(body []byte) (Bid, error) {
	if !utf8.Valid(body) {
		return Bid{}, fmt.Errorf("%w: payload is not valid UTF-8", ErrMalformedMessage)
	}

	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return Bid{}, ErrEmptyMessage
	}

	var msg bidMessage
	if err := json.Unmarshal(trimmed, &msg); err != nil {
		return Bid{}, fmt.Errorf("%w: %v", ErrMalformedMessage, err)
	}

	if msg.AuctionID == "" {
		return Bid{}, ErrEmptyMessage
	}
	if msg.Amount.IsNegative() {
		return Bid{}, ErrNegativeAmount
	}
	if !amountFits(msg.Amount) {
		return Bid{}, fmt.Errorf("%w: amount exceeds %d significant digits or exponent range", ErrMalformedMessage, maxAmountDigits)
	}

	return Bid{
		AuctionID:  string(msg.AuctionID),
		BidderName: msg.BidderName,
		Amount:     msg.Amount,
		Status:     msg.Status,
	}, nil
}

// Amounts must fit an IEEE 754 decimal128, the widest type the durable backends store.
const (
	maxAmountDigits   = 34
	minAmountExponent = -6176
	maxAmountExponent = 6111
)

func amountFits(d decimal.Decimal) bool {
	exp := d.Exponent()
	if exp < minAmountExponent || exp > maxAmountExponent {
		return false
	}
	return len(d.Coefficient().String()) <= maxAmountDigits
}

// EncodeBid renders a bid in its wire form
func EncodeBid(b Bid) ([]byte, error) {
	msg := bidMessage{
		AuctionID:  AuctionRef(b.AuctionID),
		BidderName: b.BidderName,
		Amount:     b.Amount,
		Status:     b.Status,
	}
	if b.ID != uuid.Nil {
		id, err := json.Marshal(b.ID)
		if err != nil {
			return nil, err
		}
		msg.ID = id
	}
	if !b.Timestamp.IsZero() {
		ts, err := json.Marshal(b.Timestamp)
		if err != nil {
			return nil, err
		}
		msg.Timestamp = ts
	}
	return json.Marshal(msg)
}

// StoreStats reports how many bids reached each backend.
// Memory and durable counts may diverge; nothing reconciles them.
type StoreStats struct {
	Received      int64 `json:"received"`
	InMemory      int64 `json:"inMemory"`
	Persisted     int64 `json:"persisted"`
	PersistFailed int64 `json:"persistFailed"`
	InFlight      int64 `json:"inFlight"`
}
