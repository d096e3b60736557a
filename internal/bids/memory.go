package bids

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStore is the process-lifetime, append-only bid list.
// Every access goes through mu; readers always receive copies.
type MemoryStore struct {
	mu   sync.Mutex
	bids []Bid
	now  func() time.Time
}

// NewMemoryStore creates an empty in-memory backend.
// Timestamps are kept at millisecond precision, the finest the document store keeps.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		now: func() time.Time { return time.Now().UTC().Truncate(time.Millisecond) },
	}
}

// Insert assigns a fresh id and timestamp, overwriting whatever the sender set,
// and appends the bid.
func (m *MemoryStore) Insert(b Bid) Bid {
	m.mu.Lock()
	defer m.mu.Unlock()

	b.ID = uuid.New()
	b.Timestamp = m.now()
	m.bids = append(m.bids, b)
	return b
}

// All returns every bid in insertion order
func (m *MemoryStore) All() []Bid {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]Bid, len(m.bids))
	copy(out, m.bids)
	return out
}

// ByAuctionID returns the bids placed against auctionID in insertion order
func (m *MemoryStore) ByAuctionID(auctionID string) []Bid {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := []Bid{}
	for _, b := range m.bids {
		if b.AuctionID == auctionID {
			out = append(out, b)
		}
	}
	return out
}

// ByID returns the first bid with the given id
func (m *MemoryStore) ByID(id uuid.UUID) (Bid, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, b := range m.bids {
		if b.ID == id {
			return b, true
		}
	}
	return Bid{}, false
}

// Len returns the number of stored bids
func (m *MemoryStore) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.bids)
}
