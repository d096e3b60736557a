package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/floroz/bidworker/internal/bids"
)

const (
	sourceMemory = "memory"
	sourceStore  = "store"
)

var errUnknownSource = errors.New("source must be memory or store")

// BidHandler exposes the bid store over HTTP. Reads default to the in-memory
// backend; ?source=store reads the durable collection.
type BidHandler struct {
	store  *bids.Store
	logger *slog.Logger
}

// NewBidHandler creates a new bid handler
func NewBidHandler(store *bids.Store, logger *slog.Logger) *BidHandler {
	return &BidHandler{
		store:  store,
		logger: logger,
	}
}

// Routes registers the handler on a new mux
func (h *BidHandler) Routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /bids", h.listBids)
	mux.HandleFunc("GET /bids/{id}", h.getBid)
	mux.HandleFunc("DELETE /bids/{id}", h.deleteBid)
	mux.HandleFunc("GET /health", h.health)
	return mux
}

func (h *BidHandler) listBids(w http.ResponseWriter, r *http.Request) {
	source, err := sourceOf(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	auctionID := r.URL.Query().Get("auctionId")

	if source == sourceMemory {
		if auctionID != "" {
			writeJSON(w, http.StatusOK, h.store.GetBidsByAuctionID(auctionID))
			return
		}
		writeJSON(w, http.StatusOK, h.store.GetBids())
		return
	}

	var result []bids.Bid
	if auctionID != "" {
		result, err = h.store.GetStoredBidsByAuctionID(r.Context(), auctionID)
	} else {
		result, err = h.store.GetStoredBids(r.Context())
	}
	if err != nil {
		h.logger.Error("Failed to query stored bids", "auction_id", auctionID, "error", err)
		writeError(w, http.StatusInternalServerError, errors.New("failed to query bids"))
		return
	}
	if result == nil {
		result = []bids.Bid{}
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *BidHandler) getBid(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, errors.New("invalid bid id"))
		return
	}
	source, err := sourceOf(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	if source == sourceMemory {
		bid, ok := h.store.GetBidByID(id)
		if !ok {
			writeError(w, http.StatusNotFound, errors.New("bid not found"))
			return
		}
		writeJSON(w, http.StatusOK, bid)
		return
	}

	bid, err := h.store.GetStoredBidByID(r.Context(), id)
	if err != nil {
		h.logger.Error("Failed to get stored bid", "bid_id", id, "error", err)
		writeError(w, http.StatusInternalServerError, errors.New("failed to get bid"))
		return
	}
	if bid == nil {
		writeError(w, http.StatusNotFound, errors.New("bid not found"))
		return
	}
	writeJSON(w, http.StatusOK, bid)
}

// deleteBid only exists for the durable collection
func (h *BidHandler) deleteBid(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, errors.New("invalid bid id"))
		return
	}

	deleted, err := h.store.DeleteStoredBidByID(r.Context(), id)
	if err != nil {
		h.logger.Error("Failed to delete stored bid", "bid_id", id, "error", err)
		writeError(w, http.StatusInternalServerError, errors.New("failed to delete bid"))
		return
	}
	if !deleted {
		writeError(w, http.StatusNotFound, errors.New("bid not found"))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *BidHandler) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.store.Stats())
}

func sourceOf(r *http.Request) (string, error) {
	switch source := r.URL.Query().Get("source"); source {
	case "", sourceMemory:
		return sourceMemory, nil
	case sourceStore:
		return sourceStore, nil
	default:
		return "", errUnknownSource
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
