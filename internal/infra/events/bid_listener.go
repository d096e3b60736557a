package events

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/floroz/bidworker/internal/bids"
)

// AckMode controls when a delivery is acknowledged
type AckMode string

const (
	// AckModeAuto lets the broker acknowledge on delivery. A bid whose durable
	// write later fails is lost from the durable store.
	AckModeAuto AckMode = "auto"
	// AckModeAfterPersist acknowledges only after the durable write succeeded
	// and rejects (without requeue) otherwise.
	AckModeAfterPersist AckMode = "after-persist"
)

// ParseAckMode validates an ack mode name
func ParseAckMode(s string) (AckMode, error) {
	switch AckMode(s) {
	case AckModeAuto, AckModeAfterPersist:
		return AckMode(s), nil
	default:
		return "", fmt.Errorf("unknown ack mode %q", s)
	}
}

// BidListener drains the bid queue into the bid store
type BidListener struct {
	conn    *amqp.Connection
	store   *bids.Store
	queue   string
	ackMode AckMode
	logger  *slog.Logger

	drainTimeout time.Duration
	pending      sync.WaitGroup
}

// NewBidListener creates a new bid listener
func NewBidListener(conn *amqp.Connection, store *bids.Store, queue string, ackMode AckMode, logger *slog.Logger) *BidListener {
	return &BidListener{
		conn:    conn,
		store:   store,
		queue:   queue,
		ackMode: ackMode,
		logger:  logger,
	}
}

// SetDrainTimeout bounds how long Run waits for pending after-persist acks
// once ctx is cancelled. Zero waits until every pending write has finished.
func (l *BidListener) SetDrainTimeout(d time.Duration) {
	l.drainTimeout = d
}

// Run starts the consumer loop. It returns nil when ctx is cancelled, after
// pending after-persist acks are settled and before the channel is closed.
func (l *BidListener) Run(ctx context.Context) error {
	ch, err := l.conn.Channel()
	if err != nil {
		return fmt.Errorf("failed to open channel: %w", err)
	}
	defer ch.Close()

	if declareErr := declareBidQueue(ch, l.queue); declareErr != nil {
		return fmt.Errorf("failed to declare queue: %w", declareErr)
	}

	autoAck := l.ackMode == AckModeAuto
	msgs, err := ch.Consume(
		l.queue, // queue
		"",      // consumer tag
		autoAck, // auto-ack
		false,   // exclusive
		false,   // no-local
		false,   // no-wait
		nil,     // args
	)
	if err != nil {
		return fmt.Errorf("failed to start consuming: %w", err)
	}

	l.logger.Info("Waiting for bids...", "queue", l.queue, "ack_mode", l.ackMode)

	return l.consume(ctx, msgs)
}

func (l *BidListener) consume(ctx context.Context, msgs <-chan amqp.Delivery) error {
	for {
		select {
		case <-ctx.Done():
			l.waitForAcks()
			return nil
		case d, ok := <-msgs:
			if !ok {
				return fmt.Errorf("channel closed")
			}
			l.handleDelivery(ctx, d)
		}
	}
}

func (l *BidListener) handleDelivery(ctx context.Context, d amqp.Delivery) {
	bid, err := bids.DecodeBid(d.Body)
	if err != nil {
		l.logger.Warn("Invalid bid message received", "error", err, "delivery_tag", d.DeliveryTag)
		if l.ackMode == AckModeAfterPersist {
			if nackErr := d.Nack(false, false); nackErr != nil {
				l.logger.Error("Failed to Nack message", "error", nackErr)
			}
		}
		return
	}

	stored, persisted := l.store.Add(ctx, bid)
	l.logger.Info("Received bid",
		"bid_id", stored.ID,
		"bidder", stored.BidderName,
		"auction_id", stored.AuctionID,
		"amount", stored.Amount.String(),
	)

	if l.ackMode == AckModeAfterPersist {
		l.pending.Add(1)
		go l.ackWhenPersisted(d, persisted)
	}
}

func (l *BidListener) waitForAcks() {
	settled := make(chan struct{})
	go func() {
		l.pending.Wait()
		close(settled)
	}()

	var timeout <-chan time.Time
	if l.drainTimeout > 0 {
		timer := time.NewTimer(l.drainTimeout)
		defer timer.Stop()
		timeout = timer.C
	}

	select {
	case <-settled:
	case <-timeout:
		l.logger.Warn("Closing channel with unacknowledged bids", "timeout", l.drainTimeout)
	}
}

func (l *BidListener) ackWhenPersisted(d amqp.Delivery, persisted <-chan error) {
	defer l.pending.Done()
	if err := <-persisted; err != nil {
		if nackErr := d.Nack(false, false); nackErr != nil {
			l.logger.Error("Failed to Nack message", "error", nackErr)
		}
		return
	}
	if ackErr := d.Ack(false); ackErr != nil {
		l.logger.Error("Failed to Ack message", "error", ackErr)
	}
}
