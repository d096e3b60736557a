package events

import (
	"context"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/floroz/bidworker/internal/bids"
)

// declareBidQueue declares the bid queue. Declaring is idempotent; the queue
// does not survive a broker restart.
func declareBidQueue(ch *amqp.Channel, name string) error {
	_, err := ch.QueueDeclare(
		name,  // name
		false, // durable
		false, // delete when unused
		false, // exclusive
		false, // no-wait
		nil,   // args
	)
	return err
}

// BidPublisher publishes bid messages to the bid queue through the default exchange
type BidPublisher struct {
	channel *amqp.Channel
	queue   string
}

// NewBidPublisher opens a channel and makes sure the queue exists
func NewBidPublisher(conn *amqp.Connection, queue string) (*BidPublisher, error) {
	ch, err := conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}

	if err := declareBidQueue(ch, queue); err != nil {
		ch.Close()
		return nil, fmt.Errorf("failed to declare queue: %w", err)
	}

	return &BidPublisher{
		channel: ch,
		queue:   queue,
	}, nil
}

// Close closes the channel
func (p *BidPublisher) Close() error {
	return p.channel.Close()
}

// PublishBid encodes the bid as JSON and publishes it
func (p *BidPublisher) PublishBid(ctx context.Context, bid bids.Bid) error {
	body, err := bids.EncodeBid(bid)
	if err != nil {
		return fmt.Errorf("failed to encode bid: %w", err)
	}
	return p.Publish(ctx, body)
}

// Publish publishes a raw message body
func (p *BidPublisher) Publish(ctx context.Context, body []byte) error {
	return p.channel.PublishWithContext(ctx,
		"",      // exchange
		p.queue, // routing key
		false,   // mandatory
		false,   // immediate
		amqp.Publishing{
			ContentType:     "application/json",
			ContentEncoding: "utf-8",
			Body:            body,
		},
	)
}
