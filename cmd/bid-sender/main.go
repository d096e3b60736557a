package main

import (
	"context"
	"fmt"
	"os"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/floroz/bidworker/internal/bids"
	"github.com/floroz/bidworker/internal/config"
	"github.com/floroz/bidworker/internal/infra/events"
)

var (
	amqpURL   string
	queue     string
	auctionID string
	bidder    string
	amount    string
	status    string
	count     int
	raw       string
)

var rootCmd = &cobra.Command{
	Use:   "bid-sender",
	Short: "Publish bids to the bid worker queue",
	Long: `Publish one or more bids to the bid queue for manual testing.

Connection defaults come from the same environment as the worker
(RABBITMQ_URL or RABBIT_HOST, BIDS_QUEUE).`,
	Args: cobra.NoArgs,
	RunE: run,
}

func init() {
	rootCmd.Flags().StringVar(&amqpURL, "url", "", "AMQP URL (default from RABBITMQ_URL / RABBIT_HOST)")
	rootCmd.Flags().StringVar(&queue, "queue", "", "queue name (default from BIDS_QUEUE)")
	rootCmd.Flags().StringVarP(&auctionID, "auction", "a", "", "auction id")
	rootCmd.Flags().StringVarP(&bidder, "bidder", "b", "", "bidder name")
	rootCmd.Flags().StringVar(&amount, "amount", "0", "bid amount (decimal)")
	rootCmd.Flags().StringVar(&status, "status", "", "optional bid status")
	rootCmd.Flags().IntVarP(&count, "count", "n", 1, "number of bids to publish")
	rootCmd.Flags().StringVar(&raw, "raw", "", "publish this body verbatim instead of a bid")
}

func run(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if amqpURL == "" {
		amqpURL = cfg.RabbitMQ.AMQPURL()
	}
	if queue == "" {
		queue = cfg.RabbitMQ.Queue
	}

	var bid bids.Bid
	if raw == "" {
		if auctionID == "" {
			return fmt.Errorf("--auction is required")
		}
		parsed, parseErr := decimal.NewFromString(amount)
		if parseErr != nil {
			return fmt.Errorf("invalid --amount: %w", parseErr)
		}
		bid = bids.Bid{AuctionID: auctionID, BidderName: bidder, Amount: parsed, Status: status}
	}

	conn, err := amqp.Dial(amqpURL)
	if err != nil {
		return fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}
	defer conn.Close()

	publisher, err := events.NewBidPublisher(conn, queue)
	if err != nil {
		return err
	}
	defer publisher.Close()

	ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
	defer cancel()

	for i := 0; i < count; i++ {
		if raw != "" {
			err = publisher.Publish(ctx, []byte(raw))
		} else {
			err = publisher.PublishBid(ctx, bid)
		}
		if err != nil {
			return fmt.Errorf("failed to publish message %d: %w", i+1, err)
		}
	}

	fmt.Fprintf(cmd.OutOrStdout(), "published %d message(s) to %s\n", count, queue)
	return nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
