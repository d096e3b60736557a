package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"
	"golang.org/x/sync/errgroup"

	"github.com/floroz/bidworker/internal/api"
	"github.com/floroz/bidworker/internal/bids"
	"github.com/floroz/bidworker/internal/config"
	"github.com/floroz/bidworker/internal/infra/database"
	"github.com/floroz/bidworker/internal/infra/events"
	"github.com/floroz/bidworker/internal/infra/mongodb"
	"github.com/floroz/bidworker/internal/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load config", "error", err)
		os.Exit(1)
	}

	// Initialize structured logger
	log, syncLog, err := logger.New(cfg.Log.Level)
	if err != nil {
		slog.Error("Failed to create logger", "error", err)
		os.Exit(1)
	}
	defer func() { _ = syncLog() }()
	slog.SetDefault(log)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		log.Info("Shutting down bid worker...")
		cancel()
	}()

	// 1. Connect the durable backend
	repo, closeRepo, err := openRepository(ctx, cfg, log)
	if err != nil {
		log.Error("Failed to open durable store", "backend", cfg.Store.Backend, "error", err)
		os.Exit(1)
	}
	defer closeRepo()

	// 2. Connect to RabbitMQ
	ackMode, err := events.ParseAckMode(cfg.RabbitMQ.AckMode)
	if err != nil {
		log.Error("Invalid BIDS_ACK_MODE", "error", err)
		os.Exit(1)
	}
	amqpConn, err := amqp.Dial(cfg.RabbitMQ.AMQPURL())
	if err != nil {
		log.Error("Failed to connect to RabbitMQ", "error", err)
		os.Exit(1)
	}
	defer amqpConn.Close()
	log.Info("RabbitMQ Connected")

	// 3. Initialize store and listener
	store := bids.NewStore(bids.NewMemoryStore(), repo, log, bids.StoreOptions{
		WriteTimeout:      cfg.Store.WriteTimeout,
		MaxInFlightWrites: cfg.Store.MaxInFlightWrites,
	})
	listener := events.NewBidListener(amqpConn, store, cfg.RabbitMQ.Queue, ackMode, log)
	listener.SetDrainTimeout(cfg.Store.ShutdownTimeout)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("Starting bid listener...")
		return listener.Run(gctx)
	})

	// 4. Query API
	if cfg.HTTP.Addr != "" {
		srv := &http.Server{
			Addr:              cfg.HTTP.Addr,
			Handler:           h2c.NewHandler(api.NewBidHandler(store, log).Routes(), &http2.Server{}),
			ReadHeaderTimeout: 5 * time.Second,
		}
		g.Go(func() error {
			log.Info("Starting bid query API", "addr", cfg.HTTP.Addr)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("query API failed: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancelShutdown()
			return srv.Shutdown(shutdownCtx)
		})
	}

	runErr := g.Wait()
	if runErr != nil {
		log.Error("Bid worker failed", "error", runErr)
	}

	// 5. Drain outstanding durable writes
	drainCtx, cancelDrain := context.WithTimeout(context.Background(), cfg.Store.ShutdownTimeout)
	defer cancelDrain()
	if err := store.Wait(drainCtx); err != nil {
		log.Warn("Durable writes still in flight at shutdown", "error", err)
	}

	stats := store.Stats()
	log.Info("Bid worker stopped",
		"received", stats.Received,
		"persisted", stats.Persisted,
		"persist_failed", stats.PersistFailed,
	)

	if runErr != nil && ctx.Err() == nil {
		_ = syncLog()
		os.Exit(1)
	}
}

// openRepository connects the configured durable backend. The returned func
// releases its connections.
func openRepository(ctx context.Context, cfg *config.Config, log *slog.Logger) (bids.Repository, func(), error) {
	connectCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	switch cfg.Store.Backend {
	case config.BackendPostgres:
		pool, err := database.Connect(connectCtx, cfg.Postgres.URL)
		if err != nil {
			return nil, nil, err
		}
		if err := database.Migrate(pool); err != nil {
			pool.Close()
			return nil, nil, err
		}
		log.Info("Postgres Connected")
		return database.NewPostgresBidDocumentRepository(pool), pool.Close, nil

	default:
		client, err := mongodb.Connect(connectCtx, cfg.Mongo.URI)
		if err != nil {
			return nil, nil, err
		}
		repo := mongodb.NewBidRepository(client.Database(cfg.Mongo.Database).Collection(cfg.Mongo.Collection))
		if err := repo.EnsureIndexes(connectCtx); err != nil {
			_ = client.Disconnect(context.Background())
			return nil, nil, err
		}
		log.Info("MongoDB Connected", "database", cfg.Mongo.Database, "collection", cfg.Mongo.Collection)
		closeClient := func() {
			if err := client.Disconnect(context.Background()); err != nil {
				log.Error("Failed to disconnect MongoDB", "error", err)
			}
		}
		return repo, closeClient, nil
	}
}
