package nats

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/brojonat/dualtx/service/metrics"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
)

// Publisher defines the interface for publishing ledger events to NATS.
type Publisher interface {
	// PublishTransaction publishes a committed transaction event to JetStream.
	// The event is published to the subject "ledger.txns.{from}".
	PublishTransaction(ctx context.Context, event *TransactionEvent) error

	// PublishBadge publishes a purity badge change to "ledger.badges.{account}".
	PublishBadge(ctx context.Context, event *BadgeEvent) error

	// Close closes the connection to NATS.
	Close() error
}

// JetStreamPublisher publishes ledger events to NATS JetStream.
type JetStreamPublisher struct {
	nc      *nats.Conn
	js      jetstream.JetStream
	logger  *slog.Logger
	metrics *metrics.Metrics
}

const (
	// StreamName is the name of the JetStream stream for ledger events.
	StreamName = "LEDGER"

	// StreamSubjects is the subject pattern for the stream.
	StreamSubjects = "ledger.>"

	// StreamRetention is how long messages are retained (30 days by default).
	StreamRetention = 30 * 24 * time.Hour

	// DuplicateWindow bounds how long JetStream remembers message IDs.
	DuplicateWindow = 2 * time.Minute
)

// NewPublisher creates a new JetStream publisher.
// It connects to NATS and ensures the stream exists. m may be nil.
func NewPublisher(ctx context.Context, natsURL string, logger *slog.Logger, m *metrics.Metrics) (*JetStreamPublisher, error) {
	// Connect to NATS
	nc, err := nats.Connect(natsURL,
		nats.Name("dualtx-publisher"),
		nats.Timeout(10*time.Second),
		nats.ReconnectWait(1*time.Second),
		nats.MaxReconnects(-1), // Unlimited reconnects
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	// Create JetStream context
	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("failed to create JetStream context: %w", err)
	}

	publisher := &JetStreamPublisher{
		nc:      nc,
		js:      js,
		logger:  logger,
		metrics: m,
	}

	// Ensure stream exists
	if err := publisher.ensureStream(ctx); err != nil {
		nc.Close()
		return nil, fmt.Errorf("failed to ensure stream exists: %w", err)
	}

	logger.Info("NATS publisher initialized",
		"url", natsURL,
		"stream", StreamName,
	)

	return publisher, nil
}

// ensureStream creates the JetStream stream if it doesn't exist.
func (p *JetStreamPublisher) ensureStream(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	// Try to get existing stream
	stream, err := p.js.Stream(ctx, StreamName)
	if err == nil {
		info, err := stream.Info(ctx)
		if err == nil {
			p.logger.Debug("JetStream stream already exists",
				"stream", StreamName,
				"messages", info.State.Msgs,
			)
		}
		return nil
	}

	p.logger.Info("creating JetStream stream", "stream", StreamName)

	_, err = p.js.CreateStream(ctx, StreamConfig())
	if err != nil {
		return fmt.Errorf("failed to create stream: %w", err)
	}

	p.logger.Info("JetStream stream created successfully", "stream", StreamName)
	return nil
}

// StreamConfig returns the configuration of the ledger event stream.
func StreamConfig() jetstream.StreamConfig {
	return jetstream.StreamConfig{
		Name:        StreamName,
		Description: "Committed transactions and purity badge changes",
		Subjects:    []string{StreamSubjects},
		Retention:   jetstream.LimitsPolicy,
		MaxAge:      StreamRetention,
		Duplicates:  DuplicateWindow,
		Storage:     jetstream.FileStorage,
		Replicas:    1,
	}
}

// PublishTransaction publishes a committed transaction event.
func (p *JetStreamPublisher) PublishTransaction(ctx context.Context, event *TransactionEvent) error {
	subject := TransactionSubject(event.From)
	if err := p.publish(ctx, "transaction", subject, event.EventID, event); err != nil {
		return fmt.Errorf("failed to publish transaction: %w", err)
	}

	p.logger.Debug("published transaction event",
		"subject", subject,
		"from", event.From,
		"index", event.Index,
	)
	return nil
}

// PublishBadge publishes a purity badge change event.
func (p *JetStreamPublisher) PublishBadge(ctx context.Context, event *BadgeEvent) error {
	subject := BadgeSubject(event.Account)
	if err := p.publish(ctx, "badge", subject, event.EventID, event); err != nil {
		return fmt.Errorf("failed to publish badge change: %w", err)
	}

	p.logger.Debug("published badge event",
		"subject", subject,
		"account", event.Account,
		"status", event.Status,
	)
	return nil
}

func (p *JetStreamPublisher) publish(ctx context.Context, kind, subject, msgID string, event any) (err error) {
	start := time.Now()
	defer func() {
		status := "success"
		if err != nil {
			status = "error"
		}
		p.metrics.RecordNATSPublish(kind, status, time.Since(start).Seconds())
	}()

	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal %s event: %w", kind, err)
	}

	_, err = p.js.Publish(ctx, subject, data, jetstream.WithMsgID(msgID))
	return err
}

// Close closes the connection to NATS.
func (p *JetStreamPublisher) Close() error {
	if p.nc != nil {
		p.nc.Close()
		p.logger.Info("NATS publisher closed")
	}
	return nil
}
