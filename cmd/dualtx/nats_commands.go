package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	natspkg "github.com/brojonat/dualtx/service/nats"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/urfave/cli/v2"
)

const defaultNATSURL = "nats://localhost:4222"

func natsURL(c *cli.Context) string {
	if url := c.String("nats-url"); url != "" {
		return url
	}
	return defaultNATSURL
}

// subscribeCommand streams ledger events for an account, or for every account.
func subscribeCommand() *cli.Command {
	return &cli.Command{
		Name:      "subscribe",
		Usage:     "Stream committed transactions (or badge changes) from JetStream",
		ArgsUsage: "[account]",
		Description: `Subscribe to ledger events published to NATS JetStream.

Transaction events are published to ledger.txns.{from} and badge changes to
ledger.badges.{account}. Without an account, events for every account are shown.

Example:
  dualtx nats subscribe GBRPYHIL2CI3TBTU3XK4Z6CMYJZI2KPZROHLMZYNHB7KLIH5CTFTC6LN --json`,
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "badges",
				Usage: "Stream purity badge changes instead of transactions",
			},
			&cli.BoolFlag{
				Name:    "durable",
				Aliases: []string{"d"},
				Usage:   "Create a durable consumer (survives restarts)",
			},
			&cli.StringFlag{
				Name:  "consumer-name",
				Usage: "Consumer name (required for durable)",
				Value: "dualtx-cli",
			},
		},
		Action: func(c *cli.Context) error {
			if c.NArg() > 1 {
				return fmt.Errorf("accepts at most one argument: account")
			}
			account := c.Args().First()

			subject := natspkg.TransactionSubject(account)
			if c.Bool("badges") {
				subject = natspkg.BadgeSubject(account)
			}

			ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
			defer stop()

			return streamEvents(ctx, c.App.Writer, streamOptions{
				natsURL:      natsURL(c),
				subject:      subject,
				durable:      c.Bool("durable"),
				consumerName: c.String("consumer-name"),
				jsonOutput:   c.Bool("json"),
			})
		},
	}
}

type streamOptions struct {
	natsURL      string
	subject      string
	durable      bool
	consumerName string
	jsonOutput   bool
}

// streamEvents connects to NATS and prints events until ctx is cancelled.
func streamEvents(ctx context.Context, w io.Writer, opts streamOptions) error {
	nc, err := nats.Connect(opts.natsURL)
	if err != nil {
		return fmt.Errorf("failed to connect to NATS: %w", err)
	}
	defer nc.Close()

	js, err := jetstream.New(nc)
	if err != nil {
		return fmt.Errorf("failed to create JetStream context: %w", err)
	}

	if !opts.jsonOutput {
		fmt.Fprintf(os.Stderr, "📡 Subscribing to: %s\n", opts.subject)
		fmt.Fprintf(os.Stderr, "   NATS: %s\n", opts.natsURL)
		if opts.durable {
			fmt.Fprintf(os.Stderr, "   Consumer: %s (durable)\n", opts.consumerName)
		}
		fmt.Fprintf(os.Stderr, "\nWaiting for events... (Ctrl-C to exit)\n\n")
	}

	consumerConfig := jetstream.ConsumerConfig{
		FilterSubject: opts.subject,
		AckPolicy:     jetstream.AckExplicitPolicy,
	}
	if opts.durable {
		consumerConfig.Durable = opts.consumerName
		consumerConfig.Name = opts.consumerName
	}

	cons, err := js.CreateOrUpdateConsumer(ctx, natspkg.StreamName, consumerConfig)
	if err != nil {
		return fmt.Errorf("failed to create consumer: %w", err)
	}

	msgChan := make(chan jetstream.Msg, 10)
	consumeCtx, err := cons.Consume(func(msg jetstream.Msg) {
		select {
		case msgChan <- msg:
		case <-ctx.Done():
		}
	})
	if err != nil {
		return fmt.Errorf("failed to start consuming: %w", err)
	}
	defer consumeCtx.Stop()

	count := 0
	for {
		select {
		case msg := <-msgChan:
			count++
			if err := printEvent(w, msg.Subject(), msg.Data(), count, opts.jsonOutput); err != nil {
				fmt.Fprintf(os.Stderr, "Error parsing event: %v\n", err)
			}
			msg.Ack()

		case <-ctx.Done():
			if !opts.jsonOutput {
				fmt.Fprintf(os.Stderr, "\n\n✅ Received %d events\n", count)
				fmt.Fprintln(os.Stderr, "Shutting down...")
			}
			return nil
		}
	}
}

// printEvent decodes an event by subject and prints it.
func printEvent(w io.Writer, subject string, data []byte, n int, jsonOutput bool) error {
	if strings.HasPrefix(subject, "ledger.badges.") {
		var event natspkg.BadgeEvent
		if err := json.Unmarshal(data, &event); err != nil {
			return err
		}
		if jsonOutput {
			return json.NewEncoder(w).Encode(event)
		}
		fmt.Fprintf(w, "─────────────────────────────────────────────────────\n")
		fmt.Fprintf(w, "Badge change #%d\n", n)
		fmt.Fprintf(w, "─────────────────────────────────────────────────────\n")
		fmt.Fprintf(w, "Account:      %s\n", event.Account)
		fmt.Fprintf(w, "Badge:        %t\n", event.Status)
		fmt.Fprintf(w, "Changed By:   %s\n", event.ChangedBy)
		fmt.Fprintf(w, "Changed At:   %s\n", event.ChangedAt.Format(time.RFC3339))
		fmt.Fprintf(w, "\n")
		return nil
	}

	var event natspkg.TransactionEvent
	if err := json.Unmarshal(data, &event); err != nil {
		return err
	}
	if jsonOutput {
		return json.NewEncoder(w).Encode(event)
	}
	fmt.Fprintf(w, "─────────────────────────────────────────────────────\n")
	fmt.Fprintf(w, "Transaction #%d\n", n)
	fmt.Fprintf(w, "─────────────────────────────────────────────────────\n")
	fmt.Fprintf(w, "From:         %s (index %d)\n", event.From, event.Index)
	fmt.Fprintf(w, "To:           %s\n", event.To)
	fmt.Fprintf(w, "Amount:       %d\n", event.Amount)
	fmt.Fprintf(w, "Kind:         %s\n", event.Kind)
	fmt.Fprintf(w, "Cross-chain:  %t\n", event.IsCrossChain)
	fmt.Fprintf(w, "Memo:         %s\n", formatMemo(event.Memo))
	fmt.Fprintf(w, "Recorded:     %s\n", event.RecordedAt.Format(time.RFC3339))
	fmt.Fprintf(w, "Published:    %s\n", event.PublishedAt.Format(time.RFC3339))
	fmt.Fprintf(w, "\n")
	return nil
}

// inspectStreamCommand shows information about the NATS JetStream stream.
func inspectStreamCommand() *cli.Command {
	return &cli.Command{
		Name:  "inspect-stream",
		Usage: "Inspect the LEDGER JetStream stream",
		Description: `Show information about the JetStream stream including:
- Message count
- Consumers
- Storage usage
- Stream configuration

Example:
  dualtx nats inspect-stream`,
		Action: func(c *cli.Context) error {
			nc, err := nats.Connect(natsURL(c))
			if err != nil {
				return fmt.Errorf("failed to connect to NATS: %w", err)
			}
			defer nc.Close()

			js, err := jetstream.New(nc)
			if err != nil {
				return fmt.Errorf("failed to create JetStream context: %w", err)
			}

			stream, err := js.Stream(c.Context, natspkg.StreamName)
			if err != nil {
				return fmt.Errorf("failed to get stream: %w", err)
			}

			info, err := stream.Info(c.Context)
			if err != nil {
				return fmt.Errorf("failed to get stream info: %w", err)
			}

			if c.Bool("json") {
				return outputJSON(c.App.Writer, info)
			}

			w := c.App.Writer
			fmt.Fprintf(w, "Stream: %s\n", info.Config.Name)
			fmt.Fprintf(w, "─────────────────────────────────────────────────────\n")
			fmt.Fprintf(w, "Description:  %s\n", info.Config.Description)
			fmt.Fprintf(w, "Subjects:     %v\n", info.Config.Subjects)
			fmt.Fprintf(w, "Messages:     %d\n", info.State.Msgs)
			fmt.Fprintf(w, "Bytes:        %d\n", info.State.Bytes)
			fmt.Fprintf(w, "First Seq:    %d\n", info.State.FirstSeq)
			fmt.Fprintf(w, "Last Seq:     %d\n", info.State.LastSeq)
			fmt.Fprintf(w, "Consumers:    %d\n", info.State.Consumers)
			fmt.Fprintf(w, "Max Age:      %s\n", info.Config.MaxAge)
			fmt.Fprintf(w, "Storage:      %s\n", info.Config.Storage)
			fmt.Fprintf(w, "\n")
			return nil
		},
	}
}
