package main

import (
	"fmt"
	"log"
	"log/slog"
	"os"

	"github.com/brojonat/dualtx/service/config"
	"github.com/urfave/cli/v2"
)

var (
	// Version information (set via ldflags during build)
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

func main() {
	if err := newApp().Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:  "dualtx",
		Usage: "Purity-badge dual-mode transaction ledger",
		Description: `A command-line tool for operating the dualtx ledger.

Badge holders submit internal or external transactions that debit their balance.
The ledger owner grants and revokes purity badges and provisions balances.
State is journaled to Postgres; committed changes are optionally published to NATS.`,
		Version: fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
		Commands: []*cli.Command{
			// Schema management commands
			{
				Name:  "db",
				Usage: "Database schema commands",
				Subcommands: []*cli.Command{
					migrateCommand(),
					schemaStatusCommand(),
				},
			},
			// Owner-only badge management
			{
				Name:  "badge",
				Usage: "Purity badge commands",
				Subcommands: []*cli.Command{
					setBadgeCommand(),
					getBadgeCommand(),
				},
			},
			{
				Name:  "account",
				Usage: "Account inspection and provisioning commands",
				Subcommands: []*cli.Command{
					showAccountCommand(),
					seedAccountCommand(),
				},
			},
			{
				Name:    "tx",
				Aliases: []string{"txns"},
				Usage:   "Transaction commands",
				Subcommands: []*cli.Command{
					submitTransactionCommand(),
					listTransactionsCommand(),
				},
			},
			// NATS event streaming commands
			{
				Name:  "nats",
				Usage: "NATS event streaming commands",
				Subcommands: []*cli.Command{
					subscribeCommand(),
					inspectStreamCommand(),
				},
			},
			versionCommand(),
		},
		// Global flags available to all commands
		Flags: globalFlags(),
	}
}

func globalFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "database-url",
			Usage:   "Database connection URL",
			EnvVars: []string{"DATABASE_URL"},
		},
		&cli.StringFlag{
			Name:    "owner",
			Usage:   "Ledger owner identity (pinned in the database on first use)",
			EnvVars: []string{"LEDGER_OWNER"},
		},
		&cli.StringFlag{
			Name:    "address-format",
			Usage:   "Account identifier format: stellar, solana or opaque",
			EnvVars: []string{"ADDRESS_FORMAT"},
			Value:   "stellar",
		},
		&cli.StringFlag{
			Name:    "nats-url",
			Usage:   "NATS server URL (empty disables event publishing)",
			EnvVars: []string{"NATS_URL"},
		},
		&cli.StringFlag{
			Name:    "pushgateway-url",
			Usage:   "Prometheus Pushgateway URL (empty disables metrics push)",
			EnvVars: []string{"PUSHGATEWAY_URL"},
		},
		&cli.StringFlag{
			Name:    "metrics-job",
			Usage:   "Pushgateway job name",
			EnvVars: []string{"METRICS_JOB"},
			Value:   "dualtx",
		},
		&cli.StringFlag{
			Name:    "log-level",
			Usage:   "Log level: debug, info, warn or error",
			EnvVars: []string{"LOG_LEVEL"},
			Value:   "info",
		},
		&cli.StringFlag{
			Name:    "operation-timeout",
			Usage:   "Upper bound for a single command, including database writes",
			EnvVars: []string{"OPERATION_TIMEOUT"},
			Value:   "30s",
		},
		&cli.BoolFlag{
			Name:    "json",
			Aliases: []string{"j"},
			Usage:   "Output in JSON format",
		},
	}
}

func versionCommand() *cli.Command {
	return &cli.Command{
		Name:  "version",
		Usage: "Print version information",
		Action: func(c *cli.Context) error {
			info := map[string]string{
				"version": version,
				"commit":  commit,
				"date":    date,
			}
			if c.Bool("json") {
				return outputJSON(c.App.Writer, info)
			}
			fmt.Fprintf(c.App.Writer, "dualtx %s (commit: %s, built: %s)\n", version, commit, date)
			return nil
		},
	}
}

// setupLogger creates a structured logger with the given log level.
// Logs go to stderr so stdout stays machine-readable.
func setupLogger(levelStr string) *slog.Logger {
	level, err := config.ParseLogLevel(levelStr)
	if err != nil {
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{
		Level: level,
	}

	return slog.New(slog.NewJSONHandler(os.Stderr, opts))
}
