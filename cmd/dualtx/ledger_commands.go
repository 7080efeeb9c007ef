package main

import (
	"fmt"
	"os"

	"github.com/brojonat/dualtx/service/ledger"
	"github.com/itchyny/gojq"
	"github.com/urfave/cli/v2"
)

func callerFlag() cli.Flag {
	return &cli.StringFlag{
		Name:     "caller",
		Aliases:  []string{"c"},
		Usage:    "Identity the request is made on behalf of",
		EnvVars:  []string{"DUALTX_CALLER"},
		Required: true,
	}
}

// accountArg returns the single positional account argument, checked
// against the configured address format.
func accountArg(c *cli.Context, app *ledgerApp) (string, error) {
	if c.NArg() != 1 {
		return "", fmt.Errorf("requires exactly one argument: account")
	}
	account := c.Args().First()
	if err := app.addresses.ValidateAddress(account); err != nil {
		return "", fmt.Errorf("invalid account %q: %w", account, err)
	}
	return account, nil
}

func setBadgeCommand() *cli.Command {
	return &cli.Command{
		Name:      "set",
		Usage:     "Grant (or revoke) a purity badge; owner only",
		ArgsUsage: "<account>",
		Flags: []cli.Flag{
			callerFlag(),
			&cli.BoolFlag{
				Name:  "revoke",
				Usage: "Revoke the badge instead of granting it",
			},
		},
		Action: func(c *cli.Context) error {
			app, err := openLedger(c.Context, c, openOptions{events: true})
			if err != nil {
				return err
			}
			defer app.Close()

			account, err := accountArg(c, app)
			if err != nil {
				return err
			}
			status := !c.Bool("revoke")

			ctx, cancel := app.withTimeout(c.Context)
			defer cancel()

			if err := app.engine.SetPurityBadge(ctx, c.String("caller"), account, status); err != nil {
				return fmt.Errorf("failed to set purity badge: %w", err)
			}

			if c.Bool("json") {
				return outputJSON(c.App.Writer, map[string]any{
					"account":          account,
					"has_purity_badge": status,
				})
			}
			verb := "granted to"
			if !status {
				verb = "revoked from"
			}
			fmt.Fprintf(c.App.Writer, "Purity badge %s %s\n", verb, account)
			return nil
		},
	}
}

func getBadgeCommand() *cli.Command {
	return &cli.Command{
		Name:      "get",
		Usage:     "Show whether an account holds a purity badge",
		ArgsUsage: "<account>",
		Action: func(c *cli.Context) error {
			if c.NArg() != 1 {
				return fmt.Errorf("requires exactly one argument: account")
			}
			account := c.Args().First()

			app, err := openLedger(c.Context, c, openOptions{})
			if err != nil {
				return err
			}
			defer app.Close()

			status := app.engine.PurityBadge(account)
			if c.Bool("json") {
				return outputJSON(c.App.Writer, map[string]any{
					"account":          account,
					"has_purity_badge": status,
				})
			}
			fmt.Fprintf(c.App.Writer, "%s\t%t\n", account, status)
			return nil
		},
	}
}

func showAccountCommand() *cli.Command {
	return &cli.Command{
		Name:      "show",
		Aliases:   []string{"get"},
		Usage:     "Show an account's badge, balance and history length",
		ArgsUsage: "<account>",
		Action: func(c *cli.Context) error {
			if c.NArg() != 1 {
				return fmt.Errorf("requires exactly one argument: account")
			}
			account := c.Args().First()

			app, err := openLedger(c.Context, c, openOptions{})
			if err != nil {
				return err
			}
			defer app.Close()

			acct, exists := app.engine.Account(account)
			acct.ID = account

			if c.Bool("json") {
				return outputJSON(c.App.Writer, struct {
					ledger.Account
					Exists bool `json:"exists"`
				}{acct, exists})
			}
			printAccount(c.App.Writer, acct, exists)
			return nil
		},
	}
}

func seedAccountCommand() *cli.Command {
	return &cli.Command{
		Name:      "seed",
		Usage:     "Credit an account's balance; owner only",
		ArgsUsage: "<account>",
		Flags: []cli.Flag{
			callerFlag(),
			&cli.Uint64Flag{
				Name:     "amount",
				Aliases:  []string{"a"},
				Usage:    "Amount to credit",
				Required: true,
			},
		},
		Action: func(c *cli.Context) error {
			app, err := openLedger(c.Context, c, openOptions{})
			if err != nil {
				return err
			}
			defer app.Close()

			account, err := accountArg(c, app)
			if err != nil {
				return err
			}

			ctx, cancel := app.withTimeout(c.Context)
			defer cancel()

			if err := app.engine.Provision(ctx, c.String("caller"), account, c.Uint64("amount")); err != nil {
				return fmt.Errorf("failed to seed account: %w", err)
			}

			balance := app.engine.Balance(account)
			if c.Bool("json") {
				return outputJSON(c.App.Writer, map[string]any{
					"account": account,
					"balance": balance,
				})
			}
			fmt.Fprintf(c.App.Writer, "Seeded %s, balance %d\n", account, balance)
			return nil
		},
	}
}

func submitTransactionCommand() *cli.Command {
	return &cli.Command{
		Name:  "submit",
		Usage: "Submit an internal or external transaction",
		Description: `Debit the sender and record the transaction in the sender's history.

The sender must hold a purity badge and enough balance, and the recipient must be
a valid identifier for the configured address format. The recipient is not credited.

Example:
  dualtx tx submit --caller GB... --to GC... --amount 40 --kind external --cross-chain --memo '{"order":7}'`,
		Flags: []cli.Flag{
			callerFlag(),
			&cli.StringFlag{
				Name:  "from",
				Usage: "Sending account (defaults to --caller)",
			},
			&cli.StringFlag{
				Name:     "to",
				Usage:    "Recipient identifier",
				Required: true,
			},
			&cli.Uint64Flag{
				Name:     "amount",
				Aliases:  []string{"a"},
				Usage:    "Amount to transfer",
				Required: true,
			},
			&cli.StringFlag{
				Name:  "kind",
				Usage: "Transaction kind: internal or external",
				Value: string(ledger.KindInternal),
			},
			&cli.BoolFlag{
				Name:  "cross-chain",
				Usage: "Mark the transaction as cross-chain",
			},
			&cli.StringFlag{
				Name:  "memo",
				Usage: "Opaque memo stored with the transaction",
			},
		},
		Action: func(c *cli.Context) error {
			kind, err := ledger.ParseKind(c.String("kind"))
			if err != nil {
				return err
			}

			caller := c.String("caller")
			from := c.String("from")
			if from == "" {
				from = caller
			}

			var memo []byte
			if c.IsSet("memo") {
				memo = []byte(c.String("memo"))
			}

			app, err := openLedger(c.Context, c, openOptions{events: true})
			if err != nil {
				return err
			}
			defer app.Close()

			ctx, cancel := app.withTimeout(c.Context)
			defer cancel()

			receipt, err := app.engine.SubmitTransaction(ctx, ledger.SubmitTransactionParams{
				Caller:       caller,
				From:         from,
				To:           c.String("to"),
				Amount:       c.Uint64("amount"),
				Kind:         kind,
				IsCrossChain: c.Bool("cross-chain"),
				Memo:         memo,
			})
			if ledger.IsRejection(err) {
				return fmt.Errorf("transaction rejected (%s): %w", ledger.Reason(err), err)
			}
			if err != nil {
				return fmt.Errorf("failed to submit transaction: %w", err)
			}

			if c.Bool("json") {
				return outputJSON(c.App.Writer, receipt)
			}
			printReceipt(c.App.Writer, receipt, app.engine.Balance(from))
			return nil
		},
	}
}

func listTransactionsCommand() *cli.Command {
	return &cli.Command{
		Name:      "list",
		Aliases:   []string{"ls"},
		Usage:     "List an account's transactions in submission order",
		ArgsUsage: "<account>",
		Description: `List the transactions an account has sent, oldest first.

Use --must-jq to keep only transactions for which every jq expression is truthy.
A memo holding JSON is exposed to jq as a value, any other memo as a string.

Example:
  dualtx tx list GB... --must-jq '.kind == "external"' --must-jq '.memo.order == 7'`,
		Flags: []cli.Flag{
			&cli.StringSliceFlag{
				Name:  "must-jq",
				Usage: "jq expression every listed transaction must satisfy (repeatable)",
			},
			&cli.IntFlag{
				Name:    "limit",
				Aliases: []string{"n"},
				Usage:   "Show at most this many of the most recent matches (0 for all)",
			},
			&cli.StringFlag{
				Name:  "format",
				Usage: "Output format: json (default) or human",
				Value: "json",
			},
		},
		Action: func(c *cli.Context) error {
			if c.NArg() != 1 {
				return fmt.Errorf("requires exactly one argument: account")
			}
			account := c.Args().First()

			format := c.String("format")
			if format != "json" && format != "human" {
				return fmt.Errorf("invalid format %q: must be 'json' or 'human'", format)
			}

			filters, err := compileFilters(c.StringSlice("must-jq"))
			if err != nil {
				return err
			}

			app, err := openLedger(c.Context, c, openOptions{})
			if err != nil {
				return err
			}
			defer app.Close()

			txns := selectTransactions(app.engine.UserTransactions(account), filters, c.Int("limit"))

			// Default to JSON output (stdout = JSON)
			if format == "json" || c.Bool("json") {
				return outputJSON(c.App.Writer, txns)
			}

			if len(txns) == 0 {
				fmt.Fprintln(c.App.Writer, "No transactions found")
				return nil
			}
			printTransactionTable(c.App.Writer, txns)
			fmt.Fprintf(os.Stderr, "\nTotal: %d transactions\n", len(txns))
			return nil
		},
	}
}

// selectTransactions keeps the transactions matching every filter and, when
// limit is positive, only the most recent limit of them.
func selectTransactions(history []ledger.Transaction, filters []*gojq.Code, limit int) []indexedTransaction {
	selected := make([]indexedTransaction, 0, len(history))
	for i, txn := range history {
		if matchesFilters(txn, filters) {
			selected = append(selected, indexedTransaction{Index: i, Transaction: txn})
		}
	}
	if limit > 0 && len(selected) > limit {
		selected = selected[len(selected)-limit:]
	}
	return selected
}
