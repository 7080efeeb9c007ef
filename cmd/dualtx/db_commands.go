package main

import (
	"fmt"

	"github.com/urfave/cli/v2"
)

func migrateCommand() *cli.Command {
	return &cli.Command{
		Name:  "migrate",
		Usage: "Apply the ledger schema",
		Description: `Apply all pending schema migrations. Safe to run repeatedly.

Example:
  dualtx --database-url postgres://localhost/dualtx db migrate`,
		Action: func(c *cli.Context) error {
			store, closer, err := getStore(c)
			if err != nil {
				return err
			}
			defer closer()

			if err := store.Migrate(); err != nil {
				return err
			}
			return printSchemaStatus(c, store)
		},
	}
}

func schemaStatusCommand() *cli.Command {
	return &cli.Command{
		Name:  "status",
		Usage: "Show the applied schema version",
		Action: func(c *cli.Context) error {
			store, closer, err := getStore(c)
			if err != nil {
				return err
			}
			defer closer()

			return printSchemaStatus(c, store)
		},
	}
}

type schemaVersioner interface {
	SchemaVersion() (uint, bool, error)
}

func printSchemaStatus(c *cli.Context, store schemaVersioner) error {
	version, dirty, err := store.SchemaVersion()
	if err != nil {
		return err
	}

	if c.Bool("json") {
		return outputJSON(c.App.Writer, map[string]any{
			"version": version,
			"dirty":   dirty,
		})
	}

	state := "clean"
	if dirty {
		state = "dirty"
	}
	fmt.Fprintf(c.App.Writer, "Schema version: %d (%s)\n", version, state)
	return nil
}
