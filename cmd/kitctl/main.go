// Package main provides kitctl, the catalog administration CLI.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/kitbuilder/backend/config"
	"github.com/kitbuilder/backend/internal/app"
	"github.com/kitbuilder/backend/internal/infrastructure/logging"
)

// cli carries the state shared by every subcommand
type cli struct {
	out      io.Writer
	logLevel string
	app      *app.App
}

func newRootCmd(c *cli) *cobra.Command {
	root := &cobra.Command{
		Use:   "kitctl",
		Short: "Catalog administration for the kit builder backend",
		Long: `kitctl talks to the configured document store directly.

Use this tool to:
- Bulk import product or user records from JSON
- Run catalog queries and suggestions from the terminal
- List the category table

Configuration is read from KITBUILDER_* environment variables, .env and config.yaml.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			logger, err := logging.NewLogger(c.logLevel, "cli")
			if err != nil {
				return fmt.Errorf("init logger: %w", err)
			}
			c.app, err = app.New(cmd.Context(), cfg, logger)
			return err
		},
	}

	root.SetOut(c.out)
	root.PersistentFlags().StringVar(&c.logLevel, "log-level", "warn", "log level (debug, info, warn, error)")

	root.AddCommand(newImportCmd(c))
	root.AddCommand(newQueryCmd(c))
	root.AddCommand(newSuggestCmd(c))
	root.AddCommand(newCategoriesCmd(c))
	return root
}

// printJSON writes v as indented JSON
func (c *cli) printJSON(v any) error {
	enc := json.NewEncoder(c.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// run executes kitctl with args and releases the backends opened by the command
func run(ctx context.Context, args []string, in io.Reader, out io.Writer) error {
	c := &cli{out: out}
	root := newRootCmd(c)
	root.SetArgs(args)
	root.SetIn(in)

	err := root.ExecuteContext(ctx)
	if c.app != nil {
		_ = c.app.Logger.Sync()
		err = errors.Join(err, c.app.Close())
	}
	return err
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdin, os.Stdout); err != nil {
		os.Exit(1)
	}
}
