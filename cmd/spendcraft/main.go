// Command spendcraft runs the budget alert and streak engine as a daemon and
// offers operator subcommands over the same store.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"

	"spendcraft/internal/cli"
)

const usage = `usage: spendcraft <command> [flags]

commands:
  serve                  watch for changes and deliver alerts (default)
  tx add|list            record or list transactions
  budget set|rm|list     manage monthly category limits
  category add|rm|list   manage categories
  account add|default|list
  recurring add|list|rm|pause|resume|run
                         manage recurring transactions
  check                  evaluate every budget for the current month
  streak                 print the current and longest streak
  log-today              mark today as logged
  prune                  delete alerts older than the retention window
  alerts                 print events consumed from the broker
`

var errUsage = errors.New("usage")

func main() {
	cli.LoadEnvFile()
	cfg := cli.MustLoadConfig()
	logger := cli.SetupLogger(cfg.LogLevel)

	ctx := context.Background()
	a, err := newApp(ctx, cfg, logger)
	if err != nil {
		logger.Error("Failed to initialize", "error", err)
		os.Exit(1)
	}

	err = run(ctx, a, os.Args[1:], os.Stdout)
	if cerr := a.Close(); cerr != nil {
		logger.Error("Cleanup failed", "error", cerr)
	}
	switch {
	case errors.Is(err, errUsage), errors.Is(err, flag.ErrHelp):
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	case err != nil:
		logger.Error("Command failed", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, a *app, args []string, out io.Writer) error {
	if len(args) == 0 {
		return serve(ctx, a)
	}
	cmd, rest := args[0], args[1:]
	switch cmd {
	case "serve":
		return serve(ctx, a)
	case "tx":
		return txCmd(ctx, a, rest, out)
	case "budget":
		return budgetCmd(ctx, a, rest, out)
	case "category":
		return categoryCmd(ctx, a, rest, out)
	case "account":
		return accountCmd(ctx, a, rest, out)
	case "recurring":
		return recurringCmd(ctx, a, rest, out)
	case "check":
		return check(ctx, a, out)
	case "streak":
		return printStreak(ctx, a, out)
	case "log-today":
		return logToday(ctx, a, out)
	case "prune":
		return prune(ctx, a, rest, out)
	case "alerts":
		return tailAlerts(ctx, a, out)
	default:
		return fmt.Errorf("%w: unknown command %q", errUsage, cmd)
	}
}

func subcommand(args []string) (string, []string, error) {
	if len(args) == 0 {
		return "", nil, fmt.Errorf("%w: missing subcommand", errUsage)
	}
	return args[0], args[1:], nil
}
