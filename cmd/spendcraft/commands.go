package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/shopspring/decimal"

	"spendcraft/internal/amqp"
	"spendcraft/internal/core"
)

func parseMoney(s string) (core.Money, error) {
	minor, err := core.ParseDecimalToMinor(s)
	if err != nil {
		return core.Money{}, fmt.Errorf("amount %q: %w", s, err)
	}
	return core.Money{Minor: minor}, nil
}

// parseLimit accepts zero, which parseMoney rejects; a zero budget never
// alerts.
func parseLimit(s string) (core.Money, error) {
	if d, err := decimal.NewFromString(s); err == nil && d.IsZero() {
		return core.Money{}, nil
	}
	return parseMoney(s)
}

func txCmd(ctx context.Context, a *app, args []string, out io.Writer) error {
	sub, rest, err := subcommand(args)
	if err != nil {
		return err
	}
	switch sub {
	case "add":
		fs := flag.NewFlagSet("tx add", flag.ContinueOnError)
		amount := fs.String("amount", "", "amount in major units, e.g. 12.50")
		category := fs.String("category", "", "category id")
		account := fs.String("account", "", "account id (default account when empty)")
		note := fs.String("note", "", "optional note")
		income := fs.Bool("income", false, "record as income")
		date := fs.String("date", "", "UTC date YYYY-MM-DD (now when empty)")
		if err := fs.Parse(rest); err != nil {
			return err
		}
		money, err := parseMoney(*amount)
		if err != nil {
			return err
		}
		tx := core.Transaction{
			Amount:     money,
			CategoryID: *category,
			AccountID:  *account,
			Note:       *note,
			IsIncome:   *income,
		}
		if *date != "" {
			d, err := time.Parse(time.DateOnly, *date)
			if err != nil {
				return fmt.Errorf("date %q: %w", *date, err)
			}
			tx.TimestampUTCMillis = d.UTC().UnixMilli()
		}
		tx, err = a.ledger.RecordTransaction(ctx, tx)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "recorded %s %s\n", tx.ID, tx.Amount)

		if tx.CategoryID == "" || tx.IsIncome {
			return nil
		}
		events, err := a.budget.EvaluateBudgetsForCategory(ctx, tx.CategoryID)
		if err != nil {
			return err
		}
		name := a.budget.CategoryName(ctx, tx.CategoryID)
		for _, e := range events {
			fmt.Fprintln(out, e.Message(name))
		}
		return nil
	case "list":
		txs, err := a.ledger.ListTransactions(ctx)
		if err != nil {
			return err
		}
		w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "DATE\tAMOUNT\tCATEGORY\tACCOUNT\tNOTE")
		for _, tx := range txs {
			amount := tx.Amount.String()
			if tx.IsIncome {
				amount = "+" + amount
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
				tx.Time().Format(time.DateOnly), amount, tx.CategoryID, tx.AccountID, tx.Note)
		}
		return w.Flush()
	default:
		return fmt.Errorf("%w: tx %s", errUsage, sub)
	}
}

func budgetCmd(ctx context.Context, a *app, args []string, out io.Writer) error {
	sub, rest, err := subcommand(args)
	if err != nil {
		return err
	}
	fs := flag.NewFlagSet("budget "+sub, flag.ContinueOnError)
	category := fs.String("category", "", "category id")
	limit := fs.String("limit", "", "monthly limit in major units")
	if err := fs.Parse(rest); err != nil {
		return err
	}

	switch sub {
	case "set":
		money, err := parseLimit(*limit)
		if err != nil {
			return err
		}
		if err := a.budget.UpsertBudget(ctx, core.Budget{CategoryID: *category, MonthlyLimit: money}); err != nil {
			return err
		}
		fmt.Fprintf(out, "budget for %s set to %s\n", *category, money)
		return nil
	case "rm":
		return a.budget.DeleteBudget(ctx, *category)
	case "list":
		budgets, err := a.budget.ListBudgets(ctx)
		if err != nil {
			return err
		}
		month := a.budget.CurrentMonth()
		w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
		fmt.Fprintf(w, "CATEGORY\tLIMIT\tSPENT %s\n", month)
		for _, b := range budgets {
			spent, err := a.budget.MonthlySpend(ctx, b.CategoryID, month)
			if err != nil {
				return err
			}
			fmt.Fprintf(w, "%s\t%s\t%s\n", a.budget.CategoryName(ctx, b.CategoryID), b.MonthlyLimit, spent)
		}
		return w.Flush()
	default:
		return fmt.Errorf("%w: budget %s", errUsage, sub)
	}
}

func categoryCmd(ctx context.Context, a *app, args []string, out io.Writer) error {
	sub, rest, err := subcommand(args)
	if err != nil {
		return err
	}
	fs := flag.NewFlagSet("category "+sub, flag.ContinueOnError)
	id := fs.String("id", "", "category id")
	name := fs.String("name", "", "display name")
	icon := fs.String("icon", "", "optional icon")
	if err := fs.Parse(rest); err != nil {
		return err
	}

	switch sub {
	case "add":
		return a.ledger.UpsertCategory(ctx, core.Category{ID: *id, Name: *name, Icon: *icon})
	case "rm":
		return a.ledger.DeleteCategory(ctx, *id)
	case "list":
		cats, err := a.ledger.ListCategories(ctx)
		if err != nil {
			return err
		}
		for _, c := range cats {
			fmt.Fprintf(out, "%s\t%s\t%s\n", c.ID, c.Name, c.Icon)
		}
		return nil
	default:
		return fmt.Errorf("%w: category %s", errUsage, sub)
	}
}

func accountCmd(ctx context.Context, a *app, args []string, out io.Writer) error {
	sub, rest, err := subcommand(args)
	if err != nil {
		return err
	}
	fs := flag.NewFlagSet("account "+sub, flag.ContinueOnError)
	id := fs.String("id", "", "account id")
	name := fs.String("name", "", "account name")
	isDefault := fs.Bool("default", false, "make this the default account")
	if err := fs.Parse(rest); err != nil {
		return err
	}

	switch sub {
	case "add":
		acc, err := a.ledger.AddAccount(ctx, core.Account{ID: *id, Name: *name, IsDefault: *isDefault})
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "added account %s\n", acc.ID)
		return nil
	case "default":
		return a.ledger.SetDefaultAccount(ctx, *id)
	case "list":
		accounts, err := a.ledger.ListAccounts(ctx)
		if err != nil {
			return err
		}
		for _, acc := range accounts {
			marker := ""
			if acc.IsDefault {
				marker = "*"
			}
			fmt.Fprintf(out, "%s%s\t%s\n", marker, acc.ID, acc.Name)
		}
		return nil
	default:
		return fmt.Errorf("%w: account %s", errUsage, sub)
	}
}

func check(ctx context.Context, a *app, out io.Writer) error {
	breaches, err := a.budget.CheckBudgetBreaches(ctx)
	for _, b := range breaches {
		fmt.Fprintln(out, b.Text)
	}
	if len(breaches) == 0 && err == nil {
		fmt.Fprintln(out, "no new budget alerts")
	}
	return err
}

func printStreak(ctx context.Context, a *app, out io.Writer) error {
	streak, err := a.streak.CurrentStreak(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "current: %d\nlongest: %d\n", streak.Current, streak.Longest)
	return nil
}

func logToday(ctx context.Context, a *app, out io.Writer) error {
	inserted, err := a.streak.MarkTodayLogged(ctx)
	if err != nil {
		return err
	}
	if !inserted {
		fmt.Fprintln(out, "today was already logged")
	}
	return printStreak(ctx, a, out)
}

func prune(ctx context.Context, a *app, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("prune", flag.ContinueOnError)
	retention := fs.Int("retention", a.cfg.AlertRetentionMonths, "months of alerts to keep")
	if err := fs.Parse(args); err != nil {
		return err
	}
	n, err := a.budget.PruneAlerts(ctx, *retention)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "deleted %d alerts\n", n)
	return nil
}

func tailAlerts(ctx context.Context, a *app, out io.Writer) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	client := a.connectAMQP()
	if client == nil {
		return fmt.Errorf("alerts needs a reachable AMQP_URL")
	}
	err := client.ConsumeEvents(ctx, func(msg *amqp.EventMessage) error {
		switch msg.Type {
		case amqp.TypeBudgetAlert:
			fmt.Fprintf(out, "%s %s\n", msg.Timestamp.Format(time.RFC3339), msg.Alert.Text)
		case amqp.TypeStreak:
			fmt.Fprintf(out, "%s streak current=%d longest=%d\n",
				msg.Timestamp.Format(time.RFC3339), msg.Streak.Current, msg.Streak.Longest)
		}
		return nil
	})
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func parseDate(flagName, s string) (int64, error) {
	if s == "" {
		return 0, nil
	}
	d, err := time.Parse(time.DateOnly, s)
	if err != nil {
		return 0, fmt.Errorf("%s %q: %w", flagName, s, err)
	}
	return d.UTC().UnixMilli(), nil
}

func recurringCmd(ctx context.Context, a *app, args []string, out io.Writer) error {
	sub, rest, err := subcommand(args)
	if err != nil {
		return err
	}
	switch sub {
	case "add":
		fs := flag.NewFlagSet("recurring add", flag.ContinueOnError)
		name := fs.String("name", "", "rule name")
		amount := fs.String("amount", "", "amount in major units")
		category := fs.String("category", "", "category id")
		account := fs.String("account", "", "account id (default account when empty)")
		note := fs.String("note", "", "note for generated transactions")
		income := fs.Bool("income", false, "generate income")
		frequency := fs.String("frequency", string(core.Monthly), "daily, weekly, monthly or yearly")
		interval := fs.Int("interval", 1, "repeat every n periods")
		start := fs.String("start", "", "first UTC date YYYY-MM-DD (now when empty)")
		end := fs.String("end", "", "last UTC date YYYY-MM-DD (open when empty)")
		if err := fs.Parse(rest); err != nil {
			return err
		}
		money, err := parseMoney(*amount)
		if err != nil {
			return err
		}
		freq, err := core.ParseFrequency(*frequency)
		if err != nil {
			return err
		}
		startMillis, err := parseDate("start", *start)
		if err != nil {
			return err
		}
		endMillis, err := parseDate("end", *end)
		if err != nil {
			return err
		}
		r, err := a.recurring.AddRule(ctx, core.RecurringRule{
			Name:           *name,
			Amount:         money,
			Note:           *note,
			CategoryID:     *category,
			AccountID:      *account,
			IsIncome:       *income,
			Frequency:      freq,
			Interval:       *interval,
			StartUTCMillis: startMillis,
			EndUTCMillis:   endMillis,
		})
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "added recurring rule %s, next run %s\n", r.ID, r.NextRun().Format(time.DateOnly))
		return nil
	case "list":
		rules, err := a.recurring.ListRules(ctx)
		if err != nil {
			return err
		}
		w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tNAME\tAMOUNT\tEVERY\tNEXT\tACTIVE")
		for _, r := range rules {
			fmt.Fprintf(w, "%s\t%s\t%s\t%d %s\t%s\t%t\n",
				r.ID, r.Name, r.Amount, r.Interval, r.Frequency, r.NextRun().Format(time.DateOnly), r.Active)
		}
		return w.Flush()
	case "rm", "pause", "resume":
		fs := flag.NewFlagSet("recurring "+sub, flag.ContinueOnError)
		id := fs.String("id", "", "rule id")
		if err := fs.Parse(rest); err != nil {
			return err
		}
		if sub == "rm" {
			return a.recurring.DeleteRule(ctx, *id)
		}
		r, err := a.recurring.SetRuleActive(ctx, *id, sub == "resume")
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "rule %s active=%t next run %s\n", r.ID, r.Active, r.NextRun().Format(time.DateOnly))
		return nil
	case "run":
		n, err := a.recurring.ProcessDue(ctx)
		fmt.Fprintf(out, "created %d transactions\n", n)
		return err
	default:
		return fmt.Errorf("%w: recurring %s", errUsage, sub)
	}
}
