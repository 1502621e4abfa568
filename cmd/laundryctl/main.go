// Command laundryctl imports, exports and summarizes records from the
// command line, against the same store the server uses.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/urfave/cli/v2"

	"laundrytrack/internal/backend"
	"laundrytrack/internal/calendar"
	appcli "laundrytrack/internal/cli"
	"laundrytrack/internal/config"
	"laundrytrack/internal/core"
	"laundrytrack/internal/metrics"
	"laundrytrack/internal/services"
)

func main() {
	appcli.LoadEnvFile()
	logger := appcli.SetupLogger(envOr("LOG_LEVEL", "warn"))

	app := &cli.App{
		Name:  "laundryctl",
		Usage: "manage laundromat records",
		Commands: []*cli.Command{
			{
				Name:      "import",
				Usage:     "merge an xlsx workbook into the store",
				ArgsUsage: "<file.xlsx>",
				Action:    withService(runImport),
			},
			{
				Name:      "export",
				Usage:     "write every record to an xlsx workbook",
				ArgsUsage: "<file.xlsx>",
				Action:    withService(runExport),
			},
			{
				Name:  "summary",
				Usage: "print a month's totals against the previous month",
				Flags: []cli.Flag{
					&cli.IntFlag{Name: "year", Usage: "year", Value: time.Now().Year()},
					&cli.IntFlag{Name: "month", Usage: "month, 1-12", Value: int(time.Now().Month())},
				},
				Action: withService(runSummary),
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		logger.Error("laundryctl failed", "error", err)
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// withService opens the configured backend around a command.
func withService(run func(*cli.Context, *services.RecordService) error) cli.ActionFunc {
	return func(c *cli.Context) error {
		cfg := config.Load()
		if err := cfg.Validate(); err != nil {
			return err
		}
		core.CurrencyLabel = cfg.CurrencyLabel
		bcfg, err := backend.FromAppConfig(cfg)
		if err != nil {
			return err
		}
		res, err := backend.NewFactory(nil).Create(c.Context, bcfg)
		if err != nil {
			return err
		}
		defer res.Close()
		return run(c, res.Service)
	}
}

func fileArg(c *cli.Context) (string, error) {
	if c.NArg() != 1 {
		return "", cli.Exit(fmt.Sprintf("usage: laundryctl %s %s", c.Command.Name, c.Command.ArgsUsage), 2)
	}
	return c.Args().First(), nil
}

func runImport(c *cli.Context, svc *services.RecordService) error {
	path, err := fileArg(c)
	if err != nil {
		return err
	}
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close()

	res, err := svc.Import(c.Context, f)
	if err != nil {
		return err
	}
	out := c.App.Writer
	fmt.Fprintf(out, "reports: %d added, %d replaced\n", res.Record.ReportsAdded, res.Record.ReportsReplaced)
	fmt.Fprintf(out, "transactions: %d added, %d replaced\n", res.Record.TransactionsAdded, res.Record.TransactionsReplaced)
	if res.Notice != "" {
		fmt.Fprintln(out, "warning:", res.Notice)
	}
	return nil
}

func runExport(c *cli.Context, svc *services.RecordService) error {
	path, err := fileArg(c)
	if err != nil {
		return err
	}
	data, err := svc.Export(c.Context)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	fmt.Fprintf(c.App.Writer, "wrote %s (%d bytes)\n", path, len(data))
	return nil
}

func runSummary(c *cli.Context, svc *services.RecordService) error {
	month := c.Int("month")
	if month < 1 || month > 12 {
		return cli.Exit("month must be between 1 and 12", 2)
	}
	return printSummary(c.Context, c.App.Writer, svc, c.Int("year"), month-1)
}

func printSummary(ctx context.Context, w io.Writer, svc *services.RecordService, year, month int) error {
	snap, err := svc.Store().Snapshot(ctx)
	if err != nil {
		return err
	}
	py, pm := metrics.PrevPeriod(year, month)
	cur := metrics.MonthlyStats(snap.Reports, snap.Transactions, year, month)
	prev := metrics.MonthlyStats(snap.Reports, snap.Transactions, py, pm)
	d := metrics.MonthDeltas(cur, prev)
	gap := metrics.OfflineGap(snap.Reports, year, month)

	fmt.Fprintf(w, "%s %d\n", calendar.MonthName(month), year)
	rows := []struct {
		label string
		value fmt.Stringer
		delta metrics.Delta
	}{
		{"Sales", cur.Sales, d.Sales},
		{"Expenses", cur.Expenses, d.Expenses},
		{"Refunds", cur.Refunds, d.Refunds},
		{"Revenue", cur.Revenue, d.Revenue},
	}
	for _, r := range rows {
		fmt.Fprintf(w, "  %-9s %14s  %s %.1f%%\n", r.label, r.value, r.delta.Arrow(), r.delta.Value)
	}
	fmt.Fprintf(w, "  %-9s %14s\n", "Cash gap", gap.Gap)
	return nil
}
