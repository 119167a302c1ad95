package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"time"

	"zenith/internal/core"
	"zenith/internal/files"
	zlog "zenith/internal/log"
	"zenith/internal/metrics"
	"zenith/internal/reports"
	"zenith/internal/transactions"
)

func runSummary(_ context.Context, e *env, args []string) error {
	fs := newFlags("summary")
	now := fs.String("now", "", "evaluate \"this month\" as of this date (YYYY-MM-DD)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := e.setNow(*now); err != nil {
		return err
	}
	reg := e.store.Registry()
	view := metrics.Dashboard(e.store.List(), reg.All(), e.now())
	s := view.Summary

	tw := newTable(e.out)
	fmt.Fprintf(tw, "Transactions\t%d\n", view.Count)
	fmt.Fprintf(tw, "Balance\t%s\n", s.Balance)
	fmt.Fprintf(tw, "Total income\t%s\n", s.TotalIncome)
	fmt.Fprintf(tw, "Total expenses\t%s\n", s.TotalExpenses)
	fmt.Fprintf(tw, "Income this month\t%s\n", s.IncomeThisMonth)
	fmt.Fprintf(tw, "Expenses this month\t%s\n", s.ExpensesThisMonth)
	fmt.Fprintf(tw, "Savings rate\t%.1f%%\n", s.SavingsRate)
	if len(view.ExpenseByCategory) > 0 {
		fmt.Fprintln(tw, "\nExpenses by category\t")
		for _, c := range view.ExpenseByCategory {
			fmt.Fprintf(tw, "  %s\t%s\n", c.Name, c.Amount)
		}
	}
	return tw.Flush()
}

func runImport(ctx context.Context, e *env, args []string) error {
	fs := newFlags("import")
	path := fs.String("file", "", "file to import")
	format := fs.StringP("format", "f", "", "file format: json, csv or yaml (default: from the file extension)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *path == "" && fs.NArg() == 1 {
		*path = fs.Arg(0)
	}
	if *path == "" || fs.NArg() > 1 {
		return errors.New("expected exactly one file to import")
	}

	f, err := resolveFormat(*format, *path)
	if err != nil {
		return err
	}
	in, err := os.Open(*path)
	if err != nil {
		return err
	}
	defer in.Close()

	drafts, err := files.Import(in, f)
	if err != nil {
		return fmt.Errorf("read %s: %w", *path, err)
	}
	added, err := e.store.Import(ctx, drafts)
	var persistErr *transactions.PersistError
	if err != nil && !errors.As(err, &persistErr) {
		return err
	}
	if persistErr != nil {
		// Nothing keeps the in-memory copy alive after the process exits.
		return fmt.Errorf("imported rows were not saved: %w", err)
	}
	e.logger.InfoContext(ctx, "Transactions imported", zlog.FieldCount, len(added), zlog.FieldFormat, f)
	fmt.Fprintf(e.out, "Imported %d transactions from %s\n", len(added), *path)
	return nil
}

func runExport(_ context.Context, e *env, args []string) error {
	fs := newFlags("export")
	format := fs.StringP("format", "f", "", "file format: json, csv or yaml (default: from the file extension, else json)")
	outPath := fs.StringP("out", "o", "", "write to this file instead of stdout")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() > 1 {
		return errors.New("expected at most one output file")
	}

	var out io.Writer = e.out
	path := *outPath
	if path == "" {
		path = fs.Arg(0)
	}
	if *format == "" && path == "" {
		*format = string(files.JSON)
	}
	f, err := resolveFormat(*format, path)
	if err != nil {
		return err
	}
	if path != "" {
		file, err := os.Create(path)
		if err != nil {
			return err
		}
		defer file.Close()
		out = file
	}

	txs := e.store.List()
	sort.SliceStable(txs, func(i, j int) bool { return txs[i].Date.After(txs[j].Date.Time) })
	if err := files.Export(out, f, txs, e.store.Registry()); err != nil {
		return err
	}
	if path != "" {
		fmt.Fprintf(e.out, "Exported %d transactions to %s\n", len(txs), path)
	}
	return nil
}

func runReport(_ context.Context, e *env, args []string) error {
	fs := newFlags("report")
	period := fs.StringP("period", "p", string(metrics.CurrentMonth), "reporting period")
	pdf := fs.String("pdf", "", "write a PDF statement to this path instead of printing")
	now := fs.String("now", "", "resolve the period as of this date (YYYY-MM-DD)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := e.setNow(*now); err != nil {
		return err
	}
	p, err := metrics.ParsePeriod(*period)
	if err != nil {
		return err
	}
	reg := e.store.Registry()
	view := metrics.Report(e.store.List(), reg.All(), p, e.now())

	if *pdf != "" {
		file, err := os.Create(*pdf)
		if err != nil {
			return err
		}
		if err := reports.WriteStatement(file, view, reg, e.now()); err != nil {
			file.Close()
			return err
		}
		if err := file.Close(); err != nil {
			return err
		}
		fmt.Fprintf(e.out, "Wrote %s statement to %s\n", p.Label(), *pdf)
		return nil
	}

	tw := newTable(e.out)
	fmt.Fprintf(tw, "%s\t%s to %s\n", p.Label(), view.Start.Format("2006-01-02"), view.End.Format("2006-01-02"))
	fmt.Fprintf(tw, "Income\t%s\n", view.Totals.Income)
	fmt.Fprintf(tw, "Expenses\t%s\n", view.Totals.Expenses)
	fmt.Fprintf(tw, "Net\t%s\n", view.Totals.Net)
	fmt.Fprintf(tw, "Savings rate\t%.1f%%\n", view.SavingsRate)
	fmt.Fprintln(tw)
	for _, tx := range view.Transactions {
		name := tx.CategoryID
		if c, ok := reg.ByID(tx.CategoryID); ok {
			name = c.Name
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", tx.Date, tx.Type.Label(), tx.Description, name, tx.Amount)
	}
	return tw.Flush()
}

// setNow pins the clock used for "this month" and period ranges.
func (e *env) setNow(s string) error {
	if s == "" {
		return nil
	}
	d, err := core.ParseDate(s)
	if err != nil {
		return err
	}
	e.now = func() time.Time { return d.Time }
	return nil
}

// resolveFormat prefers an explicit flag over the file extension.
func resolveFormat(flag, path string) (files.Format, error) {
	if flag != "" {
		return files.ParseFormat(flag)
	}
	if path == "" {
		return "", errors.New("cannot tell the format; pass --format")
	}
	return files.ParseFormat(path)
}
