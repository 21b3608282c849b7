package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"gagyebu/internal/core"
	"gagyebu/internal/ledger"
	"gagyebu/internal/sheets"
)

// errUsage marks a malformed command line; the message is the hint.
var errUsage = errors.New("usage")

type app struct {
	store *ledger.Store
	out   io.Writer
	in    io.Reader
	now   func() time.Time
	sheet func(ctx context.Context) (sheets.GridSource, error)
}

type command struct {
	name    string
	args    string
	summary string
	run     func(a *app, ctx context.Context, args []string) error
}

var commands = []command{
	{"add", "-type expense -category 식비 -amount 12000 [-date YYYY-MM-DD] [-memo ..] [-merchant ..]", "add a record", (*app).add},
	{"list", "[-month YYYY-MM|all] [-type all|income|expense] [-q text] [-days] [-json]", "show records", (*app).list},
	{"totals", "[-month YYYY-MM]", "show income, expense and balance", (*app).totals},
	{"remove", "<id>", "delete one record", (*app).remove},
	{"clear-month", "<YYYY-MM>", "delete every record of a month", (*app).clearMonth},
	{"import-json", "<file|->", "merge an exported JSON file", (*app).importJSON},
	{"import-xlsx", "<file>", "merge the first sheet of an .xlsx or .xls workbook", (*app).importXLSX},
	{"import-sheet", "", "merge the configured Google sheet", (*app).importSheet},
	{"export", "[-o file]", "write the ledger as JSON", (*app).export},
}

func usage(w io.Writer) {
	fmt.Fprintln(w, "usage: gagyebu-cli <command> [flags]")
	fmt.Fprintln(w)
	for _, c := range commands {
		fmt.Fprintf(w, "  %-12s %s\n", c.name, c.summary)
		if c.args != "" {
			fmt.Fprintf(w, "  %-12s   %s\n", "", c.args)
		}
	}
}

func (a *app) run(ctx context.Context, name string, args []string) error {
	for _, c := range commands {
		if c.name == name {
			return c.run(a, ctx, args)
		}
	}
	return fmt.Errorf("%w: unknown command %q", errUsage, name)
}

func newFlagSet(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	return fs
}

func parseFlags(fs *flag.FlagSet, args []string) error {
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("%w: %s: %v", errUsage, fs.Name(), err)
	}
	return nil
}

func (a *app) add(ctx context.Context, args []string) error {
	fs := newFlagSet("add")
	date := fs.String("date", "", "record date, default today (UTC)")
	typ := fs.String("type", string(core.Expense), "income or expense")
	category := fs.String("category", "", "category")
	amount := fs.String("amount", "", "positive amount, separators allowed")
	memo := fs.String("memo", "", "optional memo")
	merchant := fs.String("merchant", "", "optional merchant name")
	if err := parseFlags(fs, args); err != nil {
		return err
	}

	value, err := core.ParseAmount(*amount)
	if err != nil {
		return fmt.Errorf("amount %q: %w", *amount, err)
	}
	tx := core.Transaction{
		Date:     strings.TrimSpace(*date),
		Type:     core.TxType(strings.ToLower(strings.TrimSpace(*typ))),
		Category: strings.TrimSpace(*category),
		Amount:   value,
		Memo:     strings.TrimSpace(*memo),
	}
	if tx.Date == "" {
		tx.Date = core.Today(a.now())
	}
	if name := strings.TrimSpace(*merchant); name != "" {
		tx.Merchant = &core.Merchant{Name: name}
	}

	added, err := a.store.Add(ctx, tx)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "added %s  %s %s %s\n", added.ID, added.Date, added.Category, signedKRW(added))
	return nil
}

func (a *app) list(_ context.Context, args []string) error {
	fs := newFlagSet("list")
	month := fs.String("month", "", "YYYY-MM or all, default the current month")
	typ := fs.String("type", "all", "all, income or expense")
	query := fs.String("q", "", "match category or memo")
	byDay := fs.Bool("days", false, "group by day")
	asJSON := fs.Bool("json", false, "print JSON")
	if err := parseFlags(fs, args); err != nil {
		return err
	}

	ym, err := a.month(*month)
	if err != nil {
		return err
	}
	var view []core.Transaction
	if ym == "all" {
		view = a.store.All()
	} else {
		view = a.store.MonthView(ym)
	}
	items := core.Filter{Type: core.ParseFilterType(*typ), Query: *query}.Apply(view)

	if *asJSON {
		enc := json.NewEncoder(a.out)
		enc.SetIndent("", "  ")
		return enc.Encode(items)
	}

	r := newRenderer(a.out)
	if *byDay {
		for _, day := range core.GroupByDay(items) {
			fmt.Fprintln(a.out, r.dayHeader(day))
			fmt.Fprintln(a.out, r.transactions(day.Items))
		}
	} else {
		fmt.Fprintln(a.out, r.transactions(items))
	}
	fmt.Fprintln(a.out, r.totals(ym, core.Summarize(view)))
	return nil
}

func (a *app) totals(_ context.Context, args []string) error {
	fs := newFlagSet("totals")
	month := fs.String("month", "", "YYYY-MM, default the current month")
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	ym, err := a.month(*month)
	if err != nil {
		return err
	}

	r := newRenderer(a.out)
	if ym != "all" {
		fmt.Fprintln(a.out, r.totals(ym, a.store.MonthTotals(ym)))
	}
	fmt.Fprintln(a.out, r.totals("all", a.store.Totals()))
	return nil
}

func (a *app) remove(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("%w: remove <id>", errUsage)
	}
	if !a.store.Remove(ctx, args[0]) {
		return fmt.Errorf("no record with id %q", args[0])
	}
	fmt.Fprintf(a.out, "removed %s\n", args[0])
	return nil
}

func (a *app) clearMonth(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("%w: clear-month <YYYY-MM>", errUsage)
	}
	removed, err := a.store.ClearMonth(ctx, args[0])
	if err != nil {
		return fmt.Errorf("clear-month %q: %w", args[0], err)
	}
	fmt.Fprintf(a.out, "removed %d records from %s\n", removed, args[0])
	return nil
}

func (a *app) importJSON(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("%w: import-json <file|->", errUsage)
	}
	r, closeFn, err := a.open(args[0])
	if err != nil {
		return err
	}
	defer closeFn()

	rep, err := a.store.ImportJSON(ctx, r)
	if err != nil {
		return err
	}
	a.printReport(rep)
	return nil
}

func (a *app) importXLSX(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("%w: import-xlsx <file>", errUsage)
	}
	r, closeFn, err := a.open(args[0])
	if err != nil {
		return err
	}
	defer closeFn()

	rep, err := a.store.ImportSpreadsheet(ctx, r)
	if err != nil {
		return err
	}
	a.printReport(rep)
	return nil
}

func (a *app) importSheet(ctx context.Context, args []string) error {
	if len(args) != 0 {
		return fmt.Errorf("%w: import-sheet takes no arguments", errUsage)
	}
	src, err := a.sheet(ctx)
	if err != nil {
		return fmt.Errorf("google sheets: %w", err)
	}
	rep, err := a.store.ImportSheet(ctx, src)
	if err != nil {
		return err
	}
	a.printReport(rep)
	return nil
}

func (a *app) export(_ context.Context, args []string) error {
	fs := newFlagSet("export")
	out := fs.String("o", "", "output file ("+ledger.ExportFileName+" is the usual name), default stdout")
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	if *out == "" || *out == "-" {
		return a.store.ExportJSON(a.out)
	}

	f, err := os.Create(*out)
	if err != nil {
		return fmt.Errorf("create %s: %w", *out, err)
	}
	if err := a.store.ExportJSON(f); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close %s: %w", *out, err)
	}
	fmt.Fprintf(a.out, "exported %d records to %s\n", a.store.Len(), *out)
	return nil
}

// month resolves a -month flag: empty means the store's selected month.
func (a *app) month(v string) (string, error) {
	v = strings.TrimSpace(v)
	switch {
	case v == "":
		return a.store.SelectedMonth(), nil
	case v == "all":
		return v, nil
	case core.ValidMonthKey(v):
		return v, nil
	default:
		return "", fmt.Errorf("%w: month %q must be YYYY-MM or all", errUsage, v)
	}
}

// open returns path's contents, or stdin for "-".
func (a *app) open(path string) (io.Reader, func(), error) {
	if path == "-" {
		return a.in, func() {}, nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("open %s: %w", path, err)
	}
	return f, func() { _ = f.Close() }, nil
}

func (a *app) printReport(rep ledger.Report) {
	fmt.Fprintf(a.out, "imported %d (replaced %d), rejected %d\n", rep.Imported, rep.Replaced, len(rep.Rejected))
	if len(rep.Rejected) > 0 {
		idx := make([]string, len(rep.Rejected))
		for i, n := range rep.Rejected {
			idx[i] = fmt.Sprint(n)
		}
		fmt.Fprintf(a.out, "rejected rows: %s\n", strings.Join(idx, ", "))
	}
}
