package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"sheetledger/internal/amqp"
	"sheetledger/internal/core"
	"sheetledger/internal/fx"
	"sheetledger/internal/ledger"
	applog "sheetledger/internal/log"
	"sheetledger/internal/recurring"

	"github.com/shopspring/decimal"
)

var errUsage = errors.New("usage")

const usage = `usage: sheetledger [global flags] <command> [args]

commands:
  run                         check recurring rules and print the report
  summary [-month YYYY-MM]    income, expense and balance for a month
  trend [-from] [-to]         monthly income and expense
  months                      months that have transactions
  record -main -amount ...    record a transaction
  rules [list|add|delete|status]
  rates [-convert AMOUNT -from CODE]
  settings [show|set-default|add-category|add-payment|add-currency]
  budget [list|set]
  watch                       print recurring reports published to AMQP
`

// dispatch runs one command. Every command except watch starts the session
// first so due rules are posted before anything is read.
func (a *app) dispatch(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return errUsage
	}
	cmd, rest := args[0], args[1:]

	switch cmd {
	case "watch":
		return a.watch(ctx)
	case "help", "-h", "--help":
		fmt.Fprint(a.out, usage)
		return nil
	}

	rep := a.startSession(ctx)
	switch cmd {
	case "run":
		a.printReport(rep)
		return nil
	case "summary":
		return a.summary(ctx, rest)
	case "trend":
		return a.trend(ctx, rest)
	case "months":
		for _, p := range a.ledger.Months(ctx) {
			fmt.Fprintln(a.out, p)
		}
		return nil
	case "record":
		return a.record(ctx, rest)
	case "rules":
		return a.rulesCmd(ctx, rest)
	case "rates":
		return a.ratesCmd(ctx, rest)
	case "settings":
		return a.settingsCmd(ctx, rest)
	case "budget":
		return a.budgetCmd(ctx, rest)
	}
	return fmt.Errorf("unknown command %q: %w", cmd, errUsage)
}

func (a *app) printReport(rep recurring.Report) {
	fmt.Fprintf(a.out, "period %s: %d evaluated, %d settled, %d posted, %d failed\n",
		rep.Period, rep.Evaluated, rep.Settled, len(rep.Posted), rep.Failed())
	if len(rep.Posted) > 0 {
		w := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "RULE\tNOTE\tORIGINAL\tHOME\tFLAGS")
		for _, p := range rep.Posted {
			var flags []string
			if p.Degraded {
				flags = append(flags, "no-rate")
			}
			if !p.Settled {
				flags = append(flags, "unsettled")
			}
			tx := p.Transaction
			fmt.Fprintf(w, "%d\t%s\t%s %s\t%s\t%s\n", p.RuleID, core.TruncateNote(tx.Note),
				core.FormatAmount(tx.AmountOriginal), tx.Currency, core.FormatAmount(tx.AmountHome),
				strings.Join(flags, ","))
		}
		w.Flush()
	}
	for _, group := range [][]recurring.Failure{rep.AppendFailed, rep.MarkFailed, rep.Rejected} {
		for _, f := range group {
			fmt.Fprintf(a.out, "failed: %v\n", f)
		}
	}
}

func (a *app) summary(ctx context.Context, args []string) error {
	fs := newFlagSet("summary", a.out)
	month := fs.String("month", core.PeriodOf(a.now()).String(), "month as YYYY-MM")
	if err := fs.Parse(args); err != nil {
		return err
	}
	p, err := core.ParsePeriod(*month)
	if err != nil {
		return fmt.Errorf("month %q: %w", *month, err)
	}

	s := a.ledger.MonthSummary(ctx, p)
	home := a.settings.LoadDefaultCurrency(ctx)
	w := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintf(w, "month\t%s\t\n", p)
	fmt.Fprintf(w, "base income\t%s\t\n", money(s.BaseIncome, home))
	fmt.Fprintf(w, "income\t%s\t\n", money(s.Income, home))
	fmt.Fprintf(w, "total income\t%s\t\n", money(s.TotalIncome(), home))
	fmt.Fprintf(w, "expense\t%s\t\n", money(s.Expense, home))
	fmt.Fprintf(w, "balance\t%s\t\n", money(s.Balance, home))
	if s.Excluded > 0 {
		fmt.Fprintf(w, "unreadable rows\t%d\t\n", s.Excluded)
	}
	return w.Flush()
}

func (a *app) trend(ctx context.Context, args []string) error {
	cur := core.PeriodOf(a.now())
	start := cur
	for i := 0; i < 5; i++ {
		start = core.PeriodOf(start.Start().AddDate(0, -1, 0))
	}
	fs := newFlagSet("trend", a.out)
	from := fs.String("from", start.String(), "first month")
	to := fs.String("to", cur.String(), "last month")
	if err := fs.Parse(args); err != nil {
		return err
	}
	pf, err := core.ParsePeriod(*from)
	if err != nil {
		return fmt.Errorf("from %q: %w", *from, err)
	}
	pt, err := core.ParsePeriod(*to)
	if err != nil {
		return fmt.Errorf("to %q: %w", *to, err)
	}

	w := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "MONTH\tINCOME\tEXPENSE\tNET")
	for _, point := range a.ledger.Trend(ctx, pf, pt) {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", point.Period,
			core.FormatAmount(point.Income), core.FormatAmount(point.Expense),
			core.FormatAmount(point.Income.Sub(point.Expense)))
	}
	return w.Flush()
}

func (a *app) record(ctx context.Context, args []string) error {
	fs := newFlagSet("record", a.out)
	date := fs.String("date", a.now().Format(ledger.DateLayout), "date as YYYY-MM-DD")
	main := fs.String("main", "", "main category")
	sub := fs.String("sub", "", "sub-category")
	pay := fs.String("pay", "", "payment method")
	cur := fs.String("currency", "", "currency code, defaults to the home currency")
	amount := fs.String("amount", "", "amount in the original currency")
	homeAmount := fs.String("home", "", "home-currency amount, skips conversion")
	note := fs.String("note", "", "note")
	if err := fs.Parse(args); err != nil {
		return err
	}

	d, err := time.ParseInLocation(ledger.DateLayout, *date, time.Local)
	if err != nil {
		return fmt.Errorf("date %q: %w", *date, err)
	}
	amt, err := core.ParseAmount(*amount)
	if err != nil {
		return fmt.Errorf("amount %q: %w", *amount, err)
	}
	home := a.settings.LoadDefaultCurrency(ctx)
	in := ledger.RecordInput{
		Date:          d,
		MainCategory:  *main,
		SubCategory:   *sub,
		PaymentMethod: *pay,
		Currency:      *cur,
		Amount:        amt,
		Note:          *note,
	}
	if in.Currency == "" {
		in.Currency = home
	}
	if *homeAmount != "" {
		h, err := core.ParseAmount(*homeAmount)
		if err != nil {
			return fmt.Errorf("home amount %q: %w", *homeAmount, err)
		}
		in.HomeAmount = decimal.NewNullDecimal(h)
	}

	tx, err := a.ledger.Record(ctx, in, a.rates.Rates(ctx), home)
	if err != nil {
		return err
	}
	a.caches.PurgeAll()
	a.logger.WithComponent(applog.ComponentLedger).InfoContext(ctx, "Transaction recorded",
		applog.NewFields().WithOperation(applog.OpRecord).WithTransaction(tx).ToSlice()...)
	fmt.Fprintf(a.out, "recorded %s %s %s (%s)\n", tx.Type, core.FormatAmount(tx.AmountOriginal), tx.Currency, money(tx.AmountHome, home))
	return nil
}

func (a *app) rulesCmd(ctx context.Context, args []string) error {
	sub := "list"
	if len(args) > 0 {
		sub, args = args[0], args[1:]
	}
	switch sub {
	case "list":
		rules, invalid, err := a.rules.List(ctx)
		if err != nil {
			return err
		}
		now := a.now()
		w := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tDAY\tTYPE\tCATEGORY\tAMOUNT\tNOTE\tLAST RUN\tSTATUS\tSTATE")
		for _, r := range rules {
			last := r.LastRunMonth.String()
			if last == "" {
				last = "-"
			}
			fmt.Fprintf(w, "%d\t%d\t%s\t%s/%s\t%s %s\t%s\t%s\t%s\t%s\n", r.ID, r.ScheduledDay, r.Type,
				r.MainCategory, r.SubCategory, core.FormatAmount(r.AmountOriginal), r.Currency,
				core.TruncateNote(r.Note), last, r.Status, recurring.StateOf(r, now))
		}
		for _, inv := range invalid {
			fmt.Fprintf(w, "%d\t\t\t\t\t\t\t\tinvalid: %v\n", inv.ID, inv.Err)
		}
		return w.Flush()

	case "add":
		fs := newFlagSet("rules add", a.out)
		day := fs.Int("day", 1, "day of month, 1-31")
		main := fs.String("main", "", "main category")
		subCat := fs.String("sub", "", "sub-category")
		pay := fs.String("pay", "", "payment method")
		cur := fs.String("currency", "", "currency code")
		amount := fs.String("amount", "", "amount")
		note := fs.String("note", "", "note")
		if err := fs.Parse(args); err != nil {
			return err
		}
		amt, err := core.ParseAmount(*amount)
		if err != nil {
			return fmt.Errorf("amount %q: %w", *amount, err)
		}
		if *cur == "" {
			*cur = a.settings.LoadDefaultCurrency(ctx)
		}
		rule := core.RecurringRule{
			ScheduledDay:   *day,
			Type:           core.TypeForCategory(*main),
			MainCategory:   strings.TrimSpace(*main),
			SubCategory:    strings.TrimSpace(*subCat),
			PaymentMethod:  strings.TrimSpace(*pay),
			Currency:       *cur,
			AmountOriginal: amt,
			Note:           strings.TrimSpace(*note),
		}
		if err := a.rules.Add(ctx, rule); err != nil {
			return err
		}
		a.caches.PurgeAll()
		fmt.Fprintln(a.out, "rule added")
		return nil

	case "delete":
		id, err := ruleID(args)
		if err != nil {
			return err
		}
		if err := a.rules.Delete(ctx, id); err != nil {
			return err
		}
		a.caches.PurgeAll()
		fmt.Fprintf(a.out, "rule %d deleted\n", id)
		return nil

	case "status":
		id, err := ruleID(args)
		if err != nil {
			return err
		}
		if len(args) < 2 {
			return fmt.Errorf("rules status ID Active|Inactive: %w", errUsage)
		}
		status, err := core.ParseRuleStatus(args[1])
		if err != nil || strings.TrimSpace(args[1]) == "" {
			return fmt.Errorf("status %q: %w", args[1], core.ErrInvalidStatus)
		}
		if err := a.rules.SetStatus(ctx, id, status); err != nil {
			return err
		}
		a.caches.PurgeAll()
		fmt.Fprintf(a.out, "rule %d is now %s\n", id, status)
		return nil
	}
	return fmt.Errorf("rules %s: %w", sub, errUsage)
}

func ruleID(args []string) (int, error) {
	if len(args) == 0 {
		return 0, fmt.Errorf("missing rule ID: %w", errUsage)
	}
	id, err := strconv.Atoi(args[0])
	if err != nil || id < 0 {
		return 0, fmt.Errorf("rule ID %q must be a non-negative integer", args[0])
	}
	return id, nil
}

func (a *app) ratesCmd(ctx context.Context, args []string) error {
	fs := newFlagSet("rates", a.out)
	amount := fs.String("convert", "", "amount to convert into the home currency")
	from := fs.String("from", "", "currency of -convert")
	if err := fs.Parse(args); err != nil {
		return err
	}

	rates := a.rates.Rates(ctx)
	if rates.Empty() {
		fmt.Fprintln(a.out, "no exchange rates available")
	}
	home := a.settings.LoadDefaultCurrency(ctx)

	if *amount != "" {
		amt, err := core.ParseAmount(*amount)
		if err != nil {
			return fmt.Errorf("amount %q: %w", *amount, err)
		}
		c := fx.Convert(amt, core.NormalizeCurrency(*from), home, rates)
		if !c.OK {
			return fmt.Errorf("no rate for %s to %s", *from, home)
		}
		fmt.Fprintf(a.out, "%s %s = %s (factor %s)\n", core.FormatAmount(amt), core.NormalizeCurrency(*from),
			money(c.Amount, home), c.Factor.StringFixed(6))
		return nil
	}

	if rates.Empty() {
		return nil
	}
	w := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
	fmt.Fprintf(w, "CODE\tPER %s\tTO %s\n", fx.ReferenceCurrency, home)
	for _, code := range rates.Codes() {
		r, _ := rates.Rate(code)
		toHome := "-"
		if c := fx.Convert(decimal.NewFromInt(1), code, home, rates); c.OK {
			toHome = c.Factor.StringFixed(6)
		}
		fmt.Fprintf(w, "%s\t%s\t%s\n", code, r.String(), toHome)
	}
	fmt.Fprintf(w, "fetched\t%s\t\n", rates.FetchedAt.Format(time.RFC3339))
	return w.Flush()
}

func (a *app) settingsCmd(ctx context.Context, args []string) error {
	sub := "show"
	if len(args) > 0 {
		sub, args = args[0], args[1:]
	}
	st := a.settings.Load(ctx)

	switch sub {
	case "show":
		fmt.Fprintf(a.out, "default currency: %s\n", st.DefaultCurrency)
		fmt.Fprintf(a.out, "currencies: %s\n", strings.Join(st.Currencies, ", "))
		fmt.Fprintf(a.out, "payment methods: %s\n", strings.Join(st.PaymentMethods, ", "))
		for _, c := range st.Categories {
			fmt.Fprintf(a.out, "%s: %s\n", c.Main, strings.Join(c.Subs, ", "))
		}
		return nil
	case "set-default":
		if len(args) == 0 {
			return fmt.Errorf("settings set-default CODE: %w", errUsage)
		}
		st.DefaultCurrency = core.NormalizeCurrency(args[0])
	case "add-category":
		if len(args) == 0 {
			return fmt.Errorf("settings add-category MAIN [SUB...]: %w", errUsage)
		}
		st.Categories = addCategory(st.Categories, args[0], args[1:])
	case "add-payment":
		if len(args) == 0 {
			return fmt.Errorf("settings add-payment NAME: %w", errUsage)
		}
		st.PaymentMethods = append(st.PaymentMethods, args...)
	case "add-currency":
		if len(args) == 0 {
			return fmt.Errorf("settings add-currency CODE: %w", errUsage)
		}
		for _, c := range args {
			st.Currencies = append(st.Currencies, core.NormalizeCurrency(c))
		}
	default:
		return fmt.Errorf("settings %s: %w", sub, errUsage)
	}

	if err := a.settings.Save(ctx, st); err != nil {
		return err
	}
	a.caches.PurgeAll()
	fmt.Fprintln(a.out, "settings saved")
	return nil
}

// addCategory appends subs to main, creating main when absent.
func addCategory(cats []core.Category, main string, subs []string) []core.Category {
	main = strings.TrimSpace(main)
	for i := range cats {
		if strings.EqualFold(cats[i].Main, main) {
			cats[i].Subs = append(cats[i].Subs, subs...)
			return cats
		}
	}
	return append(cats, core.Category{Main: main, Subs: subs})
}

func (a *app) budgetCmd(ctx context.Context, args []string) error {
	sub := "list"
	if len(args) > 0 {
		sub, args = args[0], args[1:]
	}
	switch sub {
	case "list":
		targets, err := a.budget.Targets(ctx)
		if err != nil {
			return err
		}
		months := make([]core.Period, 0, len(targets))
		for p := range targets {
			months = append(months, p)
		}
		sort.Slice(months, func(i, j int) bool { return months[i].Before(months[j]) })
		w := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "MONTH\tINCOME TARGET")
		for _, p := range months {
			fmt.Fprintf(w, "%s\t%s\n", p, core.FormatAmount(targets[p]))
		}
		return w.Flush()
	case "set":
		fs := newFlagSet("budget set", a.out)
		month := fs.String("month", core.PeriodOf(a.now()).String(), "month as YYYY-MM")
		target := fs.String("target", "", "income target in the home currency")
		if err := fs.Parse(args); err != nil {
			return err
		}
		p, err := core.ParsePeriod(*month)
		if err != nil {
			return fmt.Errorf("month %q: %w", *month, err)
		}
		amt, err := core.ParseAmount(*target)
		if err != nil {
			return fmt.Errorf("target %q: %w", *target, err)
		}
		if err := a.budget.Set(ctx, core.BudgetTarget{Month: p, IncomeTarget: amt}); err != nil {
			return err
		}
		a.caches.PurgeAll()
		fmt.Fprintf(a.out, "budget for %s set to %s\n", p, core.FormatAmount(amt))
		return nil
	}
	return fmt.Errorf("budget %s: %w", sub, errUsage)
}

// watch prints recurring reports from the broker until ctx is cancelled.
func (a *app) watch(ctx context.Context) error {
	if a.cfg.AMQPURL == "" {
		return errors.New("watch needs AMQP_URL")
	}
	queue := a.cfg.AMQPRoutingKey
	client, err := amqp.NewClient(a.cfg.AMQPURL, a.cfg.AMQPExchange, queue)
	if err != nil {
		return fmt.Errorf("connect to broker: %w", err)
	}
	defer client.Close()

	a.caches.StartCleanup(time.Minute)
	defer a.caches.Stop()

	log := a.logger.WithComponent(applog.ComponentAMQP)
	log.InfoContext(ctx, "Watching recurring reports", "exchange", a.cfg.AMQPExchange, "queue", queue)
	err = client.ConsumeReports(ctx, func(m *amqp.ReportMessage) error {
		fmt.Fprintf(a.out, "%s session %s period %s: %d evaluated, %d settled, %d posted, %d failed\n",
			m.Timestamp.Format(time.RFC3339), m.SessionID, m.Period, m.Evaluated, m.Settled, len(m.Postings), m.Failed)
		for _, p := range m.Postings {
			fmt.Fprintf(a.out, "  rule %d %s %s %s -> %s\n", p.RuleID, p.Note, p.Amount, p.Currency, p.AmountHome)
		}
		return nil
	})
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func newFlagSet(name string, out io.Writer) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(out)
	return fs
}

func money(d decimal.Decimal, code string) string {
	return d.StringFixed(2) + " " + code
}
