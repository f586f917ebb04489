package main

import (
	"context"
	"fmt"
	"io"
	"time"

	"sheetledger/internal/amqp"
	"sheetledger/internal/cache"
	"sheetledger/internal/config"
	"sheetledger/internal/fx"
	"sheetledger/internal/ledger"
	applog "sheetledger/internal/log"
	"sheetledger/internal/recurring"
	"sheetledger/internal/session"
	"sheetledger/internal/settings"
	"sheetledger/internal/sheets"
	"sheetledger/internal/sheets/cached"
)

// app is one session against one spreadsheet.
type app struct {
	cfg    *config.Config
	logger *applog.Logger
	out    io.Writer
	now    func() time.Time

	store    sheets.RowStore
	caches   *cache.Manager
	rates    *fx.Provider
	settings *settings.Store
	txs      *ledger.Repository
	budget   *ledger.BudgetRepository
	ledger   *ledger.Service
	rules    *recurring.Repository
	session  *session.Session
}

type appDeps struct {
	Config   *config.Config
	Logger   *applog.Logger
	Out      io.Writer
	Store    sheets.RowStore
	Rates    fx.Source
	Notifier session.Notifier // optional
	Now      func() time.Time
}

func newApp(d appDeps) *app {
	now := d.Now
	if now == nil {
		now = time.Now
	}

	caches := cache.NewManager()
	if c, ok := d.Store.(*cached.Store); ok {
		caches.Register(c.Cache())
	}
	provider := fx.NewProvider(d.Rates, d.Config.RatesTTL).WithClock(now)
	caches.Register(provider.Cache())

	st := settings.New(d.Store, d.Config.HomeCurrency)
	txs := ledger.NewRepository(d.Store)
	budget := ledger.NewBudgetRepository(d.Store)
	rules := recurring.NewRepository(d.Store)
	engine := recurring.NewEngine(txs, rules, recurring.Options{SkipInactive: d.Config.SkipInactiveRules}).WithClock(now)

	a := &app{
		cfg:      d.Config,
		logger:   d.Logger,
		out:      d.Out,
		now:      now,
		store:    d.Store,
		caches:   caches,
		rates:    provider,
		settings: st,
		txs:      txs,
		budget:   budget,
		ledger:   ledger.NewService(txs, budget).WithClock(now),
		rules:    rules,
	}
	a.session = session.New(session.Deps{
		Rules:    rules,
		Engine:   engine,
		Rates:    provider,
		Home:     st,
		Caches:   caches,
		Notifier: d.Notifier,
		Now:      now,
	})
	return a
}

// rateSource picks the configured rate feed.
func rateSource(cfg *config.Config) (fx.Source, error) {
	if cfg.StaticRates != "" {
		src, err := fx.ParseStaticRates(cfg.StaticRates)
		if err != nil {
			return nil, fmt.Errorf("static rates: %w", err)
		}
		return src, nil
	}
	return fx.NewBankPageSource(cfg.RatesURL), nil
}

// reportPublisher connects to the broker when AMQP_URL is set. A failed
// connection disables notifications instead of failing the session.
func reportPublisher(cfg *config.Config, logger *applog.Logger) (*amqp.Client, session.Notifier) {
	if cfg.AMQPURL == "" {
		return nil, nil
	}
	client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, "")
	if err != nil {
		logger.Warn("Failed to initialize AMQP client, continuing without notifications", applog.FieldError, err)
		return nil, nil
	}
	logger.Info("AMQP client initialized", "exchange", cfg.AMQPExchange, "routing_key", cfg.AMQPRoutingKey)
	return client, amqp.NewReportNotifier(client, cfg.AMQPRoutingKey)
}

// startSession runs the once-per-session recurring check and logs its outcome.
func (a *app) startSession(ctx context.Context) recurring.Report {
	log := applog.FromContext(ctx).WithComponent(applog.ComponentSession)
	rep, ran, err := a.session.CheckRecurring(ctx)
	if err != nil {
		log.WarnContext(ctx, "Recurring check failed", applog.FieldSession, a.session.ID(), applog.FieldError, err)
		return rep
	}
	if ran {
		log.InfoContext(ctx, "Recurring check complete",
			applog.NewFields().WithPeriod(rep.Period).ToSlice()...)
		log.DebugContext(ctx, "Recurring check counts",
			applog.FieldSession, a.session.ID(),
			applog.FieldEvaluated, rep.Evaluated,
			applog.FieldPosted, len(rep.Posted),
			applog.FieldFailed, rep.Failed())
	}
	return rep
}
