// Command sheetledger is a personal multi-currency expense ledger kept in a
// spreadsheet. Each invocation is one session: due recurring rules are
// posted first, then the requested command runs.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"sync"
	"time"

	"sheetledger/internal/backend"
	"sheetledger/internal/cli"
	applog "sheetledger/internal/log"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	cli.LoadEnvFile()

	fs := flag.NewFlagSet("sheetledger", flag.ContinueOnError)
	fs.Usage = func() { fmt.Fprint(os.Stderr, usage); fs.PrintDefaults() }
	spreadsheet := fs.String("spreadsheet", "", "spreadsheet ID, URL or name for this session (overrides SPREADSHEET)")
	backendFlag := fs.String("backend", "", "memory, sheets or sqlite (overrides DATA_BACKEND)")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if *spreadsheet != "" {
		os.Setenv("SPREADSHEET", *spreadsheet)
	}
	if *backendFlag != "" {
		os.Setenv("DATA_BACKEND", *backendFlag)
	}

	logger := cli.SetupLogger(os.Getenv("LOG_LEVEL"))
	cfg := cli.MustLoadConfig(logger)

	startCtx, cancel := context.WithTimeout(context.Background(), time.Minute)
	bcfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		cancel()
		logger.Error("Invalid backend configuration", applog.FieldError, err)
		return 1
	}
	res, err := backend.NewFactory(logger.Logger).CreateBackend(startCtx, bcfg)
	cancel()
	if err != nil {
		logger.Error("Failed to initialize backend", applog.FieldBackend, bcfg.Type, applog.FieldError, err)
		return 1
	}

	src, err := rateSource(cfg)
	if err != nil {
		logger.Error("Invalid rate source", applog.FieldError, err)
		_ = res.Close()
		return 1
	}
	client, notifier := reportPublisher(cfg, logger)

	var once sync.Once
	cleanup := func() {
		once.Do(func() {
			if client != nil {
				if err := client.Close(); err != nil {
					logger.Warn("Failed to close AMQP client", applog.FieldError, err)
				}
			}
			if err := res.Close(); err != nil {
				logger.Warn("Failed to close backend", applog.FieldError, err)
			}
		})
	}
	ctx, done := cli.GracefulShutdown(logger, 10*time.Second, cleanup)
	ctx = applog.IntoContext(ctx, logger)

	a := newApp(appDeps{
		Config:   cfg,
		Logger:   logger,
		Out:      os.Stdout,
		Store:    res.Store,
		Rates:    src,
		Notifier: notifier,
	})

	err = a.dispatch(ctx, fs.Args())
	if ctx.Err() != nil {
		cli.WaitForShutdown(ctx, done)
	} else {
		cleanup()
	}

	switch {
	case err == nil:
		return 0
	case errors.Is(err, errUsage):
		fmt.Fprintln(os.Stderr, err)
		fs.Usage()
		return 2
	case errors.Is(err, flag.ErrHelp):
		return 0
	default:
		logger.Error("Command failed", applog.FieldError, err)
		fmt.Fprintln(os.Stderr, "error:", err)
		return 1
	}
}
