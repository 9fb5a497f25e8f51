// Command rebate-batch calculates rebates for every request in one or more
// JSON-lines files (optionally gzip-compressed).
//
//	rebate-batch -store postgres -database-url postgres://... requests-1.jsonl.gz requests-2.jsonl.gz
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/rebate-engine/internal/app"
	"github.com/xenking/rebate-engine/internal/batch"
	"github.com/xenking/rebate-engine/internal/domain/rebate"
)

type options struct {
	store       app.StoreConfig
	concurrency int
	fpr         float64
	noFilter    bool
	files       []string
}

func parseFlags(args []string) (options, error) {
	var opts options
	fs := flag.NewFlagSet("rebate-batch", flag.ContinueOnError)
	fs.StringVar(&opts.store.Driver, "store", app.DriverMemory, "store driver: memory, sqlite or postgres")
	fs.StringVar(&opts.store.DatabaseURL, "database-url", os.Getenv("DATABASE_URL"), "PostgreSQL connection URL")
	fs.StringVar(&opts.store.SQLitePath, "sqlite-path", "rebates.db", "SQLite database file")
	fs.StringVar(&opts.store.SeedFile, "seed-file", "db/seed/catalog.json", "JSON fixture for the memory store")
	fs.IntVar(&opts.concurrency, "concurrency", 16, "maximum in-flight calculations")
	fs.Float64Var(&opts.fpr, "bloom-fpr", 0.001, "false positive rate of the rebate id filter")
	fs.BoolVar(&opts.noFilter, "no-filter", false, "disable the rebate id filter")
	if err := fs.Parse(args); err != nil {
		return opts, err
	}
	opts.files = fs.Args()
	if len(opts.files) == 0 {
		return opts, errors.New("at least one input file is required")
	}
	return opts, nil
}

func run(ctx context.Context, lg *zap.Logger, opts options) (batch.Summary, error) {
	ctx = zctx.Base(ctx, lg)

	stores, err := app.OpenStores(ctx, lg, opts.store)
	if err != nil {
		return batch.Summary{}, errors.Wrap(err, "open stores")
	}
	defer stores.Close()

	runOpts := batch.Options{Concurrency: opts.concurrency}
	if !opts.noFilter {
		filter, err := batch.BuildFilter(ctx, stores.IDs, opts.fpr)
		if err != nil {
			return batch.Summary{}, errors.Wrap(err, "build rebate filter")
		}
		runOpts.Filter = filter
	}

	svc := rebate.NewService(stores.Rebates, stores.Products, nil)
	return batch.NewRunner(svc, runOpts).RunFiles(ctx, opts.files...)
}

func main() {
	opts, err := parseFlags(os.Args[1:])
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	lg, err := zap.NewProduction()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer func() { _ = lg.Sync() }()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	start := time.Now()
	sum, err := run(ctx, lg, opts)
	fields := []zap.Field{
		zap.Int64("total", sum.Total),
		zap.Int64("succeeded", sum.Succeeded),
		zap.Int64("failed", sum.Failed),
		zap.Int64("skipped", sum.Skipped),
		zap.Int64("filtered", sum.Filtered),
		zap.Duration("duration", time.Since(start)),
	}
	if err != nil {
		lg.Error("Batch failed", append(fields, zap.Error(err))...)
		os.Exit(1)
	}
	lg.Info("Batch completed", fields...)
}
