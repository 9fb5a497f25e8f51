// Command rebate-calc runs a single rebate calculation against a store and
// prints the outcome.
//
//	rebate-calc -rebate rebate2 -product product2 -volume 3
//	rebate-calc -store sqlite -sqlite-path ./rebates.db -rebate r1 -product p1 -volume 1.5
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/xenking/rebate-engine/internal/app"
	"github.com/xenking/rebate-engine/internal/domain/rebate"
)

type options struct {
	store    app.StoreConfig
	rebateID string
	product  string
	volume   string
	verbose  bool
}

func parseFlags(args []string) (options, error) {
	var opts options
	fs := flag.NewFlagSet("rebate-calc", flag.ContinueOnError)
	fs.StringVar(&opts.store.Driver, "store", app.DriverMemory, "store driver: memory, sqlite or postgres")
	fs.StringVar(&opts.store.DatabaseURL, "database-url", os.Getenv("DATABASE_URL"), "PostgreSQL connection URL")
	fs.StringVar(&opts.store.SQLitePath, "sqlite-path", "rebates.db", "SQLite database file")
	fs.StringVar(&opts.store.SeedFile, "seed-file", "db/seed/catalog.json", "JSON fixture for the memory store")
	fs.StringVar(&opts.rebateID, "rebate", "", "rebate identifier")
	fs.StringVar(&opts.product, "product", "", "product identifier")
	fs.StringVar(&opts.volume, "volume", "", "transaction volume")
	fs.BoolVar(&opts.verbose, "v", false, "debug logging")
	if err := fs.Parse(args); err != nil {
		return opts, err
	}
	if opts.rebateID == "" || opts.product == "" || opts.volume == "" {
		return opts, errors.New("-rebate, -product and -volume are required")
	}
	return opts, nil
}

func run(ctx context.Context, lg *zap.Logger, out io.Writer, opts options) error {
	volume, err := decimal.NewFromString(opts.volume)
	if err != nil {
		return errors.Wrapf(err, "parse volume %q", opts.volume)
	}

	stores, err := app.OpenStores(ctx, lg, opts.store)
	if err != nil {
		return errors.Wrap(err, "open stores")
	}
	defer stores.Close()

	svc := rebate.NewService(stores.Rebates, stores.Products, nil)
	res, err := svc.Calculate(zctx.Base(ctx, lg), rebate.CalculateRequest{
		RebateID:  opts.rebateID,
		ProductID: opts.product,
		Volume:    volume,
	})
	if err != nil {
		return errors.Wrap(err, "calculate")
	}

	_, err = fmt.Fprintf(out, "success=%t\n", res.Success)
	return err
}

func main() {
	opts, err := parseFlags(os.Args[1:])
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	cfg := zap.NewProductionConfig()
	if opts.verbose {
		cfg.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	}
	lg, err := cfg.Build()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer func() { _ = lg.Sync() }()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, lg, os.Stdout, opts); err != nil {
		lg.Error("Calculation failed", zap.Error(err))
		os.Exit(1)
	}
}
