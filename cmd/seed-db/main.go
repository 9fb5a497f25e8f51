// Command seed-db loads rebates and products from a JSON fixture into a SQL
// store, applying the schema first. Existing rows with the same id are
// replaced.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"

	"github.com/go-faster/errors"
	"go.uber.org/zap"

	"github.com/xenking/rebate-engine/internal/app"
	"github.com/xenking/rebate-engine/internal/domain/product"
	"github.com/xenking/rebate-engine/internal/domain/rebate"
	"github.com/xenking/rebate-engine/internal/fixture"
)

// The postgres and sqlite stores implement both upserters.
type (
	rebateUpserter interface {
		UpsertRebate(ctx context.Context, r rebate.Rebate) error
	}
	productUpserter interface {
		UpsertProduct(ctx context.Context, p product.Product) error
	}
)

func main() {
	var (
		cfg      app.StoreConfig
		seedFile string
	)
	flag.StringVar(&cfg.Driver, "store", app.DriverPostgres, "store driver: sqlite or postgres")
	flag.StringVar(&cfg.DatabaseURL, "database-url", os.Getenv("DATABASE_URL"), "PostgreSQL connection URL")
	flag.StringVar(&cfg.SQLitePath, "sqlite-path", "rebates.db", "SQLite database file")
	flag.StringVar(&seedFile, "seed-file", "db/seed/catalog.json", "path to the JSON fixture")
	flag.Parse()

	lg, err := zap.NewProduction()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer func() { _ = lg.Sync() }()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, lg, cfg, seedFile); err != nil {
		lg.Error("Seed failed", zap.Error(err))
		os.Exit(1)
	}
	lg.Info("Seed completed")
}

func run(ctx context.Context, lg *zap.Logger, cfg app.StoreConfig, seedFile string) error {
	if cfg.Driver == app.DriverMemory {
		return errors.New("the memory store cannot be seeded, use sqlite or postgres")
	}

	fx, err := fixture.LoadFile(seedFile)
	if err != nil {
		return errors.Wrap(err, "load fixture")
	}

	stores, err := app.OpenStores(ctx, lg, cfg)
	if err != nil {
		return errors.Wrap(err, "open stores")
	}
	defer stores.Close()

	rebates, ok := stores.Rebates.(rebateUpserter)
	if !ok {
		return errors.Errorf("rebate store %T does not support upserts", stores.Rebates)
	}
	products, ok := stores.Products.(productUpserter)
	if !ok {
		return errors.Errorf("product store %T does not support upserts", stores.Products)
	}

	lg.Info("Upserting products", zap.Int("count", len(fx.Products)))
	for _, p := range fx.Products {
		if err := products.UpsertProduct(ctx, p); err != nil {
			return errors.Wrapf(err, "upsert product %s", p.ID)
		}
		lg.Debug("Upserted product", zap.String("id", p.ID))
	}

	lg.Info("Upserting rebates", zap.Int("count", len(fx.Rebates)))
	for _, r := range fx.Rebates {
		if err := rebates.UpsertRebate(ctx, r); err != nil {
			return errors.Wrapf(err, "upsert rebate %s", r.ID)
		}
		lg.Debug("Upserted rebate", zap.String("id", r.ID), zap.Stringer("incentive", r.Incentive))
	}
	return nil
}
