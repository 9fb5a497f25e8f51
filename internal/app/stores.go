package app

import (
	"context"

	"github.com/go-faster/errors"
	"go.uber.org/zap"

	"github.com/xenking/rebate-engine/internal/domain/product"
	"github.com/xenking/rebate-engine/internal/domain/rebate"
	"github.com/xenking/rebate-engine/internal/fixture"
	"github.com/xenking/rebate-engine/internal/storage/memory"
	"github.com/xenking/rebate-engine/internal/storage/postgres"
	"github.com/xenking/rebate-engine/internal/storage/sqlite"
	"github.com/xenking/rebate-engine/pkg/health"
)

// Store drivers.
const (
	DriverMemory   = "memory"
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// StoreConfig selects and configures the rebate and product stores.
type StoreConfig struct {
	Driver      string `default:"memory" usage:"Store driver: memory, sqlite or postgres"`
	DatabaseURL string `env:"DATABASE_URL" flag:"database-url" usage:"PostgreSQL connection URL (REBATE_STORE_DATABASE_URL or DATABASE_URL)"`
	SQLitePath  string `default:"rebates.db" env:"SQLITE_PATH" flag:"sqlite-path" usage:"SQLite database file"`
	SeedFile    string `default:"db/seed/catalog.json" env:"SEED_FILE" flag:"seed-file" usage:"JSON fixture loaded by the memory driver"`
}

// Validate checks driver specific settings.
func (c StoreConfig) Validate() error {
	switch c.Driver {
	case DriverMemory, DriverSQLite:
		return nil
	case DriverPostgres:
		if c.DatabaseURL == "" {
			return errors.New("database URL is required for the postgres store: set REBATE_STORE_DATABASE_URL or DATABASE_URL")
		}
		return nil
	default:
		return errors.Errorf("unknown store driver %q", c.Driver)
	}
}

// IDLister lists rebate identifiers.
type IDLister interface {
	ListRebateIDs(ctx context.Context) ([]string, error)
}

// Stores bundles the opened stores of one driver.
type Stores struct {
	Rebates  rebate.Store
	Products product.Store
	IDs      IDLister
	// Ping is nil for the memory driver.
	Ping health.CheckFunc

	closers []func()
}

// Close releases the underlying connections.
func (s *Stores) Close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		s.closers[i]()
	}
}

// OpenStores opens the stores selected by cfg, applying schema migrations for
// SQL drivers.
func OpenStores(ctx context.Context, lg *zap.Logger, cfg StoreConfig) (*Stores, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	lg = lg.With(zap.String("driver", cfg.Driver))

	switch cfg.Driver {
	case DriverPostgres:
		pool, err := postgres.NewPool(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, errors.Wrap(err, "create db pool")
		}
		if err := postgres.RunMigrations(ctx, pool); err != nil {
			pool.Close()
			return nil, errors.Wrap(err, "run migrations")
		}
		lg.Info("Store opened")
		rebates := postgres.NewRebateStore(pool)
		return &Stores{
			Rebates:  rebates,
			Products: postgres.NewProductStore(pool),
			IDs:      rebates,
			Ping:     health.PingCheck("postgres", pool),
			closers:  []func(){pool.Close},
		}, nil

	case DriverSQLite:
		db, err := sqlite.Open(ctx, cfg.SQLitePath)
		if err != nil {
			return nil, err
		}
		lg.Info("Store opened", zap.String("path", cfg.SQLitePath))
		rebates := sqlite.NewRebateStore(db)
		return &Stores{
			Rebates:  rebates,
			Products: sqlite.NewProductStore(db),
			IDs:      rebates,
			Ping:     health.SQLPingCheck("sqlite", db),
			closers:  []func(){func() { _ = db.Close() }},
		}, nil

	default:
		fx := &fixture.Fixture{}
		if cfg.SeedFile != "" {
			loaded, err := fixture.LoadFile(cfg.SeedFile)
			if err != nil {
				return nil, errors.Wrap(err, "load seed file")
			}
			fx = loaded
		}
		lg.Info("Store opened",
			zap.Int("rebates", len(fx.Rebates)),
			zap.Int("products", len(fx.Products)),
		)
		rebates, products := memory.FromFixture(fx)
		return &Stores{
			Rebates:  rebates,
			Products: products,
			IDs:      rebates,
		}, nil
	}
}
