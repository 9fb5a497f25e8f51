//go:build integration

package postgres

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/xenking/rebate-engine/internal/domain/incentive"
	"github.com/xenking/rebate-engine/internal/domain/product"
	"github.com/xenking/rebate-engine/internal/domain/rebate"
)

func startPostgres(t *testing.T) *pgxpool.Pool {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	c, err := testcontainers.Run(ctx, "postgres:16-alpine",
		testcontainers.WithExposedPorts("5432/tcp"),
		testcontainers.WithEnv(map[string]string{
			"POSTGRES_USER":     "rebate",
			"POSTGRES_PASSWORD": "rebate",
			"POSTGRES_DB":       "rebate",
		}),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(time.Minute),
		),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = testcontainers.TerminateContainer(c) })

	endpoint, err := c.PortEndpoint(ctx, "5432/tcp", "")
	require.NoError(t, err)

	pool, err := NewPool(context.Background(), fmt.Sprintf("postgres://rebate:rebate@%s/rebate?sslmode=disable", endpoint))
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	require.NoError(t, RunMigrations(ctx, pool))
	return pool
}

func TestStores_Postgres(t *testing.T) {
	pool := startPostgres(t)
	ctx := context.Background()

	rebates := NewRebateStore(pool)
	products := NewProductStore(pool)

	require.NoError(t, rebates.UpsertRebate(ctx, rebate.Rebate{
		ID:         "rebate2",
		Incentive:  incentive.FixedRateRebate,
		Percentage: decimal.RequireFromString("0.1"),
	}))
	require.NoError(t, products.UpsertProduct(ctx, product.Product{
		ID:                  "product2",
		Price:               decimal.RequireFromString("200"),
		UOM:                 "kg",
		SupportedIncentives: incentive.SetOf(incentive.FixedRateRebate, incentive.AmountPerUom),
	}))

	t.Run("lookups", func(t *testing.T) {
		r, err := rebates.GetRebate(ctx, "rebate2")
		require.NoError(t, err)
		assert.Equal(t, incentive.FixedRateRebate, r.Incentive)
		assert.True(t, decimal.RequireFromString("0.1").Equal(r.Percentage))

		p, err := products.GetProduct(ctx, "product2")
		require.NoError(t, err)
		assert.Equal(t, "kg", p.UOM)
		assert.True(t, p.Supports(incentive.AmountPerUom))
		assert.False(t, p.Supports(incentive.FixedCashAmount))

		_, err = rebates.GetRebate(ctx, "missing")
		require.ErrorIs(t, err, rebate.ErrNotFound)
		_, err = products.GetProduct(ctx, "missing")
		require.ErrorIs(t, err, product.ErrNotFound)
	})

	t.Run("calculate end to end", func(t *testing.T) {
		svc := rebate.NewService(rebates, products, nil)

		res, err := svc.Calculate(ctx, rebate.CalculateRequest{
			RebateID:  "rebate2",
			ProductID: "product2",
			Volume:    decimal.NewFromInt(3),
		})
		require.NoError(t, err)
		assert.True(t, res.Success)

		calcs, err := rebates.ListCalculations(ctx, "rebate2")
		require.NoError(t, err)
		require.Len(t, calcs, 1)
		assert.True(t, decimal.NewFromInt(60).Equal(calcs[0].Amount))
		assert.Equal(t, incentive.FixedRateRebate, calcs[0].Incentive)
	})

	t.Run("list ids", func(t *testing.T) {
		ids, err := rebates.ListRebateIDs(ctx)
		require.NoError(t, err)
		assert.Equal(t, []string{"rebate2"}, ids)
	})
}
