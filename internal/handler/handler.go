package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/errors"
	"github.com/go-playground/validator/v10"
	"go.opentelemetry.io/otel/metric"

	"github.com/xenking/rebate-engine/internal/domain/rebate"
)

// Calculator computes rebates. Implemented by *rebate.Service.
type Calculator interface {
	Calculate(ctx context.Context, req rebate.CalculateRequest) (rebate.CalculateResult, error)
}

// Handler serves the rebate HTTP API.
type Handler struct {
	calc     Calculator
	validate *validator.Validate

	calculations metric.Int64Counter
}

// New creates a Handler recording metrics through mp.
func New(calc Calculator, mp metric.MeterProvider) (*Handler, error) {
	meter := mp.Meter("github.com/xenking/rebate-engine/internal/handler")
	calculations, err := meter.Int64Counter("rebate.calculations",
		metric.WithDescription("Rebate calculations by outcome"),
	)
	if err != nil {
		return nil, errors.Wrap(err, "create calculations counter")
	}
	return &Handler{
		calc:         calc,
		validate:     validator.New(validator.WithRequiredStructEnabled()),
		calculations: calculations,
	}, nil
}

// Mount registers the API routes on r.
func (h *Handler) Mount(r chi.Router) {
	r.Post("/rebates/calculate", h.Calculate)
}

// Router returns a chi router with the API mounted under /api.
func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()
	r.Route("/api", h.Mount)
	return r
}
