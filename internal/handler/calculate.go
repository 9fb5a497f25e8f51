package handler

import (
	"io"
	"net/http"
	"strings"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/go-faster/sdk/zctx"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/xenking/rebate-engine/internal/domain/rebate"
	"github.com/xenking/rebate-engine/internal/money"
	"github.com/xenking/rebate-engine/pkg/httpmiddleware"
)

const maxBodySize = 64 << 10

type calculateRequest struct {
	RebateIdentifier  string           `validate:"required,max=128"`
	ProductIdentifier string           `validate:"required,max=128"`
	Volume            *decimal.Decimal `validate:"required"`
}

func decodeCalculateRequest(r io.Reader) (calculateRequest, error) {
	var req calculateRequest
	err := jx.Decode(r, 512).Obj(func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "rebateIdentifier":
			req.RebateIdentifier, err = d.Str()
		case "productIdentifier":
			req.ProductIdentifier, err = d.Str()
		case "volume":
			var v decimal.Decimal
			if v, err = money.DecodeJSON(d); err == nil {
				req.Volume = &v
			}
		default:
			err = d.Skip()
		}
		if err != nil {
			return errors.Wrapf(err, "%s", key)
		}
		return nil
	})
	return req, err
}

// Calculate handles POST /api/rebates/calculate.
func (h *Handler) Calculate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	span := trace.SpanFromContext(ctx)

	req, err := decodeCalculateRequest(http.MaxBytesReader(w, r.Body, maxBodySize))
	if err != nil {
		httpmiddleware.WriteError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if err := h.validate.StructCtx(ctx, req); err != nil {
		httpmiddleware.WriteError(w, http.StatusBadRequest, validationMessage(err))
		return
	}

	span.SetAttributes(
		attribute.String("rebate.id", req.RebateIdentifier),
		attribute.String("product.id", req.ProductIdentifier),
	)

	res, err := h.calc.Calculate(ctx, rebate.CalculateRequest{
		RebateID:  req.RebateIdentifier,
		ProductID: req.ProductIdentifier,
		Volume:    *req.Volume,
	})
	if err != nil {
		span.RecordError(err)
		zctx.From(ctx).Error("Calculate rebate", zap.Error(err))
		httpmiddleware.WriteError(w, http.StatusInternalServerError, "internal error")
		return
	}

	span.SetAttributes(attribute.Bool("rebate.success", res.Success))
	h.calculations.Add(ctx, 1, metric.WithAttributes(attribute.Bool("success", res.Success)))

	e := jx.GetEncoder()
	defer jx.PutEncoder(e)
	e.ObjStart()
	e.FieldStart("success")
	e.Bool(res.Success)
	e.ObjEnd()

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(e.Bytes())
}

var fieldNames = map[string]string{
	"RebateIdentifier":  "rebateIdentifier",
	"ProductIdentifier": "productIdentifier",
	"Volume":            "volume",
}

func validationMessage(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		name := fieldNames[fe.Field()]
		switch fe.Tag() {
		case "required":
			msgs = append(msgs, name+" is required")
		case "max":
			msgs = append(msgs, name+" must be at most "+fe.Param()+" characters")
		default:
			msgs = append(msgs, name+" is invalid")
		}
	}
	return strings.Join(msgs, "; ")
}
