// Package fixture decodes rebate and product snapshots from JSON documents
// used for seeding databases and for the in-memory store.
//
// Document shape:
//
//	{
//	  "rebates": [
//	    {"id": "rebate1", "incentive": "fixed_cash_amount", "amount": "100"}
//	  ],
//	  "products": [
//	    {"id": "product1", "price": 200, "uom": "kg", "supportedIncentives": ["fixed_cash_amount"]}
//	  ]
//	}
package fixture

import (
	"io"
	"os"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/samber/lo"

	"github.com/xenking/rebate-engine/internal/domain/incentive"
	"github.com/xenking/rebate-engine/internal/domain/product"
	"github.com/xenking/rebate-engine/internal/domain/rebate"
	"github.com/xenking/rebate-engine/internal/money"
)

// Fixture is a decoded set of rebates and products.
type Fixture struct {
	Rebates  []rebate.Rebate
	Products []product.Product
}

// LoadFile decodes the fixture at path.
func LoadFile(path string) (*Fixture, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "open %s", path)
	}
	defer func() { _ = f.Close() }()

	return Decode(f)
}

// Decode reads a fixture document from r and rejects duplicate identifiers.
func Decode(r io.Reader) (*Fixture, error) {
	var fx Fixture
	d := jx.Decode(r, 4096)
	if err := d.Obj(func(d *jx.Decoder, key string) error {
		switch key {
		case "rebates":
			return d.Arr(func(d *jx.Decoder) error {
				rb, err := decodeRebate(d)
				if err != nil {
					return errors.Wrapf(err, "rebate #%d", len(fx.Rebates))
				}
				fx.Rebates = append(fx.Rebates, rb)
				return nil
			})
		case "products":
			return d.Arr(func(d *jx.Decoder) error {
				p, err := decodeProduct(d)
				if err != nil {
					return errors.Wrapf(err, "product #%d", len(fx.Products))
				}
				fx.Products = append(fx.Products, p)
				return nil
			})
		default:
			return d.Skip()
		}
	}); err != nil {
		return nil, errors.Wrap(err, "decode fixture")
	}

	if dup := lo.FindDuplicatesBy(fx.Rebates, func(r rebate.Rebate) string { return r.ID }); len(dup) > 0 {
		return nil, errors.Errorf("duplicate rebate id %q", dup[0].ID)
	}
	if dup := lo.FindDuplicatesBy(fx.Products, func(p product.Product) string { return p.ID }); len(dup) > 0 {
		return nil, errors.Errorf("duplicate product id %q", dup[0].ID)
	}

	return &fx, nil
}

func decodeRebate(d *jx.Decoder) (rebate.Rebate, error) {
	var rb rebate.Rebate
	err := d.Obj(func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "id":
			rb.ID, err = d.Str()
		case "incentive":
			var s string
			if s, err = d.Str(); err == nil {
				rb.Incentive, err = incentive.Parse(s)
			}
		case "amount":
			rb.Amount, err = money.DecodeJSON(d)
		case "percentage":
			rb.Percentage, err = money.DecodeJSON(d)
		default:
			err = d.Skip()
		}
		if err != nil {
			return errors.Wrapf(err, "field %q", key)
		}
		return nil
	})
	if err != nil {
		return rb, err
	}
	if rb.ID == "" {
		return rb, errors.New("id is required")
	}
	return rb, nil
}

func decodeProduct(d *jx.Decoder) (product.Product, error) {
	var p product.Product
	err := d.Obj(func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "id":
			p.ID, err = d.Str()
		case "price":
			p.Price, err = money.DecodeJSON(d)
		case "uom":
			p.UOM, err = d.Str()
		case "supportedIncentives":
			err = d.Arr(func(d *jx.Decoder) error {
				s, err := d.Str()
				if err != nil {
					return err
				}
				t, err := incentive.Parse(s)
				if err != nil {
					return err
				}
				p.SupportedIncentives = p.SupportedIncentives.Add(t)
				return nil
			})
		default:
			err = d.Skip()
		}
		if err != nil {
			return errors.Wrapf(err, "field %q", key)
		}
		return nil
	})
	if err != nil {
		return p, err
	}
	if p.ID == "" {
		return p, errors.New("id is required")
	}
	return p, nil
}
