// Package batch runs rebate calculations from JSON-lines request files.
//
// Each line holds one request:
//
//	{"rebateIdentifier":"rebate2","productIdentifier":"product2","volume":"3"}
//
// Files ending in .gz are read with a parallel gzip decoder.
package batch

import (
	"bufio"
	"context"
	"io"
	"os"
	"strings"
	"sync/atomic"

	"github.com/bits-and-blooms/bloom/v3"
	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/go-faster/sdk/zctx"
	pgzip "github.com/klauspost/pgzip"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/xenking/rebate-engine/internal/domain/rebate"
	"github.com/xenking/rebate-engine/internal/money"
)

const (
	defaultConcurrency = 16
	defaultFPR         = 0.001
	progressEvery      = 100_000
	maxLineSize        = 1 << 20
)

// Calculator computes a single rebate. Implemented by *rebate.Service.
type Calculator interface {
	Calculate(ctx context.Context, req rebate.CalculateRequest) (rebate.CalculateResult, error)
}

// IDLister lists known rebate identifiers.
type IDLister interface {
	ListRebateIDs(ctx context.Context) ([]string, error)
}

// Summary counts processed lines. Total = Succeeded + Failed + Skipped.
type Summary struct {
	Total     int64
	Succeeded int64
	Failed    int64
	// Skipped lines were blank or malformed.
	Skipped int64
	// Filtered is the subset of Failed rejected by the rebate id filter
	// without calling the store.
	Filtered int64
}

// Options configures a Runner.
type Options struct {
	// Concurrency bounds in-flight calculations. Defaults to 16.
	Concurrency int
	// Filter, when set, rejects rebate ids that are definitely unknown.
	Filter *bloom.BloomFilter
}

// Runner executes calculation requests with bounded concurrency.
type Runner struct {
	calc        Calculator
	filter      *bloom.BloomFilter
	concurrency int
}

// NewRunner creates a Runner.
func NewRunner(calc Calculator, opts Options) *Runner {
	if opts.Concurrency <= 0 {
		opts.Concurrency = defaultConcurrency
	}
	return &Runner{
		calc:        calc,
		filter:      opts.Filter,
		concurrency: opts.Concurrency,
	}
}

// BuildFilter returns a bloom filter holding every rebate id listed by l.
func BuildFilter(ctx context.Context, l IDLister, fpr float64) (*bloom.BloomFilter, error) {
	ids, err := l.ListRebateIDs(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "list rebate ids")
	}
	if fpr <= 0 || fpr >= 1 {
		fpr = defaultFPR
	}
	f := bloom.NewWithEstimates(uint(max(len(ids), 1)), fpr)
	for _, id := range ids {
		f.AddString(id)
	}
	return f, nil
}

type counters struct {
	total, succeeded, failed, skipped, filtered atomic.Int64
}

func (c *counters) summary() Summary {
	return Summary{
		Total:     c.total.Load(),
		Succeeded: c.succeeded.Load(),
		Failed:    c.failed.Load(),
		Skipped:   c.skipped.Load(),
		Filtered:  c.filtered.Load(),
	}
}

// RunFiles processes every file in order and returns the combined summary.
// A calculation error stops the run; the returned summary covers the lines
// completed so far.
func (r *Runner) RunFiles(ctx context.Context, paths ...string) (Summary, error) {
	var c counters
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.concurrency)

	var streamErr error
	for _, path := range paths {
		if streamErr = r.streamFile(gctx, g, &c, path); streamErr != nil {
			break
		}
	}
	if err := g.Wait(); err != nil {
		return c.summary(), err
	}
	return c.summary(), streamErr
}

// Run processes JSON lines read from src.
func (r *Runner) Run(ctx context.Context, src io.Reader) (Summary, error) {
	var c counters
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.concurrency)

	streamErr := r.stream(gctx, g, &c, src, "input")
	if err := g.Wait(); err != nil {
		return c.summary(), err
	}
	return c.summary(), streamErr
}

func (r *Runner) streamFile(ctx context.Context, g *errgroup.Group, c *counters, path string) error {
	rc, err := Open(path)
	if err != nil {
		return err
	}
	defer func() { _ = rc.Close() }()
	return r.stream(ctx, g, c, rc, path)
}

func (r *Runner) stream(ctx context.Context, g *errgroup.Group, c *counters, src io.Reader, name string) error {
	lg := zctx.From(ctx).With(zap.String("source", name))

	scanner := bufio.NewScanner(src)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	var line int64
	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}
		line++
		total := c.total.Add(1)
		if total%progressEvery == 0 {
			lg.Info("Batch progress", zap.Int64("lines", total))
		}

		req, err := decodeRequest(scanner.Bytes())
		if err != nil {
			c.skipped.Add(1)
			lg.Debug("Skip line", zap.Int64("line", line), zap.Error(err))
			continue
		}
		if r.filter != nil && !r.filter.TestString(req.RebateID) {
			c.failed.Add(1)
			c.filtered.Add(1)
			continue
		}

		at := line
		g.Go(func() error {
			res, err := r.calc.Calculate(ctx, req)
			if err != nil {
				return errors.Wrapf(err, "%s:%d", name, at)
			}
			if res.Success {
				c.succeeded.Add(1)
			} else {
				c.failed.Add(1)
			}
			return nil
		})
	}
	if err := scanner.Err(); err != nil {
		return errors.Wrapf(err, "scan %s", name)
	}
	return nil
}

// Open opens path for reading, decompressing .gz files.
func Open(path string) (io.ReadCloser, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "open %s", path)
	}
	if !strings.HasSuffix(path, ".gz") {
		return f, nil
	}
	gz, err := pgzip.NewReader(f)
	if err != nil {
		_ = f.Close()
		return nil, errors.Wrapf(err, "create gzip reader for %s", path)
	}
	return &gzipFile{Reader: gz, f: f}, nil
}

type gzipFile struct {
	*pgzip.Reader
	f *os.File
}

func (g *gzipFile) Close() error {
	gzErr := g.Reader.Close()
	if err := g.f.Close(); err != nil {
		return err
	}
	return gzErr
}

var errBlankLine = errors.New("blank line")

func decodeRequest(line []byte) (rebate.CalculateRequest, error) {
	var (
		req       rebate.CalculateRequest
		hasVolume bool
	)
	if len(strings.TrimSpace(string(line))) == 0 {
		return req, errBlankLine
	}
	err := jx.DecodeBytes(line).Obj(func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "rebateIdentifier":
			req.RebateID, err = d.Str()
		case "productIdentifier":
			req.ProductID, err = d.Str()
		case "volume":
			var v decimal.Decimal
			if v, err = money.DecodeJSON(d); err == nil {
				req.Volume, hasVolume = v, true
			}
		default:
			err = d.Skip()
		}
		if err != nil {
			return errors.Wrapf(err, "%s", key)
		}
		return nil
	})
	if err != nil {
		return req, err
	}
	switch {
	case req.RebateID == "":
		return req, errors.New("rebateIdentifier is required")
	case req.ProductID == "":
		return req, errors.New("productIdentifier is required")
	case !hasVolume:
		return req, errors.New("volume is required")
	}
	return req, nil
}
