// Package events publishes rebate calculation events to Kafka.
package events

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/go-faster/sdk/zctx"
	"github.com/segmentio/kafka-go"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/xenking/rebate-engine/internal/domain/rebate"
	"github.com/xenking/rebate-engine/internal/money"
)

// TypeCalculated is the event type header value of calculation events.
const TypeCalculated = "rebate.calculated"

// Writer is the subset of *kafka.Writer used by Publisher.
type Writer interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Config configures NewWriter.
type Config struct {
	Brokers      []string
	Topic        string
	WriteTimeout time.Duration
}

// NewWriter returns a synchronous kafka.Writer that hashes message keys, so
// events of one rebate land on one partition.
func NewWriter(cfg Config) (*kafka.Writer, error) {
	if len(cfg.Brokers) == 0 {
		return nil, errors.New("kafka: at least one broker required")
	}
	if cfg.Topic == "" {
		return nil, errors.New("kafka: topic required")
	}
	if cfg.WriteTimeout == 0 {
		cfg.WriteTimeout = 10 * time.Second
	}
	return &kafka.Writer{
		Addr:                   kafka.TCP(cfg.Brokers...),
		Topic:                  cfg.Topic,
		Balancer:               &kafka.Hash{},
		BatchTimeout:           10 * time.Millisecond,
		WriteTimeout:           cfg.WriteTimeout,
		RequiredAcks:           kafka.RequireOne,
		AllowAutoTopicCreation: true,
	}, nil
}

var _ rebate.Store = (*Publisher)(nil)

// Publisher decorates a rebate.Store and emits an event after every stored
// calculation.
//
// The calculation is already persisted when publishing runs, so publish
// failures are logged and never returned.
type Publisher struct {
	rebate.Store

	writer      Writer
	maxAttempts int
	backoff     time.Duration
	now         func() time.Time
}

// NewPublisher wraps next, writing events through w.
func NewPublisher(next rebate.Store, w Writer) *Publisher {
	return &Publisher{
		Store:       next,
		writer:      w,
		maxAttempts: 3,
		backoff:     100 * time.Millisecond,
		now:         time.Now,
	}
}

// StoreCalculationResult stores the result in the wrapped store and then
// publishes a calculation event.
func (p *Publisher) StoreCalculationResult(ctx context.Context, r *rebate.Rebate, amount decimal.Decimal) error {
	if err := p.Store.StoreCalculationResult(ctx, r, amount); err != nil {
		return err
	}

	msg := kafka.Message{
		Key:   []byte(r.ID),
		Value: encodeCalculated(r, amount, p.now().UTC()),
		Headers: []kafka.Header{
			{Key: "type", Value: []byte(TypeCalculated)},
		},
	}
	if err := p.publish(ctx, msg); err != nil {
		zctx.From(ctx).Warn("Publish calculation event",
			zap.String("rebate_id", r.ID),
			zap.Error(err),
		)
	}
	return nil
}

func (p *Publisher) publish(ctx context.Context, msg kafka.Message) error {
	var lastErr error
	backoff := p.backoff
	for attempt := 1; attempt <= p.maxAttempts; attempt++ {
		err := p.writer.WriteMessages(ctx, msg)
		if err == nil {
			return nil
		}
		lastErr = err
		if attempt == p.maxAttempts {
			break
		}

		select {
		case <-ctx.Done():
			return errors.Wrap(ctx.Err(), "publish")
		case <-time.After(backoff):
		}
		backoff *= 2
	}
	return errors.Wrapf(lastErr, "publish after %d attempts", p.maxAttempts)
}

// Close closes the underlying writer.
func (p *Publisher) Close() error {
	return p.writer.Close()
}

func encodeCalculated(r *rebate.Rebate, amount decimal.Decimal, at time.Time) []byte {
	e := jx.GetEncoder()
	defer jx.PutEncoder(e)

	e.ObjStart()
	e.FieldStart("type")
	e.Str(TypeCalculated)
	e.FieldStart("rebateIdentifier")
	e.Str(r.ID)
	e.FieldStart("incentive")
	e.Str(r.Incentive.String())
	e.FieldStart("amount")
	money.EncodeJSON(e, amount)
	e.FieldStart("calculatedAt")
	e.Str(at.Format(time.RFC3339Nano))
	e.ObjEnd()

	// The encoder buffer is reused after PutEncoder.
	out := make([]byte, len(e.Bytes()))
	copy(out, e.Bytes())
	return out
}
