// v0
// internal/ingest/kafka.go
package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/Mohammed19J/Robomo-2.0/internal/breaker"
	"github.com/Mohammed19J/Robomo-2.0/internal/engine"
	"github.com/Mohammed19J/Robomo-2.0/internal/observability"
	"github.com/Mohammed19J/Robomo-2.0/internal/reading"
)

// KafkaConfig captures the tunables for the readings consumer. ResultsTopic
// is optional; when set, every result is published back to the bus.
type KafkaConfig struct {
	Brokers      []string
	Topic        string
	GroupID      string
	ResultsTopic string
	PollTimeout  time.Duration
}

type messageFetcher interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
}

type messagePublisher interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
}

// KafkaConsumer streams sensor readings from the bus into the engine.
type KafkaConsumer struct {
	cfg       KafkaConfig
	reader    *kafka.Reader
	fetcher   messageFetcher
	writer    *kafka.Writer
	publisher messagePublisher
	eng       *engine.Engine
	lg        *slog.Logger
	metrics   *observability.Metrics
	poll      time.Duration
}

func NewKafkaConsumer(cfg KafkaConfig, eng *engine.Engine, lg *slog.Logger, m *observability.Metrics) (*KafkaConsumer, error) {
	if lg == nil {
		return nil, errors.New("logger must not be nil")
	}
	if eng == nil {
		return nil, errors.New("engine must not be nil")
	}
	if len(cfg.Brokers) == 0 {
		return nil, errors.New("at least one broker is required")
	}
	if strings.TrimSpace(cfg.Topic) == "" {
		return nil, errors.New("readings topic must not be empty")
	}
	if strings.TrimSpace(cfg.GroupID) == "" {
		return nil, errors.New("consumer group must not be empty")
	}

	poll := cfg.PollTimeout
	if poll <= 0 {
		poll = 5 * time.Second
	}

	// LastOffset: stale telemetry is not worth replaying on a first start.
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:     cfg.Brokers,
		GroupID:     cfg.GroupID,
		Topic:       cfg.Topic,
		StartOffset: kafka.LastOffset,
		MinBytes:    1,
		MaxBytes:    10e6,
	})

	kb, err := breaker.FromEnv("baseline-readings-consumer", lg, nil)
	if err != nil {
		lg.Error("kafka breaker init failed", "err", err)
	}
	var fetcher messageFetcher = reader
	if kb != nil && kb.Enabled() {
		fetcher = breaker.NewGuardedReader(reader, kb)
		lg.Info("kafka breaker enabled", "name", "baseline-readings-consumer")
	}

	c := &KafkaConsumer{
		cfg:     cfg,
		reader:  reader,
		fetcher: fetcher,
		eng:     eng,
		lg:      lg,
		metrics: m,
		poll:    poll,
	}

	if strings.TrimSpace(cfg.ResultsTopic) != "" {
		c.writer = &kafka.Writer{
			Addr:         kafka.TCP(cfg.Brokers...),
			Topic:        cfg.ResultsTopic,
			Balancer:     &kafka.Hash{}, // partition by device id
			RequiredAcks: kafka.RequireOne,
		}
		c.publisher = breaker.NewGuardedWriter(c.writer, kb)
	}

	return c, nil
}

func (c *KafkaConsumer) Close() error {
	if c == nil {
		return nil
	}
	var errs []error
	if c.reader != nil {
		errs = append(errs, c.reader.Close())
	}
	if c.writer != nil {
		errs = append(errs, c.writer.Close())
	}
	return errors.Join(errs...)
}

// Run blocks until the context is cancelled or the reader is closed.
func (c *KafkaConsumer) Run(ctx context.Context) error {
	c.lg.Info("kafka consumer started",
		"topic", c.cfg.Topic,
		"group", c.cfg.GroupID,
		"brokers", strings.Join(c.cfg.Brokers, ","),
		"results_topic", c.cfg.ResultsTopic,
	)
	defer c.lg.Info("kafka consumer stopped")

	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		fetchCtx, cancel := context.WithTimeout(ctx, c.poll)
		msg, err := c.fetcher.FetchMessage(fetchCtx)
		cancel()
		if err != nil {
			if errors.Is(err, context.DeadlineExceeded) {
				continue
			}
			if errors.Is(err, context.Canceled) {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				continue
			}
			if errors.Is(err, io.ErrClosedPipe) || errors.Is(err, kafka.ErrGroupClosed) {
				return nil
			}
			c.lg.Error("kafka fetch failed", "err", err)
			continue
		}

		c.handleMessage(ctx, msg.Value)

		commitCtx, commitCancel := context.WithTimeout(ctx, c.poll)
		if err := c.reader.CommitMessages(commitCtx, msg); err != nil {
			if !(errors.Is(err, context.Canceled) && ctx.Err() != nil) {
				c.lg.Error("kafka commit failed", "err", err)
			}
		}
		commitCancel()
	}
}

// handleMessage decodes one reading and feeds it through the streaming path.
func (c *KafkaConsumer) handleMessage(ctx context.Context, raw []byte) {
	var wire reading.Wire
	if err := json.Unmarshal(raw, &wire); err != nil {
		c.metrics.ReadingDiscarded("bad_json")
		c.lg.Warn("undecodable reading dropped", "err", err)
		return
	}

	res, err := c.eng.Submit(wire, engine.Overrides{})
	if err != nil {
		c.lg.Warn("reading rejected", "err", err)
		return
	}
	c.metrics.ReadingIngested("kafka")

	c.publishResult(ctx, res)
}

func (c *KafkaConsumer) publishResult(ctx context.Context, res engine.Result) {
	if c.publisher == nil {
		return
	}
	buf, err := json.Marshal(res)
	if err != nil {
		c.lg.Error("result marshal failed", "device", res.DeviceID, "err", err)
		return
	}
	msg := kafka.Message{Key: []byte(res.DeviceID), Value: buf}
	if err := c.publisher.WriteMessages(ctx, msg); err != nil {
		c.lg.Error("result publish failed", "device", res.DeviceID, "err", err)
	}
}
