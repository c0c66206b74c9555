// v0
// internal/ingest/kafka_test.go
package ingest

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/segmentio/kafka-go"

	"github.com/Mohammed19J/Robomo-2.0/internal/devstate"
	"github.com/Mohammed19J/Robomo-2.0/internal/engine"
	"github.com/Mohammed19J/Robomo-2.0/internal/iaq"
	"github.com/Mohammed19J/Robomo-2.0/internal/smoke"
)

func newTestEngine(t *testing.T) *engine.Engine {
	t.Helper()
	lg := slog.New(slog.NewTextHandler(io.Discard, nil))
	store := devstate.NewStore(devstate.StandardDefaults(), 288)
	return engine.New(lg, store, engine.Settings{
		IAQ:      iaq.DefaultParams(),
		Smoke:    smoke.DefaultThresholds(),
		Defaults: devstate.StandardDefaults(),
	}, nil)
}

type capturePublisher struct {
	mu   sync.Mutex
	msgs []kafka.Message
}

func (p *capturePublisher) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.msgs = append(p.msgs, msgs...)
	return nil
}

func TestNewKafkaConsumerValidation(t *testing.T) {
	lg := slog.New(slog.NewTextHandler(io.Discard, nil))
	eng := newTestEngine(t)

	cases := []struct {
		name string
		cfg  KafkaConfig
	}{
		{"no brokers", KafkaConfig{Topic: "t", GroupID: "g"}},
		{"no topic", KafkaConfig{Brokers: []string{"k:9092"}, GroupID: "g"}},
		{"no group", KafkaConfig{Brokers: []string{"k:9092"}, Topic: "t"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := NewKafkaConsumer(tc.cfg, eng, lg, nil); err == nil {
				t.Fatalf("expected config error")
			}
		})
	}

	if _, err := NewKafkaConsumer(KafkaConfig{Brokers: []string{"k:9092"}, Topic: "t", GroupID: "g"}, nil, lg, nil); err == nil {
		t.Fatalf("expected error for nil engine")
	}
}

func TestHandleMessageFeedsEngine(t *testing.T) {
	eng := newTestEngine(t)
	c := &KafkaConsumer{eng: eng, lg: slog.New(slog.NewTextHandler(io.Discard, nil))}

	raw := []byte(`{"device_id":"room-12","timestamp":"2024-05-01T10:00:00Z","co2":880,"pm25":9}`)
	c.handleMessage(context.Background(), raw)

	res, ok := eng.Last("room-12")
	if !ok {
		t.Fatalf("expected cached result for room-12")
	}
	if res.IAQ.IAQScore <= 0 {
		t.Fatalf("expected a scored assessment, got %v", res.IAQ.IAQScore)
	}
}

func TestHandleMessageDropsBadPayload(t *testing.T) {
	eng := newTestEngine(t)
	c := &KafkaConsumer{eng: eng, lg: slog.New(slog.NewTextHandler(io.Discard, nil))}

	c.handleMessage(context.Background(), []byte(`{not json`))

	if devices := eng.Devices(); len(devices) != 0 {
		t.Fatalf("expected no devices after bad payload, got %d", len(devices))
	}
}

func TestHandleMessageRejectsBadTimestamp(t *testing.T) {
	eng := newTestEngine(t)
	c := &KafkaConsumer{eng: eng, lg: slog.New(slog.NewTextHandler(io.Discard, nil))}

	c.handleMessage(context.Background(), []byte(`{"device_id":"room-12","timestamp":"noonish","co2":880}`))

	if _, ok := eng.Last("room-12"); ok {
		t.Fatalf("reading with a bad timestamp must not produce a result")
	}
}

func TestHandleMessagePublishesResult(t *testing.T) {
	eng := newTestEngine(t)
	pub := &capturePublisher{}
	c := &KafkaConsumer{
		eng:       eng,
		lg:        slog.New(slog.NewTextHandler(io.Discard, nil)),
		publisher: pub,
	}

	raw := []byte(`{"device_id":"room-12","timestamp":"2024-05-01T10:00:00Z","co2":880}`)
	c.handleMessage(context.Background(), raw)

	if len(pub.msgs) != 1 {
		t.Fatalf("expected one published result, got %d", len(pub.msgs))
	}
	if string(pub.msgs[0].Key) != "room-12" {
		t.Fatalf("expected device key, got %q", pub.msgs[0].Key)
	}
	var res engine.Result
	if err := json.Unmarshal(pub.msgs[0].Value, &res); err != nil {
		t.Fatalf("published payload must round-trip: %v", err)
	}
	if res.DeviceID != "room-12" {
		t.Fatalf("unexpected device in published result: %q", res.DeviceID)
	}
}
