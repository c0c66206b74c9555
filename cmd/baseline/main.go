// v0
// cmd/baseline/main.go
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Mohammed19J/Robomo-2.0/internal/api"
	"github.com/Mohammed19J/Robomo-2.0/internal/config"
	"github.com/Mohammed19J/Robomo-2.0/internal/devstate"
	"github.com/Mohammed19J/Robomo-2.0/internal/engine"
	"github.com/Mohammed19J/Robomo-2.0/internal/ingest"
	"github.com/Mohammed19J/Robomo-2.0/internal/logging"
	"github.com/Mohammed19J/Robomo-2.0/internal/observability"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("config load failed", "err", err)
		os.Exit(1)
	}

	dual := logging.New(cfg.LogDir, cfg.LogFormat)
	defer dual.Close()
	lg := dual.Logger

	lg.Info("baseline engine starting", "bind", cfg.HTTPBind, "history_cap", cfg.HistoryCap)

	store := devstate.NewStore(cfg.Defaults, cfg.HistoryCap)
	metrics := observability.NewMetrics()
	eng := engine.New(lg, store, engine.Settings{
		IAQ:      cfg.IAQ,
		Smoke:    cfg.Smoke,
		Defaults: cfg.Defaults,
	}, metrics)

	h := api.NewHandlers(lg, eng, metrics)
	srv := api.NewServer(cfg.HTTPBind, lg, h, metrics)
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			lg.Error("http server", "err", err)
		}
	}()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var kafkaConsumer *ingest.KafkaConsumer
	if len(cfg.KafkaBrokers) > 0 {
		kc, err := ingest.NewKafkaConsumer(ingest.KafkaConfig{
			Brokers:      cfg.KafkaBrokers,
			Topic:        cfg.KafkaTopic,
			GroupID:      cfg.KafkaGroupID,
			ResultsTopic: cfg.KafkaResultsTopic,
		}, eng, lg, metrics)
		if err != nil {
			lg.Error("kafka consumer init failed", "err", err)
			os.Exit(1)
		}
		kafkaConsumer = kc
		go func() {
			if err := kc.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				lg.Error("kafka consumer", "err", err)
			}
		}()
	}

	var mqttConsumer *ingest.MQTTConsumer
	if cfg.MQTTBroker != "" {
		mc, err := ingest.NewMQTTConsumer(ingest.MQTTConfig{
			Broker: cfg.MQTTBroker,
			Topic:  cfg.MQTTTopic,
		}, eng, lg, metrics)
		if err != nil {
			lg.Error("mqtt consumer init failed", "err", err)
			os.Exit(1)
		}
		if err := mc.Start(); err != nil {
			lg.Error("mqtt connect failed", "err", err)
		} else {
			mqttConsumer = mc
		}
	}

	sigCh := make(chan os.Signal, 2)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	cancel()
	if mqttConsumer != nil {
		mqttConsumer.Stop()
	}
	if kafkaConsumer != nil {
		if err := kafkaConsumer.Close(); err != nil {
			lg.Error("kafka close", "err", err)
		}
	}
	sh, done := context.WithTimeout(context.Background(), 5*time.Second)
	defer done()
	_ = srv.Stop(sh)
	lg.Info("baseline engine stopped")
}
