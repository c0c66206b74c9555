// v0
// cmd/sensorsim/main.go
//
// sensorsim publishes synthetic environmental readings to the baseline
// engine, either over MQTT or straight to the HTTP submit route. The room
// model is a well-mixed CO2 mass balance with randomly drifting occupancy,
// so the engine's decay estimator has something real to chew on.
package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"math/rand"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"
	"github.com/lmittmann/tint"
)

type simConfig struct {
	DeviceID  string
	Mode      string // "http" or "mqtt"
	HTTPURL   string
	Broker    string
	Topic     string
	Interval  time.Duration
	VolumeM3  float64
	ACH       float64
	CoutPPM   float64
	GPerson   float64
	Occupants int
}

func loadSimConfig() simConfig {
	deviceID := getenv("SIM_DEVICE_ID", "sim-room-1")
	cfg := simConfig{
		DeviceID:  deviceID,
		Mode:      getenv("SIM_MODE", "http"),
		HTTPURL:   getenv("SIM_HTTP_URL", "http://localhost:8090/baseline/submit"),
		Broker:    getenv("SIM_MQTT_BROKER", "tcp://localhost:1883"),
		Topic:     getenv("SIM_MQTT_TOPIC", "sensors/"+deviceID+"/readings"),
		Interval:  getdur("SIM_INTERVAL", 5*time.Second),
		VolumeM3:  getf("SIM_VOLUME_M3", 250),
		ACH:       getf("SIM_ACH", 1.0),
		CoutPPM:   getf("SIM_COUT_PPM", 420),
		GPerson:   getf("SIM_G_PERSON", 4.0e-6),
		Occupants: geti("SIM_OCCUPANTS", 2),
	}
	return cfg
}

// reading is the wire shape the baseline engine ingests.
type reading struct {
	DeviceID  string  `json:"device_id"`
	Timestamp string  `json:"timestamp"`
	CO2       float64 `json:"co2"`
	PM25      float64 `json:"pm25"`
	VOC       float64 `json:"voc"`
	TempC     float64 `json:"temp_c"`
	RH        float64 `json:"rh"`
}

// room integrates a well-mixed single-zone model between publishes.
type room struct {
	cfg       simConfig
	co2       float64
	pm25      float64
	voc       float64
	tempC     float64
	rh        float64
	occupants int
	smokeLeft int // publish intervals remaining in the current smoke event
	last      time.Time
}

func newRoom(cfg simConfig) *room {
	return &room{
		cfg:       cfg,
		co2:       cfg.CoutPPM + 150,
		pm25:      8,
		voc:       220,
		tempC:     22,
		rh:        45,
		occupants: cfg.Occupants,
	}
}

func (r *room) step(now time.Time) reading {
	dt := r.cfg.Interval.Seconds()
	if !r.last.IsZero() {
		dt = now.Sub(r.last).Seconds()
	}
	r.last = now

	// CO2 mass balance: generation by occupants against ventilation removal.
	q := r.cfg.ACH * r.cfg.VolumeM3 / 3600.0
	gen := r.cfg.GPerson * float64(r.occupants) * 1e6
	r.co2 += (gen/r.cfg.VolumeM3 - q*(r.co2-r.cfg.CoutPPM)/r.cfg.VolumeM3) * dt
	r.co2 += (rand.Float64() - 0.5) * 4
	if r.co2 < r.cfg.CoutPPM {
		r.co2 = r.cfg.CoutPPM
	}

	// Occupancy drifts one person at a time, bounded by twice the seed count.
	if rand.Float64() < 0.05 {
		switch {
		case r.occupants == 0:
			r.occupants++
		case rand.Float64() < 0.5:
			r.occupants--
		case r.occupants < r.cfg.Occupants*2:
			r.occupants++
		}
	}

	// Rare smoke event: a sharp PM2.5 spike that decays over a few samples.
	if r.smokeLeft == 0 && rand.Float64() < 0.002 {
		r.smokeLeft = 36
	}
	if r.smokeLeft > 0 {
		r.pm25 += (120 - r.pm25) * 0.35
		r.smokeLeft--
	} else {
		r.pm25 += (8 - r.pm25) * 0.1
		r.pm25 += (rand.Float64() - 0.5) * 1.5
		if r.pm25 < 0.5 {
			r.pm25 = 0.5
		}
	}

	r.voc += (rand.Float64() - 0.5) * 20
	if r.voc < 120 {
		r.voc = 120
	}
	if r.voc > 900 {
		r.voc = 900
	}
	r.tempC += (rand.Float64() - 0.5) * 0.2
	r.rh += (rand.Float64() - 0.5) * 0.6

	return reading{
		DeviceID:  r.cfg.DeviceID,
		Timestamp: now.UTC().Format(time.RFC3339),
		CO2:       round1(r.co2),
		PM25:      round1(r.pm25),
		VOC:       round1(r.voc),
		TempC:     round1(r.tempC),
		RH:        round1(r.rh),
	}
}

func round1(v float64) float64 {
	return float64(int(v*10+0.5)) / 10
}

type publisher interface {
	publish(rd reading) error
	close()
}

type httpPublisher struct {
	url    string
	client *http.Client
}

func (p *httpPublisher) publish(rd reading) error {
	buf, err := json.Marshal(rd)
	if err != nil {
		return err
	}
	resp, err := p.client.Post(p.url, "application/json", bytes.NewReader(buf))
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("submit returned %d", resp.StatusCode)
	}
	return nil
}

func (p *httpPublisher) close() {}

type mqttPublisher struct {
	client mqtt.Client
	topic  string
}

func newMQTTPublisher(broker, topic string) (*mqttPublisher, error) {
	opts := mqtt.NewClientOptions().
		AddBroker(broker).
		SetClientID("sensorsim-" + uuid.NewString()[:8]).
		SetAutoReconnect(true)
	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("mqtt connect: %w", token.Error())
	}
	return &mqttPublisher{client: client, topic: topic}, nil
}

func (p *mqttPublisher) publish(rd reading) error {
	buf, err := json.Marshal(rd)
	if err != nil {
		return err
	}
	token := p.client.Publish(p.topic, 0, false, buf)
	token.Wait()
	return token.Error()
}

func (p *mqttPublisher) close() {
	p.client.Disconnect(250)
}

func main() {
	lg := slog.New(tint.NewHandler(os.Stdout, nil))
	cfg := loadSimConfig()

	var pub publisher
	switch cfg.Mode {
	case "mqtt":
		mp, err := newMQTTPublisher(cfg.Broker, cfg.Topic)
		if err != nil {
			lg.Error("mqtt publisher init failed", "err", err)
			os.Exit(1)
		}
		pub = mp
		lg.Info("publishing over mqtt", "broker", cfg.Broker, "topic", cfg.Topic)
	default:
		pub = &httpPublisher{url: cfg.HTTPURL, client: &http.Client{Timeout: 10 * time.Second}}
		lg.Info("publishing over http", "url", cfg.HTTPURL)
	}
	defer pub.close()

	rm := newRoom(cfg)
	lg.Info("simulator started",
		"device", cfg.DeviceID,
		"interval", cfg.Interval.String(),
		"volume_m3", cfg.VolumeM3,
		"ach", cfg.ACH,
		"occupants", cfg.Occupants,
	)

	ticker := time.NewTicker(cfg.Interval)
	defer ticker.Stop()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	for {
		select {
		case now := <-ticker.C:
			rd := rm.step(now)
			if err := pub.publish(rd); err != nil {
				lg.Warn("publish failed", "err", err)
				continue
			}
			lg.Info("reading published",
				"co2", rd.CO2,
				"pm25", rd.PM25,
				"voc", rd.VOC,
				"occupants", rm.occupants,
			)
		case <-sigCh:
			lg.Info("simulator stopped")
			return
		}
	}
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getf(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func geti(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func getdur(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}
