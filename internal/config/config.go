// v0
// internal/config/config.go
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/Mohammed19J/Robomo-2.0/internal/devstate"
	"github.com/Mohammed19J/Robomo-2.0/internal/iaq"
	"github.com/Mohammed19J/Robomo-2.0/internal/smoke"
)

// AppConfig is the full runtime configuration. Everything comes from
// environment variables so operators can tune the formulas without touching
// code; unset or unparsable values fall back to the defaults.
type AppConfig struct {
	HTTPBind          string
	LogDir            string
	LogFormat         string
	KafkaBrokers      []string
	KafkaTopic        string
	KafkaGroupID      string
	KafkaResultsTopic string
	MQTTBroker        string
	MQTTTopic         string
	HistoryCap        int

	IAQ      iaq.Params
	Smoke    smoke.Thresholds
	Defaults devstate.Defaults
}

func Load() (*AppConfig, error) {
	c := &AppConfig{
		HTTPBind:          getenv("HTTP_BIND", ":8090"),
		LogDir:            getenv("LOG_DIR", "./logs"),
		LogFormat:         getenv("LOG_FORMAT", "text"),
		KafkaBrokers:      split(getenv("KAFKA_BROKERS", ""), ","),
		KafkaTopic:        getenv("KAFKA_TOPIC", "sensors.readings"),
		KafkaGroupID:      getenv("KAFKA_GROUP_ID", "baseline"),
		KafkaResultsTopic: getenv("KAFKA_RESULTS_TOPIC", ""),
		MQTTBroker:        getenv("MQTT_BROKER", ""),
		MQTTTopic:         getenv("MQTT_TOPIC", "sensors/+/readings"),
		HistoryCap:        geti("BASELINE_HISTORY_CAP", 288),
	}

	c.IAQ = loadIAQ()
	c.Smoke = smoke.Thresholds{
		Trigger:     envFloat("BASELINE_SMOKE_TRIGGER", 35.0),
		MinRise:     envFloat("BASELINE_SMOKE_MIN_RISE", 10.0),
		ClearDelta:  envFloat("BASELINE_SMOKE_CLEAR_DELTA", 5.0),
		Consecutive: geti("BASELINE_SMOKE_CLEAR_CONSECUTIVE", 2),
	}
	c.Defaults = devstate.Defaults{
		VolumeM3: envFloat("BASELINE_DEFAULT_VOLUME_M3", 250.0),
		ACH:      envFloat("BASELINE_DEFAULT_ACH", 1.0),
		CoutPPM:  envFloat("BASELINE_DEFAULT_COUT_PPM", 420.0),
		GPerson:  envFloat("BASELINE_DEFAULT_G_PERSON", 4.0e-6),
	}

	if err := c.validate(); err != nil {
		return nil, err
	}
	return c, nil
}

func loadIAQ() iaq.Params {
	p := iaq.DefaultParams()
	p.Weights = iaq.Weights{
		CO2:     envFloat("BASELINE_IAQ_WEIGHT_CO2", p.Weights.CO2),
		PM25:    envFloat("BASELINE_IAQ_WEIGHT_PM25", p.Weights.PM25),
		VOC:     envFloat("BASELINE_IAQ_WEIGHT_VOC", p.Weights.VOC),
		Comfort: envFloat("BASELINE_IAQ_WEIGHT_COMFORT", p.Weights.Comfort),
	}
	if vals := envFloats("BASELINE_VOC_BREAKPOINTS"); len(vals) == 3 {
		copy(p.VOCBreakpoints[:], vals)
	}
	p.VOCRiskCap = envFloat("BASELINE_VOC_RISK_CAP", p.VOCRiskCap)
	if rows := envBreakpointTable("BASELINE_PM25_BREAKPOINTS"); len(rows) > 0 {
		p.PM25Table = rows
	}
	if vals := envFloats("BASELINE_COMFORT_TEMP_RANGE"); len(vals) == 2 {
		p.TempRange = iaq.Range{Low: vals[0], High: vals[1]}
	}
	if vals := envFloats("BASELINE_COMFORT_RH_RANGE"); len(vals) == 2 {
		p.RHRange = iaq.Range{Low: vals[0], High: vals[1]}
	}
	return p
}

func (c *AppConfig) validate() error {
	if c.HistoryCap < 1 {
		return fmt.Errorf("BASELINE_HISTORY_CAP must be positive, got %d", c.HistoryCap)
	}
	if c.Smoke.Trigger <= 0 {
		return fmt.Errorf("BASELINE_SMOKE_TRIGGER must be positive, got %v", c.Smoke.Trigger)
	}
	if c.Smoke.Consecutive < 1 {
		return fmt.Errorf("BASELINE_SMOKE_CLEAR_CONSECUTIVE must be positive, got %d", c.Smoke.Consecutive)
	}
	if c.Defaults.VolumeM3 <= 0 {
		return fmt.Errorf("BASELINE_DEFAULT_VOLUME_M3 must be positive, got %v", c.Defaults.VolumeM3)
	}
	if c.Defaults.CoutPPM < 0 {
		return fmt.Errorf("BASELINE_DEFAULT_COUT_PPM must not be negative, got %v", c.Defaults.CoutPPM)
	}
	return nil
}

func getenv(k, d string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return d
}

func geti(k string, d int) int {
	if v := os.Getenv(k); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return d
}

func envFloat(k string, d float64) float64 {
	if v := os.Getenv(k); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return d
}

// envFloats parses a list such as "220,660,2200"; semicolons are tolerated
// as separators too. Unparsable tokens are skipped.
func envFloats(k string) []float64 {
	raw := strings.ReplaceAll(os.Getenv(k), ";", ",")
	var out []float64
	for _, p := range split(raw, ",") {
		if f, err := strconv.ParseFloat(p, 64); err == nil {
			out = append(out, f)
		}
	}
	return out
}

// envBreakpointTable parses rows such as "0,12,0,50;12.1,35.4,51,100" into
// AQI breakpoints. Pipes are tolerated as row separators; rows without
// exactly four numbers are skipped.
func envBreakpointTable(k string) []iaq.Breakpoint {
	raw := strings.ReplaceAll(os.Getenv(k), "|", ";")
	var rows []iaq.Breakpoint
	for _, chunk := range split(raw, ";") {
		parts := split(chunk, ",")
		if len(parts) != 4 {
			continue
		}
		vals := make([]float64, 0, 4)
		for _, p := range parts {
			f, err := strconv.ParseFloat(p, 64)
			if err != nil {
				break
			}
			vals = append(vals, f)
		}
		if len(vals) != 4 {
			continue
		}
		rows = append(rows, iaq.Breakpoint{CLo: vals[0], CHi: vals[1], ILo: vals[2], IHi: vals[3]})
	}
	return rows
}

func split(s, sep string) []string {
	if s == "" {
		return nil
	}
	p := strings.Split(s, sep)
	out := make([]string, 0, len(p))
	for _, x := range p {
		x = strings.TrimSpace(x)
		if x != "" {
			out = append(out, x)
		}
	}
	return out
}
