// v0
// internal/config/config_test.go
package config

import (
	"testing"
)

func clearBaselineEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		"HTTP_BIND", "LOG_DIR", "LOG_FORMAT",
		"KAFKA_BROKERS", "KAFKA_TOPIC", "KAFKA_GROUP_ID", "KAFKA_RESULTS_TOPIC",
		"MQTT_BROKER", "MQTT_TOPIC",
		"BASELINE_HISTORY_CAP",
		"BASELINE_IAQ_WEIGHT_CO2", "BASELINE_IAQ_WEIGHT_PM25", "BASELINE_IAQ_WEIGHT_VOC", "BASELINE_IAQ_WEIGHT_COMFORT",
		"BASELINE_VOC_BREAKPOINTS", "BASELINE_VOC_RISK_CAP", "BASELINE_PM25_BREAKPOINTS",
		"BASELINE_COMFORT_TEMP_RANGE", "BASELINE_COMFORT_RH_RANGE",
		"BASELINE_SMOKE_TRIGGER", "BASELINE_SMOKE_MIN_RISE", "BASELINE_SMOKE_CLEAR_DELTA", "BASELINE_SMOKE_CLEAR_CONSECUTIVE",
		"BASELINE_DEFAULT_VOLUME_M3", "BASELINE_DEFAULT_ACH", "BASELINE_DEFAULT_COUT_PPM", "BASELINE_DEFAULT_G_PERSON",
	} {
		t.Setenv(k, "")
	}
}

func TestLoadDefaults(t *testing.T) {
	clearBaselineEnv(t)

	c, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if c.HTTPBind != ":8090" || c.LogDir != "./logs" || c.LogFormat != "text" {
		t.Fatalf("serving defaults: %+v", c)
	}
	if len(c.KafkaBrokers) != 0 || c.MQTTBroker != "" {
		t.Fatalf("ingest should be disabled by default: %+v", c)
	}
	if c.KafkaTopic != "sensors.readings" || c.KafkaGroupID != "baseline" || c.MQTTTopic != "sensors/+/readings" {
		t.Fatalf("topic defaults: %+v", c)
	}
	if c.HistoryCap != 288 {
		t.Fatalf("history cap: %d", c.HistoryCap)
	}
	if c.IAQ.Weights.PM25 != 0.4 || c.IAQ.VOCRiskCap != 65.0 || len(c.IAQ.PM25Table) != 6 {
		t.Fatalf("iaq defaults: %+v", c.IAQ)
	}
	if c.Smoke.Trigger != 35.0 || c.Smoke.Consecutive != 2 {
		t.Fatalf("smoke defaults: %+v", c.Smoke)
	}
	if c.Defaults.VolumeM3 != 250.0 || c.Defaults.ACH != 1.0 || c.Defaults.CoutPPM != 420.0 || c.Defaults.GPerson != 4.0e-6 {
		t.Fatalf("room defaults: %+v", c.Defaults)
	}
}

func TestLoadOverrides(t *testing.T) {
	clearBaselineEnv(t)
	t.Setenv("HTTP_BIND", ":9999")
	t.Setenv("KAFKA_BROKERS", "k1:9092, k2:9092")
	t.Setenv("BASELINE_HISTORY_CAP", "64")
	t.Setenv("BASELINE_IAQ_WEIGHT_CO2", "0.3")
	t.Setenv("BASELINE_VOC_BREAKPOINTS", "200;600;2000")
	t.Setenv("BASELINE_PM25_BREAKPOINTS", "0,10,0,40|10.1,30,41,90")
	t.Setenv("BASELINE_COMFORT_TEMP_RANGE", "18,26")
	t.Setenv("BASELINE_SMOKE_TRIGGER", "40")
	t.Setenv("BASELINE_SMOKE_CLEAR_CONSECUTIVE", "3")
	t.Setenv("BASELINE_DEFAULT_ACH", "2.5")

	c, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if c.HTTPBind != ":9999" {
		t.Fatalf("bind: %q", c.HTTPBind)
	}
	if len(c.KafkaBrokers) != 2 || c.KafkaBrokers[0] != "k1:9092" || c.KafkaBrokers[1] != "k2:9092" {
		t.Fatalf("brokers: %v", c.KafkaBrokers)
	}
	if c.HistoryCap != 64 {
		t.Fatalf("history cap: %d", c.HistoryCap)
	}
	if c.IAQ.Weights.CO2 != 0.3 || c.IAQ.Weights.PM25 != 0.4 {
		t.Fatalf("weights: %+v", c.IAQ.Weights)
	}
	if c.IAQ.VOCBreakpoints != [3]float64{200, 600, 2000} {
		t.Fatalf("voc breakpoints: %v", c.IAQ.VOCBreakpoints)
	}
	if len(c.IAQ.PM25Table) != 2 || c.IAQ.PM25Table[1].IHi != 90.0 {
		t.Fatalf("pm25 table: %+v", c.IAQ.PM25Table)
	}
	if c.IAQ.TempRange.Low != 18.0 || c.IAQ.TempRange.High != 26.0 {
		t.Fatalf("temp range: %+v", c.IAQ.TempRange)
	}
	if c.Smoke.Trigger != 40.0 || c.Smoke.Consecutive != 3 {
		t.Fatalf("smoke: %+v", c.Smoke)
	}
	if c.Defaults.ACH != 2.5 {
		t.Fatalf("ach default: %v", c.Defaults.ACH)
	}
}

func TestLoadMalformedTunablesFallBack(t *testing.T) {
	clearBaselineEnv(t)
	t.Setenv("BASELINE_PM25_BREAKPOINTS", "1,2,3")
	t.Setenv("BASELINE_VOC_BREAKPOINTS", "100,200")
	t.Setenv("BASELINE_COMFORT_RH_RANGE", "nope")
	t.Setenv("BASELINE_SMOKE_TRIGGER", "hot")
	t.Setenv("BASELINE_HISTORY_CAP", "many")

	c, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(c.IAQ.PM25Table) != 6 {
		t.Fatalf("short row should be skipped: %+v", c.IAQ.PM25Table)
	}
	if c.IAQ.VOCBreakpoints != [3]float64{220, 660, 2200} {
		t.Fatalf("two-value list must not replace three breakpoints: %v", c.IAQ.VOCBreakpoints)
	}
	if c.IAQ.RHRange.Low != 30.0 || c.IAQ.RHRange.High != 60.0 {
		t.Fatalf("rh range: %+v", c.IAQ.RHRange)
	}
	if c.Smoke.Trigger != 35.0 {
		t.Fatalf("trigger: %v", c.Smoke.Trigger)
	}
	if c.HistoryCap != 288 {
		t.Fatalf("history cap: %d", c.HistoryCap)
	}
}

func TestLoadMixedBreakpointRows(t *testing.T) {
	clearBaselineEnv(t)
	t.Setenv("BASELINE_PM25_BREAKPOINTS", "0,12,0,50;bad,row,here,x;12.1,35.4,51,100")

	c, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(c.IAQ.PM25Table) != 2 {
		t.Fatalf("table: %+v", c.IAQ.PM25Table)
	}
	if c.IAQ.PM25Table[0].IHi != 50.0 || c.IAQ.PM25Table[1].CLo != 12.1 {
		t.Fatalf("table: %+v", c.IAQ.PM25Table)
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	cases := []struct {
		key   string
		value string
	}{
		{"BASELINE_HISTORY_CAP", "0"},
		{"BASELINE_SMOKE_CLEAR_CONSECUTIVE", "0"},
		{"BASELINE_SMOKE_TRIGGER", "-1"},
		{"BASELINE_DEFAULT_VOLUME_M3", "-5"},
		{"BASELINE_DEFAULT_COUT_PPM", "-400"},
	}
	for _, tc := range cases {
		t.Run(tc.key, func(t *testing.T) {
			clearBaselineEnv(t)
			t.Setenv(tc.key, tc.value)
			if _, err := Load(); err == nil {
				t.Fatalf("%s=%s should fail validation", tc.key, tc.value)
			}
		})
	}
}
