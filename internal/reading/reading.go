// v0
// internal/reading/reading.go
package reading

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"
)

// ErrBadTimestamp marks a reading whose timestamp cannot be parsed. Such a
// reading is discarded; the batch it arrived in keeps going.
var ErrBadTimestamp = errors.New("invalid timestamp")

// Wire is the JSON shape of one sensor reading as producers send it. Fields
// are `any` because producers disagree on types: timestamps arrive as RFC3339
// strings, bare dates, or epoch numbers, and numeric fields occasionally come
// quoted. `pm01` is an accepted alias for `pm1`.
type Wire struct {
	Timestamp any `json:"timestamp"`
	DeviceID  any `json:"device_id,omitempty"`
	PM25      any `json:"pm25,omitempty"`
	CO2       any `json:"co2,omitempty"`
	VOC       any `json:"voc,omitempty"`
	PM1       any `json:"pm1,omitempty"`
	PM01      any `json:"pm01,omitempty"`
	PM4       any `json:"pm4,omitempty"`
	PM10      any `json:"pm10,omitempty"`
	TempC     any `json:"temp_c,omitempty"`
	RH        any `json:"rh,omitempty"`
}

// Sample is one validated reading. Optional measurements are pointers so the
// estimators can tell "absent" from zero.
type Sample struct {
	Timestamp time.Time `json:"timestamp"`
	DeviceID  string    `json:"device_id"`
	PM25      *float64  `json:"pm25,omitempty"`
	CO2       *float64  `json:"co2,omitempty"`
	VOC       *float64  `json:"voc,omitempty"`
	PM1       *float64  `json:"pm1,omitempty"`
	PM4       *float64  `json:"pm4,omitempty"`
	PM10      *float64  `json:"pm10,omitempty"`
	TempC     *float64  `json:"temp_c,omitempty"`
	RH        *float64  `json:"rh,omitempty"`
}

// ToSample validates the wire reading. Only an unparsable timestamp fails
// validation; unparsable measurement values degrade to absent, and a missing
// device id falls back to "unknown".
func (w Wire) ToSample() (Sample, error) {
	var s Sample
	ts, err := toTime(w.Timestamp)
	if err != nil {
		return s, fmt.Errorf("%w: %v", ErrBadTimestamp, err)
	}
	s.Timestamp = ts
	s.DeviceID = deviceID(w.DeviceID)
	s.PM25 = optFloat(w.PM25)
	s.CO2 = optFloat(w.CO2)
	s.VOC = optFloat(w.VOC)
	s.PM1 = optFloat(w.PM1)
	if s.PM1 == nil {
		s.PM1 = optFloat(w.PM01)
	}
	s.PM4 = optFloat(w.PM4)
	s.PM10 = optFloat(w.PM10)
	s.TempC = optFloat(w.TempC)
	s.RH = optFloat(w.RH)
	return s, nil
}

// ToSamples validates a batch, returning the valid samples alongside one
// message per discarded reading.
func ToSamples(wires []Wire) ([]Sample, []string) {
	samples := make([]Sample, 0, len(wires))
	var discarded []string
	for i, w := range wires {
		s, err := w.ToSample()
		if err != nil {
			discarded = append(discarded, fmt.Sprintf("reading %d: %v", i, err))
			continue
		}
		samples = append(samples, s)
	}
	return samples, discarded
}

// SortByTime orders samples chronologically in place. The sort is stable so
// same-instant readings keep their submission order.
func SortByTime(samples []Sample) {
	sort.SliceStable(samples, func(i, j int) bool {
		return samples[i].Timestamp.Before(samples[j].Timestamp)
	})
}

func deviceID(v any) string {
	switch t := v.(type) {
	case string:
		if id := strings.TrimSpace(t); id != "" {
			return id
		}
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	}
	return "unknown"
}

// optFloat converts v to a float pointer; nil and unparsable values both map
// to absent rather than failing the reading.
func optFloat(v any) *float64 {
	switch t := v.(type) {
	case float64:
		return &t
	case int:
		f := float64(t)
		return &f
	case int64:
		f := float64(t)
		return &f
	case string:
		if f, err := strconv.ParseFloat(strings.TrimSpace(t), 64); err == nil {
			return &f
		}
	}
	return nil
}

// toTime parses the timestamp forms seen in the field: RFC3339 with or
// without sub-second precision, ISO-8601 without a zone offset, a
// space-separated local form, and epoch numbers (treated as milliseconds
// above 1e12, seconds otherwise).
func toTime(v any) (time.Time, error) {
	switch t := v.(type) {
	case string:
		text := strings.TrimSpace(t)
		if ts, err := time.Parse(time.RFC3339Nano, text); err == nil {
			return ts, nil
		}
		if ts, err := time.Parse(time.RFC3339, text); err == nil {
			return ts, nil
		}
		// time.Parse tolerates fractional seconds on these layouts even
		// though they carry none
		if ts, err := time.Parse("2006-01-02T15:04:05", text); err == nil {
			return ts, nil
		}
		if ts, err := time.Parse("2006-01-02 15:04:05", text); err == nil {
			return ts, nil
		}
		if n, err := strconv.ParseInt(text, 10, 64); err == nil {
			return epochTime(n), nil
		}
		if f, err := strconv.ParseFloat(text, 64); err == nil {
			return epochTime(int64(f)), nil
		}
		return time.Time{}, fmt.Errorf("bad timestamp string: %q", t)
	case float64:
		return epochTime(int64(t)), nil
	case int:
		return epochTime(int64(t)), nil
	case int64:
		return epochTime(t), nil
	case time.Time:
		return t, nil
	case nil:
		return time.Time{}, errors.New("timestamp missing")
	default:
		return time.Time{}, fmt.Errorf("cannot parse time from %T", v)
	}
}

func epochTime(n int64) time.Time {
	if n > 1_000_000_000_000 { // likely ms
		return time.Unix(0, n*int64(time.Millisecond))
	}
	return time.Unix(n, 0)
}
