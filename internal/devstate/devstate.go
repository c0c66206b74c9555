// v0
// internal/devstate/devstate.go
package devstate

import (
	"time"

	"github.com/Mohammed19J/Robomo-2.0/internal/smoke"
)

// Defaults seeds the physical context of devices never seen before.
type Defaults struct {
	VolumeM3 float64
	ACH      float64
	CoutPPM  float64
	GPerson  float64
}

// StandardDefaults is the stock room context: a 250 m³ space at one air
// change per hour against a 420 ppm outdoor CO₂ baseline, with a per-person
// CO₂ generation rate of 4.0e-6 m³/s.
func StandardDefaults() Defaults {
	return Defaults{VolumeM3: 250.0, ACH: 1.0, CoutPPM: 420.0, GPerson: 4.0e-6}
}

// DeviceState is the cached physical context for one device. ACH stays nil
// until a caller provides one or a decay estimate lands.
type DeviceState struct {
	DeviceID        string
	VolumeM3        float64
	ACH             *float64
	CoutPPM         float64
	ACHSource       string
	LastNowcastPM25 *float64
	GPerson         float64
	LastUpdated     *time.Time
	Smoke           smoke.State
}

// Patch carries post-computation context updates. Nil fields keep the
// current value.
type Patch struct {
	Timestamp   *time.Time
	VolumeM3    *float64
	ACH         *float64
	ACHSource   *string
	CoutPPM     *float64
	NowcastPM25 *float64
	GPerson     *float64
	Smoke       *smoke.State
}

// Apply folds the patch into the state. Pointer fields on the state are
// replaced wholesale, never written through, so snapshots stay race-free.
func (p Patch) Apply(s *DeviceState) {
	if p.VolumeM3 != nil {
		s.VolumeM3 = *p.VolumeM3
	}
	if p.CoutPPM != nil {
		s.CoutPPM = *p.CoutPPM
	}
	if p.ACH != nil {
		v := *p.ACH
		s.ACH = &v
	}
	if p.ACHSource != nil {
		s.ACHSource = *p.ACHSource
	}
	if p.NowcastPM25 != nil {
		v := *p.NowcastPM25
		s.LastNowcastPM25 = &v
	}
	if p.Timestamp != nil {
		t := *p.Timestamp
		s.LastUpdated = &t
	}
	if p.GPerson != nil {
		s.GPerson = *p.GPerson
	}
	if p.Smoke != nil {
		s.Smoke = *p.Smoke
	}
}
