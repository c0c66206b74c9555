// v0
// internal/engine/resolve.go
package engine

import (
	"github.com/Mohammed19J/Robomo-2.0/internal/devstate"
	"github.com/Mohammed19J/Robomo-2.0/internal/occupancy"
)

// Overrides are per-call parameter overrides, typically from query strings.
// They outrank request fields and cached device context.
type Overrides struct {
	VolumeM3 *float64
	ACH      *float64
	CoutPPM  *float64
	GPerson  *float64
}

// resolveOptions picks the effective physical parameters for one
// computation. Precedence per field is override, then request, then cached
// device context; a fresh device's context already carries the configured
// defaults. Presence decides, so an explicit zero is a value. The returned
// origin names the tier the ACH came from.
func resolveOptions(ov Overrides, req Request, state devstate.DeviceState, defs devstate.Defaults) (occupancy.Options, string) {
	opts := occupancy.Options{
		VolumeM3: firstFloat(ov.VolumeM3, req.VolumeM3, &state.VolumeM3),
		CoutPPM:  firstFloat(ov.CoutPPM, req.CoutPPM, &state.CoutPPM),
		GPerson:  firstFloat(ov.GPerson, req.GPerson, &state.GPerson),
	}

	switch {
	case ov.ACH != nil:
		opts.ACH = *ov.ACH
		return opts, occupancy.SourceProvided
	case req.ACH != nil:
		opts.ACH = *req.ACH
		return opts, occupancy.SourceProvided
	case state.ACH != nil:
		opts.ACH = *state.ACH
		origin := state.ACHSource
		if origin == "" {
			origin = occupancy.SourceCached
		}
		return opts, origin
	default:
		opts.ACH = defs.ACH
		return opts, occupancy.SourceDefault
	}
}

func firstFloat(candidates ...*float64) float64 {
	for _, c := range candidates {
		if c != nil {
			return *c
		}
	}
	return 0.0
}
