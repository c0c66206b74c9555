// v0
// internal/iaq/aqi.go
package iaq

// Breakpoint is one row of a concentration-to-index table: concentrations in
// [CLo, CHi] map linearly onto indices [ILo, IHi].
type Breakpoint struct {
	CLo float64
	CHi float64
	ILo float64
	IHi float64
}

// DefaultPM25Breakpoints is the 2023 US EPA PM2.5 AQI table (µg/m³ -> AQI).
//
//	  0.0–12.0   ->   0–50   (Good)
//	 12.1–35.4   ->  51–100  (Moderate)
//	 35.5–55.4   -> 101–150  (Unhealthy for SG)
//	 55.5–150.4  -> 151–200  (Unhealthy)
//	150.5–250.4  -> 201–300  (Very Unhealthy)
//	250.5–500.4  -> 301–500  (Hazardous)
func DefaultPM25Breakpoints() []Breakpoint {
	return []Breakpoint{
		{0.0, 12.0, 0.0, 50.0},
		{12.1, 35.4, 51.0, 100.0},
		{35.5, 55.4, 101.0, 150.0},
		{55.5, 150.4, 151.0, 200.0},
		{150.5, 250.4, 201.0, 300.0},
		{250.5, 500.4, 301.0, 500.0},
	}
}

// AQI converts a PM2.5 NowCast concentration into an EPA-style AQI by linear
// interpolation within the matching breakpoint row. Concentrations beyond the
// table, including the sub-0.1 gaps between rows, saturate to the last row's
// upper index rather than extrapolating.
func (p Params) AQI(c float64) float64 {
	for _, bp := range p.PM25Table {
		if bp.CLo <= c && c <= bp.CHi {
			ratio := (bp.IHi - bp.ILo) / (bp.CHi - bp.CLo)
			return ratio*(c-bp.CLo) + bp.ILo
		}
	}
	return p.PM25Table[len(p.PM25Table)-1].IHi
}
