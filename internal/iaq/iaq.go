// v0
// internal/iaq/iaq.go
package iaq

// Weights blends the four component risks into the overall score. They are
// applied as given, without renormalization.
type Weights struct {
	CO2     float64 `json:"co2"`
	PM25    float64 `json:"pm25"`
	VOC     float64 `json:"voc"`
	Comfort float64 `json:"comfort"`
}

// Range is an inclusive comfort band.
type Range struct {
	Low  float64
	High float64
}

// Params carries every tunable of the IAQ formulas.
type Params struct {
	Weights        Weights
	VOCBreakpoints [3]float64
	VOCRiskCap     float64
	PM25Table      []Breakpoint
	TempRange      Range
	RHRange        Range
}

// DefaultParams returns the 2023 guidance values: TVOC inflection points in
// ppb, the EPA PM2.5 table and the ASHRAE 55 comfort bands.
func DefaultParams() Params {
	return Params{
		Weights:        Weights{CO2: 0.2, PM25: 0.4, VOC: 0.2, Comfort: 0.2},
		VOCBreakpoints: [3]float64{220.0, 660.0, 2200.0},
		VOCRiskCap:     65.0,
		PM25Table:      DefaultPM25Breakpoints(),
		TempRange:      Range{Low: 20.0, High: 25.0},
		RHRange:        Range{Low: 30.0, High: 60.0},
	}
}

// Assessment is the per-device IAQ result: the 0–100 score, its component
// risks and the weights that produced it.
type Assessment struct {
	IAQScore     float64  `json:"iaq_score"`
	AQIPM25      *float64 `json:"aqi_pm25"`
	RiskPM25     float64  `json:"risk_pm25"`
	RiskCO2      float64  `json:"risk_co2"`
	RiskTVOC     float64  `json:"risk_tvoc"`
	RiskComfort  float64  `json:"risk_comfort"`
	RiskWeighted float64  `json:"risk_weighted"`
	DominantRisk float64  `json:"dominant_risk"`
	Weights      Weights  `json:"weights"`
}

// Build combines the latest NowCast PM2.5 with the latest raw CO₂, TVOC and
// comfort readings into one assessment. nowcastPM25 nil means no particulate
// data contributed; the PM risk is then zero and the AQI absent.
func (p Params) Build(nowcastPM25, co2PPM, voc, tempC, rh *float64) Assessment {
	var aqiPM25 *float64
	riskPM25 := 0.0
	if nowcastPM25 != nil {
		aqi := p.AQI(*nowcastPM25)
		aqiPM25 = &aqi
		riskPM25 = clamp(aqi/5.0, 0.0, 100.0)
	}
	riskCO2 := CO2Penalty(co2PPM)
	riskTVOC := p.VOCPenalty(voc)
	riskComfort := p.ComfortPenalty(tempC, rh)

	weightedSum := riskPM25*p.Weights.PM25 +
		riskCO2*p.Weights.CO2 +
		riskTVOC*p.Weights.VOC +
		riskComfort*p.Weights.Comfort
	weightedRisk := clamp(weightedSum, 0.0, 100.0)

	dominant := riskCO2
	for _, r := range []float64{riskPM25, riskTVOC, riskComfort} {
		if r > dominant {
			dominant = r
		}
	}

	return Assessment{
		IAQScore:     clamp(100.0-weightedRisk, 0.0, 100.0),
		AQIPM25:      aqiPM25,
		RiskPM25:     riskPM25,
		RiskCO2:      riskCO2,
		RiskTVOC:     riskTVOC,
		RiskComfort:  riskComfort,
		RiskWeighted: weightedRisk,
		DominantRisk: dominant,
		Weights:      p.Weights,
	}
}
