package analysis

import (
	"fmt"

	"github.com/fluorscan/nmr-engine/internal/spectrum"
)

// Window is an inclusive ppm integration window.
type Window struct {
	Min float64 `json:"min" yaml:"min"`
	Max float64 `json:"max" yaml:"max"`
}

// Valid reports whether the window is well-formed.
func (w Window) Valid() bool {
	return w.Min < w.Max
}

func (w Window) String() string {
	return fmt.Sprintf("[%.1f, %.1f] ppm", w.Min, w.Max)
}

// Contains reports whether ppm falls inside the window, bounds inclusive.
func (w Window) Contains(ppm float64) bool {
	return ppm >= w.Min && ppm <= w.Max
}

// Quantification holds the integration results for one spectrum.
type Quantification struct {
	TotalIntegral      float64 // Trapezoidal integral over the whole trace
	FluorIntegral      float64 // Integral over the total-fluorine window
	PifasIntegral      float64 // Integral over the PFAS-specific window
	FluorPercentage    float64 // Fluorine share of the total signal, 0-100
	PifasPercentage    float64 // PFAS share of the fluorine signal, 0-100
	PifasConcentration float64 // Absolute concentration in mM
	Warning            string  // Set when the numbers are computed but unreliable
}

// Integrate computes the trapezoidal integral of the spectrum over the
// samples falling inside the window, bounds inclusive.
func Integrate(spec *spectrum.Spectrum, w Window) float64 {
	var area float64
	started := false
	var prev spectrum.Point

	for _, p := range spec.Points {
		if !w.Contains(p.PPM) {
			started = false
			continue
		}
		if started {
			area += (p.PPM - prev.PPM) * (p.Intensity + prev.Intensity) / 2
		}
		prev = p
		started = true
	}
	return area
}

// TotalIntegral computes the trapezoidal integral over the full trace.
func TotalIntegral(spec *spectrum.Spectrum) float64 {
	return Integrate(spec, Window{Min: spec.MinPPM(), Max: spec.MaxPPM()})
}

// Quantify integrates the fluorine and PFAS windows and derives relative
// and absolute quantities. Zero denominators never produce NaN or Inf: the
// affected percentage is reported as zero and, when the numerator suggests
// the data is inconsistent, the result carries a warning so consumers can
// distinguish "legitimately zero" from "unreliable".
func Quantify(spec *spectrum.Spectrum, fluorWindow, pifasWindow Window, concentration float64) Quantification {
	q := Quantification{
		TotalIntegral: TotalIntegral(spec),
		FluorIntegral: Integrate(spec, fluorWindow),
		PifasIntegral: Integrate(spec, pifasWindow),
	}

	if q.TotalIntegral > 0 {
		q.FluorPercentage = clampPercent(q.FluorIntegral / q.TotalIntegral * 100)
	}

	switch {
	case q.FluorIntegral > 0:
		q.PifasPercentage = clampPercent(q.PifasIntegral / q.FluorIntegral * 100)
	case q.PifasIntegral != 0:
		// Non-zero PFAS signal inside a zero fluorine window is a data
		// inconsistency, typically a mis-specified window pair.
		q.Warning = fmt.Sprintf("pfas window %s has signal but fluorine window %s integrates to zero; percentages are unreliable", pifasWindow, fluorWindow)
	}

	q.PifasConcentration = q.PifasPercentage / 100 * concentration
	return q
}

func clampPercent(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}
