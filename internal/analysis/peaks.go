package analysis

import (
	"sort"

	"github.com/fluorscan/nmr-engine/internal/spectrum"
)

const (
	// defaultThresholdK is the significance multiplier: a local maximum
	// must rise at least k sigma above the baseline to count as a peak.
	defaultThresholdK = 3.0

	// defaultMinSeparation is the minimum distance between two peaks in
	// samples; closer candidates merge into the higher one.
	defaultMinSeparation = 3

	// defaultSpectrometerMHz is the 19F resonance frequency on a 500 MHz
	// magnet, used to convert peak widths from ppm to Hz.
	defaultSpectrometerMHz = 470.4
)

// Peak is a detected resonance in the spectrum.
type Peak struct {
	PPM       float64 `json:"ppm"`
	Intensity float64 `json:"intensity"`
	Area      float64 `json:"area"`
	WidthPPM  float64 `json:"width_ppm"`
	WidthHz   float64 `json:"width_hz"`
	SNR       float64 `json:"snr"`
	Region    string  `json:"region,omitempty"`
}

// WithThresholdK sets the significance multiplier k (threshold = baseline +
// k * sigma).
func WithThresholdK(k float64) func(*Detector) {
	return func(d *Detector) {
		d.thresholdK = k
	}
}

// WithMinSeparation sets the merge distance in samples.
func WithMinSeparation(samples int) func(*Detector) {
	return func(d *Detector) {
		d.minSeparation = samples
	}
}

// WithSpectrometerMHz sets the spectrometer frequency used for the
// ppm-to-Hz width conversion.
func WithSpectrometerMHz(mhz float64) func(*Detector) {
	return func(d *Detector) {
		d.spectrometerMHz = mhz
	}
}

// Detector finds significant local maxima in a spectrum. Detection is
// deterministic: the same spectrum and parameters always produce the same
// peak list.
type Detector struct {
	thresholdK      float64
	minSeparation   int
	spectrometerMHz float64
}

// NewDetector creates a peak detector with the given options.
func NewDetector(options ...func(*Detector)) *Detector {
	d := Detector{
		thresholdK:      defaultThresholdK,
		minSeparation:   defaultMinSeparation,
		spectrometerMHz: defaultSpectrometerMHz,
	}
	for _, option := range options {
		option(&d)
	}
	return &d
}

// Detect scans the spectrum for local maxima above the significance
// threshold and resolves width, area and SNR for each. Peaks are returned
// in ascending ppm order. Maxima at the first or last sample are discarded:
// a truncated edge shape cannot be distinguished from a real resonance.
func (d *Detector) Detect(spec *spectrum.Spectrum, noise NoiseEstimate) []Peak {
	points := spec.Points
	if len(points) < 3 {
		return nil
	}

	sigma := noise.Sigma
	if sigma < minNoise {
		sigma = minNoise
	}
	threshold := noise.Baseline + d.thresholdK*sigma

	candidates := d.findMaxima(points, threshold)
	candidates = d.merge(points, candidates)

	peaks := make([]Peak, 0, len(candidates))
	for _, idx := range candidates {
		left, right := halfMaxCrossings(points, idx)
		widthPPM := right - left
		peaks = append(peaks, Peak{
			PPM:       points[idx].PPM,
			Intensity: points[idx].Intensity,
			Area:      integrateShape(points, idx, left, right),
			WidthPPM:  widthPPM,
			WidthHz:   widthPPM * d.spectrometerMHz,
			SNR:       points[idx].Intensity / sigma,
		})
	}
	return peaks
}

// findMaxima returns indices of significant local maxima. A plateau counts
// as a single maximum at its first sample, provided the signal falls on
// both sides.
func (d *Detector) findMaxima(points []spectrum.Point, threshold float64) []int {
	var maxima []int

	n := len(points)
	for i := 1; i < n-1; i++ {
		y := points[i].Intensity
		if y < threshold || y <= points[i-1].Intensity {
			continue
		}

		// Walk any plateau to the right; the candidate survives only if
		// the first differing value is lower, keeping the first plateau
		// sample as the deterministic peak position.
		j := i
		for j < n-1 && points[j+1].Intensity == y {
			j++
		}
		if j == n-1 || points[j+1].Intensity > y {
			i = j
			continue
		}

		maxima = append(maxima, i)
		i = j
	}
	return maxima
}

// merge collapses candidates closer than minSeparation samples into the
// higher-intensity one, first occurrence winning ties.
func (d *Detector) merge(points []spectrum.Point, candidates []int) []int {
	if d.minSeparation <= 0 || len(candidates) < 2 {
		return candidates
	}

	merged := candidates[:0]
	for _, idx := range candidates {
		if len(merged) == 0 {
			merged = append(merged, idx)
			continue
		}

		last := merged[len(merged)-1]
		if idx-last >= d.minSeparation {
			merged = append(merged, idx)
			continue
		}
		if points[idx].Intensity > points[last].Intensity {
			merged[len(merged)-1] = idx
		}
	}
	return merged
}

// halfMaxCrossings locates the ppm positions where the signal falls to half
// the peak intensity on each side, interpolating linearly between samples
// for sub-sample precision. When the signal never crosses before the
// spectrum edge the edge sample position is used.
func halfMaxCrossings(points []spectrum.Point, idx int) (left, right float64) {
	half := points[idx].Intensity / 2

	left = points[0].PPM
	for i := idx - 1; i >= 0; i-- {
		if points[i].Intensity <= half {
			left = interpolateCrossing(points[i], points[i+1], half)
			break
		}
	}

	right = points[len(points)-1].PPM
	for i := idx + 1; i < len(points); i++ {
		if points[i].Intensity <= half {
			right = interpolateCrossing(points[i-1], points[i], half)
			break
		}
	}
	return left, right
}

// interpolateCrossing returns the ppm where the segment a-b crosses the
// given level.
func interpolateCrossing(a, b spectrum.Point, level float64) float64 {
	if a.Intensity == b.Intensity {
		return a.PPM
	}
	t := (a.Intensity - level) / (a.Intensity - b.Intensity)
	return a.PPM + t*(b.PPM-a.PPM)
}

// integrateShape computes the trapezoidal area under the peak between its
// half-maximum crossings, including the interpolated partial segments at
// each end.
func integrateShape(points []spectrum.Point, idx int, left, right float64) float64 {
	half := points[idx].Intensity / 2

	// Collect the vertex list: left crossing, interior samples, right
	// crossing.
	xs := []float64{left}
	ys := []float64{half}
	for i := 0; i < len(points); i++ {
		if points[i].PPM > left && points[i].PPM < right {
			xs = append(xs, points[i].PPM)
			ys = append(ys, points[i].Intensity)
		}
	}
	xs = append(xs, right)
	ys = append(ys, half)

	var area float64
	for i := 1; i < len(xs); i++ {
		area += (xs[i] - xs[i-1]) * (ys[i] + ys[i-1]) / 2
	}
	return area
}

// TopByIntensity returns the n most intense peaks in descending intensity
// order, for top-N annotation use.
func TopByIntensity(peaks []Peak, n int) []Peak {
	sorted := make([]Peak, len(peaks))
	copy(sorted, peaks)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Intensity > sorted[j].Intensity
	})
	if n < len(sorted) {
		sorted = sorted[:n]
	}
	return sorted
}
