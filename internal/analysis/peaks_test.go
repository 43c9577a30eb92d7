package analysis

import (
	"math"
	"reflect"
	"testing"

	"github.com/fluorscan/nmr-engine/internal/spectrum"
)

// gaussianSpectrum builds a trace over [minPPM, maxPPM] with the given step
// and a Gaussian peak at each (center, amplitude) pair. Width is the
// Gaussian sigma in ppm.
func gaussianSpectrum(minPPM, maxPPM, step, width float64, peaks map[float64]float64) *spectrum.Spectrum {
	var points []spectrum.Point
	for ppm := minPPM; ppm <= maxPPM+step/2; ppm += step {
		var y float64
		for center, amp := range peaks {
			d := (ppm - center) / width
			y += amp * math.Exp(-d*d/2)
		}
		points = append(points, spectrum.Point{PPM: ppm, Intensity: y})
	}
	return &spectrum.Spectrum{Points: points}
}

func flatSpectrum(n int, value float64) *spectrum.Spectrum {
	points := make([]spectrum.Point, n)
	for i := range points {
		points[i] = spectrum.Point{PPM: -100 + float64(i), Intensity: value}
	}
	return &spectrum.Spectrum{Points: points}
}

func TestDetect_SingleCleanPeak(t *testing.T) {
	// Scenario from the analysis contract: one clean Gaussian at -88 ppm,
	// intensity 1255.2, noise floor 5.0.
	spec := gaussianSpectrum(-100, -80, 0.1, 0.3, map[float64]float64{-88: 1255.2})
	noise := NoiseEstimate{Sigma: 5.0}

	peaks := NewDetector().Detect(spec, noise)
	if len(peaks) != 1 {
		t.Fatalf("expected exactly 1 peak, got %d", len(peaks))
	}

	p := peaks[0]
	if math.Abs(p.PPM-(-88.0)) > 0.05 {
		t.Errorf("expected peak at -88.0 ppm, got %.3f", p.PPM)
	}
	if math.Abs(p.SNR-251.04) > 0.5 {
		t.Errorf("expected SNR about 251, got %.2f", p.SNR)
	}

	// FWHM of a Gaussian with sigma 0.3 ppm is about 0.706 ppm.
	if p.WidthPPM < 0.6 || p.WidthPPM > 0.8 {
		t.Errorf("expected width near 0.71 ppm, got %.3f", p.WidthPPM)
	}
	if p.WidthHz <= p.WidthPPM {
		t.Errorf("width_hz %.1f should exceed width_ppm %.3f at any real spectrometer frequency", p.WidthHz, p.WidthPPM)
	}
	if p.Area <= 0 {
		t.Errorf("expected positive area, got %f", p.Area)
	}
}

func TestDetect_AllZeroSpectrum(t *testing.T) {
	spec := flatSpectrum(20, 0)
	noise := EstimateNoise(spec)

	peaks := NewDetector().Detect(spec, noise)
	if len(peaks) != 0 {
		t.Errorf("expected no peaks in an all-zero spectrum, got %d", len(peaks))
	}
}

func TestDetect_Idempotent(t *testing.T) {
	spec := gaussianSpectrum(-130, -60, 0.05, 0.4, map[float64]float64{
		-81:  900,
		-118: 400,
		-122: 350,
	})
	noise := NoiseEstimate{Sigma: 2.0}
	d := NewDetector()

	first := d.Detect(spec, noise)
	second := d.Detect(spec, noise)
	if !reflect.DeepEqual(first, second) {
		t.Error("detection is not deterministic across runs")
	}
	if len(first) != 3 {
		t.Errorf("expected 3 peaks, got %d", len(first))
	}
}

func TestDetect_EdgeMaximaDiscarded(t *testing.T) {
	points := []spectrum.Point{
		{PPM: -90, Intensity: 1000}, // truncated edge artifact
		{PPM: -89, Intensity: 10},
		{PPM: -88, Intensity: 8},
		{PPM: -87, Intensity: 9},
		{PPM: -86, Intensity: 7},
		{PPM: -85, Intensity: 1200}, // truncated edge artifact
	}
	spec := &spectrum.Spectrum{Points: points}

	peaks := NewDetector().Detect(spec, NoiseEstimate{Sigma: 1})
	for _, p := range peaks {
		if p.PPM == -90 || p.PPM == -85 {
			t.Errorf("edge sample at %.0f ppm reported as a peak", p.PPM)
		}
	}
}

func TestDetect_MergeCloseCandidates(t *testing.T) {
	// Two maxima two samples apart must merge into the higher one.
	points := []spectrum.Point{
		{PPM: -90.0, Intensity: 0},
		{PPM: -89.9, Intensity: 100},
		{PPM: -89.8, Intensity: 90},
		{PPM: -89.7, Intensity: 120},
		{PPM: -89.6, Intensity: 0},
		{PPM: -89.5, Intensity: 0},
		{PPM: -89.4, Intensity: 0},
		{PPM: -89.3, Intensity: 0},
		{PPM: -89.2, Intensity: 0},
		{PPM: -89.1, Intensity: 0},
	}
	spec := &spectrum.Spectrum{Points: points}

	d := NewDetector(WithMinSeparation(3))
	peaks := d.Detect(spec, NoiseEstimate{Sigma: 1})

	if len(peaks) != 1 {
		t.Fatalf("expected merged single peak, got %d", len(peaks))
	}
	if peaks[0].Intensity != 120 {
		t.Errorf("expected the higher candidate to survive, got intensity %f", peaks[0].Intensity)
	}
}

func TestDetect_MergeInvariant(t *testing.T) {
	spec := gaussianSpectrum(-130, -60, 0.05, 0.2, map[float64]float64{
		-81.0: 900,
		-81.2: 800, // closer than the merge distance at this step
		-118:  400,
	})
	d := NewDetector(WithMinSeparation(10))
	peaks := d.Detect(spec, NoiseEstimate{Sigma: 2})

	minDistance := 10 * 0.05
	for i := 1; i < len(peaks); i++ {
		if peaks[i].PPM-peaks[i-1].PPM < minDistance {
			t.Errorf("peaks at %.2f and %.2f closer than merge distance", peaks[i-1].PPM, peaks[i].PPM)
		}
	}
}

func TestDetect_PlateauFirstOccurrence(t *testing.T) {
	points := []spectrum.Point{
		{PPM: -90.0, Intensity: 0},
		{PPM: -89.9, Intensity: 50},
		{PPM: -89.8, Intensity: 50},
		{PPM: -89.7, Intensity: 50},
		{PPM: -89.6, Intensity: 0},
		{PPM: -89.5, Intensity: 0},
		{PPM: -89.4, Intensity: 0},
	}
	spec := &spectrum.Spectrum{Points: points}

	peaks := NewDetector().Detect(spec, NoiseEstimate{Sigma: 1})
	if len(peaks) != 1 {
		t.Fatalf("expected one plateau peak, got %d", len(peaks))
	}
	if peaks[0].PPM != -89.9 {
		t.Errorf("expected plateau peak at its first sample -89.9, got %.2f", peaks[0].PPM)
	}
}

func TestDetect_WidthAndAreaPositive(t *testing.T) {
	spec := gaussianSpectrum(-130, -60, 0.05, 0.4, map[float64]float64{
		-81:  900,
		-114: 300,
		-122: 250,
	})
	peaks := NewDetector().Detect(spec, NoiseEstimate{Sigma: 2})

	if len(peaks) == 0 {
		t.Fatal("expected peaks")
	}
	for _, p := range peaks {
		if p.WidthPPM <= 0 {
			t.Errorf("peak at %.2f: width_ppm %f not positive", p.PPM, p.WidthPPM)
		}
		if p.Area <= 0 {
			t.Errorf("peak at %.2f: area %f not positive", p.PPM, p.Area)
		}
	}
}

func TestTopByIntensity(t *testing.T) {
	peaks := []Peak{
		{PPM: -81, Intensity: 900},
		{PPM: -118, Intensity: 400},
		{PPM: -122, Intensity: 350},
		{PPM: -126, Intensity: 100},
	}

	top := TopByIntensity(peaks, 3)
	if len(top) != 3 {
		t.Fatalf("expected 3 peaks, got %d", len(top))
	}
	if top[0].Intensity != 900 || top[2].Intensity != 350 {
		t.Errorf("unexpected top-3 ordering: %+v", top)
	}

	// Input order must be untouched.
	if peaks[0].PPM != -81 || peaks[3].PPM != -126 {
		t.Error("TopByIntensity mutated its input")
	}
}
