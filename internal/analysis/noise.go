package analysis

import (
	"math"
	"sort"

	"github.com/fluorscan/nmr-engine/internal/spectrum"
)

// minNoise guards SNR and threshold computations against degenerate inputs
// where the estimated noise is exactly zero.
const minNoise = 1e-9

// madToSigma converts a median absolute deviation to a standard deviation
// estimate for normally distributed noise.
const madToSigma = 1.4826

// NoiseEstimate describes the noise floor of a spectrum.
type NoiseEstimate struct {
	Sigma     float64 // Noise standard deviation estimate, never below minNoise
	Baseline  float64 // Baseline intensity level (median)
	Roughness float64 // Baseline roughness relative to sigma, for quality scoring
}

// WithQuietWindow restricts the noise estimate to samples inside a known
// signal-free ppm window instead of the robust full-trace statistic.
func WithQuietWindow(minPPM, maxPPM float64) func(*noiseOptions) {
	return func(o *noiseOptions) {
		o.quietMin = &minPPM
		o.quietMax = &maxPPM
	}
}

type noiseOptions struct {
	quietMin *float64
	quietMax *float64
}

// EstimateNoise computes a robust noise floor for the spectrum. By default
// it uses the median absolute deviation over the whole trace, which is
// insensitive to sparse strong peaks; with a quiet window configured it uses
// the plain standard deviation of that window.
func EstimateNoise(spec *spectrum.Spectrum, options ...func(*noiseOptions)) NoiseEstimate {
	var opts noiseOptions
	for _, option := range options {
		option(&opts)
	}

	values := selectNoiseValues(spec, &opts)
	if len(values) == 0 {
		return NoiseEstimate{Sigma: minNoise}
	}

	baseline := median(values)

	var sigma float64
	if opts.quietMin != nil {
		sigma = stddev(values)
	} else {
		deviations := make([]float64, len(values))
		for i, v := range values {
			deviations[i] = math.Abs(v - baseline)
		}
		sigma = madToSigma * median(deviations)
	}
	if sigma < minNoise {
		sigma = minNoise
	}

	return NoiseEstimate{
		Sigma:     sigma,
		Baseline:  baseline,
		Roughness: roughness(values, baseline, sigma),
	}
}

func selectNoiseValues(spec *spectrum.Spectrum, opts *noiseOptions) []float64 {
	if opts.quietMin == nil {
		return spec.Intensities()
	}

	var values []float64
	for _, p := range spec.Points {
		if p.PPM >= *opts.quietMin && p.PPM <= *opts.quietMax {
			values = append(values, p.Intensity)
		}
	}
	if len(values) == 0 {
		// Window misses the spectrum entirely, fall back to the full trace.
		return spec.Intensities()
	}
	return values
}

// roughness measures how uneven the baseline is: the mean absolute
// first difference of the sub-threshold samples, relative to sigma.
func roughness(values []float64, baseline, sigma float64) float64 {
	threshold := baseline + 3*sigma

	var sum float64
	var count int
	prev := math.NaN()
	for _, v := range values {
		if v > threshold {
			prev = math.NaN()
			continue
		}
		if !math.IsNaN(prev) {
			sum += math.Abs(v - prev)
			count++
		}
		prev = v
	}
	if count == 0 {
		return 0
	}
	return sum / float64(count) / sigma
}

func median(values []float64) float64 {
	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)

	n := len(sorted)
	if n == 0 {
		return 0
	}
	if n%2 == 1 {
		return sorted[n/2]
	}
	return (sorted[n/2-1] + sorted[n/2]) / 2
}

func stddev(values []float64) float64 {
	if len(values) < 2 {
		return 0
	}

	var mean float64
	for _, v := range values {
		mean += v
	}
	mean /= float64(len(values))

	var sum float64
	for _, v := range values {
		d := v - mean
		sum += d * d
	}
	return math.Sqrt(sum / float64(len(values)-1))
}
