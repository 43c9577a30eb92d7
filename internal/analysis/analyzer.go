// Package analysis implements the spectrum analysis pipeline: noise
// estimation, peak detection, region classification, PFAS quantification,
// quality scoring and compound matching. Each analysis is an independent,
// stateless unit of work; the only shared state is the read-only region and
// compound tables.
package analysis

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/fluorscan/nmr-engine/internal/compounds"
	"github.com/fluorscan/nmr-engine/internal/regions"
	"github.com/fluorscan/nmr-engine/internal/spectrum"
)

// topPeaksForMatching bounds how many detected peaks feed the compound
// matcher; beyond this, additional minor peaks only add noise matches.
const topPeaksForMatching = 12

// InvalidParametersError reports analysis parameters that cannot be used.
type InvalidParametersError struct {
	Reason string
}

func (e *InvalidParametersError) Error() string {
	return "invalid analysis parameters: " + e.Reason
}

// Parameters configures one analysis run. Each request carries its own
// parameters; there is no shared mutable configuration.
type Parameters struct {
	FluorRange    Window  `json:"fluor_range" yaml:"fluorRange"`
	PifasRange    Window  `json:"pifas_range" yaml:"pifasRange"`
	Concentration float64 `json:"concentration" yaml:"concentration"` // Reference concentration in mM
}

// DefaultParameters returns the standard integration windows for 19F PFAS
// screening and a 1 mM reference concentration.
func DefaultParameters() Parameters {
	return Parameters{
		FluorRange:    Window{Min: -250, Max: 0},
		PifasRange:    Window{Min: -130, Max: -60},
		Concentration: 1.0,
	}
}

// Validate checks the parameters for well-formedness.
func (p Parameters) Validate() error {
	if !p.FluorRange.Valid() {
		return &InvalidParametersError{Reason: fmt.Sprintf("fluor_range %s: min must be below max", p.FluorRange)}
	}
	if !p.PifasRange.Valid() {
		return &InvalidParametersError{Reason: fmt.Sprintf("pifas_range %s: min must be below max", p.PifasRange)}
	}
	if p.Concentration < 0 {
		return &InvalidParametersError{Reason: fmt.Sprintf("concentration %.3f mM must not be negative", p.Concentration)}
	}
	return nil
}

// Analysis is the nested quantification record of a result.
type Analysis struct {
	FluorPercentage    float64 `json:"fluor_percentage"`
	PifasPercentage    float64 `json:"pifas_percentage"`
	PifasConcentration float64 `json:"pifas_concentration"`
	TotalIntegral      float64 `json:"total_integral"`
	SignalToNoise      float64 `json:"signal_to_noise"`
	Warning            string  `json:"warning,omitempty"`
}

// MarshalJSON additionally emits pfas_percentage as an alias of
// pifas_percentage. Consumers read either key; internally only the pifas
// name exists and the alias is produced at the serialization boundary only.
func (a Analysis) MarshalJSON() ([]byte, error) {
	type plain Analysis
	return json.Marshal(struct {
		plain
		PFASPercentage float64 `json:"pfas_percentage"`
	}{plain(a), a.PifasPercentage})
}

// Detection lists the PFAS species matched against the reference table.
type Detection struct {
	Compounds []compounds.Match `json:"compounds"`
}

// Result is the complete outcome of analyzing a single spectrum file.
type Result struct {
	Filename      string             `json:"filename"`
	SampleName    string             `json:"sample_name"`
	Timestamp     time.Time          `json:"timestamp"`
	Spectrum      *spectrum.Spectrum `json:"spectrum,omitempty"`
	Peaks         []Peak             `json:"peaks"`
	Analysis      Analysis           `json:"analysis"`
	QualityScore  float64            `json:"quality_score"`
	PFASDetection *Detection         `json:"pfas_detection,omitempty"`
}

// WithDetector overrides the default peak detector.
func WithDetector(d *Detector) func(*Analyzer) {
	return func(a *Analyzer) {
		a.detector = d
	}
}

// WithLogger sets the logger used for per-stage debug output.
func WithLogger(logger *slog.Logger) func(*Analyzer) {
	return func(a *Analyzer) {
		a.logger = logger
	}
}

// WithNoiseOptions forwards options to the noise estimator.
func WithNoiseOptions(options ...func(*noiseOptions)) func(*Analyzer) {
	return func(a *Analyzer) {
		a.noiseOptions = options
	}
}

// Analyzer runs the analysis pipeline. It is safe for concurrent use: all
// of its state is read-only after construction.
type Analyzer struct {
	classifier   *regions.Classifier
	matcher      *compounds.Matcher
	detector     *Detector
	noiseOptions []func(*noiseOptions)
	logger       *slog.Logger
}

// NewAnalyzer creates an analyzer over the given reference tables.
func NewAnalyzer(classifier *regions.Classifier, matcher *compounds.Matcher, options ...func(*Analyzer)) *Analyzer {
	a := Analyzer{
		classifier: classifier,
		matcher:    matcher,
		detector:   NewDetector(),
		logger:     slog.Default(),
	}
	for _, option := range options {
		option(&a)
	}
	return &a
}

// Analyze runs the full pipeline on one spectrum file. The pipeline is a
// linear chain of pure stages; the context is honoured between stages.
func (a *Analyzer) Analyze(ctx context.Context, filename string, r io.Reader, params Parameters) (*Result, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}

	spec, err := spectrum.Parse(r)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("analysis aborted: %w", err)
	}

	noise := EstimateNoise(spec, a.noiseOptions...)
	peaks := a.detector.Detect(spec, noise)
	for i := range peaks {
		if label, ok := a.classifier.Classify(peaks[i].PPM); ok {
			peaks[i].Region = label
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("analysis aborted: %w", err)
	}

	quant := Quantify(spec, params.FluorRange, params.PifasRange, params.Concentration)
	meanSNR := meanPeakSNR(peaks)

	result := Result{
		Filename:   filename,
		SampleName: sampleName(filename),
		Timestamp:  time.Now().UTC(),
		Spectrum:   spec,
		Peaks:      peaks,
		Analysis: Analysis{
			FluorPercentage:    quant.FluorPercentage,
			PifasPercentage:    quant.PifasPercentage,
			PifasConcentration: quant.PifasConcentration,
			TotalIntegral:      quant.TotalIntegral,
			SignalToNoise:      meanSNR,
			Warning:            quant.Warning,
		},
		QualityScore: QualityScore(meanSNR, len(peaks), noise.Roughness),
	}

	top := TopByIntensity(peaks, topPeaksForMatching)
	ppms := make([]float64, len(top))
	for i, p := range top {
		ppms[i] = p.PPM
	}
	if matches := a.matcher.Match(ppms); len(matches) > 0 {
		result.PFASDetection = &Detection{Compounds: matches}
	}

	a.logger.Debug("analysis complete",
		slog.String("filename", filename),
		slog.Int("peaks", len(peaks)),
		slog.Float64("snr", meanSNR),
		slog.Float64("quality", result.QualityScore))

	return &result, nil
}

func meanPeakSNR(peaks []Peak) float64 {
	if len(peaks) == 0 {
		return 0
	}
	var sum float64
	for _, p := range peaks {
		sum += p.SNR
	}
	return sum / float64(len(peaks))
}

func sampleName(filename string) string {
	base := filepath.Base(filename)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
