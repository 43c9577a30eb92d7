package app

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/fluorscan/nmr-engine/internal/analysis"
	"github.com/fluorscan/nmr-engine/internal/compounds"
	"github.com/fluorscan/nmr-engine/internal/export"
	"github.com/fluorscan/nmr-engine/internal/regions"
	"github.com/fluorscan/nmr-engine/internal/storage"
)

// Run renders a spectrum chart either from a stored measurement or by
// analyzing a raw CSV on the spot.
func Run(ctx context.Context, config *Config, logger *slog.Logger) error {
	result, err := loadResult(ctx, config, logger)
	if err != nil {
		return err
	}

	renderer, err := export.NewChartRenderer(export.ChartConfig{
		Width:    config.Width,
		Height:   config.Height,
		FontPath: config.FontPath,
	})
	if err != nil {
		return fmt.Errorf("creating renderer: %w", err)
	}
	defer renderer.Close()

	img, err := renderer.Render(result)
	if err != nil {
		return fmt.Errorf("rendering chart: %w", err)
	}

	data, err := export.EncodePNG(img)
	if err != nil {
		return err
	}
	if err = os.WriteFile(config.OutputFile, data, 0o644); err != nil {
		return fmt.Errorf("writing output file: %w", err)
	}

	logger.Info("chart written",
		slog.String("file", config.OutputFile),
		slog.String("sample", result.SampleName),
		slog.Int("peaks", len(result.Peaks)))
	return nil
}

func loadResult(ctx context.Context, config *Config, logger *slog.Logger) (*analysis.Result, error) {
	if config.InputFile == "" {
		store := storage.New(config.DBPath)
		defer store.Close()

		m, err := store.Measurement(ctx, config.MeasurementID, config.CompanyID)
		if err != nil {
			return nil, fmt.Errorf("loading measurement: %w", err)
		}
		if m.Result.Spectrum == nil {
			return nil, fmt.Errorf("measurement %d carries no spectrum data", m.ID)
		}
		return m.Result, nil
	}

	classifier, err := regions.NewClassifier(regions.Default())
	if err != nil {
		return nil, fmt.Errorf("building region classifier: %w", err)
	}
	analyzer := analysis.NewAnalyzer(classifier, compounds.NewMatcher(compounds.Default()),
		analysis.WithLogger(logger))

	f, err := os.Open(config.InputFile)
	if err != nil {
		return nil, fmt.Errorf("opening input file: %w", err)
	}
	defer f.Close()

	result, err := analyzer.Analyze(ctx, config.InputFile, f, analysis.DefaultParameters())
	if err != nil {
		return nil, fmt.Errorf("analyzing %s: %w", config.InputFile, err)
	}
	return result, nil
}
