package app

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/fluorscan/nmr-engine/internal/analysis"
	"github.com/fluorscan/nmr-engine/internal/compounds"
	"github.com/fluorscan/nmr-engine/internal/regions"
	"github.com/fluorscan/nmr-engine/internal/server"
	"github.com/fluorscan/nmr-engine/internal/storage"
)

const (
	databaseFile    = "measurements.sqlite"
	shutdownTimeout = 10 * time.Second
)

// Run wires the engine together and serves the HTTP API until the context
// is cancelled.
func Run(ctx context.Context, config *Config, logger *slog.Logger) error {
	if err := os.MkdirAll(config.Storage.DataDirectory, 0o755); err != nil {
		return fmt.Errorf("creating data directory: %w", err)
	}

	store := storage.New(filepath.Join(config.Storage.DataDirectory, databaseFile))
	defer store.Close()

	table := regions.Default()
	if regions.Overlaps(table) {
		logger.Warn("region table contains overlapping ranges, narrowest match wins")
	}
	classifier, err := regions.NewClassifier(table)
	if err != nil {
		return fmt.Errorf("building region classifier: %w", err)
	}

	var matcherOptions []func(*compounds.Matcher)
	if config.Analysis.MatchTolerance > 0 {
		matcherOptions = append(matcherOptions, compounds.WithTolerance(config.Analysis.MatchTolerance))
	}
	if config.Analysis.MinConfidence > 0 {
		matcherOptions = append(matcherOptions, compounds.WithMinConfidence(config.Analysis.MinConfidence))
	}
	if config.Export.AssetDirectory != "" {
		matcherOptions = append(matcherOptions, compounds.WithAssetDir(config.Export.AssetDirectory))
	}
	matcher := compounds.NewMatcher(compounds.Default(), matcherOptions...)

	var detectorOptions []func(*analysis.Detector)
	if config.Analysis.ThresholdK > 0 {
		detectorOptions = append(detectorOptions, analysis.WithThresholdK(config.Analysis.ThresholdK))
	}
	if config.Analysis.MinSeparation > 0 {
		detectorOptions = append(detectorOptions, analysis.WithMinSeparation(config.Analysis.MinSeparation))
	}
	if config.Analysis.SpectrometerMHz > 0 {
		detectorOptions = append(detectorOptions, analysis.WithSpectrometerMHz(config.Analysis.SpectrometerMHz))
	}

	analyzerOptions := []func(*analysis.Analyzer){
		analysis.WithDetector(analysis.NewDetector(detectorOptions...)),
		analysis.WithLogger(logger),
	}
	if q := config.Analysis.QuietWindow; q != nil {
		analyzerOptions = append(analyzerOptions,
			analysis.WithNoiseOptions(analysis.WithQuietWindow(q.MinPPM, q.MaxPPM)))
	}
	analyzer := analysis.NewAnalyzer(classifier, matcher, analyzerOptions...)

	ctrl := server.New(store, analyzer, classifier, matcher,
		server.WithLogger(logger),
		server.WithDefaultParameters(config.Analysis.Defaults),
		server.WithBatchWorkers(config.Analysis.BatchWorkers),
		server.WithFileTimeout(config.Analysis.FileTimeout))

	errCh := make(chan error, 1)
	go func() {
		errCh <- ctrl.Start(config.Server.Addr())
	}()

	select {
	case err = <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err = ctrl.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutting down server: %w", err)
	}
	return <-errCh
}
