package export

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"strconv"

	"github.com/fluorscan/nmr-engine/internal/analysis"
)

// buildCSV renders results as CSV. Numeric fields are written at full
// float64 precision so re-imported values round-trip exactly.
func buildCSV(req Request) (*Document, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	var err error
	switch req.Type {
	case TypeSingle:
		err = writeSingleCSV(w, req.Results[0])
	case TypeComparison, TypeDashboard:
		err = writeSummaryCSV(w, req.Results)
	default:
		return nil, fmt.Errorf("unknown export type %q", req.Type)
	}
	if err != nil {
		return nil, fmt.Errorf("writing csv: %w", err)
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return nil, fmt.Errorf("flushing csv: %w", err)
	}

	return &Document{
		Filename:    exportFilename(req, "csv"),
		ContentType: "text/csv",
		Data:        buf.Bytes(),
	}, nil
}

func writeSingleCSV(w *csv.Writer, result *analysis.Result) error {
	meta := [][]string{
		{"filename", result.Filename},
		{"sample_name", result.SampleName},
		{"timestamp", result.Timestamp.Format("2006-01-02T15:04:05Z07:00")},
		{"quality_score", formatFloat(result.QualityScore)},
		{"fluor_percentage", formatFloat(result.Analysis.FluorPercentage)},
		{"pifas_percentage", formatFloat(result.Analysis.PifasPercentage)},
		{"pifas_concentration", formatFloat(result.Analysis.PifasConcentration)},
		{"total_integral", formatFloat(result.Analysis.TotalIntegral)},
		{"signal_to_noise", formatFloat(result.Analysis.SignalToNoise)},
	}
	for _, row := range meta {
		if err := w.Write(row); err != nil {
			return err
		}
	}

	if err := w.Write(nil); err != nil {
		return err
	}
	if err := w.Write([]string{"ppm", "intensity", "area", "width_ppm", "width_hz", "snr", "region"}); err != nil {
		return err
	}
	for _, p := range result.Peaks {
		region := p.Region
		if region == "" {
			region = "N/A"
		}
		row := []string{
			formatFloat(p.PPM),
			formatFloat(p.Intensity),
			formatFloat(p.Area),
			formatFloat(p.WidthPPM),
			formatFloat(p.WidthHz),
			formatFloat(p.SNR),
			region,
		}
		if err := w.Write(row); err != nil {
			return err
		}
	}
	return nil
}

func writeSummaryCSV(w *csv.Writer, results []*analysis.Result) error {
	header := []string{
		"filename", "sample_name", "timestamp", "peaks",
		"fluor_percentage", "pifas_percentage", "pifas_concentration",
		"signal_to_noise", "quality_score",
	}
	if err := w.Write(header); err != nil {
		return err
	}

	for _, r := range results {
		row := []string{
			r.Filename,
			r.SampleName,
			r.Timestamp.Format("2006-01-02T15:04:05Z07:00"),
			strconv.Itoa(len(r.Peaks)),
			formatFloat(r.Analysis.FluorPercentage),
			formatFloat(r.Analysis.PifasPercentage),
			formatFloat(r.Analysis.PifasConcentration),
			formatFloat(r.Analysis.SignalToNoise),
			formatFloat(r.QualityScore),
		}
		if err := w.Write(row); err != nil {
			return err
		}
	}
	return nil
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}
