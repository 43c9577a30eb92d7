package export

import (
	"bytes"
	"fmt"

	"github.com/go-pdf/fpdf"

	"github.com/fluorscan/nmr-engine/internal/analysis"
)

// buildPDF renders a report document. Single exports carry the full peak
// table and, when supplied, the spectrum chart; comparison and dashboard
// exports carry one summary row per result.
func buildPDF(req Request) (*Document, error) {
	doc := fpdf.New("P", "mm", "A4", "")
	doc.SetTitle("PFAS Analysis Report", false)
	doc.AddPage()

	doc.SetFont("Helvetica", "B", 16)
	doc.CellFormat(0, 10, "19F-NMR PFAS Analysis Report", "", 1, "L", false, 0, "")
	doc.Ln(2)

	switch req.Type {
	case TypeSingle:
		writeSinglePDF(doc, req.Results[0], req.ChartPNG)
	case TypeComparison, TypeDashboard:
		writeSummaryPDF(doc, req.Results)
	default:
		return nil, fmt.Errorf("unknown export type %q", req.Type)
	}

	var buf bytes.Buffer
	if err := doc.Output(&buf); err != nil {
		return nil, fmt.Errorf("rendering pdf: %w", err)
	}

	return &Document{
		Filename:    exportFilename(req, "pdf"),
		ContentType: "application/pdf",
		Data:        buf.Bytes(),
	}, nil
}

func writeSinglePDF(doc *fpdf.Fpdf, result *analysis.Result, chartPNG []byte) {
	doc.SetFont("Helvetica", "", 11)

	rows := [][2]string{
		{"Sample", result.SampleName},
		{"File", result.Filename},
		{"Analyzed", result.Timestamp.Format("2006-01-02 15:04:05 UTC")},
		{"Quality score", fmt.Sprintf("%.1f / 10", result.QualityScore)},
		{"Fluorine content", fmt.Sprintf("%.2f %%", result.Analysis.FluorPercentage)},
		{"PFAS share", fmt.Sprintf("%.2f %%", result.Analysis.PifasPercentage)},
		{"PFAS concentration", fmt.Sprintf("%.4f mM", result.Analysis.PifasConcentration)},
		{"Signal to noise", fmt.Sprintf("%.1f", result.Analysis.SignalToNoise)},
	}
	for _, row := range rows {
		doc.CellFormat(50, 7, row[0], "", 0, "L", false, 0, "")
		doc.CellFormat(0, 7, row[1], "", 1, "L", false, 0, "")
	}
	if result.Analysis.Warning != "" {
		doc.SetTextColor(180, 60, 0)
		doc.MultiCell(0, 7, "Warning: "+result.Analysis.Warning, "", "L", false)
		doc.SetTextColor(0, 0, 0)
	}
	doc.Ln(4)

	if len(chartPNG) > 0 {
		doc.RegisterImageOptionsReader("chart", fpdf.ImageOptions{ImageType: "PNG"}, bytes.NewReader(chartPNG))
		doc.ImageOptions("chart", 10, doc.GetY(), 190, 0, true, fpdf.ImageOptions{ImageType: "PNG"}, 0, "")
		doc.Ln(4)
	}

	doc.SetFont("Helvetica", "B", 11)
	doc.CellFormat(0, 8, "Detected peaks", "", 1, "L", false, 0, "")
	doc.SetFont("Helvetica", "B", 9)
	peakHeader := []struct {
		label string
		width float64
	}{
		{"ppm", 25}, {"intensity", 30}, {"area", 30},
		{"width (ppm)", 28}, {"SNR", 25}, {"region", 0},
	}
	for _, col := range peakHeader {
		doc.CellFormat(col.width, 6, col.label, "B", 0, "L", false, 0, "")
	}
	doc.Ln(-1)

	doc.SetFont("Helvetica", "", 9)
	for _, p := range result.Peaks {
		region := p.Region
		if region == "" {
			region = "N/A"
		}
		doc.CellFormat(25, 6, fmt.Sprintf("%.2f", p.PPM), "", 0, "L", false, 0, "")
		doc.CellFormat(30, 6, fmt.Sprintf("%.1f", p.Intensity), "", 0, "L", false, 0, "")
		doc.CellFormat(30, 6, fmt.Sprintf("%.2f", p.Area), "", 0, "L", false, 0, "")
		doc.CellFormat(28, 6, fmt.Sprintf("%.3f", p.WidthPPM), "", 0, "L", false, 0, "")
		doc.CellFormat(25, 6, fmt.Sprintf("%.1f", p.SNR), "", 0, "L", false, 0, "")
		doc.CellFormat(0, 6, region, "", 1, "L", false, 0, "")
	}

	if result.PFASDetection != nil && len(result.PFASDetection.Compounds) > 0 {
		doc.Ln(4)
		doc.SetFont("Helvetica", "B", 11)
		doc.CellFormat(0, 8, "Identified compounds", "", 1, "L", false, 0, "")
		doc.SetFont("Helvetica", "", 9)
		for _, c := range result.PFASDetection.Compounds {
			line := fmt.Sprintf("%s (%s, CAS %s): %.0f %% confidence", c.Name, c.Formula, c.CAS, c.Confidence)
			doc.CellFormat(0, 6, line, "", 1, "L", false, 0, "")
		}
	}
}

func writeSummaryPDF(doc *fpdf.Fpdf, results []*analysis.Result) {
	doc.SetFont("Helvetica", "B", 9)
	cols := []struct {
		label string
		width float64
	}{
		{"sample", 45}, {"fluor %", 25}, {"PFAS %", 25},
		{"conc. (mM)", 28}, {"SNR", 25}, {"quality", 0},
	}
	for _, col := range cols {
		doc.CellFormat(col.width, 6, col.label, "B", 0, "L", false, 0, "")
	}
	doc.Ln(-1)

	doc.SetFont("Helvetica", "", 9)
	for _, r := range results {
		doc.CellFormat(45, 6, r.SampleName, "", 0, "L", false, 0, "")
		doc.CellFormat(25, 6, fmt.Sprintf("%.2f", r.Analysis.FluorPercentage), "", 0, "L", false, 0, "")
		doc.CellFormat(25, 6, fmt.Sprintf("%.2f", r.Analysis.PifasPercentage), "", 0, "L", false, 0, "")
		doc.CellFormat(28, 6, fmt.Sprintf("%.4f", r.Analysis.PifasConcentration), "", 0, "L", false, 0, "")
		doc.CellFormat(25, 6, fmt.Sprintf("%.1f", r.Analysis.SignalToNoise), "", 0, "L", false, 0, "")
		doc.CellFormat(0, 6, fmt.Sprintf("%.1f", r.QualityScore), "", 1, "L", false, 0, "")
	}
}
