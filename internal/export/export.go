// Package export turns analysis results into downloadable documents.
package export

import (
	"errors"
	"fmt"
	"time"

	"github.com/fluorscan/nmr-engine/internal/analysis"
)

// Type selects the export layout.
type Type string

const (
	TypeSingle     Type = "single"     // One result in full detail
	TypeComparison Type = "comparison" // Several results side by side
	TypeDashboard  Type = "dashboard"  // Summary metrics per result
)

// Format selects the output file format.
type Format string

const (
	FormatCSV  Format = "csv"
	FormatPDF  Format = "pdf"
	FormatDOCX Format = "docx"
)

// ErrUnsupportedFormat is returned for formats the engine cannot produce.
var ErrUnsupportedFormat = errors.New("unsupported export format")

// ErrNoResults is returned when an export request carries no results.
var ErrNoResults = errors.New("export requires at least one result")

// Request describes one export job. ChartPNG, when present, is embedded
// into PDF exports; JSON carries it base64-encoded.
type Request struct {
	Type     Type               `json:"type"`
	Format   Format             `json:"format"`
	Results  []*analysis.Result `json:"results"`
	ChartPNG []byte             `json:"chart_png_base64,omitempty"`
}

// Document is a rendered export ready to serve.
type Document struct {
	Filename    string
	ContentType string
	Data        []byte
}

// Build renders the requested document. DOCX is refused: no dependable
// generator exists in this stack, and a partial writer would produce files
// office suites reject.
func Build(req Request) (*Document, error) {
	if len(req.Results) == 0 {
		return nil, ErrNoResults
	}
	if req.Type == "" {
		req.Type = TypeSingle
	}

	switch req.Format {
	case FormatCSV:
		return buildCSV(req)
	case FormatPDF:
		return buildPDF(req)
	case FormatDOCX:
		return nil, fmt.Errorf("%w: docx", ErrUnsupportedFormat)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, req.Format)
	}
}

func exportFilename(req Request, ext string) string {
	name := "analysis"
	if req.Type != TypeSingle {
		name = string(req.Type)
	} else if req.Results[0].SampleName != "" {
		name = req.Results[0].SampleName
	}
	return fmt.Sprintf("%s_%s.%s", name, time.Now().UTC().Format("20060102_150405"), ext)
}
