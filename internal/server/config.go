package server

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/fluorscan/nmr-engine/internal/analysis"
	"github.com/fluorscan/nmr-engine/internal/regions"
)

type configResponse struct {
	AnalysisParameters analysis.Parameters `json:"analysis_parameters"`
	Regions            []regions.Region    `json:"regions"`
	CompoundCount      int                 `json:"compound_count"`
	ExportFormats      []string            `json:"export_formats"`
}

// handleConfig reports the engine defaults and reference tables so clients
// can render parameter forms without hard-coding them.
func (s *Controller) handleConfig(c echo.Context) error {
	return c.JSON(http.StatusOK, configResponse{
		AnalysisParameters: s.defaults,
		Regions:            s.classifier.Regions(),
		CompoundCount:      s.matcher.Count(),
		ExportFormats:      []string{"csv", "pdf"},
	})
}
