package server

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/fluorscan/nmr-engine/internal/export"
)

// handleExport renders results into a downloadable document. The request
// body is an export.Request; results typically come from previous analyze
// responses held by the client.
func (s *Controller) handleExport(c echo.Context) error {
	var req export.Request
	if err := c.Bind(&req); err != nil {
		return errorJSON(c, http.StatusBadRequest, fmt.Sprintf("invalid export request: %v", err))
	}

	doc, err := export.Build(req)
	if err != nil {
		if errors.Is(err, export.ErrUnsupportedFormat) || errors.Is(err, export.ErrNoResults) {
			return errorJSON(c, http.StatusBadRequest, err.Error())
		}
		s.logger.Error("export failed", "format", req.Format, "error", err)
		return errorJSON(c, http.StatusInternalServerError, "export failed")
	}

	c.Response().Header().Set(echo.HeaderContentDisposition, fmt.Sprintf("attachment; filename=%q", doc.Filename))
	return c.Blob(http.StatusOK, doc.ContentType, doc.Data)
}
