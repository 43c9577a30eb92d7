package server

import (
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/fluorscan/nmr-engine/internal/analysis"
)

type analyzeResponse struct {
	ID     int64            `json:"id"`
	Result *analysis.Result `json:"result"`
}

// batchItem extends the per-file outcome with the storage identity of
// successfully saved results.
type batchItem struct {
	analysis.Item
	MeasurementID int64 `json:"measurement_id,omitempty"`
}

type batchResponse struct {
	Items []batchItem `json:"items"`
}

// handleAnalyze runs the pipeline on one uploaded spectrum and persists the
// result.
func (s *Controller) handleAnalyze(c echo.Context) error {
	companyID := requestCompany(c)
	if companyID == "" {
		return errorJSON(c, http.StatusBadRequest, "no company selected")
	}

	fh, err := c.FormFile("file")
	if err != nil {
		return errorJSON(c, http.StatusBadRequest, "missing spectrum file")
	}

	params, err := s.requestParameters(c)
	if err != nil {
		return errorJSON(c, http.StatusUnprocessableEntity, err.Error())
	}

	f, err := fh.Open()
	if err != nil {
		return errorJSON(c, http.StatusBadRequest, fmt.Sprintf("opening upload: %v", err))
	}
	defer f.Close()

	ctx := c.Request().Context()
	result, err := s.analyzer.Analyze(ctx, fh.Filename, f, params)
	if err != nil {
		status := analysisStatus(err)
		if status == http.StatusInternalServerError {
			s.logger.Error("analysis failed", "filename", fh.Filename, "error", err)
			return errorJSON(c, status, "analysis failed")
		}
		return errorJSON(c, status, err.Error())
	}

	id, err := s.store.Save(ctx, companyID, result)
	if err != nil {
		s.logger.Error("saving measurement failed", "filename", fh.Filename, "error", err)
		return errorJSON(c, http.StatusInternalServerError, "saving measurement failed")
	}

	return c.JSON(http.StatusOK, analyzeResponse{ID: id, Result: result})
}

// handleBatch analyzes several uploads in one request. The response is
// always 200: each file reports its own result or error, and a failed file
// never hides the others.
func (s *Controller) handleBatch(c echo.Context) error {
	companyID := requestCompany(c)
	if companyID == "" {
		return errorJSON(c, http.StatusBadRequest, "no company selected")
	}

	form, err := c.MultipartForm()
	if err != nil {
		return errorJSON(c, http.StatusBadRequest, fmt.Sprintf("reading multipart form: %v", err))
	}
	uploads := form.File["files"]
	if len(uploads) == 0 {
		return errorJSON(c, http.StatusBadRequest, "no spectrum files uploaded")
	}

	params, err := s.requestParameters(c)
	if err != nil {
		return errorJSON(c, http.StatusUnprocessableEntity, err.Error())
	}

	files := make([]analysis.File, 0, len(uploads))
	for _, fh := range uploads {
		data, err := readUpload(fh)
		if err != nil {
			return errorJSON(c, http.StatusBadRequest, fmt.Sprintf("reading %q: %v", fh.Filename, err))
		}
		files = append(files, analysis.File{Name: fh.Filename, Data: data})
	}

	ctx := c.Request().Context()
	items := s.analyzer.AnalyzeBatch(ctx, files, params,
		analysis.WithWorkers(s.batchWorkers),
		analysis.WithFileTimeout(s.fileTimeout))

	resp := batchResponse{Items: make([]batchItem, len(items))}
	for i, item := range items {
		out := batchItem{Item: item}
		if item.Result != nil {
			id, err := s.store.Save(ctx, companyID, item.Result)
			if err != nil {
				s.logger.Error("saving batch measurement failed", "filename", item.Filename, "error", err)
				out.Result = nil
				out.Error = "saving measurement failed"
			} else {
				out.MeasurementID = id
			}
		}
		resp.Items[i] = out
	}

	return c.JSON(http.StatusOK, resp)
}

// requestParameters decodes the optional "parameters" form field, falling
// back to the controller defaults.
func (s *Controller) requestParameters(c echo.Context) (analysis.Parameters, error) {
	raw := c.FormValue("parameters")
	if raw == "" {
		return s.defaults, nil
	}

	params := s.defaults
	dec := json.NewDecoder(strings.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&params); err != nil {
		return analysis.Parameters{}, fmt.Errorf("invalid analysis parameters: %v", err)
	}
	if err := params.Validate(); err != nil {
		return analysis.Parameters{}, err
	}
	return params, nil
}

func readUpload(fh *multipart.FileHeader) ([]byte, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return io.ReadAll(f)
}
