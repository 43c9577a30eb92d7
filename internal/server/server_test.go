package server

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fluorscan/nmr-engine/internal/analysis"
	"github.com/fluorscan/nmr-engine/internal/compounds"
	"github.com/fluorscan/nmr-engine/internal/export"
	"github.com/fluorscan/nmr-engine/internal/regions"
	"github.com/fluorscan/nmr-engine/internal/storage"
)

func newTestController(t *testing.T) *Controller {
	t.Helper()

	store := storage.New(filepath.Join(t.TempDir(), "measurements.sqlite"))
	t.Cleanup(func() {
		require.NoError(t, store.Close())
	})

	classifier, err := regions.NewClassifier(regions.Default())
	require.NoError(t, err)
	matcher := compounds.NewMatcher(compounds.Default())
	analyzer := analysis.NewAnalyzer(classifier, matcher)

	return New(store, analyzer, classifier, matcher)
}

// spectrumCSV renders a synthetic spectrum with one Gaussian peak at the
// given shift.
func spectrumCSV(center float64) string {
	var b strings.Builder
	b.WriteString("ppm,intensity\n")
	for ppm := -100.0; ppm <= -76.0; ppm += 0.05 {
		intensity := 1200 * math.Exp(-0.5*math.Pow((ppm-center)/0.3, 2))
		fmt.Fprintf(&b, "%.3f,%.4f\n", ppm, intensity)
	}
	return b.String()
}

type upload struct {
	field    string
	filename string
	data     string
}

func multipartRequest(t *testing.T, target string, fields map[string]string, uploads []upload) *http.Request {
	t.Helper()

	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	for key, value := range fields {
		require.NoError(t, w.WriteField(key, value))
	}
	for _, u := range uploads {
		fw, err := w.CreateFormFile(u.field, u.filename)
		require.NoError(t, err)
		_, err = fw.Write([]byte(u.data))
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())

	req := httptest.NewRequest(http.MethodPost, target, &body)
	req.Header.Set("Content-Type", w.FormDataContentType())
	return req
}

func do(s *Controller, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func TestAnalyzeEndpoint(t *testing.T) {
	s := newTestController(t)

	req := multipartRequest(t, "/api/analyze",
		map[string]string{"company_id": "acme"},
		[]upload{{field: "file", filename: "sample_01.csv", data: spectrumCSV(-88)}})
	rec := do(s, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp struct {
		ID     int64            `json:"id"`
		Result *analysis.Result `json:"result"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Positive(t, resp.ID)
	assert.Equal(t, "sample_01.csv", resp.Result.Filename)
	assert.Equal(t, "sample_01", resp.Result.SampleName)
	require.NotEmpty(t, resp.Result.Peaks)
	assert.InDelta(t, -88, resp.Result.Peaks[0].PPM, 0.1)

	// The wire format carries both spellings of the PFAS share.
	var raw map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &raw))
	analysisJSON := raw["result"].(map[string]any)["analysis"].(map[string]any)
	assert.Contains(t, analysisJSON, "pifas_percentage")
	assert.Contains(t, analysisJSON, "pfas_percentage")
	assert.Equal(t, analysisJSON["pifas_percentage"], analysisJSON["pfas_percentage"])

	// The stored measurement is retrievable for the same tenant only.
	get := httptest.NewRequest(http.MethodGet, fmt.Sprintf("/api/measurements/%d?company_id=acme", resp.ID), nil)
	rec = do(s, get)
	require.Equal(t, http.StatusOK, rec.Code)

	other := httptest.NewRequest(http.MethodGet, fmt.Sprintf("/api/measurements/%d?company_id=other", resp.ID), nil)
	rec = do(s, other)
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAnalyzeEndpoint_NoCompany(t *testing.T) {
	s := newTestController(t)

	req := multipartRequest(t, "/api/analyze", nil,
		[]upload{{field: "file", filename: "sample.csv", data: spectrumCSV(-88)}})
	rec := do(s, req)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	var resp map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Contains(t, resp["error"], "company")
}

func TestAnalyzeEndpoint_MalformedFile(t *testing.T) {
	s := newTestController(t)

	req := multipartRequest(t, "/api/analyze",
		map[string]string{"company_id": "acme"},
		[]upload{{field: "file", filename: "bad.csv", data: "ppm,intensity\n-80,1\n-81,oops\n"}})
	rec := do(s, req)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAnalyzeEndpoint_InvalidParameters(t *testing.T) {
	s := newTestController(t)

	req := multipartRequest(t, "/api/analyze",
		map[string]string{
			"company_id": "acme",
			"parameters": `{"fluor_range":{"min":0,"max":-250}}`,
		},
		[]upload{{field: "file", filename: "sample.csv", data: spectrumCSV(-88)}})
	rec := do(s, req)
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestBatchEndpoint(t *testing.T) {
	s := newTestController(t)

	req := multipartRequest(t, "/api/batch",
		map[string]string{"company_id": "acme"},
		[]upload{
			{field: "files", filename: "a.csv", data: spectrumCSV(-81)},
			{field: "files", filename: "broken.csv", data: "ppm,intensity\n-80,1\n-81,oops\n"},
			{field: "files", filename: "b.csv", data: spectrumCSV(-95)},
		})
	rec := do(s, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp struct {
		Items []struct {
			ID            string           `json:"id"`
			Filename      string           `json:"filename"`
			Result        *analysis.Result `json:"result"`
			Error         string           `json:"error"`
			MeasurementID int64            `json:"measurement_id"`
		} `json:"items"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Items, 3)

	// Input order is preserved and the broken file fails alone.
	assert.Equal(t, "a.csv", resp.Items[0].Filename)
	assert.Equal(t, "broken.csv", resp.Items[1].Filename)
	assert.Equal(t, "b.csv", resp.Items[2].Filename)

	for _, idx := range []int{0, 2} {
		item := resp.Items[idx]
		assert.NotEmpty(t, item.ID)
		assert.Empty(t, item.Error)
		require.NotNil(t, item.Result)
		assert.Positive(t, item.MeasurementID)
	}
	assert.Nil(t, resp.Items[1].Result)
	assert.NotEmpty(t, resp.Items[1].Error)
	assert.Zero(t, resp.Items[1].MeasurementID)

	// Both successes landed in history.
	hist := httptest.NewRequest(http.MethodGet, "/api/history?company_id=acme", nil)
	rec = do(s, hist)
	require.Equal(t, http.StatusOK, rec.Code)

	var page storage.Page
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &page))
	assert.EqualValues(t, 2, page.Total)
}

func TestHistoryEndpoint_NoCompany(t *testing.T) {
	s := newTestController(t)

	rec := do(s, httptest.NewRequest(http.MethodGet, "/api/history", nil))
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestDeleteEndpoints(t *testing.T) {
	s := newTestController(t)

	req := multipartRequest(t, "/api/analyze",
		map[string]string{"company_id": "acme"},
		[]upload{{field: "file", filename: "sample.csv", data: spectrumCSV(-88)}})
	rec := do(s, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp analyzeResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))

	del := httptest.NewRequest(http.MethodDelete, fmt.Sprintf("/api/measurements/%d?company_id=acme", resp.ID), nil)
	rec = do(s, del)
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = do(s, httptest.NewRequest(http.MethodDelete, fmt.Sprintf("/api/measurements/%d?company_id=acme", resp.ID), nil))
	require.Equal(t, http.StatusNotFound, rec.Code)

	// Clear-all reports how many rows went away.
	req = multipartRequest(t, "/api/analyze",
		map[string]string{"company_id": "acme"},
		[]upload{{field: "file", filename: "again.csv", data: spectrumCSV(-88)}})
	require.Equal(t, http.StatusOK, do(s, req).Code)

	rec = do(s, httptest.NewRequest(http.MethodDelete, "/api/measurements/clear-all?company_id=acme", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var cleared map[string]int64
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &cleared))
	assert.EqualValues(t, 1, cleared["removed"])
}

func TestExportEndpoint(t *testing.T) {
	s := newTestController(t)

	// Analyze once to obtain a realistic result for the export body.
	req := multipartRequest(t, "/api/analyze",
		map[string]string{"company_id": "acme"},
		[]upload{{field: "file", filename: "sample.csv", data: spectrumCSV(-88)}})
	rec := do(s, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp analyzeResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))

	body, err := json.Marshal(export.Request{
		Type:    export.TypeSingle,
		Format:  export.FormatCSV,
		Results: []*analysis.Result{resp.Result},
	})
	require.NoError(t, err)

	exportReq := httptest.NewRequest(http.MethodPost, "/api/export", bytes.NewReader(body))
	exportReq.Header.Set("Content-Type", "application/json")
	rec = do(s, exportReq)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/csv")
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "attachment")
	assert.Contains(t, rec.Body.String(), "pifas_percentage")

	// DOCX is refused, not half-rendered.
	body, err = json.Marshal(export.Request{
		Type:    export.TypeSingle,
		Format:  export.FormatDOCX,
		Results: []*analysis.Result{resp.Result},
	})
	require.NoError(t, err)

	exportReq = httptest.NewRequest(http.MethodPost, "/api/export", bytes.NewReader(body))
	exportReq.Header.Set("Content-Type", "application/json")
	rec = do(s, exportReq)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestConfigEndpoint(t *testing.T) {
	s := newTestController(t)

	rec := do(s, httptest.NewRequest(http.MethodGet, "/api/config", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp configResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, analysis.DefaultParameters(), resp.AnalysisParameters)
	assert.Len(t, resp.Regions, len(regions.Default()))
	assert.Equal(t, len(compounds.Default()), resp.CompoundCount)
	assert.Contains(t, resp.ExportFormats, "csv")
}
