package storage

import (
	"fmt"
	"time"

	"github.com/fluorscan/nmr-engine/internal/analysis"
)

// Measurement is a stored analysis result with its storage identity.
type Measurement struct {
	ID        int64            `json:"id"`
	CompanyID string           `json:"company_id"`
	CreatedAt time.Time        `json:"created_at"`
	Result    *analysis.Result `json:"result"`
}

// Summary is the lightweight listing record for history views; the full
// result JSON is not loaded.
type Summary struct {
	ID                 int64     `json:"id"`
	Filename           string    `json:"filename"`
	SampleName         string    `json:"sample_name"`
	CreatedAt          time.Time `json:"created_at"`
	QualityScore       float64   `json:"quality_score"`
	FluorPercentage    float64   `json:"fluor_percentage"`
	PifasPercentage    float64   `json:"pifas_percentage"`
	PifasConcentration float64   `json:"pifas_concentration"`
}

// Page is one page of history results.
type Page struct {
	Items    []Summary `json:"items"`
	Total    int64     `json:"total"`
	Page     int       `json:"page"`
	PageSize int       `json:"page_size"`
}

// NotFoundError reports a measurement lookup miss. A tenant mismatch
// reports the same way as a missing row.
type NotFoundError struct {
	ID        int64
	CompanyID string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("measurement %d not found for company %q", e.ID, e.CompanyID)
}
