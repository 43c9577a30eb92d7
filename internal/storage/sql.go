package storage

import (
	_ "embed"
)

//go:embed schema.sql
var schemaSQL string

const (
	insertMeasurementSQL = `
INSERT INTO measurements (company_id,
                          filename,
                          sample_name,
                          created_at,
                          quality_score,
                          fluor_percentage,
                          pifas_percentage,
                          pifas_concentration,
                          result_json)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`

	selectMeasurementSQL = `
SELECT
    id,
    company_id,
    created_at,
    result_json
FROM measurements
WHERE
    id = ?
    AND company_id = ?`

	selectSummariesSQL = `
SELECT
    id,
    filename,
    sample_name,
    created_at,
    quality_score,
    fluor_percentage,
    pifas_percentage,
    pifas_concentration
FROM measurements
WHERE
    company_id = ?
    AND (filename LIKE ? OR sample_name LIKE ?)
ORDER BY created_at DESC, id DESC
LIMIT ? OFFSET ?`

	countSummariesSQL = `
SELECT COUNT(*)
FROM measurements
WHERE
    company_id = ?
    AND (filename LIKE ? OR sample_name LIKE ?)`

	deleteMeasurementSQL = `
DELETE FROM measurements
WHERE
    id = ?
    AND company_id = ?`

	deleteAllMeasurementsSQL = `
DELETE FROM measurements
WHERE
    company_id = ?`
)
