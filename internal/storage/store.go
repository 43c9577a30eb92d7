// Package storage persists analysis results in a per-tenant sqlite
// measurement store. Writes go through a WAL connection, reads through a
// separate read-only connection; both are opened lazily.
package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/fluorscan/nmr-engine/internal/analysis"
)

const (
	defaultPageSize = 20
	maxPageSize     = 200
)

// Store handles measurement database operations. All write operations are
// atomic; the zero value is not usable, construct with New.
type Store struct {
	dbPath string

	writeDB     *sql.DB
	writeDBOnce sync.Once
	writeDBErr  error

	readDB     *sql.DB
	readDBOnce sync.Once
	readDBErr  error

	closeOnce sync.Once
	closeErr  error
}

// New creates a measurement store backed by the sqlite database at dbPath.
// The schema is initialized on first write.
func New(dbPath string) *Store {
	return &Store{dbPath: dbPath}
}

func (s *Store) getWriteDB() (*sql.DB, error) {
	s.writeDBOnce.Do(func() {
		db, err := sql.Open("sqlite3", fmt.Sprintf("file:%s?_journal_mode=WAL&_synchronous=NORMAL", s.dbPath))
		if err != nil {
			s.writeDBErr = fmt.Errorf("opening write connection: %w", err)
			return
		}

		if _, err = db.Exec(schemaSQL); err != nil {
			_ = db.Close()
			s.writeDBErr = fmt.Errorf("initializing schema: %w", err)
			return
		}

		s.writeDB = db
	})

	return s.writeDB, s.writeDBErr
}

func (s *Store) getReadDB() (*sql.DB, error) {
	s.readDBOnce.Do(func() {
		// The write connection must exist first so the schema is in place.
		if _, err := s.getWriteDB(); err != nil {
			s.readDBErr = err
			return
		}

		db, err := sql.Open("sqlite3", fmt.Sprintf("file:%s?mode=ro", s.dbPath))
		if err != nil {
			s.readDBErr = fmt.Errorf("opening read connection: %w", err)
			return
		}
		s.readDB = db
	})

	return s.readDB, s.readDBErr
}

// Save stores an analysis result for a tenant and returns its measurement
// ID.
func (s *Store) Save(ctx context.Context, companyID string, result *analysis.Result) (id int64, err error) {
	if companyID == "" {
		return 0, errors.New("company ID is required")
	}

	payload, err := json.Marshal(result)
	if err != nil {
		return 0, fmt.Errorf("marshaling result: %w", err)
	}

	db, err := s.getWriteDB()
	if err != nil {
		err = fmt.Errorf("getting write connection: %w", err)
		return
	}

	stmt, err := db.PrepareContext(ctx, insertMeasurementSQL)
	if err != nil {
		err = fmt.Errorf("preparing statement: %w", err)
		return
	}
	defer closeWithError(stmt, &err)

	res, err := stmt.ExecContext(ctx,
		companyID,
		result.Filename,
		result.SampleName,
		result.Timestamp.UTC(),
		result.QualityScore,
		result.Analysis.FluorPercentage,
		result.Analysis.PifasPercentage,
		result.Analysis.PifasConcentration,
		string(payload),
	)
	if err != nil {
		err = fmt.Errorf("inserting measurement: %w", err)
		return
	}

	id, err = res.LastInsertId()
	if err != nil {
		err = fmt.Errorf("getting measurement ID: %w", err)
	}
	return
}

// Measurement retrieves one stored result by ID, scoped to a tenant.
func (s *Store) Measurement(ctx context.Context, id int64, companyID string) (m *Measurement, err error) {
	db, err := s.getReadDB()
	if err != nil {
		err = fmt.Errorf("getting read connection: %w", err)
		return
	}

	stmt, err := db.PrepareContext(ctx, selectMeasurementSQL)
	if err != nil {
		err = fmt.Errorf("preparing statement: %w", err)
		return
	}
	defer closeWithError(stmt, &err)

	var stored Measurement
	var payload string
	if err = stmt.QueryRowContext(ctx, id, companyID).Scan(&stored.ID, &stored.CompanyID, &stored.CreatedAt, &payload); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			err = &NotFoundError{ID: id, CompanyID: companyID}
			return
		}
		err = fmt.Errorf("scanning measurement: %w", err)
		return
	}

	var result analysis.Result
	if err = json.Unmarshal([]byte(payload), &result); err != nil {
		err = fmt.Errorf("unmarshaling stored result: %w", err)
		return
	}

	stored.Result = &result
	return &stored, nil
}

// History returns a page of measurement summaries for a tenant, newest
// first, optionally filtered by a search term matched against filename and
// sample name.
func (s *Store) History(ctx context.Context, companyID string, page, pageSize int, search string) (p *Page, err error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = defaultPageSize
	}
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}
	pattern := "%" + search + "%"

	db, err := s.getReadDB()
	if err != nil {
		err = fmt.Errorf("getting read connection: %w", err)
		return
	}

	var total int64
	if err = db.QueryRowContext(ctx, countSummariesSQL, companyID, pattern, pattern).Scan(&total); err != nil {
		err = fmt.Errorf("counting measurements: %w", err)
		return
	}

	rows, err := db.QueryContext(ctx, selectSummariesSQL, companyID, pattern, pattern, pageSize, (page-1)*pageSize)
	if err != nil {
		err = fmt.Errorf("querying measurements: %w", err)
		return
	}
	defer closeWithError(rows, &err)

	result := Page{
		Items:    []Summary{},
		Total:    total,
		Page:     page,
		PageSize: pageSize,
	}
	for rows.Next() {
		var item Summary
		var createdAt time.Time
		if err = rows.Scan(
			&item.ID,
			&item.Filename,
			&item.SampleName,
			&createdAt,
			&item.QualityScore,
			&item.FluorPercentage,
			&item.PifasPercentage,
			&item.PifasConcentration,
		); err != nil {
			err = fmt.Errorf("scanning summary: %w", err)
			return
		}
		item.CreatedAt = createdAt.UTC()
		result.Items = append(result.Items, item)
	}
	if err = rows.Err(); err != nil {
		err = fmt.Errorf("iterating summaries: %w", err)
		return
	}

	return &result, nil
}

// Delete removes one measurement for a tenant. Returns NotFoundError when
// the measurement does not exist or belongs to another tenant.
func (s *Store) Delete(ctx context.Context, id int64, companyID string) error {
	db, err := s.getWriteDB()
	if err != nil {
		return fmt.Errorf("getting write connection: %w", err)
	}

	res, err := db.ExecContext(ctx, deleteMeasurementSQL, id, companyID)
	if err != nil {
		return fmt.Errorf("deleting measurement: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("getting affected rows: %w", err)
	}
	if affected == 0 {
		return &NotFoundError{ID: id, CompanyID: companyID}
	}
	return nil
}

// DeleteAll removes every measurement for a tenant and returns how many
// were removed.
func (s *Store) DeleteAll(ctx context.Context, companyID string) (int64, error) {
	db, err := s.getWriteDB()
	if err != nil {
		return 0, fmt.Errorf("getting write connection: %w", err)
	}

	res, err := db.ExecContext(ctx, deleteAllMeasurementsSQL, companyID)
	if err != nil {
		return 0, fmt.Errorf("deleting measurements: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("getting affected rows: %w", err)
	}
	return affected, nil
}

// Close releases all database connections. It is safe to call multiple
// times.
func (s *Store) Close() error {
	s.closeOnce.Do(func() {
		var writeErr, readErr error

		if s.writeDB != nil {
			writeErr = s.writeDB.Close()
			s.writeDB = nil
		}
		if s.readDB != nil {
			readErr = s.readDB.Close()
			s.readDB = nil
		}

		switch {
		case writeErr != nil && readErr != nil:
			s.closeErr = errors.Join(writeErr, readErr)
		case writeErr != nil:
			s.closeErr = writeErr
		case readErr != nil:
			s.closeErr = readErr
		}
	})

	return s.closeErr
}

func closeWithError(cl interface{ Close() error }, err *error) {
	if cErr := cl.Close(); cErr != nil && *err == nil {
		*err = cErr
	}
}
