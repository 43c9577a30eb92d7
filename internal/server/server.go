// Package server exposes the analysis engine over an HTTP API. Every
// data-touching route is scoped to a company ID; requests without one are
// rejected before any work happens.
package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/fluorscan/nmr-engine/internal/analysis"
	"github.com/fluorscan/nmr-engine/internal/compounds"
	"github.com/fluorscan/nmr-engine/internal/regions"
	"github.com/fluorscan/nmr-engine/internal/spectrum"
	"github.com/fluorscan/nmr-engine/internal/storage"
)

const (
	defaultBatchWorkers = 4
	defaultFileTimeout  = 30 * time.Second
)

// WithLogger sets the request-handling logger.
func WithLogger(logger *slog.Logger) func(*Controller) {
	return func(s *Controller) {
		s.logger = logger
	}
}

// WithDefaultParameters overrides the analysis parameters applied when a
// request carries none.
func WithDefaultParameters(p analysis.Parameters) func(*Controller) {
	return func(s *Controller) {
		s.defaults = p
	}
}

// WithBatchWorkers bounds batch concurrency.
func WithBatchWorkers(n int) func(*Controller) {
	return func(s *Controller) {
		s.batchWorkers = n
	}
}

// WithFileTimeout sets the per-file analysis budget for batch requests.
func WithFileTimeout(d time.Duration) func(*Controller) {
	return func(s *Controller) {
		s.fileTimeout = d
	}
}

// Controller wires the analysis pipeline, the measurement store and the
// reference tables to the HTTP routes.
type Controller struct {
	echo         *echo.Echo
	store        *storage.Store
	analyzer     *analysis.Analyzer
	classifier   *regions.Classifier
	matcher      *compounds.Matcher
	defaults     analysis.Parameters
	batchWorkers int
	fileTimeout  time.Duration
	logger       *slog.Logger
}

// New creates the controller and registers all routes.
func New(store *storage.Store, analyzer *analysis.Analyzer, classifier *regions.Classifier, matcher *compounds.Matcher, options ...func(*Controller)) *Controller {
	s := Controller{
		echo:         echo.New(),
		store:        store,
		analyzer:     analyzer,
		classifier:   classifier,
		matcher:      matcher,
		defaults:     analysis.DefaultParameters(),
		batchWorkers: defaultBatchWorkers,
		fileTimeout:  defaultFileTimeout,
		logger:       slog.Default(),
	}
	for _, option := range options {
		option(&s)
	}

	s.echo.HideBanner = true
	s.echo.HidePort = true
	s.echo.Use(middleware.Recover())

	g := s.echo.Group("/api")
	g.POST("/analyze", s.handleAnalyze)
	g.POST("/batch", s.handleBatch)
	g.GET("/history", s.handleHistory)
	g.GET("/measurements/:id", s.handleMeasurement)
	g.DELETE("/measurements/clear-all", s.handleClearAll)
	g.DELETE("/measurements/:id", s.handleDelete)
	g.POST("/export", s.handleExport)
	g.GET("/config", s.handleConfig)

	return &s
}

// Handler returns the root HTTP handler, mainly for tests.
func (s *Controller) Handler() http.Handler {
	return s.echo
}

// Start serves requests on addr until Shutdown is called.
func (s *Controller) Start(addr string) error {
	s.logger.Info("http server listening", slog.String("addr", addr))
	if err := s.echo.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops the server gracefully.
func (s *Controller) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}

// errorJSON writes the uniform error envelope.
func errorJSON(c echo.Context, status int, message string) error {
	return c.JSON(status, map[string]string{"error": message})
}

// requestCompany extracts the tenant from the form or query string. Both
// the company_id and the shorter company spelling are accepted, as clients
// use either.
func requestCompany(c echo.Context) string {
	if v := c.FormValue("company_id"); v != "" {
		return v
	}
	if v := c.QueryParam("company_id"); v != "" {
		return v
	}
	return c.QueryParam("company")
}

// analysisStatus maps pipeline errors to HTTP statuses: unusable input data
// is the client's 400, semantically invalid parameters are 422, everything
// else is a server fault.
func analysisStatus(err error) int {
	var invalid *analysis.InvalidParametersError
	if errors.As(err, &invalid) {
		return http.StatusUnprocessableEntity
	}

	var malformed *spectrum.MalformedInputError
	var insufficient *spectrum.InsufficientDataError
	if errors.As(err, &malformed) || errors.As(err, &insufficient) {
		return http.StatusBadRequest
	}

	return http.StatusInternalServerError
}
