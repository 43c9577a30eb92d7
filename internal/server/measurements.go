package server

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/fluorscan/nmr-engine/internal/storage"
)

// handleHistory lists stored measurements for a tenant, newest first.
func (s *Controller) handleHistory(c echo.Context) error {
	companyID := requestCompany(c)
	if companyID == "" {
		return errorJSON(c, http.StatusBadRequest, "no company selected")
	}

	page, _ := strconv.Atoi(c.QueryParam("page"))
	pageSize, _ := strconv.Atoi(c.QueryParam("page_size"))
	search := c.QueryParam("search")

	result, err := s.store.History(c.Request().Context(), companyID, page, pageSize, search)
	if err != nil {
		s.logger.Error("history query failed", "company", companyID, "error", err)
		return errorJSON(c, http.StatusInternalServerError, "history query failed")
	}

	return c.JSON(http.StatusOK, result)
}

// handleMeasurement returns one stored result including its full payload.
func (s *Controller) handleMeasurement(c echo.Context) error {
	companyID := requestCompany(c)
	if companyID == "" {
		return errorJSON(c, http.StatusBadRequest, "no company selected")
	}

	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return errorJSON(c, http.StatusBadRequest, "invalid measurement ID")
	}

	m, err := s.store.Measurement(c.Request().Context(), id, companyID)
	if err != nil {
		var notFound *storage.NotFoundError
		if errors.As(err, &notFound) {
			return errorJSON(c, http.StatusNotFound, err.Error())
		}
		s.logger.Error("measurement lookup failed", "id", id, "error", err)
		return errorJSON(c, http.StatusInternalServerError, "measurement lookup failed")
	}

	return c.JSON(http.StatusOK, m)
}

// handleDelete removes one measurement.
func (s *Controller) handleDelete(c echo.Context) error {
	companyID := requestCompany(c)
	if companyID == "" {
		return errorJSON(c, http.StatusBadRequest, "no company selected")
	}

	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return errorJSON(c, http.StatusBadRequest, "invalid measurement ID")
	}

	if err := s.store.Delete(c.Request().Context(), id, companyID); err != nil {
		var notFound *storage.NotFoundError
		if errors.As(err, &notFound) {
			return errorJSON(c, http.StatusNotFound, err.Error())
		}
		s.logger.Error("measurement delete failed", "id", id, "error", err)
		return errorJSON(c, http.StatusInternalServerError, "measurement delete failed")
	}

	return c.NoContent(http.StatusNoContent)
}

// handleClearAll removes every measurement of a tenant.
func (s *Controller) handleClearAll(c echo.Context) error {
	companyID := requestCompany(c)
	if companyID == "" {
		return errorJSON(c, http.StatusBadRequest, "no company selected")
	}

	removed, err := s.store.DeleteAll(c.Request().Context(), companyID)
	if err != nil {
		s.logger.Error("clearing measurements failed", "company", companyID, "error", err)
		return errorJSON(c, http.StatusInternalServerError, "clearing measurements failed")
	}

	return c.JSON(http.StatusOK, map[string]int64{"removed": removed})
}
