package server

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"audit-service/internal/domain"

	"github.com/labstack/echo/v4"
	log "github.com/sirupsen/logrus"
)

type createAuditBody struct {
	Data domain.CreateAuditRequest `json:"data"`
}

type updateAuditBody struct {
	Data domain.UpdateAuditRequest `json:"data"`
}

func handleAuditError(err error) (int, string) {
	switch {
	case errors.Is(err, domain.ErrMissingAppID),
		errors.Is(err, domain.ErrMissingEntityType),
		errors.Is(err, domain.ErrMissingEntityID),
		errors.Is(err, domain.ErrMissingUserID),
		errors.Is(err, domain.ErrMissingCreated):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, domain.ErrAuditExists):
		return http.StatusConflict, "audit record already exists"
	default:
		return http.StatusInternalServerError, "internal server error"
	}
}

func (s *Server) SearchAudits(c echo.Context) error {
	q := domain.SearchQuery{
		AppID:      c.Param("app_id"),
		EntityType: c.QueryParam("entity_type"),
		EntityID:   c.QueryParam("entity_id"),
		UserID:     c.QueryParam("user_id"),
		Limit:      domain.DefaultSearchLimit,
	}

	// limit=0 is a valid value and returns zero records, so a supplied
	// integer always passes through untouched; bounds are applied by the
	// service.
	if v := c.QueryParam("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			q.Limit = n
		}
	}
	if v := c.QueryParam("offset"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			q.Offset = n
		}
	}

	if v := c.QueryParam("start_date"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return respondError(c, http.StatusBadRequest, "invalid start_date")
		}
		q.CreatedAfter = &t
	}
	if v := c.QueryParam("end_date"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return respondError(c, http.StatusBadRequest, "invalid end_date")
		}
		q.CreatedBefore = &t
	}

	records, err := s.auditService.SearchAudits(c.Request().Context(), q)
	if err != nil {
		log.WithError(err).WithField("app_id", q.AppID).Error("Failed to search audit records")
		statusCode, errorMsg := handleAuditError(err)
		return respondError(c, statusCode, errorMsg)
	}

	return respond(c, http.StatusOK, records)
}

func (s *Server) CreateAudit(c echo.Context) error {
	appID := c.Param("app_id")

	var body createAuditBody
	if err := c.Bind(&body); err != nil {
		return respondError(c, http.StatusBadRequest, "invalid request body")
	}

	record, err := s.auditService.CreateAudit(c.Request().Context(), appID, body.Data)
	if err != nil {
		log.WithError(err).WithField("app_id", appID).Error("Failed to create audit record")
		statusCode, errorMsg := handleAuditError(err)
		return respondError(c, statusCode, errorMsg)
	}

	return respond(c, http.StatusCreated, record)
}

func (s *Server) GetAudit(c echo.Context) error {
	appID := c.Param("app_id")
	auditID := c.Param("audit_id")

	record, err := s.auditService.GetAudit(c.Request().Context(), appID, auditID)
	if err != nil {
		log.WithError(err).WithField("audit_id", auditID).Error("Failed to get audit record")
		statusCode, errorMsg := handleAuditError(err)
		return respondError(c, statusCode, errorMsg)
	}

	// Absence is not an error: data stays null with a null error.
	if record == nil {
		return respond(c, http.StatusOK, nil)
	}
	return respond(c, http.StatusOK, record)
}

func (s *Server) UpdateAudit(c echo.Context) error {
	auditID := c.Param("audit_id")

	var body updateAuditBody
	if err := c.Bind(&body); err != nil {
		return respondError(c, http.StatusBadRequest, "invalid request body")
	}

	previous, err := s.auditService.UpdateAudit(c.Request().Context(), auditID, body.Data)
	if err != nil {
		log.WithError(err).WithField("audit_id", auditID).Error("Failed to update audit record")
		statusCode, errorMsg := handleAuditError(err)
		return respondError(c, statusCode, errorMsg)
	}

	if previous == nil {
		return respond(c, http.StatusOK, nil)
	}
	return respond(c, http.StatusOK, previous)
}

func (s *Server) DeleteAudit(c echo.Context) error {
	auditID := c.Param("audit_id")

	deleted, err := s.auditService.DeleteAudit(c.Request().Context(), auditID)
	if err != nil {
		log.WithError(err).WithField("audit_id", auditID).Error("Failed to delete audit record")
		statusCode, errorMsg := handleAuditError(err)
		return respondError(c, statusCode, errorMsg)
	}

	if deleted == nil {
		return respond(c, http.StatusOK, nil)
	}
	return respond(c, http.StatusOK, deleted)
}
