package server

import (
	"database/sql"
	"net/http"

	"audit-service/internal/service"

	log "github.com/sirupsen/logrus"

	"github.com/labstack/echo/v4"
)

// envelope is the uniform response body for every audit operation: error is
// null on success, data is null when there is nothing to return.
type envelope struct {
	Error *string     `json:"error"`
	Data  interface{} `json:"data"`
}

type Server struct {
	auditService service.AuditServiceInterface
	db           *sql.DB
}

func NewServer(auditService service.AuditServiceInterface, db *sql.DB) *Server {
	return &Server{
		auditService: auditService,
		db:           db,
	}
}

func (s *Server) Index(c echo.Context) error {
	return c.String(http.StatusOK, "audit-service")
}

func (s *Server) HealthCheck(c echo.Context) error {
	if err := s.db.Ping(); err != nil {
		log.WithField("error", err).Error("Health check failed: database is down")
		return c.JSON(http.StatusServiceUnavailable, map[string]string{
			"status": "unhealthy",
			"error":  "database connection error",
		})
	}
	return c.JSON(http.StatusOK, map[string]string{
		"status": "healthy",
	})
}

func respond(c echo.Context, status int, data interface{}) error {
	return c.JSON(status, envelope{Data: data})
}

func respondError(c echo.Context, status int, msg string) error {
	return c.JSON(status, envelope{Error: &msg})
}
