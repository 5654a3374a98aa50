package main

import (
	"database/sql"
	"net/http"
	"os"

	"audit-service/internal/config"
	"audit-service/internal/publisher"
	"audit-service/internal/repository"
	"audit-service/internal/server"
	"audit-service/internal/service"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"

	"github.com/joho/godotenv"
	_ "github.com/lib/pq"

	log "github.com/sirupsen/logrus"

	"github.com/labstack/echo/v4"
)

func main() {
	log.SetFormatter(&log.TextFormatter{
		FullTimestamp: true,
	})

	log.SetOutput(os.Stdout)
	log.SetLevel(log.DebugLevel)

	if err := godotenv.Load(); err != nil {
		log.Warn("Could not load .env file.")
	}

	cfg, err := config.Load()
	if err != nil {
		log.WithField("error", err).Fatal("Could not load configuration")
	}

	log.Info("Starting database migration...")
	m, err := migrate.New(cfg.DB.MigrationsPath, cfg.DB.URL)
	if err != nil {
		log.WithField("error", err).Fatal("Could not create migrate instance")
	}

	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		log.WithField("error", err).Fatal("Could not apply migration")
	}
	log.Info("Database migration finished successfully.")

	db, err := sql.Open("postgres", cfg.DB.URL)
	if err != nil {
		log.WithField("error", err).Fatal("Could not connect to the database")
	}
	defer db.Close()

	db.SetMaxOpenConns(cfg.DB.MaxOpenConns)
	db.SetMaxIdleConns(cfg.DB.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.DB.ConnMaxLifetime)
	db.SetConnMaxIdleTime(cfg.DB.ConnMaxIdleTime)

	if err := db.Ping(); err != nil {
		log.WithField("error", err).Fatal("Could not ping the database")
	}
	log.Info("Successfully connected to the PostgreSQL database.")

	// Create repository
	auditRepository := repository.NewPostgresAuditRepository(db, cfg.DB.Table)

	// Optional Kafka fan-out of created records
	var recordPublisher service.RecordPublisher
	if cfg.Kafka.Brokers != "" {
		auditPublisher, err := publisher.NewAuditPublisher(cfg.Kafka.Brokers, cfg.Kafka.Topic)
		if err != nil {
			log.WithField("error", err).Fatal("Could not create audit record publisher")
		}
		defer auditPublisher.Close()
		recordPublisher = auditPublisher
	} else {
		log.Info("KAFKA_BROKERS not set, audit record fan-out disabled")
	}

	// Create service
	auditService := service.NewAuditService(auditRepository, recordPublisher, cfg.Search.DateRangeIntersect)

	// Create server
	srv := server.NewServer(auditService, db)

	// Setup Echo
	e := echo.New()

	e.GET("/", srv.Index)
	e.GET("/health", srv.HealthCheck)

	// Audit record endpoints, scoped by owning application
	audits := e.Group("/audits")
	audits.GET("/:app_id", srv.SearchAudits)
	audits.POST("/:app_id", srv.CreateAudit)
	audits.GET("/:app_id/:audit_id", srv.GetAudit)
	audits.PUT("/:app_id/:audit_id", srv.UpdateAudit)
	audits.DELETE("/:app_id/:audit_id", srv.DeleteAudit)

	log.WithField("port", cfg.HTTP.Port).Info("Audit service is starting with Echo")

	if err := e.Start(":" + cfg.HTTP.Port); err != nil && err != http.ErrServerClosed {
		log.WithField("error", err).Fatal("Echo server failed to start")
	}
}
