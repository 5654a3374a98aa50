package service

import (
	"context"
	"fmt"

	"audit-service/internal/domain"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

type AuditRepository interface {
	Insert(ctx context.Context, record *domain.AuditRecord) (*domain.AuditRecord, error)
	Search(ctx context.Context, q domain.SearchQuery) ([]domain.AuditRecord, error)
	GetByID(ctx context.Context, appID, auditID string) (*domain.AuditRecord, error)
	Update(ctx context.Context, auditID string, req domain.UpdateAuditRequest) (*domain.AuditRecord, error)
	Delete(ctx context.Context, auditID string) (*domain.AuditRecord, error)
}

// RecordPublisher fans out newly persisted records to downstream consumers.
type RecordPublisher interface {
	Publish(ctx context.Context, record *domain.AuditRecord) error
}

type AuditServiceInterface interface {
	SearchAudits(ctx context.Context, q domain.SearchQuery) ([]domain.AuditRecord, error)
	CreateAudit(ctx context.Context, appID string, req domain.CreateAuditRequest) (*domain.AuditRecord, error)
	GetAudit(ctx context.Context, appID, auditID string) (*domain.AuditRecord, error)
	UpdateAudit(ctx context.Context, auditID string, req domain.UpdateAuditRequest) (*domain.AuditRecord, error)
	DeleteAudit(ctx context.Context, auditID string) (*domain.AuditRecord, error)
}

type AuditService struct {
	auditRepo AuditRepository
	publisher RecordPublisher

	// intersectDates keeps both created bounds when start and end are
	// supplied together. Off by default: the historical behavior is that
	// the end bound replaces the start bound.
	intersectDates bool
}

func NewAuditService(auditRepo AuditRepository, publisher RecordPublisher, intersectDates bool) *AuditService {
	return &AuditService{
		auditRepo:      auditRepo,
		publisher:      publisher,
		intersectDates: intersectDates,
	}
}

func (s *AuditService) SearchAudits(ctx context.Context, q domain.SearchQuery) ([]domain.AuditRecord, error) {
	if q.AppID == "" {
		return nil, domain.ErrMissingAppID
	}

	if q.Limit < 0 {
		q.Limit = domain.DefaultSearchLimit
	}
	if q.Limit > domain.MaxSearchLimit {
		q.Limit = domain.MaxSearchLimit
	}
	if q.Offset < 0 {
		q.Offset = 0
	}
	if q.Offset > domain.MaxSearchOffset {
		q.Offset = 0
	}

	if q.CreatedBefore != nil && !s.intersectDates {
		q.CreatedAfter = nil
	}

	records, err := s.auditRepo.Search(ctx, q)
	if err != nil {
		log.WithError(err).WithField("app_id", q.AppID).Error("Failed to search audit records")
		return nil, err
	}
	return records, nil
}

func (s *AuditService) CreateAudit(ctx context.Context, appID string, req domain.CreateAuditRequest) (*domain.AuditRecord, error) {
	if appID == "" {
		return nil, domain.ErrMissingAppID
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}

	record := &domain.AuditRecord{
		ID:         uuid.NewString(),
		AppID:      appID,
		EntityType: req.EntityType,
		EntityID:   req.EntityID,
		UserID:     req.UserID,
		Change:     req.Change,
		Created:    req.Created,
	}

	stored, err := s.auditRepo.Insert(ctx, record)
	if err != nil {
		return nil, fmt.Errorf("failed to create audit record: %w", err)
	}

	log.WithFields(log.Fields{
		"audit_id": stored.ID,
		"app_id":   stored.AppID,
	}).Info("Audit record created")

	if s.publisher != nil {
		if err := s.publisher.Publish(ctx, stored); err != nil {
			// Fan-out is best effort; the record is already persisted.
			log.WithError(err).WithField("audit_id", stored.ID).Warn("Failed to publish audit record")
		}
	}

	return stored, nil
}

func (s *AuditService) GetAudit(ctx context.Context, appID, auditID string) (*domain.AuditRecord, error) {
	if appID == "" {
		return nil, domain.ErrMissingAppID
	}

	record, err := s.auditRepo.GetByID(ctx, appID, auditID)
	if err != nil {
		return nil, fmt.Errorf("failed to get audit record: %w", err)
	}
	return record, nil
}

// UpdateAudit matches by auditID alone, so a record can be updated through
// any application path.
// TODO: scope update and delete by app_id the way retrieve is scoped.
func (s *AuditService) UpdateAudit(ctx context.Context, auditID string, req domain.UpdateAuditRequest) (*domain.AuditRecord, error) {
	previous, err := s.auditRepo.Update(ctx, auditID, req)
	if err != nil {
		log.WithError(err).WithField("audit_id", auditID).Error("Failed to update audit record")
		return nil, err
	}
	return previous, nil
}

func (s *AuditService) DeleteAudit(ctx context.Context, auditID string) (*domain.AuditRecord, error) {
	deleted, err := s.auditRepo.Delete(ctx, auditID)
	if err != nil {
		log.WithError(err).WithField("audit_id", auditID).Error("Failed to delete audit record")
		return nil, err
	}
	return deleted, nil
}
