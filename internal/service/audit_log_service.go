package service

import (
	"context"
	"encoding/json"
	"net/http"
	"reflect"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/onepwr/procurement-api/internal/auth"
	"github.com/onepwr/procurement-api/internal/domain"
	"github.com/onepwr/procurement-api/internal/repository"
	"go.uber.org/zap"
)

// AuditLogService records who did what to which entity. Writes are
// best-effort from the caller's perspective; a failed audit write is logged
// but never fails the mutation it describes.
type AuditLogService struct {
	auditRepo *repository.AuditLogRepository
	logger    *zap.Logger
}

// NewAuditLogService creates a new audit log service
func NewAuditLogService(auditRepo *repository.AuditLogRepository, logger *zap.Logger) *AuditLogService {
	return &AuditLogService{
		auditRepo: auditRepo,
		logger:    logger,
	}
}

// LogEntry represents the input for creating an audit log entry
type LogEntry struct {
	Action         domain.AuditAction
	EntityType     string
	EntityID       *uuid.UUID
	EntityName     string
	OrganizationID string
	OldValues      interface{}
	NewValues      interface{}
}

// Log creates an audit log entry from context and request
func (s *AuditLogService) Log(ctx context.Context, r *http.Request, entry LogEntry) error {
	auditLog := &domain.AuditLog{
		Action:         entry.Action,
		EntityType:     entry.EntityType,
		EntityID:       entry.EntityID,
		EntityName:     entry.EntityName,
		OrganizationID: entry.OrganizationID,
		PerformedAt:    time.Now().UTC(),
	}

	if userCtx, ok := auth.FromContext(ctx); ok && userCtx != nil {
		auditLog.UserID = userCtx.UserID.String()
		auditLog.UserEmail = userCtx.Email
		auditLog.UserName = userCtx.DisplayName
	}

	if r != nil {
		auditLog.IPAddress = s.getClientIP(r)
		auditLog.UserAgent = r.UserAgent()
		auditLog.RequestID = r.Header.Get("X-Request-ID")
	}

	// "null" keeps the JSONB column valid when there is nothing to diff
	auditLog.Changes = "null"
	if entry.OldValues != nil || entry.NewValues != nil {
		changes := s.calculateChanges(entry.OldValues, entry.NewValues)
		if changesJSON, err := json.Marshal(changes); err == nil {
			auditLog.Changes = string(changesJSON)
		}
	}

	if err := s.auditRepo.Create(ctx, auditLog); err != nil {
		s.logger.Error("failed to create audit log",
			zap.String("action", string(entry.Action)),
			zap.String("entity_type", entry.EntityType),
			zap.Error(err))
		return err
	}
	return nil
}

// LogCreate logs a create operation
func (s *AuditLogService) LogCreate(ctx context.Context, r *http.Request, entityType string, entityID uuid.UUID, entityName string, newValues interface{}, orgID string) error {
	return s.Log(ctx, r, LogEntry{
		Action:         domain.AuditActionCreate,
		EntityType:     entityType,
		EntityID:       &entityID,
		EntityName:     entityName,
		OrganizationID: orgID,
		NewValues:      newValues,
	})
}

// LogUpdate logs an update operation
func (s *AuditLogService) LogUpdate(ctx context.Context, r *http.Request, entityType string, entityID uuid.UUID, entityName string, oldValues, newValues interface{}, orgID string) error {
	return s.Log(ctx, r, LogEntry{
		Action:         domain.AuditActionUpdate,
		EntityType:     entityType,
		EntityID:       &entityID,
		EntityName:     entityName,
		OrganizationID: orgID,
		OldValues:      oldValues,
		NewValues:      newValues,
	})
}

// LogDelete logs a delete operation
func (s *AuditLogService) LogDelete(ctx context.Context, r *http.Request, entityType string, entityID uuid.UUID, entityName string, oldValues interface{}, orgID string) error {
	return s.Log(ctx, r, LogEntry{
		Action:         domain.AuditActionDelete,
		EntityType:     entityType,
		EntityID:       &entityID,
		EntityName:     entityName,
		OrganizationID: orgID,
		OldValues:      oldValues,
	})
}

// LogTransition logs a workflow status transition
func (s *AuditLogService) LogTransition(ctx context.Context, r *http.Request, prID uuid.UUID, prNumber string, from, to domain.PRStatus, orgID string) error {
	return s.Log(ctx, r, LogEntry{
		Action:         domain.AuditActionTransition,
		EntityType:     "PurchaseRequest",
		EntityID:       &prID,
		EntityName:     prNumber,
		OrganizationID: orgID,
		OldValues:      map[string]interface{}{"status": from},
		NewValues:      map[string]interface{}{"status": to},
	})
}

// AuditLogQueryParams represents query parameters for listing audit logs
type AuditLogQueryParams struct {
	UserID         string
	Action         *domain.AuditAction
	EntityType     string
	EntityID       *uuid.UUID
	OrganizationID string
	StartTime      *time.Time
	EndTime        *time.Time
	Page           int
	PageSize       int
}

// List retrieves audit logs with filters. Non-global callers are pinned to
// their own organization.
func (s *AuditLogService) List(ctx context.Context, params AuditLogQueryParams) ([]domain.AuditLog, int64, error) {
	if scope := auth.GetEffectiveOrganizationFilter(ctx); scope != "" {
		params.OrganizationID = scope
	}

	filter := &repository.AuditLogFilter{
		UserID:         params.UserID,
		Action:         params.Action,
		EntityType:     params.EntityType,
		EntityID:       params.EntityID,
		OrganizationID: params.OrganizationID,
		StartTime:      params.StartTime,
		EndTime:        params.EndTime,
	}
	return s.auditRepo.List(ctx, filter, params.Page, params.PageSize)
}

// GetByID retrieves a specific audit log entry
func (s *AuditLogService) GetByID(ctx context.Context, id uuid.UUID) (*domain.AuditLog, error) {
	return s.auditRepo.GetByID(ctx, id)
}

// GetByEntity retrieves audit logs for a specific entity
func (s *AuditLogService) GetByEntity(ctx context.Context, entityType string, entityID uuid.UUID, limit int) ([]domain.AuditLog, error) {
	return s.auditRepo.ListByEntity(ctx, entityType, entityID, limit)
}

// GetByUser retrieves audit logs for a specific user's actions
func (s *AuditLogService) GetByUser(ctx context.Context, userID string, limit int) ([]domain.AuditLog, error) {
	return s.auditRepo.ListByUser(ctx, userID, limit)
}

// GetStats returns audit log statistics for a time range
func (s *AuditLogService) GetStats(ctx context.Context, start, end time.Time) (map[domain.AuditAction]int64, error) {
	return s.auditRepo.CountByAction(ctx, start, end)
}

// CleanupOldLogs removes logs older than the specified retention period
func (s *AuditLogService) CleanupOldLogs(ctx context.Context, retentionDays int) (int64, error) {
	before := time.Now().AddDate(0, 0, -retentionDays)
	count, err := s.auditRepo.DeleteOlderThan(ctx, before)
	if err != nil {
		s.logger.Error("failed to cleanup old audit logs",
			zap.Int("retention_days", retentionDays),
			zap.Error(err))
		return 0, err
	}

	if count > 0 {
		s.logger.Info("cleaned up old audit logs",
			zap.Int64("deleted_count", count),
			zap.Int("retention_days", retentionDays))
	}
	return count, nil
}

// calculateChanges determines what changed between old and new values
func (s *AuditLogService) calculateChanges(oldValues, newValues interface{}) map[string]interface{} {
	changes := make(map[string]interface{})

	oldMap := s.toMap(oldValues)
	newMap := s.toMap(newValues)

	for key, newVal := range newMap {
		if oldVal, exists := oldMap[key]; exists {
			if !reflect.DeepEqual(oldVal, newVal) {
				changes[key] = map[string]interface{}{
					"old": oldVal,
					"new": newVal,
				}
			}
		} else {
			changes[key] = map[string]interface{}{
				"old": nil,
				"new": newVal,
			}
		}
	}

	for key, oldVal := range oldMap {
		if _, exists := newMap[key]; !exists {
			changes[key] = map[string]interface{}{
				"old": oldVal,
				"new": nil,
			}
		}
	}

	return changes
}

// toMap converts an interface to a map for comparison
func (s *AuditLogService) toMap(v interface{}) map[string]interface{} {
	result := make(map[string]interface{})
	if v == nil {
		return result
	}
	if m, ok := v.(map[string]interface{}); ok {
		return m
	}

	data, err := json.Marshal(v)
	if err != nil {
		return result
	}
	_ = json.Unmarshal(data, &result)
	return result
}

// getClientIP extracts the client IP from the request
func (s *AuditLogService) getClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		if idx := strings.Index(xff, ","); idx != -1 {
			return strings.TrimSpace(xff[:idx])
		}
		return strings.TrimSpace(xff)
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return xri
	}
	addr := r.RemoteAddr
	if idx := strings.LastIndex(addr, ":"); idx != -1 {
		return addr[:idx]
	}
	return addr
}
