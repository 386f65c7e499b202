package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/onepwr/procurement-api/internal/auth"
	"github.com/onepwr/procurement-api/internal/domain"
	"github.com/onepwr/procurement-api/internal/mapper"
	"github.com/onepwr/procurement-api/internal/repository"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// UserService manages the user directory. Identity comes from Azure AD; the
// directory holds what the token cannot carry, the permission level and
// organization assignment that drive authorization.
type UserService struct {
	users  *repository.UserRepository
	logger *zap.Logger
}

// NewUserService creates a new UserService
func NewUserService(users *repository.UserRepository, logger *zap.Logger) *UserService {
	return &UserService{users: users, logger: logger}
}

// GetCurrent returns the directory record for the authenticated user
func (s *UserService) GetCurrent(ctx context.Context) (*domain.UserDTO, error) {
	userCtx, ok := auth.FromContext(ctx)
	if !ok {
		return nil, ErrUserContextRequired
	}

	user, err := s.users.GetByID(ctx, userCtx.UserID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to load user: %w", err)
	}

	dto := mapper.ToUserDTO(user)
	return &dto, nil
}

// GetByID returns a user by ID
func (s *UserService) GetByID(ctx context.Context, id uuid.UUID) (*domain.UserDTO, error) {
	if _, ok := auth.FromContext(ctx); !ok {
		return nil, ErrUserContextRequired
	}

	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to load user: %w", err)
	}

	dto := mapper.ToUserDTO(user)
	return &dto, nil
}

// List returns users, scoped to the caller's organization
func (s *UserService) List(ctx context.Context, page, pageSize int) (*domain.ListResponse[domain.UserDTO], error) {
	if _, ok := auth.FromContext(ctx); !ok {
		return nil, ErrUserContextRequired
	}

	orgID := auth.GetEffectiveOrganizationFilter(ctx)
	users, total, err := s.users.List(ctx, orgID, page, pageSize)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}

	dtos := make([]domain.UserDTO, len(users))
	for i := range users {
		dtos[i] = mapper.ToUserDTO(&users[i])
	}

	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 200 {
		pageSize = 50
	}
	return &domain.ListResponse[domain.UserDTO]{
		Items:      dtos,
		TotalCount: total,
		Page:       page,
		PageSize:   pageSize,
	}, nil
}

// ListApprovers returns active users holding the given permission level for
// an organization
func (s *UserService) ListApprovers(ctx context.Context, orgID string, level domain.PermissionLevel) ([]domain.UserDTO, error) {
	userCtx, ok := auth.FromContext(ctx)
	if !ok {
		return nil, ErrUserContextRequired
	}
	if !userCtx.CanAccessOrganization(orgID) {
		return nil, ErrPermissionDenied
	}

	users, err := s.users.EligibleApprovers(ctx, orgID, level)
	if err != nil {
		return nil, fmt.Errorf("failed to list approvers: %w", err)
	}

	dtos := make([]domain.UserDTO, len(users))
	for i := range users {
		dtos[i] = mapper.ToUserDTO(&users[i])
	}
	return dtos, nil
}

// RecordLogin upserts the directory record on login and stamps last_login_at.
// Display name and email follow the token; permission level and organization
// are directory-owned and preserved across logins.
func (s *UserService) RecordLogin(ctx context.Context) error {
	userCtx, ok := auth.FromContext(ctx)
	if !ok {
		return ErrUserContextRequired
	}

	// Identities without an organization have not been provisioned in the
	// directory yet; there is nothing to record until an admin assigns one
	if userCtx.OrganizationID == "" {
		s.logger.Debug("login by unprovisioned identity",
			zap.String("email", userCtx.Email))
		return nil
	}

	now := time.Now().UTC()
	user := &domain.User{
		BaseModel:       domain.BaseModel{ID: userCtx.UserID},
		DisplayName:     userCtx.DisplayName,
		Email:           userCtx.Email,
		PermissionLevel: userCtx.PermissionLevel,
		OrganizationID:  userCtx.OrganizationID,
		IsActive:        true,
		LastLoginAt:     &now,
	}
	if err := s.users.Upsert(ctx, user); err != nil {
		return fmt.Errorf("failed to record login: %w", err)
	}

	s.logger.Debug("login recorded",
		zap.String("userID", userCtx.UserID.String()),
		zap.String("email", userCtx.Email))
	return nil
}

// SetPermissionLevel changes a user's permission level and organization
// assignment. Reference-data admins only.
func (s *UserService) SetPermissionLevel(ctx context.Context, id uuid.UUID, level domain.PermissionLevel, orgID string) (*domain.UserDTO, error) {
	userCtx, ok := auth.FromContext(ctx)
	if !ok {
		return nil, ErrUserContextRequired
	}
	if !userCtx.CanManageReferenceData() {
		return nil, ErrPermissionDenied
	}

	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to load user: %w", err)
	}

	user.PermissionLevel = level
	if orgID != "" {
		user.OrganizationID = orgID
	}
	if err := s.users.Update(ctx, user); err != nil {
		return nil, fmt.Errorf("failed to update user: %w", err)
	}

	s.logger.Info("user permission level changed",
		zap.String("userID", id.String()),
		zap.Int("level", int(level)),
		zap.String("changedBy", userCtx.UserID.String()))

	dto := mapper.ToUserDTO(user)
	return &dto, nil
}

// Deactivate removes a user from the eligible approver pool without deleting
// their history
func (s *UserService) Deactivate(ctx context.Context, id uuid.UUID) error {
	userCtx, ok := auth.FromContext(ctx)
	if !ok {
		return ErrUserContextRequired
	}
	if !userCtx.CanManageReferenceData() {
		return ErrPermissionDenied
	}

	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrUserNotFound
		}
		return fmt.Errorf("failed to load user: %w", err)
	}

	user.IsActive = false
	if err := s.users.Update(ctx, user); err != nil {
		return fmt.Errorf("failed to deactivate user: %w", err)
	}

	s.logger.Info("user deactivated", zap.String("userID", id.String()))
	return nil
}
