package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/onepwr/procurement-api/internal/domain"
	"gorm.io/gorm"
)

type UserRepository struct {
	db *gorm.DB
}

func NewUserRepository(db *gorm.DB) *UserRepository {
	return &UserRepository{db: db}
}

func (r *UserRepository) Create(ctx context.Context, user *domain.User) error {
	return r.db.WithContext(ctx).Create(user).Error
}

func (r *UserRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	var user domain.User
	err := r.db.WithContext(ctx).First(&user, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *UserRepository) FindByEmail(ctx context.Context, email string) (*domain.User, error) {
	var user domain.User
	err := r.db.WithContext(ctx).First(&user, "email = ?", email).Error
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// EligibleApprovers returns active users at the given permission level for
// the organization. Global approvers (level 1) are included regardless of
// organization because their authority is not org-scoped.
func (r *UserRepository) EligibleApprovers(ctx context.Context, orgID string, level domain.PermissionLevel) ([]domain.User, error) {
	var users []domain.User
	query := r.db.WithContext(ctx).
		Where("permission_level = ? AND is_active = ?", level, true)
	if level != domain.PermissionGlobalApprover {
		query = query.Where("organization_id = ?", orgID)
	}
	err := query.Order("name ASC").Find(&users).Error
	return users, err
}

// LastAssignedAt returns the timestamp of the user's most recent approver
// assignment, or nil when the user has never been assigned. Backs the
// least-recently-assigned selection in the approver resolver.
func (r *UserRepository) LastAssignedAt(ctx context.Context, userID uuid.UUID) (*time.Time, error) {
	var item domain.ApprovalHistoryItem
	err := r.db.WithContext(ctx).
		Where("approver_id = ?", userID).
		Order("created_at DESC").
		First(&item).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	t := item.CreatedAt
	return &t, nil
}

// List returns users, optionally scoped to an organization
func (r *UserRepository) List(ctx context.Context, orgID string, page, pageSize int) ([]domain.User, int64, error) {
	var users []domain.User
	var total int64

	query := r.db.WithContext(ctx).Model(&domain.User{})
	if orgID != "" {
		query = query.Where("organization_id = ?", orgID)
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset := (page - 1) * pageSize
	err := query.Order("name ASC").Offset(offset).Limit(pageSize).Find(&users).Error
	return users, total, err
}

// Upsert inserts the user or refreshes mutable login fields. Permission
// level and organization are managed by admins and never overwritten here.
func (r *UserRepository) Upsert(ctx context.Context, user *domain.User) error {
	var existing domain.User
	err := r.db.WithContext(ctx).Where("email = ?", user.Email).First(&existing).Error

	if err == gorm.ErrRecordNotFound {
		return r.db.WithContext(ctx).Create(user).Error
	}

	if err != nil {
		return err
	}

	updates := map[string]interface{}{
		"name":          user.DisplayName,
		"last_login_at": user.LastLoginAt,
	}
	if user.Department != "" {
		updates["department"] = user.Department
	}

	return r.db.WithContext(ctx).Model(&domain.User{}).Where("id = ?", existing.ID).Updates(updates).Error
}

func (r *UserRepository) Update(ctx context.Context, user *domain.User) error {
	return r.db.WithContext(ctx).Save(user).Error
}
