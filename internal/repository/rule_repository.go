package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/onepwr/procurement-api/internal/domain"
	"gorm.io/gorm"
)

type RuleRepository struct {
	db *gorm.DB
}

func NewRuleRepository(db *gorm.DB) *RuleRepository {
	return &RuleRepository{db: db}
}

func (r *RuleRepository) Create(ctx context.Context, rule *domain.Rule) error {
	return r.db.WithContext(ctx).Create(rule).Error
}

func (r *RuleRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Rule, error) {
	var rule domain.Rule
	err := r.db.WithContext(ctx).First(&rule, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &rule, nil
}

// ListForOrganization returns the organization's active rules ordered
// ascending by threshold, the order the approval validator expects
func (r *RuleRepository) ListForOrganization(ctx context.Context, orgID string) ([]domain.Rule, error) {
	var rules []domain.Rule
	err := r.db.WithContext(ctx).
		Where("organization_id = ? AND is_active = ?", orgID, true).
		Order("threshold ASC").
		Find(&rules).Error
	return rules, err
}

func (r *RuleRepository) Update(ctx context.Context, rule *domain.Rule) error {
	return r.db.WithContext(ctx).Save(rule).Error
}

// Deactivate soft-disables a rule tier without losing its history
func (r *RuleRepository) Deactivate(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).Model(&domain.Rule{}).
		Where("id = ?", id).
		Update("is_active", false).Error
}
