package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/onepwr/procurement-api/internal/auth"
	"github.com/onepwr/procurement-api/internal/domain"
	"github.com/onepwr/procurement-api/internal/mapper"
	"github.com/onepwr/procurement-api/internal/repository"
	"github.com/onepwr/procurement-api/internal/workflow"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// ApprovalBlockedError carries the full list of business-rule violations that
// prevented a transition into an approval-relevant status. Handlers surface
// the list so the caller can fix everything in one pass.
type ApprovalBlockedError struct {
	Violations []string
}

func (e *ApprovalBlockedError) Error() string {
	return fmt.Sprintf("approval blocked: %s", strings.Join(e.Violations, "; "))
}

// PurchaseRequestService owns the purchase request lifecycle: creation and
// numbering, edits, the guarded status transitions, approver assignment and
// resolution. Transitions run in a single database transaction with the PR
// row locked; notifications fire after commit and are best-effort.
type PurchaseRequestService struct {
	db              *gorm.DB
	requests        *repository.PurchaseRequestRepository
	quotes          *repository.QuoteRepository
	rules           *repository.RuleRepository
	orgs            *repository.OrganizationRepository
	vendors         *repository.VendorRepository
	users           *repository.UserRepository
	statusHistory   *repository.StatusHistoryRepository
	approvalHistory *repository.ApprovalHistoryRepository
	numbering       *NumberingService
	validator       *workflow.Validator
	resolver        *workflow.Resolver
	notifications   *NotificationService
	logger          *zap.Logger
}

// NewPurchaseRequestService wires the PR lifecycle service. The workflow
// validator and resolver are built here over repository-backed adapters.
func NewPurchaseRequestService(
	db *gorm.DB,
	requests *repository.PurchaseRequestRepository,
	quotes *repository.QuoteRepository,
	rules *repository.RuleRepository,
	orgs *repository.OrganizationRepository,
	vendors *repository.VendorRepository,
	users *repository.UserRepository,
	statusHistory *repository.StatusHistoryRepository,
	approvalHistory *repository.ApprovalHistoryRepository,
	numbering *NumberingService,
	currency *CurrencyService,
	notifications *NotificationService,
	vendorExemptionFloor float64,
	logger *zap.Logger,
) *PurchaseRequestService {
	directory := &approverDirectory{users: users}
	ruleSrc := &ruleSource{rules: rules}
	oracle := &vendorOracle{vendors: vendors}

	validator := workflow.NewValidator(currency, directory, oracle)
	validator.SetVendorExemptionFloor(vendorExemptionFloor)

	resolver := workflow.NewResolver(directory, ruleSrc, currency, logger)

	return &PurchaseRequestService{
		db:              db,
		requests:        requests,
		quotes:          quotes,
		rules:           rules,
		orgs:            orgs,
		vendors:         vendors,
		users:           users,
		statusHistory:   statusHistory,
		approvalHistory: approvalHistory,
		numbering:       numbering,
		validator:       validator,
		resolver:        resolver,
		notifications:   notifications,
		logger:          logger,
	}
}

// actorFromContext turns the authenticated user context into a domain user
// for the workflow's actor classification
func actorFromContext(userCtx *auth.UserContext) *domain.User {
	return &domain.User{
		BaseModel:       domain.BaseModel{ID: userCtx.UserID},
		DisplayName:     userCtx.DisplayName,
		Email:           userCtx.Email,
		PermissionLevel: userCtx.PermissionLevel,
		OrganizationID:  userCtx.OrganizationID,
	}
}

// Create opens a new purchase request in draft for the current user
func (s *PurchaseRequestService) Create(ctx context.Context, req *domain.CreatePurchaseRequestRequest) (*domain.PurchaseRequestDTO, error) {
	userCtx, ok := auth.FromContext(ctx)
	if !ok {
		return nil, ErrUserContextRequired
	}
	if !userCtx.CanAccessOrganization(req.OrganizationID) {
		return nil, ErrPermissionDenied
	}

	org, err := s.orgs.GetByID(ctx, req.OrganizationID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrOrganizationNotFound
		}
		return nil, fmt.Errorf("failed to load organization: %w", err)
	}
	if !org.IsActive {
		return nil, ErrOrganizationNotFound
	}

	if req.PreferredVendorID != nil {
		if _, err := s.vendors.GetByID(ctx, *req.PreferredVendorID); err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, ErrVendorNotFound
			}
			return nil, fmt.Errorf("failed to load vendor: %w", err)
		}
	}

	number, err := s.numbering.GeneratePRNumber(ctx, req.OrganizationID)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	pr := &domain.PurchaseRequest{
		Number:              number,
		OrganizationID:      req.OrganizationID,
		Status:              domain.PRStatusDraft,
		Description:         req.Description,
		EstimatedAmount:     req.EstimatedAmount,
		Currency:            strings.ToUpper(req.Currency),
		RequestorID:         userCtx.UserID,
		RequestorName:       userCtx.DisplayName,
		RequestorEmail:      userCtx.Email,
		PreferredVendorID:   req.PreferredVendorID,
		IsUrgent:            req.IsUrgent,
		WorkflowLastUpdated: now,
	}

	err = s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.WithContext(ctx).Create(pr).Error; err != nil {
			return fmt.Errorf("failed to create purchase request: %w", err)
		}
		return s.statusHistory.CreateTx(ctx, tx, &domain.PRStatusHistory{
			PurchaseRequestID: pr.ID,
			ToStatus:          domain.PRStatusDraft,
			ActorID:           userCtx.UserID,
			ActorName:         userCtx.DisplayName,
			ChangedAt:         now,
		})
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("purchase request created",
		zap.String("number", pr.Number),
		zap.String("organizationID", pr.OrganizationID),
		zap.String("requestorID", userCtx.UserID.String()))

	return s.GetByID(ctx, pr.ID)
}

// GetByID returns a PR with quotes, workflow block and both histories
func (s *PurchaseRequestService) GetByID(ctx context.Context, id uuid.UUID) (*domain.PurchaseRequestDTO, error) {
	userCtx, ok := auth.FromContext(ctx)
	if !ok {
		return nil, ErrUserContextRequired
	}

	pr, err := s.requests.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to load purchase request: %w", err)
	}
	if !userCtx.CanAccessOrganization(pr.OrganizationID) {
		return nil, ErrPermissionDenied
	}

	dto := mapper.ToPurchaseRequestDTO(pr)
	return &dto, nil
}

// GetByNumber returns a PR looked up by its PR/PO number
func (s *PurchaseRequestService) GetByNumber(ctx context.Context, number string) (*domain.PurchaseRequestDTO, error) {
	userCtx, ok := auth.FromContext(ctx)
	if !ok {
		return nil, ErrUserContextRequired
	}

	pr, err := s.requests.GetByNumber(ctx, number)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to load purchase request: %w", err)
	}
	if !userCtx.CanAccessOrganization(pr.OrganizationID) {
		return nil, ErrPermissionDenied
	}

	return s.GetByID(ctx, pr.ID)
}

// List returns PRs matching the filter, scoped to the caller's organization
// unless the caller is a global approver
func (s *PurchaseRequestService) List(ctx context.Context, filter *domain.PRListFilter) (*domain.ListResponse[domain.PurchaseRequestDTO], error) {
	if _, ok := auth.FromContext(ctx); !ok {
		return nil, ErrUserContextRequired
	}
	if filter == nil {
		filter = &domain.PRListFilter{}
	}

	// Non-global callers are always pinned to their own organization
	if scope := auth.GetEffectiveOrganizationFilter(ctx); scope != "" {
		filter.OrganizationID = scope
	}

	prs, total, err := s.requests.List(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to list purchase requests: %w", err)
	}

	dtos := make([]domain.PurchaseRequestDTO, len(prs))
	for i := range prs {
		dtos[i] = mapper.ToPurchaseRequestDTO(&prs[i])
	}

	page, pageSize := filter.Page, filter.PageSize
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 200 {
		pageSize = 50
	}

	return &domain.ListResponse[domain.PurchaseRequestDTO]{
		Items:      dtos,
		TotalCount: total,
		Page:       page,
		PageSize:   pageSize,
	}, nil
}

// Update edits a PR's request fields. The requestor may edit while the status
// is requestor-editable; procurement staff additionally while it is in the
// queue. Everything else is ErrNotEditable.
func (s *PurchaseRequestService) Update(ctx context.Context, id uuid.UUID, req *domain.UpdatePurchaseRequestRequest) (*domain.PurchaseRequestDTO, error) {
	userCtx, ok := auth.FromContext(ctx)
	if !ok {
		return nil, ErrUserContextRequired
	}

	pr, err := s.requests.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to load purchase request: %w", err)
	}
	if !userCtx.CanAccessOrganization(pr.OrganizationID) {
		return nil, ErrPermissionDenied
	}
	if !s.canEdit(userCtx, pr) {
		return nil, ErrNotEditable
	}

	if req.PreferredVendorID != nil {
		if _, err := s.vendors.GetByID(ctx, *req.PreferredVendorID); err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, ErrVendorNotFound
			}
			return nil, fmt.Errorf("failed to load vendor: %w", err)
		}
		pr.PreferredVendorID = req.PreferredVendorID
	}
	if req.Description != nil {
		pr.Description = *req.Description
	}
	if req.EstimatedAmount != nil {
		pr.EstimatedAmount = *req.EstimatedAmount
	}
	if req.Currency != nil {
		pr.Currency = strings.ToUpper(*req.Currency)
	}
	if req.AdjudicationNotes != nil {
		// Adjudication notes are procurement's justification record
		if !userCtx.IsProcurement() {
			return nil, ErrPermissionDenied
		}
		pr.AdjudicationNotes = *req.AdjudicationNotes
	}
	if req.IsUrgent != nil {
		pr.IsUrgent = *req.IsUrgent
	}

	if err := s.requests.Update(ctx, pr); err != nil {
		return nil, fmt.Errorf("failed to update purchase request: %w", err)
	}

	return s.GetByID(ctx, id)
}

func (s *PurchaseRequestService) canEdit(userCtx *auth.UserContext, pr *domain.PurchaseRequest) bool {
	if userCtx.UserID == pr.RequestorID && pr.Status.IsRequestorEditable() {
		return true
	}
	return userCtx.IsProcurement() && pr.Status.IsProcurementEditable()
}

// Delete removes a PR permanently. Only drafts may be deleted, and only by
// their requestor or procurement staff; anything later is canceled through
// the workflow instead.
func (s *PurchaseRequestService) Delete(ctx context.Context, id uuid.UUID) error {
	userCtx, ok := auth.FromContext(ctx)
	if !ok {
		return ErrUserContextRequired
	}

	pr, err := s.requests.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrNotFound
		}
		return fmt.Errorf("failed to load purchase request: %w", err)
	}
	if !userCtx.CanAccessOrganization(pr.OrganizationID) {
		return ErrPermissionDenied
	}
	if pr.Status != domain.PRStatusDraft {
		return ErrNotEditable
	}
	if userCtx.UserID != pr.RequestorID && !userCtx.IsProcurement() {
		return ErrPermissionDenied
	}

	if err := s.requests.Delete(ctx, id); err != nil {
		return fmt.Errorf("failed to delete purchase request: %w", err)
	}

	s.logger.Info("purchase request deleted",
		zap.String("number", pr.Number),
		zap.String("actorID", userCtx.UserID.String()))
	return nil
}

// Transition moves a PR to the target status through the full pipeline:
// state-machine guard, approval validation where the target demands it,
// PO re-designation and approver resolution on entering the approval stage,
// history appends and the status write, all inside one transaction with the
// row locked. Notifications go out after commit.
func (s *PurchaseRequestService) Transition(ctx context.Context, id uuid.UUID, req *domain.TransitionRequest) (*domain.PurchaseRequestDTO, error) {
	userCtx, ok := auth.FromContext(ctx)
	if !ok {
		return nil, ErrUserContextRequired
	}
	actor := actorFromContext(userCtx)
	target := req.TargetStatus
	notes := strings.TrimSpace(req.Notes)

	var (
		updated    *domain.PurchaseRequest
		fromStatus domain.PRStatus
		resolution *workflow.Resolution
	)

	err := s.db.Transaction(func(tx *gorm.DB) error {
		pr, err := s.requests.GetByIDForUpdate(ctx, tx, id)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotFound
			}
			return fmt.Errorf("failed to lock purchase request: %w", err)
		}
		if !userCtx.CanAccessOrganization(pr.OrganizationID) {
			return ErrPermissionDenied
		}

		if err := workflow.Guard(pr, actor, target, notes); err != nil {
			return err
		}

		if workflow.RequiresApprovalValidation(target) {
			rules, err := s.rules.ListForOrganization(ctx, pr.OrganizationID)
			if err != nil {
				return fmt.Errorf("failed to load approval rules: %w", err)
			}
			result, err := s.validator.Validate(ctx, pr, rules, actor, target)
			if err != nil {
				return err
			}
			if !result.Valid {
				return &ApprovalBlockedError{Violations: result.Errors}
			}
		}

		fromStatus = pr.Status
		from := fromStatus
		now := time.Now().UTC()
		pr.Status = target

		if workflow.RedesignatesAsPO(from, target) {
			pr.Number = s.numbering.RedesignateAsPO(pr.Number)

			resolution, err = s.resolver.Resolve(ctx, pr)
			if err != nil {
				return err
			}
			if resolution.Changed && resolution.Approver != nil {
				entry := &domain.ApprovalHistoryItem{
					PurchaseRequestID: pr.ID,
					ApproverID:        resolution.Approver.ID,
					Approved:          false,
					Notes:             "assigned as approver",
					CreatedAt:         now,
				}
				if err := s.approvalHistory.CreateTx(ctx, tx, entry); err != nil {
					return fmt.Errorf("failed to record approver assignment: %w", err)
				}
			}
		}

		if target == domain.PRStatusApproved {
			entry := &domain.ApprovalHistoryItem{
				PurchaseRequestID: pr.ID,
				ApproverID:        actor.ID,
				Approved:          true,
				Notes:             notes,
				CreatedAt:         now,
			}
			if err := s.approvalHistory.CreateTx(ctx, tx, entry); err != nil {
				return fmt.Errorf("failed to record approval: %w", err)
			}
			pr.WorkflowLastUpdated = now
		}

		history := &domain.PRStatusHistory{
			PurchaseRequestID: pr.ID,
			FromStatus:        &from,
			ToStatus:          target,
			ActorID:           actor.ID,
			ActorName:         actor.DisplayName,
			Notes:             notes,
			ChangedAt:         now,
		}
		if err := s.statusHistory.CreateTx(ctx, tx, history); err != nil {
			return fmt.Errorf("failed to record status transition: %w", err)
		}

		if err := s.requests.UpdateTx(ctx, tx, pr); err != nil {
			return fmt.Errorf("failed to persist transition: %w", err)
		}

		updated = pr
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("purchase request transitioned",
		zap.String("number", updated.Number),
		zap.String("from", string(fromStatus)),
		zap.String("to", string(target)),
		zap.String("actorID", actor.ID.String()))

	// Best-effort, after commit
	s.notifications.NotifyStatusChanged(ctx, updated, fromStatus, target, notes)
	if resolution != nil && resolution.Changed && resolution.Approver != nil {
		s.notifications.NotifyApprovalRequested(ctx, resolution.Approver.ID, updated)
	}

	return s.GetByID(ctx, id)
}

// AllowedTransitions returns the statuses reachable from the PR's current status
func (s *PurchaseRequestService) AllowedTransitions(ctx context.Context, id uuid.UUID) ([]domain.PRStatus, error) {
	userCtx, ok := auth.FromContext(ctx)
	if !ok {
		return nil, ErrUserContextRequired
	}
	pr, err := s.requests.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to load purchase request: %w", err)
	}
	if !userCtx.CanAccessOrganization(pr.OrganizationID) {
		return nil, ErrPermissionDenied
	}
	return workflow.AllowedTargets(pr.Status), nil
}

// ValidateApproval dry-runs the approval validator for a target status
// without mutating anything. Reference-data failures surface as errors;
// business-rule violations come back in the result.
func (s *PurchaseRequestService) ValidateApproval(ctx context.Context, id uuid.UUID, target domain.PRStatus) (*domain.ValidationResultDTO, error) {
	userCtx, ok := auth.FromContext(ctx)
	if !ok {
		return nil, ErrUserContextRequired
	}

	pr, err := s.requests.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to load purchase request: %w", err)
	}
	if !userCtx.CanAccessOrganization(pr.OrganizationID) {
		return nil, ErrPermissionDenied
	}

	rules, err := s.rules.ListForOrganization(ctx, pr.OrganizationID)
	if err != nil {
		return nil, fmt.Errorf("failed to load approval rules: %w", err)
	}

	result, err := s.validator.Validate(ctx, pr, rules, actorFromContext(userCtx), target)
	if err != nil {
		return nil, err
	}
	return &domain.ValidationResultDTO{Valid: result.Valid, Errors: result.Errors}, nil
}

// AssignApprover manually assigns an approver, overriding computed selection.
// Manual assignment always wins in subsequent resolution.
func (s *PurchaseRequestService) AssignApprover(ctx context.Context, id uuid.UUID, req *domain.AssignApproverRequest) (*domain.PurchaseRequestDTO, error) {
	userCtx, ok := auth.FromContext(ctx)
	if !ok {
		return nil, ErrUserContextRequired
	}
	if !userCtx.IsProcurement() {
		return nil, ErrPermissionDenied
	}

	approver, err := s.users.GetByID(ctx, req.ApproverID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to load approver: %w", err)
	}
	if !approver.IsActive || !approver.PermissionLevel.IsApprover() {
		return nil, fmt.Errorf("%w: user is not an eligible approver", ErrInvalidInput)
	}

	err = s.db.Transaction(func(tx *gorm.DB) error {
		pr, err := s.requests.GetByIDForUpdate(ctx, tx, id)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotFound
			}
			return fmt.Errorf("failed to lock purchase request: %w", err)
		}
		if !userCtx.CanAccessOrganization(pr.OrganizationID) {
			return ErrPermissionDenied
		}
		if pr.Status.IsTerminal() {
			return ErrNotEditable
		}

		now := time.Now().UTC()
		approverID := approver.ID
		pr.ApproverID = &approverID
		pr.CurrentApproverID = &approverID
		pr.WorkflowLastUpdated = now

		entry := &domain.ApprovalHistoryItem{
			PurchaseRequestID: pr.ID,
			ApproverID:        approverID,
			Approved:          false,
			Notes:             req.Notes,
			CreatedAt:         now,
		}
		if err := s.approvalHistory.CreateTx(ctx, tx, entry); err != nil {
			return fmt.Errorf("failed to record approver assignment: %w", err)
		}
		return s.requests.UpdateTx(ctx, tx, pr)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("approver assigned",
		zap.String("prID", id.String()),
		zap.String("approverID", approver.ID.String()),
		zap.String("assignedBy", userCtx.UserID.String()))

	dto, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if pr, perr := s.requests.GetByID(ctx, id); perr == nil && pr.Status == domain.PRStatusPendingApproval {
		s.notifications.NotifyApprovalRequested(ctx, approver.ID, pr)
	}
	return dto, nil
}

// ResolveApprover recomputes the PR's current approver and persists any
// change, including the silent self-heal of a diverged workflow mirror
func (s *PurchaseRequestService) ResolveApprover(ctx context.Context, id uuid.UUID) (*domain.ApprovalWorkflowDTO, error) {
	userCtx, ok := auth.FromContext(ctx)
	if !ok {
		return nil, ErrUserContextRequired
	}

	var resolution *workflow.Resolution
	err := s.db.Transaction(func(tx *gorm.DB) error {
		pr, err := s.requests.GetByIDForUpdate(ctx, tx, id)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotFound
			}
			return fmt.Errorf("failed to lock purchase request: %w", err)
		}
		if !userCtx.CanAccessOrganization(pr.OrganizationID) {
			return ErrPermissionDenied
		}

		resolution, err = s.resolver.Resolve(ctx, pr)
		if err != nil {
			return err
		}
		if !resolution.Changed && !resolution.SelfHealed {
			return nil
		}

		if resolution.Changed && resolution.Approver != nil {
			entry := &domain.ApprovalHistoryItem{
				PurchaseRequestID: pr.ID,
				ApproverID:        resolution.Approver.ID,
				Approved:          false,
				Notes:             "assigned as approver",
				CreatedAt:         time.Now().UTC(),
			}
			if err := s.approvalHistory.CreateTx(ctx, tx, entry); err != nil {
				return fmt.Errorf("failed to record approver assignment: %w", err)
			}
		}
		return s.requests.UpdateTx(ctx, tx, pr)
	})
	if err != nil {
		return nil, err
	}

	pr, err := s.requests.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to reload purchase request: %w", err)
	}
	if resolution.Changed && resolution.Approver != nil && pr.Status == domain.PRStatusPendingApproval {
		s.notifications.NotifyApprovalRequested(ctx, resolution.Approver.ID, pr)
	}
	return mapper.ToApprovalWorkflowDTO(pr), nil
}

// CountByStatus returns per-status PR counts for dashboards, scoped to the
// caller's organization unless they are a global approver
func (s *PurchaseRequestService) CountByStatus(ctx context.Context) (map[domain.PRStatus]int64, error) {
	if _, ok := auth.FromContext(ctx); !ok {
		return nil, ErrUserContextRequired
	}
	return s.requests.CountByStatus(ctx, auth.GetEffectiveOrganizationFilter(ctx))
}
