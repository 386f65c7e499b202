package domain

import (
	"github.com/google/uuid"
)

// DTOs for API responses

type PurchaseRequestDTO struct {
	ID                uuid.UUID  `json:"id"`
	Number            string     `json:"number"`
	OrganizationID    string     `json:"organizationId"`
	Status            PRStatus   `json:"status"`
	Description       string     `json:"description,omitempty"`
	EstimatedAmount   float64    `json:"estimatedAmount"`
	Currency          string     `json:"currency"`
	RequestorID       uuid.UUID  `json:"requestorId"`
	RequestorName     string     `json:"requestorName,omitempty"`
	RequestorEmail    string     `json:"requestorEmail,omitempty"`
	PreferredVendorID *uuid.UUID `json:"preferredVendorId,omitempty"`
	PreferredVendor   *VendorDTO `json:"preferredVendor,omitempty"`
	ApproverID        *uuid.UUID `json:"approverId,omitempty"`
	ApproverName      string     `json:"approverName,omitempty"`
	AdjudicationNotes string     `json:"adjudicationNotes,omitempty"`
	IsUrgent          bool       `json:"isUrgent"`
	Quotes            []QuoteDTO `json:"quotes,omitempty"`
	ApprovalWorkflow  *ApprovalWorkflowDTO `json:"approvalWorkflow,omitempty"`
	StatusHistory     []PRStatusHistoryDTO `json:"statusHistory,omitempty"`
	CreatedAt         string     `json:"createdAt"` // ISO 8601
	UpdatedAt         string     `json:"updatedAt"` // ISO 8601
}

// ApprovalWorkflowDTO mirrors the stored workflow block: the assigned
// approver plus the approval history
type ApprovalWorkflowDTO struct {
	CurrentApproverID *uuid.UUID               `json:"currentApprover,omitempty"`
	ApprovalHistory   []ApprovalHistoryItemDTO `json:"approvalHistory,omitempty"`
	LastUpdated       string                   `json:"lastUpdated"`
}

type ApprovalHistoryItemDTO struct {
	ID         uuid.UUID `json:"id"`
	ApproverID uuid.UUID `json:"approverId"`
	Approved   bool      `json:"approved"`
	Notes      string    `json:"notes,omitempty"`
	Timestamp  string    `json:"timestamp"`
}

type PRStatusHistoryDTO struct {
	ID         uuid.UUID `json:"id"`
	FromStatus *PRStatus `json:"fromStatus,omitempty"`
	ToStatus   PRStatus  `json:"toStatus"`
	ActorID    uuid.UUID `json:"actorId"`
	ActorName  string    `json:"actorName,omitempty"`
	Notes      string    `json:"notes,omitempty"`
	ChangedAt  string    `json:"changedAt"`
}

type QuoteDTO struct {
	ID          uuid.UUID `json:"id"`
	VendorID    uuid.UUID `json:"vendorId"`
	VendorName  string    `json:"vendorName,omitempty"`
	Amount      float64   `json:"amount"`
	Currency    string    `json:"currency"`
	Attachments []string  `json:"attachments"`
	SubmittedAt string    `json:"submittedAt"`
	Notes       string    `json:"notes,omitempty"`
}

type VendorDTO struct {
	ID             uuid.UUID `json:"id"`
	Name           string    `json:"name"`
	OrganizationID string    `json:"organizationId"`
	ContactEmail   string    `json:"contactEmail,omitempty"`
	ContactPhone   string    `json:"contactPhone,omitempty"`
	IsApproved     bool      `json:"isApproved"`
	IsActive       bool      `json:"isActive"`
}

type RuleDTO struct {
	ID                        uuid.UUID `json:"id"`
	OrganizationID            string    `json:"organizationId"`
	Threshold                 float64   `json:"threshold"`
	Currency                  string    `json:"currency"`
	QuotesAboveThreshold      int       `json:"quotesAboveThreshold"`
	QuotesBelowApprovedVendor int       `json:"quotesBelowApprovedVendor"`
	QuotesBelowDefault        int       `json:"quotesBelowDefault"`
	ProcurementLimit          float64   `json:"procurementLimit"`
	FinanceAdminLimit         float64   `json:"financeAdminLimit"`
	CEOLimit                  float64   `json:"ceoLimit"`
}

type UserDTO struct {
	ID              uuid.UUID       `json:"id"`
	DisplayName     string          `json:"displayName"`
	Email           string          `json:"email"`
	PermissionLevel PermissionLevel `json:"permissionLevel"`
	OrganizationID  string          `json:"organizationId"`
	Department      string          `json:"department,omitempty"`
	IsActive        bool            `json:"isActive"`
}

type OrganizationDTO struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	BaseCurrency string `json:"baseCurrency"`
	IsActive     bool   `json:"isActive"`
}

type NotificationDTO struct {
	ID         uuid.UUID  `json:"id"`
	UserID     uuid.UUID  `json:"userId"`
	Type       string     `json:"type"`
	Title      string     `json:"title"`
	Message    string     `json:"message"`
	Read       bool       `json:"read"`
	ReadAt     *string    `json:"readAt,omitempty"`
	EntityID   *uuid.UUID `json:"entityId,omitempty"`
	EntityType string     `json:"entityType,omitempty"`
	CreatedAt  string     `json:"createdAt"`
}

type AuditLogDTO struct {
	ID             uuid.UUID   `json:"id"`
	UserID         string      `json:"userId,omitempty"`
	UserEmail      string      `json:"userEmail,omitempty"`
	UserName       string      `json:"userName,omitempty"`
	Action         AuditAction `json:"action"`
	EntityType     string      `json:"entityType"`
	EntityID       *uuid.UUID  `json:"entityId,omitempty"`
	EntityName     string      `json:"entityName,omitempty"`
	OrganizationID string      `json:"organizationId,omitempty"`
	Changes        string      `json:"changes,omitempty"`
	RequestID      string      `json:"requestId,omitempty"`
	PerformedAt    string      `json:"performedAt"`
}

// SetPermissionLevelRequest changes a user's permission level and optionally
// their organization assignment
type SetPermissionLevelRequest struct {
	PermissionLevel PermissionLevel `json:"permissionLevel" validate:"required,oneof=1 2 3 6"`
	OrganizationID  string          `json:"organizationId,omitempty"`
}

// UnreadCountDTO carries an unread notification count
type UnreadCountDTO struct {
	Count int `json:"count"`
}

// ValidationResultDTO is the approval validator's structured verdict
type ValidationResultDTO struct {
	Valid  bool     `json:"valid"`
	Errors []string `json:"errors"`
}

// ErrorResponse represents an API error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
	Code    int    `json:"code,omitempty"`
}

// ListResponse is a generic paginated list envelope
type ListResponse[T any] struct {
	Items      []T   `json:"items"`
	TotalCount int64 `json:"totalCount"`
	Page       int   `json:"page"`
	PageSize   int   `json:"pageSize"`
}

// Requests

type CreatePurchaseRequestRequest struct {
	OrganizationID    string     `json:"organizationId" validate:"required,max=50"`
	Description       string     `json:"description,omitempty"`
	EstimatedAmount   float64    `json:"estimatedAmount" validate:"required,gt=0"`
	Currency          string     `json:"currency" validate:"required,len=3"`
	PreferredVendorID *uuid.UUID `json:"preferredVendorId,omitempty"`
	IsUrgent          bool       `json:"isUrgent,omitempty"`
}

type UpdatePurchaseRequestRequest struct {
	Description       *string    `json:"description,omitempty"`
	EstimatedAmount   *float64   `json:"estimatedAmount,omitempty" validate:"omitempty,gt=0"`
	Currency          *string    `json:"currency,omitempty" validate:"omitempty,len=3"`
	PreferredVendorID *uuid.UUID `json:"preferredVendorId,omitempty"`
	AdjudicationNotes *string    `json:"adjudicationNotes,omitempty"`
	IsUrgent          *bool      `json:"isUrgent,omitempty"`
}

// TransitionRequest asks the state machine to move a PR to a target status.
// Notes are mandatory for rejected and revision_required targets.
type TransitionRequest struct {
	TargetStatus PRStatus `json:"targetStatus" validate:"required"`
	Notes        string   `json:"notes,omitempty"`
}

// AssignApproverRequest manually assigns an approver to a PR
type AssignApproverRequest struct {
	ApproverID uuid.UUID `json:"approverId" validate:"required"`
	Notes      string    `json:"notes,omitempty"`
}

type AddQuoteRequest struct {
	VendorID    uuid.UUID `json:"vendorId" validate:"required"`
	Amount      float64   `json:"amount" validate:"required,gt=0"`
	Currency    string    `json:"currency" validate:"required,len=3"`
	Attachments []string  `json:"attachments,omitempty"`
	Notes       string    `json:"notes,omitempty"`
}

type CreateVendorRequest struct {
	Name           string `json:"name" validate:"required,max=200"`
	OrganizationID string `json:"organizationId" validate:"required,max=50"`
	ContactEmail   string `json:"contactEmail,omitempty" validate:"omitempty,email"`
	ContactPhone   string `json:"contactPhone,omitempty" validate:"max=50"`
	IsApproved     bool   `json:"isApproved,omitempty"`
}

type CreateRuleRequest struct {
	OrganizationID            string  `json:"organizationId" validate:"required,max=50"`
	Threshold                 float64 `json:"threshold" validate:"required,gt=0"`
	Currency                  string  `json:"currency" validate:"required,len=3"`
	QuotesAboveThreshold      int     `json:"quotesAboveThreshold" validate:"min=0"`
	QuotesBelowApprovedVendor int     `json:"quotesBelowApprovedVendor" validate:"min=0"`
	QuotesBelowDefault        int     `json:"quotesBelowDefault" validate:"min=0"`
	ProcurementLimit          float64 `json:"procurementLimit,omitempty"`
	FinanceAdminLimit         float64 `json:"financeAdminLimit,omitempty"`
	CEOLimit                  float64 `json:"ceoLimit,omitempty"`
}

type UpdateRuleRequest struct {
	Threshold                 *float64 `json:"threshold,omitempty" validate:"omitempty,gt=0"`
	Currency                  *string  `json:"currency,omitempty" validate:"omitempty,len=3"`
	QuotesAboveThreshold      *int     `json:"quotesAboveThreshold,omitempty" validate:"omitempty,min=0"`
	QuotesBelowApprovedVendor *int     `json:"quotesBelowApprovedVendor,omitempty" validate:"omitempty,min=0"`
	QuotesBelowDefault        *int     `json:"quotesBelowDefault,omitempty" validate:"omitempty,min=0"`
	ProcurementLimit          *float64 `json:"procurementLimit,omitempty"`
	FinanceAdminLimit         *float64 `json:"financeAdminLimit,omitempty"`
	CEOLimit                  *float64 `json:"ceoLimit,omitempty"`
}

type UpsertExchangeRateRequest struct {
	FromCurrency string  `json:"fromCurrency" validate:"required,len=3"`
	ToCurrency   string  `json:"toCurrency" validate:"required,len=3"`
	Rate         float64 `json:"rate" validate:"required,gt=0"`
}

type CreateNotificationRequest struct {
	UserID     uuid.UUID        `json:"userId" validate:"required"`
	Type       NotificationType `json:"type" validate:"required"`
	Title      string           `json:"title" validate:"required,max=200"`
	Message    string           `json:"message" validate:"required,max=500"`
	EntityID   *uuid.UUID       `json:"entityId,omitempty"`
	EntityType string           `json:"entityType,omitempty" validate:"max=50"`
}

// PRListFilter narrows PR list queries
type PRListFilter struct {
	OrganizationID string
	Status         *PRStatus
	RequestorID    *uuid.UUID
	ApproverID     *uuid.UUID
	Page           int
	PageSize       int
}
