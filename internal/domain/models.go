package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"gorm.io/gorm"
)

// Base model with common fields
type BaseModel struct {
	ID        uuid.UUID `gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	CreatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// BeforeCreate assigns an ID when the database does not (e.g. sqlite in tests)
func (b *BaseModel) BeforeCreate(tx *gorm.DB) error {
	if b.ID == uuid.Nil {
		b.ID = uuid.New()
	}
	return nil
}

// Organization represents a 1PWR operating organization (e.g. "1PWR_LSO")
type Organization struct {
	ID           string    `gorm:"type:varchar(50);primaryKey" json:"id"`
	Name         string    `gorm:"type:varchar(200);not null" json:"name"`
	BaseCurrency string    `gorm:"type:varchar(3);not null;default:'LSL';column:base_currency" json:"baseCurrency"`
	IsActive     bool      `gorm:"not null;default:true;column:is_active" json:"isActive"`
	CreatedAt    time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"createdAt"`
	UpdatedAt    time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updatedAt"`
}

// PRStatus represents the lifecycle status of a purchase request
type PRStatus string

const (
	PRStatusDraft             PRStatus = "draft"
	PRStatusSubmitted         PRStatus = "submitted"
	PRStatusResubmitted       PRStatus = "resubmitted"
	PRStatusInQueue           PRStatus = "in_queue"
	PRStatusPendingApproval   PRStatus = "pending_approval"
	PRStatusApproved          PRStatus = "approved"
	PRStatusOrdered           PRStatus = "ordered"
	PRStatusPartiallyReceived PRStatus = "partially_received"
	PRStatusCompleted         PRStatus = "completed"
	PRStatusRevisionRequired  PRStatus = "revision_required"
	PRStatusRejected          PRStatus = "rejected"
	PRStatusCanceled          PRStatus = "canceled"
)

// IsValid checks if the PRStatus is a valid enum value
func (s PRStatus) IsValid() bool {
	switch s {
	case PRStatusDraft, PRStatusSubmitted, PRStatusResubmitted, PRStatusInQueue,
		PRStatusPendingApproval, PRStatusApproved, PRStatusOrdered,
		PRStatusPartiallyReceived, PRStatusCompleted, PRStatusRevisionRequired,
		PRStatusRejected, PRStatusCanceled:
		return true
	}
	return false
}

// IsTerminal reports whether the status permits no further transitions
func (s PRStatus) IsTerminal() bool {
	switch s {
	case PRStatusCompleted, PRStatusRejected, PRStatusCanceled:
		return true
	}
	return false
}

// IsOpen reports whether the PR is still in flight
func (s PRStatus) IsOpen() bool {
	return s.IsValid() && !s.IsTerminal()
}

// IsRequestorEditable reports whether the requestor may still edit the PR
// (amounts, quotes, preferred vendor) in this status
func (s PRStatus) IsRequestorEditable() bool {
	switch s {
	case PRStatusDraft, PRStatusSubmitted, PRStatusResubmitted, PRStatusRevisionRequired:
		return true
	}
	return false
}

// IsProcurementEditable reports whether procurement staff may still enrich
// the PR (quotes, vendor assignment) in this status
func (s PRStatus) IsProcurementEditable() bool {
	return s.IsRequestorEditable() || s == PRStatusInQueue
}

// PermissionLevel classifies a user's approval authority.
// The numeric values mirror the legacy approver import sheets.
type PermissionLevel int

const (
	// PermissionGlobalApprover is a global admin/approver (all organizations)
	PermissionGlobalApprover PermissionLevel = 1
	// PermissionOrgApprover is an organization-scoped approver
	PermissionOrgApprover PermissionLevel = 2
	// PermissionProcurementAdmin is a procurement administrator
	PermissionProcurementAdmin PermissionLevel = 3
	// PermissionProcurement is regular procurement staff
	PermissionProcurement PermissionLevel = 6
)

// IsProcurement reports whether the level grants procurement privileges
func (p PermissionLevel) IsProcurement() bool {
	switch p {
	case PermissionGlobalApprover, PermissionProcurementAdmin, PermissionProcurement:
		return true
	}
	return false
}

// CanMoveToApproval reports whether the level may push a PR into the
// approval stage (in_queue -> pending_approval)
func (p PermissionLevel) CanMoveToApproval() bool {
	return p == PermissionGlobalApprover || p == PermissionProcurementAdmin
}

// IsApprover reports whether the level qualifies as an approver at all
func (p PermissionLevel) IsApprover() bool {
	switch p {
	case PermissionGlobalApprover, PermissionOrgApprover, PermissionProcurement:
		return true
	}
	return false
}

// User represents a system user; approvers are tagged by permission level
type User struct {
	BaseModel
	DisplayName     string          `gorm:"type:varchar(200);not null;column:name" json:"displayName"`
	Email           string          `gorm:"type:varchar(255);not null;unique" json:"email"`
	PermissionLevel PermissionLevel `gorm:"type:int;not null;default:0;column:permission_level;index" json:"permissionLevel"`
	OrganizationID  string          `gorm:"type:varchar(50);not null;index;column:organization_id" json:"organizationId"`
	Organization    *Organization   `gorm:"foreignKey:OrganizationID" json:"organization,omitempty"`
	Department      string          `gorm:"type:varchar(100)" json:"department,omitempty"`
	IsActive        bool            `gorm:"not null;default:true;column:is_active" json:"isActive"`
	LastLoginAt     *time.Time      `gorm:"column:last_login_at" json:"lastLoginAt,omitempty"`
}

// Vendor represents a supplier that can quote on purchase requests
type Vendor struct {
	BaseModel
	Name           string        `gorm:"type:varchar(200);not null;index" json:"name"`
	OrganizationID string        `gorm:"type:varchar(50);not null;index;column:organization_id" json:"organizationId"`
	Organization   *Organization `gorm:"foreignKey:OrganizationID" json:"organization,omitempty"`
	ContactEmail   string        `gorm:"type:varchar(255);column:contact_email" json:"contactEmail,omitempty"`
	ContactPhone   string        `gorm:"type:varchar(50);column:contact_phone" json:"contactPhone,omitempty"`
	// IsApproved marks the vendor as pre-approved for single-quote purchases
	IsApproved bool `gorm:"not null;default:false;column:is_approved;index" json:"isApproved"`
	IsActive   bool `gorm:"not null;default:true;column:is_active" json:"isActive"`
}

// Rule is one tier of an organization's approval policy. Rules are read as an
// ascending-by-threshold list; the validator expects at least two tiers.
type Rule struct {
	BaseModel
	OrganizationID string        `gorm:"type:varchar(50);not null;index;column:organization_id" json:"organizationId"`
	Organization   *Organization `gorm:"foreignKey:OrganizationID" json:"organization,omitempty"`
	Threshold      float64       `gorm:"type:decimal(15,2);not null" json:"threshold"`
	Currency       string        `gorm:"type:varchar(3);not null" json:"currency"`
	// Quote requirements: above this tier's threshold, and below it split by
	// preferred-vendor approval status
	QuotesAboveThreshold      int `gorm:"not null;default:3;column:quotes_above_threshold" json:"quotesAboveThreshold"`
	QuotesBelowApprovedVendor int `gorm:"not null;default:1;column:quotes_below_approved_vendor" json:"quotesBelowApprovedVendor"`
	QuotesBelowDefault        int `gorm:"not null;default:3;column:quotes_below_default" json:"quotesBelowDefault"`
	// Approver authority cutoffs in the rule currency
	ProcurementLimit  float64 `gorm:"type:decimal(15,2);not null;default:0;column:procurement_limit" json:"procurementLimit"`
	FinanceAdminLimit float64 `gorm:"type:decimal(15,2);not null;default:0;column:finance_admin_limit" json:"financeAdminLimit"`
	CEOLimit          float64 `gorm:"type:decimal(15,2);not null;default:0;column:ceo_limit" json:"ceoLimit"`
	IsActive          bool    `gorm:"not null;default:true;column:is_active" json:"isActive"`
}

// Quote is a vendor-submitted price for a purchase request. A quote only
// counts toward a quote requirement if it carries at least one attachment.
type Quote struct {
	BaseModel
	PurchaseRequestID uuid.UUID `gorm:"type:uuid;not null;index;column:purchase_request_id" json:"purchaseRequestId"`
	VendorID          uuid.UUID `gorm:"type:uuid;not null;index;column:vendor_id" json:"vendorId"`
	VendorName        string    `gorm:"type:varchar(200);column:vendor_name" json:"vendorName"`
	Amount            float64   `gorm:"type:decimal(15,2);not null" json:"amount"`
	Currency          string    `gorm:"type:varchar(3);not null" json:"currency"`
	// Attachments holds opaque storage URIs for supporting documents
	Attachments pq.StringArray `gorm:"type:text[]" json:"attachments"`
	SubmittedAt time.Time      `gorm:"not null;default:CURRENT_TIMESTAMP;column:submitted_at" json:"submittedAt"`
	Notes       string         `gorm:"type:text" json:"notes,omitempty"`
}

// HasAttachments reports whether the quote counts toward quote requirements
func (q *Quote) HasAttachments() bool {
	return len(q.Attachments) > 0
}

// PRStatusHistory is the append-only audit log of status transitions.
// Entries are never mutated or removed once written.
type PRStatusHistory struct {
	ID                uuid.UUID `gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	PurchaseRequestID uuid.UUID `gorm:"type:uuid;not null;index;column:purchase_request_id" json:"purchaseRequestId"`
	FromStatus        *PRStatus `gorm:"type:varchar(50);column:from_status" json:"fromStatus,omitempty"`
	ToStatus          PRStatus  `gorm:"type:varchar(50);not null;column:to_status" json:"toStatus"`
	ActorID           uuid.UUID `gorm:"type:uuid;not null;column:actor_id" json:"actorId"`
	ActorName         string    `gorm:"type:varchar(200);column:actor_name" json:"actorName"`
	Notes             string    `gorm:"type:text" json:"notes,omitempty"`
	ChangedAt         time.Time `gorm:"not null;default:CURRENT_TIMESTAMP;column:changed_at" json:"changedAt"`
}

// BeforeCreate assigns an ID when the database does not
func (h *PRStatusHistory) BeforeCreate(tx *gorm.DB) error {
	if h.ID == uuid.Nil {
		h.ID = uuid.New()
	}
	return nil
}

// TableName overrides the default table name
func (PRStatusHistory) TableName() string {
	return "pr_status_history"
}

// ApprovalHistoryItem records an approver assignment or decision.
// Approved=false entries mark "user X was asked to approve at T";
// Approved=true entries record the approval itself.
type ApprovalHistoryItem struct {
	ID                uuid.UUID `gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	PurchaseRequestID uuid.UUID `gorm:"type:uuid;not null;index;column:purchase_request_id" json:"purchaseRequestId"`
	ApproverID        uuid.UUID `gorm:"type:uuid;not null;index;column:approver_id" json:"approverId"`
	Approved          bool      `gorm:"not null;default:false" json:"approved"`
	Notes             string    `gorm:"type:text" json:"notes,omitempty"`
	CreatedAt         time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"createdAt"`
}

// BeforeCreate assigns an ID when the database does not
func (h *ApprovalHistoryItem) BeforeCreate(tx *gorm.DB) error {
	if h.ID == uuid.Nil {
		h.ID = uuid.New()
	}
	return nil
}

// TableName overrides the default table name
func (ApprovalHistoryItem) TableName() string {
	return "approval_history"
}

// PurchaseRequest is the central approvable document. Once a PR enters the
// approval stage it is re-designated as a purchase order (PO number prefix).
type PurchaseRequest struct {
	BaseModel
	// Number is the human-readable identifier, PR-YYYYMM-NNN while a request,
	// PO-YYYYMM-NNN once in the approval stage
	Number          string        `gorm:"type:varchar(50);unique;index;column:pr_number" json:"number"`
	OrganizationID  string        `gorm:"type:varchar(50);not null;index;column:organization_id" json:"organizationId"`
	Organization    *Organization `gorm:"foreignKey:OrganizationID" json:"organization,omitempty"`
	Status          PRStatus      `gorm:"type:varchar(50);not null;default:'submitted';index" json:"status"`
	Description     string        `gorm:"type:text" json:"description,omitempty"`
	EstimatedAmount float64       `gorm:"type:decimal(15,2);not null;column:estimated_amount" json:"estimatedAmount"`
	Currency        string        `gorm:"type:varchar(3);not null" json:"currency"`

	RequestorID    uuid.UUID `gorm:"type:uuid;not null;index;column:requestor_id" json:"requestorId"`
	RequestorName  string    `gorm:"type:varchar(200);column:requestor_name" json:"requestorName"`
	RequestorEmail string    `gorm:"type:varchar(255);column:requestor_email" json:"requestorEmail"`

	PreferredVendorID *uuid.UUID `gorm:"type:uuid;index;column:preferred_vendor_id" json:"preferredVendorId,omitempty"`
	PreferredVendor   *Vendor    `gorm:"foreignKey:PreferredVendorID" json:"preferredVendor,omitempty"`

	// ApproverID is the authoritative "who is assigned" field.
	// CurrentApproverID is the legacy workflow-block mirror kept for stored
	// document compatibility; divergence is self-healed on read.
	ApproverID          *uuid.UUID `gorm:"type:uuid;index;column:approver_id" json:"approverId,omitempty"`
	Approver            *User      `gorm:"foreignKey:ApproverID" json:"approver,omitempty"`
	CurrentApproverID   *uuid.UUID `gorm:"type:uuid;column:current_approver_id" json:"currentApproverId,omitempty"`
	WorkflowLastUpdated time.Time  `gorm:"not null;default:CURRENT_TIMESTAMP;column:workflow_last_updated" json:"workflowLastUpdated"`

	// AdjudicationNotes justify approvals above the top rule threshold
	AdjudicationNotes string `gorm:"type:text;column:adjudication_notes" json:"adjudicationNotes,omitempty"`
	// IsUrgent affects sort order only, never workflow logic
	IsUrgent bool `gorm:"not null;default:false;column:is_urgent;index" json:"isUrgent"`

	Quotes          []Quote               `gorm:"foreignKey:PurchaseRequestID;constraint:OnDelete:CASCADE" json:"quotes,omitempty"`
	StatusHistory   []PRStatusHistory     `gorm:"foreignKey:PurchaseRequestID" json:"statusHistory,omitempty"`
	ApprovalHistory []ApprovalHistoryItem `gorm:"foreignKey:PurchaseRequestID" json:"approvalHistory,omitempty"`
}

// TableName overrides the default table name
func (PurchaseRequest) TableName() string {
	return "purchase_requests"
}

// LowestQuote returns the quote with the lowest amount, or nil if none exist.
// Threshold comparisons use the lowest quote when quotes are present.
func (pr *PurchaseRequest) LowestQuote() *Quote {
	var lowest *Quote
	for i := range pr.Quotes {
		if lowest == nil || pr.Quotes[i].Amount < lowest.Amount {
			lowest = &pr.Quotes[i]
		}
	}
	return lowest
}

// AttachedQuoteCount counts quotes that carry at least one attachment
func (pr *PurchaseRequest) AttachedQuoteCount() int {
	n := 0
	for i := range pr.Quotes {
		if pr.Quotes[i].HasAttachments() {
			n++
		}
	}
	return n
}

// IsAssignedApprover reports whether the given user is the PR's designated approver
func (pr *PurchaseRequest) IsAssignedApprover(userID uuid.UUID) bool {
	return pr.ApproverID != nil && *pr.ApproverID == userID
}

// NumberSequence tracks the last issued PR number per organization and
// calendar month (period is YYYYMM)
type NumberSequence struct {
	ID             uint      `gorm:"primaryKey;autoIncrement"`
	OrganizationID string    `gorm:"type:varchar(50);not null;uniqueIndex:idx_org_period;column:organization_id"`
	Period         int       `gorm:"not null;uniqueIndex:idx_org_period"`
	LastSequence   int       `gorm:"not null;default:0;column:last_sequence"`
	CreatedAt      time.Time `gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt      time.Time `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName overrides the default table name
func (NumberSequence) TableName() string {
	return "number_sequences"
}

// ExchangeRate is one direction of a currency pair. Conversion falls back to
// inverting the reverse pair when the direct rate is missing.
type ExchangeRate struct {
	ID           uint      `gorm:"primaryKey;autoIncrement"`
	FromCurrency string    `gorm:"type:varchar(3);not null;uniqueIndex:idx_rate_pair;column:from_currency"`
	ToCurrency   string    `gorm:"type:varchar(3);not null;uniqueIndex:idx_rate_pair;column:to_currency"`
	Rate         float64   `gorm:"type:decimal(15,6);not null"`
	UpdatedAt    time.Time `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// NotificationType represents the kind of notification
type NotificationType string

const (
	NotificationApprovalRequested NotificationType = "approval_requested"
	NotificationStatusChanged     NotificationType = "status_changed"
	NotificationRevisionRequired  NotificationType = "revision_required"
	NotificationPRRejected        NotificationType = "pr_rejected"
	NotificationPRApproved        NotificationType = "pr_approved"
)

// Notification represents a persisted user notification. Delivery is
// best-effort; failures never roll back the transition that caused them.
type Notification struct {
	BaseModel
	UserID     uuid.UUID  `gorm:"type:uuid;not null;index" json:"userId"`
	Type       string     `gorm:"type:varchar(50);not null" json:"type"`
	Title      string     `gorm:"type:varchar(200);not null" json:"title"`
	Message    string     `gorm:"type:varchar(500);not null" json:"message"`
	Read       bool       `gorm:"column:read;not null;default:false;index" json:"read"`
	ReadAt     *time.Time `json:"readAt,omitempty"`
	EntityID   *uuid.UUID `gorm:"type:uuid" json:"entityId,omitempty"`
	EntityType string     `gorm:"type:varchar(50)" json:"entityType,omitempty"`
}

// AuditAction represents the type of audited operation
type AuditAction string

const (
	AuditActionCreate     AuditAction = "create"
	AuditActionUpdate     AuditAction = "update"
	AuditActionDelete     AuditAction = "delete"
	AuditActionTransition AuditAction = "transition"
)

// AuditLog represents an audit trail entry for mutating API calls
type AuditLog struct {
	ID             uuid.UUID   `gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	UserID         string      `gorm:"type:varchar(100);column:user_id"`
	UserEmail      string      `gorm:"type:varchar(255);column:user_email"`
	UserName       string      `gorm:"type:varchar(200);column:user_name"`
	Action         AuditAction `gorm:"type:varchar(50);not null"`
	EntityType     string      `gorm:"type:varchar(50);not null;column:entity_type"`
	EntityID       *uuid.UUID  `gorm:"type:uuid;column:entity_id"`
	EntityName     string      `gorm:"type:varchar(200);column:entity_name"`
	OrganizationID string      `gorm:"type:varchar(50);column:organization_id"`
	Changes        string      `gorm:"type:jsonb"`
	IPAddress      string      `gorm:"type:varchar(64);column:ip_address"`
	UserAgent      string      `gorm:"type:text;column:user_agent"`
	RequestID      string      `gorm:"type:varchar(100);column:request_id"`
	PerformedAt    time.Time   `gorm:"not null;default:CURRENT_TIMESTAMP;column:performed_at"`
	CreatedAt      time.Time   `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// BeforeCreate assigns an ID when the database does not
func (a *AuditLog) BeforeCreate(tx *gorm.DB) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	return nil
}

// TableName overrides the default table name
func (AuditLog) TableName() string {
	return "audit_logs"
}

// Attachment represents an uploaded quote document tracked in the database.
// The URI is opaque to the workflow core.
type Attachment struct {
	BaseModel
	QuoteID      uuid.UUID `gorm:"type:uuid;not null;index;column:quote_id" json:"quoteId"`
	FileName     string    `gorm:"type:varchar(255);not null;column:file_name" json:"fileName"`
	ContentType  string    `gorm:"type:varchar(100);column:content_type" json:"contentType,omitempty"`
	SizeBytes    int64     `gorm:"column:size_bytes" json:"sizeBytes"`
	URI          string    `gorm:"type:varchar(1000);not null" json:"uri"`
	UploadedByID uuid.UUID `gorm:"type:uuid;column:uploaded_by_id" json:"uploadedById"`
}
