// Package mapper converts domain entities to API DTOs.
// Mappers never touch the database; callers preload what they need.
package mapper

import (
	"time"

	"github.com/onepwr/procurement-api/internal/domain"
)

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

func formatTimePtr(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := formatTime(*t)
	return &s
}

// ToPurchaseRequestDTO maps a PR with whatever associations are loaded
func ToPurchaseRequestDTO(pr *domain.PurchaseRequest) domain.PurchaseRequestDTO {
	dto := domain.PurchaseRequestDTO{
		ID:                pr.ID,
		Number:            pr.Number,
		OrganizationID:    pr.OrganizationID,
		Status:            pr.Status,
		Description:       pr.Description,
		EstimatedAmount:   pr.EstimatedAmount,
		Currency:          pr.Currency,
		RequestorID:       pr.RequestorID,
		RequestorName:     pr.RequestorName,
		RequestorEmail:    pr.RequestorEmail,
		PreferredVendorID: pr.PreferredVendorID,
		ApproverID:        pr.ApproverID,
		AdjudicationNotes: pr.AdjudicationNotes,
		IsUrgent:          pr.IsUrgent,
		CreatedAt:         formatTime(pr.CreatedAt),
		UpdatedAt:         formatTime(pr.UpdatedAt),
	}

	if pr.PreferredVendor != nil {
		v := ToVendorDTO(pr.PreferredVendor)
		dto.PreferredVendor = &v
	}
	if pr.Approver != nil {
		dto.ApproverName = pr.Approver.DisplayName
	}

	if len(pr.Quotes) > 0 {
		dto.Quotes = make([]domain.QuoteDTO, len(pr.Quotes))
		for i := range pr.Quotes {
			dto.Quotes[i] = ToQuoteDTO(&pr.Quotes[i])
		}
	}

	if len(pr.StatusHistory) > 0 {
		dto.StatusHistory = make([]domain.PRStatusHistoryDTO, len(pr.StatusHistory))
		for i := range pr.StatusHistory {
			dto.StatusHistory[i] = ToPRStatusHistoryDTO(&pr.StatusHistory[i])
		}
	}

	dto.ApprovalWorkflow = ToApprovalWorkflowDTO(pr)

	return dto
}

// ToApprovalWorkflowDTO builds the workflow block from the PR's approver
// assignment and approval history
func ToApprovalWorkflowDTO(pr *domain.PurchaseRequest) *domain.ApprovalWorkflowDTO {
	dto := &domain.ApprovalWorkflowDTO{
		CurrentApproverID: pr.ApproverID,
		LastUpdated:       formatTime(pr.WorkflowLastUpdated),
	}
	if len(pr.ApprovalHistory) > 0 {
		dto.ApprovalHistory = make([]domain.ApprovalHistoryItemDTO, len(pr.ApprovalHistory))
		for i := range pr.ApprovalHistory {
			dto.ApprovalHistory[i] = ToApprovalHistoryItemDTO(&pr.ApprovalHistory[i])
		}
	}
	return dto
}

func ToApprovalHistoryItemDTO(item *domain.ApprovalHistoryItem) domain.ApprovalHistoryItemDTO {
	return domain.ApprovalHistoryItemDTO{
		ID:         item.ID,
		ApproverID: item.ApproverID,
		Approved:   item.Approved,
		Notes:      item.Notes,
		Timestamp:  formatTime(item.CreatedAt),
	}
}

func ToPRStatusHistoryDTO(h *domain.PRStatusHistory) domain.PRStatusHistoryDTO {
	return domain.PRStatusHistoryDTO{
		ID:         h.ID,
		FromStatus: h.FromStatus,
		ToStatus:   h.ToStatus,
		ActorID:    h.ActorID,
		ActorName:  h.ActorName,
		Notes:      h.Notes,
		ChangedAt:  formatTime(h.ChangedAt),
	}
}

func ToQuoteDTO(q *domain.Quote) domain.QuoteDTO {
	return domain.QuoteDTO{
		ID:          q.ID,
		VendorID:    q.VendorID,
		VendorName:  q.VendorName,
		Amount:      q.Amount,
		Currency:    q.Currency,
		Attachments: append([]string{}, q.Attachments...),
		SubmittedAt: formatTime(q.SubmittedAt),
		Notes:       q.Notes,
	}
}

func ToVendorDTO(v *domain.Vendor) domain.VendorDTO {
	return domain.VendorDTO{
		ID:             v.ID,
		Name:           v.Name,
		OrganizationID: v.OrganizationID,
		ContactEmail:   v.ContactEmail,
		ContactPhone:   v.ContactPhone,
		IsApproved:     v.IsApproved,
		IsActive:       v.IsActive,
	}
}

func ToRuleDTO(r *domain.Rule) domain.RuleDTO {
	return domain.RuleDTO{
		ID:                        r.ID,
		OrganizationID:            r.OrganizationID,
		Threshold:                 r.Threshold,
		Currency:                  r.Currency,
		QuotesAboveThreshold:      r.QuotesAboveThreshold,
		QuotesBelowApprovedVendor: r.QuotesBelowApprovedVendor,
		QuotesBelowDefault:        r.QuotesBelowDefault,
		ProcurementLimit:          r.ProcurementLimit,
		FinanceAdminLimit:         r.FinanceAdminLimit,
		CEOLimit:                  r.CEOLimit,
	}
}

func ToUserDTO(u *domain.User) domain.UserDTO {
	return domain.UserDTO{
		ID:              u.ID,
		DisplayName:     u.DisplayName,
		Email:           u.Email,
		PermissionLevel: u.PermissionLevel,
		OrganizationID:  u.OrganizationID,
		Department:      u.Department,
		IsActive:        u.IsActive,
	}
}

func ToOrganizationDTO(o *domain.Organization) domain.OrganizationDTO {
	return domain.OrganizationDTO{
		ID:           o.ID,
		Name:         o.Name,
		BaseCurrency: o.BaseCurrency,
		IsActive:     o.IsActive,
	}
}

func ToNotificationDTO(n *domain.Notification) domain.NotificationDTO {
	return domain.NotificationDTO{
		ID:         n.ID,
		UserID:     n.UserID,
		Type:       n.Type,
		Title:      n.Title,
		Message:    n.Message,
		Read:       n.Read,
		ReadAt:     formatTimePtr(n.ReadAt),
		EntityID:   n.EntityID,
		EntityType: n.EntityType,
		CreatedAt:  formatTime(n.CreatedAt),
	}
}

func ToAuditLogDTO(a *domain.AuditLog) domain.AuditLogDTO {
	return domain.AuditLogDTO{
		ID:             a.ID,
		UserID:         a.UserID,
		UserEmail:      a.UserEmail,
		UserName:       a.UserName,
		Action:         a.Action,
		EntityType:     a.EntityType,
		EntityID:       a.EntityID,
		EntityName:     a.EntityName,
		OrganizationID: a.OrganizationID,
		Changes:        a.Changes,
		RequestID:      a.RequestID,
		PerformedAt:    formatTime(a.PerformedAt),
	}
}
