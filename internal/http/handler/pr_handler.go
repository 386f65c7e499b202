package handler

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/onepwr/procurement-api/internal/domain"
	"github.com/onepwr/procurement-api/internal/service"
	"go.uber.org/zap"
)

// PurchaseRequestHandler handles HTTP requests for purchase requests and
// their workflow operations
type PurchaseRequestHandler struct {
	prService *service.PurchaseRequestService
	logger    *zap.Logger
}

// NewPurchaseRequestHandler creates a new PurchaseRequestHandler instance
func NewPurchaseRequestHandler(prService *service.PurchaseRequestService, logger *zap.Logger) *PurchaseRequestHandler {
	return &PurchaseRequestHandler{
		prService: prService,
		logger:    logger,
	}
}

// Create godoc
// @Summary Create purchase request
// @Description Create a new purchase request in draft status
// @Tags PurchaseRequests
// @Accept json
// @Produce json
// @Param request body domain.CreatePurchaseRequestRequest true "Purchase request"
// @Success 201 {object} domain.PurchaseRequestDTO
// @Failure 400 {object} domain.APIError
// @Failure 401 {object} domain.APIError
// @Failure 403 {object} domain.APIError
// @Security BearerAuth
// @Router /purchase-requests [post]
func (h *PurchaseRequestHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req domain.CreatePurchaseRequestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if err := validate.Struct(&req); err != nil {
		respondValidationError(w, err)
		return
	}

	dto, err := h.prService.Create(r.Context(), &req)
	if err != nil {
		h.logger.Warn("failed to create purchase request", zap.Error(err))
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusCreated, dto)
}

// GetByID godoc
// @Summary Get purchase request
// @Description Get a purchase request with quotes, workflow block and history
// @Tags PurchaseRequests
// @Produce json
// @Param id path string true "Purchase request ID" format(uuid)
// @Success 200 {object} domain.PurchaseRequestDTO
// @Failure 404 {object} domain.APIError
// @Security BearerAuth
// @Router /purchase-requests/{id} [get]
func (h *PurchaseRequestHandler) GetByID(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid purchase request ID format")
		return
	}

	dto, err := h.prService.GetByID(r.Context(), id)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, dto)
}

// GetByNumber godoc
// @Summary Get purchase request by number
// @Description Look up a purchase request by its PR or PO number
// @Tags PurchaseRequests
// @Produce json
// @Param number path string true "PR/PO number"
// @Success 200 {object} domain.PurchaseRequestDTO
// @Failure 404 {object} domain.APIError
// @Security BearerAuth
// @Router /purchase-requests/number/{number} [get]
func (h *PurchaseRequestHandler) GetByNumber(w http.ResponseWriter, r *http.Request) {
	number := chi.URLParam(r, "number")
	if number == "" {
		respondWithError(w, http.StatusBadRequest, "Number is required")
		return
	}

	dto, err := h.prService.GetByNumber(r.Context(), number)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, dto)
}

// List godoc
// @Summary List purchase requests
// @Description List purchase requests with filters, urgent first then newest
// @Tags PurchaseRequests
// @Produce json
// @Param status query string false "Filter by status"
// @Param requestorId query string false "Filter by requestor" format(uuid)
// @Param approverId query string false "Filter by assigned approver" format(uuid)
// @Param page query int false "Page number" default(1)
// @Param pageSize query int false "Items per page (max 200)" default(50)
// @Success 200 {object} domain.ListResponse[domain.PurchaseRequestDTO]
// @Security BearerAuth
// @Router /purchase-requests [get]
func (h *PurchaseRequestHandler) List(w http.ResponseWriter, r *http.Request) {
	filter := &domain.PRListFilter{}

	if s := r.URL.Query().Get("status"); s != "" {
		status := domain.PRStatus(s)
		if !status.IsValid() {
			respondWithError(w, http.StatusBadRequest, "Invalid status filter")
			return
		}
		filter.Status = &status
	}
	if s := r.URL.Query().Get("requestorId"); s != "" {
		id, err := uuid.Parse(s)
		if err != nil {
			respondWithError(w, http.StatusBadRequest, "Invalid requestorId format")
			return
		}
		filter.RequestorID = &id
	}
	if s := r.URL.Query().Get("approverId"); s != "" {
		id, err := uuid.Parse(s)
		if err != nil {
			respondWithError(w, http.StatusBadRequest, "Invalid approverId format")
			return
		}
		filter.ApproverID = &id
	}
	filter.Page, _ = strconv.Atoi(r.URL.Query().Get("page"))
	filter.PageSize, _ = strconv.Atoi(r.URL.Query().Get("pageSize"))

	result, err := h.prService.List(r.Context(), filter)
	if err != nil {
		h.logger.Error("failed to list purchase requests", zap.Error(err))
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, result)
}

// Update godoc
// @Summary Update purchase request
// @Description Edit request fields while the request is still editable
// @Tags PurchaseRequests
// @Accept json
// @Produce json
// @Param id path string true "Purchase request ID" format(uuid)
// @Param request body domain.UpdatePurchaseRequestRequest true "Fields to update"
// @Success 200 {object} domain.PurchaseRequestDTO
// @Failure 409 {object} domain.APIError
// @Security BearerAuth
// @Router /purchase-requests/{id} [put]
func (h *PurchaseRequestHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid purchase request ID format")
		return
	}

	var req domain.UpdatePurchaseRequestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if err := validate.Struct(&req); err != nil {
		respondValidationError(w, err)
		return
	}

	dto, err := h.prService.Update(r.Context(), id, &req)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, dto)
}

// Delete godoc
// @Summary Delete purchase request
// @Description Permanently delete a draft purchase request
// @Tags PurchaseRequests
// @Param id path string true "Purchase request ID" format(uuid)
// @Success 204 "No Content"
// @Failure 409 {object} domain.APIError
// @Security BearerAuth
// @Router /purchase-requests/{id} [delete]
func (h *PurchaseRequestHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid purchase request ID format")
		return
	}

	if err := h.prService.Delete(r.Context(), id); err != nil {
		respondServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// Transition godoc
// @Summary Transition purchase request status
// @Description Move a purchase request to a target status through the workflow guard and approval validation
// @Tags PurchaseRequests
// @Accept json
// @Produce json
// @Param id path string true "Purchase request ID" format(uuid)
// @Param request body domain.TransitionRequest true "Target status and notes"
// @Success 200 {object} domain.PurchaseRequestDTO
// @Failure 409 {object} domain.APIError
// @Failure 422 {object} domain.APIError "approval_blocked with violations list"
// @Security BearerAuth
// @Router /purchase-requests/{id}/transition [post]
func (h *PurchaseRequestHandler) Transition(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid purchase request ID format")
		return
	}

	var req domain.TransitionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if err := validate.Struct(&req); err != nil {
		respondValidationError(w, err)
		return
	}

	dto, err := h.prService.Transition(r.Context(), id, &req)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, dto)
}

// AllowedTransitions godoc
// @Summary List allowed transitions
// @Description List the statuses reachable from the request's current status
// @Tags PurchaseRequests
// @Produce json
// @Param id path string true "Purchase request ID" format(uuid)
// @Success 200 {array} string
// @Security BearerAuth
// @Router /purchase-requests/{id}/transitions [get]
func (h *PurchaseRequestHandler) AllowedTransitions(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid purchase request ID format")
		return
	}

	targets, err := h.prService.AllowedTransitions(r.Context(), id)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	if targets == nil {
		targets = []domain.PRStatus{}
	}

	respondJSON(w, http.StatusOK, targets)
}

// ValidateApproval godoc
// @Summary Dry-run approval validation
// @Description Check whether the request would pass approval validation for a target status without changing anything
// @Tags PurchaseRequests
// @Produce json
// @Param id path string true "Purchase request ID" format(uuid)
// @Param target query string false "Target status" default(pending_approval)
// @Success 200 {object} domain.ValidationResultDTO
// @Failure 422 {object} domain.APIError "reference data missing"
// @Security BearerAuth
// @Router /purchase-requests/{id}/validate [get]
func (h *PurchaseRequestHandler) ValidateApproval(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid purchase request ID format")
		return
	}

	target := domain.PRStatusPendingApproval
	if s := r.URL.Query().Get("target"); s != "" {
		target = domain.PRStatus(s)
		if target != domain.PRStatusPendingApproval && target != domain.PRStatusApproved {
			respondWithError(w, http.StatusBadRequest, "Target must be pending_approval or approved")
			return
		}
	}

	result, err := h.prService.ValidateApproval(r.Context(), id, target)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, result)
}

// AssignApprover godoc
// @Summary Manually assign approver
// @Description Assign an approver, overriding computed selection. Manual assignment wins in later resolution.
// @Tags PurchaseRequests
// @Accept json
// @Produce json
// @Param id path string true "Purchase request ID" format(uuid)
// @Param request body domain.AssignApproverRequest true "Approver assignment"
// @Success 200 {object} domain.PurchaseRequestDTO
// @Failure 403 {object} domain.APIError
// @Security BearerAuth
// @Router /purchase-requests/{id}/approver [put]
func (h *PurchaseRequestHandler) AssignApprover(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid purchase request ID format")
		return
	}

	var req domain.AssignApproverRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if err := validate.Struct(&req); err != nil {
		respondValidationError(w, err)
		return
	}

	dto, err := h.prService.AssignApprover(r.Context(), id, &req)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, dto)
}

// ResolveApprover godoc
// @Summary Resolve current approver
// @Description Recompute the current approver and persist any change, including mirror self-heal
// @Tags PurchaseRequests
// @Produce json
// @Param id path string true "Purchase request ID" format(uuid)
// @Success 200 {object} domain.ApprovalWorkflowDTO
// @Security BearerAuth
// @Router /purchase-requests/{id}/approver/resolve [post]
func (h *PurchaseRequestHandler) ResolveApprover(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid purchase request ID format")
		return
	}

	dto, err := h.prService.ResolveApprover(r.Context(), id)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, dto)
}

// Stats godoc
// @Summary Purchase request counts by status
// @Description Per-status counts scoped to the caller's organization
// @Tags PurchaseRequests
// @Produce json
// @Success 200 {object} map[string]int64
// @Security BearerAuth
// @Router /purchase-requests/stats [get]
func (h *PurchaseRequestHandler) Stats(w http.ResponseWriter, r *http.Request) {
	counts, err := h.prService.CountByStatus(r.Context())
	if err != nil {
		h.logger.Error("failed to count purchase requests", zap.Error(err))
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, counts)
}
