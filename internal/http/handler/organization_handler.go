package handler

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/onepwr/procurement-api/internal/domain"
	"github.com/onepwr/procurement-api/internal/service"
	"go.uber.org/zap"
)

// OrganizationHandler handles HTTP requests for operating organizations
type OrganizationHandler struct {
	orgService *service.OrganizationService
	logger     *zap.Logger
}

// NewOrganizationHandler creates a new OrganizationHandler instance
func NewOrganizationHandler(orgService *service.OrganizationService, logger *zap.Logger) *OrganizationHandler {
	return &OrganizationHandler{
		orgService: orgService,
		logger:     logger,
	}
}

// Create godoc
// @Summary Create organization
// @Tags Organizations
// @Accept json
// @Produce json
// @Param request body domain.Organization true "Organization"
// @Success 201 {object} domain.OrganizationDTO
// @Failure 403 {object} domain.APIError
// @Failure 409 {object} domain.APIError
// @Security BearerAuth
// @Router /organizations [post]
func (h *OrganizationHandler) Create(w http.ResponseWriter, r *http.Request) {
	var org domain.Organization
	if err := json.NewDecoder(r.Body).Decode(&org); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	dto, err := h.orgService.Create(r.Context(), &org)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusCreated, dto)
}

// GetByID godoc
// @Summary Get organization
// @Tags Organizations
// @Produce json
// @Param orgId path string true "Organization ID"
// @Success 200 {object} domain.OrganizationDTO
// @Failure 404 {object} domain.APIError
// @Security BearerAuth
// @Router /organizations/{orgId} [get]
func (h *OrganizationHandler) GetByID(w http.ResponseWriter, r *http.Request) {
	orgID := chi.URLParam(r, "orgId")
	if orgID == "" {
		respondWithError(w, http.StatusBadRequest, "Organization ID is required")
		return
	}

	dto, err := h.orgService.GetByID(r.Context(), orgID)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, dto)
}

// List godoc
// @Summary List organizations
// @Description List active organizations visible to the caller
// @Tags Organizations
// @Produce json
// @Success 200 {array} domain.OrganizationDTO
// @Security BearerAuth
// @Router /organizations [get]
func (h *OrganizationHandler) List(w http.ResponseWriter, r *http.Request) {
	orgs, err := h.orgService.List(r.Context())
	if err != nil {
		h.logger.Error("failed to list organizations", zap.Error(err))
		respondServiceError(w, err)
		return
	}
	if orgs == nil {
		orgs = []domain.OrganizationDTO{}
	}

	respondJSON(w, http.StatusOK, orgs)
}

// Update godoc
// @Summary Update organization
// @Tags Organizations
// @Accept json
// @Produce json
// @Param orgId path string true "Organization ID"
// @Param request body domain.Organization true "Fields to update"
// @Success 200 {object} domain.OrganizationDTO
// @Failure 403 {object} domain.APIError
// @Security BearerAuth
// @Router /organizations/{orgId} [put]
func (h *OrganizationHandler) Update(w http.ResponseWriter, r *http.Request) {
	orgID := chi.URLParam(r, "orgId")
	if orgID == "" {
		respondWithError(w, http.StatusBadRequest, "Organization ID is required")
		return
	}

	var org domain.Organization
	if err := json.NewDecoder(r.Body).Decode(&org); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	org.ID = orgID

	dto, err := h.orgService.Update(r.Context(), &org)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, dto)
}
