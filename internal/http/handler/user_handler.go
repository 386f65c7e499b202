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

// UserHandler handles HTTP requests for the user directory
type UserHandler struct {
	userService *service.UserService
	logger      *zap.Logger
}

// NewUserHandler creates a new UserHandler instance
func NewUserHandler(userService *service.UserService, logger *zap.Logger) *UserHandler {
	return &UserHandler{
		userService: userService,
		logger:      logger,
	}
}

// GetCurrent godoc
// @Summary Get current user
// @Description Get the directory record for the authenticated user, including permission level and organization
// @Tags Users
// @Produce json
// @Success 200 {object} domain.UserDTO
// @Failure 404 {object} domain.APIError
// @Security BearerAuth
// @Router /users/me [get]
func (h *UserHandler) GetCurrent(w http.ResponseWriter, r *http.Request) {
	dto, err := h.userService.GetCurrent(r.Context())
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, dto)
}

// GetByID godoc
// @Summary Get user
// @Tags Users
// @Produce json
// @Param id path string true "User ID" format(uuid)
// @Success 200 {object} domain.UserDTO
// @Failure 404 {object} domain.APIError
// @Security BearerAuth
// @Router /users/{id} [get]
func (h *UserHandler) GetByID(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid user ID format")
		return
	}

	dto, err := h.userService.GetByID(r.Context(), id)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, dto)
}

// List godoc
// @Summary List users
// @Description List directory users scoped to the caller's organization
// @Tags Users
// @Produce json
// @Param page query int false "Page number" default(1)
// @Param pageSize query int false "Items per page (max 200)" default(50)
// @Success 200 {object} domain.ListResponse[domain.UserDTO]
// @Security BearerAuth
// @Router /users [get]
func (h *UserHandler) List(w http.ResponseWriter, r *http.Request) {
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	pageSize, _ := strconv.Atoi(r.URL.Query().Get("pageSize"))

	result, err := h.userService.List(r.Context(), page, pageSize)
	if err != nil {
		h.logger.Error("failed to list users", zap.Error(err))
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, result)
}

// ListApprovers godoc
// @Summary List eligible approvers
// @Description List active users holding a permission level for an organization
// @Tags Users
// @Produce json
// @Param orgId path string true "Organization ID"
// @Param level query int true "Permission level" Enums(1, 2, 3, 6)
// @Success 200 {array} domain.UserDTO
// @Failure 403 {object} domain.APIError
// @Security BearerAuth
// @Router /organizations/{orgId}/approvers [get]
func (h *UserHandler) ListApprovers(w http.ResponseWriter, r *http.Request) {
	orgID := chi.URLParam(r, "orgId")
	if orgID == "" {
		respondWithError(w, http.StatusBadRequest, "Organization ID is required")
		return
	}

	level, err := strconv.Atoi(r.URL.Query().Get("level"))
	if err != nil || !domain.PermissionLevel(level).IsApprover() {
		respondWithError(w, http.StatusBadRequest, "level must be an approver permission level")
		return
	}

	approvers, err := h.userService.ListApprovers(r.Context(), orgID, domain.PermissionLevel(level))
	if err != nil {
		respondServiceError(w, err)
		return
	}
	if approvers == nil {
		approvers = []domain.UserDTO{}
	}

	respondJSON(w, http.StatusOK, approvers)
}

// SetPermissionLevel godoc
// @Summary Set user permission level
// @Description Change a user's permission level and organization assignment. Procurement admins only.
// @Tags Users
// @Accept json
// @Produce json
// @Param id path string true "User ID" format(uuid)
// @Param request body domain.SetPermissionLevelRequest true "New level"
// @Success 200 {object} domain.UserDTO
// @Failure 403 {object} domain.APIError
// @Security BearerAuth
// @Router /users/{id}/permission-level [put]
func (h *UserHandler) SetPermissionLevel(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid user ID format")
		return
	}

	var req domain.SetPermissionLevelRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if err := validate.Struct(&req); err != nil {
		respondValidationError(w, err)
		return
	}

	dto, err := h.userService.SetPermissionLevel(r.Context(), id, req.PermissionLevel, req.OrganizationID)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, dto)
}

// Deactivate godoc
// @Summary Deactivate user
// @Description Remove a user from the eligible approver pool without deleting their history
// @Tags Users
// @Param id path string true "User ID" format(uuid)
// @Success 204 "No Content"
// @Failure 403 {object} domain.APIError
// @Security BearerAuth
// @Router /users/{id} [delete]
func (h *UserHandler) Deactivate(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid user ID format")
		return
	}

	if err := h.userService.Deactivate(r.Context(), id); err != nil {
		respondServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
