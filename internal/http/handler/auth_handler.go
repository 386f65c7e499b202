package handler

import (
	"errors"
	"net/http"

	"github.com/onepwr/procurement-api/internal/service"
	"go.uber.org/zap"
)

// AuthHandler handles login bookkeeping for authenticated callers
type AuthHandler struct {
	userService *service.UserService
	logger      *zap.Logger
}

// NewAuthHandler creates a new AuthHandler instance
func NewAuthHandler(userService *service.UserService, logger *zap.Logger) *AuthHandler {
	return &AuthHandler{
		userService: userService,
		logger:      logger,
	}
}

// Me godoc
// @Summary Get current authenticated user
// @Description Upserts the caller's directory record, stamps last login, and returns the record with permission level and organization
// @Tags Auth
// @Produce json
// @Success 200 {object} domain.UserDTO
// @Failure 401 {object} domain.APIError
// @Security BearerAuth
// @Router /auth/me [get]
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	if err := h.userService.RecordLogin(r.Context()); err != nil {
		if errors.Is(err, service.ErrUserContextRequired) {
			respondServiceError(w, err)
			return
		}
		// Directory bookkeeping must not block login
		h.logger.Warn("failed to record login", zap.Error(err))
	}

	dto, err := h.userService.GetCurrent(r.Context())
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, dto)
}
