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

// VendorHandler handles HTTP requests for the vendor register
type VendorHandler struct {
	vendorService *service.VendorService
	logger        *zap.Logger
}

// NewVendorHandler creates a new VendorHandler instance
func NewVendorHandler(vendorService *service.VendorService, logger *zap.Logger) *VendorHandler {
	return &VendorHandler{
		vendorService: vendorService,
		logger:        logger,
	}
}

// Create godoc
// @Summary Create vendor
// @Tags Vendors
// @Accept json
// @Produce json
// @Param request body domain.CreateVendorRequest true "Vendor"
// @Success 201 {object} domain.VendorDTO
// @Failure 403 {object} domain.APIError
// @Security BearerAuth
// @Router /vendors [post]
func (h *VendorHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req domain.CreateVendorRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if err := validate.Struct(&req); err != nil {
		respondValidationError(w, err)
		return
	}

	dto, err := h.vendorService.Create(r.Context(), &req)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusCreated, dto)
}

// GetByID godoc
// @Summary Get vendor
// @Tags Vendors
// @Produce json
// @Param id path string true "Vendor ID" format(uuid)
// @Success 200 {object} domain.VendorDTO
// @Failure 404 {object} domain.APIError
// @Security BearerAuth
// @Router /vendors/{id} [get]
func (h *VendorHandler) GetByID(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid vendor ID format")
		return
	}

	dto, err := h.vendorService.GetByID(r.Context(), id)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, dto)
}

// List godoc
// @Summary List vendors
// @Description List active vendors scoped to the caller's organization
// @Tags Vendors
// @Produce json
// @Param approvedOnly query bool false "Only pre-approved vendors" default(false)
// @Param page query int false "Page number" default(1)
// @Param pageSize query int false "Items per page (max 200)" default(50)
// @Success 200 {object} domain.ListResponse[domain.VendorDTO]
// @Security BearerAuth
// @Router /vendors [get]
func (h *VendorHandler) List(w http.ResponseWriter, r *http.Request) {
	approvedOnly := r.URL.Query().Get("approvedOnly") == "true"
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	pageSize, _ := strconv.Atoi(r.URL.Query().Get("pageSize"))

	result, err := h.vendorService.List(r.Context(), approvedOnly, page, pageSize)
	if err != nil {
		h.logger.Error("failed to list vendors", zap.Error(err))
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, result)
}

// SetApproved godoc
// @Summary Set vendor pre-approval
// @Description Flip a vendor's pre-approval flag, which controls single-quote eligibility
// @Tags Vendors
// @Produce json
// @Param id path string true "Vendor ID" format(uuid)
// @Param approved query bool true "Pre-approval value"
// @Success 200 {object} domain.VendorDTO
// @Failure 403 {object} domain.APIError
// @Security BearerAuth
// @Router /vendors/{id}/approval [put]
func (h *VendorHandler) SetApproved(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid vendor ID format")
		return
	}

	approved, err := strconv.ParseBool(r.URL.Query().Get("approved"))
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "approved must be true or false")
		return
	}

	dto, err := h.vendorService.SetApproved(r.Context(), id, approved)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, dto)
}

// Deactivate godoc
// @Summary Deactivate vendor
// @Tags Vendors
// @Param id path string true "Vendor ID" format(uuid)
// @Success 204 "No Content"
// @Failure 403 {object} domain.APIError
// @Security BearerAuth
// @Router /vendors/{id} [delete]
func (h *VendorHandler) Deactivate(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid vendor ID format")
		return
	}

	if err := h.vendorService.Deactivate(r.Context(), id); err != nil {
		respondServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
