package handler

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/onepwr/procurement-api/internal/domain"
	"github.com/onepwr/procurement-api/internal/service"
	"go.uber.org/zap"
)

// RuleHandler handles HTTP requests for approval rules and exchange rates
type RuleHandler struct {
	ruleService     *service.RuleService
	currencyService *service.CurrencyService
	logger          *zap.Logger
}

// NewRuleHandler creates a new RuleHandler instance
func NewRuleHandler(ruleService *service.RuleService, currencyService *service.CurrencyService, logger *zap.Logger) *RuleHandler {
	return &RuleHandler{
		ruleService:     ruleService,
		currencyService: currencyService,
		logger:          logger,
	}
}

// Create godoc
// @Summary Create approval rule
// @Description Add a rule tier for an organization. The validator needs at least two tiers.
// @Tags Rules
// @Accept json
// @Produce json
// @Param request body domain.CreateRuleRequest true "Rule"
// @Success 201 {object} domain.RuleDTO
// @Failure 403 {object} domain.APIError
// @Failure 409 {object} domain.APIError
// @Security BearerAuth
// @Router /rules [post]
func (h *RuleHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req domain.CreateRuleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if err := validate.Struct(&req); err != nil {
		respondValidationError(w, err)
		return
	}

	dto, err := h.ruleService.Create(r.Context(), &req)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusCreated, dto)
}

// ListForOrganization godoc
// @Summary List approval rules
// @Description List an organization's active rule tiers, lowest threshold first
// @Tags Rules
// @Produce json
// @Param orgId path string true "Organization ID"
// @Success 200 {array} domain.RuleDTO
// @Security BearerAuth
// @Router /organizations/{orgId}/rules [get]
func (h *RuleHandler) ListForOrganization(w http.ResponseWriter, r *http.Request) {
	orgID := chi.URLParam(r, "orgId")
	if orgID == "" {
		respondWithError(w, http.StatusBadRequest, "Organization ID is required")
		return
	}

	rules, err := h.ruleService.ListForOrganization(r.Context(), orgID)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	if rules == nil {
		rules = []domain.RuleDTO{}
	}

	respondJSON(w, http.StatusOK, rules)
}

// Update godoc
// @Summary Update approval rule
// @Tags Rules
// @Accept json
// @Produce json
// @Param id path string true "Rule ID" format(uuid)
// @Param request body domain.UpdateRuleRequest true "Fields to update"
// @Success 200 {object} domain.RuleDTO
// @Failure 403 {object} domain.APIError
// @Security BearerAuth
// @Router /rules/{id} [put]
func (h *RuleHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid rule ID format")
		return
	}

	var req domain.UpdateRuleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if err := validate.Struct(&req); err != nil {
		respondValidationError(w, err)
		return
	}

	dto, err := h.ruleService.Update(r.Context(), id, &req)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, dto)
}

// Deactivate godoc
// @Summary Deactivate approval rule
// @Tags Rules
// @Param id path string true "Rule ID" format(uuid)
// @Success 204 "No Content"
// @Failure 403 {object} domain.APIError
// @Security BearerAuth
// @Router /rules/{id} [delete]
func (h *RuleHandler) Deactivate(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid rule ID format")
		return
	}

	if err := h.ruleService.Deactivate(r.Context(), id); err != nil {
		respondServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// ListRates godoc
// @Summary List exchange rates
// @Tags ExchangeRates
// @Produce json
// @Success 200 {array} domain.ExchangeRate
// @Security BearerAuth
// @Router /exchange-rates [get]
func (h *RuleHandler) ListRates(w http.ResponseWriter, r *http.Request) {
	rates, err := h.currencyService.ListRates(r.Context())
	if err != nil {
		h.logger.Error("failed to list exchange rates", zap.Error(err))
		respondServiceError(w, err)
		return
	}
	if rates == nil {
		rates = []domain.ExchangeRate{}
	}

	respondJSON(w, http.StatusOK, rates)
}

// UpsertRate godoc
// @Summary Upsert exchange rate
// @Description Store or replace the rate for a currency pair
// @Tags ExchangeRates
// @Accept json
// @Produce json
// @Param request body domain.UpsertExchangeRateRequest true "Rate"
// @Success 204 "No Content"
// @Failure 403 {object} domain.APIError
// @Security BearerAuth
// @Router /exchange-rates [put]
func (h *RuleHandler) UpsertRate(w http.ResponseWriter, r *http.Request) {
	var req domain.UpsertExchangeRateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if err := validate.Struct(&req); err != nil {
		respondValidationError(w, err)
		return
	}

	rate := &domain.ExchangeRate{
		FromCurrency: req.FromCurrency,
		ToCurrency:   req.ToCurrency,
		Rate:         req.Rate,
	}
	if err := h.currencyService.UpsertRate(r.Context(), rate); err != nil {
		respondServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
