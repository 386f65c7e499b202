package handler

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/onepwr/procurement-api/internal/domain"
	"github.com/onepwr/procurement-api/internal/service"
	"go.uber.org/zap"
)

// maxAttachmentSize caps quote document uploads at 20 MiB
const maxAttachmentSize = 20 << 20

// QuoteHandler handles HTTP requests for quotes and their attachments
type QuoteHandler struct {
	quoteService *service.QuoteService
	logger       *zap.Logger
}

// NewQuoteHandler creates a new QuoteHandler instance
func NewQuoteHandler(quoteService *service.QuoteService, logger *zap.Logger) *QuoteHandler {
	return &QuoteHandler{
		quoteService: quoteService,
		logger:       logger,
	}
}

// Add godoc
// @Summary Add quote
// @Description Add a vendor quote to a purchase request
// @Tags Quotes
// @Accept json
// @Produce json
// @Param id path string true "Purchase request ID" format(uuid)
// @Param request body domain.AddQuoteRequest true "Quote"
// @Success 201 {object} domain.QuoteDTO
// @Failure 409 {object} domain.APIError
// @Security BearerAuth
// @Router /purchase-requests/{id}/quotes [post]
func (h *QuoteHandler) Add(w http.ResponseWriter, r *http.Request) {
	prID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid purchase request ID format")
		return
	}

	var req domain.AddQuoteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if err := validate.Struct(&req); err != nil {
		respondValidationError(w, err)
		return
	}

	dto, err := h.quoteService.AddQuote(r.Context(), prID, &req)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusCreated, dto)
}

// List godoc
// @Summary List quotes
// @Description List all quotes for a purchase request, lowest amount first
// @Tags Quotes
// @Produce json
// @Param id path string true "Purchase request ID" format(uuid)
// @Success 200 {array} domain.QuoteDTO
// @Security BearerAuth
// @Router /purchase-requests/{id}/quotes [get]
func (h *QuoteHandler) List(w http.ResponseWriter, r *http.Request) {
	prID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid purchase request ID format")
		return
	}

	quotes, err := h.quoteService.ListQuotes(r.Context(), prID)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	if quotes == nil {
		quotes = []domain.QuoteDTO{}
	}

	respondJSON(w, http.StatusOK, quotes)
}

// UploadAttachment godoc
// @Summary Upload quote attachment
// @Description Upload a supporting document for a quote. A quote counts toward quote requirements only once it has an attachment.
// @Tags Quotes
// @Accept multipart/form-data
// @Produce json
// @Param id path string true "Purchase request ID" format(uuid)
// @Param quoteId path string true "Quote ID" format(uuid)
// @Param file formData file true "Document"
// @Success 200 {object} domain.QuoteDTO
// @Failure 413 {object} domain.APIError
// @Security BearerAuth
// @Router /purchase-requests/{id}/quotes/{quoteId}/attachments [post]
func (h *QuoteHandler) UploadAttachment(w http.ResponseWriter, r *http.Request) {
	prID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid purchase request ID format")
		return
	}
	quoteID, err := uuid.Parse(chi.URLParam(r, "quoteId"))
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid quote ID format")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxAttachmentSize)
	if err := r.ParseMultipartForm(maxAttachmentSize); err != nil {
		respondWithError(w, http.StatusRequestEntityTooLarge, "File exceeds the 20 MiB limit")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Missing file field")
		return
	}
	defer file.Close()

	contentType := header.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	dto, err := h.quoteService.UploadAttachment(r.Context(), prID, quoteID, header.Filename, contentType, file)
	if err != nil {
		h.logger.Warn("attachment upload failed",
			zap.String("quoteID", quoteID.String()),
			zap.Error(err))
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, dto)
}

// DownloadAttachment godoc
// @Summary Download attachment
// @Description Stream a stored quote attachment
// @Tags Quotes
// @Produce octet-stream
// @Param attachmentId path string true "Attachment ID" format(uuid)
// @Success 200 {file} binary
// @Failure 404 {object} domain.APIError
// @Security BearerAuth
// @Router /attachments/{attachmentId} [get]
func (h *QuoteHandler) DownloadAttachment(w http.ResponseWriter, r *http.Request) {
	attachmentID, err := uuid.Parse(chi.URLParam(r, "attachmentId"))
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid attachment ID format")
		return
	}

	attachment, reader, err := h.quoteService.DownloadAttachment(r.Context(), attachmentID)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	defer reader.Close()

	w.Header().Set("Content-Type", attachment.ContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", attachment.FileName))
	if attachment.SizeBytes > 0 {
		w.Header().Set("Content-Length", fmt.Sprintf("%d", attachment.SizeBytes))
	}

	if _, err := io.Copy(w, reader); err != nil {
		h.logger.Warn("attachment stream interrupted",
			zap.String("attachmentID", attachmentID.String()),
			zap.Error(err))
	}
}

// Delete godoc
// @Summary Delete quote
// @Description Remove a quote while the purchase request is still editable
// @Tags Quotes
// @Param id path string true "Purchase request ID" format(uuid)
// @Param quoteId path string true "Quote ID" format(uuid)
// @Success 204 "No Content"
// @Failure 409 {object} domain.APIError
// @Security BearerAuth
// @Router /purchase-requests/{id}/quotes/{quoteId} [delete]
func (h *QuoteHandler) Delete(w http.ResponseWriter, r *http.Request) {
	prID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid purchase request ID format")
		return
	}
	quoteID, err := uuid.Parse(chi.URLParam(r, "quoteId"))
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid quote ID format")
		return
	}

	if err := h.quoteService.DeleteQuote(r.Context(), prID, quoteID); err != nil {
		respondServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
