package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/google/uuid"
	"github.com/onepwr/procurement-api/internal/auth"
	"github.com/onepwr/procurement-api/internal/domain"
	"github.com/onepwr/procurement-api/internal/mapper"
	"github.com/onepwr/procurement-api/internal/repository"
	"github.com/onepwr/procurement-api/internal/storage"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// QuoteService manages vendor quotes on purchase requests. Quotes can only be
// touched while the PR is still editable for the acting user; a quote counts
// toward quote requirements only once it carries an attachment.
type QuoteService struct {
	quotes      *repository.QuoteRepository
	attachments *repository.AttachmentRepository
	requests    *repository.PurchaseRequestRepository
	vendors     *repository.VendorRepository
	store       storage.Storage
	logger      *zap.Logger
}

// NewQuoteService creates a new QuoteService
func NewQuoteService(
	quotes *repository.QuoteRepository,
	attachments *repository.AttachmentRepository,
	requests *repository.PurchaseRequestRepository,
	vendors *repository.VendorRepository,
	store storage.Storage,
	logger *zap.Logger,
) *QuoteService {
	return &QuoteService{
		quotes:      quotes,
		attachments: attachments,
		requests:    requests,
		vendors:     vendors,
		store:       store,
		logger:      logger,
	}
}

// loadEditablePR loads the PR and checks the actor may modify its quotes
func (s *QuoteService) loadEditablePR(ctx context.Context, prID uuid.UUID) (*domain.PurchaseRequest, error) {
	userCtx, ok := auth.FromContext(ctx)
	if !ok {
		return nil, ErrUserContextRequired
	}

	pr, err := s.requests.GetByID(ctx, prID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to load purchase request: %w", err)
	}
	if !userCtx.CanAccessOrganization(pr.OrganizationID) {
		return nil, ErrPermissionDenied
	}

	if userCtx.UserID == pr.RequestorID && pr.Status.IsRequestorEditable() {
		return pr, nil
	}
	if userCtx.IsProcurement() && pr.Status.IsProcurementEditable() {
		return pr, nil
	}
	return nil, ErrNotEditable
}

// AddQuote attaches a new vendor quote to a purchase request
func (s *QuoteService) AddQuote(ctx context.Context, prID uuid.UUID, req *domain.AddQuoteRequest) (*domain.QuoteDTO, error) {
	pr, err := s.loadEditablePR(ctx, prID)
	if err != nil {
		return nil, err
	}

	vendor, err := s.vendors.GetByID(ctx, req.VendorID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrVendorNotFound
		}
		return nil, fmt.Errorf("failed to load vendor: %w", err)
	}

	quote := &domain.Quote{
		PurchaseRequestID: pr.ID,
		VendorID:          vendor.ID,
		VendorName:        vendor.Name,
		Amount:            req.Amount,
		Currency:          strings.ToUpper(req.Currency),
		Attachments:       req.Attachments,
		Notes:             req.Notes,
	}
	if err := s.quotes.Create(ctx, quote); err != nil {
		return nil, fmt.Errorf("failed to create quote: %w", err)
	}

	s.logger.Info("quote added",
		zap.String("pr", pr.Number),
		zap.String("quoteID", quote.ID.String()),
		zap.String("vendor", vendor.Name),
		zap.Float64("amount", quote.Amount))

	dto := mapper.ToQuoteDTO(quote)
	return &dto, nil
}

// ListQuotes returns all quotes for a PR, lowest amount first
func (s *QuoteService) ListQuotes(ctx context.Context, prID uuid.UUID) ([]domain.QuoteDTO, error) {
	userCtx, ok := auth.FromContext(ctx)
	if !ok {
		return nil, ErrUserContextRequired
	}
	pr, err := s.requests.GetByID(ctx, prID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to load purchase request: %w", err)
	}
	if !userCtx.CanAccessOrganization(pr.OrganizationID) {
		return nil, ErrPermissionDenied
	}

	quotes, err := s.quotes.ListByPurchaseRequest(ctx, prID)
	if err != nil {
		return nil, fmt.Errorf("failed to list quotes: %w", err)
	}
	dtos := make([]domain.QuoteDTO, len(quotes))
	for i := range quotes {
		dtos[i] = mapper.ToQuoteDTO(&quotes[i])
	}
	return dtos, nil
}

// UploadAttachment stores a supporting document for a quote and appends its
// URI to the quote's attachment list, which makes the quote count toward
// quote requirements
func (s *QuoteService) UploadAttachment(ctx context.Context, prID, quoteID uuid.UUID, fileName, contentType string, data io.Reader) (*domain.QuoteDTO, error) {
	userCtx := auth.MustFromContext(ctx)

	if _, err := s.loadEditablePR(ctx, prID); err != nil {
		return nil, err
	}

	quote, err := s.quotes.GetByID(ctx, quoteID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to load quote: %w", err)
	}
	if quote.PurchaseRequestID != prID {
		return nil, ErrNotFound
	}

	uri, size, err := s.store.Upload(ctx, fileName, contentType, data)
	if err != nil {
		return nil, fmt.Errorf("failed to upload attachment: %w", err)
	}

	attachment := &domain.Attachment{
		QuoteID:      quote.ID,
		FileName:     fileName,
		ContentType:  contentType,
		SizeBytes:    size,
		URI:          uri,
		UploadedByID: userCtx.UserID,
	}
	if err := s.attachments.Create(ctx, attachment); err != nil {
		return nil, fmt.Errorf("failed to record attachment: %w", err)
	}
	if err := s.quotes.AppendAttachment(ctx, quote.ID, uri); err != nil {
		return nil, fmt.Errorf("failed to link attachment to quote: %w", err)
	}

	s.logger.Info("quote attachment uploaded",
		zap.String("quoteID", quote.ID.String()),
		zap.String("fileName", fileName),
		zap.Int64("sizeBytes", size))

	updated, err := s.quotes.GetByID(ctx, quote.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to reload quote: %w", err)
	}
	dto := mapper.ToQuoteDTO(updated)
	return &dto, nil
}

// DownloadAttachment streams a stored attachment back to the caller
func (s *QuoteService) DownloadAttachment(ctx context.Context, attachmentID uuid.UUID) (*domain.Attachment, io.ReadCloser, error) {
	if _, ok := auth.FromContext(ctx); !ok {
		return nil, nil, ErrUserContextRequired
	}

	attachment, err := s.attachments.GetByID(ctx, attachmentID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, ErrNotFound
		}
		return nil, nil, fmt.Errorf("failed to load attachment: %w", err)
	}

	reader, err := s.store.Download(ctx, attachment.URI)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open attachment: %w", err)
	}
	return attachment, reader, nil
}

// DeleteQuote removes a quote while the PR is still editable
func (s *QuoteService) DeleteQuote(ctx context.Context, prID, quoteID uuid.UUID) error {
	if _, err := s.loadEditablePR(ctx, prID); err != nil {
		return err
	}

	quote, err := s.quotes.GetByID(ctx, quoteID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrNotFound
		}
		return fmt.Errorf("failed to load quote: %w", err)
	}
	if quote.PurchaseRequestID != prID {
		return ErrNotFound
	}

	if err := s.quotes.Delete(ctx, quoteID); err != nil {
		return fmt.Errorf("failed to delete quote: %w", err)
	}
	s.logger.Info("quote deleted", zap.String("quoteID", quoteID.String()))
	return nil
}
