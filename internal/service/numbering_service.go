package service

import (
	"context"
	"fmt"
	"time"

	"github.com/onepwr/procurement-api/internal/repository"
	"github.com/onepwr/procurement-api/internal/workflow"
	"go.uber.org/zap"
)

// NumberingService generates unique, human-readable purchase request numbers.
// Sequences are scoped per organization and calendar month, so numbering
// restarts at 001 each month.
//
// Format: PR-{YYYYMM}-{SEQUENCE}
// Example: PR-202608-001
//
// When a request enters the approval stage the PR- prefix is re-designated
// to PO-; the numeric part never changes.
type NumberingService struct {
	sequences   *repository.NumberSequenceRepository
	requests    *repository.PurchaseRequestRepository
	maxAttempts int
	logger      *zap.Logger
}

// NewNumberingService creates a new NumberingService. maxAttempts bounds
// collision retries; values below 1 fall back to 5.
func NewNumberingService(
	sequences *repository.NumberSequenceRepository,
	requests *repository.PurchaseRequestRepository,
	maxAttempts int,
	logger *zap.Logger,
) *NumberingService {
	if maxAttempts < 1 {
		maxAttempts = 5
	}
	return &NumberingService{
		sequences:   sequences,
		requests:    requests,
		maxAttempts: maxAttempts,
		logger:      logger,
	}
}

// GeneratePRNumber generates a unique PR number for an organization.
// The sequence increment is atomic, but imported legacy data can already
// occupy a number, so the result is verified against the requests table and
// regenerated on collision, up to the configured attempt bound.
func (s *NumberingService) GeneratePRNumber(ctx context.Context, orgID string) (string, error) {
	period := currentPeriod()

	for attempt := 1; attempt <= s.maxAttempts; attempt++ {
		nextSeq, err := s.sequences.GetNextNumber(ctx, orgID, period)
		if err != nil {
			s.logger.Error("failed to get next sequence number",
				zap.String("organizationID", orgID),
				zap.Int("period", period),
				zap.Error(err))
			return "", fmt.Errorf("failed to generate request number: %w", err)
		}

		number := fmt.Sprintf("PR-%06d-%03d", period, nextSeq)

		taken, err := s.requests.NumberExists(ctx, number)
		if err != nil {
			return "", fmt.Errorf("failed to verify request number: %w", err)
		}
		if !taken {
			s.logger.Info("generated request number",
				zap.String("number", number),
				zap.String("organizationID", orgID),
				zap.Int("period", period),
				zap.Int("sequence", nextSeq))
			return number, nil
		}

		s.logger.Warn("request number collision, retrying",
			zap.String("number", number),
			zap.Int("attempt", attempt))
	}

	return "", fmt.Errorf("%w after %d attempts", ErrNumberExhausted, s.maxAttempts)
}

// RedesignateAsPO converts a PR number to its purchase order form.
// Already re-designated numbers pass through unchanged.
func (s *NumberingService) RedesignateAsPO(number string) string {
	return workflow.RedesignateNumber(number)
}

// GetCurrentSequence returns the current sequence value for an
// organization/period without incrementing it. Returns 0 if none exists.
func (s *NumberingService) GetCurrentSequence(ctx context.Context, orgID string, period int) (int, error) {
	return s.sequences.GetCurrentSequence(ctx, orgID, period)
}

// InitializeSequence sets the sequence to a specific value.
// Useful for data migrations so the sequence accounts for already-numbered
// requests. The value should be the LAST USED sequence number.
func (s *NumberingService) InitializeSequence(ctx context.Context, orgID string, period int, value int) error {
	return s.sequences.SetSequence(ctx, orgID, period, value)
}

// currentPeriod returns the YYYYMM period for now (UTC)
func currentPeriod() int {
	now := time.Now().UTC()
	return now.Year()*100 + int(now.Month())
}
