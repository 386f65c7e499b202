package service_test

import (
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/onepwr/procurement-api/internal/domain"
	"github.com/onepwr/procurement-api/internal/service"
	"github.com/onepwr/procurement-api/internal/testutil"
)

func TestAddQuote(t *testing.T) {
	e := newEnv(t)
	vendor := testutil.SeedVendor(t, e.db, "Maseru Electrical Supplies", false)
	pr := testutil.SeedPurchaseRequest(t, e.db, e.requestor, "PR-202608-200", domain.PRStatusDraft, 9000)

	dto, err := e.quotes.AddQuote(e.as(e.requestor), pr.ID, &domain.AddQuoteRequest{
		VendorID: vendor.ID,
		Amount:   8750,
		Currency: "lsl",
	})
	require.NoError(t, err)
	assert.Equal(t, vendor.Name, dto.VendorName)
	assert.Equal(t, "LSL", dto.Currency)
	assert.Empty(t, dto.Attachments)

	_, err = e.quotes.AddQuote(e.as(e.requestor), pr.ID, &domain.AddQuoteRequest{
		VendorID: vendor.ID,
		Amount:   9100,
		Currency: "LSL",
	})
	require.NoError(t, err)

	// Lowest amount first
	quotes, err := e.quotes.ListQuotes(e.as(e.requestor), pr.ID)
	require.NoError(t, err)
	require.Len(t, quotes, 2)
	assert.Equal(t, 8750.0, quotes[0].Amount)
}

func TestAddQuoteUnknownVendor(t *testing.T) {
	e := newEnv(t)
	pr := testutil.SeedPurchaseRequest(t, e.db, e.requestor, "PR-202608-201", domain.PRStatusDraft, 9000)

	_, err := e.quotes.AddQuote(e.as(e.requestor), pr.ID, &domain.AddQuoteRequest{
		VendorID: e.requestor.ID,
		Amount:   100,
		Currency: "LSL",
	})
	assert.ErrorIs(t, err, service.ErrVendorNotFound)
}

func TestAddQuoteNotEditable(t *testing.T) {
	e := newEnv(t)
	vendor := testutil.SeedVendor(t, e.db, "Maseru Electrical Supplies", false)
	pr := testutil.SeedPurchaseRequest(t, e.db, e.requestor, "PO-202608-202", domain.PRStatusPendingApproval, 9000)

	// The requestor lost edit rights once the request entered approval
	_, err := e.quotes.AddQuote(e.as(e.requestor), pr.ID, &domain.AddQuoteRequest{
		VendorID: vendor.ID,
		Amount:   100,
		Currency: "LSL",
	})
	assert.ErrorIs(t, err, service.ErrNotEditable)
}

func TestUploadAndDownloadAttachment(t *testing.T) {
	e := newEnv(t)
	vendor := testutil.SeedVendor(t, e.db, "Maseru Electrical Supplies", false)
	pr := testutil.SeedPurchaseRequest(t, e.db, e.requestor, "PR-202608-203", domain.PRStatusDraft, 9000)
	quote := testutil.SeedQuote(t, e.db, pr.ID, vendor, 8750, false)

	content := "quotation document body"
	dto, err := e.quotes.UploadAttachment(e.as(e.requestor), pr.ID, quote.ID,
		"quotation.pdf", "application/pdf", strings.NewReader(content))
	require.NoError(t, err)

	// The upload makes the quote count toward quote requirements
	require.Len(t, dto.Attachments, 1)

	var attachment domain.Attachment
	require.NoError(t, e.db.First(&attachment, "quote_id = ?", quote.ID).Error)
	assert.Equal(t, "quotation.pdf", attachment.FileName)
	assert.Equal(t, int64(len(content)), attachment.SizeBytes)
	assert.Equal(t, e.requestor.ID, attachment.UploadedByID)

	meta, reader, err := e.quotes.DownloadAttachment(e.as(e.requestor), attachment.ID)
	require.NoError(t, err)
	defer reader.Close()
	assert.Equal(t, attachment.URI, meta.URI)

	data, err := io.ReadAll(reader)
	require.NoError(t, err)
	assert.Equal(t, content, string(data))
}

func TestUploadAttachmentWrongRequest(t *testing.T) {
	e := newEnv(t)
	vendor := testutil.SeedVendor(t, e.db, "Maseru Electrical Supplies", false)
	pr := testutil.SeedPurchaseRequest(t, e.db, e.requestor, "PR-202608-204", domain.PRStatusDraft, 9000)
	other := testutil.SeedPurchaseRequest(t, e.db, e.requestor, "PR-202608-205", domain.PRStatusDraft, 9000)
	quote := testutil.SeedQuote(t, e.db, other.ID, vendor, 8750, false)

	_, err := e.quotes.UploadAttachment(e.as(e.requestor), pr.ID, quote.ID,
		"quotation.pdf", "application/pdf", strings.NewReader("x"))
	assert.ErrorIs(t, err, service.ErrNotFound)
}

func TestDeleteQuote(t *testing.T) {
	e := newEnv(t)
	vendor := testutil.SeedVendor(t, e.db, "Maseru Electrical Supplies", false)
	pr := testutil.SeedPurchaseRequest(t, e.db, e.requestor, "PR-202608-206", domain.PRStatusDraft, 9000)
	quote := testutil.SeedQuote(t, e.db, pr.ID, vendor, 8750, false)

	require.NoError(t, e.quotes.DeleteQuote(e.as(e.requestor), pr.ID, quote.ID))

	quotes, err := e.quotes.ListQuotes(e.as(e.requestor), pr.ID)
	require.NoError(t, err)
	assert.Empty(t, quotes)
}
