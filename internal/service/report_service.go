package service

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/campus-book-exchange/internal/models"
	appErrors "github.com/noah-isme/campus-book-exchange/pkg/errors"
	"github.com/noah-isme/campus-book-exchange/pkg/export"
)

// Export formats.
const (
	FormatCSV = "csv"
	FormatPDF = "pdf"
)

type tableRenderer interface {
	Render(table export.Table) ([]byte, error)
	ContentType() string
	Extension() string
}

// ExportFile is a rendered report ready to stream.
type ExportFile struct {
	Name        string
	ContentType string
	Data        []byte
}

// ReportService renders admin reports.
type ReportService struct {
	sales     pendingSalesStore
	renderers map[string]tableRenderer
	logger    *zap.Logger
	now       func() time.Time
}

// NewReportService constructs a ReportService with CSV and PDF renderers.
func NewReportService(sales pendingSalesStore, logger *zap.Logger) *ReportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ReportService{
		sales: sales,
		renderers: map[string]tableRenderer{
			FormatCSV: export.NewCSVRenderer(),
			FormatPDF: export.NewPDFRenderer(),
		},
		logger: logger,
		now:    time.Now,
	}
}

var pendingSaleColumns = []export.Column{
	{Key: "book_id", Title: "Book ID", Width: 0.7},
	{Key: "book_name", Title: "Book", Width: 2},
	{Key: "type", Title: "Type", Width: 0.8},
	{Key: "seller", Title: "Seller", Width: 1.5},
	{Key: "buyer", Title: "Buyer", Width: 1.5},
	{Key: "buyer_email", Title: "Buyer Email", Width: 2},
	{Key: "price", Title: "Price", Width: 0.8},
	{Key: "status", Title: "Status", Width: 0.8},
}

// PendingSalesExport renders the admin settlement queue as CSV or PDF.
func (s *ReportService) PendingSalesExport(ctx context.Context, format string) (*ExportFile, error) {
	format = strings.ToLower(strings.TrimSpace(format))
	renderer, ok := s.renderers[format]
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unsupported export format %q", format))
	}
	rows, err := s.sales.ListPendingSales(ctx)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to list pending sales")
	}

	table := export.Table{Title: "Pending Sales", Columns: pendingSaleColumns, Rows: make([]map[string]string, 0, len(rows))}
	for _, row := range rows {
		table.Rows = append(table.Rows, pendingSaleRecord(row))
	}
	data, err := renderer.Render(table)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to render export")
	}
	s.logger.Info("pending sales exported", zap.String("format", format), zap.Int("rows", len(rows)))
	return &ExportFile{
		Name:        fmt.Sprintf("pending_sales_%s.%s", s.now().UTC().Format("20060102_150405"), renderer.Extension()),
		ContentType: renderer.ContentType(),
		Data:        data,
	}, nil
}

func pendingSaleRecord(row models.PendingSale) map[string]string {
	return map[string]string{
		"book_id":     strconv.FormatInt(row.BookID, 10),
		"book_name":   row.BookName,
		"type":        string(row.Type),
		"seller":      firstNonEmpty(row.SellerName, row.SellerEmail),
		"buyer":       firstNonEmpty(row.BuyerName, row.RequestedBuyerID),
		"buyer_email": row.RequestedBuyerID,
		"price":       strconv.FormatInt(row.Price(), 10),
		"status":      row.BuyerStatus,
	}
}

func firstNonEmpty(name *string, fallback string) string {
	if name != nil && *name != "" {
		return *name
	}
	return fallback
}
