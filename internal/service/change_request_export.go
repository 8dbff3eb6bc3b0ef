package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/kasukras-star/apotikme-api/internal/dto"
	"github.com/kasukras-star/apotikme-api/internal/models"
	appErrors "github.com/kasukras-star/apotikme-api/pkg/errors"
	"github.com/kasukras-star/apotikme-api/pkg/export"
)

type changeRequestLister interface {
	List(ctx context.Context, query dto.ChangeRequestQuery) ([]models.ChangeRequest, error)
}

type csvRenderer interface {
	Render(data export.Dataset) ([]byte, error)
}

type pdfRenderer interface {
	Render(data export.Dataset, title string) ([]byte, error)
}

// ExportFile is a rendered history export ready to stream.
type ExportFile struct {
	Filename    string
	ContentType string
	Rows        int
	Data        []byte
}

var changeRequestExportHeaders = []string{
	"id", "kind", "subject_id", "action", "status", "reason",
	"requested_by", "created_at", "decided_by", "decided_at", "rejection_reason",
}

// ChangeRequestExportService renders request history as CSV or PDF.
type ChangeRequestExportService struct {
	requests changeRequestLister
	csv      csvRenderer
	pdf      pdfRenderer
	maxRows  int
	logger   *zap.Logger
	now      func() time.Time
}

// NewChangeRequestExportService constructs the exporter. maxRows <= 0 disables the limit.
func NewChangeRequestExportService(requests changeRequestLister, maxRows int, logger *zap.Logger, csv csvRenderer, pdf pdfRenderer) *ChangeRequestExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if csv == nil {
		csv = export.NewCSVExporter()
	}
	if pdf == nil {
		pdf = export.NewPDFExporter()
	}
	return &ChangeRequestExportService{
		requests: requests,
		csv:      csv,
		pdf:      pdf,
		maxRows:  maxRows,
		logger:   logger,
		now:      time.Now,
	}
}

// Export renders every request matching the query.
func (s *ChangeRequestExportService) Export(ctx context.Context, query dto.ExportChangeRequestsQuery) (*ExportFile, error) {
	format := query.Format
	if format == "" {
		format = dto.ExportFormatCSV
	}
	if format != dto.ExportFormatCSV && format != dto.ExportFormatPDF {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unsupported export format %q", format))
	}

	requests, err := s.requests.List(ctx, dto.ChangeRequestQuery{Kind: query.Kind, Status: query.Status})
	if err != nil {
		return nil, err
	}
	if s.maxRows > 0 && len(requests) > s.maxRows {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("export exceeds %d rows, narrow the filter", s.maxRows))
	}

	dataset := buildChangeRequestDataset(requests)
	file := &ExportFile{Rows: len(requests), Filename: s.filename(query.Kind, format)}
	switch format {
	case dto.ExportFormatPDF:
		file.ContentType = "application/pdf"
		file.Data, err = s.pdf.Render(dataset, exportTitle(query.Kind))
	default:
		file.ContentType = "text/csv"
		file.Data, err = s.csv.Render(dataset)
	}
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render export")
	}

	s.logger.Info("change request history exported",
		zap.String("format", string(format)),
		zap.String("kind", string(query.Kind)),
		zap.Int("rows", file.Rows),
	)
	return file, nil
}

func buildChangeRequestDataset(requests []models.ChangeRequest) export.Dataset {
	rows := make([]map[string]string, 0, len(requests))
	for _, r := range requests {
		rows = append(rows, map[string]string{
			"id":               r.ID,
			"kind":             string(r.SubjectKind),
			"subject_id":       r.SubjectID,
			"action":           r.Action.Label(r.SubjectKind),
			"status":           string(r.Status),
			"reason":           r.Reason,
			"requested_by":     r.RequestedBy,
			"created_at":       formatExportTime(&r.CreatedAt),
			"decided_by":       r.DecidedBy,
			"decided_at":       formatExportTime(r.DecidedAt),
			"rejection_reason": r.RejectionReason,
		})
	}
	return export.Dataset{Headers: changeRequestExportHeaders, Rows: rows}
}

func formatExportTime(t *time.Time) string {
	if t == nil || t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

func exportTitle(kind models.SubjectKind) string {
	if kind == "" {
		return "Riwayat Permintaan Perubahan"
	}
	return "Riwayat Permintaan Perubahan " + kind.DisplayName()
}

func (s *ChangeRequestExportService) filename(kind models.SubjectKind, format dto.ExportFormat) string {
	scope := "all"
	if kind != "" {
		scope = strings.ReplaceAll(string(kind), "_", "-")
	}
	return fmt.Sprintf("change-requests_%s_%s.%s", scope, s.now().UTC().Format("20060102_150405"), format)
}
