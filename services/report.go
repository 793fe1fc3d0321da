package services

import (
	"bytes"
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/go-pdf/fpdf"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"github.com/cppla/qrgate/models"
)

const (
	ReportTitle     = "Reporte de Registros QR"
	reportSheet     = "Registros"
	fechaLayout     = "2006-01-02 15:04:05"
	pdfRowHeight    = 7.0
	pdfTitleSize    = 18.0
	pdfBodySize     = 10.0
	pdfTitleSpacing = 12.0 / 72 * 25.4 // 12pt spacer, in mm
)

// ReportHeader is the first row of every report table.
var ReportHeader = []string{"ID", "Fecha", "Estado"}

var pdfColumnWidths = []float64{25, 60, 40}

// fixedDocumentDate pins PDF metadata so equal inputs give equal bytes.
var fixedDocumentDate = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

// ReportFormat selects the document type produced for /reporte.
type ReportFormat string

const (
	FormatPDF  ReportFormat = "pdf"
	FormatXLSX ReportFormat = "xlsx"
)

// ParseReportFormat defaults to PDF for an empty value.
func ParseReportFormat(s string) (ReportFormat, error) {
	switch s {
	case "", "pdf":
		return FormatPDF, nil
	case "xlsx":
		return FormatXLSX, nil
	default:
		return "", fmt.Errorf("unsupported report format %q", s)
	}
}

// ContentType is the HTTP media type of the format.
func (f ReportFormat) ContentType() string {
	if f == FormatXLSX {
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	}
	return "application/pdf"
}

// Filename is the suggested attachment name.
func (f ReportFormat) Filename() string {
	return "reporte_qr." + string(f)
}

func recordRow(r models.VisitRecord) []string {
	return []string{
		strconv.FormatUint(uint64(r.ID), 10),
		r.Fecha.Format(fechaLayout),
		string(r.Estado),
	}
}

// RenderPDF lays records out as a titled table on US Letter pages.
// The header row is grey with a full black grid and repeats after every page break.
func RenderPDF(records []models.VisitRecord) ([]byte, error) {
	pdf := fpdf.New("P", "mm", "Letter", "")
	pdf.SetCreationDate(fixedDocumentDate)
	pdf.SetModificationDate(fixedDocumentDate)
	pdf.SetCatalogSort(true)
	pdf.SetCompression(false)
	pdf.SetTitle(ReportTitle, true)
	pdf.SetAutoPageBreak(false, 15)

	_, pageHeight := pdf.GetPageSize()
	_, _, _, bottomMargin := pdf.GetMargins()
	tableWidth := 0.0
	for _, w := range pdfColumnWidths {
		tableWidth += w
	}

	pdf.AddPage()
	pdf.SetFont("Helvetica", "B", pdfTitleSize)
	pdf.CellFormat(0, 10, ReportTitle, "", 1, "C", false, 0, "")
	pdf.Ln(pdfTitleSpacing)

	pageWidth, _ := pdf.GetPageSize()
	left := (pageWidth - tableWidth) / 2

	pdf.SetDrawColor(0, 0, 0)
	pdf.SetLineWidth(0.35)

	drawRow := func(cells []string, header bool) {
		pdf.SetX(left)
		if header {
			pdf.SetFont("Helvetica", "B", pdfBodySize)
			pdf.SetFillColor(128, 128, 128)
		} else {
			pdf.SetFont("Helvetica", "", pdfBodySize)
		}
		for i, text := range cells {
			pdf.CellFormat(pdfColumnWidths[i], pdfRowHeight, text, "1", 0, "C", header, 0, "")
		}
		pdf.Ln(-1)
	}

	drawRow(ReportHeader, true)
	for _, rec := range records {
		if pdf.GetY()+pdfRowHeight > pageHeight-bottomMargin {
			pdf.AddPage()
			drawRow(ReportHeader, true)
		}
		drawRow(recordRow(rec), false)
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("%w: build pdf: %v", ErrRender, err)
	}
	return buf.Bytes(), nil
}

// RenderXLSX writes the same table into a single worksheet.
func RenderXLSX(records []models.VisitRecord) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", reportSheet); err != nil {
		return nil, fmt.Errorf("%w: rename sheet: %v", ErrRender, err)
	}

	border := []excelize.Border{
		{Type: "left", Color: "000000", Style: 1},
		{Type: "top", Color: "000000", Style: 1},
		{Type: "right", Color: "000000", Style: 1},
		{Type: "bottom", Color: "000000", Style: 1},
	}
	headerStyle, err := f.NewStyle(&excelize.Style{
		Font:   &excelize.Font{Bold: true},
		Fill:   excelize.Fill{Type: "pattern", Color: []string{"#808080"}, Pattern: 1},
		Border: border,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: header style: %v", ErrRender, err)
	}
	bodyStyle, err := f.NewStyle(&excelize.Style{Border: border})
	if err != nil {
		return nil, fmt.Errorf("%w: body style: %v", ErrRender, err)
	}

	writeRow := func(row int, cells []string, style int) error {
		values := make([]interface{}, len(cells))
		for i, c := range cells {
			values[i] = c
		}
		start, _ := excelize.CoordinatesToCellName(1, row)
		end, _ := excelize.CoordinatesToCellName(len(cells), row)
		if err := f.SetSheetRow(reportSheet, start, &values); err != nil {
			return err
		}
		return f.SetCellStyle(reportSheet, start, end, style)
	}

	if err := writeRow(1, ReportHeader, headerStyle); err != nil {
		return nil, fmt.Errorf("%w: write header: %v", ErrRender, err)
	}
	for i, rec := range records {
		if err := writeRow(i+2, recordRow(rec), bodyStyle); err != nil {
			return nil, fmt.Errorf("%w: write row %d: %v", ErrRender, rec.ID, err)
		}
	}
	_ = f.SetColWidth(reportSheet, "A", "A", 10)
	_ = f.SetColWidth(reportSheet, "B", "B", 22)
	_ = f.SetColWidth(reportSheet, "C", "C", 14)

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("%w: write xlsx: %v", ErrRender, err)
	}
	return buf.Bytes(), nil
}

// ReportCache stores rendered documents; implementations must fail open.
type ReportCache interface {
	Get(ctx context.Context, key string) ([]byte, bool)
	Set(ctx context.Context, key string, data []byte, ttl time.Duration)
}

// Report is a rendered document ready to be served.
type Report struct {
	Format ReportFormat
	Data   []byte
}

// ReportService renders the visit log and persists the PDF artifact.
type ReportService struct {
	visits   VisitLog
	cache    ReportCache
	cacheTTL time.Duration
	pdfPath  string
	logger   *zap.Logger
}

// NewReportService wires the renderer; cache may be nil.
func NewReportService(visits VisitLog, cache ReportCache, cacheTTL time.Duration, pdfPath string, logger *zap.Logger) *ReportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ReportService{
		visits:   visits,
		cache:    cache,
		cacheTTL: cacheTTL,
		pdfPath:  pdfPath,
		logger:   logger,
	}
}

// Build renders the full visit log in the given format. PDF output is also written to the
// configured artifact path, replacing the previous report.
func (s *ReportService) Build(ctx context.Context, format ReportFormat) (Report, error) {
	records, err := s.visits.ListAll(ctx)
	if err != nil {
		return Report{}, err
	}

	key := cacheKey(format, records)
	data, hit := s.cacheGet(ctx, key)
	if !hit {
		switch format {
		case FormatXLSX:
			data, err = RenderXLSX(records)
		default:
			data, err = RenderPDF(records)
		}
		if err != nil {
			return Report{}, err
		}
		s.cacheSet(ctx, key, data)
	}

	if format == FormatPDF && s.pdfPath != "" {
		if err := writeFileAtomic(s.pdfPath, data); err != nil {
			return Report{}, fmt.Errorf("%w: %v", ErrRender, err)
		}
	}

	s.logger.Debug("report built",
		zap.String("format", string(format)),
		zap.Int("rows", len(records)),
		zap.Bool("cache_hit", hit),
	)
	return Report{Format: format, Data: data}, nil
}

// cacheKey is stable while the log is unchanged: it is append-only, so row count and
// last id identify its content.
func cacheKey(format ReportFormat, records []models.VisitRecord) string {
	var lastID uint
	if n := len(records); n > 0 {
		lastID = records[n-1].ID
	}
	return fmt.Sprintf("report:%s:%d:%d", format, len(records), lastID)
}

func (s *ReportService) cacheGet(ctx context.Context, key string) ([]byte, bool) {
	if s.cache == nil {
		return nil, false
	}
	return s.cache.Get(ctx, key)
}

func (s *ReportService) cacheSet(ctx context.Context, key string, data []byte) {
	if s.cache == nil {
		return
	}
	s.cache.Set(ctx, key, data, s.cacheTTL)
}
