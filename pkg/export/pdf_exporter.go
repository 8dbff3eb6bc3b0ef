package export

import (
	"bytes"
	"fmt"

	"github.com/jung-kurt/gofpdf"
)

const (
	pdfMargin    = 10.0
	pdfRowHeight = 6.0
	pdfEllipsis  = "..."
)

// PDFExporter renders a Dataset as a landscape table with page numbers.
type PDFExporter struct {
	orientation string
}

// NewPDFExporter constructs a landscape A4 exporter.
func NewPDFExporter() *PDFExporter {
	return &PDFExporter{orientation: "L"}
}

// Render draws title, then the table. The header row repeats on every page and overlong cells are truncated.
func (e *PDFExporter) Render(data Dataset, title string) ([]byte, error) {
	if len(data.Headers) == 0 {
		return nil, fmt.Errorf("pdf requires at least one header")
	}
	pdf := gofpdf.New(e.orientation, "mm", "A4", "")
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pdf.SetMargins(pdfMargin, pdfMargin, pdfMargin)
	pdf.SetAutoPageBreak(false, pdfMargin)
	pdf.AliasNbPages("")
	pdf.SetFooterFunc(func() {
		pdf.SetY(-pdfMargin)
		pdf.SetFont("Arial", "I", 8)
		pdf.CellFormat(0, 5, fmt.Sprintf("Halaman %d/{nb}", pdf.PageNo()), "", 0, "R", false, 0, "")
	})

	pageWidth, pageHeight := pdf.GetPageSize()
	colWidth := (pageWidth - 2*pdfMargin) / float64(len(data.Headers))

	header := func() {
		pdf.SetFont("Arial", "B", 8)
		pdf.SetFillColor(230, 230, 230)
		for _, h := range data.Headers {
			pdf.CellFormat(colWidth, pdfRowHeight, fit(pdf, tr(h), colWidth), "1", 0, "C", true, 0, "")
		}
		pdf.Ln(-1)
		pdf.SetFont("Arial", "", 8)
	}

	pdf.AddPage()
	if title != "" {
		pdf.SetFont("Arial", "B", 13)
		pdf.CellFormat(0, 9, tr(title), "", 1, "L", false, 0, "")
		pdf.Ln(2)
	}
	header()

	bottom := pageHeight - 2*pdfMargin
	for _, row := range data.Rows {
		if pdf.GetY()+pdfRowHeight > bottom {
			pdf.AddPage()
			header()
		}
		for _, h := range data.Headers {
			pdf.CellFormat(colWidth, pdfRowHeight, fit(pdf, tr(row[h]), colWidth), "1", 0, "", false, 0, "")
		}
		pdf.Ln(-1)
	}

	if err := pdf.Error(); err != nil {
		return nil, fmt.Errorf("render pdf: %w", err)
	}
	buf := &bytes.Buffer{}
	if err := pdf.Output(buf); err != nil {
		return nil, fmt.Errorf("render pdf: %w", err)
	}
	return buf.Bytes(), nil
}

// fit shortens text until it fits width with a little padding.
func fit(pdf *gofpdf.Fpdf, text string, width float64) string {
	limit := width - 2
	if pdf.GetStringWidth(text) <= limit {
		return text
	}
	runes := []rune(text)
	for len(runes) > 0 && pdf.GetStringWidth(string(runes)+pdfEllipsis) > limit {
		runes = runes[:len(runes)-1]
	}
	return string(runes) + pdfEllipsis
}
