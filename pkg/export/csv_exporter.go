package export

import (
	"bytes"
	"encoding/csv"
	"fmt"
)

// Dataset is tabular export content keyed by header.
type Dataset struct {
	Headers []string
	Rows    []map[string]string
}

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// CSVExporter renders a Dataset as RFC 4180 CSV.
type CSVExporter struct {
	bom bool
}

// CSVOption configures a CSVExporter.
type CSVOption func(*CSVExporter)

// WithExcelBOM prefixes output with a UTF-8 byte order mark so spreadsheet apps detect the encoding.
func WithExcelBOM() CSVOption {
	return func(e *CSVExporter) { e.bom = true }
}

// NewCSVExporter builds a CSV exporter.
func NewCSVExporter(opts ...CSVOption) *CSVExporter {
	e := &CSVExporter{}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Render encodes headers then one line per row. Cells that a spreadsheet would evaluate as a formula are quoted with a leading apostrophe.
func (e *CSVExporter) Render(data Dataset) ([]byte, error) {
	if len(data.Headers) == 0 {
		return nil, fmt.Errorf("csv requires at least one header")
	}
	buf := &bytes.Buffer{}
	if e.bom {
		buf.Write(utf8BOM)
	}
	writer := csv.NewWriter(buf)
	if err := writer.Write(data.Headers); err != nil {
		return nil, fmt.Errorf("write csv headers: %w", err)
	}
	record := make([]string, len(data.Headers))
	for _, row := range data.Rows {
		for i, header := range data.Headers {
			record[i] = neutralizeFormula(row[header])
		}
		if err := writer.Write(record); err != nil {
			return nil, fmt.Errorf("write csv row: %w", err)
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("flush csv: %w", err)
	}
	return buf.Bytes(), nil
}

func neutralizeFormula(value string) string {
	if value == "" {
		return value
	}
	switch value[0] {
	case '=', '+', '-', '@', '\t', '\r':
		return "'" + value
	default:
		return value
	}
}
