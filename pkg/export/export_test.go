package export

import (
	"bytes"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCSVExporterNeutralizesFormulas(t *testing.T) {
	data := Dataset{
		Headers: []string{"id", "reason"},
		Rows: []map[string]string{
			{"id": "cr-1", "reason": "=HYPERLINK(\"x\")"},
			{"id": "cr-2", "reason": "@SUM(A1)"},
			{"id": "cr-3", "reason": "harga, baru"},
		},
	}

	out, err := NewCSVExporter().Render(data)
	require.NoError(t, err)
	assert.Equal(t, "id,reason\ncr-1,\"'=HYPERLINK(\"\"x\"\")\"\ncr-2,'@SUM(A1)\ncr-3,\"harga, baru\"\n", string(out))
}

func TestCSVExporterBOM(t *testing.T) {
	out, err := NewCSVExporter(WithExcelBOM()).Render(Dataset{Headers: []string{"id"}})
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(out, utf8BOM))

	_, err = NewCSVExporter().Render(Dataset{})
	assert.Error(t, err)
}

func TestPDFExporterPaginatesLongTables(t *testing.T) {
	rows := make([]map[string]string, 0, 120)
	for i := 0; i < 120; i++ {
		rows = append(rows, map[string]string{
			"id":     fmt.Sprintf("cr-%03d", i),
			"reason": strings.Repeat("stok opname gudang ", 10),
		})
	}

	out, err := NewPDFExporter().Render(Dataset{Headers: []string{"id", "reason"}, Rows: rows}, "Riwayat Permintaan Perubahan")
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(out, []byte("%PDF")))
	assert.Greater(t, bytes.Count(out, []byte("/Type /Page\n")), 1)

	_, err = NewPDFExporter().Render(Dataset{}, "")
	assert.Error(t, err)
}
