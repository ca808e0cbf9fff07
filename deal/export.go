package deal

import (
	"bytes"
	"fmt"
	"time"

	"github.com/xuri/excelize/v2"
)

const exportSheet = "Deals"

var exportHeader = []string{
	"ID",
	"Title",
	"Stage",
	"Amount",
	"Currency",
	"Close Date",
	"Company",
	"Contact",
	"Owner User ID",
	"Created At",
	"Updated At",
}

var exportColumnWidths = []float64{8, 36, 14, 14, 10, 12, 30, 26, 14, 20, 20}

// ExportWorkbook renders deals as an xlsx workbook with one row per deal.
func ExportWorkbook(deals []View) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName(f.GetSheetName(0), exportSheet); err != nil {
		return nil, fmt.Errorf("deal: export: name sheet: %w", err)
	}

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#E6F3FF"}, Pattern: 1},
		Border: []excelize.Border{
			{Type: "left", Color: "000000", Style: 1},
			{Type: "top", Color: "000000", Style: 1},
			{Type: "bottom", Color: "000000", Style: 1},
			{Type: "right", Color: "000000", Style: 1},
		},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
	})
	if err != nil {
		return nil, fmt.Errorf("deal: export: header style: %w", err)
	}
	amountStyle, err := f.NewStyle(&excelize.Style{NumFmt: 4})
	if err != nil {
		return nil, fmt.Errorf("deal: export: amount style: %w", err)
	}

	for col, header := range exportHeader {
		cell, err := excelize.CoordinatesToCellName(col+1, 1)
		if err != nil {
			return nil, fmt.Errorf("deal: export: header cell: %w", err)
		}
		if err := f.SetCellValue(exportSheet, cell, header); err != nil {
			return nil, fmt.Errorf("deal: export: set header %s: %w", cell, err)
		}
		if err := f.SetCellStyle(exportSheet, cell, cell, headerStyle); err != nil {
			return nil, fmt.Errorf("deal: export: style header %s: %w", cell, err)
		}
		name, err := excelize.ColumnNumberToName(col + 1)
		if err != nil {
			return nil, fmt.Errorf("deal: export: column name: %w", err)
		}
		if err := f.SetColWidth(exportSheet, name, name, exportColumnWidths[col]); err != nil {
			return nil, fmt.Errorf("deal: export: column width: %w", err)
		}
	}

	for i, d := range deals {
		row := i + 2
		values := []any{
			d.ID,
			d.Title,
			string(d.Stage),
			d.Amount,
			d.Currency,
			formatDate(d.CloseDate),
			deref(d.CompanyName),
			deref(d.ContactName),
			derefID(d.OwnerUserID),
			d.CreatedAt.UTC().Format(time.RFC3339),
			d.UpdatedAt.UTC().Format(time.RFC3339),
		}
		cell, err := excelize.CoordinatesToCellName(1, row)
		if err != nil {
			return nil, fmt.Errorf("deal: export: row cell: %w", err)
		}
		if err := f.SetSheetRow(exportSheet, cell, &values); err != nil {
			return nil, fmt.Errorf("deal: export: write row %d: %w", row, err)
		}
		amountCell, _ := excelize.CoordinatesToCellName(4, row)
		if err := f.SetCellStyle(exportSheet, amountCell, amountCell, amountStyle); err != nil {
			return nil, fmt.Errorf("deal: export: style amount: %w", err)
		}
	}

	var buf bytes.Buffer
	if _, err := f.WriteTo(&buf); err != nil {
		return nil, fmt.Errorf("deal: export: write workbook: %w", err)
	}
	return buf.Bytes(), nil
}

func formatDate(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format(dateLayout)
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func derefID(id *int64) any {
	if id == nil {
		return ""
	}
	return *id
}
