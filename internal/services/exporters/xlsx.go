package exporters

import (
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
)

// sheetBuilder wraps the cell bookkeeping shared by the spreadsheet exporters
type sheetBuilder struct {
	file  *excelize.File
	sheet string
	row   int
}

func newSheetBuilder(sheet string) (*sheetBuilder, error) {
	f := excelize.NewFile()
	if err := f.SetSheetName("Sheet1", sheet); err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to name sheet: %w", err)
	}
	return &sheetBuilder{file: f, sheet: sheet, row: 1}, nil
}

// writeHeader emits the bold, gray-filled header row
func (b *sheetBuilder) writeHeader(headers []string) error {
	style, err := b.file.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{"E6E6E6"}},
		Border: []excelize.Border{
			{Type: "bottom", Style: 1, Color: "999999"},
		},
	})
	if err != nil {
		return fmt.Errorf("failed to create header style: %w", err)
	}
	for col, header := range headers {
		cell, err := excelize.CoordinatesToCellName(col+1, b.row)
		if err != nil {
			return err
		}
		if err := b.file.SetCellValue(b.sheet, cell, header); err != nil {
			return err
		}
	}
	first, _ := excelize.CoordinatesToCellName(1, b.row)
	last, _ := excelize.CoordinatesToCellName(len(headers), b.row)
	if err := b.file.SetCellStyle(b.sheet, first, last, style); err != nil {
		return err
	}
	b.row++
	return nil
}

// writeRow emits one data row; decimal values are written as numbers
func (b *sheetBuilder) writeRow(values []interface{}) error {
	for col, value := range values {
		cell, err := excelize.CoordinatesToCellName(col+1, b.row)
		if err != nil {
			return err
		}
		if d, ok := value.(decimal.Decimal); ok {
			value = d.InexactFloat64()
		}
		if err := b.file.SetCellValue(b.sheet, cell, value); err != nil {
			return err
		}
	}
	b.row++
	return nil
}

// sumFormula writes a SUM over the given column covering all data rows
// written so far, so post-hoc edits recompute the total.
func (b *sheetBuilder) sumFormula(col, firstDataRow int) error {
	cell, err := excelize.CoordinatesToCellName(col, b.row)
	if err != nil {
		return err
	}
	from, _ := excelize.CoordinatesToCellName(col, firstDataRow)
	to, _ := excelize.CoordinatesToCellName(col, b.row-1)
	return b.file.SetCellFormula(b.sheet, cell, fmt.Sprintf("SUM(%s:%s)", from, to))
}

// bold applies a bold style to a row span
func (b *sheetBuilder) bold(fromCol, toCol, row int) error {
	style, err := b.file.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return err
	}
	first, _ := excelize.CoordinatesToCellName(fromCol, row)
	last, _ := excelize.CoordinatesToCellName(toCol, row)
	return b.file.SetCellStyle(b.sheet, first, last, style)
}

// bytes serializes the workbook and releases it
func (b *sheetBuilder) bytes() ([]byte, error) {
	defer b.file.Close()
	buf, err := b.file.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("failed to serialize workbook: %w", err)
	}
	return buf.Bytes(), nil
}
