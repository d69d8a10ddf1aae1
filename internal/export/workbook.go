package export

import (
	"fmt"

	"github.com/xuri/excelize/v2"

	"github.com/lox/movefetch/internal/movebank"
)

// Sheet is one named table destined for the combined workbook.
type Sheet struct {
	Name  string
	Table *movebank.Table
}

// WriteWorkbook writes the given tables to a single XLSX file, one sheet
// per table with a bold header row. Only the materialized metadata
// tables go in a workbook; event tables stay as streamed CSV.
func WriteWorkbook(path string, sheets []Sheet) error {
	f := excelize.NewFile()
	defer f.Close()

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
	})
	if err != nil {
		return fmt.Errorf("create header style: %w", err)
	}

	for i, sheet := range sheets {
		if _, err := f.NewSheet(sheet.Name); err != nil {
			return fmt.Errorf("create sheet %s: %w", sheet.Name, err)
		}

		header := make([]any, len(sheet.Table.Columns))
		for j, c := range sheet.Table.Columns {
			header[j] = c
		}
		if err := f.SetSheetRow(sheet.Name, "A1", &header); err != nil {
			return fmt.Errorf("write header %s: %w", sheet.Name, err)
		}
		if len(header) > 0 {
			end, _ := excelize.CoordinatesToCellName(len(header), 1)
			if err := f.SetCellStyle(sheet.Name, "A1", end, headerStyle); err != nil {
				return fmt.Errorf("style header %s: %w", sheet.Name, err)
			}
		}

		for r, row := range sheet.Table.Rows {
			values := make([]any, len(row))
			for j, v := range row {
				values[j] = v
			}
			cell, _ := excelize.CoordinatesToCellName(1, r+2)
			if err := f.SetSheetRow(sheet.Name, cell, &values); err != nil {
				return fmt.Errorf("write row %d in %s: %w", r+1, sheet.Name, err)
			}
		}

		if i == 0 {
			idx, err := f.GetSheetIndex(sheet.Name)
			if err != nil {
				return fmt.Errorf("sheet index %s: %w", sheet.Name, err)
			}
			f.SetActiveSheet(idx)
		}
	}

	if len(sheets) > 0 {
		f.DeleteSheet("Sheet1")
	}

	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("save workbook: %w", err)
	}
	return nil
}
