// Package export renders dataset tables as XLSX workbooks for analysts who
// live in spreadsheets rather than SQL.
package export

import (
	"fmt"

	"github.com/xuri/excelize/v2"

	"github.com/couchcryptid/weather-data-etl/internal/dataset"
)

const sheetName = "Weather Facts"

// XLSX returns a workbook with one sheet holding the table: a header row,
// then one row per fact. Null values stay as empty cells.
func XLSX(t dataset.Table) ([]byte, error) {
	f := excelize.NewFile()
	index, err := f.NewSheet(sheetName)
	if err != nil {
		return nil, fmt.Errorf("create sheet: %w", err)
	}
	f.SetActiveSheet(index)
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return nil, fmt.Errorf("drop default sheet: %w", err)
	}

	for i, name := range t.ColumnNames() {
		cell, err := excelize.CoordinatesToCellName(i+1, 1)
		if err != nil {
			return nil, fmt.Errorf("header cell: %w", err)
		}
		if err := f.SetCellValue(sheetName, cell, name); err != nil {
			return nil, fmt.Errorf("write header %s: %w", name, err)
		}
	}

	for rowIdx, row := range t.Rows {
		for colIdx, col := range t.Columns {
			value, ok := row[col.Name]
			if !ok || value == nil {
				continue
			}
			cell, err := excelize.CoordinatesToCellName(colIdx+1, rowIdx+2)
			if err != nil {
				return nil, fmt.Errorf("cell %s row %d: %w", col.Name, rowIdx, err)
			}
			if err := f.SetCellValue(sheetName, cell, value); err != nil {
				return nil, fmt.Errorf("write %s row %d: %w", col.Name, rowIdx, err)
			}
		}
	}

	for i, col := range t.Columns {
		name, err := excelize.ColumnNumberToName(i + 1)
		if err != nil {
			return nil, fmt.Errorf("column name: %w", err)
		}
		width := 14.0
		if col.Kind == dataset.KindString {
			width = 22.0
		}
		if err := f.SetColWidth(sheetName, name, name, width); err != nil {
			return nil, fmt.Errorf("set width: %w", err)
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("xlsx write: %w", err)
	}
	return buf.Bytes(), nil
}
