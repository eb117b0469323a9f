// Package workbook writes and reads the tabular workbook files used for the
// bill ledger and its exports.
package workbook

import (
	"errors"
	"fmt"
	"unicode/utf8"

	"github.com/xuri/excelize/v2"
)

const (
	// defaultSheet is the sheet excelize creates in every new file
	defaultSheet = "Sheet1"

	// maxColumnWidth caps auto-sized columns
	maxColumnWidth = 50

	headerColor     = "4472C4"
	headerFontColor = "FFFFFF"
)

// ErrSheetNotFound is returned when a workbook has no sheet with the requested name
var ErrSheetNotFound = errors.New("sheet not found")

// Sheet is one named table in a workbook
type Sheet struct {
	Name   string
	Header []string
	Rows   [][]any

	// Styled applies the header style and auto-sizes columns.
	// Cell values are never changed by styling.
	Styled bool
}

// Write creates a workbook at path containing the given sheets in order,
// replacing any existing file.
func Write(path string, sheets ...Sheet) error {
	if len(sheets) == 0 {
		return fmt.Errorf("writing workbook %s: no sheets", path)
	}

	f := excelize.NewFile()
	defer f.Close()

	for i, sheet := range sheets {
		if i == 0 {
			if err := f.SetSheetName(defaultSheet, sheet.Name); err != nil {
				return fmt.Errorf("naming sheet %q: %w", sheet.Name, err)
			}
		} else if _, err := f.NewSheet(sheet.Name); err != nil {
			return fmt.Errorf("creating sheet %q: %w", sheet.Name, err)
		}

		if err := writeSheet(f, sheet); err != nil {
			return err
		}
	}
	f.SetActiveSheet(0)

	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("saving workbook: %w", err)
	}
	return nil
}

func writeSheet(f *excelize.File, sheet Sheet) error {
	header := make([]any, len(sheet.Header))
	for i, h := range sheet.Header {
		header[i] = h
	}
	if err := f.SetSheetRow(sheet.Name, "A1", &header); err != nil {
		return fmt.Errorf("writing header of %q: %w", sheet.Name, err)
	}

	for i, row := range sheet.Rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		values := row
		if err := f.SetSheetRow(sheet.Name, cell, &values); err != nil {
			return fmt.Errorf("writing row %d of %q: %w", i+1, sheet.Name, err)
		}
	}

	if sheet.Styled {
		if err := styleSheet(f, sheet); err != nil {
			return fmt.Errorf("styling %q: %w", sheet.Name, err)
		}
	}
	return nil
}

// styleSheet gives the header row a bold white-on-blue centered style and sizes
// every column to its longest value plus two, capped at maxColumnWidth.
func styleSheet(f *excelize.File, sheet Sheet) error {
	if len(sheet.Header) == 0 {
		return nil
	}

	style, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true, Color: headerFontColor},
		Fill: excelize.Fill{Type: "pattern", Color: []string{headerColor}, Pattern: 1},
		Alignment: &excelize.Alignment{
			Horizontal: "center",
			Vertical:   "center",
		},
	})
	if err != nil {
		return err
	}

	lastCell, err := excelize.CoordinatesToCellName(len(sheet.Header), 1)
	if err != nil {
		return err
	}
	if err := f.SetCellStyle(sheet.Name, "A1", lastCell, style); err != nil {
		return err
	}

	for col, width := range ColumnWidths(sheet) {
		name, err := excelize.ColumnNumberToName(col + 1)
		if err != nil {
			return err
		}
		if err := f.SetColWidth(sheet.Name, name, name, width); err != nil {
			return err
		}
	}
	return nil
}

// ColumnWidths returns the display width for each header column
func ColumnWidths(sheet Sheet) []float64 {
	widths := make([]float64, len(sheet.Header))
	for col, h := range sheet.Header {
		longest := utf8.RuneCountInString(h)
		for _, row := range sheet.Rows {
			if col >= len(row) {
				continue
			}
			if n := utf8.RuneCountInString(fmt.Sprint(row[col])); n > longest {
				longest = n
			}
		}
		widths[col] = float64(min(longest+2, maxColumnWidth))
	}
	return widths
}

// ReadSheet returns the raw cell values of the named sheet, header row first
func ReadSheet(path, name string) ([][]string, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("opening workbook: %w", err)
	}
	defer f.Close()

	if idx, err := f.GetSheetIndex(name); err != nil || idx == -1 {
		return nil, fmt.Errorf("%w: %s", ErrSheetNotFound, name)
	}

	rows, err := f.GetRows(name, excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, fmt.Errorf("reading sheet %q: %w", name, err)
	}
	return rows, nil
}

// SheetNames lists the sheets of the workbook at path in order
func SheetNames(path string) ([]string, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("opening workbook: %w", err)
	}
	defer f.Close()
	return f.GetSheetList(), nil
}
