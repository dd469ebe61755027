package services

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"
)

// sheet is one worksheet of an export.
type sheet struct {
	Name    string
	Headers []string
	Rows    [][]interface{}
}

// writeWorkbook renders sheets into a single xlsx document on w. The default
// "Sheet1" is renamed to the first sheet.
func writeWorkbook(w io.Writer, sheets ...sheet) error {
	f := excelize.NewFile()
	defer f.Close()

	header, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("failed to create header style: %w", err)
	}

	for i, sh := range sheets {
		if i == 0 {
			if err := f.SetSheetName("Sheet1", sh.Name); err != nil {
				return fmt.Errorf("failed to rename sheet: %w", err)
			}
		} else if _, err := f.NewSheet(sh.Name); err != nil {
			return fmt.Errorf("failed to create sheet %s: %w", sh.Name, err)
		}

		headers := make([]interface{}, len(sh.Headers))
		for j, h := range sh.Headers {
			headers[j] = h
		}
		if err := f.SetSheetRow(sh.Name, "A1", &headers); err != nil {
			return fmt.Errorf("failed to write header: %w", err)
		}
		if len(sh.Headers) > 0 {
			last, _ := excelize.CoordinatesToCellName(len(sh.Headers), 1)
			if err := f.SetCellStyle(sh.Name, "A1", last, header); err != nil {
				return fmt.Errorf("failed to style header: %w", err)
			}
		}

		for r, row := range sh.Rows {
			cell, _ := excelize.CoordinatesToCellName(1, r+2)
			row := row
			if err := f.SetSheetRow(sh.Name, cell, &row); err != nil {
				return fmt.Errorf("failed to write row %d: %w", r+2, err)
			}
		}
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}
	return nil
}

// readFirstSheet returns every row of the first worksheet in the xlsx document on r.
func readFirstSheet(r io.Reader) ([][]string, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("%w: not a valid xlsx file: %v", ErrBadRequest, err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("%w: workbook has no sheets", ErrBadRequest)
	}

	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("failed to read sheet %s: %w", sheets[0], err)
	}
	return rows, nil
}
