// Package spreadsheet turns uploaded workbooks into tabular row maps.
package spreadsheet

import (
	"errors"
	"io"
	"strconv"
	"strings"

	"github.com/sheetlytics/apiserver/types"
	"github.com/xuri/excelize/v2"
)

// MIME types accepted for spreadsheet uploads.
const (
	MIMETypeXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	MIMETypeXLS  = "application/vnd.ms-excel"
)

// Accepted reports whether contentType is a recognized spreadsheet MIME type.
func Accepted(contentType string) bool {
	switch strings.TrimSpace(contentType) {
	case MIMETypeXLSX, MIMETypeXLS:
		return true
	default:
		return false
	}
}

// ParseFirstSheet reads a workbook and converts its first sheet into an
// ordered slice of rows keyed by the header-row values. Cells that parse as
// numbers become float64; everything else stays a string. Columns with a
// blank header and fully blank rows are skipped.
func ParseFirstSheet(r io.Reader) ([]types.Row, error) {
	file, err := excelize.OpenReader(r)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	sheets := file.GetSheetList()
	if len(sheets) == 0 {
		return nil, errors.New("workbook has no sheets")
	}

	rows, err := file.GetRows(sheets[0])
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return []types.Row{}, nil
	}

	headers := rows[0]
	parsed := make([]types.Row, 0, len(rows)-1)
	for _, cells := range rows[1:] {
		row := types.Row{}
		for i, header := range headers {
			name := strings.TrimSpace(header)
			if name == "" || i >= len(cells) {
				continue
			}
			cell := cells[i]
			if cell == "" {
				continue
			}
			row[name] = cellValue(cell)
		}
		if len(row) == 0 {
			continue
		}
		parsed = append(parsed, row)
	}
	return parsed, nil
}

func cellValue(cell string) any {
	if number, err := strconv.ParseFloat(cell, 64); err == nil {
		return number
	}
	return cell
}
