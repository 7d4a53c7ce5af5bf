// Package fetcher parses uploaded lead sheets. XLSX is the primary upload
// format; CSV is accepted on the CLI path.
package fetcher

import (
	"encoding/csv"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"
)

// Sheet is a parsed upload: the header row plus every data row as raw
// string cells. Cell normalization happens downstream.
type Sheet struct {
	Header []string
	Rows   [][]string
}

// ReadFile parses a lead sheet from disk, dispatching on extension.
func ReadFile(path string) (*Sheet, error) {
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".xlsx":
		f, err := xlsx.OpenFile(path)
		if err != nil {
			return nil, eris.Wrap(err, "fetcher: open xlsx file")
		}
		return fromXLSX(f)
	case ".csv":
		f, err := os.Open(path)
		if err != nil {
			return nil, eris.Wrap(err, "fetcher: open csv file")
		}
		defer f.Close()
		return fromCSV(f)
	default:
		return nil, eris.Errorf("fetcher: unsupported file type %q, expected .xlsx or .csv", ext)
	}
}

// ReadXLSXBytes parses an in-memory XLSX upload.
func ReadXLSXBytes(data []byte) (*Sheet, error) {
	f, err := xlsx.OpenBinary(data)
	if err != nil {
		return nil, eris.Wrap(err, "fetcher: open xlsx upload")
	}
	return fromXLSX(f)
}

func fromXLSX(f *xlsx.File) (*Sheet, error) {
	if len(f.Sheets) == 0 {
		return nil, eris.New("fetcher: workbook has no sheets")
	}
	sheet := f.Sheets[0]
	if len(sheet.Rows) == 0 {
		return nil, eris.New("fetcher: sheet is empty")
	}

	out := &Sheet{Header: rowToStrings(sheet.Rows[0])}
	for _, row := range sheet.Rows[1:] {
		out.Rows = append(out.Rows, rowToStrings(row))
	}
	return out, nil
}

func fromCSV(r io.Reader) (*Sheet, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	records, err := reader.ReadAll()
	if err != nil {
		return nil, eris.Wrap(err, "fetcher: read csv")
	}
	if len(records) == 0 {
		return nil, eris.New("fetcher: sheet is empty")
	}
	return &Sheet{Header: records[0], Rows: records[1:]}, nil
}

func rowToStrings(row *xlsx.Row) []string {
	cells := make([]string, len(row.Cells))
	for j, cell := range row.Cells {
		cells[j] = cell.String()
	}
	return cells
}

// Columns holds the resolved positions of the lead fields in an upload.
// Date is optional; -1 means absent.
type Columns struct {
	Name  int
	Email int
	Date  int
}

// ResolveColumns locates the required lead columns by header name,
// case-insensitive. A date column is matched by name, or taken from the
// third position when the sheet has one. Missing required columns are all
// named in the error.
func ResolveColumns(header []string) (Columns, error) {
	cols := Columns{Name: -1, Email: -1, Date: -1}
	for i, h := range header {
		switch strings.ToLower(strings.TrimSpace(h)) {
		case "name", "full name", "lead name":
			if cols.Name < 0 {
				cols.Name = i
			}
		case "email", "e-mail", "email address":
			if cols.Email < 0 {
				cols.Email = i
			}
		case "date", "created", "signup date":
			if cols.Date < 0 {
				cols.Date = i
			}
		}
	}
	if cols.Date < 0 && len(header) >= 3 && cols.Name != 2 && cols.Email != 2 {
		cols.Date = 2
	}

	var missing []string
	if cols.Name < 0 {
		missing = append(missing, "name")
	}
	if cols.Email < 0 {
		missing = append(missing, "email")
	}
	if len(missing) > 0 {
		return cols, eris.Errorf("fetcher: missing required columns: %s", strings.Join(missing, ", "))
	}
	return cols, nil
}

// Cell returns the trimmed cell at index i, or "" when the row is short.
func Cell(row []string, i int) string {
	if i < 0 || i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}
