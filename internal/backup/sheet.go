package backup

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/aanand-mishra/student-archive/internal/storage"
	"github.com/aanand-mishra/student-archive/internal/types"
)

// Format is a spreadsheet file format.
type Format string

const (
	FormatXLSX Format = "xlsx"
	FormatCSV  Format = "csv"
)

// FormatFromFilename picks the format from the file extension.
func FormatFromFilename(name string) (Format, error) {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".xlsx", ".xlsm":
		return FormatXLSX, nil
	case ".csv":
		return FormatCSV, nil
	}
	return "", fmt.Errorf("%w: unsupported file type %q", ErrImportFormat, filepath.Ext(name))
}

// SheetResult reports what a spreadsheet import did.
type SheetResult struct {
	Imported int `json:"imported"`
	Rejected int `json:"rejected"`
}

// ImportSheet creates a student for each data row of a spreadsheet.
//
// The first row is a header and is skipped. Columns are positional: name,
// mother's name, registration number, page number. Rows without a name
// and a mother's name are ignored; rows the store rejects as invalid are
// counted in Rejected. ErrNoData is returned when nothing was imported.
func ImportSheet(ctx context.Context, s storage.Storage, r io.Reader, format Format) (SheetResult, error) {
	var res SheetResult

	rows, err := readRows(r, format)
	if err != nil {
		return res, err
	}

	for i, row := range rows {
		if i == 0 {
			continue
		}
		in := types.StudentInput{
			Name:               cell(row, 0),
			MotherName:         cell(row, 1),
			RegistrationNumber: cell(row, 2),
			PageNumber:         cell(row, 3),
		}
		if in.Name == "" || in.MotherName == "" {
			continue
		}
		if _, err := s.CreateStudent(ctx, in); err != nil {
			if errors.Is(err, storage.ErrValidation) {
				res.Rejected++
				continue
			}
			return res, err
		}
		res.Imported++
	}

	if res.Imported == 0 {
		return res, ErrNoData
	}
	return res, nil
}

func cell(row []string, i int) string {
	if i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}

func readRows(r io.Reader, format Format) ([][]string, error) {
	switch format {
	case FormatXLSX:
		f, err := excelize.OpenReader(r)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrImportFormat, err)
		}
		defer f.Close()
		sheets := f.GetSheetList()
		if len(sheets) == 0 {
			return nil, ErrNoData
		}
		rows, err := f.GetRows(sheets[0])
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrImportFormat, err)
		}
		return rows, nil
	case FormatCSV:
		cr := csv.NewReader(r)
		cr.FieldsPerRecord = -1
		cr.TrimLeadingSpace = true
		rows, err := cr.ReadAll()
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrImportFormat, err)
		}
		return rows, nil
	}
	return nil, fmt.Errorf("%w: unsupported format %q", ErrImportFormat, format)
}
