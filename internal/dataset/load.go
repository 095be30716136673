package dataset

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"

	apperrors "basiccleaning/internal/errors"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// Load reads a table from a local file. The format is chosen by extension:
// .xlsx workbooks are read from their first sheet, everything else is CSV.
func Load(path string) (*Table, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx", ".xlsm":
		return loadWorkbook(path)
	default:
		return loadCSV(path)
	}
}

// ReadCSV parses CSV text with a header row into a table
func ReadCSV(r io.Reader) (*Table, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	data = bytes.TrimPrefix(data, utf8BOM)

	reader := csv.NewReader(bytes.NewReader(data))
	reader.FieldsPerRecord = 0
	records, err := reader.ReadAll()
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("file is empty")
	}
	return FromRecords(records)
}

func loadCSV(path string) (*Table, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, apperrors.NewParseError(path, "failed to open file", err)
	}
	defer file.Close()

	table, err := ReadCSV(file)
	if err != nil {
		return nil, apperrors.NewParseError(path, "invalid CSV", err)
	}
	return table, nil
}

func loadWorkbook(path string) (*Table, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, apperrors.NewParseError(path, "failed to open workbook", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, apperrors.NewParseError(path, "workbook has no sheets", nil)
	}

	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, apperrors.NewParseError(path, fmt.Sprintf("failed to read sheet %s", sheets[0]), err)
	}
	if len(rows) == 0 {
		return nil, apperrors.NewParseError(path, "sheet is empty", nil)
	}

	// excelize trims trailing empty cells, so short rows are padded back
	// out to the header width. Longer rows are left for FromRecords to reject.
	width := len(rows[0])
	for i, row := range rows[1:] {
		if len(row) < width {
			padded := make([]string, width)
			copy(padded, row)
			rows[i+1] = padded
		}
	}

	table, err := FromRecords(rows)
	if err != nil {
		return nil, apperrors.NewParseError(path, "invalid sheet", err)
	}
	return table, nil
}
