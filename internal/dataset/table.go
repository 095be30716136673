package dataset

import (
	"fmt"
	"slices"
	"strings"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"
)

// Table is an ordered, header-keyed set of rows held in memory.
// Every cell keeps its original text; typed interpretation is left to the
// transformations that need it.
type Table struct {
	header []string
	df     dataframe.DataFrame
	rows   int
}

// FromRecords builds a table from a header row followed by data rows.
// Header names are kept verbatim, surrounding spaces included. Every data
// row must have exactly as many cells as the header.
func FromRecords(records [][]string) (*Table, error) {
	if len(records) == 0 {
		return nil, fmt.Errorf("no header row")
	}

	header := make([]string, len(records[0]))
	seen := make(map[string]bool, len(header))
	for i, name := range records[0] {
		if strings.TrimSpace(name) == "" {
			return nil, fmt.Errorf("column %d has an empty name", i+1)
		}
		if seen[name] {
			return nil, fmt.Errorf("duplicate column %q", name)
		}
		seen[name] = true
		header[i] = name
	}

	for i, rec := range records[1:] {
		if len(rec) != len(header) {
			return nil, fmt.Errorf("row %d: expected %d fields, got %d", i+2, len(header), len(rec))
		}
	}

	t := &Table{header: header, rows: len(records) - 1}
	if t.rows == 0 {
		return t, nil
	}

	body := make([][]string, 0, len(records))
	body = append(body, header)
	body = append(body, records[1:]...)

	t.df = dataframe.LoadRecords(body,
		dataframe.HasHeader(true),
		dataframe.DetectTypes(false),
		dataframe.DefaultType(series.String),
		dataframe.NaNValues([]string{}),
	)
	if t.df.Err != nil {
		return nil, fmt.Errorf("load records: %w", t.df.Err)
	}

	return t, nil
}

// Header returns a copy of the column names in their original order
func (t *Table) Header() []string {
	return slices.Clone(t.header)
}

// Len returns the number of data rows
func (t *Table) Len() int {
	return t.rows
}

// HasColumn reports whether the table has a column with the given name
func (t *Table) HasColumn(name string) bool {
	return slices.Contains(t.header, name)
}

// RequireColumns fails when any of the named columns is missing
func (t *Table) RequireColumns(names ...string) error {
	var missing []string
	for _, name := range names {
		if !t.HasColumn(name) {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required columns: %s", strings.Join(missing, ", "))
	}
	return nil
}

// Column returns the cell values of one column, top to bottom
func (t *Table) Column(name string) ([]string, error) {
	if !t.HasColumn(name) {
		return nil, fmt.Errorf("no column named %q", name)
	}
	if t.rows == 0 {
		return []string{}, nil
	}
	col := t.df.Col(name)
	if col.Err != nil {
		return nil, col.Err
	}
	return col.Records(), nil
}

// SetColumn replaces the values of an existing column in place, keeping
// its position in the header.
func (t *Table) SetColumn(name string, values []string) error {
	if !t.HasColumn(name) {
		return fmt.Errorf("no column named %q", name)
	}
	if len(values) != t.rows {
		return fmt.Errorf("column %q: expected %d values, got %d", name, t.rows, len(values))
	}
	if t.rows == 0 {
		return nil
	}

	df := t.df.Mutate(series.New(values, series.String, name))
	if df.Err != nil {
		return fmt.Errorf("set column %q: %w", name, df.Err)
	}
	t.df = df
	return nil
}

// Keep retains only the rows at the given zero-based indexes, in the
// order given.
func (t *Table) Keep(indexes []int) error {
	for _, idx := range indexes {
		if idx < 0 || idx >= t.rows {
			return fmt.Errorf("row index %d out of range [0,%d)", idx, t.rows)
		}
	}
	if len(indexes) == 0 {
		t.df = dataframe.DataFrame{}
		t.rows = 0
		return nil
	}

	df := t.df.Subset(indexes)
	if df.Err != nil {
		return fmt.Errorf("subset rows: %w", df.Err)
	}
	t.df = df
	t.rows = len(indexes)
	return nil
}

// Rows returns the data rows with cells in header order
func (t *Table) Rows() [][]string {
	if t.rows == 0 {
		return [][]string{}
	}
	records := t.df.Select(t.header).Records()
	return records[1:]
}

// Records returns the header followed by the data rows
func (t *Table) Records() [][]string {
	return append([][]string{t.Header()}, t.Rows()...)
}
