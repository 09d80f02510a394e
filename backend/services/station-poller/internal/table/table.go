package table

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
)

// ErrMissingKey is returned by Merge when a dedup key column is absent from a table.
var ErrMissingKey = errors.New("table: key column missing")

// Table is a header plus string cells; the on-disk and in-validator shape of every dataset.
type Table struct {
	Columns []string
	Rows    [][]string
}

// New returns an empty table with the given header.
func New(columns ...string) *Table {
	cols := make([]string, len(columns))
	copy(cols, columns)
	return &Table{Columns: cols}
}

// Append adds a row. Short rows are padded, long rows are truncated to the header width.
func (t *Table) Append(row []string) {
	cells := make([]string, len(t.Columns))
	copy(cells, row)
	t.Rows = append(t.Rows, cells)
}

// Len returns the number of rows; a nil table has none.
func (t *Table) Len() int {
	if t == nil {
		return 0
	}
	return len(t.Rows)
}

// Empty reports whether the table is nil or has no rows.
func (t *Table) Empty() bool {
	return t.Len() == 0
}

// Index returns the position of col or -1.
func (t *Table) Index(col string) int {
	if t == nil {
		return -1
	}
	for i, c := range t.Columns {
		if c == col {
			return i
		}
	}
	return -1
}

// Has reports whether col is part of the header.
func (t *Table) Has(col string) bool {
	return t.Index(col) >= 0
}

// Value returns the cell of row at col, or "" when the column is unknown.
func (t *Table) Value(row int, col string) string {
	idx := t.Index(col)
	if idx < 0 || row < 0 || row >= len(t.Rows) || idx >= len(t.Rows[row]) {
		return ""
	}
	return t.Rows[row][idx]
}

// Column returns a copy of every cell of col; nil when the column is unknown.
func (t *Table) Column(col string) []string {
	idx := t.Index(col)
	if idx < 0 {
		return nil
	}
	out := make([]string, len(t.Rows))
	for i, row := range t.Rows {
		if idx < len(row) {
			out[i] = row[idx]
		}
	}
	return out
}

// Key joins the cells of the given columns into a comparable identity.
func (t *Table) Key(row int, cols []string) string {
	parts := make([]string, len(cols))
	for i, c := range cols {
		parts[i] = t.Value(row, c)
	}
	return strings.Join(parts, "\x1f")
}

// Clone returns a deep copy.
func (t *Table) Clone() *Table {
	if t == nil {
		return nil
	}
	out := New(t.Columns...)
	for _, row := range t.Rows {
		out.Append(row)
	}
	return out
}

// Concat appends incoming to existing without deduplication. Columns are the union of both
// headers, existing order first; absent cells are empty.
func Concat(existing, incoming *Table) *Table {
	if existing == nil {
		return incoming.Clone()
	}
	if incoming == nil {
		return existing.Clone()
	}
	columns := append([]string(nil), existing.Columns...)
	for _, c := range incoming.Columns {
		if !contains(columns, c) {
			columns = append(columns, c)
		}
	}
	combined := New(columns...)
	for _, src := range []*Table{existing, incoming} {
		for i := range src.Rows {
			row := make([]string, len(columns))
			for j, c := range columns {
				row[j] = src.Value(i, c)
			}
			combined.Rows = append(combined.Rows, row)
		}
	}
	return combined
}

// Merge concatenates existing and incoming (existing first) and removes duplicate keys keeping
// the last occurrence, at the position of that occurrence. A nil existing table yields incoming
// unchanged. Columns are the union of both headers, existing order first.
func Merge(existing, incoming *Table, key []string) (*Table, error) {
	if incoming == nil {
		return existing.Clone(), nil
	}
	if existing == nil {
		return incoming.Clone(), nil
	}
	for _, k := range key {
		if !existing.Has(k) {
			return nil, fmt.Errorf("%w: %q in existing table", ErrMissingKey, k)
		}
		if !incoming.Has(k) {
			return nil, fmt.Errorf("%w: %q in incoming table", ErrMissingKey, k)
		}
	}

	combined := Concat(existing, incoming)
	columns := combined.Columns
	last := make(map[string]int, len(combined.Rows))
	for i := range combined.Rows {
		last[combined.Key(i, key)] = i
	}
	out := New(columns...)
	for i, row := range combined.Rows {
		if last[combined.Key(i, key)] == i {
			out.Rows = append(out.Rows, row)
		}
	}
	return out, nil
}

// DuplicateKeys returns every key value seen more than once, in first-seen order, and the
// number of surplus rows.
func DuplicateKeys(t *Table, key []string) ([]string, int) {
	if t == nil {
		return nil, 0
	}
	seen := make(map[string]int, len(t.Rows))
	var dupes []string
	surplus := 0
	for i := range t.Rows {
		k := t.Key(i, key)
		seen[k]++
		if seen[k] == 2 {
			dupes = append(dupes, strings.ReplaceAll(k, "\x1f", "|"))
		}
		if seen[k] > 1 {
			surplus++
		}
	}
	return dupes, surplus
}

// ReadCSV parses a header row followed by records.
func ReadCSV(r io.Reader) (*Table, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("table: read csv: %w", err)
	}
	if len(records) == 0 {
		return nil, errors.New("table: csv has no header")
	}
	t := New(records[0]...)
	for _, rec := range records[1:] {
		if len(rec) != len(t.Columns) {
			return nil, fmt.Errorf("table: row has %d fields, header has %d", len(rec), len(t.Columns))
		}
		t.Append(rec)
	}
	return t, nil
}

// WriteCSV writes the header and all rows.
func (t *Table) WriteCSV(w io.Writer) error {
	writer := csv.NewWriter(w)
	if err := writer.Write(t.Columns); err != nil {
		return err
	}
	if err := writer.WriteAll(t.Rows); err != nil {
		return err
	}
	return writer.Error()
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}
