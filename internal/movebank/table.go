package movebank

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
)

// Table is a fully-materialized delimited response: a header row plus
// zero or more data rows. Values stay in their wire string form; typed
// access goes through the accessors below.
type Table struct {
	Columns []string
	Rows    [][]string
}

func (t *Table) Empty() bool { return t == nil || len(t.Rows) == 0 }

func (t *Table) Len() int {
	if t == nil {
		return 0
	}
	return len(t.Rows)
}

// ColumnIndex returns the position of a named column, or -1.
func (t *Table) ColumnIndex(name string) int {
	for i, c := range t.Columns {
		if c == name {
			return i
		}
	}
	return -1
}

// Value returns the string value at (row, column). ok is false when the
// column is absent or the row is ragged.
func (t *Table) Value(row int, column string) (string, bool) {
	i := t.ColumnIndex(column)
	if i < 0 || row < 0 || row >= len(t.Rows) || i >= len(t.Rows[row]) {
		return "", false
	}
	return t.Rows[row][i], true
}

// Int64 parses the value at (row, column) as an integer ID.
func (t *Table) Int64(row int, column string) (int64, bool) {
	s, ok := t.Value(row, column)
	if !ok || s == "" {
		return 0, false
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}

// TableReader decodes a delimited response incrementally so large event
// payloads never need to be buffered whole. The header row is consumed
// at construction.
type TableReader struct {
	cr      *csv.Reader
	closer  io.Closer
	columns []string
}

// NewTableReader reads the header row from r. A body with no bytes at
// all maps to ErrNoData; a header-only body is a valid empty table.
// If r is an io.Closer, Close closes it.
func NewTableReader(r io.Reader) (*TableReader, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, ErrNoData
	}
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}

	tr := &TableReader{cr: cr, columns: header}
	if c, ok := r.(io.Closer); ok {
		tr.closer = c
	}
	return tr, nil
}

func (tr *TableReader) Columns() []string { return tr.columns }

// Next returns the next data row, or io.EOF when the table is exhausted.
func (tr *TableReader) Next() ([]string, error) {
	row, err := tr.cr.Read()
	if err != nil {
		return nil, err
	}
	return row, nil
}

func (tr *TableReader) Close() error {
	if tr.closer == nil {
		return nil
	}
	return tr.closer.Close()
}

// ReadAll drains the reader into a Table.
func (tr *TableReader) ReadAll() (*Table, error) {
	t := &Table{Columns: tr.columns}
	for {
		row, err := tr.Next()
		if errors.Is(err, io.EOF) {
			return t, nil
		}
		if err != nil {
			return nil, fmt.Errorf("read row %d: %w", len(t.Rows)+1, err)
		}
		t.Rows = append(t.Rows, row)
	}
}

// ParseTable materializes a whole delimited body. Used for metadata
// responses, which are small.
func ParseTable(r io.Reader) (*Table, error) {
	tr, err := NewTableReader(r)
	if err != nil {
		return nil, err
	}
	return tr.ReadAll()
}
