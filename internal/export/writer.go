package export

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/natefinch/atomic"

	"github.com/lox/movefetch/internal/metrics"
	"github.com/lox/movefetch/internal/movebank"
)

// Writer serializes tables to delimited files in a target directory.
// Files are written to a temporary path and atomically moved into place,
// so a failed write never leaves a partial file and never disturbs a
// previous export at the same path.
type Writer struct {
	dir string
}

func NewWriter(dir string) *Writer {
	return &Writer{dir: dir}
}

func (w *Writer) Dir() string { return w.dir }

// Write exports a materialized table to <dir>/<name>. Returns the final
// path.
func (w *Writer) Write(name string, t *movebank.Table) (string, error) {
	path, _, err := w.WriteRows(name, t.Columns, tableRows(t))
	return path, err
}

// WriteRows exports a header plus rows produced by next, which returns
// io.EOF when exhausted. Rows stream straight to disk, so event tables
// of any size stay bounded in memory. Returns the final path and the
// number of data rows written.
func (w *Writer) WriteRows(name string, columns []string, next func() ([]string, error)) (string, int, error) {
	if err := os.MkdirAll(w.dir, 0o755); err != nil {
		return "", 0, fmt.Errorf("create output dir: %w", err)
	}

	tmp, err := os.CreateTemp(w.dir, name+".tmp-*")
	if err != nil {
		return "", 0, fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	rows, err := writeCSV(tmp, columns, next)
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return "", 0, fmt.Errorf("write %s: %w", name, err)
	}

	final := filepath.Join(w.dir, name)
	if err := atomic.ReplaceFile(tmp.Name(), final); err != nil {
		return "", 0, fmt.Errorf("replace %s: %w", name, err)
	}

	metrics.RowsExported.WithLabelValues(name).Add(float64(rows))
	return final, rows, nil
}

func writeCSV(f io.Writer, columns []string, next func() ([]string, error)) (int, error) {
	cw := csv.NewWriter(f)
	if err := cw.Write(columns); err != nil {
		return 0, err
	}

	rows := 0
	for {
		row, err := next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return rows, err
		}
		if err := cw.Write(row); err != nil {
			return rows, err
		}
		rows++
	}

	cw.Flush()
	return rows, cw.Error()
}

func tableRows(t *movebank.Table) func() ([]string, error) {
	i := 0
	return func() ([]string, error) {
		if t == nil || i >= len(t.Rows) {
			return nil, io.EOF
		}
		row := t.Rows[i]
		i++
		return row, nil
	}
}
