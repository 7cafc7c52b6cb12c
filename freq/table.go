// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package freq reads allele frequency tables and extracts the reference matrix
// and the observed vector consumed by the estimator and the adjuster.
//
// A table has one header row naming the columns and one row per site.
// Cells are kept as text until a column is requested as numbers,
// so annotation columns (chromosome, position, rsid ...) pass through untouched.
package freq

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"gonum.org/v1/gonum/mat"
)

var (
	// ErrUnknownFormat the format tag is neither tab nor csv.
	ErrUnknownFormat = errors.New("freq: unknown table format")
	// ErrUnknownColumn a requested column is absent from the table header.
	ErrUnknownColumn = errors.New("freq: unknown column")
	// ErrDuplicateColumn the header names a column twice.
	ErrDuplicateColumn = errors.New("freq: duplicate column")
	// ErrNotNumeric a cell of a numeric column cannot be parsed as a number.
	ErrNotNumeric = errors.New("freq: cell is not numeric")
	// ErrObservedName the observed column name is empty.
	ErrObservedName = errors.New("freq: observed column name must be a non-empty string")
	// ErrNoReference no reference column was requested.
	ErrNoReference = errors.New("freq: at least one reference column is required")
	// ErrNoRows the table has a header but no site.
	ErrNoRows = errors.New("freq: table has no rows")
	// ErrLength an appended column does not have one value per row.
	ErrLength = errors.New("freq: column length mismatch")
)

// Table is an in-memory frequency table.
type Table struct {
	columns []string
	index   map[string]int
	rows    [][]string
}

// Open reads the table stored in path.
func Open(path string, f Format) (*Table, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()
	t, err := Read(file, f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return t, nil
}

// Read parses a delimited table from r. Every row must have as many fields as the header.
func Read(r io.Reader, f Format) (*Table, error) {
	cr := csv.NewReader(r)
	cr.Comma = f.comma()
	if f == Tab {
		cr.LazyQuotes = true
	}

	header, err := cr.Read()
	if err == io.EOF {
		return nil, errors.New("freq: missing header row")
	}
	if err != nil {
		return nil, fmt.Errorf("freq: %w", err)
	}

	t := &Table{index: make(map[string]int, len(header))}
	for i, name := range header {
		name = strings.TrimSpace(name)
		if _, ok := t.index[name]; ok {
			return nil, fmt.Errorf("%w: %q", ErrDuplicateColumn, name)
		}
		t.index[name] = i
		t.columns = append(t.columns, name)
	}

	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("freq: %w", err)
		}
		t.rows = append(t.rows, rec)
	}
	return t, nil
}

// Columns returns the column names in header order.
func (t *Table) Columns() []string {
	return append([]string(nil), t.columns...)
}

// Len returns the number of sites.
func (t *Table) Len() int { return len(t.rows) }

// Has reports whether the table has a column called name.
func (t *Table) Has(name string) bool {
	_, ok := t.index[name]
	return ok
}

// Resolve splits names into the ones present in the table and the positions of the absent ones.
// Both results keep the order of names.
func (t *Table) Resolve(names []string) (found []string, missing []int) {
	for i, name := range names {
		if t.Has(name) {
			found = append(found, name)
		} else {
			missing = append(missing, i)
		}
	}
	return
}

// Float parses the column called name as numbers.
func (t *Table) Float(name string) ([]float64, error) {
	col, ok := t.index[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownColumn, name)
	}
	out := make([]float64, len(t.rows))
	for i, row := range t.rows {
		v, err := strconv.ParseFloat(strings.TrimSpace(row[col]), 64)
		if err != nil {
			// header is line 1
			return nil, fmt.Errorf("%w: column %q line %d: %q", ErrNotNumeric, name, i+2, row[col])
		}
		out[i] = v
	}
	return out, nil
}

// Extract builds the sites × references matrix A from the refs columns and the observed vector t
// from the obs column. Row i of both is site i of the table.
func (t *Table) Extract(refs []string, obs string) (*mat.Dense, *mat.VecDense, error) {
	switch {
	case obs == "":
		return nil, nil, ErrObservedName
	case len(refs) == 0:
		return nil, nil, ErrNoReference
	case len(t.rows) == 0:
		return nil, nil, ErrNoRows
	}

	a := mat.NewDense(len(t.rows), len(refs), nil)
	for j, name := range refs {
		col, err := t.Float(name)
		if err != nil {
			return nil, nil, err
		}
		a.SetCol(j, col)
	}

	o, err := t.Float(obs)
	if err != nil {
		return nil, nil, err
	}
	return a, mat.NewVecDense(len(o), o), nil
}

// Append adds a column holding one value per site, formatted with the shortest exact representation.
func (t *Table) Append(name string, values []float64) error {
	if len(values) != len(t.rows) {
		return fmt.Errorf("%w: %d values for %d rows", ErrLength, len(values), len(t.rows))
	}
	if t.Has(name) {
		return fmt.Errorf("%w: %q", ErrDuplicateColumn, name)
	}
	t.index[name] = len(t.columns)
	t.columns = append(t.columns, name)
	for i, v := range values {
		t.rows[i] = append(t.rows[i], strconv.FormatFloat(v, 'g', -1, 64))
	}
	return nil
}

// Write writes the header and every row to w.
func (t *Table) Write(w io.Writer, f Format) error {
	cw := csv.NewWriter(w)
	cw.Comma = f.comma()
	if err := cw.Write(t.columns); err != nil {
		return err
	}
	if err := cw.WriteAll(t.rows); err != nil {
		return err
	}
	return cw.Error()
}

// Head renders the first n rows of the named columns, one tab separated line per row,
// for a visual check of the column choice.
func (t *Table) Head(names []string, n int) string {
	var sb strings.Builder
	sb.WriteString(strings.Join(names, "\t"))
	for _, row := range t.rows[:min(n, len(t.rows))] {
		sb.WriteByte('\n')
		for j, name := range names {
			if j > 0 {
				sb.WriteByte('\t')
			}
			if col, ok := t.index[name]; ok {
				sb.WriteString(row[col])
			}
		}
	}
	return sb.String()
}
