// Package dataset provides the in-memory column table that flows through
// the pipeline stages, together with CSV loading and textual summaries.
//
// Tables are values: every operation returns a new *Table and never
// mutates its receiver. Columns reachable from a Table must be treated as
// read-only; build a new column and use WithColumn to change one.
package dataset

import (
	"fmt"
	"strconv"
	"strings"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/thyroidml/pkg/errors"
)

// Kind is the storage kind of a column.
type Kind int

const (
	// Numeric columns store float64 values in Num.
	Numeric Kind = iota
	// Categorical columns store raw strings in Str.
	Categorical
)

func (k Kind) String() string {
	switch k {
	case Numeric:
		return "numeric"
	case Categorical:
		return "categorical"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// Column is a named, typed vector with a null mask. Exactly one of Num and
// Str is populated according to Kind. Values at null positions are
// unspecified and must not be read.
type Column struct {
	Name string
	Kind Kind
	Num  []float64
	Str  []string
	Null []bool
}

// NewNumeric builds a numeric column. A nil null mask means no nulls.
func NewNumeric(name string, values []float64, null []bool) *Column {
	if null == nil {
		null = make([]bool, len(values))
	}
	return &Column{Name: name, Kind: Numeric, Num: values, Null: null}
}

// NewCategorical builds a categorical column. A nil null mask means no nulls.
func NewCategorical(name string, values []string, null []bool) *Column {
	if null == nil {
		null = make([]bool, len(values))
	}
	return &Column{Name: name, Kind: Categorical, Str: values, Null: null}
}

// Len returns the number of rows in the column.
func (c *Column) Len() int {
	return len(c.Null)
}

// NullCount returns the number of null cells.
func (c *Column) NullCount() int {
	n := 0
	for _, isNull := range c.Null {
		if isNull {
			n++
		}
	}
	return n
}

// Cell renders row i as text. Null cells render as the empty string.
func (c *Column) Cell(i int) string {
	if c.Null[i] {
		return ""
	}
	if c.Kind == Numeric {
		return strconv.FormatFloat(c.Num[i], 'g', -1, 64)
	}
	return c.Str[i]
}

func (c *Column) clone() *Column {
	out := &Column{Name: c.Name, Kind: c.Kind, Null: append([]bool(nil), c.Null...)}
	if c.Num != nil {
		out.Num = append([]float64(nil), c.Num...)
	}
	if c.Str != nil {
		out.Str = append([]string(nil), c.Str...)
	}
	return out
}

func (c *Column) take(indices []int) *Column {
	out := &Column{Name: c.Name, Kind: c.Kind, Null: make([]bool, len(indices))}
	if c.Kind == Numeric {
		out.Num = make([]float64, len(indices))
	} else {
		out.Str = make([]string, len(indices))
	}
	for i, idx := range indices {
		out.Null[i] = c.Null[idx]
		if c.Kind == Numeric {
			out.Num[i] = c.Num[idx]
		} else {
			out.Str[i] = c.Str[idx]
		}
	}
	return out
}

func (c *Column) validate() error {
	switch c.Kind {
	case Numeric:
		if len(c.Num) != len(c.Null) {
			return errors.NewValueError("dataset.Column", fmt.Sprintf("column '%s' has %d values and %d null flags", c.Name, len(c.Num), len(c.Null)))
		}
	case Categorical:
		if len(c.Str) != len(c.Null) {
			return errors.NewValueError("dataset.Column", fmt.Sprintf("column '%s' has %d values and %d null flags", c.Name, len(c.Str), len(c.Null)))
		}
	default:
		return errors.NewValueError("dataset.Column", fmt.Sprintf("column '%s' has unknown kind %v", c.Name, c.Kind))
	}
	return nil
}

// Table is an ordered set of equally long columns.
type Table struct {
	cols  []*Column
	index map[string]int
	rows  int
}

// NewTable builds a table from columns. Names must be unique and every
// column must have the same length.
func NewTable(cols ...*Column) (*Table, error) {
	t := &Table{cols: cols, index: make(map[string]int, len(cols))}
	for i, c := range cols {
		if err := c.validate(); err != nil {
			return nil, err
		}
		if _, dup := t.index[c.Name]; dup {
			return nil, errors.NewValueError("dataset.NewTable", fmt.Sprintf("duplicate column '%s'", c.Name))
		}
		if i == 0 {
			t.rows = c.Len()
		} else if c.Len() != t.rows {
			return nil, errors.NewDimensionError("dataset.NewTable", t.rows, c.Len(), 0)
		}
		t.index[c.Name] = i
	}
	return t, nil
}

// MustNewTable is NewTable that panics on error. Intended for tests and
// literals whose shape is known to be valid.
func MustNewTable(cols ...*Column) *Table {
	t, err := NewTable(cols...)
	if err != nil {
		panic(err)
	}
	return t
}

// NumRows returns the number of rows.
func (t *Table) NumRows() int { return t.rows }

// NumCols returns the number of columns.
func (t *Table) NumCols() int { return len(t.cols) }

// Names returns the column names in order.
func (t *Table) Names() []string {
	names := make([]string, len(t.cols))
	for i, c := range t.cols {
		names[i] = c.Name
	}
	return names
}

// Has reports whether the table has a column called name.
func (t *Table) Has(name string) bool {
	_, ok := t.index[name]
	return ok
}

// Column returns the named column. The column must not be modified.
func (t *Table) Column(name string) (*Column, error) {
	i, ok := t.index[name]
	if !ok {
		return nil, errors.Wrapf(errors.ErrColumnNotFound, "column '%s'", name)
	}
	return t.cols[i], nil
}

// Columns returns the columns in order. The columns must not be modified.
func (t *Table) Columns() []*Column {
	return append([]*Column(nil), t.cols...)
}

// Select returns a table with only the named columns, in the given order.
func (t *Table) Select(names ...string) (*Table, error) {
	cols := make([]*Column, 0, len(names))
	for _, name := range names {
		c, err := t.Column(name)
		if err != nil {
			return nil, err
		}
		cols = append(cols, c)
	}
	return NewTable(cols...)
}

// Drop returns a table without the named columns. Names that are not
// present are ignored.
func (t *Table) Drop(names ...string) *Table {
	drop := make(map[string]bool, len(names))
	for _, n := range names {
		drop[n] = true
	}
	out := &Table{index: make(map[string]int, len(t.cols)), rows: t.rows}
	for _, c := range t.cols {
		if drop[c.Name] {
			continue
		}
		out.index[c.Name] = len(out.cols)
		out.cols = append(out.cols, c)
	}
	return out
}

// Take returns a table with the rows at indices, in that order. Indices
// may repeat.
func (t *Table) Take(indices []int) (*Table, error) {
	for _, idx := range indices {
		if idx < 0 || idx >= t.rows {
			return nil, errors.NewValueError("dataset.Table.Take", fmt.Sprintf("row index %d out of range [0, %d)", idx, t.rows))
		}
	}
	cols := make([]*Column, len(t.cols))
	for i, c := range t.cols {
		cols[i] = c.take(indices)
	}
	out := &Table{cols: cols, index: make(map[string]int, len(cols)), rows: len(indices)}
	for i, c := range cols {
		out.index[c.Name] = i
	}
	return out, nil
}

// WithColumn returns a table where c replaces the column of the same name,
// or is appended when no such column exists.
func (t *Table) WithColumn(c *Column) (*Table, error) {
	cols := append([]*Column(nil), t.cols...)
	if i, ok := t.index[c.Name]; ok {
		cols[i] = c
	} else {
		cols = append(cols, c)
	}
	if len(t.cols) == 0 {
		return NewTable(cols...)
	}
	if err := c.validate(); err != nil {
		return nil, err
	}
	if c.Len() != t.rows {
		return nil, errors.NewDimensionError("dataset.Table.WithColumn", t.rows, c.Len(), 0)
	}
	out := &Table{cols: cols, index: make(map[string]int, len(cols)), rows: t.rows}
	for i, col := range cols {
		out.index[col.Name] = i
	}
	return out, nil
}

// Clone returns a deep copy of the table.
func (t *Table) Clone() *Table {
	cols := make([]*Column, len(t.cols))
	for i, c := range t.cols {
		cols[i] = c.clone()
	}
	out := &Table{cols: cols, index: make(map[string]int, len(cols)), rows: t.rows}
	for k, v := range t.index {
		out.index[k] = v
	}
	return out
}

// RowKey renders row i as a single string suitable for equality checks.
// Two rows have the same key iff every cell is equal, nulls included.
func (t *Table) RowKey(i int) string {
	var b strings.Builder
	for j, c := range t.cols {
		if j > 0 {
			b.WriteByte(0x1f)
		}
		if c.Null[i] {
			b.WriteByte(0)
			continue
		}
		b.WriteString(c.Cell(i))
	}
	return b.String()
}

// Dense copies the named numeric columns into a rows×len(names) matrix.
// With no names every column is used. Categorical columns and columns
// with nulls are rejected.
func (t *Table) Dense(names ...string) (*mat.Dense, error) {
	if len(names) == 0 {
		names = t.Names()
	}
	if t.rows == 0 || len(names) == 0 {
		return nil, errors.Wrap(errors.ErrEmptyData, "dataset.Table.Dense")
	}
	out := mat.NewDense(t.rows, len(names), nil)
	for j, name := range names {
		c, err := t.Column(name)
		if err != nil {
			return nil, err
		}
		if c.Kind != Numeric {
			return nil, errors.NewSchemaError("dataset.Table.Dense", name, "expected numeric column, got categorical")
		}
		if n := c.NullCount(); n > 0 {
			return nil, errors.NewSchemaError("dataset.Table.Dense", name, fmt.Sprintf("column has %d nulls", n))
		}
		out.SetCol(j, c.Num)
	}
	return out, nil
}

// Strings returns the cells of a column rendered as text.
func (t *Table) Strings(name string) ([]string, error) {
	c, err := t.Column(name)
	if err != nil {
		return nil, err
	}
	out := make([]string, c.Len())
	for i := range out {
		out[i] = c.Cell(i)
	}
	return out, nil
}

// NullCount is one row of the missing-value report.
type NullCount struct {
	Column string
	Count  int
}

// NullCounts returns the null count of every column in column order.
func (t *Table) NullCounts() []NullCount {
	out := make([]NullCount, len(t.cols))
	for i, c := range t.cols {
		out[i] = NullCount{Column: c.Name, Count: c.NullCount()}
	}
	return out
}

// DropDuplicates removes rows equal to an earlier row, keeping the first
// occurrence and the order of the remaining rows. It returns the new table
// and the number of rows removed.
func (t *Table) DropDuplicates() (*Table, int) {
	seen := make(map[string]struct{}, t.rows)
	keep := make([]int, 0, t.rows)
	for i := 0; i < t.rows; i++ {
		key := t.RowKey(i)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		keep = append(keep, i)
	}
	if len(keep) == t.rows {
		return t, 0
	}
	out, _ := t.Take(keep)
	return out, t.rows - len(keep)
}
