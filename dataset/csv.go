package dataset

import (
	"bufio"
	"encoding/csv"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/YuminosukeSato/thyroidml/pkg/errors"
)

// DefaultNullTokens are the cell values read as missing.
var DefaultNullTokens = []string{"", "NA", "NaN", "?"}

// CSVOption configures ReadCSV.
type CSVOption func(*csvConfig)

type csvConfig struct {
	comma      rune
	nullTokens map[string]bool
}

// WithComma sets the field delimiter. The default is ','.
func WithComma(r rune) CSVOption {
	return func(c *csvConfig) { c.comma = r }
}

// WithNullTokens replaces the set of cell values read as missing.
func WithNullTokens(tokens ...string) CSVOption {
	return func(c *csvConfig) {
		c.nullTokens = make(map[string]bool, len(tokens))
		for _, tok := range tokens {
			c.nullTokens[tok] = true
		}
	}
}

// LoadCSV reads the CSV file at path. See ReadCSV.
func LoadCSV(path string, opts ...CSVOption) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "open %s", path)
	}
	defer f.Close()

	t, err := ReadCSV(bufio.NewReader(f), opts...)
	if err != nil {
		return nil, errors.Wrapf(err, "read %s", path)
	}
	return t, nil
}

// ReadCSV reads a CSV stream whose first record is the header. Cells are
// trimmed; null tokens become nulls. A column is Numeric when every
// non-null cell parses as a float64, otherwise Categorical.
func ReadCSV(r io.Reader, opts ...CSVOption) (*Table, error) {
	cfg := csvConfig{comma: ','}
	WithNullTokens(DefaultNullTokens...)(&cfg)
	for _, opt := range opts {
		opt(&cfg)
	}

	reader := csv.NewReader(r)
	reader.Comma = cfg.comma
	reader.ReuseRecord = true

	header, err := reader.Read()
	if err == io.EOF {
		return nil, errors.Wrap(errors.ErrEmptyData, "missing header")
	}
	if err != nil {
		return nil, errors.Wrap(err, "read header")
	}
	names := make([]string, len(header))
	for i, h := range header {
		names[i] = strings.TrimSpace(h)
	}

	raw := make([][]string, len(names))
	nulls := make([][]bool, len(names))
	for {
		rec, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, errors.Wrap(err, "read record")
		}
		for j, cell := range rec {
			cell = strings.TrimSpace(cell)
			isNull := cfg.nullTokens[cell]
			if isNull {
				cell = ""
			}
			raw[j] = append(raw[j], cell)
			nulls[j] = append(nulls[j], isNull)
		}
	}

	cols := make([]*Column, len(names))
	for j, name := range names {
		cols[j] = inferColumn(name, raw[j], nulls[j])
	}
	return NewTable(cols...)
}

func inferColumn(name string, cells []string, null []bool) *Column {
	if null == nil {
		null = []bool{}
	}
	nums := make([]float64, len(cells))
	for i, cell := range cells {
		if null[i] {
			continue
		}
		v, err := strconv.ParseFloat(cell, 64)
		if err != nil {
			return NewCategorical(name, append([]string{}, cells...), null)
		}
		nums[i] = v
	}
	return NewNumeric(name, nums, null)
}
