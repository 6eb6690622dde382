package thyroid

import (
	"fmt"

	"gonum.org/v1/gonum/stat"

	"github.com/YuminosukeSato/thyroidml/dataset"
	"github.com/YuminosukeSato/thyroidml/pkg/errors"
	"github.com/YuminosukeSato/thyroidml/pkg/log"
)

// DefaultMaxMissing is the number of rows a column must have values for to
// survive: a column is dropped when it has more than rows-DefaultMaxMissing nulls.
const DefaultMaxMissing = 3000

const cleanStage = "clean"

var (
	sexEncoding  = map[string]float64{"M": 1, "F": 0}
	flagEncoding = map[string]float64{"t": 1, "f": 0}
)

// Imputation records how the nulls of one column were filled.
type Imputation struct {
	Column   string
	Strategy string // "mean" or "mode"
	Value    string
	Filled   int
}

// CleanReport summarises what Clean did to a table.
type CleanReport struct {
	RowsIn            int
	RowsOut           int
	Threshold         int
	NullCounts        []dataset.NullCount
	DroppedColumns    []string
	Imputations       []Imputation
	DuplicatesRemoved int
}

// Cleaner drops sparse columns, imputes the rest, encodes sex and the t/f
// flags to {0,1}, removes identifier columns and deduplicates rows.
type Cleaner struct {
	// MaxMissing sets the missingness threshold to max(rows-MaxMissing, 0).
	MaxMissing int
	logger     log.Logger
}

// CleanerOption configures a Cleaner.
type CleanerOption func(*Cleaner)

// NewCleaner creates a Cleaner with MaxMissing set to DefaultMaxMissing.
func NewCleaner(opts ...CleanerOption) *Cleaner {
	c := &Cleaner{MaxMissing: DefaultMaxMissing}
	for _, opt := range opts {
		opt(c)
	}
	if c.logger == nil {
		c.logger = log.GetLoggerWithName("thyroid.cleaner")
	}
	return c
}

// WithMaxMissing sets MaxMissing.
func WithMaxMissing(n int) CleanerOption {
	return func(c *Cleaner) { c.MaxMissing = n }
}

// WithLogger sets the logger used for the per-step report.
func WithLogger(l log.Logger) CleanerOption {
	return func(c *Cleaner) { c.logger = l }
}

// Threshold returns the null count above which a column is dropped.
func (c *Cleaner) Threshold(rows int) int {
	if th := rows - c.MaxMissing; th > 0 {
		return th
	}
	return 0
}

// Clean returns a new table in which every column other than the target is
// numeric and free of nulls. The input table is not modified.
func (c *Cleaner) Clean(t *dataset.Table) (*dataset.Table, *CleanReport, error) {
	if c.MaxMissing < 0 {
		return nil, nil, errors.NewValidationError("max_missing", "must be non-negative", c.MaxMissing)
	}
	logger := c.logger
	if logger == nil {
		logger = log.GetLoggerWithName("thyroid.cleaner")
	}
	logger = logger.With(log.StageKey, cleanStage)

	report := &CleanReport{
		RowsIn:     t.NumRows(),
		Threshold:  c.Threshold(t.NumRows()),
		NullCounts: t.NullCounts(),
	}

	for _, nc := range report.NullCounts {
		if nc.Count > 0 {
			logger.Debug("Missing values", log.ColumnKey, nc.Column, log.NullCountKey, nc.Count)
		}
	}

	out := c.dropSparse(t, report, logger)

	out, err := c.impute(out, report, logger)
	if err != nil {
		return nil, nil, err
	}

	out, err = encode(out)
	if err != nil {
		return nil, nil, err
	}

	out = out.Drop(IdentifierColumns...)

	out, report.DuplicatesRemoved = out.DropDuplicates()
	report.RowsOut = out.NumRows()

	logger.Info("Cleaned table",
		log.SamplesKey, report.RowsOut,
		log.FeaturesKey, out.NumCols(),
		log.ThresholdKey, report.Threshold,
		"dropped_columns", report.DroppedColumns,
		"duplicates_removed", report.DuplicatesRemoved,
	)
	return out, report, nil
}

func (c *Cleaner) dropSparse(t *dataset.Table, report *CleanReport, logger log.Logger) *dataset.Table {
	var drop []string
	for _, nc := range report.NullCounts {
		if nc.Column == TargetColumn {
			continue
		}
		if nc.Count > report.Threshold {
			drop = append(drop, nc.Column)
			logger.Info("Dropped column",
				log.ColumnKey, nc.Column,
				log.NullCountKey, nc.Count,
				log.ThresholdKey, report.Threshold,
			)
		}
	}
	report.DroppedColumns = drop
	return t.Drop(drop...)
}

func (c *Cleaner) impute(t *dataset.Table, report *CleanReport, logger log.Logger) (*dataset.Table, error) {
	out := t
	for _, col := range t.Columns() {
		var (
			filled *dataset.Column
			imp    Imputation
			err    error
		)
		switch {
		case col.Name == TargetColumn || isIdentifier(col.Name):
			continue
		case col.Name == Sex || isFlag(col.Name):
			if col.Kind != dataset.Categorical && col.NullCount() != col.Len() {
				return nil, errors.NewSchemaError(cleanStage, col.Name, "expected categorical column, got numeric")
			}
			filled, imp, err = imputeMode(col)
		case col.Kind == dataset.Numeric:
			filled, imp, err = imputeMean(col)
		default:
			return nil, errors.NewSchemaError(cleanStage, col.Name, "unexpected categorical column")
		}
		if err != nil {
			return nil, err
		}
		if filled == nil {
			continue
		}

		report.Imputations = append(report.Imputations, imp)
		logger.Info("Imputed column",
			log.ColumnKey, imp.Column,
			"strategy", imp.Strategy,
			"value", imp.Value,
			log.CountKey, imp.Filled,
		)
		if out, err = out.WithColumn(filled); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// imputeMean fills nulls with the mean of the column's non-null values. It
// returns a nil column when there is nothing to fill.
func imputeMean(col *dataset.Column) (*dataset.Column, Imputation, error) {
	nulls := col.NullCount()
	if nulls == 0 {
		return nil, Imputation{}, nil
	}
	if nulls == col.Len() {
		return nil, Imputation{}, errors.NewSchemaError(cleanStage, col.Name, "column has no values to compute a mean from")
	}

	observed := make([]float64, 0, col.Len()-nulls)
	for i, v := range col.Num {
		if !col.Null[i] {
			observed = append(observed, v)
		}
	}
	mean := stat.Mean(observed, nil)
	if err := errors.CheckScalar("Cleaner.imputeMean("+col.Name+")", mean); err != nil {
		return nil, Imputation{}, err
	}

	values := make([]float64, col.Len())
	for i, v := range col.Num {
		if col.Null[i] {
			values[i] = mean
		} else {
			values[i] = v
		}
	}
	imp := Imputation{Column: col.Name, Strategy: "mean", Value: fmt.Sprintf("%g", mean), Filled: nulls}
	return dataset.NewNumeric(col.Name, values, nil), imp, nil
}

// imputeMode fills nulls with the most frequent value. Ties go to the value
// seen first in row order.
func imputeMode(col *dataset.Column) (*dataset.Column, Imputation, error) {
	nulls := col.NullCount()
	if nulls == 0 {
		return nil, Imputation{}, nil
	}
	if nulls == col.Len() {
		return nil, Imputation{}, errors.NewSchemaError(cleanStage, col.Name, "column has no values to compute a mode from")
	}

	var order []string
	counts := make(map[string]int)
	for i, v := range col.Str {
		if col.Null[i] {
			continue
		}
		if counts[v] == 0 {
			order = append(order, v)
		}
		counts[v]++
	}
	mode := order[0]
	for _, v := range order[1:] {
		if counts[v] > counts[mode] {
			mode = v
		}
	}

	values := make([]string, col.Len())
	for i, v := range col.Str {
		if col.Null[i] {
			values[i] = mode
		} else {
			values[i] = v
		}
	}
	imp := Imputation{Column: col.Name, Strategy: "mode", Value: mode, Filled: nulls}
	return dataset.NewCategorical(col.Name, values, nil), imp, nil
}

func encode(t *dataset.Table) (*dataset.Table, error) {
	out := t
	for _, col := range t.Columns() {
		var mapping map[string]float64
		var allowed []string
		switch {
		case col.Name == Sex:
			mapping, allowed = sexEncoding, []string{"M", "F"}
		case isFlag(col.Name):
			mapping, allowed = flagEncoding, []string{"t", "f"}
		default:
			continue
		}

		values := make([]float64, col.Len())
		for i := range values {
			v, ok := mapping[col.Str[i]]
			if !ok {
				return nil, errors.NewEncodingError(cleanStage, col.Name, i, col.Str[i], allowed)
			}
			values[i] = v
		}

		var err error
		if out, err = out.WithColumn(dataset.NewNumeric(col.Name, values, nil)); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func isFlag(name string) bool {
	for _, f := range FlagColumns {
		if f == name {
			return true
		}
	}
	return false
}

func isIdentifier(name string) bool {
	return name == ReferralSource || name == PatientID
}
