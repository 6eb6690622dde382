package dataset

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/YuminosukeSato/thyroidml/pkg/errors"
)

// ValueCount is the frequency of one distinct value of a column.
type ValueCount struct {
	Value   string
	Count   int
	Percent float64
}

// ValueCounts counts the distinct non-null values of a column, most
// frequent first. Equal counts keep the order of first appearance.
// Percent is relative to the number of non-null cells.
func ValueCounts(c *Column) []ValueCount {
	order := []string{}
	counts := map[string]int{}
	total := 0
	for i := 0; i < c.Len(); i++ {
		if c.Null[i] {
			continue
		}
		v := c.Cell(i)
		if _, ok := counts[v]; !ok {
			order = append(order, v)
		}
		counts[v]++
		total++
	}

	out := make([]ValueCount, len(order))
	for i, v := range order {
		out[i] = ValueCount{Value: v, Count: counts[v], Percent: 100 * float64(counts[v]) / float64(total)}
	}
	sort.SliceStable(out, func(a, b int) bool { return out[a].Count > out[b].Count })
	return out
}

// FormatValueCounts renders value counts as aligned text lines.
func FormatValueCounts(name string, vc []ValueCount) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s\n", name)
	for _, v := range vc {
		fmt.Fprintf(&b, "  %-12s %6d  %6.2f%%\n", v.Value, v.Count, v.Percent)
	}
	return b.String()
}

// Summary is the numeric description of a column, the textual
// counterpart of a box plot.
type Summary struct {
	Column   string
	Count    int
	Mean     float64
	Std      float64
	Min      float64
	Q1       float64
	Median   float64
	Q3       float64
	Max      float64
	Outliers int // values outside [Q1-1.5*IQR, Q3+1.5*IQR]
}

// Describe summarises the named numeric columns, skipping nulls. With no
// names every numeric column is described.
func Describe(t *Table, names ...string) ([]Summary, error) {
	if len(names) == 0 {
		for _, c := range t.cols {
			if c.Kind == Numeric {
				names = append(names, c.Name)
			}
		}
	}

	out := make([]Summary, 0, len(names))
	for _, name := range names {
		c, err := t.Column(name)
		if err != nil {
			return nil, err
		}
		if c.Kind != Numeric {
			return nil, errors.NewSchemaError("describe", name, "expected numeric column, got categorical")
		}
		out = append(out, describeColumn(c))
	}
	return out, nil
}

func describeColumn(c *Column) Summary {
	vals := make([]float64, 0, c.Len())
	for i, v := range c.Num {
		if !c.Null[i] {
			vals = append(vals, v)
		}
	}
	s := Summary{Column: c.Name, Count: len(vals)}
	if len(vals) == 0 {
		nan := math.NaN()
		s.Mean, s.Std, s.Min, s.Q1, s.Median, s.Q3, s.Max = nan, nan, nan, nan, nan, nan, nan
		return s
	}

	sort.Float64s(vals)
	s.Mean, s.Std = stat.MeanStdDev(vals, nil)
	s.Min = floats.Min(vals)
	s.Max = floats.Max(vals)
	s.Q1 = stat.Quantile(0.25, stat.LinInterp, vals, nil)
	s.Median = stat.Quantile(0.5, stat.LinInterp, vals, nil)
	s.Q3 = stat.Quantile(0.75, stat.LinInterp, vals, nil)

	iqr := s.Q3 - s.Q1
	lo, hi := s.Q1-1.5*iqr, s.Q3+1.5*iqr
	for _, v := range vals {
		if v < lo || v > hi {
			s.Outliers++
		}
	}
	return s
}

// FormatSummaries renders summaries as a fixed-width text table.
func FormatSummaries(summaries []Summary) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%-8s %7s %10s %10s %10s %10s %10s %10s %10s %8s\n",
		"column", "count", "mean", "std", "min", "25%", "50%", "75%", "max", "outliers")
	for _, s := range summaries {
		fmt.Fprintf(&b, "%-8s %7d %10.4g %10.4g %10.4g %10.4g %10.4g %10.4g %10.4g %8d\n",
			s.Column, s.Count, s.Mean, s.Std, s.Min, s.Q1, s.Median, s.Q3, s.Max, s.Outliers)
	}
	return b.String()
}
