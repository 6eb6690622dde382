package dataset

import (
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/YuminosukeSato/thyroidml/pkg/errors"
)

const sampleCSV = `age,sex,TSH,on_thyroxine,target
41,F,1.3,f,-
23,F,?,f,-
46,M,0.98,t,A
,NA,0.16,f,-
41,F,1.3,f,-
`

func loadSample(t *testing.T) *Table {
	t.Helper()
	tbl, err := ReadCSV(strings.NewReader(sampleCSV))
	require.NoError(t, err)
	return tbl
}

func TestReadCSVInfersKindsAndNulls(t *testing.T) {
	tbl := loadSample(t)

	assert.Equal(t, 5, tbl.NumRows())
	assert.Equal(t, []string{"age", "sex", "TSH", "on_thyroxine", "target"}, tbl.Names())

	tests := []struct {
		column string
		kind   Kind
		nulls  int
	}{
		{"age", Numeric, 1},
		{"sex", Categorical, 1},
		{"TSH", Numeric, 1},
		{"on_thyroxine", Categorical, 0},
		{"target", Categorical, 0},
	}
	for _, tt := range tests {
		t.Run(tt.column, func(t *testing.T) {
			c, err := tbl.Column(tt.column)
			require.NoError(t, err)
			assert.Equal(t, tt.kind, c.Kind)
			assert.Equal(t, tt.nulls, c.NullCount())
		})
	}

	age, _ := tbl.Column("age")
	assert.Equal(t, 46.0, age.Num[2])
}

func TestReadCSVCustomOptions(t *testing.T) {
	tbl, err := ReadCSV(strings.NewReader("a;b\n1;x\n-;y\n"), WithComma(';'), WithNullTokens("-"))
	require.NoError(t, err)

	a, _ := tbl.Column("a")
	assert.Equal(t, Numeric, a.Kind)
	assert.Equal(t, []bool{false, true}, a.Null)
}

func TestReadCSVErrors(t *testing.T) {
	_, err := ReadCSV(strings.NewReader(""))
	assert.True(t, errors.Is(err, errors.ErrEmptyData))

	_, err = ReadCSV(strings.NewReader("a,b\n1,2\n3\n"))
	assert.Error(t, err)

	_, err = ReadCSV(strings.NewReader("a,a\n1,2\n"))
	assert.Error(t, err)
}

func TestLoadCSV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "thyroid.csv")
	require.NoError(t, os.WriteFile(path, []byte(sampleCSV), 0o600))

	tbl, err := LoadCSV(path)
	require.NoError(t, err)
	assert.Equal(t, 5, tbl.NumRows())

	_, err = LoadCSV(filepath.Join(t.TempDir(), "missing.csv"))
	assert.Error(t, err)
}

func TestTableOperationsDoNotMutate(t *testing.T) {
	tbl := loadSample(t)
	before := tbl.Clone()

	selected, err := tbl.Select("TSH", "age")
	require.NoError(t, err)
	assert.Equal(t, []string{"TSH", "age"}, selected.Names())

	dropped := tbl.Drop("sex", "not-a-column")
	assert.Equal(t, []string{"age", "TSH", "on_thyroxine", "target"}, dropped.Names())

	taken, err := tbl.Take([]int{2, 2, 0})
	require.NoError(t, err)
	assert.Equal(t, 3, taken.NumRows())
	sex, _ := taken.Strings("sex")
	assert.Equal(t, []string{"M", "M", "F"}, sex)

	replaced, err := tbl.WithColumn(NewNumeric("age", []float64{1, 2, 3, 4, 5}, nil))
	require.NoError(t, err)
	age, _ := replaced.Column("age")
	assert.Zero(t, age.NullCount())

	assert.Equal(t, before.Names(), tbl.Names())
	for _, name := range tbl.Names() {
		got, _ := tbl.Strings(name)
		want, _ := before.Strings(name)
		assert.Equal(t, want, got, name)
	}
	origAge, _ := tbl.Column("age")
	assert.Equal(t, 1, origAge.NullCount())
}

func TestTableErrors(t *testing.T) {
	tbl := loadSample(t)

	_, err := tbl.Column("TBG")
	assert.True(t, errors.Is(err, errors.ErrColumnNotFound))

	_, err = tbl.Take([]int{5})
	assert.Error(t, err)

	_, err = tbl.WithColumn(NewNumeric("x", []float64{1}, nil))
	var dimErr *errors.DimensionError
	assert.True(t, errors.As(err, &dimErr))
}

func TestDense(t *testing.T) {
	tbl := MustNewTable(
		NewNumeric("a", []float64{1, 2}, nil),
		NewNumeric("b", []float64{3, 4}, nil),
		NewCategorical("c", []string{"x", "y"}, nil),
		NewNumeric("d", []float64{0, 1}, []bool{true, false}),
	)

	X, err := tbl.Dense("b", "a")
	require.NoError(t, err)
	assert.Equal(t, 3.0, X.At(0, 0))
	assert.Equal(t, 2.0, X.At(1, 1))

	var schemaErr *errors.SchemaError
	_, err = tbl.Dense("c")
	require.True(t, errors.As(err, &schemaErr))
	assert.Equal(t, "c", schemaErr.Column)

	_, err = tbl.Dense("d")
	require.True(t, errors.As(err, &schemaErr))
	assert.Equal(t, "d", schemaErr.Column)
}

func TestDropDuplicatesKeepsFirstOccurrence(t *testing.T) {
	tbl := loadSample(t)

	dedup, removed := tbl.DropDuplicates()
	assert.Equal(t, 1, removed)
	assert.Equal(t, 4, dedup.NumRows())

	age, _ := dedup.Strings("age")
	assert.Equal(t, []string{"41", "23", "46", ""}, age)

	same, removed := dedup.DropDuplicates()
	assert.Zero(t, removed)
	assert.Same(t, dedup, same)
}

func TestRowKeyDistinguishesNullFromEmpty(t *testing.T) {
	tbl := MustNewTable(NewCategorical("a", []string{"", ""}, []bool{true, false}))
	assert.NotEqual(t, tbl.RowKey(0), tbl.RowKey(1))
}

func TestNullCounts(t *testing.T) {
	counts := loadSample(t).NullCounts()
	require.Len(t, counts, 5)
	assert.Equal(t, NullCount{Column: "age", Count: 1}, counts[0])
	assert.Equal(t, NullCount{Column: "target", Count: 0}, counts[4])
}

func TestValueCounts(t *testing.T) {
	c := NewCategorical("target", []string{"thyroid", "no thyroid", "no thyroid", "x", ""}, []bool{false, false, false, false, true})

	vc := ValueCounts(c)
	require.Len(t, vc, 3)
	assert.Equal(t, "no thyroid", vc[0].Value)
	assert.Equal(t, 2, vc[0].Count)
	assert.InDelta(t, 50.0, vc[0].Percent, 1e-12)
	// 同数の場合は出現順
	assert.Equal(t, "thyroid", vc[1].Value)
	assert.Equal(t, "x", vc[2].Value)

	assert.Contains(t, FormatValueCounts("target", vc), "no thyroid")
}

func TestDescribe(t *testing.T) {
	vals := []float64{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 100, 0}
	null := make([]bool, len(vals))
	null[len(vals)-1] = true
	tbl := MustNewTable(
		NewNumeric("TSH", vals, null),
		NewCategorical("sex", make([]string, len(vals)), nil),
	)

	summaries, err := Describe(tbl)
	require.NoError(t, err)
	require.Len(t, summaries, 1)

	s := summaries[0]
	assert.Equal(t, "TSH", s.Column)
	assert.Equal(t, 11, s.Count)
	assert.InDelta(t, 155.0/11.0, s.Mean, 1e-12)
	assert.Equal(t, 1.0, s.Min)
	assert.Equal(t, 100.0, s.Max)
	assert.Equal(t, 1, s.Outliers)
	assert.LessOrEqual(t, s.Q1, s.Median)
	assert.LessOrEqual(t, s.Median, s.Q3)

	assert.Contains(t, FormatSummaries(summaries), "TSH")

	_, err = Describe(tbl, "sex")
	assert.Error(t, err)

	empty := MustNewTable(NewNumeric("TBG", []float64{0}, []bool{true}))
	summaries, err = Describe(empty)
	require.NoError(t, err)
	assert.True(t, math.IsNaN(summaries[0].Mean))
}
