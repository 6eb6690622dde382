package feature_selection

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/thyroidml/pkg/errors"
	"github.com/YuminosukeSato/thyroidml/pkg/log"
)

func quietSelector(k int) *SelectKBest {
	s := NewSelectKBest(k)
	logger, _ := log.NewTestLogger(log.LevelError)
	s.SetLogger(logger)
	return s
}

func TestFClassifMatchesAnova(t *testing.T) {
	// 2クラス、各3サンプル: F = 13.5, df = (1, 4)
	X := mat.NewDense(6, 1, []float64{1, 2, 3, 4, 5, 6})
	y := []string{"a", "a", "a", "b", "b", "b"}

	scores, pvalues, err := FClassif(X, y)
	require.NoError(t, err)
	assert.InDelta(t, 13.5, scores[0], 1e-12)
	assert.InDelta(t, 0.0213116411287565, pvalues[0], 1e-9)
}

func TestFClassifConstantColumns(t *testing.T) {
	X := mat.NewDense(4, 3, []float64{
		7, 0, 1,
		7, 0, 2,
		7, 1, 3,
		7, 1, 5,
	})
	y := []string{"a", "a", "b", "b"}

	scores, pvalues, err := FClassif(X, y)
	require.NoError(t, err)

	assert.True(t, math.IsNaN(scores[0]))
	assert.True(t, math.IsNaN(pvalues[0]))
	assert.True(t, math.IsInf(scores[1], 1))
	assert.Equal(t, 0.0, pvalues[1])
	assert.False(t, math.IsNaN(scores[2]))
}

func TestFClassifWideMatrixMatchesColumnByColumn(t *testing.T) {
	const rows, cols = 12, 3 * parallelColumnThreshold
	X := mat.NewDense(rows, cols, nil)
	y := make([]string, rows)
	for i := 0; i < rows; i++ {
		y[i] = []string{"a", "b", "c"}[i%3]
		for j := 0; j < cols; j++ {
			X.Set(i, j, float64((i*7+j*3)%11)+float64(i%3)*float64(j%4))
		}
	}

	scores, pvalues, err := FClassif(X, y)
	require.NoError(t, err)
	for j := 0; j < cols; j++ {
		s, p, err := FClassif(X.Slice(0, rows, j, j+1), y)
		require.NoError(t, err)
		assert.Equal(t, s[0], scores[j], "column %d", j)
		assert.Equal(t, p[0], pvalues[j], "column %d", j)
	}
}

func TestFClassifErrors(t *testing.T) {
	X := mat.NewDense(3, 1, []float64{1, 2, 3})

	_, _, err := FClassif(X, []string{"a", "b"})
	var dimErr *errors.DimensionError
	assert.True(t, errors.As(err, &dimErr))

	_, _, err = FClassif(X, []string{"a", "a", "a"})
	var valErr *errors.ValidationError
	assert.True(t, errors.As(err, &valErr))

	_, _, err = FClassif(mat.NewDense(2, 1, []float64{1, 2}), []string{"a", "b"})
	assert.True(t, errors.As(err, &valErr))
}

func TestSelectKBestKeepsHighestScores(t *testing.T) {
	// x1 は完全に分離、x2 は部分的に分離、x0 は無関係、x3 は定数
	X := mat.NewDense(6, 4, []float64{
		5, 0, 1, 3,
		1, 0, 2, 3,
		3, 0, 1, 3,
		4, 9, 3, 3,
		2, 9, 4, 3,
		3, 9, 3, 3,
	})
	y := []string{"n", "n", "n", "t", "t", "t"}
	names := []string{"age", "TSH", "T3", "TBG_measured"}

	s := quietSelector(2)
	require.NoError(t, s.FitNamed(X, y, names))

	assert.Equal(t, []string{"TSH", "T3"}, s.Selected())
	assert.Equal(t, []bool{false, true, true, false}, s.Support())

	table := s.ScoreTable()
	require.Len(t, table, 4)
	assert.Equal(t, "TSH", table[0].Feature)
	assert.Equal(t, "T3", table[1].Feature)
	assert.Equal(t, "age", table[2].Feature)
	assert.Equal(t, "TBG_measured", table[3].Feature)
	assert.True(t, math.IsNaN(table[3].Score))

	out, err := s.Transform(X)
	require.NoError(t, err)
	r, c := out.Dims()
	assert.Equal(t, 6, r)
	assert.Equal(t, 2, c)
	assert.Equal(t, 9.0, out.At(3, 0))
	assert.Equal(t, 3.0, out.At(3, 1))
}

func TestSelectKBestLogsCutoffScore(t *testing.T) {
	logger, _ := log.NewTestLogger(log.LevelInfo)
	s := NewSelectKBest(1)
	s.SetLogger(logger)

	X := mat.NewDense(6, 2, []float64{1, 0, 2, 0, 3, 0, 4, 1, 5, 1, 6, 1})
	y := []string{"a", "a", "a", "b", "b", "b"}
	require.NoError(t, s.FitNamed(X, y, []string{"age", "TSH"}))

	// TSH はクラス内で定数なので +Inf
	assert.Equal(t, []string{"TSH"}, s.Selected())
	assert.True(t, logger.ContainsField(log.ScoreKey, "+Inf"))

	s = NewSelectKBest(2)
	s.SetLogger(logger)
	require.NoError(t, s.Fit(X, y))
	assert.True(t, logger.ContainsField(log.ScoreKey, 13.5))
}

func TestSelectKBestTieBreakPrefersEarlierColumn(t *testing.T) {
	X := mat.NewDense(4, 3, []float64{
		0, 1, 0,
		0, 1, 0,
		1, 2, 1,
		1, 2, 1,
	})
	y := []string{"a", "a", "b", "b"}

	s := quietSelector(1)
	require.NoError(t, s.Fit(X, y))
	assert.Equal(t, []string{"x0"}, s.Selected())

	s = quietSelector(2)
	require.NoError(t, s.Fit(X, y))
	assert.Equal(t, []string{"x0", "x1"}, s.Selected())
}

func TestSelectKBestValidation(t *testing.T) {
	X := mat.NewDense(4, 2, []float64{1, 2, 3, 4, 5, 6, 7, 9})
	y := []string{"a", "a", "b", "b"}

	for _, k := range []int{0, 3} {
		err := quietSelector(k).Fit(X, y)
		var valErr *errors.ValidationError
		assert.True(t, errors.As(err, &valErr), "k=%d", k)
	}

	err := quietSelector(1).FitNamed(X, y, []string{"only-one"})
	var dimErr *errors.DimensionError
	assert.True(t, errors.As(err, &dimErr))

	_, err = quietSelector(1).Transform(X)
	var notFitted *errors.NotFittedError
	assert.True(t, errors.As(err, &notFitted))

	s := quietSelector(1)
	require.NoError(t, s.Fit(X, y))
	_, err = s.Transform(mat.NewDense(1, 3, nil))
	assert.True(t, errors.As(err, &dimErr))
}

func TestSelectKBestIgnoresRowsOutsideTraining(t *testing.T) {
	full := mat.NewDense(8, 3, []float64{
		1, 5, 0,
		2, 4, 1,
		1, 6, 0,
		8, 1, 1,
		9, 2, 0,
		8, 1, 1,
		3, 3, 3,
		4, 4, 4,
	})
	y := []string{"n", "n", "n", "t", "t", "t", "n", "t"}
	train, test := []int{0, 1, 2, 3, 4, 5}, []int{6, 7}

	subset := func(X *mat.Dense, rows []int) *mat.Dense {
		_, c := X.Dims()
		out := mat.NewDense(len(rows), c, nil)
		for i, r := range rows {
			out.SetRow(i, X.RawRowView(r))
		}
		return out
	}
	yTrain := make([]string, len(train))
	for i, r := range train {
		yTrain[i] = y[r]
	}

	first := quietSelector(2)
	require.NoError(t, first.Fit(subset(full, train), yTrain))

	// テスト行を書き換えても学習結果は変わらない
	for _, r := range test {
		full.SetRow(r, []float64{100, -100, 1e6})
	}
	second := quietSelector(2)
	require.NoError(t, second.Fit(subset(full, train), yTrain))

	assert.Equal(t, first.Selected(), second.Selected())
	assert.Equal(t, first.Scores(), second.Scores())
}

func TestSelectKBestWarnsOnConstantFeatures(t *testing.T) {
	var warnings []error
	errors.SetZerologWarnFunc(func(w error) { warnings = append(warnings, w) })
	defer errors.SetZerologWarnFunc(nil)

	X := mat.NewDense(4, 2, []float64{1, 3, 1, 4, 1, 8, 1, 9})
	require.NoError(t, quietSelector(1).FitNamed(X, []string{"a", "a", "b", "b"}, []string{"pregnant", "TSH"}))

	require.Len(t, warnings, 1)
	var cw *errors.ConstantFeatureWarning
	require.True(t, errors.As(warnings[0], &cw))
	assert.Equal(t, []string{"pregnant"}, cw.Features)
}
