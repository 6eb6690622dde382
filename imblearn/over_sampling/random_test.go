package over_sampling

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/YuminosukeSato/thyroidml/dataset"
	"github.com/YuminosukeSato/thyroidml/pkg/errors"
	"github.com/YuminosukeSato/thyroidml/pkg/log"
)

func newSampler(seed int64) *RandomOverSampler {
	logger, _ := log.NewTestLogger(log.LevelError)
	return NewRandomOverSampler(WithRandomState(seed), WithLogger(logger))
}

func labelsOf(classes ...string) []string { return classes }

func TestFitResampleBalancesSixAgainstFour(t *testing.T) {
	labels := labelsOf("no thyroid", "no thyroid", "no thyroid", "no thyroid", "no thyroid", "no thyroid",
		"thyroid", "thyroid", "thyroid", "thyroid")

	idx, err := newSampler(42).FitResample(labels)
	require.NoError(t, err)
	require.Len(t, idx, 12)

	resampled := make([]string, len(idx))
	for i, j := range idx {
		resampled[i] = labels[j]
	}
	counts := ClassCounts(resampled)
	require.Len(t, counts, 2)
	assert.Equal(t, ClassCount{Class: "no thyroid", Count: 6, Percent: 50}, counts[0])
	assert.Equal(t, ClassCount{Class: "thyroid", Count: 6, Percent: 50}, counts[1])

	// 多数派の行はそのまま一度だけ現れる
	assert.Equal(t, []int{0, 1, 2, 3, 4, 5}, idx[:6])
	// 少数派は元の行が先頭に並び、その後に復元抽出された行が続く
	assert.Equal(t, []int{6, 7, 8, 9}, idx[6:10])
	for _, j := range idx[10:] {
		assert.Contains(t, []int{6, 7, 8, 9}, j)
	}
}

func TestFitResampleIsDeterministic(t *testing.T) {
	labels := []string{"a", "b", "b", "b", "b", "b", "b", "b", "a", "b"}

	first, err := newSampler(7).FitResample(labels)
	require.NoError(t, err)
	second, err := newSampler(7).FitResample(labels)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestFitResampleProperties(t *testing.T) {
	tests := []struct {
		name   string
		labels []string
	}{
		{"already balanced", []string{"x", "y", "x", "y"}},
		{"single minority row", []string{"x", "x", "x", "y"}},
		{"three classes", []string{"x", "y", "y", "z", "z", "z"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			idx, err := newSampler(42).FitResample(tt.labels)
			require.NoError(t, err)

			orig := ClassCounts(tt.labels)
			majority := 0
			for _, c := range orig {
				if c.Count > majority {
					majority = c.Count
				}
			}
			assert.Len(t, idx, majority*len(orig))

			resampled := make([]string, len(idx))
			seen := make(map[int]bool)
			for i, j := range idx {
				resampled[i] = tt.labels[j]
				seen[j] = true
			}
			for _, c := range ClassCounts(resampled) {
				assert.Equal(t, majority, c.Count, c.Class)
			}
			// 行は削除されない
			assert.Len(t, seen, len(tt.labels))
		})
	}
}

func TestFitResampleNeedsTwoClasses(t *testing.T) {
	_, err := newSampler(42).FitResample([]string{"thyroid", "thyroid"})
	var valErr *errors.ValidationError
	assert.True(t, errors.As(err, &valErr))

	_, err = newSampler(42).FitResample(nil)
	assert.Error(t, err)
}

func TestResampleTable(t *testing.T) {
	tbl := dataset.MustNewTable(
		dataset.NewNumeric("TSH", []float64{1, 2, 3}, nil),
		dataset.NewCategorical("target", []string{"thyroid", "no thyroid", "no thyroid"}, nil),
	)

	out, err := newSampler(42).Resample(tbl, "target")
	require.NoError(t, err)
	assert.Equal(t, 4, out.NumRows())

	tsh, _ := out.Column("TSH")
	assert.Equal(t, []float64{2, 3, 1, 1}, tsh.Num)
	assert.Equal(t, 3, tbl.NumRows())

	_, err = newSampler(42).Resample(tbl, "missing")
	assert.True(t, errors.Is(err, errors.ErrColumnNotFound))
}
