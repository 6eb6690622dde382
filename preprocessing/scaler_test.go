package preprocessing

import (
	"bytes"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/thyroidml/core/model"
	"github.com/YuminosukeSato/thyroidml/pkg/errors"
)

func TestStandardScaler_FitTransform(t *testing.T) {
	X := mat.NewDense(4, 2, []float64{
		1, 10,
		2, 10,
		3, 10,
		4, 10,
	})

	s := NewStandardScalerDefault()
	out, err := s.FitTransform(X)
	require.NoError(t, err)

	assert.InDeltaSlice(t, []float64{2.5, 10}, s.Mean, 1e-12)
	// 母標準偏差 sqrt(1.25)。定数列は1になる
	assert.InDeltaSlice(t, []float64{math.Sqrt(1.25), 1}, s.Scale, 1e-12)

	for i := 0; i < 4; i++ {
		assert.InDelta(t, (float64(i+1)-2.5)/math.Sqrt(1.25), out.At(i, 0), 1e-12)
		assert.Zero(t, out.At(i, 1))
	}
}

func TestStandardScaler_InverseTransform(t *testing.T) {
	X := mat.NewDense(3, 2, []float64{1, -2, 5, 0, 9, 7})
	s := NewStandardScalerDefault()
	scaled, err := s.FitTransform(X)
	require.NoError(t, err)

	back, err := s.InverseTransform(scaled)
	require.NoError(t, err)
	assert.True(t, mat.EqualApprox(X, back, 1e-12))
}

func TestStandardScaler_Options(t *testing.T) {
	X := mat.NewDense(2, 1, []float64{2, 6})

	tests := []struct {
		name     string
		withMean bool
		withStd  bool
		want     []float64
	}{
		{"both", true, true, []float64{-1, 1}},
		{"mean only", true, false, []float64{-2, 2}},
		{"std only", false, true, []float64{1, 3}},
		{"neither", false, false, []float64{2, 6}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := NewStandardScaler(tt.withMean, tt.withStd).FitTransform(X)
			require.NoError(t, err)
			assert.InDeltaSlice(t, tt.want, mat.Col(nil, 0, out), 1e-12)
		})
	}
}

func TestStandardScaler_Errors(t *testing.T) {
	s := NewStandardScalerDefault()

	_, err := s.Transform(mat.NewDense(1, 1, nil))
	var nf *errors.NotFittedError
	require.True(t, errors.As(err, &nf))

	require.NoError(t, s.Fit(mat.NewDense(2, 2, []float64{1, 2, 3, 4})))
	_, err = s.Transform(mat.NewDense(1, 3, nil))
	var de *errors.DimensionError
	require.True(t, errors.As(err, &de))
	assert.Equal(t, 2, de.Expected)
	assert.Equal(t, 3, de.Got)
}

func TestStandardScaler_GobRoundTrip(t *testing.T) {
	X := mat.NewDense(3, 2, []float64{1, 4, 2, 5, 3, 9})
	s := NewStandardScalerDefault()
	require.NoError(t, s.Fit(X))

	var buf bytes.Buffer
	require.NoError(t, model.SaveModelToWriter(s, &buf))
	loaded := &StandardScaler{}
	require.NoError(t, model.LoadModelFromReader(loaded, &buf))

	want, err := s.Transform(X)
	require.NoError(t, err)
	got, err := loaded.Transform(X)
	require.NoError(t, err)
	assert.True(t, mat.Equal(want, got))
	assert.Contains(t, loaded.String(), "n_features=2")
}
