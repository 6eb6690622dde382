package errors

import (
	"fmt"
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewModelError(t *testing.T) {
	tests := []struct {
		name    string
		op      string
		kind    string
		err     error
		wantMsg string
	}{
		{
			name:    "with original error",
			op:      "Fit",
			kind:    "invalid input",
			err:     fmt.Errorf("test error"),
			wantMsg: "thyroidml: Fit: invalid input: test error",
		},
		{
			name:    "without original error",
			op:      "Predict",
			kind:    "not fitted",
			err:     nil,
			wantMsg: "thyroidml: Predict: not fitted",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := NewModelError(tt.op, tt.kind, tt.err)

			assert.Equal(t, tt.wantMsg, err.Error())

			// スタックトレースの存在確認
			formatted := fmt.Sprintf("%+v", err)
			assert.Contains(t, formatted, "errors_test.go")

			var modelErr *ModelError
			assert.True(t, As(err, &modelErr))
		})
	}
}

func TestNewDimensionError(t *testing.T) {
	err := NewDimensionError("StandardScaler.Transform", 9, 8, 1)

	want := "thyroidml: StandardScaler.Transform: dimension mismatch on axis 1 (features). Expected 9, got 8"
	assert.Equal(t, want, err.Error())

	var dimErr *DimensionError
	require.True(t, As(err, &dimErr))
	assert.Equal(t, 9, dimErr.Expected)
}

func TestNewNotFittedError(t *testing.T) {
	err := NewNotFittedError("RandomForestClassifier", "Predict")

	want := "thyroidml: RandomForestClassifier: this model is not fitted yet. Call Fit() before using Predict()"
	assert.Equal(t, want, err.Error())

	var notFittedErr *NotFittedError
	assert.True(t, As(err, &notFittedErr))
}

func TestSchemaError(t *testing.T) {
	err := NewSchemaError("validate", "TSH", "expected numeric column, got categorical")

	assert.Equal(t, "thyroidml: validate: schema error in column 'TSH': expected numeric column, got categorical", err.Error())

	var schemaErr *SchemaError
	require.True(t, As(err, &schemaErr))
	assert.Equal(t, "TSH", schemaErr.Column)
}

func TestEncodingError(t *testing.T) {
	err := NewEncodingError("clean", "goitre", 17, "x", []string{"t", "f"})

	assert.Equal(t, `thyroidml: clean: cannot encode value "x" in column 'goitre' at row 17 (allowed: t, f)`, err.Error())

	var encErr *EncodingError
	require.True(t, As(err, &encErr))
	assert.Equal(t, 17, encErr.Row)
	assert.Equal(t, "x", encErr.Value)
}

func TestStageError(t *testing.T) {
	inner := NewEncodingError("clean", "sex", 3, "U", []string{"M", "F"})
	err := NewStageError("clean", inner)

	assert.True(t, strings.HasPrefix(err.Error(), "thyroidml: stage clean failed:"))

	// 内側の型付きエラーまで到達できること
	var encErr *EncodingError
	require.True(t, As(err, &encErr))
	assert.Equal(t, "sex", encErr.Column)

	var stageErr *StageError
	require.True(t, As(err, &stageErr))
	assert.Equal(t, "clean", stageErr.Stage)

	assert.Nil(t, NewStageError("clean", nil))
}

func TestWrapAndIs(t *testing.T) {
	wrapped := Wrap(ErrColumnNotFound, "in Table.Column")

	assert.True(t, Is(wrapped, ErrColumnNotFound))
	assert.Contains(t, wrapped.Error(), "in Table.Column")
}

func TestWrapf(t *testing.T) {
	wrapped := Wrapf(ErrEmptyData, "in %s: expected %d rows, got %d", "Fit", 10, 0)

	assert.True(t, Is(wrapped, ErrEmptyData))
	assert.Contains(t, wrapped.Error(), "in Fit: expected 10 rows, got 0")
}

func TestWarnRoutesToZerologFunc(t *testing.T) {
	var got []error
	SetZerologWarnFunc(func(w error) { got = append(got, w) })
	defer SetZerologWarnFunc(nil)

	Warn(NewUndefinedMetricWarning("precision", "no predicted samples", 0))

	require.Len(t, got, 1)
	var metricWarn *UndefinedMetricWarning
	require.True(t, As(got[0], &metricWarn))
	assert.Equal(t, "precision", metricWarn.Metric)
}

func TestSafeDivide(t *testing.T) {
	assert.Equal(t, 0.5, SafeDivide(1, 2))
	assert.Equal(t, 0.0, SafeDivide(1, 0))
}

func TestCheckScalar(t *testing.T) {
	assert.NoError(t, CheckScalar("mean", 1.5))
	assert.Error(t, CheckScalar("mean", math.NaN()))
}
