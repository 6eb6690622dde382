package errors

import (
	"fmt"
	"math"
)

// CheckScalar checks a single scalar value for NaN or Inf and returns a
// ValueError naming the operation when one is found.
func CheckScalar(operation string, value float64) error {
	if math.IsNaN(value) || math.IsInf(value, 0) {
		return NewValueError(operation, fmt.Sprintf("non-finite value %v", value))
	}
	return nil
}

// SafeDivide performs division with protection against division by zero.
// Returns 0 if denominator is zero or close to zero.
func SafeDivide(numerator, denominator float64) float64 {
	if math.Abs(denominator) < 1e-10 {
		return 0
	}
	return numerator / denominator
}
