// Package model_selection splits samples into train and test partitions.
package model_selection

import (
	"math"
	"math/rand"

	"github.com/YuminosukeSato/thyroidml/pkg/errors"
)

// Split holds the row indices of each partition.
type Split struct {
	Train []int
	Test  []int
}

// TrainTestSplit shuffles the indices [0, n) with a generator seeded by
// randomState and assigns the first ceil(testSize*n) of them to the test
// partition and the rest to the train partition. The split is not stratified.
func TrainTestSplit(n int, testSize float64, randomState int64) (Split, error) {
	if !(testSize > 0 && testSize < 1) {
		return Split{}, errors.NewValidationError("test_size", "must be in the open interval (0, 1)", testSize)
	}
	nTest := int(math.Ceil(testSize * float64(n)))
	nTrain := n - nTest
	if nTest == 0 || nTrain == 0 {
		return Split{}, errors.NewValueError("TrainTestSplit",
			"with the given test_size one of the partitions would be empty; increase the number of samples")
	}

	perm := rand.New(rand.NewSource(randomState)).Perm(n)
	return Split{Test: perm[:nTest], Train: perm[nTest:]}, nil
}
