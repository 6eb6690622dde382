// Package over_sampling balances class frequencies by duplicating rows of
// the minority classes, in the manner of imbalanced-learn's
// RandomOverSampler.
package over_sampling

import (
	"math/rand"
	"sort"

	"github.com/YuminosukeSato/thyroidml/dataset"
	"github.com/YuminosukeSato/thyroidml/pkg/errors"
	"github.com/YuminosukeSato/thyroidml/pkg/log"
)

// ClassCount is the number of rows of one class.
type ClassCount struct {
	Class   string
	Count   int
	Percent float64
}

// RandomOverSampler draws extra rows of every non-majority class uniformly
// with replacement until all classes reach the majority count.
type RandomOverSampler struct {
	RandomState int64

	logger log.Logger
}

// Option configures a RandomOverSampler.
type Option func(*RandomOverSampler)

// WithRandomState sets the seed of the sampler.
func WithRandomState(seed int64) Option {
	return func(s *RandomOverSampler) { s.RandomState = seed }
}

// WithLogger sets the logger.
func WithLogger(l log.Logger) Option {
	return func(s *RandomOverSampler) { s.logger = l }
}

// NewRandomOverSampler creates a sampler seeded with 42.
func NewRandomOverSampler(opts ...Option) *RandomOverSampler {
	s := &RandomOverSampler{RandomState: 42}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = log.GetLoggerWithName("over_sampling")
	}
	return s
}

// FitResample returns the row indices of the balanced sample. For each
// class in sorted order it lists the original indices of that class in row
// order, followed by majority-count extra indices drawn from the class.
// The same labels and seed always produce the same indices.
func (s *RandomOverSampler) FitResample(labels []string) ([]int, error) {
	byClass := make(map[string][]int)
	for i, l := range labels {
		byClass[l] = append(byClass[l], i)
	}
	if len(byClass) < 2 {
		return nil, errors.NewValidationError("labels", "need at least two classes to oversample", len(byClass))
	}

	classes := make([]string, 0, len(byClass))
	majority := 0
	for c, idx := range byClass {
		classes = append(classes, c)
		if len(idx) > majority {
			majority = len(idx)
		}
	}
	sort.Strings(classes)

	rng := rand.New(rand.NewSource(s.RandomState))
	out := make([]int, 0, majority*len(classes))
	for _, c := range classes {
		idx := byClass[c]
		out = append(out, idx...)
		for k := len(idx); k < majority; k++ {
			out = append(out, idx[rng.Intn(len(idx))])
		}
	}

	if s.logger != nil {
		s.logger.Info("Oversampled classes",
			log.OperationKey, log.OperationFitResample,
			log.ClassesKey, len(classes),
			log.SamplesKey, len(out),
			log.RandomSeedKey, s.RandomState,
		)
	}
	return out, nil
}

// Resample balances a table on the named label column.
func (s *RandomOverSampler) Resample(t *dataset.Table, column string) (*dataset.Table, error) {
	labels, err := t.Strings(column)
	if err != nil {
		return nil, err
	}
	idx, err := s.FitResample(labels)
	if err != nil {
		return nil, err
	}
	return t.Take(idx)
}

// ClassCounts reports per-class row counts in sorted class order.
func ClassCounts(labels []string) []ClassCount {
	counts := make(map[string]int)
	for _, l := range labels {
		counts[l]++
	}
	out := make([]ClassCount, 0, len(counts))
	for c, n := range counts {
		out = append(out, ClassCount{Class: c, Count: n, Percent: 100 * float64(n) / float64(len(labels))})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Class < out[j].Class })
	return out
}
