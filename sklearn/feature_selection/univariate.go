// Package feature_selection scores features with univariate statistical
// tests and keeps the best scoring ones.
package feature_selection

import (
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/YuminosukeSato/thyroidml/core/model"
	"github.com/YuminosukeSato/thyroidml/core/parallel"
	"github.com/YuminosukeSato/thyroidml/pkg/errors"
	"github.com/YuminosukeSato/thyroidml/pkg/log"
)

// parallelColumnThreshold is the column count above which FClassif scores
// columns concurrently.
const parallelColumnThreshold = 16

// FClassif computes the one-way ANOVA F statistic of every column of X
// against the class labels y, and its p-value. A column that is constant
// within every class scores +Inf, or NaN when it is constant overall.
func FClassif(X mat.Matrix, y []string) (scores, pvalues []float64, err error) {
	nSamples, nFeatures := X.Dims()
	if nSamples != len(y) {
		return nil, nil, errors.NewDimensionError("FClassif", nSamples, len(y), 0)
	}

	groups := make(map[string][]int)
	var order []string
	for i, label := range y {
		if _, ok := groups[label]; !ok {
			order = append(order, label)
		}
		groups[label] = append(groups[label], i)
	}
	nClasses := len(order)
	if nClasses < 2 {
		return nil, nil, errors.NewValidationError("y", "need at least two classes", nClasses)
	}
	if nSamples <= nClasses {
		return nil, nil, errors.NewValidationError("X", "need more samples than classes", nSamples)
	}

	dfBetween := float64(nClasses - 1)
	dfWithin := float64(nSamples - nClasses)
	dist := distuv.F{D1: dfBetween, D2: dfWithin}

	scores = make([]float64, nFeatures)
	pvalues = make([]float64, nFeatures)
	// 列数がしきい値を超えるときだけ並列に計算する
	parallel.ParallelizeWithThreshold(nFeatures, parallelColumnThreshold, func(start, end int) {
		col := make([]float64, nSamples)
		for j := start; j < end; j++ {
			mat.Col(col, j, X)
			f := anovaF(col, order, groups, dfBetween, dfWithin)
			scores[j] = f
			switch {
			case math.IsNaN(f):
				pvalues[j] = math.NaN()
			case math.IsInf(f, 1):
				pvalues[j] = 0
			default:
				pvalues[j] = dist.Survival(f)
			}
		}
	})
	return scores, pvalues, nil
}

func anovaF(x []float64, order []string, groups map[string][]int, dfBetween, dfWithin float64) float64 {
	constantOverall := true
	constantWithin := true
	for _, label := range order {
		idx := groups[label]
		for _, i := range idx[1:] {
			if x[i] != x[idx[0]] {
				constantWithin = false
			}
		}
		if x[idx[0]] != x[groups[order[0]][0]] {
			constantOverall = false
		}
	}
	if constantWithin {
		if constantOverall {
			return math.NaN()
		}
		return math.Inf(1)
	}

	var total float64
	for _, v := range x {
		total += v
	}
	grandMean := total / float64(len(x))

	var ssBetween, ssWithin float64
	for _, label := range order {
		idx := groups[label]
		var sum float64
		for _, i := range idx {
			sum += x[i]
		}
		mean := sum / float64(len(idx))
		d := mean - grandMean
		ssBetween += float64(len(idx)) * d * d
		for _, i := range idx {
			e := x[i] - mean
			ssWithin += e * e
		}
	}
	return (ssBetween / dfBetween) / (ssWithin / dfWithin)
}

// FeatureScore is one row of the score table.
type FeatureScore struct {
	Feature string
	Score   float64
	PValue  float64
}

// SelectKBest keeps the K features with the highest FClassif scores.
// NaN scores rank lowest and equal scores prefer the earlier column.
type SelectKBest struct {
	K int

	state        *model.StateManager
	logger       log.Logger
	featureNames []string
	scores       []float64
	pvalues      []float64
	ranking      []int // feature indices, best first
	support      []bool
}

// NewSelectKBest creates a selector keeping k features.
func NewSelectKBest(k int) *SelectKBest {
	return &SelectKBest{
		K:      k,
		state:  model.NewStateManager(),
		logger: log.GetLoggerWithName("SelectKBest"),
	}
}

// SetLogger replaces the logger.
func (s *SelectKBest) SetLogger(l log.Logger) { s.logger = l }

// Fit scores the columns of X, named x0, x1, ...
func (s *SelectKBest) Fit(X mat.Matrix, y []string) error {
	_, nFeatures := X.Dims()
	names := make([]string, nFeatures)
	for i := range names {
		names[i] = fmt.Sprintf("x%d", i)
	}
	return s.FitNamed(X, y, names)
}

// FitNamed scores the columns of X, whose names are given in column order.
// Only the training partition may be passed here.
func (s *SelectKBest) FitNamed(X mat.Matrix, y []string, names []string) error {
	_, nFeatures := X.Dims()
	if len(names) != nFeatures {
		return errors.NewDimensionError("SelectKBest.Fit", nFeatures, len(names), 1)
	}
	if s.K <= 0 || s.K > nFeatures {
		return errors.NewValidationError("k", fmt.Sprintf("must be in [1, %d]", nFeatures), s.K)
	}

	scores, pvalues, err := FClassif(X, y)
	if err != nil {
		return err
	}

	ranking := make([]int, nFeatures)
	for i := range ranking {
		ranking[i] = i
	}
	sort.SliceStable(ranking, func(a, b int) bool {
		sa, sb := scores[ranking[a]], scores[ranking[b]]
		if math.IsNaN(sa) {
			return false
		}
		if math.IsNaN(sb) {
			return true
		}
		return sa > sb
	})

	support := make([]bool, nFeatures)
	for _, j := range ranking[:s.K] {
		support[j] = true
	}

	var undefined []string
	for j, sc := range scores {
		if math.IsNaN(sc) {
			undefined = append(undefined, names[j])
		}
	}
	if len(undefined) > 0 {
		errors.Warn(errors.NewConstantFeatureWarning(undefined))
	}

	s.featureNames = append([]string(nil), names...)
	s.scores = scores
	s.pvalues = pvalues
	s.ranking = ranking
	s.support = support
	s.state.SetDimensions(nFeatures, len(y))
	s.state.SetFitted()

	if s.logger != nil {
		s.logger.Info("Selected features",
			log.OperationKey, log.OperationFit,
			log.FeaturesKey, nFeatures,
			log.SamplesKey, len(y),
			"k", s.K,
			"selected", s.selected(),
			log.ScoreKey, scores[ranking[s.K-1]],
		)
	}
	return nil
}

// Transform keeps the selected columns of X in their original order.
func (s *SelectKBest) Transform(X mat.Matrix) (*mat.Dense, error) {
	if err := s.state.RequireFitted("SelectKBest", "Transform"); err != nil {
		return nil, err
	}
	rows, cols := X.Dims()
	if err := s.state.RequireFeatures("SelectKBest.Transform", cols); err != nil {
		return nil, err
	}

	out := mat.NewDense(rows, s.K, nil)
	k := 0
	for j, keep := range s.support {
		if !keep {
			continue
		}
		for i := 0; i < rows; i++ {
			out.Set(i, k, X.At(i, j))
		}
		k++
	}
	return out, nil
}

// Support returns the mask of selected columns.
func (s *SelectKBest) Support() []bool {
	return append([]bool(nil), s.support...)
}

// Selected returns the names of the selected features in original column order.
func (s *SelectKBest) Selected() []string {
	return s.selected()
}

func (s *SelectKBest) selected() []string {
	out := make([]string, 0, s.K)
	for j, keep := range s.support {
		if keep {
			out = append(out, s.featureNames[j])
		}
	}
	return out
}

// ScoreTable returns the score of every feature, best first.
func (s *SelectKBest) ScoreTable() []FeatureScore {
	out := make([]FeatureScore, len(s.ranking))
	for i, j := range s.ranking {
		out[i] = FeatureScore{Feature: s.featureNames[j], Score: s.scores[j], PValue: s.pvalues[j]}
	}
	return out
}

// Scores returns the scores in column order.
func (s *SelectKBest) Scores() []float64 {
	return append([]float64(nil), s.scores...)
}
