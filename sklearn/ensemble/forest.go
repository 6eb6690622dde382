// Package ensemble provides bagged tree ensembles built on sklearn/tree.
package ensemble

import (
	"fmt"
	"math/rand"
	"time"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/thyroidml/core/model"
	"github.com/YuminosukeSato/thyroidml/core/parallel"
	"github.com/YuminosukeSato/thyroidml/pkg/errors"
	"github.com/YuminosukeSato/thyroidml/pkg/log"
	"github.com/YuminosukeSato/thyroidml/sklearn/tree"
)

const modelName = "RandomForestClassifier"

var (
	_ model.Classifier      = (*RandomForestClassifier)(nil)
	_ model.ParameterGetter = (*RandomForestClassifier)(nil)
)

// RandomForestClassifier はブートストラップ標本で学習した決定木の平均確率で分類する。
//
// 各木のシードはフォレストのシードから順番に引かれるため、
// 並列度やスケジューリングに関係なく同じ結果になる。
// フィールドはgobでエンコードできるよう公開している。
type RandomForestClassifier struct {
	State *model.StateManager

	// ハイパーパラメータ
	NEstimators     int
	Criterion       string
	MaxDepth        int
	MinSamplesSplit int
	MinSamplesLeaf  int
	MaxFeatures     string
	Bootstrap       bool
	RandomState     int64
	NJobs           int // 0以下はCPUコア数

	// 学習結果
	Estimators  []*tree.DecisionTreeClassifier
	ClassNames  []string
	NFeatures   int
	Importances []float64

	logger log.Logger
}

// Option はRandomForestClassifierの関数オプション
type Option func(*RandomForestClassifier)

// NewRandomForestClassifier creates a forest with 100 trees, gini,
// max_features="sqrt", bootstrap and RandomState 42.
func NewRandomForestClassifier(opts ...Option) *RandomForestClassifier {
	rf := &RandomForestClassifier{
		State:           model.NewStateManager(),
		NEstimators:     100,
		Criterion:       "gini",
		MinSamplesSplit: 2,
		MinSamplesLeaf:  1,
		MaxFeatures:     "sqrt",
		Bootstrap:       true,
		RandomState:     42,
	}
	for _, opt := range opts {
		opt(rf)
	}
	return rf
}

// WithNEstimators sets the number of trees.
func WithNEstimators(n int) Option {
	return func(rf *RandomForestClassifier) { rf.NEstimators = n }
}

// WithCriterion sets the split criterion of every tree.
func WithCriterion(criterion string) Option {
	return func(rf *RandomForestClassifier) { rf.Criterion = criterion }
}

// WithMaxDepth sets the maximum tree depth (0 = unlimited).
func WithMaxDepth(depth int) Option {
	return func(rf *RandomForestClassifier) { rf.MaxDepth = depth }
}

// WithMinSamplesSplit sets min_samples_split of every tree.
func WithMinSamplesSplit(n int) Option {
	return func(rf *RandomForestClassifier) { rf.MinSamplesSplit = n }
}

// WithMinSamplesLeaf sets min_samples_leaf of every tree.
func WithMinSamplesLeaf(n int) Option {
	return func(rf *RandomForestClassifier) { rf.MinSamplesLeaf = n }
}

// WithMaxFeatures sets max_features of every tree.
func WithMaxFeatures(maxFeatures string) Option {
	return func(rf *RandomForestClassifier) { rf.MaxFeatures = maxFeatures }
}

// WithBootstrap toggles bootstrap sampling.
func WithBootstrap(bootstrap bool) Option {
	return func(rf *RandomForestClassifier) { rf.Bootstrap = bootstrap }
}

// WithRandomState sets the forest seed.
func WithRandomState(seed int64) Option {
	return func(rf *RandomForestClassifier) { rf.RandomState = seed }
}

// WithNJobs sets the number of goroutines used to fit and predict.
func WithNJobs(n int) Option {
	return func(rf *RandomForestClassifier) { rf.NJobs = n }
}

// WithLogger sets the logger.
func WithLogger(l log.Logger) Option {
	return func(rf *RandomForestClassifier) { rf.logger = l }
}

func (rf *RandomForestClassifier) getLogger() log.Logger {
	if rf.logger == nil {
		rf.logger = log.GetLoggerWithName("ensemble.forest")
	}
	return rf.logger
}

// Fit はフォレストを学習する。
func (rf *RandomForestClassifier) Fit(X mat.Matrix, y []string) error {
	start := time.Now()
	nSamples, nFeatures := X.Dims()
	if nSamples != len(y) {
		return errors.NewDimensionError(modelName+".Fit", nSamples, len(y), 0)
	}
	if nSamples == 0 || nFeatures == 0 {
		return errors.Wrap(errors.ErrEmptyData, modelName+".Fit")
	}
	if rf.NEstimators < 1 {
		return errors.NewValidationError("n_estimators", "must be at least 1", rf.NEstimators)
	}
	if rf.State == nil {
		rf.State = model.NewStateManager()
	}
	// 再学習が失敗した後は未学習として扱う
	rf.State.Reset()

	classes, yIdx := tree.EncodeLabels(y)

	// シードは木ごとに先に引いておく
	rng := rand.New(rand.NewSource(rf.RandomState))
	seeds := make([]int64, rf.NEstimators)
	for i := range seeds {
		seeds[i] = rng.Int63()
	}

	estimators := make([]*tree.DecisionTreeClassifier, rf.NEstimators)
	err := parallel.ForEach(rf.NEstimators, parallel.Workers(rf.NJobs), func(i int) error {
		treeRng := rand.New(rand.NewSource(seeds[i]))
		samples := make([]int, nSamples)
		for j := range samples {
			if rf.Bootstrap {
				samples[j] = treeRng.Intn(nSamples)
			} else {
				samples[j] = j
			}
		}

		dt := tree.NewDecisionTreeClassifier(
			tree.WithCriterion(rf.Criterion),
			tree.WithMaxDepth(rf.MaxDepth),
			tree.WithMinSamplesSplit(rf.MinSamplesSplit),
			tree.WithMinSamplesLeaf(rf.MinSamplesLeaf),
			tree.WithMaxFeatures(rf.MaxFeatures),
			tree.WithDTRandomState(treeRng.Int63()),
		)
		if err := dt.FitSamples(X, yIdx, classes, samples); err != nil {
			return errors.Wrapf(err, "tree %d", i)
		}
		estimators[i] = dt
		return nil
	})
	if err != nil {
		return err
	}

	rf.Estimators = estimators
	rf.ClassNames = classes
	rf.NFeatures = nFeatures
	rf.Importances = meanImportances(estimators, nFeatures)
	rf.State.SetDimensions(nFeatures, nSamples)
	rf.State.SetFitted()

	rf.getLogger().Info("Fitted forest",
		log.ModelNameKey, modelName,
		log.OperationKey, log.OperationFit,
		log.SamplesKey, nSamples,
		log.FeaturesKey, nFeatures,
		log.ClassesKey, len(classes),
		log.RandomSeedKey, rf.RandomState,
		log.HyperParamsKey, rf.GetParams(),
		log.DurationMsKey, time.Since(start).Milliseconds(),
	)
	return nil
}

func meanImportances(estimators []*tree.DecisionTreeClassifier, nFeatures int) []float64 {
	out := make([]float64, nFeatures)
	for _, dt := range estimators {
		for j, v := range dt.GetFeatureImportances() {
			out[j] += v
		}
	}
	total := 0.0
	for _, v := range out {
		total += v
	}
	if total > 0 {
		for j := range out {
			out[j] /= total
		}
	}
	return out
}

func (rf *RandomForestClassifier) checkPredict(X mat.Matrix, method string) error {
	if rf.State == nil || len(rf.Estimators) == 0 {
		return errors.NewNotFittedError(modelName, method)
	}
	if err := rf.State.RequireFitted(modelName, method); err != nil {
		return err
	}
	_, cols := X.Dims()
	return rf.State.RequireFeatures(modelName+"."+method, cols)
}

// PredictProba returns the class probabilities averaged over the trees,
// columns in Classes() order.
func (rf *RandomForestClassifier) PredictProba(X mat.Matrix) (*mat.Dense, error) {
	if err := rf.checkPredict(X, "PredictProba"); err != nil {
		return nil, err
	}

	perTree := make([]*mat.Dense, len(rf.Estimators))
	err := parallel.ForEach(len(rf.Estimators), parallel.Workers(rf.NJobs), func(i int) error {
		p, err := rf.Estimators[i].PredictProba(X)
		if err != nil {
			return errors.Wrapf(err, "tree %d", i)
		}
		perTree[i] = p
		return nil
	})
	if err != nil {
		return nil, err
	}

	// 木の順に足し込むので浮動小数点の結果も並列度に依存しない
	nSamples, _ := X.Dims()
	proba := mat.NewDense(nSamples, len(rf.ClassNames), nil)
	for _, p := range perTree {
		proba.Add(proba, p)
	}
	proba.Scale(1/float64(len(perTree)), proba)
	return proba, nil
}

// Predict returns the class with the highest mean probability. Ties go to
// the class that sorts first.
func (rf *RandomForestClassifier) Predict(X mat.Matrix) ([]string, error) {
	proba, err := rf.PredictProba(X)
	if err != nil {
		return nil, err
	}
	rows, cols := proba.Dims()
	out := make([]string, rows)
	for i := 0; i < rows; i++ {
		best := 0
		for j := 1; j < cols; j++ {
			if proba.At(i, j) > proba.At(i, best) {
				best = j
			}
		}
		out[i] = rf.ClassNames[best]
	}
	return out, nil
}

// Classes returns the class names in sorted order.
func (rf *RandomForestClassifier) Classes() []string {
	return append([]string(nil), rf.ClassNames...)
}

// FeatureImportances returns the mean impurity decrease of every feature,
// normalised to sum to one.
func (rf *RandomForestClassifier) FeatureImportances() []float64 {
	return append([]float64(nil), rf.Importances...)
}

// Score returns the mean accuracy on X and y.
func (rf *RandomForestClassifier) Score(X mat.Matrix, y []string) (float64, error) {
	pred, err := rf.Predict(X)
	if err != nil {
		return 0, err
	}
	if len(pred) != len(y) {
		return 0, errors.NewDimensionError(modelName+".Score", len(pred), len(y), 0)
	}
	correct := 0
	for i := range y {
		if pred[i] == y[i] {
			correct++
		}
	}
	return float64(correct) / float64(len(y)), nil
}

// GetParams returns the hyperparameters.
func (rf *RandomForestClassifier) GetParams() map[string]interface{} {
	return map[string]interface{}{
		"n_estimators":      rf.NEstimators,
		"criterion":         rf.Criterion,
		"max_depth":         rf.MaxDepth,
		"min_samples_split": rf.MinSamplesSplit,
		"min_samples_leaf":  rf.MinSamplesLeaf,
		"max_features":      rf.MaxFeatures,
		"bootstrap":         rf.Bootstrap,
		"random_state":      rf.RandomState,
		"n_jobs":            rf.NJobs,
	}
}

// String implements fmt.Stringer.
func (rf *RandomForestClassifier) String() string {
	return fmt.Sprintf("RandomForestClassifier(n_estimators=%d, criterion=%s, max_features=%s, random_state=%d)",
		rf.NEstimators, rf.Criterion, rf.MaxFeatures, rf.RandomState)
}
