package tree

import (
	"fmt"
	"math"
	"math/rand"
	"sort"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/thyroidml/core/model"
	"github.com/YuminosukeSato/thyroidml/pkg/errors"
)

var _ model.Classifier = (*DecisionTreeClassifier)(nil)

// TreeNode represents a node in the decision tree
type TreeNode struct {
	IsLeaf       bool      // Whether this is a leaf node
	Feature      int       // Feature index for split (internal nodes)
	Threshold    float64   // Threshold value for split (internal nodes)
	Left         *TreeNode // Left child (values <= threshold)
	Right        *TreeNode // Right child (values > threshold)
	ClassCounts  []int     // Class counts of the samples reaching this node
	PredictClass int       // Majority class index
	Impurity     float64   // Node impurity
	NSamples     int       // Number of samples at this node
	Depth        int       // Depth of this node in the tree
}

// DecisionTreeClassifier implements a CART decision tree for classification.
//
// Fields are exported so a fitted tree can be gob encoded.
type DecisionTreeClassifier struct {
	State *model.StateManager

	// Hyperparameters
	Criterion       string // Splitting criterion: "gini", "entropy"
	MaxDepth        int    // Maximum depth of tree (0 = unlimited)
	MinSamplesSplit int    // Minimum samples to split a node
	MinSamplesLeaf  int    // Minimum samples in a leaf
	MaxFeatures     string // Features considered per split: "sqrt", "log2" or "all"
	RandomState     int64  // Seed for the per-node feature shuffle

	// Tree structure
	Root        *TreeNode
	ClassNames  []string
	NFeatures   int
	Importances []float64
}

// DecisionTreeClassifierOption is a functional option
type DecisionTreeClassifierOption func(*DecisionTreeClassifier)

// NewDecisionTreeClassifier creates a new decision tree classifier
func NewDecisionTreeClassifier(opts ...DecisionTreeClassifierOption) *DecisionTreeClassifier {
	dt := &DecisionTreeClassifier{
		State:           model.NewStateManager(),
		Criterion:       "gini",
		MaxDepth:        0, // Unlimited
		MinSamplesSplit: 2,
		MinSamplesLeaf:  1,
		MaxFeatures:     "all",
		RandomState:     0,
	}

	for _, opt := range opts {
		opt(dt)
	}

	return dt
}

// WithCriterion sets the splitting criterion
func WithCriterion(criterion string) DecisionTreeClassifierOption {
	return func(dt *DecisionTreeClassifier) {
		dt.Criterion = criterion
	}
}

// WithMaxDepth sets the maximum tree depth
func WithMaxDepth(depth int) DecisionTreeClassifierOption {
	return func(dt *DecisionTreeClassifier) {
		dt.MaxDepth = depth
	}
}

// WithMinSamplesSplit sets minimum samples to split
func WithMinSamplesSplit(n int) DecisionTreeClassifierOption {
	return func(dt *DecisionTreeClassifier) {
		dt.MinSamplesSplit = n
	}
}

// WithMinSamplesLeaf sets minimum samples in leaf
func WithMinSamplesLeaf(n int) DecisionTreeClassifierOption {
	return func(dt *DecisionTreeClassifier) {
		dt.MinSamplesLeaf = n
	}
}

// WithMaxFeatures sets the number of features considered at each split
func WithMaxFeatures(maxFeatures string) DecisionTreeClassifierOption {
	return func(dt *DecisionTreeClassifier) {
		dt.MaxFeatures = maxFeatures
	}
}

// WithDTRandomState sets the random seed
func WithDTRandomState(seed int64) DecisionTreeClassifierOption {
	return func(dt *DecisionTreeClassifier) {
		dt.RandomState = seed
	}
}

func (dt *DecisionTreeClassifier) validateParams() error {
	switch dt.Criterion {
	case "gini", "entropy":
	default:
		return errors.NewValidationError("criterion", "must be 'gini' or 'entropy'", dt.Criterion)
	}
	switch dt.MaxFeatures {
	case "sqrt", "log2", "all", "":
	default:
		return errors.NewValidationError("max_features", "must be 'sqrt', 'log2' or 'all'", dt.MaxFeatures)
	}
	if dt.MinSamplesSplit < 2 {
		return errors.NewValidationError("min_samples_split", "must be at least 2", dt.MinSamplesSplit)
	}
	if dt.MinSamplesLeaf < 1 {
		return errors.NewValidationError("min_samples_leaf", "must be at least 1", dt.MinSamplesLeaf)
	}
	if dt.MaxDepth < 0 {
		return errors.NewValidationError("max_depth", "must be non-negative", dt.MaxDepth)
	}
	return nil
}

// ResolveMaxFeatures returns the number of features considered per split
// for a max_features setting and nFeatures columns.
func ResolveMaxFeatures(maxFeatures string, nFeatures int) int {
	var k int
	switch maxFeatures {
	case "sqrt":
		k = int(math.Sqrt(float64(nFeatures)))
	case "log2":
		k = int(math.Log2(float64(nFeatures)))
	default:
		k = nFeatures
	}
	if k < 1 {
		k = 1
	}
	return k
}

// Fit trains the decision tree on every row of X
func (dt *DecisionTreeClassifier) Fit(X mat.Matrix, y []string) error {
	nSamples, _ := X.Dims()
	if nSamples != len(y) {
		return errors.NewDimensionError("DecisionTreeClassifier.Fit", nSamples, len(y), 0)
	}
	classes, yIdx := EncodeLabels(y)

	samples := make([]int, nSamples)
	for i := range samples {
		samples[i] = i
	}
	return dt.FitSamples(X, yIdx, classes, samples)
}

// EncodeLabels returns the sorted distinct labels and the index of each
// label within them.
func EncodeLabels(y []string) (classes []string, encoded []int) {
	seen := make(map[string]bool)
	for _, label := range y {
		if !seen[label] {
			seen[label] = true
			classes = append(classes, label)
		}
	}
	sort.Strings(classes)

	index := make(map[string]int, len(classes))
	for i, c := range classes {
		index[c] = i
	}
	encoded = make([]int, len(y))
	for i, label := range y {
		encoded[i] = index[label]
	}
	return classes, encoded
}

// FitSamples trains the tree on the rows of X listed in samples. Rows may
// repeat, which is how bootstrap samples are passed in. y holds the class
// index of every row of X, and classes the class names those indices refer to.
func (dt *DecisionTreeClassifier) FitSamples(X mat.Matrix, y []int, classes []string, samples []int) error {
	if err := dt.validateParams(); err != nil {
		return err
	}
	nRows, nFeatures := X.Dims()
	if nRows != len(y) {
		return errors.NewDimensionError("DecisionTreeClassifier.Fit", nRows, len(y), 0)
	}
	if len(samples) == 0 || nFeatures == 0 {
		return errors.Wrap(errors.ErrEmptyData, "DecisionTreeClassifier.Fit")
	}
	if dt.State == nil {
		dt.State = model.NewStateManager()
	}

	b := &builder{
		dt:          dt,
		X:           mat.DenseCopyOf(X),
		y:           y,
		nClasses:    len(classes),
		maxFeatures: ResolveMaxFeatures(dt.MaxFeatures, nFeatures),
		rng:         rand.New(rand.NewSource(dt.RandomState)),
		importances: make([]float64, nFeatures),
	}

	dt.ClassNames = append([]string(nil), classes...)
	dt.NFeatures = nFeatures
	dt.Root = b.build(append([]int(nil), samples...), 0)
	dt.Importances = normalize(b.importances)

	dt.State.SetDimensions(nFeatures, len(samples))
	dt.State.SetFitted()
	return nil
}

type builder struct {
	dt          *DecisionTreeClassifier
	X           *mat.Dense
	y           []int
	nClasses    int
	maxFeatures int
	rng         *rand.Rand
	importances []float64
}

// build recursively builds the tree over the given sample indices
func (b *builder) build(samples []int, depth int) *TreeNode {
	counts := make([]int, b.nClasses)
	for _, s := range samples {
		counts[b.y[s]]++
	}

	predictClass := 0
	for i, c := range counts {
		if c > counts[predictClass] {
			predictClass = i
		}
	}

	impurity := b.dt.impurity(counts, len(samples))
	node := &TreeNode{
		ClassCounts:  counts,
		PredictClass: predictClass,
		Impurity:     impurity,
		NSamples:     len(samples),
		Depth:        depth,
	}

	if b.shouldStop(len(samples), impurity, depth) {
		node.IsLeaf = true
		return node
	}

	feature, threshold, childImpurity, ok := b.findBestSplit(samples, counts)
	if !ok {
		node.IsLeaf = true
		return node
	}

	left := make([]int, 0, len(samples))
	right := make([]int, 0, len(samples))
	for _, s := range samples {
		if b.X.At(s, feature) <= threshold {
			left = append(left, s)
		} else {
			right = append(right, s)
		}
	}

	node.Feature = feature
	node.Threshold = threshold
	b.importances[feature] += float64(len(samples))*impurity - childImpurity

	node.Left = b.build(left, depth+1)
	node.Right = b.build(right, depth+1)
	return node
}

// shouldStop checks stopping criteria
func (b *builder) shouldStop(nSamples int, impurity float64, depth int) bool {
	if b.dt.MaxDepth > 0 && depth >= b.dt.MaxDepth {
		return true
	}
	if nSamples < b.dt.MinSamplesSplit || nSamples < 2*b.dt.MinSamplesLeaf {
		return true
	}
	return impurity == 0.0
}

// findBestSplit visits features in random order until maxFeatures
// non-constant ones have been evaluated, and returns the split with the
// lowest weighted child impurity (sum of n_child * impurity_child).
func (b *builder) findBestSplit(samples []int, parentCounts []int) (feature int, threshold, childImpurity float64, ok bool) {
	_, nFeatures := b.X.Dims()
	order := b.rng.Perm(nFeatures)

	best := math.Inf(1)
	visited := 0
	sorted := make([]int, len(samples))
	values := make([]float64, len(samples))
	leftCounts := make([]int, b.nClasses)
	rightCounts := make([]int, b.nClasses)

	for _, f := range order {
		if visited >= b.maxFeatures {
			break
		}

		copy(sorted, samples)
		sort.SliceStable(sorted, func(i, j int) bool {
			return b.X.At(sorted[i], f) < b.X.At(sorted[j], f)
		})
		for i, s := range sorted {
			values[i] = b.X.At(s, f)
		}
		if values[0] == values[len(values)-1] {
			continue // constant within this node
		}
		visited++

		for c := range leftCounts {
			leftCounts[c] = 0
		}
		copy(rightCounts, parentCounts)

		n := len(sorted)
		for i := 0; i < n-1; i++ {
			cls := b.y[sorted[i]]
			leftCounts[cls]++
			rightCounts[cls]--

			if values[i] == values[i+1] {
				continue
			}
			nLeft, nRight := i+1, n-i-1
			if nLeft < b.dt.MinSamplesLeaf || nRight < b.dt.MinSamplesLeaf {
				continue
			}

			weighted := float64(nLeft)*b.dt.impurity(leftCounts, nLeft) +
				float64(nRight)*b.dt.impurity(rightCounts, nRight)
			if weighted < best {
				best = weighted
				feature = f
				threshold = (values[i] + values[i+1]) / 2
				if threshold == values[i+1] {
					threshold = values[i]
				}
				ok = true
			}
		}
	}
	return feature, threshold, best, ok
}

// impurity calculates node impurity using Gini or Entropy
func (dt *DecisionTreeClassifier) impurity(classCounts []int, total int) float64 {
	if total == 0 {
		return 0.0
	}

	impurity := 0.0
	switch dt.Criterion {
	case "entropy":
		// Entropy: -sum(p_i * log2(p_i))
		for _, count := range classCounts {
			if count > 0 {
				p := float64(count) / float64(total)
				impurity -= p * math.Log2(p)
			}
		}
	default:
		// Gini impurity: 1 - sum(p_i^2)
		sumSquared := 0.0
		for _, count := range classCounts {
			if count > 0 {
				p := float64(count) / float64(total)
				sumSquared += p * p
			}
		}
		impurity = 1.0 - sumSquared
	}
	return impurity
}

func normalize(v []float64) []float64 {
	sum := 0.0
	for _, x := range v {
		sum += x
	}
	out := make([]float64, len(v))
	if sum > 0 {
		for i, x := range v {
			out[i] = x / sum
		}
	}
	return out
}

func (dt *DecisionTreeClassifier) checkPredict(X mat.Matrix, method string) error {
	if dt.State == nil || dt.Root == nil {
		return errors.NewNotFittedError("DecisionTreeClassifier", method)
	}
	if err := dt.State.RequireFitted("DecisionTreeClassifier", method); err != nil {
		return err
	}
	_, cols := X.Dims()
	return dt.State.RequireFeatures("DecisionTreeClassifier."+method, cols)
}

// leaf walks row i of X down to its leaf
func (dt *DecisionTreeClassifier) leaf(X mat.Matrix, i int) *TreeNode {
	node := dt.Root
	for !node.IsLeaf {
		if X.At(i, node.Feature) <= node.Threshold {
			node = node.Left
		} else {
			node = node.Right
		}
	}
	return node
}

// Predict makes predictions for input data
func (dt *DecisionTreeClassifier) Predict(X mat.Matrix) ([]string, error) {
	if err := dt.checkPredict(X, "Predict"); err != nil {
		return nil, err
	}

	nSamples, _ := X.Dims()
	predictions := make([]string, nSamples)
	for i := 0; i < nSamples; i++ {
		predictions[i] = dt.ClassNames[dt.leaf(X, i).PredictClass]
	}
	return predictions, nil
}

// PredictProba returns probability estimates for each class, columns in
// Classes() order
func (dt *DecisionTreeClassifier) PredictProba(X mat.Matrix) (*mat.Dense, error) {
	if err := dt.checkPredict(X, "PredictProba"); err != nil {
		return nil, err
	}

	nSamples, _ := X.Dims()
	probas := mat.NewDense(nSamples, len(dt.ClassNames), nil)
	for i := 0; i < nSamples; i++ {
		dt.addLeafProba(X, i, probas.RawRowView(i))
	}
	return probas, nil
}

// addLeafProba adds the class distribution of row i's leaf to dst.
func (dt *DecisionTreeClassifier) addLeafProba(X mat.Matrix, i int, dst []float64) {
	node := dt.leaf(X, i)
	for j, count := range node.ClassCounts {
		if node.NSamples > 0 {
			dst[j] += float64(count) / float64(node.NSamples)
		}
	}
}

// Classes returns the class names in sorted order
func (dt *DecisionTreeClassifier) Classes() []string {
	return append([]string(nil), dt.ClassNames...)
}

// Score returns the mean accuracy on the given test data
func (dt *DecisionTreeClassifier) Score(X mat.Matrix, y []string) (float64, error) {
	predictions, err := dt.Predict(X)
	if err != nil {
		return 0, err
	}
	if len(predictions) != len(y) {
		return 0, errors.NewDimensionError("DecisionTreeClassifier.Score", len(predictions), len(y), 0)
	}

	correct := 0
	for i := range y {
		if predictions[i] == y[i] {
			correct++
		}
	}
	return float64(correct) / float64(len(y)), nil
}

// GetParams returns the model hyperparameters
func (dt *DecisionTreeClassifier) GetParams() map[string]interface{} {
	return map[string]interface{}{
		"criterion":         dt.Criterion,
		"max_depth":         dt.MaxDepth,
		"min_samples_split": dt.MinSamplesSplit,
		"min_samples_leaf":  dt.MinSamplesLeaf,
		"max_features":      dt.MaxFeatures,
		"random_state":      dt.RandomState,
	}
}

// SetParams sets the model hyperparameters
func (dt *DecisionTreeClassifier) SetParams(params map[string]interface{}) error {
	for key, value := range params {
		ok := true
		switch key {
		case "criterion", "max_features":
			v, isStr := value.(string)
			ok = isStr
			if ok && key == "criterion" {
				dt.Criterion = v
			} else if ok {
				dt.MaxFeatures = v
			}
		case "max_depth", "min_samples_split", "min_samples_leaf":
			v, isInt := value.(int)
			ok = isInt
			if ok {
				switch key {
				case "max_depth":
					dt.MaxDepth = v
				case "min_samples_split":
					dt.MinSamplesSplit = v
				default:
					dt.MinSamplesLeaf = v
				}
			}
		case "random_state":
			v, isInt64 := value.(int64)
			ok = isInt64
			if ok {
				dt.RandomState = v
			}
		default:
			return fmt.Errorf("unknown parameter: %s", key)
		}
		if !ok {
			return errors.NewValidationError(key, "unexpected type", value)
		}
	}
	return nil
}

// GetFeatureImportances returns feature importance scores
func (dt *DecisionTreeClassifier) GetFeatureImportances() []float64 {
	if dt.Importances == nil {
		return nil
	}
	return append([]float64(nil), dt.Importances...)
}

// GetDepth returns the depth of the tree
func (dt *DecisionTreeClassifier) GetDepth() int {
	if dt.Root == nil {
		return 0
	}
	return maxDepth(dt.Root)
}

func maxDepth(node *TreeNode) int {
	if node.IsLeaf {
		return node.Depth
	}
	l, r := maxDepth(node.Left), maxDepth(node.Right)
	if l > r {
		return l
	}
	return r
}

// GetNLeaves returns the number of leaf nodes
func (dt *DecisionTreeClassifier) GetNLeaves() int {
	if dt.Root == nil {
		return 0
	}
	return countLeaves(dt.Root)
}

func countLeaves(node *TreeNode) int {
	if node == nil {
		return 0
	}
	if node.IsLeaf {
		return 1
	}
	return countLeaves(node.Left) + countLeaves(node.Right)
}
