// Package metrics provides classification metrics over string labels.
package metrics

import (
	"fmt"
	"sort"
	"strings"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/thyroidml/pkg/errors"
)

func checkLabels(op string, yTrue, yPred []string) error {
	if len(yTrue) == 0 {
		return errors.NewValueError(op, "input labels cannot be empty")
	}
	if len(yTrue) != len(yPred) {
		return errors.NewDimensionError(op, len(yTrue), len(yPred), 0)
	}
	return nil
}

// Accuracy returns the fraction of positions where yPred equals yTrue.
//
// Example:
//
//	acc, err := metrics.Accuracy([]string{"a", "b"}, []string{"a", "a"})
//	// acc == 0.5
func Accuracy(yTrue, yPred []string) (float64, error) {
	if err := checkLabels("Accuracy", yTrue, yPred); err != nil {
		return 0, err
	}
	correct := 0
	for i := range yTrue {
		if yTrue[i] == yPred[i] {
			correct++
		}
	}
	return float64(correct) / float64(len(yTrue)), nil
}

// UniqueLabels returns the sorted union of the labels in ys.
func UniqueLabels(ys ...[]string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, y := range ys {
		for _, label := range y {
			if !seen[label] {
				seen[label] = true
				out = append(out, label)
			}
		}
	}
	sort.Strings(out)
	return out
}

// ConfusionMatrix counts samples by true label (rows) and predicted label
// (columns), both in the order of labels. A nil labels uses the sorted
// union of yTrue and yPred. Samples whose labels are not listed are ignored.
func ConfusionMatrix(yTrue, yPred, labels []string) (*mat.Dense, error) {
	if err := checkLabels("ConfusionMatrix", yTrue, yPred); err != nil {
		return nil, err
	}
	if labels == nil {
		labels = UniqueLabels(yTrue, yPred)
	}
	if len(labels) == 0 {
		return nil, errors.NewValueError("ConfusionMatrix", "labels cannot be empty")
	}
	index := make(map[string]int, len(labels))
	for i, l := range labels {
		if _, dup := index[l]; dup {
			return nil, errors.NewValidationError("labels", "must be unique", l)
		}
		index[l] = i
	}

	cm := mat.NewDense(len(labels), len(labels), nil)
	for k := range yTrue {
		i, okTrue := index[yTrue[k]]
		j, okPred := index[yPred[k]]
		if okTrue && okPred {
			cm.Set(i, j, cm.At(i, j)+1)
		}
	}
	return cm, nil
}

// FormatConfusionMatrix renders cm with its labels as row and column headers.
func FormatConfusionMatrix(cm mat.Matrix, labels []string) string {
	width := len("true\\pred")
	for _, l := range labels {
		if len(l) > width {
			width = len(l)
		}
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%-*s", width, "true\\pred")
	for _, l := range labels {
		fmt.Fprintf(&b, " %*s", width, l)
	}
	b.WriteByte('\n')
	for i, l := range labels {
		fmt.Fprintf(&b, "%-*s", width, l)
		for j := range labels {
			fmt.Fprintf(&b, " %*d", width, int(cm.At(i, j)))
		}
		b.WriteByte('\n')
	}
	return b.String()
}

// ClassScores holds per-label precision, recall, F1 and support, in the
// order of Labels.
type ClassScores struct {
	Labels    []string
	Precision []float64
	Recall    []float64
	F1        []float64
	Support   []int
}

// PrecisionRecallFscoreSupport computes per-label scores. A precision or
// recall whose denominator is zero is set to 0 and reported through
// errors.Warn as an UndefinedMetricWarning.
func PrecisionRecallFscoreSupport(yTrue, yPred, labels []string) (*ClassScores, error) {
	if labels == nil {
		labels = UniqueLabels(yTrue, yPred)
	}
	cm, err := ConfusionMatrix(yTrue, yPred, labels)
	if err != nil {
		return nil, err
	}

	n := len(labels)
	s := &ClassScores{
		Labels:    append([]string(nil), labels...),
		Precision: make([]float64, n),
		Recall:    make([]float64, n),
		F1:        make([]float64, n),
		Support:   make([]int, n),
	}
	var noPred, noTrue []string
	for i := 0; i < n; i++ {
		tp := cm.At(i, i)
		predicted := mat.Sum(cm.ColView(i))
		actual := mat.Sum(cm.RowView(i))
		s.Support[i] = int(actual)

		if predicted > 0 {
			s.Precision[i] = tp / predicted
		} else {
			noPred = append(noPred, labels[i])
		}
		if actual > 0 {
			s.Recall[i] = tp / actual
		} else {
			noTrue = append(noTrue, labels[i])
		}
		if p, r := s.Precision[i], s.Recall[i]; p+r > 0 {
			s.F1[i] = 2 * p * r / (p + r)
		}
	}

	if len(noPred) > 0 {
		errors.Warn(errors.NewUndefinedMetricWarning("precision",
			fmt.Sprintf("no predicted samples for labels %v", noPred), 0))
	}
	if len(noTrue) > 0 {
		errors.Warn(errors.NewUndefinedMetricWarning("recall",
			fmt.Sprintf("no true samples for labels %v", noTrue), 0))
	}
	return s, nil
}

// Averages returns the unweighted (macro) and support-weighted means of
// precision, recall and F1.
func (s *ClassScores) Averages() (macro, weighted [3]float64) {
	n := len(s.Labels)
	total := 0
	for _, sup := range s.Support {
		total += sup
	}
	for i := 0; i < n; i++ {
		row := [3]float64{s.Precision[i], s.Recall[i], s.F1[i]}
		for k := range row {
			macro[k] += row[k] / float64(n)
			weighted[k] += errors.SafeDivide(row[k]*float64(s.Support[i]), float64(total))
		}
	}
	return macro, weighted
}

// ClassificationReport renders per-label precision, recall, F1 and support
// followed by accuracy, macro and weighted averages, laid out the way
// scikit-learn's classification_report prints them.
func ClassificationReport(yTrue, yPred, labels []string, digits int) (string, error) {
	scores, err := PrecisionRecallFscoreSupport(yTrue, yPred, labels)
	if err != nil {
		return "", err
	}
	acc, err := Accuracy(yTrue, yPred)
	if err != nil {
		return "", err
	}
	if digits < 0 {
		return "", errors.NewValidationError("digits", "must be non-negative", digits)
	}

	const lastHeading = "weighted avg"
	width := len(lastHeading)
	for _, l := range scores.Labels {
		if len(l) > width {
			width = len(l)
		}
	}
	if digits > width {
		width = digits
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%*s ", width, "")
	for _, h := range []string{"precision", "recall", "f1-score", "support"} {
		fmt.Fprintf(&b, " %9s", h)
	}
	b.WriteString("\n\n")

	row := func(name string, v [3]float64, support int) {
		fmt.Fprintf(&b, "%*s ", width, name)
		for _, x := range v {
			fmt.Fprintf(&b, " %9.*f", digits, x)
		}
		fmt.Fprintf(&b, " %9d\n", support)
	}

	total := 0
	for i, l := range scores.Labels {
		row(l, [3]float64{scores.Precision[i], scores.Recall[i], scores.F1[i]}, scores.Support[i])
		total += scores.Support[i]
	}
	b.WriteByte('\n')

	fmt.Fprintf(&b, "%*s  %9s %9s %9.*f %9d\n", width, "accuracy", "", "", digits, acc, total)
	macro, weighted := scores.Averages()
	row("macro avg", macro, total)
	row(lastHeading, weighted, total)
	return b.String(), nil
}
