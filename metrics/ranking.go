package metrics

import (
	"sort"

	"github.com/YuminosukeSato/thyroidml/pkg/errors"
)

// ROCAUC returns the area under the ROC curve of scores for the positive
// label. Samples with equal scores form a single step of the curve.
//
// When yTrue holds only one class the AUC is undefined; 0.5 is returned and
// an UndefinedMetricWarning is raised.
//
// Example:
//
//	auc, err := metrics.ROCAUC([]string{"n", "n", "p", "p"}, []float64{0.1, 0.4, 0.35, 0.8}, "p")
//	// auc == 0.75
func ROCAUC(yTrue []string, scores []float64, positive string) (float64, error) {
	n := len(yTrue)
	if n == 0 {
		return 0, errors.NewValueError("ROCAUC", "input labels cannot be empty")
	}
	if n != len(scores) {
		return 0, errors.NewDimensionError("ROCAUC", n, len(scores), 0)
	}

	order := make([]int, n)
	var totalPos, totalNeg float64
	for i := range order {
		order[i] = i
		if yTrue[i] == positive {
			totalPos++
		} else {
			totalNeg++
		}
	}
	if totalPos == 0 || totalNeg == 0 {
		errors.Warn(errors.NewUndefinedMetricWarning("roc_auc", "only one class present in y_true", 0.5))
		return 0.5, nil
	}

	// スコアの降順
	sort.SliceStable(order, func(a, b int) bool {
		return scores[order[a]] > scores[order[b]]
	})

	// 台形則で面積を積み上げる
	auc := 0.0
	var tp, fp, prevTPR, prevFPR float64
	for k := 0; k < n; {
		s := scores[order[k]]
		for ; k < n && scores[order[k]] == s; k++ {
			if yTrue[order[k]] == positive {
				tp++
			} else {
				fp++
			}
		}
		tpr, fpr := tp/totalPos, fp/totalNeg
		auc += (fpr - prevFPR) * (tpr + prevTPR) / 2
		prevTPR, prevFPR = tpr, fpr
	}
	return auc, nil
}
