package thyroid

import (
	"github.com/YuminosukeSato/thyroidml/dataset"
	"github.com/YuminosukeSato/thyroidml/pkg/errors"
)

// Class names produced by the Labeler.
const (
	ClassNoThyroid = "no thyroid"
	ClassThyroid   = "thyroid"
)

// ClassLabels is the fixed label order used for reports and the confusion matrix.
var ClassLabels = []string{ClassNoThyroid, ClassThyroid}

// Classify maps a diagnosis code to its class. "-" means no condition was
// diagnosed; every other code, including the empty string, is a thyroid
// condition.
func Classify(code string) string {
	if code == "-" {
		return ClassNoThyroid
	}
	return ClassThyroid
}

// Label returns a table whose target column holds class names instead of
// diagnosis codes. Null target cells are classified as "thyroid".
func Label(t *dataset.Table) (*dataset.Table, error) {
	col, err := t.Column(TargetColumn)
	if err != nil {
		return nil, errors.NewSchemaError("label", TargetColumn, "required column is missing")
	}

	classes := make([]string, col.Len())
	for i := range classes {
		if col.Null[i] {
			classes[i] = Classify("")
			continue
		}
		classes[i] = Classify(col.Cell(i))
	}
	return t.WithColumn(dataset.NewCategorical(TargetColumn, classes, nil))
}
