package pipeline

import (
	"fmt"
	"io"
	"math"
	"strings"
	"time"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/thyroidml/artifact"
	"github.com/YuminosukeSato/thyroidml/dataset"
	"github.com/YuminosukeSato/thyroidml/imblearn/over_sampling"
	"github.com/YuminosukeSato/thyroidml/metrics"
	"github.com/YuminosukeSato/thyroidml/sklearn/feature_selection"
	"github.com/YuminosukeSato/thyroidml/thyroid"
)

// StageTiming is the outcome of one successful stage.
type StageTiming struct {
	Name     string
	Rows     int
	Duration time.Duration
}

// FeatureImportance is the mean impurity decrease of one selected feature.
type FeatureImportance struct {
	Feature    string
	Importance float64
}

// Result collects what a run produced.
type Result struct {
	Stages []StageTiming

	// load
	NullCounts []dataset.NullCount
	Summaries  []dataset.Summary

	// clean, label, balance
	Clean     *thyroid.CleanReport
	Diagnoses []dataset.ValueCount // diagnosis codes before labeling
	Labeled   []over_sampling.ClassCount
	Balanced  []over_sampling.ClassCount

	// split, select, train
	TrainSamples int
	TestSamples  int
	Scores       []feature_selection.FeatureScore
	Selected     []string
	Importances  []FeatureImportance

	// evaluate
	Labels          []string
	Accuracy        float64
	ROCAUC          float64
	ConfusionMatrix *mat.Dense
	Report          string

	// persist
	Manifest  *artifact.Manifest
	Artifacts []string
}

// WriteReport writes the human readable run report to w.
func (r *Result) WriteReport(w io.Writer) error {
	_, err := io.WriteString(w, r.Format())
	return err
}

// Format renders the run report as text.
func (r *Result) Format() string {
	var b strings.Builder
	section := func(title string) {
		if b.Len() > 0 {
			b.WriteByte('\n')
		}
		fmt.Fprintf(&b, "== %s ==\n", title)
	}

	section("Missing values")
	for _, nc := range r.NullCounts {
		if nc.Count > 0 {
			fmt.Fprintf(&b, "  %-20s %6d\n", nc.Column, nc.Count)
		}
	}

	if len(r.Summaries) > 0 {
		section("Continuous features")
		b.WriteString(dataset.FormatSummaries(r.Summaries))
	}

	if r.Clean != nil {
		section("Cleaning")
		fmt.Fprintf(&b, "  rows %d -> %d, threshold %d, duplicates removed %d\n",
			r.Clean.RowsIn, r.Clean.RowsOut, r.Clean.Threshold, r.Clean.DuplicatesRemoved)
		if len(r.Clean.DroppedColumns) > 0 {
			fmt.Fprintf(&b, "  dropped: %s\n", strings.Join(r.Clean.DroppedColumns, ", "))
		}
		for _, imp := range r.Clean.Imputations {
			fmt.Fprintf(&b, "  %-20s %-4s %-12s filled %d\n", imp.Column, imp.Strategy, imp.Value, imp.Filled)
		}
	}

	if len(r.Diagnoses) > 0 {
		section("Diagnoses")
		b.WriteString(dataset.FormatValueCounts(thyroid.TargetColumn, r.Diagnoses))
	}
	section("Classes after labeling")
	writeClassCounts(&b, r.Labeled)
	section("Classes after balancing")
	writeClassCounts(&b, r.Balanced)

	section("Feature scores")
	fmt.Fprintf(&b, "  %-20s %12s %12s\n", "feature", "score", "p-value")
	for _, fs := range r.Scores {
		fmt.Fprintf(&b, "  %-20s %12.4f %12.4g\n", fs.Feature, fs.Score, fs.PValue)
	}
	fmt.Fprintf(&b, "  selected: %s\n", strings.Join(r.Selected, ", "))

	if len(r.Importances) > 0 {
		section("Feature importances")
		for _, fi := range r.Importances {
			fmt.Fprintf(&b, "  %-20s %8.4f\n", fi.Feature, fi.Importance)
		}
	}

	section("Evaluation")
	fmt.Fprintf(&b, "train samples: %d, test samples: %d\n", r.TrainSamples, r.TestSamples)
	fmt.Fprintf(&b, "accuracy: %.4f\n", r.Accuracy)
	if !math.IsNaN(r.ROCAUC) {
		fmt.Fprintf(&b, "roc auc: %.4f\n", r.ROCAUC)
	}
	b.WriteByte('\n')
	b.WriteString(r.Report)
	if r.ConfusionMatrix != nil {
		b.WriteByte('\n')
		b.WriteString(metrics.FormatConfusionMatrix(r.ConfusionMatrix, r.Labels))
	}

	if len(r.Artifacts) > 0 {
		section("Artifacts")
		for _, name := range r.Artifacts {
			fmt.Fprintf(&b, "  %s\n", name)
		}
	}
	return b.String()
}

func writeClassCounts(b *strings.Builder, counts []over_sampling.ClassCount) {
	for _, c := range counts {
		fmt.Fprintf(b, "  %-12s %6d  %6.2f%%\n", c.Class, c.Count, c.Percent)
	}
}
