// Standard attribute keys for pipeline logging.
//
// The keys follow a hierarchical naming convention ("data.samples",
// "pipeline.stage") so the JSON records can be filtered per stage.

package log

// Model and Operation Context
const (
	// ModelNameKey identifies the type of estimator.
	// Examples: "RandomForestClassifier", "StandardScaler"
	ModelNameKey = "model.name"

	// OperationKey specifies the operation being performed.
	// Standard values: "fit", "predict", "fit_resample"
	OperationKey = "ml.operation"

	// ComponentKey identifies which component is logging.
	ComponentKey = "ml.component"
)

// Pipeline Context
const (
	// StageKey names the pipeline stage ("load", "clean", "label", ...).
	StageKey = "pipeline.stage"

	// ColumnKey names the table column a record refers to.
	ColumnKey = "data.column"

	// NullCountKey records the number of missing cells in a column.
	NullCountKey = "data.null_count"

	// ThresholdKey records a threshold applied by a stage.
	ThresholdKey = "pipeline.threshold"

	// ClassKey names a target class.
	ClassKey = "data.class"

	// CountKey records a generic count (rows, duplicates, class size).
	CountKey = "data.count"

	// ArtifactKey names a persisted artifact.
	ArtifactKey = "artifact.name"
)

// Data Shape and Characteristics
const (
	// SamplesKey indicates the number of samples (rows).
	SamplesKey = "data.samples"

	// FeaturesKey indicates the number of features (columns).
	FeaturesKey = "data.features"

	// ClassesKey indicates the number of distinct target classes.
	ClassesKey = "data.classes"
)

// Performance Metrics
const (
	// DurationMsKey records the execution time of an operation in milliseconds.
	DurationMsKey = "perf.duration_ms"

	// AccuracyKey records classification accuracy in [0, 1].
	AccuracyKey = "metrics.accuracy"

	// ScoreKey records the lowest univariate score a selector kept.
	ScoreKey = "metrics.score"
)

// Error and Warning Context
const (
	// ErrorCodeKey provides a structured error code.
	ErrorCodeKey = "error.code"
)

// Configuration
const (
	// RandomSeedKey records the random seed for reproducibility.
	RandomSeedKey = "config.random_seed"

	// HyperParamsKey contains estimator hyperparameters as a map.
	HyperParamsKey = "model.hyperparams"
)

// Standard attribute values.
const (
	OperationFit         = "fit"
	OperationPredict     = "predict"
	OperationFitResample = "fit_resample"

	ErrorEmptyData = "EMPTY_DATA"
)
