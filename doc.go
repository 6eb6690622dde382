// Package thyroidml trains a binary thyroid-disease classifier from the
// hypothyroid clinical dataset.
//
// The work is a single batch run over an in-memory table: the CSV is loaded
// and validated, sparse columns are dropped and the rest imputed and encoded,
// the diagnosis is collapsed to "no thyroid" / "thyroid", the minority class
// is randomly oversampled, the rows are split 80/20, the top K features are
// chosen by ANOVA F-test on the training rows only, a random forest is
// trained and evaluated, and the model, a fitted StandardScaler and a JSON
// manifest are persisted.
//
// # Quick Start
//
//	cfg, err := config.Load()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	res, err := pipeline.Run(ctx, cfg)
//	if err != nil {
//	    log.Fatal(err) // an errors.StageError naming the failed stage
//	}
//	fmt.Print(res.Format())
//
// The thyroid command does the same from the environment:
//
//	THYROID_DATA_PATH=hypothyroid.csv THYROID_STORE_BACKEND=bolt \
//	THYROID_STORE_PATH=artifacts.db go run ./cmd/thyroid
//
// # Packages
//
//   - dataset: column-oriented Table, CSV loading, value counts, numeric summaries
//   - thyroid: column schema, Cleaner and Labeler
//   - imblearn/over_sampling: RandomOverSampler
//   - sklearn/model_selection: TrainTestSplit
//   - sklearn/feature_selection: FClassif and SelectKBest
//   - sklearn/tree, sklearn/ensemble: DecisionTreeClassifier and RandomForestClassifier
//   - preprocessing: StandardScaler
//   - metrics: accuracy, confusion matrix, classification report, ROC AUC
//   - artifact: file and bbolt artifact stores
//   - telemetry: Prometheus metrics written to a textfile
//   - config: defaults, YAML file and THYROID_* variables
//   - pipeline: the stage driver and its report
//   - core/model, core/parallel: estimator interfaces, state, gob persistence, workers
//   - pkg/errors, pkg/log: typed errors on cockroachdb/errors and zerolog logging
//
// # Reproducibility
//
// The oversampler, the split and the forest each take an explicit seed
// (42 by default). Trees are fitted in parallel but every tree draws from
// its own pre-drawn seed, so a run is identical for any number of workers.
package thyroidml
