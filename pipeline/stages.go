package pipeline

import (
	"github.com/YuminosukeSato/thyroidml/artifact"
	"github.com/YuminosukeSato/thyroidml/dataset"
	"github.com/YuminosukeSato/thyroidml/imblearn/over_sampling"
	"github.com/YuminosukeSato/thyroidml/metrics"
	"github.com/YuminosukeSato/thyroidml/pkg/errors"
	"github.com/YuminosukeSato/thyroidml/pkg/log"
	"github.com/YuminosukeSato/thyroidml/preprocessing"
	"github.com/YuminosukeSato/thyroidml/sklearn/ensemble"
	"github.com/YuminosukeSato/thyroidml/sklearn/feature_selection"
	"github.com/YuminosukeSato/thyroidml/sklearn/model_selection"
	"github.com/YuminosukeSato/thyroidml/thyroid"
)

// reportDigits is the precision of the classification report.
const reportDigits = 2

func load(s *state) (int, error) {
	if s.raw == nil {
		t, err := dataset.LoadCSV(s.cfg.DataPath)
		if err != nil {
			return 0, err
		}
		s.raw = t
	}
	s.logger.Info("Loaded table",
		log.SamplesKey, s.raw.NumRows(),
		log.FeaturesKey, s.raw.NumCols(),
	)

	s.result.NullCounts = s.raw.NullCounts()
	for _, nc := range s.result.NullCounts {
		if nc.Count > 0 {
			s.logger.Debug("Missing values", log.ColumnKey, nc.Column, log.NullCountKey, nc.Count)
		}
	}

	var numeric []string
	for _, name := range thyroid.ContinuousColumns {
		if c, err := s.raw.Column(name); err == nil && c.Kind == dataset.Numeric {
			numeric = append(numeric, name)
		}
	}
	summaries, err := dataset.Describe(s.raw, numeric...)
	if err != nil {
		return 0, err
	}
	s.result.Summaries = summaries
	return s.raw.NumRows(), nil
}

func validate(s *state) (int, error) {
	if err := thyroid.DefaultSchema().Validate(s.raw); err != nil {
		return 0, err
	}
	return s.raw.NumRows(), nil
}

func clean(s *state) (int, error) {
	cleaner := thyroid.NewCleaner(
		thyroid.WithMaxMissing(s.cfg.Clean.MaxMissing),
		thyroid.WithLogger(s.logger),
	)
	out, report, err := cleaner.Clean(s.raw)
	if err != nil {
		return 0, err
	}
	s.cleaned = out
	s.result.Clean = report
	return out.NumRows(), nil
}

func label(s *state) (int, error) {
	if col, err := s.cleaned.Column(thyroid.TargetColumn); err == nil {
		s.result.Diagnoses = dataset.ValueCounts(col)
	}

	out, err := thyroid.Label(s.cleaned)
	if err != nil {
		return 0, err
	}
	labels, err := out.Strings(thyroid.TargetColumn)
	if err != nil {
		return 0, err
	}
	s.labeled = out
	s.result.Labeled = s.recordClasses(StageLabel, labels)
	return out.NumRows(), nil
}

func balance(s *state) (int, error) {
	sampler := over_sampling.NewRandomOverSampler(
		over_sampling.WithRandomState(s.cfg.BalanceSeed),
		over_sampling.WithLogger(s.logger),
	)
	out, err := sampler.Resample(s.labeled, thyroid.TargetColumn)
	if err != nil {
		return 0, err
	}
	labels, err := out.Strings(thyroid.TargetColumn)
	if err != nil {
		return 0, err
	}
	s.balanced = out
	s.result.Balanced = s.recordClasses(StageBalance, labels)
	return out.NumRows(), nil
}

func split(s *state) (int, error) {
	s.features = nonTarget(s.balanced, thyroid.TargetColumn)
	X, err := s.balanced.Dense(s.features...)
	if err != nil {
		return 0, err
	}
	y, err := s.balanced.Strings(thyroid.TargetColumn)
	if err != nil {
		return 0, err
	}

	parts, err := model_selection.TrainTestSplit(len(y), s.cfg.Split.TestSize, s.cfg.Split.Seed)
	if err != nil {
		return 0, err
	}
	s.xTrain, s.yTrain = takeRows(X, parts.Train), takeStrings(y, parts.Train)
	s.xTest, s.yTest = takeRows(X, parts.Test), takeStrings(y, parts.Test)
	s.result.TrainSamples = len(parts.Train)
	s.result.TestSamples = len(parts.Test)

	s.logger.Info("Split rows",
		log.StageKey, StageSplit,
		"train_samples", len(parts.Train),
		"test_samples", len(parts.Test),
	)
	return len(parts.Train), nil
}

// selectFeatures scores the training partition only; the test partition is
// projected onto the same columns.
func selectFeatures(s *state) (int, error) {
	sel := feature_selection.NewSelectKBest(s.cfg.Select.K)
	sel.SetLogger(s.logger)
	if err := sel.FitNamed(s.xTrain, s.yTrain, s.features); err != nil {
		return 0, err
	}

	var err error
	if s.xTrainSelected, err = sel.Transform(s.xTrain); err != nil {
		return 0, err
	}
	if s.xTestSelected, err = sel.Transform(s.xTest); err != nil {
		return 0, err
	}
	s.selector = sel
	s.result.Scores = sel.ScoreTable()
	s.result.Selected = sel.Selected()
	s.m.Features.Set(float64(len(s.result.Selected)))
	return len(s.yTrain), nil
}

// train fits the forest and the scaler on the selected training features.
func train(s *state) (int, error) {
	rf := ensemble.NewRandomForestClassifier(forestOptions(s.cfg.Forest, s.logger)...)
	if err := rf.Fit(s.xTrainSelected, s.yTrain); err != nil {
		return 0, err
	}
	scaler := preprocessing.NewStandardScalerDefault()
	if err := scaler.Fit(s.xTrainSelected); err != nil {
		return 0, err
	}
	s.forest, s.scaler = rf, scaler

	imp := rf.FeatureImportances()
	s.result.Importances = make([]FeatureImportance, len(imp))
	for i, v := range imp {
		s.result.Importances[i] = FeatureImportance{Feature: s.result.Selected[i], Importance: v}
	}
	return len(s.yTrain), nil
}

func evaluate(s *state) (int, error) {
	pred, err := s.forest.Predict(s.xTestSelected)
	if err != nil {
		return 0, err
	}
	res := s.result
	if res.Accuracy, err = metrics.Accuracy(s.yTest, pred); err != nil {
		return 0, err
	}
	res.Labels = thyroid.ClassLabels
	if res.ConfusionMatrix, err = metrics.ConfusionMatrix(s.yTest, pred, res.Labels); err != nil {
		return 0, err
	}
	if res.Report, err = metrics.ClassificationReport(s.yTest, pred, res.Labels, reportDigits); err != nil {
		return 0, err
	}

	proba, err := s.forest.PredictProba(s.xTestSelected)
	if err != nil {
		return 0, err
	}
	for j, c := range s.forest.Classes() {
		if c != thyroid.ClassThyroid {
			continue
		}
		scores := make([]float64, len(s.yTest))
		for i := range scores {
			scores[i] = proba.At(i, j)
		}
		if res.ROCAUC, err = metrics.ROCAUC(s.yTest, scores, thyroid.ClassThyroid); err != nil {
			return 0, err
		}
	}

	s.m.Accuracy.Set(res.Accuracy)
	s.logger.Info("Evaluated model",
		log.StageKey, StageEvaluate,
		log.AccuracyKey, res.Accuracy,
		log.SamplesKey, len(s.yTest),
	)
	return len(s.yTest), nil
}

func persist(s *state) (int, error) {
	if s.store == nil {
		store, err := artifact.Open(s.cfg.Store.Backend, s.cfg.Store.Path)
		if err != nil {
			return 0, err
		}
		s.store = store
	}

	if err := s.store.Save(artifact.ModelName, s.forest); err != nil {
		return 0, errors.Wrap(err, "save model")
	}
	if err := s.store.Save(artifact.ScalerName, s.scaler); err != nil {
		return 0, errors.Wrap(err, "save scaler")
	}

	manifest := &artifact.Manifest{
		CreatedAt:        s.now().UTC(),
		SelectedFeatures: s.result.Selected,
		Classes:          s.forest.Classes(),
		RandomState:      s.cfg.Forest.Seed,
		TrainSamples:     s.result.TrainSamples,
		TestSamples:      s.result.TestSamples,
		Accuracy:         s.result.Accuracy,
		ModelParams:      s.forest.GetParams(),
		Artifacts:        []string{artifact.ModelName, artifact.ScalerName},
	}
	if err := s.store.Save(artifact.ManifestName, manifest); err != nil {
		return 0, errors.Wrap(err, "save manifest")
	}
	s.result.Manifest = manifest

	names, err := s.store.List()
	if err != nil {
		return 0, err
	}
	s.result.Artifacts = names
	for _, name := range names {
		s.logger.Info("Saved artifact", log.StageKey, StagePersist, log.ArtifactKey, name)
	}
	return len(names), nil
}
