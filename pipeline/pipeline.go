// Package pipeline runs the thyroid stages in order: load, validate, clean,
// label, balance, split, select, train, evaluate and persist.
//
// Each stage reads the output of the previous ones and produces a new value;
// no stage mutates its input. A failing stage stops the run and its error is
// returned wrapped in an errors.StageError naming the stage.
package pipeline

import (
	"context"
	"time"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/thyroidml/artifact"
	"github.com/YuminosukeSato/thyroidml/config"
	"github.com/YuminosukeSato/thyroidml/dataset"
	"github.com/YuminosukeSato/thyroidml/imblearn/over_sampling"
	"github.com/YuminosukeSato/thyroidml/pkg/errors"
	"github.com/YuminosukeSato/thyroidml/pkg/log"
	"github.com/YuminosukeSato/thyroidml/preprocessing"
	"github.com/YuminosukeSato/thyroidml/sklearn/ensemble"
	"github.com/YuminosukeSato/thyroidml/sklearn/feature_selection"
	"github.com/YuminosukeSato/thyroidml/telemetry"
)

// Stage names, in execution order.
const (
	StageLoad     = "load"
	StageValidate = "validate"
	StageClean    = "clean"
	StageLabel    = "label"
	StageBalance  = "balance"
	StageSplit    = "split"
	StageSelect   = "select"
	StageTrain    = "train"
	StageEvaluate = "evaluate"
	StagePersist  = "persist"
)

// step is one named stage. run returns the number of rows it produced.
type step struct {
	name string
	run  func(s *state) (int, error)
}

// steps returns the stages in execution order.
func steps() []step {
	return []step{
		{StageLoad, load},
		{StageValidate, validate},
		{StageClean, clean},
		{StageLabel, label},
		{StageBalance, balance},
		{StageSplit, split},
		{StageSelect, selectFeatures},
		{StageTrain, train},
		{StageEvaluate, evaluate},
		{StagePersist, persist},
	}
}

// Runner drives one pipeline run.
type Runner struct {
	cfg     config.Config
	store   artifact.Store
	metrics *telemetry.Metrics
	logger  log.Logger
	now     func() time.Time
	input   *dataset.Table
}

// Option configures a Runner.
type Option func(*Runner)

// WithStore persists artifacts to s instead of opening cfg.Store. The
// Runner does not close a store it did not open.
func WithStore(s artifact.Store) Option {
	return func(r *Runner) { r.store = s }
}

// WithMetrics records stage metrics into m.
func WithMetrics(m *telemetry.Metrics) Option {
	return func(r *Runner) { r.metrics = m }
}

// WithLogger sets the logger handed to every stage.
func WithLogger(l log.Logger) Option {
	return func(r *Runner) { r.logger = l }
}

// WithClock replaces time.Now for the manifest timestamp.
func WithClock(now func() time.Time) Option {
	return func(r *Runner) { r.now = now }
}

// WithTable skips reading cfg.DataPath and starts from t.
func WithTable(t *dataset.Table) Option {
	return func(r *Runner) { r.input = t }
}

// New creates a Runner for cfg. cfg is validated by Run.
func New(cfg config.Config, opts ...Option) *Runner {
	r := &Runner{cfg: cfg, now: time.Now}
	for _, opt := range opts {
		opt(r)
	}
	if r.logger == nil {
		r.logger = log.GetLoggerWithName("pipeline")
	}
	if r.metrics == nil {
		r.metrics = telemetry.New()
	}
	return r
}

// Run executes cfg with default options. See Runner.Run.
func Run(ctx context.Context, cfg config.Config, opts ...Option) (*Result, error) {
	return New(cfg, opts...).Run(ctx)
}

// Metrics returns the collectors the run records into.
func (r *Runner) Metrics() *telemetry.Metrics {
	return r.metrics
}

// state carries the intermediate values between stages.
type state struct {
	cfg    config.Config
	logger log.Logger
	store  artifact.Store
	now    func() time.Time
	m      *telemetry.Metrics
	result *Result

	raw, cleaned, labeled, balanced *dataset.Table

	features       []string
	xTrain, xTest  *mat.Dense
	yTrain, yTest  []string
	selector       *feature_selection.SelectKBest
	xTrainSelected *mat.Dense
	xTestSelected  *mat.Dense
	forest         *ensemble.RandomForestClassifier
	scaler         *preprocessing.StandardScaler
}

// Run executes every stage in order. The context is checked between stages.
// When cfg.MetricsFile is set the metrics are written out whether the run
// succeeded or not.
func (r *Runner) Run(ctx context.Context) (*Result, error) {
	if err := r.cfg.Validate(); err != nil {
		return nil, errors.NewStageError("config", err)
	}

	s := &state{
		cfg:    r.cfg,
		logger: r.logger,
		store:  r.store,
		now:    r.now,
		m:      r.metrics,
		result: &Result{},
		raw:    r.input,
	}
	err := r.execute(ctx, s)

	if r.store == nil && s.store != nil {
		if cerr := s.store.Close(); cerr != nil && err == nil {
			err = errors.NewStageError(StagePersist, cerr)
		}
	}
	if r.cfg.MetricsFile != "" {
		if werr := r.metrics.WriteTextfile(r.cfg.MetricsFile); werr != nil {
			r.logger.Error("Failed to write metrics", werr)
			if err == nil {
				err = werr
			}
		}
	}
	if err != nil {
		return nil, err
	}
	return s.result, nil
}

func (r *Runner) execute(ctx context.Context, s *state) error {
	runStart := time.Now()
	for _, st := range steps() {
		if err := ctx.Err(); err != nil {
			return errors.NewStageError(st.name, err)
		}

		start := time.Now()
		var rows int
		err := errors.SafeExecute(st.name, func() error {
			var err error
			rows, err = st.run(s)
			return err
		})
		elapsed := time.Since(start)
		r.metrics.ObserveStage(st.name, rows, elapsed, err)

		if err != nil {
			r.logger.Error("Stage failed", err, log.StageKey, st.name)
			return errors.NewStageError(st.name, err)
		}
		s.result.Stages = append(s.result.Stages, StageTiming{Name: st.name, Rows: rows, Duration: elapsed})
		r.logger.Debug("Stage finished",
			log.StageKey, st.name,
			log.CountKey, rows,
			log.DurationMsKey, elapsed.Milliseconds(),
		)
	}

	r.metrics.MarkSuccess(s.now())
	r.logger.Info("Pipeline finished",
		log.AccuracyKey, s.result.Accuracy,
		log.DurationMsKey, time.Since(runStart).Milliseconds(),
	)
	return nil
}

// recordClasses sets the class gauges of stage and returns the counts.
func (s *state) recordClasses(stage string, labels []string) []over_sampling.ClassCount {
	counts := over_sampling.ClassCounts(labels)
	for _, c := range counts {
		s.m.ObserveClass(stage, c.Class, c.Count)
		s.logger.Info("Class distribution",
			log.StageKey, stage,
			log.ClassKey, c.Class,
			log.CountKey, c.Count,
		)
	}
	return counts
}

// takeRows copies the given rows of X into a new matrix.
func takeRows(X *mat.Dense, rows []int) *mat.Dense {
	_, c := X.Dims()
	out := mat.NewDense(len(rows), c, nil)
	for i, r := range rows {
		out.SetRow(i, X.RawRowView(r))
	}
	return out
}

func takeStrings(ys []string, rows []int) []string {
	out := make([]string, len(rows))
	for i, r := range rows {
		out[i] = ys[r]
	}
	return out
}

// nonTarget returns the column names of t except target, in column order.
func nonTarget(t *dataset.Table, target string) []string {
	names := t.Names()
	out := make([]string, 0, len(names))
	for _, n := range names {
		if n != target {
			out = append(out, n)
		}
	}
	return out
}

// forestOptions maps cfg.Forest onto forest options.
func forestOptions(cfg config.ForestConfig, logger log.Logger) []ensemble.Option {
	return []ensemble.Option{
		ensemble.WithNEstimators(cfg.NEstimators),
		ensemble.WithMaxDepth(cfg.MaxDepth),
		ensemble.WithMaxFeatures(cfg.MaxFeatures),
		ensemble.WithRandomState(cfg.Seed),
		ensemble.WithNJobs(cfg.NJobs),
		ensemble.WithLogger(logger),
	}
}
