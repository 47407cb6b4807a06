// Package model trains and serves the transit delay regressor. A
// Predictor wraps one of a small closed set of regressor kinds behind a
// shared train/predict surface, reports leakage-safe cross-validated
// error estimates, and persists to a single artifact file.
package model

import (
	"math"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"transit-predict/internal/features"
)

// Kind tags the supported regressor kinds.
type Kind string

const (
	KindRandomForest     Kind = "random_forest"
	KindGradientBoosting Kind = "gradient_boosting"
	KindLinear           Kind = "linear"
)

// Prediction clamp bounds in minutes. Nothing in this system is
// credibly more than an hour late or more than ten minutes early.
const (
	MinPredictedDelay = -10.0
	MaxPredictedDelay = 60.0
)

// DefaultConfidenceStd is the per-row uncertainty, in minutes, reported
// for kinds without per-member predictions. A fixed constant, not a
// calibrated interval.
const DefaultConfidenceStd = 2.0

// DefaultSeed parametrizes ensemble resampling for reproducible fits.
const DefaultSeed int64 = 42

// estimator is the capability every kind implements. fit replaces any
// previous state; workers caps fit parallelism where the kind supports
// it.
type estimator interface {
	fit(X [][]float64, y []float64, seed int64, workers int) error
	predict(x []float64) float64
}

// memberEstimator exposes individual ensemble member predictions for
// uncertainty estimation.
type memberEstimator interface {
	memberPredict(x []float64) []float64
}

// rankedEstimator exposes an importance score per feature.
type rankedEstimator interface {
	featureImportances() []float64
}

// Metrics is the evaluation record returned by Train. MAE, RMSE and R2
// are computed in-sample on the final refit; the CV fields are the
// expanding-window fold estimates.
type Metrics struct {
	MAE       float64 `json:"mae"`
	RMSE      float64 `json:"rmse"`
	R2        float64 `json:"r2"`
	CVMAEMean float64 `json:"cv_mae_mean"`
	CVMAEStd  float64 `json:"cv_mae_std"`
}

// Importance is one feature's ranked importance score.
type Importance struct {
	Feature string  `json:"feature"`
	Score   float64 `json:"importance"`
}

// MetricsSink receives prediction telemetry. Implemented by the
// metrics package; nil sinks are ignored.
type MetricsSink interface {
	PredictionsInc()
	PredictionFailuresInc()
	TrainingDurationObserve(float64)
	ModelAgeSet(float64)
}

const cvFolds = 5

// Predictor maps a feature row to a predicted delay in minutes with an
// uncertainty estimate. Concurrent Predict calls on a trained instance
// are safe; Train mutates state and must be externally serialized.
type Predictor struct {
	mu           sync.RWMutex
	kind         Kind
	est          estimator
	featureNames []string
	trained      bool
	trainedAt    time.Time

	seed    int64
	workers int
	metrics MetricsSink
}

// Option configures a Predictor at construction.
type Option func(*Predictor)

// WithSeed overrides the ensemble random seed.
func WithSeed(seed int64) Option {
	return func(p *Predictor) { p.seed = seed }
}

// WithWorkers caps fit parallelism. Zero means one worker per CPU.
func WithWorkers(n int) Option {
	return func(p *Predictor) { p.workers = n }
}

// WithMetrics attaches a telemetry sink.
func WithMetrics(m MetricsSink) Option {
	return func(p *Predictor) { p.metrics = m }
}

// New constructs an untrained predictor of the given kind. An
// unsupported tag fails with UnknownModelTypeError before any data is
// touched.
func New(kind Kind, opts ...Option) (*Predictor, error) {
	switch kind {
	case KindRandomForest, KindGradientBoosting, KindLinear:
	default:
		return nil, &UnknownModelTypeError{Kind: string(kind)}
	}
	p := &Predictor{kind: kind, seed: DefaultSeed}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// Kind returns the predictor's model kind tag.
func (p *Predictor) Kind() Kind { return p.kind }

// IsTrained reports whether Train has completed successfully.
func (p *Predictor) IsTrained() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.trained
}

// FeatureNames returns the ordered input contract fixed at training
// time, or nil when untrained.
func (p *Predictor) FeatureNames() []string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]string, len(p.featureNames))
	copy(out, p.featureNames)
	return out
}

func (p *Predictor) newEstimator() estimator {
	switch p.kind {
	case KindGradientBoosting:
		return newGradientBoosting()
	case KindLinear:
		return newLinearModel()
	default:
		return newRandomForest()
	}
}

// Train fits the model on the full dataset after an expanding-window
// cross-validation pass. X rows must be time-ordered (the feature
// engine's output already is); y is the delay target in minutes.
//
// The CV estimate is diagnostic only: each fold fits a transient model
// whose state is discarded, and the production model is refit on all
// rows. validationFraction is accepted for interface compatibility but
// the fold layout is derived from the row count, not from it.
//
// Training stores X's column order as the model's input contract and
// may be called again later to refit, replacing contract and estimator.
func (p *Predictor) Train(X *features.Frame, y []float64, validationFraction float64) (Metrics, error) {
	start := time.Now()

	names := X.Columns()
	if len(names) == 0 {
		return Metrics{}, &features.InvalidInputError{Reason: "feature frame has no columns"}
	}
	if X.Len() != len(y) {
		return Metrics{}, &features.InvalidInputError{
			Reason: "feature rows and target length differ",
		}
	}
	if len(y) == 0 {
		return Metrics{}, &features.InvalidInputError{Reason: "no training rows"}
	}
	for _, v := range y {
		if math.IsNaN(v) {
			return Metrics{}, &features.InvalidInputError{
				Column: features.ColDelayMinutes,
				Reason: "target contains missing values",
			}
		}
	}
	rows, missing := X.Matrix(names)
	if len(missing) > 0 {
		return Metrics{}, &FeatureMismatchError{Missing: missing}
	}

	log.Info().
		Str("kind", string(p.kind)).
		Int("samples", len(y)).
		Int("features", len(names)).
		Msg("training delay model")

	cvScores, err := p.crossValidate(rows, y)
	if err != nil {
		log.Warn().Err(err).Msg("cross-validation skipped")
	}

	est := p.newEstimator()
	if err := est.fit(rows, y, p.seed, p.workers); err != nil {
		return Metrics{}, err
	}

	preds := make([]float64, len(y))
	for i, row := range rows {
		preds[i] = est.predict(row)
	}

	m := Metrics{
		MAE:  meanAbsoluteError(y, preds),
		RMSE: rootMeanSquaredError(y, preds),
		R2:   r2Score(y, preds),
	}
	m.CVMAEMean, m.CVMAEStd = meanStd(cvScores)

	p.mu.Lock()
	p.est = est
	p.featureNames = names
	p.trained = true
	p.trainedAt = time.Now()
	p.mu.Unlock()

	if p.metrics != nil {
		p.metrics.TrainingDurationObserve(time.Since(start).Seconds())
		p.metrics.ModelAgeSet(0)
	}

	log.Info().
		Float64("mae", m.MAE).
		Float64("rmse", m.RMSE).
		Float64("r2", m.R2).
		Float64("cv_mae_mean", m.CVMAEMean).
		Float64("cv_mae_std", m.CVMAEStd).
		Msg("training complete")

	return m, nil
}

// crossValidate runs the expanding-window folds, returning the per-fold
// validation MAE. Fold models are transient.
func (p *Predictor) crossValidate(rows [][]float64, y []float64) ([]float64, error) {
	folds, err := timeSeriesFolds(len(y), cvFolds)
	if err != nil {
		return nil, err
	}
	scores := make([]float64, 0, len(folds))
	for _, fl := range folds {
		est := p.newEstimator()
		if err := est.fit(rows[:fl.TrainEnd], y[:fl.TrainEnd], p.seed, p.workers); err != nil {
			return nil, err
		}
		var absSum float64
		for i := fl.TrainEnd; i < fl.ValEnd; i++ {
			absSum += math.Abs(y[i] - est.predict(rows[i]))
		}
		scores = append(scores, absSum/float64(fl.ValEnd-fl.TrainEnd))
	}
	mean, std := meanStd(scores)
	log.Info().
		Float64("cv_mae_mean", mean).
		Float64("cv_mae_std", std).
		Int("folds", len(scores)).
		Msg("cross-validation complete")
	return scores, nil
}

// matrixFor reorders and selects X's columns to the trained contract.
func (p *Predictor) matrixFor(X *features.Frame) ([][]float64, error) {
	rows, missing := X.Matrix(p.featureNames)
	if len(missing) > 0 {
		if p.metrics != nil {
			p.metrics.PredictionFailuresInc()
		}
		return nil, &FeatureMismatchError{Missing: missing}
	}
	return rows, nil
}

// Predict returns the per-row predicted delay in minutes, clamped to
// [MinPredictedDelay, MaxPredictedDelay]. Input columns are matched to
// the training contract by name; order and extra columns are ignored.
func (p *Predictor) Predict(X *features.Frame) ([]float64, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if !p.trained {
		return nil, &NotTrainedError{Op: "Predict"}
	}
	rows, err := p.matrixFor(X)
	if err != nil {
		return nil, err
	}

	out := make([]float64, len(rows))
	for i, row := range rows {
		out[i] = clamp(p.est.predict(row), MinPredictedDelay, MaxPredictedDelay)
		if p.metrics != nil {
			p.metrics.PredictionsInc()
		}
	}
	return out, nil
}

// PredictWithConfidence returns clamped point predictions plus a
// per-row standard deviation estimate. Ensemble kinds report the spread
// of their members' predictions; other kinds report
// DefaultConfidenceStd.
func (p *Predictor) PredictWithConfidence(X *features.Frame) (preds, stds []float64, err error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if !p.trained {
		return nil, nil, &NotTrainedError{Op: "PredictWithConfidence"}
	}
	rows, err := p.matrixFor(X)
	if err != nil {
		return nil, nil, err
	}

	preds = make([]float64, len(rows))
	stds = make([]float64, len(rows))
	me, hasMembers := p.est.(memberEstimator)
	for i, row := range rows {
		preds[i] = clamp(p.est.predict(row), MinPredictedDelay, MaxPredictedDelay)
		if hasMembers {
			stds[i] = populationStd(me.memberPredict(row))
		} else {
			stds[i] = DefaultConfidenceStd
		}
		if p.metrics != nil {
			p.metrics.PredictionsInc()
		}
	}
	return preds, stds, nil
}

// FeatureImportance returns features ranked by descending importance.
// Kinds without an importance measure yield an empty result, not an
// error.
func (p *Predictor) FeatureImportance() ([]Importance, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if !p.trained {
		return nil, &NotTrainedError{Op: "FeatureImportance"}
	}
	re, ok := p.est.(rankedEstimator)
	if !ok {
		log.Warn().Str("kind", string(p.kind)).Msg("model kind does not expose feature importance")
		return nil, nil
	}
	scores := re.featureImportances()
	out := make([]Importance, 0, len(scores))
	for i, s := range scores {
		out = append(out, Importance{Feature: p.featureNames[i], Score: s})
	}
	sort.SliceStable(out, func(a, b int) bool { return out[a].Score > out[b].Score })
	return out, nil
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func meanAbsoluteError(y, pred []float64) float64 {
	var sum float64
	for i := range y {
		sum += math.Abs(y[i] - pred[i])
	}
	return sum / float64(len(y))
}

func rootMeanSquaredError(y, pred []float64) float64 {
	var sum float64
	for i := range y {
		d := y[i] - pred[i]
		sum += d * d
	}
	return math.Sqrt(sum / float64(len(y)))
}

func r2Score(y, pred []float64) float64 {
	var mean float64
	for _, v := range y {
		mean += v
	}
	mean /= float64(len(y))

	var ssRes, ssTot float64
	for i := range y {
		d := y[i] - pred[i]
		ssRes += d * d
		t := y[i] - mean
		ssTot += t * t
	}
	if ssTot == 0 {
		return 0
	}
	return 1 - ssRes/ssTot
}

// meanStd returns the mean and population standard deviation.
func meanStd(v []float64) (mean, std float64) {
	if len(v) == 0 {
		return 0, 0
	}
	for _, x := range v {
		mean += x
	}
	mean /= float64(len(v))
	var variance float64
	for _, x := range v {
		d := x - mean
		variance += d * d
	}
	variance /= float64(len(v))
	return mean, math.Sqrt(variance)
}

func populationStd(v []float64) float64 {
	_, std := meanStd(v)
	return std
}
