package model

import (
	"fmt"
	"math"

	"github.com/sajari/regression"
)

// linearModel is an ordinary least squares baseline. It carries no
// per-member predictions and no importance measure, which makes it the
// kind that exercises the predictor's fallback paths.
//
// OLS cannot consume missing values, so NaN features are imputed with
// the feature's training mean; the means are kept for inference.
type linearModel struct {
	Intercept   float64
	Coeffs      []float64
	Means       []float64
	NumFeatures int
}

func newLinearModel() *linearModel { return &linearModel{} }

func (lm *linearModel) fit(X [][]float64, y []float64, seed int64, workers int) error {
	n := len(X)
	if n == 0 {
		return fmt.Errorf("linear: no training rows")
	}
	lm.NumFeatures = len(X[0])

	lm.Means = make([]float64, lm.NumFeatures)
	for f := 0; f < lm.NumFeatures; f++ {
		var sum float64
		count := 0
		for i := 0; i < n; i++ {
			if v := X[i][f]; !math.IsNaN(v) {
				sum += v
				count++
			}
		}
		if count > 0 {
			lm.Means[f] = sum / float64(count)
		}
	}

	r := new(regression.Regression)
	r.SetObserved("delay_minutes")
	for f := 0; f < lm.NumFeatures; f++ {
		r.SetVar(f, fmt.Sprintf("f%d", f))
	}
	for i := 0; i < n; i++ {
		r.Train(regression.DataPoint(y[i], lm.impute(X[i])))
	}
	if err := r.Run(); err != nil {
		return fmt.Errorf("linear fit: %w", err)
	}

	lm.Intercept = r.Coeff(0)
	lm.Coeffs = make([]float64, lm.NumFeatures)
	for f := 0; f < lm.NumFeatures; f++ {
		lm.Coeffs[f] = r.Coeff(f + 1)
	}
	return nil
}

func (lm *linearModel) impute(x []float64) []float64 {
	out := make([]float64, len(x))
	for i, v := range x {
		if math.IsNaN(v) {
			out[i] = lm.Means[i]
		} else {
			out[i] = v
		}
	}
	return out
}

func (lm *linearModel) predict(x []float64) float64 {
	out := lm.Intercept
	for f, c := range lm.Coeffs {
		v := x[f]
		if math.IsNaN(v) {
			v = lm.Means[f]
		}
		out += c * v
	}
	return out
}
