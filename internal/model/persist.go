package model

import (
	"encoding/gob"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog/log"
)

// artifact is the serialized model state. Exactly one estimator field
// is set, selected by Kind. The gob round-trip restores bit-identical
// predictions: tree thresholds, leaf values and linear coefficients are
// carried as-is.
type artifact struct {
	Kind         Kind
	FeatureNames []string
	Trained      bool
	TrainedAt    time.Time

	Forest  *randomForest
	Boosted *gradientBoosting
	Linear  *linearModel
}

// Save persists the full model state to a single file. Saving an
// untrained model fails: an artifact without a fitted estimator is
// meaningless.
func (p *Predictor) Save(path string) error {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if !p.trained {
		return &NotTrainedError{Op: "Save"}
	}

	a := artifact{
		Kind:         p.kind,
		FeatureNames: p.featureNames,
		Trained:      p.trained,
		TrainedAt:    p.trainedAt,
	}
	switch est := p.est.(type) {
	case *randomForest:
		a.Forest = est
	case *gradientBoosting:
		a.Boosted = est
	case *linearModel:
		a.Linear = est
	default:
		return fmt.Errorf("save model: unsupported estimator %T", p.est)
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("save model: %w", err)
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("save model: %w", err)
	}
	defer f.Close()

	if err := gob.NewEncoder(f).Encode(&a); err != nil {
		return fmt.Errorf("save model: encode: %w", err)
	}

	log.Info().Str("path", path).Str("kind", string(p.kind)).Msg("model saved")
	return nil
}

// Load restores a predictor from a saved artifact.
func Load(path string, opts ...Option) (*Predictor, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("load model: %w", err)
	}
	defer f.Close()

	var a artifact
	if err := gob.NewDecoder(f).Decode(&a); err != nil {
		return nil, fmt.Errorf("load model: decode: %w", err)
	}

	p, err := New(a.Kind, opts...)
	if err != nil {
		return nil, err
	}
	switch {
	case a.Forest != nil:
		p.est = a.Forest
	case a.Boosted != nil:
		p.est = a.Boosted
	case a.Linear != nil:
		p.est = a.Linear
	default:
		return nil, fmt.Errorf("load model: artifact has no estimator state")
	}
	p.featureNames = a.FeatureNames
	p.trained = a.Trained
	p.trainedAt = a.TrainedAt

	if p.metrics != nil && !a.TrainedAt.IsZero() {
		p.metrics.ModelAgeSet(time.Since(a.TrainedAt).Seconds())
	}

	log.Info().Str("path", path).Str("kind", string(a.Kind)).Msg("model loaded")
	return p, nil
}
