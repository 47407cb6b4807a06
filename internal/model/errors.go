package model

import (
	"fmt"
	"strings"
)

// NotTrainedError is returned when inference or export is attempted on a
// predictor that has not completed a successful Train. The predictor
// never trains implicitly.
type NotTrainedError struct {
	Op string
}

func (e *NotTrainedError) Error() string {
	return fmt.Sprintf("model: %s requires a trained model", e.Op)
}

// FeatureMismatchError is returned when a prediction input is missing
// features the trained model requires. Extra or reordered columns are
// tolerated; absent ones are not fabricated.
type FeatureMismatchError struct {
	Missing []string
}

func (e *FeatureMismatchError) Error() string {
	return fmt.Sprintf("model: input missing required features: %s", strings.Join(e.Missing, ", "))
}

// UnknownModelTypeError is returned at construction for an unsupported
// model kind tag, before any data is touched.
type UnknownModelTypeError struct {
	Kind string
}

func (e *UnknownModelTypeError) Error() string {
	return fmt.Sprintf("model: unknown model type %q", e.Kind)
}
