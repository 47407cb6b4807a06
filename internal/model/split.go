package model

import "fmt"

// fold is one expanding-window cross-validation fold over time-ordered
// rows: train on [0, TrainEnd), validate on [TrainEnd, ValEnd). Every
// validation row is strictly later in the ordering than every training
// row, so no future data leaks into a fold's training set.
type fold struct {
	TrainEnd int
	ValEnd   int
}

// timeSeriesFolds splits n time-ordered rows into k expanding-window
// folds. Validation slices are equal-sized tail chunks; each successive
// fold's training set absorbs the previous fold's validation rows.
// Rows are never shuffled.
func timeSeriesFolds(n, k int) ([]fold, error) {
	if k < 2 {
		return nil, fmt.Errorf("time series split: need at least 2 folds, got %d", k)
	}
	valSize := n / (k + 1)
	if valSize < 1 {
		return nil, fmt.Errorf("time series split: %d rows is too few for %d folds", n, k)
	}
	folds := make([]fold, k)
	for i := 0; i < k; i++ {
		valEnd := n - (k-1-i)*valSize
		folds[i] = fold{TrainEnd: valEnd - valSize, ValEnd: valEnd}
	}
	return folds, nil
}
